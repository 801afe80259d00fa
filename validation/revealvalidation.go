package validation

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/haicereylio/fhevm-confidential-auction/engineapi"
	"github.com/haicereylio/fhevm-confidential-auction/engineapi/parsing"
)

// RevealValidationInput contains the expectations a consumer checks a
// reveal attestation against.
type RevealValidationInput struct {
	AttestationCOSEBase64 engineapi.AttestationCOSEBase64
	AuctionID             uint64
	ExpectedWinningAmount *uint64 // nil = accept any disclosed amount
	ExpectReserve         bool
	MaxAge                time.Duration // 0 = skip freshness check
	VerifySignature       bool          // false when the cert chain is checked elsewhere
}

// RevealValidationResult carries per-check outcomes plus human-readable
// details for each failed or notable check.
type RevealValidationResult struct {
	SignatureValid     bool
	AuctionIDValid     bool
	WinningAmountValid bool
	ReserveValid       bool
	FreshnessValid     bool
	UserData           *engineapi.RevealUserData
	ValidationDetails  []string
}

// IsValid returns true if all reveal validation checks passed.
func (r *RevealValidationResult) IsValid() bool {
	return r.SignatureValid && r.AuctionIDValid && r.WinningAmountValid && r.ReserveValid && r.FreshnessValid
}

// ValidateRevealAttestation verifies a reveal attestation end to end:
// COSE signature (against the certificate embedded in the document),
// auction identity, disclosed winning amount, reserve consistency, and
// freshness. Returns an error only when validation cannot be performed at
// all; individual check failures land in the result.
func ValidateRevealAttestation(input *RevealValidationInput, now time.Time) (*RevealValidationResult, error) {
	result := &RevealValidationResult{}

	coseBytes, err := input.AttestationCOSEBase64.Decode()
	if err != nil {
		return nil, fmt.Errorf("decode attestation: %w", err)
	}

	payload, err := ExtractCOSEPayload(coseBytes)
	if err != nil {
		return nil, fmt.Errorf("extract COSE payload: %w", err)
	}

	doc, err := parsing.ParseAttestationDocument(payload)
	if err != nil {
		return nil, err
	}

	// NSM documents carry the enclave image measurement in PCR0; the
	// local signer leaves it empty.
	if pcr0 := parsing.FormatPCR(doc.PCRs[0]); pcr0 != "" {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("PCR0: %s", pcr0))
	}

	userData, err := doc.RevealUserData()
	if err != nil {
		result.ValidationDetails = append(result.ValidationDetails, err.Error())
		return result, nil
	}
	result.UserData = userData

	if input.VerifySignature {
		certB64 := base64.StdEncoding.EncodeToString(doc.Certificate)
		if err := VerifyRevealSignature(input.AttestationCOSEBase64, certB64); err != nil {
			result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Signature verification failed: %v", err))
		} else {
			result.SignatureValid = true
		}
	} else {
		result.SignatureValid = true
		result.ValidationDetails = append(result.ValidationDetails, "Signature verification skipped")
	}

	if userData.AuctionID == input.AuctionID {
		result.AuctionIDValid = true
	} else {
		result.ValidationDetails = append(result.ValidationDetails,
			fmt.Sprintf("Auction id mismatch: attested %d, expected %d", userData.AuctionID, input.AuctionID))
	}

	if input.ExpectedWinningAmount == nil || *input.ExpectedWinningAmount == userData.WinningAmount {
		result.WinningAmountValid = true
	} else {
		result.ValidationDetails = append(result.ValidationDetails,
			fmt.Sprintf("Winning amount mismatch: attested %d, expected %d", userData.WinningAmount, *input.ExpectedWinningAmount))
	}

	switch {
	case input.ExpectReserve && !userData.HasReserve:
		result.ValidationDetails = append(result.ValidationDetails, "Reserve expected but not attested")
	case userData.HasReserve && userData.ReserveMet == nil:
		result.ValidationDetails = append(result.ValidationDetails, "Reserve attested without reserve-met status")
	default:
		result.ReserveValid = true
	}

	if input.MaxAge <= 0 || now.Sub(userData.Timestamp) <= input.MaxAge {
		result.FreshnessValid = true
	} else {
		result.ValidationDetails = append(result.ValidationDetails,
			fmt.Sprintf("Attestation stale: issued %s", userData.Timestamp.Format(time.RFC3339)))
	}

	return result, nil
}
