// Package parsing decodes the raw CBOR attestation documents produced by
// the engine host's attester.
package parsing

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/haicereylio/fhevm-confidential-auction/engineapi"
)

// AttestationDocument represents the raw CBOR structure of an attestation
// document. The shape matches AWS Nitro Enclave documents; the host's
// local fallback signer emits the same fields.
type AttestationDocument struct {
	ModuleID    string            `cbor:"module_id"`
	Digest      string            `cbor:"digest"`
	Timestamp   uint64            `cbor:"timestamp"`
	PCRs        map[uint64][]byte `cbor:"pcrs"`
	Certificate []byte            `cbor:"certificate"`
	CABundle    [][]byte          `cbor:"cabundle"`
	PublicKey   []byte            `cbor:"public_key"`
	UserData    []byte            `cbor:"user_data"`
	Nonce       []byte            `cbor:"nonce"`
}

// ParseAttestationDocument decodes the CBOR payload of a COSE_Sign1
// attestation into its document structure.
func ParseAttestationDocument(payload []byte) (*AttestationDocument, error) {
	var doc AttestationDocument
	if err := cbor.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("parse attestation document: %w", err)
	}
	return &doc, nil
}

// RevealUserData decodes the embedded reveal payload from the document's
// user data.
func (d *AttestationDocument) RevealUserData() (*engineapi.RevealUserData, error) {
	if len(d.UserData) == 0 {
		return nil, fmt.Errorf("attestation user data missing")
	}
	var userData engineapi.RevealUserData
	if err := json.Unmarshal(d.UserData, &userData); err != nil {
		return nil, fmt.Errorf("parse reveal user data: %w", err)
	}
	return &userData, nil
}

// FormatPCR formats PCR bytes as hex string
func FormatPCR(pcrData []byte) string {
	if len(pcrData) == 0 {
		return ""
	}
	return fmt.Sprintf("%x", pcrData)
}
