package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"time"

	enclave "github.com/edgebitio/nitro-enclaves-sdk-go"
	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"

	"github.com/haicereylio/fhevm-confidential-auction/engineapi"
)

// EngineAttester interface for dependency injection and testing
type EngineAttester interface {
	Attest(options enclave.AttestationOptions) ([]byte, error)
}

// getEnclaveAttester attempts to get the NSM attester, returns error if not available
func getEnclaveAttester() (EngineAttester, error) {
	handle, err := enclave.GetOrInitializeHandle()
	if err != nil {
		return nil, fmt.Errorf("NSM not available: %w", err)
	}
	return handle, nil
}

// generateSecureRandomBytes generates cryptographically secure random bytes.
func generateSecureRandomBytes(length int) ([]byte, error) {
	randomBytes := make([]byte, length)
	if _, err := rand.Read(randomBytes); err != nil {
		return nil, fmt.Errorf("entropy generation failed: %w", err)
	}
	return randomBytes, nil
}

func generateNonce() (string, error) {
	randomBytes, err := generateSecureRandomBytes(32) // 256 bits of entropy
	if err != nil {
		return "", fmt.Errorf("failed to generate secure nonce - %w", err)
	}
	return hex.EncodeToString(randomBytes), nil
}

// localAttester signs attestation documents with a self-generated ECDSA
// P-384 key when no NSM is available. The emitted COSE_Sign1 and document
// shape match NSM output so validation treats both the same way.
type localAttester struct {
	key     *ecdsa.PrivateKey
	certDER []byte
	signer  cose.Signer
}

func newLocalAttester() (*localAttester, error) {
	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate attestation key: %w", err)
	}

	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "local-auction-engine"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed to self-sign attestation certificate: %w", err)
	}

	signer, err := cose.NewSigner(cose.AlgorithmES384, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create COSE signer: %w", err)
	}

	return &localAttester{key: key, certDER: certDER, signer: signer}, nil
}

// Attest produces an untagged COSE_Sign1 4-element array over a CBOR
// attestation document, the structure NSM emits.
func (a *localAttester) Attest(options enclave.AttestationOptions) ([]byte, error) {
	doc := map[string]any{
		"module_id":   "local-engine",
		"digest":      "SHA384",
		"timestamp":   uint64(time.Now().Unix()),
		"pcrs":        map[uint64][]byte{},
		"certificate": a.certDER,
		"cabundle":    [][]byte{},
		"public_key":  []byte{},
		"user_data":   options.UserData,
		"nonce":       options.Nonce,
	}
	payload, err := cbor.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal attestation document: %w", err)
	}

	protected, err := cbor.Marshal(map[int64]any{1: int64(cose.AlgorithmES384)})
	if err != nil {
		return nil, fmt.Errorf("marshal protected headers: %w", err)
	}

	// Sig_structure for COSE_Sign1: ["Signature1", protected, external_aad, payload]
	sigStructure, err := cbor.Marshal([]any{"Signature1", protected, []byte{}, payload})
	if err != nil {
		return nil, fmt.Errorf("marshal Sig_structure: %w", err)
	}

	signature, err := a.signer.Sign(rand.Reader, sigStructure)
	if err != nil {
		return nil, fmt.Errorf("sign attestation: %w", err)
	}

	coseBytes, err := cbor.Marshal([]any{protected, map[any]any{}, payload, signature})
	if err != nil {
		return nil, fmt.Errorf("marshal COSE_Sign1: %w", err)
	}
	return coseBytes, nil
}

// GenerateRevealAttestation signs the disclosed results of a revealed
// auction so off-host consumers can validate them.
func GenerateRevealAttestation(attester EngineAttester, userData engineapi.RevealUserData) (engineapi.AttestationCOSE, error) {
	if attester == nil {
		return nil, fmt.Errorf("engine attester is nil")
	}

	nonce, err := generateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate attestation nonce: %w", err)
	}
	userData.Nonce = nonce

	userDataBytes, err := json.Marshal(userData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal user data: %w", err)
	}

	attestationCBOR, err := attester.Attest(enclave.AttestationOptions{
		UserData: userDataBytes,
		Nonce:    []byte(nonce),
	})
	if err != nil {
		log.Printf("ERROR: attestation failed: %v", err)
		return nil, fmt.Errorf("attestation failed: %w", err)
	}

	log.Printf("INFO: Reveal attestation generated: %d bytes", len(attestationCBOR))
	return engineapi.AttestationCOSE(attestationCBOR), nil
}
