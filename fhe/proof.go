package fhe

import (
	"crypto/sha256"
	"fmt"
)

// ComputeInputProof computes the binding hash for an external ciphertext.
// The proof ties the encrypted payload to the principal submitting it, so
// a ciphertext cannot be replayed by a different sender.
//
// Formula: SHA256(encrypted_payload + "|" + sender + "|" + nonce)
func ComputeInputProof(encryptedPayload, sender, nonce string) string {
	data := fmt.Sprintf("%s|%s|%s", encryptedPayload, sender, nonce)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// VerifyInputProof checks the binding proof carried by an external
// ciphertext against the claimed sender.
func VerifyInputProof(ct ExternalCiphertext, sender string) bool {
	expected := ComputeInputProof(ct.EncryptedPayload, sender, ct.Nonce)
	return ct.Proof == expected
}
