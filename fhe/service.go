// Package fhe provides opaque ciphertext handles over encrypted 64-bit
// unsigned integers and the confidential-compute operations the auction
// engine is allowed to perform on them. The engine never sees plaintext;
// it passes handles around and asks the service to compare, select, and
// manage read access.
package fhe

import "errors"

var (
	// ErrInvalidProof is returned when an imported ciphertext's binding
	// proof does not match the payload and sender.
	ErrInvalidProof = errors.New("invalid ciphertext proof")

	// ErrUnknownHandle is returned for operations on handles the service
	// has never issued.
	ErrUnknownHandle = errors.New("unknown ciphertext handle")

	// ErrAccessDenied is returned when a principal attempts to decrypt a
	// handle it has no grant for and which has not been made public.
	ErrAccessDenied = errors.New("access denied for ciphertext handle")
)

// Handle is an opaque reference to an encrypted uint64 value.
type Handle string

// BoolHandle is an opaque reference to an encrypted boolean, produced by
// comparison operations and consumed by Select.
type BoolHandle string

// Zero is the null handle. It is never issued by a Service.
const Zero Handle = ""

// ExternalCiphertext is a caller-supplied encrypted value entering the
// service's trust domain. The payload is hybrid-encrypted against the
// service public key (RSA-OAEP wrapped AES-256-GCM), and Proof binds the
// encrypted payload to the submitting principal.
type ExternalCiphertext struct {
	AESKeyEncrypted  string `json:"aes_key_encrypted"`        // base64 RSA-OAEP encrypted AES key
	EncryptedPayload string `json:"encrypted_payload"`        // base64 AES-GCM encrypted {"amount": N}
	Nonce            string `json:"nonce"`                    // base64 GCM nonce (12 bytes)
	HashAlgorithm    string `json:"hash_algorithm,omitempty"` // "SHA-256" (default) or "SHA-1"
	Proof            string `json:"proof"`                    // hex SHA-256 binding hash, see ComputeInputProof
}

// Service is the confidential-compute capability consumed by the auction
// engine. Implementations must treat every operation as synchronous and
// deterministic; comparison and selection must not branch observably on
// the secret outcome.
type Service interface {
	// EncryptLiteral encrypts a known plaintext inside the trust domain
	// and returns a fresh handle.
	EncryptLiteral(v uint64) (Handle, error)

	// ImportExternal verifies the proof binding ct to sender, decrypts the
	// payload inside the trust domain, and returns a fresh handle.
	// Returns ErrInvalidProof when the binding check fails.
	ImportExternal(ct ExternalCiphertext, sender string) (Handle, error)

	// GreaterThan obliviously computes a > b.
	GreaterThan(a, b Handle) (BoolHandle, error)

	// Select obliviously computes cond ? ifTrue : ifFalse, always
	// producing a fresh handle regardless of which branch was taken.
	Select(cond BoolHandle, ifTrue, ifFalse Handle) (Handle, error)

	// GrantAccess allows principal to decrypt h.
	GrantAccess(h Handle, principal string) error

	// MakePublic marks h decryptable by anyone. One-way and idempotent.
	MakePublic(h Handle) error

	// Decrypt returns the plaintext of h for principal. Allowed only when
	// principal holds a grant on h or h has been made public.
	Decrypt(h Handle, principal string) (uint64, error)
}
