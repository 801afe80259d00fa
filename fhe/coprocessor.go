package fhe

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// amountPayload is the plaintext structure inside an external ciphertext.
type amountPayload struct {
	Amount uint64 `json:"amount"`
}

// vaultEntry holds one encrypted value and its access state. The sealed
// bytes are nonce||ciphertext under the coprocessor's vault key.
type vaultEntry struct {
	sealed []byte
	acl    map[string]struct{}
	public bool
}

// Coprocessor is an in-process implementation of Service. Values are held
// AES-256-GCM encrypted at rest under a per-instance vault key; plaintext
// exists only transiently inside capability calls, mirroring a TEE trust
// domain. Callers outside the trust domain only ever see handles.
type Coprocessor struct {
	mu      sync.Mutex
	km      *KeyManager
	gcm     cipher.AEAD
	entries map[Handle]*vaultEntry
	bools   map[BoolHandle][]byte
}

// NewCoprocessor creates a Coprocessor with a fresh vault key and RSA
// import key pair.
func NewCoprocessor() (*Coprocessor, error) {
	km, err := NewKeyManager()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize key manager: %w", err)
	}

	vaultKey := make([]byte, 32)
	if _, err := rand.Read(vaultKey); err != nil {
		return nil, fmt.Errorf("failed to generate vault key: %w", err)
	}

	block, err := aes.NewCipher(vaultKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault GCM: %w", err)
	}

	return &Coprocessor{
		km:      km,
		gcm:     gcm,
		entries: make(map[Handle]*vaultEntry),
		bools:   make(map[BoolHandle][]byte),
	}, nil
}

// PublicKey returns the RSA public key clients encrypt ciphertexts against.
func (c *Coprocessor) PublicKey() *rsa.PublicKey {
	return c.km.PublicKey
}

// PublicKeyPEM returns the import public key in PEM format.
func (c *Coprocessor) PublicKeyPEM() (string, error) {
	return c.km.PublicKeyPEM()
}

func (c *Coprocessor) seal(v uint64) ([]byte, error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate vault nonce: %w", err)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return append(nonce, c.gcm.Seal(nil, nonce, buf[:], nil)...), nil
}

func (c *Coprocessor) open(sealed []byte) (uint64, error) {
	ns := c.gcm.NonceSize()
	if len(sealed) < ns {
		return 0, fmt.Errorf("sealed value too short")
	}
	plain, err := c.gcm.Open(nil, sealed[:ns], sealed[ns:], nil)
	if err != nil {
		return 0, fmt.Errorf("failed to open sealed value: %w", err)
	}
	if len(plain) != 8 {
		return 0, fmt.Errorf("invalid sealed value length: %d", len(plain))
	}
	return binary.BigEndian.Uint64(plain), nil
}

func (c *Coprocessor) store(v uint64) (Handle, error) {
	sealed, err := c.seal(v)
	if err != nil {
		return Zero, err
	}
	h := Handle(uuid.NewString())
	c.entries[h] = &vaultEntry{
		sealed: sealed,
		acl:    make(map[string]struct{}),
	}
	return h, nil
}

func (c *Coprocessor) value(h Handle) (uint64, error) {
	entry, ok := c.entries[h]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	return c.open(entry.sealed)
}

// EncryptLiteral encrypts a known plaintext and returns a fresh handle.
func (c *Coprocessor) EncryptLiteral(v uint64) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store(v)
}

// ImportExternal verifies the binding proof, decrypts the hybrid payload,
// and stores the amount under a fresh handle.
func (c *Coprocessor) ImportExternal(ct ExternalCiphertext, sender string) (Handle, error) {
	if !VerifyInputProof(ct, sender) {
		return Zero, fmt.Errorf("%w: proof does not bind payload to sender %s", ErrInvalidProof, sender)
	}

	hashAlg := HashAlgorithm(ct.HashAlgorithm)
	if hashAlg == "" {
		hashAlg = HashAlgorithmSHA256
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	plaintext, err := DecryptHybrid(ct.AESKeyEncrypted, ct.EncryptedPayload, ct.Nonce, c.km.privateKey, hashAlg)
	if err != nil {
		return Zero, fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}

	var payload amountPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return Zero, fmt.Errorf("%w: invalid payload format: %v", ErrInvalidProof, err)
	}

	return c.store(payload.Amount)
}

// GreaterThan obliviously computes a > b.
func (c *Coprocessor) GreaterThan(a, b Handle) (BoolHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	va, err := c.value(a)
	if err != nil {
		return "", err
	}
	vb, err := c.value(b)
	if err != nil {
		return "", err
	}

	var bit uint64
	if va > vb {
		bit = 1
	}
	sealed, err := c.seal(bit)
	if err != nil {
		return "", err
	}
	bh := BoolHandle(uuid.NewString())
	c.bools[bh] = sealed
	return bh, nil
}

// Select obliviously computes cond ? ifTrue : ifFalse. Both branches are
// opened and a fresh handle is produced whichever way the condition went,
// so the caller learns nothing from the call shape.
func (c *Coprocessor) Select(cond BoolHandle, ifTrue, ifFalse Handle) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sealed, ok := c.bools[cond]
	if !ok {
		return Zero, fmt.Errorf("%w: %s", ErrUnknownHandle, cond)
	}
	bit, err := c.open(sealed)
	if err != nil {
		return Zero, err
	}

	vt, err := c.value(ifTrue)
	if err != nil {
		return Zero, err
	}
	vf, err := c.value(ifFalse)
	if err != nil {
		return Zero, err
	}

	// Constant-structure update: arithmetic select, no branch on the secret.
	v := bit*vt + (1-bit)*vf
	return c.store(v)
}

// GrantAccess allows principal to decrypt h.
func (c *Coprocessor) GrantAccess(h Handle, principal string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[h]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	entry.acl[principal] = struct{}{}
	return nil
}

// MakePublic marks h decryptable by anyone. One-way and idempotent.
func (c *Coprocessor) MakePublic(h Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[h]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	entry.public = true
	return nil
}

// Decrypt returns the plaintext of h for principal, enforcing the ACL.
func (c *Coprocessor) Decrypt(h Handle, principal string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[h]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	if !entry.public {
		if _, granted := entry.acl[principal]; !granted {
			return 0, fmt.Errorf("%w: principal %s on handle %s", ErrAccessDenied, principal, h)
		}
	}
	return c.open(entry.sealed)
}

// EncryptAmount produces an ExternalCiphertext for amount, bound to
// sender, against the service public key. This is the client-side path
// bidders run before submitting a bid or auto-bid ceiling.
func EncryptAmount(amount uint64, sender string, publicKey *rsa.PublicKey) (ExternalCiphertext, error) {
	plaintext, err := json.Marshal(amountPayload{Amount: amount})
	if err != nil {
		return ExternalCiphertext{}, fmt.Errorf("failed to marshal amount payload: %w", err)
	}

	result, err := EncryptHybrid(plaintext, publicKey, HashAlgorithmSHA256)
	if err != nil {
		return ExternalCiphertext{}, err
	}

	return ExternalCiphertext{
		AESKeyEncrypted:  result.EncryptedAESKey,
		EncryptedPayload: result.EncryptedPayload,
		Nonce:            result.Nonce,
		HashAlgorithm:    string(HashAlgorithmSHA256),
		Proof:            ComputeInputProof(result.EncryptedPayload, sender, result.Nonce),
	}, nil
}
