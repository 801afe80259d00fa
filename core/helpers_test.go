package core

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"

	"github.com/haicereylio/fhevm-confidential-auction/fhe"
)

const (
	testOwner  = "owner"
	testSeller = "seller"
)

// newTestEngine wires a registry to a real in-process coprocessor so
// tests exercise the full encrypt-bid-reveal-decrypt path.
func newTestEngine(t *testing.T) (*Registry, *fhe.Coprocessor) {
	t.Helper()
	coproc, err := fhe.NewCoprocessor()
	assert.NoError(t, err)
	policy := NewAccessPolicy(testOwner, []string{testSeller})
	return NewRegistry(policy, coproc, NopSink{}), coproc
}

// encryptFor produces an external ciphertext for amount bound to sender.
func encryptFor(t *testing.T, coproc *fhe.Coprocessor, amount uint64, sender string) fhe.ExternalCiphertext {
	t.Helper()
	ct, err := fhe.EncryptAmount(amount, sender, coproc.PublicKey())
	assert.NoError(t, err)
	return ct
}

// openAuction creates a standard no-reserve english auction running from
// now for an hour with a 300s extension window.
func openAuction(t *testing.T, r *Registry, now time.Time) uint64 {
	t.Helper()
	id, err := r.CreateAuction(testSeller, CreateParams{
		Title:               "vintage synth",
		Description:         "one careful owner",
		Type:                AuctionTypeEnglish,
		StartTime:           now,
		EndTime:             now.Add(time.Hour),
		MinimumBidIncrement: 100, // 0.01 scaled
		ExtensionTime:       300 * time.Second,
	}, now)
	assert.NoError(t, err)
	return id
}

// revealedHighest ends the auction, reveals it, and decrypts the
// now-public highest bid as an unprivileged observer.
func revealedHighest(t *testing.T, r *Registry, coproc *fhe.Coprocessor, id uint64, now time.Time) uint64 {
	t.Helper()
	assert.NoError(t, r.EndAuction(testSeller, id, now))
	assert.NoError(t, r.RevealResults(testSeller, id, now))

	view, err := r.Get(id, now)
	assert.NoError(t, err)

	v, err := coproc.Decrypt(view.HighestBidHandle, "some-observer")
	assert.NoError(t, err)
	return v
}
