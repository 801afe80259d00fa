package core

import (
	"fmt"
	"time"
)

// RevealResults marks the highest bid, and the reserve when present,
// publicly decryptable. This is a monotonic one-way escalation: once
// public a handle cannot be resealed, and calling reveal again is a
// no-op. No plaintext is computed here; decryption happens client-side
// against the now-public handles.
func (r *Registry) RevealResults(caller string, id uint64, now time.Time) error {
	rec, err := r.record(id)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if !r.policy.CanManage(caller, rec) {
		return fmt.Errorf("%w: %s may not reveal auction %d", ErrUnauthorized, caller, id)
	}
	if rec.effectiveStatus(now) != StatusEnded {
		return fmt.Errorf("%w: auction %d has no results to reveal", ErrAuctionNotEnded, id)
	}

	if err := r.svc.MakePublic(rec.EncryptedHighestBid); err != nil {
		return fmt.Errorf("failed to publish highest bid: %w", err)
	}
	if rec.HasReservePrice {
		if err := r.svc.MakePublic(rec.EncryptedReservePrice); err != nil {
			return fmt.Errorf("failed to publish reserve price: %w", err)
		}
	}

	if !rec.Revealed {
		rec.Revealed = true
		r.events.Emit(ResultsRevealedEvent{AuctionID: id})
	}
	return nil
}
