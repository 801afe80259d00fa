package core

import (
	"fmt"
	"time"

	"github.com/haicereylio/fhevm-confidential-auction/fhe"
)

// PlaceBid runs the bid ingestion pipeline: import the caller's
// ciphertext, obliviously fold it into the running maximum, record the
// bidder's state, and apply the extension policy. The highest-bid update
// is constant-structure: the select executes whether or not this bid won,
// so a successful call leaks nothing about the outcome.
func (r *Registry) PlaceBid(caller string, id uint64, ct fhe.ExternalCiphertext, now time.Time) error {
	rec, err := r.record(id)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if !r.policy.CanBid(caller, rec) {
		return fmt.Errorf("%w: creator may not bid on own auction %d", ErrUnauthorized, id)
	}
	if !rec.biddable(now) {
		return fmt.Errorf("%w: auction %d status %s, window %s - %s",
			ErrAuctionNotActive, id, rec.Status,
			rec.StartTime.Format(time.RFC3339), rec.EndTime.Format(time.RFC3339))
	}

	imported, err := r.svc.ImportExternal(ct, caller)
	if err != nil {
		return fmt.Errorf("bid import failed: %w", err)
	}

	isHigher, err := r.svc.GreaterThan(imported, rec.EncryptedHighestBid)
	if err != nil {
		return fmt.Errorf("bid comparison failed: %w", err)
	}
	newHighest, err := r.svc.Select(isHigher, imported, rec.EncryptedHighestBid)
	if err != nil {
		return fmt.Errorf("bid selection failed: %w", err)
	}

	// The creator may read the running maximum; the bidder may read only
	// their own bid. Bidders never see each other's ciphertexts.
	if err := r.grantPair(newHighest, rec.Creator); err != nil {
		return err
	}
	if err := r.grantPair(imported, caller); err != nil {
		return err
	}

	if rec.Status == StatusPending {
		rec.Status = StatusActive
	}

	rec.EncryptedHighestBid = newHighest

	state := rec.bidder(caller)
	state.EncryptedBid = imported
	state.BidTimestamp = now
	if !state.HasBid {
		state.HasBid = true
		rec.bidders = append(rec.bidders, caller)
	}
	rec.TotalBids++

	newEnd, extended := rec.applyExtension(now)

	r.events.Emit(BidPlacedEvent{AuctionID: id, Bidder: caller, Timestamp: now})
	if extended {
		r.events.Emit(AuctionExtendedEvent{AuctionID: id, NewEndTime: newEnd})
	}

	return nil
}

// SetAutoBid stores an encrypted auto-bid ceiling for the caller. Unlike
// PlaceBid it never moves the highest bid and never flips a pending
// auction to active; it is pure bookkeeping for an external resolution
// process to act on. The ceiling is readable by its owner alone.
func (r *Registry) SetAutoBid(caller string, id uint64, ct fhe.ExternalCiphertext, now time.Time) error {
	rec, err := r.record(id)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if !r.policy.CanBid(caller, rec) {
		return fmt.Errorf("%w: creator may not set auto-bid on own auction %d", ErrUnauthorized, id)
	}
	if !rec.biddable(now) {
		return fmt.Errorf("%w: auction %d status %s", ErrAuctionNotActive, id, rec.Status)
	}

	imported, err := r.svc.ImportExternal(ct, caller)
	if err != nil {
		return fmt.Errorf("auto-bid import failed: %w", err)
	}
	if err := r.svc.GrantAccess(imported, caller); err != nil {
		return fmt.Errorf("failed to grant auto-bid access: %w", err)
	}

	state := rec.bidder(caller)
	state.EncryptedMaxAutoBid = imported
	state.HasAutoBid = true

	r.events.Emit(AutoBidSetEvent{AuctionID: id, Bidder: caller, Timestamp: now})
	return nil
}
