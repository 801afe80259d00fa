package core

import (
	"fmt"
	"time"
)

// ExtensionThreshold is the remaining-time window inside which an
// accepted bid triggers the anti-sniping extension.
const ExtensionThreshold = 300 * time.Second

// effectiveStatus is the canonical read-side status: a pending, active,
// or extended auction whose end time has passed reads as ended even
// though no terminating call has been made. The stored field records the
// last explicit transition only. Caller must hold rec.mu.
func (rec *AuctionRecord) effectiveStatus(now time.Time) AuctionStatus {
	switch rec.Status {
	case StatusEnded, StatusCancelled:
		return rec.Status
	}
	if now.After(rec.EndTime) {
		return StatusEnded
	}
	return rec.Status
}

// biddable reports whether a bid may be placed right now. Caller must
// hold rec.mu.
func (rec *AuctionRecord) biddable(now time.Time) bool {
	switch rec.Status {
	case StatusPending, StatusActive, StatusExtended:
	default:
		return false
	}
	return !now.Before(rec.StartTime) && !now.After(rec.EndTime)
}

// applyExtension pushes the end time out when a bid lands inside the
// extension threshold. Returns the new end time and whether an extension
// happened. Extensions can stack without cap. Caller must hold rec.mu.
func (rec *AuctionRecord) applyExtension(now time.Time) (time.Time, bool) {
	if rec.ExtensionTime <= 0 {
		return rec.EndTime, false
	}
	if rec.EndTime.Sub(now) > ExtensionThreshold {
		return rec.EndTime, false
	}
	rec.EndTime = rec.EndTime.Add(rec.ExtensionTime)
	rec.Status = StatusExtended
	return rec.EndTime, true
}

// EndAuction terminates an active or extended auction. The emitted event
// carries a placeholder zero winning bid; the real amount only exists
// after reveal.
func (r *Registry) EndAuction(caller string, id uint64, now time.Time) error {
	rec, err := r.record(id)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if !r.policy.CanManage(caller, rec) {
		return fmt.Errorf("%w: %s may not end auction %d", ErrUnauthorized, caller, id)
	}
	if rec.Status != StatusActive && rec.Status != StatusExtended {
		return fmt.Errorf("%w: status %s", ErrAuctionNotActive, rec.Status)
	}

	rec.Status = StatusEnded
	r.events.Emit(AuctionEndedEvent{AuctionID: id})
	return nil
}

// CancelAuction cancels an auction that has never received a bid. An
// auction with bids can only be ended.
func (r *Registry) CancelAuction(caller string, id uint64, now time.Time) error {
	rec, err := r.record(id)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if !r.policy.CanManage(caller, rec) {
		return fmt.Errorf("%w: %s may not cancel auction %d", ErrUnauthorized, caller, id)
	}
	if rec.TotalBids > 0 {
		return fmt.Errorf("%w: auction %d has %d bids", ErrCannotCancelWithBids, id, rec.TotalBids)
	}
	if rec.Status == StatusEnded {
		return fmt.Errorf("%w: auction %d already ended", ErrAuctionNotActive, id)
	}

	rec.Status = StatusCancelled
	r.events.Emit(AuctionCancelledEvent{AuctionID: id})
	return nil
}
