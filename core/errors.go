package core

import (
	"errors"

	"github.com/haicereylio/fhevm-confidential-auction/fhe"
)

var (
	// ErrNotFound is returned for an unknown auction id.
	ErrNotFound = errors.New("auction not found")

	// ErrUnauthorized is returned when a role or ownership check failed,
	// including the creator attempting to bid on their own auction.
	ErrUnauthorized = errors.New("caller not authorized")

	// ErrInvalidTimeWindow is returned when start/end ordering is wrong or
	// the end time is not in the future at creation.
	ErrInvalidTimeWindow = errors.New("invalid auction time window")

	// ErrInvalidIncrement is returned when the minimum bid increment is
	// not positive at creation.
	ErrInvalidIncrement = errors.New("minimum bid increment must be positive")

	// ErrAuctionNotActive is returned when the status or timing
	// precondition for bidding or auto-bid failed.
	ErrAuctionNotActive = errors.New("auction not active")

	// ErrCannotCancelWithBids is returned when cancellation is attempted
	// on an auction that has received at least one bid.
	ErrCannotCancelWithBids = errors.New("cannot cancel auction with bids")

	// ErrAuctionNotEnded is returned when reveal is attempted before the
	// auction is effectively ended.
	ErrAuctionNotEnded = errors.New("auction not ended")

	// ErrInvalidProof is the confidential-compute import failure, bubbled
	// unchanged so callers can distinguish it from engine-side rejections.
	ErrInvalidProof = fhe.ErrInvalidProof
)
