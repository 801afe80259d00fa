package engineapi

import (
	"errors"

	"github.com/haicereylio/fhevm-confidential-auction/core"
	"github.com/haicereylio/fhevm-confidential-auction/fhe"
)

// Stable error codes carried on the wire, one per failure kind. The
// engine never collapses failures into a generic catch-all; "internal"
// is reserved for faults of the host itself.
const (
	CodeNotFound             = "not_found"
	CodeUnauthorized         = "unauthorized"
	CodeInvalidTimeWindow    = "invalid_time_window"
	CodeInvalidIncrement     = "invalid_increment"
	CodeAuctionNotActive     = "auction_not_active"
	CodeCannotCancelWithBids = "cannot_cancel_with_bids"
	CodeAuctionNotEnded      = "auction_not_ended"
	CodeInvalidProof         = "invalid_proof"
	CodeAccessDenied         = "access_denied"
	CodeInternal             = "internal"
)

// CodeForError maps an engine error to its wire code.
func CodeForError(err error) string {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, core.ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, core.ErrInvalidTimeWindow):
		return CodeInvalidTimeWindow
	case errors.Is(err, core.ErrInvalidIncrement):
		return CodeInvalidIncrement
	case errors.Is(err, core.ErrAuctionNotActive):
		return CodeAuctionNotActive
	case errors.Is(err, core.ErrCannotCancelWithBids):
		return CodeCannotCancelWithBids
	case errors.Is(err, core.ErrAuctionNotEnded):
		return CodeAuctionNotEnded
	case errors.Is(err, fhe.ErrInvalidProof):
		return CodeInvalidProof
	case errors.Is(err, fhe.ErrAccessDenied):
		return CodeAccessDenied
	default:
		return CodeInternal
	}
}
