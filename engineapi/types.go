// Package engineapi defines the JSON wire contract between the engine
// host and its callers, plus the reveal attestation document types shared
// with off-host validation.
package engineapi

import (
	"time"

	"github.com/haicereylio/fhevm-confidential-auction/core"
	"github.com/haicereylio/fhevm-confidential-auction/fhe"
)

// Request type values understood by the engine host.
const (
	TypePing          = "ping"
	TypeServiceKey    = "service_key"
	TypeCreateAuction = "create_auction"
	TypeGetAuction    = "get_auction"
	TypeAuctionCount  = "auction_count"
	TypePlaceBid      = "place_bid"
	TypeSetAutoBid    = "set_auto_bid"
	TypeEndAuction    = "end_auction"
	TypeCancelAuction = "cancel_auction"
	TypeRevealResults = "reveal_results"
)

// BaseRequest is the envelope every request shares. Caller identity is
// supplied by the surrounding ledger/identity layer and trusted as given.
type BaseRequest struct {
	Type   string `json:"type"`
	Caller string `json:"caller"`
}

// CreateAuctionRequest creates a new auction. Times are unix seconds;
// the increment is a display amount string parsed with the engine's
// monetary precision.
type CreateAuctionRequest struct {
	BaseRequest
	Title               string                  `json:"title"`
	Description         string                  `json:"description"`
	ItemImageURL        string                  `json:"item_image_url,omitempty"`
	AuctionType         core.AuctionType        `json:"auction_type"`
	StartTime           int64                   `json:"start_time"`
	EndTime             int64                   `json:"end_time"`
	MinimumBidIncrement string                  `json:"minimum_bid_increment"`
	ExtensionSeconds    int64                   `json:"extension_seconds"`
	HasReservePrice     bool                    `json:"has_reserve_price"`
	EncryptedReserve    *fhe.ExternalCiphertext `json:"encrypted_reserve,omitempty"`
}

// AuctionIDRequest addresses one auction (get, end, cancel, reveal).
type AuctionIDRequest struct {
	BaseRequest
	AuctionID uint64 `json:"auction_id"`
}

// BidRequest submits an encrypted bid amount or auto-bid ceiling.
type BidRequest struct {
	BaseRequest
	AuctionID  uint64                 `json:"auction_id"`
	Ciphertext fhe.ExternalCiphertext `json:"ciphertext"`
}

// EngineResponse is the uniform response envelope. ErrorCode is a stable
// string per failure kind so callers can render precise messages.
type EngineResponse struct {
	Type      string `json:"type"`
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`

	AuctionID *uint64           `json:"auction_id,omitempty"`
	Count     *uint64           `json:"count,omitempty"`
	Auction   *core.AuctionView `json:"auction,omitempty"`
	PublicKey string            `json:"public_key,omitempty"` // PEM, service_key responses

	Reveal *RevealResponse `json:"reveal,omitempty"`
}

// RevealResponse carries the decrypted results of a revealed auction
// together with the host's attestation over them.
type RevealResponse struct {
	AuctionID             uint64                `json:"auction_id"`
	WinningAmount         uint64                `json:"winning_amount"` // scaled
	WinningAmountDisplay  string                `json:"winning_amount_display"`
	HasReserve            bool                  `json:"has_reserve"`
	ReserveMet            *bool                 `json:"reserve_met,omitempty"`
	AttestationCOSEBase64 AttestationCOSEBase64 `json:"attestation_cose_base64,omitempty"`
}

// RevealUserData is the payload embedded in a reveal attestation. It is
// what off-host validation checks against expectations.
type RevealUserData struct {
	AuctionID        uint64     `json:"auction_id"`
	WinningAmount    uint64     `json:"winning_amount"`
	HasReserve       bool       `json:"has_reserve"`
	ReserveMet       *bool      `json:"reserve_met,omitempty"`
	HighestBidHandle fhe.Handle `json:"highest_bid_handle"`
	ReserveHandle    fhe.Handle `json:"reserve_handle,omitempty"`
	TotalBids        uint64     `json:"total_bids"`
	Timestamp        time.Time  `json:"timestamp"`
	Nonce            string     `json:"nonce"`
}
