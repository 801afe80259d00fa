package core

import (
	"sync"
	"time"

	"github.com/haicereylio/fhevm-confidential-auction/fhe"
)

// AuctionType categorizes an auction for display and tooling. The bidding
// algorithm is uniform across types; only the reserve flag changes behavior.
type AuctionType string

const (
	AuctionTypeEnglish   AuctionType = "english"
	AuctionTypeDutch     AuctionType = "dutch"
	AuctionTypeSealedBid AuctionType = "sealed_bid"
	AuctionTypeReserve   AuctionType = "reserve"
)

// Valid reports whether t is one of the known auction types.
func (t AuctionType) Valid() bool {
	switch t {
	case AuctionTypeEnglish, AuctionTypeDutch, AuctionTypeSealedBid, AuctionTypeReserve:
		return true
	}
	return false
}

// AuctionStatus is the stored lifecycle state of an auction. Exactly one
// holds at any time. An auction whose end time has passed without an
// explicit terminating call keeps its last stored status; read paths must
// use EffectiveStatus instead.
type AuctionStatus string

const (
	StatusPending   AuctionStatus = "pending"
	StatusActive    AuctionStatus = "active"
	StatusExtended  AuctionStatus = "extended"
	StatusEnded     AuctionStatus = "ended"
	StatusCancelled AuctionStatus = "cancelled"
)

// BidderState holds the per-bidder encrypted bookkeeping for one auction.
type BidderState struct {
	EncryptedBid        fhe.Handle
	HasBid              bool
	EncryptedMaxAutoBid fhe.Handle
	HasAutoBid          bool
	BidTimestamp        time.Time
}

// AuctionRecord is the per-auction state owned by the Registry. Metadata
// fields are immutable after creation; EndTime moves only through the
// extension policy.
type AuctionRecord struct {
	mu sync.Mutex

	ID           uint64
	Title        string
	Description  string
	ItemImageURL string
	Creator      string
	Type         AuctionType

	StartTime           time.Time
	EndTime             time.Time
	MinimumBidIncrement uint64 // scaled amount, informational minimum
	ExtensionTime       time.Duration
	HasReservePrice     bool

	Status    AuctionStatus
	TotalBids uint64

	EncryptedHighestBid   fhe.Handle
	EncryptedReservePrice fhe.Handle // set once at creation iff HasReservePrice

	// CurrentHighestBidder is deliberately never maintained. The highest
	// bid ciphertext is updated through an oblivious select, and updating
	// a plaintext identity in lockstep would reveal the comparison
	// outcome. The field is retained so the gap stays visible to readers
	// of the projection rather than silently dropped.
	CurrentHighestBidder string

	Revealed bool

	bidders     []string // first-bid insertion order, no duplicates
	bidderState map[string]*BidderState
}

// AuctionView is the read-only public projection of an AuctionRecord.
// Ciphertext handles appear only as opaque references.
type AuctionView struct {
	ID                   uint64        `json:"id"`
	Title                string        `json:"title"`
	Description          string        `json:"description"`
	ItemImageURL         string        `json:"item_image_url,omitempty"`
	Creator              string        `json:"creator"`
	Type                 AuctionType   `json:"auction_type"`
	StartTime            time.Time     `json:"start_time"`
	EndTime              time.Time     `json:"end_time"`
	MinimumBidIncrement  uint64        `json:"minimum_bid_increment"`
	ExtensionTime        time.Duration `json:"extension_time"`
	HasReservePrice      bool          `json:"has_reserve_price"`
	Status               AuctionStatus `json:"status"`
	EffectiveStatus      AuctionStatus `json:"effective_status"`
	TotalBids            uint64        `json:"total_bids"`
	BidderCount          int           `json:"bidder_count"`
	Bidders              []string      `json:"bidders"`
	CurrentHighestBidder string        `json:"current_highest_bidder,omitempty"`
	HighestBidHandle     fhe.Handle    `json:"highest_bid_handle"`
	ReserveHandle        fhe.Handle    `json:"reserve_handle,omitempty"`
	Revealed             bool          `json:"revealed"`
}

// view builds the public projection. Caller must hold rec.mu.
func (rec *AuctionRecord) view(now time.Time) AuctionView {
	bidders := make([]string, len(rec.bidders))
	copy(bidders, rec.bidders)

	return AuctionView{
		ID:                   rec.ID,
		Title:                rec.Title,
		Description:          rec.Description,
		ItemImageURL:         rec.ItemImageURL,
		Creator:              rec.Creator,
		Type:                 rec.Type,
		StartTime:            rec.StartTime,
		EndTime:              rec.EndTime,
		MinimumBidIncrement:  rec.MinimumBidIncrement,
		ExtensionTime:        rec.ExtensionTime,
		HasReservePrice:      rec.HasReservePrice,
		Status:               rec.Status,
		EffectiveStatus:      rec.effectiveStatus(now),
		TotalBids:            rec.TotalBids,
		BidderCount:          len(rec.bidders),
		Bidders:              bidders,
		CurrentHighestBidder: rec.CurrentHighestBidder,
		HighestBidHandle:     rec.EncryptedHighestBid,
		ReserveHandle:        rec.EncryptedReservePrice,
		Revealed:             rec.Revealed,
	}
}

// bidder returns the bidder state for principal, creating it on first use.
// Caller must hold rec.mu.
func (rec *AuctionRecord) bidder(principal string) *BidderState {
	state, ok := rec.bidderState[principal]
	if !ok {
		state = &BidderState{}
		rec.bidderState[principal] = state
	}
	return state
}
