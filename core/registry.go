package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/haicereylio/fhevm-confidential-auction/fhe"
)

// EnginePrincipal is the identity the engine itself holds in the
// confidential-compute service's access lists. Every ciphertext the
// engine tracks is readable by this principal.
const EnginePrincipal = "auction-engine"

// Registry owns the append-only sequence of auction records and the
// identifier counter. All engine operations go through it; the registry
// is passed explicitly rather than held in a global.
type Registry struct {
	mu      sync.Mutex
	policy  *AccessPolicy
	svc     fhe.Service
	events  EventSink
	records []*AuctionRecord
}

// NewRegistry creates a Registry backed by the given confidential-compute
// service. A nil sink discards events.
func NewRegistry(policy *AccessPolicy, svc fhe.Service, events EventSink) *Registry {
	if events == nil {
		events = NopSink{}
	}
	return &Registry{
		policy: policy,
		svc:    svc,
		events: events,
	}
}

// CreateParams are the creation inputs for a new auction.
type CreateParams struct {
	Title               string
	Description         string
	ItemImageURL        string
	Type                AuctionType
	StartTime           time.Time
	EndTime             time.Time
	MinimumBidIncrement uint64 // scaled amount
	ExtensionTime       time.Duration
	HasReservePrice     bool
	EncryptedReserve    *fhe.ExternalCiphertext
}

// CreateAuction allocates the next sequential id and stores a new pending
// auction. The highest-bid ciphertext starts at an encrypted zero readable
// by the engine and the creator; a reserve ciphertext, when present, is
// imported with the same grants.
func (r *Registry) CreateAuction(caller string, p CreateParams, now time.Time) (uint64, error) {
	if !r.policy.CanCreateAuction(caller) {
		return 0, fmt.Errorf("%w: %s may not create auctions", ErrUnauthorized, caller)
	}
	if !p.Type.Valid() {
		return 0, fmt.Errorf("invalid auction type: %s", p.Type)
	}
	if !p.StartTime.Before(p.EndTime) {
		return 0, fmt.Errorf("%w: start %s not before end %s", ErrInvalidTimeWindow, p.StartTime, p.EndTime)
	}
	if !p.EndTime.After(now) {
		return 0, fmt.Errorf("%w: end time %s not in the future", ErrInvalidTimeWindow, p.EndTime)
	}
	if p.MinimumBidIncrement == 0 {
		return 0, ErrInvalidIncrement
	}
	if p.HasReservePrice && p.EncryptedReserve == nil {
		return 0, fmt.Errorf("%w: reserve auction without reserve ciphertext", ErrInvalidProof)
	}

	highest, err := r.svc.EncryptLiteral(0)
	if err != nil {
		return 0, fmt.Errorf("failed to initialize highest bid: %w", err)
	}
	if err := r.grantPair(highest, caller); err != nil {
		return 0, err
	}

	var reserve fhe.Handle
	if p.HasReservePrice {
		reserve, err = r.svc.ImportExternal(*p.EncryptedReserve, caller)
		if err != nil {
			return 0, fmt.Errorf("failed to import reserve price: %w", err)
		}
		if err := r.grantPair(reserve, caller); err != nil {
			return 0, err
		}
	}

	r.mu.Lock()
	id := uint64(len(r.records))
	rec := &AuctionRecord{
		ID:                    id,
		Title:                 p.Title,
		Description:           p.Description,
		ItemImageURL:          p.ItemImageURL,
		Creator:               caller,
		Type:                  p.Type,
		StartTime:             p.StartTime,
		EndTime:               p.EndTime,
		MinimumBidIncrement:   p.MinimumBidIncrement,
		ExtensionTime:         p.ExtensionTime,
		HasReservePrice:       p.HasReservePrice,
		Status:                StatusPending,
		EncryptedHighestBid:   highest,
		EncryptedReservePrice: reserve,
		bidderState:           make(map[string]*BidderState),
	}
	r.records = append(r.records, rec)
	r.mu.Unlock()

	r.events.Emit(AuctionCreatedEvent{
		AuctionID: id,
		Title:     p.Title,
		Creator:   caller,
		Type:      p.Type,
		StartTime: p.StartTime,
		EndTime:   p.EndTime,
	})

	return id, nil
}

// grantPair grants the engine and one principal read access on h.
func (r *Registry) grantPair(h fhe.Handle, principal string) error {
	if err := r.svc.GrantAccess(h, EnginePrincipal); err != nil {
		return fmt.Errorf("failed to grant engine access: %w", err)
	}
	if err := r.svc.GrantAccess(h, principal); err != nil {
		return fmt.Errorf("failed to grant access for %s: %w", principal, err)
	}
	return nil
}

// Get returns the public projection of an auction.
func (r *Registry) Get(id uint64, now time.Time) (AuctionView, error) {
	rec, err := r.record(id)
	if err != nil {
		return AuctionView{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.view(now), nil
}

// Count returns the number of auctions ever created.
func (r *Registry) Count() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint64(len(r.records))
}

// BidderOf returns the per-bidder state for principal on an auction.
// Principals only learn their own handles; the handles themselves stay
// opaque without a decrypt grant.
func (r *Registry) BidderOf(id uint64, principal string) (BidderState, error) {
	rec, err := r.record(id)
	if err != nil {
		return BidderState{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	state, ok := rec.bidderState[principal]
	if !ok {
		return BidderState{}, nil
	}
	return *state, nil
}

func (r *Registry) record(id uint64) (*AuctionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id >= uint64(len(r.records)) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return r.records[id], nil
}
