package core

import (
	"fmt"
	"sync"
)

// AccessPolicy is the central authorization predicate consulted before
// every mutating operation. The owner is always implicitly an auctioneer;
// creators are derived per-record, not stored here.
type AccessPolicy struct {
	mu             sync.RWMutex
	owner          string
	auctioneers    map[string]struct{}
	platformFeeBps uint32
}

// NewAccessPolicy creates a policy with the given owner and initial
// auctioneer set.
func NewAccessPolicy(owner string, auctioneers []string) *AccessPolicy {
	set := make(map[string]struct{}, len(auctioneers))
	for _, a := range auctioneers {
		set[a] = struct{}{}
	}
	return &AccessPolicy{
		owner:       owner,
		auctioneers: set,
	}
}

// Owner returns the current system owner.
func (p *AccessPolicy) Owner() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.owner
}

// CanCreateAuction reports whether caller may create auctions.
func (p *AccessPolicy) CanCreateAuction(caller string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if caller == p.owner {
		return true
	}
	_, ok := p.auctioneers[caller]
	return ok
}

// CanManage reports whether caller may end, cancel, or reveal the given
// auction.
func (p *AccessPolicy) CanManage(caller string, rec *AuctionRecord) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return caller == p.owner || caller == rec.Creator
}

// CanBid reports whether caller may bid on the given auction. Any
// principal except the creator may bid.
func (p *AccessPolicy) CanBid(caller string, rec *AuctionRecord) bool {
	return caller != rec.Creator
}

// AddAuctioneer adds a principal to the auctioneer set. Owner only.
func (p *AccessPolicy) AddAuctioneer(caller, principal string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if caller != p.owner {
		return fmt.Errorf("%w: only owner may add auctioneers", ErrUnauthorized)
	}
	p.auctioneers[principal] = struct{}{}
	return nil
}

// RemoveAuctioneer removes a principal from the auctioneer set. Owner only.
func (p *AccessPolicy) RemoveAuctioneer(caller, principal string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if caller != p.owner {
		return fmt.Errorf("%w: only owner may remove auctioneers", ErrUnauthorized)
	}
	delete(p.auctioneers, principal)
	return nil
}

// SetPlatformFee updates the platform fee in basis points. Owner only.
func (p *AccessPolicy) SetPlatformFee(caller string, bps uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if caller != p.owner {
		return fmt.Errorf("%w: only owner may set platform fee", ErrUnauthorized)
	}
	p.platformFeeBps = bps
	return nil
}

// PlatformFee returns the platform fee in basis points.
func (p *AccessPolicy) PlatformFee() uint32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.platformFeeBps
}

// TransferOwnership moves ownership to a new principal. Owner only.
func (p *AccessPolicy) TransferOwnership(caller, newOwner string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if caller != p.owner {
		return fmt.Errorf("%w: only owner may transfer ownership", ErrUnauthorized)
	}
	p.owner = newOwner
	return nil
}
