package core

import (
	"log"
	"time"
)

// Events carry only public information. Bid events in particular never
// include an amount.

type AuctionCreatedEvent struct {
	AuctionID uint64
	Title     string
	Creator   string
	Type      AuctionType
	StartTime time.Time
	EndTime   time.Time
}

type BidPlacedEvent struct {
	AuctionID uint64
	Bidder    string
	Timestamp time.Time
}

type AutoBidSetEvent struct {
	AuctionID uint64
	Bidder    string
	Timestamp time.Time
}

type AuctionExtendedEvent struct {
	AuctionID  uint64
	NewEndTime time.Time
}

type AuctionEndedEvent struct {
	AuctionID uint64
	// WinningBid is a placeholder zero at termination time; the real
	// amount only becomes available after reveal.
	WinningBid uint64
}

type AuctionCancelledEvent struct {
	AuctionID uint64
}

type ResultsRevealedEvent struct {
	AuctionID uint64
}

// EventSink receives engine events. Delivery is synchronous and in-order
// with the mutation that produced the event.
type EventSink interface {
	Emit(event any)
}

// LogSink writes events to the process log.
type LogSink struct{}

func (LogSink) Emit(event any) {
	switch e := event.(type) {
	case AuctionCreatedEvent:
		log.Printf("INFO: Auction %d created: %q by %s (%s, %s - %s)",
			e.AuctionID, e.Title, e.Creator, e.Type,
			e.StartTime.Format(time.RFC3339), e.EndTime.Format(time.RFC3339))
	case BidPlacedEvent:
		log.Printf("INFO: Bid placed on auction %d by %s at %s",
			e.AuctionID, e.Bidder, e.Timestamp.Format(time.RFC3339))
	case AutoBidSetEvent:
		log.Printf("INFO: Auto-bid ceiling set on auction %d by %s",
			e.AuctionID, e.Bidder)
	case AuctionExtendedEvent:
		log.Printf("INFO: Auction %d extended, new end time %s",
			e.AuctionID, e.NewEndTime.Format(time.RFC3339))
	case AuctionEndedEvent:
		log.Printf("INFO: Auction %d ended", e.AuctionID)
	case AuctionCancelledEvent:
		log.Printf("INFO: Auction %d cancelled", e.AuctionID)
	case ResultsRevealedEvent:
		log.Printf("INFO: Auction %d results revealed", e.AuctionID)
	default:
		log.Printf("INFO: Event: %+v", event)
	}
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) Emit(any) {}
