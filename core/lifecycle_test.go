package core

import (
	"errors"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestExtension_InsideThreshold(t *testing.T) {
	r, coproc := newTestEngine(t)
	now := time.Now()
	id := openAuction(t, r, now)

	view, err := r.Get(id, now)
	assert.NoError(t, err)
	originalEnd := view.EndTime

	// A bid with 200s remaining extends by exactly the extension time.
	late := originalEnd.Add(-200 * time.Second)
	assert.NoError(t, r.PlaceBid("alice", id, encryptFor(t, coproc, 10000, "alice"), late))

	view, err = r.Get(id, late)
	assert.NoError(t, err)
	check.Equal(t, originalEnd.Add(300*time.Second), view.EndTime)
	check.Equal(t, StatusExtended, view.Status)
}

func TestExtension_OutsideThreshold(t *testing.T) {
	r, coproc := newTestEngine(t)
	now := time.Now()
	id := openAuction(t, r, now)

	view, err := r.Get(id, now)
	assert.NoError(t, err)
	originalEnd := view.EndTime

	// More than 300s remaining: end time never moves.
	early := originalEnd.Add(-10 * time.Minute)
	assert.NoError(t, r.PlaceBid("alice", id, encryptFor(t, coproc, 10000, "alice"), early))

	view, err = r.Get(id, early)
	assert.NoError(t, err)
	check.Equal(t, originalEnd, view.EndTime)
	check.Equal(t, StatusActive, view.Status)
}

func TestExtension_Stacks(t *testing.T) {
	r, coproc := newTestEngine(t)
	now := time.Now()
	id := openAuction(t, r, now)

	view, err := r.Get(id, now)
	assert.NoError(t, err)
	end0 := view.EndTime

	// Each qualifying bid pushes the end out again; there is no cap.
	bid1 := end0.Add(-100 * time.Second)
	assert.NoError(t, r.PlaceBid("alice", id, encryptFor(t, coproc, 10000, "alice"), bid1))

	view, err = r.Get(id, bid1)
	assert.NoError(t, err)
	end1 := view.EndTime
	check.Equal(t, end0.Add(300*time.Second), end1)

	bid2 := end1.Add(-100 * time.Second)
	assert.NoError(t, r.PlaceBid("bob", id, encryptFor(t, coproc, 11000, "bob"), bid2))

	view, err = r.Get(id, bid2)
	assert.NoError(t, err)
	check.Equal(t, end1.Add(300*time.Second), view.EndTime)
	check.Equal(t, StatusExtended, view.Status)
}

func TestExtension_DisabledWhenZero(t *testing.T) {
	r, coproc := newTestEngine(t)
	now := time.Now()

	id, err := r.CreateAuction(testSeller, CreateParams{
		Title:               "no extension",
		Type:                AuctionTypeEnglish,
		StartTime:           now,
		EndTime:             now.Add(time.Hour),
		MinimumBidIncrement: 100,
		ExtensionTime:       0,
	}, now)
	assert.NoError(t, err)

	late := now.Add(time.Hour - 10*time.Second)
	assert.NoError(t, r.PlaceBid("alice", id, encryptFor(t, coproc, 10000, "alice"), late))

	view, err := r.Get(id, late)
	assert.NoError(t, err)
	check.Equal(t, now.Add(time.Hour), view.EndTime)
	check.Equal(t, StatusActive, view.Status)
}

func TestEndAuction(t *testing.T) {
	r, coproc := newTestEngine(t)
	now := time.Now()
	id := openAuction(t, r, now)

	// Pending auctions cannot be ended.
	err := r.EndAuction(testSeller, id, now)
	check.True(t, errors.Is(err, ErrAuctionNotActive))

	assert.NoError(t, r.PlaceBid("alice", id, encryptFor(t, coproc, 10000, "alice"), now))

	// Random principals cannot end the auction.
	err = r.EndAuction("alice", id, now)
	check.True(t, errors.Is(err, ErrUnauthorized))

	// The creator can; so can the owner.
	assert.NoError(t, r.EndAuction(testSeller, id, now))

	view, err := r.Get(id, now)
	assert.NoError(t, err)
	check.Equal(t, StatusEnded, view.Status)

	// Ending twice fails: the auction is no longer active.
	err = r.EndAuction(testSeller, id, now)
	check.True(t, errors.Is(err, ErrAuctionNotActive))
}

func TestEndAuction_OwnerMayManage(t *testing.T) {
	r, coproc := newTestEngine(t)
	now := time.Now()
	id := openAuction(t, r, now)

	assert.NoError(t, r.PlaceBid("alice", id, encryptFor(t, coproc, 10000, "alice"), now))
	assert.NoError(t, r.EndAuction(testOwner, id, now))
}

func TestCancelAuction_OnlyWithoutBids(t *testing.T) {
	r, coproc := newTestEngine(t)
	now := time.Now()

	// No bids: cancellation works.
	first := openAuction(t, r, now)
	assert.NoError(t, r.CancelAuction(testSeller, first, now))

	view, err := r.Get(first, now)
	assert.NoError(t, err)
	check.Equal(t, StatusCancelled, view.Status)

	// One bid is enough to block cancellation forever.
	second := openAuction(t, r, now)
	assert.NoError(t, r.PlaceBid("alice", second, encryptFor(t, coproc, 10000, "alice"), now))

	err = r.CancelAuction(testSeller, second, now)
	check.True(t, errors.Is(err, ErrCannotCancelWithBids))

	err = r.CancelAuction(testOwner, second, now)
	check.True(t, errors.Is(err, ErrCannotCancelWithBids))
}

func TestCancelAuction_Authorization(t *testing.T) {
	r, _ := newTestEngine(t)
	now := time.Now()
	id := openAuction(t, r, now)

	err := r.CancelAuction("stranger", id, now)
	check.True(t, errors.Is(err, ErrUnauthorized))
}

func TestCancelledAuction_RejectsBids(t *testing.T) {
	r, coproc := newTestEngine(t)
	now := time.Now()
	id := openAuction(t, r, now)

	assert.NoError(t, r.CancelAuction(testSeller, id, now))

	err := r.PlaceBid("alice", id, encryptFor(t, coproc, 10000, "alice"), now)
	check.True(t, errors.Is(err, ErrAuctionNotActive))
}

func TestEffectiveStatus_ClockExpiry(t *testing.T) {
	r, coproc := newTestEngine(t)
	now := time.Now()
	id := openAuction(t, r, now)

	assert.NoError(t, r.PlaceBid("alice", id, encryptFor(t, coproc, 10000, "alice"), now))

	// Past the end time with no terminating call: the stored status
	// still says active, the effective status reads ended.
	after := now.Add(2 * time.Hour)
	view, err := r.Get(id, after)
	assert.NoError(t, err)
	check.Equal(t, StatusActive, view.Status)
	check.Equal(t, StatusEnded, view.EffectiveStatus)
}
