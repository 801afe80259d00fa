package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/haicereylio/fhevm-confidential-auction/core"
	"github.com/haicereylio/fhevm-confidential-auction/engineapi"
	"github.com/haicereylio/fhevm-confidential-auction/fhe"
	"github.com/haicereylio/fhevm-confidential-auction/validation"
)

// newTestServer wires a server the way Start does, minus the vsock
// listener and environment lookups.
func newTestServer(t *testing.T) *EngineServer {
	t.Helper()

	coproc, err := fhe.NewCoprocessor()
	assert.NoError(t, err)

	attester, err := newLocalAttester()
	assert.NoError(t, err)

	policy := core.NewAccessPolicy("owner", []string{"seller"})
	return &EngineServer{
		port:     5000,
		registry: core.NewRegistry(policy, coproc, core.NopSink{}),
		coproc:   coproc,
		attester: attester,
	}
}

// send marshals a request, runs it through dispatch, and decodes the
// standard response envelope.
func send(t *testing.T, s *EngineServer, req any) engineapi.EngineResponse {
	t.Helper()

	raw, err := json.Marshal(req)
	assert.NoError(t, err)

	resp, ok := s.dispatch(raw).(engineapi.EngineResponse)
	assert.True(t, ok)
	return resp
}

func encryptBid(t *testing.T, s *EngineServer, amount uint64, sender string) fhe.ExternalCiphertext {
	t.Helper()

	keyResp := send(t, s, engineapi.BaseRequest{Type: engineapi.TypeServiceKey})
	assert.True(t, keyResp.Success)

	pub, err := fhe.ParsePublicKeyPEM(keyResp.PublicKey)
	assert.NoError(t, err)

	ct, err := fhe.EncryptAmount(amount, sender, pub)
	assert.NoError(t, err)
	return ct
}

func TestDispatch_Ping(t *testing.T) {
	s := newTestServer(t)

	raw, err := json.Marshal(engineapi.BaseRequest{Type: engineapi.TypePing})
	assert.NoError(t, err)

	resp, ok := s.dispatch(raw).(map[string]any)
	assert.True(t, ok)
	check.Equal(t, "pong", resp["type"])
}

func TestDispatch_UnknownType(t *testing.T) {
	s := newTestServer(t)

	resp := send(t, s, engineapi.BaseRequest{Type: "frobnicate"})
	check.False(t, resp.Success)
}

func TestDispatch_MalformedJSON(t *testing.T) {
	s := newTestServer(t)

	resp, ok := s.dispatch([]byte("{not json")).(engineapi.EngineResponse)
	assert.True(t, ok)
	check.False(t, resp.Success)
}

func TestDispatch_FullAuctionScenario(t *testing.T) {
	s := newTestServer(t)
	start := time.Now()

	// Create.
	createResp := send(t, s, engineapi.CreateAuctionRequest{
		BaseRequest:         engineapi.BaseRequest{Type: engineapi.TypeCreateAuction, Caller: "seller"},
		Title:               "vintage synth",
		AuctionType:         core.AuctionTypeEnglish,
		StartTime:           start.Unix(),
		EndTime:             start.Add(time.Hour).Unix(),
		MinimumBidIncrement: "0.01",
		ExtensionSeconds:    300,
	})
	assert.True(t, createResp.Success)
	assert.NotNil(t, createResp.AuctionID)
	id := *createResp.AuctionID

	countResp := send(t, s, engineapi.BaseRequest{Type: engineapi.TypeAuctionCount})
	assert.True(t, countResp.Success)
	check.Equal(t, uint64(1), *countResp.Count)

	// Two bids, highest of 1.5 should win.
	bidResp := send(t, s, engineapi.BidRequest{
		BaseRequest: engineapi.BaseRequest{Type: engineapi.TypePlaceBid, Caller: "alice"},
		AuctionID:   id,
		Ciphertext:  encryptBid(t, s, 15000, "alice"),
	})
	assert.True(t, bidResp.Success)

	bidResp = send(t, s, engineapi.BidRequest{
		BaseRequest: engineapi.BaseRequest{Type: engineapi.TypePlaceBid, Caller: "bob"},
		AuctionID:   id,
		Ciphertext:  encryptBid(t, s, 12000, "bob"),
	})
	assert.True(t, bidResp.Success)

	getResp := send(t, s, engineapi.AuctionIDRequest{
		BaseRequest: engineapi.BaseRequest{Type: engineapi.TypeGetAuction},
		AuctionID:   id,
	})
	assert.True(t, getResp.Success)
	assert.NotNil(t, getResp.Auction)
	check.Equal(t, uint64(2), getResp.Auction.TotalBids)
	check.Equal(t, core.StatusActive, getResp.Auction.Status)

	// End and reveal.
	endResp := send(t, s, engineapi.AuctionIDRequest{
		BaseRequest: engineapi.BaseRequest{Type: engineapi.TypeEndAuction, Caller: "seller"},
		AuctionID:   id,
	})
	assert.True(t, endResp.Success)

	revealResp := send(t, s, engineapi.AuctionIDRequest{
		BaseRequest: engineapi.BaseRequest{Type: engineapi.TypeRevealResults, Caller: "seller"},
		AuctionID:   id,
	})
	assert.True(t, revealResp.Success)
	assert.NotNil(t, revealResp.Reveal)
	check.Equal(t, uint64(15000), revealResp.Reveal.WinningAmount)
	check.Equal(t, "1.5", revealResp.Reveal.WinningAmountDisplay)
	check.False(t, revealResp.Reveal.HasReserve)

	// The reveal ships with an attestation that validates end to end.
	assert.NotEqual(t, engineapi.AttestationCOSEBase64(""), revealResp.Reveal.AttestationCOSEBase64)
	expected := revealResp.Reveal.WinningAmount
	result, err := validation.ValidateRevealAttestation(&validation.RevealValidationInput{
		AttestationCOSEBase64: revealResp.Reveal.AttestationCOSEBase64,
		AuctionID:             id,
		ExpectedWinningAmount: &expected,
		MaxAge:                time.Minute,
		VerifySignature:       true,
	}, time.Now())
	assert.NoError(t, err)
	check.True(t, result.IsValid())
}

func TestDispatch_ReserveAuctionReveal(t *testing.T) {
	s := newTestServer(t)
	start := time.Now()

	reserve := encryptBid(t, s, 11000, "seller")
	createResp := send(t, s, engineapi.CreateAuctionRequest{
		BaseRequest:         engineapi.BaseRequest{Type: engineapi.TypeCreateAuction, Caller: "seller"},
		Title:               "reserved lot",
		AuctionType:         core.AuctionTypeReserve,
		StartTime:           start.Unix(),
		EndTime:             start.Add(time.Hour).Unix(),
		MinimumBidIncrement: "0.01",
		HasReservePrice:     true,
		EncryptedReserve:    &reserve,
	})
	assert.True(t, createResp.Success)
	id := *createResp.AuctionID

	bidResp := send(t, s, engineapi.BidRequest{
		BaseRequest: engineapi.BaseRequest{Type: engineapi.TypePlaceBid, Caller: "alice"},
		AuctionID:   id,
		Ciphertext:  encryptBid(t, s, 12000, "alice"),
	})
	assert.True(t, bidResp.Success)

	endResp := send(t, s, engineapi.AuctionIDRequest{
		BaseRequest: engineapi.BaseRequest{Type: engineapi.TypeEndAuction, Caller: "seller"},
		AuctionID:   id,
	})
	assert.True(t, endResp.Success)

	revealResp := send(t, s, engineapi.AuctionIDRequest{
		BaseRequest: engineapi.BaseRequest{Type: engineapi.TypeRevealResults, Caller: "seller"},
		AuctionID:   id,
	})
	assert.True(t, revealResp.Success)
	assert.NotNil(t, revealResp.Reveal)
	check.True(t, revealResp.Reveal.HasReserve)
	assert.NotNil(t, revealResp.Reveal.ReserveMet)
	check.True(t, *revealResp.Reveal.ReserveMet)
}

func TestDispatch_ErrorCodes(t *testing.T) {
	s := newTestServer(t)
	start := time.Now()

	// Unknown auction.
	resp := send(t, s, engineapi.AuctionIDRequest{
		BaseRequest: engineapi.BaseRequest{Type: engineapi.TypeGetAuction},
		AuctionID:   99,
	})
	check.False(t, resp.Success)
	check.Equal(t, engineapi.CodeNotFound, resp.ErrorCode)

	// Unauthorized creator.
	resp = send(t, s, engineapi.CreateAuctionRequest{
		BaseRequest:         engineapi.BaseRequest{Type: engineapi.TypeCreateAuction, Caller: "stranger"},
		Title:               "nope",
		AuctionType:         core.AuctionTypeEnglish,
		StartTime:           start.Unix(),
		EndTime:             start.Add(time.Hour).Unix(),
		MinimumBidIncrement: "0.01",
	})
	check.False(t, resp.Success)
	check.Equal(t, engineapi.CodeUnauthorized, resp.ErrorCode)

	// Inverted time window.
	resp = send(t, s, engineapi.CreateAuctionRequest{
		BaseRequest:         engineapi.BaseRequest{Type: engineapi.TypeCreateAuction, Caller: "seller"},
		Title:               "nope",
		AuctionType:         core.AuctionTypeEnglish,
		StartTime:           start.Add(time.Hour).Unix(),
		EndTime:             start.Unix(),
		MinimumBidIncrement: "0.01",
	})
	check.False(t, resp.Success)
	check.Equal(t, engineapi.CodeInvalidTimeWindow, resp.ErrorCode)

	// Unparseable increment.
	resp = send(t, s, engineapi.CreateAuctionRequest{
		BaseRequest:         engineapi.BaseRequest{Type: engineapi.TypeCreateAuction, Caller: "seller"},
		Title:               "nope",
		AuctionType:         core.AuctionTypeEnglish,
		StartTime:           start.Unix(),
		EndTime:             start.Add(time.Hour).Unix(),
		MinimumBidIncrement: "lots",
	})
	check.False(t, resp.Success)
	check.Equal(t, engineapi.CodeInvalidIncrement, resp.ErrorCode)

	// Cancel with bids.
	createResp := send(t, s, engineapi.CreateAuctionRequest{
		BaseRequest:         engineapi.BaseRequest{Type: engineapi.TypeCreateAuction, Caller: "seller"},
		Title:               "lot",
		AuctionType:         core.AuctionTypeEnglish,
		StartTime:           start.Unix(),
		EndTime:             start.Add(time.Hour).Unix(),
		MinimumBidIncrement: "0.01",
	})
	assert.True(t, createResp.Success)
	id := *createResp.AuctionID

	send(t, s, engineapi.BidRequest{
		BaseRequest: engineapi.BaseRequest{Type: engineapi.TypePlaceBid, Caller: "alice"},
		AuctionID:   id,
		Ciphertext:  encryptBid(t, s, 10000, "alice"),
	})
	resp = send(t, s, engineapi.AuctionIDRequest{
		BaseRequest: engineapi.BaseRequest{Type: engineapi.TypeCancelAuction, Caller: "seller"},
		AuctionID:   id,
	})
	check.False(t, resp.Success)
	check.Equal(t, engineapi.CodeCannotCancelWithBids, resp.ErrorCode)

	// Reveal before end.
	resp = send(t, s, engineapi.AuctionIDRequest{
		BaseRequest: engineapi.BaseRequest{Type: engineapi.TypeRevealResults, Caller: "seller"},
		AuctionID:   id,
	})
	check.False(t, resp.Success)
	check.Equal(t, engineapi.CodeAuctionNotEnded, resp.ErrorCode)

	// Tampered proof.
	ct := encryptBid(t, s, 10000, "bob")
	ct.Proof = "deadbeef"
	resp = send(t, s, engineapi.BidRequest{
		BaseRequest: engineapi.BaseRequest{Type: engineapi.TypePlaceBid, Caller: "bob"},
		AuctionID:   id,
		Ciphertext:  ct,
	})
	check.False(t, resp.Success)
	check.Equal(t, engineapi.CodeInvalidProof, resp.ErrorCode)
}

func TestDispatch_AutoBid(t *testing.T) {
	s := newTestServer(t)
	start := time.Now()

	createResp := send(t, s, engineapi.CreateAuctionRequest{
		BaseRequest:         engineapi.BaseRequest{Type: engineapi.TypeCreateAuction, Caller: "seller"},
		Title:               "lot",
		AuctionType:         core.AuctionTypeEnglish,
		StartTime:           start.Unix(),
		EndTime:             start.Add(time.Hour).Unix(),
		MinimumBidIncrement: "0.01",
	})
	assert.True(t, createResp.Success)
	id := *createResp.AuctionID

	resp := send(t, s, engineapi.BidRequest{
		BaseRequest: engineapi.BaseRequest{Type: engineapi.TypeSetAutoBid, Caller: "alice"},
		AuctionID:   id,
		Ciphertext:  encryptBid(t, s, 50000, "alice"),
	})
	assert.True(t, resp.Success)

	// An auto-bid ceiling is bookkeeping only: no bid is counted.
	getResp := send(t, s, engineapi.AuctionIDRequest{
		BaseRequest: engineapi.BaseRequest{Type: engineapi.TypeGetAuction},
		AuctionID:   id,
	})
	assert.True(t, getResp.Success)
	check.Equal(t, uint64(0), getResp.Auction.TotalBids)
}
