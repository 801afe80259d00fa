package main

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/haicereylio/fhevm-confidential-auction/core"
	"github.com/haicereylio/fhevm-confidential-auction/engineapi"
)

func errorResponse(respType string, err error) engineapi.EngineResponse {
	return engineapi.EngineResponse{
		Type:      respType,
		Success:   false,
		Message:   err.Error(),
		ErrorCode: engineapi.CodeForError(err),
	}
}

func (s *EngineServer) handleCreateAuction(raw []byte, now time.Time) engineapi.EngineResponse {
	var req engineapi.CreateAuctionRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse("create_auction_response", fmt.Errorf("failed to decode create request: %w", err))
	}

	increment, err := core.ParseAmount(req.MinimumBidIncrement)
	if err != nil {
		return errorResponse("create_auction_response", fmt.Errorf("%w: %v", core.ErrInvalidIncrement, err))
	}

	id, err := s.registry.CreateAuction(req.Caller, core.CreateParams{
		Title:               req.Title,
		Description:         req.Description,
		ItemImageURL:        req.ItemImageURL,
		Type:                req.AuctionType,
		StartTime:           time.Unix(req.StartTime, 0),
		EndTime:             time.Unix(req.EndTime, 0),
		MinimumBidIncrement: increment,
		ExtensionTime:       time.Duration(req.ExtensionSeconds) * time.Second,
		HasReservePrice:     req.HasReservePrice,
		EncryptedReserve:    req.EncryptedReserve,
	}, now)
	if err != nil {
		return errorResponse("create_auction_response", err)
	}

	return engineapi.EngineResponse{
		Type:      "create_auction_response",
		Success:   true,
		Message:   fmt.Sprintf("Auction %d created", id),
		AuctionID: &id,
	}
}

func (s *EngineServer) handleGetAuction(raw []byte, now time.Time) engineapi.EngineResponse {
	var req engineapi.AuctionIDRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse("get_auction_response", fmt.Errorf("failed to decode get request: %w", err))
	}

	view, err := s.registry.Get(req.AuctionID, now)
	if err != nil {
		return errorResponse("get_auction_response", err)
	}

	return engineapi.EngineResponse{
		Type:    "get_auction_response",
		Success: true,
		Auction: &view,
	}
}

func (s *EngineServer) handleAuctionCount() engineapi.EngineResponse {
	count := s.registry.Count()
	return engineapi.EngineResponse{
		Type:    "auction_count_response",
		Success: true,
		Count:   &count,
	}
}

func (s *EngineServer) handleBid(raw []byte, now time.Time, autoBid bool) engineapi.EngineResponse {
	respType := "place_bid_response"
	if autoBid {
		respType = "set_auto_bid_response"
	}

	var req engineapi.BidRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(respType, fmt.Errorf("failed to decode bid request: %w", err))
	}

	var err error
	if autoBid {
		err = s.registry.SetAutoBid(req.Caller, req.AuctionID, req.Ciphertext, now)
	} else {
		err = s.registry.PlaceBid(req.Caller, req.AuctionID, req.Ciphertext, now)
	}
	if err != nil {
		return errorResponse(respType, err)
	}

	return engineapi.EngineResponse{
		Type:    respType,
		Success: true,
		Message: fmt.Sprintf("Accepted for auction %d", req.AuctionID),
	}
}

func (s *EngineServer) handleEndOrCancel(raw []byte, now time.Time, cancel bool) engineapi.EngineResponse {
	respType := "end_auction_response"
	if cancel {
		respType = "cancel_auction_response"
	}

	var req engineapi.AuctionIDRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(respType, fmt.Errorf("failed to decode request: %w", err))
	}

	var err error
	if cancel {
		err = s.registry.CancelAuction(req.Caller, req.AuctionID, now)
	} else {
		err = s.registry.EndAuction(req.Caller, req.AuctionID, now)
	}
	if err != nil {
		return errorResponse(respType, err)
	}

	return engineapi.EngineResponse{
		Type:    respType,
		Success: true,
		Message: fmt.Sprintf("Auction %d updated", req.AuctionID),
	}
}

// handleReveal runs the reveal protocol, then decrypts the now-public
// handles and attests the disclosed values.
func (s *EngineServer) handleReveal(raw []byte, now time.Time) engineapi.EngineResponse {
	var req engineapi.AuctionIDRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse("reveal_results_response", fmt.Errorf("failed to decode reveal request: %w", err))
	}

	if err := s.registry.RevealResults(req.Caller, req.AuctionID, now); err != nil {
		return errorResponse("reveal_results_response", err)
	}

	view, err := s.registry.Get(req.AuctionID, now)
	if err != nil {
		return errorResponse("reveal_results_response", err)
	}

	winning, err := s.coproc.Decrypt(view.HighestBidHandle, core.EnginePrincipal)
	if err != nil {
		return errorResponse("reveal_results_response", fmt.Errorf("failed to decrypt revealed highest bid: %w", err))
	}

	userData := engineapi.RevealUserData{
		AuctionID:        req.AuctionID,
		WinningAmount:    winning,
		HasReserve:       view.HasReservePrice,
		HighestBidHandle: view.HighestBidHandle,
		TotalBids:        view.TotalBids,
		Timestamp:        now,
	}

	var reserveMet *bool
	if view.HasReservePrice {
		reserve, err := s.coproc.Decrypt(view.ReserveHandle, core.EnginePrincipal)
		if err != nil {
			return errorResponse("reveal_results_response", fmt.Errorf("failed to decrypt revealed reserve: %w", err))
		}
		met := winning >= reserve
		reserveMet = &met
		userData.ReserveMet = reserveMet
		userData.ReserveHandle = view.ReserveHandle
	}

	reveal := &engineapi.RevealResponse{
		AuctionID:            req.AuctionID,
		WinningAmount:        winning,
		WinningAmountDisplay: core.FormatAmount(winning),
		HasReserve:           view.HasReservePrice,
		ReserveMet:           reserveMet,
	}

	attestation, err := GenerateRevealAttestation(s.attester, userData)
	if err != nil {
		// The reveal itself already happened; report the disclosure
		// without an attestation rather than failing the call.
		log.Printf("ERROR: Reveal attestation unavailable for auction %d: %v", req.AuctionID, err)
	} else {
		reveal.AttestationCOSEBase64 = attestation.EncodeBase64()
	}

	return engineapi.EngineResponse{
		Type:    "reveal_results_response",
		Success: true,
		Message: fmt.Sprintf("Auction %d revealed", req.AuctionID),
		Reveal:  reveal,
	}
}

func (s *EngineServer) handleServiceKey() engineapi.EngineResponse {
	pemStr, err := s.coproc.PublicKeyPEM()
	if err != nil {
		return errorResponse("service_key_response", fmt.Errorf("failed to export service key: %w", err))
	}
	return engineapi.EngineResponse{
		Type:      "service_key_response",
		Success:   true,
		PublicKey: pemStr,
	}
}
