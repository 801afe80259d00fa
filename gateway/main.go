// The gateway is presentation plumbing: a thin HTTP front that encrypts
// submitted amounts client-side and forwards engine requests over vsock.
// Caller identity is taken from the request body; authentication is the
// responsibility of whatever sits in front of this process.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/haicereylio/fhevm-confidential-auction/core"
	"github.com/haicereylio/fhevm-confidential-auction/engineapi"
)

type gatewayServer struct {
	engine *engineClient
}

func (g *gatewayServer) routes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", g.healthCheck).Methods("GET")
	router.HandleFunc("/key", g.getServiceKey).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/auctions", g.listAuctions).Methods("GET")
	api.HandleFunc("/auctions", g.createAuction).Methods("POST")
	api.HandleFunc("/auctions/{id}", g.getAuction).Methods("GET")
	api.HandleFunc("/auctions/{id}/bids", g.submitBid(false)).Methods("POST")
	api.HandleFunc("/auctions/{id}/autobid", g.submitBid(true)).Methods("POST")
	api.HandleFunc("/auctions/{id}/end", g.terminate(engineapi.TypeEndAuction)).Methods("POST")
	api.HandleFunc("/auctions/{id}/cancel", g.terminate(engineapi.TypeCancelAuction)).Methods("POST")
	api.HandleFunc("/auctions/{id}/reveal", g.terminate(engineapi.TypeRevealResults)).Methods("POST")

	router.Use(loggingMiddleware)
	return router
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("INFO: %s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("ERROR: Failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusForCode maps engine error codes onto HTTP statuses.
func statusForCode(code string) int {
	switch code {
	case engineapi.CodeNotFound:
		return http.StatusNotFound
	case engineapi.CodeUnauthorized, engineapi.CodeAccessDenied:
		return http.StatusForbidden
	case engineapi.CodeInvalidTimeWindow, engineapi.CodeInvalidIncrement, engineapi.CodeInvalidProof:
		return http.StatusBadRequest
	case engineapi.CodeAuctionNotActive, engineapi.CodeCannotCancelWithBids, engineapi.CodeAuctionNotEnded:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func (g *gatewayServer) forward(w http.ResponseWriter, request any) {
	var resp engineapi.EngineResponse
	if err := g.engine.call(request, &resp); err != nil {
		respondError(w, http.StatusBadGateway, fmt.Sprintf("engine unavailable: %v", err))
		return
	}
	if !resp.Success {
		respondJSON(w, statusForCode(resp.ErrorCode), resp)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (g *gatewayServer) healthCheck(w http.ResponseWriter, r *http.Request) {
	var resp map[string]any
	if err := g.engine.call(engineapi.BaseRequest{Type: engineapi.TypePing}, &resp); err != nil {
		respondError(w, http.StatusServiceUnavailable, fmt.Sprintf("engine unreachable: %v", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "auction-gateway",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (g *gatewayServer) getServiceKey(w http.ResponseWriter, r *http.Request) {
	pemStr, err := g.engine.serviceKey()
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"public_key": pemStr})
}

func auctionID(r *http.Request) (uint64, error) {
	return strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
}

func (g *gatewayServer) getAuction(w http.ResponseWriter, r *http.Request) {
	id, err := auctionID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid auction id")
		return
	}
	g.forward(w, engineapi.AuctionIDRequest{
		BaseRequest: engineapi.BaseRequest{Type: engineapi.TypeGetAuction},
		AuctionID:   id,
	})
}

func (g *gatewayServer) listAuctions(w http.ResponseWriter, r *http.Request) {
	var countResp engineapi.EngineResponse
	err := g.engine.call(engineapi.BaseRequest{Type: engineapi.TypeAuctionCount}, &countResp)
	if err != nil || !countResp.Success || countResp.Count == nil {
		respondError(w, http.StatusBadGateway, "failed to fetch auction count")
		return
	}

	auctions := make([]core.AuctionView, 0, *countResp.Count)
	for id := uint64(0); id < *countResp.Count; id++ {
		var resp engineapi.EngineResponse
		err := g.engine.call(engineapi.AuctionIDRequest{
			BaseRequest: engineapi.BaseRequest{Type: engineapi.TypeGetAuction},
			AuctionID:   id,
		}, &resp)
		if err != nil || !resp.Success || resp.Auction == nil {
			continue
		}
		auctions = append(auctions, *resp.Auction)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":    *countResp.Count,
		"auctions": auctions,
	})
}

// createAuctionBody is the gateway's creation input. A reserve amount is
// supplied in display form and encrypted here before it leaves for the
// engine.
type createAuctionBody struct {
	Caller              string `json:"caller"`
	Title               string `json:"title"`
	Description         string `json:"description"`
	ItemImageURL        string `json:"item_image_url,omitempty"`
	AuctionType         string `json:"auction_type"`
	StartTime           int64  `json:"start_time"`
	EndTime             int64  `json:"end_time"`
	MinimumBidIncrement string `json:"minimum_bid_increment"`
	ExtensionSeconds    int64  `json:"extension_seconds"`
	ReserveAmount       string `json:"reserve_amount,omitempty"`
}

func (g *gatewayServer) createAuction(w http.ResponseWriter, r *http.Request) {
	var body createAuctionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req := engineapi.CreateAuctionRequest{
		BaseRequest:         engineapi.BaseRequest{Type: engineapi.TypeCreateAuction, Caller: body.Caller},
		Title:               body.Title,
		Description:         body.Description,
		ItemImageURL:        body.ItemImageURL,
		AuctionType:         core.AuctionType(body.AuctionType),
		StartTime:           body.StartTime,
		EndTime:             body.EndTime,
		MinimumBidIncrement: body.MinimumBidIncrement,
		ExtensionSeconds:    body.ExtensionSeconds,
	}

	if body.ReserveAmount != "" {
		amount, err := core.ParseAmount(body.ReserveAmount)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		ct, err := g.engine.encryptAmount(amount, body.Caller)
		if err != nil {
			respondError(w, http.StatusBadGateway, fmt.Sprintf("failed to encrypt reserve: %v", err))
			return
		}
		req.HasReservePrice = true
		req.EncryptedReserve = &ct
	}

	g.forward(w, req)
}

type bidBody struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

func (g *gatewayServer) submitBid(autoBid bool) http.HandlerFunc {
	reqType := engineapi.TypePlaceBid
	if autoBid {
		reqType = engineapi.TypeSetAutoBid
	}

	return func(w http.ResponseWriter, r *http.Request) {
		id, err := auctionID(r)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid auction id")
			return
		}

		var body bidBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		amount, err := core.ParseAmount(body.Amount)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		ct, err := g.engine.encryptAmount(amount, body.Caller)
		if err != nil {
			respondError(w, http.StatusBadGateway, fmt.Sprintf("failed to encrypt amount: %v", err))
			return
		}

		g.forward(w, engineapi.BidRequest{
			BaseRequest: engineapi.BaseRequest{Type: reqType, Caller: body.Caller},
			AuctionID:   id,
			Ciphertext:  ct,
		})
	}
}

func (g *gatewayServer) terminate(reqType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := auctionID(r)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid auction id")
			return
		}

		var body struct {
			Caller string `json:"caller"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		g.forward(w, engineapi.AuctionIDRequest{
			BaseRequest: engineapi.BaseRequest{Type: reqType, Caller: body.Caller},
			AuctionID:   id,
		})
	}
}

func envUint32(key string, fallback uint32) uint32 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		log.Printf("ERROR: Invalid value for %s: %s, using default %d", key, value, fallback)
		return fallback
	}
	return uint32(parsed)
}

func main() {
	addr := os.Getenv("GATEWAY_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	g := &gatewayServer{
		engine: newEngineClient(
			envUint32("GATEWAY_ENGINE_CID", 3),
			envUint32("GATEWAY_ENGINE_PORT", 5000),
		),
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      g.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("INFO: Auction gateway listening on %s", addr)
	log.Fatal(server.ListenAndServe())
}
