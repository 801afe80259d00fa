package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mdlayher/vsock"

	"github.com/haicereylio/fhevm-confidential-auction/core"
	"github.com/haicereylio/fhevm-confidential-auction/engineapi"
	"github.com/haicereylio/fhevm-confidential-auction/fhe"
)

// EngineServer hosts the auction engine behind a vsock JSON interface.
type EngineServer struct {
	port     uint32
	registry *core.Registry
	coproc   *fhe.Coprocessor
	attester EngineAttester
}

func NewEngineServer(port uint32) *EngineServer {
	return &EngineServer{port: port}
}

func (s *EngineServer) Start() error {
	coproc, err := fhe.NewCoprocessor()
	if err != nil {
		return fmt.Errorf("failed to initialize coprocessor: %w", err)
	}
	s.coproc = coproc
	log.Printf("Coprocessor initialized")

	owner, err := getRequiredEnv("ENGINE_OWNER")
	if err != nil {
		return err
	}
	policy := core.NewAccessPolicy(owner, getEnvList("ENGINE_AUCTIONEERS"))
	s.registry = core.NewRegistry(policy, coproc, core.LogSink{})
	log.Printf("Registry initialized (owner: %s)", owner)

	attester, err := getEnclaveAttester()
	if err != nil {
		log.Printf("ERROR: NSM initialization failed: %v (continuing with local signer)", err)
		local, lerr := newLocalAttester()
		if lerr != nil {
			return fmt.Errorf("failed to initialize local attester: %w", lerr)
		}
		attester = local
	}
	s.attester = attester

	listener, err := vsock.Listen(s.port, nil)
	if err != nil {
		return fmt.Errorf("failed to create vsock listener: %w", err)
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Printf("ERROR: Failed to close listener: %v", err)
		}
	}()

	log.Printf("INFO: Engine server listening on vsock port %d", s.port)

	maxWorkers, err := getRequiredEnvInt("ENGINE_MAX_WORKERS")
	if err != nil {
		return fmt.Errorf("failed to get max workers config: %w", err)
	}
	semaphore := make(chan struct{}, maxWorkers)

	log.Printf("INFO: Worker pool initialized with %d max concurrent workers", maxWorkers)

	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Printf("ERROR: Failed to accept vsock connection: %v", err)
			continue
		}

		// Acquire worker slot - immediate rejection if pool full
		select {
		case semaphore <- struct{}{}:
			go func(c net.Conn) {
				defer func() { <-semaphore }() // Release worker slot
				s.handleConnection(c)
			}(conn)
		default:
			log.Printf("INFO: No workers available, rejecting connection (pool full)")
			if err := conn.Close(); err != nil {
				log.Printf("ERROR: Failed to close rejected connection: %v", err)
			}
		}
	}
}

func (s *EngineServer) handleConnection(conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: Panic recovered in handleConnection: %v", r)
		}
		if err := conn.Close(); err != nil {
			log.Printf("ERROR: Failed to close connection: %v", err)
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, conn); err != nil {
		log.Printf("ERROR: Failed to read request: %v", err)
		return
	}

	response := s.dispatch(buf.Bytes())

	encoder := json.NewEncoder(conn)
	if err := encoder.Encode(response); err != nil {
		log.Printf("ERROR: Failed to encode response: %v", err)
	}
}

// dispatch routes one raw request to its handler. Every operation is
// stamped with the host clock at receipt; the engine itself never reads
// the clock.
func (s *EngineServer) dispatch(raw []byte) any {
	var baseReq engineapi.BaseRequest
	if err := json.Unmarshal(raw, &baseReq); err != nil {
		log.Printf("ERROR: Failed to decode base request: %v", err)
		return errorResponse("error", fmt.Errorf("failed to decode request: %w", err))
	}

	log.Printf("INFO: Received request type: %s (caller: %s)", baseReq.Type, baseReq.Caller)
	now := time.Now()

	switch baseReq.Type {
	case engineapi.TypePing:
		return map[string]any{
			"type":      "pong",
			"message":   "Engine server is healthy",
			"timestamp": now.Unix(),
		}
	case engineapi.TypeServiceKey:
		return s.handleServiceKey()
	case engineapi.TypeCreateAuction:
		return s.handleCreateAuction(raw, now)
	case engineapi.TypeGetAuction:
		return s.handleGetAuction(raw, now)
	case engineapi.TypeAuctionCount:
		return s.handleAuctionCount()
	case engineapi.TypePlaceBid:
		return s.handleBid(raw, now, false)
	case engineapi.TypeSetAutoBid:
		return s.handleBid(raw, now, true)
	case engineapi.TypeEndAuction:
		return s.handleEndOrCancel(raw, now, false)
	case engineapi.TypeCancelAuction:
		return s.handleEndOrCancel(raw, now, true)
	case engineapi.TypeRevealResults:
		return s.handleReveal(raw, now)
	default:
		return errorResponse("error", fmt.Errorf("unknown request type: %s", baseReq.Type))
	}
}

// Helper functions for environment variable parsing

func getRequiredEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return value, nil
}

func getRequiredEnvInt(key string) (int, error) {
	value, err := getRequiredEnv(key)
	if err != nil {
		return 0, err
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %s (must be a valid integer)", key, value)
	}

	log.Printf("INFO: Using %s=%d from environment", key, intValue)
	return intValue, nil
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvUint32(key string, fallback uint32) uint32 {
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
	server := NewEngineServer(getEnvUint32("ENGINE_VSOCK_PORT", 5000))
	log.Fatal(server.Start())
}
