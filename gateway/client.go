package main

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mdlayher/vsock"

	"github.com/haicereylio/fhevm-confidential-auction/engineapi"
	"github.com/haicereylio/fhevm-confidential-auction/fhe"
)

// engineClient speaks the engine's vsock JSON protocol: one request per
// connection, half-close after writing, then read the response.
type engineClient struct {
	contextID uint32
	port      uint32

	mu        sync.Mutex
	publicKey string // cached service key PEM
}

func newEngineClient(contextID, port uint32) *engineClient {
	return &engineClient{contextID: contextID, port: port}
}

func (c *engineClient) call(request any, response any) error {
	conn, err := vsock.Dial(c.contextID, c.port, nil)
	if err != nil {
		return fmt.Errorf("failed to dial engine: %w", err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(30 * time.Second))

	if err := json.NewEncoder(conn).Encode(request); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	if err := conn.CloseWrite(); err != nil {
		return fmt.Errorf("failed to half-close connection: %w", err)
	}

	if err := json.NewDecoder(conn).Decode(response); err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	return nil
}

// serviceKey fetches and caches the engine's ciphertext import key.
func (c *engineClient) serviceKey() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publicKey != "" {
		return c.publicKey, nil
	}

	var resp engineapi.EngineResponse
	err := c.call(engineapi.BaseRequest{Type: engineapi.TypeServiceKey}, &resp)
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("service key request failed: %s", resp.Message)
	}
	c.publicKey = resp.PublicKey
	return c.publicKey, nil
}

// encryptAmount encrypts a scaled amount for sender against the engine's
// service key.
func (c *engineClient) encryptAmount(amount uint64, sender string) (fhe.ExternalCiphertext, error) {
	pemStr, err := c.serviceKey()
	if err != nil {
		return fhe.ExternalCiphertext{}, err
	}
	publicKey, err := fhe.ParsePublicKeyPEM(pemStr)
	if err != nil {
		return fhe.ExternalCiphertext{}, err
	}
	return fhe.EncryptAmount(amount, sender, publicKey)
}
