package engineapi

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
)

// AttestationCOSE is raw COSE_Sign1 bytes produced by the host's
// attester (NSM on-enclave, local signer off-enclave).
type AttestationCOSE []byte

// AttestationCOSEBase64 is the base64 transport encoding of
// AttestationCOSE used in JSON responses.
type AttestationCOSEBase64 string

// AttestationCOSEGzip is a gzipped-then-base64 encoding used where
// attestations ride in size-constrained notification payloads.
type AttestationCOSEGzip string

// EncodeBase64 encodes raw COSE bytes for JSON transport.
func (a AttestationCOSE) EncodeBase64() AttestationCOSEBase64 {
	return AttestationCOSEBase64(base64.StdEncoding.EncodeToString(a))
}

// EncodeGzip gzips and base64-encodes raw COSE bytes.
func (a AttestationCOSE) EncodeGzip() (AttestationCOSEGzip, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(a); err != nil {
		return "", fmt.Errorf("gzip attestation: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("close gzip writer: %w", err)
	}
	return AttestationCOSEGzip(base64.StdEncoding.EncodeToString(buf.Bytes())), nil
}

// Decode returns the raw COSE bytes.
func (b AttestationCOSEBase64) Decode() (AttestationCOSE, error) {
	raw, err := base64.StdEncoding.DecodeString(string(b))
	if err != nil {
		return nil, fmt.Errorf("decode attestation base64: %w", err)
	}
	return AttestationCOSE(raw), nil
}

// Decompress reverses EncodeGzip.
func (g AttestationCOSEGzip) Decompress() (AttestationCOSE, error) {
	raw, err := base64.StdEncoding.DecodeString(string(g))
	if err != nil {
		return nil, fmt.Errorf("decode gzipped attestation base64: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("open gzip reader: %w", err)
	}
	defer zr.Close()
	cose, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress attestation: %w", err)
	}
	return AttestationCOSE(cose), nil
}
