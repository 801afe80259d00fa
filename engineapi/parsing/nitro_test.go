package parsing

import (
	"encoding/json"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/haicereylio/fhevm-confidential-auction/engineapi"
)

func TestParseAttestationDocument(t *testing.T) {
	userDataBytes, err := json.Marshal(engineapi.RevealUserData{
		AuctionID:     9,
		WinningAmount: 42000,
	})
	assert.NoError(t, err)

	payload, err := cbor.Marshal(map[string]any{
		"module_id": "nitro-i-0abc",
		"digest":    "SHA384",
		"timestamp": uint64(1700000000),
		"pcrs":      map[uint64][]byte{0: {0x01, 0x02}},
		"user_data": userDataBytes,
		"nonce":     []byte("n"),
	})
	assert.NoError(t, err)

	doc, err := ParseAttestationDocument(payload)
	assert.NoError(t, err)
	check.Equal(t, "nitro-i-0abc", doc.ModuleID)
	check.Equal(t, uint64(1700000000), doc.Timestamp)

	userData, err := doc.RevealUserData()
	assert.NoError(t, err)
	check.Equal(t, uint64(9), userData.AuctionID)
	check.Equal(t, uint64(42000), userData.WinningAmount)
}

func TestParseAttestationDocument_Garbage(t *testing.T) {
	_, err := ParseAttestationDocument([]byte("not cbor"))
	check.Error(t, err)
}

func TestRevealUserData_Missing(t *testing.T) {
	doc := &AttestationDocument{}
	_, err := doc.RevealUserData()
	check.Error(t, err)
}

func TestFormatPCR(t *testing.T) {
	check.Equal(t, "deadbeef", FormatPCR([]byte{0xde, 0xad, 0xbe, 0xef}))
	check.Equal(t, "", FormatPCR(nil))
	check.Equal(t, "", FormatPCR([]byte{}))
}
