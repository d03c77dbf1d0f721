package paymentqr

import (
	"strings"
	"testing"

	"github.com/pattamap/pattamap-vip/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestChecksumKnownVector(t *testing.T) {
	// CRC-16/CCITT-FALSE check value
	assert.Equal(t, "29B1", checksum("123456789"))
}

func TestBuildPayloadMobile(t *testing.T) {
	payload, err := BuildPayload("081-234-5678", 3600, "VIP123", "", "")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(payload, "000201010212"))
	assert.Contains(t, payload, "29370016A00000067701011101130066812345678")
	assert.Contains(t, payload, "5303764")
	assert.Contains(t, payload, "54073600.00")
	assert.Contains(t, payload, "5802TH")
	assert.Contains(t, payload, "62100506VIP123")

	body := payload[:len(payload)-4]
	assert.True(t, strings.HasSuffix(body, "6304"))
	assert.Equal(t, checksum(body), payload[len(payload)-4:])
}

func TestBuildPayloadNationalID(t *testing.T) {
	payload, err := BuildPayload("1234567890123", 1000, "", "PattaMap", "Pattaya")
	require.NoError(t, err)

	assert.Contains(t, payload, "0016A00000067701011102131234567890123")
	assert.Contains(t, payload, "5908PattaMap")
	assert.Contains(t, payload, "6007Pattaya")
	assert.NotContains(t, payload, "6210")
}

func TestBuildPayloadRejectsBadInput(t *testing.T) {
	_, err := BuildPayload("1234", 100, "", "", "")
	assert.Error(t, err)

	_, err = BuildPayload("0812345678", 0, "", "", "")
	assert.Error(t, err)
}

func TestGeneratorNotConfigured(t *testing.T) {
	gen := NewGenerator(Params{
		Config: config.NewStaticPaymentConfigHolder(config.DefaultPaymentConfig()),
		Log:    zap.NewNop(),
	})

	_, err := gen.Generate(3600, "VIP1")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGeneratorRendersDataURL(t *testing.T) {
	cfg := config.DefaultPaymentConfig()
	cfg.PromptPay.ID = "0812345678"
	gen := NewGenerator(Params{
		Config: config.NewStaticPaymentConfigHolder(cfg),
		Log:    zap.NewNop(),
	})

	code, err := gen.Generate(9000, "VIP1234567890123456789012345")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(code.QRCode, "data:image/png;base64,"))
	assert.Len(t, code.Reference, maxReferenceLen)
	assert.Contains(t, code.Payload, code.Reference)
}
