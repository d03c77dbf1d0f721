package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderCoversEveryKind(t *testing.T) {
	expires := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	payload := Payload{Tier: "employee", Duration: 30, PaymentMethod: "cash", ExpiresAt: &expires, Reason: "no receipt"}

	for _, kind := range []EventKind{EventPurchaseConfirmed, EventPaymentVerified, EventPaymentRejected, EventSubscriptionCancelled} {
		require.True(t, kind.Valid())
		title, message, err := Render(kind, payload)
		require.NoError(t, err, kind)
		assert.NotEmpty(t, title)
		assert.Contains(t, message, "employee")
	}

	_, message, _ := Render(EventPaymentVerified, payload)
	assert.Contains(t, message, "2026-03-01")

	_, message, _ = Render(EventPaymentRejected, payload)
	assert.Contains(t, message, "no receipt")
}

func TestRenderUnknownKind(t *testing.T) {
	assert.False(t, EventKind("comment_reply").Valid())
	_, _, err := Render(EventKind("comment_reply"), Payload{})
	assert.ErrorIs(t, err, ErrUnknownEventKind)
}
