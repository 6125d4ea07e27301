package payments

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

func TestNormalizeProviders(t *testing.T) {
	cases := []struct {
		name     string
		provider string
		raw      string
		want     models.PaymentResult
	}{
		{
			name:     "card intent",
			provider: "card",
			raw:      `{"id":"pi_123","status":"succeeded","receipt_email":"ana@example.com","created":1741597200,"amount":4599}`,
			want: models.PaymentResult{
				Provider:   enums.PaymentProviderCard,
				ID:         "pi_123",
				Status:     "succeeded",
				UpdateTime: time.Unix(1741597200, 0).UTC(),
				PayerEmail: "ana@example.com",
			},
		},
		{
			name:     "wallet payment",
			provider: "Wallet",
			raw:      `{"id":"sq_9","status":"COMPLETED","buyer_email_address":"bo@example.com","updated_at":"2025-03-10T09:00:01.5Z"}`,
			want: models.PaymentResult{
				Provider:   enums.PaymentProviderWallet,
				ID:         "sq_9",
				Status:     "COMPLETED",
				UpdateTime: time.Date(2025, 3, 10, 9, 0, 1, 500_000_000, time.UTC),
				PayerEmail: "bo@example.com",
			},
		},
		{
			name:     "cash",
			provider: "cash",
			raw:      `{"id":"cash-1","status":"completed","updateTime":"2025-03-10T09:00:00Z"}`,
			want: models.PaymentResult{
				Provider:   enums.PaymentProviderCash,
				ID:         "cash-1",
				Status:     "completed",
				UpdateTime: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
			},
		},
		{
			name:     "unknown provider keeps id",
			provider: "barter",
			raw:      `{"id":"trade-7","status":"done"}`,
			want:     models.PaymentResult{Provider: enums.PaymentProviderUnknown, ID: "trade-7", Status: StatusUnverified},
		},
		{
			name:     "malformed card payload",
			provider: "card",
			raw:      `{"id":`,
			want:     models.PaymentResult{Provider: enums.PaymentProviderUnknown, Status: StatusUnverified},
		},
		{
			name:     "card payload without id",
			provider: "card",
			raw:      `{"status":"succeeded"}`,
			want:     models.PaymentResult{Provider: enums.PaymentProviderUnknown, Status: StatusUnverified},
		},
		{
			name:     "explicit unknown",
			provider: "unknown",
			raw:      `{"id":42}`,
			want:     models.PaymentResult{Provider: enums.PaymentProviderUnknown, Status: StatusUnverified},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.provider, json.RawMessage(tc.raw)))
		})
	}
}

func TestNormalizeIsPure(t *testing.T) {
	raw := json.RawMessage(`{"id":"pi_1","status":"succeeded","created":1}`)
	first := Normalize("card", raw)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Normalize("card", raw))
	}
}

func TestSucceeded(t *testing.T) {
	assert.True(t, Succeeded(models.PaymentResult{Provider: enums.PaymentProviderCard, Status: "succeeded"}))
	assert.False(t, Succeeded(models.PaymentResult{Provider: enums.PaymentProviderCard, Status: "requires_action"}))
	assert.True(t, Succeeded(models.PaymentResult{Provider: enums.PaymentProviderWallet, Status: "completed"}))
	assert.False(t, Succeeded(models.PaymentResult{Provider: enums.PaymentProviderWallet, Status: "APPROVED"}))
	assert.True(t, Succeeded(models.PaymentResult{Provider: enums.PaymentProviderCash, Status: "completed"}))
	assert.False(t, Succeeded(models.PaymentResult{Provider: enums.PaymentProviderUnknown, Status: StatusUnverified}))
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(4599), MinorUnits(decimal.RequireFromString("45.99")))
	assert.Equal(t, int64(100), MinorUnits(decimal.RequireFromString("0.995")))
	assert.Equal(t, int64(0), MinorUnits(decimal.Zero))
}
