package payments

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// StatusUnverified marks fallback records whose payload could not be read.
const StatusUnverified = "unverified"

const (
	cardStatusSucceeded    = "succeeded"
	walletStatusCompleted  = "COMPLETED"
	cashStatusCompleted    = "completed"
	walletTimestampLayout  = time.RFC3339Nano
	fallbackIDPayloadField = "id"
)

// cardPayload follows the PaymentIntent JSON field names so webhook objects
// decode the same way as adapter confirmations.
type cardPayload struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ReceiptEmail string `json:"receipt_email,omitempty"`
	Created      int64  `json:"created"`
}

// walletPayload follows the Square Payment JSON field names.
type walletPayload struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	BuyerEmailAddress string `json:"buyer_email_address,omitempty"`
	UpdatedAt         string `json:"updated_at,omitempty"`
}

type cashPayload struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	UpdateTime time.Time `json:"updateTime"`
	PayerEmail string    `json:"payerEmail,omitempty"`
}

// Normalize maps a provider payload onto the common PaymentResult. It never
// fails: unknown providers and unreadable payloads yield a fallback record
// tagged unknown/unverified.
func Normalize(provider string, raw json.RawMessage) models.PaymentResult {
	parsed, err := enums.ParsePaymentProvider(provider)
	if err != nil {
		return fallbackResult(raw)
	}

	switch parsed {
	case enums.PaymentProviderCard:
		var payload cardPayload
		if err := json.Unmarshal(raw, &payload); err != nil || payload.ID == "" {
			return fallbackResult(raw)
		}
		result := models.PaymentResult{
			Provider:   enums.PaymentProviderCard,
			ID:         payload.ID,
			Status:     payload.Status,
			PayerEmail: payload.ReceiptEmail,
		}
		if payload.Created > 0 {
			result.UpdateTime = time.Unix(payload.Created, 0).UTC()
		}
		return result
	case enums.PaymentProviderWallet:
		var payload walletPayload
		if err := json.Unmarshal(raw, &payload); err != nil || payload.ID == "" {
			return fallbackResult(raw)
		}
		result := models.PaymentResult{
			Provider:   enums.PaymentProviderWallet,
			ID:         payload.ID,
			Status:     payload.Status,
			PayerEmail: payload.BuyerEmailAddress,
		}
		if ts, err := time.Parse(walletTimestampLayout, payload.UpdatedAt); err == nil {
			result.UpdateTime = ts.UTC()
		}
		return result
	case enums.PaymentProviderCash:
		var payload cashPayload
		if err := json.Unmarshal(raw, &payload); err != nil || payload.ID == "" {
			return fallbackResult(raw)
		}
		return models.PaymentResult{
			Provider:   enums.PaymentProviderCash,
			ID:         payload.ID,
			Status:     payload.Status,
			UpdateTime: payload.UpdateTime.UTC(),
			PayerEmail: payload.PayerEmail,
		}
	case enums.PaymentProviderUnknown:
		return fallbackResult(raw)
	}
	return fallbackResult(raw)
}

// Succeeded reports whether the normalized status is the provider's final
// captured state.
func Succeeded(result models.PaymentResult) bool {
	switch result.Provider {
	case enums.PaymentProviderCard:
		return result.Status == cardStatusSucceeded
	case enums.PaymentProviderWallet:
		return strings.EqualFold(result.Status, walletStatusCompleted)
	case enums.PaymentProviderCash:
		return result.Status == cashStatusCompleted
	default:
		return false
	}
}

func fallbackResult(raw json.RawMessage) models.PaymentResult {
	result := models.PaymentResult{
		Provider: enums.PaymentProviderUnknown,
		Status:   StatusUnverified,
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err == nil {
		if id, ok := fields[fallbackIDPayloadField].(string); ok {
			result.ID = id
		}
	}
	return result
}
