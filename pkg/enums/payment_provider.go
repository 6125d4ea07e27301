package enums

import (
	"fmt"
	"strings"
)

// PaymentProvider tags the provider family a payment result came from.
type PaymentProvider string

const (
	PaymentProviderCard   PaymentProvider = "card"
	PaymentProviderWallet PaymentProvider = "wallet"
	PaymentProviderCash   PaymentProvider = "cash"
	// PaymentProviderUnknown marks fallback records for unrecognised providers.
	PaymentProviderUnknown PaymentProvider = "unknown"
)

var validPaymentProviders = []PaymentProvider{
	PaymentProviderCard,
	PaymentProviderWallet,
	PaymentProviderCash,
}

func (p PaymentProvider) String() string {
	return string(p)
}

// IsValid reports whether the provider can be used to take a payment.
// The unknown marker is intentionally excluded.
func (p PaymentProvider) IsValid() bool {
	for _, candidate := range validPaymentProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentProvider converts raw input into a PaymentProvider (case-insensitive).
func ParsePaymentProvider(value string) (PaymentProvider, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validPaymentProviders {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment provider %q", value)
}
