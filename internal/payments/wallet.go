package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/square"
)

type walletClient interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
}

// WalletAdapter captures wallet payments in a single autocompleted call. The
// attempt key ties the charge to the order and source token, so a retried
// charge cannot double-capture while a new source may still be tried.
type WalletAdapter struct {
	client walletClient
}

func NewWalletAdapter(client walletClient) (*WalletAdapter, error) {
	if client == nil {
		return nil, fmt.Errorf("square client required")
	}
	return &WalletAdapter{client: client}, nil
}

func (a *WalletAdapter) Provider() enums.PaymentProvider { return enums.PaymentProviderWallet }

func (a *WalletAdapter) ConfirmPayment(ctx context.Context, req ConfirmRequest) (*Confirmation, error) {
	token := strings.TrimSpace(req.PaymentToken)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet source token is required")
	}
	orderID := req.OrderID.String()

	payment, err := a.client.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents:    req.AmountCents,
		SourceID:       token,
		IdempotencyKey: req.attemptKey(),
		ReferenceID:    orderID,
		BuyerEmail:     req.PayerEmail,
		Note:           "order " + orderID,
	})
	if err != nil {
		return nil, err
	}

	payload := walletPayload{
		ID:                deref(payment.ID),
		Status:            deref(payment.Status),
		BuyerEmailAddress: deref(payment.BuyerEmailAddress),
		UpdatedAt:         deref(payment.UpdatedAt),
	}
	if !strings.EqualFold(payload.Status, walletStatusCompleted) {
		return nil, pkgerrors.New(pkgerrors.CodeProvider, "wallet payment was not completed").
			WithDetails(map[string]any{"status": payload.Status})
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode wallet confirmation")
	}
	return &Confirmation{Provider: enums.PaymentProviderWallet, Raw: raw}, nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
