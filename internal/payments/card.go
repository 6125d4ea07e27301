package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v81"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	stripeclient "github.com/angelmondragon/storefront-backend/pkg/stripe"
)

type intentClient interface {
	CreateIntent(ctx context.Context, p stripeclient.IntentParams) (*stripe.PaymentIntent, error)
	ConfirmIntent(ctx context.Context, orderID, intentID, paymentMethod, idempotencyKey string) (*stripe.PaymentIntent, error)
}

// CardAdapter charges card-network payment methods in two phases: create a
// PaymentIntent for the order, then confirm it with the client-side token.
type CardAdapter struct {
	intents intentClient
}

func NewCardAdapter(intents intentClient) (*CardAdapter, error) {
	if intents == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	return &CardAdapter{intents: intents}, nil
}

func (a *CardAdapter) Provider() enums.PaymentProvider { return enums.PaymentProviderCard }

func (a *CardAdapter) ConfirmPayment(ctx context.Context, req ConfirmRequest) (*Confirmation, error) {
	token := strings.TrimSpace(req.PaymentToken)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method token is required")
	}
	orderID := req.OrderID.String()
	key := req.attemptKey()

	intent, err := a.intents.CreateIntent(ctx, stripeclient.IntentParams{
		OrderID:        orderID,
		AmountCents:    req.AmountCents,
		PaymentMethod:  token,
		ReceiptEmail:   req.PayerEmail,
		IdempotencyKey: key,
	})
	if err != nil {
		return nil, err
	}
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		intent, err = a.intents.ConfirmIntent(ctx, orderID, intent.ID, token, key)
		if err != nil {
			return nil, err
		}
	}
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, pkgerrors.New(pkgerrors.CodeProvider, "card payment was not captured").
			WithDetails(map[string]any{"status": string(intent.Status)})
	}

	raw, err := json.Marshal(cardPayload{
		ID:           intent.ID,
		Status:       string(intent.Status),
		ReceiptEmail: intent.ReceiptEmail,
		Created:      intent.Created,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode card confirmation")
	}
	return &Confirmation{Provider: enums.PaymentProviderCard, Raw: raw}, nil
}
