package webhooks

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	maxPayloadBytes  = 1 << 20
	stripeOrderIDKey = "order_id"
)

// SecretHeader carries the shared secret for non-Stripe providers.
const SecretHeader = "X-Webhook-Secret"

type callbackHandler interface {
	HandleProviderCallback(ctx context.Context, provider string, orderID uuid.UUID, raw json.RawMessage) (*models.TotalOrder, error)
}

// Secrets authenticates provider callbacks. Stripe signs its own events;
// every other provider sends Shared in SecretHeader.
type Secrets struct {
	Shared string
	Stripe string
}

type callbackRequest struct {
	OrderID uuid.UUID       `json:"orderId" validate:"required"`
	Payment json.RawMessage `json:"payment" validate:"required"`
}

type callbackResponse struct {
	Recorded bool       `json:"recorded"`
	OrderID  *uuid.UUID `json:"orderId,omitempty"`
}

// PaymentCallback records asynchronous payment confirmations. Card callbacks
// are Stripe events verified by signature; the rest are a JSON envelope of
// orderId plus the provider's payment object.
func PaymentCallback(svc callbackHandler, secrets Secrets, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		provider := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "provider")))

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		var (
			orderID uuid.UUID
			raw     json.RawMessage
			handled bool
		)
		if provider == string(enums.PaymentProviderCard) {
			orderID, raw, handled, err = parseStripeEvent(r, payload, secrets.Stripe)
		} else {
			orderID, raw, err = parseSharedSecretCallback(r, payload, secrets.Shared)
			handled = true
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if !handled {
			responses.WriteSuccess(w, callbackResponse{})
			return
		}

		order, err := svc.HandleProviderCallback(ctx, provider, orderID, raw)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if order == nil {
			responses.WriteSuccess(w, callbackResponse{})
			return
		}
		if logg != nil {
			logg.Info(logg.WithFields(ctx, map[string]any{"order_id": order.ID.String(), "provider": provider}), "payment callback recorded")
		}
		responses.WriteSuccess(w, callbackResponse{Recorded: true, OrderID: &order.ID})
	}
}

// parseStripeEvent verifies the Stripe-Signature header. Only
// payment_intent.succeeded is acted on; other event types are acknowledged.
func parseStripeEvent(r *http.Request, payload []byte, secret string) (uuid.UUID, json.RawMessage, bool, error) {
	if secret == "" {
		return uuid.Nil, nil, false, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhook secret not configured")
	}
	sigHeader := r.Header.Get("Stripe-Signature")
	if sigHeader == "" {
		return uuid.Nil, nil, false, pkgerrors.New(pkgerrors.CodeUnauthorized, "stripe signature missing")
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return uuid.Nil, nil, false, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "verify stripe signature")
	}
	if event.Type != stripe.EventTypePaymentIntentSucceeded || event.Data == nil {
		return uuid.Nil, nil, false, nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return uuid.Nil, nil, false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent")
	}
	orderID, err := uuid.Parse(intent.Metadata[stripeOrderIDKey])
	if err != nil {
		return uuid.Nil, nil, false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payment intent has no order id")
	}
	return orderID, event.Data.Raw, true, nil
}

func parseSharedSecretCallback(r *http.Request, payload []byte, secret string) (uuid.UUID, json.RawMessage, error) {
	if secret == "" {
		return uuid.Nil, nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook secret not configured")
	}
	given := r.Header.Get(SecretHeader)
	if subtle.ConstantTimeCompare([]byte(given), []byte(secret)) != 1 {
		return uuid.Nil, nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook secret")
	}

	r.Body = io.NopCloser(bytes.NewReader(payload))
	var body callbackRequest
	if err := validators.DecodeJSONBody(r, &body); err != nil {
		return uuid.Nil, nil, err
	}
	return body.OrderID, body.Payment, nil
}
