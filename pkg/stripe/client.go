package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// intentsAPI is the slice of the PaymentIntents API used here.
type intentsAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Confirm(id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error)
}

// Client wraps the PaymentIntents API plus env-specific metadata.
type Client struct {
	intents     intentsAPI
	environment string
	currency    string
	logg        *logger.Logger
}

// IntentParams describes one order charge.
type IntentParams struct {
	OrderID       string
	AmountCents   int64
	PaymentMethod string
	ReceiptEmail  string

	// IdempotencyKey scopes the provider call to one payment attempt.
	// Empty falls back to the order id.
	IdempotencyKey string
}

// NewClient validates the key against the configured environment and binds
// a PaymentIntents client to it.
func NewClient(ctx context.Context, cfg config.StripeConfig, currency string, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}

	return &Client{
		intents:     &paymentintent.Client{B: stripe.GetBackend(stripe.APIBackend), Key: apiKey},
		environment: env,
		currency:    strings.ToLower(strings.TrimSpace(currency)),
		logg:        logg,
	}, nil
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// CreateIntent creates an unconfirmed PaymentIntent for the order. A retried
// create under the same attempt key returns the same intent.
func (c *Client) CreateIntent(ctx context.Context, p IntentParams) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(p.AmountCents),
		Currency:      stripe.String(c.currency),
		PaymentMethod: stripe.String(p.PaymentMethod),
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
		}),
	}
	if p.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(p.ReceiptEmail)
	}
	params.Context = ctx
	params.AddMetadata("order_id", p.OrderID)
	params.SetIdempotencyKey(attemptKey(p.IdempotencyKey, p.OrderID) + "-create")

	intent, err := c.intents.New(params)
	if err != nil {
		return nil, mapStripeError(err, "create payment intent")
	}
	c.logIntent(ctx, "stripe payment intent created", p.OrderID, intent)
	return intent, nil
}

// ConfirmIntent confirms a previously created intent under the attempt key.
func (c *Client) ConfirmIntent(ctx context.Context, orderID, intentID, paymentMethod, idempotencyKey string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(paymentMethod),
	}
	params.Context = ctx
	params.SetIdempotencyKey(attemptKey(idempotencyKey, orderID) + "-confirm")

	intent, err := c.intents.Confirm(intentID, params)
	if err != nil {
		return nil, mapStripeError(err, "confirm payment intent")
	}
	c.logIntent(ctx, "stripe payment intent confirmed", orderID, intent)
	return intent, nil
}

func attemptKey(key, orderID string) string {
	if key = strings.TrimSpace(key); key != "" {
		return key
	}
	return orderID
}

func (c *Client) logIntent(ctx context.Context, msg, orderID string, intent *stripe.PaymentIntent) {
	if c.logg == nil || intent == nil {
		return
	}
	c.logg.Info(c.logg.WithFields(ctx, map[string]any{
		"order_id":          orderID,
		"payment_intent_id": intent.ID,
		"status":            string(intent.Status),
	}), msg)
}

// mapStripeError classifies failures: rate limits, 5xx and connection errors
// are CodeDependency (transient); card and request errors are CodeProvider.
func mapStripeError(err error, op string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		code := pkgerrors.CodeProvider
		switch {
		case stripeErr.HTTPStatusCode == http.StatusTooManyRequests,
			stripeErr.HTTPStatusCode >= 500,
			stripeErr.Type == stripe.ErrorTypeAPI:
			code = pkgerrors.CodeDependency
		case stripeErr.Type == stripe.ErrorTypeIdempotency:
			code = pkgerrors.CodeIdempotency
		}
		return pkgerrors.Wrap(code, err, fmt.Sprintf("stripe %s failed", op)).
			WithDetails(map[string]any{"decline_code": string(stripeErr.DeclineCode), "stripe_code": string(stripeErr.Code)})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("stripe %s failed", op))
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
