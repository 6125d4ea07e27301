package payments

import (
	"context"
	"encoding/json"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// CashAdapter covers cash-equivalent settlement. Nothing is charged
// remotely; the confirmation is synthesized as completed.
type CashAdapter struct {
	clock func() time.Time
}

func NewCashAdapter(clock func() time.Time) *CashAdapter {
	if clock == nil {
		clock = time.Now
	}
	return &CashAdapter{clock: clock}
}

func (a *CashAdapter) Provider() enums.PaymentProvider { return enums.PaymentProviderCash }

func (a *CashAdapter) ConfirmPayment(_ context.Context, req ConfirmRequest) (*Confirmation, error) {
	raw, err := json.Marshal(cashPayload{
		ID:         "cash-" + req.OrderID.String(),
		Status:     cashStatusCompleted,
		UpdateTime: a.clock().UTC(),
		PayerEmail: req.PayerEmail,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cash confirmation")
	}
	return &Confirmation{Provider: enums.PaymentProviderCash, Raw: raw}, nil
}
