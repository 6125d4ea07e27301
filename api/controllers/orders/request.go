package orders

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type billingRequest struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"required"`
	Address    string `json:"address" validate:"required"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country" validate:"required"`
}

func (b billingRequest) toModel() models.BillingInfo {
	return models.BillingInfo{
		Name:       b.Name,
		Email:      b.Email,
		Phone:      b.Phone,
		Address:    b.Address,
		City:       b.City,
		PostalCode: b.PostalCode,
		Country:    b.Country,
	}
}

type createOrderRequest struct {
	BillingInfo billingRequest  `json:"billingInfo" validate:"required"`
	Shipping    decimal.Decimal `json:"shipping"`
	Tax         decimal.Decimal `json:"tax"`
}

type payOrderRequest struct {
	Provider     string           `json:"provider" validate:"required"`
	PaymentToken string           `json:"paymentToken"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type resolveRequest struct {
	Action     string     `json:"action" validate:"required,oneof=approve reject"`
	SubOrderID *uuid.UUID `json:"subOrderId,omitempty"`
}

type refundOrderRequest struct {
	SubOrderID *uuid.UUID `json:"subOrderId,omitempty"`
	Reason     string     `json:"reason" validate:"required,max=500"`
	Evidence   []string   `json:"evidence" validate:"max=10"`
}

// actorFrom resolves the authenticated caller set by the Auth middleware.
func actorFrom(r *http.Request) (internalorders.Actor, error) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok || identity.UserID == "" {
		return internalorders.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return internalorders.Actor{UserID: identity.UserID, Role: identity.Role}, nil
}
