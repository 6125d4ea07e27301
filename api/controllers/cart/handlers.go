package cart

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Store is the cart collaborator the handlers need.
type Store interface {
	Get(ctx context.Context, userID string) (*cartsvc.Cart, error)
	Put(ctx context.Context, userID string, items []models.LineItem) (*cartsvc.Cart, error)
}

type cartItemRequest struct {
	ProductID string          `json:"productId" validate:"required"`
	SellerID  string          `json:"sellerId" validate:"required"`
	Name      string          `json:"name" validate:"required"`
	Image     string          `json:"image,omitempty" validate:"omitempty,url"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity" validate:"min=1,max=999"`
}

type putCartRequest struct {
	Items []cartItemRequest `json:"items" validate:"max=100,dive"`
}

// CartFetch returns the caller's cart; a missing cart is empty.
func CartFetch(store Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart store unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		snapshot, err := store.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

// CartReplace overwrites the caller's cart with the submitted lines.
func CartReplace(store Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart store unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var payload putCartRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]models.LineItem, 0, len(payload.Items))
		for _, item := range payload.Items {
			items = append(items, models.LineItem{
				ProductID: item.ProductID,
				SellerID:  item.SellerID,
				Name:      item.Name,
				Image:     item.Image,
				Price:     item.Price,
				Quantity:  item.Quantity,
			})
		}

		snapshot, err := store.Put(r.Context(), userID, items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}
