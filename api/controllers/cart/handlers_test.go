package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type memoryStore struct {
	carts map[string][]models.LineItem
	err   error
}

func (m *memoryStore) Get(_ context.Context, userID string) (*cartsvc.Cart, error) {
	if m.err != nil {
		return nil, m.err
	}
	items := m.carts[userID]
	if items == nil {
		items = []models.LineItem{}
	}
	return &cartsvc.Cart{UserID: userID, Items: items}, nil
}

func (m *memoryStore) Put(_ context.Context, userID string, items []models.LineItem) (*cartsvc.Cart, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.carts[userID] = items
	return &cartsvc.Cart{UserID: userID, Items: items}, nil
}

func withUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(middleware.WithIdentity(req.Context(), auth.Identity{UserID: userID, Role: enums.RoleCustomer}))
}

func TestCartReplaceThenFetch(t *testing.T) {
	store := &memoryStore{carts: map[string][]models.LineItem{}}
	body := `{"items":[{"productId":"p1","sellerId":"s1","name":"Mug","price":"8.50","quantity":2}]}`

	rec := httptest.NewRecorder()
	CartReplace(store, nil)(rec, withUser(httptest.NewRequest(http.MethodPut, "/api/v1/cart", strings.NewReader(body)), "cust-1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, store.carts["cust-1"], 1)
	assert.Equal(t, "8.5", store.carts["cust-1"][0].Price.String())

	rec = httptest.NewRecorder()
	CartFetch(store, nil)(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil), "cust-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		Data cartsvc.Cart `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "cust-1", env.Data.UserID)
	assert.Equal(t, 2, env.Data.Items[0].Quantity)
}

func TestCartReplaceValidatesLines(t *testing.T) {
	store := &memoryStore{carts: map[string][]models.LineItem{}}
	body := `{"items":[{"productId":"p1","sellerId":"s1","name":"Mug","price":"1","quantity":0}]}`

	rec := httptest.NewRecorder()
	CartReplace(store, nil)(rec, withUser(httptest.NewRequest(http.MethodPut, "/api/v1/cart", strings.NewReader(body)), "cust-1"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "items[0].quantity")
	assert.Empty(t, store.carts)
}

func TestCartRequiresIdentity(t *testing.T) {
	rec := httptest.NewRecorder()
	CartFetch(&memoryStore{}, nil)(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCartFetchSurfacesStoreErrors(t *testing.T) {
	store := &memoryStore{err: pkgerrors.New(pkgerrors.CodeDependency, "load cart")}

	rec := httptest.NewRecorder()
	CartFetch(store, nil)(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil), "cust-1"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
