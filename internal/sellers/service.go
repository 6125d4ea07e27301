package sellers

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Info is the display data shown next to a seller's sub-orders.
type Info struct {
	SellerID  string `json:"sellerId"`
	StoreName string `json:"storeName"`
}

type store interface {
	FindByID(ctx context.Context, id string) (*models.Seller, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Seller, error)
	Upsert(ctx context.Context, seller *models.Seller) error
}

// Directory resolves seller ids to store names.
type Directory struct {
	repo store
}

func NewDirectory(repo store) (*Directory, error) {
	if repo == nil {
		return nil, fmt.Errorf("sellers repository required")
	}
	return &Directory{repo: repo}, nil
}

// GetSellerInfo returns the seller's display info or a not-found error.
func (d *Directory) GetSellerInfo(ctx context.Context, sellerID string) (*Info, error) {
	seller, err := d.repo.FindByID(ctx, sellerID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
	}
	return &Info{SellerID: seller.ID, StoreName: seller.StoreName}, nil
}

// GetMany resolves a batch of ids in one query. Missing sellers are left out
// of the map so callers can fall back to the raw id.
func (d *Directory) GetMany(ctx context.Context, sellerIDs []string) (map[string]Info, error) {
	ids := lo.Uniq(lo.Compact(sellerIDs))
	rows, err := d.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sellers")
	}
	return lo.SliceToMap(rows, func(s models.Seller) (string, Info) {
		return s.ID, Info{SellerID: s.ID, StoreName: s.StoreName}
	}), nil
}

// Register adds or renames a seller.
func (d *Directory) Register(ctx context.Context, sellerID, storeName string) (*Info, error) {
	sellerID = strings.TrimSpace(sellerID)
	storeName = strings.TrimSpace(storeName)
	if sellerID == "" || storeName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id and store name are required")
	}
	seller := &models.Seller{ID: sellerID, StoreName: storeName}
	if err := d.repo.Upsert(ctx, seller); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save seller")
	}
	return &Info{SellerID: seller.ID, StoreName: seller.StoreName}, nil
}
