package orders

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Totals are the server-computed money fields of a TotalOrder.
type Totals struct {
	Amount   decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Price    decimal.Decimal
}

// ComputeTotals sums price x quantity over the snapshot and adds shipping and tax.
func ComputeTotals(items []models.LineItem, shipping, tax decimal.Decimal) Totals {
	amount := lo.Reduce(items, func(acc decimal.Decimal, item models.LineItem, _ int) decimal.Decimal {
		return acc.Add(item.Subtotal())
	}, decimal.Zero)
	return Totals{
		Amount:   amount,
		Shipping: shipping,
		Tax:      tax,
		Price:    amount.Add(shipping).Add(tax),
	}
}

// AssignLineIDs returns a copy of items where every line carries a line id.
// Ids already present are kept. Seller and product ids are trimmed so that
// partitioning groups " seller-a " with "seller-a".
func AssignLineIDs(items []models.LineItem) []models.LineItem {
	return lo.Map(items, func(item models.LineItem, _ int) models.LineItem {
		item.SellerID = strings.TrimSpace(item.SellerID)
		item.ProductID = strings.TrimSpace(item.ProductID)
		if strings.TrimSpace(item.LineID) == "" {
			item.LineID = uuid.NewString()
		}
		return item
	})
}

// PartitionBySeller splits the snapshot into one pending sub-order per
// seller. Sub-orders follow the seller's first appearance in the snapshot and
// each keeps snapshot order for its items.
func PartitionBySeller(items []models.LineItem) []models.SubOrder {
	groups := lo.GroupBy(items, func(item models.LineItem) string { return item.SellerID })
	sellers := lo.Uniq(lo.Map(items, func(item models.LineItem, _ int) string { return item.SellerID }))

	return lo.Map(sellers, func(sellerID string, _ int) models.SubOrder {
		lines := groups[sellerID]
		return models.SubOrder{
			SellerID:     sellerID,
			Items:        lines,
			Subtotal:     ComputeTotals(lines, decimal.Zero, decimal.Zero).Amount,
			Status:       enums.OrderStatusPending,
			RefundStatus: enums.RefundStatusNone,
		}
	})
}

// VerifyPartition checks that the sub-orders cover the snapshot exactly:
// every line appears in one sub-order owned by the line's seller, with no
// duplicates and nothing extra.
func VerifyPartition(snapshot []models.LineItem, subOrders []models.SubOrder) error {
	expected := lo.SliceToMap(snapshot, func(item models.LineItem) (string, models.LineItem) {
		return item.LineID, item
	})
	if len(expected) != len(snapshot) {
		return pkgerrors.New(pkgerrors.CodeInternal, "snapshot contains duplicate line ids")
	}

	seen := make(map[string]struct{}, len(snapshot))
	for _, sub := range subOrders {
		for _, item := range sub.Items {
			want, ok := expected[item.LineID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("sub-order line %s is not in the snapshot", item.LineID))
			}
			if _, dup := seen[item.LineID]; dup {
				return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("line %s assigned to more than one sub-order", item.LineID))
			}
			if want.SellerID != sub.SellerID {
				return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("line %s placed in seller %s sub-order", item.LineID, sub.SellerID))
			}
			seen[item.LineID] = struct{}{}
		}
	}

	missing := lo.Filter(snapshot, func(item models.LineItem, _ int) bool {
		_, ok := seen[item.LineID]
		return !ok
	})
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("line %s missing from sub-orders", missing[0].LineID))
	}
	return nil
}
