package orders

import (
	"fmt"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestComputeTotals(t *testing.T) {
	items := []models.LineItem{
		{Price: decimal.RequireFromString("19.99"), Quantity: 3},
		{Price: decimal.RequireFromString("0.01"), Quantity: 1},
	}

	totals := ComputeTotals(items, decimal.RequireFromString("4.50"), decimal.RequireFromString("5.10"))

	assert.True(t, totals.Amount.Equal(decimal.RequireFromString("59.98")), totals.Amount.String())
	assert.True(t, totals.Price.Equal(decimal.RequireFromString("69.58")), totals.Price.String())
}

func TestPartitionBySellerKeepsFirstAppearanceOrder(t *testing.T) {
	items := AssignLineIDs([]models.LineItem{
		{ProductID: "p1", SellerID: "s2", Price: decimal.NewFromInt(1), Quantity: 1},
		{ProductID: "p2", SellerID: "s1", Price: decimal.NewFromInt(2), Quantity: 1},
		{ProductID: "p3", SellerID: "s2", Price: decimal.NewFromInt(3), Quantity: 2},
	})

	subs := PartitionBySeller(items)

	require.Len(t, subs, 2)
	assert.Equal(t, "s2", subs[0].SellerID)
	assert.Equal(t, []string{"p1", "p3"}, []string{subs[0].Items[0].ProductID, subs[0].Items[1].ProductID})
	assert.True(t, subs[0].Subtotal.Equal(decimal.NewFromInt(7)))
	assert.Equal(t, "s1", subs[1].SellerID)
}

func TestAssignLineIDsKeepsExisting(t *testing.T) {
	items := AssignLineIDs([]models.LineItem{{LineID: "keep"}, {}})
	assert.Equal(t, "keep", items[0].LineID)
	assert.NotEmpty(t, items[1].LineID)
}

func TestAssignLineIDsTrimsSellerAndProduct(t *testing.T) {
	items := AssignLineIDs([]models.LineItem{
		{ProductID: " p1 ", SellerID: " seller-a ", Price: decimal.NewFromInt(1), Quantity: 1},
		{ProductID: "p2", SellerID: "seller-a", Price: decimal.NewFromInt(2), Quantity: 1},
	})

	assert.Equal(t, "p1", items[0].ProductID)
	assert.Equal(t, "seller-a", items[0].SellerID)

	subs := PartitionBySeller(items)
	require.Len(t, subs, 1)
	assert.Equal(t, "seller-a", subs[0].SellerID)
	assert.Len(t, subs[0].Items, 2)
	require.NoError(t, VerifyPartition(items, subs))
}

func TestVerifyPartitionRejectsBrokenSplits(t *testing.T) {
	snapshot := []models.LineItem{
		{LineID: "l1", SellerID: "s1"},
		{LineID: "l2", SellerID: "s2"},
	}

	cases := map[string][]models.SubOrder{
		"omission": {
			{SellerID: "s1", Items: []models.LineItem{snapshot[0]}},
		},
		"overlap": {
			{SellerID: "s1", Items: []models.LineItem{snapshot[0]}},
			{SellerID: "s2", Items: []models.LineItem{snapshot[1], snapshot[1]}},
		},
		"wrong seller": {
			{SellerID: "s1", Items: []models.LineItem{snapshot[0], snapshot[1]}},
		},
		"unknown line": {
			{SellerID: "s1", Items: []models.LineItem{snapshot[0]}},
			{SellerID: "s2", Items: []models.LineItem{snapshot[1], {LineID: "l9", SellerID: "s2"}}},
		},
	}
	for name, subs := range cases {
		t.Run(name, func(t *testing.T) {
			err := VerifyPartition(snapshot, subs)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
		})
	}

	dup := []models.LineItem{{LineID: "l1", SellerID: "s1"}, {LineID: "l1", SellerID: "s1"}}
	assert.Error(t, VerifyPartition(dup, nil))
}

func TestPartitionPropertyOnRandomCarts(t *testing.T) {
	faker := gofakeit.New(20250310)

	for run := 0; run < 200; run++ {
		sellerCount := faker.IntRange(1, 6)
		lines := faker.IntRange(1, 25)
		cart := make([]models.LineItem, 0, lines)
		for i := 0; i < lines; i++ {
			cart = append(cart, models.LineItem{
				ProductID: faker.UUID(),
				SellerID:  fmt.Sprintf("seller-%d", faker.IntRange(1, sellerCount)),
				Name:      faker.ProductName(),
				Price:     decimal.NewFromFloat(faker.Price(0, 900)).Round(2),
				Quantity:  faker.IntRange(1, 4),
			})
		}

		items := AssignLineIDs(cart)
		subs := PartitionBySeller(items)

		require.NoError(t, VerifyPartition(items, subs), "run %d", run)

		sellers := map[string]bool{}
		sum := decimal.Zero
		count := 0
		for _, sub := range subs {
			assert.False(t, sellers[sub.SellerID], "one sub-order per seller")
			sellers[sub.SellerID] = true
			sum = sum.Add(sub.Subtotal)
			count += len(sub.Items)
		}
		assert.Equal(t, len(items), count)
		assert.True(t, sum.Equal(ComputeTotals(items, decimal.Zero, decimal.Zero).Amount), "run %d", run)
	}
}
