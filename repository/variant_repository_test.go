package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"ecomOrderManagement/internal/testutil"
	"ecomOrderManagement/models"
)

func TestVariantRepository_GuardedStockMovements(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "variant_repo_stock")
	variants := NewVariantRepository(d)
	ctx := context.Background()

	_, v := seedProductWithVariant(t, d, "Classic Tee", "M", "2000", 5)

	stockOf := func() int {
		t.Helper()
		got, err := variants.GetByID(ctx, v.ID)
		if err != nil {
			t.Fatalf("get variant: %v", err)
		}
		return got.Stock
	}

	// Decrement within stock succeeds.
	ok, err := variants.DecrementStock(ctx, v.ID, 3)
	if err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if !ok {
		t.Fatal("decrement of 3 from 5 should succeed")
	}
	if got := stockOf(); got != 2 {
		t.Errorf("stock = %d, want 2", got)
	}

	// The guard refuses to go below zero and leaves stock untouched.
	ok, err = variants.DecrementStock(ctx, v.ID, 3)
	if err != nil {
		t.Fatalf("guarded decrement: %v", err)
	}
	if ok {
		t.Error("decrement of 3 from 2 should be refused")
	}
	if got := stockOf(); got != 2 {
		t.Errorf("stock after refused decrement = %d, want 2", got)
	}

	// Taking exactly the remainder is allowed.
	ok, err = variants.DecrementStock(ctx, v.ID, 2)
	if err != nil {
		t.Fatalf("decrement to zero: %v", err)
	}
	if !ok {
		t.Error("decrement of exactly the remaining stock should succeed")
	}
	if got := stockOf(); got != 0 {
		t.Errorf("stock = %d, want 0", got)
	}

	// Returns put stock back.
	if err := variants.IncrementStock(ctx, v.ID, 4); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if got := stockOf(); got != 4 {
		t.Errorf("stock after increment = %d, want 4", got)
	}

	// Movements of a missing variant are loud, not silent.
	if err := variants.IncrementStock(ctx, 99999, 1); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("increment missing variant: got %v, want sql.ErrNoRows", err)
	}
	if _, err := variants.DecrementStock(ctx, v.ID, 0); err == nil {
		t.Error("decrement of zero should be rejected")
	}
}

func TestVariantRepository_CheckAvailable(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "variant_repo_check")
	variants := NewVariantRepository(d)
	ctx := context.Background()

	_, vM := seedProductWithVariant(t, d, "Classic Tee", "M", "2000", 5)
	vL, err := variants.Create(ctx, &models.ProductVariant{ProductID: vM.ProductID, Size: "L", Stock: 1})
	if err != nil {
		t.Fatalf("create second variant: %v", err)
	}

	// All covered: no shortfalls.
	short, err := variants.CheckAvailable(ctx, []models.StockRequirement{
		{VariantID: vM.ID, Quantity: 5},
		{VariantID: vL.ID, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("check available: %v", err)
	}
	if len(short) != 0 {
		t.Errorf("expected no shortfalls, got %+v", short)
	}

	// One covered, one short: only the failing variant is reported, with a
	// human-readable label and both sides of the comparison.
	short, err = variants.CheckAvailable(ctx, []models.StockRequirement{
		{VariantID: vM.ID, Quantity: 2},
		{VariantID: vL.ID, Quantity: 3},
	})
	if err != nil {
		t.Fatalf("check available: %v", err)
	}
	if len(short) != 1 {
		t.Fatalf("expected 1 shortfall, got %+v", short)
	}
	sf := short[0]
	if sf.VariantID != vL.ID || sf.Requested != 3 || sf.Available != 1 {
		t.Errorf("shortfall = %+v", sf)
	}
	if sf.Label == "" {
		t.Error("shortfall label should name the product and size")
	}

	// Unknown variants count as zero stock rather than vanishing from the
	// answer; an order pointing at a deleted variant must not pass.
	short, err = variants.CheckAvailable(ctx, []models.StockRequirement{{VariantID: 99999, Quantity: 1}})
	if err != nil {
		t.Fatalf("check unknown variant: %v", err)
	}
	if len(short) != 1 || short[0].Available != 0 {
		t.Errorf("unknown variant shortfall = %+v", short)
	}

	// Aggregation folds duplicate lines of one variant into a single demand.
	reqs := models.AggregateRequirements([]models.OrderItem{
		{VariantID: vM.ID, Quantity: 3},
		{VariantID: vM.ID, Quantity: 3},
	})
	if len(reqs) != 1 || reqs[0].Quantity != 6 {
		t.Fatalf("aggregated reqs = %+v", reqs)
	}
	short, err = variants.CheckAvailable(ctx, reqs)
	if err != nil {
		t.Fatalf("check aggregated: %v", err)
	}
	if len(short) != 1 || short[0].Requested != 6 || short[0].Available != 5 {
		t.Errorf("aggregated shortfall = %+v", short)
	}

	// Empty input short-circuits.
	short, err = variants.CheckAvailable(ctx, nil)
	if err != nil || short != nil {
		t.Errorf("empty check: short=%v err=%v", short, err)
	}
}

func TestVariantRepository_UpdateAndSetStock(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "variant_repo_update")
	variants := NewVariantRepository(d)
	ctx := context.Background()

	_, v := seedProductWithVariant(t, d, "Hoodie", "M", "3500", 2)

	v.Size = "XL"
	v.Price = decimal.NewNullDecimal(mustDec(t, "3900"))
	if err := variants.Update(ctx, v); err != nil {
		t.Fatalf("update variant: %v", err)
	}
	got, err := variants.GetByID(ctx, v.ID)
	if err != nil {
		t.Fatalf("get variant: %v", err)
	}
	if got.Size != "XL" {
		t.Errorf("size = %q, want XL", got.Size)
	}
	if !got.Price.Valid || !got.Price.Decimal.Equal(mustDec(t, "3900")) {
		t.Errorf("price override = %+v, want 3900", got.Price)
	}

	// SetStock is the absolute restock write.
	if err := variants.SetStock(ctx, v.ID, 40); err != nil {
		t.Fatalf("set stock: %v", err)
	}
	got, err = variants.GetByID(ctx, v.ID)
	if err != nil {
		t.Fatalf("get variant: %v", err)
	}
	if got.Stock != 40 {
		t.Errorf("stock = %d, want 40", got.Stock)
	}

	if err := variants.SetStock(ctx, 99999, 1); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("set stock on missing variant: got %v, want sql.ErrNoRows", err)
	}
}

func TestVariantRepository_DeleteBlockedByOrderLines(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "variant_repo_delete")
	variants := NewVariantRepository(d)
	orders := NewOrderRepository(d)
	items := NewOrderItemRepository(d)
	ctx := context.Background()

	_, v := seedProductWithVariant(t, d, "Classic Tee", "M", "2000", 5)
	o, err := orders.Create(ctx, &models.Order{
		CustomerName:  "Amina B",
		CustomerPhone: "0550000000",
		Wilaya:        "Algiers",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := items.Create(ctx, &models.OrderItem{OrderID: o.ID, VariantID: v.ID, Quantity: 1, Price: mustDec(t, "2000")}); err != nil {
		t.Fatalf("create item: %v", err)
	}

	// Referenced variants cannot be deleted; order history keeps its rows.
	err = variants.Delete(ctx, v.ID)
	if !errors.Is(err, ErrVariantInUse) {
		t.Fatalf("delete referenced variant: got %v, want ErrVariantInUse", err)
	}

	// Once the line is gone the variant can go too.
	if err := items.DeleteByOrderID(ctx, o.ID); err != nil {
		t.Fatalf("delete items: %v", err)
	}
	if err := variants.Delete(ctx, v.ID); err != nil {
		t.Fatalf("delete unreferenced variant: %v", err)
	}
	gone, err := variants.GetByID(ctx, v.ID)
	if err != nil {
		t.Fatalf("get variant: %v", err)
	}
	if gone != nil {
		t.Errorf("variant still present after delete: %+v", gone)
	}
}

func TestVariantRepository_ListLowStock(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "variant_repo_low")
	variants := NewVariantRepository(d)
	ctx := context.Background()

	p, _ := seedProductWithVariant(t, d, "Classic Tee", "S", "2000", 0)
	for _, seed := range []struct {
		size  string
		stock int
	}{
		{"M", 3},
		{"L", 5},
		{"XL", 12},
	} {
		if _, err := variants.Create(ctx, &models.ProductVariant{ProductID: p.ID, Size: seed.size, Stock: seed.stock}); err != nil {
			t.Fatalf("create variant %s: %v", seed.size, err)
		}
	}

	low, err := variants.ListLowStock(ctx, 5, 10)
	if err != nil {
		t.Fatalf("list low stock: %v", err)
	}
	if len(low) != 3 {
		t.Fatalf("got %d low variants, want 3 (threshold 5)", len(low))
	}
	// Emptiest first, healthy stock excluded.
	wantSizes := []string{"S", "M", "L"}
	for i, v := range low {
		if v.Size != wantSizes[i] {
			t.Errorf("position %d = size %q, want %q", i, v.Size, wantSizes[i])
		}
		if v.ProductName != "Classic Tee" {
			t.Errorf("product name not hydrated: %+v", v)
		}
	}
}
