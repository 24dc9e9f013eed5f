package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ecomOrderManagement/internal/testutil"
	"ecomOrderManagement/models"
)

func TestProductRepository_ListFilters(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "product_filters")
	ctx := context.Background()
	products := NewProductRepository(d)
	variants := NewVariantRepository(d)
	categories := NewCategoryRepository(d)

	tees, err := categories.Create(ctx, "Tees", "")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	hoodies, err := categories.Create(ctx, "Hoodies", "")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}

	// Four products created in the same second; listings fall back to id desc.
	classic, err := products.Create(ctx, &models.Product{Name: "Classic Tee", Price: mustDec(t, "2000"), CategoryID: &tees.ID})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	sale, err := products.Create(ctx, &models.Product{
		Name: "Sale Tee", Price: mustDec(t, "2000"),
		DiscountPrice: decimal.NewNullDecimal(mustDec(t, "500")),
		CategoryID:    &tees.ID,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	hoodie, err := products.Create(ctx, &models.Product{Name: "Winter Hoodie", Price: mustDec(t, "3500"), CategoryID: &hoodies.ID})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if _, err = products.Create(ctx, &models.Product{Name: "Cap", Price: mustDec(t, "800")}); err != nil {
		t.Fatalf("create product: %v", err)
	}

	// Stock: Classic Tee 5, Sale Tee 0, Winter Hoodie 3, Cap has no variants.
	if _, err = variants.Create(ctx, &models.ProductVariant{ProductID: classic.ID, Size: "M", Stock: 5}); err != nil {
		t.Fatalf("create variant: %v", err)
	}
	if _, err = variants.Create(ctx, &models.ProductVariant{ProductID: sale.ID, Size: "M", Stock: 0}); err != nil {
		t.Fatalf("create variant: %v", err)
	}
	if _, err = variants.Create(ctx, &models.ProductVariant{ProductID: hoodie.ID, Size: "L", Stock: 3}); err != nil {
		t.Fatalf("create variant: %v", err)
	}

	assertNames := func(got []models.Product, want ...string) {
		t.Helper()
		if len(got) != len(want) {
			t.Fatalf("got %d products, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i].Name != want[i] {
				t.Fatalf("position %d: got %q, want %q", i, got[i].Name, want[i])
			}
		}
	}

	list := func(p ListProductsParams) []models.Product {
		t.Helper()
		out, listErr := products.List(ctx, p)
		if listErr != nil {
			t.Fatalf("list products: %v", listErr)
		}
		return out
	}

	// 1. Unfiltered, newest first.
	assertNames(list(ListProductsParams{}), "Cap", "Winter Hoodie", "Sale Tee", "Classic Tee")

	// 2. Category and search filters.
	assertNames(list(ListProductsParams{CategoryID: &tees.ID}), "Sale Tee", "Classic Tee")
	search := "Tee"
	assertNames(list(ListProductsParams{Search: &search}), "Sale Tee", "Classic Tee")

	// 3. Price bounds apply to the effective price: the Sale Tee counts as
	// 1500, not its list price of 2000.
	minPrice := mustDec(t, "1600")
	assertNames(list(ListProductsParams{PriceMin: &minPrice}), "Winter Hoodie", "Classic Tee")
	maxPrice := mustDec(t, "1500")
	assertNames(list(ListProductsParams{PriceMax: &maxPrice}), "Cap", "Sale Tee")
	lo, hi := mustDec(t, "1000"), mustDec(t, "2000")
	assertNames(list(ListProductsParams{PriceMin: &lo, PriceMax: &hi}), "Sale Tee", "Classic Tee")

	// 4. In-stock needs at least one variant with stock; a zero-stock variant
	// or no variants at all both drop the product.
	assertNames(list(ListProductsParams{InStock: true}), "Winter Hoodie", "Classic Tee")
	assertNames(list(ListProductsParams{InStock: true, CategoryID: &tees.ID}), "Classic Tee")

	// 5. Paging.
	assertNames(list(ListProductsParams{Limit: 2}), "Cap", "Winter Hoodie")
	assertNames(list(ListProductsParams{Limit: 2, Offset: 2}), "Sale Tee", "Classic Tee")
}

func TestProductRepository_Shelves(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "product_shelves")
	ctx := context.Background()
	products := NewProductRepository(d)

	tee, err := products.Create(ctx, &models.Product{
		Name: "Classic Tee", Price: mustDec(t, "2000"),
		DiscountPrice: decimal.NewNullDecimal(mustDec(t, "300")),
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	hoodie, err := products.Create(ctx, &models.Product{Name: "Winter Hoodie", Price: mustDec(t, "3500")})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	capProduct, err := products.Create(ctx, &models.Product{Name: "Cap", Price: mustDec(t, "800")})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	// 1. Discounted shelf only carries the tee.
	discounted, err := products.ListDiscounted(ctx, 10)
	if err != nil {
		t.Fatalf("list discounted: %v", err)
	}
	if len(discounted) != 1 || discounted[0].ID != tee.ID {
		t.Fatalf("discounted shelf = %v, want only product %d", discounted, tee.ID)
	}

	// 2. Top sellers order by the sold counter and skip never-sold products.
	if err = products.IncrementSold(ctx, tee.ID, 7); err != nil {
		t.Fatalf("increment sold: %v", err)
	}
	if err = products.IncrementSold(ctx, hoodie.ID, 2); err != nil {
		t.Fatalf("increment sold: %v", err)
	}
	top, err := products.ListTopSold(ctx, 10)
	if err != nil {
		t.Fatalf("list top sold: %v", err)
	}
	if len(top) != 2 || top[0].ID != tee.ID || top[1].ID != hoodie.ID {
		t.Fatalf("top sellers = %v, want [%d %d]", top, tee.ID, hoodie.ID)
	}

	// 3. The new-products shelf cuts off on created_at. Backdate the cap past
	// the window and it disappears.
	if _, err = d.ExecContext(ctx, `UPDATE products SET created_at = datetime('now', '-10 days') WHERE id = ?`, capProduct.ID); err != nil {
		t.Fatalf("backdate product: %v", err)
	}
	cutoff := time.Now().UTC().Add(-models.NewProductWindow)
	fresh, err := products.ListNew(ctx, cutoff, 10)
	if err != nil {
		t.Fatalf("list new: %v", err)
	}
	if len(fresh) != 2 {
		t.Fatalf("got %d new products, want 2", len(fresh))
	}
	for _, p := range fresh {
		if p.ID == capProduct.ID {
			t.Fatalf("backdated product %d still on the new shelf", capProduct.ID)
		}
	}
	none, err := products.ListNew(ctx, time.Now().UTC().Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("list new: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("future cutoff returned %d products, want 0", len(none))
	}
}
