package repository

import (
	"context"
	"database/sql"
	"testing"

	"ecomOrderManagement/internal/testutil"
	"ecomOrderManagement/models"
)

// seedDashboardWorld builds a small shop with delivered, in-flight and
// cancelled orders so every aggregation has something to chew on.
func seedDashboardWorld(t *testing.T, d *sql.DB) {
	t.Helper()
	ctx := context.Background()
	categories := NewCategoryRepository(d)
	products := NewProductRepository(d)
	variants := NewVariantRepository(d)
	orders := NewOrderRepository(d)

	tees, err := categories.Create(ctx, "Tees", "")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	hoodies, err := categories.Create(ctx, "Hoodies", "")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}

	tee, err := products.Create(ctx, &models.Product{Name: "Classic Tee", Price: mustDec(t, "2000"), CategoryID: &tees.ID})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	hoodie, err := products.Create(ctx, &models.Product{Name: "Hoodie", Price: mustDec(t, "3500"), CategoryID: &hoodies.ID})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	capProduct, err := products.Create(ctx, &models.Product{Name: "Cap", Price: mustDec(t, "800")})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	for _, seed := range []struct {
		productID int64
		sold      int
	}{
		{tee.ID, 10},
		{hoodie.ID, 4},
		{capProduct.ID, 7},
	} {
		if err := products.IncrementSold(ctx, seed.productID, seed.sold); err != nil {
			t.Fatalf("seed sold counter: %v", err)
		}
	}

	for _, seed := range []struct {
		productID int64
		size      string
		stock     int
	}{
		{tee.ID, "M", 0},
		{tee.ID, "L", 3},
		{hoodie.ID, "M", 12},
		{capProduct.ID, "U", 2},
	} {
		if _, err := variants.Create(ctx, &models.ProductVariant{ProductID: seed.productID, Size: seed.size, Stock: seed.stock}); err != nil {
			t.Fatalf("seed variant: %v", err)
		}
	}

	for _, seed := range []struct {
		wilaya string
		dt     models.DeliveryType
		fee    string
		total  string
		status models.OrderStatus
		date   string
	}{
		{"Algiers", models.DeliveryTypeHome, "400", "4400", models.OrderStatusDelivered, "2025-02-10 09:00:00"},
		{"Oran", models.DeliveryTypeBureau, "250", "3750", models.OrderStatusDelivered, "2025-03-05 09:00:00"},
		{"Algiers", models.DeliveryTypeHome, "400", "2400", models.OrderStatusDelivered, "2025-03-12 09:00:00"},
		{"Algiers", models.DeliveryTypeHome, "600", "9999", models.OrderStatusConfirmed, "2025-03-15 09:00:00"},
		{"Oran", models.DeliveryTypeHome, "0", "100", models.OrderStatusCancelled, "2025-02-20 09:00:00"},
	} {
		o, err := orders.Create(ctx, &models.Order{
			CustomerName:  "Seed",
			CustomerPhone: "0500000000",
			Wilaya:        seed.wilaya,
			DeliveryType:  seed.dt,
			DeliveryFee:   mustDec(t, seed.fee),
		})
		if err != nil {
			t.Fatalf("seed order: %v", err)
		}
		if err := orders.UpdateStatus(ctx, o.ID, seed.status); err != nil {
			t.Fatalf("seed status: %v", err)
		}
		if err := orders.SetTotal(ctx, o.ID, mustDec(t, seed.total)); err != nil {
			t.Fatalf("seed total: %v", err)
		}
		setOrderDate(t, d, o.ID, seed.date)
	}
}

func TestStatsRepository_RevenueFigures(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "stats_repo_revenue")
	seedDashboardWorld(t, d)
	stats := NewStatsRepository(d)
	ctx := context.Background()

	// Only the three Delivered orders count toward money figures.
	revenue, err := stats.TotalRevenue(ctx)
	if err != nil {
		t.Fatalf("total revenue: %v", err)
	}
	if !revenue.Equal(mustDec(t, "10550")) {
		t.Errorf("revenue = %s, want 10550", revenue)
	}

	fees, err := stats.TotalDeliveryFees(ctx)
	if err != nil {
		t.Fatalf("total fees: %v", err)
	}
	if !fees.Equal(mustDec(t, "1050")) {
		t.Errorf("fees = %s, want 1050", fees)
	}

	aov, err := stats.AverageOrderValue(ctx)
	if err != nil {
		t.Fatalf("average order value: %v", err)
	}
	if !aov.Round(2).Equal(mustDec(t, "3516.67")) {
		t.Errorf("aov = %s, want ~3516.67", aov)
	}

	conv, err := stats.ConversionOverall(ctx)
	if err != nil {
		t.Fatalf("conversion: %v", err)
	}
	if conv.Total != 5 || conv.Delivered != 3 {
		t.Errorf("conversion counts = %+v", conv)
	}
	if conv.Conversion < 59.9 || conv.Conversion > 60.1 {
		t.Errorf("conversion = %f, want 60", conv.Conversion)
	}
}

func TestStatsRepository_StatusAndPeriodRollups(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "stats_repo_periods")
	seedDashboardWorld(t, d)
	stats := NewStatsRepository(d)
	ctx := context.Background()

	counts, err := stats.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("count by status: %v", err)
	}
	// Every status is present, zero or not, in lifecycle order.
	if len(counts) != len(models.OrderStatuses()) {
		t.Fatalf("got %d statuses, want %d", len(counts), len(models.OrderStatuses()))
	}
	byStatus := make(map[models.OrderStatus]int64)
	for _, c := range counts {
		byStatus[c.Status] = c.Count
	}
	if byStatus[models.OrderStatusDelivered] != 3 || byStatus[models.OrderStatusConfirmed] != 1 ||
		byStatus[models.OrderStatusCancelled] != 1 || byStatus[models.OrderStatusPending] != 0 {
		t.Errorf("status counts: %+v", byStatus)
	}

	monthlyRevenue, err := stats.RevenueByPeriod(ctx, "%Y-%m")
	if err != nil {
		t.Fatalf("revenue by period: %v", err)
	}
	if len(monthlyRevenue) != 2 {
		t.Fatalf("got %d periods, want 2: %+v", len(monthlyRevenue), monthlyRevenue)
	}
	if monthlyRevenue[0].Period != "2025-02" || !monthlyRevenue[0].Total.Equal(mustDec(t, "4400")) {
		t.Errorf("february: %+v", monthlyRevenue[0])
	}
	if monthlyRevenue[1].Period != "2025-03" || !monthlyRevenue[1].Total.Equal(mustDec(t, "6150")) {
		t.Errorf("march: %+v", monthlyRevenue[1])
	}

	monthlyOrders, err := stats.OrdersByPeriod(ctx, "%Y-%m")
	if err != nil {
		t.Fatalf("orders by period: %v", err)
	}
	if len(monthlyOrders) != 2 || monthlyOrders[0].Count != 1 || monthlyOrders[1].Count != 2 {
		t.Errorf("monthly orders: %+v", monthlyOrders)
	}

	// Trends read the last two periods.
	up := RevenueTrend(monthlyRevenue)
	if up.Direction != "up" || up.ChangePct <= 0 {
		t.Errorf("revenue trend = %+v, want up", up)
	}
	if tr := RevenueTrend(monthlyRevenue[:1]); tr.Direction != "insufficient_data" {
		t.Errorf("single-period trend = %+v", tr)
	}
	flat := OrdersTrend([]PeriodCount{{Period: "2025-02", Count: 2}, {Period: "2025-03", Count: 2}})
	if flat.Direction != "flat" || flat.ChangePct != 0 {
		t.Errorf("flat trend = %+v", flat)
	}
	down := OrdersTrend([]PeriodCount{{Period: "2025-02", Count: 4}, {Period: "2025-03", Count: 1}})
	if down.Direction != "down" || down.ChangePct != 75 {
		t.Errorf("down trend = %+v", down)
	}
}

func TestStatsRepository_WilayaAndCategoryRankings(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "stats_repo_rankings")
	seedDashboardWorld(t, d)
	stats := NewStatsRepository(d)
	ctx := context.Background()

	wilayas, err := stats.WilayaStats(ctx, 10)
	if err != nil {
		t.Fatalf("wilaya stats: %v", err)
	}
	if len(wilayas) != 2 {
		t.Fatalf("got %d wilayas, want 2: %+v", len(wilayas), wilayas)
	}
	// Algiers delivered more, so it ranks first.
	if wilayas[0].Wilaya != "Algiers" || wilayas[0].Total != 3 || wilayas[0].Delivered != 2 {
		t.Errorf("algiers: %+v", wilayas[0])
	}
	if wilayas[1].Wilaya != "Oran" || wilayas[1].Total != 2 || wilayas[1].Delivered != 1 {
		t.Errorf("oran: %+v", wilayas[1])
	}
	if wilayas[1].Conversion < 49.9 || wilayas[1].Conversion > 50.1 {
		t.Errorf("oran conversion = %f, want 50", wilayas[1].Conversion)
	}

	categories, err := stats.BestCategories(ctx, 10)
	if err != nil {
		t.Fatalf("best categories: %v", err)
	}
	if len(categories) != 2 {
		t.Fatalf("got %d categories, want 2: %+v", len(categories), categories)
	}
	if categories[0].Name != "Tees" || categories[0].TotalSold != 10 {
		t.Errorf("top category: %+v", categories[0])
	}
	if categories[1].Name != "Hoodies" || categories[1].TotalSold != 4 {
		t.Errorf("second category: %+v", categories[1])
	}
}

func TestStatsRepository_RestockAndDelivery(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "stats_repo_restock")
	seedDashboardWorld(t, d)
	stats := NewStatsRepository(d)
	ctx := context.Background()

	// Best sellers first; the healthy hoodie variant is not suggested.
	suggestions, err := stats.RestockSuggestions(ctx, 5, 5)
	if err != nil {
		t.Fatalf("restock suggestions: %v", err)
	}
	if len(suggestions) != 3 {
		t.Fatalf("got %d suggestions, want 3: %+v", len(suggestions), suggestions)
	}
	if suggestions[0].ProductName != "Classic Tee" || suggestions[0].Size != "M" || suggestions[0].Stock != 0 {
		t.Errorf("first suggestion: %+v", suggestions[0])
	}
	if suggestions[1].ProductName != "Classic Tee" || suggestions[1].Size != "L" {
		t.Errorf("second suggestion: %+v", suggestions[1])
	}
	if suggestions[2].ProductName != "Cap" || suggestions[2].Sold != 7 {
		t.Errorf("third suggestion: %+v", suggestions[2])
	}

	perf, err := stats.DeliveryPerf(ctx)
	if err != nil {
		t.Fatalf("delivery performance: %v", err)
	}
	if !perf.AverageFee.Round(2).Equal(mustDec(t, "350")) {
		t.Errorf("average fee = %s, want 350", perf.AverageFee)
	}
	if perf.TopDeliveryType != string(models.DeliveryTypeHome) {
		t.Errorf("top delivery type = %q, want Home", perf.TopDeliveryType)
	}
}

func TestStatsRepository_EmptyDatabase(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "stats_repo_empty")
	stats := NewStatsRepository(d)
	ctx := context.Background()

	revenue, err := stats.TotalRevenue(ctx)
	if err != nil {
		t.Fatalf("total revenue: %v", err)
	}
	if !revenue.IsZero() {
		t.Errorf("empty revenue = %s, want 0", revenue)
	}
	conv, err := stats.ConversionOverall(ctx)
	if err != nil {
		t.Fatalf("conversion: %v", err)
	}
	if conv.Total != 0 || conv.Conversion != 0 {
		t.Errorf("empty conversion = %+v", conv)
	}
	perf, err := stats.DeliveryPerf(ctx)
	if err != nil {
		t.Fatalf("delivery performance: %v", err)
	}
	if perf.TopDeliveryType != "" {
		t.Errorf("empty top delivery type = %q", perf.TopDeliveryType)
	}
	if suggestions, err := stats.RestockSuggestions(ctx, 5, 5); err != nil || len(suggestions) != 0 {
		t.Errorf("empty suggestions: %v %+v", err, suggestions)
	}
}
