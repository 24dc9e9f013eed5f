package httpserver

import (
	"net/http"

	"github.com/shopspring/decimal"

	"ecomOrderManagement/internal/auth"
	"ecomOrderManagement/models"
	"ecomOrderManagement/repository"
)

const (
	lowStockThreshold  = 5
	dashboardListLimit = 10
)

type stockWarning struct {
	VariantID   int64  `json:"variant_id"`
	ProductName string `json:"product_name"`
	Size        string `json:"size"`
	Stock       int    `json:"stock"`
	OutOfStock  bool   `json:"out_of_stock"`
}

type dashboardResponse struct {
	TotalRevenue       decimal.Decimal                `json:"total_revenue"`
	TotalDeliveryFees  decimal.Decimal                `json:"total_delivery_fees"`
	AverageOrderValue  decimal.Decimal                `json:"average_order_value"`
	Conversion         repository.ConversionStat      `json:"conversion"`
	StatusCounts       []repository.StatusCount       `json:"status_counts"`
	MonthlyRevenue     []repository.PeriodTotal       `json:"monthly_revenue"`
	MonthlyOrders      []repository.PeriodCount       `json:"monthly_orders"`
	RevenueTrend       repository.Trend               `json:"revenue_trend"`
	OrdersTrend        repository.Trend               `json:"orders_trend"`
	TopProducts        []models.Product               `json:"top_products"`
	BestCategories     []repository.CategoryStat      `json:"best_categories"`
	Wilayas            []repository.WilayaStat        `json:"wilayas"`
	Delivery           repository.DeliveryPerformance `json:"delivery"`
	StockWarnings      []stockWarning                 `json:"stock_warnings"`
	RestockSuggestions []repository.RestockSuggestion `json:"restock_suggestions"`
}

// dashboard assembles the full owner dashboard in one response. Every figure
// that involves money counts Delivered orders only.
func (h *handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireStaffOrAdmin(r.Context()); err != nil {
		respondError(w, r, err)
		return
	}
	ctx := r.Context()
	var (
		resp dashboardResponse
		err  error
	)
	if resp.TotalRevenue, err = h.d.Stats.TotalRevenue(ctx); err != nil {
		respondError(w, r, err)
		return
	}
	if resp.TotalDeliveryFees, err = h.d.Stats.TotalDeliveryFees(ctx); err != nil {
		respondError(w, r, err)
		return
	}
	if resp.AverageOrderValue, err = h.d.Stats.AverageOrderValue(ctx); err != nil {
		respondError(w, r, err)
		return
	}
	if resp.Conversion, err = h.d.Stats.ConversionOverall(ctx); err != nil {
		respondError(w, r, err)
		return
	}
	if resp.StatusCounts, err = h.d.Stats.CountByStatus(ctx); err != nil {
		respondError(w, r, err)
		return
	}
	if resp.MonthlyRevenue, err = h.d.Stats.RevenueByPeriod(ctx, "%Y-%m"); err != nil {
		respondError(w, r, err)
		return
	}
	if resp.MonthlyOrders, err = h.d.Stats.OrdersByPeriod(ctx, "%Y-%m"); err != nil {
		respondError(w, r, err)
		return
	}
	resp.RevenueTrend = repository.RevenueTrend(resp.MonthlyRevenue)
	resp.OrdersTrend = repository.OrdersTrend(resp.MonthlyOrders)

	if resp.TopProducts, err = h.d.Products.ListTopSold(ctx, dashboardListLimit); err != nil {
		respondError(w, r, err)
		return
	}
	if resp.BestCategories, err = h.d.Stats.BestCategories(ctx, dashboardListLimit); err != nil {
		respondError(w, r, err)
		return
	}
	if resp.Wilayas, err = h.d.Stats.WilayaStats(ctx, dashboardListLimit); err != nil {
		respondError(w, r, err)
		return
	}
	if resp.Delivery, err = h.d.Stats.DeliveryPerf(ctx); err != nil {
		respondError(w, r, err)
		return
	}

	low, err := h.d.Variants.ListLowStock(ctx, lowStockThreshold, 2*dashboardListLimit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	resp.StockWarnings = make([]stockWarning, 0, len(low))
	for _, v := range low {
		resp.StockWarnings = append(resp.StockWarnings, stockWarning{
			VariantID:   v.ID,
			ProductName: v.ProductName,
			Size:        v.Size,
			Stock:       v.Stock,
			OutOfStock:  v.Stock == 0,
		})
	}
	if resp.RestockSuggestions, err = h.d.Stats.RestockSuggestions(ctx, lowStockThreshold, lowStockThreshold); err != nil {
		respondError(w, r, err)
		return
	}
	if resp.TopProducts == nil {
		resp.TopProducts = []models.Product{}
	}
	if resp.RestockSuggestions == nil {
		resp.RestockSuggestions = []repository.RestockSuggestion{}
	}
	respondJSON(w, http.StatusOK, resp)
}

// periodLayouts maps the series granularities to SQLite strftime layouts.
// Weeks follow strftime %W (Monday-started, zero-padded week of year).
var periodLayouts = map[string]string{
	"day":   "%Y-%m-%d",
	"week":  "%Y-%W",
	"month": "%Y-%m",
}

// statsSeries returns the revenue and order-count series at a chosen
// granularity; the dashboard itself always reports monthly.
func (h *handlers) statsSeries(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireStaffOrAdmin(r.Context()); err != nil {
		respondError(w, r, err)
		return
	}
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "month"
	}
	layout, ok := periodLayouts[period]
	if !ok {
		respondError(w, r, invalidInputf("unknown period %q, want day, week or month", period))
		return
	}
	revenue, err := h.d.Stats.RevenueByPeriod(r.Context(), layout)
	if err != nil {
		respondError(w, r, err)
		return
	}
	orders, err := h.d.Stats.OrdersByPeriod(r.Context(), layout)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if revenue == nil {
		revenue = []repository.PeriodTotal{}
	}
	if orders == nil {
		orders = []repository.PeriodCount{}
	}
	respondJSON(w, http.StatusOK, struct {
		Period  string                   `json:"period"`
		Revenue []repository.PeriodTotal `json:"revenue"`
		Orders  []repository.PeriodCount `json:"orders"`
	}{Period: period, Revenue: revenue, Orders: orders})
}
