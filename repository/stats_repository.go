package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"ecomOrderManagement/models"
)

// StatsRepository runs the read-only aggregations behind the owner dashboard.
// Revenue figures count Delivered orders only: money is not earned until the
// parcel arrives.
type StatsRepository struct {
	db *sql.DB
}

func NewStatsRepository(db *sql.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// StatusCount is the number of orders currently in one status.
type StatusCount struct {
	Status models.OrderStatus `json:"status"`
	Count  int64              `json:"count"`
}

// PeriodTotal is a revenue rollup for one period ("2025-03" or "2025-03-14").
type PeriodTotal struct {
	Period string          `json:"period"`
	Total  decimal.Decimal `json:"total"`
}

// PeriodCount is an order-count rollup for one period.
type PeriodCount struct {
	Period string `json:"period"`
	Count  int64  `json:"count"`
}

// WilayaStat reports per-wilaya volume and how much of it got delivered.
type WilayaStat struct {
	Wilaya     string  `json:"wilaya"`
	Total      int64   `json:"total_orders"`
	Delivered  int64   `json:"delivered_orders"`
	Conversion float64 `json:"conversion"`
}

// TotalRevenue sums the totals of all delivered orders.
func (r *StatsRepository) TotalRevenue(ctx context.Context) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var total decimal.Decimal
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(total_amount), 0) FROM orders WHERE status = ?`, string(models.OrderStatusDelivered)).Scan(&total)
	return total, err
}

// TotalDeliveryFees sums the delivery fees of all delivered orders.
func (r *StatsRepository) TotalDeliveryFees(ctx context.Context) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var total decimal.Decimal
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(delivery_fee), 0) FROM orders WHERE status = ?`, string(models.OrderStatusDelivered)).Scan(&total)
	return total, err
}

// AverageOrderValue returns the mean total of delivered orders, zero when
// nothing has been delivered yet.
func (r *StatsRepository) AverageOrderValue(ctx context.Context) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var avg decimal.Decimal
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(AVG(total_amount), 0) FROM orders WHERE status = ?`, string(models.OrderStatusDelivered)).Scan(&avg)
	return avg, err
}

// CountByStatus returns order counts per status, including zero-count
// statuses so dashboards always render the full pipeline.
func (r *StatsRepository) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(id) FROM orders GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.OrderStatus]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[models.OrderStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]StatusCount, 0, len(models.OrderStatuses()))
	for _, s := range models.OrderStatuses() {
		out = append(out, StatusCount{Status: s, Count: counts[s]})
	}
	return out, nil
}

// RevenueByPeriod groups delivered revenue by the given strftime layout,
// e.g. "%Y-%m" for monthly and "%Y-%m-%d" for daily rollups.
func (r *StatsRepository) RevenueByPeriod(ctx context.Context, layout string) ([]PeriodTotal, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
SELECT strftime(?, order_date) AS period, COALESCE(SUM(total_amount), 0)
FROM orders
WHERE status = ?
GROUP BY period
ORDER BY period`, layout, string(models.OrderStatusDelivered))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PeriodTotal
	for rows.Next() {
		var pt PeriodTotal
		if err := rows.Scan(&pt.Period, &pt.Total); err != nil {
			return nil, err
		}
		out = append(out, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// OrdersByPeriod groups delivered order counts by the given strftime layout.
func (r *StatsRepository) OrdersByPeriod(ctx context.Context, layout string) ([]PeriodCount, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
SELECT strftime(?, order_date) AS period, COUNT(id)
FROM orders
WHERE status = ?
GROUP BY period
ORDER BY period`, layout, string(models.OrderStatusDelivered))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PeriodCount
	for rows.Next() {
		var pc PeriodCount
		if err := rows.Scan(&pc.Period, &pc.Count); err != nil {
			return nil, err
		}
		out = append(out, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ConversionStat is the pipeline-wide capture-to-delivery rate.
type ConversionStat struct {
	Total      int64   `json:"total_orders"`
	Delivered  int64   `json:"delivered_orders"`
	Conversion float64 `json:"conversion"`
}

// CategoryStat aggregates sold units across a category's products.
type CategoryStat struct {
	CategoryID int64  `json:"category_id"`
	Name       string `json:"name"`
	TotalSold  int64  `json:"total_sold"`
}

// RestockSuggestion flags a fast-selling variant that is nearly gone.
type RestockSuggestion struct {
	VariantID   int64  `json:"variant_id"`
	ProductName string `json:"product_name"`
	Size        string `json:"size"`
	Stock       int    `json:"stock"`
	Sold        int64  `json:"sold"`
}

// DeliveryPerformance summarizes the shipping side of delivered orders.
type DeliveryPerformance struct {
	AverageFee      decimal.Decimal `json:"average_fee"`
	TopDeliveryType string          `json:"top_delivery_type"`
}

// ConversionOverall reports how many captured orders made it to Delivered.
func (r *StatsRepository) ConversionOverall(ctx context.Context) (ConversionStat, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var cs ConversionStat
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(id),
       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
FROM orders`, string(models.OrderStatusDelivered)).Scan(&cs.Total, &cs.Delivered)
	if err != nil {
		return ConversionStat{}, err
	}
	if cs.Total > 0 {
		cs.Conversion = float64(cs.Delivered) / float64(cs.Total) * 100
	}
	return cs, nil
}

// BestCategories ranks categories by total units sold across their products.
func (r *StatsRepository) BestCategories(ctx context.Context, limit int) ([]CategoryStat, error) {
	if limit <= 0 {
		limit = 10
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
SELECT c.id, c.name, COALESCE(SUM(p.sold), 0) AS total_sold
FROM categories c
LEFT JOIN products p ON p.category_id = c.id
GROUP BY c.id, c.name
ORDER BY total_sold DESC, c.name ASC
LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CategoryStat
	for rows.Next() {
		var cs CategoryStat
		if err := rows.Scan(&cs.CategoryID, &cs.Name, &cs.TotalSold); err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// RestockSuggestions lists variants at or below the threshold, ordered by how
// well their product sells. These are the SKUs worth reordering first.
func (r *StatsRepository) RestockSuggestions(ctx context.Context, threshold, limit int) ([]RestockSuggestion, error) {
	if threshold < 0 {
		threshold = 5
	}
	if limit <= 0 {
		limit = 5
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
SELECT v.id, p.name, v.size, v.stock, p.sold
FROM product_variants v
JOIN products p ON p.id = v.product_id
WHERE v.stock <= ?
ORDER BY p.sold DESC, v.stock ASC
LIMIT ?`, threshold, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RestockSuggestion
	for rows.Next() {
		var rs RestockSuggestion
		if err := rows.Scan(&rs.VariantID, &rs.ProductName, &rs.Size, &rs.Stock, &rs.Sold); err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeliveryPerf returns the average delivery fee of delivered orders and the
// delivery type that carried the most of them.
func (r *StatsRepository) DeliveryPerf(ctx context.Context) (DeliveryPerformance, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var dp DeliveryPerformance
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(AVG(delivery_fee), 0) FROM orders WHERE status = ?`,
		string(models.OrderStatusDelivered)).Scan(&dp.AverageFee)
	if err != nil {
		return DeliveryPerformance{}, err
	}
	var top sql.NullString
	err = r.db.QueryRowContext(ctx, `
SELECT delivery_type
FROM orders
WHERE status = ?
GROUP BY delivery_type
ORDER BY COUNT(id) DESC
LIMIT 1`, string(models.OrderStatusDelivered)).Scan(&top)
	if err != nil && err != sql.ErrNoRows {
		return DeliveryPerformance{}, err
	}
	if top.Valid {
		dp.TopDeliveryType = top.String
	}
	return dp, nil
}

// Trend compares the two most recent periods of a rollup.
type Trend struct {
	Direction string  `json:"direction"` // "up", "down", "flat" or "insufficient_data"
	ChangePct float64 `json:"change_pct"`
}

// RevenueTrend derives a month-over-month movement from a period rollup.
func RevenueTrend(monthly []PeriodTotal) Trend {
	if len(monthly) < 2 {
		return Trend{Direction: "insufficient_data"}
	}
	last := monthly[len(monthly)-1].Total
	prev := monthly[len(monthly)-2].Total
	return trendOf(last.InexactFloat64(), prev.InexactFloat64())
}

// OrdersTrend derives a month-over-month movement from a count rollup.
func OrdersTrend(monthly []PeriodCount) Trend {
	if len(monthly) < 2 {
		return Trend{Direction: "insufficient_data"}
	}
	return trendOf(float64(monthly[len(monthly)-1].Count), float64(monthly[len(monthly)-2].Count))
}

func trendOf(last, prev float64) Trend {
	switch {
	case last > prev:
		t := Trend{Direction: "up"}
		if prev != 0 {
			t.ChangePct = (last - prev) / prev * 100
		}
		return t
	case last < prev:
		t := Trend{Direction: "down"}
		if prev != 0 {
			t.ChangePct = (prev - last) / prev * 100
		}
		return t
	default:
		return Trend{Direction: "flat"}
	}
}

// WilayaStats returns per-wilaya order volume with delivery conversion,
// most-delivered first. A single GROUP BY replaces one query per wilaya.
func (r *StatsRepository) WilayaStats(ctx context.Context, limit int) ([]WilayaStat, error) {
	if limit <= 0 {
		limit = 48
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
SELECT wilaya,
       COUNT(id) AS total,
       SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS delivered
FROM orders
GROUP BY wilaya
ORDER BY delivered DESC, total DESC
LIMIT ?`, string(models.OrderStatusDelivered), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WilayaStat
	for rows.Next() {
		var ws WilayaStat
		if err := rows.Scan(&ws.Wilaya, &ws.Total, &ws.Delivered); err != nil {
			return nil, err
		}
		if ws.Total > 0 {
			ws.Conversion = float64(ws.Delivered) / float64(ws.Total) * 100
		}
		out = append(out, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
