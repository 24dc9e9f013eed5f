package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"ecomOrderManagement/models"
)

// ListOrdersParams represents filters and pagination for List.
type ListOrdersParams struct {
	Statuses     []models.OrderStatus
	Wilaya       *string
	DeliveryType *models.DeliveryType
	Search       *string // matches customer_name or customer_phone, substring
	DateFrom     *string // optional inclusive lower bound on order_date
	DateTo       *string // optional inclusive upper bound on order_date
	PageSize     int
	AfterSeconds int64 // keyset cursor: order_date unix seconds
	AfterID      int64 // keyset cursor: order id
}

// List returns orders matching filters ordered by order_date desc, id desc
// with keyset pagination.
func (r *OrderRepository) List(ctx context.Context, p ListOrdersParams) ([]models.Order, error) {
	if p.PageSize <= 0 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var where []string
	var args []any

	if len(p.Statuses) > 0 {
		placeholders := make([]string, len(p.Statuses))
		for i, s := range p.Statuses {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		where = append(where, "status IN ("+strings.Join(placeholders, ",")+")")
	}
	if p.Wilaya != nil {
		where = append(where, "wilaya = ?")
		args = append(args, *p.Wilaya)
	}
	if p.DeliveryType != nil {
		where = append(where, "delivery_type = ?")
		args = append(args, string(*p.DeliveryType))
	}
	if p.Search != nil && *p.Search != "" {
		where = append(where, "(customer_name LIKE ? OR customer_phone LIKE ?)")
		like := "%" + *p.Search + "%"
		args = append(args, like, like)
	}
	if p.DateFrom != nil {
		where = append(where, "order_date >= ?")
		args = append(args, *p.DateFrom)
	}
	if p.DateTo != nil {
		where = append(where, "order_date <= ?")
		args = append(args, *p.DateTo)
	}
	if p.AfterSeconds > 0 && p.AfterID > 0 {
		where = append(where, "(CAST(strftime('%s', order_date) AS INTEGER) < ? OR (CAST(strftime('%s', order_date) AS INTEGER) = ? AND id < ?))")
		args = append(args, p.AfterSeconds, p.AfterSeconds, p.AfterID)
	}

	query := `SELECT id, customer_name, customer_phone, delivery_type, delivery_fee, wilaya, commune, status, order_date, confirmed_at, on_the_way_at, delivered_at, returned_at, cancelled_at, total_amount FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY order_date DESC, id DESC LIMIT ?"
	args = append(args, p.PageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanOrderRows(rows)
}

// ListByStatus returns orders currently in the given status, oldest first.
// Used by bulk actions that sweep a whole stage of the pipeline.
func (r *OrderRepository) ListByStatus(ctx context.Context, status models.OrderStatus, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `SELECT id, customer_name, customer_phone, delivery_type, delivery_fee, wilaya, commune, status, order_date, confirmed_at, on_the_way_at, delivered_at, returned_at, cancelled_at, total_amount FROM orders WHERE status = ? ORDER BY order_date ASC, id ASC LIMIT ?`, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanOrderRows(rows)
}

// ListIDs returns just the IDs of every order, ascending. Seed tooling uses
// it to walk the table without hydrating rows.
func (r *OrderRepository) ListIDs(ctx context.Context) ([]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM orders ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// scanOrderRows is a helper to scan rows into Order objects.
func (r *OrderRepository) scanOrderRows(rows *sql.Rows) ([]models.Order, error) {
	var out []models.Order
	for rows.Next() {
		var o models.Order
		var status, deliveryType string
		var commune sql.NullString
		var confirmedAt, onTheWayAt, deliveredAt, returnedAt, cancelledAt sql.NullTime
		if err := rows.Scan(&o.ID, &o.CustomerName, &o.CustomerPhone, &deliveryType, &o.DeliveryFee, &o.Wilaya, &commune, &status, &o.OrderDate, &confirmedAt, &onTheWayAt, &deliveredAt, &returnedAt, &cancelledAt, &o.TotalAmount); err != nil {
			return nil, err
		}
		o.Status = models.OrderStatus(status)
		o.DeliveryType = models.DeliveryType(deliveryType)
		if commune.Valid {
			o.Commune = commune.String
		}
		o.ConfirmedAt = timePtr(confirmedAt)
		o.OnTheWayAt = timePtr(onTheWayAt)
		o.DeliveredAt = timePtr(deliveredAt)
		o.ReturnedAt = timePtr(returnedAt)
		o.CancelledAt = timePtr(cancelledAt)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
