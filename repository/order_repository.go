package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ecomOrderManagement/models"
)

// OrderRepository is the core repository for Order entities.
// It handles basic CRUD operations and query building.
type OrderRepository struct {
	db DBTX
}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// WithTx returns a copy of the repository that runs its statements on tx.
func (r *OrderRepository) WithTx(tx *sql.Tx) *OrderRepository {
	return &OrderRepository{db: tx}
}

// Create inserts a new order. Status defaults to 'Pending' if empty.
func (r *OrderRepository) Create(ctx context.Context, o *models.Order) (*models.Order, error) {
	if o == nil {
		return nil, errors.New("order is nil")
	}
	if o.Status == "" {
		o.Status = models.OrderStatusPending
	}
	if o.DeliveryType == "" {
		o.DeliveryType = models.DeliveryTypeHome
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	// Use INSERT and then query back to capture order_date
	res, err := r.db.ExecContext(ctx, `INSERT INTO orders (customer_name, customer_phone, delivery_type, delivery_fee, wilaya, commune, status, total_amount) VALUES (?,?,?,?,?,?,?,?)`,
		o.CustomerName, o.CustomerPhone, string(o.DeliveryType), o.DeliveryFee, o.Wilaya, nullString(o.Commune), string(o.Status), o.TotalAmount)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	o2, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o2 == nil {
		return nil, fmt.Errorf("created order not found: id=%d", id)
	}
	return o2, nil
}

// GetByID fetches an order by its ID. Items are not hydrated.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var o models.Order
	var status, deliveryType string
	var commune sql.NullString
	var confirmedAt, onTheWayAt, deliveredAt, returnedAt, cancelledAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `SELECT id, customer_name, customer_phone, delivery_type, delivery_fee, wilaya, commune, status, order_date, confirmed_at, on_the_way_at, delivered_at, returned_at, cancelled_at, total_amount FROM orders WHERE id = ?`, id).
		Scan(&o.ID, &o.CustomerName, &o.CustomerPhone, &deliveryType, &o.DeliveryFee, &o.Wilaya, &commune, &status, &o.OrderDate, &confirmedAt, &onTheWayAt, &deliveredAt, &returnedAt, &cancelledAt, &o.TotalAmount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
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
	return &o, nil
}

// UpdateDetails updates the customer-editable fields of an order: contact,
// destination and delivery fee. Status, timestamps and total are written by
// their dedicated methods only.
func (r *OrderRepository) UpdateDetails(ctx context.Context, o *models.Order) error {
	if o == nil {
		return errors.New("order is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET customer_name = ?, customer_phone = ?, delivery_type = ?, delivery_fee = ?, wilaya = ?, commune = ? WHERE id = ?`,
		o.CustomerName, o.CustomerPhone, string(o.DeliveryType), o.DeliveryFee, o.Wilaya, nullString(o.Commune), o.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatusAndTimestamps persists the status and all lifecycle timestamps
// of an order in one statement. Callers run it inside the same transaction
// as the stock movements the transition performs.
func (r *OrderRepository) UpdateStatusAndTimestamps(ctx context.Context, o *models.Order) error {
	if o == nil {
		return errors.New("order is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, confirmed_at = ?, on_the_way_at = ?, delivered_at = ?, returned_at = ?, cancelled_at = ? WHERE id = ?`,
		string(o.Status), o.ConfirmedAt, o.OnTheWayAt, o.DeliveredAt, o.ReturnedAt, o.CancelledAt, o.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetTotal writes the recomputed total for an order.
func (r *OrderRepository) SetTotal(ctx context.Context, id int64, total decimal.Decimal) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `UPDATE orders SET total_amount = ? WHERE id = ?`, total, id)
	return err
}

// UpdateStatus writes the status column directly, skipping transition
// validation, timestamps and stock movements. It exists for seed and
// backfill tooling only; everything else goes through the lifecycle service.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, status models.OrderStatus) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `UPDATE orders SET status = ? WHERE id = ?`, string(status), id)
	return err
}

// ReplaceStatus rewrites every order in one status to another, returning the
// number of rows touched. Like UpdateStatus it bypasses the lifecycle and is
// meant for the setorderstatus tool migrating legacy data.
func (r *OrderRepository) ReplaceStatus(ctx context.Context, from, to models.OrderStatus) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `UPDATE orders SET status = ? WHERE status = ?`, string(to), string(from))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateStatusByIDs writes the status column for a batch of orders, again
// without lifecycle validation. Seed tooling only.
func (r *OrderRepository) UpdateStatusByIDs(ctx context.Context, ids []int64, status models.OrderStatus) error {
	if len(ids) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	args := make([]any, 0, len(ids)+1)
	args = append(args, string(status))
	placeholders := make([]string, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = ? WHERE id IN (`+strings.Join(placeholders, ", ")+`)`, args...)
	return err
}

// ListIDsByStatus returns the IDs of all orders currently in a status,
// oldest first.
func (r *OrderRepository) ListIDsByStatus(ctx context.Context, status models.OrderStatus) ([]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM orders WHERE status = ? ORDER BY id`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// Delete removes an order by ID. Items cascade.
func (r *OrderRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id)
	return err
}

// nullString maps "" to NULL for optional text columns.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// timePtr converts a scanned nullable time to the model's pointer form.
func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
