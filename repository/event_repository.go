package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"ecomOrderManagement/models"
)

// OrderEventRepository persists the per-order audit trail.
type OrderEventRepository struct {
	db DBTX
}

func NewOrderEventRepository(db *sql.DB) *OrderEventRepository {
	return &OrderEventRepository{db: db}
}

// WithTx returns a copy of the repository that runs its statements on tx.
func (r *OrderEventRepository) WithTx(tx *sql.Tx) *OrderEventRepository {
	return &OrderEventRepository{db: tx}
}

// Append stores one audit row. A missing ID gets a fresh ULID so rows sort
// chronologically by primary key.
func (r *OrderEventRepository) Append(ctx context.Context, ev *models.OrderEvent) error {
	if ev == nil {
		return errors.New("event is nil")
	}
	if ev.ID == "" {
		ev.ID = ulid.Make().String()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `INSERT INTO order_events (id, order_id, from_status, to_status, actor) VALUES (?,?,?,?,?)`,
		ev.ID, ev.OrderID, string(ev.FromStatus), string(ev.ToStatus), ev.Actor)
	return err
}

// ListByOrderID returns the audit trail of an order, oldest first.
func (r *OrderEventRepository) ListByOrderID(ctx context.Context, orderID int64) ([]models.OrderEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT id, order_id, from_status, to_status, actor, created_at FROM order_events WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.OrderEvent
	for rows.Next() {
		var ev models.OrderEvent
		var from, to string
		if err := rows.Scan(&ev.ID, &ev.OrderID, &from, &to, &ev.Actor, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.FromStatus = models.OrderStatus(from)
		ev.ToStatus = models.OrderStatus(to)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
