package models

import "time"

// OrderEvent is one row of the per-order audit trail. ID is a ULID so events
// sort chronologically by primary key.
type OrderEvent struct {
	ID         string      `db:"id" json:"id"`
	OrderID    int64       `db:"order_id" json:"order_id"`
	FromStatus OrderStatus `db:"from_status" json:"from_status"`
	ToStatus   OrderStatus `db:"to_status" json:"to_status"`
	Actor      string      `db:"actor" json:"actor,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}
