package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ecomOrderManagement/models"
)

// OrderItemRepository manages the lines of an order.
type OrderItemRepository struct {
	db DBTX
}

func NewOrderItemRepository(db *sql.DB) *OrderItemRepository {
	return &OrderItemRepository{db: db}
}

// WithTx returns a copy of the repository that runs its statements on tx.
func (r *OrderItemRepository) WithTx(tx *sql.Tx) *OrderItemRepository {
	return &OrderItemRepository{db: tx}
}

// Create inserts a new order line. Price is the snapshot the caller resolved;
// it is never recomputed from the catalog afterward.
func (r *OrderItemRepository) Create(ctx context.Context, it *models.OrderItem) (*models.OrderItem, error) {
	if it == nil {
		return nil, errors.New("order item is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `INSERT INTO order_items (order_id, variant_id, quantity, price) VALUES (?,?,?,?)`,
		it.OrderID, it.VariantID, it.Quantity, it.Price)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	out := *it
	out.ID = id
	return &out, nil
}

// GetByID fetches a single order line with its display fields.
func (r *OrderItemRepository) GetByID(ctx context.Context, id int64) (*models.OrderItem, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var it models.OrderItem
	err := r.db.QueryRowContext(ctx, `
SELECT oi.id, oi.order_id, oi.variant_id, oi.quantity, oi.price, p.id, p.name, v.size
FROM order_items oi
JOIN product_variants v ON v.id = oi.variant_id
JOIN products p ON p.id = v.product_id
WHERE oi.id = ?`, id).Scan(&it.ID, &it.OrderID, &it.VariantID, &it.Quantity, &it.Price, &it.ProductID, &it.ProductName, &it.Size)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &it, nil
}

// ListByOrderID returns all lines of an order with product name and size for display.
func (r *OrderItemRepository) ListByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
SELECT oi.id, oi.order_id, oi.variant_id, oi.quantity, oi.price, p.id, p.name, v.size
FROM order_items oi
JOIN product_variants v ON v.id = oi.variant_id
JOIN products p ON p.id = v.product_id
WHERE oi.order_id = ?
ORDER BY oi.id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.OrderItem
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.VariantID, &it.Quantity, &it.Price, &it.ProductID, &it.ProductName, &it.Size); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update rewrites the variant, quantity and price snapshot of a line.
func (r *OrderItemRepository) Update(ctx context.Context, it *models.OrderItem) error {
	if it == nil {
		return errors.New("order item is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `UPDATE order_items SET variant_id = ?, quantity = ?, price = ? WHERE id = ?`,
		it.VariantID, it.Quantity, it.Price, it.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a single order line.
func (r *OrderItemRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `DELETE FROM order_items WHERE id = ?`, id)
	return err
}

// DeleteByOrderID removes every line of an order.
func (r *OrderItemRepository) DeleteByOrderID(ctx context.Context, orderID int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, orderID)
	return err
}
