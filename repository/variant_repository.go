package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"ecomOrderManagement/models"
)

// ErrVariantInUse is returned when deleting a variant that order lines still
// reference. The schema enforces it with ON DELETE RESTRICT.
var ErrVariantInUse = errors.New("variant referenced by existing orders")

// VariantRepository manages product variants and their stock counts. All
// inventory enters and leaves the system through this repository.
type VariantRepository struct {
	db DBTX
}

func NewVariantRepository(db *sql.DB) *VariantRepository {
	return &VariantRepository{db: db}
}

// WithTx returns a copy of the repository that runs its statements on tx.
func (r *VariantRepository) WithTx(tx *sql.Tx) *VariantRepository {
	return &VariantRepository{db: tx}
}

// Create inserts a new variant for a product.
func (r *VariantRepository) Create(ctx context.Context, v *models.ProductVariant) (*models.ProductVariant, error) {
	if v == nil {
		return nil, errors.New("variant is nil")
	}
	if v.Stock < 0 {
		return nil, errors.New("stock cannot be negative")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `INSERT INTO product_variants (product_id, size, price, stock) VALUES (?,?,?,?)`,
		v.ProductID, v.Size, v.Price, v.Stock)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	out := *v
	out.ID = id
	return &out, nil
}

// GetByID fetches a variant with its product name for display.
func (r *VariantRepository) GetByID(ctx context.Context, id int64) (*models.ProductVariant, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var v models.ProductVariant
	err := r.db.QueryRowContext(ctx, `
SELECT v.id, v.product_id, v.size, v.price, v.stock, p.name
FROM product_variants v
JOIN products p ON p.id = v.product_id
WHERE v.id = ?`, id).Scan(&v.ID, &v.ProductID, &v.Size, &v.Price, &v.Stock, &v.ProductName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

// ListByProductID returns the variants of a product ordered by size.
func (r *VariantRepository) ListByProductID(ctx context.Context, productID int64) ([]models.ProductVariant, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
SELECT v.id, v.product_id, v.size, v.price, v.stock, p.name
FROM product_variants v
JOIN products p ON p.id = v.product_id
WHERE v.product_id = ?
ORDER BY v.size, v.id`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVariantRows(rows)
}

// Update rewrites a variant's size and price. Stock moves through SetStock
// and the increment/decrement pair only.
func (r *VariantRepository) Update(ctx context.Context, v *models.ProductVariant) error {
	if v == nil {
		return errors.New("variant is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `UPDATE product_variants SET size = ?, price = ? WHERE id = ?`,
		v.Size, v.Price, v.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetStock writes an absolute stock count. Used by catalog restocks and
// corrections; order transitions use the relative movements instead.
func (r *VariantRepository) SetStock(ctx context.Context, id int64, stock int) error {
	if stock < 0 {
		return errors.New("stock cannot be negative")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `UPDATE product_variants SET stock = ? WHERE id = ?`, stock, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a variant. Variants referenced by order lines cannot be
// deleted; the FK violation maps to ErrVariantInUse.
func (r *VariantRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `DELETE FROM product_variants WHERE id = ?`, id)
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
		return fmt.Errorf("%w: variant %d", ErrVariantInUse, id)
	}
	return err
}

// CheckAvailable verifies, without locking, that current stock covers every
// requirement. It returns one shortfall per failing variant; an empty slice
// means all requirements are satisfiable right now. The answer is advisory: a
// concurrent writer can invalidate it immediately. The locked re-check at
// dispatch time is the authoritative one.
func (r *VariantRepository) CheckAvailable(ctx context.Context, reqs []models.StockRequirement) ([]models.StockShortfall, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(reqs))
	for i, req := range reqs {
		ids[i] = req.VariantID
	}
	stocks, err := r.stocksByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	return shortfalls(reqs, stocks), nil
}

// StocksForUpdate reads current stock for the given variants inside the
// caller's transaction. Callers must hold a write transaction (the pool opens
// them with BEGIN IMMEDIATE) so these reads cannot race another dispatch.
func (r *VariantRepository) StocksForUpdate(ctx context.Context, variantIDs []int64) (map[int64]models.VariantStock, error) {
	return r.stocksByID(ctx, variantIDs)
}

// DecrementStock subtracts qty guarded by the current count: the UPDATE only
// applies when stock >= qty. Returns false when the guard rejects it.
func (r *VariantRepository) DecrementStock(ctx context.Context, variantID int64, qty int) (bool, error) {
	if qty <= 0 {
		return false, errors.New("quantity must be positive")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `UPDATE product_variants SET stock = stock - ? WHERE id = ? AND stock >= ?`, qty, variantID, qty)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// IncrementStock adds qty back to a variant's stock.
func (r *VariantRepository) IncrementStock(ctx context.Context, variantID int64, qty int) error {
	if qty <= 0 {
		return errors.New("quantity must be positive")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `UPDATE product_variants SET stock = stock + ? WHERE id = ?`, qty, variantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListLowStock returns variants at or below the threshold, emptiest first.
func (r *VariantRepository) ListLowStock(ctx context.Context, threshold, limit int) ([]models.ProductVariant, error) {
	if limit <= 0 {
		limit = 20
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
SELECT v.id, v.product_id, v.size, v.price, v.stock, p.name
FROM product_variants v
JOIN products p ON p.id = v.product_id
WHERE v.stock <= ?
ORDER BY v.stock ASC, v.id ASC
LIMIT ?`, threshold, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVariantRows(rows)
}

// stocksByID loads id, label and stock for a set of variants.
func (r *VariantRepository) stocksByID(ctx context.Context, variantIDs []int64) (map[int64]models.VariantStock, error) {
	if len(variantIDs) == 0 {
		return map[int64]models.VariantStock{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	placeholders := make([]string, len(variantIDs))
	args := make([]any, len(variantIDs))
	for i, id := range variantIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT v.id, p.name, v.size, v.stock
FROM product_variants v
JOIN products p ON p.id = v.product_id
WHERE v.id IN (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]models.VariantStock, len(variantIDs))
	for rows.Next() {
		var vs models.VariantStock
		var name, size string
		if err := rows.Scan(&vs.VariantID, &name, &size, &vs.Stock); err != nil {
			return nil, err
		}
		v := models.ProductVariant{ID: vs.VariantID, Size: size, ProductName: name}
		vs.Label = v.Label()
		out[vs.VariantID] = vs
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// shortfalls compares requirements against loaded stocks. Variants missing
// from stocks count as empty: a dangling requirement must fail, not pass.
func shortfalls(reqs []models.StockRequirement, stocks map[int64]models.VariantStock) []models.StockShortfall {
	var out []models.StockShortfall
	for _, req := range reqs {
		vs, ok := stocks[req.VariantID]
		if !ok {
			v := models.ProductVariant{ID: req.VariantID}
			out = append(out, models.StockShortfall{VariantID: req.VariantID, Label: v.Label(), Requested: req.Quantity, Available: 0})
			continue
		}
		if vs.Stock < req.Quantity {
			out = append(out, models.StockShortfall{VariantID: req.VariantID, Label: vs.Label, Requested: req.Quantity, Available: vs.Stock})
		}
	}
	return out
}

// scanVariantRows is a helper to scan joined variant rows.
func scanVariantRows(rows *sql.Rows) ([]models.ProductVariant, error) {
	var out []models.ProductVariant
	for rows.Next() {
		var v models.ProductVariant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Size, &v.Price, &v.Stock, &v.ProductName); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
