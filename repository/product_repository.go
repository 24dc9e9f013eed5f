package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"ecomOrderManagement/models"
)

// ProductRepository manages catalog products. Stock never lives here; see
// VariantRepository.
type ProductRepository struct {
	db DBTX
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// WithTx returns a copy of the repository that runs its statements on tx.
func (r *ProductRepository) WithTx(tx *sql.Tx) *ProductRepository {
	return &ProductRepository{db: tx}
}

// Create inserts a new product and reads it back to capture created_at.
func (r *ProductRepository) Create(ctx context.Context, p *models.Product) (*models.Product, error) {
	if p == nil {
		return nil, errors.New("product is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `INSERT INTO products (name, description, price, discount_price, color, category_id) VALUES (?,?,?,?,?,?)`,
		p.Name, p.Description, p.Price, p.DiscountPrice, p.Color, p.CategoryID)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	p2, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p2 == nil {
		return nil, fmt.Errorf("created product not found: id=%d", id)
	}
	return p2, nil
}

// GetByID fetches a product by its ID.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var p models.Product
	var categoryID sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT id, name, description, price, discount_price, color, category_id, sold, created_at FROM products WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.DiscountPrice, &p.Color, &categoryID, &p.Sold, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if categoryID.Valid {
		v := categoryID.Int64
		p.CategoryID = &v
	}
	return &p, nil
}

// ListProductsParams represents filters and pagination for List.
type ListProductsParams struct {
	CategoryID *int64
	Search     *string // substring on name
	// PriceMin/PriceMax bound the effective price: the discounted price when a
	// discount is set, the plain price otherwise.
	PriceMin *decimal.Decimal
	PriceMax *decimal.Decimal
	// InStock keeps only products with at least one variant in stock.
	InStock bool
	Limit   int
	Offset  int
}

// effectivePriceExpr mirrors Product.DiscountedPrice in SQL: price minus
// discount, floored at zero. The CAST gives the expression numeric affinity so
// bound parameters compare numerically, not as text.
const effectivePriceExpr = `CAST(CASE WHEN discount_price IS NULL THEN price ELSE max(price - discount_price, 0) END AS NUMERIC)`

// List returns products matching filters ordered by created_at desc, id desc.
func (r *ProductRepository) List(ctx context.Context, params ListProductsParams) ([]models.Product, error) {
	if params.Limit <= 0 {
		params.Limit = 20
	}
	if params.Limit > 100 {
		params.Limit = 100
	}
	if params.Offset < 0 {
		params.Offset = 0
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var where []string
	var args []any
	if params.CategoryID != nil {
		where = append(where, "category_id = ?")
		args = append(args, *params.CategoryID)
	}
	if params.Search != nil && *params.Search != "" {
		where = append(where, "name LIKE ?")
		args = append(args, "%"+*params.Search+"%")
	}
	if params.PriceMin != nil {
		where = append(where, effectivePriceExpr+" >= ?")
		args = append(args, *params.PriceMin)
	}
	if params.PriceMax != nil {
		where = append(where, effectivePriceExpr+" <= ?")
		args = append(args, *params.PriceMax)
	}
	if params.InStock {
		where = append(where, "EXISTS (SELECT 1 FROM product_variants v WHERE v.product_id = products.id AND v.stock > 0)")
	}

	query := `SELECT id, name, description, price, discount_price, color, category_id, sold, created_at FROM products`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, params.Limit, params.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProductRows(rows)
}

// ListDiscounted returns products that currently carry a discount, newest first.
func (r *ProductRepository) ListDiscounted(ctx context.Context, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = 20
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, description, price, discount_price, color, category_id, sold, created_at FROM products WHERE discount_price IS NOT NULL ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProductRows(rows)
}

// ListNew returns products created at or after cutoff, newest first.
// The cutoff is compared against created_at in its stored UTC text form.
func (r *ProductRepository) ListNew(ctx context.Context, cutoff time.Time, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = 20
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, description, price, discount_price, color, category_id, sold, created_at FROM products WHERE created_at >= ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		cutoff.UTC().Format("2006-01-02 15:04:05"), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProductRows(rows)
}

// ListTopSold returns the best sellers by the sold counter.
func (r *ProductRepository) ListTopSold(ctx context.Context, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = 10
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, description, price, discount_price, color, category_id, sold, created_at FROM products WHERE sold > 0 ORDER BY sold DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProductRows(rows)
}

// Update rewrites the editable fields of a product.
func (r *ProductRepository) Update(ctx context.Context, p *models.Product) error {
	if p == nil {
		return errors.New("product is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `UPDATE products SET name = ?, description = ?, price = ?, discount_price = ?, color = ?, category_id = ? WHERE id = ?`,
		p.Name, p.Description, p.Price, p.DiscountPrice, p.Color, p.CategoryID, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// IncrementSold adds qty to the product's sold counter. The delivery
// projector is the only writer.
func (r *ProductRepository) IncrementSold(ctx context.Context, productID int64, qty int) error {
	if qty <= 0 {
		return errors.New("quantity must be positive")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `UPDATE products SET sold = sold + ? WHERE id = ?`, qty, productID)
	return err
}

// Delete removes a product. Its variants cascade, but variants referenced by
// order lines block the delete; the FK violation maps to ErrVariantInUse.
func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
		return fmt.Errorf("%w: product %d", ErrVariantInUse, id)
	}
	return err
}

// scanProductRows is a helper to scan product rows.
func scanProductRows(rows *sql.Rows) ([]models.Product, error) {
	var out []models.Product
	for rows.Next() {
		var p models.Product
		var categoryID sql.NullInt64
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.DiscountPrice, &p.Color, &categoryID, &p.Sold, &p.CreatedAt); err != nil {
			return nil, err
		}
		if categoryID.Valid {
			v := categoryID.Int64
			p.CategoryID = &v
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
