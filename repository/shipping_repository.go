package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"ecomOrderManagement/models"
)

// ShippingRepository manages wilayas and their communes, and resolves
// delivery fees at order capture.
type ShippingRepository struct {
	db DBTX
}

func NewShippingRepository(db *sql.DB) *ShippingRepository {
	return &ShippingRepository{db: db}
}

// WithTx returns a copy of the repository that runs its statements on tx.
func (r *ShippingRepository) WithTx(tx *sql.Tx) *ShippingRepository {
	return &ShippingRepository{db: tx}
}

func (r *ShippingRepository) CreateWilaya(ctx context.Context, w *models.Wilaya) (*models.Wilaya, error) {
	if w == nil {
		return nil, errors.New("wilaya is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `INSERT INTO wilayas (name, home_price, bureau_price) VALUES (?,?,?)`,
		w.Name, w.HomePrice, w.BureauPrice)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	out := *w
	out.ID = id
	return &out, nil
}

func (r *ShippingRepository) GetWilayaByID(ctx context.Context, id int64) (*models.Wilaya, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var w models.Wilaya
	err := r.db.QueryRowContext(ctx, `SELECT id, name, home_price, bureau_price FROM wilayas WHERE id = ?`, id).
		Scan(&w.ID, &w.Name, &w.HomePrice, &w.BureauPrice)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

func (r *ShippingRepository) GetWilayaByName(ctx context.Context, name string) (*models.Wilaya, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var w models.Wilaya
	err := r.db.QueryRowContext(ctx, `SELECT id, name, home_price, bureau_price FROM wilayas WHERE name = ?`, name).
		Scan(&w.ID, &w.Name, &w.HomePrice, &w.BureauPrice)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

func (r *ShippingRepository) ListWilayas(ctx context.Context) ([]models.Wilaya, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT id, name, home_price, bureau_price FROM wilayas ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Wilaya
	for rows.Next() {
		var w models.Wilaya
		if err := rows.Scan(&w.ID, &w.Name, &w.HomePrice, &w.BureauPrice); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateWilaya rewrites a wilaya's name and fees. Fee changes affect future
// captures only; existing orders keep their snapshot.
func (r *ShippingRepository) UpdateWilaya(ctx context.Context, w *models.Wilaya) error {
	if w == nil {
		return errors.New("wilaya is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `UPDATE wilayas SET name = ?, home_price = ?, bureau_price = ? WHERE id = ?`,
		w.Name, w.HomePrice, w.BureauPrice, w.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *ShippingRepository) DeleteWilaya(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `DELETE FROM wilayas WHERE id = ?`, id)
	return err
}

func (r *ShippingRepository) CreateCommune(ctx context.Context, wilayaID int64, name string) (*models.Commune, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `INSERT INTO communes (wilaya_id, name) VALUES (?,?)`, wilayaID, name)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Commune{ID: id, WilayaID: wilayaID, Name: name}, nil
}

func (r *ShippingRepository) ListCommunes(ctx context.Context, wilayaID int64) ([]models.Commune, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT id, wilaya_id, name FROM communes WHERE wilaya_id = ? ORDER BY name`, wilayaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Commune
	for rows.Next() {
		var c models.Commune
		if err := rows.Scan(&c.ID, &c.WilayaID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ShippingRepository) DeleteCommune(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `DELETE FROM communes WHERE id = ?`, id)
	return err
}

// FeeFor resolves the delivery fee for a wilaya name and delivery type.
// The bool reports whether the wilaya was found; callers decide what an
// unknown wilaya costs.
func (r *ShippingRepository) FeeFor(ctx context.Context, wilayaName string, dt models.DeliveryType) (decimal.Decimal, bool, error) {
	w, err := r.GetWilayaByName(ctx, wilayaName)
	if err != nil {
		return decimal.Zero, false, err
	}
	if w == nil {
		return decimal.Zero, false, nil
	}
	return w.FeeFor(dt), true, nil
}
