package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ecomOrderManagement/models"
)

type OperatorRepository struct {
	db *sql.DB
}

func NewOperatorRepository(db *sql.DB) *OperatorRepository {
	return &OperatorRepository{db: db}
}

// Create inserts a new operator with the given username and role.
// An empty role defaults to 'staff' via the column default.
func (r *OperatorRepository) Create(ctx context.Context, username, role string) (*models.Operator, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if role == "" {
		role = models.RoleStaff
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO operators (username, role) VALUES (?, ?)`, username, role)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Operator{ID: id, Username: username, Role: role}, nil
}

func (r *OperatorRepository) GetByID(ctx context.Context, id int64) (*models.Operator, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var op models.Operator
	err := r.db.QueryRowContext(ctx, `SELECT id, username, role FROM operators WHERE id = ?`, id).Scan(&op.ID, &op.Username, &op.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &op, nil
}

func (r *OperatorRepository) GetByUsername(ctx context.Context, username string) (*models.Operator, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var op models.Operator
	err := r.db.QueryRowContext(ctx, `SELECT id, username, role FROM operators WHERE username = ?`, username).Scan(&op.ID, &op.Username, &op.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &op, nil
}

func (r *OperatorRepository) List(ctx context.Context, limit, offset int) ([]models.Operator, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT id, username, role FROM operators ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Operator
	for rows.Next() {
		var op models.Operator
		if err := rows.Scan(&op.ID, &op.Username, &op.Role); err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *OperatorRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `DELETE FROM operators WHERE id = ?`, id)
	return err
}

// UpdateRoleByUsername sets the role for the given username.
// Intended for administrative flows and tests.
func (r *OperatorRepository) UpdateRoleByUsername(ctx context.Context, username, role string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `UPDATE operators SET role = ? WHERE username = ?`, role, username)
	return err
}
