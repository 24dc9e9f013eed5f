package repository

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"ecomOrderManagement/models"
)

// DBTX is the subset of database/sql methods shared by *sql.DB and *sql.Tx.
// Repositories run on either, so a lifecycle transaction can reuse the same
// query code via WithTx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// OperatorRepositoryI defines operations on Operator entities.
type OperatorRepositoryI interface {
	Create(ctx context.Context, username, role string) (*models.Operator, error)
	GetByUsername(ctx context.Context, username string) (*models.Operator, error)
	GetByID(ctx context.Context, id int64) (*models.Operator, error)
	List(ctx context.Context, limit, offset int) ([]models.Operator, error)
}

// OrderRepositoryI defines operations on Order entities.
type OrderRepositoryI interface {
	Create(ctx context.Context, o *models.Order) (*models.Order, error)
	GetByID(ctx context.Context, id int64) (*models.Order, error)
	UpdateDetails(ctx context.Context, o *models.Order) error
	UpdateStatusAndTimestamps(ctx context.Context, o *models.Order) error
	SetTotal(ctx context.Context, id int64, total decimal.Decimal) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, p ListOrdersParams) ([]models.Order, error)
}

// OrderItemRepositoryI defines operations on order lines.
type OrderItemRepositoryI interface {
	Create(ctx context.Context, it *models.OrderItem) (*models.OrderItem, error)
	GetByID(ctx context.Context, id int64) (*models.OrderItem, error)
	ListByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	Update(ctx context.Context, it *models.OrderItem) error
	Delete(ctx context.Context, id int64) error
}

// VariantRepositoryI defines operations on product variants, including the
// stock movements that back the order lifecycle.
type VariantRepositoryI interface {
	Create(ctx context.Context, v *models.ProductVariant) (*models.ProductVariant, error)
	GetByID(ctx context.Context, id int64) (*models.ProductVariant, error)
	ListByProductID(ctx context.Context, productID int64) ([]models.ProductVariant, error)
	CheckAvailable(ctx context.Context, reqs []models.StockRequirement) ([]models.StockShortfall, error)
	StocksForUpdate(ctx context.Context, variantIDs []int64) (map[int64]models.VariantStock, error)
	DecrementStock(ctx context.Context, variantID int64, qty int) (bool, error)
	IncrementStock(ctx context.Context, variantID int64, qty int) error
}

// ShippingRepositoryI resolves delivery fees by wilaya and delivery type.
type ShippingRepositoryI interface {
	FeeFor(ctx context.Context, wilayaName string, dt models.DeliveryType) (decimal.Decimal, bool, error)
}

// OrderEventRepositoryI appends and lists the per-order audit trail.
type OrderEventRepositoryI interface {
	Append(ctx context.Context, ev *models.OrderEvent) error
	ListByOrderID(ctx context.Context, orderID int64) ([]models.OrderEvent, error)
}
