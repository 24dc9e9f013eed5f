package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Category groups products for browsing and reporting.
type Category struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description,omitempty"`
}

// Product is catalog metadata. Stock lives on its variants, never here.
// Sold counts delivered units and is maintained by the delivery projector.
type Product struct {
	ID            int64               `db:"id" json:"id"`
	Name          string              `db:"name" json:"name"`
	Description   string              `db:"description" json:"description,omitempty"`
	Price         decimal.Decimal     `db:"price" json:"price"`
	DiscountPrice decimal.NullDecimal `db:"discount_price" json:"discount_price,omitempty"`
	Color         string              `db:"color" json:"color,omitempty"`
	CategoryID    *int64              `db:"category_id" json:"category_id,omitempty"`
	Sold          int64               `db:"sold" json:"sold"`
	CreatedAt     time.Time           `db:"created_at" json:"created_at"`
}

// NewProductWindow is how long a product counts as "new" after creation.
const NewProductWindow = 7 * 24 * time.Hour

// DiscountedPrice returns price - discount_price, floored at zero.
// Without a discount it returns the plain price.
func (p *Product) DiscountedPrice() decimal.Decimal {
	if !p.DiscountPrice.Valid {
		return p.Price
	}
	d := p.Price.Sub(p.DiscountPrice.Decimal)
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// IsNew reports whether the product was created within the last 7 days.
func (p *Product) IsNew(now time.Time) bool {
	return now.Sub(p.CreatedAt) <= NewProductWindow
}

// ProductVariant is a purchasable size of a product carrying its own stock
// count. Price, when set, overrides the product price for this size.
type ProductVariant struct {
	ID        int64               `db:"id" json:"id"`
	ProductID int64               `db:"product_id" json:"product_id"`
	Size      string              `db:"size" json:"size"`
	Price     decimal.NullDecimal `db:"price" json:"price,omitempty"`
	Stock     int                 `db:"stock" json:"stock"`
	// ProductName is populated by join queries for display and error strings.
	ProductName string `db:"-" json:"product_name,omitempty"`
}

// UnitPrice returns the effective selling price of the variant: its own price
// when set, otherwise the parent product's price. Order items snapshot this at
// save time.
func (v *ProductVariant) UnitPrice(productPrice decimal.Decimal) decimal.Decimal {
	if v.Price.Valid {
		return v.Price.Decimal
	}
	return productPrice
}

// Label renders the variant for human-readable messages, e.g. "Classic Tee (size M)".
func (v *ProductVariant) Label() string {
	name := v.ProductName
	if name == "" {
		name = fmt.Sprintf("variant #%d", v.ID)
	}
	if v.Size == "" {
		return name
	}
	return fmt.Sprintf("%s (size %s)", name, v.Size)
}
