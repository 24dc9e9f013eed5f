package models

import "github.com/shopspring/decimal"

// Wilaya is a shipping zone with precomputed delivery fees per delivery type.
type Wilaya struct {
	ID          int64           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	HomePrice   decimal.Decimal `db:"home_price" json:"home_price"`
	BureauPrice decimal.Decimal `db:"bureau_price" json:"bureau_price"`
}

// FeeFor returns the delivery fee for the given delivery type.
func (w *Wilaya) FeeFor(dt DeliveryType) decimal.Decimal {
	if dt == DeliveryTypeBureau {
		return w.BureauPrice
	}
	return w.HomePrice
}

// Commune is a locality inside a wilaya, unique by (wilaya, name).
type Commune struct {
	ID       int64  `db:"id" json:"id"`
	WilayaID int64  `db:"wilaya_id" json:"wilaya_id"`
	Name     string `db:"name" json:"name"`
}
