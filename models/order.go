package models

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the current stage of an order's lifecycle.
type OrderStatus string

const (
	OrderStatusPending          OrderStatus = "Pending"
	OrderStatusConfirmed        OrderStatus = "Confirmed"
	OrderStatusOnTheWay         OrderStatus = "OnTheWay"
	OrderStatusDelivered        OrderStatus = "Delivered"
	OrderStatusReturnedByClient OrderStatus = "ReturnedByClient"
	OrderStatusReturnedByOwner  OrderStatus = "ReturnedByOwner"
	OrderStatusCancelled        OrderStatus = "Cancelled"
)

// DeliveryType selects which wilaya fee applies to an order.
type DeliveryType string

const (
	DeliveryTypeHome   DeliveryType = "Home"
	DeliveryTypeBureau DeliveryType = "Bureau"
)

// Valid reports whether t is a known delivery type.
func (t DeliveryType) Valid() bool {
	return t == DeliveryTypeHome || t == DeliveryTypeBureau
}

// orderStatusTransitions maps each status to the set of statuses it may move to.
// A status mapping to an empty slice is terminal.
var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:          {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:        {OrderStatusOnTheWay, OrderStatusCancelled},
	OrderStatusOnTheWay:         {OrderStatusDelivered, OrderStatusReturnedByClient, OrderStatusReturnedByOwner},
	OrderStatusDelivered:        {},
	OrderStatusReturnedByClient: {},
	OrderStatusReturnedByOwner:  {},
	OrderStatusCancelled:        {},
}

// Valid reports whether s is one of the known order statuses.
func (s OrderStatus) Valid() bool {
	_, ok := orderStatusTransitions[s]
	return ok
}

// CanTransitionTo reports whether the order may move from s to target.
// Requesting the current status again is always a permitted no-op.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	if s == target {
		return true
	}
	return slices.Contains(orderStatusTransitions[s], target)
}

// AllowedTargets returns the statuses reachable from s, excluding the no-op.
func (s OrderStatus) AllowedTargets() []OrderStatus {
	return slices.Clone(orderStatusTransitions[s])
}

// IsTerminal reports whether s has no outgoing transitions.
func (s OrderStatus) IsTerminal() bool {
	next, ok := orderStatusTransitions[s]
	return ok && len(next) == 0
}

// Locked reports whether an order in status s rejects edits to its fields and items.
// Only Pending orders are editable; everything freezes once the shop acts on an order.
func (s OrderStatus) Locked() bool {
	return s != OrderStatusPending
}

// DecrementsStock reports whether entering s takes the order's quantities out of inventory.
func (s OrderStatus) DecrementsStock() bool {
	return s == OrderStatusOnTheWay
}

// RestocksStock reports whether entering s puts the order's quantities back into inventory.
func (s OrderStatus) RestocksStock() bool {
	return s == OrderStatusReturnedByClient || s == OrderStatusReturnedByOwner
}

// RequiresStockCheck reports whether entering s is gated on stock sufficiency.
func (s OrderStatus) RequiresStockCheck() bool {
	return s == OrderStatusConfirmed || s == OrderStatusOnTheWay
}

// OrderStatuses lists every status in lifecycle order.
func OrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending,
		OrderStatusConfirmed,
		OrderStatusOnTheWay,
		OrderStatusDelivered,
		OrderStatusReturnedByClient,
		OrderStatusReturnedByOwner,
		OrderStatusCancelled,
	}
}

// Order represents a customer order and its lifecycle bookkeeping.
// Wilaya and commune are stored as free text; the wilayas table only provides
// fee resolution at capture time.
type Order struct {
	ID            int64           `db:"id" json:"id"`
	CustomerName  string          `db:"customer_name" json:"customer_name"`
	CustomerPhone string          `db:"customer_phone" json:"customer_phone"`
	DeliveryType  DeliveryType    `db:"delivery_type" json:"delivery_type"`
	DeliveryFee   decimal.Decimal `db:"delivery_fee" json:"delivery_fee"`
	Wilaya        string          `db:"wilaya" json:"wilaya"`
	Commune       string          `db:"commune" json:"commune,omitempty"`
	Status        OrderStatus     `db:"status" json:"status"`
	OrderDate     time.Time       `db:"order_date" json:"order_date"`
	// Lifecycle timestamps are set exactly once, the first time the order
	// enters the corresponding status. Both return statuses share returned_at.
	ConfirmedAt *time.Time      `db:"confirmed_at" json:"confirmed_at,omitempty"`
	OnTheWayAt  *time.Time      `db:"on_the_way_at" json:"on_the_way_at,omitempty"`
	DeliveredAt *time.Time      `db:"delivered_at" json:"delivered_at,omitempty"`
	ReturnedAt  *time.Time      `db:"returned_at" json:"returned_at,omitempty"`
	CancelledAt *time.Time      `db:"cancelled_at" json:"cancelled_at,omitempty"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"total_amount"`
	// Items are loaded on demand; not every query hydrates them.
	Items []OrderItem `db:"-" json:"items,omitempty"`
}

// OrderItem is a line of an order. Price is a snapshot of the variant (or
// product) price at the time the line was saved and never changes afterward.
type OrderItem struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   int64           `db:"order_id" json:"order_id"`
	VariantID int64           `db:"variant_id" json:"variant_id"`
	Quantity  int             `db:"quantity" json:"quantity"`
	Price     decimal.Decimal `db:"price" json:"price"`
	// Display fields populated by join queries; not persisted on the item row.
	ProductID   int64  `db:"-" json:"product_id,omitempty"`
	ProductName string `db:"-" json:"product_name,omitempty"`
	Size        string `db:"-" json:"size,omitempty"`
}

// Subtotal returns price × quantity for the line.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ComputeTotal returns Σ(item.price × item.quantity) + deliveryFee.
func ComputeTotal(items []OrderItem, deliveryFee decimal.Decimal) decimal.Decimal {
	total := deliveryFee
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// RecomputeTotal refreshes o.TotalAmount from o.Items and o.DeliveryFee.
func (o *Order) RecomputeTotal() {
	o.TotalAmount = ComputeTotal(o.Items, o.DeliveryFee)
}

// StampStatusTimestamps sets o.Status to target and fills the matching
// lifecycle timestamp if it has not been set before. Re-entering a status
// never overwrites an existing timestamp.
func StampStatusTimestamps(o *Order, target OrderStatus, now time.Time) {
	o.Status = target
	switch target {
	case OrderStatusConfirmed:
		if o.ConfirmedAt == nil {
			o.ConfirmedAt = &now
		}
	case OrderStatusOnTheWay:
		if o.OnTheWayAt == nil {
			o.OnTheWayAt = &now
		}
	case OrderStatusDelivered:
		if o.DeliveredAt == nil {
			o.DeliveredAt = &now
		}
	case OrderStatusReturnedByClient, OrderStatusReturnedByOwner:
		if o.ReturnedAt == nil {
			o.ReturnedAt = &now
		}
	case OrderStatusCancelled:
		if o.CancelledAt == nil {
			o.CancelledAt = &now
		}
	}
}

// alwaysReadOnlyFields are server-owned regardless of status.
var alwaysReadOnlyFields = []string{"id", "order_date", "status", "total_amount"}

// lockableFields become read-only once the order leaves Pending.
var lockableFields = []string{
	"customer_name", "customer_phone", "delivery_type",
	"delivery_fee", "wilaya", "commune", "items",
}

// ReadOnlyFields returns the field names an admin surface must render as
// read-only for an order in status s. This mirrors the mutation gating
// enforced by the lifecycle service; it is informative, not the enforcement
// point.
func ReadOnlyFields(s OrderStatus) []string {
	out := slices.Clone(alwaysReadOnlyFields)
	if s.Locked() {
		out = append(out, lockableFields...)
	}
	return out
}
