package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"ecomOrderManagement/models"
	"ecomOrderManagement/repository"
)

// CreateOrderInput captures a new order. DeliveryFee, when set, overrides the
// wilaya fee table.
type CreateOrderInput struct {
	CustomerName  string
	CustomerPhone string
	DeliveryType  models.DeliveryType
	DeliveryFee   *decimal.Decimal
	Wilaya        string
	Commune       string
	Items         []ItemInput
}

// ItemInput is one requested order line.
type ItemInput struct {
	VariantID int64
	Quantity  int
}

// UpdateDetailsInput carries a partial edit of an order's customer and
// delivery fields. Nil fields are left unchanged.
type UpdateDetailsInput struct {
	CustomerName  *string
	CustomerPhone *string
	DeliveryType  *models.DeliveryType
	DeliveryFee   *decimal.Decimal
	Wilaya        *string
	Commune       *string
}

// CreateOrder captures a new Pending order with a price snapshot per line and
// the resolved delivery fee. Stock is checked advisorily: a shortfall rejects
// the capture, but nothing is reserved.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.CustomerPhone = strings.TrimSpace(in.CustomerPhone)
	in.Wilaya = strings.TrimSpace(in.Wilaya)
	if in.CustomerName == "" {
		return nil, fmt.Errorf("%w: customer name is required", ErrInvalidInput)
	}
	if in.CustomerPhone == "" {
		return nil, fmt.Errorf("%w: customer phone is required", ErrInvalidInput)
	}
	if in.Wilaya == "" {
		return nil, fmt.Errorf("%w: wilaya is required", ErrInvalidInput)
	}
	if in.DeliveryType == "" {
		in.DeliveryType = models.DeliveryTypeHome
	}
	if !in.DeliveryType.Valid() {
		return nil, fmt.Errorf("%w: unknown delivery type %q", ErrInvalidInput, string(in.DeliveryType))
	}
	if in.DeliveryFee != nil && in.DeliveryFee.IsNegative() {
		return nil, fmt.Errorf("%w: delivery fee must not be negative", ErrInvalidInput)
	}
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive for variant %d", ErrInvalidInput, it.VariantID)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer tx.Rollback()

	orders := s.orders.WithTx(tx)
	items := s.items.WithTx(tx)
	variants := s.variants.WithTx(tx)
	products := s.products.WithTx(tx)
	shipping := s.shipping.WithTx(tx)

	fee, err := resolveFee(ctx, shipping, in.DeliveryFee, in.Wilaya, in.DeliveryType)
	if err != nil {
		return nil, err
	}

	lines := make([]models.OrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		price, err := snapshotPrice(ctx, variants, products, it.VariantID)
		if err != nil {
			return nil, err
		}
		lines = append(lines, models.OrderItem{VariantID: it.VariantID, Quantity: it.Quantity, Price: price})
	}
	if short, err := variants.CheckAvailable(ctx, models.AggregateRequirements(lines)); err != nil {
		return nil, mapDBError(err)
	} else if len(short) > 0 {
		return nil, captureShortfallError(short)
	}

	o, err := orders.Create(ctx, &models.Order{
		CustomerName:  in.CustomerName,
		CustomerPhone: in.CustomerPhone,
		DeliveryType:  in.DeliveryType,
		DeliveryFee:   fee,
		Wilaya:        in.Wilaya,
		Commune:       strings.TrimSpace(in.Commune),
	})
	if err != nil {
		return nil, mapDBError(err)
	}
	for i := range lines {
		lines[i].OrderID = o.ID
		if _, err := items.Create(ctx, &lines[i]); err != nil {
			return nil, mapDBError(err)
		}
	}

	o.Items, err = items.ListByOrderID(ctx, o.ID)
	if err != nil {
		return nil, mapDBError(err)
	}
	o.RecomputeTotal()
	if err := orders.SetTotal(ctx, o.ID, o.TotalAmount); err != nil {
		return nil, mapDBError(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, mapDBError(err)
	}
	return o, nil
}

// GetOrder returns one order with its lines hydrated.
func (s *Service) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, mapDBError(err)
	}
	if o == nil {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}
	o.Items, err = s.items.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, mapDBError(err)
	}
	return o, nil
}

// UpdateDetails edits the customer and delivery fields of a Pending order.
// When the destination or delivery type changes without an explicit fee, the
// fee follows the wilaya table; an unknown destination keeps the current fee.
func (s *Service) UpdateDetails(ctx context.Context, orderID int64, in UpdateDetailsInput) (*models.Order, error) {
	if in.DeliveryFee != nil && in.DeliveryFee.IsNegative() {
		return nil, fmt.Errorf("%w: delivery fee must not be negative", ErrInvalidInput)
	}
	if in.DeliveryType != nil && !in.DeliveryType.Valid() {
		return nil, fmt.Errorf("%w: unknown delivery type %q", ErrInvalidInput, string(*in.DeliveryType))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer tx.Rollback()

	orders := s.orders.WithTx(tx)
	items := s.items.WithTx(tx)
	shipping := s.shipping.WithTx(tx)

	o, err := s.loadEditable(ctx, orders, orderID)
	if err != nil {
		return nil, err
	}

	destinationChanged := false
	if in.CustomerName != nil {
		name := strings.TrimSpace(*in.CustomerName)
		if name == "" {
			return nil, fmt.Errorf("%w: customer name is required", ErrInvalidInput)
		}
		o.CustomerName = name
	}
	if in.CustomerPhone != nil {
		phone := strings.TrimSpace(*in.CustomerPhone)
		if phone == "" {
			return nil, fmt.Errorf("%w: customer phone is required", ErrInvalidInput)
		}
		o.CustomerPhone = phone
	}
	if in.DeliveryType != nil && *in.DeliveryType != o.DeliveryType {
		o.DeliveryType = *in.DeliveryType
		destinationChanged = true
	}
	if in.Wilaya != nil {
		w := strings.TrimSpace(*in.Wilaya)
		if w == "" {
			return nil, fmt.Errorf("%w: wilaya is required", ErrInvalidInput)
		}
		if w != o.Wilaya {
			o.Wilaya = w
			destinationChanged = true
		}
	}
	if in.Commune != nil {
		o.Commune = strings.TrimSpace(*in.Commune)
	}
	switch {
	case in.DeliveryFee != nil:
		o.DeliveryFee = *in.DeliveryFee
	case destinationChanged:
		if fee, ok, err := shippingFee(ctx, shipping, o.Wilaya, o.DeliveryType); err != nil {
			return nil, err
		} else if ok {
			o.DeliveryFee = fee
		}
	}

	if err := orders.UpdateDetails(ctx, o); err != nil {
		return nil, mapDBError(err)
	}
	o.Items, err = items.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, mapDBError(err)
	}
	o.RecomputeTotal()
	if err := orders.SetTotal(ctx, o.ID, o.TotalAmount); err != nil {
		return nil, mapDBError(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, mapDBError(err)
	}
	return o, nil
}

// AddItem appends a line to a Pending order, snapshotting the current variant
// price, and refreshes the order total.
func (s *Service) AddItem(ctx context.Context, orderID int64, in ItemInput) (*models.Order, error) {
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer tx.Rollback()

	orders := s.orders.WithTx(tx)
	items := s.items.WithTx(tx)
	variants := s.variants.WithTx(tx)
	products := s.products.WithTx(tx)

	o, err := s.loadEditable(ctx, orders, orderID)
	if err != nil {
		return nil, err
	}
	price, err := snapshotPrice(ctx, variants, products, in.VariantID)
	if err != nil {
		return nil, err
	}
	if _, err := items.Create(ctx, &models.OrderItem{
		OrderID:   o.ID,
		VariantID: in.VariantID,
		Quantity:  in.Quantity,
		Price:     price,
	}); err != nil {
		return nil, mapDBError(err)
	}
	return s.finishItemEdit(ctx, tx, orders, items, variants, o)
}

// UpdateItemQuantity changes the quantity of one line of a Pending order. The
// line's variant and price snapshot are immutable; only the quantity moves.
func (s *Service) UpdateItemQuantity(ctx context.Context, orderID, itemID int64, quantity int) (*models.Order, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer tx.Rollback()

	orders := s.orders.WithTx(tx)
	items := s.items.WithTx(tx)
	variants := s.variants.WithTx(tx)

	o, err := s.loadEditable(ctx, orders, orderID)
	if err != nil {
		return nil, err
	}
	it, err := items.GetByID(ctx, itemID)
	if err != nil {
		return nil, mapDBError(err)
	}
	if it == nil || it.OrderID != orderID {
		return nil, fmt.Errorf("%w: order %d has no item %d", ErrNotFound, orderID, itemID)
	}
	it.Quantity = quantity
	if err := items.Update(ctx, it); err != nil {
		return nil, mapDBError(err)
	}
	return s.finishItemEdit(ctx, tx, orders, items, variants, o)
}

// RemoveItem deletes one line of a Pending order and refreshes the total.
func (s *Service) RemoveItem(ctx context.Context, orderID, itemID int64) (*models.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer tx.Rollback()

	orders := s.orders.WithTx(tx)
	items := s.items.WithTx(tx)
	variants := s.variants.WithTx(tx)

	o, err := s.loadEditable(ctx, orders, orderID)
	if err != nil {
		return nil, err
	}
	it, err := items.GetByID(ctx, itemID)
	if err != nil {
		return nil, mapDBError(err)
	}
	if it == nil || it.OrderID != orderID {
		return nil, fmt.Errorf("%w: order %d has no item %d", ErrNotFound, orderID, itemID)
	}
	if err := items.Delete(ctx, itemID); err != nil {
		return nil, mapDBError(err)
	}
	return s.finishItemEdit(ctx, tx, orders, items, variants, o)
}

// loadEditable fetches an order and rejects the edit unless it is still Pending.
func (s *Service) loadEditable(ctx context.Context, orders *repository.OrderRepository, orderID int64) (*models.Order, error) {
	o, err := orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, mapDBError(err)
	}
	if o == nil {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}
	if o.Status.Locked() {
		return nil, fmt.Errorf("%w: order %d is %s", ErrOrderLocked, o.ID, o.Status)
	}
	return o, nil
}

// finishItemEdit reloads the lines, runs the advisory stock check over the
// edited order, rewrites the total and commits.
func (s *Service) finishItemEdit(ctx context.Context, tx txCommitter, orders *repository.OrderRepository, items *repository.OrderItemRepository, variants *repository.VariantRepository, o *models.Order) (*models.Order, error) {
	var err error
	o.Items, err = items.ListByOrderID(ctx, o.ID)
	if err != nil {
		return nil, mapDBError(err)
	}
	if short, err := variants.CheckAvailable(ctx, models.AggregateRequirements(o.Items)); err != nil {
		return nil, mapDBError(err)
	} else if len(short) > 0 {
		return nil, captureShortfallError(short)
	}
	o.RecomputeTotal()
	if err := orders.SetTotal(ctx, o.ID, o.TotalAmount); err != nil {
		return nil, mapDBError(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, mapDBError(err)
	}
	return o, nil
}

type txCommitter interface {
	Commit() error
}

// resolveFee picks the delivery fee for a destination: an explicit fee wins,
// then the wilaya table by delivery type, then zero.
func resolveFee(ctx context.Context, shipping *repository.ShippingRepository, explicit *decimal.Decimal, wilaya string, dt models.DeliveryType) (decimal.Decimal, error) {
	if explicit != nil {
		return *explicit, nil
	}
	fee, ok, err := shippingFee(ctx, shipping, wilaya, dt)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return decimal.Zero, nil
	}
	return fee, nil
}

func shippingFee(ctx context.Context, shipping *repository.ShippingRepository, wilaya string, dt models.DeliveryType) (decimal.Decimal, bool, error) {
	fee, ok, err := shipping.FeeFor(ctx, wilaya, dt)
	if err != nil {
		return decimal.Zero, false, mapDBError(err)
	}
	return fee, ok, nil
}

// snapshotPrice resolves the effective unit price of a variant at save time.
func snapshotPrice(ctx context.Context, variants *repository.VariantRepository, products *repository.ProductRepository, variantID int64) (decimal.Decimal, error) {
	v, err := variants.GetByID(ctx, variantID)
	if err != nil {
		return decimal.Zero, mapDBError(err)
	}
	if v == nil {
		return decimal.Zero, fmt.Errorf("%w: variant %d", ErrNotFound, variantID)
	}
	if v.Price.Valid {
		return v.Price.Decimal, nil
	}
	p, err := products.GetByID(ctx, v.ProductID)
	if err != nil {
		return decimal.Zero, mapDBError(err)
	}
	if p == nil {
		return decimal.Zero, fmt.Errorf("%w: product %d", ErrNotFound, v.ProductID)
	}
	return v.UnitPrice(p.Price), nil
}

// captureShortfallError renders advisory shortfalls at capture or edit time.
func captureShortfallError(short []models.StockShortfall) error {
	sf := short[0]
	err := fmt.Errorf("%w: %s: required %d, available %d", ErrInsufficientStock, sf.Label, sf.Requested, sf.Available)
	if len(short) > 1 {
		err = fmt.Errorf("%w (and %d more)", err, len(short)-1)
	}
	return err
}
