// Package lifecycle drives order state changes and the inventory movements
// coupled to them. Every transition runs in a single BEGIN IMMEDIATE
// transaction against the current database row, so stale admin screens and
// concurrent operators cannot double-move an order or oversell a variant.
package lifecycle

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"

	"ecomOrderManagement/internal/events"
	"ecomOrderManagement/models"
	"ecomOrderManagement/repository"
)

// Deps lists what the service needs. DB, Orders, Items, Variants, Products and
// Shipping are required; Publisher, Clock and Logger are optional.
type Deps struct {
	DB        *sql.DB
	Orders    *repository.OrderRepository
	Items     *repository.OrderItemRepository
	Variants  *repository.VariantRepository
	Products  *repository.ProductRepository
	Shipping  *repository.ShippingRepository
	Publisher message.Publisher
	Clock     func() time.Time
	Logger    *zap.Logger
}

// Service is the only write path for order status and the stock coupled to it.
// Repositories expose the raw statements; the service owns transaction
// boundaries, validation and event publication.
type Service struct {
	db        *sql.DB
	orders    *repository.OrderRepository
	items     *repository.OrderItemRepository
	variants  *repository.VariantRepository
	products  *repository.ProductRepository
	shipping  *repository.ShippingRepository
	publisher message.Publisher
	clock     func() time.Time
	logger    *zap.Logger
}

// NewService validates deps and returns a ready service.
func NewService(d Deps) (*Service, error) {
	switch {
	case d.DB == nil:
		return nil, fmt.Errorf("lifecycle: DB is required")
	case d.Orders == nil:
		return nil, fmt.Errorf("lifecycle: Orders repository is required")
	case d.Items == nil:
		return nil, fmt.Errorf("lifecycle: Items repository is required")
	case d.Variants == nil:
		return nil, fmt.Errorf("lifecycle: Variants repository is required")
	case d.Products == nil:
		return nil, fmt.Errorf("lifecycle: Products repository is required")
	case d.Shipping == nil:
		return nil, fmt.Errorf("lifecycle: Shipping repository is required")
	}
	if d.Clock == nil {
		d.Clock = func() time.Time { return time.Now().UTC() }
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Service{
		db:        d.DB,
		orders:    d.Orders,
		items:     d.Items,
		variants:  d.Variants,
		products:  d.Products,
		shipping:  d.Shipping,
		publisher: d.Publisher,
		clock:     d.Clock,
		logger:    d.Logger,
	}, nil
}

// RequestTransition moves one order to target and applies the coupled stock
// movement, all inside one write transaction:
//
//	re-read status -> validate edge -> stock gate -> stamp timestamps ->
//	write status -> recompute total -> commit
//
// Requesting the status the order is already in is a successful no-op with no
// side effects. On success the updated order is returned with items hydrated
// and a status change event is published; publish failures are logged, never
// propagated.
func (s *Service) RequestTransition(ctx context.Context, orderID int64, target models.OrderStatus, actor string) (*models.Order, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, string(target))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer tx.Rollback()

	orders := s.orders.WithTx(tx)
	items := s.items.WithTx(tx)
	variants := s.variants.WithTx(tx)

	// The transition is validated against the row as it is now, not against
	// whatever status the caller last saw.
	o, err := orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, mapDBError(err)
	}
	if o == nil {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}
	o.Items, err = items.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, mapDBError(err)
	}

	if target == o.Status {
		return o, nil
	}
	if !o.Status.CanTransitionTo(target) {
		return nil, fmt.Errorf("%w: order %d is %s, cannot move to %s", ErrInvalidTransition, o.ID, o.Status, target)
	}

	if err := applyStockGate(ctx, variants, o, target); err != nil {
		return nil, err
	}

	from := o.Status
	now := s.clock()
	models.StampStatusTimestamps(o, target, now)
	if err := orders.UpdateStatusAndTimestamps(ctx, o); err != nil {
		return nil, mapDBError(err)
	}

	o.RecomputeTotal()
	if err := orders.SetTotal(ctx, o.ID, o.TotalAmount); err != nil {
		return nil, mapDBError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, mapDBError(err)
	}

	s.logger.Info("order status changed",
		zap.Int64("order_id", o.ID),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.String("actor", actor))
	s.publishStatusChanged(o, from, target, actor, now)
	return o, nil
}

// TransitionResult is the outcome for a single order of a bulk request.
type TransitionResult struct {
	OrderID int64
	Order   *models.Order
	Err     error
}

// RequestBulkTransition applies the same target to every order, each in its
// own transaction. One order failing does not stop or roll back the others;
// the caller gets a result per order, in request order.
func (s *Service) RequestBulkTransition(ctx context.Context, orderIDs []int64, target models.OrderStatus, actor string) []TransitionResult {
	out := make([]TransitionResult, 0, len(orderIDs))
	for _, id := range orderIDs {
		o, err := s.RequestTransition(ctx, id, target, actor)
		out = append(out, TransitionResult{OrderID: id, Order: o, Err: err})
	}
	return out
}

// applyStockGate runs the inventory side of entering target, using the same
// transaction the status write will use. Quantities are aggregated per variant
// first: two lines of the same variant gate as one combined demand.
func applyStockGate(ctx context.Context, variants *repository.VariantRepository, o *models.Order, target models.OrderStatus) error {
	reqs := models.AggregateRequirements(o.Items)
	if len(reqs) == 0 {
		return nil
	}
	switch {
	case target == models.OrderStatusConfirmed:
		// Advisory: confirming checks availability but reserves nothing.
		// Stock only leaves inventory on dispatch.
		short, err := variants.CheckAvailable(ctx, reqs)
		if err != nil {
			return mapDBError(err)
		}
		if len(short) > 0 {
			return shortfallError(o.ID, short)
		}
	case target.DecrementsStock():
		short, err := recheckStocks(ctx, variants, reqs)
		if err != nil {
			return err
		}
		if len(short) > 0 {
			return shortfallError(o.ID, short)
		}
		for _, req := range reqs {
			ok, err := variants.DecrementStock(ctx, req.VariantID, req.Quantity)
			if err != nil {
				return mapDBError(err)
			}
			if !ok {
				// The guarded UPDATE saw less stock than the re-check did.
				// Cannot happen under the write lock, but the gate still
				// refuses rather than go negative.
				return fmt.Errorf("%w: order %d: variant #%d: stock changed mid-transaction", ErrInsufficientStock, o.ID, req.VariantID)
			}
		}
	case target.RestocksStock():
		for _, req := range reqs {
			if err := variants.IncrementStock(ctx, req.VariantID, req.Quantity); err != nil {
				return mapDBError(err)
			}
		}
	}
	return nil
}

// recheckStocks reads current stock inside the write transaction and returns
// the requirements it cannot cover. A variant missing from the catalog counts
// as zero stock.
func recheckStocks(ctx context.Context, variants *repository.VariantRepository, reqs []models.StockRequirement) ([]models.StockShortfall, error) {
	ids := make([]int64, 0, len(reqs))
	for _, req := range reqs {
		ids = append(ids, req.VariantID)
	}
	stocks, err := variants.StocksForUpdate(ctx, ids)
	if err != nil {
		return nil, mapDBError(err)
	}
	var short []models.StockShortfall
	for _, req := range reqs {
		st, ok := stocks[req.VariantID]
		if !ok {
			short = append(short, models.StockShortfall{
				VariantID: req.VariantID,
				Label:     fmt.Sprintf("variant #%d", req.VariantID),
				Requested: req.Quantity,
			})
			continue
		}
		if st.Stock < req.Quantity {
			short = append(short, models.StockShortfall{
				VariantID: req.VariantID,
				Label:     st.Label,
				Requested: req.Quantity,
				Available: st.Stock,
			})
		}
	}
	return short, nil
}

// shortfallError renders a shortfall list as a single ErrInsufficientStock,
// naming the first failing variant with its required and available counts.
func shortfallError(orderID int64, short []models.StockShortfall) error {
	sf := short[0]
	err := fmt.Errorf("%w: order %d: %s: required %d, available %d", ErrInsufficientStock, orderID, sf.Label, sf.Requested, sf.Available)
	if len(short) > 1 {
		err = fmt.Errorf("%w (and %d more)", err, len(short)-1)
	}
	return err
}

func (s *Service) publishStatusChanged(o *models.Order, from, to models.OrderStatus, actor string, at time.Time) {
	if s.publisher == nil {
		return
	}
	ev := events.StatusChanged{
		OrderID:    o.ID,
		From:       from,
		To:         to,
		Actor:      actor,
		OccurredAt: at,
		Items:      events.ItemsFromOrder(o.Items),
	}
	if err := events.PublishStatusChanged(s.publisher, ev); err != nil {
		s.logger.Error("publish status change", zap.Int64("order_id", o.ID), zap.Error(err))
	}
}
