package lifecycle

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ecomOrderManagement/internal/events"
	"ecomOrderManagement/internal/testutil"
	"ecomOrderManagement/models"
	"ecomOrderManagement/repository"
)

// fakeClock is a settable clock so tests can observe which timestamps a
// transition wrote and that re-entering a status never rewrites them.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// capturePublisher records published messages in memory.
type capturePublisher struct {
	mu   sync.Mutex
	msgs []*message.Message
	fail bool
}

func (p *capturePublisher) Publish(topic string, msgs ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("bus down")
	}
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

func (p *capturePublisher) last(t *testing.T) events.StatusChanged {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.msgs) == 0 {
		t.Fatal("no message published")
	}
	var ev events.StatusChanged
	if err := json.Unmarshal(p.msgs[len(p.msgs)-1].Payload, &ev); err != nil {
		t.Fatalf("unmarshal published payload: %v", err)
	}
	return ev
}

type testEnv struct {
	svc      *Service
	orders   *repository.OrderRepository
	items    *repository.OrderItemRepository
	variants *repository.VariantRepository
	products *repository.ProductRepository
	shipping *repository.ShippingRepository
	pub      *capturePublisher
	clock    *fakeClock
}

func newTestEnv(t *testing.T, d *sql.DB) *testEnv {
	t.Helper()
	env := &testEnv{
		orders:   repository.NewOrderRepository(d),
		items:    repository.NewOrderItemRepository(d),
		variants: repository.NewVariantRepository(d),
		products: repository.NewProductRepository(d),
		shipping: repository.NewShippingRepository(d),
		pub:      &capturePublisher{},
		clock:    &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)},
	}
	svc, err := NewService(Deps{
		DB:        d,
		Orders:    env.orders,
		Items:     env.items,
		Variants:  env.variants,
		Products:  env.products,
		Shipping:  env.shipping,
		Publisher: env.pub,
		Clock:     env.clock.Now,
		Logger:    zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	env.svc = svc
	return env
}

// seedVariant creates a product with one variant and returns the variant ID.
func (e *testEnv) seedVariant(t *testing.T, name, price string, stock int) int64 {
	t.Helper()
	ctx := context.Background()
	p, err := e.products.Create(ctx, &models.Product{Name: name, Price: decimal.RequireFromString(price)})
	if err != nil {
		t.Fatalf("seed product %s: %v", name, err)
	}
	v, err := e.variants.Create(ctx, &models.ProductVariant{ProductID: p.ID, Size: "M", Stock: stock})
	if err != nil {
		t.Fatalf("seed variant for %s: %v", name, err)
	}
	return v.ID
}

// seedOrder captures a Pending order with the given lines.
func (e *testEnv) seedOrder(t *testing.T, items ...ItemInput) *models.Order {
	t.Helper()
	o, err := e.svc.CreateOrder(context.Background(), CreateOrderInput{
		CustomerName:  "Amina B",
		CustomerPhone: "0550000000",
		Wilaya:        "Algiers",
		Items:         items,
	})
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return o
}

// walkTo drives a fresh Pending order along a canonical path into status s.
func (e *testEnv) walkTo(t *testing.T, orderID int64, s models.OrderStatus) {
	t.Helper()
	ctx := context.Background()
	var path []models.OrderStatus
	switch s {
	case models.OrderStatusPending:
		return
	case models.OrderStatusConfirmed:
		path = []models.OrderStatus{models.OrderStatusConfirmed}
	case models.OrderStatusOnTheWay:
		path = []models.OrderStatus{models.OrderStatusConfirmed, models.OrderStatusOnTheWay}
	case models.OrderStatusDelivered:
		path = []models.OrderStatus{models.OrderStatusConfirmed, models.OrderStatusOnTheWay, models.OrderStatusDelivered}
	case models.OrderStatusReturnedByClient:
		path = []models.OrderStatus{models.OrderStatusConfirmed, models.OrderStatusOnTheWay, models.OrderStatusReturnedByClient}
	case models.OrderStatusReturnedByOwner:
		path = []models.OrderStatus{models.OrderStatusConfirmed, models.OrderStatusOnTheWay, models.OrderStatusReturnedByOwner}
	case models.OrderStatusCancelled:
		path = []models.OrderStatus{models.OrderStatusCancelled}
	}
	for _, step := range path {
		if _, err := e.svc.RequestTransition(ctx, orderID, step, "test"); err != nil {
			t.Fatalf("walk order %d to %s (step %s): %v", orderID, s, step, err)
		}
	}
}

func (e *testEnv) orderStatus(t *testing.T, id int64) models.OrderStatus {
	t.Helper()
	o, err := e.orders.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload order %d: %v", id, err)
	}
	if o == nil {
		t.Fatalf("order %d disappeared", id)
	}
	return o.Status
}

func (e *testEnv) variantStock(t *testing.T, id int64) int {
	t.Helper()
	v, err := e.variants.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload variant %d: %v", id, err)
	}
	if v == nil {
		t.Fatalf("variant %d disappeared", id)
	}
	return v.Stock
}

func TestService_TransitionEnforcesTable(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "lifecycle_table")
	env := newTestEnv(t, d)
	ctx := context.Background()
	variantID := env.seedVariant(t, "Classic Tee", "2000", 1000)

	for _, from := range models.OrderStatuses() {
		for _, to := range models.OrderStatuses() {
			if from == to {
				continue
			}
			o := env.seedOrder(t, ItemInput{VariantID: variantID, Quantity: 1})
			env.walkTo(t, o.ID, from)

			_, err := env.svc.RequestTransition(ctx, o.ID, to, "test")
			if from.CanTransitionTo(to) {
				if err != nil {
					t.Errorf("%s -> %s: want success, got %v", from, to, err)
				}
				if got := env.orderStatus(t, o.ID); got != to {
					t.Errorf("%s -> %s: stored status = %s", from, to, got)
				}
				continue
			}
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("%s -> %s: want ErrInvalidTransition, got %v", from, to, err)
			}
			// A refused transition must leave the row untouched.
			if got := env.orderStatus(t, o.ID); got != from {
				t.Errorf("%s -> %s refused but stored status moved to %s", from, to, got)
			}
		}
	}
}

func TestService_NoOpTransitionKeepsEverything(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "lifecycle_noop")
	env := newTestEnv(t, d)
	ctx := context.Background()
	variantID := env.seedVariant(t, "Classic Tee", "2000", 10)
	o := env.seedOrder(t, ItemInput{VariantID: variantID, Quantity: 2})

	if _, err := env.svc.RequestTransition(ctx, o.ID, models.OrderStatusConfirmed, "test"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	first, err := env.orders.GetByID(ctx, o.ID)
	if err != nil || first == nil {
		t.Fatalf("reload after confirm: %v", err)
	}
	if first.ConfirmedAt == nil {
		t.Fatal("confirmed_at not set by confirm")
	}
	published := env.pub.count()

	// Re-request Confirmed later: succeeds, changes nothing, emits nothing.
	env.clock.Advance(2 * time.Hour)
	got, err := env.svc.RequestTransition(ctx, o.ID, models.OrderStatusConfirmed, "test")
	if err != nil {
		t.Fatalf("no-op confirm: %v", err)
	}
	if got.Status != models.OrderStatusConfirmed {
		t.Fatalf("no-op returned status %s", got.Status)
	}
	second, err := env.orders.GetByID(ctx, o.ID)
	if err != nil || second == nil {
		t.Fatalf("reload after no-op: %v", err)
	}
	if second.ConfirmedAt == nil || !second.ConfirmedAt.Equal(*first.ConfirmedAt) {
		t.Errorf("no-op rewrote confirmed_at: %v -> %v", first.ConfirmedAt, second.ConfirmedAt)
	}
	if stock := env.variantStock(t, variantID); stock != 10 {
		t.Errorf("no-op moved stock: %d", stock)
	}
	if env.pub.count() != published {
		t.Errorf("no-op published an event")
	}
}

func TestService_DispatchAndReturnScenario(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "lifecycle_dispatch")
	env := newTestEnv(t, d)
	ctx := context.Background()
	variantID := env.seedVariant(t, "Classic Tee", "2000", 5)
	o := env.seedOrder(t, ItemInput{VariantID: variantID, Quantity: 3})

	// Confirm is advisory: stock untouched.
	if _, err := env.svc.RequestTransition(ctx, o.ID, models.OrderStatusConfirmed, "test"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if stock := env.variantStock(t, variantID); stock != 5 {
		t.Fatalf("confirm moved stock to %d", stock)
	}

	// Dispatch decrements.
	got, err := env.svc.RequestTransition(ctx, o.ID, models.OrderStatusOnTheWay, "test")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if got.OnTheWayAt == nil {
		t.Error("dispatch did not stamp on_the_way_at")
	}
	if stock := env.variantStock(t, variantID); stock != 2 {
		t.Fatalf("dispatch left stock at %d, want 2", stock)
	}

	// Client return restores the full quantity.
	got, err = env.svc.RequestTransition(ctx, o.ID, models.OrderStatusReturnedByClient, "test")
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if got.ReturnedAt == nil {
		t.Error("return did not stamp returned_at")
	}
	if stock := env.variantStock(t, variantID); stock != 5 {
		t.Fatalf("return left stock at %d, want 5", stock)
	}
}

func TestService_DispatchInsufficientStock(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "lifecycle_shortfall")
	env := newTestEnv(t, d)
	ctx := context.Background()
	variantID := env.seedVariant(t, "Classic Tee", "2000", 3)
	o := env.seedOrder(t, ItemInput{VariantID: variantID, Quantity: 3})
	env.walkTo(t, o.ID, models.OrderStatusConfirmed)

	// Another sale drains the variant between confirm and dispatch.
	if err := env.variants.SetStock(ctx, variantID, 2); err != nil {
		t.Fatalf("set stock: %v", err)
	}

	_, err := env.svc.RequestTransition(ctx, o.ID, models.OrderStatusOnTheWay, "test")
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("want ErrInsufficientStock, got %v", err)
	}
	for _, want := range []string{"Classic Tee", "required 3", "available 2"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}

	// The whole transition rolled back: status, timestamp and stock unchanged.
	reloaded, err2 := env.orders.GetByID(ctx, o.ID)
	if err2 != nil || reloaded == nil {
		t.Fatalf("reload: %v", err2)
	}
	if reloaded.Status != models.OrderStatusConfirmed {
		t.Errorf("status moved to %s", reloaded.Status)
	}
	if reloaded.OnTheWayAt != nil {
		t.Error("on_the_way_at stamped despite refusal")
	}
	if stock := env.variantStock(t, variantID); stock != 2 {
		t.Errorf("stock moved to %d", stock)
	}
}

func TestService_DispatchAggregatesDuplicateLines(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "lifecycle_aggregate")
	env := newTestEnv(t, d)
	ctx := context.Background()
	variantID := env.seedVariant(t, "Classic Tee", "2000", 10)

	// Two lines of the same variant, 3 + 2 units.
	o := env.seedOrder(t,
		ItemInput{VariantID: variantID, Quantity: 3},
		ItemInput{VariantID: variantID, Quantity: 2},
	)
	env.walkTo(t, o.ID, models.OrderStatusConfirmed)

	// With 4 in stock the combined demand of 5 must fail as one unit...
	if err := env.variants.SetStock(ctx, variantID, 4); err != nil {
		t.Fatalf("set stock: %v", err)
	}
	_, err := env.svc.RequestTransition(ctx, o.ID, models.OrderStatusOnTheWay, "test")
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("want ErrInsufficientStock with stock 4, got %v", err)
	}
	if stock := env.variantStock(t, variantID); stock != 4 {
		t.Fatalf("failed dispatch moved stock to %d", stock)
	}

	// ...and with 5 it succeeds, draining exactly 5.
	if err := env.variants.SetStock(ctx, variantID, 5); err != nil {
		t.Fatalf("set stock: %v", err)
	}
	if _, err := env.svc.RequestTransition(ctx, o.ID, models.OrderStatusOnTheWay, "test"); err != nil {
		t.Fatalf("dispatch with exact stock: %v", err)
	}
	if stock := env.variantStock(t, variantID); stock != 0 {
		t.Fatalf("stock after dispatch = %d, want 0", stock)
	}
}

func TestService_ConcurrentDispatchSharedVariant(t *testing.T) {
	// File-backed database: concurrent write transactions must serialize via
	// the database lock the way production does.
	d := testutil.OpenFileDB(t, "lifecycle_concurrent")
	env := newTestEnv(t, d)
	ctx := context.Background()
	variantID := env.seedVariant(t, "Classic Tee", "2000", 4)

	a := env.seedOrder(t, ItemInput{VariantID: variantID, Quantity: 3})
	b := env.seedOrder(t, ItemInput{VariantID: variantID, Quantity: 3})
	env.walkTo(t, a.ID, models.OrderStatusConfirmed)
	env.walkTo(t, b.ID, models.OrderStatusConfirmed)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []int64{a.ID, b.ID} {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			_, errs[i] = env.svc.RequestTransition(ctx, id, models.OrderStatusOnTheWay, "test")
		}(i, id)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrInsufficientStock):
			lost++
		default:
			t.Fatalf("unexpected dispatch error: %v", err)
		}
	}
	if won != 1 || lost != 1 {
		t.Fatalf("want exactly one winner and one shortfall, got %d wins, %d shortfalls", won, lost)
	}
	if stock := env.variantStock(t, variantID); stock != 1 {
		t.Fatalf("stock after the race = %d, want 1", stock)
	}

	statuses := []models.OrderStatus{env.orderStatus(t, a.ID), env.orderStatus(t, b.ID)}
	var onTheWay, confirmed int
	for _, s := range statuses {
		switch s {
		case models.OrderStatusOnTheWay:
			onTheWay++
		case models.OrderStatusConfirmed:
			confirmed++
		}
	}
	if onTheWay != 1 || confirmed != 1 {
		t.Fatalf("statuses after the race = %v", statuses)
	}
}

func TestService_BulkTransition(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "lifecycle_bulk")
	env := newTestEnv(t, d)
	ctx := context.Background()
	variantID := env.seedVariant(t, "Classic Tee", "2000", 100)

	o1 := env.seedOrder(t, ItemInput{VariantID: variantID, Quantity: 1})
	o2 := env.seedOrder(t, ItemInput{VariantID: variantID, Quantity: 1})
	o3 := env.seedOrder(t, ItemInput{VariantID: variantID, Quantity: 1})
	env.walkTo(t, o2.ID, models.OrderStatusCancelled)

	results := env.svc.RequestBulkTransition(ctx, []int64{o1.ID, o2.ID, o3.ID}, models.OrderStatusConfirmed, "test")
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	var ok, failed int
	for _, r := range results {
		if r.Err == nil {
			ok++
		} else {
			failed++
		}
	}
	if ok != 2 || failed != 1 {
		t.Fatalf("want 2 successes and 1 failure, got %d/%d", ok, failed)
	}
	if results[1].OrderID != o2.ID || !errors.Is(results[1].Err, ErrInvalidTransition) {
		t.Errorf("cancelled order result = %+v", results[1])
	}
	if got := env.orderStatus(t, o1.ID); got != models.OrderStatusConfirmed {
		t.Errorf("order 1 status = %s", got)
	}
	if got := env.orderStatus(t, o2.ID); got != models.OrderStatusCancelled {
		t.Errorf("order 2 status = %s", got)
	}
	if got := env.orderStatus(t, o3.ID); got != models.OrderStatusConfirmed {
		t.Errorf("order 3 status = %s", got)
	}
}

func TestService_PublishesStatusChanged(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "lifecycle_publish")
	env := newTestEnv(t, d)
	ctx := context.Background()
	variantID := env.seedVariant(t, "Classic Tee", "2000", 10)
	o := env.seedOrder(t, ItemInput{VariantID: variantID, Quantity: 2})

	if _, err := env.svc.RequestTransition(ctx, o.ID, models.OrderStatusConfirmed, "amina"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if env.pub.count() != 1 {
		t.Fatalf("published %d messages, want 1", env.pub.count())
	}
	ev := env.pub.last(t)
	if ev.OrderID != o.ID || ev.From != models.OrderStatusPending || ev.To != models.OrderStatusConfirmed {
		t.Errorf("event = %+v", ev)
	}
	if ev.Actor != "amina" {
		t.Errorf("event actor = %q", ev.Actor)
	}
	if len(ev.Items) != 1 || ev.Items[0].VariantID != variantID || ev.Items[0].Quantity != 2 {
		t.Errorf("event items = %+v", ev.Items)
	}

	// A broken bus must not fail the transition.
	env.pub.fail = true
	if _, err := env.svc.RequestTransition(ctx, o.ID, models.OrderStatusOnTheWay, "amina"); err != nil {
		t.Fatalf("dispatch with failing publisher: %v", err)
	}
	if got := env.orderStatus(t, o.ID); got != models.OrderStatusOnTheWay {
		t.Errorf("status = %s despite successful commit", got)
	}
}

func TestService_UnknownOrderAndStatus(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "lifecycle_unknown")
	env := newTestEnv(t, d)
	ctx := context.Background()

	if _, err := env.svc.RequestTransition(ctx, 9999, models.OrderStatusConfirmed, "test"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing order: want ErrNotFound, got %v", err)
	}
	if _, err := env.svc.RequestTransition(ctx, 1, models.OrderStatus("Shipped"), "test"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("unknown status: want ErrInvalidInput, got %v", err)
	}
}
