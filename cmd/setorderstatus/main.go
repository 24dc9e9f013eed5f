// Command setorderstatus rewrites order statuses directly in the database,
// bypassing lifecycle validation, timestamps and stock movements. It exists
// to migrate legacy exports and to seed demo data; never point it at a live
// database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"ecomOrderManagement/internal/db"
	"ecomOrderManagement/models"
	"ecomOrderManagement/repository"
)

func main() {
	var (
		dbPath     = flag.String("db", "app.db", "path to the SQLite database")
		legacy     = flag.Bool("legacy", false, "map legacy statuses (Accepted, Rejected) onto the current set")
		distribute = flag.Bool("distribute", false, "randomly finish Confirmed orders: 60% Delivered, 30% ReturnedByOwner, 10% ReturnedByClient")
		seed       = flag.Int64("seed", 0, "random seed for -distribute (0 uses the current time)")
	)
	flag.Parse()

	if !*legacy && !*distribute {
		fmt.Fprintln(os.Stderr, "nothing to do: pass -legacy and/or -distribute")
		flag.Usage()
		os.Exit(2)
	}

	d, err := db.Open(*dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer func() {
		if err := d.Close(); err != nil {
			log.Printf("close db: %v", err)
		}
	}()

	orders := repository.NewOrderRepository(d)
	ctx := context.Background()

	if *legacy {
		if err := mapLegacyStatuses(ctx, orders); err != nil {
			log.Fatalf("map legacy statuses: %v", err)
		}
	}
	if *distribute {
		if err := distributeConfirmed(ctx, orders, *seed); err != nil {
			log.Fatalf("distribute confirmed orders: %v", err)
		}
	}
}

// mapLegacyStatuses rewrites the status strings older exports used.
func mapLegacyStatuses(ctx context.Context, orders *repository.OrderRepository) error {
	mappings := []struct {
		from models.OrderStatus
		to   models.OrderStatus
	}{
		{"Accepted", models.OrderStatusConfirmed},
		{"Rejected", models.OrderStatusCancelled},
	}
	for _, m := range mappings {
		n, err := orders.ReplaceStatus(ctx, m.from, m.to)
		if err != nil {
			return fmt.Errorf("%s -> %s: %w", m.from, m.to, err)
		}
		if n > 0 {
			log.Printf("mapped %d %q orders to %q", n, m.from, m.to)
		}
	}
	return nil
}

// distributeConfirmed pushes Confirmed orders to an end state in a fixed
// 60/30/10 split, shuffled so reruns with different seeds vary.
func distributeConfirmed(ctx context.Context, orders *repository.OrderRepository, seed int64) error {
	ids, err := orders.ListIDsByStatus(ctx, models.OrderStatusConfirmed)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		log.Println("no Confirmed orders found")
		return nil
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	delivered := len(ids) * 60 / 100
	returnedOwner := len(ids) * 30 / 100
	batches := []struct {
		ids    []int64
		status models.OrderStatus
	}{
		{ids[:delivered], models.OrderStatusDelivered},
		{ids[delivered : delivered+returnedOwner], models.OrderStatusReturnedByOwner},
		{ids[delivered+returnedOwner:], models.OrderStatusReturnedByClient},
	}
	for _, b := range batches {
		if err := orders.UpdateStatusByIDs(ctx, b.ids, b.status); err != nil {
			return fmt.Errorf("set %d orders to %s: %w", len(b.ids), b.status, err)
		}
		log.Printf("set %d orders to %s", len(b.ids), b.status)
	}
	return nil
}
