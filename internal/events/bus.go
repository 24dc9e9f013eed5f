// Package events carries order lifecycle notifications over an in-process
// Watermill pub/sub. The transition gateway publishes after commit; the audit
// recorder and the sold-counter projector consume through a router, so a slow
// or failing consumer never blocks or poisons a status change.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ecomOrderManagement/models"
)

// TopicOrderStatusChanged carries one StatusChanged message per committed
// order status transition. No-op self transitions are never published.
const TopicOrderStatusChanged = "orders.status-changed"

// StatusChanged is the payload of TopicOrderStatusChanged.
type StatusChanged struct {
	OrderID    int64               `json:"order_id"`
	From       models.OrderStatus  `json:"from"`
	To         models.OrderStatus  `json:"to"`
	Actor      string              `json:"actor,omitempty"`
	OccurredAt time.Time           `json:"occurred_at"`
	Items      []StatusChangedItem `json:"items,omitempty"`
}

// StatusChangedItem is the slice of an order line a consumer needs: enough for
// the sold-counter projector without a round trip back to the database.
type StatusChangedItem struct {
	ProductID int64 `json:"product_id"`
	VariantID int64 `json:"variant_id"`
	Quantity  int   `json:"quantity"`
}

// ItemsFromOrder converts hydrated order lines into event items.
func ItemsFromOrder(items []models.OrderItem) []StatusChangedItem {
	out := make([]StatusChangedItem, 0, len(items))
	for _, it := range items {
		out = append(out, StatusChangedItem{ProductID: it.ProductID, VariantID: it.VariantID, Quantity: it.Quantity})
	}
	return out
}

// NewBus returns the in-process pub/sub channel shared by publisher and
// subscribers. The buffer keeps publishing non-blocking for bursts of bulk
// transitions; messages published with no subscriber running are dropped,
// which is acceptable for a single-process deployment.
func NewBus(logger *zap.Logger) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, NewWatermillLogger(logger))
}

// PublishStatusChanged marshals ev and publishes it on TopicOrderStatusChanged.
func PublishStatusChanged(pub message.Publisher, ev StatusChanged) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal status change event: %w", err)
	}
	msg := message.NewMessage(uuid.New().String(), payload)
	return pub.Publish(TopicOrderStatusChanged, msg)
}
