package events

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"

	"ecomOrderManagement/models"
	"ecomOrderManagement/repository"
)

// SoldProjector maintains the denormalized products.sold counter: every
// delivered order adds its line quantities to the counter of the product
// behind each variant. Transitions to any other status are ignored.
type SoldProjector struct {
	products *repository.ProductRepository
	logger   *zap.Logger
}

func NewSoldProjector(products *repository.ProductRepository, logger *zap.Logger) *SoldProjector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SoldProjector{products: products, logger: logger}
}

// Handle applies one status change to the sold counters.
func (p *SoldProjector) Handle(msg *message.Message) error {
	var ev StatusChanged
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		p.logger.Error("sold projector: drop malformed status change", zap.String("message_id", msg.UUID), zap.Error(err))
		return nil
	}
	if ev.To != models.OrderStatusDelivered {
		return nil
	}
	for _, it := range ev.Items {
		if it.ProductID == 0 || it.Quantity <= 0 {
			continue
		}
		if err := p.products.IncrementSold(msg.Context(), it.ProductID, it.Quantity); err != nil {
			p.logger.Error("sold projector: increment sold",
				zap.Int64("order_id", ev.OrderID),
				zap.Int64("product_id", it.ProductID),
				zap.Error(err))
			return err
		}
	}
	return nil
}
