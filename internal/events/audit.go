package events

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"

	"ecomOrderManagement/models"
	"ecomOrderManagement/repository"
)

// AuditRecorder appends one order_events row per status change message.
type AuditRecorder struct {
	events *repository.OrderEventRepository
	logger *zap.Logger
}

func NewAuditRecorder(events *repository.OrderEventRepository, logger *zap.Logger) *AuditRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditRecorder{events: events, logger: logger}
}

// Handle records the transition in the audit trail. Malformed payloads are
// dropped after logging; redelivery cannot fix them. Database errors are
// returned so the message is redelivered.
func (a *AuditRecorder) Handle(msg *message.Message) error {
	var ev StatusChanged
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		a.logger.Error("audit: drop malformed status change", zap.String("message_id", msg.UUID), zap.Error(err))
		return nil
	}
	err := a.events.Append(msg.Context(), &models.OrderEvent{
		OrderID:    ev.OrderID,
		FromStatus: ev.From,
		ToStatus:   ev.To,
		Actor:      ev.Actor,
	})
	if err != nil {
		a.logger.Error("audit: append order event", zap.Int64("order_id", ev.OrderID), zap.Error(err))
		return err
	}
	a.logger.Debug("audit: recorded status change",
		zap.Int64("order_id", ev.OrderID),
		zap.String("from", string(ev.From)),
		zap.String("to", string(ev.To)))
	return nil
}
