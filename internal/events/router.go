package events

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.uber.org/zap"
)

// NewRouter wires the status change consumers onto sub. Each handler holds its
// own subscription, so both see every message independently.
func NewRouter(sub message.Subscriber, audit *AuditRecorder, sold *SoldProjector, logger *zap.Logger) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, NewWatermillLogger(logger))
	if err != nil {
		return nil, err
	}
	router.AddMiddleware(middleware.Recoverer)

	router.AddNoPublisherHandler(
		"order_audit_recorder",
		TopicOrderStatusChanged,
		sub,
		audit.Handle,
	)
	router.AddNoPublisherHandler(
		"sold_counter_projector",
		TopicOrderStatusChanged,
		sub,
		sold.Handle,
	)
	return router, nil
}
