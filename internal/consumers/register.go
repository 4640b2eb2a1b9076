package consumers

import (
	"storefront/internal/events"
)

// Handlers groups the in-process consumers.
type Handlers struct {
	Audit        *AuditEvent
	Notification *NotificationEvent
	Order        *OrderEvent
	Projection   ProjectorContract
}

// Register subscribes every consumer to the events it handles.
func Register(bus SubscriberContract, h Handlers) {
	audited := []string{
		events.TransactionInitiated{}.Name(),
		events.TransactionProcessing{}.Name(),
		events.TransactionSucceeded{}.Name(),
		events.TransactionFailed{}.Name(),
		events.TransactionStuck{}.Name(),
		events.OrderPaid{}.Name(),
	}
	if h.Order != nil {
		bus.Subscribe(events.TransactionSucceeded{}.Name(), "order", h.Order.HandleTransactionSucceeded)
	}
	if h.Audit != nil {
		for _, name := range audited {
			bus.Subscribe(name, "audit", h.Audit.HandleAny)
		}
	}
	if h.Projection != nil {
		for _, name := range audited {
			bus.Subscribe(name, "readmodel", h.Projection.Apply)
		}
	}
	if h.Notification != nil {
		bus.Subscribe(events.TransactionSucceeded{}.Name(), "notification", h.Notification.HandleTransactionSucceeded)
		bus.Subscribe(events.TransactionFailed{}.Name(), "notification", h.Notification.HandleTransactionFailed)
	}
}
