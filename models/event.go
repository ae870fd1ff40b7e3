package models

import "time"

const (
	EventOrderCreated       = "order_created"
	EventOrderStatusChanged = "order_status_changed"
	EventOrderDeleted       = "order_deleted"
)

// OrderEvent is published to the order events topic on every lifecycle change.
type OrderEvent struct {
	EventID        string      `json:"eventId"`
	Type           string      `json:"type"`
	OrderID        string      `json:"orderId"`
	UserEmail      string      `json:"userEmail"`
	Status         OrderStatus `json:"status"`
	PreviousStatus OrderStatus `json:"previousStatus,omitempty"`
	TransactionID  string      `json:"transactionId,omitempty"`
	TotalPrice     string      `json:"totalPrice"`
	Source         string      `json:"source"`
	OccurredAt     time.Time   `json:"occurredAt"`
}
