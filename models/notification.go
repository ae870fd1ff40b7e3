package models

import "time"

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"

	NotificationSent   = "sent"
	NotificationFailed = "failed"

	NotificationOrderCreated       = "order_created"
	NotificationOrderStatusChanged = "order_status_changed"
)

// NotificationLog records every delivery attempt outcome.
type NotificationLog struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID    string    `gorm:"index" json:"orderId"`
	Recipient  string    `gorm:"not null" json:"recipient"`
	Type       string    `gorm:"type:varchar(40);not null" json:"type"`
	Channel    string    `gorm:"type:varchar(10);not null" json:"channel"`
	Status     string    `gorm:"type:varchar(10);not null" json:"status"`
	Error      string    `json:"error,omitempty"`
	RetryCount int       `json:"retryCount"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// NotificationItem is a product line in an order email.
type NotificationItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// OrderNotification is the payload queued for the notification worker.
type OrderNotification struct {
	Type             string             `json:"type"`
	OrderID          string             `json:"orderId"`
	Email            string             `json:"email"`
	Phone            string             `json:"phone,omitempty"`
	Name             string             `json:"name"`
	Status           OrderStatus        `json:"status"`
	Items            []NotificationItem `json:"items,omitempty"`
	TotalPrice       string             `json:"totalPrice,omitempty"`
	PrescriptionLink string             `json:"prescriptionLink,omitempty"`
}
