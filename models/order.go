package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusUnpaid     OrderStatus = "unpaid"
	StatusPaid       OrderStatus = "paid"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentGateway        PaymentMethod = "gateway"
)

// rank orders the lifecycle. paid and processing are the same step under two
// names, as are pending and unpaid.
var rank = map[OrderStatus]int{
	StatusPending:    0,
	StatusUnpaid:     0,
	StatusPaid:       1,
	StatusProcessing: 1,
	StatusShipped:    2,
	StatusDelivered:  3,
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	_, ok := rank[s]
	return ok || s == StatusCancelled
}

// Rank returns the lifecycle step of s, or -1 for cancelled and unknown values.
func (s OrderStatus) Rank() int {
	if r, ok := rank[s]; ok {
		return r
	}
	return -1
}

// IsPaid reports whether payment has been confirmed for an order in s.
func (s OrderStatus) IsPaid() bool {
	return s.Rank() >= 1
}

// CanTransition reports whether an order may move from one status to another.
// Moves go forward and may skip steps. Cancellation is allowed until the order
// ships. cancelled and delivered are final.
func CanTransition(from, to OrderStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	if from == StatusCancelled || from == StatusDelivered {
		return false
	}
	if to == StatusCancelled {
		return from.Rank() <= 1
	}
	return to.Rank() > from.Rank() || (to.Rank() == 1 && from.Rank() == 1)
}

// Order is a customer's purchase.
type Order struct {
	ID                    uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserEmail             string          `gorm:"not null;index" json:"userEmail"`
	UserName              string          `gorm:"not null" json:"userName"`
	Items                 []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"products"`
	TotalPrice            decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"totalPrice"`
	Currency              string          `gorm:"type:varchar(3);not null" json:"currency"`
	Address               string          `gorm:"not null" json:"address"`
	ContactNumber         string          `gorm:"not null" json:"contactNumber"`
	PaymentMethod         PaymentMethod   `gorm:"type:varchar(30);not null" json:"paymentMethod"`
	Status                OrderStatus     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	TransactionID         string          `gorm:"index" json:"transactionId,omitempty"`
	PrescriptionRequired  bool            `gorm:"not null;default:false" json:"prescriptionRequired"`
	PrescriptionVerified  bool            `gorm:"not null;default:false" json:"prescriptionVerified"`
	PrescriptionImageLink string          `json:"prescriptionImageLink,omitempty"`
	CreatedAt             time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt             time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

// OrderItem is a line item with the unit price at the time of ordering.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"-"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"-"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;index" json:"productId"`
	Product   *Product        `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unitPrice"`
}

// Lines returns the order's line items as ledger input.
func (o *Order) Lines() []LineItem {
	lines := make([]LineItem, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, LineItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return lines
}

// MaxLineQuantity caps the units of one product in a single order.
const MaxLineQuantity = 10000

// ErrLineQuantity is returned for a line whose quantity is not positive or
// exceeds MaxLineQuantity once repeated products are merged.
var ErrLineQuantity = errors.New("invalid line item quantity")

// LineItem is a (product, quantity) pair.
type LineItem struct {
	ProductID uuid.UUID `json:"productId" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1,max=10000"`
}

// MergeLineItems sums quantities of repeated products, keeping first-seen order.
func MergeLineItems(items []LineItem) ([]LineItem, error) {
	idx := make(map[uuid.UUID]int, len(items))
	merged := make([]LineItem, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 || it.Quantity > MaxLineQuantity {
			return nil, fmt.Errorf("%w: product %s", ErrLineQuantity, it.ProductID)
		}
		if i, ok := idx[it.ProductID]; ok {
			if it.Quantity > MaxLineQuantity-merged[i].Quantity {
				return nil, fmt.Errorf("%w: product %s exceeds %d units", ErrLineQuantity, it.ProductID, MaxLineQuantity)
			}
			merged[i].Quantity += it.Quantity
			continue
		}
		idx[it.ProductID] = len(merged)
		merged = append(merged, it)
	}
	return merged, nil
}

type CreateOrderRequest struct {
	Products              []LineItem    `json:"products" binding:"required,min=1,dive"`
	Address               string        `json:"address" binding:"required"`
	ContactNumber         string        `json:"contactNumber" binding:"required"`
	PaymentMethod         PaymentMethod `json:"paymentMethod" binding:"required,oneof=cash_on_delivery gateway"`
	PrescriptionImageLink string        `json:"prescriptionImageLink" binding:"omitempty,url"`
}

// UpdateOrderRequest is a partial update. Products, when present, replaces
// the full line item list.
type UpdateOrderRequest struct {
	Status                *OrderStatus `json:"status" binding:"omitempty,oneof=pending unpaid paid processing shipped delivered cancelled"`
	Products              []LineItem   `json:"products" binding:"omitempty,min=1,dive"`
	Address               *string      `json:"address" binding:"omitempty,min=1"`
	ContactNumber         *string      `json:"contactNumber" binding:"omitempty,min=1"`
	PrescriptionImageLink *string      `json:"prescriptionImageLink" binding:"omitempty,url"`
}

// OrderFilter narrows admin order listings.
type OrderFilter struct {
	Status    OrderStatus
	UserEmail string
	Sort      string
	Page      int
	Limit     int
}

// CreateOrderResult is returned by order creation. PaymentURL is set for
// gateway payments.
type CreateOrderResult struct {
	Order      *Order `json:"order"`
	PaymentURL string `json:"paymentUrl,omitempty"`
}

// PaginationMeta describes one page of a list.
type PaginationMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// NewPaginationMeta computes the page count for total rows.
func NewPaginationMeta(page, limit int, total int64) PaginationMeta {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return PaginationMeta{Page: page, Limit: limit, Total: total, TotalPages: pages}
}
