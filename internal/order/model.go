package order

import (
	"time"

	"github.com/gofrs/uuid"
)

type OrderStatus string

const (
	StatusNew        OrderStatus = "new"
	StatusProcessing OrderStatus = "processing"
	StatusReady      OrderStatus = "ready"
	StatusDelivered  OrderStatus = "delivered"
	StatusCanceled   OrderStatus = "canceled"
)

func (s OrderStatus) String() string {
	return string(s)
}

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusNew, StatusProcessing, StatusReady, StatusDelivered, StatusCanceled:
		return true
	}
	return false
}

type DeliveryType string

const (
	DeliveryPickup  DeliveryType = "pickup"
	DeliveryCourier DeliveryType = "delivery"
)

type PaymentType string

const (
	PaymentCash     PaymentType = "cash"
	PaymentCard     PaymentType = "card"
	PaymentTransfer PaymentType = "transfer"
)

type OrderItem struct {
	ID      uuid.UUID `json:"id" db:"id"`
	OrderID uuid.UUID `json:"order_id" db:"order_id"`
	// ProductID is nullable: the snapshot outlives catalog deletions.
	ProductID           *uuid.UUID `json:"product_id" db:"product_id"`
	VariantID           *uuid.UUID `json:"variant_id,omitempty" db:"variant_id"`
	Quantity            int        `json:"quantity" db:"quantity"`
	UnitPrice           int64      `json:"unit_price" db:"unit_price"`
	LineTotal           int64      `json:"line_total" db:"line_total"`
	CostPriceSnapshot   int64      `json:"cost_price_snapshot" db:"cost_price_snapshot"`
	ProductNameSnapshot string     `json:"product_name_snapshot" db:"product_name_snapshot"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
}

type Order struct {
	ID                  uuid.UUID    `json:"id" db:"id"`
	OrderNumber         string       `json:"order_number" db:"order_number"`
	CustomerName        string       `json:"customer_name" db:"customer_name"`
	CustomerPhone       string       `json:"customer_phone" db:"customer_phone"`
	DeliveryType        DeliveryType `json:"delivery_type" db:"delivery_type"`
	DeliveryLat         *float64     `json:"delivery_lat,omitempty" db:"delivery_lat"`
	DeliveryLng         *float64     `json:"delivery_lng,omitempty" db:"delivery_lng"`
	DeliveryAddressText *string      `json:"delivery_address_text,omitempty" db:"delivery_address_text"`
	PaymentType         PaymentType  `json:"payment_type" db:"payment_type"`
	Status              OrderStatus  `json:"status" db:"status"`
	TotalAmount         int64        `json:"total_amount" db:"total_amount"`
	Comment             *string      `json:"comment,omitempty" db:"comment"`
	Items               []OrderItem  `json:"items" db:"-"`
	CreatedAt           time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at" db:"updated_at"`
}

// OrderItemInput is one sanitized line of a submission. Prices here are
// client-asserted and only trusted when the trust-client-price policy is on.
type OrderItemInput struct {
	ProductID   uuid.UUID
	VariantID   *uuid.UUID
	Quantity    int
	UnitPrice   int64
	CostPrice   int64
	ProductName string
}

// OrderInput is a sanitized order submission. It is produced only by
// ValidateOrderInput and is the single source of truth for downstream
// stages; the raw payload is never read again after validation.
type OrderInput struct {
	CustomerName        string
	CustomerPhone       string
	DeliveryType        DeliveryType
	DeliveryLat         *float64
	DeliveryLng         *float64
	DeliveryAddressText *string
	PaymentType         PaymentType
	Comment             *string
	Items               []OrderItemInput
}
