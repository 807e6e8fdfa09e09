package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when an order does not exist.
var ErrNotFound = errors.New("order not found")

// PaymentMethod is how the customer pays.
type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentCard           PaymentMethod = "card"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCashOnDelivery || m == PaymentCard
}

// ShippingMethod selects where the order is delivered.
type ShippingMethod string

const (
	ShippingSavedAddress ShippingMethod = "use_saved_address"
	ShippingNewAddress   ShippingMethod = "enter_new_address"
)

// Valid reports whether m is a known shipping method.
func (m ShippingMethod) Valid() bool {
	return m == ShippingSavedAddress || m == ShippingNewAddress
}

// Status tracks an order through fulfilment.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus validates s as a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusConfirmed, StatusProcessing,
		StatusShipped, StatusCompleted, StatusCancelled:
		return st, nil
	default:
		return "", errors.Errorf("unknown order status %q", s)
	}
}

// Contact holds the delivery contact details.
type Contact struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// Item is a priced order line. Total is the discounted line total charged.
type Item struct {
	ProductID  string          `json:"product_id"`
	Title      string          `json:"title"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity"`
	Original   decimal.Decimal `json:"original"`
	Total      decimal.Decimal `json:"total"`
	DiscountID string          `json:"discount_id,omitempty"`
}

// Order is a submitted checkout.
type Order struct {
	ID             string
	Number         int64
	UserID         string
	Email          string
	PaymentMethod  PaymentMethod
	ShippingMethod ShippingMethod
	ZoneID         string
	ZoneName       string
	Contact        Contact
	Items          []Item
	Subtotal       decimal.Decimal
	ShippingCost   decimal.Decimal
	Total          decimal.Decimal
	Status         Status
	DeliveryUserID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Filter narrows an order listing. Zero values match everything.
type Filter struct {
	UserID         string
	DeliveryUserID string
	Status         Status
	Limit          int
}

// StatusUpdate changes an order's status and optionally its courier.
type StatusUpdate struct {
	Status         Status
	DeliveryUserID *string
}

// Store persists orders. Writes are last-write-wins.
type Store interface {
	Save(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, f Filter) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, u StatusUpdate) (*Order, error)
}

// Notifier delivers a best-effort message to store administrators.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}
