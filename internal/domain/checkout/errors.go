package checkout

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Required fields, in the order readiness checks them.
const (
	FieldPaymentMethod  = "paymentMethod"
	FieldShippingMethod = "shippingMethod"
	FieldShippingZone   = "shippingZone"
	FieldName           = "name"
	FieldPhone          = "phone"
	FieldAddress        = "address"
)

var (
	// ErrEmptyCart is returned when a session has no lines to submit.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrUnknownZone is returned when selecting a zone missing from the
	// session's catalog snapshot.
	ErrUnknownZone = errors.New("unknown shipping zone")
	// ErrSubmitting is returned when mutating a session while its order is
	// being persisted.
	ErrSubmitting = errors.New("checkout is being submitted")
	// ErrSubmitted is returned when mutating a session whose order was
	// already placed.
	ErrSubmitted = errors.New("checkout already submitted")
	// ErrSessionNotFound is returned for unknown or expired sessions.
	ErrSessionNotFound = errors.New("checkout session not found")
)

// ValidationError reports the first required field that is missing or
// invalid.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid or missing %s", e.Field)
}

// ProductNotFoundError indicates a cart line references an unknown product.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a cart line has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}
