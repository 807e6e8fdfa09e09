package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
)

const fieldItems = "items"

// apiError is the JSON error body. Field names the offending input when the
// error concerns one.
type apiError struct {
	Status  int
	Message string
	Field   string
}

func (e apiError) write(w http.ResponseWriter) {
	if e.Status == http.StatusServiceUnavailable || e.Status == http.StatusBadGateway {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, e.Status, func(enc *jx.Encoder) {
		enc.Obj(func(enc *jx.Encoder) {
			enc.Field("code", func(enc *jx.Encoder) { enc.Int(e.Status) })
			strField(enc, "message", e.Message)
			optStrField(enc, "field", e.Field)
		})
	})
}

// mapError converts a service error into the response the client sees.
// The second result is false for unexpected errors.
func mapError(err error) (apiError, bool) {
	var (
		validationErr *checkout.ValidationError
		quantityErr   *checkout.InvalidQuantityError
		missingErr    *checkout.ProductNotFoundError
		catalogErr    *catalog.CatalogLoadError
		persistErr    *order.PersistenceError
		fieldErrs     validator.ValidationErrors
		reqErr        *requestError
		paramErr      *invalidField
	)
	switch {
	case errors.As(err, &reqErr):
		return apiError{Status: http.StatusBadRequest, Message: reqErr.Error()}, true
	case errors.As(err, &paramErr):
		return apiError{Status: http.StatusUnprocessableEntity, Message: paramErr.Error(), Field: paramErr.field}, true
	case errors.As(err, &fieldErrs) && len(fieldErrs) > 0:
		f := fieldErrs[0]
		return apiError{
			Status:  http.StatusUnprocessableEntity,
			Message: "invalid or missing " + f.Field(),
			Field:   f.Field(),
		}, true
	case errors.As(err, &validationErr):
		return apiError{Status: http.StatusUnprocessableEntity, Message: err.Error(), Field: validationErr.Field}, true
	case errors.Is(err, checkout.ErrEmptyCart),
		errors.As(err, &quantityErr),
		errors.As(err, &missingErr):
		return apiError{Status: http.StatusUnprocessableEntity, Message: err.Error(), Field: fieldItems}, true
	case errors.Is(err, checkout.ErrUnknownZone):
		return apiError{Status: http.StatusUnprocessableEntity, Message: err.Error(), Field: checkout.FieldShippingZone}, true
	case errors.As(err, &catalogErr):
		return apiError{Status: http.StatusServiceUnavailable, Message: "catalog unavailable: " + catalogErr.Resource}, true
	case errors.As(err, &persistErr):
		return apiError{Status: http.StatusBadGateway, Message: "order could not be saved, please retry"}, true
	case errors.Is(err, checkout.ErrSubmitting),
		errors.Is(err, checkout.ErrSubmitted),
		errors.Is(err, user.ErrExists):
		return apiError{Status: http.StatusConflict, Message: err.Error()}, true
	case errors.Is(err, checkout.ErrSessionNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, discount.ErrNotFound),
		errors.Is(err, user.ErrNotFound):
		return apiError{Status: http.StatusNotFound, Message: err.Error()}, true
	default:
		return apiError{Status: http.StatusInternalServerError, Message: "internal error"}, false
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	e, known := mapError(err)
	if !known {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}
	e.write(w)
}
