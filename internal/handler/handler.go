// Package handler serves the storefront HTTP API.
package handler

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
	// APIKeyPepper keys the HMAC used to hash API keys.
	APIKeyPepper []byte
	// Clock overrides time.Now when evaluating active discounts.
	Clock func() time.Time
}

// Deps are the services the Handler delegates to.
type Deps struct {
	Products  product.Repository
	Catalog   catalog.Source
	Discounts discount.Repository
	Checkout  *checkout.Service
	Orders    *order.Service
	Users     user.Repository
	APIKeys   auth.Repository
}

// Handler maps HTTP requests onto the storefront services.
type Handler struct {
	products  product.Repository
	catalog   catalog.Source
	discounts discount.Repository
	checkout  *checkout.Service
	orders    *order.Service
	users     user.Repository
	apikeys   auth.Repository

	validate     *validator.Validate
	imageBaseURL string
	pepper       []byte
	now          func() time.Time
}

// New constructs a Handler.
func New(cfg Config, deps Deps) *Handler {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(jsonFieldName)
	validate.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	validate.RegisterStructValidation(validatePercentage, discountRequest{})
	return &Handler{
		products:     deps.Products,
		catalog:      deps.Catalog,
		discounts:    deps.Discounts,
		checkout:     deps.Checkout,
		orders:       deps.Orders,
		users:        deps.Users,
		apikeys:      deps.APIKeys,
		validate:     validate,
		imageBaseURL: cfg.ImageBaseURL,
		pepper:       cfg.APIKeyPepper,
		now:          now,
	}
}

// Register mounts every API route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	admin := h.requireScope(auth.ScopeAdmin)

	mux.HandleFunc("GET /api/product", h.listProducts)
	mux.HandleFunc("GET /api/product/{id}", h.getProduct)
	mux.Handle("PUT /api/product/{id}", admin(h.saveProduct))
	mux.Handle("DELETE /api/product/{id}", admin(h.deleteProduct))

	mux.HandleFunc("GET /api/discount", h.listDiscounts)
	mux.HandleFunc("GET /api/product/{id}/discount", h.activeDiscount)
	mux.Handle("POST /api/discount", admin(h.createDiscount))
	mux.Handle("DELETE /api/discount/{id}", admin(h.deleteDiscount))

	mux.HandleFunc("GET /api/shipping-zones", h.listZones)

	mux.HandleFunc("POST /api/checkout", h.withUser(h.startCheckout))
	mux.HandleFunc("GET /api/checkout/{id}", h.getCheckout)
	mux.HandleFunc("PUT /api/checkout/{id}/payment", h.setPayment)
	mux.HandleFunc("PUT /api/checkout/{id}/shipping", h.setShipping)
	mux.HandleFunc("PUT /api/checkout/{id}/zone", h.setZone)
	mux.HandleFunc("PUT /api/checkout/{id}/contact", h.setContact)
	mux.HandleFunc("POST /api/checkout/{id}/reload", h.reloadCheckout)
	mux.HandleFunc("POST /api/checkout/{id}/submit", h.submitCheckout)
	mux.HandleFunc("DELETE /api/checkout/{id}", h.abandonCheckout)

	mux.HandleFunc("GET /api/order", h.withUser(h.listOrders))
	mux.HandleFunc("GET /api/order/{id}", h.getOrder)
	mux.Handle("PATCH /api/order/{id}/status", admin(h.updateOrderStatus))

	mux.HandleFunc("POST /api/user", h.createUser)
	mux.HandleFunc("GET /api/user/{id}", h.getUser)
}
