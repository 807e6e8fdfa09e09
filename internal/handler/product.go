package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/product"
)

type productRequest struct {
	Name     string          `json:"name" validate:"required"`
	Price    decimal.Decimal `json:"price" validate:"gte=0"`
	Category string          `json:"category" validate:"required"`
	Image    string          `json:"image"`
}

func (p *productRequest) decode(d *jx.Decoder, key string) (err error) {
	switch key {
	case "name":
		p.Name, err = d.Str()
	case "price":
		p.Price, err = decodeDecimal(d)
	case "category":
		p.Category, err = d.Str()
	case "image":
		p.Image, err = d.Str()
	default:
		err = d.Skip()
	}
	return err
}

// listProducts returns the catalog, optionally narrowed by ?category=.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	products, err := h.products.List(ctx, product.Filter{Category: r.URL.Query().Get("category")})
	if err != nil {
		h.fail(w, r, errors.Wrap(err, "list products"))
		return
	}
	discounts := h.activeDiscounts(r)

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, p := range products {
				h.encodeProduct(e, p, discounts)
			}
		})
	})
}

// getProduct returns one product together with its active discount.
func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, errors.Wrap(err, "get product"))
		return
	}
	discounts := h.activeDiscounts(r)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		h.encodeProduct(e, *p, discounts)
	})
}

// saveProduct creates or replaces the product at {id}.
func (h *Handler) saveProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeObject(w, r, req.decode); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.fail(w, r, err)
		return
	}

	p := product.Product{
		ID:       r.PathValue("id"),
		Name:     req.Name,
		Price:    req.Price,
		Category: req.Category,
		Image:    req.Image,
	}
	if err := h.products.Save(r.Context(), &p); err != nil {
		h.fail(w, r, errors.Wrap(err, "save product"))
		return
	}
	zctx.From(r.Context()).Info("Product saved", zap.String("product_id", p.ID))
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		h.encodeProduct(e, p, nil)
	})
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.products.Delete(r.Context(), id); err != nil {
		h.fail(w, r, errors.Wrap(err, "delete product"))
		return
	}
	zctx.From(r.Context()).Info("Product deleted", zap.String("product_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// activeDiscounts loads the discount catalog for annotating products. A
// failure only hides discounts from the listing.
func (h *Handler) activeDiscounts(r *http.Request) []discount.Discount {
	ds, err := h.catalog.Discounts(r.Context())
	if err != nil {
		zctx.From(r.Context()).Warn("Discounts unavailable", zap.Error(err))
		return nil
	}
	return ds
}

func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product, discounts []discount.Discount) {
	e.Obj(func(e *jx.Encoder) {
		strField(e, "id", p.ID)
		strField(e, "name", p.Name)
		moneyField(e, "price", p.Price)
		strField(e, "category", p.Category)
		optStrField(e, "image", p.ImageURL(h.imageBaseURL))

		d, ok := discount.FindActive(p.ID, discounts, h.now())
		if !ok {
			return
		}
		if price, ok := discount.DiscountedPrice(p.Price, d.Percentage); ok {
			moneyField(e, "discountedPrice", price)
			e.Field("discount", func(e *jx.Encoder) { encodeDiscount(e, d) })
		}
	})
}
