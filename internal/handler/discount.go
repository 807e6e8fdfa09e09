package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/discount"
)

type discountRequest struct {
	ID         string              `json:"id"`
	ProductID  string              `json:"productId" validate:"required"`
	Percentage discount.Percentage `json:"percentage"`
	StartsAt   time.Time           `json:"startsAt" validate:"required"`
	EndsAt     time.Time           `json:"endsAt" validate:"required,gtefield=StartsAt"`
}

func (req *discountRequest) decode(d *jx.Decoder, key string) (err error) {
	switch key {
	case "id":
		req.ID, err = d.Str()
	case "productId":
		req.ProductID, err = decodeID(d)
	case "percentage":
		err = req.Percentage.Decode(d)
	case "startsAt":
		req.StartsAt, err = decodeTime(d)
	case "endsAt":
		req.EndsAt, err = decodeTime(d)
	default:
		err = d.Skip()
	}
	return err
}

// validatePercentage rejects percentages that do not parse or fall outside
// [0, 100]. Stored discounts are not re-checked.
func validatePercentage(sl validator.StructLevel) {
	req := sl.Current().Interface().(discountRequest)
	if !req.Percentage.InBounds() {
		sl.ReportError(req.Percentage, "percentage", "Percentage", "percentage", "")
	}
}

// decodeID accepts identifiers sent as strings or numbers.
func decodeID(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Number {
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	}
	return d.Str()
}

func (h *Handler) listDiscounts(w http.ResponseWriter, r *http.Request) {
	ds, err := h.catalog.Discounts(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	now := h.now()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, d := range ds {
				e.Obj(func(e *jx.Encoder) {
					discountFields(e, d)
					e.Field("active", func(e *jx.Encoder) { e.Bool(discount.IsActive(d, now)) })
				})
			}
		})
	})
}

// activeDiscount returns the discount currently applied to a product with
// the resulting price.
func (h *Handler) activeDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := h.products.GetByID(ctx, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, errors.Wrap(err, "get product"))
		return
	}
	ds, err := h.catalog.Discounts(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	d, ok := discount.FindActive(p.ID, ds, h.now())
	if !ok {
		h.fail(w, r, discount.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			discountFields(e, d)
			moneyField(e, "originalPrice", p.Price)
			if price, ok := discount.DiscountedPrice(p.Price, d.Percentage); ok {
				amount, _ := discount.DiscountAmount(p.Price, d.Percentage)
				moneyField(e, "discountedPrice", price)
				moneyField(e, "savings", amount)
			}
		})
	})
}

func (h *Handler) createDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req discountRequest
	if err := decodeObject(w, r, req.decode); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.products.GetByID(ctx, req.ProductID); err != nil {
		h.fail(w, r, errors.Wrap(err, "get product"))
		return
	}

	d := discount.Discount{
		ID:         req.ID,
		ProductID:  req.ProductID,
		Percentage: req.Percentage,
		StartsAt:   req.StartsAt,
		EndsAt:     req.EndsAt,
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if err := h.discounts.Create(ctx, &d); err != nil {
		h.fail(w, r, errors.Wrap(err, "create discount"))
		return
	}
	zctx.From(ctx).Info("Discount created",
		zap.String("discount_id", d.ID),
		zap.String("product_id", d.ProductID),
		zap.Stringer("percentage", d.Percentage),
	)
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeDiscount(e, d) })
}

func (h *Handler) deleteDiscount(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.discounts.Delete(r.Context(), id); err != nil {
		h.fail(w, r, errors.Wrap(err, "delete discount"))
		return
	}
	zctx.From(r.Context()).Info("Discount deleted", zap.String("discount_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func encodeDiscount(e *jx.Encoder, d discount.Discount) {
	e.Obj(func(e *jx.Encoder) { discountFields(e, d) })
}

func discountFields(e *jx.Encoder, d discount.Discount) {
	strField(e, "id", d.ID)
	strField(e, "productId", d.ProductID)
	e.Field("percentage", d.Percentage.Encode)
	timeField(e, "startsAt", d.StartsAt)
	timeField(e, "endsAt", d.EndsAt)
	timeField(e, "createdAt", d.CreatedAt)
}
