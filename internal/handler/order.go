package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/user"
)

const maxOrderLimit = 500

// invalidField reports a malformed query parameter as a 422 with field.
type invalidField struct {
	field string
	err   error
}

func (e *invalidField) Error() string { return "invalid " + e.field + ": " + e.err.Error() }

func (e *invalidField) Unwrap() error { return e.err }

var errForeignOrders = errors.New("orders of another user")

// restrictToUser limits f to orders placed by userID, or delivered by it
// when f asks for its deliveries. Filters naming another user fail.
func restrictToUser(f *order.Filter, userID string) error {
	if f.UserID != "" && f.UserID != userID {
		return errForeignOrders
	}
	if f.DeliveryUserID != "" && f.DeliveryUserID != userID {
		return errForeignOrders
	}
	if f.DeliveryUserID == "" {
		f.UserID = userID
	}
	return nil
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, errors.Wrap(err, "get order"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// listOrders filters by userId, deliveryUserId and status. An admin API key
// lists any orders; signed-in users see the orders they placed or deliver,
// and guests are rejected.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	isAdmin, err := h.keyScope(r, auth.ScopeAdmin)
	if err != nil {
		apiError{Status: http.StatusUnauthorized, Message: "unauthorized"}.write(w)
		return
	}
	sess, _ := user.ContextProvider{}.Current(ctx)
	if !isAdmin && sess.Guest() {
		apiError{Status: http.StatusUnauthorized, Message: "sign in required"}.write(w)
		return
	}

	f := order.Filter{
		UserID:         q.Get("userId"),
		DeliveryUserID: q.Get("deliveryUserId"),
	}
	if s := q.Get("status"); s != "" {
		st, err := order.ParseStatus(s)
		if err != nil {
			h.fail(w, r, &invalidField{field: "status", err: err})
			return
		}
		f.Status = st
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > maxOrderLimit {
			h.fail(w, r, &invalidField{field: "limit", err: errors.Errorf("must be between 1 and %d", maxOrderLimit)})
			return
		}
		f.Limit = n
	}
	if !isAdmin {
		if err := restrictToUser(&f, sess.UserID); err != nil {
			apiError{Status: http.StatusForbidden, Message: "forbidden"}.write(w)
			return
		}
	}

	orders, err := h.orders.List(ctx, f)
	if err != nil {
		h.fail(w, r, errors.Wrap(err, "list orders"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range orders {
				encodeOrder(e, &orders[i])
			}
		})
	})
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var (
		status string
		u      order.StatusUpdate
	)
	if err := decodeObject(w, r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "status":
			status, err = d.Str()
		case "deliveryUserId":
			var id string
			id, err = d.Str()
			u.DeliveryUserID = &id
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		h.fail(w, r, err)
		return
	}
	st, err := order.ParseStatus(status)
	if err != nil {
		h.fail(w, r, &invalidField{field: "status", err: err})
		return
	}
	u.Status = st

	o, err := h.orders.UpdateStatus(r.Context(), r.PathValue("id"), u)
	if err != nil {
		h.fail(w, r, errors.Wrap(err, "update order status"))
		return
	}
	zctx.From(r.Context()).Info("Order status updated",
		zap.String("order_id", o.ID),
		zap.String("status", string(o.Status)),
	)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		strField(e, "id", o.ID)
		e.Field("number", func(e *jx.Encoder) { e.Int64(o.Number) })
		optStrField(e, "userId", o.UserID)
		optStrField(e, "email", o.Email)
		strField(e, "status", string(o.Status))
		strField(e, "paymentMethod", string(o.PaymentMethod))
		strField(e, "shippingMethod", string(o.ShippingMethod))
		e.Field("zone", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				strField(e, "id", o.ZoneID)
				strField(e, "name", o.ZoneName)
			})
		})
		e.Field("contact", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				strField(e, "name", o.Contact.Name)
				strField(e, "phone", o.Contact.Phone)
				optStrField(e, "address", o.Contact.Address)
				optStrField(e, "notes", o.Contact.Notes)
			})
		})
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						strField(e, "productId", it.ProductID)
						strField(e, "title", it.Title)
						moneyField(e, "unitPrice", it.UnitPrice)
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
						moneyField(e, "originalTotal", it.Original)
						moneyField(e, "total", it.Total)
						optStrField(e, "discountId", it.DiscountID)
					})
				}
			})
		})
		moneyField(e, "subtotal", o.Subtotal)
		moneyField(e, "shippingCost", o.ShippingCost)
		moneyField(e, "total", o.Total)
		optStrField(e, "deliveryUserId", o.DeliveryUserID)
		timeField(e, "createdAt", o.CreatedAt)
		timeField(e, "updatedAt", o.UpdatedAt)
	})
}
