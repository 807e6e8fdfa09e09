package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/pricing"
)

type itemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity"`
}

type startRequest struct {
	Items []itemRequest `json:"items" validate:"dive"`
}

func (req *startRequest) decode(d *jx.Decoder, key string) error {
	if key != "items" {
		return d.Skip()
	}
	return d.Arr(func(d *jx.Decoder) error {
		var item itemRequest
		err := d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
			switch string(key) {
			case "productId":
				item.ProductID, err = decodeID(d)
			case "quantity":
				item.Quantity, err = d.Int()
			default:
				err = d.Skip()
			}
			return err
		})
		req.Items = append(req.Items, item)
		return err
	})
}

type contactRequest struct {
	Name    string `json:"name" validate:"max=200"`
	Phone   string `json:"phone" validate:"max=50"`
	Address string `json:"address" validate:"max=500"`
	Notes   string `json:"notes" validate:"max=1000"`
	Email   string `json:"email" validate:"omitempty,email"`
}

func (req *contactRequest) decode(d *jx.Decoder, key string) (err error) {
	switch key {
	case "name":
		req.Name, err = d.Str()
	case "phone":
		req.Phone, err = d.Str()
	case "address":
		req.Address, err = d.Str()
	case "notes":
		req.Notes, err = d.Str()
	case "email":
		req.Email, err = d.Str()
	default:
		err = d.Skip()
	}
	return err
}

// decodeString reads {"<name>": "..."} bodies.
func decodeString(w http.ResponseWriter, r *http.Request, name string) (string, error) {
	var v string
	err := decodeObject(w, r, func(d *jx.Decoder, key string) (err error) {
		if key != name {
			return d.Skip()
		}
		v, err = d.Str()
		return err
	})
	return v, err
}

func (h *Handler) startCheckout(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeObject(w, r, req.decode); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.fail(w, r, err)
		return
	}

	items := make([]checkout.Item, len(req.Items))
	for i, it := range req.Items {
		items[i] = checkout.Item{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	sess, err := h.checkout.Start(r.Context(), items)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	zctx.From(r.Context()).Info("Checkout started", zap.String("session_id", sess.ID()))
	writeDraft(w, http.StatusCreated, sess.Draft())
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*checkout.Session, bool) {
	sess, err := h.checkout.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return sess, true
}

func (h *Handler) getCheckout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := h.session(w, r); ok {
		writeDraft(w, http.StatusOK, sess.Draft())
	}
}

// update applies a mutation to the session named in the path and answers
// with the recomputed draft.
func (h *Handler) update(w http.ResponseWriter, r *http.Request, fn func(*checkout.Session) error) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := fn(sess); err != nil {
		h.fail(w, r, err)
		return
	}
	writeDraft(w, http.StatusOK, sess.Draft())
}

func (h *Handler) setPayment(w http.ResponseWriter, r *http.Request) {
	method, err := decodeString(w, r, "method")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.update(w, r, func(s *checkout.Session) error {
		return s.SetPaymentMethod(order.PaymentMethod(method))
	})
}

func (h *Handler) setShipping(w http.ResponseWriter, r *http.Request) {
	method, err := decodeString(w, r, "method")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.update(w, r, func(s *checkout.Session) error {
		return s.SetShippingMethod(order.ShippingMethod(method))
	})
}

func (h *Handler) setZone(w http.ResponseWriter, r *http.Request) {
	zoneID, err := decodeString(w, r, "zoneId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.update(w, r, func(s *checkout.Session) error {
		return s.SetShippingZone(zoneID)
	})
}

func (h *Handler) setContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := decodeObject(w, r, req.decode); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.fail(w, r, err)
		return
	}
	h.update(w, r, func(s *checkout.Session) error {
		return s.SetContact(checkout.Contact(req))
	})
}

func (h *Handler) reloadCheckout(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, func(s *checkout.Session) error {
		return s.Reload(r.Context())
	})
}

func (h *Handler) submitCheckout(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.checkout.Submit(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			strField(e, "orderId", receipt.OrderID)
			e.Field("number", func(e *jx.Encoder) { e.Int64(receipt.Number) })
			moneyField(e, "subtotal", receipt.Subtotal)
			moneyField(e, "shippingCost", receipt.ShippingCost)
			moneyField(e, "total", receipt.Total)
		})
	})
}

func (h *Handler) abandonCheckout(w http.ResponseWriter, r *http.Request) {
	if err := h.checkout.Abandon(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeDraft(w http.ResponseWriter, status int, d checkout.Draft) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			strField(e, "id", d.SessionID)
			optStrField(e, "userId", d.UserID)
			strField(e, "status", string(d.Status))
			optStrField(e, "paymentMethod", string(d.PaymentMethod))
			optStrField(e, "shippingMethod", string(d.ShippingMethod))
			e.Field("zone", func(e *jx.Encoder) {
				if d.Zone == nil {
					e.Null()
					return
				}
				encodeZone(e, *d.Zone)
			})
			e.Field("zones", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, z := range d.Zones {
						encodeZone(e, z)
					}
				})
			})
			e.Field("contact", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					strField(e, "name", d.Contact.Name)
					strField(e, "phone", d.Contact.Phone)
					strField(e, "address", d.Contact.Address)
					strField(e, "notes", d.Contact.Notes)
					strField(e, "email", d.Contact.Email)
				})
			})
			e.Field("lines", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, t := range d.Quote.Lines {
						encodeLine(e, t)
					}
				})
			})
			moneyField(e, "originalSubtotal", d.Quote.Original)
			moneyField(e, "subtotal", d.Quote.Subtotal)
			moneyField(e, "savings", d.Quote.Savings())
			moneyField(e, "shippingCost", d.ShippingCost)
			moneyField(e, "total", d.GrandTotal)
			e.Field("ready", func(e *jx.Encoder) { e.Bool(d.Ready()) })
			optStrField(e, "missing", d.Missing)
			if d.CatalogErr != nil {
				strField(e, "catalogError", d.CatalogErr.Error())
			}
			if d.Receipt != nil {
				strField(e, "orderId", d.Receipt.OrderID)
			}
		})
	})
}

func encodeLine(e *jx.Encoder, t pricing.Total) {
	e.Obj(func(e *jx.Encoder) {
		strField(e, "productId", t.Line.ProductID)
		strField(e, "title", t.Line.Title)
		moneyField(e, "unitPrice", t.Line.UnitPrice)
		e.Field("quantity", func(e *jx.Encoder) { e.Int(t.Line.Quantity) })
		moneyField(e, "originalTotal", t.Original)
		moneyField(e, "total", t.Discounted)
		if t.Applied != nil {
			e.Field("discount", func(e *jx.Encoder) { encodeDiscount(e, *t.Applied) })
		}
	})
}
