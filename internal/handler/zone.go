package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/catalog"
)

func (h *Handler) listZones(w http.ResponseWriter, r *http.Request) {
	zones, err := h.catalog.Zones(r.Context())
	if err != nil {
		h.fail(w, r, &catalog.CatalogLoadError{Resource: catalog.ResourceZones, Err: err})
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, z := range zones {
				encodeZone(e, z)
			}
		})
	})
}

func encodeZone(e *jx.Encoder, z catalog.Zone) {
	e.Obj(func(e *jx.Encoder) {
		strField(e, "id", z.ID)
		strField(e, "name", z.Name)
		moneyField(e, "cost", z.Cost)
	})
}
