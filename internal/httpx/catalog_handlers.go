package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/marketplace-core/internal/filter"
	"github.com/ariefcatur/marketplace-core/internal/inventory"
	"github.com/go-chi/chi/v5"
)

func (h *Handlers) listProducts(w http.ResponseWriter, r *http.Request) {
	raw, err := queryMap(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	f, err := filter.DecodeProductFilter(raw)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	page, err := h.Catalog.ListProducts(ctx, f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handlers) listServices(w http.ResponseWriter, r *http.Request) {
	raw, err := queryMap(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	f, err := filter.DecodeServiceFilter(raw)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	page, err := h.Catalog.ListServices(ctx, f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handlers) listShops(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Catalog.ListShops(ctx, q.Get("city"), q.Get("state"), q.Get("exclude_owner_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type adjustStockReq struct {
	Delta int `json:"delta"`
}

func (h *Handlers) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustStockReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	lvl, err := h.Inventory.AdjustStock(ctx, chi.URLParam(r, "id"), req.Delta)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lvl)
}

func (h *Handlers) bulkAdjust(w http.ResponseWriter, r *http.Request) {
	var req []inventory.Adjustment
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	writeJSON(w, http.StatusOK, h.Inventory.BulkAdjust(ctx, req))
}

func (h *Handlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Inventory.SoftDelete(ctx, chi.URLParam(r, "shopID"), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
