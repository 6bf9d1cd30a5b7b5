package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront-commerce.git/internal/catalog"
)

type ProductStore interface {
	Get(ctx context.Context, productID string) (catalog.Product, error)
	List(ctx context.Context) ([]catalog.Product, error)
	Restock(ctx context.Context, productID string, delta int) (int, error)
}

type OrderAdmin interface {
	MarkFulfilled(ctx context.Context, orderID string) (bool, error)
	Cancel(ctx context.Context, orderID string) (bool, error)
}

type CatalogHandler struct {
	Products ProductStore
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Get("/products", h.list)
	r.Get("/products/{id}", h.get)
}

func (h *CatalogHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Products.List(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *CatalogHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Products.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// AdminHandler: aksi operator back-office. Otorisasi role ada di gateway
// di depan service ini, bukan di sini.
type AdminHandler struct {
	Products ProductStore
	Orders   OrderAdmin
}

func (h *AdminHandler) Register(r chi.Router) {
	r.Post("/admin/products/{id}/restock", h.restock)
	r.Post("/admin/orders/{id}/fulfil", h.fulfil)
	r.Post("/admin/orders/{id}/cancel", h.cancel)
}

func (h *AdminHandler) restock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delta int `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Delta == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "delta is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stock, err := h.Products.Restock(ctx, chi.URLParam(r, "id"), req.Delta)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"stock": stock})
}

func (h *AdminHandler) fulfil(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	applied, err := h.Orders.MarkFulfilled(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	if !applied {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "order is not in PAID state"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "FULFILLED"})
}

func (h *AdminHandler) cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	applied, err := h.Orders.Cancel(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	if !applied {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "order is not in PENDING state"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "CANCELLED"})
}
