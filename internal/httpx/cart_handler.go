package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront-commerce.git/internal/cart"
	"github.com/ariefcatur/go-storefront-commerce.git/internal/pricing"
)

type CartStore interface {
	Add(ctx context.Context, userID, productID string, requestedQty int) (cart.Item, error)
	SetQuantity(ctx context.Context, userID, productID string, qty int) (cart.Item, bool, error)
	Remove(ctx context.Context, userID, productID string) error
	Clear(ctx context.Context, userID string, productIDs ...string) (int64, error)
	List(ctx context.Context, userID string) ([]cart.Line, error)
	Counts(ctx context.Context, userID string) (cart.Counts, error)
}

type CartHandler struct {
	Cart    CartStore
	Pricing pricing.Config
}

func (h *CartHandler) Register(r chi.Router) {
	r.Post("/cart/items", h.addItem)
	r.Put("/cart/items", h.setQuantity)
	r.Delete("/cart/items", h.removeItem)
	r.Post("/cart/clear", h.clear)
	r.Get("/cart", h.list)
}

type cartItemReq struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	// quantity pointer: absen = default 1, tapi 0 eksplisit harus sampai
	// ke validasi repo (InvalidQuantity), bukan diam-diam jadi 1.
	var req struct {
		ProductID string `json:"product_id"`
		Quantity  *int   `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "product_id is required"})
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	item, err := h.Cart.Add(ctx, userID(r), req.ProductID, qty)
	if err != nil {
		writeErr(w, err)
		return
	}
	counts, err := h.Cart.Counts(ctx, userID(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item, "counts": counts})
}

func (h *CartHandler) setQuantity(w http.ResponseWriter, r *http.Request) {
	var req cartItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "product_id is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	item, deleted, err := h.Cart.SetQuantity(ctx, userID(r), req.ProductID, req.Quantity)
	if err != nil {
		writeErr(w, err)
		return
	}
	counts, err := h.Cart.Counts(ctx, userID(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	resp := map[string]any{"deleted": deleted, "counts": counts}
	if !deleted {
		resp["item"] = item
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "product_id is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// item absen tetap no-op sukses
	if err := h.Cart.Remove(ctx, userID(r), req.ProductID); err != nil {
		writeErr(w, err)
		return
	}
	counts, err := h.Cart.Counts(ctx, userID(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "counts": counts})
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductIDs []string `json:"product_ids"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	deleted, err := h.Cart.Clear(ctx, userID(r), req.ProductIDs...)
	if err != nil {
		writeErr(w, err)
		return
	}
	counts, err := h.Cart.Counts(ctx, userID(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted, "remaining_count": counts.Items})
}

// list: item + preview quote untuk rendering. Harga final dihitung ulang
// lagi di dalam placement, jadi quote di sini jangan dipakai ulang.
func (h *CartHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	lines, err := h.Cart.List(ctx, userID(r))
	if err != nil {
		writeErr(w, err)
		return
	}

	plines := make([]pricing.Line, 0, len(lines))
	for _, l := range lines {
		plines = append(plines, pricing.Line{UnitPrice: l.UnitPrice, Quantity: l.Quantity})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": lines,
		"quote": h.Pricing.Compute(plines),
	})
}
