package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront-commerce.git/internal/cart"
	"github.com/ariefcatur/go-storefront-commerce.git/internal/catalog"
	"github.com/ariefcatur/go-storefront-commerce.git/internal/pricing"
)

type fakeIdentity struct{ users map[string]string }

func (f *fakeIdentity) UserID(_ context.Context, token string) (string, error) {
	uid, ok := f.users[token]
	if !ok {
		return "", ErrUnauthorized
	}
	return uid, nil
}

// fakeCart meniru semantik repo: clamp di Add, reject di SetQuantity.
type fakeCart struct {
	stock map[string]int
	items map[string]int // productID -> qty, satu user cukup untuk test
}

func (f *fakeCart) Add(_ context.Context, _, productID string, qty int) (cart.Item, error) {
	if qty < 1 {
		return cart.Item{}, cart.ErrInvalidQuantity
	}
	stock, ok := f.stock[productID]
	if !ok {
		return cart.Item{}, catalog.ErrNotFound
	}
	if stock == 0 {
		return cart.Item{}, cart.ErrOutOfStock
	}
	next := f.items[productID] + qty
	if next > stock {
		next = stock
	}
	f.items[productID] = next
	return cart.Item{ProductID: productID, Quantity: next}, nil
}

func (f *fakeCart) SetQuantity(_ context.Context, _, productID string, qty int) (cart.Item, bool, error) {
	if qty <= 0 {
		delete(f.items, productID)
		return cart.Item{}, true, nil
	}
	stock, ok := f.stock[productID]
	if !ok {
		return cart.Item{}, false, catalog.ErrNotFound
	}
	if qty > stock {
		return cart.Item{}, false, &catalog.InsufficientStockError{ProductID: productID, Required: qty, Available: stock}
	}
	f.items[productID] = qty
	return cart.Item{ProductID: productID, Quantity: qty}, false, nil
}

func (f *fakeCart) Remove(_ context.Context, _, productID string) error {
	delete(f.items, productID)
	return nil
}

func (f *fakeCart) Clear(_ context.Context, _ string, productIDs ...string) (int64, error) {
	if len(productIDs) == 0 {
		n := int64(len(f.items))
		f.items = map[string]int{}
		return n, nil
	}
	var n int64
	for _, id := range productIDs {
		if _, ok := f.items[id]; ok {
			delete(f.items, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeCart) List(_ context.Context, _ string) ([]cart.Line, error) {
	var out []cart.Line
	for id, qty := range f.items {
		out = append(out, cart.Line{ProductID: id, UnitPrice: decimal.NewFromInt(100), Quantity: qty, Stock: f.stock[id]})
	}
	return out, nil
}

func (f *fakeCart) Counts(_ context.Context, _ string) (cart.Counts, error) {
	c := cart.Counts{Items: len(f.items)}
	for _, q := range f.items {
		c.Units += q
	}
	return c, nil
}

func cartRouter(f *fakeCart) *chi.Mux {
	r := NewRouter()
	r.Group(func(g chi.Router) {
		g.Use(Authenticate(&fakeIdentity{users: map[string]string{"tok-1": "user-1"}}))
		(&CartHandler{Cart: f, Pricing: pricing.DefaultConfig()}).Register(g)
	})
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCartRequiresIdentity(t *testing.T) {
	r := cartRouter(&fakeCart{stock: map[string]int{}, items: map[string]int{}})

	rec := doJSON(t, r, http.MethodPost, "/cart/items", "", `{"product_id":"p1","quantity":1}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/cart/items", "tok-unknown", `{"product_id":"p1","quantity":1}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCartAddItemReturnsItemAndCounts(t *testing.T) {
	f := &fakeCart{stock: map[string]int{"p1": 5}, items: map[string]int{}}
	r := cartRouter(f)

	rec := doJSON(t, r, http.MethodPost, "/cart/items", "tok-1", `{"product_id":"p1","quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Item   cart.Item   `json:"item"`
		Counts cart.Counts `json:"counts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Item.Quantity)
	assert.Equal(t, 1, resp.Counts.Items)
	assert.Equal(t, 2, resp.Counts.Units)
}

func TestCartAddDefaultsQuantityToOne(t *testing.T) {
	f := &fakeCart{stock: map[string]int{"p1": 5}, items: map[string]int{}}
	r := cartRouter(f)

	rec := doJSON(t, r, http.MethodPost, "/cart/items", "tok-1", `{"product_id":"p1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.items["p1"])
}

func TestCartAddExplicitZeroQuantityRejected(t *testing.T) {
	f := &fakeCart{stock: map[string]int{"p1": 5}, items: map[string]int{}}
	r := cartRouter(f)

	// 0 eksplisit bukan "absen"; harus ditolak, bukan dianggap 1
	rec := doJSON(t, r, http.MethodPost, "/cart/items", "tok-1", `{"product_id":"p1","quantity":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.items)

	rec = doJSON(t, r, http.MethodPost, "/cart/items", "tok-1", `{"product_id":"p1","quantity":-2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.items)
}

func TestCartAddOutOfStockConflict(t *testing.T) {
	f := &fakeCart{stock: map[string]int{"p1": 0}, items: map[string]int{}}
	r := cartRouter(f)

	rec := doJSON(t, r, http.MethodPost, "/cart/items", "tok-1", `{"product_id":"p1","quantity":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, f.items)
}

func TestCartSetQuantityRejectsOverStock(t *testing.T) {
	f := &fakeCart{stock: map[string]int{"p1": 3}, items: map[string]int{"p1": 1}}
	r := cartRouter(f)

	rec := doJSON(t, r, http.MethodPut, "/cart/items", "tok-1", `{"product_id":"p1","quantity":7}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"product_id":"p1"`)
	assert.Equal(t, 1, f.items["p1"], "reject tidak boleh mengubah quantity")
}

func TestCartSetQuantityZeroDeletes(t *testing.T) {
	f := &fakeCart{stock: map[string]int{"p1": 3}, items: map[string]int{"p1": 2}}
	r := cartRouter(f)

	rec := doJSON(t, r, http.MethodPut, "/cart/items", "tok-1", `{"product_id":"p1","quantity":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"deleted":true`)
	assert.Empty(t, f.items)
}

func TestCartRemoveAbsentItemIsNoOp(t *testing.T) {
	f := &fakeCart{stock: map[string]int{}, items: map[string]int{}}
	r := cartRouter(f)

	rec := doJSON(t, r, http.MethodDelete, "/cart/items", "tok-1", `{"product_id":"ghost"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCartClearPartial(t *testing.T) {
	f := &fakeCart{stock: map[string]int{"p1": 3, "p2": 3}, items: map[string]int{"p1": 1, "p2": 2}}
	r := cartRouter(f)

	rec := doJSON(t, r, http.MethodPost, "/cart/clear", "tok-1", `{"product_ids":["p1"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Deleted   int64 `json:"deleted"`
		Remaining int   `json:"remaining_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Deleted)
	assert.Equal(t, 1, resp.Remaining)
}

func TestCartListIncludesQuote(t *testing.T) {
	f := &fakeCart{stock: map[string]int{"p1": 5}, items: map[string]int{"p1": 3}}
	r := cartRouter(f)

	rec := doJSON(t, r, http.MethodGet, "/cart", "tok-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Quote pricing.Quote `json:"quote"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	// 3 x 100 = 300 >= 250 -> gratis ongkir, pajak 27
	assert.True(t, resp.Quote.Subtotal.Equal(decimal.NewFromInt(300)))
	assert.True(t, resp.Quote.ShippingFee.IsZero())
	assert.True(t, resp.Quote.Tax.Equal(decimal.NewFromInt(27)))
}
