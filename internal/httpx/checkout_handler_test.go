package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront-commerce.git/internal/catalog"
	"github.com/ariefcatur/go-storefront-commerce.git/internal/orders"
)

type fakeOrderStore struct {
	placeErr error
	placed   orders.Order
	byID     map[string]orders.Order
}

func (f *fakeOrderStore) Place(_ context.Context, userID string) (orders.Order, error) {
	if f.placeErr != nil {
		return orders.Order{}, f.placeErr
	}
	o := f.placed
	o.UserID = userID
	return o, nil
}

func (f *fakeOrderStore) GetByID(_ context.Context, orderID string) (orders.Order, error) {
	o, ok := f.byID[orderID]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	return o, nil
}

func checkoutRouter(f *fakeOrderStore) *chi.Mux {
	r := NewRouter()
	r.Group(func(g chi.Router) {
		g.Use(Authenticate(&fakeIdentity{users: map[string]string{"tok-1": "user-1"}}))
		(&CheckoutHandler{Orders: f, Currency: "INR", Service: "test-api"}).Register(g)
	})
	return r
}

func TestCheckoutReturnsOrderHandshake(t *testing.T) {
	f := &fakeOrderStore{placed: orders.Order{
		ID:         "order-1",
		Status:     orders.StatusPending,
		PaymentRef: "pay_abc",
		Total:      decimal.RequireFromString("2725"),
	}}
	r := checkoutRouter(f)

	rec := doJSON(t, r, http.MethodPost, "/checkout", "tok-1", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		OrderID    string `json:"order_id"`
		Total      string `json:"total"`
		Currency   string `json:"currency"`
		PaymentRef string `json:"payment_ref"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "order-1", resp.OrderID)
	assert.Equal(t, "2725.00", resp.Total)
	assert.Equal(t, "INR", resp.Currency)
	assert.Equal(t, "pay_abc", resp.PaymentRef)
}

func TestCheckoutEmptyCartRejected(t *testing.T) {
	r := checkoutRouter(&fakeOrderStore{placeErr: orders.ErrCartEmpty})

	rec := doJSON(t, r, http.MethodPost, "/checkout", "tok-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutInsufficientStockConflict(t *testing.T) {
	r := checkoutRouter(&fakeOrderStore{
		placeErr: &catalog.InsufficientStockError{ProductID: "p1", Required: 2, Available: 0},
	})

	rec := doJSON(t, r, http.MethodPost, "/checkout", "tok-1", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"product_id":"p1"`)
}

func TestCheckoutRequiresIdentity(t *testing.T) {
	r := checkoutRouter(&fakeOrderStore{})
	rec := doJSON(t, r, http.MethodPost, "/checkout", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetOrderHidesOtherUsersOrders(t *testing.T) {
	f := &fakeOrderStore{byID: map[string]orders.Order{
		"mine":   {ID: "mine", UserID: "user-1"},
		"theirs": {ID: "theirs", UserID: "user-2"},
	}}
	r := checkoutRouter(f)

	rec := doJSON(t, r, http.MethodGet, "/orders/mine", "tok-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/orders/theirs", "tok-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "order user lain tidak boleh kelihatan ada")

	rec = doJSON(t, r, http.MethodGet, "/orders/ghost", "tok-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
