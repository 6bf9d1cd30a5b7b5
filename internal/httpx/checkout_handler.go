package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-storefront-commerce.git/internal/kafka"
	"github.com/ariefcatur/go-storefront-commerce.git/internal/orders"
	"github.com/ariefcatur/go-storefront-commerce.git/internal/payments"
)

type OrderStore interface {
	Place(ctx context.Context, userID string) (orders.Order, error)
	GetByID(ctx context.Context, orderID string) (orders.Order, error)
}

type CheckoutHandler struct {
	Orders   OrderStore
	Producer payments.Publisher // topik order.placed; boleh nil di test
	Currency string
	Service  string
}

func (h *CheckoutHandler) Register(r chi.Router) {
	r.Post("/checkout", h.checkout)
	r.Get("/orders/{id}", h.getOrder)
}

type checkoutResp struct {
	OrderID    string `json:"order_id"`
	Total      string `json:"total"`
	Currency   string `json:"currency"`
	PaymentRef string `json:"payment_ref"`
}

// checkout membaca cart user di server; body request tidak dipercaya dan
// tidak dibaca. Hasilnya order PENDING + handshake untuk inisiasi gateway.
func (h *CheckoutHandler) checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.Place(ctx, userID(r))
	if err != nil {
		writeErr(w, err)
		return
	}

	if h.Producer != nil {
		items := make([]orders.ItemSnapshot, 0, len(o.Items))
		for _, it := range o.Items {
			items = append(items, orders.ItemSnapshot{
				ProductID: it.ProductID, Qty: it.Quantity, UnitPrice: it.UnitPrice,
			})
		}
		ev := orders.Envelope{
			EventID:       uuid.NewString(),
			EventType:     orders.EventOrderPlaced,
			EventVersion:  1,
			OccurredAt:    time.Now().UTC(),
			Producer:      h.Service,
			TraceID:       r.Header.Get("X-Request-Id"),
			CorrelationID: o.ID,
			Payload: kafkax.MustMarshal(orders.OrderPlacedPayload{
				OrderID: o.ID, UserID: o.UserID, PaymentRef: o.PaymentRef,
				Items: items, Total: o.Total, Currency: h.Currency,
			}),
		}
		h.Producer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
			kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderPlaced)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
	}

	writeJSON(w, http.StatusCreated, checkoutResp{
		OrderID:    o.ID,
		Total:      o.Total.StringFixed(2),
		Currency:   h.Currency,
		PaymentRef: o.PaymentRef,
	})
}

func (h *CheckoutHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.GetByID(ctx, orderID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if o.UserID != userID(r) {
		// jangan bocorkan keberadaan order milik user lain
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}
	writeJSON(w, http.StatusOK, o)
}
