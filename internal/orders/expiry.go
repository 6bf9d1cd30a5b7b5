package orders

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-storefront-commerce.git/internal/kafka"
)

// ExpiryWorker: kebijakan release stok untuk PENDING order yang
// paymentnya tidak kunjung datang. Pluggable lewat config ORDER_EXPIRY;
// kalau tidak dijalankan, release hanya lewat cancel operator.
type eventPublisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type ExpiryWorker struct {
	Repo        *Repo
	Producer    eventPublisher
	OlderThan   time.Duration
	Every       time.Duration
	ServiceName string
}

func (w *ExpiryWorker) Run(ctx context.Context) {
	every := w.Every
	if every <= 0 {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context) {
	ids, err := w.Repo.ListStalePending(ctx, w.OlderThan, 100)
	if err != nil {
		slog.Error("list stale pending orders", slog.Any("error", err))
		return
	}
	for _, id := range ids {
		// Cancel dijaga (PENDING saja); payment yang menang balapan
		// dengan sweep bikin applied=false, bukan masalah.
		applied, err := w.Repo.Cancel(ctx, id)
		if err != nil {
			slog.Error("cancel expired order", slog.String("order_id", id), slog.Any("error", err))
			continue
		}
		if !applied {
			continue
		}
		slog.Info("expired pending order cancelled", slog.String("order_id", id))
		w.publishCancelled(id)
	}
}

func (w *ExpiryWorker) publishCancelled(orderID string) {
	if w.Producer == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventOrderCancelled,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      w.ServiceName,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(OrderCancelledPayload{OrderID: orderID, Reason: "EXPIRED"}),
	}
	w.Producer.Publish(PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventOrderCancelled)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
