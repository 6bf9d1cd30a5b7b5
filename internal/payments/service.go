package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	kafkax "github.com/ariefcatur/go-storefront-commerce.git/internal/kafka"
	"github.com/ariefcatur/go-storefront-commerce.git/internal/orders"
	"github.com/ariefcatur/go-storefront-commerce.git/internal/redisx"
)

// Outcome: hasil terminal idempoten dari satu event gateway.
type Outcome string

const (
	OutcomeApplied   Outcome = "APPLIED"   // transisi diterapkan
	OutcomeDuplicate Outcome = "DUPLICATE" // event sama sudah pernah diterapkan
	OutcomeUnmatched Outcome = "UNMATCHED" // payment_ref tidak dikenal, di-ack + log
	OutcomeMismatch  Outcome = "MISMATCH"  // amount != total, dicatat untuk review
	OutcomeIgnored   Outcome = "IGNORED"   // transisi tidak valid dari state sekarang
)

// OrderStore adalah potongan orders.Repo yang dibutuhkan reconciliation.
type OrderStore interface {
	GetByPaymentRef(ctx context.Context, paymentRef string) (orders.Order, error)
	MarkPaid(ctx context.Context, paymentRef string) (bool, error)
	MarkPaymentFailed(ctx context.Context, paymentRef string) (bool, error)
	MarkRefunded(ctx context.Context, paymentRef string) (bool, error)
	RecordPaymentAnomaly(ctx context.Context, orderID, paymentRef string, expected, received decimal.Decimal) error
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Orders      OrderStore
	Redis       *redis.Client // optional; dedup fast-path saja, DB tetap kebenaran
	Paid        Publisher
	Failed      Publisher
	Refunded    Publisher
	ServiceName string
}

// HandleEvent memproses satu event gateway sampai outcome terminal.
// Aman dipanggil berulang dan konkuren dengan ref yang sama; semua
// transisi dijaga ulang terhadap state DB saat ini.
func (s *Service) HandleEvent(ctx context.Context, ev GatewayEvent) (Outcome, error) {
	if ev.PaymentRef == "" {
		return OutcomeUnmatched, nil
	}
	switch ev.Status {
	case GatewayCaptured:
		return s.onConfirmed(ctx, ev.PaymentRef, ev.Amount)
	case GatewayFailed:
		return s.onFailed(ctx, ev.PaymentRef, ev.Reason)
	case GatewayRefunded:
		return s.onRefund(ctx, ev.PaymentRef)
	default:
		slog.Warn("unknown gateway event status",
			slog.String("payment_ref", ev.PaymentRef), slog.String("status", ev.Status))
		return OutcomeIgnored, nil
	}
}

func (s *Service) onConfirmed(ctx context.Context, ref string, amount decimal.Decimal) (Outcome, error) {
	if s.seen(ctx, ref, GatewayCaptured) {
		return OutcomeDuplicate, nil
	}

	o, err := s.Orders.GetByPaymentRef(ctx, ref)
	if errors.Is(err, orders.ErrNotFound) {
		// Gateway retry setelah mapping hilang, atau callback palsu.
		// Jangan pernah fabricate order; ack + log.
		slog.Warn("payment confirmation for unknown reference", slog.String("payment_ref", ref))
		return OutcomeUnmatched, nil
	}
	if err != nil {
		return "", err
	}

	if o.Status != orders.StatusPending {
		if o.Status == orders.StatusPaid || o.Status == orders.StatusFulfilled {
			// delivery ulang dari event yang sama; sukses tanpa efek
			s.mark(ctx, ref, GatewayCaptured)
			return OutcomeDuplicate, nil
		}
		slog.Warn("payment confirmation in invalid state",
			slog.String("payment_ref", ref), slog.String("status", string(o.Status)))
		return OutcomeIgnored, nil
	}

	if !amount.Equal(o.Total) {
		// Escalate, jangan auto-resolve; order tetap di state sebelumnya.
		if err := s.Orders.RecordPaymentAnomaly(ctx, o.ID, ref, o.Total, amount); err != nil {
			return "", err
		}
		slog.Error("payment amount mismatch",
			slog.String("order_id", o.ID), slog.String("payment_ref", ref),
			slog.String("expected", o.Total.String()), slog.String("received", amount.String()))
		return OutcomeMismatch, nil
	}

	applied, err := s.Orders.MarkPaid(ctx, ref)
	if err != nil {
		return "", err
	}
	if !applied {
		// kalah balapan dengan delivery konkuren; efek sudah diterapkan sekali
		return OutcomeDuplicate, nil
	}

	s.mark(ctx, ref, GatewayCaptured)
	s.publish(s.Paid, o.ID, orders.EventOrderPaid, orders.OrderPaidPayload{
		OrderID: o.ID, PaymentRef: ref, Amount: amount,
	})
	return OutcomeApplied, nil
}

func (s *Service) onFailed(ctx context.Context, ref, reason string) (Outcome, error) {
	o, err := s.Orders.GetByPaymentRef(ctx, ref)
	if errors.Is(err, orders.ErrNotFound) {
		slog.Warn("payment failure for unknown reference", slog.String("payment_ref", ref))
		return OutcomeUnmatched, nil
	}
	if err != nil {
		return "", err
	}

	applied, err := s.Orders.MarkPaymentFailed(ctx, ref)
	if err != nil {
		return "", err
	}
	if !applied {
		return OutcomeDuplicate, nil
	}

	s.publish(s.Failed, o.ID, orders.EventPaymentFailed, orders.PaymentFailedPayload{
		OrderID: o.ID, PaymentRef: ref, Reason: reason,
	})
	return OutcomeApplied, nil
}

func (s *Service) onRefund(ctx context.Context, ref string) (Outcome, error) {
	o, err := s.Orders.GetByPaymentRef(ctx, ref)
	if errors.Is(err, orders.ErrNotFound) {
		slog.Warn("refund for unknown reference", slog.String("payment_ref", ref))
		return OutcomeUnmatched, nil
	}
	if err != nil {
		return "", err
	}

	applied, err := s.Orders.MarkRefunded(ctx, ref)
	if err != nil {
		return "", err
	}
	if !applied {
		if o.Status == orders.StatusRefunded {
			return OutcomeDuplicate, nil
		}
		// refund dari state yang bukan PAID/FULFILLED: inkonsistensi,
		// log saja, jangan crash
		slog.Warn("refund in invalid state",
			slog.String("payment_ref", ref), slog.String("status", string(o.Status)))
		return OutcomeIgnored, nil
	}

	s.publish(s.Refunded, o.ID, orders.EventOrderRefunded, orders.OrderRefundedPayload{
		OrderID: o.ID, PaymentRef: ref,
	})
	return OutcomeApplied, nil
}

// HandleGatewayMessage: handler untuk consumer topik payment.gateway.events.
// Return nil untuk semua outcome terminal supaya offset di-commit; error
// hanya untuk kegagalan I/O (biar di-retry tanpa commit).
func (s *Service) HandleGatewayMessage(ctx context.Context, m kafkago.Message) error {
	var ev GatewayEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		slog.Error("malformed gateway event", slog.Any("error", err))
		return nil // poison message, jangan diputar ulang selamanya
	}
	out, err := s.HandleEvent(ctx, ev)
	if err != nil {
		return err
	}
	slog.Info("gateway event processed",
		slog.String("payment_ref", ev.PaymentRef),
		slog.String("status", ev.Status),
		slog.String("outcome", string(out)))
	return nil
}

func (s *Service) publish(p Publisher, orderID, eventType string, payload any) {
	if p == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (s *Service) seen(ctx context.Context, ref, phase string) bool {
	if s.Redis == nil {
		return false
	}
	key := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, ref+":"+phase)
	ok, _ := redisx.Exists(ctx, s.Redis, key)
	return ok
}

func (s *Service) mark(ctx context.Context, ref, phase string) {
	if s.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, ref+":"+phase)
	redisx.MarkSeen(ctx, s.Redis, key, redisx.TTLDedup)
}
