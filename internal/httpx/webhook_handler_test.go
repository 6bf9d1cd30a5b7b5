package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront-commerce.git/internal/payments"
)

type fakeRecon struct {
	outcome payments.Outcome
	err     error
	events  []payments.GatewayEvent
}

func (f *fakeRecon) HandleEvent(_ context.Context, ev payments.GatewayEvent) (payments.Outcome, error) {
	f.events = append(f.events, ev)
	return f.outcome, f.err
}

func postWebhook(t *testing.T, recon Reconciler, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := NewRouter()
	(&WebhookHandler{Recon: recon}).Register(r)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestWebhookMalformedBodyRejected(t *testing.T) {
	f := &fakeRecon{}
	rec := postWebhook(t, f, "{broken")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.events, "event rusak tidak boleh sampai ke reconciliation")
}

func TestWebhookAcksTerminalOutcomes(t *testing.T) {
	body := `{"payment_ref":"pay_1","status":"captured","amount":"2725"}`

	// semua outcome terminal harus 200 supaya gateway berhenti retry
	for _, out := range []payments.Outcome{
		payments.OutcomeApplied,
		payments.OutcomeDuplicate,
		payments.OutcomeUnmatched,
		payments.OutcomeMismatch,
		payments.OutcomeIgnored,
	} {
		rec := postWebhook(t, &fakeRecon{outcome: out}, body)
		assert.Equal(t, http.StatusOK, rec.Code, "outcome %s", out)
		assert.Contains(t, rec.Body.String(), string(out))
	}
}

func TestWebhookPassesDecodedEvent(t *testing.T) {
	f := &fakeRecon{outcome: payments.OutcomeApplied}
	rec := postWebhook(t, f, `{"payment_ref":"pay_9","status":"failed","reason":"card_declined"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.events, 1)
	assert.Equal(t, "pay_9", f.events[0].PaymentRef)
	assert.Equal(t, payments.GatewayFailed, f.events[0].Status)
	assert.Equal(t, "card_declined", f.events[0].Reason)
}

func TestWebhookIOErrorIs500ForRetry(t *testing.T) {
	rec := postWebhook(t, &fakeRecon{err: assert.AnError}, `{"payment_ref":"pay_1","status":"captured"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
