package payments

import "github.com/shopspring/decimal"

// Status dari gateway, apa adanya di callback/topik.
const (
	GatewayCaptured = "captured"
	GatewayFailed   = "failed"
	GatewayRefunded = "refunded"
)

// GatewayEvent adalah bentuk inbound dari payment gateway, baik lewat
// webhook HTTP maupun topik payment.gateway.events. PaymentRef adalah
// satu-satunya kunci dedup.
type GatewayEvent struct {
	PaymentRef string          `json:"payment_ref"`
	Status     string          `json:"status"`
	Amount     decimal.Decimal `json:"amount"`
	Reason     string          `json:"reason,omitempty"`
}
