package orders

const (
	TopicOrderPlaced    = "order.placed"
	TopicOrderPaid      = "order.paid"
	TopicPaymentFailed  = "order.payment.failed"
	TopicOrderCancelled = "order.cancelled"
	TopicOrderRefunded  = "order.refunded"

	// Inbound: event mentah dari payment gateway, dikonsumsi reconciler.
	TopicGatewayEvents = "payment.gateway.events"
)

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
