package orders

const (
	TopicOrderCreated = "order.created"
	TopicOrderPaid    = "order.paid"
	TopicOrderFailed  = "order.failed"
)

// Partition key = order_id so every event of one order keeps its order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
