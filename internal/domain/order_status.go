package domain

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusDispatched OrderStatus = "Dispatched"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

var statusRank = map[OrderStatus]int{
	OrderStatusPending:    0,
	OrderStatusProcessing: 1,
	OrderStatusDispatched: 2,
	OrderStatusDelivered:  3,
}

var statusExplanation = map[OrderStatus]string{
	OrderStatusPending:    "We have received your order and it is waiting to be confirmed.",
	OrderStatusProcessing: "Your order is confirmed and is being packed.",
	OrderStatusDispatched: "Your order has left our warehouse and is on its way to you.",
	OrderStatusDelivered:  "Your order has been delivered. Thank you for shopping with us!",
	OrderStatusCancelled:  "Your order has been cancelled. Contact support if this is unexpected.",
}

func (s OrderStatus) IsValid() bool {
	_, ok := statusExplanation[s]
	return ok
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Explanation returns the customer-facing text for a status.
func (s OrderStatus) Explanation() string {
	if text, ok := statusExplanation[s]; ok {
		return text
	}
	return "Unknown order status."
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether an administrator may move an order from
// one status to another. The workflow only moves forward; Cancelled is
// reachable from any non-terminal status.
func CanTransitionTo(from, to OrderStatus) bool {
	if from.IsTerminal() || !to.IsValid() || from == to {
		return false
	}
	if to == OrderStatusCancelled {
		return true
	}
	return statusRank[to] > statusRank[from]
}
