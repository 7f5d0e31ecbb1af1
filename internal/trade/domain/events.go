package domain

// EventTimeoutCheck is the delayed event scheduled at order creation.
const EventTimeoutCheck = "OrderTimeoutCheck"

type TimeoutCheck struct {
	OrderID string `json:"orderId"`
}
