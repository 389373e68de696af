package order

import "time"

// Event types published on the orders topic.
const (
	EventOrderCreated        = "order.created"
	EventOrderUpdated        = "order.updated"
	EventOrderDeleted        = "order.deleted"
	EventOrdersStatusUpdated = "orders.status_updated"
	EventOrdersDuplicated    = "orders.duplicated"
	EventOrdersDeleted       = "orders.deleted"
)

// Event is the payload of every order domain event. Single-order events carry OrderID and
// OrderNumber; bulk events carry the requested IDs and the number of rows affected.
type Event struct {
	Type        string    `json:"type"`
	OccurredAt  time.Time `json:"occurred_at"`
	OrderID     int64     `json:"order_id,omitempty"`
	OrderNumber string    `json:"order_number,omitempty"`
	Status      string    `json:"status,omitempty"`
	IDs         []int64   `json:"ids,omitempty"`
	CreatedIDs  []int64   `json:"created_ids,omitempty"`
	Affected    int64     `json:"affected"`
}
