package dto

import "github.com/Additional-Code/orderdesk/internal/entity"

// OrderCreateRequest is the body of POST /orders. Pointer fields distinguish absent from zero.
type OrderCreateRequest struct {
	OrderNumber    *string  `json:"order_number" validate:"required"`
	CustomerName   *string  `json:"customer_name" validate:"required"`
	CustomerAvatar *string  `json:"customer_avatar"`
	OrderDate      *string  `json:"order_date" validate:"required"`
	Status         *string  `json:"status" validate:"required"`
	TotalAmount    *float64 `json:"total_amount" validate:"required"`
	PaymentStatus  *string  `json:"payment_status" validate:"required"`
}

// Entity converts the request into a new order row.
func (r OrderCreateRequest) Entity() *entity.Order {
	return &entity.Order{
		OrderNumber:    deref(r.OrderNumber),
		CustomerName:   deref(r.CustomerName),
		CustomerAvatar: deref(r.CustomerAvatar),
		OrderDate:      deref(r.OrderDate),
		Status:         deref(r.Status),
		TotalAmount:    derefFloat(r.TotalAmount),
		PaymentStatus:  deref(r.PaymentStatus),
	}
}

// OrderUpdateRequest is the body of PUT /orders/:id. Only non-nil fields are written;
// a JSON null is treated the same as an omitted field.
type OrderUpdateRequest struct {
	CustomerName   *string  `json:"customer_name"`
	CustomerAvatar *string  `json:"customer_avatar"`
	OrderDate      *string  `json:"order_date"`
	Status         *string  `json:"status"`
	TotalAmount    *float64 `json:"total_amount"`
	PaymentStatus  *string  `json:"payment_status"`
}

// Changes returns the supplied fields keyed by column name.
func (r OrderUpdateRequest) Changes() map[string]any {
	changes := make(map[string]any)
	if r.CustomerName != nil {
		changes["customer_name"] = *r.CustomerName
	}
	if r.CustomerAvatar != nil {
		changes["customer_avatar"] = *r.CustomerAvatar
	}
	if r.OrderDate != nil {
		changes["order_date"] = *r.OrderDate
	}
	if r.Status != nil {
		changes["status"] = *r.Status
	}
	if r.TotalAmount != nil {
		changes["total_amount"] = *r.TotalAmount
	}
	if r.PaymentStatus != nil {
		changes["payment_status"] = *r.PaymentStatus
	}
	return changes
}

// BulkStatusRequest is the body of PUT /orders/bulk/status.
type BulkStatusRequest struct {
	IDs    []int64 `json:"ids" validate:"required"`
	Status *string `json:"status" validate:"required"`
}

// BulkIDsRequest is the body of the id-list bulk endpoints.
type BulkIDsRequest struct {
	IDs []int64 `json:"ids" validate:"required"`
}

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID             int64   `json:"id"`
	OrderNumber    string  `json:"order_number"`
	CustomerName   string  `json:"customer_name"`
	CustomerAvatar string  `json:"customer_avatar"`
	OrderDate      string  `json:"order_date"`
	Status         string  `json:"status"`
	TotalAmount    float64 `json:"total_amount"`
	PaymentStatus  string  `json:"payment_status"`
}

// NewOrderResponse maps an order row to its wire shape.
func NewOrderResponse(o *entity.Order) OrderResponse {
	return OrderResponse{
		ID:             o.ID,
		OrderNumber:    o.OrderNumber,
		CustomerName:   o.CustomerName,
		CustomerAvatar: o.CustomerAvatar,
		OrderDate:      o.OrderDate,
		Status:         o.Status,
		TotalAmount:    o.TotalAmount,
		PaymentStatus:  o.PaymentStatus,
	}
}

// OrderListResponse is a page of orders; Count is the page length.
type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Count  int             `json:"count"`
}

// NewOrderListResponse maps a page of rows.
func NewOrderListResponse(orders []entity.Order) OrderListResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, NewOrderResponse(&orders[i]))
	}
	return OrderListResponse{Orders: out, Count: len(out)}
}

// BulkUpdatedResponse reports rows changed by a bulk status update.
type BulkUpdatedResponse struct {
	Updated int64 `json:"updated"`
}

// BulkDuplicatedResponse lists the ids created by a bulk duplicate.
type BulkDuplicatedResponse struct {
	DuplicatedIDs []int64 `json:"duplicated_ids"`
}

// BulkDeletedResponse reports rows removed by a bulk delete.
type BulkDeletedResponse struct {
	Deleted int64 `json:"deleted"`
}

// OrderStatsResponse summarises the orders table.
type OrderStatsResponse struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
