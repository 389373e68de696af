package entity

import "github.com/uptrace/bun"

// Order is a customer purchase record stored in the orders table.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID             int64   `bun:"id,pk,autoincrement"`
	OrderNumber    string  `bun:"order_number,notnull,unique"`
	CustomerName   string  `bun:"customer_name,notnull"`
	CustomerAvatar string  `bun:"customer_avatar"`
	OrderDate      string  `bun:"order_date,notnull"`
	Status         string  `bun:"status,notnull"`
	TotalAmount    float64 `bun:"total_amount,notnull"`
	PaymentStatus  string  `bun:"payment_status,notnull"`
}

// Copy returns the order payload without its identity, ready to be inserted as a new row.
func (o Order) Copy(orderNumber string) Order {
	return Order{
		OrderNumber:    orderNumber,
		CustomerName:   o.CustomerName,
		CustomerAvatar: o.CustomerAvatar,
		OrderDate:      o.OrderDate,
		Status:         o.Status,
		TotalAmount:    o.TotalAmount,
		PaymentStatus:  o.PaymentStatus,
	}
}
