package queries

import (
	"errors"
	"time"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/pkg/guard"
)

var ErrGetOrderQueryIsNotConstructed = errors.New(
	"GetOrderQuery must be created via NewGetOrderQuery constructor",
)

// GetOrderQuery reads one order by id.
//
// Example:
//
//	query, err := NewGetOrderQuery(orderID)
//	if err != nil {
//	    return err
//	}
//	resp, err := handler.Handle(ctx, query)
type GetOrderQuery struct {
	orderID kernel.UUID

	guard guard.ConstructorGuard
}

func NewGetOrderQuery(orderID kernel.UUID) (GetOrderQuery, error) {
	if err := orderID.Validate(); err != nil {
		return GetOrderQuery{}, err
	}
	return GetOrderQuery{orderID: orderID, guard: guard.NewConstructorGuard()}, nil
}

// Validate ensures the query was created through the constructor.
func (q GetOrderQuery) Validate() error {
	return q.guard.Validate(ErrGetOrderQueryIsNotConstructed)
}

func (q GetOrderQuery) OrderID() kernel.UUID {
	return q.orderID
}

// OrderResponse is the read model of an order. Amounts are in minor units.
type OrderResponse struct {
	ID              string    `json:"id"`
	CustomerID      string    `json:"customerId"`
	PartnerID       string    `json:"partnerId"`
	AgentID         string    `json:"agentId,omitempty"`
	AgentName       string    `json:"agentName,omitempty"`
	Status          string    `json:"status"`
	Subtotal        int64     `json:"subtotal"`
	DeliveryFee     int64     `json:"deliveryFee"`
	Total           int64     `json:"total"`
	DeliveryAddress string    `json:"deliveryAddress"`
	RejectReason    string    `json:"rejectReason,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}
