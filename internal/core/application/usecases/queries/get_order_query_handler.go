package queries

import (
	"context"
	"time"

	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/pkg/errs"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GetOrderQueryHandler reads a single order row.
type GetOrderQueryHandler struct {
	db *gorm.DB
}

func NewGetOrderQueryHandler(db *gorm.DB) GetOrderQueryHandler {
	return GetOrderQueryHandler{db: db}
}

// orderRow mirrors the columns of the orders table that the read model needs.
type orderRow struct {
	ID              uuid.UUID
	CustomerID      uuid.UUID
	PartnerID       uuid.UUID
	AgentID         *uuid.UUID
	AgentName       string
	Status          int
	Subtotal        int64
	DeliveryFee     int64
	Total           int64
	DeliveryAddress string
	RejectReason    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (r orderRow) response() OrderResponse {
	resp := OrderResponse{
		ID:              r.ID.String(),
		CustomerID:      r.CustomerID.String(),
		PartnerID:       r.PartnerID.String(),
		AgentName:       r.AgentName,
		Status:          order.Status(r.Status).String(),
		Subtotal:        r.Subtotal,
		DeliveryFee:     r.DeliveryFee,
		Total:           r.Total,
		DeliveryAddress: r.DeliveryAddress,
		RejectReason:    r.RejectReason,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
	if r.AgentID != nil {
		resp.AgentID = r.AgentID.String()
	}
	return resp
}

// Handle returns errs.ObjectNotFoundError for an unknown id.
func (h GetOrderQueryHandler) Handle(ctx context.Context, query GetOrderQuery) (OrderResponse, error) {
	if err := query.Validate(); err != nil {
		return OrderResponse{}, err
	}

	var row orderRow
	err := h.db.WithContext(ctx).Raw(`
		SELECT
			id, customer_id, partner_id, agent_id, agent_name, status,
			subtotal, delivery_fee, total, delivery_address, reject_reason,
			created_at, updated_at
		FROM orders
		WHERE id = ?
	`, query.OrderID().Bytes()).Scan(&row).Error
	if err != nil {
		return OrderResponse{}, err
	}
	if row.ID == uuid.Nil {
		return OrderResponse{}, errs.NewObjectNotFoundError("order", query.OrderID().String())
	}

	return row.response(), nil
}
