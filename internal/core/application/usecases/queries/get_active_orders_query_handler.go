package queries

import (
	"context"

	"orderflow/internal/core/domain/model/order"

	"gorm.io/gorm"
)

// GetActiveOrdersQueryHandler reads the non-terminal orders of one party,
// oldest first.
type GetActiveOrdersQueryHandler struct {
	db *gorm.DB
}

func NewGetActiveOrdersQueryHandler(db *gorm.DB) GetActiveOrdersQueryHandler {
	return GetActiveOrdersQueryHandler{db: db}
}

func (h GetActiveOrdersQueryHandler) Handle(ctx context.Context, query GetActiveOrdersQuery) ([]OrderResponse, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	column, err := ownerColumn(query.Role())
	if err != nil {
		return nil, err
	}

	var rows []orderRow
	err = h.db.WithContext(ctx).
		Table("orders").
		Select(`id, customer_id, partner_id, agent_id, agent_name, status,
			subtotal, delivery_fee, total, delivery_address, reject_reason,
			created_at, updated_at`).
		Where(column+" = ?", query.OwnerID().Bytes()).
		Where("status NOT IN ?", []int{int(order.Rejected), int(order.Delivered)}).
		Order("created_at, id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	orders := make([]OrderResponse, 0, len(rows))
	for _, r := range rows {
		orders = append(orders, r.response())
	}
	return orders, nil
}
