// Package orderrepo persists the order aggregate with GORM. It handles the
// conversion between the domain aggregate and its row representation.
package orderrepo

import (
	"time"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"

	"github.com/google/uuid"
)

// OrderDTO represents the database structure for persisting order aggregates.
// Money columns hold minor units.
type OrderDTO struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	CustomerID      uuid.UUID  `gorm:"type:uuid;index;not null"`
	PartnerID       uuid.UUID  `gorm:"type:uuid;index;not null"`
	AgentID         *uuid.UUID `gorm:"type:uuid;index"`
	AgentName       string
	Subtotal        int64  `gorm:"not null"`
	DeliveryFee     int64  `gorm:"not null"`
	Total           int64  `gorm:"not null"`
	DeliveryAddress string `gorm:"not null"`
	RejectReason    string
	Status          int       `gorm:"index;not null"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

// TableName specifies the database table name for order entities.
func (OrderDTO) TableName() string {
	return "orders"
}

// fromDomain converts an order domain aggregate to its database representation.
func fromDomain(o *order.Order) OrderDTO {
	var agentID *uuid.UUID
	if id := o.AgentID(); id != nil {
		raw := id.Bytes()
		agentID = &raw
	}

	return OrderDTO{
		ID:              o.ID().Bytes(),
		CustomerID:      o.CustomerID().Bytes(),
		PartnerID:       o.PartnerID().Bytes(),
		AgentID:         agentID,
		AgentName:       o.AgentName(),
		Subtotal:        o.Subtotal().Amount(),
		DeliveryFee:     o.DeliveryFee().Amount(),
		Total:           o.Total().Amount(),
		DeliveryAddress: o.DeliveryAddress(),
		RejectReason:    o.RejectReason(),
		Status:          int(o.Status()),
		CreatedAt:       o.CreatedAt(),
		UpdatedAt:       o.UpdatedAt(),
	}
}

// toDomain rebuilds the aggregate through RestoreOrder, so a row that breaks
// an invariant surfaces as an error instead of a corrupt order.
func toDomain(dto OrderDTO) (*order.Order, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return nil, err
	}
	customerID, err := kernel.UUIDFromBytes(dto.CustomerID[:])
	if err != nil {
		return nil, err
	}
	partnerID, err := kernel.UUIDFromBytes(dto.PartnerID[:])
	if err != nil {
		return nil, err
	}

	var agentID *kernel.UUID
	if dto.AgentID != nil {
		aID, agentErr := kernel.UUIDFromBytes((*dto.AgentID)[:])
		if agentErr != nil {
			return nil, agentErr
		}
		agentID = &aID
	}

	subtotal, err := kernel.NewMoney(dto.Subtotal)
	if err != nil {
		return nil, err
	}
	fee, err := kernel.NewMoney(dto.DeliveryFee)
	if err != nil {
		return nil, err
	}

	return order.RestoreOrder(order.Snapshot{
		ID:              id,
		CustomerID:      customerID,
		PartnerID:       partnerID,
		AgentID:         agentID,
		AgentName:       dto.AgentName,
		Subtotal:        subtotal,
		DeliveryFee:     fee,
		DeliveryAddress: dto.DeliveryAddress,
		RejectReason:    dto.RejectReason,
		Status:          order.Status(dto.Status),
		CreatedAt:       dto.CreatedAt,
		UpdatedAt:       dto.UpdatedAt,
	})
}
