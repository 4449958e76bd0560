// Package transitionrepo persists the per-order transition history used to
// spot events that were committed but never reached the broker.
package transitionrepo

import (
	"time"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/ports"

	"github.com/google/uuid"
)

// TransitionDTO is one row of order_transitions.
type TransitionDTO struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderID     uuid.UUID `gorm:"type:uuid;index;not null"`
	Transition  string    `gorm:"not null"`
	Status      string    `gorm:"not null"`
	Topic       string    `gorm:"not null"`
	Actor       string    `gorm:"not null"`
	OccurredAt  time.Time `gorm:"index;not null"`
	PublishedAt *time.Time
}

func (TransitionDTO) TableName() string {
	return "order_transitions"
}

func fromRecord(r ports.TransitionRecord) TransitionDTO {
	return TransitionDTO{
		ID:          r.ID.Bytes(),
		OrderID:     r.OrderID.Bytes(),
		Transition:  r.Transition,
		Status:      r.Status,
		Topic:       r.Topic,
		Actor:       r.Actor,
		OccurredAt:  r.OccurredAt.UTC(),
		PublishedAt: r.PublishedAt,
	}
}

func toRecord(dto TransitionDTO) (ports.TransitionRecord, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return ports.TransitionRecord{}, err
	}
	orderID, err := kernel.UUIDFromBytes(dto.OrderID[:])
	if err != nil {
		return ports.TransitionRecord{}, err
	}
	return ports.TransitionRecord{
		ID:          id,
		OrderID:     orderID,
		Transition:  dto.Transition,
		Status:      dto.Status,
		Topic:       dto.Topic,
		Actor:       dto.Actor,
		OccurredAt:  dto.OccurredAt,
		PublishedAt: dto.PublishedAt,
	}, nil
}
