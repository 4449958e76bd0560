// Package ports defines the contracts between the application core and its
// adapters: persistence, the unit of work and event publishing.
package ports

import (
	"context"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
)

// OrderRepository defines the persistence contract for order aggregates.
type OrderRepository interface {
	// Add persists a new order aggregate to storage.
	// The order must be valid and not already exist in the repository.
	Add(ctx context.Context, aggregate *order.Order) error

	// Update persists changes to an existing order aggregate.
	// The order must exist in the repository and be valid.
	Update(ctx context.Context, aggregate *order.Order) error

	// Get retrieves an order aggregate by its unique identifier.
	// Returns errs.ObjectNotFoundError when no such order exists.
	Get(ctx context.Context, id kernel.UUID) (*order.Order, error)

	// GetForUpdate retrieves an order and locks its row until the surrounding
	// transaction ends. Transitions of one order are serialized through it.
	//
	// Example:
	//   if err := uow.Begin(ctx); err != nil {
	//       return err
	//   }
	//   o, err := uow.OrderRepository().GetForUpdate(ctx, id)
	GetForUpdate(ctx context.Context, id kernel.UUID) (*order.Order, error)
}
