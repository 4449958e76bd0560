package ports

import (
	"context"
)

// UnitOfWorkFactory hands out one UnitOfWork per command. Instances are not
// shared between goroutines.
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// UnitOfWork is one database transaction over the order row and its
// transition history. Begin must be called before any write; Rollback after
// a successful Commit is a no-op returning an error the caller may ignore.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	// OrderRepository is bound to the open transaction, or to the plain
	// connection when none is open.
	OrderRepository() OrderRepository

	// TransitionRepository shares the transaction of OrderRepository, so a
	// transition and its record commit together.
	TransitionRepository() TransitionRepository
}
