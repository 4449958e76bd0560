// Package order holds the Order aggregate, the authoritative owner of order
// status in the ordering service.
//
// The package includes:
//   - Order: the aggregate root (identity, parties, totals, status, agent)
//   - Status: the lifecycle states
//   - Transition: the requests that move an order between states
//   - Actor: who asks for a transition, used for authorization
//
// Lifecycle:
//
//	Pending ──> Accepted ──> Ready ──> PickedUp ──> Delivered
//	   │            └───────┬───┘
//	   │             AssignAgent (attribute, once)
//	   └──> Rejected
//
// Every transition is checked for legality first (InvalidTransitionError) and
// for authorization second (UnauthorizedError). A failed check never mutates
// the aggregate. Other services only ever see the projection carried by events.
package order
