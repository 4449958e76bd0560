// Package services provides domain services that do not belong to a single
// aggregate.
//
// The package includes:
//   - NotificationDispatcher: routes a notification to the sender of its
//     channel, chosen from a lookup table built at start-up
package services
