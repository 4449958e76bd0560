// Package kernel provides the value objects shared by the order domain:
//   - UUID: identifiers for orders, customers, partners and agents
//   - Money: non-negative amounts in minor currency units
//
// Both are immutable and their zero values are invalid, so a value that was
// never constructed is caught by Validate before it reaches persistence or an
// event payload.
package kernel
