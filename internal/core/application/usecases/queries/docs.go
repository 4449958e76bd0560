// Package queries holds the read side of the ordering service. Handlers read
// rows straight from the database with GORM and return flat responses; they
// never load aggregates.
//
// Pushes to clients are fire-and-forget, so a client that reconnects reads
// the current state through these queries.
package queries
