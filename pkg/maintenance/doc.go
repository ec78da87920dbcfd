// Package maintenance runs the recurring background jobs that keep the
// authorization data tidy: refreshing the organization hierarchy snapshot,
// pruning long-expired role assignments and enforcing audit retention.
package maintenance
