// Package postgres provides database and cache connection management:
// a primary/replica PostgreSQL connection manager and a Redis client
// factory for the organization-to-practice mapping cache.
package postgres
