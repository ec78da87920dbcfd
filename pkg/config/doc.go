// Package config loads and validates application configuration from
// PRACTICEHUB_* environment variables.
package config
