// Package middleware provides request throttling for the authorization API.
//
// Two limiter implementations share one configuration shape: an in-process
// token bucket for single-instance deployments and a Redis-backed fixed
// window for fleets. Requests are keyed by the authenticated user id, with
// client IP as the fallback for traffic rejected before identity resolution.
//
// Authorization-specific middleware (identity extraction, user context
// construction, permission gates) lives in pkg/rbac; this package is only
// about protecting the service from request floods.
package middleware
