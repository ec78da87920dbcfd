// Package auth defines the identity types consumed by the authorization
// subsystem. Authentication itself (sessions, tokens, SSO) is handled by the
// upstream gateway; this package only models the verified principal that the
// gateway forwards with each request.
package auth
