// Package httputil provides the shared JSON response and request parsing
// helpers used by the HTTP handler packages, plus panic recovery for the
// API server.
package httputil
