// Package workitems manages units of work scoped to organizations.
//
// The service layer is the reference pattern for scope enforcement: every
// read of a specific item re-validates the stored row's organization and
// owner against the caller's resolved scope, and every list applies the
// resolved visibility filter verbatim. Out-of-scope resources surface as
// not-found at the API boundary so their existence is not leaked.
package workitems
