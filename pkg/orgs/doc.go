// Package orgs models the organization hierarchy: a tree of tenant and
// sub-tenant units where visibility granted on a parent extends to every
// descendant.
//
// The Hierarchy type is an immutable snapshot built from the full
// organization list; HierarchyCache swaps complete snapshots atomically so
// concurrent requests never observe partial state. Traversal is breadth-first
// with a visited set and is guaranteed to terminate even if a cycle is
// accidentally introduced; cycles and dangling parent references are
// surfaced as integrity warnings, not errors.
package orgs
