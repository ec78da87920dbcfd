package orgs

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/practicehub/practicehub/pkg/observability"
)

// Hierarchy is an immutable snapshot of the organization tree. Once built it
// is never mutated, so any number of requests may resolve against the same
// snapshot concurrently without synchronization.
type Hierarchy struct {
	children map[string][]string
	parents  map[string]string
	known    map[string]struct{}
	warnings []Warning
}

// NewHierarchy builds a snapshot from a list of organizations. Inactive
// organizations are excluded from traversal. Integrity problems (cycles,
// dangling parent references) are recorded as warnings; they never make the
// build fail.
func NewHierarchy(organizations []Organization) *Hierarchy {
	h := &Hierarchy{
		children: make(map[string][]string),
		parents:  make(map[string]string),
		known:    make(map[string]struct{}, len(organizations)),
	}

	for _, org := range organizations {
		if !org.IsActive {
			continue
		}
		h.known[org.ID] = struct{}{}
	}

	for _, org := range organizations {
		if !org.IsActive || org.ParentOrganizationID == nil {
			continue
		}
		parent := *org.ParentOrganizationID
		if _, ok := h.known[parent]; !ok {
			// Unknown parent: the org becomes a root, not an error.
			h.warnings = append(h.warnings, Warning{
				Kind:           WarningDanglingParent,
				OrganizationID: org.ID,
				Detail:         fmt.Sprintf("parent organization %s does not exist or is inactive", parent),
			})
			continue
		}
		h.children[parent] = append(h.children[parent], org.ID)
		h.parents[org.ID] = parent
	}

	h.warnings = append(h.warnings, h.detectCycles()...)

	return h
}

// detectCycles walks every parent chain with a visited set and reports each
// cycle once, keyed by the smallest org id in the cycle.
func (h *Hierarchy) detectCycles() []Warning {
	var warnings []Warning
	reported := make(map[string]struct{})

	for start := range h.parents {
		seen := map[string]struct{}{start: {}}
		current := start
		for {
			parent, ok := h.parents[current]
			if !ok {
				break
			}
			if _, revisit := seen[parent]; revisit {
				if _, done := reported[parent]; !done {
					reported[parent] = struct{}{}
					warnings = append(warnings, Warning{
						Kind:           WarningCycle,
						OrganizationID: parent,
						Detail:         "parent chain loops back to " + parent,
					})
				}
				break
			}
			seen[parent] = struct{}{}
			current = parent
		}
	}

	return warnings
}

// Warnings returns integrity warnings recorded while building the snapshot.
func (h *Hierarchy) Warnings() []Warning {
	return h.warnings
}

// Contains reports whether the organization exists in the snapshot.
func (h *Hierarchy) Contains(orgID string) bool {
	_, ok := h.known[orgID]
	return ok
}

// DescendantsOf returns the closed set of organization ids reachable from
// orgID via child edges, including orgID itself. Breadth-first with a visited
// set, so traversal terminates even if an edge cycle slipped into the data.
// An unknown orgID yields the singleton set containing itself: callers that
// hold a grant on an id we cannot see should not silently lose it.
func (h *Hierarchy) DescendantsOf(orgID string) map[string]struct{} {
	result := map[string]struct{}{orgID: {}}
	queue := []string{orgID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, child := range h.children[current] {
			if _, visited := result[child]; visited {
				continue
			}
			result[child] = struct{}{}
			queue = append(queue, child)
		}
	}

	return result
}

// AccessibleOrganizations returns the union of every member organization and
// all of its descendants: membership of a parent implies visibility into its
// children.
func (h *Hierarchy) AccessibleOrganizations(userOrgIDs []string) map[string]struct{} {
	result := make(map[string]struct{})
	queue := make([]string, 0, len(userOrgIDs))

	for _, orgID := range userOrgIDs {
		if _, seen := result[orgID]; seen {
			continue
		}
		result[orgID] = struct{}{}
		queue = append(queue, orgID)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, child := range h.children[current] {
			if _, visited := result[child]; visited {
				continue
			}
			result[child] = struct{}{}
			queue = append(queue, child)
		}
	}

	return result
}

// LoaderFunc fetches the current organization list, typically from the store.
type LoaderFunc func(ctx context.Context) ([]Organization, error)

// HierarchyCache holds the current hierarchy snapshot behind an atomic
// pointer. Refresh builds a fresh snapshot and swaps it in; readers always
// see either the old or the new complete snapshot, never partial state.
type HierarchyCache struct {
	snapshot atomic.Pointer[Hierarchy]
	load     LoaderFunc
	logger   *observability.Logger
	onWarn   func(Warning)
}

// NewHierarchyCache creates a cache around the given loader. onWarn, if
// non-nil, is invoked for each integrity warning found during refresh (used
// to feed metrics).
func NewHierarchyCache(load LoaderFunc, logger *observability.Logger, onWarn func(Warning)) *HierarchyCache {
	c := &HierarchyCache{
		load:   load,
		logger: logger,
		onWarn: onWarn,
	}
	c.snapshot.Store(NewHierarchy(nil))
	return c
}

// Refresh rebuilds the snapshot from the loader and swaps it in.
func (c *HierarchyCache) Refresh(ctx context.Context) error {
	organizations, err := c.load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load organization hierarchy: %w", err)
	}

	snapshot := NewHierarchy(organizations)
	for _, w := range snapshot.Warnings() {
		if c.logger != nil {
			c.logger.Security("hierarchy_integrity_warning", map[string]interface{}{
				"kind":            string(w.Kind),
				"organization_id": w.OrganizationID,
				"detail":          w.Detail,
			})
		}
		if c.onWarn != nil {
			c.onWarn(w)
		}
	}

	c.snapshot.Store(snapshot)
	return nil
}

// Current returns the active snapshot. Never nil.
func (c *HierarchyCache) Current() *Hierarchy {
	return c.snapshot.Load()
}
