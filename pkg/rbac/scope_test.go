package rbac

import (
	"fmt"
	"math/rand"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/practicehub/practicehub/pkg/auth"
	"github.com/practicehub/practicehub/pkg/orgs"
)

func TestResolveFilter_AllIsUnrestricted(t *testing.T) {
	checker := newTestChecker(t, "u1", false, nil,
		Permission{ResourceAnalytics, ActionRead, ScopeAll},
	)

	filter := checker.ResolveFilter(ScopeAll)
	if !filter.Unrestricted() {
		t.Errorf("Expected unrestricted filter, got %s", filter.Kind)
	}
	if filter.MatchesNothing() {
		t.Error("Unrestricted filter must not match nothing")
	}
}

func TestResolveFilter_OrganizationSet(t *testing.T) {
	checker := newTestChecker(t, "u1", false, []string{"clinic-a"},
		Permission{ResourceWorkItems, ActionRead, ScopeOrganization},
	)

	filter := checker.ResolveFilter(ScopeOrganization)
	if filter.Kind != FilterOrganizationSet {
		t.Fatalf("Expected organization_set, got %s", filter.Kind)
	}

	want := []string{"clinic-a", "ward-a1"}
	if !reflect.DeepEqual(filter.OrganizationIDs, want) {
		t.Errorf("Expected org ids %v, got %v", want, filter.OrganizationIDs)
	}
}

func TestResolveFilter_EmptyOrgSetFailsClosed(t *testing.T) {
	// Organization-scoped grant but no memberships at all: the filter must
	// match nothing, never widen into an unrestricted query.
	checker := newTestChecker(t, "u1", false, nil,
		Permission{ResourceWorkItems, ActionRead, ScopeOrganization},
	)

	filter := checker.ResolveFilter(ScopeOrganization)
	if !filter.MatchesNothing() {
		t.Fatalf("Expected match-nothing, got %s", filter.Kind)
	}
	if filter.Unrestricted() {
		t.Error("Fail-closed filter must not be unrestricted")
	}
	if len(filter.OrganizationIDs) != 0 {
		t.Errorf("Expected no org ids, got %v", filter.OrganizationIDs)
	}
}

func TestResolveFilter_OwnerOnly(t *testing.T) {
	checker := newTestChecker(t, "u1", false, []string{"clinic-a"},
		Permission{ResourceWorkItems, ActionRead, ScopeOwn},
	)

	filter := checker.ResolveFilter(ScopeOwn)
	if filter.Kind != FilterOwnerOnly {
		t.Fatalf("Expected owner_only, got %s", filter.Kind)
	}
	if filter.OwnerID != "u1" {
		t.Errorf("Expected owner u1, got %s", filter.OwnerID)
	}
}

func TestResolveFilter_EmptyUserIDFailsClosed(t *testing.T) {
	uc := BuildUserContext(auth.Identity{UserID: ""}, AuthorizationRows{}, time.Now())
	checker := NewChecker(uc, testHierarchy(), nil, nil)

	filter := checker.ResolveFilter(ScopeOwn)
	if !filter.MatchesNothing() {
		t.Errorf("Expected match-nothing for empty user id, got %s", filter.Kind)
	}
}

func TestResolveFilter_NoneFailsClosed(t *testing.T) {
	checker := newTestChecker(t, "u1", false, []string{"clinic-a"})

	filter := checker.ResolveFilter(ScopeNone)
	if !filter.MatchesNothing() {
		t.Errorf("Expected match-nothing for scope none, got %s", filter.Kind)
	}

	filter = checker.ResolveFilter(AccessScope("bogus"))
	if !filter.MatchesNothing() {
		t.Errorf("Expected match-nothing for unrecognized scope, got %s", filter.Kind)
	}
}

func TestResolveFilter_OrganizationScopeProperty(t *testing.T) {
	// Randomized organization trees and membership sets: under organization
	// scope the filter is exactly the accessible set when it is non-empty
	// and match-nothing when it is empty. It is never unrestricted.
	rng := rand.New(rand.NewSource(1))

	for trial := 0; trial < 200; trial++ {
		orgCount := rng.Intn(8)
		organizations := make([]orgs.Organization, 0, orgCount)
		for i := 0; i < orgCount; i++ {
			org := orgs.Organization{ID: fmt.Sprintf("org-%d", i), Name: fmt.Sprintf("org-%d", i), IsActive: true}
			if i > 0 && rng.Intn(2) == 0 {
				parent := fmt.Sprintf("org-%d", rng.Intn(i))
				org.ParentOrganizationID = &parent
			}
			organizations = append(organizations, org)
		}
		hierarchy := orgs.NewHierarchy(organizations)

		var memberOrgs []string
		for i := 0; i < orgCount; i++ {
			if rng.Intn(3) == 0 {
				memberOrgs = append(memberOrgs, fmt.Sprintf("org-%d", i))
			}
		}
		// Sometimes a membership row points at an organization that no
		// longer exists.
		if rng.Intn(4) == 0 {
			memberOrgs = append(memberOrgs, "org-gone")
		}

		memberships := make([]Membership, 0, len(memberOrgs))
		for _, orgID := range memberOrgs {
			memberships = append(memberships, Membership{UserID: "u1", OrganizationID: orgID, IsActive: true})
		}
		uc := BuildUserContext(auth.Identity{UserID: "u1"}, AuthorizationRows{
			Memberships: memberships,
			Assignments: []UserRoleAssignment{{ID: "a1", UserID: "u1", RoleID: "r1", IsActive: true}},
			Roles: map[string]Role{
				"r1": {ID: "r1", Name: "test-role", IsActive: true,
					Permissions: []Permission{{ResourceWorkItems, ActionRead, ScopeOrganization}}},
			},
		}, time.Now())
		checker := NewChecker(uc, hierarchy, nil, nil)

		filter := checker.ResolveFilter(ScopeOrganization)
		if filter.Unrestricted() {
			t.Fatalf("trial %d: organization scope must never be unrestricted (members %v)", trial, memberOrgs)
		}

		accessible := hierarchy.AccessibleOrganizations(uc.MemberOrganizationIDs())
		if len(accessible) == 0 {
			if !filter.MatchesNothing() {
				t.Fatalf("trial %d: empty accessible set must match nothing, got %s (members %v)",
					trial, filter.Kind, memberOrgs)
			}
			continue
		}

		if filter.Kind != FilterOrganizationSet {
			t.Fatalf("trial %d: expected organization_set, got %s", trial, filter.Kind)
		}
		if len(filter.OrganizationIDs) != len(accessible) {
			t.Fatalf("trial %d: filter has %d ids, accessible set has %d",
				trial, len(filter.OrganizationIDs), len(accessible))
		}
		if !sort.StringsAreSorted(filter.OrganizationIDs) {
			t.Fatalf("trial %d: filter ids not sorted: %v", trial, filter.OrganizationIDs)
		}
		for _, id := range filter.OrganizationIDs {
			if _, ok := accessible[id]; !ok {
				t.Fatalf("trial %d: filter leaked id %s outside the accessible set", trial, id)
			}
		}
	}
}
