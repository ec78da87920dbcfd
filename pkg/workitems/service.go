package workitems

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/practicehub/practicehub/pkg/audit"
	"github.com/practicehub/practicehub/pkg/observability"
	"github.com/practicehub/practicehub/pkg/rbac"
)

// Service wraps the store with per-operation authorization. Every mutation
// verifies the concrete resource against the caller's resolved scope before
// touching storage, and every list applies the resolved visibility filter.
type Service struct {
	store  *Store
	audit  audit.Logger
	logger *observability.Logger
}

// NewService creates a work item service. auditLogger may be nil, which
// disables audit events.
func NewService(store *Store, auditLogger audit.Logger, logger *observability.Logger) *Service {
	if auditLogger == nil {
		auditLogger = &audit.NoOpLogger{}
	}
	return &Service{store: store, audit: auditLogger, logger: logger}
}

// Create verifies create access against the target organization, then
// inserts the item. With an own-scoped grant the caller can only create
// items they own themselves.
func (s *Service) Create(ctx context.Context, guard *rbac.ScopedGuard, input CreateInput) (*WorkItem, error) {
	if input.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if input.OrganizationID == "" {
		return nil, fmt.Errorf("organization_id is required")
	}

	ownerID := input.OwnerID
	if ownerID == "" {
		ownerID = guard.Checker().UserContext().UserID()
	}

	if err := guard.VerifyOperation(rbac.ResourceWorkItems, rbac.ActionCreate, rbac.ResourceRef{
		OwnerID:        ownerID,
		OrganizationID: input.OrganizationID,
	}); err != nil {
		s.recordDenied(ctx, guard, "work_items:create", "", err)
		return nil, err
	}

	now := time.Now().UTC()
	item := &WorkItem{
		ID:             uuid.NewString(),
		Title:          input.Title,
		Description:    input.Description,
		Status:         StatusOpen,
		OrganizationID: input.OrganizationID,
		OwnerID:        ownerID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.Create(ctx, item); err != nil {
		return nil, err
	}

	s.recordDataEvent(ctx, guard, audit.EventTypeWorkItemCreate, item)
	return item, nil
}

// Get retrieves a single work item. The row is fetched first, then its
// organization and owner are checked against the caller's scope; a
// resource outside the caller's visibility surfaces as out-of-scope, which
// the API boundary reports as not-found.
func (s *Service) Get(ctx context.Context, guard *rbac.ScopedGuard, id string) (*WorkItem, error) {
	item, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := guard.VerifyOperation(rbac.ResourceWorkItems, rbac.ActionRead, rbac.ResourceRef{
		ID:             item.ID,
		OwnerID:        item.OwnerID,
		OrganizationID: item.OrganizationID,
	}); err != nil {
		s.recordDenied(ctx, guard, "work_items:read", id, err)
		return nil, err
	}

	return item, nil
}

// List returns the work items visible to the caller, optionally narrowed
// to one status
func (s *Service) List(ctx context.Context, guard *rbac.ScopedGuard, status Status) ([]WorkItem, error) {
	if status != "" && !status.IsValid() {
		return nil, fmt.Errorf("invalid status: %s", status)
	}

	filter, err := guard.ListFilter(rbac.ResourceWorkItems, rbac.ActionRead)
	if err != nil {
		s.recordDenied(ctx, guard, "work_items:read", "", err)
		return nil, err
	}

	return s.store.List(ctx, filter, status)
}

// Update applies the given changes after re-validating the stored row
// against the caller's scope
func (s *Service) Update(ctx context.Context, guard *rbac.ScopedGuard, id string, input UpdateInput) (*WorkItem, error) {
	item, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := guard.VerifyOperation(rbac.ResourceWorkItems, rbac.ActionUpdate, rbac.ResourceRef{
		ID:             item.ID,
		OwnerID:        item.OwnerID,
		OrganizationID: item.OrganizationID,
	}); err != nil {
		s.recordDenied(ctx, guard, "work_items:update", id, err)
		return nil, err
	}

	if input.Title != nil {
		if *input.Title == "" {
			return nil, fmt.Errorf("title cannot be empty")
		}
		item.Title = *input.Title
	}
	if input.Description != nil {
		item.Description = *input.Description
	}
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, fmt.Errorf("invalid status: %s", *input.Status)
		}
		item.Status = *input.Status
	}
	if input.OwnerID != nil {
		item.OwnerID = *input.OwnerID
	}
	item.UpdatedAt = time.Now().UTC()

	if err := s.store.Update(ctx, item); err != nil {
		return nil, err
	}

	s.recordDataEvent(ctx, guard, audit.EventTypeWorkItemUpdate, item)
	return item, nil
}

// Delete removes a work item after re-validating it against the caller's
// scope
func (s *Service) Delete(ctx context.Context, guard *rbac.ScopedGuard, id string) error {
	item, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := guard.VerifyOperation(rbac.ResourceWorkItems, rbac.ActionDelete, rbac.ResourceRef{
		ID:             item.ID,
		OwnerID:        item.OwnerID,
		OrganizationID: item.OrganizationID,
	}); err != nil {
		s.recordDenied(ctx, guard, "work_items:delete", id, err)
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.recordDataEvent(ctx, guard, audit.EventTypeWorkItemDelete, item)
	return nil
}

func (s *Service) recordDataEvent(ctx context.Context, guard *rbac.ScopedGuard, eventType audit.EventType, item *WorkItem) {
	event := audit.NewEvent(ctx, eventType, audit.DecisionGranted)
	event.UserID = guard.Checker().UserContext().UserID()
	event.OrganizationID = item.OrganizationID
	event.Resource = string(rbac.ResourceWorkItems)
	event.ResourceID = item.ID

	if err := s.audit.Log(ctx, event); err != nil && s.logger != nil {
		s.logger.WithError(err).Warn("Failed to write work item audit event")
	}
}

func (s *Service) recordDenied(ctx context.Context, guard *rbac.ScopedGuard, permission, resourceID string, cause error) {
	userID := guard.Checker().UserContext().UserID()
	if err := s.audit.LogAccessDenied(ctx, userID, permission, resourceID, cause.Error()); err != nil && s.logger != nil {
		s.logger.WithError(err).Warn("Failed to write access denied audit event")
	}
}
