package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/practicehub/practicehub/pkg/async"
	"github.com/practicehub/practicehub/pkg/audit"
	"github.com/practicehub/practicehub/pkg/orgs"
	"github.com/practicehub/practicehub/pkg/rbac"
)

// Config holds the schedules and retention windows for background jobs
type Config struct {
	// HierarchyRefreshSchedule rebuilds the organization hierarchy snapshot.
	// Default: every 5 minutes.
	HierarchyRefreshSchedule string

	// AssignmentPruneSchedule removes long-expired role assignments.
	// Default: 00:20 UTC daily.
	AssignmentPruneSchedule string

	// AuditPurgeSchedule enforces audit retention. Default: 00:40 UTC daily.
	AuditPurgeSchedule string

	// AssignmentGrace keeps expired assignments queryable for this long
	// before pruning. Default: 30 days.
	AssignmentGrace time.Duration

	// AuditRetention is how long audit events are kept. Default: 90 days.
	AuditRetention time.Duration
}

func (c *Config) applyDefaults() {
	if c.HierarchyRefreshSchedule == "" {
		c.HierarchyRefreshSchedule = "*/5 * * * *"
	}
	if c.AssignmentPruneSchedule == "" {
		c.AssignmentPruneSchedule = "20 0 * * *"
	}
	if c.AuditPurgeSchedule == "" {
		c.AuditPurgeSchedule = "40 0 * * *"
	}
	if c.AssignmentGrace <= 0 {
		c.AssignmentGrace = 30 * 24 * time.Hour
	}
	if c.AuditRetention <= 0 {
		c.AuditRetention = 90 * 24 * time.Hour
	}
}

// Runner schedules the recurring maintenance jobs: hierarchy snapshot
// refresh, expired role assignment pruning and audit event retention.
type Runner struct {
	config    Config
	cron      *cron.Cron
	store     *rbac.Store
	hierarchy *orgs.HierarchyCache
	auditLog  *audit.DBLogger
	logger    *logrus.Logger
}

// NewRunner creates a maintenance runner. auditLog may be nil, which skips
// the retention job.
func NewRunner(config Config, store *rbac.Store, hierarchy *orgs.HierarchyCache, auditLog *audit.DBLogger, logger *logrus.Logger) *Runner {
	config.applyDefaults()
	if logger == nil {
		logger = logrus.New()
	}
	return &Runner{
		config:    config,
		cron:      cron.New(),
		store:     store,
		hierarchy: hierarchy,
		auditLog:  auditLog,
		logger:    logger,
	}
}

// jobTimeout bounds every scheduled job run.
const jobTimeout = 10 * time.Minute

// Start registers the jobs and starts the scheduler
func (r *Runner) Start() error {
	if _, err := r.cron.AddFunc(r.config.HierarchyRefreshSchedule, func() {
		if err := async.Run(context.Background(), jobTimeout, "hierarchy_refresh", r.logger, r.RefreshHierarchy); err != nil {
			r.logger.WithError(err).Error("Hierarchy refresh failed")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule hierarchy refresh: %w", err)
	}

	if _, err := r.cron.AddFunc(r.config.AssignmentPruneSchedule, func() {
		err := async.Run(context.Background(), jobTimeout, "assignment_prune", r.logger, func(ctx context.Context) error {
			_, pruneErr := r.PruneExpiredAssignments(ctx)
			return pruneErr
		})
		if err != nil {
			r.logger.WithError(err).Error("Assignment pruning failed")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule assignment pruning: %w", err)
	}

	if r.auditLog != nil {
		if _, err := r.cron.AddFunc(r.config.AuditPurgeSchedule, func() {
			err := async.Run(context.Background(), jobTimeout, "audit_purge", r.logger, func(ctx context.Context) error {
				_, purgeErr := r.PurgeAuditEvents(ctx)
				return purgeErr
			})
			if err != nil {
				r.logger.WithError(err).Error("Audit purge failed")
			}
		}); err != nil {
			return fmt.Errorf("failed to schedule audit purge: %w", err)
		}
	}

	r.cron.Start()
	r.logger.WithFields(logrus.Fields{
		"hierarchy_refresh": r.config.HierarchyRefreshSchedule,
		"assignment_prune":  r.config.AssignmentPruneSchedule,
		"audit_purge":       r.config.AuditPurgeSchedule,
	}).Info("Maintenance runner started")
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// RefreshHierarchy rebuilds the organization hierarchy snapshot
func (r *Runner) RefreshHierarchy(ctx context.Context) error {
	return r.hierarchy.Refresh(ctx)
}

// PruneExpiredAssignments deletes role assignments whose expiry passed
// longer ago than the grace window. Recently expired rows stay queryable
// so role history remains explainable for a while after expiry.
func (r *Runner) PruneExpiredAssignments(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-r.config.AssignmentGrace)

	pruned, err := r.store.DeleteExpiredAssignments(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if pruned > 0 {
		r.logger.WithField("pruned", pruned).Info("Pruned expired role assignments")
	}
	return pruned, nil
}

// PurgeAuditEvents deletes audit events older than the retention window
func (r *Runner) PurgeAuditEvents(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-r.config.AuditRetention)

	purged, err := r.auditLog.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		r.logger.WithField("purged", purged).Info("Purged aged audit events")
	}
	return purged, nil
}
