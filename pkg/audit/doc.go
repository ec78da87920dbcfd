// Package audit provides persistent audit logging for authorization
// decisions and data mutations.
//
// Every security-relevant outcome of the RBAC engine is recorded: permission
// checks, access denials, super-admin bypasses, fail-closed scope
// resolutions, and role or assignment changes. Events carry the acting user,
// the permission involved, the concrete resource when one exists, and the
// request id for correlation with the structured logs.
//
// Three logger implementations are provided:
//
//   - DBLogger writes events to the audit_events table and supports
//     searching and retention pruning
//   - MultiLogger fans events out to several destinations, optionally
//     asynchronously
//   - NoOpLogger discards everything (auditing disabled)
//
// Typical wiring:
//
//	dbLogger, err := audit.NewDBLogger(db)
//	if err != nil {
//		return err
//	}
//	logger := audit.NewMultiLogger(dbLogger)
//	defer logger.Close()
//
//	logger.LogAccessDenied(ctx, userID, "work-items:update:organization", itemID, "resource outside visibility scope")
//
// Searching:
//
//	denied := audit.DecisionDenied
//	events, err := dbLogger.Search(ctx, audit.SearchFilter{
//		UserID:   userID,
//		Decision: &denied,
//		Limit:    50,
//	})
package audit
