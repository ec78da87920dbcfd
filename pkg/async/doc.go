// Package async contains the panic-safe execution wrappers used by
// background work: cron maintenance jobs and fire-and-forget tasks run
// through Run or SafeGo so a panicking job logs and dies alone instead of
// taking the process down.
package async
