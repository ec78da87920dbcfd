package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"
)

// Run executes fn synchronously with panic recovery and a deadline.
// A panic is converted into an error and logged with its stack trace.
// logger may be nil.
func Run(parentCtx context.Context, timeout time.Duration, taskName string, logger *logrus.Logger, fn func(context.Context) error) (err error) {
	ctx := parentCtx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parentCtx, timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", taskName, r)
			if logger != nil {
				logger.WithFields(logrus.Fields{
					"task":  taskName,
					"panic": r,
					"stack": string(debug.Stack()),
				}).Error("Recovered panic in background task")
			}
		}
	}()

	return fn(ctx)
}

// SafeGo runs fn on its own goroutine through Run. Errors are logged,
// not returned; use this for fire-and-forget work only.
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, logger *logrus.Logger, fn func(context.Context) error) {
	go func() {
		if err := Run(parentCtx, timeout, taskName, logger, fn); err != nil && logger != nil {
			logger.WithError(err).WithField("task", taskName).Error("Background task failed")
		}
	}()
}
