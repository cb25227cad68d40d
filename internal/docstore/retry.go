package docstore

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	sqliteBusyCode     = 5
	busyRetryAttempts  = 5
	busyInitialBackoff = 10 * time.Millisecond
	busyMaxBackoff     = 200 * time.Millisecond
)

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// withBusyRetry reruns op while SQLite reports the database as busy.
func withBusyRetry(ctx context.Context, op func() error) error {
	delay := busyInitialBackoff
	var err error
	for attempt := 1; attempt <= busyRetryAttempts; attempt++ {
		if err = op(); err == nil || !isBusy(err) || attempt == busyRetryAttempts {
			return err
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, busyMaxBackoff)
	}
	return err
}
