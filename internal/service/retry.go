package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

const (
	readAttempts = 3
	readBackoff  = 50 * time.Millisecond
)

// retryRead retries an idempotent store read on transient failures. Missing
// records and cancelled contexts are returned immediately.
func retryRead(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= readAttempts; attempt++ {
		err = fn()
		if err == nil || errors.Is(err, gorm.ErrRecordNotFound) || ctx.Err() != nil {
			return err
		}
		if attempt == readAttempts {
			break
		}

		timer := time.NewTimer(time.Duration(attempt) * readBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}
