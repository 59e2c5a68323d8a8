// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/libris/core"
	"github.com/poiesic/libris/storage"
)

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = 50 * time.Millisecond
)

// RetryPolicy controls how failed writes are retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// BaseDelay is the wait before the second try; it doubles on each retry.
	BaseDelay time.Duration

	// Retryable reports whether an error is worth another try.
	// Nil means IsTransient.
	Retryable func(error) bool

	// Logger receives a debug line per failed attempt. Nil means slog.Default().
	Logger *slog.Logger
}

// DefaultRetryPolicy returns three attempts starting at 50ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: defaultMaxAttempts,
		BaseDelay:   defaultRetryDelay,
	}
}

// IsTransient reports whether err may succeed on retry. Duplicate keys,
// validation failures, a closed store and context cancellation never do.
func IsTransient(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, storage.ErrDuplicateKey),
		errors.Is(err, storage.ErrStorageClosed),
		errors.Is(err, storage.ErrSerializationFailed),
		errors.Is(err, core.ErrInvalidBook),
		errors.Is(err, core.ErrInvalidUser),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

// Do runs operation until it succeeds, returns a non-retryable error or the
// attempts run out. Returns the error from the last attempt if all attempts fail.
func (p RetryPolicy) Do(ctx context.Context, operation func() error) error {
	if p.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		// Check context before attempting
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				logger.Debug("write succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}

		logger.Debug("write failed, will retry", "attempt", attempt, "max_attempts", p.MaxAttempts, "err", lastErr)

		// Don't sleep after the last attempt
		if attempt == p.MaxAttempts {
			break
		}

		timer := time.NewTimer(p.BaseDelay << (attempt - 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// RetryWithBackoff retries operation with exponential backoff on transient errors.
// maxAttempts: maximum number of attempts (must be > 0)
// baseDelay: base delay between retries (doubles on each retry)
func RetryWithBackoff(ctx context.Context, operation func() error, maxAttempts int, baseDelay time.Duration) error {
	return RetryPolicy{MaxAttempts: maxAttempts, BaseDelay: baseDelay}.Do(ctx, operation)
}
