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
	"log/slog"
	"time"
)

// RetryWithBackoff retries operation with exponential backoff.
// maxAttempts: maximum number of attempts (must be > 0)
// baseDelay: delay before the second attempt, doubled for each one after
// Returns the error from the last attempt if all attempts fail.
func RetryWithBackoff(ctx context.Context, logger *slog.Logger, operation func() error, maxAttempts int, baseDelay time.Duration) error {
	if maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	delay := baseDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				logger.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}

		logger.Debug("operation failed, will retry", "attempt", attempt, "maxAttempts", maxAttempts, "err", lastErr)
		if attempt == maxAttempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}

	return lastErr
}
