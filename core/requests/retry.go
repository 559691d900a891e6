// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package requests

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"codeberg.org/advisoryportal/portalfe/core/apierr"
)

// retryTransport retries operation with exponential backoff while it fails
// without receiving a response, up to maxRetries extra attempts.
// Other errors stop the retries immediately.
func retryTransport(ctx context.Context, maxRetries int, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 15 * time.Second
	b.RandomizationFactor = 0.1

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries)), ctx)

	return backoff.Retry(func() error {
		err := operation()
		if err == nil {
			return nil
		}

		if isRetryableError(ctx, err) {
			return err
		}

		return backoff.Permanent(err)
	}, policy)
}

// isRetryableError reports whether err is a transport failure worth retrying.
func isRetryableError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	var transportErr *apierr.TransportError

	return errors.As(err, &transportErr)
}
