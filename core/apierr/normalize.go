// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package apierr

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

// Normalize converts any error raised while talking to the API into an *Error.
//
// The raw error is always logged before returning, through the logger of ctx.
// An error that is already an *Error is returned as is and logged at debug
// level, since it was logged when first normalized. A nil error yields nil.
func Normalize(ctx context.Context, err error) *Error {
	if err == nil {
		return nil
	}

	var (
		normalized   *Error
		authErr      *AuthError
		respErr      *ResponseError
		transportErr *TransportError
	)

	if errors.As(err, &normalized) {
		log.Ctx(ctx).Debug().Err(err).Str("kind", string(normalized.Kind)).Msg("API error already normalized")

		return normalized
	}

	var result *Error

	switch {
	case errors.As(err, &authErr):
		log.Ctx(ctx).Warn().Err(err).Int("status_code", authErr.StatusCode).Msg("API authentication error")

		result = &Error{Kind: KindAuth, Message: authErr.Message, StatusCode: authErr.StatusCode, Err: err}

	case errors.As(err, &respErr):
		log.Ctx(ctx).Warn().Err(err).Bytes("body", respErr.Body).Msg("API error response")

		message := respErr.Message()
		if message == "" {
			message = MessageServerResponse
		}

		result = &Error{Kind: KindApplication, Message: message, StatusCode: respErr.StatusCode, Err: err}

	case errors.As(err, &transportErr):
		log.Ctx(ctx).Warn().Err(err).Str("url", transportErr.URL).Msg("API request received no response")

		result = &Error{Kind: KindTransport, Message: MessageUnreachable, Err: err}

	default:
		log.Ctx(ctx).Warn().Err(err).Msg("API request could not be made")

		result = &Error{Kind: KindApplication, Message: MessageInvalidRequest, Err: err}
	}

	return result
}
