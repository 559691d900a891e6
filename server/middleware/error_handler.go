// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package middleware

import (
	"errors"
	"maps"
	"net/http"
	"net/http/httptest"

	"github.com/rs/zerolog/log"

	"codeberg.org/advisoryportal/portalfe/config"
	"codeberg.org/advisoryportal/portalfe/core/apierr"
	"codeberg.org/advisoryportal/portalfe/core/audit"
	"codeberg.org/advisoryportal/portalfe/core/untrusted"
	"codeberg.org/advisoryportal/portalfe/server/request_context"
	"codeberg.org/advisoryportal/portalfe/server/routes"
)

// CatchError wraps HTTP handlers that return an error, providing centralized error handling,
// response buffering, and request logging.
//
// The handler's output is buffered using an httptest.ResponseRecorder and any
// error it returns is stored in the request context. Then:
//   - A token rotated by the API while serving the request is set as the
//     token cookie for config.Global.Token.MaxAge, whatever the outcome.
//   - An expired token redirects the user to the login page (303 See Other).
//   - Any other authentication failure is answered with 401 and an
//     AUTH_ERROR body.
//   - Any other error discards the buffered response and is answered with
//     502 when the API was unreachable, or 500.
//   - Otherwise the buffered response is written to the client.
//
// Finally, it logs the completed request via the audit package.
func CatchError(handler func(w http.ResponseWriter, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := request_context.FromRequest(r)

		span := audit.Span{
			Destination: audit.ToUser,
			RequestID:   ctx.RequestID,
			Method:      r.Method,
			URL:         r.URL.String(),
		}

		_ = span.Begin(r.Context())
		defer span.End()

		recorder := httptest.NewRecorder()

		err := handler(recorder, r)

		ctx.RequestError = err

		if token := ctx.RotatedToken(); token != "" {
			untrusted.SetUserToken(w, r, token, config.Global.Token.MaxAge)
		}

		var authErr *apierr.AuthError

		switch {
		case errors.Is(err, apierr.ErrTokenExpired):
			loginPath := apierr.LoginPath
			if errors.As(err, &authErr) && authErr.LoginPath != "" {
				loginPath = authErr.LoginPath
			}

			ctx.StatusCode = http.StatusSeeOther

			http.Redirect(w, r, loginPath, ctx.StatusCode)

		case err != nil && apierr.IsAuth(err):
			ctx.StatusCode = http.StatusUnauthorized

			routes.ErrorPage(w, r)

		case err != nil:
			var transportErr *apierr.TransportError

			var normalized *apierr.Error

			if errors.As(err, &transportErr) || (errors.As(err, &normalized) && normalized.Kind == apierr.KindTransport) {
				ctx.StatusCode = http.StatusBadGateway
			} else {
				ctx.StatusCode = http.StatusInternalServerError
			}

			routes.ErrorPage(w, r)

		default:
			if recorder.Code == 0 {
				recorder.Code = http.StatusOK
			}

			ctx.StatusCode = recorder.Code
			maps.Copy(w.Header(), recorder.Header())
			w.WriteHeader(recorder.Code)

			if _, err := recorder.Body.WriteTo(w); err != nil {
				log.Err(err).Msg("Failed to write response body")
			}
		}

		span.StatusCode = ctx.StatusCode
		span.Error = ctx.RequestError

		span.End()

		if !config.Global.ShouldSkipServerLogging(r.URL.Path) {
			span.Log()
		}
	}
}
