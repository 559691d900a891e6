// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"errors"
	"net/http"

	"codeberg.org/advisoryportal/portalfe/core/apierr"
	"codeberg.org/advisoryportal/portalfe/server/request_context"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message"`
}

// ErrorPage writes the request's error as JSON, using the status code stored
// in the request context.
func ErrorPage(w http.ResponseWriter, r *http.Request) {
	rc := request_context.FromRequest(r)

	w.Header().Set("Cache-Control", "no-store")

	writeJSON(w, rc.StatusCode, errorResponse(r, rc.RequestError, rc.StatusCode))
}

func errorResponse(r *http.Request, err error, statusCode int) ErrorResponse {
	var authErr *apierr.AuthError
	if errors.As(err, &authErr) {
		return ErrorResponse{Status: authErr.Status, Message: authErr.Message}
	}

	normalized := apierr.Normalize(r.Context(), err)
	if normalized == nil {
		return ErrorResponse{Message: http.StatusText(statusCode)}
	}

	if normalized.Kind == apierr.KindAuth {
		return ErrorResponse{Status: apierr.AuthErrorStatus, Message: normalized.Message}
	}

	return ErrorResponse{Message: normalized.Message}
}
