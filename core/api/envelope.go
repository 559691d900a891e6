// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"codeberg.org/advisoryportal/portalfe/core/apierr"
)

// Messages used when a failed envelope carries no message of its own.
const (
	MessageFetchFailed   = "Failed to fetch data"
	MessagePostFailed    = "Failed to post data"
	MessageUpdateFailed  = "Failed to update data"
	MessageDeleteFailed  = "Failed to delete data"
	MessageBlobFailed    = "Failed to post blob data"
	MessageNoData        = "No data returned from server"
	MessageNoResults     = "No results returned."
	MessageCannotProcess = "요청을 처리할 수 없습니다."
)

// statusRedirect is the envelope status create calls answer with when the
// client should move on to another page.
const statusRedirect = 302

var errNullResult = errors.New("null result")

// Envelope is the JSON body of every portal API response.
type Envelope[T any] struct {
	Status  int    `json:"status"`
	Result  T      `json:"result"`
	Message string `json:"message,omitempty"`
}

// FullEnvelope is the body of endpoints that answer with {"results": ...}.
type FullEnvelope struct {
	Results json.RawMessage `json:"results"`
}

type rawEnvelope = Envelope[json.RawMessage]

func decodeEnvelope(body []byte) (*rawEnvelope, error) {
	var env rawEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode response envelope: %w", err)
	}

	return &env, nil
}

// isNull reports whether a raw JSON value is absent or null.
func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)

	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// isEmptyResults reports whether a raw JSON value would be falsy in the API's
// own clients: absent, null, false, 0 or "".
func isEmptyResults(raw json.RawMessage) bool {
	if isNull(raw) {
		return true
	}

	switch string(bytes.TrimSpace(raw)) {
	case "false", "0", `""`:
		return true
	default:
		return false
	}
}

// decodeResult unmarshals the envelope's result into T.
//
// A null result yields the zero T and errNullResult.
func decodeResult[T any](raw json.RawMessage) (T, error) {
	var result T

	if isNull(raw) {
		return result, errNullResult
	}

	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("failed to decode response result: %w", err)
	}

	return result, nil
}

// withRedirectStatus returns the result object with its "status" field
// forced to 302.
func withRedirectStatus(raw json.RawMessage) (json.RawMessage, error) {
	fields := make(map[string]json.RawMessage)

	if !isNull(raw) {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("failed to decode redirect result: %w", err)
		}
	}

	fields["status"] = json.RawMessage(strconv.Itoa(statusRedirect))

	return json.Marshal(fields)
}

// envelopeError reports a failed envelope.
func envelopeError(status int, message string) *apierr.Error {
	return &apierr.Error{
		Kind:       apierr.KindApplication,
		Message:    message,
		StatusCode: status,
	}
}

// decodeFailure reports a body that could not be decoded.
func decodeFailure(err error) *apierr.Error {
	return &apierr.Error{
		Kind:       apierr.KindApplication,
		Message:    apierr.MessageServerResponse,
		StatusCode: http.StatusOK,
		Err:        err,
	}
}
