// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package apierr defines the errors produced while talking to the portal API
and normalizes them into a single, uniform error value.
*/
package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Kind classifies a normalized error.
type Kind string

// Possible Kind values.
const (
	KindTransport   Kind = "TRANSPORT"
	KindApplication Kind = "APPLICATION"
	KindAuth        Kind = "AUTH"
)

// Messages returned by the portal API or shown to users. They are matched
// verbatim, so do not translate them here.
const (
	// TokenExpiredSentinel is the exact "result" the API sends with a 401/403
	// when the bearer token has expired.
	TokenExpiredSentinel = "토큰이 만료되었습니다."

	// TokenExpiredRelogin is the message of the synthetic envelope returned
	// by login-style calls when the session is gone.
	TokenExpiredRelogin = "토큰이 만료되었습니다. 다시 로그인 해주세요."

	MessageServerResponse = "서버 응답 오류가 발생했습니다."
	MessageUnreachable    = "서버에 연결할 수 없습니다."
	MessageInvalidRequest = "잘못된 요청입니다."
	MessageAuthRequired   = "인증이 필요합니다"

	// AuthErrorStatus is the status string carried by AuthError.
	AuthErrorStatus = "AUTH_ERROR"

	// LoginPath is where users go to obtain a fresh token.
	LoginPath = "/login"
)

// ErrTokenExpired marks authentication failures caused by an expired token.
var ErrTokenExpired = errors.New("token expired")

// Error is the normalized error returned to callers of the data access layer.
type Error struct {
	Kind    Kind
	Message string

	// StatusCode is the HTTP or envelope status, when one was received.
	StatusCode int

	// Err is the raw error this one was normalized from, if any.
	Err error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status code: %d)", strings.ToLower(string(e.Kind)), e.Message, e.StatusCode)
	}

	return strings.ToLower(string(e.Kind)) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ResponseError is returned when the API answered with a failure status.
type ResponseError struct {
	Method     string
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("API responded to %s %s with status code %d", e.Method, e.URL, e.StatusCode)
}

// Message returns the body's "message" field, or "" if there is none.
func (e *ResponseError) Message() string {
	return gjson.GetBytes(e.Body, "message").String()
}

// Result returns the body's "result" field as a string, or "" if there is none.
func (e *ResponseError) Result() string {
	return gjson.GetBytes(e.Body, "result").String()
}

// TransportError is returned when a request was sent but no response arrived.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("no response for %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RequestError is returned when a request could not be built and never left
// the process.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string {
	return "invalid request: " + e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// AuthError signals an authentication failure in a structured way so callers
// can branch on it without inspecting transport internals.
type AuthError struct {
	Status     string
	Message    string
	StatusCode int

	// LoginPath is set when the failure should send the user to sign in again.
	LoginPath string

	// Cause is the failed response that triggered the error.
	Cause error

	expired bool
}

// NewAuthError builds an AuthError from a failed response.
func NewAuthError(cause *ResponseError, message string) *AuthError {
	if message == "" {
		message = MessageAuthRequired
	}

	return &AuthError{
		Status:     AuthErrorStatus,
		Message:    message,
		StatusCode: cause.StatusCode,
		Cause:      cause,
	}
}

// NewTokenExpiredError builds an AuthError that matches ErrTokenExpired.
func NewTokenExpiredError(cause *ResponseError) *AuthError {
	e := NewAuthError(cause, TokenExpiredSentinel)
	e.LoginPath = LoginPath
	e.expired = true

	return e
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s (status code: %d)", e.Status, e.Message, e.StatusCode)
}

func (e *AuthError) Unwrap() []error {
	errs := make([]error, 0, 2)

	if e.expired {
		errs = append(errs, ErrTokenExpired)
	}

	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}

	return errs
}

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return true
	}

	var normalized *Error

	return errors.As(err, &normalized) && normalized.Kind == KindAuth
}

// StatusOf returns the HTTP status carried by err, or 0 when there is none.
func StatusOf(err error) int {
	var (
		normalized *Error
		authErr    *AuthError
		respErr    *ResponseError
	)

	switch {
	case errors.As(err, &normalized) && normalized.StatusCode != 0:
		return normalized.StatusCode
	case errors.As(err, &authErr):
		return authErr.StatusCode
	case errors.As(err, &respErr):
		return respErr.StatusCode
	default:
		return 0
	}
}
