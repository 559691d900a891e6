// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package api is a typed data access layer over a request pipeline.

Every portal API response is wrapped in an envelope of the form
{"status": 200, "result": ..., "message": "..."}. The verbs in this package
send a request, unwrap that envelope, and report every failure as an
*apierr.Error.
*/
package api

import (
	"strings"

	"codeberg.org/advisoryportal/portalfe/core/requests"
)

// Service binds the verbs to a request pipeline.
type Service struct {
	doer            requests.Doer
	baseURL         string
	requireResult   bool
	fallbackMessage string
}

// Option configures a Service.
type Option func(*Service)

// WithBaseURL sets the API base URL that FetchBinary strips from absolute URLs.
func WithBaseURL(baseURL string) Option {
	return func(s *Service) {
		s.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithRequireResult makes a successful envelope with a null result an error.
func WithRequireResult() Option {
	return func(s *Service) {
		s.requireResult = true
	}
}

// WithFallbackMessage sets the message used when a failed envelope carries none.
// Without it each verb uses its own message.
func WithFallbackMessage(message string) Option {
	return func(s *Service) {
		s.fallbackMessage = message
	}
}

// New creates a Service sending requests through doer.
func New(doer requests.Doer, opts ...Option) *Service {
	s := &Service{doer: doer}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// NewBackend creates a Service with the strictness expected by server code:
// null results are errors and failed envelopes fall back to a generic message.
func NewBackend(doer requests.Doer, baseURL string) *Service {
	return New(doer,
		WithBaseURL(baseURL),
		WithRequireResult(),
		WithFallbackMessage(MessageCannotProcess),
	)
}

func (s *Service) failureMessage(message, verbFallback string) string {
	switch {
	case message != "":
		return message
	case s.fallbackMessage != "":
		return s.fallbackMessage
	default:
		return verbFallback
	}
}

// trimBaseURL turns an absolute URL on the API host into a path.
func (s *Service) trimBaseURL(rawURL string) string {
	if s.baseURL == "" {
		return rawURL
	}

	return strings.Replace(rawURL, s.baseURL, "", 1)
}
