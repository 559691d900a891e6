// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"codeberg.org/advisoryportal/portalfe/core/apierr"
	"codeberg.org/advisoryportal/portalfe/core/requests"
)

// call describes how one verb interprets the envelope.
type call struct {
	fallback      string
	mergeRedirect bool
	requireResult bool
}

// Fetch GETs path and returns the envelope's result.
func Fetch[T any](ctx context.Context, s *Service, path string, params url.Values) (T, error) {
	req := &requests.Request{Method: http.MethodGet, Path: path, Query: params}

	return roundTrip[T](ctx, s, req, call{fallback: MessageFetchFailed})
}

// Create POSTs payload to path and returns the envelope's result.
//
// An envelope status of 302 is a success; the result object is returned with
// its "status" field set to 302 so callers can tell.
func Create[T any](ctx context.Context, s *Service, path string, payload any, contentType string) (T, error) {
	req := &requests.Request{Method: http.MethodPost, Path: path, Payload: payload, ContentType: contentType}

	return roundTrip[T](ctx, s, req, call{fallback: MessagePostFailed, mergeRedirect: true})
}

// CreateWithFallback is Create that returns fallback instead of failing, and
// in place of a null result.
func CreateWithFallback[T any](ctx context.Context, s *Service, path string, payload any, contentType string, fallback T) T {
	req := &requests.Request{Method: http.MethodPost, Path: path, Payload: payload, ContentType: contentType}

	result, err := roundTrip[T](ctx, s, req, call{fallback: MessagePostFailed, requireResult: true})
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).Str("path", path).Msg("Using fallback value for failed request")

		return fallback
	}

	return result
}

// CreateAuth POSTs to a login-style endpoint and returns the whole envelope.
//
// When the session is gone, either because the pipeline reported an
// authentication failure or because the envelope status is 403, it returns a
// synthetic envelope with status 403, a zero result and a message asking the
// user to log in again. Other failures are returned as errors.
func CreateAuth[T any](ctx context.Context, s *Service, path string, payload any, contentType string) (Envelope[T], error) {
	req := &requests.Request{Method: http.MethodPost, Path: path, Payload: payload, ContentType: contentType}

	var zero Envelope[T]

	resp, err := s.doer.Do(ctx, req)
	if err != nil {
		normalized := apierr.Normalize(ctx, err)
		if normalized.Kind == apierr.KindAuth || normalized.StatusCode == http.StatusForbidden {
			return expiredEnvelope[T](), nil
		}

		return zero, normalized
	}

	env, err := decodeEnvelope(resp.Body)
	if err != nil {
		return zero, decodeFailure(err)
	}

	switch env.Status {
	case http.StatusOK, statusRedirect:
		result, err := decodeResult[T](env.Result)
		if err != nil && !errors.Is(err, errNullResult) {
			return zero, decodeFailure(err)
		}

		return Envelope[T]{Status: env.Status, Result: result, Message: env.Message}, nil
	case http.StatusForbidden:
		return expiredEnvelope[T](), nil
	default:
		return zero, envelopeError(env.Status, s.failureMessage(env.Message, MessagePostFailed))
	}
}

func expiredEnvelope[T any]() Envelope[T] {
	return Envelope[T]{Status: http.StatusForbidden, Message: apierr.TokenExpiredRelogin}
}

// CreateFull POSTs payload to path and returns the "results" field of the
// response body, which is not wrapped in the usual envelope.
func CreateFull[T any](ctx context.Context, s *Service, path string, payload any, contentType string) (T, error) {
	req := &requests.Request{Method: http.MethodPost, Path: path, Payload: payload, ContentType: contentType}

	var zero T

	resp, err := s.doer.Do(ctx, req)
	if err != nil {
		return zero, apierr.Normalize(ctx, err)
	}

	var full FullEnvelope
	if err := json.Unmarshal(resp.Body, &full); err != nil {
		return zero, decodeFailure(err)
	}

	if isEmptyResults(full.Results) {
		message := MessagePostFailed
		if s.requireResult {
			message = MessageNoResults
		}

		return zero, envelopeError(resp.StatusCode, message)
	}

	result, err := decodeResult[T](full.Results)
	if err != nil {
		return zero, decodeFailure(err)
	}

	return result, nil
}

// Update PUTs payload to path and returns the envelope's result.
func Update[T any](ctx context.Context, s *Service, path string, payload any, contentType string) (T, error) {
	req := &requests.Request{Method: http.MethodPut, Path: path, Payload: payload, ContentType: contentType}

	return roundTrip[T](ctx, s, req, call{fallback: MessageUpdateFailed})
}

// Remove DELETEs path and returns the envelope's result.
func Remove[T any](ctx context.Context, s *Service, path string) (T, error) {
	req := &requests.Request{Method: http.MethodDelete, Path: path}

	return roundTrip[T](ctx, s, req, call{fallback: MessageDeleteFailed})
}

// roundTrip sends req and unwraps the envelope of its response.
func roundTrip[T any](ctx context.Context, s *Service, req *requests.Request, c call) (T, error) {
	var zero T

	resp, err := s.doer.Do(ctx, req)
	if err != nil {
		return zero, apierr.Normalize(ctx, err)
	}

	env, err := decodeEnvelope(resp.Body)
	if err != nil {
		return zero, decodeFailure(err)
	}

	raw := env.Result

	switch {
	case env.Status == http.StatusOK:
	case env.Status == statusRedirect && c.mergeRedirect && !s.requireResult:
		if raw, err = withRedirectStatus(raw); err != nil {
			return zero, decodeFailure(err)
		}
	case env.Status == statusRedirect && (c.mergeRedirect || s.requireResult):
	default:
		return zero, envelopeError(env.Status, s.failureMessage(env.Message, c.fallback))
	}

	result, err := decodeResult[T](raw)

	switch {
	case errors.Is(err, errNullResult):
		if s.requireResult || c.requireResult {
			return zero, envelopeError(env.Status, MessageNoData)
		}

		return zero, nil
	case err != nil:
		return zero, decodeFailure(err)
	}

	return result, nil
}
