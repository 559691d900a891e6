// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package requests

import (
	"context"
	"net/http"
	"net/url"
	"path"

	"github.com/rs/zerolog/log"

	"codeberg.org/advisoryportal/portalfe/core/apierr"
	"codeberg.org/advisoryportal/portalfe/core/tokenstore"
)

// DefaultAuthEndpoint is the endpoint on which a 400 also means the caller
// is not authenticated.
const DefaultAuthEndpoint = "/api/v1/cnsut/users/get-user-basic-info"

// Backend is the request pipeline used by server code acting on behalf of an
// inbound request. It never writes tokens itself: a rotated token is put on
// the returned response's Authorization header and passed to OnRotate.
type Backend struct {
	sender *sender
	store  tokenstore.Store

	// AuthEndpoint is the path on which a 400 is treated as an auth failure.
	AuthEndpoint string

	// OnRotate, if set, is called after a request re-sent with a rotated
	// token has succeeded.
	OnRotate func(ctx context.Context, token string)
}

var _ Doer = (*Backend)(nil)

// NewBackend creates a server pipeline reading tokens from store.
func NewBackend(store tokenstore.Store, opts Options) (*Backend, error) {
	s, err := newSender(opts)
	if err != nil {
		return nil, err
	}

	return &Backend{
		sender:       s,
		store:        store,
		AuthEndpoint: DefaultAuthEndpoint,
	}, nil
}

// Do sends req and returns its successful response.
func (b *Backend) Do(ctx context.Context, req *Request) (*Response, error) {
	p, err := b.sender.prepare(req)
	if err != nil {
		return nil, err
	}

	return b.do(ctx, p)
}

func (b *Backend) do(ctx context.Context, p *prepared) (*Response, error) {
	bearer := p.req.bearer
	if p.req.attempt == 0 {
		bearer, _ = b.store.Read(ctx)
	}

	resp, err := b.sender.send(ctx, p, bearer)
	if err != nil {
		return nil, err
	}

	if !succeeded(resp.StatusCode) {
		return nil, b.classify(newResponseError(resp))
	}

	if p.req.attempt > 0 || resp.StatusCode != http.StatusCreated {
		return resp, nil
	}

	token := resp.RotatedToken()
	if token == "" {
		return resp, nil
	}

	log.Ctx(ctx).Debug().
		Str("path", p.req.Path).
		Msg("Token rotated, re-sending request")

	retried, err := b.do(ctx, p.next(token))
	if err != nil {
		return nil, err
	}

	retried.Header = retried.Header.Clone()
	if retried.Header == nil {
		retried.Header = make(http.Header)
	}

	retried.Header.Set("Authorization", bearerPrefix+token)

	if b.OnRotate != nil {
		b.OnRotate(ctx, token)
	}

	return retried, nil
}

// classify turns authentication failures into *apierr.AuthError.
// An expired token additionally matches apierr.ErrTokenExpired.
func (b *Backend) classify(err *apierr.ResponseError) error {
	switch {
	case isTokenExpired(err):
		return apierr.NewTokenExpiredError(err)
	case err.StatusCode == http.StatusUnauthorized,
		err.StatusCode == http.StatusForbidden,
		err.StatusCode == http.StatusBadRequest && b.isAuthEndpoint(err.URL):
		return apierr.NewAuthError(err, err.Result())
	default:
		return err
	}
}

func (b *Backend) isAuthEndpoint(requestPath string) bool {
	if b.AuthEndpoint == "" {
		return false
	}

	if u, err := url.Parse(requestPath); err == nil {
		requestPath = u.Path
	}

	return path.Clean("/"+requestPath) == path.Clean(b.AuthEndpoint)
}
