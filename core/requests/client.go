// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package requests

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"codeberg.org/advisoryportal/portalfe/core/apierr"
	"codeberg.org/advisoryportal/portalfe/core/tokenstore"
)

// Client is the request pipeline used by interactive clients, which own their
// token store.
//
// When the API rotates the token (201 with a new bearer) the new token is
// written to the store and the request is sent once more. An expired token is
// reported as an error wrapping apierr.ErrTokenExpired; what to do about it is
// up to the caller.
type Client struct {
	sender   *sender
	store    tokenstore.Store
	tokenTTL time.Duration
}

var _ Doer = (*Client)(nil)

// NewClient creates a client pipeline reading and writing tokens in store.
// Rotated tokens are stored for tokenTTL.
func NewClient(store tokenstore.Store, opts Options, tokenTTL time.Duration) (*Client, error) {
	s, err := newSender(opts)
	if err != nil {
		return nil, err
	}

	return &Client{sender: s, store: store, tokenTTL: tokenTTL}, nil
}

// Do sends req and returns its successful response.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	p, err := c.sender.prepare(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, p)
	if err != nil {
		return nil, err
	}

	if p.req.attempt > 0 || resp.StatusCode != http.StatusCreated {
		return resp, nil
	}

	token := resp.RotatedToken()
	if token == "" {
		return resp, nil
	}

	c.store.Write(ctx, token, c.tokenTTL)

	log.Ctx(ctx).Debug().
		Str("path", req.Path).
		Msg("Stored rotated token, re-sending request")

	return c.do(ctx, p.next(""))
}

// do sends one attempt, authenticated with whatever token the store holds now.
func (c *Client) do(ctx context.Context, p *prepared) (*Response, error) {
	token, _ := c.store.Read(ctx)

	resp, err := c.sender.send(ctx, p, token)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("path", p.req.Path).Msg("API request failed")

		return nil, err
	}

	if succeeded(resp.StatusCode) {
		return resp, nil
	}

	respErr := newResponseError(resp)

	if isTokenExpired(respErr) {
		log.Ctx(ctx).Warn().
			Int("status", resp.StatusCode).
			Str("path", p.req.Path).
			Msg("API token expired")

		return nil, apierr.NewTokenExpiredError(respErr)
	}

	log.Ctx(ctx).Warn().
		Int("status", resp.StatusCode).
		Str("path", p.req.Path).
		Msg("API request returned an error status")

	return nil, respErr
}

// isTokenExpired reports whether the API rejected the request because the
// token has expired.
func isTokenExpired(err *apierr.ResponseError) bool {
	if err.StatusCode != http.StatusUnauthorized && err.StatusCode != http.StatusForbidden {
		return false
	}

	return err.Result() == apierr.TokenExpiredSentinel
}
