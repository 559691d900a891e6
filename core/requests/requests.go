// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package requests

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"codeberg.org/advisoryportal/portalfe/core/apierr"
	"codeberg.org/advisoryportal/portalfe/core/audit"
	"codeberg.org/advisoryportal/portalfe/core/idgen"
	"codeberg.org/advisoryportal/portalfe/server/utils"
)

var (
	errMissingBaseURL       = errors.New("base URL is required")
	errUnsupportedMultipart = errors.New("multipart payloads must be map[string]string")
)

// Options configures the part of a pipeline that talks to the network.
type Options struct {
	// BaseURL is prepended to relative request paths.
	BaseURL string

	// Timeout bounds a whole request, including reading the body. Zero means no limit.
	Timeout time.Duration

	// Jar, if set, is used by the HTTP client to send and store cookies.
	Jar http.CookieJar

	// HTTPClient overrides the client built from Timeout and Jar.
	HTTPClient *http.Client

	// AcceptLanguage is sent with every request when non-empty.
	AcceptLanguage string

	// UserAgent is sent with every request when non-empty.
	UserAgent string

	// RateLimit caps outbound requests per second. Zero disables pacing.
	RateLimit float64

	// MaxRetries is how many times a GET that received no response is retried.
	MaxRetries int

	// Cache, if set, serves and stores successful GET responses.
	Cache *Cache

	// RequestID returns the identifier of the inbound request a call is made
	// on behalf of. Used only for logging.
	RequestID func(ctx context.Context) string
}

// sender performs single HTTP exchanges for both pipeline variants.
type sender struct {
	baseURL        *url.URL
	client         *http.Client
	limiter        *rate.Limiter
	acceptLanguage string
	userAgent      string
	maxRetries     int
	cache          *Cache
	requestID      func(ctx context.Context) string
}

func newSender(opts Options) (*sender, error) {
	if opts.BaseURL == "" {
		return nil, errMissingBaseURL
	}

	base, err := utils.ParseURL(opts.BaseURL, "API base")
	if err != nil {
		return nil, err
	}

	client := opts.HTTPClient
	if client == nil {
		client = utils.NewHTTPClient(opts.Timeout, opts.Jar)
	}

	s := &sender{
		baseURL:        base,
		client:         client,
		acceptLanguage: opts.AcceptLanguage,
		userAgent:      opts.UserAgent,
		maxRetries:     opts.MaxRetries,
		cache:          opts.Cache,
		requestID:      opts.RequestID,
	}

	if opts.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	return s, nil
}

// prepared is a Request whose body has been encoded once, so that every
// attempt sends identical bytes.
type prepared struct {
	req         *Request
	url         string
	body        []byte
	contentType string
}

// next prepares the following attempt, reusing the encoded body.
func (p *prepared) next(bearer string) *prepared {
	c := *p
	c.req = p.req.next(bearer)

	return &c
}

func (s *sender) prepare(req *Request) (*prepared, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	target, err := s.resolve(req)
	if err != nil {
		return nil, &apierr.RequestError{Err: err}
	}

	body, contentType, err := encodePayload(req.Payload, req.ContentType)
	if err != nil {
		return nil, &apierr.RequestError{Err: err}
	}

	return &prepared{req: req, url: target, body: body, contentType: contentType}, nil
}

// resolve joins the request path onto the base URL and merges query parameters.
func (s *sender) resolve(req *Request) (string, error) {
	ref, err := url.Parse(req.Path)
	if err != nil {
		return "", fmt.Errorf("failed to parse request path %q: %w", req.Path, err)
	}

	target := *ref
	if !ref.IsAbs() {
		target = *s.baseURL
		target.Path = strings.TrimSuffix(s.baseURL.Path, "/") + "/" + strings.TrimPrefix(ref.Path, "/")
		target.RawPath = ""
		target.RawQuery = ref.RawQuery
	}

	if len(req.Query) > 0 {
		query := target.Query()

		for key, values := range req.Query {
			for _, v := range values {
				query.Add(key, v)
			}
		}

		target.RawQuery = query.Encode()
	}

	return target.String(), nil
}

// encodePayload turns a request payload into bytes and the content type to send them with.
func encodePayload(payload any, contentType string) ([]byte, string, error) {
	if payload == nil {
		return nil, "", nil
	}

	if contentType == "" {
		contentType = ContentTypeJSON
	}

	if strings.HasPrefix(contentType, ContentTypeMultipart) {
		fields, ok := payload.(map[string]string)
		if !ok {
			return nil, "", errUnsupportedMultipart
		}

		return createMultipartFormData(fields)
	}

	switch v := payload.(type) {
	case []byte:
		return v, contentType, nil
	case string:
		return []byte(v), contentType, nil
	case io.Reader:
		data, err := io.ReadAll(v)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read request payload: %w", err)
		}

		return data, contentType, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode request payload: %w", err)
		}

		return data, contentType, nil
	}
}

// createMultipartFormData constructs multipart form data from a map of fields.
func createMultipartFormData(fields map[string]string) ([]byte, string, error) {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			_ = writer.Close()

			return nil, "", fmt.Errorf("failed to write multipart form field %q: %w", k, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return body.Bytes(), writer.FormDataContentType(), nil
}

// send performs one attempt of p, authenticated with bearer when non-empty.
//
// It returns a Response for any status the server answered with; only
// failures to get an answer at all are returned as errors.
func (s *sender) send(ctx context.Context, p *prepared, bearer string) (*Response, error) {
	isGet := p.req.Method == http.MethodGet

	var policy cachePolicy
	if isGet {
		policy = s.cache.policy(p.url, bearer, p.req.Header)
		if item := policy.cachedItem; item != nil {
			return &Response{
				StatusCode: item.StatusCode,
				Header:     item.Header.Clone(),
				Body:       item.Body,
				Request:    p.req,
			}, nil
		}
	}

	var resp *Response

	attempt := func() error {
		var err error

		resp, err = s.exchange(ctx, p, bearer)

		return err
	}

	var err error
	if isGet && s.maxRetries > 0 {
		err = retryTransport(ctx, s.maxRetries, attempt)
	} else {
		err = attempt()
	}

	if err != nil {
		return nil, err
	}

	if isGet && resp.StatusCode == http.StatusOK && policy.shouldUseCache {
		s.cache.store(ctx, p.url, bearer, resp)
	}

	return resp, nil
}

// exchange builds, sends and reads a single HTTP request.
func (s *sender) exchange(ctx context.Context, p *prepared, bearer string) (_ *Response, err error) {
	var parentID string
	if s.requestID != nil {
		parentID = s.requestID(ctx)
	}

	span := audit.Span{
		Destination: audit.ToAPI,
		RequestID:   idgen.Child(parentID),
		Method:      p.req.Method,
		URL:         p.url,
		Attempt:     p.req.attempt,
	}

	ctx = span.Begin(ctx)

	defer func() {
		span.Error = err
		span.End()
		span.Log()
	}()

	if s.limiter != nil {
		if waitErr := s.limiter.Wait(ctx); waitErr != nil {
			return nil, &apierr.TransportError{Method: p.req.Method, URL: p.url, Err: waitErr}
		}
	}

	httpReq, err := s.newRequest(ctx, p, bearer)
	if err != nil {
		return nil, err
	}

	httpResp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, &apierr.TransportError{Method: p.req.Method, URL: p.url, Err: err}
	}
	defer httpResp.Body.Close()

	span.StatusCode = httpResp.StatusCode

	var reader io.Reader = httpResp.Body
	if p.req.OnProgress != nil {
		reader = &progressReader{r: httpResp.Body, total: httpResp.ContentLength, report: p.req.OnProgress}
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &apierr.TransportError{
			Method: p.req.Method,
			URL:    p.url,
			Err:    fmt.Errorf("failed to read response body: %w", err),
		}
	}

	span.Body = body

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
		Request:    p.req,
	}, nil
}

// newRequest constructs an *http.Request for one attempt of p.
func (s *sender) newRequest(ctx context.Context, p *prepared, bearer string) (*http.Request, error) {
	var body io.Reader
	if p.body != nil {
		body = bytes.NewReader(p.body)
	}

	req, err := http.NewRequestWithContext(ctx, p.req.Method, p.url, body)
	if err != nil {
		return nil, &apierr.RequestError{Err: fmt.Errorf("failed to create request: %w", err)}
	}

	for name, values := range p.req.Header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	if s.acceptLanguage != "" && req.Header.Get("Accept-Language") == "" {
		req.Header.Set("Accept-Language", s.acceptLanguage)
	}

	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	if p.contentType != "" {
		req.Header.Set("Content-Type", p.contentType)
	}

	if p.req.Accept != "" {
		req.Header.Set("Accept", p.req.Accept)
	}

	if bearer != "" {
		req.Header.Set("Authorization", bearerPrefix+bearer)
	} else {
		req.Header.Del("Authorization")
	}

	return req, nil
}

// newResponseError describes a response whose status indicates failure.
func newResponseError(resp *Response) *apierr.ResponseError {
	return &apierr.ResponseError{
		Method:     resp.Request.Method,
		URL:        resp.Request.Path,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}
}

// progressReader reports how much of a body has been read.
type progressReader struct {
	r      io.Reader
	loaded int64
	total  int64
	report func(loaded, total int64)
}

func (pr *progressReader) Read(b []byte) (int, error) {
	n, err := pr.r.Read(b)
	if n > 0 {
		pr.loaded += int64(n)
		pr.report(pr.loaded, pr.total)
	}

	return n, err
}
