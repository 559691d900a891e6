// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package api

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/tidwall/gjson"

	"codeberg.org/advisoryportal/portalfe/core/apierr"
	"codeberg.org/advisoryportal/portalfe/core/requests"
)

const downloadDirPermissions = 0o755

// Blob is a raw response body and its content type.
type Blob struct {
	Data        []byte
	ContentType string
}

// File is a downloaded file.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// CreateBinary POSTs payload to path and returns the raw response body when
// the HTTP status is 200.
func CreateBinary(ctx context.Context, s *Service, path string, payload any, contentType string) (*Blob, error) {
	req := &requests.Request{Method: http.MethodPost, Path: path, Payload: payload, ContentType: contentType}

	resp, err := s.doer.Do(ctx, req)
	if err != nil {
		return nil, apierr.Normalize(ctx, err)
	}

	if resp.StatusCode != http.StatusOK {
		message := gjson.GetBytes(resp.Body, "message").String()

		return nil, envelopeError(resp.StatusCode, s.failureMessage(message, MessageBlobFailed))
	}

	return &Blob{Data: resp.Body, ContentType: resp.Header.Get("Content-Type")}, nil
}

// FetchBinary GETs rawURL and returns the raw response body. rawURL may be an
// absolute URL on the API host; the base URL is stripped from it.
func FetchBinary(ctx context.Context, s *Service, rawURL string, params url.Values) (*Blob, error) {
	req := &requests.Request{Method: http.MethodGet, Path: s.trimBaseURL(rawURL), Query: params}

	resp, err := s.doer.Do(ctx, req)
	if err != nil {
		return nil, apierr.Normalize(ctx, err)
	}

	return &Blob{Data: resp.Body, ContentType: resp.Header.Get("Content-Type")}, nil
}

// FetchFile GETs a file for in-app viewing.
//
// onProgress, if set, receives the download progress as a whole percentage
// whenever the total size is known. Files served as application/octet-stream
// are reported as application/pdf.
func FetchFile(ctx context.Context, s *Service, rawURL string, params url.Values, onProgress func(percent int)) (*File, error) {
	req := &requests.Request{
		Method: http.MethodGet,
		Path:   rawURL,
		Query:  params,
		Accept: requests.ContentTypeOctet,
	}

	if onProgress != nil {
		req.OnProgress = func(loaded, total int64) {
			if total > 0 {
				onProgress(int(math.Round(float64(loaded) * 100 / float64(total))))
			}
		}
	}

	resp, err := s.doer.Do(ctx, req)
	if err != nil {
		return nil, apierr.Normalize(ctx, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == requests.ContentTypeOctet {
		contentType = requests.ContentTypePDF
	}

	return &File{
		Name:        ExtractFilename(resp.Header.Get("Content-Disposition")),
		ContentType: contentType,
		Data:        resp.Body,
	}, nil
}

// DownloadFile GETs a file for saving. The original content type is kept.
// customFilename, when non-empty, replaces the name sent by the server.
func DownloadFile(ctx context.Context, s *Service, rawURL string, params url.Values, customFilename string) (*File, error) {
	req := &requests.Request{
		Method: http.MethodGet,
		Path:   rawURL,
		Query:  params,
		Accept: requests.ContentTypeOctet,
	}

	resp, err := s.doer.Do(ctx, req)
	if err != nil {
		return nil, apierr.Normalize(ctx, err)
	}

	name := customFilename
	if name == "" {
		name = ExtractFilename(resp.Header.Get("Content-Disposition"))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = requests.ContentTypeOctet
	}

	return &File{Name: name, ContentType: contentType, Data: resp.Body}, nil
}

// Save writes the file into dir and returns its path.
//
// Only the base name of f.Name is used, so a file never lands outside dir.
func (f *File) Save(dir string) (string, error) {
	name := filepath.Base(filepath.Clean("/" + f.Name))
	if name == "/" || name == "." {
		name = DefaultFilename
	}

	if err := os.MkdirAll(dir, downloadDirPermissions); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	target := filepath.Join(dir, name)

	if err := atomic.WriteFile(target, bytes.NewReader(f.Data)); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", target, err)
	}

	return target, nil
}
