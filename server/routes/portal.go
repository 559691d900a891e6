// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"net/http"
	"net/url"
	"strconv"

	"codeberg.org/advisoryportal/portalfe/core/api"
	"codeberg.org/advisoryportal/portalfe/core/apierr"
	"codeberg.org/advisoryportal/portalfe/core/portal"
	"codeberg.org/advisoryportal/portalfe/core/untrusted"
)

// Portal serves the portal API to browsers, authenticated with their token cookie.
type Portal struct {
	Service *api.Service

	// NoticePageSize is the page size used when the request does not give one.
	NoticePageSize int
}

// SessionPage returns the signed-in user's basic info.
func (p *Portal) SessionPage(w http.ResponseWriter, r *http.Request) error {
	info, err := portal.GetUserBasicInfo(r.Context(), p.Service)
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusOK, info)

	return nil
}

// NoticesPage returns one page of notices, selected by the "page" and "size"
// query parameters.
func (p *Portal) NoticesPage(w http.ResponseWriter, r *http.Request) error {
	page, okPage := intQueryParam(r, "page", 0)
	size, okSize := intQueryParam(r, "size", p.NoticePageSize)

	if !okPage || !okSize || size == 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: apierr.MessageInvalidRequest})

		return nil
	}

	notices, err := portal.GetNotices(r.Context(), p.Service, page, size)
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusOK, notices)

	return nil
}

// FilePage streams a file from the API to the browser as a download.
// The request path, with the route prefix stripped, is the API path.
func (p *Portal) FilePage(w http.ResponseWriter, r *http.Request) error {
	file, err := api.DownloadFile(r.Context(), p.Service, r.URL.Path, r.URL.Query(), "")
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.Header().Set("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(file.Name))
	w.WriteHeader(http.StatusOK)

	_, err = w.Write(file.Data)

	return err
}

// LogoutPage drops the token cookie. The API keeps no session to end.
func LogoutPage(w http.ResponseWriter, r *http.Request) error {
	untrusted.ClearAllCookies(w, r)

	w.WriteHeader(http.StatusNoContent)

	return nil
}
