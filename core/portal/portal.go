// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package portal wraps the advisory portal endpoints used by the gateway.
*/
package portal

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"codeberg.org/advisoryportal/portalfe/core/api"
	"codeberg.org/advisoryportal/portalfe/core/requests"
)

// Endpoint paths.
const (
	UserBasicInfoPath = requests.DefaultAuthEndpoint
	NoticesPath       = "/api/v1/cnsut/notices"
)

// UserBasicInfo is the profile of the signed-in user. Its fields are owned by
// the API, so it is passed through unchanged.
type UserBasicInfo = json.RawMessage

// NoticeSort describes how a notices page is ordered.
type NoticeSort struct {
	Unsorted bool `json:"unsorted"`
	Sorted   bool `json:"sorted"`
	Empty    bool `json:"empty"`
}

// GetNoticesResponse is one page of notices.
type GetNoticesResponse struct {
	Content          json.RawMessage `json:"content"`
	Pageable         json.RawMessage `json:"pageable"`
	TotalPages       int             `json:"totalPages"`
	TotalElements    int             `json:"totalElements"`
	Last             bool            `json:"last"`
	First            bool            `json:"first"`
	NumberOfElements int             `json:"numberOfElements"`
	Sort             NoticeSort      `json:"sort"`
	Number           int             `json:"number"`
	Size             int             `json:"size"`
	Empty            bool            `json:"empty"`
}

// GetUserBasicInfo returns the profile of the user the request is made for.
func GetUserBasicInfo(ctx context.Context, svc *api.Service) (UserBasicInfo, error) {
	return api.Fetch[UserBasicInfo](ctx, svc, UserBasicInfoPath, nil)
}

// GetNotices returns the given zero-based page of notices.
func GetNotices(ctx context.Context, svc *api.Service, page, size int) (*GetNoticesResponse, error) {
	params := url.Values{
		"page": {strconv.Itoa(page)},
		"size": {strconv.Itoa(size)},
	}

	return api.Fetch[*GetNoticesResponse](ctx, svc, NoticesPath, params)
}
