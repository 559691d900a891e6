// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package api

import (
	"net/url"
	"regexp"
)

// DefaultFilename is used when a response does not name its file.
const DefaultFilename = "downloaded_file"

var filenameRegex = regexp.MustCompile(`filename\*=UTF-8''(.+)`)

// ExtractFilename returns the percent-decoded RFC 5987 filename of a
// Content-Disposition header value, or DefaultFilename.
func ExtractFilename(contentDisposition string) string {
	match := filenameRegex.FindStringSubmatch(contentDisposition)
	if match == nil {
		return DefaultFilename
	}

	name, err := url.PathUnescape(match[1])
	if err != nil || name == "" {
		return DefaultFilename
	}

	return name
}
