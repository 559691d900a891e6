// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
This package r/w public state in a request.

Public state -- HTTP cookies, including the portal API token -- is received
from the user agent and can be anything. The user controls all of it, so
values read here are only ever forwarded to the portal API, never trusted.
*/
package untrusted
