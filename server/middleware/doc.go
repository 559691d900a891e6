// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package middleware provides the HTTP middleware of the portal gateway.

The chain is assembled in router.RegisterMiddleware; CatchError wraps each
route individually in router.DefineRoutes.
*/
package middleware
