// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package audit records HTTP traffic flowing through the portal frontend.
*/
package audit

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetDefaultLogger provides an ok log output format on startup if no config is set.
//
// It also makes log.Ctx fall back to the global logger for contexts that
// carry none, so later changes to log.Logger apply there too.
func SetDefaultLogger() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime})
	zerolog.DefaultContextLogger = &log.Logger
}
