// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"net/http"

	"codeberg.org/advisoryportal/portalfe/config"
)

// Health is the body of the health check.
type Health struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Revision string `json:"revision"`
	Started  string `json:"started"`
}

// HealthPage reports that the gateway is up. It does not contact the API.
func HealthPage(w http.ResponseWriter, _ *http.Request) error {
	writeJSON(w, http.StatusOK, Health{
		Status:   "ok",
		Version:  config.BuildVersion,
		Revision: config.Global.Build.Revision(),
		Started:  config.Global.Instance.StartingTime,
	})

	return nil
}
