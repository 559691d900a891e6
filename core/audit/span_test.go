// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHumanizeSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{1023, "1023"},
		{2048, "2.00K"},
		{3 * bytesInMB, "3.00M"},
		{bytesInGB, "1.00G"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, humanizeSize(tt.in))
	}
}

func TestSpanEndIsIdempotent(t *testing.T) {
	t.Parallel()

	span := Span{Destination: ToAPI, Method: "GET", URL: "/api/v1/x"}
	_ = span.Begin(context.Background())

	span.End()
	first := span.duration
	span.End()

	assert.Equal(t, first, span.duration)
	assert.Contains(t, span.ServerTimingName(), "api$GET$")
}
