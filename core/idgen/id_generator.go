// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package idgen makes short identifiers for correlating inbound requests
with the outbound API calls they trigger.
*/
package idgen

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// entropyBytes is the number of random bytes appended to the timestamp.
const entropyBytes = 3

// Make makes a short ID with a 6 byte timestamp and 3 bytes of entropy.
func Make() string {
	return maketime(time.Now()) + entropy()
}

// Child makes an ID for an outbound call issued on behalf of parent.
//
// An empty parent yields a fresh top-level ID.
func Child(parent string) string {
	if parent == "" {
		return Make()
	}

	return parent + "-" + entropy()
}

func entropy() string {
	buf := [entropyBytes]byte{'a', 'a', 'a'}

	_, _ = rand.Read(buf[:])

	return base64.RawURLEncoding.EncodeToString(buf[:])
}

func maketime(t time.Time) string {
	return t.Format("150405")
}
