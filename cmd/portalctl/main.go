// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Command portalctl calls the portal API from the command line.

It keeps its token in a session file, so a token set once with
"portalctl token set" is reused, and replaced whenever the API rotates it.
*/
package main

import "os"

func main() {
	root := newRootCmd()

	if err := root.Execute(); err != nil {
		printError(root, err)
		os.Exit(1)
	}
}
