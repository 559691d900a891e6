// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored API token",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <token>",
		Short: "Store a token for later requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.store.Write(cmd.Context(), args[0], a.tokenTTL)
			fmt.Fprintln(cmd.OutOrStdout(), "Token stored.")

			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show whether a token is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, ok := a.store.Read(cmd.Context())
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "No token stored.")

				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Token stored: %s\n", maskToken(token))

			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.store.Clear(); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Token cleared.")

			return nil
		},
	})

	return cmd
}

// maskToken keeps the first and last four characters of token.
func maskToken(token string) string {
	const visible = 4

	if len(token) <= 2*visible {
		return "****"
	}

	return token[:visible] + "…" + token[len(token)-visible:]
}
