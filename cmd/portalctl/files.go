// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"codeberg.org/advisoryportal/portalfe/core/api"
)

func newDownloadCmd(a *app) *cobra.Command {
	var dir, name string

	cmd := &cobra.Command{
		Use:   "download <path> [key=value...]",
		Short: "Download a file, keeping the name sent by the server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args[1:])
			if err != nil {
				return err
			}

			file, err := api.DownloadFile(cmd.Context(), a.svc, args[0], params, name)
			if err != nil {
				return err
			}

			saved, err := file.Save(dir)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s, %d bytes)\n", saved, file.ContentType, len(file.Data))

			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "output", "o", ".", "Directory to save into")
	cmd.Flags().StringVar(&name, "name", "", "File name to use instead of the server's")

	return cmd
}

func newViewCmd(a *app) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "view <path> [key=value...]",
		Short: "Fetch a file for viewing, reporting progress",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args[1:])
			if err != nil {
				return err
			}

			last := -1

			file, err := api.FetchFile(cmd.Context(), a.svc, args[0], params, func(percent int) {
				if percent != last {
					last = percent
					cmd.PrintErrf("\r%3d%%", percent)
				}
			})

			if last >= 0 {
				cmd.PrintErrln()
			}

			if err != nil {
				return err
			}

			saved, err := file.Save(dir)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", saved, file.ContentType)

			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "output", "o", ".", "Directory to save into")

	return cmd
}
