// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"codeberg.org/advisoryportal/portalfe/core/api"
	"codeberg.org/advisoryportal/portalfe/core/portal"
	"codeberg.org/advisoryportal/portalfe/core/requests"
)

var (
	errKeyValue    = errors.New("expected key=value")
	errInvalidData = errors.New("--data is not valid JSON")
)

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the user the stored token belongs to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := portal.GetUserBasicInfo(cmd.Context(), a.svc)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), info)
		},
	}
}

func newNoticesCmd(a *app) *cobra.Command {
	var page, size int

	cmd := &cobra.Command{
		Use:   "notices",
		Short: "List notices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			notices, err := portal.GetNotices(cmd.Context(), a.svc, page, size)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), notices)
		},
	}

	cmd.Flags().IntVar(&page, "page", 0, "Page number, starting at 0")
	cmd.Flags().IntVar(&size, "size", 10, "Notices per page")

	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <path> [key=value...]",
		Short: "GET a path and print the envelope result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args[1:])
			if err != nil {
				return err
			}

			result, err := api.Fetch[json.RawMessage](cmd.Context(), a.svc, args[0], params)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

// bodyFlags are the flags describing a request body.
type bodyFlags struct {
	data string
	form []string
}

func (f *bodyFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.data, "data", "d", "", "JSON request body")
	cmd.Flags().StringArrayVarP(&f.form, "form", "F", nil, "Multipart form field as key=value (repeatable)")
	cmd.MarkFlagsMutuallyExclusive("data", "form")
}

// payload returns the request body and its content type.
func (f *bodyFlags) payload() (any, string, error) {
	switch {
	case len(f.form) > 0:
		fields := make(map[string]string, len(f.form))

		for _, field := range f.form {
			key, value, ok := strings.Cut(field, "=")
			if !ok {
				return nil, "", fmt.Errorf("%w: %q", errKeyValue, field)
			}

			fields[key] = value
		}

		return fields, requests.ContentTypeMultipart, nil
	case f.data != "":
		if !json.Valid([]byte(f.data)) {
			return nil, "", errInvalidData
		}

		return json.RawMessage(f.data), requests.ContentTypeJSON, nil
	default:
		return nil, requests.ContentTypeJSON, nil
	}
}

func newPostCmd(a *app) *cobra.Command {
	var (
		body    bodyFlags
		auth    bool
		results bool
	)

	cmd := &cobra.Command{
		Use:   "post <path>",
		Short: "POST to a path and print the envelope result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, contentType, err := body.payload()
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			var out any

			switch {
			case auth:
				out, err = api.CreateAuth[json.RawMessage](ctx, a.svc, args[0], payload, contentType)
			case results:
				out, err = api.CreateFull[json.RawMessage](ctx, a.svc, args[0], payload, contentType)
			default:
				out, err = api.Create[json.RawMessage](ctx, a.svc, args[0], payload, contentType)
			}

			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	body.register(cmd)
	cmd.Flags().BoolVar(&auth, "auth", false, "Print the whole envelope of a login-style endpoint")
	cmd.Flags().BoolVar(&results, "results", false, "Read the unwrapped \"results\" field instead of the envelope")
	cmd.MarkFlagsMutuallyExclusive("auth", "results")

	return cmd
}

func newPutCmd(a *app) *cobra.Command {
	var body bodyFlags

	cmd := &cobra.Command{
		Use:   "put <path>",
		Short: "PUT to a path and print the envelope result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, contentType, err := body.payload()
			if err != nil {
				return err
			}

			result, err := api.Update[json.RawMessage](cmd.Context(), a.svc, args[0], payload, contentType)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	body.register(cmd)

	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <path>",
		Short: "DELETE a path and print the envelope result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := api.Remove[json.RawMessage](cmd.Context(), a.svc, args[0])
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

func parseParams(args []string) (url.Values, error) {
	if len(args) == 0 {
		return nil, nil
	}

	params := make(url.Values, len(args))

	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("%w: %q", errKeyValue, arg)
		}

		params.Add(key, value)
	}

	return params, nil
}

func printJSON(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return err
	}

	buf.WriteByte('\n')

	_, err = buf.WriteTo(w)

	return err
}
