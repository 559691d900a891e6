// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCmd runs portalctl against baseURL with a session file in sessionDir.
func runCmd(t *testing.T, baseURL, sessionDir string, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	var out, errOut bytes.Buffer

	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--base-url", baseURL, "--session", filepath.Join(sessionDir, "session.yaml")}, args...))

	err = root.Execute()
	if err != nil {
		printError(root, err)
	}

	return out.String(), errOut.String(), err
}

func TestTokenLifecycle(t *testing.T) {
	dir := t.TempDir()

	out, _, err := runCmd(t, "http://api.test", dir, "token", "show")
	require.NoError(t, err)
	assert.Equal(t, "No token stored.\n", out)

	_, _, err = runCmd(t, "http://api.test", dir, "token", "set", "abcd1234efgh")
	require.NoError(t, err)

	out, _, err = runCmd(t, "http://api.test", dir, "token", "show")
	require.NoError(t, err)
	assert.Equal(t, "Token stored: abcd…efgh\n", out)

	_, _, err = runCmd(t, "http://api.test", dir, "token", "clear")
	require.NoError(t, err)

	out, _, err = runCmd(t, "http://api.test", dir, "token", "show")
	require.NoError(t, err)
	assert.Equal(t, "No token stored.\n", out)
}

func TestGetRotatesStoredToken(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			assert.Equal(t, "Bearer old", r.Header.Get("Authorization"))
			w.Header().Set("Authorization", "Bearer rotated-token")
			w.WriteHeader(http.StatusCreated)
		default:
			assert.Equal(t, "Bearer rotated-token", r.Header.Get("Authorization"))
			assert.Equal(t, "3", r.URL.Query().Get("id"))
			_, _ = w.Write([]byte(`{"status":200,"result":{"id":3}}`))
		}
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()

	_, _, err := runCmd(t, srv.URL, dir, "token", "set", "old")
	require.NoError(t, err)

	out, _, err := runCmd(t, srv.URL, dir, "get", "/api/v1/items", "id=3")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":3}`, out)

	// The rotated token outlives the process.
	out, _, err = runCmd(t, srv.URL, dir, "token", "show")
	require.NoError(t, err)
	assert.Equal(t, "Token stored: rota…oken\n", out)
}

func TestExpiredTokenHint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"result":"토큰이 만료되었습니다."}`))
	}))
	t.Cleanup(srv.Close)

	_, errOut, err := runCmd(t, srv.URL, t.TempDir(), "whoami")
	require.Error(t, err)
	assert.Contains(t, errOut, "portalctl token set")
}

func TestPostBodies(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		check    func(t *testing.T, r *http.Request)
		response string
		want     string
	}{
		{
			name: "json",
			args: []string{"post", "/api/v1/items", "--data", `{"title":"a"}`},
			check: func(t *testing.T, r *http.Request) {
				t.Helper()

				body, _ := io.ReadAll(r.Body)
				assert.JSONEq(t, `{"title":"a"}`, string(body))
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			},
			response: `{"status":302,"result":{"id":9}}`,
			want:     `{"id":9,"status":302}`,
		},
		{
			name: "multipart",
			args: []string{"post", "/api/v1/items", "-F", "title=a", "-F", "kind=b"},
			check: func(t *testing.T, r *http.Request) {
				t.Helper()

				require.NoError(t, r.ParseMultipartForm(1<<20))
				assert.Equal(t, "a", r.FormValue("title"))
				assert.Equal(t, "b", r.FormValue("kind"))
			},
			response: `{"status":200,"result":true}`,
			want:     `true`,
		},
		{
			name:     "results",
			args:     []string{"post", "/api/v1/search", "--results"},
			check:    func(*testing.T, *http.Request) {},
			response: `{"results":[1,2]}`,
			want:     `[1,2]`,
		},
		{
			name:     "auth envelope on 403",
			args:     []string{"post", "/api/v1/login", "--auth"},
			check:    func(*testing.T, *http.Request) {},
			response: `{"status":403,"result":null}`,
			want:     `{"status":403,"result":null,"message":"토큰이 만료되었습니다. 다시 로그인 해주세요."}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				tt.check(t, r)
				_, _ = w.Write([]byte(tt.response))
			}))
			t.Cleanup(srv.Close)

			out, _, err := runCmd(t, srv.URL, t.TempDir(), tt.args...)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, out)
		})
	}
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", "attachment; filename*=UTF-8''report.pdf")
		_, _ = w.Write([]byte("%PDF"))
	}))
	t.Cleanup(srv.Close)

	out := t.TempDir()

	stdout, _, err := runCmd(t, srv.URL, t.TempDir(), "download", "/api/v1/files/1", "-o", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "report.pdf")

	data, err := os.ReadFile(filepath.Join(out, "report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data))
}

func TestParseParams(t *testing.T) {
	t.Parallel()

	params, err := parseParams([]string{"a=1", "a=2", "b="})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, params["a"])
	assert.Equal(t, []string{""}, params["b"])

	_, err = parseParams([]string{"novalue"})
	require.ErrorIs(t, err, errKeyValue)

	params, err = parseParams(nil)
	require.NoError(t, err)
	assert.Nil(t, params)
}

func TestMaskToken(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "****", maskToken("short"))
	assert.Equal(t, "abcd…6789", maskToken("abcdef123456789"))
}

func TestFlagDefaults(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		wantBaseURL string
		wantTimeout string
		wantTTL     string
	}{
		{
			name:        "configuration defaults",
			wantBaseURL: "http://localhost:3000",
			wantTimeout: "3m0s",
			wantTTL:     "1h0m0s",
		},
		{
			name: "environment overrides",
			env: map[string]string{
				"PORTAL_CLIENT_BASE_URL": "http://portal.test:3000",
				"PORTAL_CLIENT_TIMEOUT":  "42s",
				"PORTAL_TOKEN_MAX_AGE":   "5m",
			},
			wantBaseURL: "http://portal.test:3000",
			wantTimeout: "42s",
			wantTTL:     "5m0s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"PORTAL_CLIENT_BASE_URL", "PORTAL_CLIENT_TIMEOUT", "PORTAL_TOKEN_MAX_AGE"} {
				t.Setenv(key, tt.env[key])
			}

			flags := newRootCmd().PersistentFlags()
			assert.Equal(t, tt.wantBaseURL, flags.Lookup("base-url").DefValue)
			assert.Equal(t, tt.wantTimeout, flags.Lookup("timeout").DefValue)
			assert.Equal(t, tt.wantTTL, flags.Lookup("token-ttl").DefValue)
		})
	}
}
