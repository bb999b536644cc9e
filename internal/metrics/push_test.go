// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/spectrace/internal/httputil"
	"github.com/pdiddy/spectrace/internal/secrets"
	"github.com/pdiddy/spectrace/pkg/types"
)

type pushRequest struct {
	method, path, user, pass string
	body                     string
}

// gateway records pushes and answers with codes in order, then 200.
type gateway struct {
	mu       sync.Mutex
	requests []pushRequest
	codes    []int
}

func (g *gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	user, pass, _ := r.BasicAuth()
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, pushRequest{r.Method, r.URL.Path, user, pass, string(data)})
	if len(g.requests) <= len(g.codes) {
		w.WriteHeader(g.codes[len(g.requests)-1])
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (g *gateway) seen() []pushRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]pushRequest(nil), g.requests...)
}

func TestPush(t *testing.T) {
	old := httputil.RetryBaseDelay
	httputil.RetryBaseDelay = time.Millisecond
	t.Cleanup(func() { httputil.RetryBaseDelay = old })

	secretsDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(secretsDir, secrets.PushgatewayUsername), []byte("ci\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(secretsDir, secrets.PushgatewayPassword), []byte("pw\n"), 0o600))

	tests := []struct {
		name      string
		codes     []int
		secrets   string
		wantErr   string
		wantCalls int
		wantUser  string
	}{
		{name: "plain push", wantCalls: 1},
		{name: "basic auth from secrets", secrets: secretsDir, wantCalls: 1, wantUser: "ci"},
		{name: "retries unavailable gateway", codes: []int{503, 429}, wantCalls: 3},
		{name: "server error", codes: []int{500}, wantCalls: 1, wantErr: "pushing metrics"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &gateway{codes: tt.codes}
			ts := httptest.NewServer(gw)
			defer ts.Close()

			cfg := types.MetricsConfig{PushURL: ts.URL, SecretsDir: tt.secrets}
			if tt.secrets == "" {
				cfg.SecretsDir = filepath.Join(t.TempDir(), "none")
			}
			err := Publish(context.Background(), cfg, sample(), nil)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			reqs := gw.seen()
			require.Len(t, reqs, tt.wantCalls)
			last := reqs[len(reqs)-1]
			assert.Equal(t, http.MethodPut, last.method)
			assert.Equal(t, "/metrics/job/spectrace", last.path)
			assert.Equal(t, tt.wantUser, last.user)
			assert.Contains(t, last.body, "spectrace_requirements_total")
		})
	}
}

func TestPushDisabled(t *testing.T) {
	c := New()
	c.Observe(sample())
	assert.NoError(t, c.Push(context.Background(), types.MetricsConfig{}, nil))
}
