// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"

	"github.com/pdiddy/spectrace/internal/httputil"
	"github.com/pdiddy/spectrace/internal/secrets"
	"github.com/pdiddy/spectrace/pkg/types"
)

const pushTimeout = 30 * time.Second

// Push replaces the gauges for cfg.Job on the Pushgateway at cfg.PushURL.
// Throttled or unavailable responses are retried. When cfg.SecretsDir holds
// pushgateway-username and pushgateway-password the push uses basic auth.
func (c *Collector) Push(ctx context.Context, cfg types.MetricsConfig, logger *zap.Logger) error {
	if cfg.PushURL == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	job := cfg.Job
	if job == "" {
		job = types.DefaultConfig().Metrics.Job
	}

	creds, err := secrets.Load(cfg.SecretsDir, logger)
	if err != nil {
		return err
	}

	p := push.New(cfg.PushURL, job).
		Gatherer(c.reg).
		Client(&httputil.Client{
			HTTP:   &http.Client{Timeout: pushTimeout},
			Logger: logger,
		})
	if user, pass, ok := creds.BasicAuth(); ok {
		p = p.BasicAuth(user, pass)
	}

	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", cfg.PushURL, err)
	}
	logger.Debug("pushed metrics", zap.String("url", cfg.PushURL), zap.String("job", job))
	return nil
}

// Publish observes r, then writes the textfile and pushes to the
// Pushgateway as configured. Either destination may be disabled.
func Publish(ctx context.Context, cfg types.MetricsConfig, r *types.Report, logger *zap.Logger) error {
	c := New()
	c.Observe(r)
	if cfg.File != "" {
		if err := c.WriteTextfile(cfg.File); err != nil {
			return err
		}
	}
	return c.Push(ctx, cfg, logger)
}
