package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/core/env"
)

const (
	DefaultWaitStatus   = 200
	DefaultWaitTimeout  = 30 * time.Second
	DefaultWaitInterval = 500 * time.Millisecond

	waitAttemptTimeout = 5 * time.Second
)

// ErrServiceNotReady is returned when the readiness wait times out.
var ErrServiceNotReady = errors.New("service not ready")

// WaitFor polls baseUrl+Path before the first test until it answers with Status.
type WaitFor struct {
	Path     string
	Status   int
	Timeout  time.Duration
	Interval time.Duration
}

func (w *WaitFor) withDefaults() WaitFor {
	out := *w
	if out.Status == 0 {
		out.Status = DefaultWaitStatus
	}
	if out.Timeout <= 0 {
		out.Timeout = DefaultWaitTimeout
	}
	if out.Interval <= 0 {
		out.Interval = DefaultWaitInterval
	}
	return out
}

// waitForService polls a URL until it returns the expected status code or times out
func (r *Runner) waitForService(ctx context.Context, resolver *env.Resolver) error {
	if r.config.WaitFor == nil {
		return nil
	}
	cfg := r.config.WaitFor.withDefaults()

	url, err := resolver.ResolvePath(cfg.Path)
	if err != nil {
		return err
	}

	r.logger.Debug().
		Str("url", url).
		Int("status", cfg.Status).
		Dur("timeout", cfg.Timeout).
		Dur("interval", cfg.Interval).
		Msg("waiting for service")

	waitCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	var lastErr error
	var lastStatus int

	for {
		attemptCtx, attemptCancel := context.WithTimeout(waitCtx, waitAttemptTimeout)
		resp, err := r.client.Get(attemptCtx, url, nil)
		attemptCancel()

		if err != nil {
			lastErr = err
		} else {
			lastStatus = resp.StatusCode
			if resp.StatusCode == cfg.Status {
				r.logger.Debug().Str("url", url).Int("status", resp.StatusCode).Msg("service is ready")
				return nil
			}
		}

		select {
		case <-waitCtx.Done():
			// interrupted by the caller, not timed out
			if err := ctx.Err(); err != nil {
				return err
			}
			if lastStatus != 0 {
				return fmt.Errorf("%w: %s after %v: got status %d, expected %d",
					ErrServiceNotReady, url, cfg.Timeout, lastStatus, cfg.Status)
			}
			return fmt.Errorf("%w: %s after %v: %v", ErrServiceNotReady, url, cfg.Timeout, lastErr)
		case <-ticker.C:
		}
	}
}
