package gridsync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sushiag/go-pixel-canvas/internal/gridcodec"
)

// snapshotAttempts is the initial fetch plus one retry.
const snapshotAttempts = 2

// FetchSnapshot downloads and decodes the board. It may run on any goroutine:
// apart from starting the write journal it leaves the client alone, and
// Install or Fail applies the result.
func (c *Client) FetchSnapshot(ctx context.Context) ([]byte, error) {
	c.BeginRefresh()

	var lastErr error
	attempt := 0
	for attempt < snapshotAttempts {
		attempt++
		if attempt > 1 {
			if err := sleepCtx(ctx, c.cfg.RetryDelay); err != nil {
				lastErr = err
				break
			}
		}

		buf, err := c.fetchOnce(ctx)
		if err == nil {
			return buf, nil
		}
		lastErr = err
		c.log.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"url":     c.cfg.SnapshotURL,
		}).Warn("Snapshot fetch failed")

		if ctx.Err() != nil {
			break
		}
	}
	return nil, &TransportError{Attempts: attempt, Err: lastErr}
}

func (c *Client) fetchOnce(ctx context.Context) ([]byte, error) {
	want, err := gridcodec.PackedLen(c.cfg.GridSize)
	if err != nil {
		return nil, err
	}

	if c.cfg.SnapshotTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.SnapshotTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.SnapshotURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build snapshot request: %w", err)
	}
	req.Header = c.headers()
	req.Header.Set("Accept", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot request: unexpected status %s", resp.Status)
	}

	// one extra byte is enough to detect an oversized body
	packed, err := io.ReadAll(io.LimitReader(resp.Body, int64(want)+1))
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return gridcodec.Decode(packed, c.cfg.GridSize, c.palette)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
