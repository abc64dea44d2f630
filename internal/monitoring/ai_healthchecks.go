package monitoring

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

const HEALTHCHECK_INTERVAL = 15 * time.Second

type AnalyzerHealthChecker interface {
	AnalyzerHealthCheck(ctx context.Context) bool
}

// MonitorAnalyzerHealth probes the hosted classifier immediately and then
// every interval, storing the outcome in healthy until ctx ends
func MonitorAnalyzerHealth(ctx context.Context, checker AnalyzerHealthChecker, healthy *atomic.Bool, interval time.Duration) {
	if interval <= 0 {
		interval = HEALTHCHECK_INTERVAL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	check := func() {
		isHealthy := checker.AnalyzerHealthCheck(ctx)
		if healthy.Swap(isHealthy) != isHealthy {
			if isHealthy {
				slog.Info("[HealthCheck] Analyzer is healthy")
			} else {
				slog.Warn("[HealthCheck] Analyzer is unhealthy")
			}
		}
	}

	check()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
