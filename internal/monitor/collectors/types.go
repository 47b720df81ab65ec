package collectors

import (
	"context"
	"time"

	"hyperwatch/internal/monitor"
)

// Collector produces snapshots for one telemetry source
type Collector interface {
	Name() string
	Interval() time.Duration
	Collect(ctx context.Context) ([]monitor.Snapshot, error)
}
