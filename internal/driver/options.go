package driver

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/combiner/internal/observability"
)

// Option configures a Driver at construction, following the teacher's
// functional-options convention.
type Option func(*Driver)

// WithDriverLogger attaches a structured logger to the Driver loop
// itself (separate from the Processor's, so loop-level events like
// expiry polling are distinguishable from per-rule logging).
func WithDriverLogger(logger *slog.Logger) Option {
	return func(d *Driver) { d.logger = logger }
}

// WithDriverMetrics attaches a metrics recorder to the Driver loop.
func WithDriverMetrics(m observability.Recorder) Option {
	return func(d *Driver) { d.metrics = m }
}

// WithClock overrides the Driver's source of "now", for deterministic
// tests of timing-based scenarios.
func WithClock(clock func() time.Time) Option {
	return func(d *Driver) { d.now = clock }
}
