package valori

import (
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/varshith-Git/valori/engine"
)

type options struct {
	engine  engine.Options
	logger  *Logger
	metrics MetricsCollector
}

// Option configures Open behavior.
type Option func(*options)

// WithLogger configures structured logging for facade operations. The
// kernel itself never logs. Pass nil to keep logging disabled.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLogLevel creates a text logger at the given level and sets it.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc != nil {
			o.metrics = mc
		}
	}
}

// WithArchive enables compressed at-rest archival of superseded snapshot
// and log generations after each checkpoint.
func WithArchive(dir string, codec engine.ArchiveCodec) Option {
	return func(o *options) {
		o.engine.Archive = &engine.ArchiveOptions{Dir: dir, Codec: codec}
	}
}

// WithIngestLimit bounds accepted commands per second at the durability
// boundary. The limit shapes when commands commit, never what they do.
func WithIngestLimit(limit rate.Limit, burst int) Option {
	return func(o *options) {
		o.engine.IngestLimit = limit
		o.engine.IngestBurst = burst
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:  NoopLogger(),
		metrics: NoopMetricsCollector{},
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
