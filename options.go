package kernelcache

import (
	"io"
	"log/slog"
)

type (
	// Option configures a [Cache] during [New].
	Option func(*settings)
	settings struct {
		logger *slog.Logger
	}
)

// WithLogger directs the cache's diagnostic output to logger.
// By default, nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func newSettings(options []Option) settings {
	s := settings{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, apply := range options {
		apply(&s)
	}
	return s
}
