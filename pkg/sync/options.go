// Package sync provides options and results for one reconciliation cycle.
package sync

import (
	"time"

	"github.com/agentstation/ordersync/pkg/errors"
)

// Options controls one cycle of Client.Sync.
type Options struct {
	DryRun          bool          // Merge and report without writing
	Force           bool          // Write even when the merge found no changes
	SkipEnhancement bool          // Skip the best-effort enhancement pass
	Timeout         time.Duration // Timeout for the entire cycle (0 means none)
}

// Apply applies the given options to the sync options.
func (s *Options) Apply(opts ...Option) *Options {
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Defaults returns the default sync options.
func Defaults() *Options {
	return &Options{
		DryRun:          false,
		Force:           false,
		SkipEnhancement: false,
		Timeout:         0,
	}
}

// Option is a function that configures sync Options.
type Option func(*Options)

// Validate checks if the sync options are valid.
func (s *Options) Validate() error {
	if s.Timeout < 0 {
		return &errors.ValidationError{
			Field:   "Timeout",
			Value:   s.Timeout,
			Message: "timeout must be non-negative",
		}
	}
	if s.DryRun && s.Force {
		return &errors.ValidationError{
			Field:   "Force",
			Value:   s.Force,
			Message: "force cannot be combined with dry run",
		}
	}
	return nil
}

// WithDryRun configures dry run mode.
func WithDryRun(dryRun bool) Option {
	return func(opts *Options) {
		opts.DryRun = dryRun
	}
}

// WithForce configures writing even without changes.
func WithForce(force bool) Option {
	return func(opts *Options) {
		opts.Force = force
	}
}

// WithSkipEnhancement disables the enhancement pass.
func WithSkipEnhancement(skip bool) Option {
	return func(opts *Options) {
		opts.SkipEnhancement = skip
	}
}

// WithTimeout configures the sync timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.Timeout = timeout
	}
}
