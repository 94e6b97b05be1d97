package pool

import (
	"go.uber.org/zap"
)

// Option configures a ColumnPool.
type Option func(*options)

type options struct {
	name          string
	clearOnReturn bool
	disabled      bool
	logger        *zap.Logger
}

func defaultOptions() options {
	return options{clearOnReturn: true}
}

// WithName sets the pool name used in logs, metrics and leak reports.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithClearOnReturn controls whether column storage is zeroed when a column
// goes back to the pool. When disabled, recycled columns carry stale data
// beyond whatever the next owner writes.
func WithClearOnReturn(clear bool) Option {
	return func(o *options) { o.clearOnReturn = clear }
}

// WithPoolingDisabled makes Get always allocate and Return drop storage
// instead of recycling it.
func WithPoolingDisabled(disabled bool) Option {
	return func(o *options) { o.disabled = disabled }
}

// WithLogger sets the logger. Defaults to the global logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}
