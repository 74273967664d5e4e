package workflow

import (
	"time"

	"github.com/flowcraft/dagflow-go/workflow/obs"
)

// Options configures an Executor. Use the With* functions to build it, the
// same functional-options pattern langgraph-go's Engine uses.
type Options struct {
	// MaxConcurrent bounds how many ready nodes a single round dispatches
	// at once. Zero means unbounded.
	MaxConcurrent int

	// DefaultNodeTimeout applies to any node without its own NodeDef.Timeout.
	// Zero means no default timeout.
	DefaultNodeTimeout time.Duration

	// DefaultSubflowMaxDepth applies to any subflow node without its own
	// NodeDef.SubflowMaxDepth. Zero falls back to the package default of 10.
	DefaultSubflowMaxDepth int

	Emitter obs.Emitter
	Logger  *obs.Logger

	// SubflowRegistry resolves NodeDef.SubflowID to a Definition when a
	// subflow node has no inline SubflowDefinition.
	SubflowRegistry map[string]*Def
}

// Option mutates an Options being built up by New.
type Option func(*Options)

// WithMaxConcurrent bounds per-round dispatch parallelism.
func WithMaxConcurrent(n int) Option {
	return func(o *Options) { o.MaxConcurrent = n }
}

// WithDefaultNodeTimeout sets the fallback per-node timeout.
func WithDefaultNodeTimeout(d time.Duration) Option {
	return func(o *Options) { o.DefaultNodeTimeout = d }
}

// WithDefaultSubflowMaxDepth sets the fallback subflow call-stack depth
// limit for subflow nodes that don't specify their own.
func WithDefaultSubflowMaxDepth(n int) Option {
	return func(o *Options) { o.DefaultSubflowMaxDepth = n }
}

// WithEmitter attaches an observability sink.
func WithEmitter(e obs.Emitter) Option {
	return func(o *Options) { o.Emitter = e }
}

// WithLogger attaches a logging callback.
func WithLogger(l *obs.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithSubflowRegistry registers workflow definitions addressable by
// SubflowID from a subflow node.
func WithSubflowRegistry(defs map[string]*Def) Option {
	return func(o *Options) { o.SubflowRegistry = defs }
}

func defaultOptions() Options {
	return Options{
		DefaultSubflowMaxDepth: 10,
		Emitter:                obs.NullEmitter{},
		SubflowRegistry:        map[string]*Def{},
	}
}
