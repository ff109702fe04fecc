// Package wasmforge is the module's small outer surface: a RuntimeConfig
// for the handful of process-wide/per-Executor knobs the core exposes, and
// the Loader/HostModule seams a binary decoder and an instantiation layer
// built on top of internal/wasm would implement. Decoding, instantiation,
// and WASI are out of scope here (see internal/wasm's package doc); this
// file only wires config options into the pieces this module does own:
// internal/engine/executor's Executor and internal/engine/stack's call
// depth ceiling.
package wasmforge

import (
	"go.uber.org/zap"

	"github.com/wasmforge/wasmforge/internal/engine/executor"
	"github.com/wasmforge/wasmforge/internal/engine/stack"
	"github.com/wasmforge/wasmforge/internal/features"
	"github.com/wasmforge/wasmforge/internal/rtlog"
)

// RuntimeConfig controls the executor an embedder builds with NewExecutor,
// following the teacher's own config.go: a zero-value-safe struct built up
// through With* methods, each returning a new *RuntimeConfig rather than
// mutating the receiver, so a base config can be shared and specialized
// without the specializations interfering with each other.
type RuntimeConfig struct {
	callStackCeiling    int
	costLimit           uint64
	costTable           executor.CostTable
	faultHandlerEnabled bool
	logger              *zap.Logger
}

// NewRuntimeConfig returns the default configuration: stack.
// DefaultCallStackCeiling frames, no cost metering, the fault handler
// armed, and no logging.
func NewRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		callStackCeiling:    stack.DefaultCallStackCeiling,
		faultHandlerEnabled: true,
	}
}

func (c *RuntimeConfig) clone() *RuntimeConfig {
	ret := *c
	return &ret
}

// WithCallStackCeiling bounds how many Wasm call frames one invocation may
// have active at once before it traps with ErrRuntimeCallStackOverflow.
func (c *RuntimeConfig) WithCallStackCeiling(n int) *RuntimeConfig {
	ret := c.clone()
	ret.callStackCeiling = n
	return ret
}

// WithCostLimit sets the metered-cost budget every invocation starts with;
// 0 (the default) disables metering.
func (c *RuntimeConfig) WithCostLimit(n uint64) *RuntimeConfig {
	ret := c.clone()
	ret.costLimit = n
	return ret
}

// WithCostTable assigns a per-opcode metered cost, overriding the default
// cost of 1 charged to any opcode the table has no entry for. Host calls are
// not priced by the table: each charges its FunctionInstance.Cost, or 1 when
// that is 0. Only takes effect with a non-zero WithCostLimit.
func (c *RuntimeConfig) WithCostTable(t executor.CostTable) *RuntimeConfig {
	ret := c.clone()
	ret.costTable = t
	return ret
}

// WithFaultHandler toggles whether a recovered panic is translated into a
// Wasm trap sentinel (the default) or left to propagate as a raw Go panic.
// Disabling it suits an embedder that already wraps every Invoke call in
// its own recover and wants the original panic value rather than this
// module's translation — e.g. one running somewhere a hardware fault
// genuinely cannot be distinguished from a software bug and wants to
// handle both identically upstream.
func (c *RuntimeConfig) WithFaultHandler(enabled bool) *RuntimeConfig {
	ret := c.clone()
	ret.faultHandlerEnabled = enabled
	return ret
}

// WithLogger installs a *zap.Logger for the built Executor's trap/
// statistics logging. Passing nil restores the no-op default.
func (c *RuntimeConfig) WithLogger(l *zap.Logger) *RuntimeConfig {
	ret := c.clone()
	ret.logger = l
	return ret
}

// WithFeature turns on a process-wide feature flag (currently just
// "hugepages", internal/allocator's transparent-huge-pages hint) when
// enabled is true; enabled=false does nothing and does not turn off a flag
// that is already on. Unlike
// the other With* methods this is global and not undone by discarding the
// returned *RuntimeConfig, matching internal/features' own process-wide
// scope; it is exposed here so an embedder doesn't have to import an
// internal package to reach it.
func (c *RuntimeConfig) WithFeature(name string, enabled bool) *RuntimeConfig {
	if enabled {
		features.Enable(name)
	}
	return c
}

// NewExecutor builds an *executor.Executor from cfg. A nil cfg uses
// NewRuntimeConfig()'s defaults.
func NewExecutor(cfg *RuntimeConfig) *executor.Executor {
	if cfg == nil {
		cfg = NewRuntimeConfig()
	}
	e := executor.New(rtlog.New(cfg.logger))
	if cfg.callStackCeiling > 0 {
		e.MaxFrameDepth = cfg.callStackCeiling
	}
	e.DefaultCostLimit = cfg.costLimit
	e.CostTable = cfg.costTable
	e.FaultHandlerDisabled = !cfg.faultHandlerEnabled
	return e
}
