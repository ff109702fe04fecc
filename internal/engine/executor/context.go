// Package executor runs validated function bodies: host functions, the
// bytecode interpreter, and (through CompiledEntrypoint, a pluggable entry
// point) AOT-compiled native code, all sharing one calling-convention
// contract: the ExecutionContext an invocation carries across every
// FunctionKind.
package executor

import (
	"sync/atomic"

	"github.com/wasmforge/wasmforge/internal/fault"
	wasm "github.com/wasmforge/wasmforge/internal/wasm"
	"github.com/wasmforge/wasmforge/internal/wasmruntime"
)

// DefaultOpcodeCost is what CostTable charges an opcode it has no entry
// for, and what a FunctionInstance with Cost == 0 is charged when it runs
// as a host function (spec §4.3's gas-metering hooks).
const DefaultOpcodeCost uint64 = 1

// CostTable assigns a metered cost to individual opcodes; an opcode absent
// from the table costs DefaultOpcodeCost. A nil CostTable costs every
// opcode DefaultOpcodeCost, so metering only needs CostLimit set to take
// effect uniformly.
type CostTable map[wasm.Opcode]uint64

func (t CostTable) cost(op wasm.Opcode) uint64 {
	if c, ok := t[op]; ok {
		return c
	}
	return DefaultOpcodeCost
}

// ExitCode is the fixed set of reasons a compiled function's native entry
// hands control back to Go. The interpreter never leaves Go so it never
// needs this protocol directly, but it still stamps ExecutionContext.ExitCode
// on its way out so a caller watching one invocation's ExecutionContext sees
// the same shape regardless of which FunctionKind ran.
type ExitCode int32

const (
	ExitCodeOK ExitCode = iota
	ExitCodeCallGoFunction
	ExitCodeGrowMemory
	ExitCodeTrap
	ExitCodeInterrupted
)

// ExecutionContext is the per-invocation state threaded through every
// function entry: the exit protocol a compiled function's native code
// would read and write across the Go/native boundary, plus the
// cancellation and cost-metering fields every FunctionKind shares.
type ExecutionContext struct {
	ExitCode ExitCode

	// CostLimit bounds the total metered cost an invocation may spend; 0
	// disables metering entirely. CostUsed accumulates via ChargeCost.
	CostLimit uint64
	CostUsed  uint64

	// CostTable assigns a per-opcode cost charged once per interpreted
	// instruction (spec §4.3); nil costs every opcode DefaultOpcodeCost.
	// Host-function calls are charged FunctionInstance.Cost instead (or
	// DefaultOpcodeCost when that is 0), never a CostTable entry.
	CostTable CostTable

	stopRequested int32 // atomic; set by RequestInterrupt.

	// FramesEntered counts enterFunction calls across the whole
	// invocation (host, interpreted, and compiled alike), for statistics
	// logging on trap.
	FramesEntered uint64

	// depth counts currently-active enterFunction calls, across every
	// FunctionKind and across any host function that reenters the guest
	// by sharing this ExecutionContext (see CallingFrame.Invoke) rather
	// than starting a fresh one. Unlike stack.Manager's CallStackCeiling,
	// which only bounds recursion within a single StackManager, depth
	// survives the fresh StackManager a reentrant call installs, so
	// host<->guest mutual recursion still traps CallStackExhausted
	// instead of growing the real Go call stack without bound.
	depth int

	// fault is the currently armed trap-translation boundary for this
	// invocation (spec §4.4). It is threaded through ExecutionContext
	// rather than kept in a package-level thread-local, since
	// ExecutionContext already is the "per-thread struct" spec §3 assigns
	// this lifetime to.
	fault *fault.Fault
}

// BlockFaults returns a scoped FaultBlocker that lets host code invoked
// for the remainder of this invocation's current call fault natively
// without this engine translating the panic into a Wasm trap (spec §4.4's
// FaultBlocker, "used while executing host code that is allowed to trap
// natively", e.g. a cgo call the embedder knows may raise a hardware
// signal of its own).
func (ec *ExecutionContext) BlockFaults() *fault.FaultBlocker {
	return ec.fault.Block()
}

// RequestInterrupt asks every cooperative poll point (function entry,
// branch-to-label) in this invocation to stop at its next opportunity.
// Safe to call from another goroutine.
func (ec *ExecutionContext) RequestInterrupt() {
	atomic.StoreInt32(&ec.stopRequested, 1)
}

// Interrupted reports whether RequestInterrupt has been called for this
// invocation.
func (ec *ExecutionContext) Interrupted() bool {
	return atomic.LoadInt32(&ec.stopRequested) != 0
}

// ChargeCost debits n from the remaining metered budget. Metering is
// disabled (ChargeCost always succeeds) when CostLimit is 0.
func (ec *ExecutionContext) ChargeCost(n uint64) error {
	if ec.CostLimit == 0 {
		return nil
	}
	if ec.CostUsed+n > ec.CostLimit {
		ec.ExitCode = ExitCodeTrap
		return wasmruntime.ErrRuntimeCostLimitExceeded
	}
	ec.CostUsed += n
	return nil
}

// enterDepth increments the shared call-depth counter, failing with
// ErrRuntimeCallStackOverflow ("CallStackExhausted") if doing so would
// exceed ceiling. A successful call must be paired with leaveDepth, by
// deferring it immediately.
func (ec *ExecutionContext) enterDepth(ceiling int) error {
	if ec.depth >= ceiling {
		return wasmruntime.ErrRuntimeCallStackOverflow
	}
	ec.depth++
	return nil
}

func (ec *ExecutionContext) leaveDepth() {
	ec.depth--
}

// pollStopToken is the cooperative cancellation check run at function entry
// and at every branch-to-label, per the concurrency model's "stop-token
// polled at function entry and branchToLabel" design.
func (ec *ExecutionContext) pollStopToken() error {
	if ec.Interrupted() {
		ec.ExitCode = ExitCodeInterrupted
		return wasmruntime.ErrRuntimeInterrupted
	}
	return nil
}
