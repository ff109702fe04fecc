package executor

import (
	"context"
	"fmt"

	wasm "github.com/wasmforge/wasmforge/internal/wasm"
	"github.com/wasmforge/wasmforge/internal/wasmdebug"
	"github.com/wasmforge/wasmforge/internal/wasmruntime"
	"github.com/wasmforge/wasmforge/internal/engine/stack"
	"github.com/wasmforge/wasmforge/internal/fault"
	"github.com/wasmforge/wasmforge/internal/rtlog"
	"github.com/wasmforge/wasmforge/internal/stacktrace"
)

// CallingFrame is what a host function's Go callable receives: the
// invoking module instance, for reading its own memory/globals or calling
// back into the guest, and the Executor that dispatched it.
type CallingFrame struct {
	Executor *Executor
	Module   *wasm.ModuleInstance

	// execCtx is the ExecutionContext of the invocation currently running
	// this host call. Invoke reenters the guest through it so frame depth
	// and cost accounting survive the reentrant call, instead of a fresh
	// ExecutionContext resetting both to zero.
	execCtx *ExecutionContext
}

// Invoke reenters the guest from host code, sharing this invocation's
// frame-depth counter and cost budget rather than starting a fresh one —
// unlike calling Executor.Invoke again, which would reset both and let
// host<->guest mutual recursion grow the real Go call stack unbounded.
func (f CallingFrame) Invoke(ctx context.Context, fn *wasm.FunctionInstance, args []wasm.Value) ([]wasm.Value, error) {
	if err := validateArgs(fn, args); err != nil {
		return nil, err
	}
	return f.Executor.invoke(ctx, f.execCtx, fn, args)
}

// PreHostHook runs immediately before a host function executes.
type PreHostHook func(data any, frame CallingFrame, paramTypes []wasm.ValType, params []wasm.Value)

// PostHostHook runs immediately after a host function returns normally.
type PostHostHook func(data any, frame CallingFrame, resultTypes []wasm.ValType, results []wasm.Value)

type hookEntry struct {
	data any
	pre  PreHostHook
	post PostHostHook
}

// InvokeResult is what AsyncInvoke delivers on its result channel.
type InvokeResult struct {
	Results []wasm.Value
	Err     error
}

// Executor runs validated functions reachable from one entry point: host,
// interpreted, and — via CompiledEntrypoint — AOT-compiled. One Executor
// is typically installed per OS thread driving guest calls, matching the
// "per-invocation state is thread-local" design; nothing here is itself
// bound to a thread, so embedding it in a pool is also fine.
type Executor struct {
	// MaxFrameDepth bounds FrameStack depth for every invocation this
	// Executor starts; 0 uses stack.DefaultCallStackCeiling.
	MaxFrameDepth int

	// FaultHandlerDisabled skips translating a recovered panic into a Wasm
	// trap sentinel, re-panicking the original value instead. An embedder
	// sets this (via wasmforge.RuntimeConfig.WithFaultHandler(false)) when
	// it already wraps Invoke/AsyncInvoke in its own recover and wants the
	// untranslated panic value.
	FaultHandlerDisabled bool

	// DefaultCostLimit seeds ExecutionContext.CostLimit for Invoke/
	// AsyncInvoke; 0 disables metering by default.
	DefaultCostLimit uint64

	// CostTable seeds ExecutionContext.CostTable for Invoke/AsyncInvoke; nil
	// charges every opcode DefaultOpcodeCost. Host calls are charged their
	// FunctionInstance.Cost, not a table entry.
	CostTable CostTable

	preHooks  []hookEntry
	postHooks []hookEntry

	Log *rtlog.Logger

	// Compiled resolves a compiled-code trap's native program counters
	// back to Wasm function indices (spec §4.5's "compiled" collector). A
	// code generator installing CompiledEntrypoint registers each
	// function's entry (and type-trampoline) address here via
	// RegisterCompiledFunction at load time.
	Compiled *stacktrace.CompiledRegistry

	blocks blockIndexCache
}

// New constructs an Executor. log may be nil, in which case statistics and
// failures are not logged.
func New(log *rtlog.Logger) *Executor {
	if log == nil {
		log = rtlog.Default()
	}
	return &Executor{
		MaxFrameDepth: stack.DefaultCallStackCeiling,
		Log:           log,
		Compiled:      stacktrace.NewCompiledRegistry(),
	}
}

// RegisterCompiledFunction records funcIdx's native entry point (and,
// optionally, its type-trampoline's entry point) so a later trap's merged
// stack trace can name this frame instead of leaving it as a bare address
// (spec §4.5).
func (e *Executor) RegisterCompiledFunction(entryAddr, trampolineAddr uintptr, funcIdx uint32) {
	e.Compiled.RegisterFunction(entryAddr, trampolineAddr, funcIdx)
}

// RegisterPreHostFunction installs f to run before every host function this
// Executor invokes, threading data through as its first argument.
func (e *Executor) RegisterPreHostFunction(data any, f PreHostHook) {
	e.preHooks = append(e.preHooks, hookEntry{data: data, pre: f})
}

// RegisterPostHostFunction installs f to run after every host function this
// Executor invokes returns without error.
func (e *Executor) RegisterPostHostFunction(data any, f PostHostHook) {
	e.postHooks = append(e.postHooks, hookEntry{data: data, post: f})
}

// Invoke runs fn to completion with args, blocking the calling goroutine.
// It installs a fresh StackManager (spec: "invoke... installs a fresh
// StackManager per call"), validates argument count and non-null-reference
// arguments, and on return zero-extends and re-types every result value
// crossing back out to the caller.
func (e *Executor) Invoke(ctx context.Context, fn *wasm.FunctionInstance, args []wasm.Value) (results []wasm.Value, err error) {
	if err := validateArgs(fn, args); err != nil {
		return nil, err
	}

	execCtx := &ExecutionContext{CostLimit: e.DefaultCostLimit, CostTable: e.CostTable}
	return e.invoke(ctx, execCtx, fn, args)
}

// validateArgs checks an invocation's argument list against fn's declared
// signature: correct arity, and no null reference passed where the
// parameter type forbids one.
func validateArgs(fn *wasm.FunctionInstance, args []wasm.Value) error {
	if len(args) != len(fn.Type.Params) {
		return fmt.Errorf("executor: expected %d arguments, got %d", len(fn.Type.Params), len(args))
	}
	for i, a := range args {
		want := fn.Type.Params[i]
		if want.IsRef() && !want.Nullable && a.Ref.IsNull() {
			return wasmruntime.ErrRuntimeNonNullRequired
		}
	}
	return nil
}

// AsyncInvoke runs fn on a new goroutine and returns immediately; the
// result arrives on the returned channel exactly once. Canceling ctx
// requests a cooperative stop via ExecutionContext.RequestInterrupt rather
// than abandoning the goroutine, since a guest call may be mid-mutation of
// shared state (spec §5's "cooperative stop-token" design, not preemption).
func (e *Executor) AsyncInvoke(ctx context.Context, fn *wasm.FunctionInstance, args []wasm.Value) <-chan InvokeResult {
	out := make(chan InvokeResult, 1)
	if err := validateArgs(fn, args); err != nil {
		out <- InvokeResult{Err: err}
		return out
	}
	execCtx := &ExecutionContext{CostLimit: e.DefaultCostLimit, CostTable: e.CostTable}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			execCtx.RequestInterrupt()
		case <-done:
		}
	}()

	go func() {
		defer close(done)
		results, err := e.invoke(ctx, execCtx, fn, args)
		out <- InvokeResult{Results: results, Err: err}
	}()
	return out
}

func (e *Executor) invoke(ctx context.Context, execCtx *ExecutionContext, fn *wasm.FunctionInstance, args []wasm.Value) (results []wasm.Value, err error) {
	sm := stack.New(e.MaxFrameDepth)
	execCtx.fault = fault.Arm(execCtx.fault)
	defer func() { execCtx.fault = execCtx.fault.Disarm() }()

	defer func() {
		if r := recover(); r != nil {
			if e.FaultHandlerDisabled {
				panic(r)
			}
			// The fault subsystem's job (spec §4.4): a raw Go panic —
			// whether an intrinsic's deliberate wasmruntime sentinel or an
			// unchecked slice/divide the Go runtime itself caught — is
			// translated to a Wasm trap sentinel before it's ever reported
			// to the guest's caller. While a FaultBlocker from BlockFaults is
			// active, Guard re-raises the panic unchanged instead.
			translated := execCtx.fault.Guard(func() { panic(r) })

			builder := wasmdebug.NewErrorBuilder()
			builder.AddFrame(wasmdebug.FuncName(fn.Module.Name, fn.DebugName, fn.FuncIdx), fn.Type.Params, fn.Type.Results)
			for _, frame := range stacktrace.CaptureInterpreted(sm.FrameStack) {
				builder.AddFrame(frame.Name, nil, nil)
			}
			err = builder.FromRecovered(translated)
			e.Log.Error("invocation failed",
				"error", err, "cost_used", execCtx.CostUsed, "frames_entered", execCtx.FramesEntered)
		}
	}()

	for _, a := range args {
		sm.Push(a)
	}
	rets, err := e.enterFunction(ctx, execCtx, fn, sm)
	if err != nil {
		return nil, err
	}
	out := make([]wasm.Value, len(rets))
	for i, v := range rets {
		out[i] = e.normalizeReturn(fn.Module, v)
	}
	return out, nil
}

// normalizeReturn applies spec invariant 2 to a value about to cross back
// out to the caller: an externalized reference is re-typed to abstract
// externref, a concrete-index reference widens to its declared top heap
// type, and unused carrier bits are zeroed.
func (e *Executor) normalizeReturn(mod *wasm.ModuleInstance, v wasm.Value) wasm.Value {
	if v.Type.IsRef() {
		switch {
		case v.Ref.Externalized:
			v.Type = wasm.ValTypeExternref
		case v.Type.HeapType == wasm.HeapConcrete && mod != nil && int(v.Type.TypeIndex) < len(mod.Types):
			top := mod.Types[v.Type.TypeIndex].Composite.TopHeapType()
			v.Type = wasm.ValType{Code: wasm.CodeRef, Nullable: v.Type.Nullable, HeapType: top}
		}
	}
	return v.ZeroUnusedBits()
}

// enterFunction dispatches on fn.Kind, the single per-call switch spec §2
// calls for ("the executor switches on this once per call, rather than on
// every instruction").
func (e *Executor) enterFunction(ctx context.Context, execCtx *ExecutionContext, fn *wasm.FunctionInstance, sm *stack.Manager) ([]wasm.Value, error) {
	if err := execCtx.pollStopToken(); err != nil {
		return nil, err
	}

	ceiling := e.MaxFrameDepth
	if ceiling <= 0 {
		ceiling = stack.DefaultCallStackCeiling
	}
	if err := execCtx.enterDepth(ceiling); err != nil {
		return nil, err
	}
	defer execCtx.leaveDepth()

	execCtx.FramesEntered++

	switch fn.Kind {
	case wasm.FunctionKindHost:
		return e.enterHostFunction(ctx, execCtx, fn, sm)
	case wasm.FunctionKindCompiled:
		return e.enterCompiledFunction(execCtx, fn, sm)
	default:
		return e.enterInterpretedFunction(ctx, execCtx, fn, sm)
	}
}

// enterHostFunction pops fn's declared parameters off sm, runs the
// embedder-supplied Go function with the registered pre/post hooks around
// it, and pushes nothing itself — results are returned directly to the
// caller's enterFunction/call dispatch, which pushes them for an
// interpreted caller or returns them to Invoke at the top level.
func (e *Executor) enterHostFunction(ctx context.Context, execCtx *ExecutionContext, fn *wasm.FunctionInstance, sm *stack.Manager) ([]wasm.Value, error) {
	cost := fn.Cost
	if cost == 0 {
		cost = DefaultOpcodeCost
	}
	if err := execCtx.ChargeCost(cost); err != nil {
		return nil, err
	}

	params := make([]wasm.Value, len(fn.Type.Params))
	copy(params, sm.Top(len(fn.Type.Params)))
	sm.ValStack = sm.ValStack[:len(sm.ValStack)-len(fn.Type.Params)]
	for i, p := range params {
		params[i] = p.ZeroUnusedBits()
	}

	frame := CallingFrame{Executor: e, Module: fn.Module, execCtx: execCtx}
	for _, h := range e.preHooks {
		if h.pre != nil {
			h.pre(h.data, frame, fn.Type.Params, params)
		}
	}

	callCtx := &wasm.CallContext{
		Module: fn.Module,
		Ctx:    ctx,
		Invoke: func(ctx context.Context, callee *wasm.FunctionInstance, args []wasm.Value) ([]wasm.Value, error) {
			return frame.Invoke(ctx, callee, args)
		},
	}
	results, err := fn.GoFunc(callCtx, params)
	if err != nil {
		// A trap surfacing from a CallContext.Invoke reentry (e.g. the
		// reentered call hit CallStackExhausted or CostLimitExceeded) is
		// already a well-typed wasmruntime sentinel and must reach the
		// caller unchanged, not be folded into an opaque host-error wrapper.
		if _, isTrap := wasmruntime.CategoryOf(err); isTrap {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", wasmruntime.ErrRuntimeHostFuncError, err)
	}
	for i, r := range results {
		results[i] = r.ZeroUnusedBits()
	}

	for _, h := range e.postHooks {
		if h.post != nil {
			h.post(h.data, frame, fn.Type.Results, results)
		}
	}
	return results, nil
}

// enterCompiledFunction invokes an AOT-compiled function through the one
// entry point a code generator must provide: CompiledEntrypoint. This
// module never sets it — generating CompiledEntry's machine code is the
// out-of-scope AOT back-end — but the contract (how a generator's code
// reads arguments off sm and must leave results in their place, and how it
// reports ExecutionContext.ExitCode on early exit) is what a generator
// targets, and is fully specified by this function's shape.
func (e *Executor) enterCompiledFunction(execCtx *ExecutionContext, fn *wasm.FunctionInstance, sm *stack.Manager) ([]wasm.Value, error) {
	if CompiledEntrypoint == nil {
		return nil, fmt.Errorf("executor: function %q is FunctionKindCompiled but no CompiledEntrypoint is installed", fn.DebugName)
	}
	params := make([]wasm.Value, len(fn.Type.Params))
	copy(params, sm.Top(len(fn.Type.Params)))
	sm.ValStack = sm.ValStack[:len(sm.ValStack)-len(fn.Type.Params)]

	results, err := CompiledEntrypoint(execCtx, fn, params)
	if err != nil {
		return nil, err
	}
	if execCtx.ExitCode == ExitCodeTrap {
		return nil, fmt.Errorf("executor: compiled function %q exited via trap", fn.DebugName)
	}
	return results, nil
}

// CompiledEntrypoint is the pluggable hook an AOT code generator installs
// to actually run FunctionKindCompiled functions; nil means this module's
// own executor, with no code generator wired in, traps any attempt to
// call one. A generator's implementation is expected to set
// ExecutionContext.ExitCode on any early exit (ExitCodeCallGoFunction to
// call back into Go, ExitCodeGrowMemory to request linear memory growth,
// ExitCodeTrap on a hardware/validated fault) per this package's
// ExitCode enum, the calling-convention contract spec §2.2 describes.
var CompiledEntrypoint func(execCtx *ExecutionContext, fn *wasm.FunctionInstance, params []wasm.Value) ([]wasm.Value, error)
