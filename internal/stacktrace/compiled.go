package stacktrace

import (
	"sort"
	"sync"
)

// compiledEntry maps one native entry address to a Wasm function index, or
// marks it a trampoline sentinel (trampoline == true) that should be
// skipped rather than reported, per spec §4.5: "both the direct entry and
// its type-trampoline entry are registered, the trampoline mapped to a
// sentinel so it does not appear in the trace".
type compiledEntry struct {
	addr       uintptr
	funcIdx    uint32
	trampoline bool
}

// CompiledRegistry resolves a native program counter captured on a
// compiled-code trap's stack back to a Wasm function index, by binary
// search over every AOT entry point an installed code generator has
// registered. This module never installs a code generator itself (the
// AOT back-end is out of scope), so in practice a CompiledRegistry used
// by this module's own tests is the whole of what spec §4.5's "compiled"
// collector describes: a generator is expected to call RegisterFunction
// once per function it emits, at load time, before any call into it.
type CompiledRegistry struct {
	mu      sync.RWMutex
	entries []compiledEntry
	dirty   bool
}

// NewCompiledRegistry returns an empty registry.
func NewCompiledRegistry() *CompiledRegistry {
	return &CompiledRegistry{}
}

// RegisterFunction records funcIdx's native entry point and its type
// trampoline's entry point (trampolineAddr may be 0 if the generator
// doesn't emit a separate trampoline). Both addresses resolve to funcIdx
// via Lookup except the trampoline address, which Lookup reports as
// unresolved so it never appears in a merged trace (spec §4.5).
func (r *CompiledRegistry) RegisterFunction(entryAddr, trampolineAddr uintptr, funcIdx uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, compiledEntry{addr: entryAddr, funcIdx: funcIdx})
	if trampolineAddr != 0 {
		r.entries = append(r.entries, compiledEntry{addr: trampolineAddr, funcIdx: funcIdx, trampoline: true})
	}
	r.dirty = true
}

// Lookup resolves pc to the Wasm function index of the nearest registered
// entry address at or below it, by binary search (spec §4.5: "binary-
// searches a map from function entry addresses to function indices").
// ok is false both when pc precedes every registered entry and when the
// nearest entry is a trampoline sentinel.
func (r *CompiledRegistry) Lookup(pc uintptr) (funcIdx uint32, ok bool) {
	r.mu.Lock()
	if r.dirty {
		sort.Slice(r.entries, func(i, j int) bool { return r.entries[i].addr < r.entries[j].addr })
		r.dirty = false
	}
	entries := r.entries
	r.mu.Unlock()

	if len(entries) == 0 {
		return 0, false
	}
	i := sort.Search(len(entries), func(i int) bool { return entries[i].addr > pc }) - 1
	if i < 0 {
		return 0, false
	}
	e := entries[i]
	if e.trampoline {
		return 0, false
	}
	return e.funcIdx, true
}
