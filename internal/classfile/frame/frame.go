// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package frame implements the FrameEngine (§4.6): abstract interpretation
// of a method's BytecodeGraph to a fixpoint, and serialization of the
// resulting per-block entry state into the compact StackMapTable wire forms
// (§4.6, §7). Grounded on the teacher's reloc.go, which walks a flat table
// of per-block entries and folds them into the smallest equivalent runs
// (IMAGE_REL_BASED_ABSOLUTE compaction) — the same "represent the common
// case compactly, fall back to a full form" shape the stack-map-frame wire
// format itself uses.
package frame

import (
	"sort"

	"github.com/classfile/classfile/internal/classfile/cfg"
	"github.com/classfile/classfile/internal/classfile/symtab"
)

// Kind is the tag of an AbstractType lattice element (§4.6).
type Kind int

const (
	Bottom Kind = iota
	Top
	Int
	Long
	Float
	Double
	Null
	UninitializedThis
	Object
	Uninitialized
)

// Type is one element of the abstract-interpretation lattice. Object and
// Uninitialized carry an index into the method's symtab.TypeTable.
type Type struct {
	Kind     Kind
	TypeIdx  int // Object, Uninitialized
}

func (t Type) String() string {
	switch t.Kind {
	case Bottom:
		return "⊥"
	case Top:
		return "⊤"
	case Int:
		return "int"
	case Long:
		return "long"
	case Float:
		return "float"
	case Double:
		return "double"
	case Null:
		return "null"
	case UninitializedThis:
		return "uninitializedThis"
	case Object:
		return "object"
	case Uninitialized:
		return "uninitialized"
	}
	return "?"
}

// Width reports how many local-variable slots this type occupies (long and
// double take two; everything else takes one), per §3.
func (t Type) Width() int {
	if t.Kind == Long || t.Kind == Double {
		return 2
	}
	return 1
}

// State is the abstract frame at one program point: a locals vector and an
// operand-stack vector, both growing right to left / top-to-bottom as the
// spec's "locals[] and stack[]" do.
type State struct {
	Locals []Type
	Stack  []Type
}

// Clone deep-copies a State so worklist merges never alias a predecessor's
// slice.
func (s State) Clone() State {
	out := State{
		Locals: make([]Type, len(s.Locals)),
		Stack:  make([]Type, len(s.Stack)),
	}
	copy(out.Locals, s.Locals)
	copy(out.Stack, s.Stack)
	return out
}

// Oracle resolves the common supertype of two internal names, and whether
// `sub` is assignable to (a subtype of, or equal to) `sup` — the pluggable
// authority §4.6 calls "Common-supertype oracle" and "assignability check".
type Oracle interface {
	CommonSuperClass(a, b string) string
	IsAssignable(sub, sup string) bool
}

// Engine runs the worklist fixpoint over a method's BytecodeGraph and
// produces the minimal StackMapTable frame list (§4.6).
type Engine struct {
	graph   *cfg.Graph
	types   *symtab.TypeTable
	oracle  Oracle
	states  []State // per-block merged input state
	visited []bool
	dirty   []bool
}

// NewEngine constructs an Engine for one method body.
func NewEngine(g *cfg.Graph, types *symtab.TypeTable, oracle Oracle) *Engine {
	n := len(g.Blocks())
	return &Engine{
		graph:   g,
		types:   types,
		oracle:  oracle,
		states:  make([]State, n),
		visited: make([]bool, n),
		dirty:   make([]bool, n),
	}
}

// Seed sets the entry block's input state (the method's initial locals from
// its descriptor and an empty stack, per §4.6 "the initial frame").
func (e *Engine) Seed(block int, initial State) {
	e.states[block] = initial
	e.dirty[block] = true
}

// Transfer computes the output state produced by interpreting one basic
// block's instructions starting from `in`. The caller supplies the transfer
// function because it depends on the decoded instruction stream, which
// lives in the not-yet-decoded-here parser/writer layer; Engine only owns
// the graph-level fixpoint and merge semantics.
type Transfer func(blockIndex int, in State) State

// Run drives the worklist to a fixpoint: each dirty block is transferred and
// its output merged into every successor's input state; a successor whose
// merged state changes is re-added to the worklist. Terminates because the
// lattice has finite height (§4.6 "the algorithm always terminates because
// the lattice... has finite height").
func (e *Engine) Run(transfer Transfer) {
	blocks := e.graph.Blocks()
	worklist := make([]int, 0, len(blocks))
	for i := range blocks {
		if e.dirty[i] {
			worklist = append(worklist, i)
		}
	}

	for len(worklist) > 0 {
		b := worklist[0]
		worklist = worklist[1:]
		e.dirty[b] = false
		e.visited[b] = true

		out := transfer(b, e.states[b].Clone())

		for _, edge := range blocks[b].Successors {
			if edge.Kind == cfg.EdgeSubroutineReturn {
				continue // ret targets are reseeded explicitly by the caller
			}
			changed := e.mergeInto(edge.Target, out)
			if changed && !e.dirty[edge.Target] {
				e.dirty[edge.Target] = true
				worklist = append(worklist, edge.Target)
			}
		}
	}
}

// mergeInto merges `incoming` into block `target`'s recorded input state,
// returning whether the state actually changed.
func (e *Engine) mergeInto(target int, incoming State) bool {
	if !e.visited[target] && len(e.states[target].Locals) == 0 && len(e.states[target].Stack) == 0 {
		e.states[target] = incoming.Clone()
		return true
	}
	merged, changed := e.merge(e.states[target], incoming)
	if changed {
		e.states[target] = merged
	}
	return changed
}

// merge computes the pointwise least upper bound of two states (§4.6
// "merge is pointwise... locals shorter than the other are padded with Top
// ... a slot present as Top in either operand is Top in the result").
func (e *Engine) merge(a, b State) (State, bool) {
	changed := false
	n := len(a.Locals)
	if len(b.Locals) > n {
		n = len(b.Locals)
	}
	locals := make([]Type, n)
	for i := 0; i < n; i++ {
		var x, y Type
		if i < len(a.Locals) {
			x = a.Locals[i]
		} else {
			x = Type{Kind: Top}
		}
		if i < len(b.Locals) {
			y = b.Locals[i]
		} else {
			y = Type{Kind: Top}
		}
		m := e.mergeType(x, y)
		locals[i] = m
		if i >= len(a.Locals) || m != a.Locals[i] {
			changed = true
		}
	}

	stack := a.Stack
	if len(a.Stack) == len(b.Stack) {
		stack = make([]Type, len(a.Stack))
		for i := range a.Stack {
			m := e.mergeType(a.Stack[i], b.Stack[i])
			stack[i] = m
			if m != a.Stack[i] {
				changed = true
			}
		}
	}
	return State{Locals: locals, Stack: stack}, changed
}

// mergeType merges two lattice elements, consulting the TypeTable/oracle
// for the Object × Object case (§4.6 "merge operator").
func (e *Engine) mergeType(a, b Type) Type {
	if a == b {
		return a
	}
	if a.Kind == Top || b.Kind == Top {
		return Type{Kind: Top}
	}
	if a.Kind == Bottom {
		return b
	}
	if b.Kind == Bottom {
		return a
	}
	if a.Kind == Null && (b.Kind == Object || b.Kind == Uninitialized) {
		return b
	}
	if b.Kind == Null && (a.Kind == Object || a.Kind == Uninitialized) {
		return a
	}
	if a.Kind == Object && b.Kind == Object {
		merged := e.types.Merge(a.TypeIdx, b.TypeIdx, e.oracle.CommonSuperClass)
		return Type{Kind: Object, TypeIdx: merged}
	}
	// Mismatched primitive kinds, or Uninitialized vs. a different site:
	// not assignable to one another under any oracle, so the join is Top.
	return Type{Kind: Top}
}

// StateOf returns the final merged input state recorded for a block.
func (e *Engine) StateOf(block int) State { return e.states[block] }

// FrameKind names one of the seven StackMapTable entry forms (§4.6,
// §7).
type FrameKind int

const (
	FrameSame FrameKind = iota
	FrameSameLocals1StackItem
	FrameSameLocals1StackItemExtended
	FrameChop
	FrameSameExtended
	FrameAppend
	FrameFull
)

// StackMapFrame is one decoded/to-be-encoded entry of the StackMapTable
// attribute, already reduced to its minimal compact form.
type StackMapFrame struct {
	Kind        FrameKind
	OffsetDelta int
	ChopCount   int       // FrameChop
	Locals      []Type    // FrameAppend (appended tail only), FrameFull (all)
	Stack       []Type    // FrameSameLocals1StackItem[Extended] (len 1), FrameFull
}

// frameBlock pairs a block's bytecode offset with its merged input state,
// for frame-list construction.
type frameBlock struct {
	offset int
	state  State
}

// BuildFrames reduces the per-block merged states recorded by Run into the
// ordered, delta-encoded StackMapFrame list a StackMapTable attribute
// serializes (§4.6 "frame-delta encoding", §7 frame-kind selection rules).
// blockOffsets supplies each frame-target block's bytecode offset; frames
// are only emitted for blocks whose `needsFrame` entry the caller set.
func (e *Engine) BuildFrames(blockOffsets []int, needsFrame []bool, initialLocals []Type) []StackMapFrame {
	var points []frameBlock
	for i, off := range blockOffsets {
		if needsFrame[i] {
			points = append(points, frameBlock{offset: off, state: e.states[i]})
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].offset < points[j].offset })

	var frames []StackMapFrame
	prevOffset := -1
	prevLocals := initialLocals
	for _, p := range points {
		delta := p.offset - prevOffset - 1
		if prevOffset == -1 {
			delta = p.offset
		}
		frames = append(frames, classify(delta, prevLocals, p.state.Locals, p.state.Stack))
		prevOffset = p.offset
		prevLocals = p.state.Locals
	}
	return frames
}

// classify picks the smallest wire form encoding the transition from
// prevLocals to (locals, stack) at the given offset delta, per §7's frame
// kind table.
func classify(delta int, prevLocals, locals []Type, stack []Type) StackMapFrame {
	switch {
	case len(stack) == 0 && sameLocals(prevLocals, locals):
		if delta <= 63 {
			return StackMapFrame{Kind: FrameSame, OffsetDelta: delta}
		}
		return StackMapFrame{Kind: FrameSameExtended, OffsetDelta: delta}

	case len(stack) == 1 && sameLocals(prevLocals, locals):
		if delta <= 63 {
			return StackMapFrame{Kind: FrameSameLocals1StackItem, OffsetDelta: delta, Stack: stack}
		}
		return StackMapFrame{Kind: FrameSameLocals1StackItemExtended, OffsetDelta: delta, Stack: stack}

	case len(stack) == 0 && len(locals) < len(prevLocals) && localsPrefix(locals, prevLocals):
		chop := len(prevLocals) - len(locals)
		if chop <= 3 {
			return StackMapFrame{Kind: FrameChop, OffsetDelta: delta, ChopCount: chop}
		}

	case len(stack) == 0 && len(locals) > len(prevLocals) && localsPrefix(prevLocals, locals):
		appended := len(locals) - len(prevLocals)
		if appended <= 3 {
			return StackMapFrame{Kind: FrameAppend, OffsetDelta: delta, Locals: locals[len(prevLocals):]}
		}
	}
	return StackMapFrame{Kind: FrameFull, OffsetDelta: delta, Locals: locals, Stack: stack}
}

func sameLocals(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func localsPrefix(shorter, longer []Type) bool {
	if len(shorter) > len(longer) {
		return false
	}
	for i := range shorter {
		if shorter[i] != longer[i] {
			return false
		}
	}
	return true
}
