// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package frame

import (
	"testing"

	"github.com/classfile/classfile/internal/classfile/cfg"
	"github.com/classfile/classfile/internal/classfile/symtab"
)

type stubOracle struct{}

func (stubOracle) CommonSuperClass(a, b string) string {
	if a == b {
		return a
	}
	return "java/lang/Object"
}

func (stubOracle) IsAssignable(sub, sup string) bool { return sub == sup || sup == "java/lang/Object" }

func TestMergeTypePrimitivesAndBottom(t *testing.T) {
	types := symtab.NewTypeTable()
	e := NewEngine(cfg.New(), types, stubOracle{})

	if m := e.mergeType(Type{Kind: Int}, Type{Kind: Bottom}); m.Kind != Int {
		t.Errorf("merge(int, bottom) = %v, want int", m)
	}
	if m := e.mergeType(Type{Kind: Int}, Type{Kind: Float}); m.Kind != Top {
		t.Errorf("merge(int, float) = %v, want Top", m)
	}
	if m := e.mergeType(Type{Kind: Int}, Type{Kind: Int}); m.Kind != Int {
		t.Errorf("merge(int, int) = %v, want int", m)
	}
}

func TestMergeTypeNullWithObject(t *testing.T) {
	types := symtab.NewTypeTable()
	obj := types.AddObject("pkg/Foo")
	e := NewEngine(cfg.New(), types, stubOracle{})

	m := e.mergeType(Type{Kind: Null}, Type{Kind: Object, TypeIdx: obj})
	if m.Kind != Object || m.TypeIdx != obj {
		t.Errorf("merge(null, object) = %v, want object(%d)", m, obj)
	}
}

func TestMergeTypeObjectObjectUsesOracleAndMemoizes(t *testing.T) {
	types := symtab.NewTypeTable()
	a := types.AddObject("pkg/A")
	b := types.AddObject("pkg/B")
	e := NewEngine(cfg.New(), types, stubOracle{})

	m1 := e.mergeType(Type{Kind: Object, TypeIdx: a}, Type{Kind: Object, TypeIdx: b})
	m2 := e.mergeType(Type{Kind: Object, TypeIdx: b}, Type{Kind: Object, TypeIdx: a})
	if types.InternalNameOf(m1.TypeIdx) != "java/lang/Object" {
		t.Errorf("merged name = %q, want java/lang/Object", types.InternalNameOf(m1.TypeIdx))
	}
	if m1.TypeIdx != m2.TypeIdx {
		t.Errorf("merge(a,b) and merge(b,a) produced different indices: %d vs %d", m1.TypeIdx, m2.TypeIdx)
	}
}

// A two-predecessor diamond (0 -> {1,2} -> 3) where both branches pass their
// input state through unchanged: block 3 must end up with the seeded [int]
// locals and an empty stack, exercising mergeInto's first-visit vs.
// subsequent-merge branches.
func TestRunConvergesOverDiamond(t *testing.T) {
	g := cfg.New()
	b0 := g.AddBlock(cfg.BasicBlock{Start: 0, End: 1})
	b1 := g.AddBlock(cfg.BasicBlock{Start: 1, End: 2})
	b2 := g.AddBlock(cfg.BasicBlock{Start: 2, End: 3})
	b3 := g.AddBlock(cfg.BasicBlock{Start: 3, End: 4})
	g.Block(b0).Successors = []cfg.Edge{{Kind: cfg.EdgeBranch, Target: b1}, {Kind: cfg.EdgeFallthrough, Target: b2}}
	g.Block(b1).Successors = []cfg.Edge{{Kind: cfg.EdgeFallthrough, Target: b3}}
	g.Block(b2).Successors = []cfg.Edge{{Kind: cfg.EdgeFallthrough, Target: b3}}

	types := symtab.NewTypeTable()
	e := NewEngine(g, types, stubOracle{})
	e.Seed(b0, State{Locals: []Type{{Kind: Int}}})

	e.Run(func(block int, in State) State {
		switch block {
		case 0:
			return in
		default:
			return in // both branches leave locals untouched, stacks empty
		}
	})

	final := e.StateOf(b3)
	if len(final.Locals) != 1 || final.Locals[0].Kind != Int {
		t.Errorf("StateOf(b3).Locals = %v, want [int]", final.Locals)
	}
	if len(final.Stack) != 0 {
		t.Errorf("StateOf(b3).Stack = %v, want empty", final.Stack)
	}
}

func TestClassifySameFrame(t *testing.T) {
	locals := []Type{{Kind: Int}}
	f := classify(10, locals, locals, nil)
	if f.Kind != FrameSame || f.OffsetDelta != 10 {
		t.Errorf("classify = %+v, want SameFrame delta 10", f)
	}
}

func TestClassifySameExtendedOverThreshold(t *testing.T) {
	locals := []Type{{Kind: Int}}
	f := classify(200, locals, locals, nil)
	if f.Kind != FrameSameExtended {
		t.Errorf("classify = %+v, want SameFrameExtended", f)
	}
}

func TestClassifySameLocals1StackItem(t *testing.T) {
	locals := []Type{{Kind: Int}}
	f := classify(5, locals, locals, []Type{{Kind: Float}})
	if f.Kind != FrameSameLocals1StackItem {
		t.Errorf("classify = %+v, want SameLocals1StackItem", f)
	}
}

func TestClassifyChop(t *testing.T) {
	prev := []Type{{Kind: Int}, {Kind: Float}, {Kind: Double}}
	cur := []Type{{Kind: Int}}
	f := classify(3, prev, cur, nil)
	if f.Kind != FrameChop || f.ChopCount != 2 {
		t.Errorf("classify = %+v, want ChopFrame count 2", f)
	}
}

func TestClassifyAppend(t *testing.T) {
	prev := []Type{{Kind: Int}}
	cur := []Type{{Kind: Int}, {Kind: Float}}
	f := classify(3, prev, cur, nil)
	if f.Kind != FrameAppend || len(f.Locals) != 1 || f.Locals[0].Kind != Float {
		t.Errorf("classify = %+v, want AppendFrame [float]", f)
	}
}

func TestClassifyFullFrameFallback(t *testing.T) {
	prev := []Type{{Kind: Int}}
	cur := []Type{{Kind: Float}, {Kind: Double}, {Kind: Long}, {Kind: Int}, {Kind: Int}}
	f := classify(3, prev, cur, nil)
	if f.Kind != FrameFull {
		t.Errorf("classify = %+v, want FullFrame (append over 3 locals)", f)
	}
}

func TestWidthLongAndDoubleTakeTwoSlots(t *testing.T) {
	if (Type{Kind: Long}).Width() != 2 {
		t.Errorf("Long.Width() != 2")
	}
	if (Type{Kind: Double}).Width() != 2 {
		t.Errorf("Double.Width() != 2")
	}
	if (Type{Kind: Int}).Width() != 1 {
		t.Errorf("Int.Width() != 1")
	}
}
