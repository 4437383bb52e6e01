// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cfg

import "testing"

func TestLabelAtDeduplicatesByOffset(t *testing.T) {
	g := New()
	a := g.LabelAt(10)
	b := g.LabelAt(10)
	if a != b {
		t.Errorf("LabelAt(10) twice = %d, %d, want equal", a, b)
	}
	c := g.LabelAt(20)
	if c == a {
		t.Errorf("LabelAt(20) collided with LabelAt(10)")
	}
}

func TestForwardLabelResolveReturnsPatches(t *testing.T) {
	g := New()
	id := g.NewForwardLabel()
	if g.Label(id).Resolved {
		t.Fatalf("forward label reported Resolved before Resolve()")
	}
	g.AddPatch(id, Patch{BufferOffset: 5, InstrOffset: 2, Wide: false})
	g.AddPatch(id, Patch{BufferOffset: 9, InstrOffset: 2, Wide: true})

	patches := g.Resolve(id, 42)
	if len(patches) != 2 {
		t.Fatalf("Resolve returned %d patches, want 2", len(patches))
	}
	if !g.Label(id).Resolved || g.Label(id).Offset != 42 {
		t.Errorf("label not marked resolved at offset 42 after Resolve")
	}
	if len(g.Label(id).Patches) != 0 {
		t.Errorf("patches not cleared after Resolve")
	}
}

func TestUnresolvedReportsOnlyUnfixedLabels(t *testing.T) {
	g := New()
	resolved := g.LabelAt(0)
	forward := g.NewForwardLabel()

	u := g.Unresolved()
	if len(u) != 1 || u[0] != forward {
		t.Errorf("Unresolved() = %v, want [%d]", u, forward)
	}
	_ = resolved
}

func TestBlockContaining(t *testing.T) {
	g := New()
	g.AddBlock(BasicBlock{Start: 0, End: 10})
	g.AddBlock(BasicBlock{Start: 10, End: 25})
	g.AddBlock(BasicBlock{Start: 25, End: 30})

	cases := []struct {
		offset int
		want   int
	}{
		{0, 0}, {9, 0}, {10, 1}, {24, 1}, {25, 2}, {29, 2}, {30, -1}, {100, -1},
	}
	for _, c := range cases {
		if got := g.BlockContaining(c.offset); got != c.want {
			t.Errorf("BlockContaining(%d) = %d, want %d", c.offset, got, c.want)
		}
	}
}

func TestAddExceptionEdgesCoversOverlappingBlocksOnly(t *testing.T) {
	g := New()
	g.AddBlock(BasicBlock{Start: 0, End: 10})
	g.AddBlock(BasicBlock{Start: 10, End: 20})
	g.AddBlock(BasicBlock{Start: 20, End: 30})
	handler := g.AddBlock(BasicBlock{Start: 30, End: 35})

	g.AddExceptionEdges(5, 25, handler, "java/lang/Exception")

	for i, want := range []bool{true, true, true, false} {
		has := false
		for _, e := range g.Block(i).Successors {
			if e.Kind == EdgeException && e.Target == handler {
				has = true
			}
		}
		if has != want {
			t.Errorf("block %d has exception edge = %v, want %v", i, has, want)
		}
	}
}

func TestSubroutineCallAndReturnEdges(t *testing.T) {
	g := New()
	caller := g.AddBlock(BasicBlock{Start: 0, End: 3, SubroutineOf: -1})
	entry := g.AddBlock(BasicBlock{Start: 3, End: 6, SubroutineOf: -1})
	retBlock := g.AddBlock(BasicBlock{Start: 6, End: 9, SubroutineOf: -1})

	const subroutineID = 1
	g.AddSubroutineCall(caller, entry, subroutineID)
	g.Block(retBlock).SubroutineOf = subroutineID
	g.AddSubroutineReturn(retBlock, subroutineID)

	foundCall := false
	for _, e := range g.Block(caller).Successors {
		if e.Kind == EdgeSubroutineCall && e.Target == entry {
			foundCall = true
		}
	}
	if !foundCall {
		t.Errorf("missing subroutine-call edge from caller to entry")
	}

	foundReturn := false
	for _, e := range g.Block(retBlock).Successors {
		if e.Kind == EdgeSubroutineReturn && e.Target == caller {
			foundReturn = true
		}
	}
	if !foundReturn {
		t.Errorf("missing subroutine-return edge back to caller")
	}
}
