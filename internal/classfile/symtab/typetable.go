// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package symtab

import "fmt"

// TypeKind distinguishes the three kinds of writer-internal type-table entry
// (§3 "Type table").
type TypeKind int

const (
	TypeObject TypeKind = iota
	TypeUninitialized
	TypeMerged
)

// TypeEntry is one row of the writer-internal type table, used only by the
// FrameEngine and never serialized.
type TypeEntry struct {
	Kind TypeKind

	// TypeObject / TypeUninitialized:
	InternalName string

	// TypeUninitialized: either NewOffset is valid (offset already known)
	// or NewLabel is set (forward reference, resolved later by the cfg
	// package writing back through SetUninitializedOffset).
	NewOffset int
	NewLabel  int // cfg.LabelID; -1 means "use NewOffset instead"

	// TypeMerged:
	Left, Right int // indices of the two merged entries
}

// TypeTable is the writer-internal registry of reference types described in
// §3 and §4.2; it supports a merge operation that memoizes the computed
// common supertype so repeated merges of the same pair are O(1).
type TypeTable struct {
	entries     []TypeEntry
	objectIndex map[string]int
	mergeCache  map[[2]int]int
}

// NewTypeTable returns an empty TypeTable.
func NewTypeTable() *TypeTable {
	return &TypeTable{
		objectIndex: make(map[string]int),
		mergeCache:  make(map[[2]int]int),
	}
}

// AddObject interns an ObjectType(internalName) entry, returning its index.
func (tt *TypeTable) AddObject(internalName string) int {
	if idx, ok := tt.objectIndex[internalName]; ok {
		return idx
	}
	idx := len(tt.entries)
	tt.entries = append(tt.entries, TypeEntry{Kind: TypeObject, InternalName: internalName})
	tt.objectIndex[internalName] = idx
	return idx
}

// AddUninitialized adds an UninitializedType entry for a `new` instruction
// whose bytecode offset is already known.
func (tt *TypeTable) AddUninitialized(internalName string, newOffset int) int {
	idx := len(tt.entries)
	tt.entries = append(tt.entries, TypeEntry{Kind: TypeUninitialized, InternalName: internalName, NewOffset: newOffset, NewLabel: -1})
	return idx
}

// AddForwardUninitialized adds an UninitializedType entry for a `new`
// instruction reached via a forward label, resolved later once the label's
// offset is known.
func (tt *TypeTable) AddForwardUninitialized(internalName string, labelID int) int {
	idx := len(tt.entries)
	tt.entries = append(tt.entries, TypeEntry{Kind: TypeUninitialized, InternalName: internalName, NewLabel: labelID})
	return idx
}

// ResolveUninitialized fills in NewOffset for every forward-referenced
// UninitializedType entry pointing at labelID, once the label is resolved.
func (tt *TypeTable) ResolveUninitialized(labelID, offset int) {
	for i := range tt.entries {
		if tt.entries[i].Kind == TypeUninitialized && tt.entries[i].NewLabel == labelID {
			tt.entries[i].NewOffset = offset
			tt.entries[i].NewLabel = -1
		}
	}
}

// Entry returns the type-table row at index.
func (tt *TypeTable) Entry(index int) TypeEntry { return tt.entries[index] }

// InternalNameOf resolves index to its internal name, following Merged
// entries to their computed common supertype.
func (tt *TypeTable) InternalNameOf(index int) string {
	e := tt.entries[index]
	switch e.Kind {
	case TypeObject, TypeUninitialized:
		return e.InternalName
	case TypeMerged:
		// A merged entry's InternalName is filled in once CommonSuperClass
		// resolves it; see Merge.
		return e.InternalName
	}
	return ""
}

// CommonSuperClass resolves the common supertype of two internal names.
// Implementations typically default to "java/lang/Object" and may be
// overridden by the caller (§4.6 "Common-supertype oracle").
type CommonSuperClass func(a, b string) string

// Merge computes (and memoizes) the common-supertype index of a and b,
// consulting oracle only on first encounter with this exact (unordered)
// pair — §4.2: "commutative, associative, and idempotent... implementation
// stores the computed common-supertype index in the entry's info slot so
// repeated merges are O(1)".
func (tt *TypeTable) Merge(a, b int, oracle CommonSuperClass) int {
	if a == b {
		return a
	}
	key := [2]int{a, b}
	if a > b {
		key = [2]int{b, a}
	}
	if idx, ok := tt.mergeCache[key]; ok {
		return idx
	}
	superName := oracle(tt.InternalNameOf(a), tt.InternalNameOf(b))
	idx := len(tt.entries)
	tt.entries = append(tt.entries, TypeEntry{Kind: TypeMerged, InternalName: superName, Left: a, Right: b})
	tt.mergeCache[key] = idx
	// Also memoize under the resolved object index so a later direct
	// AddObject(superName) reuses the same identity where possible.
	if _, exists := tt.objectIndex[superName]; !exists {
		tt.objectIndex[superName] = idx
	}
	return idx
}

func (e TypeEntry) String() string {
	switch e.Kind {
	case TypeObject:
		return fmt.Sprintf("Object(%s)", e.InternalName)
	case TypeUninitialized:
		return fmt.Sprintf("Uninitialized(%s@%d)", e.InternalName, e.NewOffset)
	case TypeMerged:
		return fmt.Sprintf("Merged(%d,%d)->%s", e.Left, e.Right, e.InternalName)
	default:
		return "?"
	}
}
