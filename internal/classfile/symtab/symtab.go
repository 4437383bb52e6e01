// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package symtab implements SymbolTable (§4.2): a deduplicating store of
// constant-pool entries and bootstrap-method entries, assigning dense,
// immutable indices the way the teacher's symbol table assigns indices to
// COFF symbols, generalized here with an actual dedup hash chain (§4.2's
// "Collisions are resolved by a hash chain keyed on (tag, payload-hash)").
package symtab

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/classfile/classfile/internal/classfile/wire"
)

// ErrClassTooLarge is raised when interning would push the constant pool
// count past 0xFFFF entries (§4.2 failure semantics).
var ErrClassTooLarge = errors.New("symtab: constant pool too large")

// MaxConstantPoolCount is the largest legal constant_pool_count (§4.4 step 2).
const MaxConstantPoolCount = 0xFFFF

// Entry is implemented by every constant-pool entry kind (§3's tagged sum,
// represented in Go as one struct per variant rather than an enum-with-
// payload union).
type Entry interface {
	Tag() wire.Tag
	key() string
}

type Utf8Entry struct{ Value string }

func (Utf8Entry) Tag() wire.Tag    { return wire.TagUtf8 }
func (e Utf8Entry) key() string    { return "u:" + e.Value }

type IntegerEntry struct{ Value int32 }

func (IntegerEntry) Tag() wire.Tag { return wire.TagInteger }
func (e IntegerEntry) key() string { return "i:" + strconv.FormatInt(int64(e.Value), 10) }

type FloatEntry struct{ Value float32 }

func (FloatEntry) Tag() wire.Tag   { return wire.TagFloat }
func (e FloatEntry) key() string   { return "f:" + strconv.FormatUint(uint64(math.Float32bits(e.Value)), 10) }

type LongEntry struct{ Value int64 }

func (LongEntry) Tag() wire.Tag    { return wire.TagLong }
func (e LongEntry) key() string    { return "l:" + strconv.FormatInt(e.Value, 10) }

type DoubleEntry struct{ Value float64 }

func (DoubleEntry) Tag() wire.Tag  { return wire.TagDouble }
func (e DoubleEntry) key() string  { return "d:" + strconv.FormatUint(math.Float64bits(e.Value), 10) }

type ClassEntry struct{ NameIndex uint16 }

func (ClassEntry) Tag() wire.Tag   { return wire.TagClass }
func (e ClassEntry) key() string   { return fmt.Sprintf("c:%d", e.NameIndex) }

type StringEntry struct{ Utf8Index uint16 }

func (StringEntry) Tag() wire.Tag  { return wire.TagString }
func (e StringEntry) key() string  { return fmt.Sprintf("s:%d", e.Utf8Index) }

type NameAndTypeEntry struct{ NameIndex, DescriptorIndex uint16 }

func (NameAndTypeEntry) Tag() wire.Tag { return wire.TagNameAndType }
func (e NameAndTypeEntry) key() string { return fmt.Sprintf("nt:%d:%d", e.NameIndex, e.DescriptorIndex) }

// RefEntry covers Fieldref, Methodref and InterfaceMethodref, which share a
// shape and differ only by tag (§3).
type RefEntry struct {
	Kind             wire.Tag
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (e RefEntry) Tag() wire.Tag { return e.Kind }
func (e RefEntry) key() string {
	return fmt.Sprintf("r:%d:%d:%d", e.Kind, e.ClassIndex, e.NameAndTypeIndex)
}

// MethodHandleEntry's equality incorporates IsInterface per §4.2's key
// invariant: interface vs class refs share name+desc+owner but differ in
// the bit distinguishing invokeinterface-backed handles.
type MethodHandleEntry struct {
	Kind        wire.ReferenceKind
	RefIndex    uint16
	IsInterface bool
}

func (MethodHandleEntry) Tag() wire.Tag { return wire.TagMethodHandle }
func (e MethodHandleEntry) key() string {
	return fmt.Sprintf("mh:%d:%d:%t", e.Kind, e.RefIndex, e.IsInterface)
}

type MethodTypeEntry struct{ DescriptorIndex uint16 }

func (MethodTypeEntry) Tag() wire.Tag { return wire.TagMethodType }
func (e MethodTypeEntry) key() string { return fmt.Sprintf("mt:%d", e.DescriptorIndex) }

// DynamicEntry covers both Dynamic and InvokeDynamic, distinguished by Kind.
type DynamicEntry struct {
	Kind             wire.Tag // TagDynamic or TagInvokeDynamic
	BootstrapIndex   uint16
	NameAndTypeIndex uint16
}

func (e DynamicEntry) Tag() wire.Tag { return e.Kind }
func (e DynamicEntry) key() string {
	return fmt.Sprintf("dyn:%d:%d:%d", e.Kind, e.BootstrapIndex, e.NameAndTypeIndex)
}

type ModuleEntry struct{ NameIndex uint16 }

func (ModuleEntry) Tag() wire.Tag { return wire.TagModule }
func (e ModuleEntry) key() string { return fmt.Sprintf("mod:%d", e.NameIndex) }

type PackageEntry struct{ NameIndex uint16 }

func (PackageEntry) Tag() wire.Tag { return wire.TagPackage }
func (e PackageEntry) key() string { return fmt.Sprintf("pkg:%d", e.NameIndex) }

// BootstrapMethod is one entry of the bootstrap-methods table (§3).
type BootstrapMethod struct {
	Handle uint16   // constant pool index of a MethodHandle entry
	Args   []uint16 // constant pool indices of static arguments
}

// SymbolTable is the deduplicating constant-pool + bootstrap-methods +
// type-table store described in §4.2. Index 0 is reserved ("absent");
// entries[1:] hold the live pool, with the unusable slot that follows every
// Long/Double occupying its own nil entry.
type SymbolTable struct {
	entries []Entry // entries[0] is unused padding so indices line up 1:1.
	byKey   map[string]uint16

	bootstraps      []BootstrapMethod
	bootstrapByKey  map[string]uint16

	Types *TypeTable
}

// New returns an empty SymbolTable.
func New() *SymbolTable {
	return &SymbolTable{
		entries:        []Entry{nil}, // index 0 placeholder
		byKey:          make(map[string]uint16),
		bootstrapByKey: make(map[string]uint16),
		Types:          NewTypeTable(),
	}
}

// Count returns the constant_pool_count value (highest index + 1).
func (t *SymbolTable) Count() int { return len(t.entries) }

// Entry returns the entry at index, or nil if index is 0, out of range, or
// the unusable slot following a Long/Double.
func (t *SymbolTable) Entry(index uint16) Entry {
	if int(index) >= len(t.entries) {
		return nil
	}
	return t.entries[index]
}

// Entries returns every live entry, including index 0's nil placeholder, in
// wire order — used by the Writer to serialize the pool.
func (t *SymbolTable) Entries() []Entry { return t.entries }

// width reports how many pool slots e occupies: 2 for Long/Double, 1
// otherwise (§3: "Long and Double occupy two consecutive indices").
func width(e Entry) int {
	switch e.(type) {
	case LongEntry, DoubleEntry:
		return 2
	default:
		return 1
	}
}

// intern returns e's index, appending a new entry (and, for Long/Double, a
// padding slot) if no structurally equal entry already exists.
func (t *SymbolTable) intern(e Entry) (uint16, error) {
	k := e.key()
	if idx, ok := t.byKey[k]; ok {
		return idx, nil
	}
	idx := uint16(len(t.entries))
	if int(idx)+width(e) > MaxConstantPoolCount {
		return 0, ErrClassTooLarge
	}
	t.entries = append(t.entries, e)
	if width(e) == 2 {
		t.entries = append(t.entries, nil) // second index is unusable
	}
	t.byKey[k] = idx
	return idx, nil
}

func (t *SymbolTable) Utf8(s string) (uint16, error) { return t.intern(Utf8Entry{s}) }
func (t *SymbolTable) Int(v int32) (uint16, error)    { return t.intern(IntegerEntry{v}) }
func (t *SymbolTable) Float(v float32) (uint16, error) { return t.intern(FloatEntry{v}) }
func (t *SymbolTable) Long(v int64) (uint16, error)   { return t.intern(LongEntry{v}) }
func (t *SymbolTable) Double(v float64) (uint16, error) { return t.intern(DoubleEntry{v}) }

// Class interns a Class entry, first interning its internal name as Utf8.
func (t *SymbolTable) Class(internalName string) (uint16, error) {
	nameIdx, err := t.Utf8(internalName)
	if err != nil {
		return 0, err
	}
	return t.intern(ClassEntry{nameIdx})
}

// String interns a String entry referencing a Utf8 value.
func (t *SymbolTable) String(s string) (uint16, error) {
	u, err := t.Utf8(s)
	if err != nil {
		return 0, err
	}
	return t.intern(StringEntry{u})
}

// NameAndType interns a NameAndType entry.
func (t *SymbolTable) NameAndType(name, descriptor string) (uint16, error) {
	n, err := t.Utf8(name)
	if err != nil {
		return 0, err
	}
	d, err := t.Utf8(descriptor)
	if err != nil {
		return 0, err
	}
	return t.intern(NameAndTypeEntry{n, d})
}

func (t *SymbolTable) ref(kind wire.Tag, owner, name, descriptor string) (uint16, error) {
	c, err := t.Class(owner)
	if err != nil {
		return 0, err
	}
	nt, err := t.NameAndType(name, descriptor)
	if err != nil {
		return 0, err
	}
	return t.intern(RefEntry{kind, c, nt})
}

func (t *SymbolTable) Fieldref(owner, name, descriptor string) (uint16, error) {
	return t.ref(wire.TagFieldref, owner, name, descriptor)
}

func (t *SymbolTable) Methodref(owner, name, descriptor string) (uint16, error) {
	return t.ref(wire.TagMethodref, owner, name, descriptor)
}

func (t *SymbolTable) InterfaceMethodref(owner, name, descriptor string) (uint16, error) {
	return t.ref(wire.TagInterfaceMethodref, owner, name, descriptor)
}

// MethodHandle interns a MethodHandle entry. kind selects which reference
// table (Fieldref/Methodref/InterfaceMethodref) backs the handle per the
// JVM Spec's table mapping reference_kind to the target's required tag;
// isInterface forces InterfaceMethodref for the invokeinterface-style kinds.
func (t *SymbolTable) MethodHandle(kind wire.ReferenceKind, owner, name, descriptor string, isInterface bool) (uint16, error) {
	var refIdx uint16
	var err error
	switch {
	case isInterface:
		refIdx, err = t.InterfaceMethodref(owner, name, descriptor)
	case kind == wire.RefGetField || kind == wire.RefGetStatic || kind == wire.RefPutField || kind == wire.RefPutStatic:
		refIdx, err = t.Fieldref(owner, name, descriptor)
	default:
		refIdx, err = t.Methodref(owner, name, descriptor)
	}
	if err != nil {
		return 0, err
	}
	return t.intern(MethodHandleEntry{kind, refIdx, isInterface})
}

func (t *SymbolTable) MethodType(descriptor string) (uint16, error) {
	d, err := t.Utf8(descriptor)
	if err != nil {
		return 0, err
	}
	return t.intern(MethodTypeEntry{d})
}

func (t *SymbolTable) Module(name string) (uint16, error) {
	n, err := t.Utf8(name)
	if err != nil {
		return 0, err
	}
	return t.intern(ModuleEntry{n})
}

func (t *SymbolTable) Package(name string) (uint16, error) {
	n, err := t.Utf8(name)
	if err != nil {
		return 0, err
	}
	return t.intern(PackageEntry{n})
}

func (t *SymbolTable) dynamic(kind wire.Tag, name, descriptor string, bsmHandle uint16, bsmArgs []uint16) (uint16, error) {
	bsmIdx, err := t.internBootstrap(bsmHandle, bsmArgs)
	if err != nil {
		return 0, err
	}
	nt, err := t.NameAndType(name, descriptor)
	if err != nil {
		return 0, err
	}
	return t.intern(DynamicEntry{kind, bsmIdx, nt})
}

// Dynamic interns a Dynamic (condy) entry plus its bootstrap-method table
// slot.
func (t *SymbolTable) Dynamic(name, descriptor string, bsmHandle uint16, bsmArgs []uint16) (uint16, error) {
	return t.dynamic(wire.TagDynamic, name, descriptor, bsmHandle, bsmArgs)
}

// InvokeDynamic interns an InvokeDynamic entry plus its bootstrap-method
// table slot.
func (t *SymbolTable) InvokeDynamic(name, descriptor string, bsmHandle uint16, bsmArgs []uint16) (uint16, error) {
	return t.dynamic(wire.TagInvokeDynamic, name, descriptor, bsmHandle, bsmArgs)
}

// internBootstrap appends a bootstrap-method entry only if no earlier entry
// serializes identically (§4.2: "byte-by-byte over the already-emitted
// region, after first interning constituent arguments").
func (t *SymbolTable) internBootstrap(handle uint16, args []uint16) (uint16, error) {
	key := fmt.Sprintf("%d:%v", handle, args)
	if idx, ok := t.bootstrapByKey[key]; ok {
		return idx, nil
	}
	idx := uint16(len(t.bootstraps))
	argsCopy := append([]uint16(nil), args...)
	t.bootstraps = append(t.bootstraps, BootstrapMethod{Handle: handle, Args: argsCopy})
	t.bootstrapByKey[key] = idx
	return idx, nil
}

// BootstrapMethods returns the ordered bootstrap-method table for
// serialization into the BootstrapMethods attribute.
func (t *SymbolTable) BootstrapMethods() []BootstrapMethod { return t.bootstraps }

// AddRawEntry appends an already-decoded entry verbatim (used by the Parser
// when loading a classfile's existing constant pool, preserving original
// ordering/indices exactly rather than re-interning through the dedup path —
// the §8 "copy constant pool verbatim" initializer).
func (t *SymbolTable) AddRawEntry(e Entry) {
	idx := uint16(len(t.entries))
	t.entries = append(t.entries, e)
	if e != nil {
		t.byKey[e.key()] = idx
	}
	if e != nil && width(e) == 2 {
		t.entries = append(t.entries, nil)
	}
}

// AddRawBootstrap appends a bootstrap-method entry verbatim, preserving the
// source classfile's BootstrapMethods table order exactly.
func (t *SymbolTable) AddRawBootstrap(bm BootstrapMethod) {
	idx := uint16(len(t.bootstraps))
	t.bootstraps = append(t.bootstraps, bm)
	key := fmt.Sprintf("%d:%v", bm.Handle, bm.Args)
	t.bootstrapByKey[key] = idx
}
