// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package symtab

import (
	"testing"

	"github.com/classfile/classfile/internal/classfile/wire"
)

func TestInternDeterminism(t *testing.T) {
	st := New()

	a, err := st.Utf8("hello")
	if err != nil {
		t.Fatalf("Utf8() failed: %v", err)
	}
	b, err := st.Utf8("hello")
	if err != nil {
		t.Fatalf("Utf8() failed: %v", err)
	}
	if a != b {
		t.Errorf("intern(x); intern(x) = %d, %d, want equal indices", a, b)
	}

	c, err := st.Utf8("world")
	if err != nil {
		t.Fatalf("Utf8() failed: %v", err)
	}
	if c == a {
		t.Errorf("distinct values interned to the same index %d", a)
	}
}

func TestLongDoubleOccupyTwoIndices(t *testing.T) {
	st := New()
	_, _ = st.Utf8("pad") // index 1
	longIdx, err := st.Long(42)
	if err != nil {
		t.Fatalf("Long() failed: %v", err)
	}
	nextIdx, err := st.Utf8("after")
	if err != nil {
		t.Fatalf("Utf8() failed: %v", err)
	}
	if nextIdx != longIdx+2 {
		t.Errorf("entry after Long interned at %d, want %d (Long occupies two slots)", nextIdx, longIdx+2)
	}
	if st.Entry(longIdx+1) != nil {
		t.Errorf("slot following Long at %d should be unusable (nil), got %v", longIdx+1, st.Entry(longIdx+1))
	}
}

func TestMethodHandleEqualityIncorporatesIsInterface(t *testing.T) {
	st := New()
	classIdx, err := st.MethodHandle(wire.RefInvokeSpecial, "pkg/Owner", "m", "()V", false)
	if err != nil {
		t.Fatalf("MethodHandle() failed: %v", err)
	}
	ifaceIdx, err := st.MethodHandle(wire.RefInvokeSpecial, "pkg/Owner", "m", "()V", true)
	if err != nil {
		t.Fatalf("MethodHandle() failed: %v", err)
	}
	if classIdx == ifaceIdx {
		t.Errorf("class-ref and interface-ref method handles interned to the same index %d", classIdx)
	}
}

func TestInternBootstrapDedup(t *testing.T) {
	st := New()
	handle, err := st.MethodHandle(wire.RefInvokeStatic, "pkg/Bsm", "bootstrap", "()V", false)
	if err != nil {
		t.Fatalf("MethodHandle() failed: %v", err)
	}
	a, err := st.InvokeDynamic("call", "()V", handle, nil)
	if err != nil {
		t.Fatalf("InvokeDynamic() failed: %v", err)
	}
	b, err := st.InvokeDynamic("call", "()V", handle, nil)
	if err != nil {
		t.Fatalf("InvokeDynamic() failed: %v", err)
	}
	if a != b {
		t.Errorf("two InvokeDynamic entries with identical bootstrap got different indices: %d, %d", a, b)
	}
	if len(st.BootstrapMethods()) != 1 {
		t.Errorf("BootstrapMethods() has %d entries, want 1 (deduplicated)", len(st.BootstrapMethods()))
	}
}

func TestTypeTableMergeIsMemoizedAndCommutative(t *testing.T) {
	tt := NewTypeTable()
	a := tt.AddObject("pkg/A")
	b := tt.AddObject("pkg/B")

	calls := 0
	oracle := func(x, y string) string {
		calls++
		return "pkg/Common"
	}

	m1 := tt.Merge(a, b, oracle)
	m2 := tt.Merge(b, a, oracle)
	if m1 != m2 {
		t.Errorf("Merge(a,b) = %d, Merge(b,a) = %d, want equal (commutative)", m1, m2)
	}
	if calls != 1 {
		t.Errorf("oracle invoked %d times, want 1 (memoized)", calls)
	}
	if tt.InternalNameOf(m1) != "pkg/Common" {
		t.Errorf("InternalNameOf(merged) = %q, want %q", tt.InternalNameOf(m1), "pkg/Common")
	}
}

func TestClassTooLarge(t *testing.T) {
	st := New()
	var err error
	for i := 0; i < MaxConstantPoolCount; i++ {
		_, err = st.Utf8(string(rune(0x10000+i)) + "-unique")
		if err != nil {
			break
		}
	}
	if err == nil {
		t.Fatalf("expected ErrClassTooLarge after exceeding %d entries", MaxConstantPoolCount)
	}
}
