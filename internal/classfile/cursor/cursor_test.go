// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cursor

import (
	"errors"
	"testing"
)

func TestReaderU2U4(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		u2   uint16
		u4   uint32
	}{
		{"zeroes", []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, 0, 0},
		{"cafebabe", []byte{0xCA, 0xFE, 0xBA, 0xBE}, 0xCAFE, 0xCAFEBABE},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(tt.buf)
			gotU2, err := r.U2()
			if err != nil {
				t.Fatalf("U2() failed: %v", err)
			}
			if gotU2 != tt.u2 {
				t.Errorf("U2() = 0x%04x, want 0x%04x", gotU2, tt.u2)
			}

			r2 := NewReader(tt.buf)
			gotU4, err := r2.U4()
			if err != nil {
				t.Fatalf("U4() failed: %v", err)
			}
			if gotU4 != tt.u4 {
				t.Errorf("U4() = 0x%08x, want 0x%08x", gotU4, tt.u4)
			}
		})
	}
}

func TestReaderOutOfBounds(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02})
	if _, err := r.U4(); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("U4() on 2-byte buffer: got %v, want ErrOutOfBounds", err)
	}
}

func TestReaderBytesOverflowGuard(t *testing.T) {
	r := &Reader{buf: make([]byte, 8), pos: 0xFFFFFFF8}
	if _, err := r.Bytes(16); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Bytes() with overflowing offset+size: got %v, want ErrOutOfBounds", err)
	}
}

func TestModifiedUTF8RoundTrip(t *testing.T) {
	tests := []string{
		"",
		"A",
		"hello world",
		" embedded-nul",
		"emoji \U0001F600 surrogate pair",
	}

	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			enc := EncodeModifiedUTF8(s)
			got, err := DecodeModifiedUTF8(enc)
			if err != nil {
				t.Fatalf("DecodeModifiedUTF8() failed: %v", err)
			}
			if got != s {
				t.Errorf("round trip = %q, want %q", got, s)
			}
		})
	}
}

func TestModifiedUTF8NulIsTwoBytes(t *testing.T) {
	enc := EncodeModifiedUTF8(" ")
	want := []byte{0xC0, 0x80}
	if len(enc) != len(want) || enc[0] != want[0] || enc[1] != want[1] {
		t.Errorf("EncodeModifiedUTF8(NUL) = % x, want % x", enc, want)
	}
}

func TestWriterPatchU2(t *testing.T) {
	w := NewWriter(16)
	w.U2(0).Raw([]byte("payload"))
	w.PatchU2(0, uint16(len("payload")))

	got := w.Bytes()
	gotLen := uint16(got[0])<<8 | uint16(got[1])
	if gotLen != uint16(len("payload")) {
		t.Errorf("patched length = %d, want %d", gotLen, len("payload"))
	}
}

func TestWriterS8RoundTrip(t *testing.T) {
	w := NewWriter(8)
	w.S8(-1)
	r := NewReader(w.Bytes())
	got, err := r.S8()
	if err != nil {
		t.Fatalf("S8() failed: %v", err)
	}
	if got != -1 {
		t.Errorf("S8() round trip = %d, want -1", got)
	}
}
