// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import (
	"os"

	mmap "github.com/edsrzf/mmap-go"
)

// MappedParser wraps a Parser backed by a memory-mapped file, the classfile
// counterpart to the teacher's File.data/f pair: NewFromFile mirrors pe.New's
// "open, mmap, hand the bytes to the parser" sequence instead of reading the
// whole file into a heap-allocated []byte first.
type MappedParser struct {
	*Parser
	data mmap.MMap
	f    *os.File
}

// NewFromFile memory-maps path read-only and constructs a Parser over it.
// The returned MappedParser must be Close'd once the caller is done reading
// events from it (and from any ClassSink it drove, since VisitAttribute's
// OpaqueAttribute.Data may alias the mapping — callers needing the data to
// outlive Close should copy it).
func NewFromFile(path string, opts *ParseOptions) (*MappedParser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	p, err := NewParser(data, opts)
	if err != nil {
		data.Unmap()
		f.Close()
		return nil, err
	}
	return &MappedParser{Parser: p, data: data, f: f}, nil
}

// Close unmaps the backing file and closes its descriptor, mirroring
// File.Close's "unmap then close, report the close error" order.
func (m *MappedParser) Close() error {
	if m.data != nil {
		_ = m.data.Unmap()
	}
	if m.f != nil {
		return m.f.Close()
	}
	return nil
}
