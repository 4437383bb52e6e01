// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import "errors"

// Sentinel errors for the five fatal kinds in §7. Each is wrapped with
// %w and call-site detail rather than returned bare, the same convention
// the teacher uses for its ErrDamagedImportTable/ErrOutsideBoundary family.
var (
	// ErrMalformed is returned for any structural violation of the input:
	// unknown tag, out-of-range index, truncated buffer, invalid attribute
	// length.
	ErrMalformed = errors.New("classfile: malformed input")

	// ErrUnsupportedVersion is returned when a classfile's major version
	// exceeds the configured maximum.
	ErrUnsupportedVersion = errors.New("classfile: unsupported major version")

	// ErrClassTooLarge is returned when the constant pool would exceed
	// 0xFFFF entries at emit time.
	ErrClassTooLarge = errors.New("classfile: constant pool too large")

	// ErrMethodTooLarge is returned when a single method's Code attribute
	// would exceed 2^16-1 bytecode bytes.
	ErrMethodTooLarge = errors.New("classfile: method code too large")

	// ErrInvalidInvocation is returned when a sink method is called out of
	// the order prescribed by §4.3, or with arguments violating documented
	// constraints (e.g. an unresolved label at visit_end).
	ErrInvalidInvocation = errors.New("classfile: invalid sink invocation")
)
