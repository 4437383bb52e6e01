// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import (
	"os"

	"github.com/classfile/classfile/internal/logutil"
)

// ParseOptions controls Parser.Accept (§4.3 "Options"), mirroring the
// teacher's pe.Options shape: a plain struct of booleans plus a Logger,
// zero value means "most permissive defaults".
type ParseOptions struct {
	// SkipCode omits parsing of Code attributes entirely; methods are
	// still visited but VisitCode/instruction callbacks never fire.
	SkipCode bool

	// SkipDebug omits SourceFile, LineNumberTable, LocalVariable[Type]Table,
	// and MethodParameters.
	SkipDebug bool

	// SkipFrames ignores StackMapTable attributes on input.
	SkipFrames bool

	// ExpandFrames is not consulted by Parser.Accept: the Parser does not
	// decode StackMapTable and never calls VisitFrame, so no frames are
	// delivered in either compressed or uncompressed form.
	ExpandFrames bool

	// ExpandVmExtensions is not consulted by Parser.Accept: the
	// writer-internal synthetic wide-branch opcodes are always replayed
	// through VisitJumpInsn unchanged, whatever this flag is set to.
	ExpandVmExtensions bool

	// MaxMajorVersion caps the accepted major version; zero means
	// DefaultMaxMajor, the same "zero means default" convention the
	// teacher uses for MaxCOFFSymbolsCount.
	MaxMajorVersion uint16

	// Logger receives Debug-level parse-decision traces and Warn-level
	// diagnostics; nil means a filtered stdout logger at LevelError, same
	// default as the teacher's File.logger.
	Logger logutil.Logger
}

func (o *ParseOptions) maxMajor() uint16 {
	if o == nil || o.MaxMajorVersion == 0 {
		return DefaultMaxMajor
	}
	return o.MaxMajorVersion
}

func (o *ParseOptions) helper() *logutil.Helper {
	if o != nil && o.Logger != nil {
		return logutil.NewHelper(o.Logger)
	}
	return logutil.NewHelper(logutil.NewFilter(logutil.NewStdLogger(os.Stdout), logutil.FilterLevel(logutil.LevelError)))
}

// WriteOptions controls Writer.Bytes (§4.4): the two frame/maxes
// computation toggles whose cross product with the class's major version
// picks one of the four strategies enumerated in §4.4.
type WriteOptions struct {
	ComputeMaxs   bool
	ComputeFrames bool

	// CommonSuperClass overrides the default "object root" oracle
	// (§4.6 "Common-supertype oracle"); nil means every merge resolves to
	// java/lang/Object.
	CommonSuperClass func(a, b string) string

	Logger logutil.Logger
}

func (o *WriteOptions) oracle() func(a, b string) string {
	if o != nil && o.CommonSuperClass != nil {
		return o.CommonSuperClass
	}
	return func(a, b string) string { return "java/lang/Object" }
}

func (o *WriteOptions) helper() *logutil.Helper {
	if o != nil && o.Logger != nil {
		return logutil.NewHelper(o.Logger)
	}
	return logutil.NewHelper(logutil.NewFilter(logutil.NewStdLogger(os.Stdout), logutil.FilterLevel(logutil.LevelError)))
}

// frameStrategy is the selection result from §4.4's strategy table.
type frameStrategy int

const (
	strategyNone frameStrategy = iota
	strategyMaxsOnly
	strategyInsertedOnly
	strategyAll
)

// selectFrameStrategy implements §4.4's "Strategy selection" table exactly:
// compute_frames always wins; compute_maxs alone branches on whether the
// major version requires stack-map frames (>= v51/1.7).
func selectFrameStrategy(opts *WriteOptions, major uint16) frameStrategy {
	if opts == nil {
		return strategyNone
	}
	if opts.ComputeFrames {
		return strategyAll
	}
	if opts.ComputeMaxs {
		if major >= MajorRequiresFrames {
			return strategyAll
		}
		return strategyMaxsOnly
	}
	return strategyNone
}
