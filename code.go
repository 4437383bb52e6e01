// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import (
	"github.com/classfile/classfile/internal/classfile/cfg"
	"github.com/classfile/classfile/internal/classfile/cursor"
	"github.com/classfile/classfile/internal/classfile/frame"
)

// instruction is the Writer's internal recording of one VisitXInsn call,
// kept in visit order until to_bytes (§4.4) lays out the method body and
// resolves labels against the BytecodeGraph.
type instruction struct {
	opcode   Opcode
	intOperand int
	varSlot    int
	typeName   string
	owner, name, descriptor string
	isInterface bool
	target  *Label
	targets []*Label
	tableMin, tableMax int
	lookupKeys         []int32
	dims               int
	ldcValue           interface{}
	bsmArgs            []interface{} // VisitInvokeDynamicInsn's static bootstrap arguments
	iincDelta          int

	label *Label // non-nil when this slot is actually a label marker, not an instruction
}

// tryCatchEntry mirrors VisitTryCatchBlock's arguments, retained until
// to_bytes can resolve each Label to a bytecode offset.
type tryCatchEntry struct {
	start, end, handler *Label
	catchType            string
}

// localVarEntry mirrors VisitLocalVariable.
type localVarEntry struct {
	name, descriptor, signature string
	start, end                  *Label
	index                       int
}

// lineEntry mirrors VisitLineNumber.
type lineEntry struct {
	line  int
	start *Label
}

// codeBuilder accumulates one method's Code attribute body across
// VisitCode..VisitMaxs/VisitEnd, the Writer-side counterpart to the
// cfg.Graph + frame.Engine pair that computes its derived data at
// serialization time (§4.4, §4.5, §4.6).
type codeBuilder struct {
	graph   *cfg.Graph
	instrs  []instruction
	tryCatch []tryCatchEntry
	locals   []localVarEntry
	lines    []lineEntry

	maxStack, maxLocals int
	maxsExplicit         bool

	// sourceBytes holds the verbatim Code attribute bytes when the fast
	// path (§4.4 "Method copy fast path") applies; non-nil means "emit
	// this range instead of replaying instrs".
	sourceBytes []byte

	// instrOffsets is filled in by methodBuilder.layout once label targets
	// have stabilized; parallel to instrs.
	instrOffsets []int

	// frames holds the StackMapTable entries computed by methodBuilder's
	// frame pass (§4.6), empty when the write strategy needs none.
	frames []frame.StackMapFrame
}

func newCodeBuilder() *codeBuilder {
	return &codeBuilder{graph: cfg.New()}
}

// descriptorParamWidths decodes a method descriptor's parameter section into
// one frame.Kind per parameter (Long/Double being the two-slot kinds), per
// §4.6 step 1 ("each
// descriptor character consumes exactly one local for int/float/ref and two
// for long/double").
func descriptorParamWidths(descriptor string) []frame.Kind {
	var kinds []frame.Kind
	i := 1 // skip '('
	for i < len(descriptor) && descriptor[i] != ')' {
		switch descriptor[i] {
		case 'B', 'C', 'I', 'S', 'Z':
			kinds = append(kinds, frame.Int)
			i++
		case 'F':
			kinds = append(kinds, frame.Float)
			i++
		case 'J':
			kinds = append(kinds, frame.Long)
			i++
		case 'D':
			kinds = append(kinds, frame.Double)
			i++
		case 'L':
			for i < len(descriptor) && descriptor[i] != ';' {
				i++
			}
			i++ // consume ';'
			kinds = append(kinds, frame.Object)
		case '[':
			for i < len(descriptor) && descriptor[i] == '[' {
				i++
			}
			if i < len(descriptor) && descriptor[i] == 'L' {
				for i < len(descriptor) && descriptor[i] != ';' {
					i++
				}
				i++
			} else {
				i++
			}
			kinds = append(kinds, frame.Object)
		default:
			i++
		}
	}
	return kinds
}

// writeU2Slice appends a u2 count followed by count u2 values, the common
// shape of Exceptions/InterfaceList/BootstrapMethods-argument tables.
func writeU2Slice(w *cursor.Writer, indices []uint16) {
	w.U2(uint16(len(indices)))
	for _, idx := range indices {
		w.U2(idx)
	}
}
