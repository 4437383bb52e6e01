// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import (
	"fmt"
	"math"

	"github.com/classfile/classfile/internal/classfile/cursor"
	"github.com/classfile/classfile/internal/classfile/symtab"
	"github.com/classfile/classfile/internal/classfile/wire"
	"github.com/classfile/classfile/internal/logutil"
)

// Parser interprets a complete classfile buffer and emits structured events
// to a ClassSink (§4.3). Grounded on the teacher's File.Parse()'s "one
// ordered sequence of sub-parses, each allowed to fail independently"
// shape, generalized into the sink push-model the spec calls for.
type Parser struct {
	data      []byte
	r         *cursor.Reader
	st        *symtab.SymbolTable
	cpOffsets []uint32 // cpOffsets[i] is entry i's start offset in the buffer, precomputed per §4.3
	opts      *ParseOptions
	logger    *logutil.Helper
	diag      *diagnosticSink

	header ClassHeader
}

// NewParser constructs a Parser over data, which must remain unmodified for
// the Parser's lifetime (the teacher's same mmap-or-read-once contract).
func NewParser(data []byte, opts *ParseOptions) (*Parser, error) {
	p := &Parser{
		data:   data,
		r:      cursor.NewReader(data),
		st:     symtab.New(),
		opts:   opts,
		logger: opts.helper(),
	}
	p.diag = newDiagnosticSink(p.logger)
	if err := p.readHeaderAndPool(); err != nil {
		return nil, err
	}
	return p, nil
}

// Diagnostics returns every non-fatal OpaqueAttributeMismatch observation
// recorded during the parse.
func (p *Parser) Diagnostics() []Diagnostic { return p.diag.Diagnostics() }

// SymbolTable exposes the constant pool read from the input, e.g. for a
// Writer constructed in "copy constant pool verbatim" mode (§8).
func (p *Parser) SymbolTable() *symtab.SymbolTable { return p.st }

// Header returns the fixed-shape class header read during construction.
func (p *Parser) Header() ClassHeader { return p.header }

func (p *Parser) readHeaderAndPool() error {
	magic, err := p.r.U4()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	minor, err := p.r.U2()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	major, err := p.r.U2()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := checkMagicAndVersion(magic, major, p.opts.maxMajor()); err != nil {
		return err
	}
	p.header.Minor, p.header.Major = minor, major

	count, err := p.r.U2()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	p.cpOffsets = make([]uint32, count)
	// symtab.New() already seeds entries[0] as the reserved placeholder, so
	// the loop below starts appending directly at index 1.

	for i := uint16(1); i < count; i++ {
		p.cpOffsets[i] = p.r.Pos()
		tagByte, err := p.r.U1()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		width, err := p.readPoolEntry(wire.Tag(tagByte))
		if err != nil {
			return err
		}
		if width == 2 {
			i++ // Long/Double consume the following index as padding
		}
	}
	return nil
}

// readPoolEntry decodes one constant-pool entry (tag byte already consumed)
// and appends it verbatim via AddRawEntry, preserving the source's own
// indices exactly as §8's round-trip property requires. Returns the entry's
// width in pool slots (2 for Long/Double, 1 otherwise).
func (p *Parser) readPoolEntry(tag wire.Tag) (int, error) {
	switch tag {
	case wire.TagUtf8:
		length, err := p.r.U2()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		s, err := p.r.ModifiedUTF8(length)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		p.st.AddRawEntry(symtab.Utf8Entry{Value: s})
		return 1, nil
	case wire.TagInteger:
		v, err := p.r.S4()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		p.st.AddRawEntry(symtab.IntegerEntry{Value: v})
		return 1, nil
	case wire.TagFloat:
		v, err := p.r.U4()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		p.st.AddRawEntry(symtab.FloatEntry{Value: math.Float32frombits(v)})
		return 1, nil
	case wire.TagLong:
		v, err := p.r.S8()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		p.st.AddRawEntry(symtab.LongEntry{Value: v})
		return 2, nil
	case wire.TagDouble:
		v, err := p.r.S8()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		p.st.AddRawEntry(symtab.DoubleEntry{Value: math.Float64frombits(uint64(v))})
		return 2, nil
	case wire.TagClass:
		idx, err := p.r.U2()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		p.st.AddRawEntry(symtab.ClassEntry{NameIndex: idx})
		return 1, nil
	case wire.TagString:
		idx, err := p.r.U2()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		p.st.AddRawEntry(symtab.StringEntry{Utf8Index: idx})
		return 1, nil
	case wire.TagFieldref, wire.TagMethodref, wire.TagInterfaceMethodref:
		c, err := p.r.U2()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		nt, err := p.r.U2()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		p.st.AddRawEntry(symtab.RefEntry{Kind: tag, ClassIndex: c, NameAndTypeIndex: nt})
		return 1, nil
	case wire.TagNameAndType:
		n, err := p.r.U2()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		d, err := p.r.U2()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		p.st.AddRawEntry(symtab.NameAndTypeEntry{NameIndex: n, DescriptorIndex: d})
		return 1, nil
	case wire.TagMethodHandle:
		kind, err := p.r.U1()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		ref, err := p.r.U2()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		isInterface := wire.ReferenceKind(kind) == wire.RefInvokeInterface
		p.st.AddRawEntry(symtab.MethodHandleEntry{Kind: wire.ReferenceKind(kind), RefIndex: ref, IsInterface: isInterface})
		return 1, nil
	case wire.TagMethodType:
		d, err := p.r.U2()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		p.st.AddRawEntry(symtab.MethodTypeEntry{DescriptorIndex: d})
		return 1, nil
	case wire.TagDynamic, wire.TagInvokeDynamic:
		bsm, err := p.r.U2()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		nt, err := p.r.U2()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		p.st.AddRawEntry(symtab.DynamicEntry{Kind: tag, BootstrapIndex: bsm, NameAndTypeIndex: nt})
		return 1, nil
	case wire.TagModule:
		n, err := p.r.U2()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		p.st.AddRawEntry(symtab.ModuleEntry{NameIndex: n})
		return 1, nil
	case wire.TagPackage:
		n, err := p.r.U2()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		p.st.AddRawEntry(symtab.PackageEntry{NameIndex: n})
		return 1, nil
	default:
		return 0, fmt.Errorf("%w: unknown constant pool tag %d", ErrMalformed, tag)
	}
}

// utf8At resolves a Utf8 constant pool index to its string value, raising
// Malformed if the index does not name a Utf8 entry.
func (p *Parser) utf8At(index uint16) (string, error) {
	if index == 0 {
		return "", nil
	}
	e, ok := p.st.Entry(index).(symtab.Utf8Entry)
	if !ok {
		return "", fmt.Errorf("%w: index %d is not Utf8", ErrMalformed, index)
	}
	return e.Value, nil
}

// classNameAt resolves a Class constant pool index to its internal name.
func (p *Parser) classNameAt(index uint16) (string, error) {
	if index == 0 {
		return "", nil
	}
	c, ok := p.st.Entry(index).(symtab.ClassEntry)
	if !ok {
		return "", fmt.Errorf("%w: index %d is not Class", ErrMalformed, index)
	}
	return p.utf8At(c.NameIndex)
}

// Accept drives the full event stream to sink in wire order: VisitHeader,
// then every VisitField, then every VisitMethod, then one event per class
// attribute (VisitSource, VisitNestHost, VisitNestMember,
// VisitPermittedSubclass or VisitAttribute) in the order the attributes
// appear, then VisitEnd. Class-attribute events therefore arrive after the
// fields and methods, not in the order listed on ClassSink.
func (p *Parser) Accept(sink ClassSink, codecs *CodecRegistry) error {
	if codecs == nil {
		codecs = DefaultCodecs()
	}

	access, err := p.r.U2()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	thisIdx, err := p.r.U2()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	superIdx, err := p.r.U2()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	thisName, err := p.classNameAt(thisIdx)
	if err != nil {
		return err
	}
	superName, err := p.classNameAt(superIdx)
	if err != nil {
		return err
	}

	ifaceCount, err := p.r.U2()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	interfaces := make([]string, ifaceCount)
	ifaceIndices := make([]uint16, ifaceCount)
	for i := range interfaces {
		idx, err := p.r.U2()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		name, err := p.classNameAt(idx)
		if err != nil {
			return err
		}
		interfaces[i] = name
		ifaceIndices[i] = idx
	}

	p.header.AccessFlags = AccessFlags(access)
	p.header.ThisClass = thisIdx
	p.header.SuperClass = superIdx
	p.header.Interfaces = ifaceIndices

	sink.VisitHeader(p.header.Major, p.header.Minor, AccessFlags(access), thisName, "", superName, interfaces)
	p.logger.Debugw("msg", "visited class header", "this", thisName, "major", p.header.Major)

	// BootstrapMethods is a class-level attribute stored after every field
	// and method in the wire format, but invokedynamic call sites inside
	// method bodies need it resolved before their own replay. A lookahead
	// scan over an independent cursor (fields/methods skipped structurally
	// by their own length prefixes) locates and loads it first, mirroring
	// ASM's own two-pass handling of the same forward reference.
	if err := p.prescanBootstrapMethods(p.r.Pos()); err != nil {
		return err
	}

	fieldCount, err := p.r.U2()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for i := uint16(0); i < fieldCount; i++ {
		if err := p.acceptField(sink, codecs); err != nil {
			return err
		}
	}

	methodCount, err := p.r.U2()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for i := uint16(0); i < methodCount; i++ {
		if err := p.acceptMethod(sink, codecs); err != nil {
			return err
		}
	}

	attrCount, err := p.r.U2()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for i := uint16(0); i < attrCount; i++ {
		if err := p.acceptClassAttribute(sink, codecs); err != nil {
			return err
		}
	}

	sink.VisitEnd()
	return nil
}

// skipMember advances sc past one field_info/method_info structure (they
// share a layout: access/name/descriptor followed by a length-prefixed
// attribute table) without interpreting any of its attributes.
func skipMember(sc *cursor.Reader) error {
	if _, err := sc.U2(); err != nil {
		return err
	}
	if _, err := sc.U2(); err != nil {
		return err
	}
	if _, err := sc.U2(); err != nil {
		return err
	}
	attrCount, err := sc.U2()
	if err != nil {
		return err
	}
	for i := uint16(0); i < attrCount; i++ {
		if _, err := sc.U2(); err != nil {
			return err
		}
		length, err := sc.U4()
		if err != nil {
			return err
		}
		if err := sc.Skip(length); err != nil {
			return err
		}
	}
	return nil
}

// prescanBootstrapMethods locates the BootstrapMethods class attribute (if
// any) using an independent cursor seeded at start — the position right
// after the interfaces table — and loads it into the symbol table ahead of
// the main field/method walk. See the call site in Accept for why this
// lookahead is necessary.
func (p *Parser) prescanBootstrapMethods(start uint32) error {
	sc := cursor.NewReader(p.data)
	sc.Seek(start)

	fieldCount, err := sc.U2()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for i := uint16(0); i < fieldCount; i++ {
		if err := skipMember(sc); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	methodCount, err := sc.U2()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for i := uint16(0); i < methodCount; i++ {
		if err := skipMember(sc); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	attrCount, err := sc.U2()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for i := uint16(0); i < attrCount; i++ {
		nameIdx, err := sc.U2()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		length, err := sc.U4()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		name, err := p.utf8At(nameIdx)
		if err != nil {
			return err
		}
		if name != AttrBootstrapMethods {
			if err := sc.Skip(length); err != nil {
				return fmt.Errorf("%w: %v", ErrMalformed, err)
			}
			continue
		}
		payload, err := sc.Bytes(length)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		sub := cursor.NewReader(payload)
		n, _ := sub.U2()
		for j := uint16(0); j < n; j++ {
			handle, _ := sub.U2()
			argc, _ := sub.U2()
			args := make([]uint16, argc)
			for k := range args {
				args[k], _ = sub.U2()
			}
			p.st.AddRawBootstrap(symtab.BootstrapMethod{Handle: handle, Args: args})
		}
		return nil
	}
	return nil
}

func (p *Parser) acceptField(sink ClassSink, codecs *CodecRegistry) error {
	access, err := p.r.U2()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	nameIdx, err := p.r.U2()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	descIdx, err := p.r.U2()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	name, err := p.utf8At(nameIdx)
	if err != nil {
		return err
	}
	desc, err := p.utf8At(descIdx)
	if err != nil {
		return err
	}

	var constVal interface{}
	var signature string
	attrCount, err := p.r.U2()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	type rawAttr struct {
		name string
		data []byte
	}
	var pending []rawAttr
	for i := uint16(0); i < attrCount; i++ {
		attrNameIdx, err := p.r.U2()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		attrName, err := p.utf8At(attrNameIdx)
		if err != nil {
			return err
		}
		length, err := p.r.U4()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		payload, err := p.r.Bytes(length)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		switch attrName {
		case AttrConstantValue:
			sub := cursor.NewReader(payload)
			idx, _ := sub.U2()
			constVal = p.resolveConstant(idx)
		case AttrSignature:
			sub := cursor.NewReader(payload)
			idx, _ := sub.U2()
			signature, _ = p.utf8At(idx)
		default:
			pending = append(pending, rawAttr{attrName, payload})
		}
	}

	fs := sink.VisitField(AccessFlags(access), name, desc, signature, constVal)
	if fs != nil {
		for _, a := range pending {
			fs.VisitAttribute(OpaqueAttribute{Name: a.name, Data: a.data})
		}
		fs.VisitEnd()
	}
	return nil
}

// resolveConstant returns the Go value of a ConstantValue-eligible pool
// entry (Integer/Float/Long/Double/String), or nil if index is out of
// range for that purpose.
func (p *Parser) resolveConstant(index uint16) interface{} {
	switch e := p.st.Entry(index).(type) {
	case symtab.IntegerEntry:
		return e.Value
	case symtab.FloatEntry:
		return e.Value
	case symtab.LongEntry:
		return e.Value
	case symtab.DoubleEntry:
		return e.Value
	case symtab.StringEntry:
		s, _ := p.utf8At(e.Utf8Index)
		return s
	}
	return nil
}

func (p *Parser) acceptMethod(sink ClassSink, codecs *CodecRegistry) error {
	access, err := p.r.U2()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	nameIdx, err := p.r.U2()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	descIdx, err := p.r.U2()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	name, err := p.utf8At(nameIdx)
	if err != nil {
		return err
	}
	desc, err := p.utf8At(descIdx)
	if err != nil {
		return err
	}

	var signature string
	var exceptions []string
	attrCount, err := p.r.U2()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	type rawAttr struct {
		name string
		data []byte
	}
	var pending []rawAttr
	var code *parsedCode
	for i := uint16(0); i < attrCount; i++ {
		attrNameIdx, err := p.r.U2()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		attrName, err := p.utf8At(attrNameIdx)
		if err != nil {
			return err
		}
		length, err := p.r.U4()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		payload, err := p.r.Bytes(length)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		switch attrName {
		case AttrCode:
			if p.opts != nil && p.opts.SkipCode {
				continue
			}
			c, err := p.parseCodeAttribute(payload)
			if err != nil {
				return err
			}
			code = c
		case AttrSignature:
			sub := cursor.NewReader(payload)
			idx, _ := sub.U2()
			signature, _ = p.utf8At(idx)
		case AttrExceptions:
			sub := cursor.NewReader(payload)
			n, _ := sub.U2()
			for j := uint16(0); j < n; j++ {
				idx, _ := sub.U2()
				cn, _ := p.classNameAt(idx)
				exceptions = append(exceptions, cn)
			}
		default:
			if p.opts != nil && p.opts.SkipDebug && attrName == AttrMethodParameters {
				continue
			}
			pending = append(pending, rawAttr{attrName, payload})
		}
	}

	ms := sink.VisitMethod(AccessFlags(access), name, desc, signature, exceptions)
	if ms == nil {
		return nil
	}
	if code != nil {
		ms.VisitCode()
		p.replayCode(ms, code.maxStack, code.maxLocals, code.code, code.tryCatch)
		if rc, ok := ms.(rawCodeSink); ok {
			rc.VisitCodeSource(code.raw)
		}
		ms.VisitMaxs(code.maxStack, code.maxLocals)
	}
	for _, a := range pending {
		ms.VisitAttribute(OpaqueAttribute{Name: a.name, Data: a.data})
	}
	ms.VisitEnd()
	return nil
}

type rawTryCatch struct {
	start, end, handler uint16
	catchTypeIdx        uint16
}

type parsedCode struct {
	maxStack, maxLocals int
	code                 []byte
	tryCatch             []rawTryCatch

	// raw is the verbatim Code attribute body (max_stack through the
	// closing attributes table) as read off the wire, kept so a sink that
	// also implements rawCodeSink can substitute it wholesale instead of
	// re-encoding the replayed instruction stream (§4.4 "method copy").
	raw []byte
}

// rawCodeSink is implemented by MethodSink destinations that can accept the
// source classfile's Code attribute bytes verbatim in place of a from-scratch
// re-encode — currently methodBuilder (the Writer) and classfile.go's
// methodRecorder, which forwards to whatever it is eventually replayed into.
// acceptMethod always replays the structural VisitXInsn stream first so any
// sink without this capability still sees a complete method; a sink that
// implements it additionally receives the exact source bytes and may prefer
// them wholesale.
type rawCodeSink interface {
	VisitCodeSource(raw []byte)
}

func (p *Parser) parseCodeAttribute(payload []byte) (*parsedCode, error) {
	sub := cursor.NewReader(payload)
	maxStack, err := sub.U2()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	maxLocals, err := sub.U2()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	codeLen, err := sub.U4()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	code, err := sub.Bytes(codeLen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	excCount, err := sub.U2()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	tryCatch := make([]rawTryCatch, excCount)
	for i := range tryCatch {
		start, _ := sub.U2()
		end, _ := sub.U2()
		handler, _ := sub.U2()
		catchType, _ := sub.U2()
		tryCatch[i] = rawTryCatch{start, end, handler, catchType}
	}
	// Remaining bytes are the Code attribute's own attribute table
	// (LineNumberTable, LocalVariableTable, StackMapTable, ...); not
	// decoded here, so no VisitLineNumber/VisitLocalVariable/VisitFrame
	// calls are replayed from it. Those bytes stay inside raw.
	return &parsedCode{int(maxStack), int(maxLocals), code, tryCatch, payload}, nil
}

// replayCode walks code's instruction stream using the shared opcode-length
// table (§4.3 "Bytecode walk algorithm") and replays it as VisitXInsn calls,
// first running the label-discovery pass over branch/switch/try-catch
// targets.
func (p *Parser) replayCode(ms MethodSink, maxStack, maxLocals int, code []byte, tryCatch []rawTryCatch) {
	graph := newCodeBuilder().graph
	labels := map[int]*Label{}
	labelAt := func(offset int) *Label {
		if l, ok := labels[offset]; ok {
			return l
		}
		l := &Label{id: graph.LabelAt(offset), resolved: true, offset: offset}
		labels[offset] = l
		return l
	}

	// Label discovery pass (§4.3 step 1): find every branch/switch/try-catch
	// target so VisitLabel fires at the right offsets during the emit pass.
	targets := map[int]bool{}
	offset := 0
	for offset < len(code) {
		op := wire.Opcode(code[offset])
		n, kind, ok := wire.OpcodeLength(op)
		if !ok {
			break
		}
		switch kind {
		case wire.KindS2:
			if wire.IsBranch(op) {
				rel := int16(uint16(code[offset+1])<<8 | uint16(code[offset+2]))
				targets[offset+int(rel)] = true
			}
			offset += n
		case wire.KindS4:
			rel := int32(uint32(code[offset+1])<<24 | uint32(code[offset+2])<<16 | uint32(code[offset+3])<<8 | uint32(code[offset+4]))
			targets[offset+int(rel)] = true
			offset += n
		case wire.KindTableSwitch, wire.KindLookupSwitch:
			offset = p.skipSwitch(code, offset, targets)
		case wire.KindWide:
			offset += p.wideLength(code, offset)
		default:
			offset += n
		}
	}
	for _, tc := range tryCatch {
		targets[int(tc.start)] = true
		targets[int(tc.end)] = true
		targets[int(tc.handler)] = true
	}
	for t := range targets {
		graph.LabelAt(t)
	}

	// Emit pass (§4.3 step 2): walk again, firing VisitLabel at recorded
	// targets and a VisitXInsn for every instruction in strict offset order.
	offset = 0
	for offset < len(code) {
		if targets[offset] {
			ms.VisitLabel(labelAt(offset))
		}
		op := wire.Opcode(code[offset])
		n, kind, ok := wire.OpcodeLength(op)
		if !ok {
			break
		}
		switch kind {
		case wire.KindNoOperand:
			ms.VisitInsn(Opcode(op))
			offset += n
		case wire.KindS1:
			ms.VisitIntInsn(Opcode(op), int(int8(code[offset+1])))
			offset += n
		case wire.KindVarU1:
			ms.VisitVarInsn(Opcode(op), int(code[offset+1]))
			offset += n
		case wire.KindCPIndexU1:
			idx := uint16(code[offset+1])
			ms.VisitLdcInsn(p.resolveConstant(idx))
			offset += n
		case wire.KindCPIndexU2:
			idx := uint16(code[offset+1])<<8 | uint16(code[offset+2])
			p.emitCPIndexInsn(ms, Opcode(op), idx)
			offset += n
		case wire.KindVarU1U1:
			ms.VisitIincInsn(int(code[offset+1]), int(int8(code[offset+2])))
			offset += n
		case wire.KindS2:
			if wire.IsBranch(op) {
				rel := int16(uint16(code[offset+1])<<8 | uint16(code[offset+2]))
				ms.VisitJumpInsn(Opcode(op), labelAt(offset+int(rel)))
			} else {
				operand := int16(uint16(code[offset+1])<<8 | uint16(code[offset+2]))
				ms.VisitIntInsn(Opcode(op), int(operand))
			}
			offset += n
		case wire.KindS4:
			rel := int32(uint32(code[offset+1])<<24 | uint32(code[offset+2])<<16 | uint32(code[offset+3])<<8 | uint32(code[offset+4]))
			ms.VisitJumpInsn(Opcode(op), labelAt(offset+int(rel)))
			offset += n
		case wire.KindInvokeInterface:
			idx := uint16(code[offset+1])<<8 | uint16(code[offset+2])
			p.emitCPIndexInsn(ms, Opcode(op), idx)
			offset += n
		case wire.KindInvokeDynamic:
			idx := uint16(code[offset+1])<<8 | uint16(code[offset+2])
			p.emitInvokeDynamic(ms, idx)
			offset += n
		case wire.KindNewArray:
			ms.VisitIntInsn(Opcode(op), int(code[offset+1]))
			offset += n
		case wire.KindMultiANewArray:
			idx := uint16(code[offset+1])<<8 | uint16(code[offset+2])
			name, _ := p.classNameAt(idx)
			ms.VisitMultiANewArrayInsn(name, int(code[offset+3]))
			offset += n
		case wire.KindTableSwitch:
			offset = p.emitTableSwitch(ms, code, offset, labelAt)
		case wire.KindLookupSwitch:
			offset = p.emitLookupSwitch(ms, code, offset, labelAt)
		case wire.KindWide:
			offset += p.emitWide(ms, code, offset)
		default:
			offset += n
		}
	}
	if targets[len(code)] {
		ms.VisitLabel(labelAt(len(code)))
	}
	for _, tc := range tryCatch {
		var catchType string
		if tc.catchTypeIdx != 0 {
			catchType, _ = p.classNameAt(tc.catchTypeIdx)
		}
		ms.VisitTryCatchBlock(labelAt(int(tc.start)), labelAt(int(tc.end)), labelAt(int(tc.handler)), catchType)
	}
}

func (p *Parser) emitCPIndexInsn(ms MethodSink, op Opcode, idx uint16) {
	switch e := p.st.Entry(idx).(type) {
	case symtab.ClassEntry:
		name, _ := p.utf8At(e.NameIndex)
		ms.VisitTypeInsn(op, name)
	case symtab.RefEntry:
		owner, _ := p.classNameAt(e.ClassIndex)
		nt, _ := p.st.Entry(e.NameAndTypeIndex).(symtab.NameAndTypeEntry)
		name, _ := p.utf8At(nt.NameIndex)
		desc, _ := p.utf8At(nt.DescriptorIndex)
		switch wire.Opcode(op) {
		case wire.OpGetStatic, wire.OpPutStatic, wire.OpGetField, wire.OpPutField:
			ms.VisitFieldInsn(op, owner, name, desc)
		default:
			ms.VisitMethodInsn(op, owner, name, desc, e.Kind == wire.TagInterfaceMethodref)
		}
	default:
		ms.VisitLdcInsn(p.resolveConstant(idx))
	}
}

func (p *Parser) emitInvokeDynamic(ms MethodSink, idx uint16) {
	e, ok := p.st.Entry(idx).(symtab.DynamicEntry)
	if !ok {
		return
	}
	nt, _ := p.st.Entry(e.NameAndTypeIndex).(symtab.NameAndTypeEntry)
	name, _ := p.utf8At(nt.NameIndex)
	desc, _ := p.utf8At(nt.DescriptorIndex)
	bsms := p.st.BootstrapMethods()
	var handle BootstrapHandle
	var bsmArgs []interface{}
	if int(e.BootstrapIndex) < len(bsms) {
		bm := bsms[e.BootstrapIndex]
		if mh, ok := p.st.Entry(bm.Handle).(symtab.MethodHandleEntry); ok {
			if ref, ok := p.st.Entry(mh.RefIndex).(symtab.RefEntry); ok {
				owner, _ := p.classNameAt(ref.ClassIndex)
				refNT, _ := p.st.Entry(ref.NameAndTypeIndex).(symtab.NameAndTypeEntry)
				rName, _ := p.utf8At(refNT.NameIndex)
				rDesc, _ := p.utf8At(refNT.DescriptorIndex)
				handle = BootstrapHandle{Kind: ReferenceKind(mh.Kind), Owner: owner, Name: rName, Descriptor: rDesc, IsInterface: mh.IsInterface}
			}
		}
		for _, argIdx := range bm.Args {
			bsmArgs = append(bsmArgs, p.resolveConstant(argIdx))
		}
	}
	ms.VisitInvokeDynamicInsn(name, desc, handle, bsmArgs)
}

func (p *Parser) skipSwitch(code []byte, offset int, targets map[int]bool) int {
	start := offset
	pad := (4 - (offset+1)%4) % 4
	pos := offset + 1 + pad
	dflt := int32(uint32(code[pos])<<24 | uint32(code[pos+1])<<16 | uint32(code[pos+2])<<8 | uint32(code[pos+3]))
	targets[start+int(dflt)] = true
	pos += 4
	if wire.Opcode(code[start]) == wire.OpTableSwitch {
		lo := int32(uint32(code[pos])<<24 | uint32(code[pos+1])<<16 | uint32(code[pos+2])<<8 | uint32(code[pos+3]))
		pos += 4
		hi := int32(uint32(code[pos])<<24 | uint32(code[pos+1])<<16 | uint32(code[pos+2])<<8 | uint32(code[pos+3]))
		pos += 4
		for i := int64(lo); i <= int64(hi); i++ {
			off := int32(uint32(code[pos])<<24 | uint32(code[pos+1])<<16 | uint32(code[pos+2])<<8 | uint32(code[pos+3]))
			targets[start+int(off)] = true
			pos += 4
		}
	} else {
		n := int32(uint32(code[pos])<<24 | uint32(code[pos+1])<<16 | uint32(code[pos+2])<<8 | uint32(code[pos+3]))
		pos += 4
		for i := int32(0); i < n; i++ {
			pos += 4 // key
			off := int32(uint32(code[pos])<<24 | uint32(code[pos+1])<<16 | uint32(code[pos+2])<<8 | uint32(code[pos+3]))
			targets[start+int(off)] = true
			pos += 4
		}
	}
	return pos
}

func (p *Parser) emitTableSwitch(ms MethodSink, code []byte, offset int, labelAt func(int) *Label) int {
	start := offset
	pad := (4 - (offset+1)%4) % 4
	pos := offset + 1 + pad
	dflt := int32(uint32(code[pos])<<24 | uint32(code[pos+1])<<16 | uint32(code[pos+2])<<8 | uint32(code[pos+3]))
	pos += 4
	lo := int32(uint32(code[pos])<<24 | uint32(code[pos+1])<<16 | uint32(code[pos+2])<<8 | uint32(code[pos+3]))
	pos += 4
	hi := int32(uint32(code[pos])<<24 | uint32(code[pos+1])<<16 | uint32(code[pos+2])<<8 | uint32(code[pos+3]))
	pos += 4
	var labels []*Label
	for i := int64(lo); i <= int64(hi); i++ {
		off := int32(uint32(code[pos])<<24 | uint32(code[pos+1])<<16 | uint32(code[pos+2])<<8 | uint32(code[pos+3]))
		labels = append(labels, labelAt(start+int(off)))
		pos += 4
	}
	ms.VisitTableSwitchInsn(int(lo), int(hi), labelAt(start+int(dflt)), labels)
	return pos
}

func (p *Parser) emitLookupSwitch(ms MethodSink, code []byte, offset int, labelAt func(int) *Label) int {
	start := offset
	pad := (4 - (offset+1)%4) % 4
	pos := offset + 1 + pad
	dflt := int32(uint32(code[pos])<<24 | uint32(code[pos+1])<<16 | uint32(code[pos+2])<<8 | uint32(code[pos+3]))
	pos += 4
	n := int32(uint32(code[pos])<<24 | uint32(code[pos+1])<<16 | uint32(code[pos+2])<<8 | uint32(code[pos+3]))
	pos += 4
	keys := make([]int32, n)
	var labels []*Label
	for i := int32(0); i < n; i++ {
		keys[i] = int32(uint32(code[pos])<<24 | uint32(code[pos+1])<<16 | uint32(code[pos+2])<<8 | uint32(code[pos+3]))
		pos += 4
		off := int32(uint32(code[pos])<<24 | uint32(code[pos+1])<<16 | uint32(code[pos+2])<<8 | uint32(code[pos+3]))
		labels = append(labels, labelAt(start+int(off)))
		pos += 4
	}
	ms.VisitLookupSwitchInsn(labelAt(start+int(dflt)), keys, labels)
	return pos
}

func (p *Parser) wideLength(code []byte, offset int) int {
	sub := wire.Opcode(code[offset+1])
	if sub == wire.OpIInc {
		return 6
	}
	return 4
}

func (p *Parser) emitWide(ms MethodSink, code []byte, offset int) int {
	sub := wire.Opcode(code[offset+1])
	slot := int(uint16(code[offset+2])<<8 | uint16(code[offset+3]))
	if sub == wire.OpIInc {
		delta := int16(uint16(code[offset+4])<<8 | uint16(code[offset+5]))
		ms.VisitIincInsn(slot, int(delta))
		return 6
	}
	ms.VisitVarInsn(Opcode(sub), slot)
	return 4
}

func (p *Parser) acceptClassAttribute(sink ClassSink, codecs *CodecRegistry) error {
	nameIdx, err := p.r.U2()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	name, err := p.utf8At(nameIdx)
	if err != nil {
		return err
	}
	length, err := p.r.U4()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	payload, err := p.r.Bytes(length)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch name {
	case AttrSourceFile:
		if p.opts != nil && p.opts.SkipDebug {
			break
		}
		sub := cursor.NewReader(payload)
		idx, _ := sub.U2()
		file, _ := p.utf8At(idx)
		sink.VisitSource(file, "")
	case AttrBootstrapMethods:
		// Already loaded by prescanBootstrapMethods before fields/methods
		// were visited; the payload bytes were consumed above purely to
		// keep p.r's position correct.
	case AttrNestHost:
		sub := cursor.NewReader(payload)
		idx, _ := sub.U2()
		n, _ := p.classNameAt(idx)
		sink.VisitNestHost(n)
	case AttrNestMembers:
		sub := cursor.NewReader(payload)
		n, _ := sub.U2()
		for i := uint16(0); i < n; i++ {
			idx, _ := sub.U2()
			name, _ := p.classNameAt(idx)
			sink.VisitNestMember(name)
		}
	case AttrPermittedSubclasses:
		sub := cursor.NewReader(payload)
		n, _ := sub.U2()
		for i := uint16(0); i < n; i++ {
			idx, _ := sub.U2()
			name, _ := p.classNameAt(idx)
			sink.VisitPermittedSubclass(name)
		}
	default:
		if codec, ok := codecs.Lookup(name); ok && codec.Decode != nil {
			sub := cursor.NewReader(payload)
			if _, err := codec.Decode(sub, len(payload), p.st); err != nil {
				p.diag.warnOpaqueAttributeMismatch(name, int(p.r.Pos()), err.Error())
			}
		}
		sink.VisitAttribute(OpaqueAttribute{Name: name, Data: payload})
	}
	return nil
}
