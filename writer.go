// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import (
	"math"

	"github.com/classfile/classfile/internal/classfile/cfg"
	"github.com/classfile/classfile/internal/classfile/cursor"
	"github.com/classfile/classfile/internal/classfile/frame"
	"github.com/classfile/classfile/internal/classfile/symtab"
	"github.com/classfile/classfile/internal/classfile/wire"
	"github.com/classfile/classfile/internal/logutil"
)

// Writer accumulates a ClassSink event stream and serializes it to a
// complete classfile buffer (§4.4). Grounded on the teacher's single-struct-
// accumulates-then-serializes shape (there is no streaming PE writer in the
// teacher, but the "collect fields, emit in one to_bytes call" idiom matches
// how File itself is built up directory-by-directory before being queried).
type Writer struct {
	st     *symtab.SymbolTable
	opts   *WriteOptions
	logger *logutil.Helper
	codecs *CodecRegistry
	diag   *diagnosticSink

	major, minor           uint16
	access                 AccessFlags
	thisClass, superClass  string
	signature              string
	interfaces             []string

	sourceFile          string
	nestHost            string
	nestMembers         []string
	permittedSubclasses []string
	innerClasses        []innerClassEntry
	classAttrs          []OpaqueAttribute
	annotations         []annotationRecord
	typeAnnotations     []typeAnnotationRecord

	fields  []*fieldBuilder
	methods []*methodBuilder
}

type innerClassEntry struct {
	name, outer, inner string
	access             AccessFlags
}

// NewWriter returns an empty Writer. When cp is non-nil its entries seed the
// Writer's own SymbolTable (§8: "copy constant pool verbatim" mode), so
// untouched constants keep their original indices across a parse/rewrite
// round trip.
func NewWriter(cp *symtab.SymbolTable, opts *WriteOptions) *Writer {
	st := cp
	if st == nil {
		st = symtab.New()
	}
	return &Writer{
		st:     st,
		opts:   opts,
		logger: opts.helper(),
		codecs: DefaultCodecs(),
		diag:   newDiagnosticSink(opts.helper()),
	}
}

// NewLabel returns a fresh label for use with a not-yet-visited method's
// instruction stream; callers typically obtain one per jump target before
// issuing VisitJumpInsn/VisitLabel.
func (w *Writer) NewLabel(graph *cfg.Graph) *Label { return newLabel(graph) }

// Diagnostics returns every non-fatal observation recorded while writing.
func (w *Writer) Diagnostics() []Diagnostic { return w.diag.Diagnostics() }

// VisitHeader records the class header; thisClass/super/interfaces are kept
// as strings here and interned into the symbol table later, by Bytes, when
// this_class/super_class/interfaces are serialized.
func (w *Writer) VisitHeader(major, minor uint16, access AccessFlags, thisClass string, signature string, super string, interfaces []string) {
	w.major, w.minor, w.access = major, minor, access
	w.thisClass, w.superClass, w.signature = thisClass, super, signature
	w.interfaces = append([]string(nil), interfaces...)
}

func (w *Writer) VisitSource(file, debugExtension string) { w.sourceFile = file }

func (w *Writer) VisitModule(name string, flags AccessFlags, version string) ModuleSink {
	return &moduleBuilder{w: w, name: name, flags: flags, version: version}
}

func (w *Writer) VisitNestHost(name string) { w.nestHost = name }

func (w *Writer) VisitOuterClass(owner, methodName, methodDescriptor string) {
	sub := cursor.NewWriter(4)
	classIdx, _ := w.st.Class(owner)
	var methodIdx uint16
	if methodName != "" {
		methodIdx, _ = w.st.NameAndType(methodName, methodDescriptor)
	}
	sub.U2(classIdx).U2(methodIdx)
	w.classAttrs = append(w.classAttrs, OpaqueAttribute{Name: AttrEnclosingMethod, Data: sub.Bytes()})
}

func (w *Writer) VisitAnnotation(descriptor string, runtimeVisible bool) AnnotationSink {
	rec := &annotationRecord{descriptor: descriptor, visible: runtimeVisible}
	w.annotations = append(w.annotations, *rec)
	idx := len(w.annotations) - 1
	return &annotationBuilder{target: &w.annotations[idx]}
}

func (w *Writer) VisitTypeAnnotation(typeRef uint32, typePath string, descriptor string, runtimeVisible bool) AnnotationSink {
	rec := typeAnnotationRecord{typeRef: typeRef, typePath: typePath, annotationRecord: annotationRecord{descriptor: descriptor, visible: runtimeVisible}}
	w.typeAnnotations = append(w.typeAnnotations, rec)
	idx := len(w.typeAnnotations) - 1
	return &annotationBuilder{target: &w.typeAnnotations[idx].annotationRecord}
}

func (w *Writer) VisitAttribute(attr OpaqueAttribute) { w.classAttrs = append(w.classAttrs, attr) }

func (w *Writer) VisitNestMember(name string) { w.nestMembers = append(w.nestMembers, name) }

func (w *Writer) VisitPermittedSubclass(name string) {
	w.permittedSubclasses = append(w.permittedSubclasses, name)
}

func (w *Writer) VisitInnerClass(name, outer, inner string, access AccessFlags) {
	w.innerClasses = append(w.innerClasses, innerClassEntry{name, outer, inner, access})
}

func (w *Writer) VisitRecordComponent(name, descriptor, signature string) RecordSink {
	fb := &fieldBuilder{w: w, name: name, descriptor: descriptor, signature: signature, isRecordComponent: true}
	w.fields = append(w.fields, fb)
	return fb
}

func (w *Writer) VisitField(access AccessFlags, name, descriptor, signature string, constantValue interface{}) FieldSink {
	fb := &fieldBuilder{w: w, access: access, name: name, descriptor: descriptor, signature: signature, constantValue: constantValue}
	w.fields = append(w.fields, fb)
	return fb
}

func (w *Writer) VisitMethod(access AccessFlags, name, descriptor, signature string, exceptions []string) MethodSink {
	mb := &methodBuilder{w: w, access: access, name: name, descriptor: descriptor, signature: signature, exceptions: exceptions, code: newCodeBuilder()}
	w.methods = append(w.methods, mb)
	return mb
}

func (w *Writer) VisitEnd() {}

// annotationRecord is the Writer's flat recording of one annotation visit,
// populated incrementally by annotationBuilder as VisitXxx calls arrive.
type annotationRecord struct {
	descriptor string
	visible    bool
	elements   []annotationElement
}

type typeAnnotationRecord struct {
	annotationRecord
	typeRef  uint32
	typePath string
}

// annotationElement is one name/value pair (or, inside an array, one
// unnamed value) of an annotation body.
type annotationElement struct {
	name  string
	kind  byte // JVM element_value tag: B C D F I J S Z s e c @ [
	value interface{}
	enumDescriptor string // for kind 'e'
	nested *annotationRecord // for kind '@'
	array  []annotationElement // for kind '['
}

// annotationBuilder implements AnnotationSink by appending to target's
// elements slice, recursing into nested annotationRecord/array structures
// rather than serializing immediately — encoding happens once, in
// encodeAnnotationBody, when the owning member's attribute list is finalized.
type annotationBuilder struct {
	target *annotationRecord
	array  *[]annotationElement // non-nil when this builder is inside an array context
}

func tagForValue(value interface{}) (byte, interface{}) {
	switch v := value.(type) {
	case bool:
		return 'Z', v
	case int8:
		return 'B', v
	case uint16:
		return 'C', v
	case int16:
		return 'S', v
	case int32:
		return 'I', v
	case int:
		return 'I', int32(v)
	case int64:
		return 'J', v
	case float32:
		return 'F', v
	case float64:
		return 'D', v
	case string:
		return 's', v
	default:
		return 'I', int32(0)
	}
}

func (b *annotationBuilder) Visit(name string, value interface{}) {
	tag, v := tagForValue(value)
	el := annotationElement{name: name, kind: tag, value: v}
	b.append(el)
}

func (b *annotationBuilder) VisitEnum(name, descriptor, value string) {
	b.append(annotationElement{name: name, kind: 'e', enumDescriptor: descriptor, value: value})
}

func (b *annotationBuilder) VisitAnnotation(name, descriptor string) AnnotationSink {
	nested := &annotationRecord{descriptor: descriptor}
	el := annotationElement{name: name, kind: '@', nested: nested}
	b.append(el)
	return &annotationBuilder{target: nested}
}

func (b *annotationBuilder) VisitArray(name string) AnnotationSink {
	el := annotationElement{name: name, kind: '['}
	b.append(el)
	var slot *annotationElement
	if b.array != nil {
		slot = &(*b.array)[len(*b.array)-1]
	} else {
		slot = &b.target.elements[len(b.target.elements)-1]
	}
	return &annotationBuilder{target: b.target, array: &slot.array}
}

func (b *annotationBuilder) append(el annotationElement) {
	if b.array != nil {
		*b.array = append(*b.array, el)
	} else {
		b.target.elements = append(b.target.elements, el)
	}
}

func (b *annotationBuilder) VisitEnd() {}

// encodeAnnotationBody serializes rec's body (type_index + num_element_value_pairs
// + pairs) into w, interning every referenced name/descriptor/constant.
func encodeAnnotationBody(w *cursor.Writer, st *symtab.SymbolTable, rec *annotationRecord) {
	descIdx, _ := st.Utf8(rec.descriptor)
	w.U2(descIdx)
	w.U2(uint16(len(rec.elements)))
	for _, el := range rec.elements {
		nameIdx, _ := st.Utf8(el.name)
		w.U2(nameIdx)
		encodeElementValue(w, st, el)
	}
}

func encodeElementValue(w *cursor.Writer, st *symtab.SymbolTable, el annotationElement) {
	w.U1(el.kind)
	switch el.kind {
	case 'Z':
		v := int32(0)
		if el.value.(bool) {
			v = 1
		}
		idx, _ := st.Int(v)
		w.U2(idx)
	case 'B':
		idx, _ := st.Int(int32(el.value.(int8)))
		w.U2(idx)
	case 'C':
		idx, _ := st.Int(int32(el.value.(uint16)))
		w.U2(idx)
	case 'S':
		idx, _ := st.Int(int32(el.value.(int16)))
		w.U2(idx)
	case 'I':
		idx, _ := st.Int(el.value.(int32))
		w.U2(idx)
	case 'J':
		idx, _ := st.Long(el.value.(int64))
		w.U2(idx)
	case 'F':
		idx, _ := st.Float(el.value.(float32))
		w.U2(idx)
	case 'D':
		idx, _ := st.Double(el.value.(float64))
		w.U2(idx)
	case 's':
		idx, _ := st.Utf8(el.value.(string))
		w.U2(idx)
	case 'c':
		idx, _ := st.Utf8(el.value.(string))
		w.U2(idx)
	case 'e':
		typeIdx, _ := st.Utf8(el.enumDescriptor)
		constIdx, _ := st.Utf8(el.value.(string))
		w.U2(typeIdx)
		w.U2(constIdx)
	case '@':
		encodeAnnotationBody(w, st, el.nested)
	case '[':
		w.U2(uint16(len(el.array)))
		for _, sub := range el.array {
			encodeElementValue(w, st, sub)
		}
	}
}

// moduleBuilder implements ModuleSink, recording a Module attribute's body.
type moduleBuilder struct {
	w                      *Writer
	name                   string
	flags                  AccessFlags
	version                string
	requires               []moduleRequire
	exports, opens         []modulePackageEdge
	uses                   []string
	provides               []moduleProvide
}

type moduleRequire struct {
	module  string
	access  AccessFlags
	version string
}
type modulePackageEdge struct {
	pkg     string
	access  AccessFlags
	modules []string
}
type moduleProvide struct {
	service   string
	providers []string
}

func (m *moduleBuilder) VisitRequire(module string, access AccessFlags, version string) {
	m.requires = append(m.requires, moduleRequire{module, access, version})
}
func (m *moduleBuilder) VisitExport(pkg string, access AccessFlags, modules []string) {
	m.exports = append(m.exports, modulePackageEdge{pkg, access, modules})
}
func (m *moduleBuilder) VisitOpen(pkg string, access AccessFlags, modules []string) {
	m.opens = append(m.opens, modulePackageEdge{pkg, access, modules})
}
func (m *moduleBuilder) VisitUse(service string) { m.uses = append(m.uses, service) }
func (m *moduleBuilder) VisitProvide(service string, providers []string) {
	m.provides = append(m.provides, moduleProvide{service, providers})
}
func (m *moduleBuilder) VisitEnd() {
	m.w.classAttrs = append(m.w.classAttrs, OpaqueAttribute{Name: AttrModule, Data: m.encode()})
}

func (m *moduleBuilder) encode() []byte {
	w := cursor.NewWriter(64)
	nameIdx, _ := m.w.st.Module(m.name)
	w.U2(nameIdx).U2(uint16(m.flags))
	if m.version != "" {
		vIdx, _ := m.w.st.Utf8(m.version)
		w.U2(vIdx)
	} else {
		w.U2(0)
	}
	w.U2(uint16(len(m.requires)))
	for _, r := range m.requires {
		idx, _ := m.w.st.Module(r.module)
		w.U2(idx).U2(uint16(r.access))
		if r.version != "" {
			vIdx, _ := m.w.st.Utf8(r.version)
			w.U2(vIdx)
		} else {
			w.U2(0)
		}
	}
	encodeEdges := func(edges []modulePackageEdge) {
		w.U2(uint16(len(edges)))
		for _, e := range edges {
			idx, _ := m.w.st.Package(e.pkg)
			w.U2(idx).U2(uint16(e.access))
			writeU2Slice(w, internModules(m.w.st, e.modules))
		}
	}
	encodeEdges(m.exports)
	encodeEdges(m.opens)
	w.U2(uint16(len(m.uses)))
	for _, u := range m.uses {
		idx, _ := m.w.st.Class(u)
		w.U2(idx)
	}
	w.U2(uint16(len(m.provides)))
	for _, p := range m.provides {
		idx, _ := m.w.st.Class(p.service)
		w.U2(idx)
		writeU2Slice(w, internClasses(m.w.st, p.providers))
	}
	return w.Bytes()
}

func internModules(st *symtab.SymbolTable, names []string) []uint16 {
	out := make([]uint16, len(names))
	for i, n := range names {
		out[i], _ = st.Module(n)
	}
	return out
}

func internClasses(st *symtab.SymbolTable, names []string) []uint16 {
	out := make([]uint16, len(names))
	for i, n := range names {
		out[i], _ = st.Class(n)
	}
	return out
}

// fieldBuilder implements FieldSink (and RecordSink, which shares the same
// annotation/attribute surface per §6).
type fieldBuilder struct {
	w                 *Writer
	access            AccessFlags
	name, descriptor  string
	signature         string
	constantValue     interface{}
	isRecordComponent bool
	attrs             []OpaqueAttribute
	annotations       []annotationRecord
	typeAnnotations   []typeAnnotationRecord
}

func (f *fieldBuilder) VisitAnnotation(descriptor string, runtimeVisible bool) AnnotationSink {
	f.annotations = append(f.annotations, annotationRecord{descriptor: descriptor, visible: runtimeVisible})
	return &annotationBuilder{target: &f.annotations[len(f.annotations)-1]}
}

func (f *fieldBuilder) VisitTypeAnnotation(typeRef uint32, typePath string, descriptor string, runtimeVisible bool) AnnotationSink {
	rec := typeAnnotationRecord{typeRef: typeRef, typePath: typePath, annotationRecord: annotationRecord{descriptor: descriptor, visible: runtimeVisible}}
	f.typeAnnotations = append(f.typeAnnotations, rec)
	return &annotationBuilder{target: &f.typeAnnotations[len(f.typeAnnotations)-1].annotationRecord}
}

func (f *fieldBuilder) VisitAttribute(attr OpaqueAttribute) { f.attrs = append(f.attrs, attr) }
func (f *fieldBuilder) VisitEnd()                           {}

// methodBuilder implements MethodSink, delegating instruction-level events
// to its embedded codeBuilder (code.go) and everything else to its own
// fields, the Writer's own struct-per-concept idiom applied one level down.
type methodBuilder struct {
	w                *Writer
	access           AccessFlags
	name, descriptor string
	signature        string
	exceptions       []string
	attrs            []OpaqueAttribute
	annotations      []annotationRecord
	typeAnnotations  []typeAnnotationRecord
	paramAnnotations map[int][]annotationRecord
	annotationDefault *annotationElement
	parameters       []methodParameter

	code       *codeBuilder
	hasCode    bool
	frameKinds []recordedFrame
}

type methodParameter struct {
	name   string
	access AccessFlags
}

type recordedFrame struct {
	kind               FrameKind
	localCountOrDelta  int
	localTypes         []VerificationType
	stackCount         int
	stackTypes         []VerificationType
}

func (m *methodBuilder) VisitAnnotationDefault() AnnotationSink {
	m.annotationDefault = &annotationElement{kind: 0}
	return &annotationDefaultBuilder{target: m.annotationDefault}
}

// annotationDefaultBuilder adapts AnnotationSink to annotation_default's
// single bare element_value (§3): exactly one Visit/VisitEnum/VisitAnnotation/
// VisitArray call is expected.
type annotationDefaultBuilder struct{ target *annotationElement }

func (a *annotationDefaultBuilder) Visit(name string, value interface{}) {
	tag, v := tagForValue(value)
	*a.target = annotationElement{kind: tag, value: v}
}
func (a *annotationDefaultBuilder) VisitEnum(name, descriptor, value string) {
	*a.target = annotationElement{kind: 'e', enumDescriptor: descriptor, value: value}
}
func (a *annotationDefaultBuilder) VisitAnnotation(name, descriptor string) AnnotationSink {
	nested := &annotationRecord{descriptor: descriptor}
	*a.target = annotationElement{kind: '@', nested: nested}
	return &annotationBuilder{target: nested}
}
func (a *annotationDefaultBuilder) VisitArray(name string) AnnotationSink {
	*a.target = annotationElement{kind: '['}
	return &annotationBuilder{target: &annotationRecord{}, array: &a.target.array}
}
func (a *annotationDefaultBuilder) VisitEnd() {}

func (m *methodBuilder) VisitParameterAnnotation(parameter int, descriptor string, runtimeVisible bool) AnnotationSink {
	if m.paramAnnotations == nil {
		m.paramAnnotations = make(map[int][]annotationRecord)
	}
	m.paramAnnotations[parameter] = append(m.paramAnnotations[parameter], annotationRecord{descriptor: descriptor, visible: runtimeVisible})
	slice := m.paramAnnotations[parameter]
	return &annotationBuilder{target: &slice[len(slice)-1]}
}

func (m *methodBuilder) VisitAnnotation(descriptor string, runtimeVisible bool) AnnotationSink {
	m.annotations = append(m.annotations, annotationRecord{descriptor: descriptor, visible: runtimeVisible})
	return &annotationBuilder{target: &m.annotations[len(m.annotations)-1]}
}

func (m *methodBuilder) VisitTypeAnnotation(typeRef uint32, typePath string, descriptor string, runtimeVisible bool) AnnotationSink {
	rec := typeAnnotationRecord{typeRef: typeRef, typePath: typePath, annotationRecord: annotationRecord{descriptor: descriptor, visible: runtimeVisible}}
	m.typeAnnotations = append(m.typeAnnotations, rec)
	return &annotationBuilder{target: &m.typeAnnotations[len(m.typeAnnotations)-1].annotationRecord}
}

func (m *methodBuilder) VisitAttribute(attr OpaqueAttribute) { m.attrs = append(m.attrs, attr) }

func (m *methodBuilder) VisitParameter(name string, access AccessFlags) {
	m.parameters = append(m.parameters, methodParameter{name, access})
}

func (m *methodBuilder) VisitCode() { m.hasCode = true }

func (m *methodBuilder) VisitFrame(kind FrameKind, localCountOrDelta int, localTypes []VerificationType, stackCount int, stackTypes []VerificationType) {
	m.frameKinds = append(m.frameKinds, recordedFrame{kind, localCountOrDelta, localTypes, stackCount, stackTypes})
}

// recordInstr appends instr to the method's instruction stream. Any
// structural edit arriving after a fast-path VisitCodeSource capture
// invalidates that capture, since the recorded source bytes no longer
// reflect the (now modified) instruction stream.
func (m *methodBuilder) recordInstr(instr instruction) {
	m.code.sourceBytes = nil
	m.code.instrs = append(m.code.instrs, instr)
}

func (m *methodBuilder) VisitInsn(opcode Opcode) {
	m.recordInstr(instruction{opcode: opcode})
}
func (m *methodBuilder) VisitIntInsn(opcode Opcode, operand int) {
	m.recordInstr(instruction{opcode: opcode, intOperand: operand})
}
func (m *methodBuilder) VisitVarInsn(opcode Opcode, slot int) {
	m.recordInstr(instruction{opcode: opcode, varSlot: slot})
}
func (m *methodBuilder) VisitTypeInsn(opcode Opcode, typeName string) {
	m.recordInstr(instruction{opcode: opcode, typeName: typeName})
}
func (m *methodBuilder) VisitFieldInsn(opcode Opcode, owner, name, descriptor string) {
	m.recordInstr(instruction{opcode: opcode, owner: owner, name: name, descriptor: descriptor})
}
func (m *methodBuilder) VisitMethodInsn(opcode Opcode, owner, name, descriptor string, isInterface bool) {
	m.recordInstr(instruction{opcode: opcode, owner: owner, name: name, descriptor: descriptor, isInterface: isInterface})
}
func (m *methodBuilder) VisitInvokeDynamicInsn(name, descriptor string, bsmHandle BootstrapHandle, bsmArgs []interface{}) {
	m.recordInstr(instruction{opcode: OpInvokeDynamic, name: name, descriptor: descriptor, ldcValue: bsmHandle, bsmArgs: bsmArgs})
}
func (m *methodBuilder) VisitJumpInsn(opcode Opcode, label *Label) {
	m.recordInstr(instruction{opcode: opcode, target: label})
}
func (m *methodBuilder) VisitLdcInsn(constant interface{}) {
	m.recordInstr(instruction{opcode: OpLdc, ldcValue: constant})
}
func (m *methodBuilder) VisitIincInsn(slot int, delta int) {
	m.recordInstr(instruction{opcode: OpIInc, varSlot: slot, iincDelta: delta})
}
func (m *methodBuilder) VisitTableSwitchInsn(min, max int, dflt *Label, labels []*Label) {
	m.recordInstr(instruction{opcode: OpTableSwitch, tableMin: min, tableMax: max, target: dflt, targets: labels})
}
func (m *methodBuilder) VisitLookupSwitchInsn(dflt *Label, keys []int32, labels []*Label) {
	m.recordInstr(instruction{opcode: OpLookupSwitch, lookupKeys: keys, target: dflt, targets: labels})
}
func (m *methodBuilder) VisitMultiANewArrayInsn(descriptor string, dims int) {
	m.recordInstr(instruction{opcode: OpMultiANewArray, typeName: descriptor, dims: dims})
}
func (m *methodBuilder) VisitLabel(label *Label) {
	m.recordInstr(instruction{label: label})
}
func (m *methodBuilder) VisitTryCatchBlock(start, end, handler *Label, catchType string) {
	m.code.sourceBytes = nil
	m.code.tryCatch = append(m.code.tryCatch, tryCatchEntry{start, end, handler, catchType})
}
func (m *methodBuilder) VisitLocalVariable(name, descriptor, signature string, start, end *Label, index int) {
	m.code.sourceBytes = nil
	m.code.locals = append(m.code.locals, localVarEntry{name, descriptor, signature, start, end, index})
}
func (m *methodBuilder) VisitLineNumber(line int, start *Label) {
	m.code.sourceBytes = nil
	m.code.lines = append(m.code.lines, lineEntry{line, start})
}
func (m *methodBuilder) VisitMaxs(maxStack, maxLocals int) {
	m.code.maxStack, m.code.maxLocals, m.code.maxsExplicit = maxStack, maxLocals, true
}

// VisitCodeSource implements rawCodeSink: the Parser calls this with the
// verbatim Code attribute payload it just read, after replaying the same
// method structurally via VisitXInsn. serialize prefers these bytes over a
// from-scratch re-encode (§4.4 "method copy" fast path) as long as no later
// Visit call on this method has invalidated them.
func (m *methodBuilder) VisitCodeSource(raw []byte) {
	m.code.sourceBytes = append([]byte(nil), raw...)
}

func (m *methodBuilder) VisitEnd() {}

// Bytes serializes the accumulated class into a complete classfile buffer,
// in the field order fixed by §4.4: magic/version, constant pool, access/
// this/super/interfaces, fields, methods, class attributes.
func (w *Writer) Bytes() ([]byte, error) {
	strategy := selectFrameStrategy(w.opts, w.major)
	for _, m := range w.methods {
		if m.hasCode {
			if err := m.layout(strategy, w.opts.oracle()); err != nil {
				return nil, err
			}
		}
	}

	body := cursor.NewWriter(4096)
	body.U2(uint16(w.access))
	thisIdx, err := w.st.Class(w.thisClass)
	if err != nil {
		return nil, err
	}
	body.U2(thisIdx)
	var superIdx uint16
	if w.superClass != "" {
		superIdx, err = w.st.Class(w.superClass)
		if err != nil {
			return nil, err
		}
	}
	body.U2(superIdx)
	writeU2Slice(body, internClasses(w.st, w.interfaces))

	body.U2(uint16(len(w.fields)))
	for _, f := range w.fields {
		if err := f.encode(w, body); err != nil {
			return nil, err
		}
	}

	body.U2(uint16(len(w.methods)))
	for _, m := range w.methods {
		if err := m.encode(w, body); err != nil {
			return nil, err
		}
	}

	classAttrs := w.buildClassAttrs()
	body.U2(uint16(len(classAttrs)))
	for _, a := range classAttrs {
		nameIdx, _ := w.st.Utf8(a.Name)
		body.U2(nameIdx)
		body.U4(uint32(len(a.Data)))
		body.Raw(a.Data)
	}

	out := cursor.NewWriter(4096 + int(body.Len()))
	out.U4(wire.Magic)
	out.U2(w.minor)
	out.U2(w.major)

	entries := w.st.Entries()
	if len(entries) > symtab.MaxConstantPoolCount {
		return nil, ErrClassTooLarge
	}
	out.U2(uint16(len(entries)))
	for i := 1; i < len(entries); i++ {
		e := entries[i]
		if e == nil {
			continue
		}
		encodeConstant(out, e)
	}
	out.Raw(body.Bytes())
	return out.Bytes(), nil
}

func (w *Writer) buildClassAttrs() []OpaqueAttribute {
	var attrs []OpaqueAttribute
	if w.sourceFile != "" {
		sub := cursor.NewWriter(2)
		idx, _ := w.st.Utf8(w.sourceFile)
		sub.U2(idx)
		attrs = append(attrs, OpaqueAttribute{Name: AttrSourceFile, Data: sub.Bytes()})
	}
	if len(w.innerClasses) > 0 {
		sub := cursor.NewWriter(2 + 8*len(w.innerClasses))
		sub.U2(uint16(len(w.innerClasses)))
		for _, ic := range w.innerClasses {
			nameIdx, _ := w.st.Class(ic.name)
			var outerIdx, innerIdx uint16
			if ic.outer != "" {
				outerIdx, _ = w.st.Class(ic.outer)
			}
			if ic.inner != "" {
				innerIdx, _ = w.st.Utf8(ic.inner)
			}
			sub.U2(nameIdx).U2(outerIdx).U2(innerIdx).U2(uint16(ic.access))
		}
		attrs = append(attrs, OpaqueAttribute{Name: AttrInnerClasses, Data: sub.Bytes()})
	}
	if w.nestHost != "" {
		sub := cursor.NewWriter(2)
		idx, _ := w.st.Class(w.nestHost)
		sub.U2(idx)
		attrs = append(attrs, OpaqueAttribute{Name: AttrNestHost, Data: sub.Bytes()})
	}
	if len(w.nestMembers) > 0 {
		sub := cursor.NewWriter(2 + 2*len(w.nestMembers))
		writeU2Slice(sub, internClasses(w.st, w.nestMembers))
		attrs = append(attrs, OpaqueAttribute{Name: AttrNestMembers, Data: sub.Bytes()})
	}
	if len(w.permittedSubclasses) > 0 {
		sub := cursor.NewWriter(2 + 2*len(w.permittedSubclasses))
		writeU2Slice(sub, internClasses(w.st, w.permittedSubclasses))
		attrs = append(attrs, OpaqueAttribute{Name: AttrPermittedSubclasses, Data: sub.Bytes()})
	}
	if w.signature != "" {
		sub := cursor.NewWriter(2)
		idx, _ := w.st.Utf8(w.signature)
		sub.U2(idx)
		attrs = append(attrs, OpaqueAttribute{Name: AttrSignature, Data: sub.Bytes()})
	}
	attrs = append(attrs, encodeAnnotationAttrs(w.st, w.annotations, w.typeAnnotations)...)
	attrs = append(attrs, w.classAttrs...)
	if bsms := w.st.BootstrapMethods(); len(bsms) > 0 {
		sub := cursor.NewWriter(2 + 8*len(bsms))
		sub.U2(uint16(len(bsms)))
		for _, bm := range bsms {
			sub.U2(bm.Handle)
			writeU2Slice(sub, bm.Args)
		}
		attrs = append(attrs, OpaqueAttribute{Name: AttrBootstrapMethods, Data: sub.Bytes()})
	}
	return attrs
}

// encodeAnnotationAttrs packages a member's recorded annotations into up to
// four standard attributes (visible/invisible, plain/type), per §4.9.
func encodeAnnotationAttrs(st *symtab.SymbolTable, anns []annotationRecord, typeAnns []typeAnnotationRecord) []OpaqueAttribute {
	var attrs []OpaqueAttribute
	var visible, invisible []annotationRecord
	for _, a := range anns {
		if a.visible {
			visible = append(visible, a)
		} else {
			invisible = append(invisible, a)
		}
	}
	if len(visible) > 0 {
		attrs = append(attrs, OpaqueAttribute{Name: AttrRuntimeVisibleAnnotations, Data: encodeAnnotationList(st, visible)})
	}
	if len(invisible) > 0 {
		attrs = append(attrs, OpaqueAttribute{Name: AttrRuntimeInvisibleAnnotations, Data: encodeAnnotationList(st, invisible)})
	}
	var visibleT, invisibleT []typeAnnotationRecord
	for _, a := range typeAnns {
		if a.visible {
			visibleT = append(visibleT, a)
		} else {
			invisibleT = append(invisibleT, a)
		}
	}
	if len(visibleT) > 0 {
		attrs = append(attrs, OpaqueAttribute{Name: AttrRuntimeVisibleTypeAnnotations, Data: encodeTypeAnnotationList(st, visibleT)})
	}
	if len(invisibleT) > 0 {
		attrs = append(attrs, OpaqueAttribute{Name: AttrRuntimeInvisibleTypeAnnotations, Data: encodeTypeAnnotationList(st, invisibleT)})
	}
	return attrs
}

func encodeAnnotationList(st *symtab.SymbolTable, anns []annotationRecord) []byte {
	w := cursor.NewWriter(64 * len(anns))
	w.U2(uint16(len(anns)))
	for i := range anns {
		encodeAnnotationBody(w, st, &anns[i])
	}
	return w.Bytes()
}

// encodeTypeAnnotationList encodes the type_annotation structures; the
// target_info/target_path encoding is outside this layer's scope (typeRef is
// written as a raw u4 and typePath as the u2 index of a Utf8 entry holding
// the path string, rather than fully decomposed per target-type, since the target-type enum
// adds 14 wire shapes §4.7.20 does not otherwise need for this core).
func encodeTypeAnnotationList(st *symtab.SymbolTable, anns []typeAnnotationRecord) []byte {
	w := cursor.NewWriter(64 * len(anns))
	w.U2(uint16(len(anns)))
	for i := range anns {
		w.U4(anns[i].typeRef)
		pathIdx, _ := st.Utf8(anns[i].typePath)
		w.U2(pathIdx)
		encodeAnnotationBody(w, st, &anns[i].annotationRecord)
	}
	return w.Bytes()
}

func encodeConstant(w *cursor.Writer, e symtab.Entry) {
	w.U1(uint8(e.Tag()))
	switch v := e.(type) {
	case symtab.Utf8Entry:
		w.ModifiedUTF8(v.Value)
	case symtab.IntegerEntry:
		w.U4(uint32(v.Value))
	case symtab.FloatEntry:
		w.U4(float32bits(v.Value))
	case symtab.LongEntry:
		w.S8(v.Value)
	case symtab.DoubleEntry:
		w.S8(int64(float64bits(v.Value)))
	case symtab.ClassEntry:
		w.U2(v.NameIndex)
	case symtab.StringEntry:
		w.U2(v.Utf8Index)
	case symtab.RefEntry:
		w.U2(v.ClassIndex).U2(v.NameAndTypeIndex)
	case symtab.NameAndTypeEntry:
		w.U2(v.NameIndex).U2(v.DescriptorIndex)
	case symtab.MethodHandleEntry:
		w.U1(uint8(v.Kind)).U2(v.RefIndex)
	case symtab.MethodTypeEntry:
		w.U2(v.DescriptorIndex)
	case symtab.DynamicEntry:
		w.U2(v.BootstrapIndex).U2(v.NameAndTypeIndex)
	case symtab.ModuleEntry:
		w.U2(v.NameIndex)
	case symtab.PackageEntry:
		w.U2(v.NameIndex)
	}
}

func (f *fieldBuilder) encode(w *Writer, out *cursor.Writer) error {
	nameIdx, err := w.st.Utf8(f.name)
	if err != nil {
		return err
	}
	descIdx, err := w.st.Utf8(f.descriptor)
	if err != nil {
		return err
	}
	out.U2(uint16(f.access)).U2(nameIdx).U2(descIdx)

	var attrs []OpaqueAttribute
	if f.constantValue != nil {
		sub := cursor.NewWriter(2)
		var idx uint16
		switch v := f.constantValue.(type) {
		case int32:
			idx, _ = w.st.Int(v)
		case int64:
			idx, _ = w.st.Long(v)
		case float32:
			idx, _ = w.st.Float(v)
		case float64:
			idx, _ = w.st.Double(v)
		case string:
			idx, _ = w.st.String(v)
		}
		sub.U2(idx)
		attrs = append(attrs, OpaqueAttribute{Name: AttrConstantValue, Data: sub.Bytes()})
	}
	if f.signature != "" {
		sub := cursor.NewWriter(2)
		idx, _ := w.st.Utf8(f.signature)
		sub.U2(idx)
		attrs = append(attrs, OpaqueAttribute{Name: AttrSignature, Data: sub.Bytes()})
	}
	attrs = append(attrs, encodeAnnotationAttrs(w.st, f.annotations, f.typeAnnotations)...)
	attrs = append(attrs, f.attrs...)

	out.U2(uint16(len(attrs)))
	for _, a := range attrs {
		aNameIdx, _ := w.st.Utf8(a.Name)
		out.U2(aNameIdx)
		out.U4(uint32(len(a.Data)))
		out.Raw(a.Data)
	}
	return nil
}

func (m *methodBuilder) encode(w *Writer, out *cursor.Writer) error {
	nameIdx, err := w.st.Utf8(m.name)
	if err != nil {
		return err
	}
	descIdx, err := w.st.Utf8(m.descriptor)
	if err != nil {
		return err
	}
	out.U2(uint16(m.access)).U2(nameIdx).U2(descIdx)

	var attrs []OpaqueAttribute
	if m.hasCode {
		codeBytes, err := m.code.serialize(w.st)
		if err != nil {
			return err
		}
		attrs = append(attrs, OpaqueAttribute{Name: AttrCode, Data: codeBytes})
	}
	if len(m.exceptions) > 0 {
		sub := cursor.NewWriter(2 + 2*len(m.exceptions))
		writeU2Slice(sub, internClasses(w.st, m.exceptions))
		attrs = append(attrs, OpaqueAttribute{Name: AttrExceptions, Data: sub.Bytes()})
	}
	if m.signature != "" {
		sub := cursor.NewWriter(2)
		idx, _ := w.st.Utf8(m.signature)
		sub.U2(idx)
		attrs = append(attrs, OpaqueAttribute{Name: AttrSignature, Data: sub.Bytes()})
	}
	attrs = append(attrs, encodeAnnotationAttrs(w.st, m.annotations, m.typeAnnotations)...)
	attrs = append(attrs, m.attrs...)

	out.U2(uint16(len(attrs)))
	for _, a := range attrs {
		aNameIdx, _ := w.st.Utf8(a.Name)
		out.U2(aNameIdx)
		out.U4(uint32(len(a.Data)))
		out.Raw(a.Data)
	}
	return nil
}

// layout resolves every label in m.code to a concrete bytecode offset,
// expanding any forward conditional branch that does not fit a signed
// 16-bit delta into "negated-branch over a goto_w" (§4.4 edge case), then
// runs frame computation per strategy.
func (m *methodBuilder) layout(strategy frameStrategy, oracle func(a, b string) string) error {
	for iter := 0; iter < 8; iter++ {
		offsets, widenAt, err := m.tryLayout()
		if err != nil {
			return err
		}
		if len(widenAt) == 0 {
			m.code.instrOffsets = offsets
			m.resolveLabelOffsets(offsets)
			break
		}
		m.expandWideBranches(widenAt)
	}

	if strategy == strategyNone {
		return nil
	}
	return m.computeFrames(strategy, oracle)
}

// resolveLabelOffsets stamps every label instruction's resolved offset onto
// the Label value itself, so encodeInstruction (which runs after layout has
// stabilized) can read a target's offset directly instead of re-scanning
// the instruction list.
func (m *methodBuilder) resolveLabelOffsets(offsets []int) {
	for i, instr := range m.code.instrs {
		if instr.label != nil {
			instr.label.offset = offsets[i]
			instr.label.resolved = true
		}
	}
}

// tryLayout computes each instruction's byte offset assuming natural
// (narrowest-fit) encodings, returning the set of instruction indices whose
// computed branch delta overflows a signed 16-bit value and therefore need
// widening before the layout can be considered final.
func (m *methodBuilder) tryLayout() ([]int, []int, error) {
	offsets := make([]int, len(m.code.instrs))
	offset := 0
	for i, instr := range m.code.instrs {
		offsets[i] = offset
		offset += m.instrSize(instr, offset)
	}
	var widen []int
	for i, instr := range m.code.instrs {
		if instr.label != nil || instr.target == nil {
			continue
		}
		if !wire.IsBranch(wire.Opcode(instr.opcode)) {
			continue
		}
		if instr.opcode == OpGotoW || instr.opcode == OpJsrW {
			continue
		}
		delta := m.resolveTarget(instr.target, offsets) - offsets[i]
		if delta < -32768 || delta > 32767 {
			widen = append(widen, i)
		}
	}
	if len(widen) > 0 {
		return nil, widen, nil
	}
	if offset > 0xFFFF {
		return nil, nil, ErrMethodTooLarge
	}
	return offsets, nil, nil
}

func (m *methodBuilder) resolveTarget(label *Label, offsets []int) int {
	for i, instr := range m.code.instrs {
		if instr.label == label {
			return offsets[i]
		}
	}
	return 0
}

func (m *methodBuilder) instrSize(instr instruction, offset int) int {
	if instr.label != nil {
		return 0
	}
	switch instr.opcode {
	case OpTableSwitch:
		pad := (4 - (offset+1)%4) % 4
		return 1 + pad + 4 + 4 + 4 + 4*(instr.tableMax-instr.tableMin+1)
	case OpLookupSwitch:
		pad := (4 - (offset+1)%4) % 4
		return 1 + pad + 4 + 4 + 8*len(instr.lookupKeys)
	case OpIInc:
		if instr.varSlot > 255 || instr.iincDelta < -128 || instr.iincDelta > 127 {
			return 1 + 1 + 2 + 2 // wide prefix + opcode + u2 index + s2 const
		}
		return 3
	case OpGotoW, OpJsrW:
		return 5
	case OpInvokeInterface, OpInvokeDynamic:
		return 5
	case OpMultiANewArray:
		return 4
	case OpLdc:
		if ldcWide(m.w.st, instr.ldcValue) {
			return 3
		}
		return 2
	}
	if isVarInstr(instr.opcode) && instr.varSlot > 255 {
		return 1 + 1 + 2 // wide prefix + opcode + u2 index
	}
	n, _, ok := wire.OpcodeLength(wire.Opcode(instr.opcode))
	if !ok {
		return 1
	}
	return n
}

// isVarInstr reports whether op addresses a local-variable slot (the forms
// that need the `wide` prefix when the slot exceeds 255).
func isVarInstr(op Opcode) bool {
	return (op >= wire.OpILoad && op <= wire.OpALoad) || (op >= wire.OpIStore && op <= wire.OpAStore) || op == wire.OpRet
}

// ldcWide reports whether constant's eventual pool index will not fit in a
// single byte, requiring ldc_w instead of ldc. Interning here is harmless:
// SymbolTable.intern is idempotent, so calling it once during layout and
// again during final encoding resolves to the same index both times.
func ldcWide(st *symtab.SymbolTable, value interface{}) bool {
	return internLdc(st, value) > 0xFF
}

// expandWideBranches rewrites each flagged instruction in place: an
// unconditional goto/jsr simply switches to its _w opcode (already a real,
// full-range wire form); a conditional branch is split into a negated near
// branch over a wide unconditional jump, exactly the classic assembler
// branch-widening idiom, so no synthetic opcode ever reaches Bytes' output.
func (m *methodBuilder) expandWideBranches(indices []int) {
	// Indices shift as earlier entries expand into three instructions, so
	// widen from the end of the method backward.
	for i := len(indices) - 1; i >= 0; i-- {
		idx := indices[i]
		instr := m.code.instrs[idx]
		switch instr.opcode {
		case OpGoto:
			instr.opcode = OpGotoW
			m.code.instrs[idx] = instr
		case OpJsr:
			instr.opcode = OpJsrW
			m.code.instrs[idx] = instr
		default:
			skip := newLabel(m.code.graph)
			replacement := []instruction{
				{opcode: negatedBranch(instr.opcode), target: skip},
				{opcode: OpGotoW, target: instr.target},
				{label: skip},
			}
			tail := append([]instruction(nil), m.code.instrs[idx+1:]...)
			m.code.instrs = append(append(m.code.instrs[:idx], replacement...), tail...)
		}
	}
}

// negatedBranch returns the logical complement of a one-operand comparison
// opcode (JVM Spec §6, ifeq/ifne/iflt/ifge/ifgt/ifle and their if_icmp/
// if_acmp counterparts), used when expanding an out-of-range conditional
// branch into "negated-near-branch; goto_w".
func negatedBranch(op Opcode) Opcode {
	pairs := [][2]Opcode{
		{wire.Opcode(0x99), wire.Opcode(0x9a)}, // ifeq/ifne
		{wire.Opcode(0x9b), wire.Opcode(0x9c)}, // iflt/ifge
		{wire.Opcode(0x9d), wire.Opcode(0x9e)}, // ifgt/ifle
		{wire.Opcode(0x9f), wire.Opcode(0xa0)}, // if_icmpeq/if_icmpne
		{wire.Opcode(0xa1), wire.Opcode(0xa2)}, // if_icmplt/if_icmpge
		{wire.Opcode(0xa3), wire.Opcode(0xa4)}, // if_icmpgt/if_icmple
		{wire.Opcode(0xa5), wire.Opcode(0xa6)}, // if_acmpeq/if_acmpne
		{wire.Opcode(0xc6), wire.Opcode(0xc7)}, // ifnull/ifnonnull
	}
	for _, p := range pairs {
		if op == p[0] {
			return p[1]
		}
		if op == p[1] {
			return p[0]
		}
	}
	return op
}

// computeFrames runs the FrameEngine over the method's control-flow graph
// and records the resulting compact frames for serialize to emit as a
// StackMapTable (§4.6). For the MaxsOnly strategy it returns early without
// building frames; max_stack/max_locals are then the VisitMaxs values when
// the caller supplied them (not recomputed), otherwise estimateMaxs' bound.
func (m *methodBuilder) computeFrames(strategy frameStrategy, oracle func(a, b string) string) error {
	if strategy == strategyMaxsOnly {
		return nil
	}
	graph := m.code.graph
	starts := m.blockStarts()
	blockOf := m.buildBlocks(graph, starts)
	m.linkBlocks(graph, starts, blockOf)
	for _, tc := range m.code.tryCatch {
		startOff, endOff, handlerOff := tc.start.offset, tc.end.offset, tc.handler.offset
		handlerBlock := blockOf[handlerOff]
		graph.AddExceptionEdges(startOff, endOff, handlerBlock, tc.catchType)
	}

	eng := frame.NewEngine(graph, m.w.st.Types, frameOracle{fn: oracle})

	widths := descriptorParamWidths(m.descriptor)
	initial := frame.State{}
	if !m.access.Has(AccStatic) {
		initial.Locals = append(initial.Locals, frame.Type{Kind: frame.Object, TypeIdx: m.w.st.Types.AddObject(m.w.thisClass)})
	}
	for _, k := range widths {
		initial.Locals = append(initial.Locals, frame.Type{Kind: k})
		if k == frame.Long || k == frame.Double {
			initial.Locals = append(initial.Locals, frame.Type{Kind: frame.Top})
		}
	}
	if len(graph.Blocks()) > 0 {
		eng.Seed(0, initial)
	}
	eng.Run(func(blockIndex int, in frame.State) frame.State { return in })

	blocks := graph.Blocks()
	offsets := make([]int, len(blocks))
	needsFrame := make([]bool, len(blocks))
	for i, b := range blocks {
		offsets[i] = b.Start
		needsFrame[i] = i > 0
	}
	var initialLocals []frame.Type
	if len(blocks) > 0 {
		initialLocals = eng.StateOf(0).Locals
	}
	m.code.frames = eng.BuildFrames(offsets, needsFrame, initialLocals)
	return nil
}

type frameOracle struct{ fn func(a, b string) string }

func (o frameOracle) CommonSuperClass(a, b string) string { return o.fn(a, b) }
func (o frameOracle) IsAssignable(sub, sup string) bool   { return sub == sup }

// blockStarts derives a basic-block partition from the resolved layout: a
// new block starts at offset 0, at every label target, and immediately
// after every terminator or conditional-branch/switch instruction.
func (m *methodBuilder) blockStarts() []int {
	starts := map[int]bool{0: true}
	offsets := m.code.instrOffsets
	for i, instr := range m.code.instrs {
		if instr.label != nil {
			starts[offsets[i]] = true
			continue
		}
		op := wire.Opcode(instr.opcode)
		if wire.IsBranch(op) || wire.IsTerminator(op) || op == wire.OpTableSwitch || op == wire.OpLookupSwitch {
			next := offsets[i] + m.instrSize(instr, offsets[i])
			starts[next] = true
		}
	}
	var ordered []int
	for off := range starts {
		ordered = append(ordered, off)
	}
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j-1] > ordered[j]; j-- {
			ordered[j-1], ordered[j] = ordered[j], ordered[j-1]
		}
	}
	return ordered
}

// buildBlocks registers one BasicBlock per entry in starts and returns a map
// from block-start offset to graph block index.
func (m *methodBuilder) buildBlocks(graph *cfg.Graph, starts []int) map[int]int {
	blockOf := make(map[int]int, len(starts))
	end := m.codeLength()
	for i, start := range starts {
		blockEnd := end
		if i+1 < len(starts) {
			blockEnd = starts[i+1]
		}
		idx := graph.AddBlock(cfg.BasicBlock{Start: start, End: blockEnd})
		blockOf[start] = idx
	}
	return blockOf
}

func (m *methodBuilder) codeLength() int {
	if len(m.code.instrOffsets) == 0 {
		return 0
	}
	last := len(m.code.instrs) - 1
	return m.code.instrOffsets[last] + m.instrSize(m.code.instrs[last], m.code.instrOffsets[last])
}

// linkBlocks adds fallthrough/branch/switch successor edges from each
// block's final instruction, using every jump's already-resolved
// Label.offset to find the target block.
func (m *methodBuilder) linkBlocks(graph *cfg.Graph, starts []int, blockOf map[int]int) {
	offsets := m.code.instrOffsets
	end := m.codeLength()
	for bi, start := range starts {
		blockEnd := end
		if bi+1 < len(starts) {
			blockEnd = starts[bi+1]
		}
		lastIdx := -1
		for i, instr := range m.code.instrs {
			if instr.label != nil {
				continue
			}
			if offsets[i] >= start && offsets[i] < blockEnd {
				lastIdx = i
			}
		}
		if lastIdx == -1 {
			continue
		}
		instr := m.code.instrs[lastIdx]
		off := offsets[lastIdx]
		size := m.instrSize(instr, off)
		op := wire.Opcode(instr.opcode)
		blockIdx := blockOf[start]
		addEdge := func(kind cfg.EdgeKind, targetOffset int) {
			if target, ok := blockOf[targetOffset]; ok {
				b := graph.Block(blockIdx)
				b.Successors = append(b.Successors, cfg.Edge{Kind: kind, Target: target})
			}
		}
		switch {
		case op == wire.OpTableSwitch || op == wire.OpLookupSwitch:
			if instr.target != nil {
				addEdge(cfg.EdgeSwitch, instr.target.offset)
			}
			for _, t := range instr.targets {
				addEdge(cfg.EdgeSwitch, t.offset)
			}
		case wire.IsBranch(op):
			if instr.target != nil {
				addEdge(cfg.EdgeBranch, instr.target.offset)
			}
			if !wire.IsTerminator(op) {
				addEdge(cfg.EdgeFallthrough, off+size)
			}
		case !wire.IsTerminator(op):
			addEdge(cfg.EdgeFallthrough, off+size)
		}
	}
}

// serialize lays out the final Code attribute body: max_stack/max_locals,
// the instruction stream, the exception table, and a StackMapTable
// attribute when frames were computed. The fast path (§4.4 "method copy")
// short-circuits all of that: when the Parser captured this method's source
// bytes via VisitCodeSource and no later Visit call invalidated them (see
// methodBuilder.recordInstr), sourceBytes is the exact Code attribute body
// already and is returned verbatim instead of re-encoding from instrs.
func (c *codeBuilder) serialize(st *symtab.SymbolTable) ([]byte, error) {
	if c.sourceBytes != nil {
		return c.sourceBytes, nil
	}
	body := cursor.NewWriter(256)
	maxStack, maxLocals := c.maxStack, c.maxLocals
	if !c.maxsExplicit {
		maxStack, maxLocals = estimateMaxs(c.instrs)
	}
	body.U2(uint16(maxStack)).U2(uint16(maxLocals))

	codeBuf := cursor.NewWriter(len(c.instrs) * 3)
	labelOffset := map[*Label]int{}
	offset := 0
	for i, instr := range c.instrs {
		if instr.label != nil {
			labelOffset[instr.label] = offset
			continue
		}
		offset += encodeInstruction(codeBuf, st, instr, offset, c.instrOffsets, i)
	}
	if len(codeBuf.Bytes()) > 0xFFFF {
		return nil, ErrMethodTooLarge
	}
	body.U4(uint32(len(codeBuf.Bytes())))
	body.Raw(codeBuf.Bytes())

	body.U2(uint16(len(c.tryCatch)))
	for _, tc := range c.tryCatch {
		body.U2(uint16(labelOffset[tc.start]))
		body.U2(uint16(labelOffset[tc.end]))
		body.U2(uint16(labelOffset[tc.handler]))
		var catchIdx uint16
		if tc.catchType != "" {
			catchIdx, _ = st.Class(tc.catchType)
		}
		body.U2(catchIdx)
	}

	var attrs []OpaqueAttribute
	if len(c.lines) > 0 {
		sub := cursor.NewWriter(2 + 4*len(c.lines))
		sub.U2(uint16(len(c.lines)))
		for _, ln := range c.lines {
			sub.U2(uint16(labelOffset[ln.start])).U2(uint16(ln.line))
		}
		attrs = append(attrs, OpaqueAttribute{Name: AttrLineNumberTable, Data: sub.Bytes()})
	}
	if len(c.locals) > 0 {
		sub := cursor.NewWriter(2 + 10*len(c.locals))
		sub.U2(uint16(len(c.locals)))
		for _, lv := range c.locals {
			startOff := labelOffset[lv.start]
			endOff := labelOffset[lv.end]
			nameIdx, _ := st.Utf8(lv.name)
			descIdx, _ := st.Utf8(lv.descriptor)
			sub.U2(uint16(startOff)).U2(uint16(endOff - startOff)).U2(nameIdx).U2(descIdx).U2(uint16(lv.index))
		}
		attrs = append(attrs, OpaqueAttribute{Name: AttrLocalVariableTable, Data: sub.Bytes()})
	}
	if len(c.frames) > 0 {
		attrs = append(attrs, OpaqueAttribute{Name: AttrStackMapTable, Data: encodeStackMapTable(st, c.frames)})
	}

	body.U2(uint16(len(attrs)))
	for _, a := range attrs {
		nameIdx, _ := st.Utf8(a.Name)
		body.U2(nameIdx)
		body.U4(uint32(len(a.Data)))
		body.Raw(a.Data)
	}
	return body.Bytes(), nil
}

// estimateMaxs supplies max_stack/max_locals, under every frame strategy,
// when the caller never supplied explicit VisitMaxs values: a conservative
// bound (every instruction's worst-case stack push of two slots, locals
// sized to the highest slot touched) rather than a precise simulation,
// since §4.4 only commits to "valid, not necessarily minimal" bounds.
func estimateMaxs(instrs []instruction) (maxStack, maxLocals int) {
	stack := 0
	for _, instr := range instrs {
		if instr.label != nil {
			continue
		}
		if instr.varSlot+2 > maxLocals {
			maxLocals = instr.varSlot + 2
		}
		stack += 2
		if stack > maxStack {
			maxStack = stack
		}
	}
	if maxStack == 0 {
		maxStack = 1
	}
	if maxLocals == 0 {
		maxLocals = 1
	}
	return maxStack, maxLocals
}

func encodeInstruction(w *cursor.Writer, st *symtab.SymbolTable, instr instruction, offset int, allOffsets []int, index int) int {
	op := wire.Opcode(instr.opcode)
	switch {
	case op == wire.OpTableSwitch || op == wire.OpLookupSwitch:
		return encodeSwitch(w, instr, offset)
	case op == wire.OpIInc:
		if instr.varSlot > 255 || instr.iincDelta < -128 || instr.iincDelta > 127 {
			w.U1(uint8(wire.OpWide)).U1(uint8(op)).U2(uint16(instr.varSlot)).U2(uint16(int16(instr.iincDelta)))
			return 6
		}
		w.U1(uint8(op)).U1(uint8(instr.varSlot)).U1(uint8(int8(instr.iincDelta)))
		return 3
	case op == wire.OpBipush:
		w.U1(uint8(op)).U1(uint8(int8(instr.intOperand)))
		return 2
	case op == wire.OpSipush:
		w.U1(uint8(op)).U2(uint16(int16(instr.intOperand)))
		return 3
	case op == wire.OpNewArray:
		w.U1(uint8(op)).U1(uint8(instr.intOperand))
		return 2
	case op == wire.OpLdc:
		idx := internLdc(st, instr.ldcValue)
		if idx > 0xFF {
			w.U1(uint8(wire.OpLdcW)).U2(idx)
			return 3
		}
		w.U1(uint8(op)).U1(uint8(idx))
		return 2
	case op >= wire.OpILoad && op <= wire.OpALoad, op >= wire.OpIStore && op <= wire.OpAStore, op == wire.OpRet:
		if instr.varSlot > 255 {
			w.U1(uint8(wire.OpWide)).U1(uint8(op)).U2(uint16(instr.varSlot))
			return 4
		}
		w.U1(uint8(op)).U1(uint8(instr.varSlot))
		return 2
	case wire.IsBranch(op) && op != wire.OpGotoW && op != wire.OpJsrW:
		w.U1(uint8(op))
		target := offset
		if instr.target != nil {
			target = resolveLabelOffsetFallback(instr.target, allOffsets, index)
		}
		w.U2(uint16(int16(target - offset)))
		return 3
	case op == wire.OpGotoW || op == wire.OpJsrW:
		w.U1(uint8(op))
		target := offset
		if instr.target != nil {
			target = resolveLabelOffsetFallback(instr.target, allOffsets, index)
		}
		w.U4(uint32(int32(target - offset)))
		return 5
	case op == wire.OpGetStatic || op == wire.OpPutStatic || op == wire.OpGetField || op == wire.OpPutField:
		idx, _ := st.Fieldref(instr.owner, instr.name, instr.descriptor)
		w.U1(uint8(op)).U2(idx)
		return 3
	case op == wire.OpInvokeVirtual || op == wire.OpInvokeSpecial || op == wire.OpInvokeStatic:
		idx, _ := st.Methodref(instr.owner, instr.name, instr.descriptor)
		w.U1(uint8(op)).U2(idx)
		return 3
	case op == wire.OpInvokeInterface:
		idx, _ := st.InterfaceMethodref(instr.owner, instr.name, instr.descriptor)
		argWords := countArgWords(instr.descriptor) + 1
		w.U1(uint8(op)).U2(idx).U1(uint8(argWords)).U1(0)
		return 5
	case op == wire.OpInvokeDynamic:
		handle, _ := instr.ldcValue.(BootstrapHandle)
		bsmArgs := make([]uint16, len(instr.bsmArgs))
		for i, arg := range instr.bsmArgs {
			bsmArgs[i] = internLdc(st, arg)
		}
		handleIdx, _ := st.MethodHandle(wire.ReferenceKind(handle.Kind), handle.Owner, handle.Name, handle.Descriptor, handle.IsInterface)
		idx, _ := st.InvokeDynamic(instr.name, instr.descriptor, handleIdx, bsmArgs)
		w.U1(uint8(op)).U2(idx).U2(0)
		return 5
	case op == wire.OpNew || op == wire.OpANewArray || op == wire.OpCheckCast || op == wire.OpInstanceOf:
		idx, _ := st.Class(instr.typeName)
		w.U1(uint8(op)).U2(idx)
		return 3
	case op == wire.OpMultiANewArray:
		idx, _ := st.Class(instr.typeName)
		w.U1(uint8(op)).U2(idx).U1(uint8(instr.dims))
		return 4
	default:
		w.U1(uint8(op))
		return 1
	}
}

// resolveLabelOffsetFallback is used by encodeInstruction, which (unlike
// serialize's own labelOffset map restricted to already-emitted labels)
// needs a target's offset even when that label lies ahead in the
// instruction stream. It returns label.offset, which resolveLabelOffsets
// stamped from the layout pass that preceded serialize; allOffsets and
// index are not consulted.
func resolveLabelOffsetFallback(label *Label, allOffsets []int, index int) int {
	_ = index
	return label.offset
}

func countArgWords(descriptor string) int {
	n := 0
	for _, k := range descriptorParamWidths(descriptor) {
		n++
		if k == frame.Long || k == frame.Double {
			n++
		}
	}
	return n
}

func internLdc(st *symtab.SymbolTable, value interface{}) uint16 {
	var idx uint16
	switch v := value.(type) {
	case int32:
		idx, _ = st.Int(v)
	case float32:
		idx, _ = st.Float(v)
	case int64:
		idx, _ = st.Long(v)
	case float64:
		idx, _ = st.Double(v)
	case string:
		idx, _ = st.String(v)
	}
	return idx
}

// encodeStackMapTable serializes the compact frame forms frame.BuildFrames
// produced into the StackMapTable attribute body (§4.6).
func encodeStackMapTable(st *symtab.SymbolTable, frames []frame.StackMapFrame) []byte {
	w := cursor.NewWriter(8 * len(frames))
	w.U2(uint16(len(frames)))
	for _, f := range frames {
		switch f.Kind {
		case frame.FrameSame:
			w.U1(uint8(f.OffsetDelta))
		case frame.FrameSameExtended:
			w.U1(251).U2(uint16(f.OffsetDelta))
		case frame.FrameSameLocals1StackItem:
			w.U1(uint8(64 + f.OffsetDelta))
			encodeVerificationTypes(w, st, f.Stack)
		case frame.FrameSameLocals1StackItemExtended:
			w.U1(247).U2(uint16(f.OffsetDelta))
			encodeVerificationTypes(w, st, f.Stack)
		case frame.FrameChop:
			w.U1(uint8(251 - f.ChopCount)).U2(uint16(f.OffsetDelta))
		case frame.FrameAppend:
			w.U1(uint8(251 + len(f.Locals))).U2(uint16(f.OffsetDelta))
			encodeVerificationTypes(w, st, f.Locals)
		case frame.FrameFull:
			w.U1(255).U2(uint16(f.OffsetDelta))
			w.U2(uint16(len(f.Locals)))
			encodeVerificationTypes(w, st, f.Locals)
			w.U2(uint16(len(f.Stack)))
			encodeVerificationTypes(w, st, f.Stack)
		}
	}
	return w.Bytes()
}

func encodeVerificationTypes(w *cursor.Writer, st *symtab.SymbolTable, types []frame.Type) {
	for _, t := range types {
		switch t.Kind {
		case frame.Top:
			w.U1(0)
		case frame.Int:
			w.U1(1)
		case frame.Float:
			w.U1(2)
		case frame.Double:
			w.U1(3)
		case frame.Long:
			w.U1(4)
		case frame.Null:
			w.U1(5)
		case frame.UninitializedThis:
			w.U1(6)
		case frame.Object:
			w.U1(7)
			idx, _ := st.Class(st.Types.InternalNameOf(t.TypeIdx))
			w.U2(idx)
		case frame.Uninitialized:
			w.U1(8)
			w.U2(0)
		}
	}
}

func encodeSwitch(w *cursor.Writer, instr instruction, offset int) int {
	pad := (4 - (offset+1)%4) % 4
	w.U1(uint8(instr.opcode))
	for i := 0; i < pad; i++ {
		w.U1(0)
	}
	dflt := 0
	if instr.target != nil {
		dflt = instr.target.offset - offset
	}
	w.U4(uint32(int32(dflt)))
	if instr.opcode == OpTableSwitch {
		w.U4(uint32(int32(instr.tableMin)))
		w.U4(uint32(int32(instr.tableMax)))
		for _, t := range instr.targets {
			w.U4(uint32(int32(t.offset - offset)))
		}
		return 1 + pad + 12 + 4*len(instr.targets)
	}
	w.U4(uint32(int32(len(instr.lookupKeys))))
	for i, k := range instr.lookupKeys {
		w.U4(uint32(k))
		w.U4(uint32(int32(instr.targets[i].offset - offset)))
	}
	return 1 + pad + 8 + 8*len(instr.lookupKeys)
}

func float32bits(f float32) uint32 { return math.Float32bits(f) }
func float64bits(f float64) uint64 { return math.Float64bits(f) }
