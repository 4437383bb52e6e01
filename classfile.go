// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import (
	"io"

	"github.com/classfile/classfile/internal/classfile/symtab"
)

// ClassFile is the convenience round-trip type built on top of Parser/
// Writer (§8): Load captures one full event stream from a Parser into a
// replayable recording, Bytes replays it into a fresh Writer. Grounded on
// the teacher's File type, which plays the identical "one struct, built by
// Parse, queried/re-emitted on demand" role for a PE image.
type ClassFile struct {
	pool   *symtab.SymbolTable
	header ClassHeader
	rec    *recordingSink
}

// Load reads a complete classfile from r and records its event stream for
// later replay into a Writer.
func Load(r io.Reader, opts *ParseOptions) (*ClassFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	p, err := NewParser(data, opts)
	if err != nil {
		return nil, err
	}
	rec := newRecordingSink()
	if err := p.Accept(rec, DefaultCodecs()); err != nil {
		return nil, err
	}
	return &ClassFile{pool: p.SymbolTable(), header: p.Header(), rec: rec}, nil
}

// Header returns the fixed-shape header captured at Load time.
func (c *ClassFile) Header() ClassHeader { return c.header }

// Bytes replays the recorded event stream into a new Writer seeded with the
// original constant pool (§8 "copy constant pool verbatim") and serializes
// it, applying opts' frame/maxs strategy.
func (c *ClassFile) Bytes(opts *WriteOptions) ([]byte, error) {
	w := NewWriter(c.pool, opts)
	c.rec.replayInto(w)
	return w.Bytes()
}

// recordingSink implements ClassSink by recording every call as a closure
// over its arguments, the same capture-then-replay idiom annotationBuilder
// (writer.go) already uses for one annotation's element tree, generalized
// to an entire class. Keeping capture decoupled from replay lets a single
// Load produce many distinct Bytes() calls (different WriteOptions, fresh
// Writer instances) without re-parsing.
type recordingSink struct {
	events []func(ClassSink)
}

func newRecordingSink() *recordingSink { return &recordingSink{} }

func (r *recordingSink) replayInto(dst ClassSink) {
	for _, ev := range r.events {
		ev(dst)
	}
}

func (r *recordingSink) VisitHeader(major, minor uint16, access AccessFlags, thisClass string, signature string, super string, interfaces []string) {
	ifaces := append([]string(nil), interfaces...)
	r.events = append(r.events, func(s ClassSink) {
		s.VisitHeader(major, minor, access, thisClass, signature, super, ifaces)
	})
}

func (r *recordingSink) VisitSource(file, debugExtension string) {
	r.events = append(r.events, func(s ClassSink) { s.VisitSource(file, debugExtension) })
}

func (r *recordingSink) VisitModule(name string, flags AccessFlags, version string) ModuleSink {
	mr := &moduleRecorder{}
	r.events = append(r.events, func(s ClassSink) { mr.replayInto(s.VisitModule(name, flags, version)) })
	return mr
}

func (r *recordingSink) VisitNestHost(name string) {
	r.events = append(r.events, func(s ClassSink) { s.VisitNestHost(name) })
}

func (r *recordingSink) VisitOuterClass(owner, methodName, methodDescriptor string) {
	r.events = append(r.events, func(s ClassSink) { s.VisitOuterClass(owner, methodName, methodDescriptor) })
}

func (r *recordingSink) VisitAnnotation(descriptor string, runtimeVisible bool) AnnotationSink {
	rec := &annotationRecord{descriptor: descriptor, visible: runtimeVisible}
	r.events = append(r.events, func(s ClassSink) {
		replayAnnotationTree(*rec, s.VisitAnnotation(rec.descriptor, rec.visible))
	})
	return &annotationBuilder{target: rec}
}

func (r *recordingSink) VisitTypeAnnotation(typeRef uint32, typePath string, descriptor string, runtimeVisible bool) AnnotationSink {
	rec := &typeAnnotationRecord{typeRef: typeRef, typePath: typePath, annotationRecord: annotationRecord{descriptor: descriptor, visible: runtimeVisible}}
	r.events = append(r.events, func(s ClassSink) {
		replayAnnotationTree(rec.annotationRecord, s.VisitTypeAnnotation(rec.typeRef, rec.typePath, rec.descriptor, rec.visible))
	})
	return &annotationBuilder{target: &rec.annotationRecord}
}

func (r *recordingSink) VisitAttribute(attr OpaqueAttribute) {
	r.events = append(r.events, func(s ClassSink) { s.VisitAttribute(attr) })
}

func (r *recordingSink) VisitNestMember(name string) {
	r.events = append(r.events, func(s ClassSink) { s.VisitNestMember(name) })
}

func (r *recordingSink) VisitPermittedSubclass(name string) {
	r.events = append(r.events, func(s ClassSink) { s.VisitPermittedSubclass(name) })
}

func (r *recordingSink) VisitInnerClass(name, outer, inner string, access AccessFlags) {
	r.events = append(r.events, func(s ClassSink) { s.VisitInnerClass(name, outer, inner, access) })
}

func (r *recordingSink) VisitRecordComponent(name, descriptor, signature string) RecordSink {
	fr := &fieldRecorder{}
	r.events = append(r.events, func(s ClassSink) { fr.replayInto(s.VisitRecordComponent(name, descriptor, signature)) })
	return fr
}

func (r *recordingSink) VisitField(access AccessFlags, name, descriptor, signature string, constantValue interface{}) FieldSink {
	fr := &fieldRecorder{}
	r.events = append(r.events, func(s ClassSink) {
		fr.replayInto(s.VisitField(access, name, descriptor, signature, constantValue))
	})
	return fr
}

func (r *recordingSink) VisitMethod(access AccessFlags, name, descriptor, signature string, exceptions []string) MethodSink {
	mr := &methodRecorder{}
	exc := append([]string(nil), exceptions...)
	r.events = append(r.events, func(s ClassSink) { mr.replayInto(s.VisitMethod(access, name, descriptor, signature, exc)) })
	return mr
}

func (r *recordingSink) VisitEnd() {
	r.events = append(r.events, func(s ClassSink) { s.VisitEnd() })
}

// replayAnnotationTree walks rec's captured element tree and issues the
// equivalent Visit/VisitEnum/VisitAnnotation/VisitArray/VisitEnd calls
// against dst — the inverse of annotationBuilder's capture direction.
func replayAnnotationTree(rec annotationRecord, dst AnnotationSink) {
	if dst == nil {
		return
	}
	for _, el := range rec.elements {
		replayAnnotationElement(el, dst)
	}
	dst.VisitEnd()
}

func replayAnnotationElement(el annotationElement, dst AnnotationSink) {
	switch el.kind {
	case 'e':
		dst.VisitEnum(el.name, el.enumDescriptor, el.value.(string))
	case '@':
		child := dst.VisitAnnotation(el.name, el.nested.descriptor)
		replayAnnotationTree(*el.nested, child)
	case '[':
		child := dst.VisitArray(el.name)
		for _, sub := range el.array {
			replayAnnotationElement(sub, child)
		}
		if child != nil {
			child.VisitEnd()
		}
	default:
		dst.Visit(el.name, el.value)
	}
}

func replayAnnotationDefault(el annotationElement, dst AnnotationSink) {
	if dst == nil {
		return
	}
	switch el.kind {
	case 'e':
		dst.VisitEnum("", el.enumDescriptor, el.value.(string))
	case '@':
		child := dst.VisitAnnotation("", el.nested.descriptor)
		replayAnnotationTree(*el.nested, child)
	case '[':
		child := dst.VisitArray("")
		for _, sub := range el.array {
			replayAnnotationElement(sub, child)
		}
		if child != nil {
			child.VisitEnd()
		}
	default:
		dst.Visit("", el.value)
	}
	dst.VisitEnd()
}

// moduleRecorder captures one VisitModule event stream independent of any
// particular Writer, reusing moduleRequire/modulePackageEdge/moduleProvide
// (writer.go) since those are already plain value types with no *Writer
// back-reference.
type moduleRecorder struct {
	requires       []moduleRequire
	exports, opens []modulePackageEdge
	uses           []string
	provides       []moduleProvide
}

func (m *moduleRecorder) VisitRequire(module string, access AccessFlags, version string) {
	m.requires = append(m.requires, moduleRequire{module, access, version})
}
func (m *moduleRecorder) VisitExport(pkg string, access AccessFlags, modules []string) {
	m.exports = append(m.exports, modulePackageEdge{pkg, access, modules})
}
func (m *moduleRecorder) VisitOpen(pkg string, access AccessFlags, modules []string) {
	m.opens = append(m.opens, modulePackageEdge{pkg, access, modules})
}
func (m *moduleRecorder) VisitUse(service string) { m.uses = append(m.uses, service) }
func (m *moduleRecorder) VisitProvide(service string, providers []string) {
	m.provides = append(m.provides, moduleProvide{service, providers})
}
func (m *moduleRecorder) VisitEnd() {}

func (m *moduleRecorder) replayInto(dst ModuleSink) {
	if dst == nil {
		return
	}
	for _, req := range m.requires {
		dst.VisitRequire(req.module, req.access, req.version)
	}
	for _, e := range m.exports {
		dst.VisitExport(e.pkg, e.access, e.modules)
	}
	for _, o := range m.opens {
		dst.VisitOpen(o.pkg, o.access, o.modules)
	}
	for _, u := range m.uses {
		dst.VisitUse(u)
	}
	for _, p := range m.provides {
		dst.VisitProvide(p.service, p.providers)
	}
	dst.VisitEnd()
}

// fieldRecorder implements both FieldSink and RecordSink (identical shape,
// §6), capturing a member's annotation/attribute events.
type fieldRecorder struct {
	attrs           []OpaqueAttribute
	annotations     []*annotationRecord
	typeAnnotations []*typeAnnotationRecord
}

func (f *fieldRecorder) VisitAnnotation(descriptor string, runtimeVisible bool) AnnotationSink {
	rec := &annotationRecord{descriptor: descriptor, visible: runtimeVisible}
	f.annotations = append(f.annotations, rec)
	return &annotationBuilder{target: rec}
}

func (f *fieldRecorder) VisitTypeAnnotation(typeRef uint32, typePath string, descriptor string, runtimeVisible bool) AnnotationSink {
	rec := &typeAnnotationRecord{typeRef: typeRef, typePath: typePath, annotationRecord: annotationRecord{descriptor: descriptor, visible: runtimeVisible}}
	f.typeAnnotations = append(f.typeAnnotations, rec)
	return &annotationBuilder{target: &rec.annotationRecord}
}

func (f *fieldRecorder) VisitAttribute(attr OpaqueAttribute) { f.attrs = append(f.attrs, attr) }
func (f *fieldRecorder) VisitEnd()                           {}

func (f *fieldRecorder) replayInto(dst interface {
	VisitAnnotation(descriptor string, runtimeVisible bool) AnnotationSink
	VisitTypeAnnotation(typeRef uint32, typePath string, descriptor string, runtimeVisible bool) AnnotationSink
	VisitAttribute(attr OpaqueAttribute)
	VisitEnd()
}) {
	if dst == nil {
		return
	}
	for _, rec := range f.annotations {
		replayAnnotationTree(*rec, dst.VisitAnnotation(rec.descriptor, rec.visible))
	}
	for _, rec := range f.typeAnnotations {
		replayAnnotationTree(rec.annotationRecord, dst.VisitTypeAnnotation(rec.typeRef, rec.typePath, rec.descriptor, rec.visible))
	}
	for _, a := range f.attrs {
		dst.VisitAttribute(a)
	}
	dst.VisitEnd()
}

// methodRecorder captures a full method body event stream (instructions,
// frames, labels, try-catch, locals, lines, maxs) as replayable closures;
// mechanical but flat, the same "one method per event" shape methodBuilder
// itself uses in writer.go, just recording instead of building a Code
// attribute directly.
type methodRecorder struct {
	events []func(MethodSink)
}

func (m *methodRecorder) replayInto(dst MethodSink) {
	if dst == nil {
		return
	}
	for _, ev := range m.events {
		ev(dst)
	}
}

func (m *methodRecorder) VisitAnnotationDefault() AnnotationSink {
	rec := &annotationElement{}
	m.events = append(m.events, func(ms MethodSink) { replayAnnotationDefault(*rec, ms.VisitAnnotationDefault()) })
	return &annotationDefaultBuilder{target: rec}
}
func (m *methodRecorder) VisitParameterAnnotation(parameter int, descriptor string, runtimeVisible bool) AnnotationSink {
	rec := &annotationRecord{descriptor: descriptor, visible: runtimeVisible}
	m.events = append(m.events, func(ms MethodSink) {
		replayAnnotationTree(*rec, ms.VisitParameterAnnotation(parameter, rec.descriptor, rec.visible))
	})
	return &annotationBuilder{target: rec}
}
func (m *methodRecorder) VisitAnnotation(descriptor string, runtimeVisible bool) AnnotationSink {
	rec := &annotationRecord{descriptor: descriptor, visible: runtimeVisible}
	m.events = append(m.events, func(ms MethodSink) { replayAnnotationTree(*rec, ms.VisitAnnotation(rec.descriptor, rec.visible)) })
	return &annotationBuilder{target: rec}
}
func (m *methodRecorder) VisitTypeAnnotation(typeRef uint32, typePath string, descriptor string, runtimeVisible bool) AnnotationSink {
	rec := &typeAnnotationRecord{typeRef: typeRef, typePath: typePath, annotationRecord: annotationRecord{descriptor: descriptor, visible: runtimeVisible}}
	m.events = append(m.events, func(ms MethodSink) {
		replayAnnotationTree(rec.annotationRecord, ms.VisitTypeAnnotation(rec.typeRef, rec.typePath, rec.descriptor, rec.visible))
	})
	return &annotationBuilder{target: &rec.annotationRecord}
}
func (m *methodRecorder) VisitAttribute(attr OpaqueAttribute) {
	m.events = append(m.events, func(ms MethodSink) { ms.VisitAttribute(attr) })
}
func (m *methodRecorder) VisitParameter(name string, access AccessFlags) {
	m.events = append(m.events, func(ms MethodSink) { ms.VisitParameter(name, access) })
}
func (m *methodRecorder) VisitCode() {
	m.events = append(m.events, func(ms MethodSink) { ms.VisitCode() })
}
func (m *methodRecorder) VisitFrame(kind FrameKind, localCountOrDelta int, localTypes []VerificationType, stackCount int, stackTypes []VerificationType) {
	m.events = append(m.events, func(ms MethodSink) { ms.VisitFrame(kind, localCountOrDelta, localTypes, stackCount, stackTypes) })
}
func (m *methodRecorder) VisitInsn(opcode Opcode) {
	m.events = append(m.events, func(ms MethodSink) { ms.VisitInsn(opcode) })
}
func (m *methodRecorder) VisitIntInsn(opcode Opcode, operand int) {
	m.events = append(m.events, func(ms MethodSink) { ms.VisitIntInsn(opcode, operand) })
}
func (m *methodRecorder) VisitVarInsn(opcode Opcode, slot int) {
	m.events = append(m.events, func(ms MethodSink) { ms.VisitVarInsn(opcode, slot) })
}
func (m *methodRecorder) VisitTypeInsn(opcode Opcode, typeName string) {
	m.events = append(m.events, func(ms MethodSink) { ms.VisitTypeInsn(opcode, typeName) })
}
func (m *methodRecorder) VisitFieldInsn(opcode Opcode, owner, name, descriptor string) {
	m.events = append(m.events, func(ms MethodSink) { ms.VisitFieldInsn(opcode, owner, name, descriptor) })
}
func (m *methodRecorder) VisitMethodInsn(opcode Opcode, owner, name, descriptor string, isInterface bool) {
	m.events = append(m.events, func(ms MethodSink) { ms.VisitMethodInsn(opcode, owner, name, descriptor, isInterface) })
}
func (m *methodRecorder) VisitInvokeDynamicInsn(name, descriptor string, bsmHandle BootstrapHandle, bsmArgs []interface{}) {
	m.events = append(m.events, func(ms MethodSink) { ms.VisitInvokeDynamicInsn(name, descriptor, bsmHandle, bsmArgs) })
}
func (m *methodRecorder) VisitJumpInsn(opcode Opcode, label *Label) {
	m.events = append(m.events, func(ms MethodSink) { ms.VisitJumpInsn(opcode, label) })
}
func (m *methodRecorder) VisitLdcInsn(constant interface{}) {
	m.events = append(m.events, func(ms MethodSink) { ms.VisitLdcInsn(constant) })
}
func (m *methodRecorder) VisitIincInsn(slot int, delta int) {
	m.events = append(m.events, func(ms MethodSink) { ms.VisitIincInsn(slot, delta) })
}
func (m *methodRecorder) VisitTableSwitchInsn(min, max int, dflt *Label, labels []*Label) {
	m.events = append(m.events, func(ms MethodSink) { ms.VisitTableSwitchInsn(min, max, dflt, labels) })
}
func (m *methodRecorder) VisitLookupSwitchInsn(dflt *Label, keys []int32, labels []*Label) {
	m.events = append(m.events, func(ms MethodSink) { ms.VisitLookupSwitchInsn(dflt, keys, labels) })
}
func (m *methodRecorder) VisitMultiANewArrayInsn(descriptor string, dims int) {
	m.events = append(m.events, func(ms MethodSink) { ms.VisitMultiANewArrayInsn(descriptor, dims) })
}
func (m *methodRecorder) VisitLabel(label *Label) {
	m.events = append(m.events, func(ms MethodSink) { ms.VisitLabel(label) })
}
func (m *methodRecorder) VisitTryCatchBlock(start, end, handler *Label, catchType string) {
	m.events = append(m.events, func(ms MethodSink) { ms.VisitTryCatchBlock(start, end, handler, catchType) })
}
func (m *methodRecorder) VisitLocalVariable(name, descriptor, signature string, start, end *Label, index int) {
	m.events = append(m.events, func(ms MethodSink) { ms.VisitLocalVariable(name, descriptor, signature, start, end, index) })
}
func (m *methodRecorder) VisitLineNumber(line int, start *Label) {
	m.events = append(m.events, func(ms MethodSink) { ms.VisitLineNumber(line, start) })
}
func (m *methodRecorder) VisitMaxs(maxStack, maxLocals int) {
	m.events = append(m.events, func(ms MethodSink) { ms.VisitMaxs(maxStack, maxLocals) })
}
func (m *methodRecorder) VisitEnd() {
	m.events = append(m.events, func(ms MethodSink) { ms.VisitEnd() })
}

// VisitCodeSource implements rawCodeSink so the Parser's fast-path detection
// (an "is this sink a Writer, even indirectly?" check) succeeds when writing
// through a recordingSink, not just when writing directly into a Writer. The
// raw bytes are recorded as just another replayable event, in line with
// every other capability here; replaying into a destination that doesn't
// itself implement rawCodeSink silently drops it, since that destination
// already received the full structural instruction replay instead.
func (m *methodRecorder) VisitCodeSource(raw []byte) {
	m.events = append(m.events, func(ms MethodSink) {
		if rc, ok := ms.(rawCodeSink); ok {
			rc.VisitCodeSource(raw)
		}
	})
}
