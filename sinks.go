// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

// The event-sink surface (§6, §9 "Polymorphic event sinks"). Each capability
// is its own small interface so an adapter can implement only the ones it
// cares about; delegation to an inner sink is explicit (a nil-checked field
// access), never automatic, matching §9's "delegation is explicit, not
// virtual-by-default" requirement. This mirrors the teacher's style of many
// small structs each owning one concern (Section, Import, Export) rather
// than one monolithic interface.

// OpaqueAttribute is the fallback representation for an attribute whose name
// is not registered with an AttributeCodec (§3, §4.7): its raw bytes are
// kept and written back verbatim.
type OpaqueAttribute struct {
	Name string
	Data []byte
}

// ClassSink receives the top-level structure of a classfile. The methods
// are listed in §4.3 "Event ordering" order; Parser.Accept delivers
// class-attribute events after the fields and methods instead (see its doc
// comment).
type ClassSink interface {
	// VisitHeader is always the first call.
	VisitHeader(major, minor uint16, access AccessFlags, thisClass string, signature string, super string, interfaces []string)

	// VisitSource is optional and, if present, follows VisitHeader.
	VisitSource(file, debugExtension string)

	// VisitModule is optional; a non-nil return receives the module body.
	VisitModule(name string, flags AccessFlags, version string) ModuleSink

	VisitNestHost(name string)
	VisitOuterClass(owner, methodName, methodDescriptor string)

	// VisitAnnotation/VisitTypeAnnotation may be interleaved with
	// VisitAttribute any number of times.
	VisitAnnotation(descriptor string, runtimeVisible bool) AnnotationSink
	VisitTypeAnnotation(typeRef uint32, typePath string, descriptor string, runtimeVisible bool) AnnotationSink
	VisitAttribute(attr OpaqueAttribute)

	VisitNestMember(name string)
	VisitPermittedSubclass(name string)
	VisitInnerClass(name, outer, inner string, access AccessFlags)
	VisitRecordComponent(name, descriptor, signature string) RecordSink

	VisitField(access AccessFlags, name, descriptor, signature string, constantValue interface{}) FieldSink
	VisitMethod(access AccessFlags, name, descriptor, signature string, exceptions []string) MethodSink

	VisitEnd()
}

// FieldSink receives a field's own annotations/attributes.
type FieldSink interface {
	VisitAnnotation(descriptor string, runtimeVisible bool) AnnotationSink
	VisitTypeAnnotation(typeRef uint32, typePath string, descriptor string, runtimeVisible bool) AnnotationSink
	VisitAttribute(attr OpaqueAttribute)
	VisitEnd()
}

// RecordSink receives a record component's own annotations/attributes.
type RecordSink interface {
	VisitAnnotation(descriptor string, runtimeVisible bool) AnnotationSink
	VisitTypeAnnotation(typeRef uint32, typePath string, descriptor string, runtimeVisible bool) AnnotationSink
	VisitAttribute(attr OpaqueAttribute)
	VisitEnd()
}

// ModuleSink receives the body of a Module attribute.
type ModuleSink interface {
	VisitRequire(module string, access AccessFlags, version string)
	VisitExport(pkg string, access AccessFlags, modules []string)
	VisitOpen(pkg string, access AccessFlags, modules []string)
	VisitUse(service string)
	VisitProvide(service string, providers []string)
	VisitEnd()
}

// AnnotationSink receives an annotation's element/value pairs, including
// nested annotations and arrays.
type AnnotationSink interface {
	Visit(name string, value interface{})
	VisitEnum(name, descriptor, value string)
	VisitAnnotation(name, descriptor string) AnnotationSink
	VisitArray(name string) AnnotationSink
	VisitEnd()
}

// MethodSink extends the class-level capability set with bytecode and
// debug-table callbacks (§6 "MethodSink adds...").
type MethodSink interface {
	VisitAnnotationDefault() AnnotationSink
	VisitParameterAnnotation(parameter int, descriptor string, runtimeVisible bool) AnnotationSink
	VisitAnnotation(descriptor string, runtimeVisible bool) AnnotationSink
	VisitTypeAnnotation(typeRef uint32, typePath string, descriptor string, runtimeVisible bool) AnnotationSink
	VisitAttribute(attr OpaqueAttribute)
	VisitParameter(name string, access AccessFlags)

	VisitCode()
	VisitFrame(kind FrameKind, localCountOrDelta int, localTypes []VerificationType, stackCount int, stackTypes []VerificationType)

	VisitInsn(opcode Opcode)
	VisitIntInsn(opcode Opcode, operand int)
	VisitVarInsn(opcode Opcode, slot int)
	VisitTypeInsn(opcode Opcode, typeName string)
	VisitFieldInsn(opcode Opcode, owner, name, descriptor string)
	VisitMethodInsn(opcode Opcode, owner, name, descriptor string, isInterface bool)
	VisitInvokeDynamicInsn(name, descriptor string, bsmHandle BootstrapHandle, bsmArgs []interface{})
	VisitJumpInsn(opcode Opcode, label *Label)
	VisitLdcInsn(constant interface{})
	VisitIincInsn(slot int, delta int)
	VisitTableSwitchInsn(min, max int, dflt *Label, labels []*Label)
	VisitLookupSwitchInsn(dflt *Label, keys []int32, labels []*Label)
	VisitMultiANewArrayInsn(descriptor string, dims int)

	VisitLabel(label *Label)
	VisitTryCatchBlock(start, end, handler *Label, catchType string)
	VisitLocalVariable(name, descriptor, signature string, start, end *Label, index int)
	VisitLineNumber(line int, start *Label)

	VisitMaxs(maxStack, maxLocals int)
	VisitEnd()
}

// FrameKind distinguishes the compact stack-map-frame wire forms emitted to
// VisitFrame, numbered per §4.6.
type FrameKind int

const (
	FrameKindSame FrameKind = iota
	FrameKindSameLocals1StackItem
	FrameKindSameLocals1StackItemExtended
	FrameKindChop
	FrameKindSameExtended
	FrameKindAppend
	FrameKindFull
)

// VerificationType is the sink-facing shape of one abstract-type lattice
// element (§3 "Frame state"): a tag plus, for Object/Uninitialized, either
// an internal class name or a label marking the `new` site.
type VerificationType struct {
	Tag          VerificationTag
	InternalName string
	NewTarget    *Label
}

// VerificationTag enumerates the frame verification_type_info tags (JVM
// Spec §4.7.4).
type VerificationTag int

const (
	VTTop VerificationTag = iota
	VTInteger
	VTFloat
	VTDouble
	VTLong
	VTNull
	VTUninitializedThis
	VTObject
	VTUninitialized
)

// BootstrapHandle is the sink-facing shape of a MethodHandle reference used
// as an invokedynamic bootstrap.
type BootstrapHandle struct {
	Kind        ReferenceKind
	Owner       string
	Name        string
	Descriptor  string
	IsInterface bool
}
