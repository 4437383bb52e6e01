package classfile

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/classfile/classfile/internal/classfile/cfg"
	"github.com/classfile/classfile/internal/classfile/symtab"
)

func TestWriterSmallestClass(t *testing.T) {
	w := NewWriter(nil, &WriteOptions{})
	w.VisitHeader(MajorJava1_1, 0, AccPublic|AccSuper, "Empty", "", "java/lang/Object", nil)
	w.VisitEnd()

	out, err := w.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if len(out) < 10 || binary.BigEndian.Uint32(out[0:4]) != Magic {
		t.Fatalf("missing magic, got % x", out[:4])
	}
	if got := binary.BigEndian.Uint16(out[6:8]); got != MajorJava1_1 {
		t.Fatalf("major = %d, want %d", got, MajorJava1_1)
	}
}

func TestWriterExtendsWithFieldAndMethod(t *testing.T) {
	w := NewWriter(nil, &WriteOptions{})
	w.VisitHeader(52, 0, AccPublic|AccSuper, "pkg/Sub", "", "pkg/Base", nil)

	fs := w.VisitField(AccPrivate, "count", "I", "", nil)
	fs.VisitEnd()

	ms := w.VisitMethod(AccPublic, "<init>", "()V", "", nil)
	ms.VisitCode()
	ms.VisitVarInsn(OpALoad, 0)
	ms.VisitMethodInsn(OpInvokeSpecial, "pkg/Base", "<init>", "()V", false)
	ms.VisitInsn(OpReturn)
	ms.VisitMaxs(1, 1)
	ms.VisitEnd()
	w.VisitEnd()

	out, err := w.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if !bytes.Contains(out, []byte("pkg/Sub")) {
		t.Fatalf("this_class name not found in output")
	}
	if !bytes.Contains(out, []byte("count")) {
		t.Fatalf("field name not found in output")
	}
}

func TestWriterWideBranchExpansion(t *testing.T) {
	w := NewWriter(symtab.New(), &WriteOptions{ComputeMaxs: true})
	w.VisitHeader(MajorRequiresFrames, 0, AccPublic|AccSuper, "pkg/Wide", "", "java/lang/Object", nil)

	ms := w.VisitMethod(AccPublic|AccStatic, "run", "()V", "", nil)
	graph := cfg.New()
	target := w.NewLabel(graph)

	ms.VisitCode()
	ms.VisitJumpInsn(OpIfEq, target)
	// Force the forward branch past the signed-16-bit offset range so the
	// layout fixpoint must widen it into a negated-branch/goto_w pair.
	for i := 0; i < 40000; i++ {
		ms.VisitInsn(OpNop)
	}
	ms.VisitLabel(target)
	ms.VisitInsn(OpReturn)
	ms.VisitMaxs(1, 0)
	ms.VisitEnd()
	w.VisitEnd()

	out, err := w.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if len(out) < 40000 {
		t.Fatalf("unexpectedly small output: %d bytes", len(out))
	}
}

// invokeDynamicSink captures the bsmArgs passed to the first
// VisitInvokeDynamicInsn call it sees, leaving every other ClassSink/
// MethodSink capability a no-op.
type invokeDynamicSink struct {
	handle  BootstrapHandle
	bsmArgs []interface{}
}

func (s *invokeDynamicSink) VisitHeader(major, minor uint16, access AccessFlags, thisClass, signature, super string, interfaces []string) {
}
func (s *invokeDynamicSink) VisitSource(file, debugExtension string)                           {}
func (s *invokeDynamicSink) VisitModule(name string, flags AccessFlags, version string) ModuleSink { return nil }
func (s *invokeDynamicSink) VisitNestHost(name string)                                         {}
func (s *invokeDynamicSink) VisitOuterClass(owner, methodName, methodDescriptor string)         {}
func (s *invokeDynamicSink) VisitAnnotation(descriptor string, runtimeVisible bool) AnnotationSink {
	return nil
}
func (s *invokeDynamicSink) VisitTypeAnnotation(typeRef uint32, typePath string, descriptor string, runtimeVisible bool) AnnotationSink {
	return nil
}
func (s *invokeDynamicSink) VisitAttribute(attr OpaqueAttribute)                      {}
func (s *invokeDynamicSink) VisitNestMember(name string)                             {}
func (s *invokeDynamicSink) VisitPermittedSubclass(name string)                      {}
func (s *invokeDynamicSink) VisitInnerClass(name, outer, inner string, access AccessFlags) {}
func (s *invokeDynamicSink) VisitRecordComponent(name, descriptor, signature string) RecordSink {
	return nil
}
func (s *invokeDynamicSink) VisitField(access AccessFlags, name, descriptor, signature string, constantValue interface{}) FieldSink {
	return nil
}
func (s *invokeDynamicSink) VisitMethod(access AccessFlags, name, descriptor, signature string, exceptions []string) MethodSink {
	return &invokeDynamicMethodSink{parent: s}
}
func (s *invokeDynamicSink) VisitEnd() {}

type invokeDynamicMethodSink struct {
	noopMethodSink
	parent *invokeDynamicSink
}

func (m *invokeDynamicMethodSink) VisitInvokeDynamicInsn(name, descriptor string, bsmHandle BootstrapHandle, bsmArgs []interface{}) {
	m.parent.handle = bsmHandle
	m.parent.bsmArgs = bsmArgs
}

// noopMethodSink implements every MethodSink capability as a no-op, letting
// a test embed it and override only the calls it cares about.
type noopMethodSink struct{}

func (noopMethodSink) VisitAnnotationDefault() AnnotationSink { return nil }
func (noopMethodSink) VisitParameterAnnotation(parameter int, descriptor string, runtimeVisible bool) AnnotationSink {
	return nil
}
func (noopMethodSink) VisitAnnotation(descriptor string, runtimeVisible bool) AnnotationSink {
	return nil
}
func (noopMethodSink) VisitTypeAnnotation(typeRef uint32, typePath string, descriptor string, runtimeVisible bool) AnnotationSink {
	return nil
}
func (noopMethodSink) VisitAttribute(attr OpaqueAttribute)                                        {}
func (noopMethodSink) VisitParameter(name string, access AccessFlags)                              {}
func (noopMethodSink) VisitCode()                                                                  {}
func (noopMethodSink) VisitFrame(kind FrameKind, localCountOrDelta int, localTypes []VerificationType, stackCount int, stackTypes []VerificationType) {
}
func (noopMethodSink) VisitInsn(opcode Opcode)                                      {}
func (noopMethodSink) VisitIntInsn(opcode Opcode, operand int)                      {}
func (noopMethodSink) VisitVarInsn(opcode Opcode, slot int)                         {}
func (noopMethodSink) VisitTypeInsn(opcode Opcode, typeName string)                 {}
func (noopMethodSink) VisitFieldInsn(opcode Opcode, owner, name, descriptor string) {}
func (noopMethodSink) VisitMethodInsn(opcode Opcode, owner, name, descriptor string, isInterface bool) {
}
func (noopMethodSink) VisitInvokeDynamicInsn(name, descriptor string, bsmHandle BootstrapHandle, bsmArgs []interface{}) {
}
func (noopMethodSink) VisitJumpInsn(opcode Opcode, label *Label)                             {}
func (noopMethodSink) VisitLdcInsn(constant interface{})                                     {}
func (noopMethodSink) VisitIincInsn(slot int, delta int)                                      {}
func (noopMethodSink) VisitTableSwitchInsn(min, max int, dflt *Label, labels []*Label)        {}
func (noopMethodSink) VisitLookupSwitchInsn(dflt *Label, keys []int32, labels []*Label)       {}
func (noopMethodSink) VisitMultiANewArrayInsn(descriptor string, dims int)                    {}
func (noopMethodSink) VisitLabel(label *Label)                                                {}
func (noopMethodSink) VisitTryCatchBlock(start, end, handler *Label, catchType string)        {}
func (noopMethodSink) VisitLocalVariable(name, descriptor, signature string, start, end *Label, index int) {
}
func (noopMethodSink) VisitLineNumber(line int, start *Label) {}
func (noopMethodSink) VisitMaxs(maxStack, maxLocals int)      {}
func (noopMethodSink) VisitEnd()                              {}

// TestWriterInvokeDynamicBootstrapArgsRoundTrip guards against the static
// bootstrap arguments (the common case for LambdaMetafactory/string
// concatenation condy sites) getting silently dropped between the
// BootstrapMethods table and the invokedynamic instruction that references
// it (§4.2/§4.3).
func TestWriterInvokeDynamicBootstrapArgsRoundTrip(t *testing.T) {
	st := symtab.New()
	w := NewWriter(st, &WriteOptions{})
	w.VisitHeader(52, 0, AccPublic|AccSuper, "pkg/Dyn", "", "java/lang/Object", nil)

	handle := BootstrapHandle{Kind: RefInvokeStatic, Owner: "pkg/Boot", Name: "bootstrap", Descriptor: "(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;)Ljava/lang/invoke/CallSite;"}
	bsmArgs := []interface{}{"fmt:%s", int32(7)}

	ms := w.VisitMethod(AccPublic|AccStatic, "run", "()V", "", nil)
	ms.VisitCode()
	ms.VisitInvokeDynamicInsn("concat", "(Ljava/lang/String;)Ljava/lang/String;", handle, bsmArgs)
	ms.VisitInsn(OpReturn)
	ms.VisitMaxs(1, 0)
	ms.VisitEnd()
	w.VisitEnd()

	out, err := w.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	p, err := NewParser(out, &ParseOptions{})
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}
	sink := &invokeDynamicSink{}
	if err := p.Accept(sink, DefaultCodecs()); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	if sink.handle.Owner != handle.Owner || sink.handle.Name != handle.Name {
		t.Fatalf("handle = %+v, want %+v", sink.handle, handle)
	}
	if len(sink.bsmArgs) != len(bsmArgs) {
		t.Fatalf("bsmArgs = %v, want %v", sink.bsmArgs, bsmArgs)
	}
	if sink.bsmArgs[0] != bsmArgs[0] || sink.bsmArgs[1] != bsmArgs[1] {
		t.Fatalf("bsmArgs = %v, want %v", sink.bsmArgs, bsmArgs)
	}
}

func TestWriterOuterClassEncodesIndices(t *testing.T) {
	w := NewWriter(nil, &WriteOptions{})
	w.VisitHeader(52, 0, AccPublic|AccSuper, "pkg/Inner", "", "java/lang/Object", nil)
	w.VisitOuterClass("pkg/Outer", "run", "()V")
	w.VisitEnd()

	out, err := w.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if !bytes.Contains(out, []byte(AttrEnclosingMethod)) {
		t.Fatalf("EnclosingMethod attribute name not found")
	}
}
