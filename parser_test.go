package classfile

import (
	"errors"
	"testing"
)

// capturingSink records just enough of a class walk to assert against,
// delegating every other capability to nil (safe: both acceptField and
// acceptMethod nil-check their VisitXxx return value before using it).
type capturingSink struct {
	thisName, superName string
	interfaces          []string
	fields, methods     []string
}

func (c *capturingSink) VisitHeader(major, minor uint16, access AccessFlags, thisClass, signature, super string, interfaces []string) {
	c.thisName, c.superName = thisClass, super
	c.interfaces = interfaces
}
func (c *capturingSink) VisitSource(file, debugExtension string)                           {}
func (c *capturingSink) VisitModule(name string, flags AccessFlags, version string) ModuleSink { return nil }
func (c *capturingSink) VisitNestHost(name string)                                         {}
func (c *capturingSink) VisitOuterClass(owner, methodName, methodDescriptor string)         {}
func (c *capturingSink) VisitAnnotation(descriptor string, runtimeVisible bool) AnnotationSink {
	return nil
}
func (c *capturingSink) VisitTypeAnnotation(typeRef uint32, typePath string, descriptor string, runtimeVisible bool) AnnotationSink {
	return nil
}
func (c *capturingSink) VisitAttribute(attr OpaqueAttribute)                      {}
func (c *capturingSink) VisitNestMember(name string)                             {}
func (c *capturingSink) VisitPermittedSubclass(name string)                      {}
func (c *capturingSink) VisitInnerClass(name, outer, inner string, access AccessFlags) {}
func (c *capturingSink) VisitRecordComponent(name, descriptor, signature string) RecordSink {
	return nil
}
func (c *capturingSink) VisitField(access AccessFlags, name, descriptor, signature string, constantValue interface{}) FieldSink {
	c.fields = append(c.fields, name)
	return nil
}
func (c *capturingSink) VisitMethod(access AccessFlags, name, descriptor, signature string, exceptions []string) MethodSink {
	c.methods = append(c.methods, name)
	return nil
}
func (c *capturingSink) VisitEnd() {}

func TestParserAcceptWalksHeaderFieldsAndMethods(t *testing.T) {
	src := buildSampleClass(t)

	p, err := NewParser(src, &ParseOptions{})
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}

	sink := &capturingSink{}
	if err := p.Accept(sink, DefaultCodecs()); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	if sink.thisName != "pkg/Sample" {
		t.Fatalf("thisName = %q, want pkg/Sample", sink.thisName)
	}
	if sink.superName != "java/lang/Object" {
		t.Fatalf("superName = %q, want java/lang/Object", sink.superName)
	}
	if len(sink.interfaces) != 1 || sink.interfaces[0] != "java/lang/Runnable" {
		t.Fatalf("interfaces = %v, want [java/lang/Runnable]", sink.interfaces)
	}
	if len(sink.fields) != 1 || sink.fields[0] != "VERSION" {
		t.Fatalf("fields = %v, want [VERSION]", sink.fields)
	}
	if len(sink.methods) != 1 || sink.methods[0] != "run" {
		t.Fatalf("methods = %v, want [run]", sink.methods)
	}
}

func TestParserMalformedInputsRejected(t *testing.T) {
	good := buildSampleClass(t)

	cases := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrMalformed},
		{"truncatedMagic", good[:2], ErrMalformed},
		{"badMagic", append([]byte{0, 0, 0, 0}, good[4:]...), ErrMalformed},
		{"versionTooHigh", patchMajor(good, 0xffff), ErrUnsupportedVersion},
		{"versionTooLow", patchMajor(good, 1), ErrMalformed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewParser(tc.data, &ParseOptions{})
			if err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("error = %v, want wrapping %v", err, tc.want)
			}
		})
	}
}

func patchMajor(classBytes []byte, major uint16) []byte {
	out := append([]byte(nil), classBytes...)
	out[6] = byte(major >> 8)
	out[7] = byte(major)
	return out
}
