package classfile

import (
	"bytes"
	"testing"
)

func buildSampleClass(t *testing.T) []byte {
	t.Helper()
	w := NewWriter(nil, &WriteOptions{})
	w.VisitHeader(52, 0, AccPublic|AccSuper, "pkg/Sample", "", "java/lang/Object", []string{"java/lang/Runnable"})
	w.VisitSource("Sample.java", "")

	fs := w.VisitField(AccPrivate|AccStatic, "VERSION", "I", "", 1)
	fs.VisitEnd()

	ms := w.VisitMethod(AccPublic, "run", "()V", "", nil)
	ms.VisitCode()
	ms.VisitInsn(OpReturn)
	ms.VisitMaxs(0, 1)
	ms.VisitEnd()
	w.VisitEnd()

	out, err := w.Bytes()
	if err != nil {
		t.Fatalf("building sample class: %v", err)
	}
	return out
}

func TestClassFileLoadThenBytesRoundTrips(t *testing.T) {
	src := buildSampleClass(t)

	cf, err := Load(bytes.NewReader(src), &ParseOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cf.Header().Major != 52 {
		t.Fatalf("Major = %d, want 52", cf.Header().Major)
	}

	out, err := cf.Bytes(&WriteOptions{})
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if !bytes.Contains(out, []byte("pkg/Sample")) {
		t.Fatalf("round-tripped bytes missing this_class name")
	}
	if !bytes.Contains(out, []byte("run")) {
		t.Fatalf("round-tripped bytes missing method name")
	}
}

func TestClassFileBytesCallableMultipleTimes(t *testing.T) {
	src := buildSampleClass(t)

	cf, err := Load(bytes.NewReader(src), &ParseOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	first, err := cf.Bytes(&WriteOptions{})
	if err != nil {
		t.Fatalf("first Bytes: %v", err)
	}
	second, err := cf.Bytes(&WriteOptions{ComputeMaxs: true})
	if err != nil {
		t.Fatalf("second Bytes: %v", err)
	}
	if len(first) == 0 || len(second) == 0 {
		t.Fatalf("expected non-empty output from both calls")
	}
}
