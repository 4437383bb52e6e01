package classfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewFromFileParsesMappedBytes(t *testing.T) {
	src := buildSampleClass(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "Sample.class")
	if err := os.WriteFile(path, src, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	mp, err := NewFromFile(path, &ParseOptions{})
	if err != nil {
		t.Fatalf("NewFromFile: %v", err)
	}
	defer mp.Close()

	if mp.Header().Major != 52 {
		t.Fatalf("Major = %d, want 52", mp.Header().Major)
	}

	sink := &capturingSink{}
	if err := mp.Accept(sink, DefaultCodecs()); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if sink.thisName != "pkg/Sample" {
		t.Fatalf("thisName = %q, want pkg/Sample", sink.thisName)
	}

	if err := mp.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNewFromFileMissingFile(t *testing.T) {
	_, err := NewFromFile(filepath.Join(t.TempDir(), "missing.class"), nil)
	if err == nil {
		t.Fatalf("expected error opening a missing file")
	}
}
