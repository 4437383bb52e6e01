package classfile

// Fuzz exercises the parse/write round trip against arbitrary input, the
// classfile counterpart of the teacher's fuzz.go.
func Fuzz(data []byte) int {
	p, err := NewParser(data, &ParseOptions{})
	if err != nil {
		return 0
	}
	rec := newRecordingSink()
	if err := p.Accept(rec, DefaultCodecs()); err != nil {
		return 0
	}
	w := NewWriter(p.SymbolTable(), &WriteOptions{})
	rec.replayInto(w)
	if _, err := w.Bytes(); err != nil {
		return 0
	}
	return 1
}
