// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import "github.com/classfile/classfile/internal/logutil"

// Diagnostic is a non-fatal observation raised during parsing or writing —
// currently only OpaqueAttributeMismatch (§7): "an opaque attribute
// referenced a constant-pool index that has since changed". Processing
// continues; the diagnostic is only surfaced through the configured logger,
// the way the teacher collects non-fatal findings into File.Anomalies
// rather than failing the parse.
type Diagnostic struct {
	Kind    string
	Detail  string
	Attr    string
	Offset  int
}

const DiagnosticOpaqueAttributeMismatch = "OpaqueAttributeMismatch"

// diagnosticSink accumulates diagnostics for the duration of one
// Parser.Accept or Writer.Bytes call and logs each one as it arrives.
type diagnosticSink struct {
	logger      *logutil.Helper
	diagnostics []Diagnostic
}

func newDiagnosticSink(logger *logutil.Helper) *diagnosticSink {
	return &diagnosticSink{logger: logger}
}

func (d *diagnosticSink) warnOpaqueAttributeMismatch(attr string, offset int, detail string) {
	diag := Diagnostic{Kind: DiagnosticOpaqueAttributeMismatch, Attr: attr, Offset: offset, Detail: detail}
	d.diagnostics = append(d.diagnostics, diag)
	d.logger.Warnw("msg", "opaque attribute references a stale constant-pool index",
		"attribute", attr, "offset", offset, "detail", detail)
}

// Diagnostics returns every non-fatal observation recorded so far.
func (d *diagnosticSink) Diagnostics() []Diagnostic { return d.diagnostics }
