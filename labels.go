// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import "github.com/classfile/classfile/internal/classfile/cfg"

// Label is the sink-facing handle for a position in a method's bytecode
// (§3 "Label"), used by callers of VisitJumpInsn/VisitTableSwitchInsn/
// VisitTryCatchBlock/VisitLocalVariable/VisitLineNumber/VisitLabel before
// its eventual bytecode offset is known. It wraps an internal
// cfg.LabelID; callers should treat it as an opaque reference and only ever
// obtain one from Writer.NewLabel.
type Label struct {
	id       cfg.LabelID
	resolved bool
	offset   int
}

// newLabel returns a fresh, unresolved label scoped to graph. Writer.NewLabel
// is the public constructor built on it; the Writer also uses it directly
// for the skip label expandWideBranches inserts. The Parser builds its own
// resolved labels instead.
func newLabel(graph *cfg.Graph) *Label {
	return &Label{id: graph.NewForwardLabel()}
}
