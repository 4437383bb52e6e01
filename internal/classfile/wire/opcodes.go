package wire

// Opcode is a single bytecode instruction's numeric value.
type Opcode uint16

// Standard opcodes (JVM Spec §6). Only the mnemonics the parser/writer need
// to reason about structurally (branch targets, switch forms, wide-prefixed
// forms, ldc forms) are named individually; the rest are reachable via the
// opcodeInfo table by numeric value.
const (
	OpNop         Opcode = 0x00
	OpAConstNull  Opcode = 0x01
	OpIConstM1    Opcode = 0x02
	OpIConst0     Opcode = 0x03
	OpIConst1     Opcode = 0x04
	OpIConst5     Opcode = 0x08
	OpBipush      Opcode = 0x10
	OpSipush      Opcode = 0x11
	OpLdc         Opcode = 0x12
	OpLdcW        Opcode = 0x13
	OpLdc2W       Opcode = 0x14
	OpILoad       Opcode = 0x15
	OpALoad       Opcode = 0x19
	OpIStore      Opcode = 0x36
	OpAStore      Opcode = 0x3a
	OpIInc        Opcode = 0x84
	OpIfEq        Opcode = 0x99
	OpIfNe        Opcode = 0x9a
	OpIfICmpEq    Opcode = 0x9f
	OpGoto        Opcode = 0xa7
	OpJsr         Opcode = 0xa8
	OpRet         Opcode = 0xa9
	OpTableSwitch Opcode = 0xaa
	OpLookupSwitch Opcode = 0xab
	OpIReturn     Opcode = 0xac
	OpReturn      Opcode = 0xb1
	OpGetStatic   Opcode = 0xb2
	OpPutStatic   Opcode = 0xb3
	OpGetField    Opcode = 0xb4
	OpPutField    Opcode = 0xb5
	OpInvokeVirtual   Opcode = 0xb6
	OpInvokeSpecial   Opcode = 0xb7
	OpInvokeStatic    Opcode = 0xb8
	OpInvokeInterface Opcode = 0xb9
	OpInvokeDynamic   Opcode = 0xba
	OpNew             Opcode = 0xbb
	OpNewArray        Opcode = 0xbc
	OpANewArray       Opcode = 0xbd
	OpArrayLength     Opcode = 0xbe
	OpAThrow          Opcode = 0xbf
	OpCheckCast       Opcode = 0xc0
	OpInstanceOf      Opcode = 0xc1
	OpMonitorEnter    Opcode = 0xc2
	OpMonitorExit     Opcode = 0xc3
	OpWide            Opcode = 0xc4
	OpMultiANewArray  Opcode = 0xc5
	OpIfNull          Opcode = 0xc6
	OpIfNonNull       Opcode = 0xc7
	OpGotoW           Opcode = 0xc8
	OpJsrW            Opcode = 0xc9
)

// Writer-internal synthetic opcodes (§6, §4.3 edge cases), numbered in an
// unused region (220 and up, past goto_w/jsr_w and the reserved breakpoint
// opcode) so they never collide with real opcodes. This module's Writer
// never emits them: it widens out-of-range branches in memory (see
// expandWideBranches in writer.go). The Parser treats them as 5-byte jumps
// with a 32-bit offset and replays them through VisitJumpInsn with the
// synthetic opcode unchanged; it does not re-expand them.
const (
	// OpSynthGotoForward marks a forward goto whose true target offset did
	// not fit in a signed 16-bit delta; it carries a 32-bit forward
	// displacement instead.
	OpSynthGotoForward Opcode = 220

	// OpSynthIfForward marks a forward conditional branch in the same
	// situation, also carrying a 32-bit forward displacement.
	OpSynthIfForward Opcode = 221
)

// InstructionKind classifies an opcode for the purposes of length
// computation and the label-discovery pass.
type InstructionKind int

const (
	KindNoOperand InstructionKind = iota
	KindU1
	KindS1
	KindS2 // includes branch targets (relative s2 offset)
	KindS4 // wide forward branch (goto_w/jsr_w) and synthetic opcodes
	KindVarU1
	KindVarU1U1 // iinc: index u1, const s1 (s2/s2 under wide)
	KindCPIndexU1
	KindCPIndexU2
	KindInvokeInterface
	KindInvokeDynamic
	KindNewArray
	KindMultiANewArray
	KindTableSwitch
	KindLookupSwitch
	KindWide
)

// opcodeLength gives the fixed instruction length in bytes (opcode byte
// included) for opcodes whose length does not depend on alignment padding;
// tableswitch/lookupswitch are computed separately by the caller, which
// knows the instruction's offset.
func opcodeLength(op Opcode) (length int, kind InstructionKind, ok bool) {
	switch {
	case op <= 0x0f: // nop .. dconst_1
		return 1, KindNoOperand, true
	case op == OpBipush:
		return 2, KindS1, true
	case op == OpSipush:
		return 3, KindS2, true
	case op == OpLdc:
		return 2, KindCPIndexU1, true
	case op == OpLdcW || op == OpLdc2W:
		return 3, KindCPIndexU2, true
	case op >= OpILoad && op <= OpALoad: // iload/lload/fload/dload/aload: u1 index
		return 2, KindVarU1, true
	case op >= 0x1a && op <= 0x35: // iload_0.. through array-load ops: no operand
		return 1, KindNoOperand, true
	case op >= OpIStore && op <= 0x3d: // istore/lstore/fstore/dstore/astore: u1 index (0x36-0x3a)
		if op <= OpAStore {
			return 2, KindVarU1, true
		}
		return 1, KindNoOperand, true // istore_0.. through array-store ops: no operand
	case op >= 0x3e && op <= 0x83: // stack/math/conv ops with no operand
		return 1, KindNoOperand, true
	case op == OpIInc:
		return 3, KindVarU1U1, true
	case (op >= OpIfEq && op <= 0xa6) || op == OpGoto || op == OpJsr: // ifeq..if_acmpne (0x99-0xa6)
		return 3, KindS2, true
	case op == OpRet:
		return 2, KindVarU1, true
	case op == OpTableSwitch:
		return 0, KindTableSwitch, true
	case op == OpLookupSwitch:
		return 0, KindLookupSwitch, true
	case op >= OpIReturn && op <= OpReturn:
		return 1, KindNoOperand, true
	case op >= OpGetStatic && op <= OpInvokeStatic:
		return 3, KindCPIndexU2, true
	case op == OpInvokeInterface:
		return 5, KindInvokeInterface, true
	case op == OpInvokeDynamic:
		return 5, KindInvokeDynamic, true
	case op == OpNew || op == OpANewArray || op == OpCheckCast || op == OpInstanceOf:
		return 3, KindCPIndexU2, true
	case op == OpNewArray:
		return 2, KindNewArray, true
	case op == OpArrayLength || op == OpAThrow || op == OpMonitorEnter || op == OpMonitorExit:
		return 1, KindNoOperand, true
	case op == OpWide:
		return 0, KindWide, true
	case op == OpMultiANewArray:
		return 4, KindMultiANewArray, true
	case op == OpIfNull || op == OpIfNonNull:
		return 3, KindS2, true
	case op == OpGotoW || op == OpJsrW:
		return 5, KindS4, true
	case op == OpSynthGotoForward || op == OpSynthIfForward:
		return 5, KindS4, true
	default:
		return 0, KindNoOperand, false
	}
}

// OpcodeLength is the exported form of opcodeLength, used by the root
// package's Parser/Writer instruction walk.
func OpcodeLength(op Opcode) (length int, kind InstructionKind, ok bool) { return opcodeLength(op) }

// IsBranch is the exported form of isBranch.
func IsBranch(op Opcode) bool { return isBranch(op) }

// IsTerminator is the exported form of isTerminator.
func IsTerminator(op Opcode) bool { return isTerminator(op) }

// isBranch reports whether op's operand is a (possibly synthetic) jump
// target, used by the label-discovery pass (§4.3 step 1).
func isBranch(op Opcode) bool {
	switch op {
	case OpIfEq, OpIfNe, OpGoto, OpJsr, OpGotoW, OpJsrW, OpIfNull, OpIfNonNull,
		OpSynthGotoForward, OpSynthIfForward:
		return true
	}
	if op >= OpIfEq && op <= 0xa6 {
		return true
	}
	return false
}

// isTerminator reports whether op ends a basic block: an unconditional
// branch, a return, or a throw. Conditional branches and table/lookup
// switches also terminate a block, handled by the caller since they are not
// a single opcode value.
func isTerminator(op Opcode) bool {
	switch op {
	case OpGoto, OpGotoW, OpAThrow, OpRet, OpSynthGotoForward:
		return true
	}
	if op >= OpIReturn && op <= OpReturn {
		return true
	}
	return false
}
