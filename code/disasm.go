package code

import (
	"fmt"
	"strings"
)

// Disassemble renders ins one instruction per line as:
//
//	NNNN  OPCODE  OPERAND  ; inline
//
// where NNNN is the zero-padded byte offset, OPERAND is the raw
// operand value, and the trailing comment resolves a constant-pool
// index against consts (when op reads one) or a jump offset against
// a synthetic label (L0, L1, ... in the order jump targets are first
// reached scanning forward through ins). This is the golden-test
// format the disassembly oracle compares against.
func Disassemble(ins Instructions, consts []fmt.Stringer) string {
	var out strings.Builder

	labels := jumpLabels(ins)

	i := 0
	for i < len(ins) {
		op := Opcode(ins[i])
		def, err := Lookup(op)
		if err != nil {
			fmt.Fprintf(&out, "%04d  ERROR: %s\n", i, err)
			i++
			continue
		}

		operands, read := ReadOperands(def, ins[i+1:])
		fmt.Fprintf(&out, "%04d  %s", i, def.Name)

		for idx, width := range def.OperandWidths {
			if width == 2 && isJumpOp(op) {
				fmt.Fprintf(&out, "  %d", int16(uint16(operands[idx])))
			} else {
				fmt.Fprintf(&out, "  %d", operands[idx])
			}
		}

		if inline := inlineComment(op, operands, i, consts, labels); inline != "" {
			fmt.Fprintf(&out, "  ; %s", inline)
		}
		out.WriteByte('\n')

		i += 1 + read
	}
	return out.String()
}

func isJumpOp(op Opcode) bool {
	switch op {
	case OpJump, OpJumpIfFalse, OpJumpIfTrue, OpJumpIfNullish:
		return true
	default:
		return false
	}
}

// jumpLabels scans ins for every jump target and assigns it a label
// (L0, L1, ...) in the order targets are first reached while scanning
// forward from offset 0.
func jumpLabels(ins Instructions) map[int]string {
	labels := map[int]string{}
	order := 0

	i := 0
	for i < len(ins) {
		op := Opcode(ins[i])
		def, err := Lookup(op)
		if err != nil {
			i++
			continue
		}
		operands, read := ReadOperands(def, ins[i+1:])
		if isJumpOp(op) && len(operands) > 0 {
			target := i + 1 + read + int(int16(uint16(operands[0])))
			if _, ok := labels[target]; !ok {
				labels[target] = fmt.Sprintf("L%d", order)
				order++
			}
		}
		i += 1 + read
	}
	return labels
}

func inlineComment(op Opcode, operands []int, at int, consts []fmt.Stringer, labels map[int]string) string {
	switch op {
	case OpConstant, OpCreateClosure, OpLoadGlobal, OpStoreGlobal, OpLoadNamed, OpStoreNamed:
		if len(operands) == 0 {
			return ""
		}
		idx := operands[0]
		if idx >= 0 && idx < len(consts) {
			return consts[idx].String()
		}
		return ""
	case OpJump, OpJumpIfFalse, OpJumpIfTrue, OpJumpIfNullish:
		offset := int16(uint16(operands[0]))
		target := at + 1 + 2 + int(offset)
		if label, ok := labels[target]; ok {
			return label
		}
		return ""
	default:
		return ""
	}
}
