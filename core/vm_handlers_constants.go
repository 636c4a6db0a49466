package core

import "math/big"

// Opcode handlers for the Constants family (spec.md §4.D): pushing literal
// integers, booleans, null, pointers and byte buffers onto the evaluation
// stack. Grounded on the teacher's push-closures in virtual_machine.go's
// LightVM.Execute, generalized from raw []byte pushes to typed StackItems.
func init() {
	RegisterOpcode(PUSHT, func(e *ExecutionEngine, ins Instruction) error {
		return e.pushItem(BooleanItem{Value: true})
	})
	RegisterOpcode(PUSHF, func(e *ExecutionEngine, ins Instruction) error {
		return e.pushItem(BooleanItem{Value: false})
	})
	RegisterOpcode(PUSHNULL, func(e *ExecutionEngine, ins Instruction) error {
		return e.pushItem(NullItem{})
	})

	RegisterOpcode(PUSHA, func(e *ExecutionEngine, ins Instruction) error {
		offset := int(int32(decodeLenLE(ins.Operand)))
		target := ins.Offset + offset
		return e.pushItem(PointerItem{Script: e.CurrentContext().Script, Position: target})
	})

	for i, op := range []Opcode{PUSHINT8, PUSHINT16, PUSHINT32, PUSHINT64, PUSHINT128, PUSHINT256} {
		width := []int{1, 2, 4, 8, 16, 32}[i]
		op, width := op, width
		RegisterOpcode(op, func(e *ExecutionEngine, ins Instruction) error {
			if len(ins.Operand) != width {
				return errInvalidOperand(ins)
			}
			item, err := NewIntegerItem(bigIntFromLE(ins.Operand))
			if err != nil {
				return err
			}
			return e.pushItem(item)
		})
	}

	for i, op := range []Opcode{PUSHDATA1, PUSHDATA2, PUSHDATA4} {
		_ = i
		op := op
		RegisterOpcode(op, func(e *ExecutionEngine, ins Instruction) error {
			buf := make([]byte, len(ins.Operand))
			copy(buf, ins.Operand)
			return e.pushItem(ByteStringItem{Value: buf})
		})
	}

	smallPushes := []struct {
		op  Opcode
		val int64
	}{
		{PUSHM1, -1}, {PUSH0, 0}, {PUSH1, 1}, {PUSH2, 2}, {PUSH3, 3}, {PUSH4, 4},
		{PUSH5, 5}, {PUSH6, 6}, {PUSH7, 7}, {PUSH8, 8}, {PUSH9, 9}, {PUSH10, 10},
		{PUSH11, 11}, {PUSH12, 12}, {PUSH13, 13}, {PUSH14, 14}, {PUSH15, 15}, {PUSH16, 16},
	}
	for _, p := range smallPushes {
		v := p.val
		RegisterOpcode(p.op, func(e *ExecutionEngine, ins Instruction) error {
			item, err := NewIntegerItem(big.NewInt(v))
			if err != nil {
				return err
			}
			return e.pushItem(item)
		})
	}
}

// bigIntFromLE interprets b as a two's-complement, little-endian signed
// integer, matching the wire format pushed by PUSHINT8..PUSHINT256.
func bigIntFromLE(b []byte) *big.Int {
	if len(b) == 0 {
		return big.NewInt(0)
	}
	be := make([]byte, len(b))
	for i, bb := range b {
		be[len(b)-1-i] = bb
	}
	v := new(big.Int).SetBytes(be)
	if be[0]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(len(b)*8)))
	}
	return v
}

func errInvalidOperand(ins Instruction) error {
	return &vmThrow{value: ByteStringItem{Value: []byte(ins.Opcode.String() + ": invalid operand")}}
}
