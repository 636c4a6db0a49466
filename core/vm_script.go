package core

import "fmt"

// decodeInstruction reads the opcode at offset ip and, for opcodes that
// carry an operand, the operand bytes that follow it (spec.md §4.D). A
// negative operandSize means a variable-length push: the first -size bytes
// are a little-endian length prefix, followed by that many data bytes.
func decodeInstruction(script []byte, ip int) (Instruction, error) {
	if ip < 0 || ip >= len(script) {
		return Instruction{}, fmt.Errorf("vm: instruction pointer %d out of range", ip)
	}
	op := Opcode(script[ip])
	if _, known := opcodeNames[op]; !known {
		return Instruction{}, fmt.Errorf("vm: unrecognized opcode byte 0x%02x at offset %d", script[ip], ip)
	}

	pos := ip + 1
	size := operandSize(op)

	if size >= 0 {
		if pos+size > len(script) {
			return Instruction{}, fmt.Errorf("vm: %s operand overruns script at offset %d", op, ip)
		}
		operand := script[pos : pos+size]
		return Instruction{Opcode: op, Operand: operand, Offset: ip, Next: pos + size}, nil
	}

	prefixLen := -size
	if pos+prefixLen > len(script) {
		return Instruction{}, fmt.Errorf("vm: %s length prefix overruns script at offset %d", op, ip)
	}
	dataLen := decodeLenLE(script[pos : pos+prefixLen])
	pos += prefixLen
	if pos+dataLen > len(script) {
		return Instruction{}, fmt.Errorf("vm: %s data overruns script at offset %d", op, ip)
	}
	operand := script[pos : pos+dataLen]
	return Instruction{Opcode: op, Operand: operand, Offset: ip, Next: pos + dataLen}, nil
}

func decodeLenLE(b []byte) int {
	n := 0
	for i := len(b) - 1; i >= 0; i-- {
		n = n<<8 | int(b[i])
	}
	return n
}

// jumpOpcodes carries a single relative sbyte offset from the instruction's
// own start; ValidateScript confirms the resulting target lands on an
// instruction boundary.
var jumpOpcodes = map[Opcode]bool{
	JMP: true, JMPIF: true, JMPIFNOT: true, JMPEQ: true, JMPNE: true,
	JMPGT: true, JMPGE: true, JMPLT: true, JMPLE: true,
	CALL: true, ENDTRY: true,
}

// ValidateScript walks the full script once, confirming every opcode is
// recognized, every operand fits within the script, and every jump/try
// target lands on an actual instruction boundary (spec.md §4.D "Script
// validation"). It is run once when a script is loaded, not per-step.
func ValidateScript(script []byte) error {
	if len(script) == 0 {
		return fmt.Errorf("vm: empty script")
	}

	boundaries := make(map[int]bool)
	var instructions []Instruction
	ip := 0
	for ip < len(script) {
		ins, err := decodeInstruction(script, ip)
		if err != nil {
			return err
		}
		boundaries[ip] = true
		instructions = append(instructions, ins)
		ip = ins.Next
	}
	boundaries[len(script)] = true // one-past-the-end RET target

	for _, ins := range instructions {
		switch {
		case jumpOpcodes[ins.Opcode]:
			if len(ins.Operand) != 1 {
				return fmt.Errorf("vm: %s missing jump offset at %d", ins.Opcode, ins.Offset)
			}
			target := ins.Offset + int(int8(ins.Operand[0]))
			if !boundaries[target] {
				return fmt.Errorf("vm: %s targets non-instruction offset %d", ins.Opcode, target)
			}
		case ins.Opcode == TRY:
			if len(ins.Operand) != 2 {
				return fmt.Errorf("vm: TRY missing catch/finally offsets at %d", ins.Offset)
			}
			catch := ins.Offset + int(int8(ins.Operand[0]))
			finally := ins.Offset + int(int8(ins.Operand[1]))
			if ins.Operand[0] != 0 && !boundaries[catch] {
				return fmt.Errorf("vm: TRY catch target %d is not an instruction boundary", catch)
			}
			if ins.Operand[1] != 0 && !boundaries[finally] {
				return fmt.Errorf("vm: TRY finally target %d is not an instruction boundary", finally)
			}
		case ins.Opcode == CALLT:
			if len(ins.Operand) != 1 {
				return fmt.Errorf("vm: CALLT missing token index at %d", ins.Offset)
			}
		case ins.Opcode == SYSCALL:
			if len(ins.Operand) != 4 {
				return fmt.Errorf("vm: SYSCALL missing interop id at %d", ins.Offset)
			}
		}
	}
	return nil
}
