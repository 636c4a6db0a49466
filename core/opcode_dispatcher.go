// Synnergy Network – Core ▸ Opcode Dispatcher
// -------------------------------------------
//
//   - Every VM opcode (spec.md §4.D) is registered exactly once against its
//     concrete handler; the dispatcher charges its base gas cost via
//     GasCost() before the handler runs.
//
//   - Collisions are FATAL at start-up (RegisterOpcode panics); an opcode
//     with no handler fails only when dispatched ("vm: unknown opcode").
package core

import (
	"fmt"
	"log"
	"sync"
)

// OpcodeHandler executes a single decoded Instruction against the current
// execution engine state (evaluation stack, slots, flow control).
//
// Grounded on the teacher's OpcodeFunc/Context split in the original
// opcode_dispatcher.go; Context there was a thin façade over
// ledger/consensus calls, generalized here to the VM's own ExecutionEngine
// since every handler manipulates the evaluation stack directly.
type OpcodeHandler func(e *ExecutionEngine, ins Instruction) error

var (
	opcodeTable = make(map[Opcode]OpcodeHandler, 256)
	opcodeMu    sync.RWMutex
)

// RegisterOpcode binds an opcode to its handler. Panics on a duplicate
// registration, matching the teacher's "collisions are fatal at start-up"
// discipline.
func RegisterOpcode(op Opcode, fn OpcodeHandler) {
	opcodeMu.Lock()
	defer opcodeMu.Unlock()
	if _, exists := opcodeTable[op]; exists {
		log.Panicf("[OPCODES] collision: %s already registered", op)
	}
	opcodeTable[op] = fn
}

// DispatchOpcode is invoked by the execution engine for every instruction.
// It charges the opcode's base gas cost (scaled by the caller's
// exec-fee-factor) before running the handler.
func DispatchOpcode(e *ExecutionEngine, ins Instruction) error {
	opcodeMu.RLock()
	fn, ok := opcodeTable[ins.Opcode]
	opcodeMu.RUnlock()
	if !ok {
		return fmt.Errorf("vm: unknown opcode %s", ins.Opcode)
	}
	if err := e.chargeGas(GasCost(ins.Opcode)); err != nil {
		return err
	}
	return fn(e, ins)
}

// registeredOpcodeCount reports how many opcodes currently have a handler,
// for start-up diagnostics (mirrors the teacher's init() log line in the
// original opcode_dispatcher.go).
func registeredOpcodeCount() int {
	opcodeMu.RLock()
	defer opcodeMu.RUnlock()
	return len(opcodeTable)
}
