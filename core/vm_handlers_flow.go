package core

import (
	"encoding/binary"
	"errors"
)

// Opcode handlers for flow control (spec.md §4.D): jumps, calls, the
// exception mechanism (TRY/THROW/ENDTRY/ENDFINALLY) and SYSCALL dispatch
// into the Application Engine's interop table.
//
// Grounded on the teacher's fail(rec, err) unwind idiom and switch-based
// jump handling in virtual_machine.go's LightVM.Execute; generalized to a
// per-context try/finally stack since the teacher's toy VM had no
// exception model at all.
func init() {
	RegisterOpcode(NOP, func(e *ExecutionEngine, ins Instruction) error { return nil })

	registerConditionalJump(JMP, func(*ExecutionEngine) (bool, error) { return true, nil })
	registerConditionalJump(JMPIF, popBoolCondition(true))
	registerConditionalJump(JMPIFNOT, popBoolCondition(false))
	registerComparisonJump(JMPEQ, func(c int) bool { return c == 0 })
	registerComparisonJump(JMPNE, func(c int) bool { return c != 0 })
	registerComparisonJump(JMPGT, func(c int) bool { return c > 0 })
	registerComparisonJump(JMPGE, func(c int) bool { return c >= 0 })
	registerComparisonJump(JMPLT, func(c int) bool { return c < 0 })
	registerComparisonJump(JMPLE, func(c int) bool { return c <= 0 })

	RegisterOpcode(CALL, func(e *ExecutionEngine, ins Instruction) error {
		target := ins.Offset + int(int8(ins.Operand[0]))
		return e.callInScript(e.CurrentContext().Script, target)
	})

	RegisterOpcode(CALLA, func(e *ExecutionEngine, ins Instruction) error {
		item, err := e.popItem()
		if err != nil {
			return err
		}
		ptr, ok := item.(PointerItem)
		if !ok {
			return errors.New("vm: CALLA requires a pointer")
		}
		return e.callInScript(ptr.Script, ptr.Position)
	})

	RegisterOpcode(CALLT, func(e *ExecutionEngine, ins Instruction) error {
		if e.ResolveCallToken == nil {
			return errors.New("vm: CALLT requires an application engine call-token resolver")
		}
		_, _, err := e.ResolveCallToken(int(ins.Operand[0]))
		return err
	})

	RegisterOpcode(ABORT, func(e *ExecutionEngine, ins Instruction) error {
		return errors.New("vm: ABORT")
	})

	RegisterOpcode(ABORTMSG, func(e *ExecutionEngine, ins Instruction) error {
		msg, err := e.popItem()
		if err != nil {
			return err
		}
		b, _ := ItemBytes(msg)
		return errors.New("vm: ABORTMSG: " + string(b))
	})

	RegisterOpcode(ASSERT, func(e *ExecutionEngine, ins Instruction) error {
		cond, err := e.popItem()
		if err != nil {
			return err
		}
		if !cond.Bool() {
			return errors.New("vm: ASSERT failed")
		}
		return nil
	})

	RegisterOpcode(ASSERTMSG, func(e *ExecutionEngine, ins Instruction) error {
		msg, err := e.popItem()
		if err != nil {
			return err
		}
		cond, err := e.popItem()
		if err != nil {
			return err
		}
		if !cond.Bool() {
			b, _ := ItemBytes(msg)
			return errors.New("vm: ASSERTMSG failed: " + string(b))
		}
		return nil
	})

	RegisterOpcode(THROW, func(e *ExecutionEngine, ins Instruction) error {
		item, err := e.popItem()
		if err != nil {
			return err
		}
		return &vmThrow{value: item}
	})

	RegisterOpcode(TRY, func(e *ExecutionEngine, ins Instruction) error {
		ctx := e.CurrentContext()
		catch, finally := -1, -1
		if ins.Operand[0] != 0 {
			catch = ins.Offset + int(int8(ins.Operand[0]))
		}
		if ins.Operand[1] != 0 {
			finally = ins.Offset + int(int8(ins.Operand[1]))
		}
		if catch < 0 && finally < 0 {
			return errors.New("vm: TRY with neither catch nor finally")
		}
		ctx.TryStack = append(ctx.TryStack, &exceptionHandler{
			catchOffset: catch, finallyOffset: finally, endOffset: -1, state: handlerTry,
		})
		return nil
	})

	RegisterOpcode(ENDTRY, func(e *ExecutionEngine, ins Instruction) error {
		ctx := e.CurrentContext()
		h := topActiveHandler(ctx)
		if h == nil {
			return errors.New("vm: ENDTRY outside TRY")
		}
		end := ins.Offset + int(int8(ins.Operand[0]))
		h.endOffset = end
		if h.finallyOffset >= 0 && h.state != handlerFinally {
			h.state = handlerFinally
			ctx.InstructionPointer = h.finallyOffset
			return nil
		}
		ctx.TryStack = ctx.TryStack[:len(ctx.TryStack)-1]
		ctx.InstructionPointer = end
		return nil
	})

	RegisterOpcode(ENDFINALLY, func(e *ExecutionEngine, ins Instruction) error {
		ctx := e.CurrentContext()
		if len(ctx.TryStack) == 0 {
			return errors.New("vm: ENDFINALLY outside TRY")
		}
		h := ctx.TryStack[len(ctx.TryStack)-1]
		ctx.TryStack = ctx.TryStack[:len(ctx.TryStack)-1]
		if e.pendingRethrow != nil {
			err := e.pendingRethrow
			e.pendingRethrow = nil
			return err
		}
		ctx.InstructionPointer = h.endOffset
		return nil
	})

	RegisterOpcode(RET, func(e *ExecutionEngine, ins Instruction) error {
		return e.doReturn()
	})

	RegisterOpcode(SYSCALL, func(e *ExecutionEngine, ins Instruction) error {
		if e.Syscall == nil {
			return errors.New("vm: no interop resolver installed")
		}
		id := binary.LittleEndian.Uint32(ins.Operand)
		return e.Syscall(e, id)
	})
}

// topActiveHandler returns the nearest try/catch frame that hasn't already
// moved into its finally block.
func topActiveHandler(ctx *ExecutionContext) *exceptionHandler {
	for i := len(ctx.TryStack) - 1; i >= 0; i-- {
		if ctx.TryStack[i].state != handlerFinally {
			return ctx.TryStack[i]
		}
	}
	return nil
}

// callInScript pushes a fresh context at target within script, sharing the
// caller's flags and script hash (an internal CALL, not a contract-to-
// contract System.Contract.Call which the Application Engine handles).
func (e *ExecutionEngine) callInScript(script []byte, target int) error {
	caller := e.CurrentContext()
	if len(e.InvocationStack) >= e.MaxInvocationDepth {
		return errors.New("vm: invocation stack depth exceeded")
	}
	ctx := newExecutionContext(script, caller.CallFlags, caller.ScriptHash)
	ctx.InstructionPointer = target
	e.InvocationStack = append(e.InvocationStack, ctx)
	return nil
}

func registerConditionalJump(op Opcode, cond func(*ExecutionEngine) (bool, error)) {
	RegisterOpcode(op, func(e *ExecutionEngine, ins Instruction) error {
		take, err := cond(e)
		if err != nil {
			return err
		}
		if take {
			e.CurrentContext().InstructionPointer = ins.Offset + int(int8(ins.Operand[0]))
		}
		return nil
	})
}

func popBoolCondition(want bool) func(*ExecutionEngine) (bool, error) {
	return func(e *ExecutionEngine) (bool, error) {
		item, err := e.popItem()
		if err != nil {
			return false, err
		}
		return item.Bool() == want, nil
	}
}

func registerComparisonJump(op Opcode, accept func(cmp int) bool) {
	RegisterOpcode(op, func(e *ExecutionEngine, ins Instruction) error {
		b, err := e.popItem()
		if err != nil {
			return err
		}
		a, err := e.popItem()
		if err != nil {
			return err
		}
		ai, err := ItemInteger(a)
		if err != nil {
			return err
		}
		bi, err := ItemInteger(b)
		if err != nil {
			return err
		}
		if accept(ai.Cmp(bi)) {
			e.CurrentContext().InstructionPointer = ins.Offset + int(int8(ins.Operand[0]))
		}
		return nil
	})
}
