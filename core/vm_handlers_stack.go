package core

import (
	"errors"
	"math/big"
)

// Opcode handlers for the Stack family (spec.md §4.D): depth inspection and
// reordering of the evaluation stack. DEPTH, DUP, OVER, PICK and TUCK add
// references to the counter and DROP, NIP, XDROP and CLEAR release them;
// SWAP, ROT, ROLL and the REVERSE opcodes only move items between slots.
func init() {
	RegisterOpcode(DEPTH, func(e *ExecutionEngine, ins Instruction) error {
		n := len(e.CurrentContext().EvalStack)
		item, err := NewIntegerItem(big.NewInt(int64(n)))
		if err != nil {
			return err
		}
		return e.pushItem(item)
	})

	RegisterOpcode(DROP, func(e *ExecutionEngine, ins Instruction) error {
		_, err := e.popItem()
		return err
	})

	RegisterOpcode(NIP, func(e *ExecutionEngine, ins Instruction) error {
		ctx := e.CurrentContext()
		top, err := ctx.pop()
		if err != nil {
			return err
		}
		second, err := ctx.pop()
		if err != nil {
			return err
		}
		e.RefCounter.RemoveStackReference(second)
		ctx.push(top)
		return nil
	})

	RegisterOpcode(XDROP, func(e *ExecutionEngine, ins Instruction) error {
		ctx := e.CurrentContext()
		n, err := popIndex(e)
		if err != nil {
			return err
		}
		idx := len(ctx.EvalStack) - 1 - n
		if idx < 0 {
			return errors.New("vm: XDROP index out of range")
		}
		e.RefCounter.RemoveStackReference(ctx.EvalStack[idx])
		ctx.EvalStack = append(ctx.EvalStack[:idx], ctx.EvalStack[idx+1:]...)
		return nil
	})

	RegisterOpcode(CLEAR, func(e *ExecutionEngine, ins Instruction) error {
		ctx := e.CurrentContext()
		for _, item := range ctx.EvalStack {
			e.RefCounter.RemoveStackReference(item)
		}
		ctx.EvalStack = ctx.EvalStack[:0]
		return nil
	})

	RegisterOpcode(DUP, func(e *ExecutionEngine, ins Instruction) error {
		top, err := e.CurrentContext().peek(0)
		if err != nil {
			return err
		}
		return e.pushItem(top)
	})

	RegisterOpcode(OVER, func(e *ExecutionEngine, ins Instruction) error {
		item, err := e.CurrentContext().peek(1)
		if err != nil {
			return err
		}
		return e.pushItem(item)
	})

	RegisterOpcode(PICK, func(e *ExecutionEngine, ins Instruction) error {
		n, err := popIndex(e)
		if err != nil {
			return err
		}
		item, err := e.CurrentContext().peek(n)
		if err != nil {
			return err
		}
		return e.pushItem(item)
	})

	RegisterOpcode(TUCK, func(e *ExecutionEngine, ins Instruction) error {
		ctx := e.CurrentContext()
		top, err := ctx.peek(0)
		if err != nil {
			return err
		}
		n := len(ctx.EvalStack)
		idx := n - 2
		if idx < 0 {
			return errors.New("vm: TUCK stack underflow")
		}
		if err := e.RefCounter.AddStackReference(top); err != nil {
			return err
		}
		ctx.EvalStack = append(ctx.EvalStack[:idx], append([]StackItem{top}, ctx.EvalStack[idx:]...)...)
		return nil
	})

	RegisterOpcode(SWAP, func(e *ExecutionEngine, ins Instruction) error {
		ctx := e.CurrentContext()
		n := len(ctx.EvalStack)
		if n < 2 {
			return errors.New("vm: SWAP stack underflow")
		}
		ctx.EvalStack[n-1], ctx.EvalStack[n-2] = ctx.EvalStack[n-2], ctx.EvalStack[n-1]
		return nil
	})

	RegisterOpcode(ROT, func(e *ExecutionEngine, ins Instruction) error {
		ctx := e.CurrentContext()
		n := len(ctx.EvalStack)
		if n < 3 {
			return errors.New("vm: ROT stack underflow")
		}
		ctx.EvalStack[n-3], ctx.EvalStack[n-2], ctx.EvalStack[n-1] =
			ctx.EvalStack[n-2], ctx.EvalStack[n-1], ctx.EvalStack[n-3]
		return nil
	})

	RegisterOpcode(ROLL, func(e *ExecutionEngine, ins Instruction) error {
		ctx := e.CurrentContext()
		n, err := popIndex(e)
		if err != nil {
			return err
		}
		idx := len(ctx.EvalStack) - 1 - n
		if idx < 0 {
			return errors.New("vm: ROLL index out of range")
		}
		item := ctx.EvalStack[idx]
		ctx.EvalStack = append(ctx.EvalStack[:idx], ctx.EvalStack[idx+1:]...)
		ctx.EvalStack = append(ctx.EvalStack, item)
		return nil
	})

	RegisterOpcode(REVERSE3, func(e *ExecutionEngine, ins Instruction) error { return reverseTop(e, 3) })
	RegisterOpcode(REVERSE4, func(e *ExecutionEngine, ins Instruction) error { return reverseTop(e, 4) })
	RegisterOpcode(REVERSEN, func(e *ExecutionEngine, ins Instruction) error {
		n, err := popIndex(e)
		if err != nil {
			return err
		}
		return reverseTop(e, n)
	})
}

func popIndex(e *ExecutionEngine) (int, error) {
	item, err := e.popItem()
	if err != nil {
		return 0, err
	}
	v, err := ItemInteger(item)
	if err != nil {
		return 0, err
	}
	if !v.IsInt64() {
		return 0, errors.New("vm: index out of range")
	}
	return int(v.Int64()), nil
}

func reverseTop(e *ExecutionEngine, n int) error {
	ctx := e.CurrentContext()
	if n < 0 || n > len(ctx.EvalStack) {
		return errors.New("vm: reverse count out of range")
	}
	top := ctx.EvalStack[len(ctx.EvalStack)-n:]
	for i, j := 0, len(top)-1; i < j; i, j = i+1, j-1 {
		top[i], top[j] = top[j], top[i]
	}
	return nil
}
