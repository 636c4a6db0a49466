package core

import (
	"errors"
	"math/big"
)

// Opcode handlers for the Bitwise, Boolean, Arithmetic and Comparison
// families (spec.md §4.D). Every integer result is range-checked by
// NewIntegerItem against the 256-bit bounds (vm_types.go), matching the
// teacher's AddBigInts overflow guard in virtual_machine.go generalized
// from addition alone to every arithmetic opcode.
func init() {
	RegisterOpcode(INVERT, unaryInt(func(a *big.Int) (*big.Int, error) {
		return new(big.Int).Not(a), nil
	}))
	RegisterOpcode(AND, binaryInt(func(a, b *big.Int) (*big.Int, error) { return new(big.Int).And(a, b), nil }))
	RegisterOpcode(OR, binaryInt(func(a, b *big.Int) (*big.Int, error) { return new(big.Int).Or(a, b), nil }))
	RegisterOpcode(XOR, binaryInt(func(a, b *big.Int) (*big.Int, error) { return new(big.Int).Xor(a, b), nil }))

	RegisterOpcode(EQUAL, func(e *ExecutionEngine, ins Instruction) error {
		b, err := e.popItem()
		if err != nil {
			return err
		}
		a, err := e.popItem()
		if err != nil {
			return err
		}
		return e.pushItem(BooleanItem{Value: a.Equals(b)})
	})
	RegisterOpcode(NOTEQUAL, func(e *ExecutionEngine, ins Instruction) error {
		b, err := e.popItem()
		if err != nil {
			return err
		}
		a, err := e.popItem()
		if err != nil {
			return err
		}
		return e.pushItem(BooleanItem{Value: !a.Equals(b)})
	})

	RegisterOpcode(SIGN, func(e *ExecutionEngine, ins Instruction) error {
		a, err := popBigInt(e)
		if err != nil {
			return err
		}
		item, err := NewIntegerItem(big.NewInt(int64(a.Sign())))
		if err != nil {
			return err
		}
		return e.pushItem(item)
	})
	RegisterOpcode(ABS, unaryInt(func(a *big.Int) (*big.Int, error) { return new(big.Int).Abs(a), nil }))
	RegisterOpcode(NEGATE, unaryInt(func(a *big.Int) (*big.Int, error) { return new(big.Int).Neg(a), nil }))
	RegisterOpcode(INC, unaryInt(func(a *big.Int) (*big.Int, error) {
		return new(big.Int).Add(a, big.NewInt(1)), nil
	}))
	RegisterOpcode(DEC, unaryInt(func(a *big.Int) (*big.Int, error) {
		return new(big.Int).Sub(a, big.NewInt(1)), nil
	}))

	RegisterOpcode(ADD, binaryInt(func(a, b *big.Int) (*big.Int, error) { return new(big.Int).Add(a, b), nil }))
	RegisterOpcode(SUB, binaryInt(func(a, b *big.Int) (*big.Int, error) { return new(big.Int).Sub(a, b), nil }))
	RegisterOpcode(MUL, binaryInt(func(a, b *big.Int) (*big.Int, error) { return new(big.Int).Mul(a, b), nil }))
	RegisterOpcode(DIV, binaryInt(func(a, b *big.Int) (*big.Int, error) {
		if b.Sign() == 0 {
			return nil, errors.New("vm: division by zero")
		}
		return new(big.Int).Quo(a, b), nil
	}))
	RegisterOpcode(MOD, binaryInt(func(a, b *big.Int) (*big.Int, error) {
		if b.Sign() == 0 {
			return nil, errors.New("vm: division by zero")
		}
		return new(big.Int).Rem(a, b), nil
	}))
	RegisterOpcode(POW, binaryInt(func(a, b *big.Int) (*big.Int, error) {
		if !b.IsUint64() {
			return nil, errors.New("vm: exponent out of range")
		}
		return new(big.Int).Exp(a, b, nil), nil
	}))
	RegisterOpcode(SQRT, unaryInt(func(a *big.Int) (*big.Int, error) {
		if a.Sign() < 0 {
			return nil, errors.New("vm: SQRT of negative number")
		}
		return new(big.Int).Sqrt(a), nil
	}))
	RegisterOpcode(SHL, binaryInt(func(a, b *big.Int) (*big.Int, error) {
		if !b.IsUint64() || b.Uint64() > 256 {
			return nil, errors.New("vm: shift out of range")
		}
		return new(big.Int).Lsh(a, uint(b.Uint64())), nil
	}))
	RegisterOpcode(SHR, binaryInt(func(a, b *big.Int) (*big.Int, error) {
		if !b.IsUint64() || b.Uint64() > 256 {
			return nil, errors.New("vm: shift out of range")
		}
		return new(big.Int).Rsh(a, uint(b.Uint64())), nil
	}))

	RegisterOpcode(NOT, func(e *ExecutionEngine, ins Instruction) error {
		item, err := e.popItem()
		if err != nil {
			return err
		}
		return e.pushItem(BooleanItem{Value: !item.Bool()})
	})
	RegisterOpcode(BOOLAND, func(e *ExecutionEngine, ins Instruction) error {
		b, err := e.popItem()
		if err != nil {
			return err
		}
		a, err := e.popItem()
		if err != nil {
			return err
		}
		return e.pushItem(BooleanItem{Value: a.Bool() && b.Bool()})
	})
	RegisterOpcode(BOOLOR, func(e *ExecutionEngine, ins Instruction) error {
		b, err := e.popItem()
		if err != nil {
			return err
		}
		a, err := e.popItem()
		if err != nil {
			return err
		}
		return e.pushItem(BooleanItem{Value: a.Bool() || b.Bool()})
	})
	RegisterOpcode(NZ, func(e *ExecutionEngine, ins Instruction) error {
		a, err := popBigInt(e)
		if err != nil {
			return err
		}
		return e.pushItem(BooleanItem{Value: a.Sign() != 0})
	})

	registerCompare(NUMEQUAL, func(c int) bool { return c == 0 })
	registerCompare(NUMNOTEQUAL, func(c int) bool { return c != 0 })
	registerCompare(LT, func(c int) bool { return c < 0 })
	registerCompare(LE, func(c int) bool { return c <= 0 })
	registerCompare(GT, func(c int) bool { return c > 0 })
	registerCompare(GE, func(c int) bool { return c >= 0 })

	RegisterOpcode(MIN, binaryInt(func(a, b *big.Int) (*big.Int, error) {
		if a.Cmp(b) <= 0 {
			return a, nil
		}
		return b, nil
	}))
	RegisterOpcode(MAX, binaryInt(func(a, b *big.Int) (*big.Int, error) {
		if a.Cmp(b) >= 0 {
			return a, nil
		}
		return b, nil
	}))
	RegisterOpcode(WITHIN, func(e *ExecutionEngine, ins Instruction) error {
		max, err := popBigInt(e)
		if err != nil {
			return err
		}
		min, err := popBigInt(e)
		if err != nil {
			return err
		}
		x, err := popBigInt(e)
		if err != nil {
			return err
		}
		return e.pushItem(BooleanItem{Value: x.Cmp(min) >= 0 && x.Cmp(max) < 0})
	})
}

func popBigInt(e *ExecutionEngine) (*big.Int, error) {
	item, err := e.popItem()
	if err != nil {
		return nil, err
	}
	return ItemInteger(item)
}

func unaryInt(fn func(a *big.Int) (*big.Int, error)) OpcodeHandler {
	return func(e *ExecutionEngine, ins Instruction) error {
		a, err := popBigInt(e)
		if err != nil {
			return err
		}
		r, err := fn(a)
		if err != nil {
			return err
		}
		item, err := NewIntegerItem(r)
		if err != nil {
			return err
		}
		return e.pushItem(item)
	}
}

func binaryInt(fn func(a, b *big.Int) (*big.Int, error)) OpcodeHandler {
	return func(e *ExecutionEngine, ins Instruction) error {
		b, err := popBigInt(e)
		if err != nil {
			return err
		}
		a, err := popBigInt(e)
		if err != nil {
			return err
		}
		r, err := fn(a, b)
		if err != nil {
			return err
		}
		item, err := NewIntegerItem(r)
		if err != nil {
			return err
		}
		return e.pushItem(item)
	}
}

func registerCompare(op Opcode, accept func(cmp int) bool) {
	RegisterOpcode(op, func(e *ExecutionEngine, ins Instruction) error {
		b, err := popBigInt(e)
		if err != nil {
			return err
		}
		a, err := popBigInt(e)
		if err != nil {
			return err
		}
		return e.pushItem(BooleanItem{Value: accept(a.Cmp(b))})
	})
}
