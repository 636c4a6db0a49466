package core

import "errors"

// Opcode handlers for the Slot family (spec.md §4.D): local/argument/static
// variable slots, sized once per context by INITSLOT/INITSSLOT.
func init() {
	RegisterOpcode(INITSSLOT, func(e *ExecutionEngine, ins Instruction) error {
		n := int(ins.Operand[0])
		ctx := e.CurrentContext()
		if len(ctx.StaticSlots) != 0 {
			return errors.New("vm: INITSSLOT already initialized")
		}
		ctx.StaticSlots = make([]StackItem, n)
		for i := range ctx.StaticSlots {
			ctx.StaticSlots[i] = NullItem{}
		}
		return nil
	})

	RegisterOpcode(INITSLOT, func(e *ExecutionEngine, ins Instruction) error {
		locals := int(ins.Operand[0])
		args := int(ins.Operand[1])
		ctx := e.CurrentContext()
		if len(ctx.LocalSlots) != 0 || len(ctx.ArgSlots) != 0 {
			return errors.New("vm: INITSLOT already initialized")
		}
		ctx.LocalSlots = make([]StackItem, locals)
		for i := range ctx.LocalSlots {
			ctx.LocalSlots[i] = NullItem{}
		}
		ctx.ArgSlots = make([]StackItem, args)
		for i := args - 1; i >= 0; i-- {
			item, err := e.popItem()
			if err != nil {
				return err
			}
			ctx.ArgSlots[i] = item
		}
		return nil
	})

	registerSlotLoad(LDSFLD0, 0, func(c *ExecutionContext) []StackItem { return c.StaticSlots })
	registerSlotIndexedLoad(LDSFLD, func(c *ExecutionContext) []StackItem { return c.StaticSlots })
	registerSlotStore(STSFLD0, 0, func(c *ExecutionContext) []StackItem { return c.StaticSlots })
	registerSlotIndexedStore(STSFLD, func(c *ExecutionContext) []StackItem { return c.StaticSlots })

	registerSlotLoad(LDLOC0, 0, func(c *ExecutionContext) []StackItem { return c.LocalSlots })
	registerSlotIndexedLoad(LDLOC, func(c *ExecutionContext) []StackItem { return c.LocalSlots })
	registerSlotStore(STLOC0, 0, func(c *ExecutionContext) []StackItem { return c.LocalSlots })
	registerSlotIndexedStore(STLOC, func(c *ExecutionContext) []StackItem { return c.LocalSlots })

	registerSlotLoad(LDARG0, 0, func(c *ExecutionContext) []StackItem { return c.ArgSlots })
	registerSlotIndexedLoad(LDARG, func(c *ExecutionContext) []StackItem { return c.ArgSlots })
	registerSlotStore(STARG0, 0, func(c *ExecutionContext) []StackItem { return c.ArgSlots })
	registerSlotIndexedStore(STARG, func(c *ExecutionContext) []StackItem { return c.ArgSlots })
}

func registerSlotLoad(op Opcode, fixedIndex int, slots func(*ExecutionContext) []StackItem) {
	RegisterOpcode(op, func(e *ExecutionEngine, ins Instruction) error {
		s := slots(e.CurrentContext())
		if fixedIndex >= len(s) {
			return errors.New("vm: slot index out of range")
		}
		return e.pushItem(s[fixedIndex])
	})
}

func registerSlotIndexedLoad(op Opcode, slots func(*ExecutionContext) []StackItem) {
	RegisterOpcode(op, func(e *ExecutionEngine, ins Instruction) error {
		idx := int(ins.Operand[0])
		s := slots(e.CurrentContext())
		if idx >= len(s) {
			return errors.New("vm: slot index out of range")
		}
		return e.pushItem(s[idx])
	})
}

func registerSlotStore(op Opcode, fixedIndex int, slots func(*ExecutionContext) []StackItem) {
	RegisterOpcode(op, func(e *ExecutionEngine, ins Instruction) error {
		item, err := e.popItem()
		if err != nil {
			return err
		}
		s := slots(e.CurrentContext())
		if fixedIndex >= len(s) {
			return errors.New("vm: slot index out of range")
		}
		s[fixedIndex] = item
		return nil
	})
}

func registerSlotIndexedStore(op Opcode, slots func(*ExecutionContext) []StackItem) {
	RegisterOpcode(op, func(e *ExecutionEngine, ins Instruction) error {
		item, err := e.popItem()
		if err != nil {
			return err
		}
		idx := int(ins.Operand[0])
		s := slots(e.CurrentContext())
		if idx >= len(s) {
			return errors.New("vm: slot index out of range")
		}
		s[idx] = item
		return nil
	})
}
