package core

import "errors"

// Opcode handlers for the Types family (spec.md §4.D): type predicates and
// explicit StackItemType conversion.
func init() {
	RegisterOpcode(ISNULL, func(e *ExecutionEngine, ins Instruction) error {
		item, err := e.popItem()
		if err != nil {
			return err
		}
		_, isNull := item.(NullItem)
		return e.pushItem(BooleanItem{Value: isNull})
	})

	RegisterOpcode(ISTYPE, func(e *ExecutionEngine, ins Instruction) error {
		item, err := e.popItem()
		if err != nil {
			return err
		}
		want := StackItemType(ins.Operand[0])
		return e.pushItem(BooleanItem{Value: item.Type() == want})
	})

	RegisterOpcode(CONVERT, func(e *ExecutionEngine, ins Instruction) error {
		item, err := e.popItem()
		if err != nil {
			return err
		}
		want := StackItemType(ins.Operand[0])
		converted, err := convertItem(item, want)
		if err != nil {
			return err
		}
		return e.pushItem(converted)
	})
}

func convertItem(item StackItem, want StackItemType) (StackItem, error) {
	if item.Type() == want {
		return item, nil
	}
	switch want {
	case ItemTypeBoolean:
		return BooleanItem{Value: item.Bool()}, nil
	case ItemTypeInteger:
		v, err := ItemInteger(item)
		if err != nil {
			return nil, err
		}
		return NewIntegerItem(v)
	case ItemTypeByteString:
		b, err := ItemBytes(item)
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(b))
		copy(out, b)
		return ByteStringItem{Value: out}, nil
	case ItemTypeBuffer:
		b, err := ItemBytes(item)
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(b))
		copy(out, b)
		return &BufferItem{Value: out}, nil
	default:
		return nil, errors.New("vm: unsupported CONVERT target type")
	}
}
