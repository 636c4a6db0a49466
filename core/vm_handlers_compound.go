package core

import (
	"errors"
	"math/big"
)

// Opcode handlers for the Compound Types family (spec.md §4.D): arrays,
// structs and ordered maps. Every push of a compound or its elements goes
// through the reference counter (pushItem/AddStackReference) so nested
// containers are charged for every item they make reachable.
func init() {
	RegisterOpcode(NEWARRAY0, func(e *ExecutionEngine, ins Instruction) error {
		return e.pushItem(&ArrayItem{})
	})
	RegisterOpcode(NEWARRAY, newArrayHandler(false))
	RegisterOpcode(NEWARRAYT, func(e *ExecutionEngine, ins Instruction) error {
		n, err := popIndex(e)
		if err != nil {
			return err
		}
		if n < 0 {
			return errors.New("vm: NEWARRAYT negative size")
		}
		def := defaultForType(StackItemType(ins.Operand[0]))
		items := make([]StackItem, n)
		for i := range items {
			items[i] = def
		}
		return e.pushItem(&ArrayItem{Items: items})
	})
	RegisterOpcode(NEWSTRUCT0, func(e *ExecutionEngine, ins Instruction) error {
		return e.pushItem(&ArrayItem{IsStruct: true})
	})
	RegisterOpcode(NEWSTRUCT, newArrayHandler(true))
	RegisterOpcode(NEWMAP, func(e *ExecutionEngine, ins Instruction) error {
		return e.pushItem(NewMapItem())
	})

	RegisterOpcode(SIZE, func(e *ExecutionEngine, ins Instruction) error {
		item, err := e.popItem()
		if err != nil {
			return err
		}
		var n int
		switch v := item.(type) {
		case *ArrayItem:
			n = len(v.Items)
		case *MapItem:
			n = len(v.Keys())
		case ByteStringItem:
			n = len(v.Value)
		case *BufferItem:
			n = len(v.Value)
		default:
			return errors.New("vm: SIZE requires a container or buffer")
		}
		out, err := NewIntegerItem(big.NewInt(int64(n)))
		if err != nil {
			return err
		}
		return e.pushItem(out)
	})

	RegisterOpcode(HASKEY, func(e *ExecutionEngine, ins Instruction) error {
		keyItem, err := e.popItem()
		if err != nil {
			return err
		}
		container, err := e.popItem()
		if err != nil {
			return err
		}
		switch v := container.(type) {
		case *ArrayItem:
			idx, err := ItemInteger(keyItem)
			if err != nil {
				return err
			}
			found := idx.Sign() >= 0 && idx.IsInt64() && int(idx.Int64()) < len(v.Items)
			return e.pushItem(BooleanItem{Value: found})
		case *MapItem:
			_, found := v.Get(keyItem)
			return e.pushItem(BooleanItem{Value: found})
		default:
			return errors.New("vm: HASKEY requires a container")
		}
	})

	RegisterOpcode(KEYS, func(e *ExecutionEngine, ins Instruction) error {
		item, err := e.popItem()
		if err != nil {
			return err
		}
		m, ok := item.(*MapItem)
		if !ok {
			return errors.New("vm: KEYS requires a map")
		}
		return e.pushItem(&ArrayItem{Items: append([]StackItem(nil), m.Keys()...)})
	})

	RegisterOpcode(VALUES, func(e *ExecutionEngine, ins Instruction) error {
		item, err := e.popItem()
		if err != nil {
			return err
		}
		m, ok := item.(*MapItem)
		if !ok {
			return errors.New("vm: VALUES requires a map")
		}
		return e.pushItem(&ArrayItem{Items: append([]StackItem(nil), m.Values()...)})
	})

	RegisterOpcode(PICKITEM, func(e *ExecutionEngine, ins Instruction) error {
		keyItem, err := e.popItem()
		if err != nil {
			return err
		}
		container, err := e.popItem()
		if err != nil {
			return err
		}
		switch v := container.(type) {
		case *ArrayItem:
			idx, err := indexInto(keyItem, len(v.Items))
			if err != nil {
				return err
			}
			return e.pushItem(v.Items[idx])
		case *MapItem:
			val, found := v.Get(keyItem)
			if !found {
				return errors.New("vm: key not found in map")
			}
			return e.pushItem(val)
		case ByteStringItem:
			idx, err := indexInto(keyItem, len(v.Value))
			if err != nil {
				return err
			}
			out, err := NewIntegerItem(big.NewInt(int64(v.Value[idx])))
			if err != nil {
				return err
			}
			return e.pushItem(out)
		case *BufferItem:
			idx, err := indexInto(keyItem, len(v.Value))
			if err != nil {
				return err
			}
			out, err := NewIntegerItem(big.NewInt(int64(v.Value[idx])))
			if err != nil {
				return err
			}
			return e.pushItem(out)
		default:
			return errors.New("vm: PICKITEM requires a container")
		}
	})

	RegisterOpcode(APPEND, func(e *ExecutionEngine, ins Instruction) error {
		value, err := e.popItem()
		if err != nil {
			return err
		}
		container, err := e.popItem()
		if err != nil {
			return err
		}
		arr, ok := container.(*ArrayItem)
		if !ok {
			return errors.New("vm: APPEND requires an array")
		}
		if err := e.RefCounter.AddStackReference(value); err != nil {
			return err
		}
		arr.Items = append(arr.Items, value)
		return nil
	})

	RegisterOpcode(SETITEM, func(e *ExecutionEngine, ins Instruction) error {
		value, err := e.popItem()
		if err != nil {
			return err
		}
		keyItem, err := e.popItem()
		if err != nil {
			return err
		}
		container, err := e.popItem()
		if err != nil {
			return err
		}
		switch v := container.(type) {
		case *ArrayItem:
			idx, err := indexInto(keyItem, len(v.Items))
			if err != nil {
				return err
			}
			e.RefCounter.RemoveStackReference(v.Items[idx])
			if err := e.RefCounter.AddStackReference(value); err != nil {
				return err
			}
			v.Items[idx] = value
			return nil
		case *MapItem:
			if err := e.RefCounter.AddStackReference(value); err != nil {
				return err
			}
			return v.Set(keyItem, value)
		default:
			return errors.New("vm: SETITEM requires a container")
		}
	})

	RegisterOpcode(REVERSEITEMS, func(e *ExecutionEngine, ins Instruction) error {
		item, err := e.popItem()
		if err != nil {
			return err
		}
		arr, ok := item.(*ArrayItem)
		if !ok {
			return errors.New("vm: REVERSEITEMS requires an array")
		}
		for i, j := 0, len(arr.Items)-1; i < j; i, j = i+1, j-1 {
			arr.Items[i], arr.Items[j] = arr.Items[j], arr.Items[i]
		}
		return nil
	})

	RegisterOpcode(REMOVE, func(e *ExecutionEngine, ins Instruction) error {
		keyItem, err := e.popItem()
		if err != nil {
			return err
		}
		container, err := e.popItem()
		if err != nil {
			return err
		}
		switch v := container.(type) {
		case *ArrayItem:
			idx, err := indexInto(keyItem, len(v.Items))
			if err != nil {
				return err
			}
			e.RefCounter.RemoveStackReference(v.Items[idx])
			v.Items = append(v.Items[:idx], v.Items[idx+1:]...)
			return nil
		case *MapItem:
			v.Remove(keyItem)
			return nil
		default:
			return errors.New("vm: REMOVE requires a container")
		}
	})

	RegisterOpcode(CLEARITEMS, func(e *ExecutionEngine, ins Instruction) error {
		item, err := e.popItem()
		if err != nil {
			return err
		}
		switch v := item.(type) {
		case *ArrayItem:
			for _, it := range v.Items {
				e.RefCounter.RemoveStackReference(it)
			}
			v.Items = nil
		case *MapItem:
			for _, k := range append([]StackItem(nil), v.Keys()...) {
				v.Remove(k)
			}
		default:
			return errors.New("vm: CLEARITEMS requires a container")
		}
		return nil
	})

	RegisterOpcode(POPITEM, func(e *ExecutionEngine, ins Instruction) error {
		item, err := e.popItem()
		if err != nil {
			return err
		}
		arr, ok := item.(*ArrayItem)
		if !ok || len(arr.Items) == 0 {
			return errors.New("vm: POPITEM requires a non-empty array")
		}
		last := arr.Items[len(arr.Items)-1]
		arr.Items = arr.Items[:len(arr.Items)-1]
		return e.pushItem(last)
	})
}

func newArrayHandler(isStruct bool) OpcodeHandler {
	return func(e *ExecutionEngine, ins Instruction) error {
		n, err := popIndex(e)
		if err != nil {
			return err
		}
		if n < 0 {
			return errors.New("vm: negative array size")
		}
		items := make([]StackItem, n)
		for i := range items {
			items[i] = NullItem{}
		}
		return e.pushItem(&ArrayItem{Items: items, IsStruct: isStruct})
	}
}

func indexInto(keyItem StackItem, length int) (int, error) {
	idx, err := ItemInteger(keyItem)
	if err != nil {
		return 0, err
	}
	if !idx.IsInt64() || idx.Sign() < 0 || int(idx.Int64()) >= length {
		return 0, errors.New("vm: index out of range")
	}
	return int(idx.Int64()), nil
}

func defaultForType(t StackItemType) StackItem {
	switch t {
	case ItemTypeBoolean:
		return BooleanItem{Value: false}
	case ItemTypeInteger:
		item, _ := NewIntegerItem(big.NewInt(0))
		return item
	case ItemTypeByteString:
		return ByteStringItem{}
	default:
		return NullItem{}
	}
}
