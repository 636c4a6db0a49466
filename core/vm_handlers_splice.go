package core

import "errors"

// Opcode handlers for the Splice family (spec.md §4.D): mutable buffer
// allocation and byte-string slicing/concatenation.
func init() {
	RegisterOpcode(NEWBUFFER, func(e *ExecutionEngine, ins Instruction) error {
		n, err := popIndex(e)
		if err != nil {
			return err
		}
		if n < 0 {
			return errors.New("vm: NEWBUFFER negative size")
		}
		return e.pushItem(&BufferItem{Value: make([]byte, n)})
	})

	RegisterOpcode(MEMCPY, func(e *ExecutionEngine, ins Instruction) error {
		count, err := popIndex(e)
		if err != nil {
			return err
		}
		srcIndex, err := popIndex(e)
		if err != nil {
			return err
		}
		srcItem, err := e.popItem()
		if err != nil {
			return err
		}
		dstIndex, err := popIndex(e)
		if err != nil {
			return err
		}
		dstItem, err := e.popItem()
		if err != nil {
			return err
		}
		dst, ok := dstItem.(*BufferItem)
		if !ok {
			return errors.New("vm: MEMCPY destination must be a buffer")
		}
		src, err := ItemBytes(srcItem)
		if err != nil {
			return err
		}
		if count < 0 || srcIndex < 0 || dstIndex < 0 ||
			srcIndex+count > len(src) || dstIndex+count > len(dst.Value) {
			return errors.New("vm: MEMCPY out of range")
		}
		copy(dst.Value[dstIndex:dstIndex+count], src[srcIndex:srcIndex+count])
		return nil
	})

	RegisterOpcode(CAT, func(e *ExecutionEngine, ins Instruction) error {
		b, err := e.popItem()
		if err != nil {
			return err
		}
		a, err := e.popItem()
		if err != nil {
			return err
		}
		ab, err := ItemBytes(a)
		if err != nil {
			return err
		}
		bb, err := ItemBytes(b)
		if err != nil {
			return err
		}
		buf := make([]byte, 0, len(ab)+len(bb))
		buf = append(buf, ab...)
		buf = append(buf, bb...)
		return e.pushItem(&BufferItem{Value: buf})
	})

	RegisterOpcode(SUBSTR, func(e *ExecutionEngine, ins Instruction) error {
		length, err := popIndex(e)
		if err != nil {
			return err
		}
		index, err := popIndex(e)
		if err != nil {
			return err
		}
		item, err := e.popItem()
		if err != nil {
			return err
		}
		b, err := ItemBytes(item)
		if err != nil {
			return err
		}
		if index < 0 || length < 0 || index+length > len(b) {
			return errors.New("vm: SUBSTR out of range")
		}
		out := make([]byte, length)
		copy(out, b[index:index+length])
		return e.pushItem(&BufferItem{Value: out})
	})

	RegisterOpcode(LEFT, func(e *ExecutionEngine, ins Instruction) error {
		n, err := popIndex(e)
		if err != nil {
			return err
		}
		item, err := e.popItem()
		if err != nil {
			return err
		}
		b, err := ItemBytes(item)
		if err != nil {
			return err
		}
		if n < 0 || n > len(b) {
			return errors.New("vm: LEFT out of range")
		}
		out := make([]byte, n)
		copy(out, b[:n])
		return e.pushItem(&BufferItem{Value: out})
	})

	RegisterOpcode(RIGHT, func(e *ExecutionEngine, ins Instruction) error {
		n, err := popIndex(e)
		if err != nil {
			return err
		}
		item, err := e.popItem()
		if err != nil {
			return err
		}
		b, err := ItemBytes(item)
		if err != nil {
			return err
		}
		if n < 0 || n > len(b) {
			return errors.New("vm: RIGHT out of range")
		}
		out := make([]byte, n)
		copy(out, b[len(b)-n:])
		return e.pushItem(&BufferItem{Value: out})
	})
}
