package core

import "errors"

// LOG/STORE/LOAD are retained from the teacher's minimal demo opcode set
// (virtual_machine.go's LightVM.Execute) as host-call shorthands: scripts
// that don't go through a full System.Storage.* / System.Runtime.Log
// SYSCALL can still touch the contract's own storage slice and emit a log
// line directly. The Application Engine wires e.Storage; without it STORE
// and LOAD FAULT, the same way SYSCALL does with no resolver. LOG appends
// to e.Logs whether or not an Application Engine is attached.
func init() {
	RegisterOpcode(LOG, func(e *ExecutionEngine, ins Instruction) error {
		item, err := e.popItem()
		if err != nil {
			return err
		}
		b, err := ItemBytes(item)
		if err != nil {
			return err
		}
		e.Logs = append(e.Logs, string(b))
		return nil
	})

	RegisterOpcode(STORE, func(e *ExecutionEngine, ins Instruction) error {
		if e.Storage == nil {
			return errors.New("vm: STORE requires a storage context")
		}
		value, err := e.popItem()
		if err != nil {
			return err
		}
		keyItem, err := e.popItem()
		if err != nil {
			return err
		}
		keyBytes, err := ItemBytes(keyItem)
		if err != nil {
			return err
		}
		valueBytes, err := ItemBytes(value)
		if err != nil {
			return err
		}
		key := StorageKey{ContractID: e.storageContractID(), Prefix: keyBytes}
		_, err = e.Storage.GetAndChange(key, func() *StorageItem { return &StorageItem{} })
		if err != nil {
			return err
		}
		item, err := e.Storage.Get(key)
		if err != nil {
			return err
		}
		item.Value = append([]byte(nil), valueBytes...)
		item.MarkDirty()
		return nil
	})

	RegisterOpcode(LOAD, func(e *ExecutionEngine, ins Instruction) error {
		if e.Storage == nil {
			return errors.New("vm: LOAD requires a storage context")
		}
		keyItem, err := e.popItem()
		if err != nil {
			return err
		}
		keyBytes, err := ItemBytes(keyItem)
		if err != nil {
			return err
		}
		key := StorageKey{ContractID: e.storageContractID(), Prefix: keyBytes}
		item, err := e.Storage.TryGet(key)
		if err != nil {
			return err
		}
		if item == nil {
			return e.pushItem(NullItem{})
		}
		return e.pushItem(ByteStringItem{Value: item.Value})
	})
}

// storageContractID derives a storage partition id from the current
// context's script hash, so unrelated scripts sharing one engine/Storage
// instance don't collide on the same key space.
func (e *ExecutionEngine) storageContractID() int32 {
	h := e.CurrentContext().ScriptHash.Bytes()
	return int32(h[0]) | int32(h[1])<<8 | int32(h[2])<<16 | int32(h[3])<<24
}
