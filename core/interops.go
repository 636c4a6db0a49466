package core

import (
	"errors"
	"math/big"
)

// InteropDescriptor is one registered native host call: its SYSCALL id
// (interopID(Name)), the handler that runs against the calling
// ApplicationEngine, its fixed gas price and the CallFlags a context must
// hold to invoke it (spec.md §4.E "InteropDescriptor{name, handler,
// fixed-price, required-flags}").
type InteropDescriptor struct {
	Name          string
	Handler       func(ae *ApplicationEngine) error
	Price         uint64
	RequiredFlags CallFlags
}

var interopTable = map[uint32]*InteropDescriptor{}

// RegisterInterop adds d to the syscall dispatch table, keyed by
// interopID(d.Name); panics on a colliding name, matching the opcode
// table's duplicate-registration discipline (opcode_dispatcher.go).
func RegisterInterop(d *InteropDescriptor) {
	id := interopID(d.Name)
	if _, exists := interopTable[id]; exists {
		panic("core: duplicate interop registration for " + d.Name)
	}
	interopTable[id] = d
}

func init() {
	RegisterInterop(&InteropDescriptor{
		Name:          "System.Runtime.Platform",
		Price:         1 << 8,
		RequiredFlags: CallFlagNone,
		Handler: func(ae *ApplicationEngine) error {
			return ae.pushItem(ByteStringItem{Value: []byte("NEO")})
		},
	})

	RegisterInterop(&InteropDescriptor{
		Name:          "System.Runtime.GetTrigger",
		Price:         1 << 8,
		RequiredFlags: CallFlagNone,
		Handler: func(ae *ApplicationEngine) error {
			return ae.pushItem(integerItemMust(int64(ae.Trigger)))
		},
	})

	RegisterInterop(&InteropDescriptor{
		Name:          "System.Runtime.GetExecutingScriptHash",
		Price:         1 << 8,
		RequiredFlags: CallFlagNone,
		Handler: func(ae *ApplicationEngine) error {
			return ae.pushItem(ByteStringItem{Value: ae.CurrentContext().ScriptHash.Bytes()})
		},
	})

	RegisterInterop(&InteropDescriptor{
		Name:          "System.Runtime.GetCallingScriptHash",
		Price:         1 << 8,
		RequiredFlags: CallFlagNone,
		Handler: func(ae *ApplicationEngine) error {
			return ae.pushItem(ByteStringItem{Value: ae.callingScriptHash().Bytes()})
		},
	})

	RegisterInterop(&InteropDescriptor{
		Name:          "System.Runtime.GetEntryScriptHash",
		Price:         1 << 8,
		RequiredFlags: CallFlagNone,
		Handler: func(ae *ApplicationEngine) error {
			return ae.pushItem(ByteStringItem{Value: ae.entryScriptHash().Bytes()})
		},
	})

	RegisterInterop(&InteropDescriptor{
		Name:          "System.Runtime.CheckWitness",
		Price:         1 << 15,
		RequiredFlags: CallFlagNone,
		Handler: func(ae *ApplicationEngine) error {
			raw, err := ae.popItem()
			if err != nil {
				return err
			}
			account, err := popUInt160(raw)
			if err != nil {
				return err
			}
			return ae.pushItem(BooleanItem{Value: ae.CheckWitness(account)})
		},
	})

	RegisterInterop(&InteropDescriptor{
		Name:          "System.Runtime.Notify",
		Price:         1 << 15,
		RequiredFlags: CallFlagAllowNotify,
		Handler: func(ae *ApplicationEngine) error {
			payload, err := ae.popItem()
			if err != nil {
				return err
			}
			arr, ok := payload.(*ArrayItem)
			if !ok {
				return errors.New("vm: Notify payload must be an array")
			}
			name, err := ae.popItem()
			if err != nil {
				return err
			}
			ns, ok := name.(ByteStringItem)
			if !ok {
				return errors.New("vm: Notify name must be a byte string")
			}
			return ae.Notify(string(ns.Value), arr)
		},
	})

	RegisterInterop(&InteropDescriptor{
		Name:          "System.Runtime.Log",
		Price:         1 << 15,
		RequiredFlags: CallFlagAllowNotify,
		Handler: func(ae *ApplicationEngine) error {
			item, err := ae.popItem()
			if err != nil {
				return err
			}
			bs, ok := item.(ByteStringItem)
			if !ok {
				return errors.New("vm: Log message must be a byte string")
			}
			ae.Logs = append(ae.Logs, string(bs.Value))
			return nil
		},
	})

	RegisterInterop(&InteropDescriptor{
		Name:          "System.Storage.Get",
		Price:         1 << 15,
		RequiredFlags: CallFlagReadStates,
		Handler: func(ae *ApplicationEngine) error {
			keyItem, err := ae.popItem()
			if err != nil {
				return err
			}
			keyBytes, err := ItemBytes(keyItem)
			if err != nil {
				return err
			}
			key := StorageKey{ContractID: ae.storageContractID(), Prefix: keyBytes}
			item, err := ae.Snapshot.TryGet(key)
			if err != nil {
				return err
			}
			if item == nil {
				return ae.pushItem(NullItem{})
			}
			return ae.pushItem(ByteStringItem{Value: item.Value})
		},
	})

	RegisterInterop(&InteropDescriptor{
		Name:          "System.Storage.Put",
		Price:         1 << 15,
		RequiredFlags: CallFlagWriteStates,
		Handler: func(ae *ApplicationEngine) error {
			value, err := ae.popItem()
			if err != nil {
				return err
			}
			keyItem, err := ae.popItem()
			if err != nil {
				return err
			}
			keyBytes, err := ItemBytes(keyItem)
			if err != nil {
				return err
			}
			valBytes, err := ItemBytes(value)
			if err != nil {
				return err
			}
			key := StorageKey{ContractID: ae.storageContractID(), Prefix: keyBytes}
			item, err := ae.Snapshot.GetAndChange(key, func() *StorageItem { return &StorageItem{} })
			if err != nil {
				return err
			}
			item.Value = valBytes
			item.MarkDirty()
			return nil
		},
	})

	RegisterInterop(&InteropDescriptor{
		Name:          "System.Storage.Delete",
		Price:         1 << 15,
		RequiredFlags: CallFlagWriteStates,
		Handler: func(ae *ApplicationEngine) error {
			keyItem, err := ae.popItem()
			if err != nil {
				return err
			}
			keyBytes, err := ItemBytes(keyItem)
			if err != nil {
				return err
			}
			key := StorageKey{ContractID: ae.storageContractID(), Prefix: keyBytes}
			return ae.Snapshot.Delete(key)
		},
	})

	RegisterInterop(&InteropDescriptor{
		Name:          "System.Contract.Call",
		Price:         1 << 15,
		RequiredFlags: CallFlagAllowCall,
		Handler: func(ae *ApplicationEngine) error {
			argsItem, err := ae.popItem()
			if err != nil {
				return err
			}
			argsArr, ok := argsItem.(*ArrayItem)
			if !ok {
				return errors.New("vm: Contract.Call args must be an array")
			}
			flagsItem, err := ae.popItem()
			if err != nil {
				return err
			}
			flagsInt, err := ItemInteger(flagsItem)
			if err != nil {
				return err
			}
			methodItem, err := ae.popItem()
			if err != nil {
				return err
			}
			methodBS, ok := methodItem.(ByteStringItem)
			if !ok {
				return errors.New("vm: Contract.Call method must be a byte string")
			}
			hashItem, err := ae.popItem()
			if err != nil {
				return err
			}
			target, err := popUInt160(hashItem)
			if err != nil {
				return err
			}
			return ae.CallContract(target, string(methodBS.Value), argsArr.Items, CallFlags(flagsInt.Int64()))
		},
	})
}

// popUInt160 reads a 20-byte account/contract hash out of a byte-string or
// buffer stack item.
func popUInt160(item StackItem) (UInt160, error) {
	b, err := ItemBytes(item)
	if err != nil {
		return UInt160{}, err
	}
	return UInt160FromBytes(b)
}

// integerItemMust builds an IntegerItem from a value known to fit the
// range (internal interop plumbing, never fed user-controlled magnitudes).
func integerItemMust(v int64) StackItem {
	item, err := NewIntegerItem(big.NewInt(v))
	if err != nil {
		panic(err)
	}
	return item
}
