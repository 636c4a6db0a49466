package core

import (
	"errors"
	"math/big"
)

// StackItemType identifies the runtime type of a StackItem (spec.md §4.D
// "types" opcode family: ISTYPE/CONVERT switch on these).
type StackItemType byte

const (
	ItemTypeAny StackItemType = iota
	ItemTypePointer
	ItemTypeBoolean
	ItemTypeInteger
	ItemTypeByteString
	ItemTypeBuffer
	ItemTypeArray
	ItemTypeStruct
	ItemTypeMap
	ItemTypeInteropInterface
)

func (t StackItemType) String() string {
	switch t {
	case ItemTypePointer:
		return "Pointer"
	case ItemTypeBoolean:
		return "Boolean"
	case ItemTypeInteger:
		return "Integer"
	case ItemTypeByteString:
		return "ByteString"
	case ItemTypeBuffer:
		return "Buffer"
	case ItemTypeArray:
		return "Array"
	case ItemTypeStruct:
		return "Struct"
	case ItemTypeMap:
		return "Map"
	case ItemTypeInteropInterface:
		return "InteropInterface"
	default:
		return "Any"
	}
}

// maxBigInteger / minBigInteger bound the VM's integer range, spec.md §4.D:
// overflow-checked arithmetic in [-2^255, 2^255).
var (
	maxBigInteger = new(big.Int).Lsh(big.NewInt(1), 255)
	minBigInteger = new(big.Int).Neg(maxBigInteger)
)

// ErrIntegerOverflow is returned by arithmetic opcodes whose result falls
// outside [-2^255, 2^255).
var ErrIntegerOverflow = errors.New("vm: integer result out of range")

func checkIntegerRange(v *big.Int) error {
	if v.Cmp(minBigInteger) < 0 || v.Cmp(maxBigInteger) >= 0 {
		return ErrIntegerOverflow
	}
	return nil
}

// StackItem is the common value type flowing through the evaluation stack,
// storage slots and compound containers (spec.md §4.D).
//
// Grounded on the teacher's push-only []byte stack in virtual_machine.go's
// LightVM.Execute; generalized here into a typed item hierarchy since the
// spec's opcode set (compound types, ISTYPE/CONVERT, map keys) needs more
// than raw byte slices.
type StackItem interface {
	Type() StackItemType
	Bool() bool
	Equals(other StackItem) bool
}

// NullItem is the VM's null/void value.
type NullItem struct{}

func (NullItem) Type() StackItemType { return ItemTypeAny }
func (NullItem) Bool() bool          { return false }
func (NullItem) Equals(other StackItem) bool {
	_, ok := other.(NullItem)
	return ok
}

// BooleanItem wraps a bool.
type BooleanItem struct{ Value bool }

func (b BooleanItem) Type() StackItemType { return ItemTypeBoolean }
func (b BooleanItem) Bool() bool          { return b.Value }
func (b BooleanItem) Equals(other StackItem) bool {
	o, ok := other.(BooleanItem)
	return ok && o.Value == b.Value
}

// IntegerItem wraps a big.Int constrained to [-2^255, 2^255).
type IntegerItem struct{ Value *big.Int }

// NewIntegerItem constructs an IntegerItem, failing if v is out of range.
func NewIntegerItem(v *big.Int) (IntegerItem, error) {
	if err := checkIntegerRange(v); err != nil {
		return IntegerItem{}, err
	}
	return IntegerItem{Value: new(big.Int).Set(v)}, nil
}

func (i IntegerItem) Type() StackItemType { return ItemTypeInteger }
func (i IntegerItem) Bool() bool          { return i.Value.Sign() != 0 }
func (i IntegerItem) Equals(other StackItem) bool {
	o, ok := other.(IntegerItem)
	return ok && o.Value.Cmp(i.Value) == 0
}

// ByteStringItem is an immutable byte sequence (PUSHDATA*, string literals).
type ByteStringItem struct{ Value []byte }

func (b ByteStringItem) Type() StackItemType { return ItemTypeByteString }
func (b ByteStringItem) Bool() bool {
	for _, c := range b.Value {
		if c != 0 {
			return true
		}
	}
	return false
}
func (b ByteStringItem) Equals(other StackItem) bool {
	o, ok := other.(ByteStringItem)
	return ok && bytesEqual(o.Value, b.Value)
}

// BufferItem is a mutable byte sequence (NEWBUFFER/MEMCPY targets).
type BufferItem struct{ Value []byte }

func (b *BufferItem) Type() StackItemType { return ItemTypeBuffer }
func (b *BufferItem) Bool() bool {
	for _, c := range b.Value {
		if c != 0 {
			return true
		}
	}
	return false
}
func (b *BufferItem) Equals(other StackItem) bool { return b == other }

// ArrayItem is an ordered, mutable, reference-type container. IsStruct
// distinguishes NEWSTRUCT items, which compare and clone by value instead
// of by reference.
type ArrayItem struct {
	Items    []StackItem
	IsStruct bool
}

func (a *ArrayItem) Type() StackItemType {
	if a.IsStruct {
		return ItemTypeStruct
	}
	return ItemTypeArray
}
func (a *ArrayItem) Bool() bool { return true }
func (a *ArrayItem) Equals(other StackItem) bool {
	if !a.IsStruct {
		return a == other
	}
	o, ok := other.(*ArrayItem)
	if !ok || !o.IsStruct || len(o.Items) != len(a.Items) {
		return false
	}
	for i := range a.Items {
		if !a.Items[i].Equals(o.Items[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy for Struct items (CLONE-on-duplicate semantics)
// or the same pointer for reference Array items.
func (a *ArrayItem) Clone() *ArrayItem {
	if !a.IsStruct {
		return a
	}
	items := make([]StackItem, len(a.Items))
	for i, it := range a.Items {
		if child, ok := it.(*ArrayItem); ok {
			items[i] = child.Clone()
		} else {
			items[i] = it
		}
	}
	return &ArrayItem{Items: items, IsStruct: true}
}

// MapItem is an insertion-ordered key/value container. Keys must be a
// primitive type (Boolean, Integer, ByteString); compound/interop keys are
// rejected at SETITEM (spec.md §4.D compound family).
type MapItem struct {
	keys   []StackItem
	values []StackItem
}

func NewMapItem() *MapItem { return &MapItem{} }

func (m *MapItem) Type() StackItemType         { return ItemTypeMap }
func (m *MapItem) Bool() bool                  { return true }
func (m *MapItem) Equals(other StackItem) bool { return m == other }
func (m *MapItem) Len() int                    { return len(m.keys) }

func isPrimitiveKey(k StackItem) bool {
	switch k.Type() {
	case ItemTypeBoolean, ItemTypeInteger, ItemTypeByteString:
		return true
	default:
		return false
	}
}

func (m *MapItem) indexOf(key StackItem) int {
	for i, k := range m.keys {
		if k.Equals(key) {
			return i
		}
	}
	return -1
}

// Get returns the value for key, and whether it was present.
func (m *MapItem) Get(key StackItem) (StackItem, bool) {
	i := m.indexOf(key)
	if i < 0 {
		return nil, false
	}
	return m.values[i], true
}

// Set inserts or overwrites key -> value; fails if key is not primitive.
func (m *MapItem) Set(key, value StackItem) error {
	if !isPrimitiveKey(key) {
		return errors.New("vm: map key must be Boolean, Integer or ByteString")
	}
	if i := m.indexOf(key); i >= 0 {
		m.values[i] = value
		return nil
	}
	m.keys = append(m.keys, key)
	m.values = append(m.values, value)
	return nil
}

// Remove deletes key if present; no-op otherwise.
func (m *MapItem) Remove(key StackItem) {
	i := m.indexOf(key)
	if i < 0 {
		return
	}
	m.keys = append(m.keys[:i], m.keys[i+1:]...)
	m.values = append(m.values[:i], m.values[i+1:]...)
}

// Keys / Values return snapshots in insertion order.
func (m *MapItem) Keys() []StackItem   { return append([]StackItem{}, m.keys...) }
func (m *MapItem) Values() []StackItem { return append([]StackItem{}, m.values...) }

// PointerItem is produced by PUSHA: a reference to an instruction offset
// within the currently loaded script, used by CALLA.
type PointerItem struct {
	Script   []byte
	Position int
}

func (p PointerItem) Type() StackItemType { return ItemTypePointer }
func (p PointerItem) Bool() bool          { return true }
func (p PointerItem) Equals(other StackItem) bool {
	o, ok := other.(PointerItem)
	return ok && o.Position == p.Position && bytesEqual(o.Script, p.Script)
}

// InteropItem wraps an arbitrary host-side Go value (e.g. an iterator
// handle) that crosses into the VM opaquely.
type InteropItem struct{ Value interface{} }

func (InteropItem) Type() StackItemType { return ItemTypeInteropInterface }
func (InteropItem) Bool() bool          { return true }
func (i InteropItem) Equals(other StackItem) bool {
	o, ok := other.(InteropItem)
	return ok && o.Value == i.Value
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ItemBytes extracts the raw byte view of a primitive item, for opcodes
// that accept either a ByteString or Buffer operand (splice family).
func ItemBytes(item StackItem) ([]byte, error) {
	switch v := item.(type) {
	case ByteStringItem:
		return v.Value, nil
	case *BufferItem:
		return v.Value, nil
	case IntegerItem:
		return v.Value.Bytes(), nil
	default:
		return nil, errors.New("vm: item is not string-like")
	}
}

// ItemInteger extracts an integer value, converting from ByteString/Buffer
// via little-endian two's-complement interpretation (bigIntFromLE) where the
// opcode semantics allow it.
func ItemInteger(item StackItem) (*big.Int, error) {
	switch v := item.(type) {
	case IntegerItem:
		return v.Value, nil
	case BooleanItem:
		if v.Value {
			return big.NewInt(1), nil
		}
		return big.NewInt(0), nil
	case ByteStringItem:
		if len(v.Value) > 32 {
			return nil, ErrIntegerOverflow
		}
		return bigIntFromLE(v.Value), nil
	case *BufferItem:
		if len(v.Value) > 32 {
			return nil, ErrIntegerOverflow
		}
		return bigIntFromLE(v.Value), nil
	default:
		return nil, errors.New("vm: item is not an integer")
	}
}

// SerializeStackItem renders item into its canonical on-disk byte form, used
// by StorageItem.Flush to persist an Interoperable's mutated view (spec.md
// §3, §9 Design Notes).
//
// Grounded in shape on the teacher's JSON-based snapshot encoding (e.g.
// vm_sandbox_management.go's json.Marshal(info)); the format here is a
// small type-tagged binary encoding rather than JSON, since stack items
// (Buffers, nested Arrays) don't round-trip cleanly through JSON's type
// system.
func SerializeStackItem(item StackItem) ([]byte, error) {
	w := NewBinWriter()
	if err := writeStackItem(w, item, 0); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

const maxStackItemSerializeDepth = 32

func writeStackItem(w *BinWriter, item StackItem, depth int) error {
	if depth > maxStackItemSerializeDepth {
		return errors.New("vm: stack item nesting too deep to serialize")
	}
	w.WriteByte(byte(item.Type()))
	switch v := item.(type) {
	case NullItem:
	case BooleanItem:
		if v.Value {
			w.WriteByte(1)
		} else {
			w.WriteByte(0)
		}
	case IntegerItem:
		b := v.Value.Bytes()
		neg := v.Value.Sign() < 0
		w.WriteVarBytes(append([]byte{boolByte(neg)}, b...))
	case ByteStringItem:
		w.WriteVarBytes(v.Value)
	case *BufferItem:
		w.WriteVarBytes(v.Value)
	case *ArrayItem:
		w.WriteVarUint(uint64(len(v.Items)))
		for _, it := range v.Items {
			if err := writeStackItem(w, it, depth+1); err != nil {
				return err
			}
		}
	case *MapItem:
		w.WriteVarUint(uint64(len(v.keys)))
		for i := range v.keys {
			if err := writeStackItem(w, v.keys[i], depth+1); err != nil {
				return err
			}
			if err := writeStackItem(w, v.values[i], depth+1); err != nil {
				return err
			}
		}
	default:
		return errors.New("vm: item type not serializable")
	}
	return w.Err
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// DeserializeStackItem is the inverse of SerializeStackItem.
func DeserializeStackItem(data []byte) (StackItem, error) {
	r := NewBinReader(data)
	item, err := readStackItem(r, 0)
	if err != nil {
		return nil, err
	}
	return item, r.Err
}

func readStackItem(r *BinReader, depth int) (StackItem, error) {
	if depth > maxStackItemSerializeDepth {
		return nil, errors.New("vm: stack item nesting too deep to deserialize")
	}
	t := StackItemType(r.ReadByte())
	switch t {
	case ItemTypeAny:
		return NullItem{}, r.Err
	case ItemTypeBoolean:
		return BooleanItem{Value: r.ReadByte() != 0}, r.Err
	case ItemTypeInteger:
		raw := r.ReadVarBytes(0)
		if len(raw) == 0 {
			return IntegerItem{Value: big.NewInt(0)}, r.Err
		}
		neg := raw[0] == 1
		v := new(big.Int).SetBytes(raw[1:])
		if neg {
			v.Neg(v)
		}
		return IntegerItem{Value: v}, r.Err
	case ItemTypeByteString:
		return ByteStringItem{Value: r.ReadVarBytes(0)}, r.Err
	case ItemTypeBuffer:
		return &BufferItem{Value: r.ReadVarBytes(0)}, r.Err
	case ItemTypeArray, ItemTypeStruct:
		n := r.ReadVarUint()
		items := make([]StackItem, 0, n)
		for i := uint64(0); i < n; i++ {
			it, err := readStackItem(r, depth+1)
			if err != nil {
				return nil, err
			}
			items = append(items, it)
		}
		return &ArrayItem{Items: items, IsStruct: t == ItemTypeStruct}, r.Err
	case ItemTypeMap:
		n := r.ReadVarUint()
		m := NewMapItem()
		for i := uint64(0); i < n; i++ {
			k, err := readStackItem(r, depth+1)
			if err != nil {
				return nil, err
			}
			v, err := readStackItem(r, depth+1)
			if err != nil {
				return nil, err
			}
			if err := m.Set(k, v); err != nil {
				return nil, err
			}
		}
		return m, r.Err
	default:
		return nil, errors.New("vm: unknown stack item type tag")
	}
}
