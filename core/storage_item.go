package core

import "encoding/binary"

// StorageKey addresses one (contractID, prefix) slot in a DataCache layer.
// Every native contract's key-builder follows the same shape (e.g.
// native_policy.go's policyKey, native_neo.go's neoAccountKey): a negative
// contract id picked from the native range, plus a prefix byte distinguishing
// that contract's own storage sub-namespaces.
type StorageKey struct {
	ContractID int32
	Prefix     []byte
}

// Bytes renders k as the flat key DataCache indexes its local map by and
// KVStore persists under: a big-endian contract id followed by the prefix.
func (k StorageKey) Bytes() []byte {
	b := make([]byte, 4+len(k.Prefix))
	binary.BigEndian.PutUint32(b, uint32(k.ContractID))
	copy(b[4:], k.Prefix)
	return b
}

// ParseStorageKey reverses StorageKey.Bytes, splitting a raw DataCache/
// KVStore key back into its contract id and prefix. Used by native
// contracts that walk a whole prefix range with DataCache.Find (e.g.
// native_neo_committee.go's registeredCandidates) and need the key's
// prefix tail back to recover what was appended to it (a pubkey, a
// height, an account hash).
func ParseStorageKey(b []byte) StorageKey {
	if len(b) < 4 {
		return StorageKey{}
	}
	return StorageKey{
		ContractID: int32(binary.BigEndian.Uint32(b[:4])),
		Prefix:     append([]byte{}, b[4:]...),
	}
}

// Interoperable is a decoded view of a StorageItem's bytes, cached so a
// contract need not re-decode its own storage slot on every access. Flush
// serializes the cached view back into item.Value before DataCache.Commit
// persists it (spec.md §4.C storage-item lifecycle).
type Interoperable interface {
	Flush(item *StorageItem) error
}

// StorageItem is a single value in the DataCache/KVStore tier, with an
// optional cached Interoperable view layered over the raw bytes.
type StorageItem struct {
	Value   []byte
	Interop Interoperable
	dirty   bool
}

// Clone deep-copies i's Value. DataCache.TryGet clones a parent layer's item
// into the child's local map so a child mutation never aliases the parent.
func (i *StorageItem) Clone() *StorageItem {
	v := make([]byte, len(i.Value))
	copy(v, i.Value)
	return &StorageItem{Value: v, Interop: i.Interop}
}

// MarkDirty flags i as locally modified after an in-place Value mutation
// (native contracts call this right after writing into item.Value).
func (i *StorageItem) MarkDirty() { i.dirty = true }

// Flush serializes i's cached Interoperable view, if any, back into Value.
func (i *StorageItem) Flush() error {
	if i.Interop == nil {
		return nil
	}
	return i.Interop.Flush(i)
}
