package core

import "testing"

func TestStorageKeyBytesRoundtrip(t *testing.T) {
	k := StorageKey{ContractID: -4, Prefix: []byte{0x01, 0x02, 0x03}}
	got := ParseStorageKey(k.Bytes())
	if got.ContractID != k.ContractID {
		t.Fatalf("ContractID = %d, want %d", got.ContractID, k.ContractID)
	}
	if string(got.Prefix) != string(k.Prefix) {
		t.Fatalf("Prefix = %v, want %v", got.Prefix, k.Prefix)
	}
}

func TestStorageItemCloneIsIndependent(t *testing.T) {
	item := &StorageItem{Value: []byte("original")}
	clone := item.Clone()
	clone.Value[0] = 'O'
	if item.Value[0] == 'O' {
		t.Fatal("mutating a clone's Value should not affect the original")
	}
}

type fakeInterop struct{ flushed bool }

func (f *fakeInterop) Flush(item *StorageItem) error {
	f.flushed = true
	item.Value = []byte("flushed")
	return nil
}

func TestStorageItemFlushDelegatesToInterop(t *testing.T) {
	interop := &fakeInterop{}
	item := &StorageItem{Interop: interop}
	if err := item.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if !interop.flushed {
		t.Fatal("Flush should delegate to the cached Interoperable")
	}
	if string(item.Value) != "flushed" {
		t.Fatalf("Value = %q, want %q", item.Value, "flushed")
	}
}

func TestStorageItemFlushNoopWithoutInterop(t *testing.T) {
	item := &StorageItem{Value: []byte("raw")}
	if err := item.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if string(item.Value) != "raw" {
		t.Fatal("Flush without a cached Interoperable should leave Value untouched")
	}
}
