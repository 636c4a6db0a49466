package core

import "testing"

func testKey(prefix string) StorageKey {
	return StorageKey{ContractID: 1, Prefix: []byte(prefix)}
}

func TestDataCacheAddGetCommit(t *testing.T) {
	store := NewMemStore()
	cache := NewDataCache(store)

	k := testKey("alpha")
	if err := cache.Add(k, &StorageItem{Value: []byte("v1")}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := cache.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	raw, err := store.Get(k.Bytes())
	if err != nil {
		t.Fatalf("backend get: %v", err)
	}
	if string(raw) != "v1" {
		t.Fatalf("backend mismatch: got %q", raw)
	}
}

func TestDataCacheAddTwiceFails(t *testing.T) {
	cache := NewDataCache(NewMemStore())
	k := testKey("dup")
	if err := cache.Add(k, &StorageItem{Value: []byte("1")}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := cache.Add(k, &StorageItem{Value: []byte("2")}); err == nil {
		t.Fatalf("expected second add to fail")
	}
}

func TestDataCacheDeleteThenAddBecomesChanged(t *testing.T) {
	store := NewMemStore()
	cache := NewDataCache(store)
	k := testKey("k1")

	if err := cache.Add(k, &StorageItem{Value: []byte("first")}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := cache.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if err := cache.Delete(k); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := cache.Add(k, &StorageItem{Value: []byte("second")}); err != nil {
		t.Fatalf("re-add: %v", err)
	}

	item, err := cache.Get(k)
	if err != nil {
		t.Fatalf("get after delete+add: %v", err)
	}
	if string(item.Value) != "second" {
		t.Fatalf("expected new value visible, got %q", item.Value)
	}
}

func TestDataCacheContainsMatchesTryGet(t *testing.T) {
	cache := NewDataCache(NewMemStore())
	k := testKey("present")

	ok, err := cache.Contains(k)
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if ok {
		t.Fatalf("expected absent key to report false")
	}

	if err := cache.Add(k, &StorageItem{Value: []byte("x")}); err != nil {
		t.Fatalf("add: %v", err)
	}
	ok, err = cache.Contains(k)
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if !ok {
		t.Fatalf("expected present key to report true")
	}

	if err := cache.Delete(k); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ok, err = cache.Contains(k)
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if ok {
		t.Fatalf("expected deleted key to report false")
	}
}

func TestDataCacheCloneCommit(t *testing.T) {
	store := NewMemStore()
	root := NewDataCache(store)
	if err := root.Add(testKey("base"), &StorageItem{Value: []byte("root")}); err != nil {
		t.Fatalf("add base: %v", err)
	}
	if err := root.Commit(); err != nil {
		t.Fatalf("commit base: %v", err)
	}

	child := root.CloneCache()
	if err := child.Add(testKey("child"), &StorageItem{Value: []byte("c1")}); err != nil {
		t.Fatalf("add child: %v", err)
	}

	// Not yet visible to root.
	if _, err := root.Get(testKey("child")); err == nil {
		t.Fatalf("expected child write to be invisible before commit")
	}

	if err := child.Commit(); err != nil {
		t.Fatalf("commit child: %v", err)
	}
	item, err := root.Get(testKey("child"))
	if err != nil {
		t.Fatalf("root get after child commit: %v", err)
	}
	if string(item.Value) != "c1" {
		t.Fatalf("mismatch: got %q", item.Value)
	}
}

func TestDataCacheFindPrefixHidesDeleted(t *testing.T) {
	store := NewMemStore()
	cache := NewDataCache(store)
	cache.Add(testKey("p:a"), &StorageItem{Value: []byte("a")})
	cache.Add(testKey("p:b"), &StorageItem{Value: []byte("b")})
	cache.Commit()

	cache.Delete(testKey("p:a"))

	entries := cache.Find(StorageKey{ContractID: 1, Prefix: []byte("p:")}.Bytes(), Forward)
	if len(entries) != 1 {
		t.Fatalf("expected 1 visible entry, got %d", len(entries))
	}
	if string(entries[0].item.Value) != "b" {
		t.Fatalf("expected remaining entry 'b', got %q", entries[0].item.Value)
	}
}

func TestNextKeyAfterPrefixRejectsAllFF(t *testing.T) {
	if _, err := nextKeyAfterPrefix([]byte{0xFF, 0xFF}); err == nil {
		t.Fatalf("expected error for all-0xFF prefix")
	}
}

func TestNextKeyAfterPrefixIncrementsLastByte(t *testing.T) {
	got, err := nextKeyAfterPrefix([]byte{0x01, 0x02})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{0x01, 0x03}
	if string(got) != string(want) {
		t.Fatalf("got %x want %x", got, want)
	}
}
