package core

import "testing"

func TestLedgerContractOnPersistAndLookup(t *testing.T) {
	l := NewLedgerContract(NewDataCache(NewMemStore()))

	if idx, err := l.CurrentIndex(); err != nil || idx != 0 {
		t.Fatalf("CurrentIndex() before any block = %d, %v; want 0, nil", idx, err)
	}

	hash1 := UInt256{1}
	if err := l.OnPersist(1, hash1); err != nil {
		t.Fatalf("OnPersist(1): %v", err)
	}

	idx, err := l.CurrentIndex()
	if err != nil || idx != 1 {
		t.Fatalf("CurrentIndex() = %d, %v; want 1, nil", idx, err)
	}
	cur, err := l.CurrentHash()
	if err != nil || cur != hash1 {
		t.Fatalf("CurrentHash() = %v, %v; want %v, nil", cur, err, hash1)
	}

	got, err := l.BlockHash(1)
	if err != nil || got != hash1 {
		t.Fatalf("BlockHash(1) = %v, %v; want %v, nil", got, err, hash1)
	}

	hash2 := UInt256{2}
	if err := l.OnPersist(2, hash2); err != nil {
		t.Fatalf("OnPersist(2): %v", err)
	}
	if idx, _ := l.CurrentIndex(); idx != 2 {
		t.Fatalf("CurrentIndex() after second block = %d, want 2", idx)
	}
	if got, _ := l.BlockHash(1); got != hash1 {
		t.Fatal("BlockHash(1) should remain unchanged after a later OnPersist")
	}
}
