package core

import "testing"

func TestUInt512WrongLength(t *testing.T) {
	if _, err := UInt512FromBytes(make([]byte, 63)); err == nil {
		t.Fatalf("expected error for 63-byte input")
	}
	if _, err := UInt512FromBytes(make([]byte, 65)); err == nil {
		t.Fatalf("expected error for 65-byte input")
	}
}

func TestUInt512RoundTrip(t *testing.T) {
	b := make([]byte, 64)
	for i := range b {
		b[i] = byte(255 - i)
	}
	u, err := UInt512FromBytes(b)
	if err != nil {
		t.Fatalf("UInt512FromBytes: %v", err)
	}
	if got := u.Bytes(); string(got) != string(b) {
		t.Fatalf("byte round trip mismatch")
	}
}

func TestUInt512HashCodeDeterministic(t *testing.T) {
	b := make([]byte, 64)
	b[0] = 7
	u1, _ := UInt512FromBytes(b)
	u2, _ := UInt512FromBytes(b)
	if u1.HashCode() != u2.HashCode() {
		t.Fatalf("expected deterministic hash code for equal values")
	}
}

func TestUInt512Order(t *testing.T) {
	var a, b UInt512
	a[7] = 1
	b[7] = 2
	if !a.Less(b) {
		t.Fatalf("expected a < b by most-significant word")
	}
}
