package core

import "testing"

func TestUInt256RoundTrip(t *testing.T) {
	b := make([]byte, 32)
	for i := range b {
		b[i] = byte(i * 3)
	}
	u, err := UInt256FromBytes(b)
	if err != nil {
		t.Fatalf("UInt256FromBytes: %v", err)
	}
	if got := u.Bytes(); string(got) != string(b) {
		t.Fatalf("byte round trip mismatch: got %x want %x", got, b)
	}
	parsed, err := ParseUInt256(u.String())
	if err != nil {
		t.Fatalf("ParseUInt256: %v", err)
	}
	if !parsed.Equals(u) {
		t.Fatalf("hex round trip mismatch")
	}
}

func TestUInt256WrongLength(t *testing.T) {
	if _, err := UInt256FromBytes(make([]byte, 31)); err == nil {
		t.Fatalf("expected error for short input")
	}
}

func TestUInt256Order(t *testing.T) {
	a, _ := UInt256FromBytes(make([]byte, 32))
	bBytes := make([]byte, 32)
	bBytes[31] = 1 // most-significant LE byte
	b, _ := UInt256FromBytes(bBytes)
	if !a.Less(b) {
		t.Fatalf("expected a < b")
	}
}
