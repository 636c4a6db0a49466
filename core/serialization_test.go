package core

import "testing"

func TestVarUintRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 0xFC, 0xFD, 0xFFFF, 0x10000, 0xFFFFFFFF, 0x100000000, ^uint64(0)}
	for _, v := range cases {
		w := NewBinWriter()
		w.WriteVarUint(v)
		if w.Err != nil {
			t.Fatalf("write %d: %v", v, w.Err)
		}
		r := NewBinReader(w.Bytes())
		got := r.ReadVarUint()
		if r.Err != nil {
			t.Fatalf("read %d: %v", v, r.Err)
		}
		if got != v {
			t.Fatalf("round trip mismatch: got %d want %d", got, v)
		}
	}
}

func TestVarUintEncodingLength(t *testing.T) {
	cases := []struct {
		v    uint64
		size int
	}{
		{0, 1},
		{0xFC, 1},
		{0xFD, 3},
		{0xFFFF, 3},
		{0x10000, 5},
		{0xFFFFFFFF, 5},
		{0x100000000, 9},
	}
	for _, c := range cases {
		w := NewBinWriter()
		w.WriteVarUint(c.v)
		if len(w.Bytes()) != c.size {
			t.Fatalf("value %d: expected %d bytes, got %d", c.v, c.size, len(w.Bytes()))
		}
	}
}

func TestVarBytesRoundTrip(t *testing.T) {
	data := []byte("hello synnergy")
	w := NewBinWriter()
	w.WriteVarBytes(data)
	r := NewBinReader(w.Bytes())
	got := r.ReadVarBytes(0)
	if r.Err != nil {
		t.Fatalf("read: %v", r.Err)
	}
	if string(got) != string(data) {
		t.Fatalf("mismatch: got %q want %q", got, data)
	}
}

func TestVarBytesMaxLenEnforced(t *testing.T) {
	w := NewBinWriter()
	w.WriteVarBytes(make([]byte, 10))
	r := NewBinReader(w.Bytes())
	r.ReadVarBytes(5)
	if r.Err == nil {
		t.Fatalf("expected max-length violation error")
	}
}

func TestFixedWidthRoundTrip(t *testing.T) {
	w := NewBinWriter()
	w.WriteU32(42)
	w.WriteU64(1 << 40)
	w.WriteI64(-7)
	r := NewBinReader(w.Bytes())
	if got := r.ReadU32(); got != 42 {
		t.Fatalf("u32 mismatch: %d", got)
	}
	if got := r.ReadU64(); got != 1<<40 {
		t.Fatalf("u64 mismatch: %d", got)
	}
	if got := r.ReadI64(); got != -7 {
		t.Fatalf("i64 mismatch: %d", got)
	}
}
