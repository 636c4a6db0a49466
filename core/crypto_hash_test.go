package core

import "testing"

func TestBase58CheckRoundTrip(t *testing.T) {
	payload := []byte{0x17, 1, 2, 3, 4, 5}
	enc := Base58CheckEncode(payload)
	dec, err := Base58CheckDecode(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(dec) != string(payload) {
		t.Fatalf("mismatch: got %x want %x", dec, payload)
	}
}

func TestBase58CheckBadChecksum(t *testing.T) {
	payload := []byte{0x17, 1, 2, 3}
	enc := Base58CheckEncode(payload)
	tampered := enc[:len(enc)-1] + "1"
	if _, err := Base58CheckDecode(tampered); err == nil {
		t.Fatalf("expected checksum mismatch error")
	}
}

func TestAddressFromScriptHashRoundTrip(t *testing.T) {
	var sh UInt160
	sh[0] = 0xAA
	addr := AddressFromScriptHash(0x35, sh)
	gotSH, version, err := ScriptHashFromAddress(addr)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if version != 0x35 {
		t.Fatalf("version mismatch: got %x", version)
	}
	if gotSH != sh {
		t.Fatalf("script hash mismatch: got %v want %v", gotSH, sh)
	}
}

func TestHash160Deterministic(t *testing.T) {
	script := []byte{0x0c, 0x21, 0x02}
	a := Hash160(script)
	b := Hash160(script)
	if a != b {
		t.Fatalf("expected deterministic hash160")
	}
}
