package core

import "testing"

func TestAES256GCMRoundTrip(t *testing.T) {
	key, err := ScryptDeriveKey([]byte("passphrase"), []byte("somesalt"))
	if err != nil {
		t.Fatalf("derive key: %v", err)
	}
	plaintext := []byte("wallet private key bytes")
	sealed, err := AES256GCMEncrypt(key, plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := AES256GCMDecrypt(key, sealed)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Fatalf("mismatch: got %q want %q", got, plaintext)
	}
}

func TestAES256GCMWrongKeyFails(t *testing.T) {
	key1, _ := ScryptDeriveKey([]byte("pass1"), []byte("salt"))
	key2, _ := ScryptDeriveKey([]byte("pass2"), []byte("salt"))
	sealed, err := AES256GCMEncrypt(key1, []byte("secret"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := AES256GCMDecrypt(key2, sealed); err == nil {
		t.Fatalf("expected decryption with wrong key to fail")
	}
}
