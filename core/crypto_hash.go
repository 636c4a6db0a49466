package core

import (
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
	"github.com/spaolacci/murmur3"
	"golang.org/x/crypto/ripemd160" //lint:ignore SA1019 ripemd160 is required by the address scheme
)

// Cryptography primitives (spec.md §4.B): deterministic hash functions,
// Base58Check, and the address derivation formula. Signature schemes live
// in crypto_sign.go; symmetric/KDF primitives live in crypto_aes.go.
//
// Grounded on core/security.go (BLS/Dilithium/AEAD stack) and
// core/wallet.go (ripemd160, base58-adjacent address derivation idiom).

// SHA256 returns the SHA-256 digest of data.
func SHA256(data []byte) [32]byte { return sha256.Sum256(data) }

// SHA256d returns SHA-256(SHA-256(data)), the double-hash used by
// Base58Check checksums.
func SHA256d(data []byte) [32]byte {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}

// SHA512 returns the SHA-512 digest of data.
func SHA512(data []byte) [64]byte { return sha512.Sum512(data) }

// RIPEMD160 returns the RIPEMD-160 digest of data.
func RIPEMD160(data []byte) [20]byte {
	h := ripemd160.New()
	h.Write(data)
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Keccak256 returns the Keccak-256 digest of data (distinct from
// SHA3-256; used by the secp256k1 signer family).
func Keccak256(data []byte) [32]byte {
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(data))
	return out
}

// Murmur32 returns the 32-bit Murmur hash of data.
func Murmur32(data []byte) uint32 { return murmur3.Sum32(data) }

// Murmur128 returns the 128-bit Murmur hash of data as two uint64 words.
func Murmur128(data []byte) (uint64, uint64) { return murmur3.Sum128(data) }

// Hash160 is RIPEMD160(SHA256(data)), the standard "script hash" formula
// used to derive an account's UInt160 from its verification script.
func Hash160(data []byte) UInt160 {
	sha := SHA256(data)
	return UInt160(RIPEMD160(sha[:]))
}

// Hash256 is SHA256(SHA256(data)) as a UInt256 (used for the dBFT
// preparation hash; Transaction.Hash and BlockHeader.Hash are single SHA-256).
func Hash256(data []byte) UInt256 {
	d := SHA256d(data)
	u, _ := UInt256FromBytes(d[:])
	return u
}

// Base58CheckEncode encodes payload with a 4-byte SHA256d checksum appended,
// per spec.md §4.B.
func Base58CheckEncode(payload []byte) string {
	checksum := SHA256d(payload)
	full := append(append([]byte{}, payload...), checksum[:4]...)
	return base58.Encode(full)
}

// Base58CheckDecode decodes s and verifies its trailing 4-byte checksum,
// returning the payload with the checksum stripped.
func Base58CheckDecode(s string) ([]byte, error) {
	full, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("base58 decode: %w", err)
	}
	if len(full) < 5 {
		return nil, errors.New("base58check: payload too short")
	}
	payload := full[:len(full)-4]
	wantChecksum := full[len(full)-4:]
	gotChecksum := SHA256d(payload)
	for i := 0; i < 4; i++ {
		if gotChecksum[i] != wantChecksum[i] {
			return nil, errors.New("base58check: checksum mismatch")
		}
	}
	return payload, nil
}

// AddressFromScriptHash derives the Base58Check address string for a
// verification-script hash, per spec.md §4.B: the address-version byte is
// prepended to the 20-byte script hash before Base58Check encoding.
func AddressFromScriptHash(version byte, scriptHash UInt160) string {
	payload := make([]byte, 0, 21)
	payload = append(payload, version)
	payload = append(payload, scriptHash.Bytes()...)
	return Base58CheckEncode(payload)
}

// ScriptHashFromAddress recovers the verification-script hash and address
// version byte from a Base58Check address string.
func ScriptHashFromAddress(address string) (UInt160, byte, error) {
	payload, err := Base58CheckDecode(address)
	if err != nil {
		return UInt160{}, 0, err
	}
	if len(payload) != 21 {
		return UInt160{}, 0, fmt.Errorf("address payload: expected 21 bytes, got %d", len(payload))
	}
	u, err := UInt160FromBytes(payload[1:])
	if err != nil {
		return UInt160{}, 0, err
	}
	return u, payload[0], nil
}
