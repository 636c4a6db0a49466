package core

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"
)

// UInt512 is a fixed 512-bit (64-byte) unsigned integer, represented
// internally as 8 little-endian uint64 words (§4.A). No corpus library
// provides a fixed 512-bit integer type (holiman/uint256 tops out at 256
// bits), so the word array and its comparisons are hand-rolled; the
// non-deterministic-hash-code open question (spec.md §9) is resolved by
// hashing the canonical byte representation with murmur3, a real corpus
// dependency, rather than by a hand-rolled hash.
type UInt512 [8]uint64

// UInt512Zero is the all-zero value.
var UInt512Zero = UInt512{}

// UInt512FromBytes builds a UInt512 from exactly 64 little-endian bytes.
func UInt512FromBytes(b []byte) (UInt512, error) {
	var u UInt512
	if len(b) != 64 {
		return u, fmt_Errorf_lengthMismatch("UInt512", 64, len(b))
	}
	for i := 0; i < 8; i++ {
		u[i] = binary.LittleEndian.Uint64(b[i*8 : i*8+8])
	}
	return u, nil
}

// Bytes returns the 64-byte little-endian representation.
func (u UInt512) Bytes() []byte {
	out := make([]byte, 64)
	for i := 0; i < 8; i++ {
		binary.LittleEndian.PutUint64(out[i*8:i*8+8], u[i])
	}
	return out
}

// Equals reports bytewise equality.
func (u UInt512) Equals(other UInt512) bool { return u == other }

// Compare defines the total order: unsigned comparison, walking from the
// most-significant word (index 7) down to the least-significant (index 0).
func (u UInt512) Compare(other UInt512) int {
	for i := 7; i >= 0; i-- {
		if u[i] != other[i] {
			if u[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Less reports u < other under the total order.
func (u UInt512) Less(other UInt512) bool { return u.Compare(other) < 0 }

// String renders u in reversed-byte-order hex with a 0x prefix.
func (u UInt512) String() string { return reversedHex(u.Bytes()) }

// ParseUInt512 parses the reversed-byte-order hex form produced by String.
func ParseUInt512(s string) (UInt512, error) {
	b, err := parseReversedHex(s, 64)
	if err != nil {
		return UInt512{}, err
	}
	return UInt512FromBytes(b)
}

// HashCode returns a deterministic 32-bit hash of u's canonical
// little-endian representation, per the Murmur32 open-question resolution
// (spec.md §9, DESIGN.md).
func (u UInt512) HashCode() uint32 {
	return murmur3.Sum32(u.Bytes())
}

// MarshalJSON renders the canonical hex string form.
func (u UInt512) MarshalJSON() ([]byte, error) {
	return []byte(`"` + u.String() + `"`), nil
}

// UnmarshalJSON parses the canonical hex string form.
func (u *UInt512) UnmarshalJSON(data []byte) error {
	s, err := unquoteJSONString(data)
	if err != nil {
		return err
	}
	parsed, err := ParseUInt512(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
