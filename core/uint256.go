package core

import (
	"github.com/holiman/uint256"
)

// UInt256 is a fixed 256-bit (32-byte) unsigned integer used as the block
// and transaction hash type. It wraps holiman/uint256.Int for the actual
// word storage and arithmetic, and layers the spec's canonical
// little-endian byte representation and reversed-hex string form on top
// (holiman/uint256's own String()/Bytes() use big-endian, EVM convention,
// which is not what this spec wants).
//
// Grounded on go-ethereum's common.Hash / holiman/uint256, both already
// teacher transitive dependencies.
type UInt256 struct {
	inner uint256.Int
}

// UInt256Zero is the all-zero value.
var UInt256Zero = UInt256{}

// UInt256FromBytes builds a UInt256 from exactly 32 little-endian bytes.
func UInt256FromBytes(b []byte) (UInt256, error) {
	var u UInt256
	if len(b) != 32 {
		return u, fmt_Errorf_lengthMismatch("UInt256", 32, len(b))
	}
	u.inner.SetBytes(reverseBytes(b))
	return u, nil
}

// Bytes returns the 32-byte little-endian representation.
func (u UInt256) Bytes() []byte {
	be := u.inner.Bytes32()
	return reverseBytes(be[:])
}

// Equals reports bytewise equality.
func (u UInt256) Equals(other UInt256) bool { return u.inner.Eq(&other.inner) }

// Compare defines the total order: unsigned comparison, most-significant
// word first (holiman/uint256.Cmp already implements exactly this).
func (u UInt256) Compare(other UInt256) int { return u.inner.Cmp(&other.inner) }

// Less reports u < other under the total order.
func (u UInt256) Less(other UInt256) bool { return u.Compare(other) < 0 }

// String renders u in reversed-byte-order hex with a 0x prefix.
func (u UInt256) String() string { return reversedHex(u.Bytes()) }

// ParseUInt256 parses the reversed-byte-order hex form produced by String.
func ParseUInt256(s string) (UInt256, error) {
	b, err := parseReversedHex(s, 32)
	if err != nil {
		return UInt256{}, err
	}
	return UInt256FromBytes(b)
}

// MarshalJSON renders the canonical hex string form.
func (u UInt256) MarshalJSON() ([]byte, error) {
	return []byte(`"` + u.String() + `"`), nil
}

// UnmarshalJSON parses the canonical hex string form.
func (u *UInt256) UnmarshalJSON(data []byte) error {
	s, err := unquoteJSONString(data)
	if err != nil {
		return err
	}
	parsed, err := ParseUInt256(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
