package core

// UInt160 is a fixed 160-bit (20-byte) unsigned integer used throughout the
// core as an account / contract script hash. Storage is little-endian, as
// is the convention for every fixed-width integer in this package; the
// string representation reverses the byte order and prefixes "0x" to match
// the canonical hex form used by block explorers and RPC clients.
//
// Grounded on core/common_structs.go's Address [20]byte type.
type UInt160 [20]byte

// UInt160Zero is the all-zero value, used as e.g. the sentinel "no account".
var UInt160Zero = UInt160{}

// UInt160FromBytes builds a UInt160 from exactly 20 little-endian bytes.
func UInt160FromBytes(b []byte) (UInt160, error) {
	var u UInt160
	if len(b) != 20 {
		return u, fmt_Errorf_lengthMismatch("UInt160", 20, len(b))
	}
	copy(u[:], b)
	return u, nil
}

// Bytes returns the little-endian byte span backing u. Callers must not
// mutate the returned slice's backing array in place via reslicing tricks;
// this returns a view for read-only use consistent with GetSpan semantics.
func (u UInt160) Bytes() []byte { return u[:] }

// Equals reports whether u and other hold the same bytes.
func (u UInt160) Equals(other UInt160) bool { return u == other }

// Compare defines the total order over UInt160: unsigned comparison,
// most-significant byte first (the stored representation is little-endian,
// so comparison walks from the last byte down to the first).
func (u UInt160) Compare(other UInt160) int {
	for i := len(u) - 1; i >= 0; i-- {
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
func (u UInt160) Less(other UInt160) bool { return u.Compare(other) < 0 }

// String renders u in reversed-byte-order hex with a 0x prefix.
func (u UInt160) String() string { return reversedHex(u[:]) }

// ParseUInt160 parses the reversed-byte-order hex form (with or without the
// 0x prefix) produced by String.
func ParseUInt160(s string) (UInt160, error) {
	b, err := parseReversedHex(s, 20)
	if err != nil {
		return UInt160{}, err
	}
	var u UInt160
	copy(u[:], b)
	return u, nil
}

// MarshalJSON renders the canonical hex string form.
func (u UInt160) MarshalJSON() ([]byte, error) {
	return []byte(`"` + u.String() + `"`), nil
}

// UnmarshalJSON parses the canonical hex string form.
func (u *UInt160) UnmarshalJSON(data []byte) error {
	s, err := unquoteJSONString(data)
	if err != nil {
		return err
	}
	parsed, err := ParseUInt160(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
