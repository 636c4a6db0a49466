package core

import "errors"

const (
	maxTransactionSize      = 102_400
	maxTransactionScriptLen = 65_535
	maxTransactionSigners   = 16
	maxWitnessScriptLen     = 1024
)

// Witness is the invocation/verification script pair a signer attaches to a
// transaction or block header (spec.md §6 "Witness"). An empty witness
// serializes as (0x00, 0x00).
type Witness struct {
	InvocationScript   []byte
	VerificationScript []byte
}

func (w Witness) encode(bw *BinWriter) {
	bw.WriteVarBytes(w.InvocationScript)
	bw.WriteVarBytes(w.VerificationScript)
}

func decodeWitness(br *BinReader) Witness {
	return Witness{
		InvocationScript:   br.ReadVarBytes(maxWitnessScriptLen),
		VerificationScript: br.ReadVarBytes(maxWitnessScriptLen),
	}
}

// ScriptHash returns the account this witness's verification script
// authenticates, via the standard Hash160 script-hash formula.
func (w Witness) ScriptHash() UInt160 { return Hash160(w.VerificationScript) }

// TxAttributeType identifies one of the four transaction attribute kinds
// (spec.md §4.G "Attributes").
type TxAttributeType uint8

const (
	AttrHighPriority TxAttributeType = iota
	AttrOracleResponse
	AttrConflicts
	AttrNotaryAssisted
)

// AllowMultiple reports whether a transaction may carry more than one
// attribute of this type (spec.md §4.G "AllowMultiple flag per type").
func (t TxAttributeType) AllowMultiple() bool { return t == AttrConflicts }

// TxAttribute is one of HighPriority/OracleResponse/Conflicts/NotaryAssisted,
// modeled as one flat struct (rather than an interface hierarchy) with the
// fields that apply to its Type left zero otherwise, matching the plain
// exported-field struct idiom the rest of this package's data types use.
type TxAttribute struct {
	Type TxAttributeType

	// OracleResponse fields.
	OracleRequestID uint64
	OracleResult    []byte

	// Conflicts fields.
	ConflictHash UInt256
}

func (a TxAttribute) encode(bw *BinWriter) error {
	bw.WriteByte(byte(a.Type))
	switch a.Type {
	case AttrHighPriority, AttrNotaryAssisted:
	case AttrOracleResponse:
		bw.WriteU64(a.OracleRequestID)
		bw.WriteVarBytes(a.OracleResult)
	case AttrConflicts:
		bw.WriteBytes(a.ConflictHash.Bytes())
	default:
		return errors.New("tx: unknown attribute type")
	}
	return nil
}

func decodeTxAttribute(br *BinReader) (TxAttribute, error) {
	a := TxAttribute{Type: TxAttributeType(br.ReadByte())}
	switch a.Type {
	case AttrHighPriority, AttrNotaryAssisted:
	case AttrOracleResponse:
		a.OracleRequestID = br.ReadU64()
		a.OracleResult = br.ReadVarBytes(1 << 16)
	case AttrConflicts:
		hash, err := UInt256FromBytes(br.ReadBytes(32))
		if err != nil {
			return TxAttribute{}, err
		}
		a.ConflictHash = hash
	default:
		return TxAttribute{}, errors.New("tx: unknown attribute type")
	}
	return a, nil
}

// Transaction is the unit of user-submitted work: a fee-bearing, witnessed
// invocation of the VM (spec.md §3 "Transaction").
//
// Grounded on core/common_structs.go's plain-struct-plus-JSON-tags style
// (the struct that style belongs to is kept as LegacyTransaction; see
// DESIGN.md's Open Question decisions), generalized from a single
// sender/recipient/amount payment record into the multi-signer,
// attribute-bearing, scripted transaction spec.md requires.
type Transaction struct {
	Version         byte
	Nonce           uint32
	SystemFee       int64
	NetworkFee      int64
	ValidUntilBlock uint32
	Signers         []Signer
	Attributes      []TxAttribute
	Script          []byte
	Witnesses       []Witness
}

// Sender is the transaction's first signer, the account that pays its fees
// (spec.md §3 "The sender is the first signer").
func (tx *Transaction) Sender() UInt160 {
	if len(tx.Signers) == 0 {
		return UInt160Zero
	}
	return tx.Signers[0].Account
}

func (tx *Transaction) encodeUnsigned(bw *BinWriter) error {
	bw.WriteByte(tx.Version)
	bw.WriteU32(tx.Nonce)
	bw.WriteI64(tx.SystemFee)
	bw.WriteI64(tx.NetworkFee)
	bw.WriteU32(tx.ValidUntilBlock)

	bw.WriteVarUint(uint64(len(tx.Signers)))
	for _, s := range tx.Signers {
		encodeSigner(bw, s)
	}

	bw.WriteVarUint(uint64(len(tx.Attributes)))
	for _, a := range tx.Attributes {
		if err := a.encode(bw); err != nil {
			return err
		}
	}

	bw.WriteVarBytes(tx.Script)
	return nil
}

// Encode renders tx's full wire form: the unsigned body followed by one
// witness per signer (spec.md §6 "Transaction layout").
func (tx *Transaction) Encode() ([]byte, error) {
	bw := NewBinWriter()
	if err := tx.encodeUnsigned(bw); err != nil {
		return nil, err
	}
	bw.WriteVarUint(uint64(len(tx.Witnesses)))
	for _, w := range tx.Witnesses {
		w.encode(bw)
	}
	return bw.Bytes(), nil
}

// Hash is SHA-256 of tx's unsigned serialization (spec.md §3 "The hash is
// the SHA-256 of its unsigned serialization" — a single hash, not the
// double-SHA-256 Hash256 uses elsewhere for block/address checksums).
func (tx *Transaction) Hash() (UInt256, error) {
	bw := NewBinWriter()
	if err := tx.encodeUnsigned(bw); err != nil {
		return UInt256{}, err
	}
	digest := SHA256(bw.Bytes())
	return UInt256FromBytes(digest[:])
}

// Validate checks the format-level invariants spec.md §3/§4.G/§6 place on a
// transaction shape, independent of any snapshot.
func (tx *Transaction) Validate() error {
	encoded, err := tx.Encode()
	if err != nil {
		return err
	}
	if len(encoded) > maxTransactionSize {
		return errors.New("tx: exceeds max transaction size")
	}
	if len(tx.Script) == 0 || len(tx.Script) > maxTransactionScriptLen {
		return errors.New("tx: script length out of bounds")
	}
	if len(tx.Signers) == 0 || len(tx.Signers) > maxTransactionSigners {
		return errors.New("tx: signer count out of bounds")
	}
	if len(tx.Witnesses) != len(tx.Signers) {
		return errors.New("tx: witness count must match signer count")
	}
	if tx.SystemFee < 0 || tx.NetworkFee < 0 {
		return errors.New("tx: fees must be non-negative")
	}
	seen := make(map[UInt160]bool, len(tx.Signers))
	for _, s := range tx.Signers {
		if seen[s.Account] {
			return errors.New("tx: duplicate signer account")
		}
		seen[s.Account] = true
	}
	counts := make(map[TxAttributeType]int, len(tx.Attributes))
	for _, a := range tx.Attributes {
		counts[a.Type]++
		if counts[a.Type] > 1 && !a.Type.AllowMultiple() {
			return errors.New("tx: duplicate attribute of a type that disallows multiples")
		}
	}
	if len(tx.Attributes) > maxTransactionSigners {
		return errors.New("tx: too many attributes")
	}
	return nil
}

// DecodeTransaction parses the wire form Encode produces.
func DecodeTransaction(b []byte) (*Transaction, error) {
	if len(b) > maxTransactionSize {
		return nil, errors.New("tx: exceeds max transaction size")
	}
	br := NewBinReader(b)
	tx := &Transaction{
		Version:         br.ReadByte(),
		Nonce:           br.ReadU32(),
		SystemFee:       br.ReadI64(),
		NetworkFee:      br.ReadI64(),
		ValidUntilBlock: br.ReadU32(),
	}

	signerCount := br.ReadVarUint()
	tx.Signers = make([]Signer, signerCount)
	for i := range tx.Signers {
		s, err := decodeSigner(br)
		if err != nil {
			return nil, err
		}
		tx.Signers[i] = s
	}

	attrCount := br.ReadVarUint()
	tx.Attributes = make([]TxAttribute, attrCount)
	for i := range tx.Attributes {
		a, err := decodeTxAttribute(br)
		if err != nil {
			return nil, err
		}
		tx.Attributes[i] = a
	}

	tx.Script = br.ReadVarBytes(maxTransactionScriptLen)

	witnessCount := br.ReadVarUint()
	tx.Witnesses = make([]Witness, witnessCount)
	for i := range tx.Witnesses {
		tx.Witnesses[i] = decodeWitness(br)
	}

	return tx, nil
}

func encodeSigner(bw *BinWriter, s Signer) {
	bw.WriteBytes(s.Account.Bytes())
	bw.WriteByte(byte(s.Scopes))
	bw.WriteVarUint(uint64(len(s.AllowedContracts)))
	for _, c := range s.AllowedContracts {
		bw.WriteBytes(c.Bytes())
	}
	bw.WriteVarUint(uint64(len(s.AllowedGroups)))
	for _, g := range s.AllowedGroups {
		bw.WriteVarBytes(g)
	}
	bw.WriteVarUint(uint64(len(s.Rules)))
	for _, r := range s.Rules {
		bw.WriteByte(byte(r.Action))
		encodeWitnessCondition(bw, r.Condition)
	}
}

func decodeSigner(br *BinReader) (Signer, error) {
	account, err := UInt160FromBytes(br.ReadBytes(20))
	if err != nil {
		return Signer{}, err
	}
	s := Signer{Account: account, Scopes: WitnessScope(br.ReadByte())}

	contractCount := br.ReadVarUint()
	s.AllowedContracts = make([]UInt160, contractCount)
	for i := range s.AllowedContracts {
		c, err := UInt160FromBytes(br.ReadBytes(20))
		if err != nil {
			return Signer{}, err
		}
		s.AllowedContracts[i] = c
	}

	groupCount := br.ReadVarUint()
	s.AllowedGroups = make([][]byte, groupCount)
	for i := range s.AllowedGroups {
		s.AllowedGroups[i] = br.ReadVarBytes(33)
	}

	ruleCount := br.ReadVarUint()
	s.Rules = make([]WitnessRule, ruleCount)
	for i := range s.Rules {
		action := WitnessRuleAction(br.ReadByte())
		cond, err := decodeWitnessCondition(br)
		if err != nil {
			return Signer{}, err
		}
		s.Rules[i] = WitnessRule{Action: action, Condition: cond}
	}
	return s, nil
}

func encodeWitnessCondition(bw *BinWriter, c *WitnessCondition) {
	bw.WriteByte(byte(c.Type))
	switch c.Type {
	case WitnessConditionBoolean:
		if c.BoolValue {
			bw.WriteByte(1)
		} else {
			bw.WriteByte(0)
		}
	case WitnessConditionScriptHash, WitnessConditionCalledByContract:
		bw.WriteBytes(c.ScriptHash.Bytes())
	case WitnessConditionGroup:
		bw.WriteVarBytes(c.Group)
	case WitnessConditionAnd, WitnessConditionOr:
		bw.WriteVarUint(uint64(len(c.Children)))
		for _, ch := range c.Children {
			encodeWitnessCondition(bw, ch)
		}
	case WitnessConditionNot:
		encodeWitnessCondition(bw, c.Children[0])
	}
}

func decodeWitnessCondition(br *BinReader) (*WitnessCondition, error) {
	c := &WitnessCondition{Type: WitnessConditionType(br.ReadByte())}
	switch c.Type {
	case WitnessConditionBoolean:
		c.BoolValue = br.ReadByte() != 0
	case WitnessConditionScriptHash, WitnessConditionCalledByContract:
		h, err := UInt160FromBytes(br.ReadBytes(20))
		if err != nil {
			return nil, err
		}
		c.ScriptHash = h
	case WitnessConditionGroup:
		c.Group = br.ReadVarBytes(33)
	case WitnessConditionAnd, WitnessConditionOr:
		n := br.ReadVarUint()
		c.Children = make([]*WitnessCondition, n)
		for i := range c.Children {
			child, err := decodeWitnessCondition(br)
			if err != nil {
				return nil, err
			}
			c.Children[i] = child
		}
	case WitnessConditionNot:
		child, err := decodeWitnessCondition(br)
		if err != nil {
			return nil, err
		}
		c.Children = []*WitnessCondition{child}
	default:
		return nil, errors.New("tx: unknown witness condition type")
	}
	return c, nil
}
