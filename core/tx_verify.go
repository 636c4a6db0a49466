package core

import (
	"crypto/ecdsa"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
)

// NetworkMagic tags the network a witness's signature is bound to, so a
// signature produced for one network can never verify on another (spec.md
// §4.G "sign-data = network-magic ∥ tx-hash").
const NetworkMagic uint32 = 860833102

const (
	defaultMaxValidUntilBlockIncrement = 5760
	maxTransactionAttributes           = 16
)

// VerifyTransactionFormat runs the state-independent checks: size, script
// decodability, and — for every witness whose verification script matches
// a recognizable single-sig or m-of-n multi-sig template — signature
// verification over the network-bound sign data (spec.md §4.G
// "state-independent").
func VerifyTransactionFormat(tx *Transaction) error {
	if err := tx.Validate(); err != nil {
		if len(tx.Script) > maxTransactionScriptLen || len(tx.Attributes) > maxTransactionAttributes {
			return NewVerificationFailure(OverSize, err.Error())
		}
		return NewVerificationFailure(Invalid, err.Error())
	}
	if err := ValidateScript(tx.Script); err != nil {
		return NewVerificationFailure(InvalidScript, err.Error())
	}

	hash, err := tx.Hash()
	if err != nil {
		return NewVerificationFailure(Invalid, err.Error())
	}
	signData := append(encodeNetworkMagic(NetworkMagic), hash.Bytes()...)

	for i, w := range tx.Witnesses {
		tmpl, ok := parseVerificationTemplate(w.VerificationScript)
		if !ok {
			continue // non-standard witness: left to VM execution at state-dependent time.
		}
		sigs, err := parseInvocationSignatures(w.InvocationScript, tmpl.m)
		if err != nil {
			return NewVerificationFailure(InvalidSignature, err.Error())
		}
		if !CanonicalMultiSigVerify(tmpl.pubkeys, tmpl.m, sigs, signData) {
			return NewVerificationFailure(InvalidSignature, fmt.Sprintf("witness signature verification failed for signer %d", i))
		}
	}
	return nil
}

// SingleSigVerificationScript renders the standard single-signature
// verification template for pubkey: PUSHDATA1(pubkey), SYSCALL(CheckSig)
// (spec.md §4.B). Used to derive the account a committee/candidate public
// key resolves to, since rewards are paid to script hashes, not raw keys.
func SingleSigVerificationScript(pubkey []byte) []byte {
	script := append([]byte{byte(PUSHDATA1), byte(len(pubkey))}, pubkey...)
	idBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(idBytes, checkSigInteropID)
	return append(append(script, byte(SYSCALL)), idBytes...)
}

// AccountFromPublicKey returns the script hash a compressed public key's
// standard single-sig witness verifies against.
func AccountFromPublicKey(pubkey []byte) UInt160 {
	return Hash160(SingleSigVerificationScript(pubkey))
}

// MultiSigVerificationScript renders the standard m-of-n multi-sig
// verification template for pubkeys: PUSHn(m), PUSHDATA1(pubkey)×n,
// PUSHn(n), SYSCALL(CheckMultisig) (spec.md §4.B), the same shape
// parseVerificationTemplate recognizes on the decode side. pubkeys must
// already be sorted into the canonical order CanonicalMultiSigVerify
// expects.
func MultiSigVerificationScript(m int, pubkeys [][]byte) []byte {
	var script []byte
	script = append(script, byte(PUSH0+Opcode(m)))
	for _, pk := range pubkeys {
		script = append(script, byte(PUSHDATA1), byte(len(pk)))
		script = append(script, pk...)
	}
	script = append(script, byte(PUSH0+Opcode(len(pubkeys))))
	idBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(idBytes, checkMultisigInteropID)
	return append(append(script, byte(SYSCALL)), idBytes...)
}

// AccountFromMultiSig returns the script hash an m-of-n validator
// committee's standard multi-sig witness verifies against — used to
// derive a block header's NextConsensus field from a committee/validator
// set (spec.md §4.F "NextConsensus").
func AccountFromMultiSig(m int, pubkeys [][]byte) UInt160 {
	return Hash160(MultiSigVerificationScript(m, pubkeys))
}

func encodeNetworkMagic(magic uint32) []byte {
	bw := NewBinWriter()
	bw.WriteU32(magic)
	return bw.Bytes()
}

type verificationTemplate struct {
	m       int
	pubkeys []*ecdsa.PublicKey
}

var (
	checkSigInteropID      = interopID("System.Crypto.CheckSig")
	checkMultisigInteropID = interopID("System.Crypto.CheckMultisig")
)

func syscallTargets(operand []byte, id uint32) bool {
	return len(operand) == 4 && binary.LittleEndian.Uint32(operand) == id
}

// parseVerificationTemplate recognizes the two standard verification
// script shapes: a single PUSHDATA1(33-byte pubkey) followed by a
// System.Crypto.CheckSig SYSCALL, or PUSHn(m), PUSHDATA1(pubkey)×n,
// PUSHn(n), System.Crypto.CheckMultisig (spec.md §4.B "recognizable as a
// single-sig or m-of-n multi-sig template").
func parseVerificationTemplate(script []byte) (verificationTemplate, bool) {
	var instrs []Instruction
	for ip := 0; ip < len(script); {
		instr, err := decodeInstruction(script, ip)
		if err != nil {
			return verificationTemplate{}, false
		}
		instrs = append(instrs, instr)
		ip = instr.Next
	}
	if len(instrs) < 2 {
		return verificationTemplate{}, false
	}
	last := instrs[len(instrs)-1]
	if last.Opcode != SYSCALL {
		return verificationTemplate{}, false
	}

	// Single-sig: PUSHDATA1(pubkey), SYSCALL(CheckSig).
	if len(instrs) == 2 && instrs[0].Opcode == PUSHDATA1 && syscallTargets(last.Operand, checkSigInteropID) {
		pub, err := DecompressP256PublicKey(instrs[0].Operand)
		if err != nil {
			return verificationTemplate{}, false
		}
		return verificationTemplate{m: 1, pubkeys: []*ecdsa.PublicKey{pub}}, true
	}
	if !syscallTargets(last.Operand, checkMultisigInteropID) {
		return verificationTemplate{}, false
	}

	// Multi-sig: PUSHn(m), PUSHDATA1(pubkey)×n, PUSHn(n), SYSCALL(CheckMultisig).
	m, ok := smallPushValue(instrs[0].Opcode)
	if !ok {
		return verificationTemplate{}, false
	}
	n, ok := smallPushValue(instrs[len(instrs)-2].Opcode)
	if !ok || len(instrs)-3 != n {
		return verificationTemplate{}, false
	}
	pubkeys := make([]*ecdsa.PublicKey, n)
	for i := 0; i < n; i++ {
		if instrs[1+i].Opcode != PUSHDATA1 {
			return verificationTemplate{}, false
		}
		pub, err := DecompressP256PublicKey(instrs[1+i].Operand)
		if err != nil {
			return verificationTemplate{}, false
		}
		pubkeys[i] = pub
	}
	return verificationTemplate{m: m, pubkeys: pubkeys}, true
}

func smallPushValue(op Opcode) (int, bool) {
	if op >= PUSH0 && op <= PUSH16 {
		return int(op - PUSH0), true
	}
	return 0, false
}

// parseInvocationSignatures reads an invocation script expected to be
// exactly want PUSHDATA1(signature) instructions (spec.md §4.G "parse
// invocation script as exactly m PUSHDATA1-64 signatures").
func parseInvocationSignatures(script []byte, want int) ([][]byte, error) {
	var sigs [][]byte
	for ip := 0; ip < len(script); {
		instr, err := decodeInstruction(script, ip)
		if err != nil {
			return nil, err
		}
		if instr.Opcode != PUSHDATA1 {
			return nil, errors.New("tx: invocation script must consist only of pushed signatures")
		}
		sigs = append(sigs, instr.Operand)
		ip = instr.Next
	}
	if len(sigs) != want {
		return nil, errors.New("tx: invocation script signature count does not match verification template")
	}
	return sigs, nil
}

// TransactionVerificationContext accumulates the fees pending across every
// mempool-resident transaction from a given sender, and the senders that
// have already submitted an OracleResponse for a given request id (spec.md
// §4.G/§4.H "TransactionVerificationContext invariants").
//
// Grounded on core/txpool_stub.go's per-sender bookkeeping map, generalized
// from a plain counter into the fee-accounting ledger the pool and
// state-dependent verify share.
type TransactionVerificationContext struct {
	senderFees map[UInt160]*big.Int
	oracleIDs  map[uint64]map[UInt160]bool
}

// NewTransactionVerificationContext returns an empty context.
func NewTransactionVerificationContext() *TransactionVerificationContext {
	return &TransactionVerificationContext{
		senderFees: make(map[UInt160]*big.Int),
		oracleIDs:  make(map[uint64]map[UInt160]bool),
	}
}

// Clone deep-copies c, so a caller can probe a hypothetical addition
// without mutating the pool's live accounting (spec.md §4.H "TryAdd ...
// run state-dependent verify with a clone of the verification context").
func (c *TransactionVerificationContext) Clone() *TransactionVerificationContext {
	clone := NewTransactionVerificationContext()
	for sender, fees := range c.senderFees {
		clone.senderFees[sender] = new(big.Int).Set(fees)
	}
	for id, senders := range c.oracleIDs {
		set := make(map[UInt160]bool, len(senders))
		for sender := range senders {
			set[sender] = true
		}
		clone.oracleIDs[id] = set
	}
	return clone
}

func (c *TransactionVerificationContext) attributeFees(tx *Transaction) int64 {
	var total int64
	for _, a := range tx.Attributes {
		if a.Type == AttrOracleResponse {
			total += int64(defaultOracleResponseFee)
		}
	}
	return total
}

const defaultOracleResponseFee = 0

// CheckTransaction reports whether the sender's GAS balance covers tx's
// fees plus every other fee already pending from that sender in the pool,
// and rejects a second OracleResponse sharing an existing request id
// (spec.md §4.G state-dependent check 3, §4.H invariants).
func (c *TransactionVerificationContext) CheckTransaction(tx *Transaction, gas *GasContract) (bool, error) {
	for _, a := range tx.Attributes {
		if a.Type != AttrOracleResponse {
			continue
		}
		if senders, ok := c.oracleIDs[a.OracleRequestID]; ok && len(senders) > 0 {
			return false, nil
		}
	}

	sender := tx.Sender()
	balance, err := gas.BalanceOf(sender)
	if err != nil {
		return false, err
	}
	incoming := big.NewInt(tx.SystemFee + tx.NetworkFee + c.attributeFees(tx))
	pending := c.senderFees[sender]
	if pending == nil {
		pending = big.NewInt(0)
	}
	total := new(big.Int).Add(pending, incoming)
	return balance.Cmp(total) >= 0, nil
}

// AddTransaction records tx as pending against its sender's fee total, and
// any OracleResponse attribute it carries against that request id.
func (c *TransactionVerificationContext) AddTransaction(tx *Transaction) {
	sender := tx.Sender()
	incoming := big.NewInt(tx.SystemFee + tx.NetworkFee + c.attributeFees(tx))
	if pending, ok := c.senderFees[sender]; ok {
		pending.Add(pending, incoming)
	} else {
		c.senderFees[sender] = incoming
	}
	for _, a := range tx.Attributes {
		if a.Type != AttrOracleResponse {
			continue
		}
		if c.oracleIDs[a.OracleRequestID] == nil {
			c.oracleIDs[a.OracleRequestID] = make(map[UInt160]bool)
		}
		c.oracleIDs[a.OracleRequestID][sender] = true
	}
}

// RemoveTransaction reverses AddTransaction, called when tx leaves the pool
// (included in a block, evicted, or displaced by a Conflicts attribute).
func (c *TransactionVerificationContext) RemoveTransaction(tx *Transaction) {
	sender := tx.Sender()
	incoming := big.NewInt(tx.SystemFee + tx.NetworkFee + c.attributeFees(tx))
	if pending, ok := c.senderFees[sender]; ok {
		pending.Sub(pending, incoming)
		if pending.Sign() <= 0 {
			delete(c.senderFees, sender)
		}
	}
	for _, a := range tx.Attributes {
		if a.Type != AttrOracleResponse {
			continue
		}
		delete(c.oracleIDs[a.OracleRequestID], sender)
	}
}

// VerifyStateDependent runs the snapshot-aware checks spec.md §4.G lists
// beyond format verification: valid-until-block window, the Policy
// blocklist, sender fee sufficiency via ctx, and network-fee sufficiency
// against the byte-size fee schedule.
func VerifyStateDependent(tx *Transaction, currentIndex uint32, policy *PolicyContract, gas *GasContract, ctx *TransactionVerificationContext) error {
	if tx.ValidUntilBlock <= currentIndex {
		return NewVerificationFailure(Expired, "transaction has already expired")
	}
	if tx.ValidUntilBlock > currentIndex+defaultMaxValidUntilBlockIncrement {
		return NewVerificationFailure(Expired, "valid-until-block too far in the future")
	}
	for _, s := range tx.Signers {
		if policy.IsBlocked(s.Account) {
			return NewVerificationFailure(PolicyFail, fmt.Sprintf("signer account %s is blocked", s.Account))
		}
	}

	ok, err := ctx.CheckTransaction(tx, gas)
	if err != nil {
		return NewVerificationFailure(Invalid, err.Error())
	}
	if !ok {
		return NewVerificationFailure(InsufficientFunds, "insufficient GAS balance for pending fees")
	}

	feePerByte, err := policy.FeePerByte()
	if err != nil {
		return NewVerificationFailure(Invalid, err.Error())
	}
	encoded, err := tx.Encode()
	if err != nil {
		return NewVerificationFailure(Invalid, err.Error())
	}
	minNetworkFee := int64(uint64(len(encoded)) * feePerByte)
	if tx.NetworkFee < minNetworkFee {
		return NewVerificationFailure(InsufficientFunds, "network fee below minimum required for size")
	}
	return nil
}
