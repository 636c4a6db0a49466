package core

import "errors"

const policyContractID int32 = -2

const (
	prefixFeePerByte     byte = 0x01
	prefixExecFeeFactor  byte = 0x02
	prefixStoragePrice   byte = 0x03
	prefixBlockedAccount byte = 0x04
)

const (
	defaultFeePerByte    uint64 = 1000
	defaultExecFeeFactor uint64 = 30
	defaultStoragePrice  uint64 = 100000
)

// PolicyContract is the native Policy contract: per-committee-adjustable
// fee knobs and the blocked-accounts set every transaction/contract-call
// check consults (spec.md §4.F "Policy").
//
// Grounded on core/access_control.go's AccessController (ledger-backed
// per-key flags with an in-memory cache), generalized from role grants to
// fee-parameter storage and a blocklist set.
type PolicyContract struct {
	store *DataCache
}

// NewPolicyContract wires Policy against a snapshot.
func NewPolicyContract(store *DataCache) *PolicyContract {
	return &PolicyContract{store: store}
}

func policyKey(prefix byte) StorageKey {
	return StorageKey{ContractID: policyContractID, Prefix: []byte{prefix}}
}

func (p *PolicyContract) getUint64(prefix byte, def uint64) (uint64, error) {
	item, err := p.store.TryGet(policyKey(prefix))
	if err != nil {
		return 0, err
	}
	if item == nil || len(item.Value) != 8 {
		return def, nil
	}
	return bytesToUint64LE(item.Value), nil
}

func (p *PolicyContract) setUint64(prefix byte, v uint64) error {
	item, err := p.store.GetAndChange(policyKey(prefix), func() *StorageItem { return &StorageItem{Value: make([]byte, 8)} })
	if err != nil {
		return err
	}
	copy(item.Value, uint64ToBytesLE(v))
	item.MarkDirty()
	return nil
}

// FeePerByte returns the current per-byte network fee rate.
func (p *PolicyContract) FeePerByte() (uint64, error) {
	return p.getUint64(prefixFeePerByte, defaultFeePerByte)
}

// SetFeePerByte updates the per-byte network fee rate (committee-gated in
// a full deployment; the gate itself is a caller concern, not Policy's).
func (p *PolicyContract) SetFeePerByte(v uint64) error { return p.setUint64(prefixFeePerByte, v) }

// ExecFeeFactor returns the multiplier ExecutionEngine.chargeGas applies to
// every opcode's base cost.
func (p *PolicyContract) ExecFeeFactor() (uint64, error) {
	return p.getUint64(prefixExecFeeFactor, defaultExecFeeFactor)
}

// SetExecFeeFactor updates the opcode gas multiplier.
func (p *PolicyContract) SetExecFeeFactor(v uint64) error { return p.setUint64(prefixExecFeeFactor, v) }

// StoragePrice returns the GAS cost charged per byte of new storage.
func (p *PolicyContract) StoragePrice() (uint64, error) {
	return p.getUint64(prefixStoragePrice, defaultStoragePrice)
}

// SetStoragePrice updates the per-byte storage cost.
func (p *PolicyContract) SetStoragePrice(v uint64) error { return p.setUint64(prefixStoragePrice, v) }

func blockedAccountKey(hash UInt160) StorageKey {
	return StorageKey{ContractID: policyContractID, Prefix: append([]byte{prefixBlockedAccount}, hash.Bytes()...)}
}

// IsBlocked reports whether hash is in Policy's blocked-accounts set.
func (p *PolicyContract) IsBlocked(hash UInt160) bool {
	ok, err := p.store.Contains(blockedAccountKey(hash))
	return err == nil && ok
}

// BlockAccount adds hash to the blocked-accounts set.
func (p *PolicyContract) BlockAccount(hash UInt160) error {
	if p.IsBlocked(hash) {
		return nil
	}
	return p.store.Add(blockedAccountKey(hash), &StorageItem{Value: []byte{1}})
}

// UnblockAccount removes hash from the blocked-accounts set.
func (p *PolicyContract) UnblockAccount(hash UInt160) error {
	if !p.IsBlocked(hash) {
		return errors.New("policy: account is not blocked")
	}
	return p.store.Delete(blockedAccountKey(hash))
}

func uint64ToBytesLE(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func bytesToUint64LE(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8 && i < len(b); i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
