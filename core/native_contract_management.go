package core

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"

	"github.com/sirupsen/logrus"
)

// contractManagementID is ContractManagement's native id: negative so it
// can never collide with a deployed (positive) user contract id (spec.md
// §4.F "id (negative integer to distinguish from user contracts)").
const contractManagementID int32 = -1

const (
	prefixContract     byte = 0x08 // Prefix_Contract | hash -> ContractState
	prefixContractHash byte = 0x09 // Prefix_ContractHash | id -> hash
	prefixNextID       byte = 0x0A
)

// ContractManagement is the native contract owning every deployed user
// contract's lifecycle: Deploy, Update, Destroy, and lookup (spec.md §4.F).
//
// Grounded on core/contract_management.go's ContractManager
// (TransferOwnership/OwnerOf backed by ledger-prefixed keys), generalized
// from ad hoc owner/paused flags to the full NEF+manifest deployment record
// spec.md requires, and from *Ledger to the layered *DataCache.
type ContractManagement struct {
	store  *DataCache
	policy *PolicyContract
}

// NewContractManagement wires the manager against a snapshot and the
// Policy native contract it consults for the deploy-time blocklist check.
func NewContractManagement(store *DataCache, policy *PolicyContract) *ContractManagement {
	return &ContractManagement{store: store, policy: policy}
}

func contractKey(hash UInt160) StorageKey {
	return StorageKey{ContractID: contractManagementID, Prefix: append([]byte{prefixContract}, hash.Bytes()...)}
}

func contractHashKey(id int32) StorageKey {
	b := make([]byte, 5)
	b[0] = prefixContractHash
	binary.BigEndian.PutUint32(b[1:], uint32(id))
	return StorageKey{ContractID: contractManagementID, Prefix: b}
}

func nextIDKey() StorageKey {
	return StorageKey{ContractID: contractManagementID, Prefix: []byte{prefixNextID}}
}

// GetContract implements ContractResolver.
func (cm *ContractManagement) GetContract(hash UInt160) (*ContractState, error) {
	item, err := cm.store.TryGet(contractKey(hash))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrUnknownContract{Hash: hash}
	}
	return decodeContractState(item.Value)
}

func (cm *ContractManagement) nextID() (int32, error) {
	item, err := cm.store.GetAndChange(nextIDKey(), func() *StorageItem {
		return &StorageItem{Value: make([]byte, 4)}
	})
	if err != nil {
		return 0, err
	}
	id := int32(binary.BigEndian.Uint32(item.Value)) + 1
	binary.BigEndian.PutUint32(item.Value, uint32(id))
	item.MarkDirty()
	return id, nil
}

// computeContractHash derives a deployed contract's address the way
// spec.md's scenario S1 describes: H(sender ∥ checksum ∥ name), truncated
// to the 20 bytes a UInt160 carries.
func computeContractHash(sender UInt160, checksum uint32, name string) UInt160 {
	buf := make([]byte, 0, 20+4+len(name))
	buf = append(buf, sender.Bytes()...)
	cs := make([]byte, 4)
	binary.LittleEndian.PutUint32(cs, checksum)
	buf = append(buf, cs...)
	buf = append(buf, []byte(name)...)
	sum := sha256.Sum256(buf)
	var out UInt160
	copy(out[:], sum[:20])
	return out
}

// Deploy implements spec.md §4.F's Deploy operation: validate the NEF,
// parse the manifest, assert ABI offsets fall within the script, compute
// the deterministic hash, reject collisions/blocked accounts, assign an
// id, persist, emit Deploy, then run `_deploy(data, false)` if declared.
func (cm *ContractManagement) Deploy(ae *ApplicationEngine, sender UInt160, nefBytes, manifestJSON, data []byte) (*ContractState, error) {
	nef, err := DecodeNefFile(nefBytes)
	if err != nil {
		return nil, err
	}
	manifest, err := ParseManifestJSON(manifestJSON)
	if err != nil {
		return nil, err
	}
	for _, m := range manifest.ABI.Methods {
		if m.Offset < 0 || m.Offset >= len(nef.Script) {
			return nil, errors.New("contractmanagement: ABI method offset out of script bounds")
		}
	}

	checksum := nef.Checksum()
	hash := computeContractHash(sender, checksum, manifest.Name)

	if _, err := cm.GetContract(hash); err == nil {
		return nil, errors.New("contractmanagement: contract already deployed")
	}
	if cm.policy != nil && cm.policy.IsBlocked(hash) {
		return nil, errors.New("contractmanagement: account is blocked")
	}

	id, err := cm.nextID()
	if err != nil {
		return nil, err
	}
	state := &ContractState{ID: id, Hash: hash, Script: nef.Script, Manifest: manifest}
	if err := cm.persist(state); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"contract": hash.String(), "id": id}).Info("contractmanagement: deployed")
	if ae != nil {
		if err := ae.Notify("Deploy", &ArrayItem{Items: []StackItem{ByteStringItem{Value: hash.Bytes()}}}); err != nil {
			return nil, err
		}
		if _, ok := manifest.ABI.MethodByNameArity("_deploy", 2); ok {
			if err := ae.CallContract(hash, "_deploy", []StackItem{
				ByteStringItem{Value: data}, BooleanItem{Value: false},
			}, CallFlagAll); err != nil {
				return nil, err
			}
		}
	}
	return state, nil
}

// Update implements spec.md §4.F's Update: at least one of nef/manifest
// must be supplied, the name is immutable, the update counter increments,
// and `_deploy(data, true)` runs again if declared.
func (cm *ContractManagement) Update(ae *ApplicationEngine, hash UInt160, nefBytes, manifestJSON, data []byte) (*ContractState, error) {
	if len(nefBytes) == 0 && len(manifestJSON) == 0 {
		return nil, errors.New("contractmanagement: update requires nef or manifest")
	}
	state, err := cm.GetContract(hash)
	if err != nil {
		return nil, err
	}
	if len(nefBytes) > 0 {
		nef, err := DecodeNefFile(nefBytes)
		if err != nil {
			return nil, err
		}
		state.Script = nef.Script
	}
	if len(manifestJSON) > 0 {
		manifest, err := ParseManifestJSON(manifestJSON)
		if err != nil {
			return nil, err
		}
		if manifest.Name != state.Manifest.Name {
			return nil, errors.New("contractmanagement: contract name cannot change on update")
		}
		state.Manifest = manifest
	}
	for _, m := range state.Manifest.ABI.Methods {
		if m.Offset < 0 || m.Offset >= len(state.Script) {
			return nil, errors.New("contractmanagement: ABI method offset out of script bounds")
		}
	}
	state.UpdateCounter++
	if err := cm.persist(state); err != nil {
		return nil, err
	}

	if ae != nil {
		if err := ae.Notify("Update", &ArrayItem{Items: []StackItem{ByteStringItem{Value: hash.Bytes()}}}); err != nil {
			return nil, err
		}
		if _, ok := state.Manifest.ABI.MethodByNameArity("_deploy", 2); ok {
			if err := ae.CallContract(hash, "_deploy", []StackItem{
				ByteStringItem{Value: data}, BooleanItem{Value: true},
			}, CallFlagAll); err != nil {
				return nil, err
			}
		}
	}
	return state, nil
}

// Destroy implements spec.md §4.F's Destroy: removes the contract record,
// blocklists its hash in Policy, and emits Destroy.
func (cm *ContractManagement) Destroy(ae *ApplicationEngine, hash UInt160) error {
	state, err := cm.GetContract(hash)
	if err != nil {
		return err
	}
	if err := cm.store.Delete(contractKey(hash)); err != nil {
		return err
	}
	if err := cm.store.Delete(contractHashKey(state.ID)); err != nil {
		return err
	}
	if cm.policy != nil {
		if err := cm.policy.BlockAccount(hash); err != nil {
			return err
		}
	}
	if ae != nil {
		return ae.Notify("Destroy", &ArrayItem{Items: []StackItem{ByteStringItem{Value: hash.Bytes()}}})
	}
	return nil
}

func (cm *ContractManagement) persist(state *ContractState) error {
	b, err := encodeContractState(state)
	if err != nil {
		return err
	}
	item, err := cm.store.GetOrAdd(contractKey(state.Hash), func() *StorageItem { return &StorageItem{} })
	if err != nil {
		return err
	}
	item.Value = b
	item.MarkDirty()

	idItem, err := cm.store.GetOrAdd(contractHashKey(state.ID), func() *StorageItem { return &StorageItem{} })
	if err != nil {
		return err
	}
	idItem.Value = state.Hash.Bytes()
	idItem.MarkDirty()
	return nil
}

// encodeContractState/decodeContractState round-trip a ContractState
// through StorageItem.Value: id(4) | update-counter(2) | hash(20) |
// script(varbytes) | manifest-json(varbytes).
func encodeContractState(s *ContractState) ([]byte, error) {
	manifestBytes, err := s.Manifest.ToJSON()
	if err != nil {
		return nil, err
	}
	w := NewBinWriter()
	w.WriteU32(uint32(s.ID))
	w.WriteBytes([]byte{byte(s.UpdateCounter), byte(s.UpdateCounter >> 8)})
	w.WriteBytes(s.Hash.Bytes())
	w.WriteVarBytes(s.Script)
	w.WriteVarBytes(manifestBytes)
	return w.Bytes(), nil
}

func decodeContractState(b []byte) (*ContractState, error) {
	r := NewBinReader(b)
	id := int32(r.ReadU32())
	ctr := r.ReadBytes(2)
	hash, err := UInt160FromBytes(r.ReadBytes(20))
	if err != nil {
		return nil, err
	}
	script := r.ReadVarBytes(nefMaxScriptLen)
	manifestBytes := r.ReadVarBytes(1 << 20)
	manifest, err := ParseManifestJSON(manifestBytes)
	if err != nil {
		return nil, err
	}
	return &ContractState{
		ID: id, UpdateCounter: uint16(ctr[0]) | uint16(ctr[1])<<8,
		Hash: hash, Script: script, Manifest: manifest,
	}, nil
}
