package core

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"math/big"
)

// roleManagementID is RoleManagement's native id (spec.md §4.F's native
// contract list: "..., Oracle, RoleManagement").
const roleManagementID int32 = -7

// Role identifies one of the node-designation sets RoleManagement tracks.
// Grounded on NEO N3's own RoleManagement roles, the canonical shape this
// native contract takes across the corpus's domain.
type Role byte

const (
	RoleStateValidator    Role = 4
	RoleOracle            Role = 8
	RoleNeoFSAlphabetNode Role = 16
	RoleP2PNotary         Role = 32
)

const prefixRoleNodes byte = 0x01

// RoleManagement is the native contract tracking which public keys are
// currently designated for a given Role, indexed by the block height the
// designation took effect at (spec.md §4.F). Oracle's own pending-request
// ledger (native_oracle.go) is a separate contract; RoleManagement only
// answers "which keys may sign as this role right now", the question
// Oracle-response witness verification and dBFT validator resolution both
// ultimately depend on.
//
// Grounded on core/native_neo_committee.go's StandbyCommittee storage
// (a JSON-encoded list of compressed pubkeys under one StorageKey),
// generalized from a single committee list to a (role, height) -> list
// history, and on native_neo_committee.go's registeredCandidates' use of
// DataCache.Find/ParseStorageKey to walk a prefix range.
type RoleManagement struct {
	store *DataCache
}

// NewRoleManagement wires RoleManagement against a snapshot.
func NewRoleManagement(store *DataCache) *RoleManagement {
	return &RoleManagement{store: store}
}

func roleNodesKey(role Role, height uint32) StorageKey {
	b := make([]byte, 5)
	b[0] = byte(role)
	binary.BigEndian.PutUint32(b[1:], height)
	return StorageKey{ContractID: roleManagementID, Prefix: append([]byte{prefixRoleNodes}, b...)}
}

// Designate installs pubkeys as the designated set for role, effective
// from height onward (spec.md §4.F "Designate(role, height, pubkeys)").
// Designations are append-only: GetDesignatedByRole resolves the most
// recent entry at or before the height it is asked about, so a later
// Designate call never rewrites history queries already answered.
func (r *RoleManagement) Designate(ae *ApplicationEngine, role Role, height uint32, pubkeys [][]byte) error {
	if len(pubkeys) == 0 {
		return errors.New("rolemanagement: designation must name at least one pubkey")
	}
	b, err := json.Marshal(pubkeys)
	if err != nil {
		return err
	}
	if err := r.store.Add(roleNodesKey(role, height), &StorageItem{Value: b}); err != nil {
		return err
	}
	if ae != nil {
		if err := ae.Notify("Designation", &ArrayItem{Items: []StackItem{
			IntegerItem{Value: big.NewInt(int64(role))},
		}}); err != nil {
			return err
		}
	}
	return nil
}

// GetDesignatedByRole returns the pubkeys designated for role as of the
// most recent Designate call at or before height, or (nil, nil) if role
// has never been designated.
func (r *RoleManagement) GetDesignatedByRole(role Role, height uint32) ([][]byte, error) {
	prefix := StorageKey{ContractID: roleManagementID, Prefix: []byte{prefixRoleNodes, byte(role)}}.Bytes()
	entries := r.store.Find(prefix, Forward)

	var best [][]byte
	var bestHeight uint32
	haveBest := false
	for _, e := range entries {
		key := ParseStorageKey(e.key)
		if len(key.Prefix) != 6 {
			continue
		}
		entryHeight := binary.BigEndian.Uint32(key.Prefix[2:])
		if entryHeight > height {
			continue
		}
		if !haveBest || entryHeight > bestHeight {
			var pubkeys [][]byte
			if err := json.Unmarshal(e.item.Value, &pubkeys); err != nil {
				return nil, err
			}
			best, bestHeight, haveBest = pubkeys, entryHeight, true
		}
	}
	return best, nil
}
