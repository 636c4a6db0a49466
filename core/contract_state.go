package core

import (
	"encoding/json"
	"strings"
)

// ContractParameter describes one ABI method parameter or return slot.
type ContractParameter struct {
	Name string
	Type StackItemType
}

// ContractMethod is one ABI-exposed entry point: its name, arity and the
// script offset execution jumps to when invoked (spec.md §4.E "ABI method
// lookup by (name, arity)").
type ContractMethod struct {
	Name       string
	Parameters []ContractParameter
	ReturnType StackItemType
	Offset     int
	Safe       bool
}

// ContractEvent is a declared Notify() shape, informational only; the VM
// does not enforce payload types against it.
type ContractEvent struct {
	Name       string
	Parameters []ContractParameter
}

// ContractABI is the method/event table read out of a contract's manifest.
type ContractABI struct {
	Methods []ContractMethod
	Events  []ContractEvent
}

// MethodByNameArity finds the ABI method with the given name and exact
// parameter count, or false if none matches (spec.md §4.E step 2).
func (a ContractABI) MethodByNameArity(name string, arity int) (ContractMethod, bool) {
	for _, m := range a.Methods {
		if m.Name == name && len(m.Parameters) == arity {
			return m, true
		}
	}
	return ContractMethod{}, false
}

// ContractPermission restricts which contracts/methods a contract is
// allowed to invoke via System.Contract.Call (spec.md §4.E step 3). A nil
// Contract means "any contract" (wildcard); a nil Methods means "any
// method". Group is carried but not consulted when matching: a permission
// with a nil Contract matches every contract whatever its Group holds.
type ContractPermission struct {
	Contract *UInt160 // nil == wildcard
	Group    []byte   // group public key; not used by allows
	Methods  []string // nil/empty == wildcard
}

func (p ContractPermission) allows(target UInt160, method string) bool {
	if p.Contract != nil && !p.Contract.Equals(target) {
		return false
	}
	if len(p.Methods) == 0 {
		return true
	}
	for _, m := range p.Methods {
		if m == method || m == "*" {
			return true
		}
	}
	return false
}

// ContractManifest is a deployed contract's manifest (spec.md §6
// "Manifest JSON": `{name, groups, features, supported-standards, abi,
// permissions, trusts, extra}`); the features field is not carried.
type ContractManifest struct {
	Name               string
	Groups             []string
	SupportedStandards []string
	ABI                ContractABI
	Permissions        []ContractPermission
	Trusts             []UInt160
	Extra              json.RawMessage
}

// CanCall reports whether this manifest's Permissions list authorizes a
// call to (target, method) (spec.md §4.E step 3).
func (m ContractManifest) CanCall(target UInt160, method string) bool {
	for _, p := range m.Permissions {
		if p.allows(target, method) {
			return true
		}
	}
	return false
}

// ContractState is a deployed contract: its script, id and manifest.
// Grounded on core/contracts.go's SmartContract, generalized from a WASM
// blob + Ricardian-JSON pair into the NEF/manifest model spec.md §4.F
// describes for ContractManagement.
type ContractState struct {
	ID            int32
	UpdateCounter uint16
	Hash          UInt160
	Script        []byte
	Manifest      ContractManifest
}

// ContractResolver looks up deployed contracts by script hash. The native
// ContractManagement contract (Task 8) implements this; the Application
// Engine only depends on the interface so it can dispatch System.Contract.Call
// without importing the native-contract package.
type ContractResolver interface {
	GetContract(hash UInt160) (*ContractState, error)
}

// ErrUnknownContract is returned by a ContractResolver when hash names no
// deployed contract.
type ErrUnknownContract struct{ Hash UInt160 }

func (e ErrUnknownContract) Error() string {
	return "vm: unknown contract " + strings.TrimPrefix(e.Hash.String(), "0x")
}

// manifestJSON is the wire shape of ContractManifest (spec.md §6 "Manifest
// JSON"): a flat DTO kept separate from ContractManifest itself so the
// latter's parameter and return types can stay typed as StackItemType
// while still round-tripping through JSON.
type manifestJSON struct {
	Name               string           `json:"name"`
	Groups             []string         `json:"groups,omitempty"`
	SupportedStandards []string         `json:"supportedstandards,omitempty"`
	ABI                abiJSON          `json:"abi"`
	Permissions        []permissionJSON `json:"permissions,omitempty"`
	Trusts             []string         `json:"trusts,omitempty"`
	Extra              json.RawMessage  `json:"extra,omitempty"`
}

type abiJSON struct {
	Methods []methodJSON `json:"methods"`
	Events  []eventJSON  `json:"events,omitempty"`
}

type paramJSON struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type methodJSON struct {
	Name       string      `json:"name"`
	Parameters []paramJSON `json:"parameters,omitempty"`
	ReturnType string      `json:"returntype"`
	Offset     int         `json:"offset"`
	Safe       bool        `json:"safe"`
}

type eventJSON struct {
	Name       string      `json:"name"`
	Parameters []paramJSON `json:"parameters,omitempty"`
}

type permissionJSON struct {
	Contract string   `json:"contract"` // "*" wildcard or hex hash
	Methods  []string `json:"methods,omitempty"`
}

// ToJSON renders m in the canonical manifest JSON shape.
func (m ContractManifest) ToJSON() ([]byte, error) {
	dto := manifestJSON{
		Name:               m.Name,
		Groups:             m.Groups,
		SupportedStandards: m.SupportedStandards,
		Extra:              m.Extra,
	}
	for _, meth := range m.ABI.Methods {
		dto.ABI.Methods = append(dto.ABI.Methods, methodJSON{
			Name: meth.Name, Parameters: toParamJSON(meth.Parameters),
			ReturnType: meth.ReturnType.String(), Offset: meth.Offset, Safe: meth.Safe,
		})
	}
	for _, ev := range m.ABI.Events {
		dto.ABI.Events = append(dto.ABI.Events, eventJSON{Name: ev.Name, Parameters: toParamJSON(ev.Parameters)})
	}
	for _, p := range m.Permissions {
		pj := permissionJSON{Contract: "*", Methods: p.Methods}
		if p.Contract != nil {
			pj.Contract = strings.TrimPrefix(p.Contract.String(), "0x")
		}
		dto.Permissions = append(dto.Permissions, pj)
	}
	for _, t := range m.Trusts {
		dto.Trusts = append(dto.Trusts, strings.TrimPrefix(t.String(), "0x"))
	}
	return json.Marshal(dto)
}

func toParamJSON(params []ContractParameter) []paramJSON {
	out := make([]paramJSON, len(params))
	for i, p := range params {
		out[i] = paramJSON{Name: p.Name, Type: p.Type.String()}
	}
	return out
}

// ParseManifestJSON parses the manifest JSON shape spec.md §6 describes
// (spec.md §4.F Deploy's "parses manifest").
func ParseManifestJSON(b []byte) (ContractManifest, error) {
	var dto manifestJSON
	if err := json.Unmarshal(b, &dto); err != nil {
		return ContractManifest{}, err
	}
	m := ContractManifest{
		Name: dto.Name, Groups: dto.Groups, SupportedStandards: dto.SupportedStandards, Extra: dto.Extra,
	}
	for _, meth := range dto.ABI.Methods {
		m.ABI.Methods = append(m.ABI.Methods, ContractMethod{
			Name: meth.Name, Parameters: fromParamJSON(meth.Parameters),
			ReturnType: parseStackItemType(meth.ReturnType), Offset: meth.Offset, Safe: meth.Safe,
		})
	}
	for _, ev := range dto.ABI.Events {
		m.ABI.Events = append(m.ABI.Events, ContractEvent{Name: ev.Name, Parameters: fromParamJSON(ev.Parameters)})
	}
	for _, pj := range dto.Permissions {
		p := ContractPermission{Methods: pj.Methods}
		if pj.Contract != "*" {
			h, err := ParseUInt160(pj.Contract)
			if err != nil {
				return ContractManifest{}, err
			}
			p.Contract = &h
		}
		m.Permissions = append(m.Permissions, p)
	}
	for _, ts := range dto.Trusts {
		h, err := ParseUInt160(ts)
		if err != nil {
			return ContractManifest{}, err
		}
		m.Trusts = append(m.Trusts, h)
	}
	return m, nil
}

func fromParamJSON(params []paramJSON) []ContractParameter {
	out := make([]ContractParameter, len(params))
	for i, p := range params {
		out[i] = ContractParameter{Name: p.Name, Type: parseStackItemType(p.Type)}
	}
	return out
}

func parseStackItemType(s string) StackItemType {
	for t := ItemTypeAny; t <= ItemTypeInteropInterface; t++ {
		if t.String() == s {
			return t
		}
	}
	return ItemTypeAny
}
