package core

import "errors"

// WitnessScope restricts which transactions/contexts a signer's witness is
// considered valid for (spec.md §4.E witness-check algorithm).
type WitnessScope uint8

const (
	WitnessScopeNone            WitnessScope = 0
	WitnessScopeCalledByEntry   WitnessScope = 1 << 0
	WitnessScopeCustomContracts WitnessScope = 1 << 4
	WitnessScopeCustomGroups    WitnessScope = 1 << 5
	WitnessScopeWitnessRules    WitnessScope = 1 << 6
	WitnessScopeGlobal          WitnessScope = 1 << 7
)

func (s WitnessScope) Has(bit WitnessScope) bool { return s&bit == bit }

// WitnessConditionType is the discriminant of a WitnessRule's condition
// tree (spec.md §4.E WitnessRules tree).
type WitnessConditionType uint8

const (
	WitnessConditionBoolean WitnessConditionType = iota
	WitnessConditionScriptHash
	WitnessConditionCalledByContract
	WitnessConditionGroup
	WitnessConditionAnd
	WitnessConditionOr
	WitnessConditionNot
)

// WitnessCondition is one node of a WitnessRule's boolean condition tree.
type WitnessCondition struct {
	Type       WitnessConditionType
	BoolValue  bool
	ScriptHash UInt160
	Group      []byte // compressed public key, for WitnessConditionGroup
	Children   []*WitnessCondition
}

func (c *WitnessCondition) evaluate(currentScript UInt160, calledByEntry bool, entryScript UInt160) bool {
	switch c.Type {
	case WitnessConditionBoolean:
		return c.BoolValue
	case WitnessConditionScriptHash:
		return c.ScriptHash.Equals(currentScript)
	case WitnessConditionCalledByContract:
		return calledByEntry && c.ScriptHash.Equals(entryScript)
	case WitnessConditionAnd:
		for _, ch := range c.Children {
			if !ch.evaluate(currentScript, calledByEntry, entryScript) {
				return false
			}
		}
		return true
	case WitnessConditionOr:
		for _, ch := range c.Children {
			if ch.evaluate(currentScript, calledByEntry, entryScript) {
				return true
			}
		}
		return false
	case WitnessConditionNot:
		if len(c.Children) != 1 {
			return false
		}
		return !c.Children[0].evaluate(currentScript, calledByEntry, entryScript)
	default:
		return false
	}
}

// WitnessRuleAction is the verdict a matching WitnessCondition produces.
type WitnessRuleAction uint8

const (
	WitnessRuleDeny WitnessRuleAction = iota
	WitnessRuleAllow
)

// WitnessRule pairs a condition tree with the action to take when it
// matches, per spec.md §4.E "WitnessRules tree".
type WitnessRule struct {
	Action    WitnessRuleAction
	Condition *WitnessCondition
}

// Signer is one transaction signer and the scope its witness covers.
type Signer struct {
	Account          UInt160
	Scopes           WitnessScope
	AllowedContracts []UInt160
	AllowedGroups    [][]byte
	Rules            []WitnessRule
}

var errWitnessNotAuthorized = errors.New("vm: witness check failed")

// CheckWitness implements spec.md §4.E's witness-check algorithm: an
// account is satisfied either because the currently executing script IS
// that account (a contract witnessing its own call), or because one of the
// transaction's signers names the account and its scope covers the current
// calling context.
func CheckWitness(signers []Signer, account, currentScript, entryScript UInt160, calledByEntry bool) bool {
	if account.Equals(currentScript) {
		return true
	}
	for _, s := range signers {
		if !s.Account.Equals(account) {
			continue
		}
		if s.Scopes.Has(WitnessScopeGlobal) {
			return true
		}
		if s.Scopes.Has(WitnessScopeCalledByEntry) && calledByEntry {
			return true
		}
		if s.Scopes.Has(WitnessScopeCustomContracts) {
			for _, c := range s.AllowedContracts {
				if c.Equals(currentScript) {
					return true
				}
			}
		}
		if s.Scopes.Has(WitnessScopeWitnessRules) {
			for _, r := range s.Rules {
				if r.Condition.evaluate(currentScript, calledByEntry, entryScript) {
					return r.Action == WitnessRuleAllow
				}
			}
		}
	}
	return false
}
