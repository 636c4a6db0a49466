package core

import (
	"bytes"
	"encoding/json"
	"math/big"
	"sort"
)

const (
	prefixNeoStandbyCommittee byte = 0x08
	prefixNeoValidatorsCount  byte = 0x09
)

const defaultNeoValidatorsCount = 7

// CommitteeTurnoutThreshold gates the committee refresh fallback: below
// this fraction of NEO in active votes, the standby committee is used
// instead of the candidate rank (spec.md §4.F "turnout ... < 0.2").
var CommitteeTurnoutThreshold = big.NewRat(1, 5)

// candidateRank is one registered candidate considered during a committee
// refresh, paired with its current vote tally.
type candidateRank struct {
	pubkey []byte
	votes  *big.Int
}

// StandbyCommittee returns the configured fallback committee (spec.md §5
// configuration file's "standby-committee"), and doubles as the committee
// size: a network is always configured with exactly committee-size
// standby keys.
func (n *NeoContract) StandbyCommittee() ([][]byte, error) {
	item, err := n.store.TryGet(StorageKey{ContractID: neoContractID, Prefix: []byte{prefixNeoStandbyCommittee}})
	if err != nil || item == nil {
		return nil, err
	}
	var committee [][]byte
	if err := json.Unmarshal(item.Value, &committee); err != nil {
		return nil, err
	}
	return committee, nil
}

// SetStandbyCommittee installs the network's configured standby
// committee, run once at genesis setup.
func (n *NeoContract) SetStandbyCommittee(committee [][]byte) error {
	b, err := json.Marshal(committee)
	if err != nil {
		return err
	}
	item, err := n.store.GetOrAdd(StorageKey{ContractID: neoContractID, Prefix: []byte{prefixNeoStandbyCommittee}}, func() *StorageItem { return &StorageItem{} })
	if err != nil {
		return err
	}
	item.Value = b
	item.MarkDirty()
	return nil
}

// CommitteeSize is the number of committee seats, defined as the length of
// the configured standby committee (spec.md §4.F; NEO N3 ties
// CommitteeMembersCount to len(StandbyCommittee)). Zero means no standby
// committee has been configured yet (a pre-genesis snapshot).
func (n *NeoContract) CommitteeSize() (int, error) {
	standby, err := n.StandbyCommittee()
	if err != nil {
		return 0, err
	}
	return len(standby), nil
}

// ValidatorsCount returns the configured number of committee seats that
// also serve as consensus validators.
func (n *NeoContract) ValidatorsCount() (int, error) {
	item, err := n.store.TryGet(StorageKey{ContractID: neoContractID, Prefix: []byte{prefixNeoValidatorsCount}})
	if err != nil {
		return 0, err
	}
	if item == nil {
		return defaultNeoValidatorsCount, nil
	}
	return int(new(big.Int).SetBytes(item.Value).Int64()), nil
}

// SetValidatorsCount updates the configured validators count.
func (n *NeoContract) SetValidatorsCount(count int) error {
	item, err := n.store.GetOrAdd(StorageKey{ContractID: neoContractID, Prefix: []byte{prefixNeoValidatorsCount}}, func() *StorageItem { return &StorageItem{} })
	if err != nil {
		return err
	}
	item.Value = big.NewInt(int64(count)).Bytes()
	item.MarkDirty()
	return nil
}

// registeredCandidates walks every candidate record currently marked
// Registered, for use by RefreshCommittee's rank computation.
func (n *NeoContract) registeredCandidates() ([]candidateRank, error) {
	prefix := StorageKey{ContractID: neoContractID, Prefix: []byte{prefixNeoCandidate}}.Bytes()
	entries := n.store.Find(prefix, Forward)
	out := make([]candidateRank, 0, len(entries))
	for _, e := range entries {
		key := ParseStorageKey(e.key)
		pubkey := append([]byte{}, key.Prefix[1:]...)
		state, err := decodeNeoCandidateState(e.item.Value)
		if err != nil {
			return nil, err
		}
		if !state.Registered {
			continue
		}
		out = append(out, candidateRank{pubkey: pubkey, votes: state.Votes})
	}
	return out, nil
}

// rankCandidates sorts by votes desc, then pubkey asc (spec.md §4.F
// "candidate rank (votes desc, pubkey asc)").
func rankCandidates(candidates []candidateRank) {
	sort.Slice(candidates, func(i, j int) bool {
		if cmp := candidates[i].votes.Cmp(candidates[j].votes); cmp != 0 {
			return cmp > 0
		}
		return bytes.Compare(candidates[i].pubkey, candidates[j].pubkey) < 0
	})
}

// RefreshCommittee recomputes and stores the committee from the current
// candidate rank, falling back to the standby committee when turnout is
// too low or too few candidates are registered (spec.md §4.F "Committee
// refresh"). It returns the newly-stored committee.
func (n *NeoContract) RefreshCommittee() ([][]byte, error) {
	size, err := n.CommitteeSize()
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil // no standby committee configured: nothing to refresh yet.
	}

	standby, err := n.StandbyCommittee()
	if err != nil {
		return nil, err
	}
	candidates, err := n.registeredCandidates()
	if err != nil {
		return nil, err
	}
	voters, err := n.votersCount()
	if err != nil {
		return nil, err
	}

	turnout := new(big.Rat).SetFrac(voters, NeoTotalSupply)
	useStandby := len(candidates) < size || turnout.Cmp(CommitteeTurnoutThreshold) < 0

	var committee [][]byte
	if useStandby {
		committee = standby
	} else {
		rankCandidates(candidates)
		committee = make([][]byte, size)
		for i := 0; i < size; i++ {
			committee[i] = candidates[i].pubkey
		}
	}

	if err := n.SetCommittee(committee); err != nil {
		return nil, err
	}
	return committee, nil
}

// Validators derives the consensus validator set from committee: the
// first validators-count seats (by the committee's vote rank), presented
// sorted by pubkey (spec.md §4.F "Validators = first validators-count
// committee members, sorted by pubkey").
func (n *NeoContract) Validators(committee [][]byte) ([][]byte, error) {
	count, err := n.ValidatorsCount()
	if err != nil {
		return nil, err
	}
	if count > len(committee) {
		count = len(committee)
	}
	validators := make([][]byte, count)
	copy(validators, committee[:count])
	sort.Slice(validators, func(i, j int) bool { return bytes.Compare(validators[i], validators[j]) < 0 })
	return validators, nil
}

func isValidatorKey(validators [][]byte, pubkey []byte) bool {
	for _, v := range validators {
		if bytes.Equal(v, pubkey) {
			return true
		}
	}
	return false
}

// gasContract exposes the GAS contract NeoContract was wired against, for
// the persist pipeline's reward minting.
func (n *NeoContract) gasContract() *GasContract { return n.gas }

// Candidate returns pubkey's current candidate state (exported for the
// persist pipeline's voter-reward settlement).
func (n *NeoContract) Candidate(pubkey []byte) (*NeoCandidateState, error) {
	return n.candidate(pubkey)
}

// AddCandidateGasPerVote increments pubkey's cumulative reward-per-vote
// accumulator, called at each committee refresh boundary.
func (n *NeoContract) AddCandidateGasPerVote(pubkey []byte, delta *big.Int) error {
	cand, err := n.candidate(pubkey)
	if err != nil {
		return err
	}
	cand.GasPerVote.Add(cand.GasPerVote, delta)
	return n.putCandidate(pubkey, cand)
}

// effectiveGasPerBlock returns the gas-per-block rate in force at index.
func (n *NeoContract) effectiveGasPerBlock(index uint32) (uint64, error) {
	records, err := n.gasPerBlockHistory()
	if err != nil {
		return 0, err
	}
	rate := neoDefaultGasPerBlock
	for _, rec := range records {
		if rec.Index > index {
			break
		}
		rate = rec.Rate
	}
	return rate, nil
}
