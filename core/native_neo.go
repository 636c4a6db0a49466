package core

import (
	"encoding/json"
	"errors"
	"math/big"
	"sort"
)

const neoContractID int32 = -4

const (
	prefixNeoAccount                 byte = 0x01
	prefixNeoCandidate               byte = 0x02
	prefixNeoCommittee               byte = 0x03
	prefixNeoGasPerBlock             byte = 0x04
	prefixNeoVotersCount             byte = 0x05
	prefixNeoRegisterPrice           byte = 0x06
	prefixNeoVoterRewardPerCommittee byte = 0x07
)

// NeoTotalSupply is NEO's fixed, non-divisible total supply (spec.md §4.F
// "NEO token ... total = 100,000,000").
var NeoTotalSupply = big.NewInt(100_000_000)

// Reward-distribution ratios applied to each block's gas-per-block,
// summing to 100 (spec.md §4.F CalculateBonus/PostPersist).
const (
	NeoHolderRewardRatio    = 10
	NeoCommitteeRewardRatio = 10
	NeoVoterRewardRatio     = 80
)

const neoDefaultGasPerBlock uint64 = 5_00000000 // 5 GAS, 8-decimal fixed point

// NeoAccountState is one NEO holder's balance record: balance, the
// candidate voted for (nil if none), the voter-reward snapshot taken at
// the last vote change, and the height balance last changed at (spec.md
// §4.F "account" prefix).
type NeoAccountState struct {
	Balance        *big.Int
	VoteTo         []byte // compressed pubkey, nil if not voting
	LastGasPerVote *big.Int
	BalanceHeight  uint32
}

// NeoCandidateState is one registered candidate's vote tally.
type NeoCandidateState struct {
	Votes      *big.Int
	Registered bool
	GasPerVote *big.Int // cumulative reward-per-vote accumulator
}

type gasPerBlockRecord struct {
	Index uint32
	Rate  uint64
}

// NeoContract is the native NEO token: fungible, non-divisible governance
// token whose balance changes mint pending GAS via CalculateBonus, and
// whose balances double as committee votes (spec.md §4.F "NEO token").
//
// Grounded on core/Tokens (core/tokens.go / syn*_token.go) balance-map +
// transfer-event idiom, generalized to carry the voting/reward state a
// governance token needs instead of a plain ledger of balances.
type NeoContract struct {
	store *DataCache
	gas   *GasContract
}

// NewNeoContract wires NEO against a snapshot and the GAS contract it
// mints rewards into.
func NewNeoContract(store *DataCache, gas *GasContract) *NeoContract {
	return &NeoContract{store: store, gas: gas}
}

func neoAccountKey(account UInt160) StorageKey {
	return StorageKey{ContractID: neoContractID, Prefix: append([]byte{prefixNeoAccount}, account.Bytes()...)}
}

func neoCandidateKey(pubkey []byte) StorageKey {
	return StorageKey{ContractID: neoContractID, Prefix: append([]byte{prefixNeoCandidate}, pubkey...)}
}

func (n *NeoContract) getAccount(account UInt160) (*NeoAccountState, error) {
	item, err := n.store.TryGet(neoAccountKey(account))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return &NeoAccountState{Balance: big.NewInt(0), LastGasPerVote: big.NewInt(0)}, nil
	}
	return decodeNeoAccountState(item.Value)
}

func (n *NeoContract) putAccount(account UInt160, s *NeoAccountState) error {
	item, err := n.store.GetOrAdd(neoAccountKey(account), func() *StorageItem { return &StorageItem{} })
	if err != nil {
		return err
	}
	b, err := encodeNeoAccountState(s)
	if err != nil {
		return err
	}
	item.Value = b
	item.MarkDirty()
	return nil
}

// BalanceOf returns account's current NEO balance.
func (n *NeoContract) BalanceOf(account UInt160) (*big.Int, error) {
	s, err := n.getAccount(account)
	if err != nil {
		return nil, err
	}
	return s.Balance, nil
}

func (n *NeoContract) candidate(pubkey []byte) (*NeoCandidateState, error) {
	item, err := n.store.TryGet(neoCandidateKey(pubkey))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return &NeoCandidateState{Votes: big.NewInt(0), GasPerVote: big.NewInt(0)}, nil
	}
	return decodeNeoCandidateState(item.Value)
}

func (n *NeoContract) putCandidate(pubkey []byte, c *NeoCandidateState) error {
	item, err := n.store.GetOrAdd(neoCandidateKey(pubkey), func() *StorageItem { return &StorageItem{} })
	if err != nil {
		return err
	}
	b, err := encodeNeoCandidateState(c)
	if err != nil {
		return err
	}
	item.Value = b
	item.MarkDirty()
	return nil
}

func (n *NeoContract) votersCount() (*big.Int, error) {
	item, err := n.store.TryGet(StorageKey{ContractID: neoContractID, Prefix: []byte{prefixNeoVotersCount}})
	if err != nil || item == nil {
		return big.NewInt(0), err
	}
	return new(big.Int).SetBytes(item.Value), nil
}

func (n *NeoContract) setVotersCount(v *big.Int) error {
	item, err := n.store.GetOrAdd(StorageKey{ContractID: neoContractID, Prefix: []byte{prefixNeoVotersCount}}, func() *StorageItem { return &StorageItem{} })
	if err != nil {
		return err
	}
	item.Value = v.Bytes()
	item.MarkDirty()
	return nil
}

func (n *NeoContract) gasPerBlockHistory() ([]gasPerBlockRecord, error) {
	item, err := n.store.TryGet(StorageKey{ContractID: neoContractID, Prefix: []byte{prefixNeoGasPerBlock}})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return []gasPerBlockRecord{{Index: 0, Rate: neoDefaultGasPerBlock}}, nil
	}
	var records []gasPerBlockRecord
	if err := json.Unmarshal(item.Value, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// SetGasPerBlock appends a new effective-from-index gas-per-block rate
// (committee-gated in a full deployment).
func (n *NeoContract) SetGasPerBlock(index uint32, rate uint64) error {
	records, err := n.gasPerBlockHistory()
	if err != nil {
		return err
	}
	records = append(records, gasPerBlockRecord{Index: index, Rate: rate})
	sort.Slice(records, func(i, j int) bool { return records[i].Index < records[j].Index })
	b, err := json.Marshal(records)
	if err != nil {
		return err
	}
	item, err := n.store.GetOrAdd(StorageKey{ContractID: neoContractID, Prefix: []byte{prefixNeoGasPerBlock}}, func() *StorageItem { return &StorageItem{} })
	if err != nil {
		return err
	}
	item.Value = b
	item.MarkDirty()
	return nil
}

// CalculateBonus computes the pending GAS a holder has accrued between
// state.BalanceHeight and endHeight (spec.md §4.F "holder reward" +
// "voter reward"): holder reward walks the gas-per-block history
// backwards from endHeight-1, summing rate×blocks-in-range weighted by
// NeoHolderRewardRatio/100/TotalSupply; voter reward is the delta between
// the candidate's current cumulative GasPerVote and the account's
// snapshot, scaled by 1e8.
func (n *NeoContract) CalculateBonus(account UInt160, endHeight uint32) (*big.Int, error) {
	state, err := n.getAccount(account)
	if err != nil {
		return nil, err
	}
	if state.Balance.Sign() == 0 || endHeight <= state.BalanceHeight {
		return big.NewInt(0), nil
	}

	records, err := n.gasPerBlockHistory()
	if err != nil {
		return nil, err
	}

	var blockSum big.Int
	cur := endHeight
	for i := len(records) - 1; i >= 0 && cur > state.BalanceHeight; i-- {
		rec := records[i]
		segStart := rec.Index
		if segStart >= cur {
			continue
		}
		effectiveStart := segStart
		if effectiveStart < state.BalanceHeight {
			effectiveStart = state.BalanceHeight
		}
		blocks := int64(cur - effectiveStart)
		blockSum.Add(&blockSum, new(big.Int).Mul(big.NewInt(int64(rec.Rate)), big.NewInt(blocks)))
		cur = segStart
	}

	holder := new(big.Int).Mul(state.Balance, &blockSum)
	holder.Mul(holder, big.NewInt(NeoHolderRewardRatio))
	holder.Div(holder, big.NewInt(100))
	holder.Div(holder, NeoTotalSupply)

	voter := big.NewInt(0)
	if state.VoteTo != nil {
		cand, err := n.candidate(state.VoteTo)
		if err != nil {
			return nil, err
		}
		delta := new(big.Int).Sub(cand.GasPerVote, state.LastGasPerVote)
		voter.Mul(state.Balance, delta)
		voter.Div(voter, big.NewInt(100_000_000))
	}

	return new(big.Int).Add(holder, voter), nil
}

// Transfer moves amount NEO from "from" to "to", distributing each side's
// pending GAS bonus first (spec.md §4.F "On every balance change ... before
// applying the delta: distribute pending GAS via CalculateBonus").
func (n *NeoContract) Transfer(ae *ApplicationEngine, from, to UInt160, amount *big.Int, height uint32) error {
	if amount.Sign() < 0 {
		return errors.New("neo: negative transfer amount")
	}
	if !ae.CheckWitness(from) {
		return errors.New("neo: transfer not witnessed by sender")
	}

	fromState, err := n.getAccount(from)
	if err != nil {
		return err
	}
	if fromState.Balance.Cmp(amount) < 0 {
		return errors.New("neo: insufficient balance")
	}
	if err := n.settleBonus(ae, from, height); err != nil {
		return err
	}
	if err := n.settleBonus(ae, to, height); err != nil {
		return err
	}

	fromState, err = n.getAccount(from)
	if err != nil {
		return err
	}
	toState, err := n.getAccount(to)
	if err != nil {
		return err
	}

	fromState.Balance.Sub(fromState.Balance, amount)
	fromState.BalanceHeight = height
	toState.Balance.Add(toState.Balance, amount)
	toState.BalanceHeight = height

	if err := n.putAccount(from, fromState); err != nil {
		return err
	}
	if err := n.putAccount(to, toState); err != nil {
		return err
	}
	return ae.Notify("Transfer", &ArrayItem{Items: []StackItem{
		ByteStringItem{Value: from.Bytes()}, ByteStringItem{Value: to.Bytes()}, mustIntItem(amount),
	}})
}

// settleBonus mints account's pending CalculateBonus reward into GAS and
// resets its accrual snapshot to height.
func (n *NeoContract) settleBonus(ae *ApplicationEngine, account UInt160, height uint32) error {
	bonus, err := n.CalculateBonus(account, height)
	if err != nil {
		return err
	}
	state, err := n.getAccount(account)
	if err != nil {
		return err
	}
	if bonus.Sign() > 0 && n.gas != nil {
		if err := n.gas.Mint(ae, account, bonus); err != nil {
			return err
		}
	}
	if state.VoteTo != nil {
		cand, err := n.candidate(state.VoteTo)
		if err != nil {
			return err
		}
		state.LastGasPerVote = new(big.Int).Set(cand.GasPerVote)
	}
	state.BalanceHeight = height
	return n.putAccount(account, state)
}

// Vote implements spec.md §4.F's Vote: moves the voter's balance from the
// old candidate's tally to the new one, adjusts voters-count only on a
// null<->non-null transition, and snapshots last-gas-per-vote from the new
// target.
func (n *NeoContract) Vote(ae *ApplicationEngine, account UInt160, candidate []byte) error {
	if !ae.CheckWitness(account) {
		return errors.New("neo: vote not witnessed by account")
	}
	state, err := n.getAccount(account)
	if err != nil {
		return err
	}
	voters, err := n.votersCount()
	if err != nil {
		return err
	}

	if state.VoteTo != nil {
		old, err := n.candidate(state.VoteTo)
		if err != nil {
			return err
		}
		old.Votes.Sub(old.Votes, state.Balance)
		if err := n.putCandidate(state.VoteTo, old); err != nil {
			return err
		}
	}
	if candidate != nil {
		cand, err := n.candidate(candidate)
		if err != nil {
			return err
		}
		cand.Votes.Add(cand.Votes, state.Balance)
		if err := n.putCandidate(candidate, cand); err != nil {
			return err
		}
		state.LastGasPerVote = new(big.Int).Set(cand.GasPerVote)
	}

	switch {
	case state.VoteTo == nil && candidate != nil:
		voters.Add(voters, state.Balance)
	case state.VoteTo != nil && candidate == nil:
		voters.Sub(voters, state.Balance)
	}
	if err := n.setVotersCount(voters); err != nil {
		return err
	}

	state.VoteTo = candidate
	if err := n.putAccount(account, state); err != nil {
		return err
	}
	return ae.Notify("Vote", &ArrayItem{Items: []StackItem{ByteStringItem{Value: account.Bytes()}}})
}

// RegisterPrice returns the GAS cost of RegisterCandidate.
func (n *NeoContract) RegisterPrice() (*big.Int, error) {
	item, err := n.store.TryGet(StorageKey{ContractID: neoContractID, Prefix: []byte{prefixNeoRegisterPrice}})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return big.NewInt(1000_00000000), nil // 1000 GAS, NEO N3's mainnet default
	}
	return new(big.Int).SetBytes(item.Value), nil
}

// SetRegisterPrice updates the GAS cost of RegisterCandidate
// (committee-gated in a full deployment).
func (n *NeoContract) SetRegisterPrice(price *big.Int) error {
	item, err := n.store.GetOrAdd(StorageKey{ContractID: neoContractID, Prefix: []byte{prefixNeoRegisterPrice}}, func() *StorageItem { return &StorageItem{} })
	if err != nil {
		return err
	}
	item.Value = price.Bytes()
	item.MarkDirty()
	return nil
}

// RegisterCandidate marks pubkey as a registered candidate, burning
// RegisterPrice GAS from account (spec.md §4.F's candidate-registration
// fee gate, mirrored from NEO N3's RegisterPrice mechanism).
func (n *NeoContract) RegisterCandidate(ae *ApplicationEngine, account UInt160, pubkey []byte) error {
	if !ae.CheckWitness(account) {
		return errors.New("neo: registration not witnessed by account")
	}
	price, err := n.RegisterPrice()
	if err != nil {
		return err
	}
	if n.gas != nil {
		if err := n.gas.Burn(ae, account, price); err != nil {
			return err
		}
	}
	cand, err := n.candidate(pubkey)
	if err != nil {
		return err
	}
	cand.Registered = true
	return n.putCandidate(pubkey, cand)
}

// UnregisterCandidate clears pubkey's registered flag. Existing votes are
// left in place; CalculateBonus/Vote still account for them until voters
// move away, matching NEO N3's semantics for an unregistered-but-voted-for
// candidate.
func (n *NeoContract) UnregisterCandidate(ae *ApplicationEngine, account UInt160, pubkey []byte) error {
	if !ae.CheckWitness(account) {
		return errors.New("neo: unregistration not witnessed by account")
	}
	cand, err := n.candidate(pubkey)
	if err != nil {
		return err
	}
	cand.Registered = false
	return n.putCandidate(pubkey, cand)
}

// Committee returns the current committee's public keys, or nil if no
// refresh has run yet (spec.md §4.F committee refresh; the refresh
// computation itself runs from the persist pipeline, see DESIGN.md's Open
// Question on NEO committee refresh).
func (n *NeoContract) Committee() ([][]byte, error) {
	item, err := n.store.TryGet(StorageKey{ContractID: neoContractID, Prefix: []byte{prefixNeoCommittee}})
	if err != nil || item == nil {
		return nil, err
	}
	var committee [][]byte
	if err := json.Unmarshal(item.Value, &committee); err != nil {
		return nil, err
	}
	return committee, nil
}

// SetCommittee stores the result of a committee refresh.
func (n *NeoContract) SetCommittee(committee [][]byte) error {
	b, err := json.Marshal(committee)
	if err != nil {
		return err
	}
	item, err := n.store.GetOrAdd(StorageKey{ContractID: neoContractID, Prefix: []byte{prefixNeoCommittee}}, func() *StorageItem { return &StorageItem{} })
	if err != nil {
		return err
	}
	item.Value = b
	item.MarkDirty()
	return nil
}

// VoterRewardPerCommittee returns the accumulated per-vote reward factor
// recorded for a committee member's public key at the last refresh
// boundary (spec.md §4.F PostPersist "voter-reward-per-committee").
func (n *NeoContract) VoterRewardPerCommittee(pubkey []byte) (*big.Int, error) {
	item, err := n.store.TryGet(StorageKey{ContractID: neoContractID, Prefix: append([]byte{prefixNeoVoterRewardPerCommittee}, pubkey...)})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).SetBytes(item.Value), nil
}

// AddVoterRewardPerCommittee increments pubkey's accumulated voter-reward
// factor, called by the persist pipeline at each committee refresh
// boundary.
func (n *NeoContract) AddVoterRewardPerCommittee(pubkey []byte, delta *big.Int) error {
	cur, err := n.VoterRewardPerCommittee(pubkey)
	if err != nil {
		return err
	}
	cur.Add(cur, delta)
	item, err := n.store.GetOrAdd(StorageKey{ContractID: neoContractID, Prefix: append([]byte{prefixNeoVoterRewardPerCommittee}, pubkey...)}, func() *StorageItem { return &StorageItem{} })
	if err != nil {
		return err
	}
	item.Value = cur.Bytes()
	item.MarkDirty()
	return nil
}

func mustIntItem(v *big.Int) StackItem {
	item, err := NewIntegerItem(v)
	if err != nil {
		panic(err)
	}
	return item
}

func encodeNeoAccountState(s *NeoAccountState) ([]byte, error) {
	w := NewBinWriter()
	w.WriteVarBytes(s.Balance.Bytes())
	if s.Balance.Sign() < 0 {
		return nil, errors.New("neo: negative balance")
	}
	w.WriteVarBytes(s.VoteTo)
	w.WriteVarBytes(s.LastGasPerVote.Bytes())
	w.WriteU32(s.BalanceHeight)
	return w.Bytes(), nil
}

func decodeNeoAccountState(b []byte) (*NeoAccountState, error) {
	r := NewBinReader(b)
	balance := new(big.Int).SetBytes(r.ReadVarBytes(64))
	voteTo := r.ReadVarBytes(64)
	if len(voteTo) == 0 {
		voteTo = nil
	}
	lastGasPerVote := new(big.Int).SetBytes(r.ReadVarBytes(64))
	height := r.ReadU32()
	return &NeoAccountState{Balance: balance, VoteTo: voteTo, LastGasPerVote: lastGasPerVote, BalanceHeight: height}, nil
}

func encodeNeoCandidateState(c *NeoCandidateState) ([]byte, error) {
	w := NewBinWriter()
	w.WriteVarBytes(c.Votes.Bytes())
	if c.Registered {
		w.WriteByte(1)
	} else {
		w.WriteByte(0)
	}
	w.WriteVarBytes(c.GasPerVote.Bytes())
	return w.Bytes(), nil
}

func decodeNeoCandidateState(b []byte) (*NeoCandidateState, error) {
	r := NewBinReader(b)
	votes := new(big.Int).SetBytes(r.ReadVarBytes(64))
	registered := r.ReadByte() != 0
	gasPerVote := new(big.Int).SetBytes(r.ReadVarBytes(64))
	return &NeoCandidateState{Votes: votes, Registered: registered, GasPerVote: gasPerVote}, nil
}
