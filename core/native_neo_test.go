package core

import (
	"math/big"
	"testing"
)

func TestNeoContractTransferMovesBalance(t *testing.T) {
	snapshot := NewDataCache(NewMemStore())
	gas := NewGasContract(snapshot)
	neo := NewNeoContract(snapshot, gas)

	alice := UInt160{1}
	bob := UInt160{2}

	// seed alice's balance directly, bypassing Transfer's witness check.
	if err := neo.putAccount(alice, &NeoAccountState{Balance: big.NewInt(1000), LastGasPerVote: big.NewInt(0)}); err != nil {
		t.Fatalf("seed putAccount: %v", err)
	}

	ae := witnessedEngine(t, snapshot, alice)
	if err := neo.Transfer(ae, alice, bob, big.NewInt(300), 10); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	aliceBal, err := neo.BalanceOf(alice)
	if err != nil || aliceBal.Cmp(big.NewInt(700)) != 0 {
		t.Fatalf("BalanceOf(alice) = %v, %v; want 700, nil", aliceBal, err)
	}
	bobBal, err := neo.BalanceOf(bob)
	if err != nil || bobBal.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("BalanceOf(bob) = %v, %v; want 300, nil", bobBal, err)
	}
}

func TestNeoContractTransferRejectsInsufficientBalance(t *testing.T) {
	snapshot := NewDataCache(NewMemStore())
	neo := NewNeoContract(snapshot, NewGasContract(snapshot))
	alice := UInt160{1}
	bob := UInt160{2}
	ae := witnessedEngine(t, snapshot, alice)

	if err := neo.Transfer(ae, alice, bob, big.NewInt(1), 1); err == nil {
		t.Fatal("Transfer with a zero balance should fail")
	}
}

func TestNeoContractVoteMovesTallyAndTogglesVotersCount(t *testing.T) {
	snapshot := NewDataCache(NewMemStore())
	neo := NewNeoContract(snapshot, NewGasContract(snapshot))
	alice := UInt160{1}
	candidateA := []byte{0xAA, 0xAA}
	candidateB := []byte{0xBB, 0xBB}

	if err := neo.putAccount(alice, &NeoAccountState{Balance: big.NewInt(500), LastGasPerVote: big.NewInt(0)}); err != nil {
		t.Fatalf("seed putAccount: %v", err)
	}

	ae := witnessedEngine(t, snapshot, alice)
	if err := neo.Vote(ae, alice, candidateA); err != nil {
		t.Fatalf("Vote(candidateA): %v", err)
	}
	voters, err := neo.votersCount()
	if err != nil || voters.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("votersCount() after first vote = %v, %v; want 500, nil", voters, err)
	}
	candA, err := neo.candidate(candidateA)
	if err != nil || candA.Votes.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("candidate(A).Votes = %v, %v; want 500, nil", candA.Votes, err)
	}

	if err := neo.Vote(ae, alice, candidateB); err != nil {
		t.Fatalf("Vote(candidateB): %v", err)
	}
	candA, _ = neo.candidate(candidateA)
	candB, err := neo.candidate(candidateB)
	if candA.Votes.Sign() != 0 {
		t.Fatalf("candidate(A).Votes after re-vote = %v, want 0", candA.Votes)
	}
	if err != nil || candB.Votes.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("candidate(B).Votes = %v, %v; want 500, nil", candB.Votes, err)
	}
	if voters, _ = neo.votersCount(); voters.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("votersCount() after re-vote = %v, want 500 (no net change)", voters)
	}

	if err := neo.Vote(ae, alice, nil); err != nil {
		t.Fatalf("Vote(nil): %v", err)
	}
	if voters, _ = neo.votersCount(); voters.Sign() != 0 {
		t.Fatalf("votersCount() after un-vote = %v, want 0", voters)
	}
}

func TestNeoContractCalculateBonusHolderReward(t *testing.T) {
	snapshot := NewDataCache(NewMemStore())
	neo := NewNeoContract(snapshot, NewGasContract(snapshot))
	alice := UInt160{1}

	if err := neo.putAccount(alice, &NeoAccountState{
		Balance: big.NewInt(100_000_000), LastGasPerVote: big.NewInt(0), BalanceHeight: 0,
	}); err != nil {
		t.Fatalf("seed putAccount: %v", err)
	}

	bonus, err := neo.CalculateBonus(alice, 100)
	if err != nil {
		t.Fatalf("CalculateBonus: %v", err)
	}
	// alice holds the entire supply, so the holder reward collapses to
	// gasPerBlock * blocks * HolderRewardRatio/100.
	want := new(big.Int).Mul(big.NewInt(int64(neoDefaultGasPerBlock)), big.NewInt(100))
	want.Mul(want, big.NewInt(NeoHolderRewardRatio))
	want.Div(want, big.NewInt(100))
	if bonus.Cmp(want) != 0 {
		t.Fatalf("CalculateBonus = %v, want %v", bonus, want)
	}
}

func TestNeoContractRegisterCandidateBurnsRegisterPrice(t *testing.T) {
	snapshot := NewDataCache(NewMemStore())
	gas := NewGasContract(snapshot)
	neo := NewNeoContract(snapshot, gas)
	alice := UInt160{1}
	pubkey := []byte{0xCC, 0xCC}

	if err := gas.Mint(nil, alice, big.NewInt(2000_00000000)); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	ae := witnessedEngine(t, snapshot, alice)

	price, err := neo.RegisterPrice()
	if err != nil {
		t.Fatalf("RegisterPrice: %v", err)
	}
	if err := neo.RegisterCandidate(ae, alice, pubkey); err != nil {
		t.Fatalf("RegisterCandidate: %v", err)
	}

	bal, err := gas.BalanceOf(alice)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	want := new(big.Int).Sub(big.NewInt(2000_00000000), price)
	if bal.Cmp(want) != 0 {
		t.Fatalf("BalanceOf(alice) after registering = %v, want %v", bal, want)
	}

	cand, err := neo.candidate(pubkey)
	if err != nil || !cand.Registered {
		t.Fatalf("candidate(pubkey).Registered = %v, %v; want true, nil", cand.Registered, err)
	}

	if err := neo.UnregisterCandidate(ae, alice, pubkey); err != nil {
		t.Fatalf("UnregisterCandidate: %v", err)
	}
	cand, _ = neo.candidate(pubkey)
	if cand.Registered {
		t.Fatal("candidate should be unregistered")
	}
}

func TestNeoContractCommitteeRoundTrip(t *testing.T) {
	snapshot := NewDataCache(NewMemStore())
	neo := NewNeoContract(snapshot, NewGasContract(snapshot))

	if got, err := neo.Committee(); err != nil || got != nil {
		t.Fatalf("Committee() before any refresh = %v, %v; want nil, nil", got, err)
	}

	committee := [][]byte{{0x01}, {0x02}, {0x03}}
	if err := neo.SetCommittee(committee); err != nil {
		t.Fatalf("SetCommittee: %v", err)
	}
	got, err := neo.Committee()
	if err != nil || len(got) != 3 {
		t.Fatalf("Committee() = %v, %v; want 3 entries, nil", got, err)
	}
}

func TestNeoContractVoterRewardPerCommitteeAccumulates(t *testing.T) {
	snapshot := NewDataCache(NewMemStore())
	neo := NewNeoContract(snapshot, NewGasContract(snapshot))
	pubkey := []byte{0x01}

	if err := neo.AddVoterRewardPerCommittee(pubkey, big.NewInt(100)); err != nil {
		t.Fatalf("AddVoterRewardPerCommittee: %v", err)
	}
	if err := neo.AddVoterRewardPerCommittee(pubkey, big.NewInt(50)); err != nil {
		t.Fatalf("AddVoterRewardPerCommittee: %v", err)
	}
	got, err := neo.VoterRewardPerCommittee(pubkey)
	if err != nil || got.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("VoterRewardPerCommittee = %v, %v; want 150, nil", got, err)
	}
}

func TestNeoContractCalculateBonusZeroForFreshAccount(t *testing.T) {
	snapshot := NewDataCache(NewMemStore())
	neo := NewNeoContract(snapshot, NewGasContract(snapshot))
	bonus, err := neo.CalculateBonus(UInt160{9}, 100)
	if err != nil {
		t.Fatalf("CalculateBonus: %v", err)
	}
	if bonus.Sign() != 0 {
		t.Fatalf("CalculateBonus for an account with no balance = %v, want 0", bonus)
	}
}
