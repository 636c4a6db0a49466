package core

import (
	"math/big"
	"testing"
)

func fundedTransaction(t *testing.T, gas *GasContract, account UInt160, nonce uint32, networkFee int64) *Transaction {
	t.Helper()
	if err := gas.Mint(nil, account, big.NewInt(1_000_000_000)); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	tx := singleSignerTransaction(t, account)
	tx.Nonce = nonce
	tx.NetworkFee = networkFee
	return tx
}

func TestMemPoolTryAddAcceptsFundedTransaction(t *testing.T) {
	snapshot := NewDataCache(NewMemStore())
	policy := NewPolicyContract(snapshot)
	gas := NewGasContract(snapshot)
	pool := NewMemPool(10)

	tx := fundedTransaction(t, gas, UInt160{1}, 1, 1_000_000)
	ok, _, err := pool.TryAdd(tx, 1, policy, gas)
	if err != nil {
		t.Fatalf("TryAdd: %v", err)
	}
	if !ok {
		t.Fatal("TryAdd should accept a funded, valid transaction")
	}
	verified, unverified := pool.Count()
	if verified != 1 || unverified != 0 {
		t.Fatalf("Count() = %d, %d; want 1, 0", verified, unverified)
	}
}

func TestMemPoolTryAddRejectsDuplicateHash(t *testing.T) {
	snapshot := NewDataCache(NewMemStore())
	policy := NewPolicyContract(snapshot)
	gas := NewGasContract(snapshot)
	pool := NewMemPool(10)

	tx := fundedTransaction(t, gas, UInt160{1}, 1, 1_000_000)
	if ok, _, err := pool.TryAdd(tx, 1, policy, gas); err != nil || !ok {
		t.Fatalf("first TryAdd: %v, %v", ok, err)
	}
	if ok, _, err := pool.TryAdd(tx, 1, policy, gas); err != nil || ok {
		t.Fatalf("second TryAdd with identical tx should be a no-op: %v, %v", ok, err)
	}
}

func TestMemPoolTryAddRejectsOverdrawnSender(t *testing.T) {
	snapshot := NewDataCache(NewMemStore())
	policy := NewPolicyContract(snapshot)
	gas := NewGasContract(snapshot)
	pool := NewMemPool(10)
	sender := UInt160{1}

	if err := gas.Mint(nil, sender, big.NewInt(1_500_000)); err != nil {
		t.Fatalf("Mint: %v", err)
	}

	tx1 := singleSignerTransaction(t, sender)
	tx1.Nonce = 1
	tx1.NetworkFee = 1_000_000
	if ok, _, err := pool.TryAdd(tx1, 1, policy, gas); err != nil || !ok {
		t.Fatalf("TryAdd(tx1): %v, %v", ok, err)
	}

	tx2 := singleSignerTransaction(t, sender)
	tx2.Nonce = 2
	tx2.NetworkFee = 1_000_000
	ok, _, err := pool.TryAdd(tx2, 1, policy, gas)
	if vf, isVF := err.(*VerificationFailure); !isVF || vf.Result != InsufficientFunds {
		t.Fatalf("TryAdd(tx2): want an InsufficientFunds verification failure, got %v", err)
	}
	if ok {
		t.Fatal("TryAdd should reject tx2 once tx1's pending fee exhausts the sender's balance")
	}
}

func TestMemPoolCapacityEvictsLowestPriority(t *testing.T) {
	snapshot := NewDataCache(NewMemStore())
	policy := NewPolicyContract(snapshot)
	gas := NewGasContract(snapshot)
	pool := NewMemPool(2)

	low := fundedTransaction(t, gas, UInt160{1}, 1, 1_000_000)
	mid := fundedTransaction(t, gas, UInt160{2}, 1, 2_000_000)
	high := fundedTransaction(t, gas, UInt160{3}, 1, 3_000_000)

	for _, tx := range []*Transaction{low, mid} {
		if ok, _, err := pool.TryAdd(tx, 1, policy, gas); err != nil || !ok {
			t.Fatalf("TryAdd: %v, %v", ok, err)
		}
	}
	ok, reason, err := pool.TryAdd(high, 1, policy, gas)
	if err != nil {
		t.Fatalf("TryAdd(high): %v", err)
	}
	if !ok {
		t.Fatal("TryAdd(high) should succeed, evicting the lowest-priority entry")
	}
	if reason != 0 {
		t.Fatalf("successful TryAdd should report no eviction reason against itself, got %v", reason)
	}

	lowHash, _ := low.Hash()
	if pool.Contains(lowHash) {
		t.Fatal("the lowest-fee transaction should have been evicted")
	}
}

func TestMemPoolGetVerifiedForBlockRespectsOrderingAndCaps(t *testing.T) {
	snapshot := NewDataCache(NewMemStore())
	policy := NewPolicyContract(snapshot)
	gas := NewGasContract(snapshot)
	pool := NewMemPool(10)

	low := fundedTransaction(t, gas, UInt160{1}, 1, 1_000_000)
	high := fundedTransaction(t, gas, UInt160{2}, 1, 5_000_000)
	for _, tx := range []*Transaction{low, high} {
		if ok, _, err := pool.TryAdd(tx, 1, policy, gas); err != nil || !ok {
			t.Fatalf("TryAdd: %v, %v", ok, err)
		}
	}

	picked := pool.GetVerifiedForBlock(10, 1<<20, 1<<40)
	if len(picked) != 2 {
		t.Fatalf("GetVerifiedForBlock returned %d transactions, want 2", len(picked))
	}
	if picked[0].NetworkFee != high.NetworkFee {
		t.Fatalf("GetVerifiedForBlock should rank the higher fee-per-byte transaction first; got NetworkFee=%d", picked[0].NetworkFee)
	}
}

func TestMemPoolUpdatePoolForBlockPersistedDemotesAndReverifies(t *testing.T) {
	snapshot := NewDataCache(NewMemStore())
	policy := NewPolicyContract(snapshot)
	gas := NewGasContract(snapshot)
	pool := NewMemPool(10)

	included := fundedTransaction(t, gas, UInt160{1}, 1, 1_000_000)
	survivor := fundedTransaction(t, gas, UInt160{2}, 1, 1_000_000)
	for _, tx := range []*Transaction{included, survivor} {
		if ok, _, err := pool.TryAdd(tx, 1, policy, gas); err != nil || !ok {
			t.Fatalf("TryAdd: %v, %v", ok, err)
		}
	}

	includedHash, _ := included.Hash()
	pool.UpdatePoolForBlockPersisted(map[UInt256]bool{includedHash: true})

	verified, unverified := pool.Count()
	if verified != 0 || unverified != 1 {
		t.Fatalf("Count() after persist = %d, %d; want 0, 1", verified, unverified)
	}

	promoted, dropped := pool.ReverifyUnverified(10, 2, policy, gas)
	if promoted != 1 || len(dropped) != 0 {
		t.Fatalf("ReverifyUnverified = %d promoted, %v dropped; want 1, none", promoted, dropped)
	}
	verified, unverified = pool.Count()
	if verified != 1 || unverified != 0 {
		t.Fatalf("Count() after reverify = %d, %d; want 1, 0", verified, unverified)
	}
}

func TestMemPoolReverifyDropsNoLongerValidTransactions(t *testing.T) {
	snapshot := NewDataCache(NewMemStore())
	policy := NewPolicyContract(snapshot)
	gas := NewGasContract(snapshot)
	pool := NewMemPool(10)

	tx := fundedTransaction(t, gas, UInt160{1}, 1, 1_000_000)
	tx.ValidUntilBlock = 5
	if ok, _, err := pool.TryAdd(tx, 1, policy, gas); err != nil || !ok {
		t.Fatalf("TryAdd: %v, %v", ok, err)
	}

	pool.UpdatePoolForBlockPersisted(map[UInt256]bool{})
	promoted, dropped := pool.ReverifyUnverified(10, 100, policy, gas)
	if promoted != 0 || len(dropped) != 1 {
		t.Fatalf("ReverifyUnverified = %d promoted, %v dropped; want 0, 1 (now past valid-until-block)", promoted, dropped)
	}
}
