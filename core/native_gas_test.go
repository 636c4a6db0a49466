package core

import (
	"math/big"
	"testing"
)

// witnessedEngine returns an ApplicationEngine with a trivial RET script
// loaded under scriptHash, so CheckWitness(scriptHash) succeeds via the
// self-witness shortcut without needing a real Signer set.
func witnessedEngine(t *testing.T, snapshot *DataCache, scriptHash UInt160) *ApplicationEngine {
	t.Helper()
	ae := NewApplicationEngine(TriggerApplication, snapshot, nil, 10_000_000, 1)
	if err := ae.LoadScript([]byte{byte(RET)}, CallFlagAll, scriptHash); err != nil {
		t.Fatalf("LoadScript: %v", err)
	}
	return ae
}

func TestGasContractMintTransferBurn(t *testing.T) {
	snapshot := NewDataCache(NewMemStore())
	gas := NewGasContract(snapshot)

	alice := UInt160{1}
	bob := UInt160{2}

	ae := witnessedEngine(t, snapshot, alice)
	if err := gas.Mint(ae, alice, big.NewInt(1000)); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	bal, err := gas.BalanceOf(alice)
	if err != nil || bal.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("BalanceOf(alice) = %v, %v; want 1000, nil", bal, err)
	}

	if err := gas.Transfer(ae, alice, bob, big.NewInt(400)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	aliceBal, _ := gas.BalanceOf(alice)
	bobBal, _ := gas.BalanceOf(bob)
	if aliceBal.Cmp(big.NewInt(600)) != 0 || bobBal.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("post-transfer balances = alice:%v bob:%v, want 600/400", aliceBal, bobBal)
	}

	if err := gas.Burn(ae, alice, big.NewInt(600)); err != nil {
		t.Fatalf("Burn: %v", err)
	}
	if aliceBal, _ = gas.BalanceOf(alice); aliceBal.Sign() != 0 {
		t.Fatalf("BalanceOf(alice) after burning everything = %v, want 0", aliceBal)
	}

	if err := gas.Burn(ae, alice, big.NewInt(1)); err == nil {
		t.Fatal("Burn beyond balance should fail")
	}
}

func TestGasContractTransferRejectsUnwitnessedSender(t *testing.T) {
	snapshot := NewDataCache(NewMemStore())
	gas := NewGasContract(snapshot)

	alice := UInt160{1}
	bob := UInt160{2}
	ae := witnessedEngine(t, snapshot, bob) // executing as bob, not alice

	if err := gas.Mint(nil, alice, big.NewInt(100)); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if err := gas.Transfer(ae, alice, bob, big.NewInt(10)); err == nil {
		t.Fatal("Transfer should fail without alice's witness")
	}
}

func TestGasContractTransferRejectsInsufficientBalance(t *testing.T) {
	snapshot := NewDataCache(NewMemStore())
	gas := NewGasContract(snapshot)
	alice := UInt160{1}
	bob := UInt160{2}
	ae := witnessedEngine(t, snapshot, alice)

	if err := gas.Transfer(ae, alice, bob, big.NewInt(1)); err == nil {
		t.Fatal("Transfer with a zero balance should fail")
	}
}
