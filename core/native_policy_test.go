package core

import "testing"

func TestPolicyContractDefaults(t *testing.T) {
	p := NewPolicyContract(NewDataCache(NewMemStore()))

	if v, err := p.FeePerByte(); err != nil || v != defaultFeePerByte {
		t.Fatalf("FeePerByte() = %d, %v; want %d, nil", v, err, defaultFeePerByte)
	}
	if v, err := p.ExecFeeFactor(); err != nil || v != defaultExecFeeFactor {
		t.Fatalf("ExecFeeFactor() = %d, %v; want %d, nil", v, err, defaultExecFeeFactor)
	}
	if v, err := p.StoragePrice(); err != nil || v != defaultStoragePrice {
		t.Fatalf("StoragePrice() = %d, %v; want %d, nil", v, err, defaultStoragePrice)
	}
}

func TestPolicyContractSetters(t *testing.T) {
	p := NewPolicyContract(NewDataCache(NewMemStore()))

	if err := p.SetFeePerByte(5000); err != nil {
		t.Fatalf("SetFeePerByte: %v", err)
	}
	if v, _ := p.FeePerByte(); v != 5000 {
		t.Fatalf("FeePerByte() = %d, want 5000", v)
	}

	if err := p.SetExecFeeFactor(50); err != nil {
		t.Fatalf("SetExecFeeFactor: %v", err)
	}
	if v, _ := p.ExecFeeFactor(); v != 50 {
		t.Fatalf("ExecFeeFactor() = %d, want 50", v)
	}
}

func TestPolicyContractBlockedAccounts(t *testing.T) {
	p := NewPolicyContract(NewDataCache(NewMemStore()))
	acct := UInt160{9, 9, 9}

	if p.IsBlocked(acct) {
		t.Fatal("account should not start blocked")
	}
	if err := p.BlockAccount(acct); err != nil {
		t.Fatalf("BlockAccount: %v", err)
	}
	if !p.IsBlocked(acct) {
		t.Fatal("account should be blocked")
	}
	if err := p.UnblockAccount(acct); err != nil {
		t.Fatalf("UnblockAccount: %v", err)
	}
	if p.IsBlocked(acct) {
		t.Fatal("account should be unblocked")
	}
	if err := p.UnblockAccount(acct); err == nil {
		t.Fatal("UnblockAccount on an already-unblocked account should error")
	}
}
