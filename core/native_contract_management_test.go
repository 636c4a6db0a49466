package core

import "testing"

func deployableNef(t *testing.T, script []byte) []byte {
	t.Helper()
	b, err := EncodeNefFile(&NefFile{Compiler: "test-compiler", Script: script})
	if err != nil {
		t.Fatalf("EncodeNefFile: %v", err)
	}
	return b
}

func TestContractManagementDeployAndGet(t *testing.T) {
	store := NewDataCache(NewMemStore())
	policy := NewPolicyContract(store)
	cm := NewContractManagement(store, policy)

	script := []byte{byte(PUSH9), byte(RET)}
	nefBytes := deployableNef(t, script)
	manifest := ContractManifest{
		Name: "TestToken",
		ABI: ContractABI{Methods: []ContractMethod{
			{Name: "get", ReturnType: ItemTypeInteger, Offset: 0, Safe: true},
		}},
	}
	manifestBytes, err := manifest.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	sender := UInt160{1, 2, 3}
	state, err := cm.Deploy(nil, sender, nefBytes, manifestBytes, nil)
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if state.Manifest.Name != "TestToken" {
		t.Fatalf("deployed manifest name = %q, want TestToken", state.Manifest.Name)
	}

	got, err := cm.GetContract(state.Hash)
	if err != nil {
		t.Fatalf("GetContract: %v", err)
	}
	if got.ID != state.ID || got.Manifest.Name != "TestToken" {
		t.Fatalf("GetContract round-trip mismatch: %+v", got)
	}

	if _, err := cm.Deploy(nil, sender, nefBytes, manifestBytes, nil); err == nil {
		t.Fatal("redeploying the same sender/script/name should fail")
	}
}

func TestContractManagementDeployRejectsOutOfBoundsOffset(t *testing.T) {
	store := NewDataCache(NewMemStore())
	cm := NewContractManagement(store, NewPolicyContract(store))

	script := []byte{byte(RET)}
	nefBytes := deployableNef(t, script)
	manifest := ContractManifest{
		Name: "Bad",
		ABI: ContractABI{Methods: []ContractMethod{
			{Name: "get", Offset: 99},
		}},
	}
	manifestBytes, _ := manifest.ToJSON()

	if _, err := cm.Deploy(nil, UInt160{1}, nefBytes, manifestBytes, nil); err == nil {
		t.Fatal("Deploy with an out-of-bounds ABI offset should fail")
	}
}

func TestContractManagementUpdateIncrementsCounterAndRejectsRename(t *testing.T) {
	store := NewDataCache(NewMemStore())
	cm := NewContractManagement(store, NewPolicyContract(store))

	script := []byte{byte(PUSH9), byte(RET)}
	nefBytes := deployableNef(t, script)
	manifest := ContractManifest{Name: "Orig", ABI: ContractABI{Methods: []ContractMethod{{Name: "get", Offset: 0}}}}
	manifestBytes, _ := manifest.ToJSON()

	state, err := cm.Deploy(nil, UInt160{7}, nefBytes, manifestBytes, nil)
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}

	updated, err := cm.Update(nil, state.Hash, nil, manifestBytes, nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.UpdateCounter != 1 {
		t.Fatalf("UpdateCounter = %d, want 1", updated.UpdateCounter)
	}

	renamed := ContractManifest{Name: "Renamed", ABI: manifest.ABI}
	renamedBytes, _ := renamed.ToJSON()
	if _, err := cm.Update(nil, state.Hash, nil, renamedBytes, nil); err == nil {
		t.Fatal("Update should reject a manifest that changes the contract name")
	}
}

func TestContractManagementDestroyBlocksAccountAndRemovesRecord(t *testing.T) {
	store := NewDataCache(NewMemStore())
	policy := NewPolicyContract(store)
	cm := NewContractManagement(store, policy)

	script := []byte{byte(RET)}
	nefBytes := deployableNef(t, script)
	manifest := ContractManifest{Name: "Doomed"}
	manifestBytes, _ := manifest.ToJSON()

	state, err := cm.Deploy(nil, UInt160{3}, nefBytes, manifestBytes, nil)
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}

	if err := cm.Destroy(nil, state.Hash); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if _, err := cm.GetContract(state.Hash); err == nil {
		t.Fatal("GetContract should fail after Destroy")
	}
	if !policy.IsBlocked(state.Hash) {
		t.Fatal("Destroy should block the contract's hash in Policy")
	}
}
