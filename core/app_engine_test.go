package core

import "testing"

// fakeContractResolver is a minimal in-memory ContractResolver for testing
// System.Contract.Call dispatch without a real ContractManagement native
// contract (built in a later pass).
type fakeContractResolver struct {
	byHash map[UInt160]*ContractState
}

func (f *fakeContractResolver) GetContract(hash UInt160) (*ContractState, error) {
	c, ok := f.byHash[hash]
	if !ok {
		return nil, ErrUnknownContract{Hash: hash}
	}
	return c, nil
}

func TestApplicationEngineStoragePutGet(t *testing.T) {
	snapshot := NewDataCache(NewMemStore())
	ae := NewApplicationEngine(TriggerApplication, snapshot, nil, 10_000_000, 1)

	scriptHash := UInt160{1}
	key := []byte{0xAA}
	value := []byte{0xBB, 0xCC}

	putScript := append([]byte{
		byte(PUSHDATA1), byte(len(key)),
	}, key...)
	putScript = append(putScript, byte(PUSHDATA1), byte(len(value)))
	putScript = append(putScript, value...)
	putScript = append(putScript, encodeSyscall("System.Storage.Put")...)
	putScript = append(putScript, byte(RET))

	if err := ae.LoadScript(putScript, CallFlagAll, scriptHash); err != nil {
		t.Fatalf("LoadScript (put): %v", err)
	}
	if got := ae.Execute(); got != VMStateHalt {
		t.Fatalf("put: want HALT, got %s (fault: %v)", got, ae.UncaughtFault)
	}

	getScript := append([]byte{byte(PUSHDATA1), byte(len(key))}, key...)
	getScript = append(getScript, encodeSyscall("System.Storage.Get")...)
	getScript = append(getScript, byte(RET))

	ae2 := NewApplicationEngine(TriggerApplication, snapshot, nil, 10_000_000, 1)
	if err := ae2.LoadScript(getScript, CallFlagAll, scriptHash); err != nil {
		t.Fatalf("LoadScript (get): %v", err)
	}
	if got := ae2.Execute(); got != VMStateHalt {
		t.Fatalf("get: want HALT, got %s (fault: %v)", got, ae2.UncaughtFault)
	}
	if len(ae2.ResultStack) == 0 {
		t.Fatalf("get: empty result stack")
	}
	bs, ok := ae2.ResultStack[len(ae2.ResultStack)-1].(ByteStringItem)
	if !ok {
		t.Fatalf("get: result not a byte string: %T", ae2.ResultStack[len(ae2.ResultStack)-1])
	}
	if string(bs.Value) != string(value) {
		t.Fatalf("get: want %x, got %x", value, bs.Value)
	}
}

func TestApplicationEngineCheckWitnessGlobalScope(t *testing.T) {
	account := UInt160{2}
	signers := []Signer{{Account: account, Scopes: WitnessScopeGlobal}}
	ae := NewApplicationEngine(TriggerApplication, NewDataCache(NewMemStore()), signers, 10_000_000, 1)

	script := append([]byte{byte(PUSHDATA1), 20}, account.Bytes()...)
	script = append(script, encodeSyscall("System.Runtime.CheckWitness")...)
	script = append(script, byte(RET))

	if err := ae.LoadScript(script, CallFlagAll, UInt160{9}); err != nil {
		t.Fatalf("LoadScript: %v", err)
	}
	if got := ae.Execute(); got != VMStateHalt {
		t.Fatalf("want HALT, got %s (fault: %v)", got, ae.UncaughtFault)
	}
	top := ae.ResultStack[len(ae.ResultStack)-1]
	if !top.Bool() {
		t.Fatalf("expected CheckWitness to succeed for globally scoped signer")
	}
}

func TestApplicationEngineNotifyRecordsNotification(t *testing.T) {
	ae := NewApplicationEngine(TriggerApplication, NewDataCache(NewMemStore()), nil, 10_000_000, 1)

	name := []byte("Transfer")
	script := []byte{byte(NEWARRAY0)}
	script = append(script, byte(PUSHDATA1), byte(len(name)))
	script = append(script, name...)
	script = append(script, encodeSyscall("System.Runtime.Notify")...)
	script = append(script, byte(RET))

	if err := ae.LoadScript(script, CallFlagAll, UInt160{3}); err != nil {
		t.Fatalf("LoadScript: %v", err)
	}
	if got := ae.Execute(); got != VMStateHalt {
		t.Fatalf("want HALT, got %s (fault: %v)", got, ae.UncaughtFault)
	}
	if len(ae.Notifications) != 1 {
		t.Fatalf("want 1 notification, got %d", len(ae.Notifications))
	}
	if ae.Notifications[0].Name != "Transfer" {
		t.Fatalf("want Transfer, got %s", ae.Notifications[0].Name)
	}
}

func TestApplicationEngineNotifyRejectedWithoutAllowNotifyFlag(t *testing.T) {
	ae := NewApplicationEngine(TriggerApplication, NewDataCache(NewMemStore()), nil, 10_000_000, 1)

	name := []byte("X")
	script := []byte{byte(NEWARRAY0)}
	script = append(script, byte(PUSHDATA1), byte(len(name)))
	script = append(script, name...)
	script = append(script, encodeSyscall("System.Runtime.Notify")...)
	script = append(script, byte(RET))

	if err := ae.LoadScript(script, CallFlagReadOnly, UInt160{3}); err != nil {
		t.Fatalf("LoadScript: %v", err)
	}
	if got := ae.Execute(); got != VMStateFault {
		t.Fatalf("want FAULT (AllowNotify not granted), got %s", got)
	}
}

func TestApplicationEngineCallContractDispatchesCallee(t *testing.T) {
	calleeHash := UInt160{7}
	callee := &ContractState{
		Hash: calleeHash,
		// PUSH9 RET, exposed as method "get" with arity 0.
		Script: []byte{byte(PUSH9), byte(RET)},
		Manifest: ContractManifest{
			ABI: ContractABI{Methods: []ContractMethod{{Name: "get", Offset: 0}}},
		},
	}
	callerHash := UInt160{8}
	caller := &ContractState{
		Hash: callerHash,
		Manifest: ContractManifest{
			Permissions: []ContractPermission{{Contract: &calleeHash}},
		},
	}
	resolver := &fakeContractResolver{byHash: map[UInt160]*ContractState{
		calleeHash: callee,
		callerHash: caller,
	}}

	ae := NewApplicationEngine(TriggerApplication, NewDataCache(NewMemStore()), nil, 10_000_000, 1)
	ae.Contracts = resolver

	script := []byte{byte(PUSHDATA1), 20}
	script = append(script, calleeHash.Bytes()...)
	method := []byte("get")
	script = append(script, byte(PUSHDATA1), byte(len(method)))
	script = append(script, method...)
	script = append(script, byte(PUSH0)) // CallFlags.None is enough; intersection keeps it safe
	script = append(script, byte(NEWARRAY0))
	script = append(script, encodeSyscall("System.Contract.Call")...)
	script = append(script, byte(RET))

	if err := ae.LoadScript(script, CallFlagAll, callerHash); err != nil {
		t.Fatalf("LoadScript: %v", err)
	}
	if got := ae.Execute(); got != VMStateHalt {
		t.Fatalf("want HALT, got %s (fault: %v)", got, ae.UncaughtFault)
	}
	if got := mustResultInt(t, ae.ExecutionEngine); got != 9 {
		t.Fatalf("want 9 from callee, got %d", got)
	}
}

// encodeSyscall renders a SYSCALL instruction for name, matching the
// 4-byte little-endian id decodeInstruction expects (vm_script.go).
func encodeSyscall(name string) []byte {
	id := interopID(name)
	return []byte{byte(SYSCALL), byte(id), byte(id >> 8), byte(id >> 16), byte(id >> 24)}
}
