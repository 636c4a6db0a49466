package core

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"

	"github.com/sirupsen/logrus"
)

// TriggerType identifies why the Application Engine is running a script
// (spec.md §4.E "Trigger types").
type TriggerType uint8

const (
	TriggerOnPersist TriggerType = iota
	TriggerPostPersist
	TriggerApplication
	TriggerVerification
)

func (t TriggerType) String() string {
	switch t {
	case TriggerOnPersist:
		return "OnPersist"
	case TriggerPostPersist:
		return "PostPersist"
	case TriggerVerification:
		return "Verification"
	default:
		return "Application"
	}
}

// Notification is one System.Runtime.Notify event, recorded against the
// contract that raised it (spec.md §4.E "notifications list").
type Notification struct {
	Origin  UInt160
	Name    string
	Payload *ArrayItem
}

// PersistingBlock is the minimal block context an OnPersist/PostPersist run
// or an interop like System.Runtime.GetTime needs; Task 9's block type
// carries the full header this is synthesized from or wraps.
type PersistingBlock struct {
	Index     uint32
	Timestamp uint64
	PrevHash  UInt256
}

// defaultMaxNotifications bounds how many notifications a single
// invocation may raise, guarding against unbounded log growth the way
// spec.md §4.E's per-invocation count cap does.
const defaultMaxNotifications = 512

// ApplicationEngine wraps the bytecode-level ExecutionEngine with the
// blockchain-aware context a deployed contract's script actually runs
// against: the triggering reason, the script container (transaction or
// block being verified/persisted), a DataCache snapshot, the notification
// log and the signer set used for witness checks.
//
// Grounded on core/contracts.go's ContractRegistry.Invoke/InvokeWithReceipt
// (gas metering + log collection around a VM run) generalized into the
// interop-dispatch + notification model spec.md §4.E describes, and on
// core/access_control.go's AccessController for the permission-check idiom
// reused by checkCallPermission below.
type ApplicationEngine struct {
	*ExecutionEngine

	Trigger         TriggerType
	ScriptContainer interface{} // *Transaction (Task 9) or nil
	Block           *PersistingBlock
	Snapshot        *DataCache
	Signers         []Signer

	Notifications    []Notification
	MaxNotifications int

	Contracts ContractResolver // native ContractManagement, wired by the host
}

// NewApplicationEngine builds an engine ready to LoadScript against the
// given trigger, snapshot and signer set.
func NewApplicationEngine(trigger TriggerType, snapshot *DataCache, signers []Signer, gasLimit, execFeeFactor uint64) *ApplicationEngine {
	ae := &ApplicationEngine{
		ExecutionEngine:  NewExecutionEngine(gasLimit, execFeeFactor),
		Trigger:          trigger,
		Snapshot:         snapshot,
		Signers:          signers,
		MaxNotifications: defaultMaxNotifications,
	}
	ae.ExecutionEngine.Storage = snapshot
	ae.ExecutionEngine.Syscall = ae.dispatchSyscall
	return ae
}

// entryScriptHash returns the bottom frame's script hash, i.e. the
// contract the overall invocation entered through.
func (ae *ApplicationEngine) entryScriptHash() UInt160 {
	if len(ae.InvocationStack) == 0 {
		return UInt160Zero
	}
	return ae.InvocationStack[0].ScriptHash
}

// callingScriptHash returns the script hash of the frame that invoked the
// current one, or the zero hash if the current frame is the entry.
func (ae *ApplicationEngine) callingScriptHash() UInt160 {
	if len(ae.InvocationStack) < 2 {
		return UInt160Zero
	}
	return ae.InvocationStack[len(ae.InvocationStack)-2].ScriptHash
}

// currentCalledByEntry reports whether the current frame's caller is the
// entry frame (spec.md §4.E WitnessScope.CalledByEntry).
func (ae *ApplicationEngine) currentCalledByEntry() bool {
	return len(ae.InvocationStack) == 2
}

// CheckWitness evaluates the witness-check algorithm against this engine's
// signer set and current calling context (spec.md §4.E).
func (ae *ApplicationEngine) CheckWitness(account UInt160) bool {
	cur := ae.CurrentContext()
	if cur == nil {
		return false
	}
	return CheckWitness(ae.Signers, account, cur.ScriptHash, ae.entryScriptHash(), ae.currentCalledByEntry())
}

// Notify appends a notification if the current context's CallFlags permit
// it and the per-invocation cap has not been reached (spec.md §4.E
// "notifications list ... per-invocation count cap").
func (ae *ApplicationEngine) Notify(name string, payload *ArrayItem) error {
	cur := ae.CurrentContext()
	if cur == nil {
		return errors.New("vm: notify with no executing context")
	}
	if !cur.CallFlags.Has(CallFlagAllowNotify) {
		return errors.New("vm: current context is not allowed to notify")
	}
	if len(ae.Notifications) >= ae.MaxNotifications {
		return errors.New("vm: notification count limit exceeded")
	}
	ae.Notifications = append(ae.Notifications, Notification{
		Origin:  cur.ScriptHash,
		Name:    name,
		Payload: payload,
	})
	logrus.WithFields(logrus.Fields{
		"contract": cur.ScriptHash.String(),
		"event":    name,
	}).Debug("app engine: notify")
	return nil
}

// interopID derives the SYSCALL operand NEO-style: the first 4 bytes of
// sha256(name), little-endian.
func interopID(name string) uint32 {
	sum := sha256.Sum256([]byte(name))
	return binary.LittleEndian.Uint32(sum[:4])
}

// InteropID exports interopID for callers outside the package (e.g. tooling
// that needs to print or match a syscall's operand bytes).
func InteropID(name string) []byte {
	id := interopID(name)
	return []byte{byte(id), byte(id >> 8), byte(id >> 16), byte(id >> 24)}
}

// dispatchSyscall is installed as ExecutionEngine.Syscall; it looks up the
// interop by id, checks the current context's CallFlags against the
// descriptor's required flags, charges its fixed price, then runs it
// (spec.md §4.E "InteropDescriptor ... dispatch cost charged before
// handler runs").
func (ae *ApplicationEngine) dispatchSyscall(e *ExecutionEngine, id uint32) error {
	desc, ok := interopTable[id]
	if !ok {
		return errors.New("vm: unknown syscall")
	}
	cur := ae.CurrentContext()
	if cur == nil || !cur.CallFlags.Has(desc.RequiredFlags) {
		return errors.New("vm: syscall " + desc.Name + " not allowed in current context")
	}
	if ae.GasConsumed+desc.Price > ae.GasLimit {
		return errors.New("vm: out of gas")
	}
	ae.GasConsumed += desc.Price
	if err := desc.Handler(ae); err != nil {
		logrus.WithFields(logrus.Fields{"syscall": desc.Name, "error": err}).Debug("app engine: syscall failed")
		return err
	}
	return nil
}

// CallContract implements spec.md §4.E's System.Contract.Call algorithm: it
// is invoked by the System.Contract.Call interop handler (interops.go)
// after popping (args, callFlags, method, contractHash) off the stack.
func (ae *ApplicationEngine) CallContract(target UInt160, method string, args []StackItem, flags CallFlags) error {
	if ae.Contracts == nil {
		return errors.New("vm: no contract resolver configured")
	}
	// Step 1: resolve ContractState via ContractManagement.
	state, err := ae.Contracts.GetContract(target)
	if err != nil {
		return err
	}

	// Step 2: ABI method lookup by (name, arity).
	m, ok := state.Manifest.ABI.MethodByNameArity(method, len(args))
	if !ok {
		return errors.New("vm: method " + method + " not found on target contract")
	}

	// Step 3: permission check against the caller's manifest.
	callerHash := ae.CurrentContext().ScriptHash
	caller, err := ae.Contracts.GetContract(callerHash)
	if err == nil && !caller.Manifest.CanCall(target, method) {
		return errors.New("vm: Cannot Call Method " + method + " Of Contract " + target.String())
	}

	// Step 4: load callee script as a new context with flag intersection.
	callFlags := flags & ae.CurrentContext().CallFlags
	if err := ae.LoadScript(state.Script, callFlags, target); err != nil {
		return err
	}
	callee := ae.CurrentContext()
	callee.IsDynamicCall = true
	callee.InstructionPointer = m.Offset
	for i := len(args) - 1; i >= 0; i-- {
		if err := ae.pushItem(args[i]); err != nil {
			return err
		}
	}

	// Step 5: the result-stack arity is not checked on RET; doReturn
	// appends the callee's whole evaluation stack to the caller's whatever
	// the method's declared return type.
	return nil
}

// SynthesizeBlock builds the dummy block OnPersist/PostPersist triggers run
// against when no real block is being persisted yet, e.g. during mempool
// verification (spec.md §4.E "dummy block synthesis"): previous hash is the
// current ledger tip and index is tip+1; PersistingBlock carries no merkle
// root.
func SynthesizeBlock(currentIndex uint32, currentHash UInt256, timestamp uint64) *PersistingBlock {
	return &PersistingBlock{
		Index:     currentIndex + 1,
		Timestamp: timestamp,
		PrevHash:  currentHash,
	}
}
