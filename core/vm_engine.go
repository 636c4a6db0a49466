package core

import (
	"errors"
	"fmt"
)

// VMState is the execution engine's coarse-grained status (spec.md §4.D).
type VMState int

const (
	VMStateNone VMState = iota
	VMStateBreak
	VMStateHalt
	VMStateFault
)

func (s VMState) String() string {
	switch s {
	case VMStateBreak:
		return "BREAK"
	case VMStateHalt:
		return "HALT"
	case VMStateFault:
		return "FAULT"
	default:
		return "NONE"
	}
}

// CallFlags is a bitset restricting what interops an execution context may
// invoke (spec.md §4.E).
type CallFlags uint8

const (
	CallFlagNone        CallFlags = 0
	CallFlagReadStates  CallFlags = 1 << 0
	CallFlagWriteStates CallFlags = 1 << 1
	CallFlagAllowCall   CallFlags = 1 << 2
	CallFlagAllowNotify CallFlags = 1 << 3

	CallFlagStates   = CallFlagReadStates | CallFlagWriteStates
	CallFlagReadOnly = CallFlagReadStates | CallFlagAllowCall | CallFlagAllowNotify
	CallFlagAll      = CallFlagStates | CallFlagAllowCall | CallFlagAllowNotify
)

func (f CallFlags) Has(bit CallFlags) bool { return f&bit == bit }

// exceptionHandlerState tracks which region of a TRY block is currently
// executing, per spec.md §4.D "Exceptions".
type exceptionHandlerState int

const (
	handlerTry exceptionHandlerState = iota
	handlerCatch
	handlerFinally
)

// exceptionHandler is one entry on a context's try/finally nesting stack.
type exceptionHandler struct {
	catchOffset   int // -1 if no catch block
	finallyOffset int // -1 if no finally block
	endOffset     int
	state         exceptionHandlerState
}

// ExecutionContext is one frame of the VM's call stack (spec.md §4.D).
type ExecutionContext struct {
	Script             []byte
	InstructionPointer int
	EvalStack          []StackItem
	LocalSlots         []StackItem
	ArgSlots           []StackItem
	StaticSlots        []StackItem
	TryStack           []*exceptionHandler
	CallFlags          CallFlags
	ScriptHash         UInt160
	IsDynamicCall      bool
	State              map[string]interface{} // host-attached data, e.g. NotificationCount
}

func newExecutionContext(script []byte, flags CallFlags, scriptHash UInt160) *ExecutionContext {
	return &ExecutionContext{
		Script:     script,
		CallFlags:  flags,
		ScriptHash: scriptHash,
		State:      make(map[string]interface{}),
	}
}

func (c *ExecutionContext) push(item StackItem) { c.EvalStack = append(c.EvalStack, item) }

func (c *ExecutionContext) pop() (StackItem, error) {
	n := len(c.EvalStack)
	if n == 0 {
		return nil, errors.New("vm: stack underflow")
	}
	item := c.EvalStack[n-1]
	c.EvalStack = c.EvalStack[:n-1]
	return item, nil
}

func (c *ExecutionContext) peek(n int) (StackItem, error) {
	idx := len(c.EvalStack) - 1 - n
	if idx < 0 {
		return nil, errors.New("vm: stack underflow")
	}
	return c.EvalStack[idx], nil
}

// ExecutionEngine runs a call stack of ExecutionContexts against a shared
// reference counter and gas budget (spec.md §4.D).
//
// Grounded on the teacher's LightVM.Execute loop in virtual_machine.go:
// same shape (decode instruction, charge gas, dispatch, advance IP) but
// generalized from a flat []byte stack / switch statement to a typed
// StackItem evaluation stack and a registered-handler dispatch table
// (opcode_dispatcher.go), since the spec's opcode set needs real container
// types, exceptions and call-context isolation that a byte stack can't
// express.
type ExecutionEngine struct {
	State              VMState
	InvocationStack    []*ExecutionContext
	ResultStack        []StackItem
	RefCounter         *ReferenceCounter
	GasConsumed        uint64
	GasLimit           uint64
	ExecFeeFactor      uint64
	UncaughtFault      error
	UncaughtThrown     StackItem
	MaxInvocationDepth int
	pendingRethrow     error

	// Syscall is the Application Engine's interop dispatch hook, set by the
	// caller before Execute runs (spec.md §4.E SYSCALL/InteropDescriptor).
	Syscall func(e *ExecutionEngine, id uint32) error

	// ResolveCallToken resolves a CALLT operand (an index into the current
	// script's token table) to a target contract hash and method, set by
	// the Application Engine once NEF token tables are loaded.
	ResolveCallToken func(index int) (UInt160, string, error)

	// Storage and Logs back the legacy LOG/STORE/LOAD host-call shorthands
	// (vm_handlers_legacy.go); both are nil until the Application Engine
	// wires them in.
	Storage *DataCache
	Logs    []string
}

// NewExecutionEngine returns an engine ready to load scripts, with the
// given gas budget and exec-fee-factor (spec.md §4.E: the Application
// Engine multiplies per-opcode base cost by this factor).
func NewExecutionEngine(gasLimit, execFeeFactor uint64) *ExecutionEngine {
	return &ExecutionEngine{
		State:              VMStateNone,
		RefCounter:         NewReferenceCounter(0),
		GasLimit:           gasLimit,
		ExecFeeFactor:      execFeeFactor,
		MaxInvocationDepth: 1024,
	}
}

// CurrentContext returns the top of the invocation stack, or nil if empty.
func (e *ExecutionEngine) CurrentContext() *ExecutionContext {
	if len(e.InvocationStack) == 0 {
		return nil
	}
	return e.InvocationStack[len(e.InvocationStack)-1]
}

// LoadScript validates script and pushes a new context for it, transitioning
// State to BREAK (spec.md §4.D "Initial NONE -> BREAK on load").
func (e *ExecutionEngine) LoadScript(script []byte, flags CallFlags, scriptHash UInt160) error {
	if err := ValidateScript(script); err != nil {
		return err
	}
	if len(e.InvocationStack) >= e.MaxInvocationDepth {
		return errors.New("vm: invocation stack depth exceeded")
	}
	ctx := newExecutionContext(script, flags, scriptHash)
	e.InvocationStack = append(e.InvocationStack, ctx)
	e.State = VMStateBreak
	return nil
}

// pushItem pushes onto the current context's evaluation stack, tracking the
// new reference with the engine's shared counter (spec.md §4.D reference
// counter).
func (e *ExecutionEngine) pushItem(item StackItem) error {
	if err := e.RefCounter.AddStackReference(item); err != nil {
		return err
	}
	e.CurrentContext().push(item)
	return nil
}

// popItem pops from the current context's evaluation stack, releasing the
// reference counter's hold on the popped item.
func (e *ExecutionEngine) popItem() (StackItem, error) {
	item, err := e.CurrentContext().pop()
	if err != nil {
		return nil, err
	}
	e.RefCounter.RemoveStackReference(item)
	return item, nil
}

func (e *ExecutionEngine) chargeGas(base uint64) error {
	cost := base * e.ExecFeeFactor
	if e.ExecFeeFactor == 0 {
		cost = base
	}
	if e.GasConsumed+cost > e.GasLimit {
		return errors.New("vm: out of gas")
	}
	e.GasConsumed += cost
	return nil
}

// Execute steps the engine while it is in BREAK and returns once it reaches
// HALT or FAULT (spec.md §4.D "State").
func (e *ExecutionEngine) Execute() VMState {
	for e.State == VMStateBreak {
		if err := e.step(); err != nil {
			e.fault(err)
			break
		}
	}
	return e.State
}

func (e *ExecutionEngine) fault(err error) {
	e.State = VMStateFault
	e.UncaughtFault = err
}

// step decodes and dispatches exactly one instruction in the current
// context, popping the call stack (or halting) on RET past the last frame.
func (e *ExecutionEngine) step() error {
	ctx := e.CurrentContext()
	if ctx == nil {
		e.State = VMStateHalt
		return nil
	}
	if ctx.InstructionPointer >= len(ctx.Script) {
		return e.doReturn()
	}

	ins, err := decodeInstruction(ctx.Script, ctx.InstructionPointer)
	if err != nil {
		return e.throwOrFault(err)
	}
	ctx.InstructionPointer = ins.Next

	if err := DispatchOpcode(e, ins); err != nil {
		return e.throwOrFault(err)
	}
	return nil
}

// throwOrFault unwinds to the nearest enclosing TRY's catch/finally, or
// FAULTs the engine if none handles it (spec.md §4.D "Exceptions").
func (e *ExecutionEngine) throwOrFault(err error) error {
	thrown, isThrow := err.(*vmThrow)
	for len(e.InvocationStack) > 0 {
		ctx := e.CurrentContext()
		if h := popUnhandled(ctx); h != nil {
			if h.catchOffset >= 0 && h.state == handlerTry {
				h.state = handlerCatch
				if isThrow {
					ctx.push(thrown.value)
				} else {
					ctx.push(ByteStringItem{Value: []byte(err.Error())})
				}
				ctx.InstructionPointer = h.catchOffset
				return nil
			}
			if h.finallyOffset >= 0 && h.state != handlerFinally {
				h.state = handlerFinally
				e.pendingRethrow = err
				ctx.InstructionPointer = h.finallyOffset
				return nil
			}
			continue
		}
		// No handler in this context; unwind the call stack.
		e.InvocationStack = e.InvocationStack[:len(e.InvocationStack)-1]
	}
	return err
}

// popUnhandled pops the nearest exception handler on ctx that has not yet
// dispatched to its catch or finally block, or nil if none remain.
func popUnhandled(ctx *ExecutionContext) *exceptionHandler {
	for len(ctx.TryStack) > 0 {
		h := ctx.TryStack[len(ctx.TryStack)-1]
		if h.state == handlerFinally {
			ctx.TryStack = ctx.TryStack[:len(ctx.TryStack)-1]
			continue
		}
		return h
	}
	return nil
}

// vmThrow wraps a THROWn stack item as a Go error so it can travel through
// the same unwinding path as a native runtime fault.
type vmThrow struct{ value StackItem }

func (t *vmThrow) Error() string { return fmt.Sprintf("vm: uncaught exception: %v", t.value) }

// doReturn pops the current context and appends its whole evaluation stack
// to the caller's; if it was the last one, the stack goes to ResultStack
// instead and the engine HALTs.
func (e *ExecutionEngine) doReturn() error {
	ctx := e.InvocationStack[len(e.InvocationStack)-1]
	e.InvocationStack = e.InvocationStack[:len(e.InvocationStack)-1]

	if len(e.InvocationStack) == 0 {
		e.ResultStack = append(e.ResultStack, ctx.EvalStack...)
		e.State = VMStateHalt
		return nil
	}
	caller := e.CurrentContext()
	caller.EvalStack = append(caller.EvalStack, ctx.EvalStack...)
	return nil
}
