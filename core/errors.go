package core

import "fmt"

// Error taxonomy (spec.md §7): decoders report FormatError, verification
// rolls up to one VerifyResult code wrapped in a VerificationFailure,
// script execution faults are VmFault, and a broken internal invariant is
// InvariantViolation. Grounded on core/mempool.go's PoolRemovalReason
// pattern (an int-backed enum with a String method), generalized from a
// single three-value enum into the full closed code set spec.md §7/RPC
// surface (§6 "Errors as JSON-RPC {code, message} with a closed code set")
// requires, plus the concrete error types wrapping it.

// FormatError reports a decoding failure: malformed binary/JSON/hex, a
// bounds violation, or a checksum mismatch (spec.md §7 "FormatError
// (decoding) ... non-recoverable at that layer; surfaced to the caller").
type FormatError struct {
	Where string // the decoder that detected the problem, e.g. "Transaction", "NEF"
	Msg   string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format: %s: %s", e.Where, e.Msg)
}

// NewFormatError builds a FormatError tagged with the decoder that raised it.
func NewFormatError(where, msg string) *FormatError {
	return &FormatError{Where: where, Msg: msg}
}

// VerifyResult enumerates the closed set of transaction-verification
// failure kinds (spec.md §7 "VerificationFailure: one of OverSize |
// InvalidScript | InvalidAttribute | InvalidSignature | PolicyFail |
// Expired | InsufficientFunds | Invalid"). Each maps to a stable RPC error
// code via RPCCode.
type VerifyResult int

const (
	VerifyOK VerifyResult = iota
	OverSize
	InvalidScript
	InvalidAttribute
	InvalidSignature
	PolicyFail
	Expired
	InsufficientFunds
	Invalid
)

func (r VerifyResult) String() string {
	switch r {
	case VerifyOK:
		return "OK"
	case OverSize:
		return "OverSize"
	case InvalidScript:
		return "InvalidScript"
	case InvalidAttribute:
		return "InvalidAttribute"
	case InvalidSignature:
		return "InvalidSignature"
	case PolicyFail:
		return "PolicyFail"
	case Expired:
		return "Expired"
	case InsufficientFunds:
		return "InsufficientFunds"
	case Invalid:
		return "Invalid"
	default:
		return "Unknown"
	}
}

// RPCCode maps r to the stable JSON-RPC error code spec.md §6's closed code
// set names (`InvalidParams`, `InsufficientFunds`, `InvalidSignature`,
// `InvalidScript`, `ExpiredTransaction`, `PolicyFailed`, `AlreadyInPool`,
// `AlreadyExists`, `VerificationFailed`, `Unknown`). OverSize/InvalidAttribute
// and the catch-all Invalid case roll up to the generic `VerificationFailed`
// code: spec.md's RPC set has no dedicated code for them.
func (r VerifyResult) RPCCode() string {
	switch r {
	case VerifyOK:
		return ""
	case InvalidScript:
		return "InvalidScript"
	case InvalidSignature:
		return "InvalidSignature"
	case PolicyFail:
		return "PolicyFailed"
	case Expired:
		return "ExpiredTransaction"
	case InsufficientFunds:
		return "InsufficientFunds"
	case OverSize, InvalidAttribute, Invalid:
		return "VerificationFailed"
	default:
		return "Unknown"
	}
}

// VerificationFailure is the concrete error type VerifyTransactionFormat and
// VerifyStateDependent return: a VerifyResult code plus the human-readable
// detail that produced it.
type VerificationFailure struct {
	Result VerifyResult
	Detail string
}

func (e *VerificationFailure) Error() string {
	return fmt.Sprintf("%s: %s", e.Result, e.Detail)
}

// NewVerificationFailure builds a VerificationFailure for the given code.
func NewVerificationFailure(result VerifyResult, detail string) *VerificationFailure {
	return &VerificationFailure{Result: result, Detail: detail}
}

// VmFault reports a script execution fault (spec.md §7 "execution faulted;
// carries an optional exception stack item and the traceback of script
// hashes / instruction pointers"). Exception is nil when the engine faulted
// before pushing one (e.g. an unrecognized opcode).
type VmFault struct {
	Exception StackItem
	Traceback []VmFrame
}

// VmFrame names one entry in a VmFault's traceback: the script hash and
// instruction pointer active in that execution context at fault time.
type VmFrame struct {
	ScriptHash UInt160
	IP         int
}

func (e *VmFault) Error() string {
	if e.Exception != nil {
		if b, err := ItemBytes(e.Exception); err == nil {
			return fmt.Sprintf("vm fault: %s", string(b))
		}
	}
	return "vm fault"
}

// InvariantViolation reports a broken internal invariant — e.g. a double
// commit — that the process should not attempt to recover from for the
// current block (spec.md §7 "Surfaced as a hard fault").
type InvariantViolation struct {
	Msg string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Msg)
}

// NewInvariantViolation builds an InvariantViolation.
func NewInvariantViolation(msg string) *InvariantViolation {
	return &InvariantViolation{Msg: msg}
}

// Expected carries a decoded value alongside the FormatError that
// invalidated it, letting a caller distinguish "well-formed but rejected"
// from "could not even be parsed" without a second decode pass. Grounded on
// spec.md §7's decoder-error story: "decoders translate to FormatError".
type Expected[T any] struct {
	Value T
	Err   *FormatError
}

// Ok wraps a successfully decoded value.
func Ok[T any](v T) Expected[T] { return Expected[T]{Value: v} }

// Err wraps a decode failure.
func Err[T any](err *FormatError) Expected[T] { return Expected[T]{Err: err} }

// IsOK reports whether e holds a value rather than a FormatError.
func (e Expected[T]) IsOK() bool { return e.Err == nil }

// Unwrap returns e's value and FormatError (nil on success).
func (e Expected[T]) Unwrap() (T, *FormatError) { return e.Value, e.Err }
