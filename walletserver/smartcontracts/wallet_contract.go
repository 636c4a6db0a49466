package smartcontracts

import (
	"encoding/hex"

	core "synnergy-core/core"
)

// WalletContract demonstrates using opcodes from the dispatcher.
type WalletContract struct{}

// Bytecodes exposes the VM opcodes a wallet's verification script is built
// from, plus the syscall id its CHECKSIG step dispatches to (core/wallet.go's
// verificationScriptFor and core/interops_crypto.go's System.Crypto.CheckSig).
func Bytecodes() map[string]string {
	return map[string]string{
		"PUSHDATA1":            core.PUSHDATA1.String(),
		"SYSCALL":              core.SYSCALL.String(),
		"System.Crypto.CheckSig": hex.EncodeToString(core.InteropID("System.Crypto.CheckSig")),
	}
}
