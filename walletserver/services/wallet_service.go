package services

import (
	core "synnergy-core/core"
	"synnergy-core/walletserver/smartcontracts"
)

// WalletService wraps core wallet operations used by the HTTP API.
type WalletService struct{}

func NewService() *WalletService { return &WalletService{} }

func (ws *WalletService) CreateWallet(bits int) (*core.HDWallet, string, error) {
	return core.NewRandomWallet(bits)
}

func (ws *WalletService) ImportWallet(mnemonic, passphrase string) (*core.HDWallet, error) {
	return core.WalletFromMnemonic(mnemonic, passphrase)
}

func (ws *WalletService) DeriveAddress(w *core.HDWallet, account, index uint32) (core.UInt160, error) {
	return w.NewAddress(account, index)
}

func (ws *WalletService) SignTransaction(w *core.HDWallet, tx *core.Transaction, account, index uint32) (core.UInt160, error) {
	return w.SignTx(tx, account, index)
}

// Opcodes returns the wallet opcode names and the hex CheckSig syscall id.
func (ws *WalletService) Opcodes() map[string]string {
	return smartcontracts.Bytecodes()
}
