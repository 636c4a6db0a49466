package core

import (
	"errors"
	"math/big"

	"github.com/sirupsen/logrus"
)

const gasContractID int32 = -5

const prefixGasAccount byte = 0x01

// GasDecimals is GAS's fixed-point precision (spec.md §4.F "GAS token
// ... divisible, 8 decimals").
const GasDecimals = 8

// GasContract is the native GAS token: the divisible utility token that
// pays transaction/execution fees and is minted by NeoContract's
// CalculateBonus (spec.md §4.F "GAS token").
//
// Grounded on core/Tokens (syn10_token.go-style balance-map + Transfer
// event idiom) generalized to the mint/burn pair a fee-paying utility
// token needs instead of a closed-supply asset.
type GasContract struct {
	store *DataCache
}

// NewGasContract wires GAS against a snapshot.
func NewGasContract(store *DataCache) *GasContract {
	return &GasContract{store: store}
}

func gasAccountKey(account UInt160) StorageKey {
	return StorageKey{ContractID: gasContractID, Prefix: append([]byte{prefixGasAccount}, account.Bytes()...)}
}

// BalanceOf returns account's current GAS balance, in 8-decimal fixed point.
func (g *GasContract) BalanceOf(account UInt160) (*big.Int, error) {
	item, err := g.store.TryGet(gasAccountKey(account))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).SetBytes(item.Value), nil
}

func (g *GasContract) setBalance(account UInt160, v *big.Int) error {
	item, err := g.store.GetOrAdd(gasAccountKey(account), func() *StorageItem { return &StorageItem{} })
	if err != nil {
		return err
	}
	if v.Sign() == 0 {
		item.Value = nil
	} else {
		item.Value = v.Bytes()
	}
	item.MarkDirty()
	return nil
}

// Transfer moves amount GAS from "from" to "to", witnessed by from.
func (g *GasContract) Transfer(ae *ApplicationEngine, from, to UInt160, amount *big.Int) error {
	if amount.Sign() < 0 {
		return errors.New("gas: negative transfer amount")
	}
	if amount.Sign() == 0 {
		return nil
	}
	if !ae.CheckWitness(from) {
		return errors.New("gas: transfer not witnessed by sender")
	}
	fromBal, err := g.BalanceOf(from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return errors.New("gas: insufficient balance")
	}
	toBal, err := g.BalanceOf(to)
	if err != nil {
		return err
	}
	if err := g.setBalance(from, new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	if err := g.setBalance(to, new(big.Int).Add(toBal, amount)); err != nil {
		return err
	}
	return ae.Notify("Transfer", &ArrayItem{Items: []StackItem{
		ByteStringItem{Value: from.Bytes()}, ByteStringItem{Value: to.Bytes()}, mustIntItem(amount),
	}})
}

// Mint credits account with amount newly-issued GAS, used by NeoContract's
// CalculateBonus settlement and by the committee block reward in PostPersist.
func (g *GasContract) Mint(ae *ApplicationEngine, account UInt160, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return nil
	}
	bal, err := g.BalanceOf(account)
	if err != nil {
		return err
	}
	if err := g.setBalance(account, new(big.Int).Add(bal, amount)); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"account": account.String(), "amount": amount.String()}).Debug("gas: minted")
	if ae == nil {
		return nil
	}
	return ae.Notify("Transfer", &ArrayItem{Items: []StackItem{
		NullItem{}, ByteStringItem{Value: account.Bytes()}, mustIntItem(amount),
	}})
}

// Burn debits account by amount, used to settle transaction system/network
// fees (spec.md §4.G).
func (g *GasContract) Burn(ae *ApplicationEngine, account UInt160, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return nil
	}
	bal, err := g.BalanceOf(account)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return errors.New("gas: insufficient balance to burn")
	}
	if err := g.setBalance(account, new(big.Int).Sub(bal, amount)); err != nil {
		return err
	}
	if ae == nil {
		return nil
	}
	return ae.Notify("Transfer", &ArrayItem{Items: []StackItem{
		ByteStringItem{Value: account.Bytes()}, NullItem{}, mustIntItem(amount),
	}})
}
