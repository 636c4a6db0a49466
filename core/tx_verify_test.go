package core

import (
	"encoding/binary"
	"math/big"
	"testing"
)

func pushData1(data []byte) []byte {
	return append([]byte{byte(PUSHDATA1), byte(len(data))}, data...)
}

func syscall(id uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, id)
	return append([]byte{byte(SYSCALL)}, b...)
}

func singleSigScripts(t *testing.T, tx *Transaction) (verification, invocation []byte) {
	t.Helper()
	priv, err := GenerateP256Key()
	if err != nil {
		t.Fatalf("GenerateP256Key: %v", err)
	}
	verification = append(pushData1(CompressP256PublicKey(&priv.PublicKey)), syscall(checkSigInteropID)...)

	hash, err := tx.Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	signData := append(encodeNetworkMagic(NetworkMagic), hash.Bytes()...)
	sig, err := SignP256(priv, signData)
	if err != nil {
		t.Fatalf("SignP256: %v", err)
	}
	invocation = pushData1(sig)
	return verification, invocation
}

func singleSignerTransaction(t *testing.T, account UInt160) *Transaction {
	t.Helper()
	return &Transaction{
		Version:         0,
		Nonce:           1,
		SystemFee:       0,
		NetworkFee:      1_000_000,
		ValidUntilBlock: 100,
		Signers:         []Signer{{Account: account, Scopes: WitnessScopeCalledByEntry}},
		Script:          []byte{byte(RET)},
		Witnesses:       []Witness{{}},
	}
}

func TestVerifyTransactionFormatAcceptsValidSingleSigWitness(t *testing.T) {
	tx := singleSignerTransaction(t, UInt160{1})
	verification, invocation := singleSigScripts(t, tx)
	tx.Witnesses[0] = Witness{InvocationScript: invocation, VerificationScript: verification}

	if err := VerifyTransactionFormat(tx); err != nil {
		t.Fatalf("VerifyTransactionFormat: %v", err)
	}
}

func TestVerifyTransactionFormatRejectsTamperedSignature(t *testing.T) {
	tx := singleSignerTransaction(t, UInt160{1})
	verification, invocation := singleSigScripts(t, tx)
	invocation[len(invocation)-1] ^= 0xFF
	tx.Witnesses[0] = Witness{InvocationScript: invocation, VerificationScript: verification}

	if err := VerifyTransactionFormat(tx); err == nil {
		t.Fatal("VerifyTransactionFormat should reject a tampered signature")
	}
}

func TestVerifyTransactionFormatRejectsOversizedScript(t *testing.T) {
	tx := singleSignerTransaction(t, UInt160{1})
	tx.Script = make([]byte, maxTransactionScriptLen+1)
	tx.Witnesses[0] = Witness{}

	if err := VerifyTransactionFormat(tx); err == nil {
		t.Fatal("VerifyTransactionFormat should reject an oversized script")
	}
}

func TestVerifyStateDependentRejectsExpiredTransaction(t *testing.T) {
	snapshot := NewDataCache(NewMemStore())
	policy := NewPolicyContract(snapshot)
	gas := NewGasContract(snapshot)
	tx := singleSignerTransaction(t, UInt160{1})
	tx.ValidUntilBlock = 5

	err := VerifyStateDependent(tx, 10, policy, gas, NewTransactionVerificationContext())
	if err == nil {
		t.Fatal("VerifyStateDependent should reject a transaction past its valid-until-block")
	}
}

func TestVerifyStateDependentRejectsBlockedSigner(t *testing.T) {
	snapshot := NewDataCache(NewMemStore())
	policy := NewPolicyContract(snapshot)
	gas := NewGasContract(snapshot)
	sender := UInt160{1}
	tx := singleSignerTransaction(t, sender)

	if err := gas.Mint(nil, sender, big.NewInt(10_000_000)); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if err := policy.BlockAccount(sender); err != nil {
		t.Fatalf("BlockAccount: %v", err)
	}

	err := VerifyStateDependent(tx, 1, policy, gas, NewTransactionVerificationContext())
	if err == nil {
		t.Fatal("VerifyStateDependent should reject a transaction from a blocked signer")
	}
}

func TestVerifyStateDependentRejectsInsufficientBalance(t *testing.T) {
	snapshot := NewDataCache(NewMemStore())
	policy := NewPolicyContract(snapshot)
	gas := NewGasContract(snapshot)
	tx := singleSignerTransaction(t, UInt160{1})

	err := VerifyStateDependent(tx, 1, policy, gas, NewTransactionVerificationContext())
	if err == nil {
		t.Fatal("VerifyStateDependent should reject a sender with no GAS balance")
	}
}

func TestVerifyStateDependentAcceptsFundedTransaction(t *testing.T) {
	snapshot := NewDataCache(NewMemStore())
	policy := NewPolicyContract(snapshot)
	gas := NewGasContract(snapshot)
	sender := UInt160{1}
	tx := singleSignerTransaction(t, sender)
	tx.NetworkFee = 1_000_000

	if err := gas.Mint(nil, sender, big.NewInt(10_000_000)); err != nil {
		t.Fatalf("Mint: %v", err)
	}

	if err := VerifyStateDependent(tx, 1, policy, gas, NewTransactionVerificationContext()); err != nil {
		t.Fatalf("VerifyStateDependent: %v", err)
	}
}

func TestTransactionVerificationContextRejectsDuplicateOracleResponse(t *testing.T) {
	ctx := NewTransactionVerificationContext()
	snapshot := NewDataCache(NewMemStore())
	gas := NewGasContract(snapshot)
	sender := UInt160{1}
	if err := gas.Mint(nil, sender, big.NewInt(10_000_000)); err != nil {
		t.Fatalf("Mint: %v", err)
	}

	tx1 := singleSignerTransaction(t, sender)
	tx1.Attributes = []TxAttribute{{Type: AttrOracleResponse, OracleRequestID: 7}}
	ctx.AddTransaction(tx1)

	tx2 := singleSignerTransaction(t, sender)
	tx2.Nonce = 2
	tx2.Attributes = []TxAttribute{{Type: AttrOracleResponse, OracleRequestID: 7}}

	ok, err := ctx.CheckTransaction(tx2, gas)
	if err != nil {
		t.Fatalf("CheckTransaction: %v", err)
	}
	if ok {
		t.Fatal("CheckTransaction should reject a second OracleResponse sharing a request id")
	}
}
