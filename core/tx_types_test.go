package core

import (
	"bytes"
	"testing"
)

func sampleTransaction() *Transaction {
	return &Transaction{
		Version:         0,
		Nonce:           42,
		SystemFee:       1_00000000,
		NetworkFee:      50000,
		ValidUntilBlock: 1000,
		Signers: []Signer{
			{Account: UInt160{1}, Scopes: WitnessScopeCalledByEntry},
		},
		Attributes: []TxAttribute{{Type: AttrHighPriority}},
		Script:     []byte{0x51, 0x52, 0x53},
		Witnesses: []Witness{
			{InvocationScript: []byte{0x01, 0x02}, VerificationScript: []byte{0x03, 0x04}},
		},
	}
}

func TestTransactionEncodeDecodeRoundTrip(t *testing.T) {
	tx := sampleTransaction()
	encoded, err := tx.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := DecodeTransaction(encoded)
	if err != nil {
		t.Fatalf("DecodeTransaction: %v", err)
	}

	if decoded.Nonce != tx.Nonce || decoded.SystemFee != tx.SystemFee || decoded.NetworkFee != tx.NetworkFee {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", decoded, tx)
	}
	if !decoded.Sender().Equals(tx.Sender()) {
		t.Fatalf("Sender() mismatch: got %v, want %v", decoded.Sender(), tx.Sender())
	}
	if !bytes.Equal(decoded.Script, tx.Script) {
		t.Fatalf("Script mismatch: got %x, want %x", decoded.Script, tx.Script)
	}
	if len(decoded.Witnesses) != 1 || !bytes.Equal(decoded.Witnesses[0].InvocationScript, tx.Witnesses[0].InvocationScript) {
		t.Fatalf("Witnesses mismatch: got %+v", decoded.Witnesses)
	}
}

func TestTransactionHashExcludesWitnesses(t *testing.T) {
	tx := sampleTransaction()
	hash1, err := tx.Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	tx.Witnesses[0].InvocationScript = []byte{0xFF, 0xFF, 0xFF}
	hash2, err := tx.Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	if hash1 != hash2 {
		t.Fatal("Hash changed after mutating a witness; it must depend only on the unsigned body")
	}
}

func TestTransactionValidateRejectsEmptyScript(t *testing.T) {
	tx := sampleTransaction()
	tx.Script = nil
	if err := tx.Validate(); err == nil {
		t.Fatal("Validate should reject an empty script")
	}
}

func TestTransactionValidateRejectsWitnessSignerCountMismatch(t *testing.T) {
	tx := sampleTransaction()
	tx.Witnesses = append(tx.Witnesses, Witness{})
	if err := tx.Validate(); err == nil {
		t.Fatal("Validate should reject a witness count that doesn't match signer count")
	}
}

func TestTransactionValidateRejectsDuplicateSigner(t *testing.T) {
	tx := sampleTransaction()
	tx.Signers = append(tx.Signers, tx.Signers[0])
	tx.Witnesses = append(tx.Witnesses, tx.Witnesses[0])
	if err := tx.Validate(); err == nil {
		t.Fatal("Validate should reject duplicate signer accounts")
	}
}

func TestTransactionValidateRejectsNegativeFees(t *testing.T) {
	tx := sampleTransaction()
	tx.SystemFee = -1
	if err := tx.Validate(); err == nil {
		t.Fatal("Validate should reject a negative system fee")
	}
}

func TestTransactionValidateAllowsMultipleConflictsAttributes(t *testing.T) {
	tx := sampleTransaction()
	tx.Attributes = []TxAttribute{
		{Type: AttrConflicts, ConflictHash: UInt256{}},
		{Type: AttrConflicts, ConflictHash: UInt256{}},
	}
	if err := tx.Validate(); err != nil {
		t.Fatalf("Validate should allow repeated Conflicts attributes: %v", err)
	}
}

func TestTransactionValidateRejectsDuplicateHighPriority(t *testing.T) {
	tx := sampleTransaction()
	tx.Attributes = []TxAttribute{{Type: AttrHighPriority}, {Type: AttrHighPriority}}
	if err := tx.Validate(); err == nil {
		t.Fatal("Validate should reject a second HighPriority attribute")
	}
}

func TestWitnessScriptHash(t *testing.T) {
	w := Witness{VerificationScript: []byte{0x0c, 0x21}}
	if w.ScriptHash() != Hash160(w.VerificationScript) {
		t.Fatal("Witness.ScriptHash must equal Hash160 of its verification script")
	}
}
