package core

import (
	"math/big"
	"testing"
)

func genesisBlock() *Block {
	return &Block{
		Header: BlockHeader{
			Version:       0,
			PrevHash:      UInt256{},
			MerkleRoot:    UInt256{},
			Timestamp:     1700000000,
			Nonce:         1,
			Index:         0,
			PrimaryIndex:  0,
			NextConsensus: UInt160{1},
			Witness:       Witness{InvocationScript: []byte{0x0a}, VerificationScript: []byte{0x0b}},
		},
	}
}

func nextBlock(prev *Block, txs []*Transaction) *Block {
	prevHash, err := prev.Hash()
	if err != nil {
		panic(err)
	}
	root, err := ComputeMerkleRoot(txs)
	if err != nil {
		panic(err)
	}
	return &Block{
		Header: BlockHeader{
			Version:       0,
			PrevHash:      prevHash,
			MerkleRoot:    root,
			Timestamp:     prev.Header.Timestamp + 15000,
			Nonce:         prev.Header.Nonce + 1,
			Index:         prev.Header.Index + 1,
			PrimaryIndex:  0,
			NextConsensus: UInt160{1},
			Witness:       Witness{InvocationScript: []byte{0x0a}, VerificationScript: []byte{0x0b}},
		},
		Transactions: txs,
	}
}

func TestPersistBlockGenesisAndSequencing(t *testing.T) {
	bc := NewBlockchain(NewMemStore(), 10)
	gen := genesisBlock()

	if err := bc.PersistBlock(gen); err != nil {
		t.Fatalf("PersistBlock(genesis): %v", err)
	}

	second := nextBlock(gen, nil)
	if err := bc.PersistBlock(second); err != nil {
		t.Fatalf("PersistBlock(second): %v", err)
	}

	ledger := NewLedgerContract(bc.Snapshot())
	idx, err := ledger.CurrentIndex()
	if err != nil {
		t.Fatalf("CurrentIndex: %v", err)
	}
	if idx != 1 {
		t.Fatalf("CurrentIndex = %d, want 1", idx)
	}
}

func TestPersistBlockRejectsOutOfSequenceIndex(t *testing.T) {
	bc := NewBlockchain(NewMemStore(), 10)
	gen := genesisBlock()
	if err := bc.PersistBlock(gen); err != nil {
		t.Fatalf("PersistBlock(genesis): %v", err)
	}

	skip := nextBlock(gen, nil)
	skip.Header.Index = 5
	if err := bc.PersistBlock(skip); err == nil {
		t.Fatal("PersistBlock should reject a block whose index does not extend the chain")
	}
}

func TestPersistBlockRejectsWrongPrevHash(t *testing.T) {
	bc := NewBlockchain(NewMemStore(), 10)
	gen := genesisBlock()
	if err := bc.PersistBlock(gen); err != nil {
		t.Fatalf("PersistBlock(genesis): %v", err)
	}

	bad := nextBlock(gen, nil)
	bad.Header.PrevHash = UInt256{0xFF}
	if err := bc.PersistBlock(bad); err == nil {
		t.Fatal("PersistBlock should reject a block that does not extend the current tip")
	}
}

func TestPersistBlockBurnsTransactionFees(t *testing.T) {
	bc := NewBlockchain(NewMemStore(), 10)
	gen := genesisBlock()
	if err := bc.PersistBlock(gen); err != nil {
		t.Fatalf("PersistBlock(genesis): %v", err)
	}

	sender := UInt160{7}
	gas := NewGasContract(bc.root)
	if err := gas.Mint(nil, sender, big.NewInt(10_000_000)); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if err := bc.root.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	tx := singleSignerTransaction(t, sender)
	tx.NetworkFee = 1_000_000
	tx.SystemFee = 500_000

	blk := nextBlock(gen, []*Transaction{tx})
	if err := bc.PersistBlock(blk); err != nil {
		t.Fatalf("PersistBlock: %v", err)
	}

	gasAfter := NewGasContract(bc.Snapshot())
	bal, err := gasAfter.BalanceOf(sender)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	want := big.NewInt(10_000_000 - 1_000_000 - 500_000)
	if bal.Cmp(want) != 0 {
		t.Fatalf("BalanceOf = %s, want %s", bal, want)
	}

	verified, unverified := bc.Pool().Count()
	if verified != 0 || unverified != 0 {
		t.Fatalf("Pool should stay empty when the persisted tx was never pooled, got %d, %d", verified, unverified)
	}
}

func TestPersistBlockMintsCommitteeRewardAtGenesis(t *testing.T) {
	bc := NewBlockchain(NewMemStore(), 10)

	priv, err := GenerateP256Key()
	if err != nil {
		t.Fatalf("GenerateP256Key: %v", err)
	}
	pubkey := CompressP256PublicKey(&priv.PublicKey)

	neo := NewNeoContract(bc.root, NewGasContract(bc.root))
	if err := neo.SetStandbyCommittee([][]byte{pubkey}); err != nil {
		t.Fatalf("SetStandbyCommittee: %v", err)
	}
	if err := neo.SetValidatorsCount(1); err != nil {
		t.Fatalf("SetValidatorsCount: %v", err)
	}
	if err := bc.root.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	gen := genesisBlock()
	if err := bc.PersistBlock(gen); err != nil {
		t.Fatalf("PersistBlock(genesis): %v", err)
	}

	gasAfter := NewGasContract(bc.Snapshot())
	reward, err := gasAfter.BalanceOf(AccountFromPublicKey(pubkey))
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if reward.Sign() <= 0 {
		t.Fatal("the sole committee member should have been minted a PostPersist reward at genesis")
	}

	neoAfter := NewNeoContract(bc.Snapshot(), gasAfter)
	committee, err := neoAfter.Committee()
	if err != nil {
		t.Fatalf("Committee: %v", err)
	}
	if len(committee) != 1 {
		t.Fatalf("Committee() = %v, want the single standby member", committee)
	}
}
