package core

import (
	"crypto/ecdsa"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// dbftFixture wires n validators, each with its own Blockchain replica
// seeded with the same genesis block, so PersistBlock on one node never
// interferes with another's.
type dbftFixture struct {
	nodes      []*DBFT
	chains     []*Blockchain
	privKeys   []*ecdsa.PrivateKey
	validators []*ecdsa.PublicKey
}

func newDBFTFixture(t *testing.T, n int) *dbftFixture {
	t.Helper()
	gen := genesisBlock()

	var (
		chains     []*Blockchain
		privKeys   []*ecdsa.PrivateKey
		validators []*ecdsa.PublicKey
	)
	for i := 0; i < n; i++ {
		priv, err := GenerateP256Key()
		if err != nil {
			t.Fatalf("GenerateP256Key: %v", err)
		}
		privKeys = append(privKeys, priv)
		validators = append(validators, &priv.PublicKey)

		bc := NewBlockchain(NewMemStore(), 10)
		if err := bc.PersistBlock(gen); err != nil {
			t.Fatalf("PersistBlock(genesis) for node %d: %v", i, err)
		}
		chains = append(chains, bc)
	}

	genHash, err := gen.Hash()
	if err != nil {
		t.Fatalf("gen.Hash: %v", err)
	}

	var nodes []*DBFT
	for i := 0; i < n; i++ {
		d := NewDBFT(quietLogger(), chains[i].Pool(), chains[i], nil, privKeys[i], nil,
			validators, uint16(i), 1, genHash, gen.Header.Timestamp+15000, 512, 2*1024*1024, 9000_00000000)
		nodes = append(nodes, d)
	}

	return &dbftFixture{nodes: nodes, chains: chains, privKeys: privKeys, validators: validators}
}

// flood simulates reliable broadcast: every payload a node emits is
// delivered to every other node, whose own emitted payloads are queued the
// same way, until nothing new is produced.
func (f *dbftFixture) flood(t *testing.T, seed []ConsensusPayload) {
	t.Helper()
	queue := append([]ConsensusPayload{}, seed...)
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for i, node := range f.nodes {
			if uint16(i) == p.ValidatorIndex {
				continue
			}
			out, err := node.OnReceive(p)
			if err != nil {
				t.Fatalf("node %d OnReceive(%v): %v", i, p.Type, err)
			}
			queue = append(queue, out...)
		}
	}
}

func TestDBFTRoundCommitsAndPersistsIdenticalBlockOnEveryValidator(t *testing.T) {
	f := newDBFTFixture(t, 4)

	var seed []ConsensusPayload
	for _, node := range f.nodes {
		out, err := node.Start()
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
		seed = append(seed, out...)
	}
	if len(seed) != 1 || seed[0].Type != MessagePrepareRequest {
		t.Fatalf("expected exactly one PrepareRequest from the primary, got %v", seed)
	}

	f.flood(t, seed)

	var hashes []UInt256
	for i, bc := range f.chains {
		ledger := NewLedgerContract(bc.Snapshot())
		idx, err := ledger.CurrentIndex()
		if err != nil {
			t.Fatalf("node %d CurrentIndex: %v", i, err)
		}
		if idx != 1 {
			t.Fatalf("node %d CurrentIndex = %d, want 1 (block not persisted)", i, idx)
		}
		hash, err := ledger.CurrentHash()
		if err != nil {
			t.Fatalf("node %d CurrentHash: %v", i, err)
		}
		hashes = append(hashes, hash)
		if f.nodes[i].state != StateBlockAccepted {
			t.Fatalf("node %d state = %v, want StateBlockAccepted", i, f.nodes[i].state)
		}
	}
	for i := 1; i < len(hashes); i++ {
		if hashes[i] != hashes[0] {
			t.Fatalf("node %d persisted a different block than node 0: %s vs %s", i, hashes[i], hashes[0])
		}
	}
}

func TestDBFTViewChangeAdvancesPrimaryOnTimeout(t *testing.T) {
	f := newDBFTFixture(t, 4)
	// view 0's primary is (1-0) mod 4 = 1; every validator but the primary
	// sees no progress and gives up on the view.
	var seed []ConsensusPayload
	for _, node := range f.nodes {
		if _, err := node.Start(); err != nil {
			t.Fatalf("Start: %v", err)
		}
	}
	for i, node := range f.nodes {
		if i == 1 {
			continue
		}
		out, err := node.OnTimeout(ReasonTimeout, 1700000015)
		if err != nil {
			t.Fatalf("node %d OnTimeout: %v", i, err)
		}
		seed = append(seed, out...)
	}

	f.flood(t, seed)

	for i, node := range f.nodes {
		if node.view != 1 {
			t.Fatalf("node %d view = %d, want 1 after quorum ChangeView", i, node.view)
		}
	}
	// view 1's primary is (1-1) mod 4 = 0, and it should have proposed.
	if f.nodes[0].state != StateSendingPrepareRequest && f.nodes[0].state != StatePrepareResponseSent && f.nodes[0].state != StateCommitSent {
		t.Fatalf("node 0 (new primary) state = %v, want a proposing state", f.nodes[0].state)
	}
}

func TestDBFTRecoveryMessageReplaysPrepareRequestForLaggingValidator(t *testing.T) {
	f := newDBFTFixture(t, 4)

	var seed []ConsensusPayload
	for i, node := range f.nodes {
		out, err := node.Start()
		if err != nil {
			t.Fatalf("node %d Start: %v", i, err)
		}
		if i == 1 { // node 1 is primary for view 0
			seed = out
		}
	}
	// Only node 0 sees the PrepareRequest; node 3 joined late and missed it.
	if _, err := f.nodes[0].OnReceive(seed[0]); err != nil {
		t.Fatalf("node 0 OnReceive(PrepareRequest): %v", err)
	}

	if f.nodes[3].prepareRequest != nil {
		t.Fatal("node 3 should not have a PrepareRequest before recovery")
	}

	recoveryReq := ConsensusPayload{ValidatorIndex: 3, ViewNumber: 0, BlockIndex: 1, Type: MessageRecoveryRequest}
	out, err := f.nodes[0].OnReceive(recoveryReq)
	if err != nil {
		t.Fatalf("node 0 OnReceive(RecoveryRequest): %v", err)
	}
	if len(out) != 1 || out[0].Type != MessageRecoveryMessage {
		t.Fatalf("expected a RecoveryMessage reply, got %v", out)
	}

	if _, err := f.nodes[3].OnReceive(out[0]); err != nil {
		t.Fatalf("node 3 OnReceive(RecoveryMessage): %v", err)
	}
	if f.nodes[3].prepareRequest == nil {
		t.Fatal("node 3 should have adopted the PrepareRequest carried in the RecoveryMessage")
	}
	if *f.nodes[3].preparationHash != *f.nodes[0].preparationHash {
		t.Fatal("node 3's preparation hash should now match node 0's")
	}
}

func TestAggregateCommitSignatures(t *testing.T) {
	var commits []CommitCompact
	for i := 0; i < 3; i++ {
		sk, _ := GenerateBLSKey()
		commits = append(commits, CommitCompact{ValidatorIndex: uint16(i), BLSSignature: SignBLS(sk, []byte("round-digest"))})
	}

	agg, err := AggregateCommitSignatures(commits)
	if err != nil {
		t.Fatalf("AggregateCommitSignatures: %v", err)
	}
	if len(agg) == 0 {
		t.Fatal("expected a non-empty aggregate signature")
	}

	if _, err := AggregateCommitSignatures(nil); err == nil {
		t.Fatal("expected an error aggregating zero signatures")
	}
}
