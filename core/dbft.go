package core

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	bls "github.com/herumi/bls-eth-go-binary/bls"
	"github.com/sirupsen/logrus"
)

// ConsensusState is a validator's position in the per-view state machine
// (spec.md §4.I "States per view").
type ConsensusState byte

const (
	StateInitial ConsensusState = iota
	StateSendingPrepareRequest
	StatePrepareResponseSent
	StateCommitSent
	StateBlockAccepted
	StateChangeViewSent
)

func (s ConsensusState) String() string {
	switch s {
	case StateInitial:
		return "Initial"
	case StateSendingPrepareRequest:
		return "SendingPrepareRequest"
	case StatePrepareResponseSent:
		return "PrepareResponseSent"
	case StateCommitSent:
		return "CommitSent"
	case StateBlockAccepted:
		return "BlockAccepted"
	case StateChangeViewSent:
		return "ChangeViewSent"
	default:
		return "Unknown"
	}
}

// ConsensusTransport broadcasts a validator's own consensus messages;
// injected so DBFT stays a pure, synchronously-testable state machine —
// the actor runtime that owns the P2P socket and the view timer lives
// outside core (spec.md §5 "Consensus timers are scheduled by the actor
// runtime").
//
// Grounded on the teacher's consensus.go networkAdapter interface
// (Broadcast/Subscribe), narrowed to the one method a reactive state
// machine actually calls — subscription/dispatch is the runtime's job,
// not this type's.
type ConsensusTransport interface {
	Broadcast(ConsensusPayload) error
}

const defaultViewTimerBase = 15 * time.Second

// DBFT drives one validator's side of a single block's consensus round:
// primary selection, PrepareRequest/PrepareResponse/Commit quorum
// tracking, and ChangeView escalation (spec.md §4.I).
//
// Grounded on the teacher's consensus.go SynnergyConsensus — same
// injected-logger/mutex-guarded-state/pool/transport shape — generalized
// from PoH+PoS+PoW block sealing into dBFT's PrepareRequest/Response/Commit
// round, and from a background ticker loop into a reactive state machine
// the runtime drives (OnTimeout/OnReceive), since dBFT's timers are
// explicitly the runtime's responsibility, not the engine's (spec.md §5).
type DBFT struct {
	mu sync.Mutex

	logger    *logrus.Logger
	pool      *MemPool
	chain     *Blockchain
	transport ConsensusTransport

	privKey    *ecdsa.PrivateKey
	blsKey     *bls.SecretKey
	validators []*ecdsa.PublicKey
	myIndex    uint16

	blockIndex uint32
	prevHash   UInt256
	timestamp  uint64

	maxTransactionsPerBlock int
	maxBlockSize            int
	maxBlockSystemFee       int64

	timerBase time.Duration

	view  byte
	state ConsensusState

	prepareRequest  *PrepareRequest
	preparationHash *UInt256
	preparations    map[uint16]UInt256
	commits         map[uint16]Commit
	changeViews     map[uint16]ChangeView
}

// NewDBFT wires a validator's consensus engine for blockIndex, extending
// prevHash, among validators (already sorted the way spec.md §4.I's
// primary-index formula expects — section L's NeoContract.Validators
// produces exactly this order). myIndex is this validator's position in
// that slice.
func NewDBFT(logger *logrus.Logger, pool *MemPool, chain *Blockchain, transport ConsensusTransport, privKey *ecdsa.PrivateKey, blsKey *bls.SecretKey, validators []*ecdsa.PublicKey, myIndex uint16, blockIndex uint32, prevHash UInt256, timestamp uint64, maxTransactionsPerBlock, maxBlockSize int, maxBlockSystemFee int64) *DBFT {
	return &DBFT{
		logger:                  logger,
		pool:                    pool,
		chain:                   chain,
		transport:               transport,
		privKey:                 privKey,
		blsKey:                  blsKey,
		validators:              validators,
		myIndex:                 myIndex,
		blockIndex:              blockIndex,
		prevHash:                prevHash,
		timestamp:               timestamp,
		maxTransactionsPerBlock: maxTransactionsPerBlock,
		maxBlockSize:            maxBlockSize,
		maxBlockSystemFee:       maxBlockSystemFee,
		timerBase:               defaultViewTimerBase,
		preparations:            make(map[uint16]UInt256),
		commits:                 make(map[uint16]Commit),
		changeViews:             make(map[uint16]ChangeView),
	}
}

// n is the validator count; m is the safety quorum (spec.md §4.I
// "m = n − (n−1)/3").
func (d *DBFT) n() int { return len(d.validators) }
func (d *DBFT) m() int { n := d.n(); return n - (n-1)/3 }

// primaryIndex returns the primary validator's index for (blockIndex, view)
// (spec.md §4.I "primary-index = (block-index − view) mod n").
func primaryIndex(blockIndex uint32, view byte, n int) int {
	idx := (int64(blockIndex) - int64(view)) % int64(n)
	if idx < 0 {
		idx += int64(n)
	}
	return int(idx)
}

func (d *DBFT) isPrimaryLocked() bool {
	return int(d.myIndex) == primaryIndex(d.blockIndex, d.view, d.n())
}

// ViewTimeout returns the timer duration for the current view: the base
// interval doubled once per failed view (spec.md §4.I "timer doubles per
// failed view").
func (d *DBFT) ViewTimeout() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timerBase << d.view
}

func (d *DBFT) resetViewLocked(view byte) {
	d.view = view
	d.state = StateInitial
	d.prepareRequest = nil
	d.preparationHash = nil
	d.preparations = make(map[uint16]UInt256)
	d.commits = make(map[uint16]Commit)
	d.changeViews = make(map[uint16]ChangeView)
}

// Start begins the round at view 0: the primary proposes a block, every
// other validator waits for the runtime's view timer.
func (d *DBFT) Start() ([]ConsensusPayload, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetViewLocked(0)
	return d.maybeSendPrepareRequestLocked()
}

func (d *DBFT) maybeSendPrepareRequestLocked() ([]ConsensusPayload, error) {
	if !d.isPrimaryLocked() {
		return nil, nil
	}
	txs := d.pool.GetVerifiedForBlock(d.maxTransactionsPerBlock, d.maxBlockSize, d.maxBlockSystemFee)
	hashes := make([]UInt256, len(txs))
	for i, tx := range txs {
		hash, err := tx.Hash()
		if err != nil {
			return nil, err
		}
		hashes[i] = hash
	}
	pr := PrepareRequest{
		Version:           0,
		PrevHash:          d.prevHash,
		Timestamp:         d.timestamp,
		Nonce:             uint64(d.blockIndex)<<32 | uint64(d.view),
		TransactionHashes: hashes,
	}
	d.prepareRequest = &pr
	d.state = StateSendingPrepareRequest
	payload := d.envelope(MessagePrepareRequest, pr)
	outbound := []ConsensusPayload{payload}

	own, err := d.recordPreparationLocked(d.myIndex, &pr)
	if err != nil {
		return nil, err
	}
	outbound = append(outbound, own...)
	return d.broadcastAll(outbound)
}

func (d *DBFT) envelope(t ConsensusMessageType, msg interface{}) ConsensusPayload {
	return ConsensusPayload{ValidatorIndex: d.myIndex, ViewNumber: d.view, BlockIndex: d.blockIndex, Type: t, Message: msg}
}

func (d *DBFT) broadcastAll(payloads []ConsensusPayload) ([]ConsensusPayload, error) {
	if d.transport == nil {
		return payloads, nil
	}
	for _, p := range payloads {
		if err := d.transport.Broadcast(p); err != nil {
			return payloads, err
		}
	}
	return payloads, nil
}

// prepareRequestHash is the "preparation hash" backups agree to: the hash
// of the PrepareRequest's own fields, independent of whether every
// transaction body has been fetched yet (spec.md §4.I "PrepareResponse
// {preparation-hash}").
func prepareRequestHash(pr PrepareRequest) (UInt256, error) {
	bw := NewBinWriter()
	bw.WriteByte(pr.Version)
	bw.WriteBytes(pr.PrevHash.Bytes())
	bw.WriteU64(pr.Timestamp)
	bw.WriteU64(pr.Nonce)
	bw.WriteVarUint(uint64(len(pr.TransactionHashes)))
	for _, h := range pr.TransactionHashes {
		bw.WriteBytes(h.Bytes())
	}
	return Hash256(bw.Bytes()), nil
}

// recordPreparationLocked stores our own agreement with pr (primary:
// implicit via its own PrepareRequest; backup: via a PrepareResponse it
// is about to send) and returns the response payload, if any.
func (d *DBFT) recordPreparationLocked(validatorIndex uint16, pr *PrepareRequest) ([]ConsensusPayload, error) {
	hash, err := prepareRequestHash(*pr)
	if err != nil {
		return nil, err
	}
	d.preparations[validatorIndex] = hash
	if validatorIndex != d.myIndex {
		return nil, nil
	}
	d.preparationHash = &hash
	if d.isPrimaryLocked() {
		return nil, nil // the primary's own agreement is implicit, nothing to send.
	}
	d.state = StatePrepareResponseSent
	return []ConsensusPayload{d.envelope(MessagePrepareResponse, PrepareResponse{PreparationHash: hash})}, nil
}

// OnReceive dispatches an incoming ConsensusPayload from another
// validator, returning any messages this validator now needs to
// broadcast in response.
func (d *DBFT) OnReceive(payload ConsensusPayload) ([]ConsensusPayload, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if int(payload.ValidatorIndex) >= d.n() {
		return nil, errors.New("dbft: validator index out of range")
	}
	if payload.BlockIndex != d.blockIndex {
		return nil, nil // stale or future round; the runtime routes by block index.
	}

	switch payload.Type {
	case MessagePrepareRequest:
		pr, ok := payload.Message.(PrepareRequest)
		if !ok {
			return nil, errors.New("dbft: malformed PrepareRequest payload")
		}
		return d.handlePrepareRequestLocked(payload.ValidatorIndex, payload.ViewNumber, pr)
	case MessagePrepareResponse:
		pres, ok := payload.Message.(PrepareResponse)
		if !ok {
			return nil, errors.New("dbft: malformed PrepareResponse payload")
		}
		return d.handlePrepareResponseLocked(payload.ValidatorIndex, pres)
	case MessageCommit:
		c, ok := payload.Message.(Commit)
		if !ok {
			return nil, errors.New("dbft: malformed Commit payload")
		}
		return d.handleCommitLocked(payload.ValidatorIndex, payload.ViewNumber, c)
	case MessageChangeView:
		cv, ok := payload.Message.(ChangeView)
		if !ok {
			return nil, errors.New("dbft: malformed ChangeView payload")
		}
		return d.handleChangeViewLocked(payload.ValidatorIndex, cv)
	case MessageRecoveryRequest:
		return d.buildRecoveryMessageLocked(), nil
	case MessageRecoveryMessage:
		rm, ok := payload.Message.(RecoveryMessage)
		if !ok {
			return nil, errors.New("dbft: malformed RecoveryMessage payload")
		}
		return d.handleRecoveryMessageLocked(rm)
	default:
		return nil, fmt.Errorf("dbft: unknown message type %v", payload.Type)
	}
}

func (d *DBFT) handlePrepareRequestLocked(from uint16, view byte, pr PrepareRequest) ([]ConsensusPayload, error) {
	if view != d.view || int(from) != primaryIndex(d.blockIndex, d.view, d.n()) {
		return nil, nil
	}
	if d.state != StateInitial || d.prepareRequest != nil {
		return nil, nil
	}
	if pr.PrevHash != d.prevHash {
		return nil, errors.New("dbft: PrepareRequest does not extend the expected chain tip")
	}
	d.prepareRequest = &pr
	responses, err := d.recordPreparationLocked(d.myIndex, &pr)
	if err != nil {
		return nil, err
	}
	return d.broadcastAll(responses)
}

func (d *DBFT) handlePrepareResponseLocked(from uint16, pres PrepareResponse) ([]ConsensusPayload, error) {
	d.preparations[from] = pres.PreparationHash
	return d.checkPreparationsLocked()
}

// checkPreparationsLocked sends Commit once m validators (including
// ourselves) agree on the same preparation hash as our own (spec.md §4.I
// "Commit: once ≥ m PrepareResponses ... match").
func (d *DBFT) checkPreparationsLocked() ([]ConsensusPayload, error) {
	if d.preparationHash == nil || d.state == StateCommitSent || d.state == StateBlockAccepted {
		return nil, nil
	}
	matching := 0
	for _, h := range d.preparations {
		if h == *d.preparationHash {
			matching++
		}
	}
	if matching < d.m() {
		return nil, nil
	}

	hash, err := d.signingHashLocked()
	if err != nil {
		return nil, err
	}
	signData := append(encodeNetworkMagic(NetworkMagic), hash.Bytes()...)
	sig, err := SignP256(d.privKey, signData)
	if err != nil {
		return nil, err
	}
	var blsSig []byte
	if d.blsKey != nil {
		blsSig = SignBLS(d.blsKey, signData)
	}
	commit := Commit{Signature: sig, BLSSignature: blsSig}
	d.commits[d.myIndex] = commit
	d.state = StateCommitSent
	out, err := d.broadcastAll([]ConsensusPayload{d.envelope(MessageCommit, commit)})
	if err != nil {
		return out, err
	}
	more, err := d.checkCommitsLocked()
	if err != nil {
		return out, err
	}
	return append(out, more...), nil
}

// signingHashLocked computes the provisional block header's hash from
// the agreed PrepareRequest and the pool-resolved transaction set — the
// value every Commit signature is over (spec.md §4.I "signature over the
// block's signing data").
func (d *DBFT) signingHashLocked() (UInt256, error) {
	header, err := d.provisionalHeaderLocked()
	if err != nil {
		return UInt256{}, err
	}
	return header.Hash()
}

func (d *DBFT) resolveTransactionsLocked() ([]*Transaction, error) {
	txs := make([]*Transaction, len(d.prepareRequest.TransactionHashes))
	for i, hash := range d.prepareRequest.TransactionHashes {
		tx, ok := d.pool.Get(hash)
		if !ok {
			return nil, fmt.Errorf("dbft: transaction %s not found in pool", hash.String())
		}
		txs[i] = tx
	}
	return txs, nil
}

func (d *DBFT) provisionalHeaderLocked() (*BlockHeader, error) {
	txs, err := d.resolveTransactionsLocked()
	if err != nil {
		return nil, err
	}
	root, err := ComputeMerkleRoot(txs)
	if err != nil {
		return nil, err
	}
	return &BlockHeader{
		Version:       d.prepareRequest.Version,
		PrevHash:      d.prepareRequest.PrevHash,
		MerkleRoot:    root,
		Timestamp:     d.prepareRequest.Timestamp,
		Nonce:         d.prepareRequest.Nonce,
		Index:         d.blockIndex,
		PrimaryIndex:  byte(primaryIndex(d.blockIndex, d.view, d.n())),
		NextConsensus: AccountFromMultiSig(d.m(), compressAll(d.validators)),
	}, nil
}

func compressAll(pubkeys []*ecdsa.PublicKey) [][]byte {
	out := make([][]byte, len(pubkeys))
	for i, pk := range pubkeys {
		out[i] = CompressP256PublicKey(pk)
	}
	return out
}

func (d *DBFT) handleCommitLocked(from uint16, view byte, c Commit) ([]ConsensusPayload, error) {
	if view != d.view {
		return nil, nil
	}
	d.commits[from] = c
	return d.checkCommitsLocked()
}

// checkCommitsLocked assembles and persists the block once m validators'
// Commit signatures verify against the provisional header (spec.md §4.I
// "upon ≥ m matching Commits, assemble and relay the block").
func (d *DBFT) checkCommitsLocked() ([]ConsensusPayload, error) {
	if d.state == StateBlockAccepted || d.prepareRequest == nil || len(d.commits) < d.m() {
		return nil, nil
	}

	header, err := d.provisionalHeaderLocked()
	if err != nil {
		return nil, err
	}
	hash, err := header.Hash()
	if err != nil {
		return nil, err
	}
	signData := append(encodeNetworkMagic(NetworkMagic), hash.Bytes()...)

	indices := make([]int, 0, len(d.commits))
	for idx := range d.commits {
		indices = append(indices, int(idx))
	}
	sort.Ints(indices)

	var sigs [][]byte
	for _, idx := range indices {
		c := d.commits[uint16(idx)]
		if !VerifyP256(d.validators[idx], signData, c.Signature) {
			continue
		}
		sigs = append(sigs, c.Signature)
	}
	if len(sigs) < d.m() {
		return nil, nil // not enough verifying signatures yet; wait for more Commits.
	}

	var invocation []byte
	for _, sig := range sigs {
		invocation = append(invocation, byte(PUSHDATA1), byte(len(sig)))
		invocation = append(invocation, sig...)
	}
	header.Witness = Witness{
		InvocationScript:   invocation,
		VerificationScript: MultiSigVerificationScript(d.m(), compressAll(d.validators)),
	}

	txs, err := d.resolveTransactionsLocked()
	if err != nil {
		return nil, err
	}
	block := &Block{Header: *header, Transactions: txs}
	if err := d.chain.PersistBlock(block); err != nil {
		return nil, err
	}
	d.state = StateBlockAccepted
	return nil, nil
}

func (d *DBFT) handleChangeViewLocked(from uint16, cv ChangeView) ([]ConsensusPayload, error) {
	if existing, ok := d.changeViews[from]; ok && existing.NewView >= cv.NewView {
		return nil, nil
	}
	d.changeViews[from] = cv

	count := 0
	for _, other := range d.changeViews {
		if other.NewView >= cv.NewView {
			count++
		}
	}
	if count < d.m() || cv.NewView <= d.view {
		return nil, nil
	}
	d.resetViewLocked(cv.NewView)
	return d.maybeSendPrepareRequestLocked()
}

// OnTimeout is called by the runtime when the current view's timer
// expires with no progress: it broadcasts ChangeView for the next view
// (spec.md §4.I "a validator that sees no progress within its timer
// broadcasts ChangeView with a monotonic new-view").
func (d *DBFT) OnTimeout(reason ChangeViewReason, now uint64) ([]ConsensusPayload, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StateBlockAccepted {
		return nil, nil
	}
	newView := d.view + 1
	cv := ChangeView{Reason: reason, Timestamp: now, NewView: newView}
	d.state = StateChangeViewSent
	out, err := d.handleChangeViewLocked(d.myIndex, cv)
	if err != nil {
		return out, err
	}
	return d.broadcastAll(append([]ConsensusPayload{d.envelope(MessageChangeView, cv)}, out...))
}

// buildRecoveryMessageLocked replays everything this validator has
// observed for the current view (spec.md §4.I "Recovery").
func (d *DBFT) buildRecoveryMessageLocked() []ConsensusPayload {
	rm := RecoveryMessage{PrepareRequest: d.prepareRequest}
	if d.preparationHash != nil {
		h := *d.preparationHash
		rm.PreparationHash = &h
	}
	for idx, cv := range d.changeViews {
		rm.ChangeViews = append(rm.ChangeViews, ChangeViewCompact{ValidatorIndex: idx, OriginalView: d.view, Reason: cv.Reason, Timestamp: cv.Timestamp})
	}
	for idx := range d.preparations {
		rm.PreparationMessages = append(rm.PreparationMessages, PreparationCompact{ValidatorIndex: idx})
	}
	for idx, c := range d.commits {
		rm.CommitMessages = append(rm.CommitMessages, CommitCompact{ValidatorIndex: idx, ViewNumber: d.view, Signature: c.Signature, BLSSignature: c.BLSSignature})
	}
	return []ConsensusPayload{d.envelope(MessageRecoveryMessage, rm)}
}

// handleRecoveryMessageLocked folds another validator's recovery evidence
// into our own state, potentially unblocking a stalled view.
func (d *DBFT) handleRecoveryMessageLocked(rm RecoveryMessage) ([]ConsensusPayload, error) {
	var out []ConsensusPayload
	if d.prepareRequest == nil && rm.PrepareRequest != nil {
		pr := *rm.PrepareRequest
		responses, err := d.handlePrepareRequestLocked(uint16(primaryIndex(d.blockIndex, d.view, d.n())), d.view, pr)
		if err != nil {
			return nil, err
		}
		out = append(out, responses...)
	}
	for _, c := range rm.CommitMessages {
		if c.ViewNumber != d.view {
			continue
		}
		more, err := d.handleCommitLocked(c.ValidatorIndex, c.ViewNumber, Commit{Signature: c.Signature, BLSSignature: c.BLSSignature})
		if err != nil {
			return out, err
		}
		out = append(out, more...)
	}
	return out, nil
}
