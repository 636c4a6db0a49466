package core

import (
	"bytes"
	"sort"
	"sync"
)

// PoolRemovalReason records why a transaction left the pool outside of
// being included in a block (spec.md §4.H "reported with reason ...").
type PoolRemovalReason int

const (
	ReasonCapacityExceeded PoolRemovalReason = iota
	ReasonConflict
	ReasonNoLongerValid
)

func (r PoolRemovalReason) String() string {
	switch r {
	case ReasonCapacityExceeded:
		return "CapacityExceeded"
	case ReasonConflict:
		return "Conflict"
	case ReasonNoLongerValid:
		return "NoLongerValid"
	default:
		return "Unknown"
	}
}

type poolEntry struct {
	tx         *Transaction
	hash       UInt256
	size       int
	feePerByte int64
}

// MemPool holds the node's pending transactions as two disjoint sets: a
// fee-sorted verified set ready for block assembly, and an unverified FIFO
// queue of survivors from the last block waiting their turn to be
// re-checked (spec.md §4.H).
//
// Grounded on core/common_structs.go's TxPool (a `sync.RWMutex` guarding a
// `lookup map[Hash]*Transaction` + flat `queue` slice), generalized from a
// single unordered queue into the sorted verified/unverified split the
// spec requires, keeping the same single-mutex, snapshot-on-read idiom
// `txpool_snapshot.go` uses.
type MemPool struct {
	mu sync.RWMutex

	capacity int

	verified      []*poolEntry
	verifiedIndex map[UInt256]*poolEntry

	unverified      []*poolEntry
	unverifiedIndex map[UInt256]*poolEntry

	ctx *TransactionVerificationContext
}

// NewMemPool returns an empty pool bounded at capacity transactions in its
// verified set.
func NewMemPool(capacity int) *MemPool {
	return &MemPool{
		capacity:        capacity,
		verifiedIndex:   make(map[UInt256]*poolEntry),
		unverifiedIndex: make(map[UInt256]*poolEntry),
		ctx:             NewTransactionVerificationContext(),
	}
}

func newPoolEntry(tx *Transaction) (*poolEntry, error) {
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}
	encoded, err := tx.Encode()
	if err != nil {
		return nil, err
	}
	size := len(encoded)
	feePerByte := tx.NetworkFee / int64(size)
	return &poolEntry{tx: tx, hash: hash, size: size, feePerByte: feePerByte}, nil
}

// higherPriority orders the verified set by fee-per-byte desc, then
// network-fee desc, then hash (spec.md §4.H "sorted by fee-per-byte desc,
// then network-fee desc, then hash").
func higherPriority(a, b *poolEntry) bool {
	if a.feePerByte != b.feePerByte {
		return a.feePerByte > b.feePerByte
	}
	if a.tx.NetworkFee != b.tx.NetworkFee {
		return a.tx.NetworkFee > b.tx.NetworkFee
	}
	return bytes.Compare(a.hash.Bytes(), b.hash.Bytes()) < 0
}

func (mp *MemPool) insertVerifiedLocked(e *poolEntry) {
	idx := sort.Search(len(mp.verified), func(i int) bool { return !higherPriority(mp.verified[i], e) })
	mp.verified = append(mp.verified, nil)
	copy(mp.verified[idx+1:], mp.verified[idx:])
	mp.verified[idx] = e
	mp.verifiedIndex[e.hash] = e
}

func (mp *MemPool) removeVerifiedLocked(hash UInt256) *poolEntry {
	e, ok := mp.verifiedIndex[hash]
	if !ok {
		return nil
	}
	delete(mp.verifiedIndex, hash)
	for i, v := range mp.verified {
		if v.hash == hash {
			mp.verified = append(mp.verified[:i], mp.verified[i+1:]...)
			break
		}
	}
	return e
}

// Contains reports whether hash is tracked in either set.
func (mp *MemPool) Contains(hash UInt256) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	_, inVerified := mp.verifiedIndex[hash]
	_, inUnverified := mp.unverifiedIndex[hash]
	return inVerified || inUnverified
}

// conflictingEntry returns the existing verified transaction tx's
// Conflicts attributes name, if any, for eviction purposes (spec.md §4.H
// "on Conflicts attribute match, remove lower-priority conflicting tx").
func (mp *MemPool) conflictingEntry(tx *Transaction) *poolEntry {
	for _, a := range tx.Attributes {
		if a.Type != AttrConflicts {
			continue
		}
		if e, ok := mp.verifiedIndex[a.ConflictHash]; ok {
			return e
		}
	}
	return nil
}

// TryAdd runs state-dependent verification against a clone of the pool's
// fee-accounting context and, on success, inserts tx into the verified set
// in priority order, evicting the lowest-priority entry if capacity is
// exceeded (spec.md §4.H "TryAdd(tx, snapshot)").
func (mp *MemPool) TryAdd(tx *Transaction, currentIndex uint32, policy *PolicyContract, gas *GasContract) (bool, PoolRemovalReason, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	entry, err := newPoolEntry(tx)
	if err != nil {
		return false, 0, err
	}
	if _, exists := mp.verifiedIndex[entry.hash]; exists {
		return false, 0, nil
	}

	if conflict := mp.conflictingEntry(tx); conflict != nil {
		if !higherPriority(entry, conflict) {
			return false, ReasonConflict, nil
		}
		mp.removeVerifiedLocked(conflict.hash)
		mp.ctx.RemoveTransaction(conflict.tx)
	}

	probe := mp.ctx.Clone()
	if err := VerifyStateDependent(tx, currentIndex, policy, gas, probe); err != nil {
		return false, 0, err
	}

	mp.ctx.AddTransaction(tx)
	mp.insertVerifiedLocked(entry)

	if mp.capacity > 0 && len(mp.verified) > mp.capacity {
		lowest := mp.verified[len(mp.verified)-1]
		mp.removeVerifiedLocked(lowest.hash)
		mp.ctx.RemoveTransaction(lowest.tx)
		if lowest.hash == entry.hash {
			return false, ReasonCapacityExceeded, nil
		}
	}
	return true, 0, nil
}

// GetVerifiedForBlock returns up to maxCount verified transactions in
// priority order whose cumulative size stays within maxSize and whose
// cumulative system fee stays within maxSystemFee (spec.md §4.I
// "MakePrepareRequest ... iterate adding tx whose cumulative size ...
// stop at first overflow").
func (mp *MemPool) GetVerifiedForBlock(maxCount int, maxSize int, maxSystemFee int64) []*Transaction {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	var picked []*Transaction
	var size int
	var systemFee int64
	for _, e := range mp.verified {
		if len(picked) >= maxCount {
			break
		}
		if size+e.size > maxSize {
			break
		}
		if systemFee+e.tx.SystemFee > maxSystemFee {
			break
		}
		picked = append(picked, e.tx)
		size += e.size
		systemFee += e.tx.SystemFee
	}
	return picked
}

// UpdatePoolForBlockPersisted removes the transactions a just-persisted
// block included, and demotes every surviving verified transaction into
// the unverified FIFO queue for lazy re-verification (spec.md §4.H "On
// block persist: remove included transactions; move survivors into
// unverified").
func (mp *MemPool) UpdatePoolForBlockPersisted(included map[UInt256]bool) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	survivors := mp.verified
	mp.verified = nil
	mp.verifiedIndex = make(map[UInt256]*poolEntry)
	mp.ctx = NewTransactionVerificationContext()

	for _, e := range survivors {
		if included[e.hash] {
			continue
		}
		mp.unverified = append(mp.unverified, e)
		mp.unverifiedIndex[e.hash] = e
	}
	for hash := range included {
		if e, ok := mp.unverifiedIndex[hash]; ok {
			mp.removeUnverifiedLocked(e.hash)
		}
	}
}

func (mp *MemPool) removeUnverifiedLocked(hash UInt256) {
	delete(mp.unverifiedIndex, hash)
	for i, v := range mp.unverified {
		if v.hash == hash {
			mp.unverified = append(mp.unverified[:i], mp.unverified[i+1:]...)
			break
		}
	}
}

// ReverifyUnverified re-checks up to n transactions pulled off the front
// of the unverified queue against the new snapshot; survivors are
// promoted back into the verified set, failures are dropped and reported
// with reason NoLongerValid (spec.md §4.H "re-verify lazily ... drop
// those now failing").
func (mp *MemPool) ReverifyUnverified(n int, currentIndex uint32, policy *PolicyContract, gas *GasContract) (promoted int, dropped []UInt256) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	for i := 0; i < n && len(mp.unverified) > 0; i++ {
		e := mp.unverified[0]
		mp.unverified = mp.unverified[1:]
		delete(mp.unverifiedIndex, e.hash)

		probe := mp.ctx.Clone()
		if err := VerifyStateDependent(e.tx, currentIndex, policy, gas, probe); err != nil {
			dropped = append(dropped, e.hash)
			continue
		}
		mp.ctx.AddTransaction(e.tx)
		mp.insertVerifiedLocked(e)
		promoted++
	}
	return promoted, dropped
}

// Get returns the transaction tracked under hash in either set, for the
// consensus engine resolving a PrepareRequest's transaction-hash list
// against the pool (spec.md §4.I "PrepareRequest{... tx-hashes}").
func (mp *MemPool) Get(hash UInt256) (*Transaction, bool) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	if e, ok := mp.verifiedIndex[hash]; ok {
		return e.tx, true
	}
	if e, ok := mp.unverifiedIndex[hash]; ok {
		return e.tx, true
	}
	return nil, false
}

// Count reports the size of each set, for observability.
func (mp *MemPool) Count() (verified, unverified int) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return len(mp.verified), len(mp.unverified)
}
