package core

const ledgerContractID int32 = -3

const (
	prefixCurrentIndex byte = 0x01
	prefixCurrentHash  byte = 0x02
	prefixBlockHash    byte = 0x03 // | index(4BE) -> hash
)

// LedgerContract is the native Ledger contract: the block/transaction
// index every other native contract and interop reads the chain tip
// through (spec.md §4.F "Ledger").
//
// Grounded on core/ledger.go's LastBlockHeight/LastBlockHash accessors,
// re-pointed at the DataCache snapshot model instead of the teacher's
// in-memory State map.
type LedgerContract struct {
	store *DataCache
}

// NewLedgerContract wires Ledger against a snapshot.
func NewLedgerContract(store *DataCache) *LedgerContract {
	return &LedgerContract{store: store}
}

func ledgerKey(prefix byte) StorageKey {
	return StorageKey{ContractID: ledgerContractID, Prefix: []byte{prefix}}
}

// CurrentIndex returns the height of the most recently persisted block.
func (l *LedgerContract) CurrentIndex() (uint32, error) {
	item, err := l.store.TryGet(ledgerKey(prefixCurrentIndex))
	if err != nil || item == nil || len(item.Value) != 4 {
		return 0, err
	}
	return uint32(bytesToUint64LE(item.Value)), nil
}

// CurrentHash returns the hash of the most recently persisted block.
func (l *LedgerContract) CurrentHash() (UInt256, error) {
	item, err := l.store.TryGet(ledgerKey(prefixCurrentHash))
	if err != nil || item == nil {
		return UInt256{}, err
	}
	return UInt256FromBytes(item.Value)
}

// OnPersist records the just-persisted block's index/hash and its
// height->hash lookup entry, called once per block by the persist
// pipeline (Task 11) before any transaction's Application Engine runs.
func (l *LedgerContract) OnPersist(index uint32, hash UInt256) error {
	idxItem, err := l.store.GetOrAdd(ledgerKey(prefixCurrentIndex), func() *StorageItem { return &StorageItem{Value: make([]byte, 4)} })
	if err != nil {
		return err
	}
	copy(idxItem.Value, uint64ToBytesLE(uint64(index))[:4])
	idxItem.MarkDirty()

	hashItem, err := l.store.GetOrAdd(ledgerKey(prefixCurrentHash), func() *StorageItem { return &StorageItem{} })
	if err != nil {
		return err
	}
	hashItem.Value = hash.Bytes()
	hashItem.MarkDirty()

	idxKey := StorageKey{ContractID: ledgerContractID, Prefix: append([]byte{prefixBlockHash}, uint64ToBytesLE(uint64(index))[:4]...)}
	return l.store.Add(idxKey, &StorageItem{Value: hash.Bytes()})
}

// BlockHash looks up the hash recorded for a given height.
func (l *LedgerContract) BlockHash(index uint32) (UInt256, error) {
	key := StorageKey{ContractID: ledgerContractID, Prefix: append([]byte{prefixBlockHash}, uint64ToBytesLE(uint64(index))[:4]...)}
	item, err := l.store.TryGet(key)
	if err != nil || item == nil {
		return UInt256{}, err
	}
	return UInt256FromBytes(item.Value)
}
