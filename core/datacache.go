package core

import (
	"bytes"
	"errors"
	"sort"
	"sync"
)

// TrackState is the lifecycle state of a Trackable entry (spec.md §3).
type TrackState int

const (
	TrackNone TrackState = iota
	TrackAdded
	TrackChanged
	TrackDeleted
	TrackNotFound
)

// Trackable pairs a StorageItem with its lifecycle state inside a single
// DataCache layer.
type Trackable struct {
	Item  *StorageItem
	State TrackState
}

// ErrKeyAlreadyExists is returned by Add when the local state is already
// None/Changed/Added (spec.md §4.C).
var ErrKeyAlreadyExists = errors.New("datacache: key already exists")

// DataCache is the layered, copy-on-write overlay over a KVStore (spec.md
// §4.C): reads fall through to a parent (another DataCache or the root
// KVStore) on first access; writes stay local until Commit replays them
// into the parent.
//
// Grounded on core/ledger.go's `State map[string][]byte` guarded by a
// single sync.RWMutex (same single-writer discipline, spec.md §5), and on
// core/storage.go's diskLRU eviction bookkeeping for the "entries indexed
// by key, also kept in a structure that can be walked in order" shape.
type DataCache struct {
	mu     sync.RWMutex
	local  map[string]*Trackable
	parent *DataCache // nil if backed directly by a KVStore
	store  KVStore    // set only at the root of the chain
}

// NewDataCache returns a root cache backed directly by store.
func NewDataCache(store KVStore) *DataCache {
	return &DataCache{local: make(map[string]*Trackable), store: store}
}

func keyStr(k StorageKey) string { return string(k.Bytes()) }

// Get loads the item for k, falling through to the parent/backend on
// first access. It returns ErrKeyNotFound if the key is absent anywhere in
// the chain, or was locally Deleted/NotFound.
func (c *DataCache) Get(k StorageKey) (*StorageItem, error) {
	item, err := c.TryGet(k)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrKeyNotFound
	}
	return item, nil
}

// TryGet is Get without the not-found error: it returns (nil, nil) for an
// absent key.
func (c *DataCache) TryGet(k StorageKey) (*StorageItem, error) {
	ks := keyStr(k)

	c.mu.RLock()
	t, ok := c.local[ks]
	c.mu.RUnlock()
	if ok {
		switch t.State {
		case TrackDeleted, TrackNotFound:
			return nil, nil
		default:
			return t.Item, nil
		}
	}

	// Fall through to parent / backend, recording the loaded state as
	// TrackNone per spec.md §4.C.
	var item *StorageItem
	var found bool
	if c.parent != nil {
		loaded, err := c.parent.TryGet(k)
		if err != nil {
			return nil, err
		}
		if loaded != nil {
			item, found = loaded.Clone(), true
		}
	} else if c.store != nil {
		raw, err := c.store.Get(k.Bytes())
		if err != nil {
			if errors.Is(err, ErrKeyNotFound) {
				found = false
			} else {
				return nil, err
			}
		} else {
			item, found = &StorageItem{Value: raw}, true
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, already := c.local[ks]; already {
		// Lost a race with a concurrent writer under the read lock window;
		// re-read the authoritative entry.
		return c.lookupLocked(ks)
	}
	if found {
		c.local[ks] = &Trackable{Item: item, State: TrackNone}
		return item, nil
	}
	c.local[ks] = &Trackable{State: TrackNotFound}
	return nil, nil
}

func (c *DataCache) lookupLocked(ks string) (*StorageItem, error) {
	t := c.local[ks]
	if t.State == TrackDeleted || t.State == TrackNotFound {
		return nil, nil
	}
	return t.Item, nil
}

// Contains reports whether k resolves to a present item, without pulling
// the item itself into the local map on a cache miss at this layer (it
// still must consult parent/backend, per spec.md §4.C, but skips Clone).
func (c *DataCache) Contains(k StorageKey) (bool, error) {
	ks := keyStr(k)
	c.mu.RLock()
	t, ok := c.local[ks]
	c.mu.RUnlock()
	if ok {
		switch t.State {
		case TrackDeleted, TrackNotFound:
			return false, nil
		default:
			return true, nil
		}
	}
	if c.parent != nil {
		return c.parent.Contains(k)
	}
	if c.store != nil {
		return c.store.Contains(k.Bytes())
	}
	return false, nil
}

// Add inserts a brand-new item at k. It fails with ErrKeyAlreadyExists if
// the local state is None/Changed/Added (spec.md §4.C state table).
func (c *DataCache) Add(k StorageKey, item *StorageItem) error {
	ks := keyStr(k)
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.local[ks]; ok {
		switch t.State {
		case TrackNone, TrackChanged, TrackAdded:
			return ErrKeyAlreadyExists
		case TrackDeleted:
			// Deleted -> Changed on re-Add (spec.md §3 state table).
			t.Item = item
			t.State = TrackChanged
			return nil
		case TrackNotFound:
			t.Item = item
			t.State = TrackAdded
			return nil
		}
	}
	c.local[ks] = &Trackable{Item: item, State: TrackAdded}
	return nil
}

// Delete removes k. Per spec.md §3: None/Changed -> Deleted;
// Added -> NotFound (forgotten on commit). A key absent from the whole
// chain is recorded as NotFound and the delete is a no-op.
func (c *DataCache) Delete(k StorageKey) error {
	ks := keyStr(k)

	c.mu.RLock()
	_, known := c.local[ks]
	c.mu.RUnlock()
	if !known {
		// Pull the key through from parent/backend first so its
		// lifecycle state is recorded before we transition it, per the
		// spec.md §3 state table (Delete is only defined relative to an
		// already-known None/Added/Changed/Deleted state).
		if _, err := c.TryGet(k); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.local[ks]

	switch t.State {
	case TrackAdded:
		t.State = TrackNotFound
		t.Item = nil
	case TrackNotFound, TrackDeleted:
		// already gone; no-op
	default:
		t.State = TrackDeleted
	}
	return nil
}

// GetAndChange loads (or creates via factory) the item at k and marks it
// Changed (or Added if it did not previously exist).
func (c *DataCache) GetAndChange(k StorageKey, factory func() *StorageItem) (*StorageItem, error) {
	item, err := c.TryGet(k)
	if err != nil {
		return nil, err
	}
	ks := keyStr(k)
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.local[ks]
	if item == nil {
		item = factory()
		t.Item = item
		t.State = TrackAdded
		return item, nil
	}
	if t.State == TrackNone {
		t.State = TrackChanged
	}
	return item, nil
}

// GetOrAdd loads k, or creates and marks it Added if absent. Unlike
// GetAndChange it does not force an existing None entry to Changed.
func (c *DataCache) GetOrAdd(k StorageKey, factory func() *StorageItem) (*StorageItem, error) {
	item, err := c.TryGet(k)
	if err != nil {
		return nil, err
	}
	if item != nil {
		return item, nil
	}
	item = factory()
	ks := keyStr(k)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local[ks] = &Trackable{Item: item, State: TrackAdded}
	return item, nil
}

// nextKeyAfterPrefix computes the lexicographically-next key after prefix,
// by incrementing the last non-0xFF byte and truncating after it — used to
// bound backward seeks over a prefix (spec.md §4.C). An all-0xFF prefix is
// rejected, since there is no "next" key to bound it with.
func nextKeyAfterPrefix(prefix []byte) ([]byte, error) {
	out := append([]byte{}, prefix...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xFF {
			out[i]++
			return out[:i+1], nil
		}
	}
	return nil, errors.New("datacache: prefix of all-0xFF bytes has no successor")
}

// mergedEntry is an intermediate (key, item) pair used while merging
// local and parent/backend views for iteration.
type mergedEntry struct {
	key  []byte
	item *StorageItem
}

// Find returns entries whose key starts with prefix, merging local state
// over the parent/backend view: local Deleted/NotFound entries hide the
// corresponding parent entry (spec.md §4.C).
func (c *DataCache) Find(prefix []byte, dir Direction) []mergedEntry {
	merged := map[string]*mergedEntry{}
	hidden := map[string]bool{}

	c.mu.RLock()
	for ks, t := range c.local {
		if !bytes.HasPrefix([]byte(ks), prefix) {
			continue
		}
		switch t.State {
		case TrackDeleted, TrackNotFound:
			hidden[ks] = true
		default:
			merged[ks] = &mergedEntry{key: []byte(ks), item: t.Item}
		}
	}
	c.mu.RUnlock()

	var under []mergedEntry
	if c.parent != nil {
		under = c.parent.Find(prefix, Forward)
	} else if c.store != nil {
		it := c.store.Find(prefix, Forward)
		for it.Next() {
			e := it.Entry()
			under = append(under, mergedEntry{key: e.Key, item: &StorageItem{Value: e.Value}})
		}
	}
	for _, e := range under {
		ks := string(e.key)
		if hidden[ks] {
			continue
		}
		if _, already := merged[ks]; !already {
			cp := e
			merged[ks] = &cp
		}
	}

	out := make([]mergedEntry, 0, len(merged))
	for _, e := range merged {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].key, out[j].key) < 0 })
	if dir == Backward {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// Seek returns entries starting at key (inclusive) in the requested
// direction. Backward seek treats key as an inclusive prefix: it computes
// the next key after the prefix and walks backward from just before it,
// filtering to entries that actually start with the prefix (spec.md
// §4.C "Backward seek semantics").
func (c *DataCache) Seek(key []byte, dir Direction) []mergedEntry {
	if dir == Forward {
		all := c.Find(nil, Forward)
		out := all[:0:0]
		for _, e := range all {
			if bytes.Compare(e.key, key) >= 0 {
				out = append(out, e)
			}
		}
		return out
	}

	// Backward: key is treated as a prefix bound.
	bound, err := nextKeyAfterPrefix(key)
	if err != nil {
		return nil
	}
	all := c.Find(nil, Backward)
	out := all[:0:0]
	for _, e := range all {
		if bytes.Compare(e.key, bound) < 0 && bytes.HasPrefix(e.key, key) {
			out = append(out, e)
		}
	}
	return out
}

// FindRange returns entries with start <= key < end (half-open interval).
func (c *DataCache) FindRange(start, end []byte, dir Direction) []mergedEntry {
	all := c.Find(nil, Forward)
	out := all[:0:0]
	for _, e := range all {
		if bytes.Compare(e.key, start) >= 0 && bytes.Compare(e.key, end) < 0 {
			out = append(out, e)
		}
	}
	if dir == Backward {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// CloneCache returns a child DataCache backed by c. The child's writes
// stay local until Commit replays them into c.
func (c *DataCache) CloneCache() *DataCache {
	return &DataCache{local: make(map[string]*Trackable), parent: c}
}

// Commit replays this cache's change set into its parent (or, at the
// root, into the backing KVStore), in arbitrary order within
// {Added, Changed, Deleted} (spec.md §4.C "Commit ordering"). After
// Commit, the local map is emptied, so later reads load from the parent
// again.
func (c *DataCache) Commit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.parent == nil && c.store == nil {
		return errors.New("datacache: commit on a cache with no backing store")
	}

	for ks, t := range c.local {
		k := []byte(ks)
		switch t.State {
		case TrackAdded:
			if err := c.writeLocked(k, t.Item); err != nil {
				return err
			}
		case TrackChanged:
			if t.Item.Interop != nil {
				if err := t.Item.Flush(); err != nil {
					return err
				}
			}
			if err := c.writeLocked(k, t.Item); err != nil {
				return err
			}
		case TrackDeleted:
			if err := c.deleteLocked(k); err != nil {
				return err
			}
		case TrackNotFound, TrackNone:
			// nothing to replay
		}
	}

	c.local = make(map[string]*Trackable)
	return nil
}

func (c *DataCache) writeLocked(k []byte, item *StorageItem) error {
	if c.parent != nil {
		return c.parent.mergeUp(k, item, false)
	}
	return c.store.Put(k, item.Value)
}

func (c *DataCache) deleteLocked(k []byte) error {
	if c.parent != nil {
		return c.parent.mergeUp(k, nil, true)
	}
	return c.store.Delete(k)
}

// mergeUp applies a child cache's finalized write/delete directly into
// this cache's local change set, bypassing the Add guard: the child has
// already resolved the add-vs-update distinction, so replay here only
// needs to record the right state for this layer's own eventual Commit.
func (c *DataCache) mergeUp(k []byte, item *StorageItem, deleted bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ks := string(k)
	if deleted {
		if t, ok := c.local[ks]; ok && t.State == TrackAdded {
			c.local[ks] = &Trackable{State: TrackNotFound}
			return nil
		}
		c.local[ks] = &Trackable{State: TrackDeleted}
		return nil
	}
	c.local[ks] = &Trackable{Item: item, State: TrackChanged}
	return nil
}
