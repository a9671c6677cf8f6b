package hotcache

import (
	"bytes"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/devrev/hotcache/internal/model"
	"github.com/devrev/hotcache/internal/util"
)

const (
	tagSize     = 8
	bytesPerGiB = 1 << 30
)

// HotCache absorbs updates to keys that compaction has identified as hot.
// Promoted entries are mutated in place so compaction stops rewriting them
// and reads can be served from one location.
//
// One writer, many readers: Promote and Update calls must be serialized by
// the host (typically the mutex guarding memtable switching). Readers use
// Get and NewIterator concurrently without locks.
//
// A same-length update patches the value buffer in place, so a concurrent
// reader may observe old bytes, new bytes, or a mix of both. Value bytes
// are authoritative only together with the tag read alongside them.
type HotCache struct {
	table  *SkipList
	index  *directIndex
	logger *zap.Logger

	// Written only by the single writer. Readers of Report may observe
	// values that lag the most recent write.
	bytes      atomic.Int64
	puts       atomic.Uint64
	hits       atomic.Uint64
	entries    atomic.Uint64
	tombstones atomic.Uint64
	duplicates atomic.Uint64
}

// NewHotCache creates an empty cache
func NewHotCache(logger *zap.Logger) *HotCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HotCache{
		table:  NewSkipList(),
		index:  newDirectIndex(),
		logger: logger,
	}
}

// InsertFromCompaction promotes an entry selected during compaction.
// internalKey is the user key followed by the 8-byte tag; value carries the
// entry's bytes. A key that is already cached is skipped silently: the
// update path owns it from promotion onward and the compactor is free to
// re-pick.
func (c *HotCache) InsertFromCompaction(internalKey, value []byte) {
	if len(internalKey) < tagSize {
		panic(fmt.Sprintf("hotcache: internal key too short: %d bytes", len(internalKey)))
	}

	split := len(internalKey) - tagSize
	userKey := internalKey[:split]
	tag := model.Tag(util.DecodeFixed64(internalKey[split:]))

	var val []byte
	if !tag.IsTombstone() {
		val = value
		if val == nil {
			val = []byte{}
		}
	}

	node := c.table.Insert(userKey, val, tag)
	if node == nil {
		c.duplicates.Add(1)
		return
	}
	c.index.put(userKey, node)

	c.entries.Add(1)
	if tag.IsTombstone() {
		c.tombstones.Add(1)
	} else {
		c.bytes.Add(int64(len(userKey) + len(val) + tagSize))
	}
}

// UpdateIfExist applies a user write to the cached entry for userKey, if
// one exists. The tag is overwritten first, then the value: a deletion
// drops the value bytes and leaves a tombstone; a same-length value is
// patched into the existing buffer; any other length publishes a fresh
// buffer. Reviving a tombstone is the exception: the value is published
// before the tag. Returns false on a miss, leaving the cache untouched
// apart from the put counter.
func (c *HotCache) UpdateIfExist(sequence uint64, vt model.ValueType, userKey, value []byte) bool {
	if sequence > model.MaxSequenceNumber {
		panic(fmt.Sprintf("hotcache: sequence number %d exceeds 56 bits", sequence))
	}

	c.puts.Add(1)
	node, ok := c.index.get(userKey)
	if !ok {
		return false
	}
	c.hits.Add(1)

	old := node.Value()
	tag := model.NewTag(sequence, vt)

	switch {
	case vt == model.TypeDeletion:
		node.setTag(tag)
		if old != nil {
			c.bytes.Add(-int64(len(userKey) + len(old) + tagSize))
			c.tombstones.Add(1)
			node.clearValue()
		}
	case old != nil && len(value) == len(old):
		node.setTag(tag)
		node.patchValue(value)
	case old != nil:
		node.setTag(tag)
		c.bytes.Add(int64(len(value) - len(old)))
		node.replaceValue(value)
	default:
		// Revive a tombstone. The value lands before the tag so a
		// concurrent reader never observes a live tag without a value.
		node.replaceValue(value)
		node.setTag(tag)
		c.bytes.Add(int64(len(userKey) + len(value) + tagSize))
		c.tombstones.Add(^uint64(0))
	}
	return true
}

// Get returns a snapshot of the entry for key. Lock-free; safe under a
// concurrent writer. Tombstones are returned with a nil Value so the
// engine can honor the deletion at the tag's sequence number.
func (c *HotCache) Get(key []byte) (model.HotEntry, bool) {
	x := c.table.findGreaterOrEqual(key, nil)
	if x == nil || !bytes.Equal(x.key, key) {
		return model.HotEntry{}, false
	}
	return x.Entry(), true
}

// Contains reports whether key has been promoted. Lock-free.
func (c *HotCache) Contains(key []byte) bool {
	return c.table.Contains(key)
}

// NewIterator returns a lock-free iterator over the ordered index
func (c *HotCache) NewIterator() *Iterator {
	return c.table.NewIterator()
}

// Report returns a snapshot of the cache counters
func (c *HotCache) Report() model.CacheStats {
	return model.CacheStats{
		Bytes:               c.bytes.Load(),
		Puts:                c.puts.Load(),
		Hits:                c.hits.Load(),
		Entries:             c.entries.Load(),
		Tombstones:          c.tombstones.Load(),
		DuplicatePromotions: c.duplicates.Load(),
	}
}

// LogCacheInfo logs the cached byte total and hit ratio
func (c *HotCache) LogCacheInfo() {
	stats := c.Report()
	c.logger.Info("Hot-key cache info",
		zap.String("cache_size_gib", fmt.Sprintf("%.3f", float64(stats.Bytes)/float64(bytesPerGiB))),
		zap.String("hit_ratio", fmt.Sprintf("%.3f", stats.HitRatio())),
		zap.Uint64("hits", stats.Hits),
		zap.Uint64("puts", stats.Puts),
		zap.Uint64("entries", stats.Entries))
}

// Close releases every node and both indexes. Ownership is single-rooted
// at the ordered index, so teardown walks level 0 once. The caller must
// guarantee no reader or writer is still active.
func (c *HotCache) Close() {
	for x := c.table.head.loadNext(0); x != nil; {
		next := x.loadNext(0)
		x.clearValue()
		for i := range x.next {
			x.next[i].Store(nil)
		}
		x = next
	}
	for i := range c.table.head.next {
		c.table.head.next[i].Store(nil)
	}
	c.index.nodes = nil
	c.logger.Debug("Hot-key cache closed")
}
