package hotcache_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devrev/hotcache/internal/hotcache"
	"github.com/devrev/hotcache/internal/model"
	"github.com/devrev/hotcache/internal/util"
)

func internalKey(userKey string, sequence uint64, vt model.ValueType) []byte {
	return util.AppendFixed64([]byte(userKey), uint64(model.NewTag(sequence, vt)))
}

func TestHotCache_InsertFromCompaction(t *testing.T) {
	cache := hotcache.NewHotCache(nil)

	cache.InsertFromCompaction(internalKey("key1", 5, model.TypeValue), []byte("value1"))

	entry, found := cache.Get([]byte("key1"))
	require.True(t, found)
	assert.Equal(t, []byte("key1"), entry.Key)
	assert.Equal(t, []byte("value1"), entry.Value)
	assert.Equal(t, uint64(5), entry.Tag.Sequence())
	assert.Equal(t, model.TypeValue, entry.Tag.Type())

	stats := cache.Report()
	assert.Equal(t, uint64(1), stats.Entries)
	assert.Equal(t, int64(len("key1")+len("value1")+8), stats.Bytes)
	assert.Zero(t, stats.Tombstones)
}

func TestHotCache_InsertFromCompaction_Duplicate(t *testing.T) {
	cache := hotcache.NewHotCache(nil)

	cache.InsertFromCompaction(internalKey("key1", 5, model.TypeValue), []byte("value1"))
	cache.InsertFromCompaction(internalKey("key1", 9, model.TypeValue), []byte("other"))

	// The first promotion wins; the second is counted and dropped
	entry, found := cache.Get([]byte("key1"))
	require.True(t, found)
	assert.Equal(t, []byte("value1"), entry.Value)
	assert.Equal(t, uint64(5), entry.Tag.Sequence())

	stats := cache.Report()
	assert.Equal(t, uint64(1), stats.Entries)
	assert.Equal(t, uint64(1), stats.DuplicatePromotions)
}

func TestHotCache_InsertFromCompaction_Tombstone(t *testing.T) {
	cache := hotcache.NewHotCache(nil)

	cache.InsertFromCompaction(internalKey("key1", 7, model.TypeDeletion), nil)

	entry, found := cache.Get([]byte("key1"))
	require.True(t, found)
	assert.Nil(t, entry.Value)
	assert.True(t, entry.Tag.IsTombstone())

	stats := cache.Report()
	assert.Equal(t, uint64(1), stats.Entries)
	assert.Equal(t, uint64(1), stats.Tombstones)
	assert.Zero(t, stats.Bytes)
}

func TestHotCache_InsertFromCompaction_ShortKeyPanics(t *testing.T) {
	cache := hotcache.NewHotCache(nil)

	assert.Panics(t, func() {
		cache.InsertFromCompaction([]byte("short"), []byte("v"))
	})
}

func TestHotCache_UpdateIfExist_Miss(t *testing.T) {
	cache := hotcache.NewHotCache(nil)

	hit := cache.UpdateIfExist(1, model.TypeValue, []byte("absent"), []byte("v"))
	assert.False(t, hit)

	stats := cache.Report()
	assert.Equal(t, uint64(1), stats.Puts)
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Entries)
}

func TestHotCache_UpdateIfExist_SameLengthPatch(t *testing.T) {
	cache := hotcache.NewHotCache(nil)
	cache.InsertFromCompaction(internalKey("key1", 5, model.TypeValue), []byte("value1"))

	hit := cache.UpdateIfExist(8, model.TypeValue, []byte("key1"), []byte("VALUE2"))
	require.True(t, hit)

	entry, found := cache.Get([]byte("key1"))
	require.True(t, found)
	assert.Equal(t, []byte("VALUE2"), entry.Value)
	assert.Equal(t, uint64(8), entry.Tag.Sequence())

	// Same-length update does not move the byte total
	stats := cache.Report()
	assert.Equal(t, int64(len("key1")+len("VALUE2")+8), stats.Bytes)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Puts)
}

func TestHotCache_UpdateIfExist_Idempotent(t *testing.T) {
	cache := hotcache.NewHotCache(nil)
	cache.InsertFromCompaction(internalKey("key1", 5, model.TypeValue), []byte("value1"))

	// Repeating the same update leaves the entry byte-identical
	require.True(t, cache.UpdateIfExist(8, model.TypeValue, []byte("key1"), []byte("value2")))
	first, _ := cache.Get([]byte("key1"))

	require.True(t, cache.UpdateIfExist(8, model.TypeValue, []byte("key1"), []byte("value2")))
	second, _ := cache.Get([]byte("key1"))

	assert.Equal(t, first, second)
	assert.Equal(t, uint64(2), cache.Report().Hits)
}

func TestHotCache_UpdateIfExist_Resize(t *testing.T) {
	cache := hotcache.NewHotCache(nil)
	cache.InsertFromCompaction(internalKey("key1", 5, model.TypeValue), []byte("value1"))

	t.Run("grow", func(t *testing.T) {
		hit := cache.UpdateIfExist(8, model.TypeValue, []byte("key1"), []byte("a much longer value"))
		require.True(t, hit)

		entry, _ := cache.Get([]byte("key1"))
		assert.Equal(t, []byte("a much longer value"), entry.Value)
		assert.Equal(t, int64(len("key1")+len("a much longer value")+8), cache.Report().Bytes)
	})

	t.Run("shrink", func(t *testing.T) {
		hit := cache.UpdateIfExist(9, model.TypeValue, []byte("key1"), []byte("tiny"))
		require.True(t, hit)

		entry, _ := cache.Get([]byte("key1"))
		assert.Equal(t, []byte("tiny"), entry.Value)
		assert.Equal(t, int64(len("key1")+len("tiny")+8), cache.Report().Bytes)
	})
}

func TestHotCache_UpdateIfExist_DeleteAndRevive(t *testing.T) {
	cache := hotcache.NewHotCache(nil)
	cache.InsertFromCompaction(internalKey("key1", 5, model.TypeValue), []byte("value1"))

	// Delete drops the value, keeps the node
	hit := cache.UpdateIfExist(8, model.TypeDeletion, []byte("key1"), nil)
	require.True(t, hit)

	entry, found := cache.Get([]byte("key1"))
	require.True(t, found)
	assert.Nil(t, entry.Value)
	assert.True(t, entry.Tag.IsTombstone())
	assert.Equal(t, uint64(8), entry.Tag.Sequence())

	stats := cache.Report()
	assert.Zero(t, stats.Bytes)
	assert.Equal(t, uint64(1), stats.Tombstones)
	assert.Equal(t, uint64(1), stats.Entries)

	// Delete again is a hit but changes nothing beyond the tag
	hit = cache.UpdateIfExist(9, model.TypeDeletion, []byte("key1"), nil)
	require.True(t, hit)
	stats = cache.Report()
	assert.Zero(t, stats.Bytes)
	assert.Equal(t, uint64(1), stats.Tombstones)

	// A later write revives the entry in place
	hit = cache.UpdateIfExist(12, model.TypeValue, []byte("key1"), []byte("reborn"))
	require.True(t, hit)

	entry, found = cache.Get([]byte("key1"))
	require.True(t, found)
	assert.Equal(t, []byte("reborn"), entry.Value)
	assert.False(t, entry.Tag.IsTombstone())
	assert.Equal(t, uint64(12), entry.Tag.Sequence())

	stats = cache.Report()
	assert.Equal(t, int64(len("key1")+len("reborn")+8), stats.Bytes)
	assert.Zero(t, stats.Tombstones)
	assert.Equal(t, uint64(1), stats.Entries)
}

func TestHotCache_UpdateIfExist_EmptyValue(t *testing.T) {
	cache := hotcache.NewHotCache(nil)
	cache.InsertFromCompaction(internalKey("key1", 5, model.TypeValue), []byte("value1"))

	// Zero-length live value is distinct from a tombstone
	hit := cache.UpdateIfExist(8, model.TypeValue, []byte("key1"), []byte{})
	require.True(t, hit)

	entry, found := cache.Get([]byte("key1"))
	require.True(t, found)
	assert.NotNil(t, entry.Value)
	assert.Empty(t, entry.Value)
	assert.False(t, entry.Tag.IsTombstone())
	assert.Equal(t, int64(len("key1")+8), cache.Report().Bytes)
}

func TestHotCache_UpdateIfExist_SequenceOverflowPanics(t *testing.T) {
	cache := hotcache.NewHotCache(nil)

	assert.Panics(t, func() {
		cache.UpdateIfExist(model.MaxSequenceNumber+1, model.TypeValue, []byte("key1"), []byte("v"))
	})
}

func TestHotCache_Contains(t *testing.T) {
	cache := hotcache.NewHotCache(nil)
	cache.InsertFromCompaction(internalKey("live", 1, model.TypeValue), []byte("v"))
	cache.InsertFromCompaction(internalKey("dead", 2, model.TypeDeletion), nil)

	assert.True(t, cache.Contains([]byte("live")))
	assert.True(t, cache.Contains([]byte("dead")))
	assert.False(t, cache.Contains([]byte("absent")))
}

func TestHotCache_Iterator(t *testing.T) {
	cache := hotcache.NewHotCache(nil)
	cache.InsertFromCompaction(internalKey("b", 2, model.TypeValue), []byte("vb"))
	cache.InsertFromCompaction(internalKey("a", 1, model.TypeValue), []byte("va"))
	cache.InsertFromCompaction(internalKey("c", 3, model.TypeDeletion), nil)

	it := cache.NewIterator()
	var keys []string
	for it.SeekToFirst(); it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()))
	}
	assert.Equal(t, []string{"a", "b", "c"}, keys)

	// Tombstones stay visible to iteration
	it.Seek([]byte("c"))
	require.True(t, it.Valid())
	assert.True(t, it.Tag().IsTombstone())
	assert.Nil(t, it.Value())
}

func TestHotCache_ConcurrentReadsDuringUpdates(t *testing.T) {
	cache := hotcache.NewHotCache(nil)

	const keys = 64
	for i := 0; i < keys; i++ {
		cache.InsertFromCompaction(internalKey(keyName(i), 1, model.TypeValue), []byte("initial-00"))
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				for i := 0; i < keys; i++ {
					entry, found := cache.Get([]byte(keyName(i)))
					if !found {
						t.Errorf("promoted key %q disappeared", keyName(i))
						return
					}
					if !entry.Tag.IsTombstone() && entry.Value == nil {
						t.Errorf("live entry %q lost its value", keyName(i))
						return
					}
				}
			}
		}()
	}

	// Single writer cycling values, deletions, and revivals
	seq := uint64(2)
	for round := 0; round < 200; round++ {
		for i := 0; i < keys; i++ {
			key := []byte(keyName(i))
			switch round % 4 {
			case 0:
				cache.UpdateIfExist(seq, model.TypeValue, key, []byte("patched-01"))
			case 1:
				cache.UpdateIfExist(seq, model.TypeValue, key, []byte("resized"))
			case 2:
				cache.UpdateIfExist(seq, model.TypeDeletion, key, nil)
			case 3:
				cache.UpdateIfExist(seq, model.TypeValue, key, []byte("revived-value"))
			}
			seq++
		}
	}
	close(stop)
	wg.Wait()

	stats := cache.Report()
	assert.Equal(t, uint64(keys), stats.Entries)
	assert.Zero(t, stats.Tombstones)
}

func keyName(i int) string {
	return string([]byte{'k', byte('a' + i/26), byte('a' + i%26)})
}

func TestHotCache_Close(t *testing.T) {
	cache := hotcache.NewHotCache(nil)
	for i := 0; i < 32; i++ {
		cache.InsertFromCompaction(internalKey(keyName(i), uint64(i+1), model.TypeValue), []byte("value"))
	}

	cache.Close()

	it := cache.NewIterator()
	it.SeekToFirst()
	assert.False(t, it.Valid())
}
