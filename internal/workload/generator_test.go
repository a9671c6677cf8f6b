package workload_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devrev/hotcache/internal/model"
	"github.com/devrev/hotcache/internal/util"
	"github.com/devrev/hotcache/internal/workload"
)

func newGenerator(t *testing.T) *workload.Generator {
	t.Helper()
	gen, err := workload.NewGenerator(&workload.Config{
		Keys:      1000,
		ValueSize: 64,
		ZipfS:     1.2,
		ZipfV:     1.0,
		Seed:      42,
	})
	require.NoError(t, err)
	return gen
}

func TestGenerator_Deterministic(t *testing.T) {
	a := newGenerator(t)
	b := newGenerator(t)

	for i := 0; i < 100; i++ {
		assert.Equal(t, a.NextRank(), b.NextRank())
	}
	assert.Equal(t, a.ValueAt(3, 7), b.ValueAt(3, 7))
}

func TestGenerator_KeyOrderMatchesRankOrder(t *testing.T) {
	gen := newGenerator(t)

	// Fixed-width keys keep lexicographic order aligned with rank order
	var prev []byte
	for rank := uint64(0); rank < 50; rank++ {
		key := gen.KeyAt(rank)
		if prev != nil {
			assert.Negative(t, bytes.Compare(prev, key))
		}
		prev = key
	}
}

func TestGenerator_InternalKeyAt(t *testing.T) {
	gen := newGenerator(t)

	ik := gen.InternalKeyAt(7, 99, model.TypeValue)
	require.GreaterOrEqual(t, len(ik), 8)

	userKey := ik[:len(ik)-8]
	tag := model.Tag(util.DecodeFixed64(ik[len(ik)-8:]))

	assert.Equal(t, gen.KeyAt(7), userKey)
	assert.Equal(t, uint64(99), tag.Sequence())
	assert.Equal(t, model.TypeValue, tag.Type())
}

func TestGenerator_HotSet(t *testing.T) {
	gen := newGenerator(t)

	batch := gen.HotSet(10, 5)
	require.Len(t, batch, 10)

	var prev []byte
	for _, p := range batch {
		userKey := p.InternalKey[:len(p.InternalKey)-8]
		if prev != nil {
			assert.Negative(t, bytes.Compare(prev, userKey))
		}
		prev = userKey
		assert.NotEmpty(t, p.Value)
	}
}

func TestGenerator_HotSetClampedToKeySpace(t *testing.T) {
	gen := newGenerator(t)
	assert.Len(t, gen.HotSet(5000, 1), 1000)
}

func TestGenerator_ValueSizeVariation(t *testing.T) {
	gen := newGenerator(t)

	sizes := map[int]bool{}
	for rank := uint64(0); rank < 16; rank++ {
		sizes[len(gen.ValueAt(rank, 0))] = true
	}
	// Both the full and the half size must occur so updates hit the
	// patch path and the resize path
	assert.Len(t, sizes, 2)
}
