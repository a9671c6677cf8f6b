package workload

import (
	"fmt"
	"math/rand"

	"github.com/devrev/hotcache/internal/model"
	"github.com/devrev/hotcache/internal/util"
)

// Generator produces a deterministic, Zipf-skewed key-value workload.
// Low ranks are the hottest keys, so the head of the rank space doubles
// as the compaction promotion candidate set.
type Generator struct {
	config *Config
	rnd    *rand.Rand
	zipf   *rand.Zipf
}

// Config holds workload generator configuration
type Config struct {
	Keys      int
	ValueSize int
	ZipfS     float64
	ZipfV     float64
	Seed      int64
}

// NewGenerator creates a new workload generator
func NewGenerator(cfg *Config) (*Generator, error) {
	rnd := rand.New(rand.NewSource(cfg.Seed))

	zipf := rand.NewZipf(rnd, cfg.ZipfS, cfg.ZipfV, uint64(cfg.Keys-1))
	if zipf == nil {
		return nil, fmt.Errorf("invalid zipf parameters: s=%v v=%v", cfg.ZipfS, cfg.ZipfV)
	}

	return &Generator{
		config: cfg,
		rnd:    rnd,
		zipf:   zipf,
	}, nil
}

// NextRank draws the next key rank from the Zipf distribution
func (g *Generator) NextRank() uint64 {
	return g.zipf.Uint64()
}

// KeyAt returns the fixed-width key for a rank. Fixed width keeps the
// lexicographic order of keys aligned with rank order.
func (g *Generator) KeyAt(rank uint64) []byte {
	return []byte(fmt.Sprintf("user%012d", rank))
}

// ValueAt builds a deterministic value for a rank at a sequence number.
// One in eight values is half-sized so updates exercise the resize path
// as well as the in-place patch path.
func (g *Generator) ValueAt(rank, sequence uint64) []byte {
	size := g.config.ValueSize
	if (rank+sequence)%8 == 0 {
		size = size / 2
	}
	if size < 8 {
		size = 8
	}

	v := make([]byte, size)
	seed := rank*0x9e3779b97f4a7c15 + sequence
	for i := range v {
		seed = seed*6364136223846793005 + 1442695040888963407
		v[i] = byte(seed >> 56)
	}
	return v
}

// InternalKeyAt returns the internal form of the key for a rank: the
// user key followed by the 8-byte tag.
func (g *Generator) InternalKeyAt(rank, sequence uint64, vt model.ValueType) []byte {
	key := g.KeyAt(rank)
	return util.AppendFixed64(key, uint64(model.NewTag(sequence, vt)))
}

// HotSet returns promotion candidates for the n hottest ranks, in
// ascending key order, carrying the given sequence number.
func (g *Generator) HotSet(n int, sequence uint64) []model.Promotion {
	if n > g.config.Keys {
		n = g.config.Keys
	}

	batch := make([]model.Promotion, 0, n)
	for rank := uint64(0); rank < uint64(n); rank++ {
		batch = append(batch, model.Promotion{
			InternalKey: g.InternalKeyAt(rank, sequence, model.TypeValue),
			Value:       g.ValueAt(rank, sequence),
		})
	}
	return batch
}
