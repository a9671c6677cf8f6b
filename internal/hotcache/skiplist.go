package hotcache

import (
	"bytes"
	"math/rand"
	"sync/atomic"

	"github.com/devrev/hotcache/internal/model"
)

const (
	maxHeight = 12
	branching = 4
)

// SkipList is the ordered index over hot entries, keyed by user key.
//
// Thread safety: writes require external synchronization. Reads need no
// locking and may run concurrently with a write. A node is published by
// storing it into a predecessor's next pointer (a release store); readers
// traverse next pointers with acquire loads, so any node they reach is
// fully initialized. Nodes are never unlinked before the cache is closed.
type SkipList struct {
	head      *Node
	maxHeight atomic.Int32

	// Read and written only by Insert
	rnd *rand.Rand
}

// NewSkipList creates an empty skip list
func NewSkipList() *SkipList {
	sl := &SkipList{
		head: &Node{next: make([]atomic.Pointer[Node], maxHeight)},
		rnd:  rand.New(rand.NewSource(0xdeadbeef)),
	}
	sl.maxHeight.Store(1)
	return sl
}

func (sl *SkipList) getMaxHeight() int {
	return int(sl.maxHeight.Load())
}

// randomHeight draws 1 + Geometric(1/branching), clamped to maxHeight
func (sl *SkipList) randomHeight() int {
	height := 1
	for height < maxHeight && sl.rnd.Intn(branching) == 0 {
		height++
	}
	return height
}

// keyIsAfterNode reports whether key sorts strictly after n's key.
// A nil node acts as +inf.
func keyIsAfterNode(key []byte, n *Node) bool {
	return n != nil && bytes.Compare(n.key, key) < 0
}

// findGreaterOrEqual returns the earliest node at or after key, or nil.
// When prev is non-nil it is filled with the predecessor at every level.
func (sl *SkipList) findGreaterOrEqual(key []byte, prev []*Node) *Node {
	x := sl.head
	level := sl.getMaxHeight() - 1
	for {
		next := x.loadNext(level)
		if keyIsAfterNode(key, next) {
			x = next
			continue
		}
		if prev != nil {
			prev[level] = x
		}
		if level == 0 {
			return next
		}
		level--
	}
}

// findLessThan returns the latest node before key, or head if none
func (sl *SkipList) findLessThan(key []byte) *Node {
	x := sl.head
	level := sl.getMaxHeight() - 1
	for {
		next := x.loadNext(level)
		if next == nil || bytes.Compare(next.key, key) >= 0 {
			if level == 0 {
				return x
			}
			level--
		} else {
			x = next
		}
	}
}

// findLast returns the last node, or head if the list is empty
func (sl *SkipList) findLast() *Node {
	x := sl.head
	level := sl.getMaxHeight() - 1
	for {
		next := x.loadNext(level)
		if next == nil {
			if level == 0 {
				return x
			}
			level--
		} else {
			x = next
		}
	}
}

// Insert links a new node for key, copying key and value into node-owned
// buffers, and returns it. Returns nil when key is already present; the
// list is left untouched in that case. Requires external write
// serialization.
func (sl *SkipList) Insert(key, value []byte, tag model.Tag) *Node {
	prev := make([]*Node, maxHeight)
	x := sl.findGreaterOrEqual(key, prev)

	// Duplicate insertion is the caller's routing mistake, not ours to fix
	if x != nil && bytes.Equal(x.key, key) {
		return nil
	}

	height := sl.randomHeight()
	if height > sl.getMaxHeight() {
		for i := sl.getMaxHeight(); i < height; i++ {
			prev[i] = sl.head
		}
		// Racy with readers: one that observes the new height before the
		// new links sees nil at the top level and drops down harmlessly.
		sl.maxHeight.Store(int32(height))
	}

	x = newNode(key, value, tag, height)
	for i := 0; i < height; i++ {
		x.storeNext(i, prev[i].loadNext(i))
		// Publishes x; readers arriving through this pointer observe a
		// fully initialized node.
		prev[i].storeNext(i, x)
	}
	return x
}

// Contains reports whether key is present. Safe under a concurrent insert.
func (sl *SkipList) Contains(key []byte) bool {
	x := sl.findGreaterOrEqual(key, nil)
	return x != nil && bytes.Equal(x.key, key)
}

// NewIterator returns an iterator over the list. The returned iterator is
// not positioned; call one of the seek methods first.
func (sl *SkipList) NewIterator() *Iterator {
	return &Iterator{list: sl}
}

// Iterator walks the ordered index. Iterators are lock-free and safe to
// use concurrently with the single writer; each one observes at least
// the nodes linked before it was positioned.
type Iterator struct {
	list *SkipList
	node *Node
}

// Valid reports whether the iterator is positioned at a node
func (it *Iterator) Valid() bool {
	return it.node != nil
}

// Key returns the user key at the current position
func (it *Iterator) Key() []byte {
	return it.node.key
}

// Value returns the value bytes at the current position, nil for tombstones
func (it *Iterator) Value() []byte {
	return it.node.Value()
}

// Tag returns the tag at the current position
func (it *Iterator) Tag() model.Tag {
	return it.node.Tag()
}

// Entry returns a copy of the current entry, taken as Node.Entry does
func (it *Iterator) Entry() model.HotEntry {
	return it.node.Entry()
}

// Next advances to the following node
func (it *Iterator) Next() {
	it.node = it.node.loadNext(0)
}

// Prev moves to the preceding node. There are no back pointers; the list
// is rescanned from the head.
func (it *Iterator) Prev() {
	it.node = it.list.findLessThan(it.node.key)
	if it.node == it.list.head {
		it.node = nil
	}
}

// Seek positions at the first node with key >= target
func (it *Iterator) Seek(target []byte) {
	it.node = it.list.findGreaterOrEqual(target, nil)
}

// SeekToFirst positions at the first node
func (it *Iterator) SeekToFirst() {
	it.node = it.list.head.loadNext(0)
}

// SeekToLast positions at the last node
func (it *Iterator) SeekToLast() {
	it.node = it.list.findLast()
	if it.node == it.list.head {
		it.node = nil
	}
}
