package hotcache

import (
	"sync/atomic"

	"github.com/devrev/hotcache/internal/model"
)

// Node is a single cache record linked into the ordered index.
//
// The key is copied once at creation and never mutated. The value and tag
// slots are mutated only by the single writer: the tag is an atomic word,
// the value an atomic pointer to an owned buffer. Once linked, a node stays
// linked until the cache is closed.
type Node struct {
	key   []byte
	value atomic.Pointer[[]byte]
	tag   atomic.Uint64
	next  []atomic.Pointer[Node]
}

// newNode copies key and value into buffers owned by the node. A nil value
// creates a tombstone; an empty non-nil value is a live zero-length value.
func newNode(key, value []byte, tag model.Tag, height int) *Node {
	n := &Node{
		key:  append([]byte(nil), key...),
		next: make([]atomic.Pointer[Node], height),
	}
	n.tag.Store(uint64(tag))
	if value != nil {
		buf := make([]byte, len(value))
		copy(buf, value)
		n.value.Store(&buf)
	}
	return n
}

// Key returns the node's user key. Callers must not modify it.
func (n *Node) Key() []byte {
	return n.key
}

// Value returns the current value bytes, or nil for a tombstone.
//
// The returned slice aliases the node's live buffer. A concurrent
// same-length update patches that buffer in place, so the bytes are
// authoritative only together with a tag whose sequence number has not
// moved across the read. Re-reading until the tag is unchanged before and
// after copying the value (as Entry does) catches an update that stores
// its tag during the copy, but not one whose tag was stored before the
// copy began.
func (n *Node) Value() []byte {
	p := n.value.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Tag returns the node's current tag
func (n *Node) Tag() model.Tag {
	return model.Tag(n.tag.Load())
}

// Entry returns a view of the node's key, value and tag. The tag is loaded
// before and after the value copy, and the copy is retried while the tag
// changes across it. The writer stores a new tag before it patches or
// replaces the value, so the copy can still hold the previous value or,
// after a same-length patch, a mix of old and new bytes under the new tag.
func (n *Node) Entry() model.HotEntry {
	for {
		before := n.tag.Load()
		val := n.Value()
		if val != nil {
			val = append([]byte(nil), val...)
		}
		if n.tag.Load() == before {
			return model.HotEntry{Key: n.key, Value: val, Tag: model.Tag(before)}
		}
	}
}

// setTag overwrites the tag slot. Writer only.
func (n *Node) setTag(t model.Tag) {
	n.tag.Store(uint64(t))
}

// patchValue copies v over the existing buffer. Writer only.
// Requires a live value of the same length.
func (n *Node) patchValue(v []byte) {
	copy(*n.value.Load(), v)
}

// replaceValue publishes a fresh buffer holding a copy of v. Writer only.
// The previous buffer stays reachable by concurrent readers until they
// drop it; the garbage collector reclaims it after that.
func (n *Node) replaceValue(v []byte) {
	buf := make([]byte, len(v))
	copy(buf, v)
	n.value.Store(&buf)
}

// clearValue drops the value slot, turning the node into a tombstone.
// Writer only.
func (n *Node) clearValue() {
	n.value.Store(nil)
}

func (n *Node) loadNext(level int) *Node {
	return n.next[level].Load()
}

func (n *Node) storeNext(level int, x *Node) {
	n.next[level].Store(x)
}
