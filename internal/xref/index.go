// Package xref maintains the cross-reference ("floating") index: a reverse
// map from (alphabet, method, value) to the phrases sharing that value, plus
// a hierarchy map that joins phrases across alphabets and methods through the
// value of the designated primary method. The in-memory maps are checkpointed
// to an append-only log and owned by a single committer goroutine; readers
// see a monotonically growing snapshot and never block on writers for
// committed entries.
package xref

import (
	"hash/fnv"
	"sync"

	"github.com/isopsephy/gematria-crossref/internal/codec"
)

// Ref is one indexable fact: a phrase holds a value under a method in an
// alphabet. Hierarchy marks records produced by the primary method, which
// additionally populate the hierarchy map.
type Ref struct {
	Alphabet  string         `json:"alphabet"`
	Method    codec.MethodID `json:"method"`
	Value     int64          `json:"value"`
	PhraseID  string         `json:"phrase_id"`
	Hierarchy bool           `json:"hierarchy,omitempty"`
}

// Relation locates a phrase within the hierarchy map.
type Relation struct {
	Alphabet string         `json:"alphabet"`
	Method   codec.MethodID `json:"method"`
	PhraseID string         `json:"phrase_id"`
}

type key struct {
	alphabet string
	method   codec.MethodID
	value    int64
}

// bucket is an insertion-ordered set of phrase identifiers.
type bucket struct {
	ids  []string
	seen map[string]struct{}
}

func (b *bucket) add(id string) bool {
	if _, dup := b.seen[id]; dup {
		return false
	}
	b.seen[id] = struct{}{}
	b.ids = append(b.ids, id)
	return true
}

// hbucket is an insertion-ordered set of hierarchy relations.
type hbucket struct {
	refs []Relation
	seen map[Relation]struct{}
}

func (b *hbucket) add(rel Relation) bool {
	if _, dup := b.seen[rel]; dup {
		return false
	}
	b.seen[rel] = struct{}{}
	b.refs = append(b.refs, rel)
	return true
}

type partition struct {
	mu      sync.RWMutex
	buckets map[key]*bucket
	hier    map[int64]*hbucket
}

// Index is the in-memory cross-reference structure, partitioned by a hash of
// (alphabet, method) so concurrent upserts against different methods contend
// on different locks. Value ordering inside a bucket is insertion order,
// which keeps query output deterministic regardless of map iteration order.
type Index struct {
	parts []*partition
}

// NewIndex creates an empty index with the given partition count.
func NewIndex(partitions int) *Index {
	if partitions <= 0 {
		partitions = 8
	}
	idx := &Index{parts: make([]*partition, partitions)}
	for i := range idx.parts {
		idx.parts[i] = &partition{
			buckets: make(map[key]*bucket),
			hier:    make(map[int64]*hbucket),
		}
	}
	return idx
}

func (idx *Index) partitionFor(alphabet string, method codec.MethodID) *partition {
	h := fnv.New32a()
	h.Write([]byte(alphabet))
	h.Write([]byte{0})
	h.Write([]byte(method))
	return idx.parts[int(h.Sum32())%len(idx.parts)]
}

// hierPartitionFor routes hierarchy entries by value so all relations sharing
// a hierarchy value land in one partition.
func (idx *Index) hierPartitionFor(value int64) *partition {
	h := fnv.New64a()
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(value >> (8 * i))
	}
	h.Write(buf[:])
	return idx.parts[int(h.Sum64()%uint64(len(idx.parts)))]
}

// Upsert inserts the ref, reporting whether it was new. Re-inserting a phrase
// under the same key is a no-op, which makes replay and ingestion retries
// idempotent.
func (idx *Index) Upsert(ref Ref) bool {
	p := idx.partitionFor(ref.Alphabet, ref.Method)
	k := key{alphabet: ref.Alphabet, method: ref.Method, value: ref.Value}

	p.mu.Lock()
	b, ok := p.buckets[k]
	if !ok {
		b = &bucket{seen: make(map[string]struct{})}
		p.buckets[k] = b
	}
	added := b.add(ref.PhraseID)
	p.mu.Unlock()

	if ref.Hierarchy {
		hp := idx.hierPartitionFor(ref.Value)
		rel := Relation{Alphabet: ref.Alphabet, Method: ref.Method, PhraseID: ref.PhraseID}
		hp.mu.Lock()
		hb, ok := hp.hier[ref.Value]
		if !ok {
			hb = &hbucket{seen: make(map[Relation]struct{})}
			hp.hier[ref.Value] = hb
		}
		hb.add(rel)
		hp.mu.Unlock()
	}
	return added
}

// Lookup returns the phrase identifiers sharing the value under (alphabet,
// method), in insertion order. The returned slice is a copy.
func (idx *Index) Lookup(alphabet string, method codec.MethodID, value int64) []string {
	p := idx.partitionFor(alphabet, method)
	k := key{alphabet: alphabet, method: method, value: value}
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.buckets[k]
	if !ok {
		return nil
	}
	out := make([]string, len(b.ids))
	copy(out, b.ids)
	return out
}

// LookupHierarchy returns every relation sharing the hierarchy value, across
// all alphabets and methods, in insertion order.
func (idx *Index) LookupHierarchy(value int64) []Relation {
	hp := idx.hierPartitionFor(value)
	hp.mu.RLock()
	defer hp.mu.RUnlock()
	hb, ok := hp.hier[value]
	if !ok {
		return nil
	}
	out := make([]Relation, len(hb.refs))
	copy(out, hb.refs)
	return out
}

// Keys returns the number of distinct (alphabet, method, value) keys per
// partition, for metrics.
func (idx *Index) Keys() []int {
	out := make([]int, len(idx.parts))
	for i, p := range idx.parts {
		p.mu.RLock()
		out[i] = len(p.buckets)
		p.mu.RUnlock()
	}
	return out
}

// Reset discards all entries, used before a full rebuild.
func (idx *Index) Reset() {
	for _, p := range idx.parts {
		p.mu.Lock()
		p.buckets = make(map[key]*bucket)
		p.hier = make(map[int64]*hbucket)
		p.mu.Unlock()
	}
}
