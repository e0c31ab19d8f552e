package graph

// =============================================================================
// Rank Bucket Queue
// =============================================================================

// noVertex marks an empty list link.
const noVertex = -1

// RankBuckets maps every vertex to an integer rank in [0, maxRank] and keeps
// an intrusive doubly-linked list per rank (Dial's bucket queue).
//
// Both the global relabel and the price refinement are label-correcting
// sweeps over small integer distances, so a bucket array gives O(1)
// SetBucket/Next where a heap would cost O(log V). The structure is rebuilt
// every phase with Clear, which is O(V + maxRank).
//
// # Linked vs ranked
//
// A vertex always has a rank, but it is queued (linked into its bucket) only
// after SetBucket. Clear assigns a rank to every vertex without queuing any of
// them, and Next unlinks the head while leaving its rank readable. Callers
// rely on both: Clear(maxRank) means "unreached", Clear(0) means "no
// lowering needed".
//
// # Thread Safety
//
// RankBuckets is owned by a single solve and is NOT thread-safe.
type RankBuckets struct {
	maxRank int
	rank    []int
	first   []int // head vertex per rank
	next    []int
	prev    []int
	linked  []bool
}

// NewRankBuckets creates a bucket queue for size vertices and ranks
// 0..maxRank. Every vertex starts unlinked at rank 0.
func NewRankBuckets(maxRank, size int) *RankBuckets {
	b := &RankBuckets{
		maxRank: maxRank,
		rank:    make([]int, size),
		first:   make([]int, maxRank+1),
		next:    make([]int, size),
		prev:    make([]int, size),
		linked:  make([]bool, size),
	}
	b.Clear(0)
	return b
}

// MaxRank returns the largest admissible rank.
func (b *RankBuckets) MaxRank() int {
	return b.maxRank
}

// Clear assigns initialRank to every vertex and empties every bucket.
func (b *RankBuckets) Clear(initialRank int) {
	for i := range b.first {
		b.first[i] = noVertex
	}
	for v := range b.rank {
		b.rank[v] = initialRank
		b.linked[v] = false
	}
}

// Bucket returns the current rank of v.
func (b *RankBuckets) Bucket(v int) int {
	return b.rank[v]
}

// SetBucket moves v to bucket r, unlinking it from its previous bucket.
// O(1).
func (b *RankBuckets) SetBucket(v, r int) {
	if b.linked[v] {
		b.unlink(v)
	}
	b.rank[v] = r

	head := b.first[r]
	b.prev[v] = noVertex
	b.next[v] = head
	if head != noVertex {
		b.prev[head] = v
	}
	b.first[r] = v
	b.linked[v] = true
}

// HasNext reports whether bucket r has a queued vertex.
func (b *RankBuckets) HasNext(r int) bool {
	return b.first[r] != noVertex
}

// Next removes and returns the head of bucket r. The vertex keeps rank r.
//
// Panics if the bucket is empty. Always check HasNext() first.
func (b *RankBuckets) Next(r int) int {
	v := b.first[r]
	if v == noVertex {
		panic("graph: Next on empty bucket")
	}
	b.unlink(v)
	return v
}

func (b *RankBuckets) unlink(v int) {
	p, n := b.prev[v], b.next[v]
	if p == noVertex {
		b.first[b.rank[v]] = n
	} else {
		b.next[p] = n
	}
	if n != noVertex {
		b.prev[n] = p
	}
	b.linked[v] = false
}
