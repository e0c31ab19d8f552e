package graph

// Path is the alternating vertex/arc stack grown by the blocking-flow search:
//
//	v0, e1, v1, e2, v2, ...
//
// v0 is the deficit vertex the search started from, ei is the arc
// v(i-1) -> vi that was followed. An in-path bitmap detects cycles in O(1).
type Path struct {
	items  []int
	inPath []bool
}

// NewPath creates a path over size vertices.
func NewPath(size int) *Path {
	return &Path{
		items:  make([]int, 0, 2*size+1),
		inPath: make([]bool, size),
	}
}

// Reset clears the path and starts it at v.
func (p *Path) Reset(v int) {
	for i := 0; i < len(p.items); i += 2 {
		p.inPath[p.items[i]] = false
	}
	p.items = append(p.items[:0], v)
	p.inPath[v] = true
}

// Empty reports whether the search has retreated past its start.
func (p *Path) Empty() bool {
	return len(p.items) == 0
}

// Tip returns the last vertex.
func (p *Path) Tip() int {
	return p.items[len(p.items)-1]
}

// Extend appends arc e and its head v. It returns true if v was already on
// the path, that is, the path now closes a cycle.
func (p *Path) Extend(e, v int) bool {
	p.items = append(p.items, e, v)
	if p.inPath[v] {
		return true
	}
	p.inPath[v] = true
	return false
}

// Retreat drops the tip and the arc leading to it. It returns false when the
// start vertex itself was dropped.
func (p *Path) Retreat() bool {
	tip := p.items[len(p.items)-1]
	p.inPath[tip] = false
	if len(p.items) == 1 {
		p.items = p.items[:0]
		return false
	}
	p.items = p.items[:len(p.items)-2]
	return true
}

// Hops returns the number of arcs on the path.
func (p *Path) Hops() int {
	return len(p.items) / 2
}

// Start returns the first vertex.
func (p *Path) Start() int {
	return p.items[0]
}

// Hop returns the i-th arc (0-based) with its tail and head.
func (p *Path) Hop(i int) (u, e, v int) {
	return p.items[2*i], p.items[2*i+1], p.items[2*i+2]
}
