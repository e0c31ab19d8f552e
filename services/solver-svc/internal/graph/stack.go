package graph

// Stack is a LIFO stack of vertices. It reuses its storage across Clear
// calls, so a solve allocates it once.
type Stack struct {
	data []int
}

// NewStack creates a stack with the given initial capacity.
func NewStack(capacity int) *Stack {
	return &Stack{data: make([]int, 0, capacity)}
}

// Push adds v on top. Amortized O(1).
func (s *Stack) Push(v int) {
	s.data = append(s.data, v)
}

// Pop removes and returns the top element.
//
// Panics if the stack is empty. Always check Empty() first.
func (s *Stack) Pop() int {
	v := s.data[len(s.data)-1]
	s.data = s.data[:len(s.data)-1]
	return v
}

// Top returns the top element without removing it.
func (s *Stack) Top() int {
	return s.data[len(s.data)-1]
}

// Empty reports whether the stack has no elements.
func (s *Stack) Empty() bool {
	return len(s.data) == 0
}

// Len returns the number of elements.
func (s *Stack) Len() int {
	return len(s.data)
}

// Clear removes all elements, keeping the storage.
func (s *Stack) Clear() {
	s.data = s.data[:0]
}

// Items returns the elements bottom to top. The slice is only valid until
// the next mutation.
func (s *Stack) Items() []int {
	return s.data
}

// Reverse reverses the element order in place.
func (s *Stack) Reverse() {
	for i, j := 0, len(s.data)-1; i < j; i, j = i+1, j-1 {
		s.data[i], s.data[j] = s.data[j], s.data[i]
	}
}
