package grid

import "fmt"

// Scrollback is a bounded history of rows evicted from the top of the grid.
// When full, the oldest row is discarded first.
type Scrollback struct {
	lines    []Row
	start    int
	count    int
	capacity int
}

// NewScrollback creates a scrollback store holding at most capacity rows
func NewScrollback(capacity int) *Scrollback {
	if capacity < 0 {
		capacity = 0
	}
	return &Scrollback{
		lines:    make([]Row, capacity),
		capacity: capacity,
	}
}

// Push appends a row, evicting the oldest one when the store is full
func (s *Scrollback) Push(row Row) {
	if s.capacity == 0 {
		return
	}

	if s.count < s.capacity {
		s.lines[(s.start+s.count)%s.capacity] = row
		s.count++
		return
	}

	// Full: overwrite the oldest slot and advance the start
	s.lines[s.start] = row
	s.start = (s.start + 1) % s.capacity
}

// Len returns the number of rows held
func (s *Scrollback) Len() int {
	return s.count
}

// Cap returns the maximum number of rows held
func (s *Scrollback) Cap() int {
	return s.capacity
}

// Line returns a copy of the i-th row, where 0 is the oldest
func (s *Scrollback) Line(i int) (Row, error) {
	if i < 0 || i >= s.count {
		return nil, fmt.Errorf("scrollback line %d out of range (len: %d)", i, s.count)
	}
	return s.lines[(s.start+i)%s.capacity].Clone(), nil
}

// Lines returns copies of all rows, oldest first
func (s *Scrollback) Lines() []Row {
	out := make([]Row, s.count)
	for i := 0; i < s.count; i++ {
		out[i] = s.lines[(s.start+i)%s.capacity].Clone()
	}
	return out
}

// Clear drops all rows
func (s *Scrollback) Clear() {
	s.lines = make([]Row, s.capacity)
	s.start = 0
	s.count = 0
}

// SetCapacity changes the bound, keeping the newest rows that still fit
func (s *Scrollback) SetCapacity(capacity int) error {
	if capacity < 0 {
		return fmt.Errorf("scrollback capacity cannot be negative, got: %d", capacity)
	}
	if capacity == s.capacity {
		return nil
	}

	keep := min(s.count, capacity)
	lines := make([]Row, capacity)
	for i := 0; i < keep; i++ {
		lines[i] = s.lines[(s.start+s.count-keep+i)%s.capacity]
	}

	s.lines = lines
	s.start = 0
	s.count = keep
	s.capacity = capacity
	return nil
}
