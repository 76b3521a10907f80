package recipe

// IDAllocator hands out calculation IDs. Explicitly authored IDs are
// claimed first; sequential assignment then fills the lowest free IDs. It
// carries no package-level state so concurrent compilations stay
// independent.
type IDAllocator struct {
	low   int
	taken map[int]bool
}

// NewIDAllocator starts allocation at 1.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{low: 1, taken: make(map[int]bool)}
}

// Claim reserves an explicit ID. It reports false when the ID was already
// taken.
func (a *IDAllocator) Claim(id int) bool {
	if id < 1 || a.taken[id] {
		return false
	}
	a.taken[id] = true
	return true
}

// Next reserves and returns the lowest unclaimed ID.
func (a *IDAllocator) Next() int {
	for a.taken[a.low] {
		a.low++
	}
	id := a.low
	a.taken[id] = true
	return id
}

// Block reserves the lowest run of n consecutive free IDs and returns them
// in order. Module expansion relies on each instance holding one
// contiguous run.
func (a *IDAllocator) Block(n int) []int {
	if n <= 0 {
		return nil
	}
	start := a.low
	for {
		free := true
		for i := start; i < start+n; i++ {
			if a.taken[i] {
				start = i + 1
				free = false
				break
			}
		}
		if free {
			break
		}
	}
	ids := make([]int, n)
	for i := range ids {
		ids[i] = start + i
		a.taken[start+i] = true
	}
	return ids
}
