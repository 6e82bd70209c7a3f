package bucket

import (
	"fmt"
)

// Task is a unit of work before and after bucketing by width
type Task struct {
	Source   uint32 // Original position in the caller's task list
	Remapped uint32 // Position after grouping by width
	Width    uint32 // Cooperating threads required, in [1, WarpSize]
}

// Histogram counts the tasks of each width; entry i holds width i+1
type Histogram [NumBuckets]uint32

// NewHistogram counts widths, rejecting any width outside [1, WarpSize]
func NewHistogram(widths []uint32) (Histogram, error) {
	var h Histogram
	for i, w := range widths {
		if w == 0 || w > WarpSize {
			return h, fmt.Errorf("%w: task %d has width %d", ErrInvalidWidth, i, w)
		}
		h[w-1]++
	}
	return h, nil
}

// Total returns the number of tasks counted
func (h Histogram) Total() uint64 {
	var n uint64
	for _, c := range h {
		n += uint64(c)
	}
	return n
}

// FromHistogram lays out buckets back to back: each bucket gets
// ceil(count / tasksPerWarp) whole warps and a contiguous id range
func FromHistogram(h Histogram) (*Table, error) {
	if h.Total() >= MaxTasks {
		return nil, fmt.Errorf("%w: %d tasks", ErrTooManyTasks, h.Total())
	}

	warpStart := make([]uint32, NumBuckets+1)
	startPos := make([]uint32, NumBuckets)
	endPos := make([]uint32, NumBuckets)

	var warp uint64
	var pos uint32
	for i, count := range h {
		tasksPerWarp := uint64(WarpSize / (i + 1))
		warpStart[i] = uint32(warp)
		startPos[i] = pos
		pos += count
		endPos[i] = pos
		warp += (uint64(count) + tasksPerWarp - 1) / tasksPerWarp
		if warp*WarpSize > MaxThreads {
			return nil, fmt.Errorf("%w: %d tasks of width %d or less need %d warps",
				ErrTooManyWarps, h.Total(), i+1, warp)
		}
	}
	warpStart[NumBuckets] = uint32(warp)

	return NewTable(warpStart, startPos, endPos)
}

// Build groups tasks by width and returns the table together with the
// remapped task list, ordered by remapped id. Tasks of equal width keep
// their original relative order.
func Build(widths []uint32) (*Table, []Task, error) {
	h, err := NewHistogram(widths)
	if err != nil {
		return nil, nil, err
	}
	table, err := FromHistogram(h)
	if err != nil {
		return nil, nil, err
	}

	next := make([]uint32, NumBuckets)
	for i := range next {
		next[i] = table.Start(i)
	}

	tasks := make([]Task, len(widths))
	for src, w := range widths {
		id := next[w-1]
		next[w-1]++
		tasks[id] = Task{
			Source:   uint32(src),
			Remapped: id,
			Width:    w,
		}
	}
	return table, tasks, nil
}
