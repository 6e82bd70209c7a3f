package bucket

import (
	"encoding/binary"
	"fmt"

	"github.com/zeebo/xxh3"
)

// WarpSize is the number of lanes that execute in lock-step
const WarpSize = 32

// NumBuckets is one bucket per possible task width (1..WarpSize)
const NumBuckets = WarpSize

// MaxTasks bounds the remapped id space; ids at or above it are reserved
// for the scheduler's sentinel values
const MaxTasks = 0xFFFFFFFE

// MaxThreads bounds NumThreads so every covered lane has a uint32 thread index
const MaxThreads = 0xFFFFFFFF

// Bucket describes all tasks sharing one required width
type Bucket struct {
	Index     int
	Width     uint32
	FirstWarp uint32 // Global warp index where the bucket's lanes begin
	NumWarps  uint32
	Start     uint32 // First remapped task id (inclusive)
	End       uint32 // Last remapped task id (exclusive)
}

// NumTasks returns the number of real tasks in the bucket
func (b Bucket) NumTasks() uint32 {
	return b.End - b.Start
}

// TasksPerWarp returns how many tasks of this width fit in one warp
func (b Bucket) TasksPerWarp() uint32 {
	return WarpSize / b.Width
}

// Empty reports whether the bucket holds no tasks
func (b Bucket) Empty() bool {
	return b.End == b.Start
}

// Table is the read-only view over the three parallel scheduling arrays.
// It is validated once by NewTable and never changes afterwards.
type Table struct {
	warpStart []uint32 // NumBuckets+1 entries, last one is the warp count sentinel
	startPos  []uint32 // NumBuckets entries
	endPos    []uint32 // NumBuckets entries
}

// NewTable copies and validates the bucket arrays produced by a table builder
func NewTable(warpStart, startPos, endPos []uint32) (*Table, error) {
	if len(warpStart) != NumBuckets+1 {
		return nil, fmt.Errorf("%w: %d warp thresholds, want %d",
			ErrInvalidLength, len(warpStart), NumBuckets+1)
	}
	if len(startPos) != NumBuckets || len(endPos) != NumBuckets {
		return nil, fmt.Errorf("%w: %d start / %d end positions, want %d",
			ErrInvalidLength, len(startPos), len(endPos), NumBuckets)
	}

	t := &Table{
		warpStart: append([]uint32(nil), warpStart...),
		startPos:  append([]uint32(nil), startPos...),
		endPos:    append([]uint32(nil), endPos...),
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) validate() error {
	if t.warpStart[0] != 0 {
		return fmt.Errorf("%w: first threshold is %d", ErrNonMonotonic, t.warpStart[0])
	}
	for i := 1; i <= NumBuckets; i++ {
		if t.warpStart[i] < t.warpStart[i-1] {
			return fmt.Errorf("%w: threshold[%d]=%d < threshold[%d]=%d",
				ErrNonMonotonic, i, t.warpStart[i], i-1, t.warpStart[i-1])
		}
	}

	if t.startPos[0] != 0 {
		return fmt.Errorf("%w: bucket 0 starts at %d", ErrPositionGap, t.startPos[0])
	}
	for i := 0; i < NumBuckets; i++ {
		if t.endPos[i] < t.startPos[i] {
			return fmt.Errorf("%w: bucket %d has end %d before start %d",
				ErrPositionOverlap, i, t.endPos[i], t.startPos[i])
		}
		if i > 0 {
			switch {
			case t.startPos[i] > t.endPos[i-1]:
				return fmt.Errorf("%w: bucket %d starts at %d, previous ends at %d",
					ErrPositionGap, i, t.startPos[i], t.endPos[i-1])
			case t.startPos[i] < t.endPos[i-1]:
				return fmt.Errorf("%w: bucket %d starts at %d, previous ends at %d",
					ErrPositionOverlap, i, t.startPos[i], t.endPos[i-1])
			}
		}
	}
	if t.endPos[NumBuckets-1] >= MaxTasks {
		return fmt.Errorf("%w: %d tasks", ErrTooManyTasks, t.endPos[NumBuckets-1])
	}
	if threads := uint64(t.warpStart[NumBuckets]) * WarpSize; threads > MaxThreads {
		return fmt.Errorf("%w: %d warps need %d threads", ErrTooManyWarps, t.warpStart[NumBuckets], threads)
	}

	for i := 0; i < NumBuckets; i++ {
		b := t.Bucket(i)
		capacity := uint64(b.NumWarps) * uint64(b.TasksPerWarp())
		if capacity < uint64(b.NumTasks()) {
			return fmt.Errorf("%w: bucket %d (width %d) has %d tasks but %d warps hold %d",
				ErrUncoveredTasks, i, b.Width, b.NumTasks(), b.NumWarps, capacity)
		}
	}
	return nil
}

// Bucket returns the description of bucket i (width i+1)
func (t *Table) Bucket(i int) Bucket {
	return Bucket{
		Index:     i,
		Width:     uint32(i + 1),
		FirstWarp: t.warpStart[i],
		NumWarps:  t.warpStart[i+1] - t.warpStart[i],
		Start:     t.startPos[i],
		End:       t.endPos[i],
	}
}

// Buckets returns all buckets in ascending width order, empty ones included
func (t *Table) Buckets() []Bucket {
	buckets := make([]Bucket, NumBuckets)
	for i := range buckets {
		buckets[i] = t.Bucket(i)
	}
	return buckets
}

// WarpStart returns the threshold at index i, i in [0, NumBuckets]
func (t *Table) WarpStart(i int) uint32 { return t.warpStart[i] }

// Start returns the first remapped id of bucket i
func (t *Table) Start(i int) uint32 { return t.startPos[i] }

// End returns the exclusive last remapped id of bucket i
func (t *Table) End(i int) uint32 { return t.endPos[i] }

// NumWarps is the total number of warps the table covers
func (t *Table) NumWarps() uint32 {
	return t.warpStart[NumBuckets]
}

// NumThreads is the number of threads a launch must provide for the table
func (t *Table) NumThreads() int {
	return int(t.NumWarps()) * WarpSize
}

// NumTasks is the size of the remapped task id space
func (t *Table) NumTasks() uint32 {
	return t.endPos[NumBuckets-1]
}

// Arrays returns copies of the three raw arrays for upload to a device
func (t *Table) Arrays() (warpStart, startPos, endPos []uint32) {
	return append([]uint32(nil), t.warpStart...),
		append([]uint32(nil), t.startPos...),
		append([]uint32(nil), t.endPos...)
}

// Fingerprint hashes the table contents. Equal tables hash equally.
func (t *Table) Fingerprint() uint64 {
	buf := make([]byte, 0, 4*(3*NumBuckets+1))
	for _, arr := range [][]uint32{t.warpStart, t.startPos, t.endPos} {
		for _, v := range arr {
			buf = binary.LittleEndian.AppendUint32(buf, v)
		}
	}
	return xxh3.Hash(buf)
}

// String prints the non-empty buckets
func (t *Table) String() string {
	s := fmt.Sprintf("Table{warps=%d tasks=%d", t.NumWarps(), t.NumTasks())
	for _, b := range t.Buckets() {
		if b.Empty() {
			continue
		}
		s += fmt.Sprintf(" w%d:[%d,%d)@%d+%d", b.Width, b.Start, b.End, b.FirstWarp, b.NumWarps)
	}
	return s + "}"
}
