package scheduler

import (
	"math/rand"
	"testing"

	"github.com/notargets/warpsched/bucket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableFromCounts(t *testing.T, counts map[uint32]uint32) *bucket.Table {
	t.Helper()
	var h bucket.Histogram
	for width, count := range counts {
		h[width-1] = count
	}
	table, err := bucket.FromHistogram(h)
	require.NoError(t, err)
	return table
}

// checkCoverage asserts every task of every bucket gets exactly Width lanes
// with ranks 0..Width-1, and every other lane is disabled
func checkCoverage(t *testing.T, table *bucket.Table) {
	t.Helper()
	numThreads := table.NumThreads()
	ranks := make(map[uint32][]uint32)

	for gid := 0; gid < numThreads; gid++ {
		id, rank, width := ScatterWork(uint32(gid), table)
		require.True(t, width >= 1 && width <= bucket.WarpSize)
		if id == DisabledTask {
			continue
		}
		require.NotEqual(t, NonAssignedTask, id)
		require.Less(t, id, table.NumTasks(), "thread %d", gid)
		require.Less(t, rank, width)
		ranks[id] = append(ranks[id], rank)
	}

	for _, b := range table.Buckets() {
		for id := b.Start; id < b.End; id++ {
			got := ranks[id]
			require.Len(t, got, int(b.Width), "task %d in bucket width %d", id, b.Width)
			seen := make([]bool, b.Width)
			for _, r := range got {
				require.False(t, seen[r], "task %d rank %d twice", id, r)
				seen[r] = true
			}
		}
	}
	assert.Len(t, ranks, int(table.NumTasks()))
}

func TestScatterWork_PaddingLaneScenario(t *testing.T) {
	table := tableFromCounts(t, map[uint32]uint32{1: 40, 4: 10})
	require.Equal(t, uint32(4), table.NumWarps())

	// Warp 3, lane 20: width 4, local warp 1, task 40 + 8 + 5 = 53 >= 50
	gid := uint32(3*bucket.WarpSize + 20)
	id, rank, width := ScatterWork(gid, table)
	assert.Equal(t, DisabledTask, id)
	assert.Equal(t, uint32(4), width)
	assert.Equal(t, uint32(0), rank)

	// Warp 3, lane 5: task 40 + 8 + 1 = 49 is the last real task
	id, rank, width = ScatterWork(3*bucket.WarpSize+5, table)
	assert.Equal(t, uint32(49), id)
	assert.Equal(t, uint32(1), rank)
	assert.Equal(t, uint32(4), width)

	// Warp 1, lane 7: width 1 task 39
	id, rank, width = ScatterWork(bucket.WarpSize+7, table)
	assert.Equal(t, uint32(39), id)
	assert.Equal(t, uint32(0), rank)
	assert.Equal(t, uint32(1), width)

	// Warp 1, lane 8 would be task 40, past the width-1 bucket
	id, _, _ = ScatterWork(bucket.WarpSize+8, table)
	assert.Equal(t, DisabledTask, id)

	checkCoverage(t, table)
}

func TestScatterWork_FullWarpWidth(t *testing.T) {
	table := tableFromCounts(t, map[uint32]uint32{32: 3})
	for warp := uint32(0); warp < 3; warp++ {
		for lane := uint32(0); lane < bucket.WarpSize; lane++ {
			id, rank, width := ScatterWork(warp*bucket.WarpSize+lane, table)
			assert.Equal(t, warp, id)
			assert.Equal(t, lane, rank)
			assert.Equal(t, uint32(bucket.WarpSize), width)
		}
	}
}

func TestScatterWork_SingleLaneWidth(t *testing.T) {
	table := tableFromCounts(t, map[uint32]uint32{1: 64})
	for gid := uint32(0); gid < 64; gid++ {
		id, rank, width := ScatterWork(gid, table)
		assert.Equal(t, gid, id)
		assert.Equal(t, uint32(0), rank)
		assert.Equal(t, uint32(1), width)
	}
}

func TestScatterWork_RemainderLanesDisabled(t *testing.T) {
	// Width 3 fits 10 tasks per warp; lanes 30 and 31 are remainder lanes
	table := tableFromCounts(t, map[uint32]uint32{3: 25})
	require.Equal(t, uint32(3), table.NumWarps())

	for warp := uint32(0); warp < 3; warp++ {
		for _, lane := range []uint32{30, 31} {
			id, _, width := ScatterWork(warp*bucket.WarpSize+lane, table)
			assert.Equal(t, DisabledTask, id, "warp %d lane %d", warp, lane)
			assert.Equal(t, uint32(3), width)
		}
	}
	checkCoverage(t, table)
}

func TestScatterWork_EveryWidth(t *testing.T) {
	for width := uint32(1); width <= bucket.WarpSize; width++ {
		table := tableFromCounts(t, map[uint32]uint32{width: 37})
		checkCoverage(t, table)
	}
}

func TestScatterWork_RandomTables(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 40; trial++ {
		widths := make([]uint32, rng.Intn(1500)+1)
		for i := range widths {
			widths[i] = uint32(rng.Intn(bucket.WarpSize)) + 1
		}
		table, _, err := bucket.Build(widths)
		require.NoError(t, err)
		checkCoverage(t, table)
	}
}

func TestScatterWork_EmptyTable(t *testing.T) {
	table := tableFromCounts(t, nil)
	id, _, width := ScatterWork(0, table)
	assert.Equal(t, DisabledTask, id)
	assert.Equal(t, uint32(bucket.WarpSize), width)
}

func TestScatterWork_BeyondTableIsDisabled(t *testing.T) {
	table := tableFromCounts(t, map[uint32]uint32{2: 16})
	for _, gid := range []uint32{32, 33, 100, 1 << 20} {
		id, _, _ := ScatterWork(gid, table)
		assert.Equal(t, DisabledTask, id, "thread %d", gid)
	}
}

func TestScatterWork_Idempotent(t *testing.T) {
	table := tableFromCounts(t, map[uint32]uint32{1: 5, 7: 9, 16: 3, 31: 2})
	for gid := uint32(0); gid < uint32(table.NumThreads()); gid++ {
		id1, r1, w1 := ScatterWork(gid, table)
		id2, r2, w2 := ScatterWork(gid, table)
		assert.Equal(t, id1, id2)
		assert.Equal(t, r1, r2)
		assert.Equal(t, w1, w2)
	}
}

func BenchmarkScatterWork(b *testing.B) {
	widths := make([]uint32, 100000)
	rng := rand.New(rand.NewSource(1))
	for i := range widths {
		widths[i] = uint32(rng.Intn(bucket.WarpSize)) + 1
	}
	table, _, err := bucket.Build(widths)
	if err != nil {
		b.Fatal(err)
	}
	n := uint32(table.NumThreads())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ScatterWork(uint32(i)%n, table)
	}
}
