// Package scheduler maps physical GPU threads onto variable-width tasks.
//
// ScatterWork is the per-thread mapping executed by every lane of a launch.
// It reads only the immutable bucket.Table and returns raw values so the
// hot path stays branch-light; Assign and Scatter wrap it for host code.
package scheduler

import (
	"github.com/notargets/warpsched/bucket"
)

// Raw sentinel task ids
const (
	// DisabledTask marks a padding lane with no task this launch
	DisabledTask uint32 = 0xFFFFFFFF
	// NonAssignedTask is the pre-scheduling state; ScatterWork never returns it
	NonAssignedTask uint32 = 0xFFFFFFFE
)

// ScatterWork returns the task id, the rank of the thread inside the task's
// cooperating group, and the group width for the thread at globalThreadIdx.
// Padding lanes get DisabledTask. The launch must not exceed the table's
// NumThreads; thread indices beyond it resolve to the last bucket and come
// back disabled.
func ScatterWork(globalThreadIdx uint32, t *bucket.Table) (taskID, rank, width uint32) {
	globalWarpIdx := globalThreadIdx / bucket.WarpSize
	laneIdx := globalThreadIdx % bucket.WarpSize

	// Highest bucket whose first warp is at or before this warp
	bucketIdx := 0
	for bucketIdx < bucket.NumBuckets-1 && t.WarpStart(bucketIdx+1) <= globalWarpIdx {
		bucketIdx++
	}

	width = uint32(bucketIdx) + 1
	tasksPerWarp := bucket.WarpSize / width
	localThreadInBucket := globalThreadIdx - t.WarpStart(bucketIdx)*bucket.WarpSize
	startTaskInWarp := (localThreadInBucket / bucket.WarpSize) * tasksPerWarp
	localTaskInWarp := laneIdx / width
	rank = laneIdx % width

	taskID = t.Start(bucketIdx) + startTaskInWarp + localTaskInWarp
	if localTaskInWarp >= tasksPerWarp || taskID >= t.End(bucketIdx) {
		taskID = DisabledTask
	}
	return taskID, rank, width
}
