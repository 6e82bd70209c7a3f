package runner

import (
	"fmt"

	"github.com/notargets/warpsched/bucket"
	"github.com/notargets/warpsched/launch"
)

const scatterKernelName = "scatterWork"

// scatterKernelSource is the device form of scheduler.ScatterWork. Block
// size comes from the preamble, grid size and thread count are arguments;
// lanes at or above numThreads only round the grid up to whole blocks and
// write nothing.
const scatterKernelSource = `
@kernel void scatterWork(const unsigned int *warpStart,
                         const unsigned int *startPos,
                         const unsigned int *endPos,
                         unsigned int *taskIDs,
                         unsigned int *ranks,
                         unsigned int *widths,
                         const int numBlocks,
                         const long numThreads) {
	for (int block = 0; block < numBlocks; ++block; @outer) {
		for (int thread = 0; thread < THREADS_PER_BLOCK; ++thread; @inner) {
			const long gidWide = (long) block * THREADS_PER_BLOCK + thread;
			if (gidWide < numThreads) {
				const unsigned int gid = (unsigned int) gidWide;
				const unsigned int warp = gid / WARP_SIZE;
				const unsigned int lane = gid % WARP_SIZE;

				int b = 0;
				while (b < NUM_BUCKETS - 1 && warpStart[b + 1] <= warp) {
					++b;
				}

				const unsigned int width = b + 1;
				const unsigned int tasksPerWarp = WARP_SIZE / width;
				const unsigned int localWarp = (gid - warpStart[b] * WARP_SIZE) / WARP_SIZE;
				const unsigned int localTask = lane / width;

				unsigned int task = startPos[b] + localWarp * tasksPerWarp + localTask;
				if (localTask >= tasksPerWarp || task >= endPos[b]) {
					task = DISABLED_TASK;
				}

				taskIDs[gid] = task;
				ranks[gid] = lane % width;
				widths[gid] = width;
			}
		}
	}
}
`

// kernelPreamble fixes the block size for one build of the scatter kernel
func kernelPreamble(cfg launch.Config) string {
	return fmt.Sprintf(`#define WARP_SIZE %d
#define NUM_BUCKETS %d
#define DISABLED_TASK 0xFFFFFFFFu
#define THREADS_PER_BLOCK %d
`, bucket.WarpSize, bucket.NumBuckets, cfg.ThreadsPerBlock.X)
}

// kernelKey names the compiled kernel; one build serves every grid size
func kernelKey(cfg launch.Config) string {
	return fmt.Sprintf("%s_%d", scatterKernelName, cfg.ThreadsPerBlock.X)
}
