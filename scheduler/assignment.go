package scheduler

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/notargets/warpsched/bucket"
)

// State tags an Assignment so host code never compares against raw sentinels
type State uint8

const (
	NonAssigned State = iota // Zero value, not yet scheduled
	Active                   // Thread cooperates on Task
	Disabled                 // Padding lane, no work this launch
)

func (s State) String() string {
	switch s {
	case NonAssigned:
		return "NonAssigned"
	case Active:
		return "Active"
	case Disabled:
		return "Disabled"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Assignment is the host-side form of one thread's scheduling result.
// Task and Rank are meaningful only when State is Active.
type Assignment struct {
	Task  uint32
	Rank  uint32
	Width uint32
	State State
}

// FromRaw converts a raw ScatterWork triple, e.g. one copied back from a device
func FromRaw(taskID, rank, width uint32) Assignment {
	switch taskID {
	case DisabledTask:
		return Assignment{Rank: rank, Width: width, State: Disabled}
	case NonAssignedTask:
		return Assignment{}
	default:
		return Assignment{Task: taskID, Rank: rank, Width: width, State: Active}
	}
}

// Raw returns the triple as ScatterWork would have produced it
func (a Assignment) Raw() (taskID, rank, width uint32) {
	switch a.State {
	case Active:
		return a.Task, a.Rank, a.Width
	case Disabled:
		return DisabledTask, a.Rank, a.Width
	default:
		return NonAssignedTask, 0, 0
	}
}

func (a Assignment) String() string {
	if a.State != Active {
		return a.State.String()
	}
	return fmt.Sprintf("task %d rank %d/%d", a.Task, a.Rank, a.Width)
}

// Assign is the tagged form of ScatterWork
func Assign(globalThreadIdx uint32, t *bucket.Table) Assignment {
	return FromRaw(ScatterWork(globalThreadIdx, t))
}

// Scatter evaluates every thread index in [0, numThreads) the way one kernel
// launch would. Work is split into contiguous warp-aligned ranges, one per
// worker goroutine; each worker writes only its own range of the result.
func Scatter(t *bucket.Table, numThreads int) []Assignment {
	if numThreads <= 0 {
		return nil
	}
	result := make([]Assignment, numThreads)

	numWarps := (numThreads + bucket.WarpSize - 1) / bucket.WarpSize
	numWorkers := runtime.NumCPU()
	if numWarps < numWorkers {
		numWorkers = numWarps
	}
	warpsPerWorker := (numWarps + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for workerID := 0; workerID < numWorkers; workerID++ {
		start := workerID * warpsPerWorker * bucket.WarpSize
		end := start + warpsPerWorker*bucket.WarpSize
		if end > numThreads {
			end = numThreads
		}
		if start >= end {
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			for gid := start; gid < end; gid++ {
				result[gid] = Assign(uint32(gid), t)
			}
		}()
	}
	wg.Wait()

	return result
}

// Occupancy summarises lane usage of one launch
type Occupancy struct {
	Active   int // Lanes cooperating on a task
	Disabled int // Padding lanes
	Tasks    int // Distinct tasks that received at least one lane
}

// Lanes is the total number of lanes counted
func (o Occupancy) Lanes() int {
	return o.Active + o.Disabled
}

// Efficiency is the fraction of lanes doing useful work
func (o Occupancy) Efficiency() float64 {
	if o.Lanes() == 0 {
		return 0
	}
	return float64(o.Active) / float64(o.Lanes())
}

// Measure counts active and disabled lanes in a scatter result
func Measure(assignments []Assignment) Occupancy {
	var o Occupancy
	for _, a := range assignments {
		switch a.State {
		case Active:
			o.Active++
			if a.Rank == 0 {
				o.Tasks++
			}
		case Disabled:
			o.Disabled++
		}
	}
	return o
}
