package bucket

import (
	"errors"
	"fmt"
)

// Sentinel errors returned while building or validating a Table.
var (
	// ErrInvalidTable is the parent of every table validation error.
	ErrInvalidTable = errors.New("invalid bucket table")

	// ErrInvalidLength is returned when an array does not have one entry per bucket.
	ErrInvalidLength = fmt.Errorf("%w: wrong array length", ErrInvalidTable)

	// ErrNonMonotonic is returned when warp thresholds decrease or do not start at zero.
	ErrNonMonotonic = fmt.Errorf("%w: warp thresholds not monotonic", ErrInvalidTable)

	// ErrPositionGap is returned when bucket position ranges leave ids uncovered.
	ErrPositionGap = fmt.Errorf("%w: gap between bucket positions", ErrInvalidTable)

	// ErrPositionOverlap is returned when bucket position ranges overlap.
	ErrPositionOverlap = fmt.Errorf("%w: overlapping bucket positions", ErrInvalidTable)

	// ErrUncoveredTasks is returned when a bucket has fewer warps than its tasks need.
	ErrUncoveredTasks = fmt.Errorf("%w: bucket warps do not cover its tasks", ErrInvalidTable)

	// ErrTooManyTasks is returned when task ids would reach the reserved sentinel range.
	ErrTooManyTasks = fmt.Errorf("%w: task id space exhausted", ErrInvalidTable)

	// ErrTooManyWarps is returned when the covered lanes exceed the uint32 thread index range.
	ErrTooManyWarps = fmt.Errorf("%w: warp count exceeds thread index range", ErrInvalidTable)

	// ErrInvalidWidth is returned by the builder for widths outside [1, WarpSize].
	ErrInvalidWidth = errors.New("task width out of range")
)
