// Package segment splits a requested video length into generation jobs and
// derives the prompt used for each of them.
package segment

import (
	"math"
	"time"
)

const (
	// BaseSeconds is the length of the first, freshly generated segment.
	BaseSeconds = 8
	// ExtensionSeconds is the maximum length of every chained extension.
	ExtensionSeconds = 7
)

// Plan returns the ordered segment durations for total seconds of video.
// Requests at or below BaseSeconds produce a single segment of exactly the
// requested length. Plan does not bound the number of segments.
func Plan(total int) []int {
	if total <= BaseSeconds {
		return []int{total}
	}
	plan := make([]int, 0, Count(total))
	plan = append(plan, BaseSeconds)
	for remaining := total - BaseSeconds; remaining > 0; {
		step := min(ExtensionSeconds, remaining)
		plan = append(plan, step)
		remaining -= step
	}
	return plan
}

// Count returns len(Plan(total)) without building the plan.
func Count(total int) int {
	if total <= BaseSeconds {
		return 1
	}
	return 1 + (total-BaseSeconds+ExtensionSeconds-1)/ExtensionSeconds
}

// Total sums the durations of a plan.
func Total(plan []int) int {
	sum := 0
	for _, d := range plan {
		sum += d
	}
	return sum
}

// MaxDuration is the longest request that fits in maxSegments segments.
func MaxDuration(maxSegments int) int {
	if maxSegments <= 1 {
		return BaseSeconds
	}
	return BaseSeconds + (maxSegments-1)*ExtensionSeconds
}

// EstimateMinutes rounds up the expected wall time of a plan given the
// average latency of one segment.
func EstimateMinutes(plan []int, perSegment time.Duration) int {
	if len(plan) == 0 || perSegment <= 0 {
		return 0
	}
	total := time.Duration(len(plan)) * perSegment
	return int(math.Ceil(total.Minutes()))
}
