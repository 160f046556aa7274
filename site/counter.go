package site

import (
	"math"
	"time"
)

// Stat counters animate over this many steps within CounterDuration.
const (
	CounterSteps    = 100
	CounterDuration = 2 * time.Second
)

// CounterFrames returns the values an animated counter shows on its way to
// target: cumulative target/steps increments floored, ending exactly on target.
func CounterFrames(target, steps int) []int {
	if steps <= 0 {
		steps = CounterSteps
	}
	if target <= 0 {
		return []int{target}
	}

	increment := float64(target) / float64(steps)
	frames := make([]int, 0, steps)
	current := 0.0
	for {
		current += increment
		if current >= float64(target) {
			frames = append(frames, target)
			return frames
		}
		frames = append(frames, int(math.Floor(current)))
	}
}

// CounterStep is the delay between frames.
func CounterStep(steps int) time.Duration {
	if steps <= 0 {
		steps = CounterSteps
	}
	return CounterDuration / time.Duration(steps)
}
