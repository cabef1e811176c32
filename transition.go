package rampselect

import (
	"math"

	"golang.org/x/exp/constraints"
)

// clamp restricts v to [lo, hi], mirroring the saturation requirement every
// Transition must uphold (never emit a weight outside [0, targetWeight]).
func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Transition is a pure function mapping the current step of a ramp-up to
// the weight an endpoint should carry. Implementations must satisfy:
//
//   - Transition(0, total, target) == 0 (never observed in practice; steps
//     start at 1).
//   - Transition(total, total, target) == target (exact, not a lossy
//     approximation of the final step).
//   - Monotonic non-decreasing in step.
//   - 0 <= result <= target for all inputs.
//
// Transition is a closed capability (a function value), not a type
// hierarchy: callers supply whichever implementation fits, without
// subclassing anything.
type Transition func(step, totalSteps, targetWeight int) int

// LinearTransition is the default Transition: floor(target * step / total),
// special-cased at step >= total so graduation is exact even though the
// division above is lossy for intermediate steps.
func LinearTransition(step, totalSteps, targetWeight int) int {
	if totalSteps <= 0 {
		return targetWeight
	}
	if step <= 0 {
		return 0
	}
	if step >= totalSteps {
		return targetWeight
	}
	w := (targetWeight * step) / totalSteps
	return clamp(w, 0, targetWeight)
}

// ExponentialTransition returns a Transition that grows the effective
// weight along an exponential curve rather than linearly, reaching the
// same endpoints (0 at step 0, target at totalSteps) as LinearTransition.
// curve must be > 0; values above 1 bias weight growth toward the later
// steps (slower start), values between 0 and 1 bias it toward the earlier
// steps (faster start). curve == 1 is equivalent to LinearTransition.
func ExponentialTransition(curve float64) Transition {
	if curve <= 0 {
		curve = 1
	}
	if curve == 1 {
		return LinearTransition
	}
	return func(step, totalSteps, targetWeight int) int {
		if totalSteps <= 0 {
			return targetWeight
		}
		if step <= 0 {
			return 0
		}
		if step >= totalSteps {
			return targetWeight
		}
		ratio := math.Pow(float64(step)/float64(totalSteps), curve)
		w := int(float64(targetWeight) * ratio)
		return clamp(w, 0, targetWeight)
	}
}
