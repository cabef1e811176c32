package rampselect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinearTransition(t *testing.T) {
	assert.Equal(t, 0, LinearTransition(0, 10, 1000))
	assert.Equal(t, 100, LinearTransition(1, 10, 1000))
	assert.Equal(t, 500, LinearTransition(5, 10, 1000))
	assert.Equal(t, 1000, LinearTransition(10, 10, 1000))
	assert.Equal(t, 1000, LinearTransition(11, 10, 1000), "steps beyond total still graduate exactly")
}

func TestLinearTransition_monotonic(t *testing.T) {
	const total = 10
	const target = 999 // deliberately not a multiple of total
	prev := -1
	for step := 0; step <= total; step++ {
		w := LinearTransition(step, total, target)
		assert.GreaterOrEqual(t, w, prev)
		assert.GreaterOrEqual(t, w, 0)
		assert.LessOrEqual(t, w, target)
		prev = w
	}
	assert.Equal(t, target, prev, "final step must equal target exactly")
}

func TestExponentialTransition(t *testing.T) {
	tr := ExponentialTransition(2)
	assert.Equal(t, 0, tr(0, 10, 1000))
	assert.Equal(t, 1000, tr(10, 10, 1000))

	prev := -1
	for step := 0; step <= 10; step++ {
		w := tr(step, 10, 1000)
		assert.GreaterOrEqual(t, w, prev)
		prev = w
	}
}

func TestExponentialTransition_defaultsCurveWhenNonPositive(t *testing.T) {
	linearish := ExponentialTransition(0)
	assert.Equal(t, LinearTransition(5, 10, 1000), linearish(5, 10, 1000))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, clamp(-5, 0, 10))
	assert.Equal(t, 10, clamp(15, 0, 10))
	assert.Equal(t, 5, clamp(5, 0, 10))
}
