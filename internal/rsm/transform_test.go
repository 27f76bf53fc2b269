package rsm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/doepilot/internal/doe"
)

func TestApplyTransformLog(t *testing.T) {
	z, _, err := applyTransform([]float64{1, math.E, math.E * math.E}, doe.TransformLog, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0, z[0], 1e-12)
	assert.InDelta(t, 1, z[1], 1e-12)
	assert.InDelta(t, 2, z[2], 1e-12)

	_, _, err = applyTransform([]float64{1, 0}, doe.TransformLog, nil)
	assert.Error(t, err, "log transform must reject non-positive values")
}

func TestBoxCoxFixedLambdaRoundTrips(t *testing.T) {
	lambda := 0.5
	for _, v := range []float64{0.5, 1, 2, 10} {
		z := boxCox(v, lambda)
		assert.InDelta(t, v, inverseTransform(z, doe.TransformBoxCox, lambda), 1e-9)
	}
	// Lambda zero degenerates to log.
	assert.InDelta(t, math.Log(3), boxCox(3, 0), 1e-12)
}

func TestBoxCoxInverseSaturatesOutsideImage(t *testing.T) {
	// For lambda=2 the image is z > -1/2; below it the inverse saturates.
	assert.Zero(t, inverseTransform(-5, doe.TransformBoxCox, 2))
}

func TestApplyTransformBoxCoxUsesFixedLambda(t *testing.T) {
	lambda := 1.0
	y := []float64{1, 2, 3}
	z, used, err := applyTransform(y, doe.TransformBoxCox, &lambda)
	require.NoError(t, err)
	assert.Equal(t, 1.0, used)
	assert.InDelta(t, 0, z[0], 1e-12) // (1^1 - 1)/1
	assert.InDelta(t, 1, z[1], 1e-12)
}

func TestEstimateLambdaStaysOnGrid(t *testing.T) {
	y := []float64{0.5, 1.1, 2.3, 4.9, 10.2, 21.5}
	lambda := estimateLambda(y)
	assert.GreaterOrEqual(t, lambda, -2.0)
	assert.LessOrEqual(t, lambda, 2.0+1e-9)
}
