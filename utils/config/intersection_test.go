package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/perimeter-control/utils/config"
)

func TestDefaultIntersectionSetIsValid(t *testing.T) {
	set := config.DefaultIntersectionSet()
	assert.NoError(t, set.Validate())
	assert.Len(t, set.IntersectionIDs, 3)
}

func TestValidateRejectsBadWeights(t *testing.T) {
	set := config.DefaultIntersectionSet()
	set.Params.Theta1 = 0
	assert.Error(t, set.Validate())

	set = config.DefaultIntersectionSet()
	set.Params.Theta2 = -1
	assert.Error(t, set.Validate())
}

func TestValidateRejectsUnknownIntersection(t *testing.T) {
	set := config.DefaultIntersectionSet()
	set.IntersectionIDs = append(set.IntersectionIDs, "junction99")
	assert.Error(t, set.Validate())
}

func TestValidateRejectsUnknownSignal(t *testing.T) {
	set := config.DefaultIntersectionSet()
	c := set.Intersections[set.IntersectionIDs[0]]
	c.SignalID = "missing"
	set.Intersections[set.IntersectionIDs[0]] = c
	assert.Error(t, set.Validate())
}

func TestValidateRejectsBadPhaseIndex(t *testing.T) {
	set := config.DefaultIntersectionSet()
	c := set.Intersections[set.IntersectionIDs[0]]
	c.Primary.PhaseIndex = 5
	set.Intersections[set.IntersectionIDs[0]] = c
	assert.Error(t, set.Validate())
}

func TestValidateRejectsDuplicatedPhaseIndex(t *testing.T) {
	set := config.DefaultIntersectionSet()
	c := set.Intersections[set.IntersectionIDs[0]]
	c.Primary.PhaseIndex = c.Secondaries[0].PhaseIndex
	set.Intersections[set.IntersectionIDs[0]] = c
	assert.Error(t, set.Validate())
}

func TestValidateRejectsInfeasibleMinGreen(t *testing.T) {
	set := config.DefaultIntersectionSet()
	bad := int32(60) // 2相位×60 > 周期90
	c := set.Intersections[set.IntersectionIDs[0]]
	c.MinGreen = &bad
	set.Intersections[set.IntersectionIDs[0]] = c
	assert.Error(t, set.Validate())
}

func TestValidateRejectsBadPhaseParams(t *testing.T) {
	set := config.DefaultIntersectionSet()
	c := set.Intersections[set.IntersectionIDs[0]]
	c.Primary.SaturationFlow = 0
	set.Intersections[set.IntersectionIDs[0]] = c
	assert.Error(t, set.Validate())

	set = config.DefaultIntersectionSet()
	c = set.Intersections[set.IntersectionIDs[0]]
	c.Primary.TurnInRatio = 1.5
	set.Intersections[set.IntersectionIDs[0]] = c
	assert.Error(t, set.Validate())
}

func TestMinGreenAndMaxChangeFallback(t *testing.T) {
	set := config.DefaultIntersectionSet()
	c := set.Intersections[set.IntersectionIDs[0]]
	require.Nil(t, c.MinGreen)
	assert.Equal(t, set.Params.MinGreenTime, set.MinGreenOf(c))
	assert.Equal(t, set.Params.MaxChange, set.MaxChangeOf(c))

	localMin, localChange := int32(20), int32(3)
	c.MinGreen = &localMin
	c.MaxChange = &localChange
	assert.Equal(t, int32(20), set.MinGreenOf(c))
	assert.Equal(t, int32(3), set.MaxChangeOf(c))
}

func TestRuntimeConfigDefaults(t *testing.T) {
	rc := config.NewRuntimeConfig(config.Config{})
	assert.Equal(t, float64(1), rc.C.Step.Interval)
	assert.Equal(t, int32(90), rc.C.ControlInterval)
	assert.Equal(t, int32(10), rc.C.SamplingInterval)
	assert.Equal(t, int32(50), rc.C.AggregationInterval)
	assert.Equal(t, float64(1), rc.C.ActuationInterval)
}
