package signal_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/perimeter-control/signal"
	"github.com/tsinghua-fib-lab/perimeter-control/utils/config"
)

func newTestController(t *testing.T) *signal.Controller {
	t.Helper()
	c, err := signal.NewController("tl0", config.SignalConfig{
		Phases: []config.SignalPhaseConfig{
			{Duration: 45, State: "GGrr"},
			{Duration: 45, State: "rrGG"},
		},
		TotalCycle: 90,
	})
	require.NoError(t, err)
	return c
}

func TestNewControllerValidation(t *testing.T) {
	_, err := signal.NewController("tl0", config.SignalConfig{})
	assert.Error(t, err)

	_, err = signal.NewController("tl0", config.SignalConfig{
		Phases:     []config.SignalPhaseConfig{{Duration: 0, State: "G"}},
		TotalCycle: 0,
	})
	assert.Error(t, err)

	// 相位时长之和与周期不一致
	_, err = signal.NewController("tl0", config.SignalConfig{
		Phases:     []config.SignalPhaseConfig{{Duration: 30, State: "G"}, {Duration: 30, State: "r"}},
		TotalCycle: 90,
	})
	assert.Error(t, err)
}

func TestPhaseRotation(t *testing.T) {
	c := newTestController(t)
	c.Prepare()
	assert.Equal(t, 0, c.Step())
	assert.Equal(t, "GGrr", c.State())
	assert.InDelta(t, 45, c.RemainingTime(), 1e-9)

	for i := 0; i < 45; i++ {
		c.Update(1)
	}
	c.Prepare()
	assert.Equal(t, 1, c.Step())
	assert.Equal(t, "rrGG", c.State())

	for i := 0; i < 45; i++ {
		c.Update(1)
	}
	c.Prepare()
	assert.Equal(t, 0, c.Step())
}

func TestSetDurationsBufferedApply(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.SetDurations([]float64{60, 30}))

	// 下一次Update前snapshot不变
	c.Prepare()
	assert.Equal(t, []float64{45, 45}, c.Durations())

	c.Update(1)
	c.Prepare()
	assert.Equal(t, []float64{60, 30}, c.Durations())
	// 新程序从当前相位头部开始执行
	assert.InDelta(t, 59, c.RemainingTime(), 1e-9)
}

func TestSetDurationsValidation(t *testing.T) {
	c := newTestController(t)
	assert.Error(t, c.SetDurations([]float64{60}))
	assert.Error(t, c.SetDurations([]float64{60, 0}))
	assert.Error(t, c.SetDurations([]float64{60, -5}))
}

func TestUseDefaultRestoresProgram(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.SetDurations([]float64{60, 30}))
	c.Update(1)

	c.UseDefault()
	c.Update(1)
	c.Prepare()
	assert.Equal(t, []float64{45, 45}, c.Durations())
	assert.Equal(t, []float64{45, 45}, c.DefaultDurations())
}

func TestUpdateWithLargeStep(t *testing.T) {
	// dt大于相位时长时跳过耗尽的相位而不是停在0
	c, err := signal.NewController("tl1", config.SignalConfig{
		Phases: []config.SignalPhaseConfig{
			{Duration: 2, State: "G"},
			{Duration: 3, State: "r"},
		},
		TotalCycle: 5,
	})
	require.NoError(t, err)

	c.Update(7)
	c.Prepare()
	assert.Equal(t, 1, c.Step())
	assert.Positive(t, c.RemainingTime())
}
