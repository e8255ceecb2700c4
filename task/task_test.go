package task_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/perimeter-control/task"
	"github.com/tsinghua-fib-lab/perimeter-control/utils/config"
)

func testConfig() config.Config {
	// 40个采样足够覆盖300步（每10步采样一次）
	replay := make([]float64, 40)
	for i := range replay {
		replay[i] = 80 + float64(i%4)*10
	}
	return config.Config{
		Control: config.Control{
			Step:                config.ControlStep{Start: 0, Total: 300, Interval: 1},
			ControlInterval:     90,
			SamplingInterval:    10,
			AggregationInterval: 50,
			ActuationInterval:   1,
		},
		Controller: config.Controller{
			KP:            20,
			KI:            5,
			NHat:          75,
			InitialInflow: 300,
		},
		Replay: config.Replay{Accumulation: replay},
	}
}

func TestRunWithReplayProvider(t *testing.T) {
	c := testConfig()
	ctx := task.NewContext("test", "", c, nil)
	ctx.Run()

	// 回放序列全程高于激活阈值63.75
	assert.True(t, ctx.Controller().IsActive())
	assert.GreaterOrEqual(t, ctx.Clock().InternalStep+1, ctx.Clock().END_STEP)

	snap := ctx.Controller().Board().Load()
	require.NotNil(t, snap)
	assert.True(t, snap.IsActive)
	assert.NotEmpty(t, snap.GreenTimes)
}

func TestRunWritesHistory(t *testing.T) {
	c := testConfig()
	c.Output.SQLite = t.TempDir() + "/history.db"
	ctx := task.NewContext("test", "", c, nil)
	ctx.Run()

	assert.FileExists(t, c.Output.SQLite)
}

func TestCloseStopsRun(t *testing.T) {
	c := testConfig()
	c.Control.Step.Total = 1 << 30
	ctx := task.NewContext("test", "", c, nil)
	ctx.Close()
	// closed标志已置位，Run执行一步后立即返回
	ctx.Run()
	assert.Less(t, ctx.Clock().InternalStep, int32(10))
}
