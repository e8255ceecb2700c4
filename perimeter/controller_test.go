package perimeter_test

import (
	"context"
	"flag"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/perimeter-control/perimeter"
	"github.com/tsinghua-fib-lab/perimeter-control/solver"
	"github.com/tsinghua-fib-lab/perimeter-control/utils/config"
)

func testOptions(t *testing.T) perimeter.Options {
	t.Helper()
	set := config.DefaultIntersectionSet()
	require.NoError(t, set.Validate())
	return perimeter.Options{
		KP:            20,
		KI:            5,
		NHat:          75,
		InitialInflow: 300,
		InitialN:      0,
		Globals:       perimeter.GlobalsFromConfig(set),
		Specs:         perimeter.SpecsFromConfig(set),
	}
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	opts := testOptions(t)
	opts.NHat = 0
	_, err := perimeter.New(opts)
	assert.Error(t, err)

	opts = testOptions(t)
	opts.KP = -1
	_, err = perimeter.New(opts)
	assert.Error(t, err)

	opts = testOptions(t)
	opts.Specs = nil
	_, err = perimeter.New(opts)
	assert.Error(t, err)
}

func TestPIRecurrence(t *testing.T) {
	// n̂=75、n=80、n(k−1)=75、qg(k−1)=300时
	// qg = 300 − kp·5 + ki·(75−80)
	kp, ki := 10.0, 4.0
	qg := perimeter.NextTargetInflow(kp, ki, 75, 80, 75, 300)
	assert.InDelta(t, 300-kp*5+ki*(-5), qg, 1e-9)

	// 下限截断为0
	qg = perimeter.NextTargetInflow(100, 100, 75, 200, 75, 0)
	assert.Equal(t, 0.0, qg)
}

func TestActivationBoundaryStrictness(t *testing.T) {
	c, err := perimeter.New(testOptions(t))
	require.NoError(t, err)
	ctx := context.Background()

	// 恰好等于激活阈值（63.75）不激活
	c.Step(ctx, 63.75, nil)
	assert.False(t, c.IsActive())

	c.Step(ctx, 64, nil)
	assert.True(t, c.IsActive())

	// 恰好等于解除阈值（52.5）不解除
	c.Step(ctx, 52.5, nil)
	assert.True(t, c.IsActive())

	c.Step(ctx, 52, nil)
	assert.False(t, c.IsActive())
}

func TestNoChatterInsideHysteresisBand(t *testing.T) {
	c, err := perimeter.New(testOptions(t))
	require.NoError(t, err)
	ctx := context.Background()

	c.Step(ctx, 70, nil)
	require.True(t, c.IsActive())

	// 滞回带(52.5, 63.75)内的任意序列不翻转状态
	for _, n := range []float64{63, 53, 60, 55, 63.7, 52.6, 58} {
		c.Step(ctx, n, nil)
		assert.True(t, c.IsActive(), "n=%v", n)
	}
}

func TestScenarioSequence(t *testing.T) {
	// n̂=75 ⇒ 激活阈值63.75、解除阈值52.5
	// 序列首步激活且全程保持激活
	c, err := perimeter.New(testOptions(t))
	require.NoError(t, err)
	ctx := context.Background()

	for i, n := range []float64{80, 90, 100, 110, 105, 95, 80, 75} {
		res := c.Step(ctx, n, nil)
		assert.True(t, res.Active, "step %d (n=%v)", i, n)
	}
}

func TestAllocationFeasibility(t *testing.T) {
	opts := testOptions(t)
	c, err := perimeter.New(opts)
	require.NoError(t, err)
	ctx := context.Background()

	prev := c.GreenTimes()
	ns := []float64{80, 90, 100, 110, 105, 95, 80, 75}
	for _, n := range ns {
		res := c.Step(ctx, n, nil)
		require.True(t, res.Active)
		if !res.Updated {
			continue
		}
		for _, s := range opts.Specs {
			g, ok := res.Allocation[s.ID]
			require.True(t, ok)
			// 相位之和等于周期
			assert.Equal(t, s.CycleLength, g.Sum(), "intersection %s", s.ID)
			// 各相位在[minGreen, cycle−minGreen]内
			all := append([]int32{g.Primary}, g.Secondaries...)
			prevAll := append([]int32{prev[s.ID].Primary}, prev[s.ID].Secondaries...)
			for i, v := range all {
				assert.GreaterOrEqual(t, v, s.MinGreen)
				assert.LessOrEqual(t, v, s.CycleLength-s.MinGreen)
				// 调整量不超过±maxChange
				diff := v - prevAll[i]
				if diff < 0 {
					diff = -diff
				}
				assert.LessOrEqual(t, diff, s.MaxChange)
			}
		}
		prev = res.Allocation
	}
}

func TestFallbackKeepsAllocation(t *testing.T) {
	// 压缩搜索节点数上限让求解无法得出结论，检验分配保持不变
	require.NoError(t, flag.Set("solver.max_nodes", "1"))
	defer flag.Set("solver.max_nodes", "200000")

	c, err := perimeter.New(testOptions(t))
	require.NoError(t, err)

	before := c.GreenTimes()
	res := c.Step(context.Background(), 100, nil)
	require.True(t, res.Active)
	require.False(t, res.Updated)
	assert.NotEqual(t, solver.StatusOptimal, res.SolverStatus)

	assert.Equal(t, before, c.GreenTimes())
	assert.Equal(t, before, c.Board().Load().GreenTimes)
	assert.Equal(t, before, res.Allocation)
}

func TestInactiveCycleSkipsAllocation(t *testing.T) {
	c, err := perimeter.New(testOptions(t))
	require.NoError(t, err)
	ctx := context.Background()

	before := c.GreenTimes()
	res := c.Step(ctx, 10, nil)
	assert.False(t, res.Active)
	assert.False(t, res.Updated)
	assert.Equal(t, before, res.Allocation)
	// 未激活周期保持qg不变
	assert.Equal(t, 300.0, res.TargetInflow)
}

func TestSnapshotAtomicity(t *testing.T) {
	c, err := perimeter.New(testOptions(t))
	require.NoError(t, err)
	board := c.Board()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			// 读者只通过快照板访问，每次读到的都是完整对象
			snap := board.Load()
			assert.NotNil(t, snap)
			for _, g := range snap.GreenTimes {
				assert.Positive(t, g.Sum())
			}
		}
	}()

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		n := 80.0 + float64(i%5)*10
		c.Step(ctx, n, nil)
	}
	close(stop)
	wg.Wait()
}

func TestPublishedSnapshotIsImmutable(t *testing.T) {
	c, err := perimeter.New(testOptions(t))
	require.NoError(t, err)
	ctx := context.Background()

	snap := c.Board().Load()
	want := snap.GreenTimes.Clone()

	// 后续周期的内部状态变化不会污染已读到的快照
	for _, n := range []float64{80, 100, 110} {
		c.Step(ctx, n, nil)
	}
	assert.Equal(t, want, snap.GreenTimes)
}

func TestDefaultAllocationEvenSplit(t *testing.T) {
	specs := perimeter.SpecsFromConfig(config.DefaultIntersectionSet())
	a := perimeter.DefaultAllocation(specs)
	for _, s := range specs {
		g := a[s.ID]
		assert.Equal(t, s.CycleLength, g.Sum())
	}
}
