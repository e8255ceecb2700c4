package solver_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/perimeter-control/solver"
)

func TestSolveSingleVar(t *testing.T) {
	// min (x − 3.4)²，x ∈ [0, 10]，最优整数解为x=3
	m := solver.NewModel("single")
	x := m.NewIntVar("x", 0, 10)
	m.AddSquareTerm(1, solver.NewLinExpr().AddTerm(x, 1).AddConst(-3.4))

	res := m.Solve(context.Background())
	require.Equal(t, solver.StatusOptimal, res.Status)
	assert.Equal(t, int32(3), res.Value(x))
	assert.InDelta(t, 0.16, res.Objective, 1e-9)
}

func TestSolveWithEquality(t *testing.T) {
	// min (x − 7)² + (y − 7)²  s.t. x + y = 10
	// 最优解为x=y=5，目标值2·4=8
	m := solver.NewModel("eq")
	x := m.NewIntVar("x", 0, 10)
	y := m.NewIntVar("y", 0, 10)
	m.AddConstraint(solver.NewLinExpr().AddTerm(x, 1).AddTerm(y, 1), solver.SenseEQ, 10, "sum")
	m.AddSquareTerm(1, solver.NewLinExpr().AddTerm(x, 1).AddConst(-7))
	m.AddSquareTerm(1, solver.NewLinExpr().AddTerm(y, 1).AddConst(-7))

	res := m.Solve(context.Background())
	require.Equal(t, solver.StatusOptimal, res.Status)
	assert.Equal(t, int32(5), res.Value(x))
	assert.Equal(t, int32(5), res.Value(y))
	assert.InDelta(t, 8, res.Objective, 1e-9)
}

func TestSolveWeightedTradeoff(t *testing.T) {
	// 权重不同的两项拉扯同一个变量，解偏向权重大的一侧
	m := solver.NewModel("weighted")
	x := m.NewIntVar("x", 0, 10)
	m.AddSquareTerm(10, solver.NewLinExpr().AddTerm(x, 1).AddConst(-8))
	m.AddSquareTerm(1, solver.NewLinExpr().AddTerm(x, 1).AddConst(-2))

	res := m.Solve(context.Background())
	require.Equal(t, solver.StatusOptimal, res.Status)
	// min 10(x−8)² + (x−2)²，连续最优为x=78/11≈7.09，整数最优为7
	assert.Equal(t, int32(7), res.Value(x))
}

func TestSolveInfeasible(t *testing.T) {
	m := solver.NewModel("infeasible")
	x := m.NewIntVar("x", 0, 5)
	y := m.NewIntVar("y", 0, 5)
	m.AddConstraint(solver.NewLinExpr().AddTerm(x, 1).AddTerm(y, 1), solver.SenseEQ, 100, "sum")
	m.AddSquareTerm(1, solver.NewLinExpr().AddTerm(x, 1))

	res := m.Solve(context.Background())
	assert.Equal(t, solver.StatusInfeasible, res.Status)
}

func TestSolveBuildError(t *testing.T) {
	m := solver.NewModel("bad")
	m.NewIntVar("x", 5, 1) // 空值域
	res := m.Solve(context.Background())
	assert.Equal(t, solver.StatusError, res.Status)
	assert.Error(t, res.Err)
}

func TestSolveDuplicatedName(t *testing.T) {
	m := solver.NewModel("dup")
	m.NewIntVar("x", 0, 1)
	m.NewIntVar("x", 0, 1)
	res := m.Solve(context.Background())
	assert.Equal(t, solver.StatusError, res.Status)
}

func TestSolveCancelled(t *testing.T) {
	// 足够大的搜索空间，保证取消信号在搜索完成前被检测到
	m := solver.NewModel("cancel")
	sum := solver.NewLinExpr()
	for i := 0; i < 12; i++ {
		v := m.NewIntVar(fmt.Sprintf("x%d", i), 0, 500)
		sum.AddTerm(v, 1)
		m.AddSquareTerm(1, solver.NewLinExpr().AddTerm(v, 1).AddConst(-250.3))
	}
	m.AddConstraint(sum, solver.SenseLE, 2000, "cap")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := m.Solve(ctx)
	assert.Contains(t, []solver.Status{solver.StatusFeasible, solver.StatusUnknown}, res.Status)
}

func TestSolveRateLimitedBox(t *testing.T) {
	// 绿灯时间分配的缩影：上一分配±5的窄盒加周期和约束
	m := solver.NewModel("box")
	p := m.NewIntVar("p", 15, 75)
	s := m.NewIntVar("s", 15, 75)
	m.AddConstraint(solver.NewLinExpr().AddTerm(p, 1), solver.SenseLE, 50, "p_up")
	m.AddConstraint(solver.NewLinExpr().AddTerm(p, 1), solver.SenseGE, 40, "p_down")
	m.AddConstraint(solver.NewLinExpr().AddTerm(s, 1), solver.SenseLE, 50, "s_up")
	m.AddConstraint(solver.NewLinExpr().AddTerm(s, 1), solver.SenseGE, 40, "s_down")
	m.AddConstraint(solver.NewLinExpr().AddTerm(p, 1).AddTerm(s, 1), solver.SenseEQ, 90, "cycle")
	m.AddSquareTerm(1, solver.NewLinExpr().AddTerm(p, 0.3).AddConst(-14))

	res := m.Solve(context.Background())
	require.Equal(t, solver.StatusOptimal, res.Status)
	// 0.3p=14 → p≈46.67，整数最优p=47，s=43
	assert.Equal(t, int32(47), res.Value(p))
	assert.Equal(t, int32(43), res.Value(s))
}
