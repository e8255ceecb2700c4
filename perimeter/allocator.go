package perimeter

import (
	"context"
	"fmt"

	"github.com/tsinghua-fib-lab/perimeter-control/solver"
)

// allocResult 单次绿灯时间分配求解的内部结果
type allocResult struct {
	status         solver.Status
	objective      float64
	greens         GreenTimeAllocation
	realizedInflow float64 // Σ 主相位绿灯·饱和流率·转入比（veh/周期）
}

// allocate 绿灯时间分配求解
// 功能：在约束下求各路口相位绿灯时间，使实际流入量贴近PI目标且排队利用均衡
// 参数：ctx-上下文，qg-目标流入量（veh/h），queues-实时排队观测（可为nil）
// 返回：求解结果；status为optimal时greens才有效
// 算法说明：
// 1. 目标流入量换算为veh/周期：qg′ = qg·T_cycle/3600，这是整个模型中唯一的单位换算
// 2. 每相位一个整数变量，界为[minGreen, cycle−minGreen]
// 3. 约束：各路口相位之和等于周期；相对上周期分配的调整量不超过±maxChange
// 4. 目标：θ1·(Σ 主相位G·s·β − qg′)² + θ2·Σ各相位(1 − G·s/(q+1))²
// 5. 排队长度优先取实时观测，观测缺失的路口或相位回退到默认值
func (c *Controller) allocate(ctx context.Context, qg float64, queues LiveQueues) allocResult {
	qgPrime := qg * float64(c.globals.DefaultCycleLength) / 3600

	m := solver.NewModel("green-time-allocation")
	inflowExpr := solver.NewLinExpr().AddConst(-qgPrime)
	all := make(map[string][]*solver.Var, len(c.specs))

	for _, s := range c.specs {
		prev := c.greens[s.ID]
		lb, ub := s.MinGreen, s.CycleLength-s.MinGreen
		q, hasLive := queues[s.ID]

		pvs := make([]*solver.Var, 0, s.NumPhases())
		cycleExpr := solver.NewLinExpr()
		for i := 0; i < s.NumPhases(); i++ {
			var (
				spec    PhaseSpec
				prevG   int32
				liveQ   float64
				hasQ    bool
				varName string
			)
			if i == 0 {
				spec, prevG = s.Primary, prev.Primary
				liveQ, hasQ = q.Primary, hasLive
				varName = fmt.Sprintf("G_%s_p", s.ID)
			} else {
				spec, prevG = s.Secondaries[i-1], prev.Secondaries[i-1]
				if hasLive && i-1 < len(q.Secondaries) {
					liveQ, hasQ = q.Secondaries[i-1], true
				}
				varName = fmt.Sprintf("G_%s_s%d", s.ID, i-1)
			}
			queue := spec.DefaultQueue
			if hasQ {
				queue = liveQ
			}

			v := m.NewIntVar(varName, lb, ub)
			m.AddConstraint(solver.NewLinExpr().AddTerm(v, 1), solver.SenseLE,
				float64(prevG+s.MaxChange), varName+"_up")
			m.AddConstraint(solver.NewLinExpr().AddTerm(v, 1), solver.SenseGE,
				float64(prevG-s.MaxChange), varName+"_down")
			cycleExpr.AddTerm(v, 1)

			if i == 0 {
				inflowExpr.AddTerm(v, spec.SaturationFlow*spec.TurnInRatio)
			}
			// 排队利用率项：1 − G·s/(q+1)，希望绿灯供给与排队需求匹配
			m.AddSquareTerm(c.globals.Theta2,
				solver.NewLinExpr().AddConst(1).AddTerm(v, -spec.SaturationFlow/(queue+1)))

			pvs = append(pvs, v)
		}
		m.AddConstraint(cycleExpr, solver.SenseEQ, float64(s.CycleLength), s.ID+"_cycle")
		all[s.ID] = pvs
	}
	m.AddSquareTerm(c.globals.Theta1, inflowExpr)

	res := m.Solve(ctx)
	out := allocResult{status: res.Status, objective: res.Objective}
	if res.Status != solver.StatusOptimal {
		return out
	}

	out.greens = make(GreenTimeAllocation, len(c.specs))
	for _, s := range c.specs {
		pvs := all[s.ID]
		g := GreenTimes{
			Primary:     res.Value(pvs[0]),
			Secondaries: make([]int32, len(pvs)-1),
		}
		for i, pv := range pvs[1:] {
			g.Secondaries[i] = res.Value(pv)
		}
		out.greens[s.ID] = g
		out.realizedInflow += float64(g.Primary) * s.Primary.SaturationFlow * s.Primary.TurnInRatio
	}
	return out
}
