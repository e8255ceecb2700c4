package pso

import (
	"context"
	"math"

	"github.com/tsinghua-fib-lab/perimeter-control/perimeter"
)

// PlantOptions 闭环整定用的简化区域模型参数
type PlantOptions struct {
	NHat           float64   // 目标累积量（veh）
	InitialN       float64   // 初始累积量（veh）
	InitialInflow  float64   // 初始目标流入量（veh/h）
	Demand         []float64 // 每个控制周期到达边界的需求（veh/周期）
	CompletionRate float64   // 每周期离开保护区域的累积量比例
	Globals        perimeter.Globals
	Specs          []*perimeter.IntersectionSpec
}

// NewTrackingObjective 构造闭环跟踪目标函数
// 功能：对给定增益组合运行一次完整闭环，返回累积量对目标值的平均绝对偏差
// 算法说明：
// 1. 每次评估新建一个边界控制器，按需求序列逐周期执行Step
// 2. 区域模型：n(k+1) = n(k) + 实际流入 − 完成率·n(k)，
//    激活周期的流入受分配推算的实际流入量（veh/周期）限制
// 3. 求解失败的周期沿用上一分配的流入限制，与在线行为一致
func NewTrackingObjective(opts PlantOptions) Objective {
	return func(kp, ki float64) float64 {
		c, err := perimeter.New(perimeter.Options{
			KP:            kp,
			KI:            ki,
			NHat:          opts.NHat,
			InitialInflow: opts.InitialInflow,
			InitialN:      opts.InitialN,
			Globals:       opts.Globals,
			Specs:         opts.Specs,
		})
		if err != nil {
			return math.Inf(1)
		}

		ctx := context.Background()
		n := opts.InitialN
		cost := 0.0
		// 未激活时边界全放行，流入限制为无穷
		allowed := math.Inf(1)
		for _, demand := range opts.Demand {
			res := c.Step(ctx, n, nil)
			if res.Active {
				if res.Updated {
					allowed = res.RealizedInflow
				}
			} else {
				allowed = math.Inf(1)
			}
			inflow := math.Min(demand, allowed)
			n = n + inflow - opts.CompletionRate*n
			if n < 0 {
				n = 0
			}
			cost += math.Abs(n - opts.NHat)
		}
		return cost / float64(len(opts.Demand))
	}
}
