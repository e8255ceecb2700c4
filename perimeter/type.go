package perimeter

import (
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/perimeter-control/utils/config"
)

// PhaseSpec 单个受控相位的静态参数
type PhaseSpec struct {
	SaturationFlow float64 // 饱和流率（veh/绿灯秒）
	TurnInRatio    float64 // 转入保护区域的流量比例
	DefaultQueue   float64 // 默认排队长度（veh），无实时观测时使用
}

// IntersectionSpec 单个边界路口的静态参数
// 说明：主相位唯一，次相位数量可变（有序列表）；
// 所有相位时长满足 minGreen ≤ G ≤ cycle − minGreen，且各相位之和等于周期
type IntersectionSpec struct {
	ID          string      // 路口ID
	SignalID    string      // 对应信号灯控制器ID
	CycleLength int32       // 信号周期（秒）
	MinGreen    int32       // 最小绿灯时间（秒）
	MaxChange   int32       // 单周期最大调整量（秒）
	Primary     PhaseSpec   // 主相位
	Secondaries []PhaseSpec // 次相位
}

// NumPhases 返回路口受控相位总数
func (s *IntersectionSpec) NumPhases() int {
	return 1 + len(s.Secondaries)
}

// GreenTimes 单个路口的绿灯时间分配
type GreenTimes struct {
	Primary     int32   // 主相位绿灯时间（秒）
	Secondaries []int32 // 次相位绿灯时间（秒，有序）
}

// Sum 返回该路口所有相位绿灯时间之和
func (g GreenTimes) Sum() int32 {
	s := g.Primary
	for _, v := range g.Secondaries {
		s += v
	}
	return s
}

// clone 深拷贝
func (g GreenTimes) clone() GreenTimes {
	c := GreenTimes{Primary: g.Primary}
	if g.Secondaries != nil {
		c.Secondaries = make([]int32, len(g.Secondaries))
		copy(c.Secondaries, g.Secondaries)
	}
	return c
}

// GreenTimeAllocation 路口ID到绿灯时间分配的映射
type GreenTimeAllocation map[string]GreenTimes

// Clone 深拷贝分配结果
// 说明：快照发布前必须拷贝，保证已发布的快照不可变
func (a GreenTimeAllocation) Clone() GreenTimeAllocation {
	c := make(GreenTimeAllocation, len(a))
	for id, g := range a {
		c[id] = g.clone()
	}
	return c
}

// PhaseQueues 单个路口各相位的实时排队观测
type PhaseQueues struct {
	Primary     float64   // 主相位排队长度（veh）
	Secondaries []float64 // 次相位排队长度（veh，有序）
}

// LiveQueues 路口ID到实时排队观测的映射
// 说明：缺失的路口回退到各相位的默认排队长度
type LiveQueues map[string]PhaseQueues

// Globals 绿灯时间分配优化的全局参数
type Globals struct {
	Theta1             float64 // 目标流入偏差项权重
	Theta2             float64 // 排队利用率项权重
	DefaultCycleLength int32   // 全局默认信号周期（秒），veh/h到veh/周期换算用
}

// SpecsFromConfig 从路口配置构建静态参数集
// 功能：将配置层的路口定义转换为控制核心使用的参数结构
// 说明：按intersection_ids给定的顺序输出，保证分配结果的确定性
func SpecsFromConfig(set *config.IntersectionSet) []*IntersectionSpec {
	return lo.Map(set.IntersectionIDs, func(id string, _ int) *IntersectionSpec {
		c := set.Intersections[id]
		return &IntersectionSpec{
			ID:          id,
			SignalID:    c.SignalID,
			CycleLength: c.CycleLength,
			MinGreen:    set.MinGreenOf(c),
			MaxChange:   set.MaxChangeOf(c),
			Primary:     phaseSpecFromConfig(c.Primary),
			Secondaries: lo.Map(c.Secondaries, func(p config.PhaseConfig, _ int) PhaseSpec {
				return phaseSpecFromConfig(p)
			}),
		}
	})
}

func phaseSpecFromConfig(p config.PhaseConfig) PhaseSpec {
	return PhaseSpec{
		SaturationFlow: p.SaturationFlow,
		TurnInRatio:    p.TurnInRatio,
		DefaultQueue:   p.QueueLength,
	}
}

// GlobalsFromConfig 从路口配置提取优化全局参数
func GlobalsFromConfig(set *config.IntersectionSet) Globals {
	return Globals{
		Theta1:             set.Params.Theta1,
		Theta2:             set.Params.Theta2,
		DefaultCycleLength: set.Params.DefaultCycleLength,
	}
}

// DefaultAllocation 构造初始绿灯时间分配
// 功能：将每个路口的周期在各相位间均分
// 算法说明：次相位各取 cycle/相位数，主相位取余量，保证相位之和恰等于周期
func DefaultAllocation(specs []*IntersectionSpec) GreenTimeAllocation {
	a := make(GreenTimeAllocation, len(specs))
	for _, s := range specs {
		n := int32(s.NumPhases())
		base := s.CycleLength / n
		g := GreenTimes{
			Primary:     s.CycleLength - base*(n-1),
			Secondaries: make([]int32, len(s.Secondaries)),
		}
		for i := range g.Secondaries {
			g.Secondaries[i] = base
		}
		a[s.ID] = g
	}
	return a
}
