package perimeter

import (
	"context"
	"fmt"
	"math"

	"github.com/tsinghua-fib-lab/perimeter-control/solver"
)

// 激活/解除阈值相对目标累积量的比例
const (
	activationRatio   = 0.85
	deactivationRatio = 0.70
)

// Options 控制器构造参数
type Options struct {
	KP            float64 // 比例增益（h⁻¹）
	KI            float64 // 积分增益（h⁻¹）
	NHat          float64 // 目标累积量（veh）
	InitialInflow float64 // 初始目标流入量（veh/h）
	InitialN      float64 // 初始累积量（veh），用作第一个周期的n(k−1)
	Globals       Globals
	Specs         []*IntersectionSpec
}

// Controller 边界控制器
// 功能：实现激活滞回状态机、PI控制律与绿灯时间分配的每周期编排
// 说明：整个生命周期由控制循环单独持有，内部状态不做并发保护；
// 与灯控下发循环的唯一交互通道是快照发布板
type Controller struct {
	kp, ki float64 // 增益（h⁻¹），构造时确定，之后不再换算
	nHat   float64

	activationThreshold   float64
	deactivationThreshold float64

	isActive   bool
	prevInflow float64 // qg(k−1)，veh/h
	prevN      float64 // n(k−1)，veh

	specs   []*IntersectionSpec
	globals Globals

	// 上一次成功求解的绿灯时间分配，求解失败时保持不变
	greens GreenTimeAllocation

	board *Board
}

// New 创建边界控制器
// 功能：初始化控制状态、默认分配与快照发布板
// 返回：控制器实例；参数非法时返回错误（启动阶段致命）
// 算法说明：
// 1. 激活阈值取0.85·n̂，解除阈值取0.70·n̂
// 2. 初始分配为各路口周期均分，随初始快照（未激活）一并发布
func New(opts Options) (*Controller, error) {
	if opts.NHat <= 0 {
		return nil, fmt.Errorf("invalid target accumulation %v", opts.NHat)
	}
	if opts.KP < 0 || opts.KI < 0 {
		return nil, fmt.Errorf("invalid gains kp=%v ki=%v", opts.KP, opts.KI)
	}
	if len(opts.Specs) == 0 {
		return nil, fmt.Errorf("no intersections to control")
	}
	c := &Controller{
		kp:                    opts.KP,
		ki:                    opts.KI,
		nHat:                  opts.NHat,
		activationThreshold:   activationRatio * opts.NHat,
		deactivationThreshold: deactivationRatio * opts.NHat,
		prevInflow:            math.Max(opts.InitialInflow, 0),
		prevN:                 opts.InitialN,
		specs:                 opts.Specs,
		globals:               opts.Globals,
	}
	c.greens = DefaultAllocation(c.specs)
	c.board = NewBoard(false, c.greens)
	log.Infof("perimeter controller initialized: %d intersections, n̂=%.0f, activate>%.2f, deactivate<%.2f",
		len(c.specs), c.nHat, c.activationThreshold, c.deactivationThreshold)
	return c, nil
}

// Board 返回快照发布板
func (c *Controller) Board() *Board {
	return c.board
}

// IsActive 返回当前激活状态
func (c *Controller) IsActive() bool {
	return c.isActive
}

// TargetInflow 返回最近一次计算的目标流入量（veh/h）
func (c *Controller) TargetInflow() float64 {
	return c.prevInflow
}

// GreenTimes 返回当前绿灯时间分配的拷贝
func (c *Controller) GreenTimes() GreenTimeAllocation {
	return c.greens.Clone()
}

// checkActivation 激活滞回状态机
// 功能：根据当前累积量更新激活状态
// 算法说明：
// 1. n > 激活阈值：进入激活态
// 2. n < 解除阈值：退出激活态
// 3. 两阈值之间（滞回带）：状态保持不变，避免在设定点附近抖动
// 说明：比较均为严格不等式，恰好等于阈值不触发切换
func (c *Controller) checkActivation(n float64) {
	if n > c.activationThreshold {
		if !c.isActive {
			log.Infof("perimeter control activated (n=%.0f > %.2f)", n, c.activationThreshold)
		}
		c.isActive = true
	} else if n < c.deactivationThreshold {
		if c.isActive {
			log.Infof("perimeter control deactivated (n=%.0f < %.2f)", n, c.deactivationThreshold)
		}
		c.isActive = false
	}
}

// NextTargetInflow PI控制律递推
// 功能：计算下一控制周期的目标流入量
// 参数：kp/ki-增益（h⁻¹），nHat-目标累积量，n-当前累积量，
// nPrev-上一周期累积量，qgPrev-上一周期目标流入量（veh/h）
// 返回：新目标流入量（veh/h），下限截断为0
// 算法说明：qg(k) = qg(k−1) − kp·(n(k)−n(k−1)) + ki·(n̂−n(k))，
// 增益以h⁻¹计、qg以veh/h计，公式内不再做任何单位换算
func NextTargetInflow(kp, ki, nHat, n, nPrev, qgPrev float64) float64 {
	qg := qgPrev - kp*(n-nPrev) + ki*(nHat-n)
	if qg < 0 {
		return 0
	}
	return qg
}

// StepResult 单个控制周期的执行结果
type StepResult struct {
	Active         bool
	TargetInflow   float64             // 目标流入量（veh/h），未激活时为保持值
	Allocation     GreenTimeAllocation // 本周期结束后的分配（拷贝）
	Updated        bool                // 本周期是否替换了分配
	SolverStatus   solver.Status       // 求解状态，未激活周期为空
	Objective      float64             // 目标函数值，仅Updated时有效
	RealizedInflow float64             // 按主相位推算的实际流入量（veh/周期），仅Updated时有效
}

// Step 执行一个控制周期
// 功能：按顺序执行激活判定、PI递推与绿灯时间分配，并发布快照
// 参数：ctx-上下文（取消时求解尽快返回），n-当前累积量，queues-实时排队观测（可为nil）
// 返回：周期执行结果
// 算法说明：
// 1. 激活判定：无论结果如何，本周期末尾都会发布携带当前激活标志的快照
// 2. 未激活：不执行PI与分配求解，qg保持上值
// 3. 激活：PI递推得到qg(k)，交给分配器求解
// 4. 仅在求解状态为optimal时替换内部分配；其余状态保持上一次分配（可恢复故障）
// 5. 周期末尾整体发布快照，读者不可能看到半新半旧的组合
func (c *Controller) Step(ctx context.Context, n float64, queues LiveQueues) StepResult {
	nPrev := c.prevN
	c.prevN = n

	c.checkActivation(n)
	if !c.isActive {
		c.publish()
		return StepResult{Active: false, TargetInflow: c.prevInflow, Allocation: c.greens.Clone()}
	}

	qg := NextTargetInflow(c.kp, c.ki, c.nHat, n, nPrev, c.prevInflow)
	log.Debugf("PI: e=%.1f dn=%.1f qg=%.2f veh/h", c.nHat-n, n-nPrev, qg)
	c.prevInflow = qg

	res := c.allocate(ctx, qg, queues)
	if res.status == solver.StatusOptimal {
		c.greens = res.greens
		log.Infof("green times updated: objective=%.4f realized inflow=%.2f veh/cycle",
			res.objective, res.realizedInflow)
	} else {
		// 可恢复故障：保持上一次分配，下个周期重试
		log.Warnf("allocation solve not optimal (%s), keep previous green times", res.status)
	}

	c.publish()
	return StepResult{
		Active:         true,
		TargetInflow:   qg,
		Allocation:     c.greens.Clone(),
		Updated:        res.status == solver.StatusOptimal,
		SolverStatus:   res.status,
		Objective:      res.objective,
		RealizedInflow: res.realizedInflow,
	}
}

// Hold 保持当前状态并重新发布快照
// 功能：测量数据缺失的周期跳过PI与分配，仅重新发布当前激活标志与分配
func (c *Controller) Hold() {
	c.publish()
}

// publish 将当前激活标志与分配整体发布到快照板
func (c *Controller) publish() {
	c.board.Publish(c.isActive, c.greens)
}
