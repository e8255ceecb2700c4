package task

import (
	"flag"
	"time"

	"git.fiblab.net/general/common/v2/parallel"

	"github.com/tsinghua-fib-lab/perimeter-control/collector"
	"github.com/tsinghua-fib-lab/perimeter-control/signal"
)

const (
	SelfName = "perimeter" // 本程序在控制任务集群中的名字
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
)

// prepare 准备阶段，每步执行一次
// 功能：推进时钟并输出心跳日志
func (ctx *Context) prepare() {
	ctx.clock.InternalStep++
	ctx.clock.T = float64(ctx.clock.InternalStep) * ctx.clock.DT

	if ctx.clock.InternalStep%int32(*heartBeatInterval) == 0 {
		hour, minute, second := ctx.clock.GetHourMinuteSecond()
		log.Infof(
			"STEP: %d(%d:%d:%.2f)",
			ctx.clock.InternalStep,
			hour, minute, second,
		)
	}
}

// update 更新阶段，每步执行一次
// 功能：按步数节拍执行采样、聚合与控制周期
// 算法说明：
// 1. 采样周期步：从数据源取样并压入聚合器，失败只记录警告
// 2. 聚合周期步：将累积采样折叠为均值
// 3. 控制周期步：执行一个控制周期；无可用聚合数据时保持状态
func (ctx *Context) update() {
	step := ctx.clock.InternalStep
	c := ctx.runtimeConfig.C

	if step%c.SamplingInterval == 0 {
		if s, err := ctx.provider.Sample(); err != nil {
			log.Warnf("measurement sample failed at step %d: %v", step, err)
		} else {
			ctx.agg.Push(s)
		}
	}
	if step%c.AggregationInterval == 0 {
		ctx.agg.Fold()
	}
	if step%c.ControlInterval == 0 {
		ctx.controlCycle()
	}
}

// controlCycle 执行一个控制周期
// 功能：将最近聚合结果交给控制核心，并记录周期历史
func (ctx *Context) controlCycle() {
	agg, ok := ctx.agg.Latest()
	if !ok {
		// 可恢复故障：无测量数据，保持状态等待恢复
		log.Warnf("no aggregated measurement at step %d, hold control state", ctx.clock.InternalStep)
		ctx.controller.Hold()
		return
	}
	res := ctx.controller.Step(ctx.runCtx, agg.Accumulation, agg.Queues)
	log.Debugf("control cycle at step %d: n=%.1f active=%v qg=%.2f",
		ctx.clock.InternalStep, agg.Accumulation, res.Active, res.TargetInflow)
	ctx.history.Write(collector.Record{
		Step:           ctx.clock.InternalStep,
		Time:           ctx.clock.T,
		Accumulation:   agg.Accumulation,
		Active:         res.Active,
		TargetInflow:   res.TargetInflow,
		SolverStatus:   string(res.SolverStatus),
		Objective:      res.Objective,
		RealizedInflow: res.RealizedInflow,
		Allocation:     res.Allocation,
	})
}

// actuationLoop 灯控下发循环
// 功能：按墙上时钟周期读取快照板并应用到信号灯控制器
// 说明：独立goroutine运行，独占所有信号灯控制器；
// 快照读取是无锁原子操作，任何下发失败都不会传播到控制循环
func (ctx *Context) actuationLoop() {
	defer close(ctx.actuationDone)
	interval := time.Duration(ctx.runtimeConfig.C.ActuationInterval * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	board := ctx.controller.Board()
	for {
		select {
		case <-ctx.actuationStop:
			return
		case <-ticker.C:
			ctx.act.Apply(board.Load())
			parallel.GoFor(ctx.signals, func(s *signal.Controller) {
				s.Update(interval.Seconds())
			})
			parallel.GoFor(ctx.signals, func(s *signal.Controller) { s.Prepare() })
		}
	}
}

// Run 运行
// 功能：启动灯控下发循环并逐步推进控制循环直至结束或关闭
func (ctx *Context) Run() {
	ctx.clock.Init()
	go ctx.actuationLoop()

	for {
		ctx.prepare()
		ctx.update()
		if ctx.clock.InternalStep+1 >= ctx.clock.END_STEP || ctx.closed.Load() {
			break
		}
	}

	close(ctx.actuationStop)
	<-ctx.actuationDone
	ctx.history.Close()
	log.Infof("perimeter control complete")
}
