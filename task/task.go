package task

import (
	"context"
	"sync/atomic"

	"github.com/tsinghua-fib-lab/perimeter-control/actuator"
	"github.com/tsinghua-fib-lab/perimeter-control/clock"
	"github.com/tsinghua-fib-lab/perimeter-control/collector"
	"github.com/tsinghua-fib-lab/perimeter-control/measure"
	"github.com/tsinghua-fib-lab/perimeter-control/perimeter"
	"github.com/tsinghua-fib-lab/perimeter-control/signal"
	"github.com/tsinghua-fib-lab/perimeter-control/utils/config"
	"github.com/tsinghua-fib-lab/perimeter-control/utils/input"
)

// Context 边界控制任务上下文
// 功能：包含一次控制任务的所有组件与状态，替代全局变量
// 说明：控制循环在Run所在goroutine逐步推进；灯控下发循环是独立
// goroutine，独占信号灯控制器，两者只通过快照发布板交互
type Context struct {

	// 任务名
	job string
	// 关闭指令
	closed atomic.Bool
	// 在途求解的取消函数，关闭时让控制循环尽快返回
	runCtx context.Context
	cancel context.CancelFunc
	// 灯控下发循环的退出通知
	actuationStop chan struct{}
	actuationDone chan struct{}

	// 时钟
	clock *clock.Clock
	// 运行时配置文件
	runtimeConfig *config.RuntimeConfig
	// 用于初始化的输入
	initRes *input.Input

	// 控制核心
	controller *perimeter.Controller
	// 信号灯控制器，只允许灯控下发循环访问
	signals []*signal.Controller
	// 灯控下发执行器
	act *actuator.Actuator

	// 测量数据源
	provider measure.Provider
	// 采样聚合器
	agg *measure.Aggregator
	// 控制周期历史记录器
	history *collector.Collector
}

// NewContext 创建边界控制任务上下文
// 功能：加载输入、初始化控制核心与各协作组件
// 参数：job-任务名，cacheDir-缓存目录，c-配置对象，
// provider-测量数据源，为nil时回退到配置中的回放序列
// 返回：初始化完成的Context实例
// 说明：配置与组装错误均为启动阶段致命错误，直接panic退出
func NewContext(job string, cacheDir string, c config.Config, provider measure.Provider) *Context {
	ctx := &Context{
		job:           job,
		actuationStop: make(chan struct{}),
		actuationDone: make(chan struct{}),
	}
	ctx.runCtx, ctx.cancel = context.WithCancel(context.Background())
	ctx.clock = clock.New(c.Control.Step)
	ctx.runtimeConfig = config.NewRuntimeConfig(c)

	// 下载控制器启动所需的数据
	ctx.initRes = input.Init(c, cacheDir)
	set := ctx.initRes.Intersections

	controller, err := perimeter.New(perimeter.Options{
		KP:            c.Controller.KP,
		KI:            c.Controller.KI,
		NHat:          c.Controller.NHat,
		InitialInflow: c.Controller.InitialInflow,
		Globals:       perimeter.GlobalsFromConfig(set),
		Specs:         perimeter.SpecsFromConfig(set),
	})
	if err != nil {
		log.Panicf("failed to create perimeter controller: %v", err)
	}
	ctx.controller = controller

	signals := make(map[string]*signal.Controller, len(set.Signals))
	for id, cfg := range set.Signals {
		s, err := signal.NewController(id, cfg)
		if err != nil {
			log.Panicf("failed to create signal controller: %v", err)
		}
		signals[id] = s
		ctx.signals = append(ctx.signals, s)
	}
	ctx.act, err = actuator.New(set, signals)
	if err != nil {
		log.Panicf("failed to create actuator: %v", err)
	}

	if provider == nil {
		if len(c.Replay.Accumulation) == 0 {
			log.Panicf("no measurement data source configured")
		}
		provider = measure.NewReplay(c.Replay.Accumulation)
	}
	ctx.provider = provider
	ctx.agg = measure.NewAggregator()

	ctx.history, err = collector.Open(c.Output.SQLite)
	if err != nil {
		log.Panicf("failed to open history database: %v", err)
	}
	return ctx
}

// Clock 返回时钟
func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

// Controller 返回控制核心
func (ctx *Context) Controller() *perimeter.Controller {
	return ctx.controller
}

// RuntimeConfig 返回运行时配置
func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

// GetInput 返回初始化输入
func (ctx *Context) GetInput() *input.Input {
	return ctx.initRes
}

// Close 请求停止运行
// 功能：标记关闭并取消在途求解，Run在当前步结束后退出
// 说明：可在任意goroutine调用，重复调用为空操作
func (ctx *Context) Close() {
	if ctx.closed.Swap(true) {
		return
	}
	ctx.cancel()
}
