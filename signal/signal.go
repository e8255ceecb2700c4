package signal

import (
	"fmt"

	"github.com/tsinghua-fib-lab/perimeter-control/utils/config"
)

// Phase 信号灯程序中的一个相位
type Phase struct {
	Duration float64 // 相位持续时间（秒）
	State    string  // 相位状态描述（如GGrr）
}

// Program 固定相位信号灯程序
type Program struct {
	Phases     []Phase
	TotalCycle float64 // 程序总周期（秒）
}

// clone 深拷贝
func (p Program) clone() Program {
	c := Program{TotalCycle: p.TotalCycle}
	c.Phases = make([]Phase, len(p.Phases))
	copy(c.Phases, p.Phases)
	return c
}

// runtime 信号灯运行时数据结构
// 功能：存储固定相位信号灯的运行时状态，包括程序、相位索引、剩余时间
type runtime struct {
	program    Program
	step       int     // 当前相位索引
	remainingT float64 // 当前相位剩余时间（秒）
}

// Controller 本地固定相位信号灯控制器
// 功能：按照预设的相位顺序和时间进行切换，支持运行中重设相位时长
// 说明：runtime只由仿真推进方写入；外部写入先进buffer，
// 下一次Update时生效；snapshot在Prepare时整体拷贝，供读者使用
type Controller struct {
	id string

	defaults Program // 构造时的默认程序，UseDefault恢复用

	snapshot runtime
	runtime  runtime
	buffer   *runtime
}

// NewController 创建固定相位信号灯控制器
// 功能：校验默认程序并初始化运行时状态
// 参数：id-信号灯ID，cfg-默认程序配置
// 返回：控制器实例；程序非法时返回错误（启动阶段致命）
func NewController(id string, cfg config.SignalConfig) (*Controller, error) {
	if len(cfg.Phases) == 0 {
		return nil, fmt.Errorf("signal %s: empty program", id)
	}
	p := Program{TotalCycle: float64(cfg.TotalCycle)}
	sum := 0.0
	for i, ph := range cfg.Phases {
		if ph.Duration <= 0 {
			return nil, fmt.Errorf("signal %s: phase %d has non-positive duration %v", id, i, ph.Duration)
		}
		p.Phases = append(p.Phases, Phase{Duration: ph.Duration, State: ph.State})
		sum += ph.Duration
	}
	if cfg.TotalCycle > 0 && sum != float64(cfg.TotalCycle) {
		return nil, fmt.Errorf("signal %s: phase durations sum to %v, total cycle is %d", id, sum, cfg.TotalCycle)
	}
	c := &Controller{
		id:       id,
		defaults: p.clone(),
	}
	c.runtime = runtime{program: p, step: 0, remainingT: p.Phases[0].Duration}
	c.snapshot = c.runtime
	return c, nil
}

// ID 返回信号灯ID
func (c *Controller) ID() string {
	return c.id
}

// Prepare 准备阶段
// 功能：将运行时状态整体写入snapshot，供读者读取一致的相位信息
func (c *Controller) Prepare() {
	c.snapshot = c.runtime
	c.snapshot.program = c.runtime.program.clone()
}

// Update 更新阶段，执行固定相位信号灯的核心逻辑
// 功能：应用buffer中的新程序，之后按剩余时间推进相位切换
// 参数：dt-时间步长（秒）
// 算法说明：剩余时间扣完后循环进入下一相位，跳过时长耗尽的相位，
// 与相位时长远小于dt的极端情况兼容
func (c *Controller) Update(dt float64) {
	if c.buffer != nil {
		c.runtime = *c.buffer
		c.buffer = nil
	}

	c.runtime.remainingT -= dt
	if c.runtime.remainingT <= 0 {
		c.runtime.remainingT = 0
		for {
			c.runtime.step = (c.runtime.step + 1) % len(c.runtime.program.Phases)
			c.runtime.remainingT += c.runtime.program.Phases[c.runtime.step].Duration
			if c.runtime.remainingT > 0 {
				break
			}
		}
	}
}

// SetDurations 重设程序中各相位的持续时间
// 功能：保持相位状态与顺序不变，仅替换时长；当前相位从头开始执行
// 参数：durations-新的相位时长，长度必须与程序相位数一致，各项为正
// 返回：参数非法时返回错误，不影响当前程序
// 说明：写入buffer，下一次Update时生效
func (c *Controller) SetDurations(durations []float64) error {
	prog := c.pendingProgram()
	if len(durations) != len(prog.Phases) {
		return fmt.Errorf("signal %s: %d durations for %d phases", c.id, len(durations), len(prog.Phases))
	}
	next := prog.clone()
	for i, d := range durations {
		if d <= 0 {
			return fmt.Errorf("signal %s: non-positive duration %v for phase %d", c.id, d, i)
		}
		next.Phases[i].Duration = d
	}
	step := c.pendingStep()
	c.buffer = &runtime{program: next, step: step, remainingT: next.Phases[step].Duration}
	log.Debugf("signal %s reprogrammed: %v", c.id, durations)
	return nil
}

// UseDefault 恢复默认程序
// 功能：将程序恢复为构造时的默认时长，当前相位从头开始执行
// 说明：写入buffer，下一次Update时生效
func (c *Controller) UseDefault() {
	step := c.pendingStep() % len(c.defaults.Phases)
	c.buffer = &runtime{
		program:    c.defaults.clone(),
		step:       step,
		remainingT: c.defaults.Phases[step].Duration,
	}
}

// pendingProgram 返回下一次Update将执行的程序
func (c *Controller) pendingProgram() Program {
	if c.buffer != nil {
		return c.buffer.program
	}
	return c.runtime.program
}

// pendingStep 返回下一次Update将处于的相位索引
func (c *Controller) pendingStep() int {
	if c.buffer != nil {
		return c.buffer.step
	}
	return c.runtime.step
}

// Step 返回snapshot中的当前相位索引
func (c *Controller) Step() int {
	return c.snapshot.step
}

// RemainingTime 返回snapshot中当前相位的剩余时间（秒）
func (c *Controller) RemainingTime() float64 {
	return c.snapshot.remainingT
}

// State 返回snapshot中当前相位的状态描述
func (c *Controller) State() string {
	return c.snapshot.program.Phases[c.snapshot.step].State
}

// Durations 返回snapshot中程序的各相位时长
func (c *Controller) Durations() []float64 {
	out := make([]float64, len(c.snapshot.program.Phases))
	for i, p := range c.snapshot.program.Phases {
		out[i] = p.Duration
	}
	return out
}

// DefaultDurations 返回默认程序的各相位时长
func (c *Controller) DefaultDurations() []float64 {
	out := make([]float64, len(c.defaults.Phases))
	for i, p := range c.defaults.Phases {
		out[i] = p.Duration
	}
	return out
}
