package actuator

import (
	"fmt"

	"github.com/tsinghua-fib-lab/perimeter-control/perimeter"
	"github.com/tsinghua-fib-lab/perimeter-control/signal"
	"github.com/tsinghua-fib-lab/perimeter-control/utils/config"
)

// Binding 路口绿灯时间分配到信号灯程序相位的映射
type Binding struct {
	IntersectionID   string
	SignalID         string
	PrimaryIndex     int   // 主相位在信号灯程序中的下标
	SecondaryIndexes []int // 次相位在信号灯程序中的下标（有序）
}

// Actuator 灯控下发执行器
// 功能：将控制核心发布的快照转写为各信号灯控制器的程序时长
// 说明：只在1Hz下发循环中调用，单个路口下发失败只记录日志，
// 不影响其余路口，也不向控制循环传播
type Actuator struct {
	bindings []Binding
	signals  map[string]*signal.Controller

	// 最近一次成功应用的快照指针，避免对同一份快照重复重设程序
	lastApplied *perimeter.Snapshot
}

// New 创建灯控下发执行器
// 功能：根据路口配置构建分配到程序相位的映射关系
// 返回：执行器实例；映射引用了未知信号灯时返回错误（启动阶段致命）
func New(set *config.IntersectionSet, signals map[string]*signal.Controller) (*Actuator, error) {
	a := &Actuator{signals: signals}
	for _, id := range set.IntersectionIDs {
		c := set.Intersections[id]
		if _, ok := signals[c.SignalID]; !ok {
			return nil, fmt.Errorf("intersection %s: no signal controller %s", id, c.SignalID)
		}
		b := Binding{
			IntersectionID: id,
			SignalID:       c.SignalID,
			PrimaryIndex:   c.Primary.PhaseIndex,
		}
		for _, p := range c.Secondaries {
			b.SecondaryIndexes = append(b.SecondaryIndexes, p.PhaseIndex)
		}
		a.bindings = append(a.bindings, b)
	}
	return a, nil
}

// Apply 将快照应用到信号灯控制器
// 功能：激活时按分配重设程序时长，未激活时恢复默认程序
// 参数：snap-快照板上读到的快照
// 算法说明：
// 1. 同一份快照只应用一次，重复调用为空操作（重设程序会重启当前相位）
// 2. 时长向量以默认程序为底，仅覆盖受控相位的下标
// 3. 分配中缺失的路口与下发失败的路口记录警告后跳过
func (a *Actuator) Apply(snap *perimeter.Snapshot) {
	if snap == nil || snap == a.lastApplied {
		return
	}
	for _, b := range a.bindings {
		if err := a.applyOne(b, snap); err != nil {
			log.Warnf("actuation failed at intersection %s: %v", b.IntersectionID, err)
		}
	}
	a.lastApplied = snap
}

func (a *Actuator) applyOne(b Binding, snap *perimeter.Snapshot) error {
	s := a.signals[b.SignalID]
	if !snap.IsActive {
		s.UseDefault()
		return nil
	}
	g, ok := snap.GreenTimes[b.IntersectionID]
	if !ok {
		return fmt.Errorf("no green times in snapshot")
	}
	if len(g.Secondaries) != len(b.SecondaryIndexes) {
		return fmt.Errorf("%d secondary green times for %d phases",
			len(g.Secondaries), len(b.SecondaryIndexes))
	}
	durations := s.DefaultDurations()
	if b.PrimaryIndex >= len(durations) {
		return fmt.Errorf("primary phase index %d out of range", b.PrimaryIndex)
	}
	durations[b.PrimaryIndex] = float64(g.Primary)
	for i, idx := range b.SecondaryIndexes {
		if idx >= len(durations) {
			return fmt.Errorf("secondary phase index %d out of range", idx)
		}
		durations[idx] = float64(g.Secondaries[i])
	}
	return s.SetDurations(durations)
}
