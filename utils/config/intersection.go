package config

import "fmt"

// PhaseConfig 单个受控相位的配置
// 功能：描述一个相位的优化参数与其在信号灯程序中的位置
type PhaseConfig struct {
	PhaseIndex     int     `json:"phase_index" bson:"phase_index"`         // 信号灯程序中的相位下标
	SaturationFlow float64 `json:"saturation_flow" bson:"saturation_flow"` // 饱和流率（veh/绿灯秒）
	TurnInRatio    float64 `json:"turn_in_ratio" bson:"turn_in_ratio"`     // 转入保护区域的流量比例
	QueueLength    float64 `json:"queue_length" bson:"queue_length"`       // 默认排队长度（veh）
}

// IntersectionConfig 单个边界路口的配置
// 功能：描述一个边界路口的信号灯引用、周期与相位结构
// 说明：主相位唯一，次相位数量可变（有序列表）
type IntersectionConfig struct {
	SignalID    string        `json:"signal_id" bson:"signal_id"`                       // 信号灯控制器ID
	CycleLength int32         `json:"cycle_length" bson:"cycle_length"`                 // 信号周期（秒）
	MinGreen    *int32        `json:"min_green_time,omitempty" bson:"min_green_time"`   // 最小绿灯时间，缺省用全局值
	MaxChange   *int32        `json:"max_change,omitempty" bson:"max_change"`           // 单周期最大调整量，缺省用全局值
	Primary     PhaseConfig   `json:"primary" bson:"primary"`                           // 主相位
	Secondaries []PhaseConfig `json:"secondaries,omitempty" bson:"secondaries"`         // 次相位（有序，可为空）
}

// SignalPhaseConfig 信号灯程序中单个相位的配置
type SignalPhaseConfig struct {
	Duration float64 `json:"duration" bson:"duration"` // 相位持续时间（秒）
	State    string  `json:"state" bson:"state"`       // 相位状态描述（如GGrr）
}

// SignalConfig 信号灯控制器默认程序配置
type SignalConfig struct {
	Phases     []SignalPhaseConfig `json:"phases" bson:"phases"`           // 相位列表
	TotalCycle int32               `json:"total_cycle" bson:"total_cycle"` // 程序总周期（秒）
}

// OptimizationParams 绿灯时间分配优化的全局参数
type OptimizationParams struct {
	Theta1             float64 `json:"theta_1" bson:"theta_1"`                           // 目标流入偏差项权重
	Theta2             float64 `json:"theta_2" bson:"theta_2"`                           // 排队利用率项权重
	DefaultCycleLength int32   `json:"default_cycle_length" bson:"default_cycle_length"` // 全局默认信号周期（秒），用于veh/h到veh/周期的换算
	MinGreenTime       int32   `json:"min_green_time" bson:"min_green_time"`             // 全局最小绿灯时间（秒）
	MaxChange          int32   `json:"max_change" bson:"max_change"`                     // 全局单周期最大调整量（秒）
}

// Metadata 路口配置元信息
type Metadata struct {
	NetworkFile string `json:"network_file,omitempty" bson:"network_file"`
	GeneratedAt string `json:"generated_at,omitempty" bson:"generated_at"`
}

// IntersectionSet 边界路口配置的根结构
// 功能：定义所有边界路口、信号灯程序与优化参数
// 说明：从JSON文件或MongoDB集合中加载
type IntersectionSet struct {
	Metadata        Metadata                      `json:"metadata,omitempty" bson:"metadata"`
	Signals         map[string]SignalConfig       `json:"traffic_lights" bson:"traffic_lights"`
	Params          OptimizationParams            `json:"optimization_parameters" bson:"optimization_parameters"`
	IntersectionIDs []string                      `json:"intersection_ids" bson:"intersection_ids"`
	Intersections   map[string]IntersectionConfig `json:"intersections" bson:"intersections"`
}

// MinGreenOf 获取某路口的最小绿灯时间
// 说明：路口未单独指定时回退到全局值
func (s *IntersectionSet) MinGreenOf(c IntersectionConfig) int32 {
	if c.MinGreen != nil {
		return *c.MinGreen
	}
	return s.Params.MinGreenTime
}

// MaxChangeOf 获取某路口的单周期最大调整量
// 说明：路口未单独指定时回退到全局值
func (s *IntersectionSet) MaxChangeOf(c IntersectionConfig) int32 {
	if c.MaxChange != nil {
		return *c.MaxChange
	}
	return s.Params.MaxChange
}

// Validate 检查路口配置的有效性
// 功能：验证所有路口与全局参数满足优化问题的可行性前提
// 返回：配置无效时返回错误，调用方应视为启动阶段的致命错误
// 算法说明：
// 1. 全局参数检查：权重、周期、最小绿灯、最大调整量均需为正
// 2. 路口列表检查：intersection_ids与intersections逐一对应
// 3. 逐路口检查：
//   - 信号灯引用存在且相位下标合法、互不重复
//   - 相位数×最小绿灯 ≤ 周期（等式约束可行）
//   - 饱和流率为正、转入比例在[0,1]内
func (s *IntersectionSet) Validate() error {
	p := s.Params
	if p.Theta1 <= 0 || p.Theta2 < 0 {
		return fmt.Errorf("invalid objective weights theta_1=%v theta_2=%v", p.Theta1, p.Theta2)
	}
	if p.DefaultCycleLength <= 0 {
		return fmt.Errorf("invalid default cycle length %d", p.DefaultCycleLength)
	}
	if p.MinGreenTime <= 0 || p.MaxChange <= 0 {
		return fmt.Errorf("invalid min_green_time=%d or max_change=%d", p.MinGreenTime, p.MaxChange)
	}
	if len(s.IntersectionIDs) == 0 {
		return fmt.Errorf("no intersections configured")
	}
	seen := make(map[string]struct{}, len(s.IntersectionIDs))
	for _, id := range s.IntersectionIDs {
		if _, ok := seen[id]; ok {
			return fmt.Errorf("duplicated intersection id %s", id)
		}
		seen[id] = struct{}{}
		c, ok := s.Intersections[id]
		if !ok {
			return fmt.Errorf("intersection %s listed but not defined", id)
		}
		if err := s.validateIntersection(id, c); err != nil {
			return err
		}
	}
	return nil
}

// validateIntersection 检查单个路口配置
func (s *IntersectionSet) validateIntersection(id string, c IntersectionConfig) error {
	if c.CycleLength <= 0 {
		return fmt.Errorf("intersection %s: invalid cycle length %d", id, c.CycleLength)
	}
	minGreen := s.MinGreenOf(c)
	numPhases := int32(1 + len(c.Secondaries))
	if numPhases*minGreen > c.CycleLength {
		return fmt.Errorf("intersection %s: %d phases with min green %d exceed cycle %d",
			id, numPhases, minGreen, c.CycleLength)
	}
	signal, ok := s.Signals[c.SignalID]
	if !ok {
		return fmt.Errorf("intersection %s: unknown signal %s", id, c.SignalID)
	}
	indices := make(map[int]struct{})
	phases := append([]PhaseConfig{c.Primary}, c.Secondaries...)
	for i, ph := range phases {
		if ph.PhaseIndex < 0 || ph.PhaseIndex >= len(signal.Phases) {
			return fmt.Errorf("intersection %s: phase %d index %d out of signal program range [0, %d)",
				id, i, ph.PhaseIndex, len(signal.Phases))
		}
		if _, ok := indices[ph.PhaseIndex]; ok {
			return fmt.Errorf("intersection %s: duplicated phase index %d", id, ph.PhaseIndex)
		}
		indices[ph.PhaseIndex] = struct{}{}
		if ph.SaturationFlow <= 0 {
			return fmt.Errorf("intersection %s: phase %d invalid saturation flow %v", id, i, ph.SaturationFlow)
		}
		if ph.TurnInRatio < 0 || ph.TurnInRatio > 1 {
			return fmt.Errorf("intersection %s: phase %d invalid turn-in ratio %v", id, i, ph.TurnInRatio)
		}
		if ph.QueueLength < 0 {
			return fmt.Errorf("intersection %s: phase %d invalid queue length %v", id, i, ph.QueueLength)
		}
	}
	return nil
}

// DefaultIntersectionSet 构造内置默认配置
// 功能：提供三路口的默认边界配置
// 说明：在没有外部配置文件时用于快速启动与测试
func DefaultIntersectionSet() *IntersectionSet {
	signal := SignalConfig{
		Phases: []SignalPhaseConfig{
			{Duration: 45, State: "GGrr"},
			{Duration: 45, State: "rrGG"},
		},
		TotalCycle: 90,
	}
	return &IntersectionSet{
		Metadata: Metadata{NetworkFile: "builtin", GeneratedAt: "default"},
		Signals: map[string]SignalConfig{
			"1166230678": signal,
			"1677153107": signal,
			"357410392":  signal,
		},
		Params: OptimizationParams{
			Theta1:             1.0,
			Theta2:             0.5,
			DefaultCycleLength: 90,
			MinGreenTime:       15,
			MaxChange:          5,
		},
		IntersectionIDs: []string{"junction01", "junction02", "junction03"},
		Intersections: map[string]IntersectionConfig{
			"junction01": {
				SignalID:    "1166230678",
				CycleLength: 90,
				Primary:     PhaseConfig{PhaseIndex: 0, SaturationFlow: 0.45, TurnInRatio: 0.7, QueueLength: 15},
				Secondaries: []PhaseConfig{{PhaseIndex: 1, SaturationFlow: 0.35, TurnInRatio: 0.5, QueueLength: 8}},
			},
			"junction02": {
				SignalID:    "1677153107",
				CycleLength: 90,
				Primary:     PhaseConfig{PhaseIndex: 0, SaturationFlow: 0.40, TurnInRatio: 0.8, QueueLength: 20},
				Secondaries: []PhaseConfig{{PhaseIndex: 1, SaturationFlow: 0.38, TurnInRatio: 0.5, QueueLength: 10}},
			},
			"junction03": {
				SignalID:    "357410392",
				CycleLength: 90,
				Primary:     PhaseConfig{PhaseIndex: 0, SaturationFlow: 0.50, TurnInRatio: 0.6, QueueLength: 12},
				Secondaries: []PhaseConfig{{PhaseIndex: 1, SaturationFlow: 0.42, TurnInRatio: 0.5, QueueLength: 6}},
			},
		},
	}
}
