package config

// InputPath 指定输入数据来源的配置（MongoDB、文件系统）
// 功能：定义路口配置数据输入路径的配置结构，支持多种数据源
// 说明：支持MongoDB数据库和文件系统两种数据源，支持缓存机制
type InputPath struct {
	DB        string `yaml:"db"`                   // 数据库名
	Col       string `yaml:"col"`                  // 集合名
	Cache     string `yaml:"cache,omitempty"`      // 缓存文件名，为空则采用默认路径{db}.{col}.json
	OnlyCache bool   `yaml:"only_cache,omitempty"` // 只从缓存中获取
	File      string `yaml:"file,omitempty"`       // 文件路径（优先级高于MongoDB）
}

// GetDb 获取数据库名
func (p InputPath) GetDb() string {
	return p.DB
}

// GetColl 获取集合名
func (p InputPath) GetColl() string {
	return p.Col
}

// GetCachePath 获取缓存文件路径
// 功能：返回缓存文件的完整路径
// 算法说明：
// 1. 如果指定了缓存路径，直接返回
// 2. 否则使用默认命名规则：{数据库名}.{集合名}.json
func (p InputPath) GetCachePath() string {
	if p.Cache != "" {
		return p.Cache
	}
	return p.DB + "." + p.Col + ".json"
}

// Input 指定控制器所有输入数据的配置项
// 功能：定义边界控制系统的输入数据配置
type Input struct {
	URI           string    `yaml:"uri"`           // MongoDB连接字符串
	Intersections InputPath `yaml:"intersections"` // 路口配置
}

// ControlStep 指定模拟时间范围和间隔的配置项
type ControlStep struct {
	Start    int32   `yaml:"start"`    // 开始步数
	Total    int32   `yaml:"total"`    // 总步数
	Interval float64 `yaml:"interval"` // 每步的时间间隔（秒）
}

// Control 控制循环配置
// 功能：定义边界控制系统两个循环（控制循环与灯控下发循环）的调度参数
// 说明：控制周期远大于下发周期，采样/聚合周期介于两者之间
type Control struct {
	Step                ControlStep `yaml:"step"`
	ControlInterval     int32       `yaml:"control_interval"`     // 控制周期（步）
	SamplingInterval    int32       `yaml:"sampling_interval"`    // 检测器采样周期（步）
	AggregationInterval int32       `yaml:"aggregation_interval"` // 数据聚合周期（步）
	ActuationInterval   float64     `yaml:"actuation_interval"`   // 灯控下发周期（秒，墙上时钟）
}

// Controller PI控制器配置
// 功能：定义PI控制律的增益与目标累积量
// 说明：增益单位为h⁻¹，直接用于递推公式；目标流入量全程以veh/h为单位
type Controller struct {
	KP            float64 `yaml:"kp"`             // 比例增益（h⁻¹）
	KI            float64 `yaml:"ki"`             // 积分增益（h⁻¹）
	NHat          float64 `yaml:"n_hat"`          // 目标累积量（veh）
	InitialInflow float64 `yaml:"initial_inflow"` // 初始目标流入量（veh/h）
}

// Output 输出配置
type Output struct {
	SQLite string `yaml:"sqlite,omitempty"` // 控制周期历史记录数据库路径，为空则禁用
}

// Replay 回放测量数据配置
// 功能：在没有实时检测器数据源时，按步回放累积量序列
type Replay struct {
	Accumulation []float64 `yaml:"accumulation,omitempty"` // 每步累积量序列（veh）
}

// Config YAML配置文件的根结构
type Config struct {
	Input      Input      `yaml:"input"`            // 输入
	Control    Control    `yaml:"control"`          // 循环调度控制
	Controller Controller `yaml:"controller"`       // PI控制器
	Output     Output     `yaml:"output,omitempty"` // 输出
	Replay     Replay     `yaml:"replay,omitempty"` // 回放测量数据
}
