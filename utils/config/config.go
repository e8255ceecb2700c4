package config

// RuntimeConfig 运行时配置
// 功能：存储控制系统运行时的配置信息，补全未指定的默认值
// 说明：将YAML配置转换为运行时可用的配置对象
type RuntimeConfig struct {
	All Config  // 全部配置
	C   Control // 循环调度配置
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 功能：创建运行时配置对象，补全默认值
// 参数：config-原始配置对象
// 返回：初始化的运行时配置指针
// 算法说明：
// 1. 控制周期默认90步、采样周期默认10步、聚合周期默认50步
// 2. 灯控下发周期默认1秒
// 3. 每步时间间隔默认1秒
func NewRuntimeConfig(config Config) *RuntimeConfig {
	rc := &RuntimeConfig{}

	rc.All = config
	rc.C = config.Control
	if rc.C.Step.Interval <= 0 {
		rc.C.Step.Interval = 1
	}
	if rc.C.ControlInterval <= 0 {
		rc.C.ControlInterval = 90
	}
	if rc.C.SamplingInterval <= 0 {
		rc.C.SamplingInterval = 10
	}
	if rc.C.AggregationInterval <= 0 {
		rc.C.AggregationInterval = 50
	}
	if rc.C.ActuationInterval <= 0 {
		rc.C.ActuationInterval = 1
	}
	rc.All.Control = rc.C

	return rc
}
