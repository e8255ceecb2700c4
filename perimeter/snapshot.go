package perimeter

import "sync/atomic"

// Snapshot 控制周期与灯控下发循环之间交换的共享快照
// 功能：携带当前激活标志与绿灯时间分配
// 说明：快照一经发布即不可变，两个字段来自同一个控制周期；
// 读者在任意时刻读到的都是某个完整周期的结果，最多滞后一个周期
type Snapshot struct {
	IsActive   bool
	GreenTimes GreenTimeAllocation
}

// Board 快照发布板
// 功能：以整体替换的方式发布快照，供灯控下发循环无锁读取
// 说明：唯一的共享可变资源；写者每个控制周期Store一次全新对象，
// 读者只Load，不存在字段级并发修改
type Board struct {
	ptr atomic.Pointer[Snapshot]
}

// NewBoard 创建快照发布板并发布初始快照
func NewBoard(isActive bool, green GreenTimeAllocation) *Board {
	b := &Board{}
	b.Publish(isActive, green)
	return b
}

// Publish 发布新快照
// 功能：深拷贝分配结果后整体替换当前快照
// 说明：拷贝保证发布后写者对内部状态的修改不会污染已发布快照
func (b *Board) Publish(isActive bool, green GreenTimeAllocation) {
	b.ptr.Store(&Snapshot{
		IsActive:   isActive,
		GreenTimes: green.Clone(),
	})
}

// Load 读取当前快照
// 返回：最近一次发布的完整快照，调用方不得修改
func (b *Board) Load() *Snapshot {
	return b.ptr.Load()
}
