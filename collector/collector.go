// Package collector 将每个控制周期的运行记录写入SQLite文件
// 输出路径为空时整体禁用，所有方法为空操作。
package collector

import (
	"database/sql"
	"encoding/json"

	_ "modernc.org/sqlite"

	"github.com/tsinghua-fib-lab/perimeter-control/perimeter"
)

// Record 单个控制周期的运行记录
type Record struct {
	Step           int32   // 控制步
	Time           float64 // 仿真时刻（秒）
	Accumulation   float64 // 聚合累积量（veh）
	Active         bool    // 激活状态
	TargetInflow   float64 // PI目标流入量（veh/h）
	SolverStatus   string  // 求解状态，未激活周期为空
	Objective      float64
	RealizedInflow float64                       // veh/周期
	Allocation     perimeter.GreenTimeAllocation // 周期末分配
}

// Collector 控制周期历史记录器
type Collector struct {
	db *sql.DB
}

// Open 打开历史记录数据库
// 功能：创建SQLite文件与control_cycles表
// 参数：path-数据库文件路径，空字符串表示禁用记录
// 返回：记录器实例；建库失败时返回错误（启动阶段致命）
func Open(path string) (*Collector, error) {
	if path == "" {
		return &Collector{}, nil
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS control_cycles (
			step INTEGER,
			time REAL,
			accumulation REAL,
			active INTEGER,
			target_inflow REAL,
			solver_status TEXT,
			objective REAL,
			realized_inflow REAL,
			allocation TEXT
		)`); err != nil {
		db.Close()
		return nil, err
	}
	log.Infof("control cycle history -> %s", path)
	return &Collector{db: db}, nil
}

// Write 写入一条控制周期记录
// 说明：写入失败为可恢复故障，记录警告后丢弃该条记录
func (c *Collector) Write(r Record) {
	if c.db == nil {
		return
	}
	alloc, err := json.Marshal(r.Allocation)
	if err != nil {
		log.Warnf("marshal allocation failed: %v", err)
		alloc = []byte("{}")
	}
	_, err = c.db.Exec(`
		INSERT INTO control_cycles
			(step, time, accumulation, active, target_inflow, solver_status, objective, realized_inflow, allocation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Step, r.Time, r.Accumulation, r.Active, r.TargetInflow,
		r.SolverStatus, r.Objective, r.RealizedInflow, string(alloc))
	if err != nil {
		log.Warnf("write control cycle record failed: %v", err)
	}
}

// Close 关闭数据库
func (c *Collector) Close() {
	if c.db == nil {
		return
	}
	if err := c.db.Close(); err != nil {
		log.Warnf("close history database failed: %v", err)
	}
}
