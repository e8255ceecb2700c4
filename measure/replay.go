package measure

import (
	"errors"
)

// ErrExhausted 回放序列已耗尽
var ErrExhausted = errors.New("replay sequence exhausted")

// Replay 回放测量数据源
// 功能：按顺序回放预先给定的累积量序列，用于离线运行与增益整定
type Replay struct {
	values []float64
	index  int
}

// NewReplay 创建回放数据源
func NewReplay(values []float64) *Replay {
	return &Replay{values: values}
}

// Sample 返回序列中的下一个累积量
// 返回：采样值；序列耗尽后每次调用都返回ErrExhausted
func (r *Replay) Sample() (Sample, error) {
	if r.index >= len(r.values) {
		return Sample{}, ErrExhausted
	}
	s := Sample{Accumulation: r.values[r.index]}
	r.index++
	return s, nil
}
