// Package measure 提供保护区域的测量采集与聚合
// 控制循环按采样周期调用Provider取样，按聚合周期把样本折叠为均值，
// 控制周期使用最近一次聚合的结果。
package measure

import (
	"github.com/tsinghua-fib-lab/perimeter-control/perimeter"
)

// Sample 一次测量采样
type Sample struct {
	Accumulation float64              // 保护区域内累积车辆数（veh）
	Queues       perimeter.LiveQueues // 各边界路口相位排队观测，可为nil
}

// Provider 测量数据源
// 说明：Sample返回错误表示本周期测量不可用（可恢复故障），
// 调用方保持当前控制状态等待恢复，不中止运行
type Provider interface {
	Sample() (Sample, error)
}

// Aggregator 采样聚合器
// 功能：累积采样并按聚合周期折叠为均值
type Aggregator struct {
	pending []Sample
	latest  Sample
	has     bool
}

// NewAggregator 创建采样聚合器
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Push 追加一次采样
func (a *Aggregator) Push(s Sample) {
	a.pending = append(a.pending, s)
}

// Fold 将累积的采样折叠为一次聚合结果
// 功能：累积量取均值，排队观测逐路口逐相位取均值
// 说明：无待折叠采样时保持上一次聚合结果不变
func (a *Aggregator) Fold() {
	if len(a.pending) == 0 {
		return
	}
	agg := Sample{}
	queueSum := make(map[string]*perimeter.PhaseQueues)
	queueCnt := make(map[string]int)
	for _, s := range a.pending {
		agg.Accumulation += s.Accumulation
		for id, q := range s.Queues {
			sum, ok := queueSum[id]
			if !ok {
				sum = &perimeter.PhaseQueues{Secondaries: make([]float64, len(q.Secondaries))}
				queueSum[id] = sum
			}
			sum.Primary += q.Primary
			for i := range sum.Secondaries {
				if i < len(q.Secondaries) {
					sum.Secondaries[i] += q.Secondaries[i]
				}
			}
			queueCnt[id]++
		}
	}
	agg.Accumulation /= float64(len(a.pending))
	if len(queueSum) > 0 {
		agg.Queues = make(perimeter.LiveQueues, len(queueSum))
		for id, sum := range queueSum {
			cnt := float64(queueCnt[id])
			q := perimeter.PhaseQueues{
				Primary:     sum.Primary / cnt,
				Secondaries: make([]float64, len(sum.Secondaries)),
			}
			for i, v := range sum.Secondaries {
				q.Secondaries[i] = v / cnt
			}
			agg.Queues[id] = q
		}
	}
	log.Debugf("aggregated %d samples: n=%.1f", len(a.pending), agg.Accumulation)
	a.pending = a.pending[:0]
	a.latest = agg
	a.has = true
}

// Latest 返回最近一次聚合结果
// 返回：聚合结果与是否已有聚合数据的标志
func (a *Aggregator) Latest() (Sample, bool) {
	return a.latest, a.has
}
