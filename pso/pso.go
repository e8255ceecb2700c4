// Package pso 提供PI增益{kp, ki}的二维粒子群整定
// 离线工具，不参与在线控制循环。
package pso

import (
	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"

	"github.com/tsinghua-fib-lab/perimeter-control/utils/randengine"
)

// Objective 待最小化的目标函数，输入为增益组合
type Objective func(kp, ki float64) float64

// Bounds 增益搜索区间
type Bounds struct {
	KPMin, KPMax float64
	KIMin, KIMax float64
}

// Options 粒子群算法参数
type Options struct {
	Bounds        Bounds
	NParticles    int
	MaxIterations int
	W             float64 // 惯性权重
	C1            float64 // 个体学习因子
	C2            float64 // 群体学习因子
	Seed          uint64
}

// DefaultOptions 返回默认算法参数
func DefaultOptions(b Bounds) Options {
	return Options{
		Bounds:        b,
		NParticles:    25,
		MaxIterations: 50,
		W:             0.9,
		C1:            2.0,
		C2:            2.0,
		Seed:          42,
	}
}

// Result 整定结果
type Result struct {
	KP, KI  float64
	Fitness float64
	History []float64 // 每轮迭代后的全局最优适应度
}

// particle 单个粒子的状态
type particle struct {
	pos, vel    [2]float64
	bestPos     [2]float64
	bestFitness float64
}

// Optimize 运行粒子群搜索
// 功能：在给定区间内最小化目标函数，返回最优增益组合
// 算法说明：
// 1. 位置在区间内均匀随机初始化，速度限制在区间宽度的±10%内
// 2. 速度更新 v ← w·v + c1·r1·(pbest−x) + c2·r2·(gbest−x)，并截断到区间宽度的±20%
// 3. 位置越界时直接截断到边界
func Optimize(obj Objective, opts Options) Result {
	e := randengine.New(opts.Seed)
	kpRange := opts.Bounds.KPMax - opts.Bounds.KPMin
	kiRange := opts.Bounds.KIMax - opts.Bounds.KIMin

	swarm := make([]*particle, opts.NParticles)
	fitness := make([]float64, opts.NParticles)
	for i := range swarm {
		p := &particle{
			pos: [2]float64{
				e.UniformRange(opts.Bounds.KPMin, opts.Bounds.KPMax),
				e.UniformRange(opts.Bounds.KIMin, opts.Bounds.KIMax),
			},
			vel: [2]float64{
				e.UniformRange(-0.1*kpRange, 0.1*kpRange),
				e.UniformRange(-0.1*kiRange, 0.1*kiRange),
			},
		}
		p.bestPos = p.pos
		p.bestFitness = obj(p.pos[0], p.pos[1])
		fitness[i] = p.bestFitness
		swarm[i] = p
	}
	gIdx := floats.MinIdx(fitness)
	gBest := swarm[gIdx].pos
	gFitness := fitness[gIdx]

	maxVel := [2]float64{0.2 * kpRange, 0.2 * kiRange}
	lows := [2]float64{opts.Bounds.KPMin, opts.Bounds.KIMin}
	highs := [2]float64{opts.Bounds.KPMax, opts.Bounds.KIMax}

	history := make([]float64, 0, opts.MaxIterations)
	for iter := 0; iter < opts.MaxIterations; iter++ {
		for _, p := range swarm {
			r1, r2 := e.Float64Safe(), e.Float64Safe()
			for d := 0; d < 2; d++ {
				v := opts.W*p.vel[d] +
					opts.C1*r1*(p.bestPos[d]-p.pos[d]) +
					opts.C2*r2*(gBest[d]-p.pos[d])
				p.vel[d] = lo.Clamp(v, -maxVel[d], maxVel[d])
				p.pos[d] = lo.Clamp(p.pos[d]+p.vel[d], lows[d], highs[d])
			}
			f := obj(p.pos[0], p.pos[1])
			if f < p.bestFitness {
				p.bestFitness = f
				p.bestPos = p.pos
			}
			if f < gFitness {
				gFitness = f
				gBest = p.pos
			}
		}
		history = append(history, gFitness)
		if (iter+1)%10 == 0 {
			log.Infof("iteration %3d: best fitness=%.6f kp=%.4f ki=%.4f",
				iter+1, gFitness, gBest[0], gBest[1])
		}
	}
	return Result{KP: gBest[0], KI: gBest[1], Fitness: gFitness, History: history}
}
