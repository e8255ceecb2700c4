package solver

import (
	"context"
	"flag"
	"math"

	"github.com/tsinghua-fib-lab/perimeter-control/utils/container"
)

var (
	maxNodes = flag.Int("solver.max_nodes", 200000, "分支定界搜索的最大节点数，超限后返回当前最好可行解")
)

const (
	eps = 1e-6
	// 每多少个节点检查一次取消信号
	cancelCheckInterval = 256
	// 约束传播的最大轮数
	maxPropagatePasses = 8
)

// node 分支定界搜索树节点
// 说明：保存当前子问题中每个变量的取值盒[lo, hi]
type node struct {
	lo, hi []int32
}

// Solve 求解模型
// 功能：对模型执行分支定界搜索，返回求解结果
// 参数：ctx-上下文，取消后搜索尽快返回
// 返回：求解结果，状态见Status定义
// 算法说明：
// 1. 约束传播：对根节点的变量盒做整数边界收紧，空盒直接判定不可行
// 2. 最优优先搜索：以目标下界为优先级的小顶堆维护活跃节点
// 3. 下界计算：对每个平方项用区间算术求其在盒上的最小值并求和
// 4. 分支：选取值域最宽的未固定变量，按中点二分为两个子盒
// 5. 剪枝：子盒传播失败或下界不低于当前最好解则丢弃
// 6. 终止：堆空且未截断时当前最好解即为最优解；
//    节点数超限或被取消时，有解返回feasible，无解返回unknown
func (m *Model) Solve(ctx context.Context) *Result {
	if m.err != nil {
		log.Errorf("model %s build error: %v", m.name, m.err)
		return &Result{Status: StatusError, Err: m.err}
	}

	n := len(m.vars)
	root := &node{lo: make([]int32, n), hi: make([]int32, n)}
	for i, v := range m.vars {
		root.lo[i], root.hi[i] = v.lb, v.ub
	}
	if !m.propagate(root.lo, root.hi) {
		return &Result{Status: StatusInfeasible}
	}

	queue := container.NewPriorityQueue[*node]()
	queue.HeapPush(root, m.lowerBound(root.lo, root.hi))

	bestObj := math.Inf(1)
	var bestVals []int32
	truncated := false
	nodes := 0

SEARCH:
	for queue.Len() > 0 {
		nodes++
		if nodes%cancelCheckInterval == 0 {
			select {
			case <-ctx.Done():
				truncated = true
				break SEARCH
			default:
			}
		}
		if nodes > *maxNodes {
			log.Warnf("model %s: node limit %d reached", m.name, *maxNodes)
			truncated = true
			break
		}

		nd, bound := queue.HeapPop()
		// 小顶堆：最小下界已不低于最好解，搜索结束
		if bound >= bestObj-eps {
			break
		}

		branch := chooseBranch(nd)
		if branch < 0 {
			// 所有变量已固定
			vals := make([]int32, n)
			copy(vals, nd.lo)
			if !m.satisfied(vals) {
				continue
			}
			if obj := m.objective(vals); obj < bestObj {
				bestObj = obj
				bestVals = vals
			}
			continue
		}

		mid := nd.lo[branch] + (nd.hi[branch]-nd.lo[branch])/2
		for _, half := range [2][2]int32{
			{nd.lo[branch], mid},
			{mid + 1, nd.hi[branch]},
		} {
			child := &node{lo: make([]int32, n), hi: make([]int32, n)}
			copy(child.lo, nd.lo)
			copy(child.hi, nd.hi)
			child.lo[branch], child.hi[branch] = half[0], half[1]
			if !m.propagate(child.lo, child.hi) {
				continue
			}
			if b := m.lowerBound(child.lo, child.hi); b < bestObj-eps {
				queue.HeapPush(child, b)
			}
		}
	}

	log.Debugf("model %s: %d nodes explored", m.name, nodes)
	if bestVals == nil {
		if truncated {
			return &Result{Status: StatusUnknown}
		}
		return &Result{Status: StatusInfeasible}
	}
	status := StatusOptimal
	if truncated {
		status = StatusFeasible
	}
	return &Result{Status: status, Objective: bestObj, values: bestVals}
}

// chooseBranch 选择分支变量
// 返回：值域最宽的未固定变量下标，全部固定时返回-1
func chooseBranch(nd *node) int {
	branch, width := -1, int32(0)
	for i := range nd.lo {
		if w := nd.hi[i] - nd.lo[i]; w > width {
			branch, width = i, w
		}
	}
	return branch
}

// propagate 约束传播
// 功能：在变量盒上反复收紧整数边界直至不动点或轮数耗尽
// 返回：false表示检测到不可行（某约束无法满足或某变量值域为空）
func (m *Model) propagate(lo, hi []int32) bool {
	for pass := 0; pass < maxPropagatePasses; pass++ {
		changed := false
		for i := range m.cons {
			c := &m.cons[i]
			switch c.sense {
			case SenseLE:
				ok, ch := tightenLE(c.expr, 1, c.rhs, lo, hi)
				if !ok {
					return false
				}
				changed = changed || ch
			case SenseGE:
				// a·x ≥ rhs 等价于 −a·x ≤ −rhs
				ok, ch := tightenLE(c.expr, -1, -c.rhs, lo, hi)
				if !ok {
					return false
				}
				changed = changed || ch
			case SenseEQ:
				ok1, ch1 := tightenLE(c.expr, 1, c.rhs, lo, hi)
				if !ok1 {
					return false
				}
				ok2, ch2 := tightenLE(c.expr, -1, -c.rhs, lo, hi)
				if !ok2 {
					return false
				}
				changed = changed || ch1 || ch2
			}
		}
		if !changed {
			break
		}
	}
	return true
}

// tightenLE 对 sign·expr ≤ rhs 做边界收紧
// 参数：sign-取值±1，用于复用≥约束；rhs已按sign调整
// 返回：(是否可行, 是否收紧了任何边界)
// 算法说明：
// 对每个变量j，计算其余各项贡献的最小值residMin，
// 则 a·xⱼ ≤ rhs − residMin，按a的符号对xⱼ做floor/ceil整数收紧。
func tightenLE(e *LinExpr, sign float64, rhs float64, lo, hi []int32) (ok bool, changed bool) {
	// 整体下界检查
	minA := sign * e.constant
	for _, t := range e.terms {
		a := sign * t.coef
		minA += math.Min(a*float64(lo[t.varIndex]), a*float64(hi[t.varIndex]))
	}
	if minA > rhs+eps {
		return false, false
	}

	for _, t := range e.terms {
		a := sign * t.coef
		if a == 0 {
			continue
		}
		j := t.varIndex
		residMin := minA - math.Min(a*float64(lo[j]), a*float64(hi[j]))
		limit := (rhs - residMin) / a
		if a > 0 {
			ub := int32(math.Floor(limit + eps))
			if ub < hi[j] {
				hi[j] = ub
				changed = true
			}
		} else {
			lb := int32(math.Ceil(limit - eps))
			if lb > lo[j] {
				lo[j] = lb
				changed = true
			}
		}
		if lo[j] > hi[j] {
			return false, changed
		}
	}
	return true, changed
}

// lowerBound 计算目标在变量盒上的下界
// 算法说明：每个平方项在盒上的区间为[a, b]，
// 若区间跨零则平方最小值为0，否则为min(a², b²)，按权重加和。
func (m *Model) lowerBound(lo, hi []int32) float64 {
	bound := 0.
	for _, t := range m.terms {
		a, b := t.expr.interval(lo, hi)
		if a <= 0 && b >= 0 {
			continue
		}
		bound += t.weight * math.Min(a*a, b*b)
	}
	return bound
}

// satisfied 检查完整赋值是否满足所有约束
func (m *Model) satisfied(vals []int32) bool {
	for i := range m.cons {
		c := &m.cons[i]
		v := c.expr.eval(vals)
		switch c.sense {
		case SenseLE:
			if v > c.rhs+eps {
				return false
			}
		case SenseGE:
			if v < c.rhs-eps {
				return false
			}
		case SenseEQ:
			if math.Abs(v-c.rhs) > eps {
				return false
			}
		}
	}
	return true
}

// objective 计算完整赋值下的目标值
func (m *Model) objective(vals []int32) float64 {
	obj := 0.
	for _, t := range m.terms {
		v := t.expr.eval(vals)
		obj += t.weight * v * v
	}
	return obj
}
