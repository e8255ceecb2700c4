// 有界整数二次规划求解器
// 决策变量为有界整数，约束为线性等式/不等式，目标为带权仿射平方和（最小化）。
// 求解器不在两次调用之间保留任何状态，每个控制周期重新构建模型。
package solver

import "fmt"

// Status 求解状态
type Status string

const (
	StatusOptimal    Status = "optimal"    // 已证明最优
	StatusFeasible   Status = "feasible"   // 找到可行解但未证明最优（搜索被截断）
	StatusInfeasible Status = "infeasible" // 无可行解
	StatusUnbounded  Status = "unbounded"  // 目标无下界（平方和目标下不会出现，保留以兼容接口）
	StatusError      Status = "error"      // 模型构建错误
	StatusUnknown    Status = "unknown"    // 搜索未得出结论（超时或取消）
)

// Sense 线性约束的比较方向
type Sense int8

const (
	SenseLE Sense = iota // 小于等于
	SenseGE              // 大于等于
	SenseEQ              // 等于
)

// Var 决策变量
// 功能：表示模型中的一个有界整数变量
// 说明：由Model.NewIntVar创建，句柄用于构造表达式和读取解
type Var struct {
	name   string
	index  int
	lb, ub int32
}

// Name 返回变量名
func (v *Var) Name() string {
	return v.name
}

// term 线性表达式中的一项
type term struct {
	varIndex int
	coef     float64
}

// LinExpr 线性表达式 Σ aᵢ·xᵢ + c
// 说明：既用于线性约束的左端，也用于平方目标项的内层表达式
type LinExpr struct {
	terms    []term
	constant float64
}

// NewLinExpr 创建空线性表达式
func NewLinExpr() *LinExpr {
	return &LinExpr{}
}

// AddTerm 添加一项 coef·v
// 返回：表达式自身，支持链式调用
func (e *LinExpr) AddTerm(v *Var, coef float64) *LinExpr {
	e.terms = append(e.terms, term{varIndex: v.index, coef: coef})
	return e
}

// AddConst 累加常数项
// 返回：表达式自身，支持链式调用
func (e *LinExpr) AddConst(c float64) *LinExpr {
	e.constant += c
	return e
}

// eval 在完整赋值下计算表达式值
func (e *LinExpr) eval(values []int32) float64 {
	r := e.constant
	for _, t := range e.terms {
		r += t.coef * float64(values[t.varIndex])
	}
	return r
}

// interval 在变量盒[lo, hi]上计算表达式的取值区间
func (e *LinExpr) interval(lo, hi []int32) (float64, float64) {
	min, max := e.constant, e.constant
	for _, t := range e.terms {
		a, b := t.coef*float64(lo[t.varIndex]), t.coef*float64(hi[t.varIndex])
		if a > b {
			a, b = b, a
		}
		min += a
		max += b
	}
	return min, max
}

// linConstraint 线性约束 expr (≤|≥|=) rhs
type linConstraint struct {
	expr  *LinExpr
	sense Sense
	rhs   float64
	name  string
}

// squareTerm 目标中的一个带权平方项 weight·(expr)²
type squareTerm struct {
	weight float64
	expr   *LinExpr
}

// Model 待求解的优化模型
// 功能：收集变量、约束与目标项，构建完成后调用Solve求解
// 说明：构建期错误被记录并延迟到Solve时以StatusError统一报告
type Model struct {
	name  string
	vars  []*Var
	names map[string]struct{}
	cons  []linConstraint
	terms []squareTerm
	err   error
}

// NewModel 创建优化模型
// 参数：name-模型名，用于日志
func NewModel(name string) *Model {
	return &Model{
		name:  name,
		names: make(map[string]struct{}),
	}
}

// NewIntVar 添加有界整数决策变量
// 参数：name-变量名（需唯一），lb/ub-取值范围（含端点）
// 返回：变量句柄
// 说明：边界非法或重名记录为构建错误
func (m *Model) NewIntVar(name string, lb, ub int32) *Var {
	if lb > ub && m.err == nil {
		m.err = fmt.Errorf("variable %s has empty domain [%d, %d]", name, lb, ub)
	}
	if _, ok := m.names[name]; ok && m.err == nil {
		m.err = fmt.Errorf("duplicated variable name %s", name)
	}
	m.names[name] = struct{}{}
	v := &Var{name: name, index: len(m.vars), lb: lb, ub: ub}
	m.vars = append(m.vars, v)
	return v
}

// AddConstraint 添加线性约束 expr (≤|≥|=) rhs
func (m *Model) AddConstraint(expr *LinExpr, sense Sense, rhs float64, name string) {
	m.cons = append(m.cons, linConstraint{expr: expr, sense: sense, rhs: rhs, name: name})
}

// AddSquareTerm 向目标追加带权平方项 weight·(expr)²
// 说明：目标为所有平方项之和，方向固定为最小化；weight须非负
func (m *Model) AddSquareTerm(weight float64, expr *LinExpr) {
	if weight < 0 && m.err == nil {
		m.err = fmt.Errorf("negative square term weight %v", weight)
	}
	m.terms = append(m.terms, squareTerm{weight: weight, expr: expr})
}

// Result 求解结果
type Result struct {
	Status    Status
	Objective float64 // 最优/最好目标值，仅当找到解时有效
	Err       error   // StatusError时的错误详情
	values    []int32
}

// Value 读取变量在解中的取值
// 说明：仅当Status为optimal或feasible时有效
func (r *Result) Value(v *Var) int32 {
	return r.values[v.index]
}
