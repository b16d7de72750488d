// Package cpsat 在窄接口后封装 CP-SAT 求解器，
// 使约束构造逻辑不直接依赖具体求解引擎
package cpsat

import (
	"fmt"
	"time"

	"github.com/google/or-tools/ortools/sat/go/cpmodel"
	cmpb "github.com/google/or-tools/ortools/sat/proto/cpmodel"
	sppb "github.com/google/or-tools/ortools/sat/proto/satparameters"
	"google.golang.org/protobuf/proto"
)

// Status 求解状态
type Status string

const (
	StatusOptimal      Status = "OPTIMAL"
	StatusFeasible     Status = "FEASIBLE"
	StatusInfeasible   Status = "INFEASIBLE"
	StatusModelInvalid Status = "MODEL_INVALID"
	StatusUnknown      Status = "UNKNOWN"
)

// Lit 布尔决策变量
type Lit struct {
	v cpmodel.BoolVar
}

// IntVar 整数决策变量
type IntVar struct {
	v cpmodel.IntVar
}

// Expr 线性表达式累加器
type Expr struct {
	e *cpmodel.LinearExpr
}

// NewExpr 创建空线性表达式
func NewExpr() *Expr {
	return &Expr{e: cpmodel.NewLinearExpr()}
}

// AddLit 追加布尔变量项
func (x *Expr) AddLit(l Lit) *Expr {
	x.e.Add(l.v)
	return x
}

// AddTermLit 追加带系数的布尔变量项
func (x *Expr) AddTermLit(l Lit, coeff int64) *Expr {
	x.e.AddTerm(l.v, coeff)
	return x
}

// AddInt 追加整数变量项
func (x *Expr) AddInt(v IntVar) *Expr {
	x.e.Add(v.v)
	return x
}

// AddTermInt 追加带系数的整数变量项
func (x *Expr) AddTermInt(v IntVar, coeff int64) *Expr {
	x.e.AddTerm(v.v, coeff)
	return x
}

// AddConst 追加常数项
func (x *Expr) AddConst(c int64) *Expr {
	x.e.AddConstant(c)
	return x
}

// Model 约束模型
type Model struct {
	b        *cpmodel.Builder
	boolVars int
	intVars  int
}

// NewModel 创建模型
func NewModel() *Model {
	return &Model{b: cpmodel.NewCpModelBuilder()}
}

// NewLit 创建布尔变量
func (m *Model) NewLit(name string) Lit {
	m.boolVars++
	return Lit{v: m.b.NewBoolVar().WithName(name)}
}

// NewIntVar 创建区间整数变量
func (m *Model) NewIntVar(lb, ub int64, name string) IntVar {
	m.intVars++
	return IntVar{v: m.b.NewIntVar(cpmodel.NewDomain(lb, ub)).WithName(name)}
}

// Counts 返回变量数量（日志用）
func (m *Model) Counts() (boolVars, intVars int) {
	return m.boolVars, m.intVars
}

// AddAtMostOne 至多一个为真
func (m *Model) AddAtMostOne(lits ...Lit) {
	m.b.AddAtMostOne(rawLits(lits)...)
}

// FixLit 固定布尔变量取值
func (m *Model) FixLit(l Lit, value bool) {
	target := int64(0)
	if value {
		target = 1
	}
	m.b.AddEquality(l.v, cpmodel.NewConstant(target))
}

// AddImplication a 为真时 b 必为真
func (m *Model) AddImplication(a, b Lit) {
	m.b.AddBoolOr(a.v.Not(), b.v)
}

// AddLE 表达式 ≤ 常数
func (m *Model) AddLE(x *Expr, bound int64) {
	m.b.AddLessOrEqual(x.e, cpmodel.NewConstant(bound))
}

// AddGE 表达式 ≥ 常数
func (m *Model) AddGE(x *Expr, bound int64) {
	m.b.AddGreaterOrEqual(x.e, cpmodel.NewConstant(bound))
}

// AddEq 表达式 = 常数
func (m *Model) AddEq(x *Expr, value int64) {
	m.b.AddEquality(x.e, cpmodel.NewConstant(value))
}

// AddEqZeroIf cond 为真时表达式必为零
func (m *Model) AddEqZeroIf(x *Expr, cond Lit) {
	m.b.AddEquality(x.e, cpmodel.NewConstant(0)).OnlyEnforceIf(cond.v)
}

// Minimize 设定最小化目标
func (m *Model) Minimize(x *Expr) {
	m.b.Minimize(x.e)
}

// Solution 求解结果
type Solution struct {
	Status    Status
	Objective float64
	resp      *cmpb.CpSolverResponse
}

// Feasible 是否得到可用解
func (s *Solution) Feasible() bool {
	return s.Status == StatusOptimal || s.Status == StatusFeasible
}

// BoolValue 读取布尔变量取值
func (s *Solution) BoolValue(l Lit) bool {
	return cpmodel.SolutionBooleanValue(s.resp, l.v)
}

// IntValue 读取整数变量取值
func (s *Solution) IntValue(v IntVar) int64 {
	return cpmodel.SolutionIntegerValue(s.resp, v.v)
}

// Solve 在时间预算内求解模型
func (m *Model) Solve(budget time.Duration) (*Solution, error) {
	mdl, err := m.b.Model()
	if err != nil {
		return nil, fmt.Errorf("构建CP模型失败: %w", err)
	}

	params := &sppb.SatParameters{
		MaxTimeInSeconds: proto.Float64(budget.Seconds()),
	}
	resp, err := cpmodel.SolveCpModelWithParameters(mdl, params)
	if err != nil {
		return nil, fmt.Errorf("求解CP模型失败: %w", err)
	}

	return &Solution{
		Status:    mapStatus(resp.GetStatus()),
		Objective: resp.GetObjectiveValue(),
		resp:      resp,
	}, nil
}

// mapStatus 转换求解器状态
func mapStatus(st cmpb.CpSolverStatus) Status {
	switch st {
	case cmpb.CpSolverStatus_OPTIMAL:
		return StatusOptimal
	case cmpb.CpSolverStatus_FEASIBLE:
		return StatusFeasible
	case cmpb.CpSolverStatus_INFEASIBLE:
		return StatusInfeasible
	case cmpb.CpSolverStatus_MODEL_INVALID:
		return StatusModelInvalid
	default:
		return StatusUnknown
	}
}

func rawLits(lits []Lit) []cpmodel.BoolVar {
	out := make([]cpmodel.BoolVar, len(lits))
	for i, l := range lits {
		out[i] = l.v
	}
	return out
}
