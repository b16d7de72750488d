package scheduler

import (
	"fmt"
	"time"

	"github.com/paiban/kinmu/pkg/logger"
	"github.com/paiban/kinmu/pkg/model"
	"github.com/paiban/kinmu/pkg/stats"
)

// DefaultBudget 求解墙钟预算
const DefaultBudget = 60 * time.Second

// StatusSolverError 构造或求解过程抛错时的状态
const StatusSolverError = "SOLVER_ERROR"

// Engine 排班引擎：映射 → 建模 → 求解 → 渲染
type Engine struct {
	budget time.Duration
	log    *logger.SolverLogger
}

// NewEngine 创建排班引擎
func NewEngine(budget time.Duration) *Engine {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Engine{
		budget: budget,
		log:    logger.NewSolverLogger(),
	}
}

// Result 一次求解的元信息（归档与日志用）
type Result struct {
	Status    string
	Objective float64
	Duration  time.Duration
}

// Generate 生成排班。不向调用方抛错：
// 构造或求解错误折叠为 SOLVER_ERROR 响应
func (e *Engine) Generate(data *model.InitialData, req *model.ScheduleRequest) (resp *model.ScheduleResponse, meta Result) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%v", r)
			e.log.SolveFailed(err)
			resp = emptyResponse(StatusSolverError, err.Error())
			meta = Result{Status: StatusSolverError, Duration: time.Since(start)}
		}
	}()

	if data.Days == 0 {
		meta = Result{Status: "OPTIMAL", Duration: time.Since(start)}
		return emptyResponse("OPTIMAL", ""), meta
	}

	e.log.StartSolve(len(req.People), data.Days, len(data.Shifts))

	pr := newProblem(data, req)
	bm := buildModel(pr)
	e.log.ModelBuilt(bm.m.Counts())

	sol, err := bm.m.Solve(e.budget)
	if err != nil {
		e.log.SolveFailed(err)
		meta = Result{Status: StatusSolverError, Duration: time.Since(start)}
		return emptyResponse(StatusSolverError, err.Error()), meta
	}

	status := string(sol.Status)
	meta = Result{Status: status, Objective: sol.Objective, Duration: time.Since(start)}
	e.log.SolveComplete(status, sol.Objective, meta.Duration)

	if !sol.Feasible() {
		return emptyResponse(status, ""), meta
	}

	schedule := renderSchedule(sol, bm, pr)
	breakdown, shortages := stats.NewAnalyzer(stats.CoverageInput{
		Schedule:      schedule,
		People:        pr.people,
		Days:          pr.days,
		Mapping:       pr.mapping,
		NeedFor:       data.NeedFor,
		PreviousCarry: pr.carryCount,
	}).Analyze()

	return &model.ScheduleResponse{
		Schedule:          schedule,
		Shortages:         shortages,
		CoverageBreakdown: breakdown,
		Status:            status,
	}, meta
}

func emptyResponse(status, message string) *model.ScheduleResponse {
	return &model.ScheduleResponse{
		Schedule:          map[string][]*string{},
		Shortages:         []model.ShortageInfo{},
		CoverageBreakdown: model.CoverageBreakdown{},
		Status:            status,
		Message:           message,
	}
}
