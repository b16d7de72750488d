// Package handler 提供HTTP请求处理器
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/paiban/kinmu/internal/loader"
	"github.com/paiban/kinmu/internal/metrics"
	"github.com/paiban/kinmu/internal/repository"
	"github.com/paiban/kinmu/pkg/errors"
	"github.com/paiban/kinmu/pkg/logger"
	"github.com/paiban/kinmu/pkg/model"
	"github.com/paiban/kinmu/pkg/scheduler"
	"github.com/paiban/kinmu/pkg/state"
	"github.com/paiban/kinmu/pkg/validator"
)

// ScheduleHandler 排班处理器
type ScheduleHandler struct {
	loader  *loader.Loader
	engine  *scheduler.Engine
	store   *state.Store
	history *repository.HistoryRepository // 可选，nil 表示不归档
}

// NewScheduleHandler 创建排班处理器
func NewScheduleHandler(
	ld *loader.Loader,
	engine *scheduler.Engine,
	store *state.Store,
	history *repository.HistoryRepository,
) *ScheduleHandler {
	return &ScheduleHandler{
		loader:  ld,
		engine:  engine,
		store:   store,
		history: history,
	}
}

// InitialData 返回参考配置
func (h *ScheduleHandler) InitialData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持GET方法"))
		return
	}

	data, err := h.loader.Load()
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, data)
}

// Generate 生成排班。求解错误不经错误通道，
// 折叠为 status=SOLVER_ERROR 的正常响应
func (h *ScheduleHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req model.ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}

	// 生成操作不走错误通道：参考配置加载失败同样折叠为 SOLVER_ERROR
	data, err := h.loader.Load()
	if err != nil {
		respondJSON(w, http.StatusOK, &model.ScheduleResponse{
			Schedule:          map[string][]*string{},
			Shortages:         []model.ShortageInfo{},
			CoverageBreakdown: model.CoverageBreakdown{},
			Status:            scheduler.StatusSolverError,
			Message:           err.Error(),
		})
		return
	}

	resp, meta := h.engine.Generate(data, &req)
	metrics.RecordSolve(meta.Status, len(resp.Shortages), meta.Duration)
	h.archive(resp, meta, len(req.People), data.Days)

	respondJSON(w, http.StatusOK, resp)
}

// archive 将求解结果异步写入历史归档
func (h *ScheduleHandler) archive(resp *model.ScheduleResponse, meta scheduler.Result, people, days int) {
	if h.history == nil {
		return
	}
	rec := &repository.SolveRecord{
		Status:        meta.Status,
		Objective:     meta.Objective,
		People:        people,
		Days:          days,
		ShortageCount: len(resp.Shortages),
		Schedule:      resp.Schedule,
		DurationMS:    meta.Duration.Milliseconds(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.history.Record(ctx, rec); err != nil {
			logger.Warn().Err(err).Msg("求解历史归档失败")
		}
	}()
}

// ValidateRequest 排班校验请求
type ValidateRequest struct {
	Schedule map[string][]*string `json:"schedule"`
	People   []model.Person       `json:"people,omitempty"`
}

// ValidateResponse 排班校验响应
type ValidateResponse struct {
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations"`
}

// Validate 校验人工编辑后的排班表，不做持久化
func (h *ScheduleHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}

	violations, err := h.checkRules(req.Schedule, req.People)
	if err != nil {
		respondError(w, err)
		return
	}

	if violations == nil {
		violations = []string{}
	}
	respondJSON(w, http.StatusOK, ValidateResponse{
		Valid:      len(violations) == 0,
		Violations: violations,
	})
}

// SaveDraft 保存草稿：版本加一，保持未锁定
func (h *ScheduleHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, false, "draft")
}

// Finalize 定稿：版本加一并锁定，此后拒绝任何修改
func (h *ScheduleHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, true, "finalize")
}

func (h *ScheduleHandler) save(w http.ResponseWriter, r *http.Request, lock bool, kind string) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req model.ScheduleSaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}

	// 先做规则复查，再做版本与锁校验
	violations, err := h.checkRules(req.Schedule, req.People)
	if err != nil {
		respondError(w, err)
		return
	}
	if len(violations) > 0 {
		metrics.RecordStateSave(kind, false)
		respondError(w, errors.RuleViolation(violations))
		return
	}

	resp, err := h.store.Apply(&req, lock)
	if err != nil {
		metrics.RecordStateSave(kind, false)
		respondError(w, err)
		return
	}

	metrics.RecordStateSave(kind, true)
	respondJSON(w, http.StatusOK, resp)
}

// checkRules 以参考配置为上下文复查排班规则。
// 请求可携带替代人员名单，否则用配置中的名单
func (h *ScheduleHandler) checkRules(schedule map[string][]*string, people []model.Person) ([]string, error) {
	data, err := h.loader.Load()
	if err != nil {
		return nil, err
	}
	if people == nil {
		people = data.People
	}
	v := validator.New(data.Shifts, data.Days, data.WeekdayOfDay1)
	return v.Validate(schedule, people), nil
}

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		logger.Error().Err(err).Msg("序列化响应失败")
	}
}

// respondError 返回错误响应。
// 错误体固定携带 reason 与 message，附加字段平铺其后
func respondError(w http.ResponseWriter, err error) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		appErr = errors.Wrap(err, errors.CodeInternal, "内部错误")
	}

	body := map[string]interface{}{
		"reason":  string(appErr.Code),
		"message": appErr.Message,
	}
	for k, v := range appErr.Fields {
		body[k] = v
	}

	respondJSON(w, appErr.HTTPStatus, body)
}
