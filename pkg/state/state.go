// Package state 提供排班状态的持久化与版本控制
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/paiban/kinmu/pkg/errors"
	"github.com/paiban/kinmu/pkg/model"
)

// Store 排班状态存储。磁盘上的 JSON 文件是唯一事实，
// 写入通过临时文件加重命名保证原子性
type Store struct {
	path string
}

// NewStore 创建状态存储
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load 读取持久化状态，文件不存在时返回默认状态
func (s *Store) Load() (*model.ScheduleState, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.NewScheduleState(), nil
		}
		return nil, errors.IO(err, "读取排班状态失败")
	}

	st := model.NewScheduleState()
	if err := json.Unmarshal(raw, st); err != nil {
		return nil, errors.IO(err, "解析排班状态失败")
	}
	if st.Schedule == nil {
		st.Schedule = map[string][]*string{}
	}
	return st, nil
}

// Save 原子写入状态：UTF-8、两空格缩进、保留非ASCII字符
func (s *Store) Save(st *model.ScheduleState) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".schedule_state-*.json")
	if err != nil {
		return errors.IO(err, "创建临时状态文件失败")
	}
	tmpPath := tmp.Name()

	enc := json.NewEncoder(tmp)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(st); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.IO(err, "序列化排班状态失败")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.IO(err, "写入排班状态失败")
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return errors.IO(err, "替换排班状态文件失败")
	}
	return nil
}

// Diff 计算两份排班表的单元格级差异。
// 人员并集按字典序迭代，日下标走到较长一方的长度，空等空不算变更
func Diff(previous, updated map[string][]*string) []model.ScheduleChange {
	ids := make(map[string]bool, len(previous)+len(updated))
	for id := range previous {
		ids[id] = true
	}
	for id := range updated {
		ids[id] = true
	}

	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	changes := []model.ScheduleChange{}
	for _, id := range sorted {
		prevCells := previous[id]
		nextCells := updated[id]

		maxLen := len(prevCells)
		if len(nextCells) > maxLen {
			maxLen = len(nextCells)
		}

		for d := 0; d < maxLen; d++ {
			before := cellAt(prevCells, d)
			after := cellAt(nextCells, d)
			if cellEqual(before, after) {
				continue
			}
			changes = append(changes, model.ScheduleChange{
				PersonID: id,
				DayIndex: d,
				Previous: before,
				Updated:  after,
			})
		}
	}
	return changes
}

// cellAt 越界返回空
func cellAt(cells []*string, d int) *string {
	if d < 0 || d >= len(cells) {
		return nil
	}
	return cells[d]
}

// cellEqual 空安全的单元格比较
func cellEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Enforce 版本与锁校验。已锁定一律拒绝；
// 请求带 baseVersion 且与当前版本不一致时报冲突并附差异
func Enforce(req *model.ScheduleSaveRequest, current *model.ScheduleState) error {
	if current.Locked {
		return errors.Locked(current.Version)
	}
	if req.BaseVersion != nil && *req.BaseVersion != current.Version {
		return errors.VersionConflict(current.Version, Diff(req.Schedule, current.Schedule))
	}
	return nil
}

// Apply 校验并持久化新状态：版本加一，lock 决定是否终态锁定。
// 返回的变更为当前状态到新排班的差异
func (s *Store) Apply(req *model.ScheduleSaveRequest, lock bool) (*model.ScheduleSaveResponse, error) {
	current, err := s.Load()
	if err != nil {
		return nil, err
	}
	if err := Enforce(req, current); err != nil {
		return nil, err
	}

	changes := Diff(current.Schedule, req.Schedule)

	next := &model.ScheduleState{
		Version:  current.Version + 1,
		Locked:   lock,
		Schedule: req.Schedule,
	}
	if next.Schedule == nil {
		next.Schedule = map[string][]*string{}
	}
	if err := s.Save(next); err != nil {
		return nil, err
	}

	return &model.ScheduleSaveResponse{
		Version: next.Version,
		Locked:  next.Locked,
		Changes: changes,
	}, nil
}
