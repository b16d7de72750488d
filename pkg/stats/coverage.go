// Package stats 提供排班覆盖统计分析
package stats

import (
	"github.com/paiban/kinmu/pkg/model"
	"github.com/paiban/kinmu/pkg/scheduler/window"
)

// CoverageInput 覆盖分析输入
type CoverageInput struct {
	// Schedule 渲染后的排班表（记号「明」「有給」不计入覆盖）
	Schedule map[string][]*string
	// People 人员迭代顺序
	People []model.Person
	// Days 排班天数
	Days int
	// Mapping 时间窗映射
	Mapping *window.Mapping
	// NeedFor 第 d 天（0 起）某时间窗的需求人数
	NeedFor func(day int, label string) int
	// PreviousCarry 上月延续对第 0 天各窗口的贡献
	PreviousCarry map[string]int
}

// Analyzer 覆盖率分析器
type Analyzer struct {
	in CoverageInput
}

// NewAnalyzer 创建覆盖率分析器
func NewAnalyzer(in CoverageInput) *Analyzer {
	return &Analyzer{in: in}
}

// Analyze 计算每日每窗的覆盖明细与缺员列表。
// 有效覆盖与求解模型同式：当日班次 + 前一日跨午夜班次 + 第 0 天延续常数
func (a *Analyzer) Analyze() (model.CoverageBreakdown, []model.ShortageInfo) {
	breakdown := make(model.CoverageBreakdown, a.in.Days)
	shortages := []model.ShortageInfo{}

	sameDay := indexMembership(a.in.Mapping.SameDay)
	carryOver := indexMembership(a.in.Mapping.CarryOver)

	for d := 0; d < a.in.Days; d++ {
		row := make(map[string]model.CoverageCell, len(window.Labels))
		for _, label := range window.Labels {
			need := a.in.NeedFor(d, label)
			actual := a.actualFor(d, label, sameDay, carryOver)

			shortage := need - actual
			if shortage < 0 {
				shortage = 0
			}

			row[label] = model.CoverageCell{Need: need, Actual: actual, Shortage: shortage}
			if shortage > 0 {
				shortages = append(shortages, model.ShortageInfo{
					Day:       d + 1,
					TimeRange: label,
					Shortage:  shortage,
				})
			}
		}
		breakdown[d+1] = row
	}

	return breakdown, shortages
}

// actualFor 第 d 天某时间窗的实际覆盖人数
func (a *Analyzer) actualFor(d int, label string, sameDay, carryOver map[string]map[string]bool) int {
	actual := 0
	for _, person := range a.in.People {
		cells := a.in.Schedule[person.ID]

		if code := shiftCodeAt(cells, d); code != "" && sameDay[label][code] {
			actual++
		}
		if d > 0 {
			if code := shiftCodeAt(cells, d-1); code != "" && carryOver[label][code] {
				actual++
			}
		}
	}
	if d == 0 {
		actual += a.in.PreviousCarry[label]
	}
	return actual
}

// shiftCodeAt 读取某日的班次代码；空格、「明」「有給」都返回空串
func shiftCodeAt(cells []*string, d int) string {
	if d < 0 || d >= len(cells) || cells[d] == nil {
		return ""
	}
	code := *cells[d]
	if code == model.TokenNightRecovery || code == model.TokenPaidLeave {
		return ""
	}
	return code
}

func indexMembership(m map[string][]string) map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(m))
	for label, codes := range m {
		set := make(map[string]bool, len(codes))
		for _, code := range codes {
			set[code] = true
		}
		out[label] = set
	}
	return out
}
