// Package validator 对人工编辑后的排班表复查硬性规则
package validator

import (
	"fmt"

	"github.com/paiban/kinmu/pkg/model"
)

// RuleValidator 排班规则校验器。
// 逐人从左到右扫描：连勤计数（「明」与有給计入、空格重置）、
// 周工时（周日边界清零）与月工时
type RuleValidator struct {
	shiftHours    map[string]int
	days          int
	weekdayOfDay1 int
}

// New 创建规则校验器
func New(shifts []model.Shift, days, weekdayOfDay1 int) *RuleValidator {
	hours := make(map[string]int, len(shifts))
	for _, s := range shifts {
		hours[s.Code] = s.Hours()
	}
	return &RuleValidator{
		shiftHours:    hours,
		days:          days,
		weekdayOfDay1: weekdayOfDay1,
	}
}

// Validate 返回违反项列表，为空表示通过
func (v *RuleValidator) Validate(schedule map[string][]*string, people []model.Person) []string {
	var violations []string

	for _, person := range people {
		cells := schedule[person.ID]

		consecutive := 0
		weeklyHours := 0
		monthlyHours := 0

		for d := 0; d < v.days; d++ {
			cell := cellAt(cells, d)
			hours := v.hoursFor(cell)

			if cell != "" {
				consecutive++
				if person.ConsecMax > 0 && consecutive > person.ConsecMax {
					violations = append(violations,
						fmt.Sprintf("%s: %d日を超える連勤 (day %d)", person.ID, person.ConsecMax, d+1))
				}
			} else {
				consecutive = 0
			}

			weeklyHours += hours
			monthlyHours += hours

			if model.IsWeekEnd(v.weekdayOfDay1, d) {
				if weeklyHours > person.WeeklyMax {
					violations = append(violations,
						fmt.Sprintf("%s: 週の労働時間上限 %dh を超過", person.ID, person.WeeklyMax))
				}
				weeklyHours = 0
			}
		}

		if weeklyHours > person.WeeklyMax {
			violations = append(violations,
				fmt.Sprintf("%s: 週の労働時間上限 %dh を超過", person.ID, person.WeeklyMax))
		}
		if monthlyHours > person.MonthlyMax {
			violations = append(violations,
				fmt.Sprintf("%s: 月の労働時間上限 %dh を超過", person.ID, person.MonthlyMax))
		}
	}

	return violations
}

// hoursFor 单元格折算工时。「明」「有給」为零工时但算作出勤
func (v *RuleValidator) hoursFor(cell string) int {
	if cell == "" || cell == model.TokenNightRecovery || cell == model.TokenPaidLeave {
		return 0
	}
	return v.shiftHours[cell]
}

func cellAt(cells []*string, d int) string {
	if d < 0 || d >= len(cells) || cells[d] == nil {
		return ""
	}
	return *cells[d]
}
