package scheduler

import (
	"github.com/paiban/kinmu/pkg/model"
	"github.com/paiban/kinmu/pkg/scheduler/cpsat"
)

// renderSchedule 将求解取值翻译为每人每日的排班单元格：
// 「明」优先，其次有給，再按配置顺序取第一个命中的班次，否则留空
func renderSchedule(sol *cpsat.Solution, bm *builtModel, pr *problem) map[string][]*string {
	schedule := make(map[string][]*string, len(pr.people))

	for p, person := range pr.people {
		paid := pr.paidLeaveSet(person.ID)
		cells := make([]*string, pr.days)

		for d := 0; d < pr.days; d++ {
			switch {
			case sol.BoolValue(bm.recovery[recKey{p, d}]):
				cells[d] = cellValue(model.TokenNightRecovery)
			case paid[d]:
				cells[d] = cellValue(model.TokenPaidLeave)
			default:
				for _, code := range pr.codes {
					if sol.BoolValue(bm.work[workKey{p, d, code}]) {
						cells[d] = cellValue(code)
						break
					}
				}
			}
		}

		schedule[person.ID] = cells
	}

	return schedule
}

func cellValue(s string) *string {
	return &s
}
