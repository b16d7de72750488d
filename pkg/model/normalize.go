package model

import "github.com/samber/lo"

// 默认配对冲突涉及的人员（参考配置未提供时的兜底）
const (
	defaultPairFirst  = "柴田"
	defaultPairSecond = "森川孝"
)

// ClampNightRest 将夜班休息天数裁剪到 [0, 7]
func ClampNightRest(rest map[string]int) map[string]int {
	out := make(map[string]int, len(rest))
	for code, days := range rest {
		if days < 0 {
			days = 0
		}
		if days > 7 {
			days = 7
		}
		out[code] = days
	}
	return out
}

// RecoveryCount 返回某夜班代码记「明」的天数：
// 默认等于休息天数，可被 nightRecoveryCounts 覆盖并裁剪到 [0, restDays]
func (r Rules) RecoveryCount(code string) int {
	rest, ok := r.NightRest[code]
	if !ok {
		return 0
	}
	count, ok := r.NightRecoveryCounts[code]
	if !ok {
		return rest
	}
	if count < 0 {
		return 0
	}
	if count > rest {
		return rest
	}
	return count
}

// FilterDayIndices 过滤越界的日下标，保持原顺序并去重
func FilterDayIndices(days []int, numDays int) []int {
	kept := lo.Filter(days, func(d int, _ int) bool {
		return d >= 0 && d < numDays
	})
	return lo.Uniq(kept)
}

// FilterDayIndexMap 对每个人的日下标列表做越界过滤
func FilterDayIndexMap(m map[string][]int, numDays int) map[string][]int {
	out := make(map[string][]int, len(m))
	for id, days := range m {
		out[id] = FilterDayIndices(days, numDays)
	}
	return out
}

// FilterNightCarry 丢弃无效的上月夜班延续条目：
// 代码不在 nightRest 中、或人员不在名单中的条目被静默剔除
func FilterNightCarry(carry map[string][]string, rules Rules, people []Person) map[string][]string {
	roster := make(map[string]bool, len(people))
	for _, p := range people {
		roster[p.ID] = true
	}

	out := make(map[string][]string, len(carry))
	for code, ids := range carry {
		if _, ok := rules.NightRest[code]; !ok {
			continue
		}
		kept := lo.Filter(ids, func(id string, _ int) bool {
			return roster[id]
		})
		if len(kept) > 0 {
			out[code] = lo.Uniq(kept)
		}
	}
	return out
}

// NormalizePairConflicts 将请求或配置中的配对冲突规范化为统一表示：
// 人员须恰为两人、规则的班次列表非空，否则整条丢弃
func NormalizePairConflicts(conflicts []PairShiftConflict) []PairShiftConflict {
	var out []PairShiftConflict
	for _, c := range conflicts {
		if len(c.People) != 2 || c.People[0] == "" || c.People[1] == "" {
			continue
		}
		rules := lo.Filter(c.Rules, func(r PairRule, _ int) bool {
			return len(r.FirstPersonShifts) > 0 && len(r.SecondPersonShifts) > 0
		})
		if len(rules) == 0 {
			continue
		}
		out = append(out, PairShiftConflict{People: c.People, Rules: rules})
	}
	return out
}

// EffectivePairConflicts 决定生效的配对冲突：请求优先，其次参考配置，
// 两者皆缺且名单包含默认两人时回退到内置默认规则
func EffectivePairConflicts(request []PairShiftConflict, rules Rules, people []Person) []PairShiftConflict {
	if normalized := NormalizePairConflicts(request); len(normalized) > 0 {
		return normalized
	}
	if normalized := NormalizePairConflicts(rules.PairShiftConflicts); len(normalized) > 0 {
		return normalized
	}
	return DefaultPairConflicts(people)
}

// DefaultPairConflicts 返回内置默认冲突，仅当两名默认人员都在名单中
func DefaultPairConflicts(people []Person) []PairShiftConflict {
	hasFirst := lo.ContainsBy(people, func(p Person) bool { return p.ID == defaultPairFirst })
	hasSecond := lo.ContainsBy(people, func(p Person) bool { return p.ID == defaultPairSecond })
	if !hasFirst || !hasSecond {
		return nil
	}
	return []PairShiftConflict{
		{
			People: []string{defaultPairFirst, defaultPairSecond},
			Rules: []PairRule{
				{FirstPersonShifts: []string{"NC"}, SecondPersonShifts: []string{"NA"}, DayOffset: 0},
				{FirstPersonShifts: []string{"NC"}, SecondPersonShifts: []string{"EA", "NA"}, DayOffset: 1},
			},
		},
	}
}
