// Package window 将班次区间映射到每日的固定时间窗
package window

import (
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/paiban/kinmu/pkg/model"
)

// Labels 固定时间窗标签，模型构造按此顺序迭代
var Labels = []string{"7-9", "9-15", "16-18", "18-24", "0-7"}

// Mapping 时间窗到班次代码的映射
type Mapping struct {
	// SameDay 当日覆盖：班次的 [start, min(end,24)) 部分与窗口重叠；
	// "0-7" 窗例外，用班次完整区间与 [24,31) 比较
	SameDay map[string][]string
	// CarryOver 跨日覆盖：班次的午夜后部分与次日窗口重叠
	CarryOver map[string][]string
}

type interval struct {
	start int
	end   int
}

// overlaps 严格重叠：max(a1,b1) < min(a2,b2)
func (iv interval) overlaps(other interval) bool {
	low := iv.start
	if other.start > low {
		low = other.start
	}
	high := iv.end
	if other.end < high {
		high = other.end
	}
	return low < high
}

// parseLabel 解析 "7-9" 形式的标签
func parseLabel(label string) interval {
	parts := strings.SplitN(label, "-", 2)
	start, _ := strconv.Atoi(parts[0])
	end, _ := strconv.Atoi(parts[1])
	return interval{start: start, end: end}
}

// sameDayInterval 当日匹配区间。"0-7" 视为 [24,31)，
// 使 21-31 这类班次覆盖其起始日的 0-7 窗
func sameDayInterval(label string) interval {
	iv := parseLabel(label)
	if iv.start == 0 {
		return interval{start: iv.start + 24, end: iv.end + 24}
	}
	return iv
}

// carryOverInterval 跨日匹配区间。"0-7" 按字面 [0,7) 匹配前一日班次的午夜后部分
func carryOverInterval(label string) interval {
	return parseLabel(label)
}

// Build 根据班次表构建时间窗映射。去重保持插入顺序，保证模型构造确定性
func Build(shifts []model.Shift) *Mapping {
	m := &Mapping{
		SameDay:   make(map[string][]string, len(Labels)),
		CarryOver: make(map[string][]string, len(Labels)),
	}

	for _, label := range Labels {
		same := sameDayInterval(label)
		carry := carryOverInterval(label)

		var sameCodes, carryCodes []string
		for _, s := range shifts {
			if sameDayPortion(s, label).overlaps(same) {
				sameCodes = append(sameCodes, s.Code)
			}
			if post, ok := postMidnightPortion(s); ok && post.overlaps(carry) {
				carryCodes = append(carryCodes, s.Code)
			}
		}

		m.SameDay[label] = lo.Uniq(sameCodes)
		m.CarryOver[label] = lo.Uniq(carryCodes)
	}

	return m
}

// sameDayPortion 班次参与当日匹配的区间。"0-7" 窗用完整区间
// 与 [24,31) 比较，其余窗只取午夜前部分
func sameDayPortion(s model.Shift, label string) interval {
	if strings.HasPrefix(label, "0-") {
		return interval{start: s.Start, end: s.End}
	}
	end := s.End
	if end > 24 {
		end = 24
	}
	return interval{start: s.Start, end: end}
}

// postMidnightPortion 班次的午夜后部分，折回 [0,24) 表示
func postMidnightPortion(s model.Shift) (interval, bool) {
	if s.End <= 24 {
		return interval{}, false
	}
	start := s.Start
	if start < 24 {
		start = 24
	}
	return interval{start: start - 24, end: s.End - 24}, true
}

// CoveringSameDay 返回当日覆盖任意 "a-b" 标签窗口的班次代码，
// 用于严格人数带（标签不限于固定五窗）
func CoveringSameDay(shifts []model.Shift, label string) []string {
	same := sameDayInterval(label)
	var codes []string
	for _, s := range shifts {
		if sameDayPortion(s, label).overlaps(same) {
			codes = append(codes, s.Code)
		}
	}
	return lo.Uniq(codes)
}

// CarryCount 计算上月夜班延续对第 0 天各窗口的贡献人数
func CarryCount(m *Mapping, carry map[string][]string) map[string]int {
	counts := make(map[string]int, len(Labels))
	for _, label := range Labels {
		total := 0
		for _, code := range m.CarryOver[label] {
			total += len(carry[code])
		}
		counts[label] = total
	}
	return counts
}
