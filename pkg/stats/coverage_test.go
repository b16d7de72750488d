package stats

import (
	"testing"

	"github.com/paiban/kinmu/pkg/model"
	"github.com/paiban/kinmu/pkg/scheduler/window"
)

func cell(s string) *string {
	return &s
}

func testMapping() *window.Mapping {
	return window.Build([]model.Shift{
		{Code: "EA", Name: "早番", Start: 7, End: 16},
		{Code: "NA", Name: "夜勤", Start: 21, End: 31},
	})
}

func TestAnalyze_SameDayAndCarryOver(t *testing.T) {
	people := []model.Person{{ID: "田中"}, {ID: "鈴木"}}
	schedule := map[string][]*string{
		"田中": {cell("NA"), nil},
		"鈴木": {cell("EA"), cell("EA")},
	}

	needFor := func(day int, label string) int { return 1 }

	breakdown, shortages := NewAnalyzer(CoverageInput{
		Schedule:      schedule,
		People:        people,
		Days:          2,
		Mapping:       testMapping(),
		NeedFor:       needFor,
		PreviousCarry: map[string]int{},
	}).Analyze()

	// 第1日：NA 当日覆盖 18-24 与 0-7，EA 覆盖 7-9 与 9-15
	day1 := breakdown[1]
	if day1["18-24"].Actual != 1 {
		t.Errorf("day1 18-24 actual = %d, expected 1", day1["18-24"].Actual)
	}
	if day1["0-7"].Actual != 1 {
		t.Errorf("day1 0-7 actual = %d, expected 1", day1["0-7"].Actual)
	}
	if day1["7-9"].Actual != 1 || day1["9-15"].Actual != 1 {
		t.Errorf("day1 早班覆盖不正确: %+v", day1)
	}
	if day1["16-18"].Shortage != 1 {
		t.Errorf("day1 16-18 shortage = %d, expected 1", day1["16-18"].Shortage)
	}

	// 第2日：前日 NA 跨日覆盖 0-7
	day2 := breakdown[2]
	if day2["0-7"].Actual != 1 {
		t.Errorf("day2 0-7 actual = %d, expected 1（跨日）", day2["0-7"].Actual)
	}
	if day2["18-24"].Actual != 0 {
		t.Errorf("day2 18-24 actual = %d, expected 0", day2["18-24"].Actual)
	}

	// 缺员列表的日序号为1起，actual+shortage ≥ need
	for _, s := range shortages {
		if s.Day < 1 || s.Day > 2 {
			t.Errorf("缺员日序号越界: %+v", s)
		}
		row := breakdown[s.Day][s.TimeRange]
		if row.Actual+row.Shortage < needFor(s.Day-1, s.TimeRange) {
			t.Errorf("覆盖不变式不成立: %+v", row)
		}
	}
}

func TestAnalyze_PreviousCarry(t *testing.T) {
	people := []model.Person{{ID: "田中"}}
	schedule := map[string][]*string{
		"田中": {cell("NA"), nil},
	}

	breakdown, _ := NewAnalyzer(CoverageInput{
		Schedule:      schedule,
		People:        people,
		Days:          2,
		Mapping:       testMapping(),
		NeedFor:       func(day int, label string) int { return 2 },
		PreviousCarry: map[string]int{"0-7": 1},
	}).Analyze()

	// 第1日 0-7：当日 NA(1) + 上月延续(1)
	if breakdown[1]["0-7"].Actual != 2 {
		t.Errorf("day1 0-7 actual = %d, expected 2", breakdown[1]["0-7"].Actual)
	}
	// 延续只作用于第1日
	if breakdown[2]["0-7"].Actual != 1 {
		t.Errorf("day2 0-7 actual = %d, expected 1", breakdown[2]["0-7"].Actual)
	}
}

func TestAnalyze_TokensDoNotCover(t *testing.T) {
	people := []model.Person{{ID: "田中"}}
	schedule := map[string][]*string{
		"田中": {cell(model.TokenNightRecovery), cell(model.TokenPaidLeave)},
	}

	breakdown, _ := NewAnalyzer(CoverageInput{
		Schedule:      schedule,
		People:        people,
		Days:          2,
		Mapping:       testMapping(),
		NeedFor:       func(day int, label string) int { return 0 },
		PreviousCarry: map[string]int{},
	}).Analyze()

	for d := 1; d <= 2; d++ {
		for _, label := range window.Labels {
			if breakdown[d][label].Actual != 0 {
				t.Errorf("记号不应计入覆盖: day%d %s", d, label)
			}
		}
	}
}

func TestAnalyze_EmptySchedule(t *testing.T) {
	breakdown, shortages := NewAnalyzer(CoverageInput{
		Schedule:      map[string][]*string{},
		People:        nil,
		Days:          1,
		Mapping:       testMapping(),
		NeedFor:       func(day int, label string) int { return 2 },
		PreviousCarry: map[string]int{},
	}).Analyze()

	// 无人时缺员等于需求
	for _, label := range window.Labels {
		if breakdown[1][label].Shortage != 2 {
			t.Errorf("%s shortage = %d, expected 2", label, breakdown[1][label].Shortage)
		}
	}
	if len(shortages) != len(window.Labels) {
		t.Errorf("缺员条目数 = %d, expected %d", len(shortages), len(window.Labels))
	}
}
