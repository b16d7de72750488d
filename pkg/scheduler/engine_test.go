package scheduler

import (
	"testing"
	"time"

	"github.com/paiban/kinmu/pkg/model"
)

// newTestData 构造最小参考配置。各窗需求默认为零，由用例覆盖
func newTestData(days int) *model.InitialData {
	zero := map[string]int{"7-9": 0, "9-15": 0, "16-18": 0, "18-24": 0, "0-7": 0}
	return &model.InitialData{
		Year:          2026,
		Month:         8,
		Days:          days,
		WeekdayOfDay1: 5, // 土曜
		Shifts: []model.Shift{
			{Code: "EA", Name: "早番", Start: 7, End: 16},
			{Code: "NA", Name: "夜勤", Start: 21, End: 31},
		},
		NeedTemplate: model.NeedTemplate{
			BathDay:   zero,
			NormalDay: zero,
			Wednesday: zero,
		},
		DayTypeByDate: make([]string, days),
		Rules: model.Rules{
			NightRest: map[string]int{"NA": 2},
		},
		Weights: model.Weights{
			WShortage:              10,
			WOverstaffGtNeedPlus1:  1,
			WRequestedOffViolation: 5,
		},
	}
}

func withNeeds(data *model.InitialData, needs map[string]int) *model.InitialData {
	data.NeedTemplate = model.NeedTemplate{
		BathDay:   needs,
		NormalDay: needs,
		Wednesday: needs,
	}
	return data
}

func testEngine() *Engine {
	return NewEngine(10 * time.Second)
}

func cellString(c *string) string {
	if c == nil {
		return ""
	}
	return *c
}

// assertCellInvariant 每个单元格为空、可上的班次代码或记号之一
func assertCellInvariant(t *testing.T, resp *model.ScheduleResponse, people []model.Person) {
	t.Helper()
	for _, person := range people {
		for d, c := range resp.Schedule[person.ID] {
			v := cellString(c)
			if v == "" || v == model.TokenNightRecovery || v == model.TokenPaidLeave {
				continue
			}
			if !person.CanWorkShift(v) {
				t.Errorf("%s day%d 的 %s 不在可上班次内", person.ID, d, v)
			}
		}
	}
}

func TestGenerate_ZeroDays(t *testing.T) {
	data := newTestData(0)
	resp, meta := testEngine().Generate(data, &model.ScheduleRequest{})

	if resp.Status != "OPTIMAL" {
		t.Errorf("status = %s, expected OPTIMAL", resp.Status)
	}
	if len(resp.Schedule) != 0 || len(resp.Shortages) != 0 || len(resp.CoverageBreakdown) != 0 {
		t.Errorf("天数为零应返回空结果: %+v", resp)
	}
	if meta.Status != "OPTIMAL" {
		t.Errorf("meta.Status = %s", meta.Status)
	}
}

func TestGenerate_EmptyPeople(t *testing.T) {
	data := withNeeds(newTestData(2), map[string]int{"7-9": 1, "9-15": 1, "16-18": 1, "18-24": 1, "0-7": 1})
	resp, _ := testEngine().Generate(data, &model.ScheduleRequest{})

	if resp.Status != "OPTIMAL" {
		t.Fatalf("status = %s, expected OPTIMAL", resp.Status)
	}
	// 无人时缺员等于全部需求
	if len(resp.Shortages) != 10 {
		t.Errorf("缺员条目数 = %d, expected 10", len(resp.Shortages))
	}
	for _, s := range resp.Shortages {
		if s.Shortage != 1 {
			t.Errorf("缺员数 = %d, expected 1: %+v", s.Shortage, s)
		}
	}
	for d := 1; d <= 2; d++ {
		for label, row := range resp.CoverageBreakdown[d] {
			if row.Actual != 0 || row.Shortage != 1 {
				t.Errorf("day%d %s 覆盖明细不正确: %+v", d, label, row)
			}
		}
	}
}

func TestGenerate_CarryBlock(t *testing.T) {
	data := newTestData(6)
	alice := model.Person{
		ID: "alice", CanWork: []string{"EA", "NA"},
		MonthlyMax: 31, WeeklyMax: 100,
	}
	req := &model.ScheduleRequest{
		People:                  []model.Person{alice},
		PreviousMonthNightCarry: map[string][]string{"NA": {"alice"}},
	}

	resp, _ := testEngine().Generate(data, req)
	if resp.Status != "OPTIMAL" && resp.Status != "FEASIBLE" {
		t.Fatalf("status = %s, message = %s", resp.Status, resp.Message)
	}

	cells := resp.Schedule["alice"]
	if len(cells) != 6 {
		t.Fatalf("单元格数 = %d, expected 6", len(cells))
	}

	// 恢复窗口内记「明」，nightRest=2 的延续封锁第 0..2 日
	if cellString(cells[0]) != model.TokenNightRecovery {
		t.Errorf("day0 = %q, expected 明", cellString(cells[0]))
	}
	if cellString(cells[1]) != model.TokenNightRecovery {
		t.Errorf("day1 = %q, expected 明", cellString(cells[1]))
	}
	for d := 0; d <= 2; d++ {
		v := cellString(cells[d])
		if v != "" && v != model.TokenNightRecovery {
			t.Errorf("day%d 不应有班次: %q", d, v)
		}
	}

	assertCellInvariant(t, resp, req.People)
}

func TestGenerate_NightRestAfterAssignedNight(t *testing.T) {
	// 需求拉动夜勤，检查夜班后的「明」与休息
	data := withNeeds(newTestData(5), map[string]int{"7-9": 0, "9-15": 0, "16-18": 0, "18-24": 1, "0-7": 0})
	bob := model.Person{
		ID: "bob", CanWork: []string{"NA"},
		MonthlyMax: 31, WeeklyMax: 100,
	}
	req := &model.ScheduleRequest{People: []model.Person{bob}}

	resp, _ := testEngine().Generate(data, req)
	if resp.Status != "OPTIMAL" && resp.Status != "FEASIBLE" {
		t.Fatalf("status = %s, message = %s", resp.Status, resp.Message)
	}

	cells := resp.Schedule["bob"]
	for d := 0; d < len(cells); d++ {
		if cellString(cells[d]) != "NA" {
			continue
		}
		// 夜班后两天不得再有班次，恢复窗口记「明」
		for k := 1; k <= 2 && d+k < len(cells); k++ {
			v := cellString(cells[d+k])
			if v != "" && v != model.TokenNightRecovery {
				t.Errorf("day%d 夜班后的 day%d 不应有班次: %q", d, d+k, v)
			}
		}
		if d+1 < len(cells) && cellString(cells[d+1]) != model.TokenNightRecovery {
			t.Errorf("day%d 夜班次日应为明: %q", d, cellString(cells[d+1]))
		}
	}

	// 至少排到一个夜班（18-24 需求为1且无其他惩罚阻碍）
	worked := 0
	for _, c := range cells {
		if cellString(c) == "NA" {
			worked++
		}
	}
	if worked == 0 {
		t.Error("应至少安排一个夜勤")
	}

	assertCellInvariant(t, resp, req.People)
}

func TestGenerate_MonthlyBoundsWithPaidLeave(t *testing.T) {
	data := newTestData(4)
	carol := model.Person{
		ID: "carol", CanWork: []string{"EA"},
		MonthlyMin: 2, MonthlyMax: 2, WeeklyMax: 100,
	}
	req := &model.ScheduleRequest{
		People:     []model.Person{carol},
		PaidLeaves: map[string][]int{"carol": {0}},
	}

	resp, _ := testEngine().Generate(data, req)
	if resp.Status != "OPTIMAL" && resp.Status != "FEASIBLE" {
		t.Fatalf("status = %s, message = %s", resp.Status, resp.Message)
	}

	cells := resp.Schedule["carol"]
	if cellString(cells[0]) != model.TokenPaidLeave {
		t.Errorf("day0 = %q, expected 有給", cellString(cells[0]))
	}

	// 有給计入月度勤务数：实际班次数 = 2 - 1
	worked := 0
	for _, c := range cells {
		if cellString(c) == "EA" {
			worked++
		}
	}
	if worked != 1 {
		t.Errorf("实际班次数 = %d, expected 1", worked)
	}

	assertCellInvariant(t, resp, req.People)
}

func TestGenerate_PairConflictDefault(t *testing.T) {
	data := withNeeds(newTestData(3), map[string]int{"7-9": 0, "9-15": 2, "16-18": 0, "18-24": 0, "0-7": 0})
	data.Shifts = []model.Shift{
		{Code: "NC", Name: "夜勤C", Start: 9, End: 18},
		{Code: "NA", Name: "夜勤A", Start: 9, End: 18},
		{Code: "EA", Name: "早番", Start: 7, End: 16},
	}
	data.Rules = model.Rules{} // 无夜班规则，只看配对冲突

	shibata := model.Person{ID: "柴田", CanWork: []string{"NC"}, MonthlyMax: 31, WeeklyMax: 100}
	morikawa := model.Person{ID: "森川孝", CanWork: []string{"NA", "EA"}, MonthlyMax: 31, WeeklyMax: 100}
	req := &model.ScheduleRequest{People: []model.Person{shibata, morikawa}}

	resp, _ := testEngine().Generate(data, req)
	if resp.Status != "OPTIMAL" && resp.Status != "FEASIBLE" {
		t.Fatalf("status = %s, message = %s", resp.Status, resp.Message)
	}

	a := resp.Schedule["柴田"]
	b := resp.Schedule["森川孝"]
	for d := 0; d < 3; d++ {
		if cellString(a[d]) != "NC" {
			continue
		}
		// 同日规则：柴田 NC 禁止 森川孝 NA
		if cellString(b[d]) == "NA" {
			t.Errorf("day%d 违反同日配对冲突", d)
		}
		// 次日规则：柴田 NC 禁止次日 森川孝 EA/NA
		if d+1 < 3 {
			if v := cellString(b[d+1]); v == "EA" || v == "NA" {
				t.Errorf("day%d 违反次日配对冲突: %s", d, v)
			}
		}
	}

	assertCellInvariant(t, resp, req.People)
}

func TestGenerate_WishOffRespected(t *testing.T) {
	data := withNeeds(newTestData(3), map[string]int{"7-9": 1, "9-15": 1, "16-18": 0, "18-24": 0, "0-7": 0})
	dan := model.Person{ID: "dan", CanWork: []string{"EA"}, MonthlyMax: 31, WeeklyMax: 100}
	req := &model.ScheduleRequest{
		People:   []model.Person{dan},
		WishOffs: map[string][]int{"dan": {1}},
	}

	resp, _ := testEngine().Generate(data, req)
	if resp.Status != "OPTIMAL" && resp.Status != "FEASIBLE" {
		t.Fatalf("status = %s, message = %s", resp.Status, resp.Message)
	}

	if v := cellString(resp.Schedule["dan"][1]); v != "" {
		t.Errorf("希望休当日不应排班: %q", v)
	}
	// 希望休造成的缺员要出现在缺员列表（day 为 1 起）
	found := false
	for _, s := range resp.Shortages {
		if s.Day == 2 {
			found = true
		}
	}
	if !found {
		t.Error("day2 的缺员未上报")
	}
}

func TestGenerate_ShiftPreference(t *testing.T) {
	data := newTestData(2)
	eri := model.Person{ID: "eri", CanWork: []string{"EA"}, MonthlyMax: 31, WeeklyMax: 100}
	req := &model.ScheduleRequest{
		People:           []model.Person{eri},
		ShiftPreferences: map[string]map[int]string{"eri": {0: "EA"}},
	}

	// 希望班次惩罚(5)高于超员惩罚(各窗1)，求解器应满足偏好
	resp, _ := testEngine().Generate(data, req)
	if resp.Status != "OPTIMAL" && resp.Status != "FEASIBLE" {
		t.Fatalf("status = %s, message = %s", resp.Status, resp.Message)
	}

	if v := cellString(resp.Schedule["eri"][0]); v != "EA" {
		t.Errorf("day0 = %q, expected EA（希望班次）", v)
	}
}

func TestGenerate_StrictBandInfeasible(t *testing.T) {
	// 严格下限无人可满足时模型不可行
	data := newTestData(2)
	data.StrictNight = map[string]int{"18-24_min": 1}

	resp, _ := testEngine().Generate(data, &model.ScheduleRequest{})
	if resp.Status != "INFEASIBLE" {
		t.Fatalf("status = %s, expected INFEASIBLE", resp.Status)
	}
	if len(resp.Schedule) != 0 || len(resp.CoverageBreakdown) != 0 {
		t.Errorf("不可行时应返回空结果: %+v", resp)
	}
}

func TestGenerate_ConsecutiveCap(t *testing.T) {
	data := withNeeds(newTestData(7), map[string]int{"7-9": 1, "9-15": 0, "16-18": 0, "18-24": 0, "0-7": 0})
	fumi := model.Person{ID: "fumi", CanWork: []string{"EA"}, MonthlyMax: 31, WeeklyMax: 100, ConsecMax: 3}
	req := &model.ScheduleRequest{People: []model.Person{fumi}}

	resp, _ := testEngine().Generate(data, req)
	if resp.Status != "OPTIMAL" && resp.Status != "FEASIBLE" {
		t.Fatalf("status = %s, message = %s", resp.Status, resp.Message)
	}

	cells := resp.Schedule["fumi"]
	consecutive := 0
	for d := 0; d < len(cells); d++ {
		if cellString(cells[d]) != "" {
			consecutive++
			if consecutive > 3 {
				t.Fatalf("day%d 超过连勤上限", d)
			}
		} else {
			consecutive = 0
		}
	}
}
