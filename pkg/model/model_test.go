package model

import (
	"testing"
)

func TestWeekdayGlyphAt(t *testing.T) {
	tests := []struct {
		name          string
		weekdayOfDay1 int
		day           int
		expected      string
	}{
		{"月曜起始日", 0, 0, "月"},
		{"月曜起始第7日回绕", 0, 7, "月"},
		{"水曜起始日", 2, 0, "水"},
		{"水曜起始第4日为日曜", 2, 4, "日"},
		{"土曜起始第1日为日曜", 5, 1, "日"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WeekdayGlyphAt(tt.weekdayOfDay1, tt.day); got != tt.expected {
				t.Errorf("WeekdayGlyphAt(%d, %d) = %s, expected %s", tt.weekdayOfDay1, tt.day, got, tt.expected)
			}
		})
	}
}

func TestIsWeekEnd(t *testing.T) {
	// 起始为木曜(3)时，第3日是日曜
	if !IsWeekEnd(3, 3) {
		t.Error("第3日应为周界")
	}
	if IsWeekEnd(3, 2) {
		t.Error("第2日不应为周界")
	}
}

func TestRules_RecoveryCount(t *testing.T) {
	tests := []struct {
		name     string
		rules    Rules
		code     string
		expected int
	}{
		{
			"默认等于休息天数",
			Rules{NightRest: map[string]int{"NA": 2}},
			"NA", 2,
		},
		{
			"覆盖值在区间内",
			Rules{NightRest: map[string]int{"NA": 3}, NightRecoveryCounts: map[string]int{"NA": 1}},
			"NA", 1,
		},
		{
			"覆盖值超过休息天数被裁剪",
			Rules{NightRest: map[string]int{"NB": 2}, NightRecoveryCounts: map[string]int{"NB": 5}},
			"NB", 2,
		},
		{
			"负覆盖值裁剪为零",
			Rules{NightRest: map[string]int{"NC": 2}, NightRecoveryCounts: map[string]int{"NC": -1}},
			"NC", 0,
		},
		{
			"未知代码为零",
			Rules{NightRest: map[string]int{"NA": 2}},
			"XX", 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rules.RecoveryCount(tt.code); got != tt.expected {
				t.Errorf("RecoveryCount(%s) = %d, expected %d", tt.code, got, tt.expected)
			}
		})
	}
}

func TestClampNightRest(t *testing.T) {
	out := ClampNightRest(map[string]int{"NA": -3, "NB": 4, "NC": 12})
	if out["NA"] != 0 || out["NB"] != 4 || out["NC"] != 7 {
		t.Errorf("ClampNightRest 结果不正确: %v", out)
	}
}

func TestFilterDayIndices(t *testing.T) {
	got := FilterDayIndices([]int{-1, 0, 3, 30, 31, 3}, 31)
	expected := []int{0, 3, 30}
	if len(got) != len(expected) {
		t.Fatalf("FilterDayIndices 长度 = %d, expected %d", len(got), len(expected))
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("FilterDayIndices[%d] = %d, expected %d", i, got[i], expected[i])
		}
	}
}

func TestFilterNightCarry(t *testing.T) {
	rules := Rules{NightRest: map[string]int{"NA": 2}}
	people := []Person{{ID: "alice"}, {ID: "bob"}}

	carry := map[string][]string{
		"NA": {"alice", "ghost"}, // ghost 不在名单
		"XX": {"bob"},            // XX 不是夜班代码
	}

	out := FilterNightCarry(carry, rules, people)
	if len(out) != 1 {
		t.Fatalf("保留的代码数 = %d, expected 1", len(out))
	}
	if len(out["NA"]) != 1 || out["NA"][0] != "alice" {
		t.Errorf("NA 延续名单 = %v, expected [alice]", out["NA"])
	}
}

func TestEffectivePairConflicts(t *testing.T) {
	people := []Person{{ID: "柴田"}, {ID: "森川孝"}}

	t.Run("请求优先", func(t *testing.T) {
		fromRequest := []PairShiftConflict{{
			People: []string{"a", "b"},
			Rules:  []PairRule{{FirstPersonShifts: []string{"X"}, SecondPersonShifts: []string{"Y"}}},
		}}
		got := EffectivePairConflicts(fromRequest, Rules{}, people)
		if len(got) != 1 || got[0].People[0] != "a" {
			t.Errorf("应使用请求中的冲突: %v", got)
		}
	})

	t.Run("配置次之", func(t *testing.T) {
		rules := Rules{PairShiftConflicts: []PairShiftConflict{{
			People: []string{"c", "d"},
			Rules:  []PairRule{{FirstPersonShifts: []string{"X"}, SecondPersonShifts: []string{"Y"}}},
		}}}
		got := EffectivePairConflicts(nil, rules, people)
		if len(got) != 1 || got[0].People[0] != "c" {
			t.Errorf("应使用配置中的冲突: %v", got)
		}
	})

	t.Run("默认兜底", func(t *testing.T) {
		got := EffectivePairConflicts(nil, Rules{}, people)
		if len(got) != 1 {
			t.Fatalf("应注入默认冲突, got %v", got)
		}
		if got[0].People[0] != "柴田" || got[0].People[1] != "森川孝" {
			t.Errorf("默认冲突人员不正确: %v", got[0].People)
		}
		if len(got[0].Rules) != 2 {
			t.Errorf("默认冲突规则数 = %d, expected 2", len(got[0].Rules))
		}
	})

	t.Run("人员缺席时无兜底", func(t *testing.T) {
		got := EffectivePairConflicts(nil, Rules{}, []Person{{ID: "柴田"}})
		if got != nil {
			t.Errorf("人员不全时不应注入默认冲突: %v", got)
		}
	})
}

func TestNormalizePairConflicts(t *testing.T) {
	in := []PairShiftConflict{
		{People: []string{"a"}, Rules: []PairRule{{FirstPersonShifts: []string{"X"}, SecondPersonShifts: []string{"Y"}}}},
		{People: []string{"a", "b"}, Rules: []PairRule{{FirstPersonShifts: nil, SecondPersonShifts: []string{"Y"}}}},
		{People: []string{"a", "b"}, Rules: []PairRule{
			{FirstPersonShifts: []string{"X"}, SecondPersonShifts: nil},
			{FirstPersonShifts: []string{"X"}, SecondPersonShifts: []string{"Y"}, DayOffset: 1},
		}},
	}

	out := NormalizePairConflicts(in)
	if len(out) != 1 {
		t.Fatalf("规范化后冲突数 = %d, expected 1", len(out))
	}
	if len(out[0].Rules) != 1 || out[0].Rules[0].DayOffset != 1 {
		t.Errorf("无效规则应被剔除: %v", out[0].Rules)
	}
}

func TestNeedTemplate_ForDayType(t *testing.T) {
	tpl := NeedTemplate{
		BathDay:   map[string]int{"7-9": 3},
		NormalDay: map[string]int{"7-9": 2},
		Wednesday: map[string]int{"7-9": 1},
	}

	if tpl.ForDayType("bathDay")["7-9"] != 3 {
		t.Error("bathDay 需求不正确")
	}
	if tpl.ForDayType("wednesday")["7-9"] != 1 {
		t.Error("wednesday 需求不正确")
	}
	if tpl.ForDayType("unknown")["7-9"] != 2 {
		t.Error("未知日类型应回退到 normalDay")
	}
}
