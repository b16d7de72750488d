// Package scheduler 实现月度排班的约束模型构造、求解与结果渲染
package scheduler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/paiban/kinmu/pkg/model"
	"github.com/paiban/kinmu/pkg/scheduler/cpsat"
	"github.com/paiban/kinmu/pkg/scheduler/window"
)

// problem 规范化后的求解输入。构造时完成所有边界裁剪，
// 之后的模型构造只读取这里的数据
type problem struct {
	data    *model.InitialData
	people  []model.Person
	days    int
	codes   []string
	mapping *window.Mapping

	nightRest  map[string]int
	nightCodes []string // 配置顺序中属于 nightRest 的班次代码

	wishOffs   map[string][]int
	paidLeaves map[string][]int
	prefs      map[string]map[int]string
	carry      map[string][]string
	carryCount map[string]int
	conflicts  []model.PairShiftConflict
}

func newProblem(data *model.InitialData, req *model.ScheduleRequest) *problem {
	mapping := window.Build(data.Shifts)

	var nightCodes []string
	rest := model.ClampNightRest(data.Rules.NightRest)
	for _, code := range data.ShiftCodes() {
		if _, ok := rest[code]; ok {
			nightCodes = append(nightCodes, code)
		}
	}

	carry := model.FilterNightCarry(req.PreviousMonthNightCarry, data.Rules, req.People)

	return &problem{
		data:       data,
		people:     req.People,
		days:       data.Days,
		codes:      data.ShiftCodes(),
		mapping:    mapping,
		nightRest:  rest,
		nightCodes: nightCodes,
		wishOffs:   model.FilterDayIndexMap(req.WishOffs, data.Days),
		paidLeaves: model.FilterDayIndexMap(req.PaidLeaves, data.Days),
		prefs:      req.ShiftPreferences,
		carry:      carry,
		carryCount: window.CarryCount(mapping, carry),
		conflicts:  model.EffectivePairConflicts(req.PairShiftConflicts, data.Rules, req.People),
	}
}

// recoveryCount 返回某夜班代码记「明」的天数（已裁剪）
func (pr *problem) recoveryCount(code string) int {
	count := pr.data.Rules.RecoveryCount(code)
	if rest := pr.nightRest[code]; count > rest {
		count = rest
	}
	return count
}

// carriedCodes 返回某人延续自上月的夜班代码（配置顺序）
func (pr *problem) carriedCodes(personID string) []string {
	var codes []string
	for _, code := range pr.nightCodes {
		for _, id := range pr.carry[code] {
			if id == personID {
				codes = append(codes, code)
				break
			}
		}
	}
	return codes
}

func (pr *problem) paidLeaveSet(personID string) map[int]bool {
	set := make(map[int]bool)
	for _, d := range pr.paidLeaves[personID] {
		set[d] = true
	}
	return set
}

type workKey struct {
	p    int
	d    int
	code string
}

type recKey struct {
	p int
	d int
}

// builtModel 构造产物：模型与决策变量
type builtModel struct {
	m        *cpsat.Model
	work     map[workKey]cpsat.Lit
	recovery map[recKey]cpsat.Lit
}

// buildModel 分配决策变量并按固定顺序发出全部硬约束与软目标。
// 发出顺序（与请求无关，保证同一请求得到同一模型）：
//  1. 每人每日至多一班
//  2. 班次资格
//  3. 月度勤务数上下限（「明」与有給都计入）
//  4. 夜勤明け变量定义（含上月延续）
//  5. 夜班后休息
//  6. 连勤上限
//  7. 固定休曜日
//  8. 希望休与有給
//  9. 配对冲突
//  10. 严格人数带
//  11. 软目标（缺员/超员/希望班次）
func buildModel(pr *problem) *builtModel {
	m := cpsat.NewModel()

	bm := &builtModel{
		m:        m,
		work:     make(map[workKey]cpsat.Lit),
		recovery: make(map[recKey]cpsat.Lit),
	}

	for p := range pr.people {
		for d := 0; d < pr.days; d++ {
			for _, code := range pr.codes {
				bm.work[workKey{p, d, code}] = m.NewLit(fmt.Sprintf("work_%d_%d_%s", p, d, code))
			}
			bm.recovery[recKey{p, d}] = m.NewLit(fmt.Sprintf("rec_%d_%d", p, d))
		}
	}

	bm.addAtMostOnePerDay(pr)
	bm.addEligibility(pr)
	bm.addMonthlyBounds(pr)
	bm.addNightRecoveryDefinition(pr)
	bm.addNightRest(pr)
	bm.addConsecutiveCap(pr)
	bm.addFixedOffWeekdays(pr)
	bm.addRequestedOffAndPaidLeave(pr)
	bm.addPairConflicts(pr)
	bm.addStrictBands(pr)
	bm.addObjective(pr)

	return bm
}

// addAtMostOnePerDay 每人每日至多一个班次
func (bm *builtModel) addAtMostOnePerDay(pr *problem) {
	for p := range pr.people {
		for d := 0; d < pr.days; d++ {
			lits := make([]cpsat.Lit, 0, len(pr.codes))
			for _, code := range pr.codes {
				lits = append(lits, bm.work[workKey{p, d, code}])
			}
			bm.m.AddAtMostOne(lits...)
		}
	}
}

// addEligibility 不可上的班次固定为零
func (bm *builtModel) addEligibility(pr *problem) {
	for p, person := range pr.people {
		for d := 0; d < pr.days; d++ {
			for _, code := range pr.codes {
				if !person.CanWorkShift(code) {
					bm.m.FixLit(bm.work[workKey{p, d, code}], false)
				}
			}
		}
	}
}

// addMonthlyBounds 月度勤务数：班次 +「明」+ 有給 ∈ [monthlyMin, monthlyMax]
func (bm *builtModel) addMonthlyBounds(pr *problem) {
	for p, person := range pr.people {
		paid := len(pr.paidLeaves[person.ID])

		total := cpsat.NewExpr()
		for d := 0; d < pr.days; d++ {
			for _, code := range pr.codes {
				total.AddLit(bm.work[workKey{p, d, code}])
			}
		}
		for d := 0; d < pr.days; d++ {
			total.AddLit(bm.recovery[recKey{p, d}])
		}
		total.AddConst(int64(paid))

		bm.m.AddGE(total, int64(person.MonthlyMin))

		upper := cpsat.NewExpr()
		for d := 0; d < pr.days; d++ {
			for _, code := range pr.codes {
				upper.AddLit(bm.work[workKey{p, d, code}])
			}
		}
		for d := 0; d < pr.days; d++ {
			upper.AddLit(bm.recovery[recKey{p, d}])
		}
		upper.AddConst(int64(paid))

		bm.m.AddLE(upper, int64(person.MonthlyMax))
	}
}

// addNightRecoveryDefinition 夜勤明け变量与其来源等价：
// 某日为「明」当且仅当恢复窗口内有夜班（或上月延续覆盖该日）
func (bm *builtModel) addNightRecoveryDefinition(pr *problem) {
	for p, person := range pr.people {
		pinned := bm.carryPinnedDays(pr, person.ID)

		for d := 0; d < pr.days; d++ {
			rec := bm.recovery[recKey{p, d}]

			var sources []cpsat.Lit
			for _, code := range pr.nightCodes {
				if !person.CanWorkShift(code) {
					continue
				}
				for k := 1; k <= pr.recoveryCount(code); k++ {
					if d-k < 0 {
						break
					}
					sources = append(sources, bm.work[workKey{p, d - k, code}])
				}
			}

			if pinned[d] {
				bm.m.FixLit(rec, true)
			} else if len(sources) == 0 {
				bm.m.FixLit(rec, false)
			} else {
				upper := cpsat.NewExpr().AddTermLit(rec, 1)
				for _, src := range sources {
					upper.AddTermLit(src, -1)
				}
				bm.m.AddLE(upper, 0)
			}

			for _, src := range sources {
				bm.m.AddImplication(src, rec)
			}
		}
	}
}

// carryPinnedDays 上月延续令月初恢复变量固定为 1 的日集合：
// 第 0 天起共 recoveryCount 天
func (bm *builtModel) carryPinnedDays(pr *problem, personID string) map[int]bool {
	pinned := make(map[int]bool)
	for _, code := range pr.carriedCodes(personID) {
		count := pr.recoveryCount(code)
		for d := 0; d < count && d < pr.days; d++ {
			pinned[d] = true
		}
	}
	return pinned
}

// addNightRest 夜班后 restDays 天不得再排班；上月延续封锁 [0, restDays]
func (bm *builtModel) addNightRest(pr *problem) {
	for p, person := range pr.people {
		for _, code := range pr.nightCodes {
			if !person.CanWorkShift(code) {
				continue
			}
			restDays := pr.nightRest[code]
			if restDays == 0 {
				continue
			}
			for d := 0; d < pr.days; d++ {
				blocked := cpsat.NewExpr()
				n := 0
				for k := 1; k <= restDays && d+k < pr.days; k++ {
					for _, s := range pr.codes {
						blocked.AddLit(bm.work[workKey{p, d + k, s}])
						n++
					}
				}
				if n > 0 {
					bm.m.AddEqZeroIf(blocked, bm.work[workKey{p, d, code}])
				}
			}
		}

		for _, code := range pr.carriedCodes(person.ID) {
			restDays := pr.nightRest[code]
			for d := 0; d <= restDays && d < pr.days; d++ {
				for _, s := range pr.codes {
					bm.m.FixLit(bm.work[workKey{p, d, s}], false)
				}
			}
		}
	}
}

// addConsecutiveCap 任意 consecMax+1 天窗口内，
// 班次 +「明」+ 窗口内有給天数 ≤ consecMax
func (bm *builtModel) addConsecutiveCap(pr *problem) {
	for p, person := range pr.people {
		consecMax := person.ConsecMax
		if consecMax <= 0 {
			continue
		}
		paid := pr.paidLeaveSet(person.ID)

		for w := 0; w+consecMax < pr.days; w++ {
			win := cpsat.NewExpr()
			paidInWindow := 0
			for d := w; d <= w+consecMax; d++ {
				for _, code := range pr.codes {
					win.AddLit(bm.work[workKey{p, d, code}])
				}
				win.AddLit(bm.recovery[recKey{p, d}])
				if paid[d] {
					paidInWindow++
				}
			}
			win.AddConst(int64(paidInWindow))
			bm.m.AddLE(win, int64(consecMax))
		}
	}
}

// addFixedOffWeekdays 固定休曜日当天不得排班
func (bm *builtModel) addFixedOffWeekdays(pr *problem) {
	for p, person := range pr.people {
		if len(person.FixedOffWeekdays) == 0 {
			continue
		}
		for d := 0; d < pr.days; d++ {
			if !person.HasFixedOff(model.WeekdayGlyphAt(pr.data.WeekdayOfDay1, d)) {
				continue
			}
			for _, code := range pr.codes {
				bm.m.FixLit(bm.work[workKey{p, d, code}], false)
			}
		}
	}
}

// addRequestedOffAndPaidLeave 希望休与有給当天：班次与「明」都固定为零
func (bm *builtModel) addRequestedOffAndPaidLeave(pr *problem) {
	for p, person := range pr.people {
		offDays := append(append([]int{}, pr.wishOffs[person.ID]...), pr.paidLeaves[person.ID]...)
		seen := make(map[int]bool)
		for _, d := range offDays {
			if seen[d] {
				continue
			}
			seen[d] = true
			for _, code := range pr.codes {
				bm.m.FixLit(bm.work[workKey{p, d, code}], false)
			}
			bm.m.FixLit(bm.recovery[recKey{p, d}], false)
		}
	}
}

// addPairConflicts 配对冲突：A 的 d 日班次与 B 的 d+offset 日班次不可同时成立
func (bm *builtModel) addPairConflicts(pr *problem) {
	index := make(map[string]int, len(pr.people))
	for p, person := range pr.people {
		index[person.ID] = p
	}

	codeSet := make(map[string]bool, len(pr.codes))
	for _, code := range pr.codes {
		codeSet[code] = true
	}

	for _, conflict := range pr.conflicts {
		pa, okA := index[conflict.People[0]]
		pb, okB := index[conflict.People[1]]
		if !okA || !okB {
			continue
		}
		for _, rule := range conflict.Rules {
			for d := 0; d < pr.days; d++ {
				other := d + rule.DayOffset
				if other < 0 || other >= pr.days {
					continue
				}
				for _, sa := range rule.FirstPersonShifts {
					if !codeSet[sa] {
						continue
					}
					for _, sb := range rule.SecondPersonShifts {
						if !codeSet[sb] {
							continue
						}
						pairSum := cpsat.NewExpr().
							AddLit(bm.work[workKey{pa, d, sa}]).
							AddLit(bm.work[workKey{pb, other, sb}])
						bm.m.AddLE(pairSum, 1)
					}
				}
			}
		}
	}
}

// strictBand 某时间窗的严格人数带
type strictBand struct {
	label  string
	min    *int
	max    *int
	shifts []string
}

// parseStrictBands 解析 strictNight 配置，label/_min/_max 三种写法
func parseStrictBands(pr *problem) []strictBand {
	bounds := make(map[string]*strictBand)

	keys := make([]string, 0, len(pr.data.StrictNight))
	for k := range pr.data.StrictNight {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	get := func(label string) *strictBand {
		if b, ok := bounds[label]; ok {
			return b
		}
		b := &strictBand{label: label}
		bounds[label] = b
		return b
	}

	for _, key := range keys {
		v := pr.data.StrictNight[key]
		switch {
		case strings.HasSuffix(key, "_min"):
			get(strings.TrimSuffix(key, "_min")).min = &v
		case strings.HasSuffix(key, "_max"):
			get(strings.TrimSuffix(key, "_max")).max = &v
		default:
			b := get(key)
			b.min = &v
			b.max = &v
		}
	}

	labels := make([]string, 0, len(bounds))
	for label := range bounds {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	out := make([]strictBand, 0, len(labels))
	for _, label := range labels {
		b := bounds[label]
		b.shifts = window.CoveringSameDay(pr.data.Shifts, label)
		if len(b.shifts) == 0 {
			continue
		}
		out = append(out, *b)
	}
	return out
}

// addStrictBands 严格人数带：当日覆盖该窗的总人数落在声明区间内
func (bm *builtModel) addStrictBands(pr *problem) {
	for _, band := range parseStrictBands(pr) {
		for d := 0; d < pr.days; d++ {
			if band.min != nil {
				actual := bm.sameDayActual(pr, d, band.shifts)
				bm.m.AddGE(actual, int64(*band.min))
			}
			if band.max != nil {
				actual := bm.sameDayActual(pr, d, band.shifts)
				bm.m.AddLE(actual, int64(*band.max))
			}
		}
	}
}

func (bm *builtModel) sameDayActual(pr *problem, d int, shifts []string) *cpsat.Expr {
	expr := cpsat.NewExpr()
	for p := range pr.people {
		for _, code := range shifts {
			expr.AddLit(bm.work[workKey{p, d, code}])
		}
	}
	return expr
}

// coverageActual 第 d 天某时间窗的有效覆盖：
// 当日班次 + 前一日跨午夜班次 + 第 0 天的上月延续常数
func (bm *builtModel) coverageActual(pr *problem, d int, label string) *cpsat.Expr {
	expr := cpsat.NewExpr()
	for p := range pr.people {
		for _, code := range pr.mapping.SameDay[label] {
			expr.AddLit(bm.work[workKey{p, d, code}])
		}
	}
	if d > 0 {
		for p := range pr.people {
			for _, code := range pr.mapping.CarryOver[label] {
				expr.AddLit(bm.work[workKey{p, d - 1, code}])
			}
		}
	} else {
		expr.AddConst(int64(pr.carryCount[label]))
	}
	return expr
}

// addObjective 软目标：缺员、超员与希望班次未满足的加权和最小化
func (bm *builtModel) addObjective(pr *problem) {
	weights := pr.data.Weights
	obj := cpsat.NewExpr()

	for d := 0; d < pr.days; d++ {
		for _, label := range window.Labels {
			need := pr.data.NeedFor(d, label)

			shortage := bm.m.NewIntVar(0, int64(need), fmt.Sprintf("shortage_%d_%s", d, label))
			overstaff := bm.m.NewIntVar(0, int64(len(pr.people)), fmt.Sprintf("overstaff_%d_%s", d, label))

			bm.m.AddGE(bm.coverageActual(pr, d, label).AddInt(shortage), int64(need))
			bm.m.AddLE(bm.coverageActual(pr, d, label).AddTermInt(overstaff, -1), int64(need))

			obj.AddTermInt(shortage, int64(weights.ShortageWeight(label)))
			obj.AddTermInt(overstaff, int64(weights.WOverstaffGtNeedPlus1))
		}
	}

	if weights.WRequestedOffViolation > 0 {
		codeSet := make(map[string]bool, len(pr.codes))
		for _, code := range pr.codes {
			codeSet[code] = true
		}
		for p, person := range pr.people {
			prefDays := make([]int, 0, len(pr.prefs[person.ID]))
			for d := range pr.prefs[person.ID] {
				prefDays = append(prefDays, d)
			}
			sort.Ints(prefDays)

			for _, d := range prefDays {
				if d < 0 || d >= pr.days {
					continue
				}
				code := pr.prefs[person.ID][d]
				if !codeSet[code] || !person.CanWorkShift(code) {
					continue
				}
				unmet := bm.m.NewLit(fmt.Sprintf("unmet_%d_%d_%s", p, d, code))
				pairSum := cpsat.NewExpr().AddLit(unmet).AddLit(bm.work[workKey{p, d, code}])
				bm.m.AddEq(pairSum, 1)
				obj.AddTermLit(unmet, int64(weights.WRequestedOffViolation))
			}
		}
	}

	bm.m.Minimize(obj)
}
