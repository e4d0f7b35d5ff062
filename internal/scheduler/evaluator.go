package scheduler

import (
	"fmt"

	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

const categoryRanks = 3

// Breakdown keys. Values are unweighted violation counts.
const (
	PenaltyTeacherClash     = "teacher_clash"
	PenaltyTeacherDuplicate = "teacher_duplicate"
	PenaltyBreakViolation   = "break_violation"
	PenaltyInvalidSubject   = "invalid_subject"
	PenaltyInvalidTeacher   = "invalid_teacher"
	PenaltyTeacherOverload  = "teacher_overload"
	PenaltyHoursDeviation   = "hours_deviation"
	PenaltyDailyRepeat      = "daily_repeat"
	PenaltyWorkloadVariance = "workload_variance"
	PenaltyLabSplit         = "lab_split"
	PenaltyCategoryOrder    = "category_order"
)

// Weights scale the soft violation counts. Hard is the multiplier applied to
// hard conflicts in the scalar total; zero selects a weight larger than any
// soft score the problem can produce.
type Weights struct {
	Hard        int64
	Hours       int64
	DailyRepeat int64
	Imbalance   int64
	LabSplit    int64
	// Priority scales category inversions: a lower priority subject taught
	// earlier in a day than a higher priority one.
	Priority int64
}

// DefaultWeights is the scoring scheme used when none is configured.
var DefaultWeights = Weights{Hours: 10, DailyRepeat: 2, Imbalance: 1, LabSplit: 3, Priority: 1}

// Fitness is the penalty score of a candidate. Lower is better and zero is perfect.
type Fitness struct {
	Total     int64          `json:"total"`
	Hard      int            `json:"hard"`
	Soft      int64          `json:"soft"`
	Breakdown map[string]int `json:"breakdown"`
}

// Better orders fitness by total, then hard conflicts, then soft score.
func (f Fitness) Better(other Fitness) bool {
	if f.Total != other.Total {
		return f.Total < other.Total
	}
	if f.Hard != other.Hard {
		return f.Hard < other.Hard
	}
	return f.Soft < other.Soft
}

// EvaluateFunc scores a candidate. Implementations must not modify it.
type EvaluateFunc func(c *Candidate) (Fitness, error)

// Evaluator scores candidates against a problem. It holds no mutable state
// and may be used from many goroutines at once.
type Evaluator struct {
	problem *Problem
	weights Weights
}

// NewEvaluator builds an evaluator, resolving the automatic hard weight.
func NewEvaluator(p *Problem, w Weights) *Evaluator {
	if w.Hard <= 0 {
		w.Hard = softCeiling(p, w) + 1
	}
	return &Evaluator{problem: p, weights: w}
}

// HardWeight returns the multiplier applied to each hard conflict.
func (e *Evaluator) HardWeight() int64 { return e.weights.Hard }

// Evaluate scores c. A negative total means the scoring itself is broken
// and is reported as an internal error.
func (e *Evaluator) Evaluate(c *Candidate) (Fitness, error) {
	p := e.problem
	grid := p.Grid
	perDay := grid.SlotsPerDay()
	cells := grid.Cells()
	days := len(grid.Days)
	teachers := len(p.Teachers)

	if len(c.Genes) != len(p.Divisions) {
		return Fitness{}, appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("candidate has %d divisions, want %d", len(c.Genes), len(p.Divisions)))
	}

	counts := map[string]int{}
	busy := make([]int, teachers*cells)
	load := make([]int, teachers)

	var soft int64
	for d, row := range c.Genes {
		if len(row) != cells {
			return Fitness{}, appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("division %d has %d cells, want %d", d, len(row), cells))
		}
		demands := p.Demands[d]
		hours := make([]int, len(demands))
		daily := make([]int, len(demands)*days)

		for cell, gene := range row {
			if gene.Subject == GeneFree || gene.Subject == GeneBreak {
				continue
			}
			if grid.IsBreak(cell % perDay) {
				counts[PenaltyBreakViolation]++
				continue
			}
			if gene.Subject < 0 || gene.Subject >= len(p.Subjects) || p.demandOf[d][gene.Subject] < 0 {
				counts[PenaltyInvalidSubject]++
				continue
			}

			idx := p.demandOf[d][gene.Subject]
			hours[idx]++
			daily[idx*days+cell/perDay]++

			if len(gene.Teachers) != requiredTeachers(p.Subjects[gene.Subject]) {
				counts[PenaltyInvalidTeacher]++
			}
			for i, t := range gene.Teachers {
				if t < 0 || t >= teachers || !p.eligibleSet[gene.Subject][t] {
					counts[PenaltyInvalidTeacher]++
					continue
				}
				if containsBefore(gene.Teachers, i, t) {
					counts[PenaltyTeacherDuplicate]++
					continue
				}
				busy[t*cells+cell]++
				load[t]++
			}
		}

		counts[PenaltyCategoryOrder] += categoryInversions(p, row)

		for i, demand := range demands {
			deviation := hours[i] - demand.Hours
			if deviation < 0 {
				deviation = -deviation
			}
			counts[PenaltyHoursDeviation] += deviation

			if demand.Lab && p.LabBlock > 1 {
				repeat, split := e.labPenalties(row, demand)
				counts[PenaltyDailyRepeat] += repeat
				counts[PenaltyLabSplit] += split
				continue
			}

			allowed := ceilDiv(demand.Hours, days)
			for day := 0; day < days; day++ {
				if extra := daily[i*days+day] - allowed; extra > 0 {
					counts[PenaltyDailyRepeat] += extra
				}
			}
		}
	}

	for t := 0; t < teachers; t++ {
		for cell := 0; cell < cells; cell++ {
			if n := busy[t*cells+cell]; n > 1 {
				counts[PenaltyTeacherClash] += n - 1
			}
		}
		if limit := p.MaxLoad[t]; limit > 0 && load[t] > limit {
			counts[PenaltyTeacherOverload] += load[t] - limit
		}
	}

	counts[PenaltyWorkloadVariance] = variance(load, p.activeTeacher)

	hard := counts[PenaltyTeacherClash] + counts[PenaltyTeacherDuplicate] + counts[PenaltyBreakViolation] +
		counts[PenaltyInvalidSubject] + counts[PenaltyInvalidTeacher] + counts[PenaltyTeacherOverload]

	soft += e.weights.Hours * int64(counts[PenaltyHoursDeviation])
	soft += e.weights.DailyRepeat * int64(counts[PenaltyDailyRepeat])
	soft += e.weights.Imbalance * int64(counts[PenaltyWorkloadVariance])
	soft += e.weights.LabSplit * int64(counts[PenaltyLabSplit])
	soft += e.weights.Priority * int64(counts[PenaltyCategoryOrder])

	total := int64(hard)*e.weights.Hard + soft
	if total < 0 || soft < 0 {
		return Fitness{}, appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("negative fitness %d", total))
	}

	return Fitness{Total: total, Hard: hard, Soft: soft, Breakdown: counts}, nil
}

// labPenalties scans the division row for runs of a lab subject. A run is a
// maximal stretch of adjacent cells on one day; breaks end a run. Runs should
// be whole blocks, with one shorter run allowed for the remainder hours, and
// a day should not hold more blocks than an even spread needs.
func (e *Evaluator) labPenalties(row []Gene, demand Demand) (repeat, split int) {
	grid := e.problem.Grid
	perDay := grid.SlotsPerDay()
	days := len(grid.Days)
	block := e.problem.LabBlock

	remainder := demand.Hours % block
	blocksAllowed := ceilDiv(ceilDiv(demand.Hours, block), days)
	remainderUsed := remainder == 0

	for day := 0; day < days; day++ {
		runs := 0
		run := 0
		flush := func() {
			if run == 0 {
				return
			}
			runs++
			if run%block != 0 {
				if !remainderUsed && run%block == remainder {
					remainderUsed = true
				} else {
					split++
				}
			}
			run = 0
		}
		for slot := 0; slot < perDay; slot++ {
			if row[day*perDay+slot].Subject == demand.Subject && !grid.IsBreak(slot) {
				run++
				continue
			}
			flush()
		}
		flush()
		if runs > blocksAllowed {
			repeat += runs - blocksAllowed
		}
	}
	return repeat, split
}

// categoryInversions counts, per day, the pairs of taught cells where a
// lower priority subject comes before a higher priority one.
func categoryInversions(p *Problem, row []Gene) int {
	perDay := p.Grid.SlotsPerDay()
	inversions := 0
	var seen [categoryRanks]int
	for cell, gene := range row {
		if cell%perDay == 0 {
			seen = [categoryRanks]int{}
		}
		if gene.Subject < 0 || gene.Subject >= len(p.Subjects) {
			continue
		}
		rank := p.Subjects[gene.Subject].Category.Priority()
		for lower := rank + 1; lower < categoryRanks; lower++ {
			inversions += seen[lower]
		}
		seen[rank]++
	}
	return inversions
}

// softCeiling bounds the soft score any candidate of p can reach.
func softCeiling(p *Problem, w Weights) int64 {
	cells := int64(p.Grid.Cells())
	divisions := int64(len(p.Divisions))

	var hours int64
	for _, demands := range p.Demands {
		hours += cells
		for _, demand := range demands {
			hours += int64(demand.Hours)
		}
	}

	maxLoad := cells * divisions
	ceiling := w.Hours*hours +
		w.DailyRepeat*cells*divisions +
		w.LabSplit*cells*divisions +
		w.Priority*cells*int64(p.Grid.SlotsPerDay())*divisions +
		w.Imbalance*(maxLoad*maxLoad/4+1)
	return ceiling
}

// variance returns the integer population variance of load over members.
func variance(load []int, members []int) int {
	n := int64(len(members))
	if n < 2 {
		return 0
	}
	var sum, sumSq int64
	for _, t := range members {
		x := int64(load[t])
		sum += x
		sumSq += x * x
	}
	return int((n*sumSq - sum*sum) / (n * n))
}

func containsBefore(list []int, end, v int) bool {
	for _, existing := range list[:end] {
		if existing == v {
			return true
		}
	}
	return false
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}
