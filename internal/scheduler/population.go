package scheduler

import (
	"fmt"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Gene values with no subject.
const (
	GeneFree  = -1
	GeneBreak = -2
)

// Gene is one division cell. Teachers slices are never modified in place
// once assigned, so copying a row only copies the headers.
type Gene struct {
	Subject  int
	Teachers []int
}

// Candidate is one timetable in the population: a row of genes per
// division over every cell of the week.
type Candidate struct {
	Genes   [][]Gene
	Fitness Fitness

	evaluated bool
}

// Clone returns a copy whose rows can be changed independently.
func (c *Candidate) Clone() *Candidate {
	out := &Candidate{Genes: make([][]Gene, len(c.Genes)), Fitness: c.Fitness, evaluated: c.evaluated}
	for d, row := range c.Genes {
		out.Genes[d] = append([]Gene(nil), row...)
	}
	return out
}

// newCandidate builds a random candidate that meets every weekly hour
// requirement exactly. Labs are placed first as contiguous blocks where
// the day has room; other subjects prefer days that do not hold them yet.
func newCandidate(p *Problem, rng *rand.Rand) *Candidate {
	grid := p.Grid
	perDay := grid.SlotsPerDay()
	days := len(grid.Days)

	c := &Candidate{Genes: make([][]Gene, len(p.Divisions))}
	for d := range p.Divisions {
		row := make([]Gene, grid.Cells())
		for cell := range row {
			row[cell] = Gene{Subject: GeneFree}
			if grid.IsBreak(cell % perDay) {
				row[cell].Subject = GeneBreak
			}
		}

		for _, demand := range p.Demands[d] {
			remaining := demand.Hours
			if demand.Lab && p.LabBlock > 1 {
				for remaining > 0 {
					size := p.LabBlock
					if remaining < size {
						size = remaining
					}
					start, ok := pickRun(row, grid, size, rng)
					if !ok {
						break
					}
					teachers := pickTeachers(p, demand.Subject, rng)
					for i := 0; i < size; i++ {
						row[start+i] = Gene{Subject: demand.Subject, Teachers: teachers}
					}
					remaining -= size
				}
			}

			allowed := ceilDiv(demand.Hours, days)
			perDayCount := make([]int, days)
			for remaining > 0 {
				cell, ok := pickFree(row, p.teachingCells, perDay, perDayCount, allowed, rng)
				if !ok {
					break
				}
				row[cell] = Gene{Subject: demand.Subject, Teachers: pickTeachers(p, demand.Subject, rng)}
				perDayCount[cell/perDay]++
				remaining--
			}
		}
		c.Genes[d] = row
	}
	return c
}

// pickRun chooses a random start cell for size adjacent free cells on one day.
func pickRun(row []Gene, grid SlotGrid, size int, rng *rand.Rand) (int, bool) {
	perDay := grid.SlotsPerDay()
	var starts []int
	for day := range grid.Days {
		for slot := 0; slot+size <= perDay; slot++ {
			fits := true
			for i := 0; i < size; i++ {
				if row[day*perDay+slot+i].Subject != GeneFree {
					fits = false
					break
				}
			}
			if fits {
				starts = append(starts, day*perDay+slot)
			}
		}
	}
	if len(starts) == 0 {
		return 0, false
	}
	return starts[rng.Intn(len(starts))], true
}

// pickFree chooses a random free teaching cell, preferring days whose count
// for the subject is still under allowed.
func pickFree(row []Gene, teaching []int, perDay int, perDayCount []int, allowed int, rng *rand.Rand) (int, bool) {
	var preferred, fallback []int
	for _, cell := range teaching {
		if row[cell].Subject != GeneFree {
			continue
		}
		if perDayCount[cell/perDay] < allowed {
			preferred = append(preferred, cell)
		} else {
			fallback = append(fallback, cell)
		}
	}
	if len(preferred) > 0 {
		return preferred[rng.Intn(len(preferred))], true
	}
	if len(fallback) > 0 {
		return fallback[rng.Intn(len(fallback))], true
	}
	return 0, false
}

// pickTeachers draws the required number of distinct eligible teachers.
func pickTeachers(p *Problem, subject int, rng *rand.Rand) []int {
	eligible := p.Eligible[subject]
	need := requiredTeachers(p.Subjects[subject])
	picked := make([]int, need)
	for i, j := range rng.Perm(len(eligible))[:need] {
		picked[i] = eligible[j]
	}
	sort.Ints(picked)
	return picked
}

// initPopulation builds size candidates in parallel. Each candidate draws
// from its own generator seeded from rng, so the worker count does not
// change the population.
func initPopulation(p *Problem, size, workers int, rng *rand.Rand) []*Candidate {
	seeds := make([]int64, size)
	for i := range seeds {
		seeds[i] = rng.Int63()
	}

	pop := make([]*Candidate, size)
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range pop {
		i := i
		g.Go(func() error {
			pop[i] = newCandidate(p, rand.New(rand.NewSource(seeds[i])))
			return nil
		})
	}
	_ = g.Wait()
	return pop
}

// evaluatePopulation scores every candidate not yet evaluated, at most
// workers at a time. Each task owns exactly one candidate. Candidates that
// failed keep evaluated unset so a retry only repeats them.
func evaluatePopulation(pop []*Candidate, evaluate EvaluateFunc, workers int) error {
	var g errgroup.Group
	g.SetLimit(workers)
	for i, c := range pop {
		if c.evaluated {
			continue
		}
		i, c := i, c
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("evaluate candidate %d: panic: %v", i, r)
				}
			}()
			fitness, err := evaluate(c)
			if err != nil {
				return fmt.Errorf("evaluate candidate %d: %w", i, err)
			}
			c.Fitness = fitness
			c.evaluated = true
			return nil
		})
	}
	return g.Wait()
}

// rank orders the population best first. Equal scores keep their positions.
func rank(pop []*Candidate) {
	sort.SliceStable(pop, func(i, j int) bool {
		return pop[i].Fitness.Better(pop[j].Fitness)
	})
}
