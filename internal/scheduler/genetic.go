package scheduler

import (
	"context"
	"math/rand"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

// Options tunes one optimizer run. Zero values pick the defaults below.
type Options struct {
	PopulationSize  int
	MaxGenerations  int
	EliteCount      int
	TournamentSize  int
	CrossoverRate   float64
	MutationRate    float64
	StagnationLimit int
	TimeBudget      time.Duration
	Workers         int
	// TargetSoft ends the run once a candidate has no hard conflicts and a
	// soft score at or below it.
	TargetSoft int64
	// Seed pins the random generator. Nil draws a fresh seed.
	Seed    *int64
	Weights Weights
}

const (
	defaultPopulationSize  = 80
	defaultMaxGenerations  = 400
	defaultEliteCount      = 4
	defaultTournamentSize  = 3
	defaultCrossoverRate   = 0.8
	defaultMutationRate    = 0.6
	defaultStagnationLimit = 80
)

func (o Options) withDefaults() Options {
	if o.PopulationSize <= 1 {
		o.PopulationSize = defaultPopulationSize
	}
	if o.MaxGenerations <= 0 {
		o.MaxGenerations = defaultMaxGenerations
	}
	if o.EliteCount <= 0 {
		o.EliteCount = defaultEliteCount
	}
	if o.EliteCount >= o.PopulationSize {
		o.EliteCount = o.PopulationSize - 1
	}
	if o.TournamentSize <= 0 {
		o.TournamentSize = defaultTournamentSize
	}
	if o.CrossoverRate <= 0 || o.CrossoverRate > 1 {
		o.CrossoverRate = defaultCrossoverRate
	}
	if o.MutationRate <= 0 || o.MutationRate > 1 {
		o.MutationRate = defaultMutationRate
	}
	if o.StagnationLimit <= 0 {
		o.StagnationLimit = defaultStagnationLimit
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.Weights == (Weights{}) {
		o.Weights = DefaultWeights
	}
	return o
}

// GenerationStats is reported after every completed generation.
type GenerationStats struct {
	Generation int
	Best       Fitness
}

// Result is the outcome of a run. Best is the best candidate seen in any
// generation.
type Result struct {
	Best        *Candidate
	Fitness     Fitness
	Generations int
	Termination string
	Seed        int64
	Duration    time.Duration
	// History holds the best total after initialisation and after each generation.
	History []int64
}

// Partial reports whether the best candidate still has hard conflicts.
func (r *Result) Partial() bool { return r.Fitness.Hard > 0 }

// Optimizer evolves timetables for a problem.
type Optimizer struct {
	opts   Options
	logger *zap.Logger

	// Evaluate overrides the fitness function.
	Evaluate EvaluateFunc
	// Progress is called on the run goroutine after every generation.
	Progress func(GenerationStats)
}

// NewOptimizer constructs an optimizer with opts filled with defaults.
func NewOptimizer(opts Options, logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{opts: opts.withDefaults(), logger: logger}
}

// Options returns the effective options.
func (o *Optimizer) Options() Options { return o.opts }

// Run evolves a population until a termination condition holds. Cancellation
// of ctx is observed between generations only. Running out of generations or
// time is a normal outcome; the error return is reserved for failures that
// leave no scored candidate at all.
func (o *Optimizer) Run(ctx context.Context, p *Problem) (*Result, error) {
	started := time.Now()
	opts := o.opts

	seed := started.UnixNano()
	if opts.Seed != nil {
		seed = *opts.Seed
	}
	rng := rand.New(rand.NewSource(seed))

	evaluate := o.Evaluate
	if evaluate == nil {
		evaluate = NewEvaluator(p, opts.Weights).Evaluate
	}

	pop := initPopulation(p, opts.PopulationSize, opts.Workers, rng)
	if err := o.evaluateWithRetry(pop, evaluate, 0); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "initial population could not be evaluated")
	}
	rank(pop)

	best := pop[0]
	history := []int64{best.Fitness.Total}
	stagnant := 0
	generation := 0
	termination := ""

	for termination == "" {
		switch {
		case best.Fitness.Hard == 0 && best.Fitness.Soft <= opts.TargetSoft:
			termination = models.TerminationThreshold
		case generation >= opts.MaxGenerations:
			termination = models.TerminationMaxGenerations
		case stagnant >= opts.StagnationLimit:
			termination = models.TerminationStagnation
		case ctx.Err() != nil:
			termination = models.TerminationCanceled
		case opts.TimeBudget > 0 && time.Since(started) >= opts.TimeBudget:
			termination = models.TerminationTimeBudget
		}
		if termination != "" {
			break
		}

		next := o.breed(p, pop, rng)
		if err := o.evaluateWithRetry(next, evaluate, generation+1); err != nil {
			o.logger.Error("generation aborted", zap.Int("generation", generation+1), zap.Error(err))
			termination = models.TerminationAborted
			break
		}
		rank(next)
		pop = next
		generation++

		if pop[0].Fitness.Better(best.Fitness) {
			best = pop[0]
			stagnant = 0
		} else {
			stagnant++
		}
		history = append(history, best.Fitness.Total)

		if o.Progress != nil {
			o.Progress(GenerationStats{Generation: generation, Best: best.Fitness})
		}
	}

	result := &Result{
		Best:        best,
		Fitness:     best.Fitness,
		Generations: generation,
		Termination: termination,
		Seed:        seed,
		Duration:    time.Since(started),
		History:     history,
	}

	o.logger.Debug("optimizer finished",
		zap.Int64("seed", seed),
		zap.Int("generations", generation),
		zap.String("termination", termination),
		zap.Int("hard", best.Fitness.Hard),
		zap.Int64("soft", best.Fitness.Soft),
	)

	return result, nil
}

func (o *Optimizer) evaluateWithRetry(pop []*Candidate, evaluate EvaluateFunc, generation int) error {
	err := evaluatePopulation(pop, evaluate, o.opts.Workers)
	if err == nil {
		return nil
	}
	o.logger.Warn("retrying failed evaluation", zap.Int("generation", generation), zap.Error(err))
	return evaluatePopulation(pop, evaluate, o.opts.Workers)
}

// breed builds the next generation from a ranked population: the elite
// carried over unchanged, then children until the size is restored.
func (o *Optimizer) breed(p *Problem, pop []*Candidate, rng *rand.Rand) []*Candidate {
	opts := o.opts
	next := make([]*Candidate, 0, len(pop))
	next = append(next, pop[:opts.EliteCount]...)

	for len(next) < len(pop) {
		first := tournament(pop, opts.TournamentSize, rng)
		second := tournament(pop, opts.TournamentSize, rng)

		var child *Candidate
		if rng.Float64() < opts.CrossoverRate {
			child = crossover(first, second, rng)
		} else {
			child = first.Clone()
		}
		if rng.Float64() < opts.MutationRate {
			mutate(p, child, rng)
		}
		child.evaluated = false
		next = append(next, child)
	}
	return next
}

// tournament draws size random entrants from a ranked population and
// returns the best, which is the one with the lowest index.
func tournament(pop []*Candidate, size int, rng *rand.Rand) *Candidate {
	winner := rng.Intn(len(pop))
	for i := 1; i < size; i++ {
		if entrant := rng.Intn(len(pop)); entrant < winner {
			winner = entrant
		}
	}
	return pop[winner]
}

// crossover takes each division's whole week from one parent or the other,
// so weekly hours per division stay intact.
func crossover(a, b *Candidate, rng *rand.Rand) *Candidate {
	child := &Candidate{Genes: make([][]Gene, len(a.Genes))}
	for d := range a.Genes {
		source := a.Genes[d]
		if rng.Intn(2) == 1 {
			source = b.Genes[d]
		}
		child.Genes[d] = append([]Gene(nil), source...)
	}
	return child
}

const (
	mutateSwapCells = iota
	mutateSwapDays
	mutateTeachers
	mutateSubject
	mutationKinds
)

// mutate applies one random change to a division. Half of the time the
// change starts from a cell whose teacher is double booked.
func mutate(p *Problem, c *Candidate, rng *rand.Rand) {
	teaching := p.teachingCells
	if len(teaching) == 0 {
		return
	}

	var d, cell int
	clashes := clashCells(p, c)
	if len(clashes) > 0 && rng.Intn(2) == 0 {
		target := clashes[rng.Intn(len(clashes))]
		d, cell = target[0], target[1]
	} else {
		d = rng.Intn(len(c.Genes))
		cell = teaching[rng.Intn(len(teaching))]
	}
	row := c.Genes[d]

	switch rng.Intn(mutationKinds) {
	case mutateSwapCells:
		other := teaching[rng.Intn(len(teaching))]
		row[cell], row[other] = row[other], row[cell]
	case mutateSwapDays:
		swapDays(p, row, cell/p.Grid.SlotsPerDay(), rng.Intn(len(p.Grid.Days)))
	case mutateTeachers:
		if row[cell].Subject >= 0 {
			row[cell].Teachers = pickTeachers(p, row[cell].Subject, rng)
		}
	case mutateSubject:
		reassignSubject(p, d, row, cell, rng)
	}
}

func swapDays(p *Problem, row []Gene, a, b int) {
	if a == b {
		return
	}
	perDay := p.Grid.SlotsPerDay()
	for slot := 0; slot < perDay; slot++ {
		row[a*perDay+slot], row[b*perDay+slot] = row[b*perDay+slot], row[a*perDay+slot]
	}
}

// reassignSubject moves a cell to a subject of the division that is short of
// its weekly hours. When nothing is short, a cell holding an over-placed
// subject is freed instead.
func reassignSubject(p *Problem, d int, row []Gene, cell int, rng *rand.Rand) {
	demands := p.Demands[d]
	placed := make([]int, len(demands))
	for _, cellIdx := range p.teachingCells {
		if s := row[cellIdx].Subject; s >= 0 && p.demandOf[d][s] >= 0 {
			placed[p.demandOf[d][s]]++
		}
	}

	var short []int
	for i, demand := range demands {
		if placed[i] < demand.Hours {
			short = append(short, i)
		}
	}
	if len(short) > 0 {
		demand := demands[short[rng.Intn(len(short))]]
		row[cell] = Gene{Subject: demand.Subject, Teachers: pickTeachers(p, demand.Subject, rng)}
		return
	}

	if s := row[cell].Subject; s >= 0 {
		if idx := p.demandOf[d][s]; idx < 0 || placed[idx] > demands[idx].Hours {
			row[cell] = Gene{Subject: GeneFree}
		}
	}
}

// clashCells lists (division, cell) pairs whose teachers are also booked
// elsewhere in the same cell.
func clashCells(p *Problem, c *Candidate) [][2]int {
	cells := p.Grid.Cells()
	teachers := len(p.Teachers)
	busy := make([]int, teachers*cells)
	for _, row := range c.Genes {
		for _, cell := range p.teachingCells {
			for _, t := range row[cell].Teachers {
				busy[t*cells+cell]++
			}
		}
	}

	var out [][2]int
	for d, row := range c.Genes {
		for _, cell := range p.teachingCells {
			for _, t := range row[cell].Teachers {
				if busy[t*cells+cell] > 1 {
					out = append(out, [2]int{d, cell})
					break
				}
			}
		}
	}
	return out
}
