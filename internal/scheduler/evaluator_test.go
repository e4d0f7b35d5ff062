package scheduler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

func sharedTeacherProblem(t *testing.T) *Problem {
	return buildProblem(t, twoDayConfig(), Input{
		Divisions: []models.Division{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}},
		Teachers:  []models.Teacher{{ID: "t1", Name: "Ana"}},
		Subjects:  []models.Subject{{ID: "math", Name: "Math", WeeklyHours: 1, TeachersRequired: 1}},
	})
}

func TestEvaluateDetectsTeacherClash(t *testing.T) {
	p := sharedTeacherProblem(t)
	eval := NewEvaluator(p, DefaultWeights)

	c := blankCandidate(p)
	c.Genes[0][0] = Gene{Subject: 0, Teachers: []int{0}}
	c.Genes[1][0] = Gene{Subject: 0, Teachers: []int{0}}

	fitness, err := eval.Evaluate(c)
	require.NoError(t, err)
	assert.Equal(t, 1, fitness.Hard)
	assert.Equal(t, 1, fitness.Breakdown[PenaltyTeacherClash])
	assert.Equal(t, int64(0), fitness.Soft)
	assert.Equal(t, eval.HardWeight(), fitness.Total)

	c.Genes[1][0], c.Genes[1][1] = c.Genes[1][1], c.Genes[1][0]
	fitness, err = eval.Evaluate(c)
	require.NoError(t, err)
	assert.Equal(t, 0, fitness.Hard)
	assert.Equal(t, int64(0), fitness.Total)
}

func TestEvaluateHardConflictsDominate(t *testing.T) {
	p := sharedTeacherProblem(t)
	eval := NewEvaluator(p, DefaultWeights)

	clashing := blankCandidate(p)
	clashing.Genes[0][0] = Gene{Subject: 0, Teachers: []int{0}}
	clashing.Genes[1][0] = Gene{Subject: 0, Teachers: []int{0}}

	empty := blankCandidate(p)

	withClash, err := eval.Evaluate(clashing)
	require.NoError(t, err)
	withoutClash, err := eval.Evaluate(empty)
	require.NoError(t, err)

	assert.Equal(t, 0, withoutClash.Hard)
	assert.Equal(t, 2, withoutClash.Breakdown[PenaltyHoursDeviation])
	assert.True(t, withoutClash.Better(withClash))
	assert.Greater(t, eval.HardWeight(), withoutClash.Soft)
}

func TestEvaluateSoftViolations(t *testing.T) {
	tests := []struct {
		name      string
		subject   models.Subject
		place     []int
		breakdown map[string]int
		soft      int64
	}{
		{
			name:    "even spread",
			subject: models.Subject{ID: "s", Name: "S", WeeklyHours: 2, TeachersRequired: 1},
			place:   []int{0, 4},
		},
		{
			name:      "same day repeat",
			subject:   models.Subject{ID: "s", Name: "S", WeeklyHours: 2, TeachersRequired: 1},
			place:     []int{0, 1},
			breakdown: map[string]int{PenaltyDailyRepeat: 1},
			soft:      2,
		},
		{
			name:      "missing hour",
			subject:   models.Subject{ID: "s", Name: "S", WeeklyHours: 2, TeachersRequired: 1},
			place:     []int{0},
			breakdown: map[string]int{PenaltyHoursDeviation: 1},
			soft:      10,
		},
		{
			name:    "lab block",
			subject: models.Subject{ID: "s", Name: "S", IsLab: true, WeeklyHours: 2, TeachersRequired: 1},
			place:   []int{4, 5},
		},
		{
			name:      "lab split by break",
			subject:   models.Subject{ID: "s", Name: "S", IsLab: true, WeeklyHours: 2, TeachersRequired: 1},
			place:     []int{1, 3},
			breakdown: map[string]int{PenaltyLabSplit: 2, PenaltyDailyRepeat: 1},
			soft:      8,
		},
		{
			name:    "lab remainder",
			subject: models.Subject{ID: "s", Name: "S", IsLab: true, WeeklyHours: 3, TeachersRequired: 1},
			place:   []int{0, 1, 7},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := buildProblem(t, twoDayConfig(), Input{
				Divisions: []models.Division{{ID: "a", Name: "A"}},
				Teachers:  []models.Teacher{{ID: "t1", Name: "Ana"}},
				Subjects:  []models.Subject{tc.subject},
			})
			c := blankCandidate(p)
			for _, cell := range tc.place {
				c.Genes[0][cell] = Gene{Subject: 0, Teachers: []int{0}}
			}

			fitness, err := NewEvaluator(p, DefaultWeights).Evaluate(c)
			require.NoError(t, err)
			assert.Equal(t, 0, fitness.Hard)
			assert.Equal(t, tc.soft, fitness.Soft)
			for key, want := range tc.breakdown {
				assert.Equal(t, want, fitness.Breakdown[key], key)
			}
		})
	}
}

func TestEvaluateStructuralViolations(t *testing.T) {
	p := buildProblem(t, twoDayConfig(), Input{
		Divisions: []models.Division{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}},
		Teachers:  []models.Teacher{{ID: "t1", Name: "Ana", MaxWeeklyLoad: 1}, {ID: "t2", Name: "Budi"}},
		Subjects: []models.Subject{
			{ID: "pair", Name: "Pair", WeeklyHours: 1, TeachersRequired: 2, DivisionIDs: []string{"a"}},
			{ID: "solo", Name: "Solo", WeeklyHours: 2, TeachersRequired: 1, DivisionIDs: []string{"b"}},
		},
	})
	eval := NewEvaluator(p, DefaultWeights)

	c := blankCandidate(p)
	c.Genes[0][0] = Gene{Subject: 0, Teachers: []int{1, 1}}
	c.Genes[0][2] = Gene{Subject: 0, Teachers: []int{0, 1}}
	c.Genes[0][3] = Gene{Subject: 1, Teachers: []int{0}}
	c.Genes[1][4] = Gene{Subject: 1, Teachers: []int{0}}
	c.Genes[1][5] = Gene{Subject: 1, Teachers: []int{0}}

	fitness, err := eval.Evaluate(c)
	require.NoError(t, err)

	assert.Equal(t, 1, fitness.Breakdown[PenaltyTeacherDuplicate])
	assert.Equal(t, 1, fitness.Breakdown[PenaltyBreakViolation])
	assert.Equal(t, 1, fitness.Breakdown[PenaltyInvalidSubject])
	assert.Equal(t, 1, fitness.Breakdown[PenaltyTeacherOverload])
	assert.Equal(t, 4, fitness.Hard)
}

func TestEvaluateRejectsMalformedCandidate(t *testing.T) {
	p := sharedTeacherProblem(t)

	_, err := NewEvaluator(p, DefaultWeights).Evaluate(&Candidate{Genes: make([][]Gene, 1)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestVariance(t *testing.T) {
	assert.Equal(t, 1, variance([]int{2, 0}, []int{0, 1}))
	assert.Equal(t, 0, variance([]int{3, 3, 3}, []int{0, 1, 2}))
	assert.Equal(t, 2, variance([]int{4, 0, 2}, []int{0, 1, 2}))
	assert.Equal(t, 0, variance([]int{9}, []int{0}))
}

func categoryProblem(t *testing.T) *Problem {
	return buildProblem(t, twoDayConfig(), Input{
		Divisions: []models.Division{{ID: "a", Name: "A"}},
		Teachers:  []models.Teacher{{ID: "t1", Name: "Ana"}},
		Subjects: []models.Subject{
			{ID: "math", Name: "Math", Category: models.SubjectCategoryMajor, WeeklyHours: 1, TeachersRequired: 1},
			{ID: "eng", Name: "English", Category: models.SubjectCategoryMinor, WeeklyHours: 1, TeachersRequired: 1},
			{ID: "art", Name: "Art", Category: models.SubjectCategoryUHV, WeeklyHours: 1, TeachersRequired: 1},
		},
	})
}

func TestEvaluatePrefersHigherCategoriesEarlier(t *testing.T) {
	p := categoryProblem(t)
	eval := NewEvaluator(p, DefaultWeights)

	place := func(order ...int) *Candidate {
		c := blankCandidate(p)
		cells := []int{0, 1, 3}
		for i, subject := range order {
			c.Genes[0][cells[i]] = Gene{Subject: subject, Teachers: []int{0}}
		}
		return c
	}

	ordered, err := eval.Evaluate(place(0, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, 0, ordered.Breakdown[PenaltyCategoryOrder])
	assert.Equal(t, int64(0), ordered.Soft)

	reversed, err := eval.Evaluate(place(2, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, reversed.Hard)
	assert.Equal(t, 3, reversed.Breakdown[PenaltyCategoryOrder])
	assert.Equal(t, 3*DefaultWeights.Priority, reversed.Soft)
	assert.True(t, ordered.Better(reversed))

	minorFirst, err := eval.Evaluate(place(1, 0, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, minorFirst.Breakdown[PenaltyCategoryOrder])
	assert.True(t, minorFirst.Better(reversed))
}

func TestEvaluateCategoryOrderIsPerDay(t *testing.T) {
	p := categoryProblem(t)
	c := blankCandidate(p)
	c.Genes[0][0] = Gene{Subject: 1, Teachers: []int{0}}
	c.Genes[0][4] = Gene{Subject: 0, Teachers: []int{0}}
	c.Genes[0][5] = Gene{Subject: 2, Teachers: []int{0}}

	fitness, err := NewEvaluator(p, DefaultWeights).Evaluate(c)
	require.NoError(t, err)
	assert.Equal(t, 0, fitness.Breakdown[PenaltyCategoryOrder])
}

func TestEvaluateCategoryOrderNeverOutweighsClash(t *testing.T) {
	p := categoryProblem(t)
	eval := NewEvaluator(p, DefaultWeights)

	reversed := blankCandidate(p)
	reversed.Genes[0][0] = Gene{Subject: 2, Teachers: []int{0}}
	reversed.Genes[0][1] = Gene{Subject: 1, Teachers: []int{0}}
	reversed.Genes[0][3] = Gene{Subject: 0, Teachers: []int{0}}

	duplicate := blankCandidate(p)
	duplicate.Genes[0][0] = Gene{Subject: 0, Teachers: []int{0, 0}}
	duplicate.Genes[0][1] = Gene{Subject: 1, Teachers: []int{0}}
	duplicate.Genes[0][3] = Gene{Subject: 2, Teachers: []int{0}}

	soft, err := eval.Evaluate(reversed)
	require.NoError(t, err)
	hard, err := eval.Evaluate(duplicate)
	require.NoError(t, err)

	assert.Greater(t, hard.Hard, 0)
	assert.True(t, soft.Better(hard))
	assert.Greater(t, eval.HardWeight(), soft.Soft)
}
