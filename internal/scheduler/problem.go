package scheduler

import (
	"fmt"
	"sort"

	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

// Input is the read snapshot a generation works from.
type Input struct {
	Divisions       []models.Division
	Teachers        []models.Teacher
	Subjects        []models.Subject
	SubjectTeachers []models.SubjectTeacher
	// MaxTeacherLoad applies to teachers without their own limit. Zero is unlimited.
	MaxTeacherLoad int
	LabBlockSlots  int
}

// Demand is the weekly requirement of one subject in one division.
type Demand struct {
	Subject  int
	Hours    int
	Lab      bool
	Priority int
}

// Problem is the index-based form of an Input on a fixed grid. It is
// immutable once built and safe to share between goroutines.
type Problem struct {
	Grid      SlotGrid
	Divisions []models.Division
	Teachers  []models.Teacher
	Subjects  []models.Subject

	// Demands lists per division the subjects it takes: labs first, then by
	// category priority, then by weekly hours.
	Demands [][]Demand
	// Eligible lists per subject the teacher indexes allowed to teach it.
	Eligible [][]int
	// MaxLoad is the weekly cap per teacher, zero meaning unlimited.
	MaxLoad  []int
	LabBlock int

	demandOf      [][]int
	eligibleSet   []map[int]bool
	teachingCells []int
	activeTeacher []int
}

// NewProblem checks the input for feasibility and compiles it against grid.
// Every failure is an insufficient data error and happens before any search.
func NewProblem(grid SlotGrid, in Input) (*Problem, error) {
	switch {
	case len(in.Divisions) == 0:
		return nil, insufficient("at least one division is required")
	case len(in.Teachers) == 0:
		return nil, insufficient("at least one teacher is required")
	case len(in.Subjects) == 0:
		return nil, insufficient("at least one subject is required")
	case len(grid.Slots) == 0 || len(grid.Days) == 0:
		return nil, insufficient("slot grid is empty")
	}

	p := &Problem{
		Grid:      grid,
		Divisions: in.Divisions,
		Teachers:  in.Teachers,
		Subjects:  in.Subjects,
		LabBlock:  in.LabBlockSlots,
	}
	if p.LabBlock <= 0 {
		p.LabBlock = models.DefaultLabBlockSlots
	}

	divisionIdx, err := indexByID(len(in.Divisions), func(i int) string { return in.Divisions[i].ID }, "division")
	if err != nil {
		return nil, err
	}
	teacherIdx, err := indexByID(len(in.Teachers), func(i int) string { return in.Teachers[i].ID }, "teacher")
	if err != nil {
		return nil, err
	}
	subjectIdx, err := indexByID(len(in.Subjects), func(i int) string { return in.Subjects[i].ID }, "subject")
	if err != nil {
		return nil, err
	}

	p.MaxLoad = make([]int, len(in.Teachers))
	for i, teacher := range in.Teachers {
		p.MaxLoad[i] = teacher.MaxWeeklyLoad
		if p.MaxLoad[i] <= 0 {
			p.MaxLoad[i] = in.MaxTeacherLoad
		}
	}

	mapped := make([][]int, len(in.Subjects))
	for _, link := range in.SubjectTeachers {
		s, ok := subjectIdx[link.SubjectID]
		if !ok {
			return nil, insufficient(fmt.Sprintf("teacher mapping references unknown subject %q", link.SubjectID))
		}
		t, ok := teacherIdx[link.TeacherID]
		if !ok {
			return nil, insufficient(fmt.Sprintf("subject %q is mapped to unknown teacher %q", in.Subjects[s].Name, link.TeacherID))
		}
		mapped[s] = appendUnique(mapped[s], t)
	}

	p.Eligible = make([][]int, len(in.Subjects))
	p.eligibleSet = make([]map[int]bool, len(in.Subjects))
	active := make(map[int]bool)
	for s, subject := range in.Subjects {
		if subject.WeeklyHours <= 0 {
			return nil, insufficient(fmt.Sprintf("subject %q needs positive weekly hours", subject.Name))
		}
		eligible := mapped[s]
		if len(eligible) == 0 {
			eligible = make([]int, len(in.Teachers))
			for t := range in.Teachers {
				eligible[t] = t
			}
		}
		sort.Ints(eligible)
		required := requiredTeachers(subject)
		if required > len(eligible) {
			return nil, insufficient(fmt.Sprintf("subject %q needs %d teachers but only %d are eligible", subject.Name, required, len(eligible)))
		}
		for _, id := range subject.DivisionIDs {
			if _, ok := divisionIdx[id]; !ok {
				return nil, insufficient(fmt.Sprintf("subject %q references unknown division %q", subject.Name, id))
			}
		}

		p.Eligible[s] = eligible
		p.eligibleSet[s] = make(map[int]bool, len(eligible))
		for _, t := range eligible {
			p.eligibleSet[s][t] = true
			active[t] = true
		}
	}
	for t := range in.Teachers {
		if active[t] {
			p.activeTeacher = append(p.activeTeacher, t)
		}
	}

	for cell := 0; cell < grid.Cells(); cell++ {
		if !grid.IsBreak(cell % grid.SlotsPerDay()) {
			p.teachingCells = append(p.teachingCells, cell)
		}
	}
	capacity := len(p.teachingCells)

	p.Demands = make([][]Demand, len(in.Divisions))
	p.demandOf = make([][]int, len(in.Divisions))
	for d, division := range in.Divisions {
		total := 0
		var demands []Demand
		for s, subject := range in.Subjects {
			if !subject.AppliesTo(division.ID) {
				continue
			}
			demands = append(demands, Demand{Subject: s, Hours: subject.WeeklyHours, Lab: subject.IsLab, Priority: subject.Category.Priority()})
			total += subject.WeeklyHours
		}
		if total > capacity {
			return nil, insufficient(fmt.Sprintf("division %q needs %d teaching slots but the week has %d", division.Name, total, capacity))
		}

		sort.SliceStable(demands, func(i, j int) bool {
			if demands[i].Lab != demands[j].Lab {
				return demands[i].Lab
			}
			if demands[i].Priority != demands[j].Priority {
				return demands[i].Priority < demands[j].Priority
			}
			return demands[i].Hours > demands[j].Hours
		})

		p.Demands[d] = demands
		p.demandOf[d] = make([]int, len(in.Subjects))
		for s := range p.demandOf[d] {
			p.demandOf[d][s] = -1
		}
		for i, demand := range demands {
			p.demandOf[d][demand.Subject] = i
		}
	}

	return p, nil
}

// TeachingCells returns the week's non-break cell offsets in order.
func (p *Problem) TeachingCells() []int { return p.teachingCells }

// Timetable renders a candidate into the domain timetable keyed by division ID.
func (p *Problem) Timetable(c *Candidate) models.Timetable {
	perDay := p.Grid.SlotsPerDay()
	out := make(models.Timetable, len(p.Divisions))
	for d, division := range p.Divisions {
		schedule := models.DivisionSchedule{DivisionID: division.ID, Days: make([]models.DaySchedule, len(p.Grid.Days))}
		for day, dayName := range p.Grid.Days {
			cells := make([]models.Assignment, perDay)
			for slot, ts := range p.Grid.Slots {
				gene := c.Genes[d][day*perDay+slot]
				cell := models.Assignment{
					DivisionID: division.ID,
					Day:        dayName,
					Slot:       slot,
					Start:      ts.Start,
					End:        ts.End,
					Kind:       models.SlotFree,
				}
				switch {
				case ts.Kind == models.SlotBreak:
					cell.Kind = models.SlotBreak
				case gene.Subject >= 0 && gene.Subject < len(p.Subjects):
					subject := p.Subjects[gene.Subject]
					cell.Kind = models.SlotLecture
					if subject.IsLab {
						cell.Kind = models.SlotLab
					}
					cell.SubjectID = subject.ID
					cell.TeacherIDs = make([]string, len(gene.Teachers))
					for i, t := range gene.Teachers {
						cell.TeacherIDs[i] = p.Teachers[t].ID
					}
				}
				cells[slot] = cell
			}
			schedule.Days[day] = models.DaySchedule{Day: dayName, Cells: cells}
		}
		out[division.ID] = schedule
	}
	return out
}

func requiredTeachers(subject models.Subject) int {
	if subject.TeachersRequired <= 0 {
		return 1
	}
	return subject.TeachersRequired
}

func indexByID(n int, id func(int) string, kind string) (map[string]int, error) {
	index := make(map[string]int, n)
	for i := 0; i < n; i++ {
		key := id(i)
		if key == "" {
			return nil, insufficient(fmt.Sprintf("%s at position %d has no id", kind, i))
		}
		if _, exists := index[key]; exists {
			return nil, insufficient(fmt.Sprintf("duplicate %s id %q", kind, key))
		}
		index[key] = i
	}
	return index, nil
}

func appendUnique(list []int, v int) []int {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func insufficient(message string) error {
	return appErrors.Clone(appErrors.ErrInsufficientData, message)
}
