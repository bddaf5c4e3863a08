package routine

import (
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Row is one prescribed exercise occurrence within a routine, placed at
// (week, day). Target is a free-form prescription, conventionally
// "<min> to <max>" reps, or routine-like text for named sub-routines.
type Row struct {
	Week      int     `json:"week"`
	Day       int     `json:"day"`
	Focus     string  `json:"focus"`
	Exercise  string  `json:"exercise"`
	Target    string  `json:"target"`
	Sets      int     `json:"sets"`
	Notes     string  `json:"notes,omitempty"`
	Est       float64 `json:"est,omitempty"`
	Ord       *int    `json:"ord,omitempty"`
	RowID     string  `json:"rowId,omitempty"`
	IsRoutine *bool   `json:"isRoutine,omitempty"`
}

// Routine is a named program of exercises organized by week/day.
type Routine struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Rows []Row  `json:"rows"`
}

var (
	routineTargetRe   = regexp.MustCompile(`(?i)routine`)
	routineExerciseRe = regexp.MustCompile(`(?i)stretch-it`)
)

// routineLike reports whether a row's text marks it as a named sub-routine
// rather than a set/rep scheme.
func routineLike(target, exercise string) bool {
	return routineTargetRe.MatchString(target) || routineExerciseRe.MatchString(exercise)
}

// Routine reports the row's sub-routine flag, deriving it when unset.
func (r Row) IsSubRoutine() bool {
	if r.IsRoutine != nil {
		return *r.IsRoutine
	}
	return routineLike(r.Target, r.Exercise)
}

// RefineRow returns a copy of the row with IsRoutine populated if absent.
// Applying it twice yields the same result as once.
func RefineRow(r Row) Row {
	if r.IsRoutine == nil {
		v := routineLike(r.Target, r.Exercise)
		r.IsRoutine = &v
	}
	return r
}

// RefineRows refines every row in place order-preserving.
func RefineRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = RefineRow(r)
	}
	return out
}

// RowsFor returns the routine's rows at (week, day) in definition order.
func (rt *Routine) RowsFor(week, day int) []Row {
	if rt == nil {
		return nil
	}
	var out []Row
	for _, r := range rt.Rows {
		if r.Week == week && r.Day == day {
			out = append(out, r)
		}
	}
	return out
}

// Weeks returns the sorted distinct week numbers present in the routine.
func (rt *Routine) Weeks() []int {
	if rt == nil {
		return nil
	}
	seen := make(map[int]bool)
	var out []int
	for _, r := range rt.Rows {
		if !seen[r.Week] {
			seen[r.Week] = true
			out = append(out, r.Week)
		}
	}
	sort.Ints(out)
	return out
}

// UserRoutinePrefix marks routines as user-owned and mutable; routines without
// it come from the library manifest and are read-only.
const UserRoutinePrefix = "user_"

// IsUserRoutineID reports whether the id names a user-owned routine.
func IsUserRoutineID(id string) bool {
	return strings.HasPrefix(id, UserRoutinePrefix)
}

// NewUserRoutineID returns a fresh user-owned routine id.
func NewUserRoutineID() string {
	return UserRoutinePrefix + uuid.NewString()
}
