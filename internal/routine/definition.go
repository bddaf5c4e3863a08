package routine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Definition is a routine definition of not-yet-known shape, as fetched from a
// manifest entry or imported from a file. Exactly one of the payload fields is
// expected; Kind picks the first recognized shape in dispatch order.
type Definition struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`

	Workouts   []Workout `json:"workouts,omitempty"`
	Rows       []Row     `json:"rows,omitempty"`
	RowsCSV    *string   `json:"rowsCsv,omitempty"`
	RowsCSVURL *string   `json:"rowsCsvUrl,omitempty"`
	Derive     *Derive   `json:"derive,omitempty"`
}

// Workout is one day of a v2-format definition: exercises referenced by
// library id instead of embedded inline.
type Workout struct {
	Week      int               `json:"week"`
	Day       int               `json:"day"`
	Focus     string            `json:"focus"`
	Exercises []WorkoutExercise `json:"exercises"`
}

// WorkoutExercise references a library exercise within a v2 workout.
type WorkoutExercise struct {
	ExerciseID string `json:"exerciseId"`
	Order      int    `json:"order"`
	Sets       int    `json:"sets"`
	TargetReps string `json:"targetReps"`
}

// Derive describes a routine produced by transforming another routine.
// mapTargets rewrites each row's target through Map; unmapped targets pass
// through unchanged.
type Derive struct {
	From string            `json:"from"`
	Mode string            `json:"mode,omitempty"`
	Map  map[string]string `json:"map,omitempty"`
}

// Kind names the recognized definition shapes. Unresolvable is an explicit
// variant: callers treat it as "routine not added", never as a crash.
type Kind int

const (
	KindUnresolvable Kind = iota
	KindV2Workouts
	KindInlineRows
	KindInlineCSV
	KindRemoteCSV
	KindDerived
)

// v2Version tags definitions that reference the exercise library by id.
const v2Version = "2.0.0"

// Kind classifies the definition, checking shapes in dispatch order.
func (d *Definition) Kind() Kind {
	switch {
	case d == nil:
		return KindUnresolvable
	case d.Version == v2Version && d.Workouts != nil:
		return KindV2Workouts
	case d.Rows != nil:
		return KindInlineRows
	case d.RowsCSV != nil:
		return KindInlineCSV
	case d.RowsCSVURL != nil:
		return KindRemoteCSV
	case d.Derive != nil && d.Derive.From != "":
		return KindDerived
	default:
		return KindUnresolvable
	}
}

var (
	// ErrUnresolvable means no recognized shape matched or a required fetch
	// failed; the routine-import attempt fails without touching prior state.
	ErrUnresolvable = errors.New("routine definition unresolvable")

	// ErrDerivationCycle means a derived routine's base chain loops back on
	// itself (A derives from B derives from A).
	ErrDerivationCycle = errors.New("derived routine cycle")
)

// ExerciseInfo is the slice of exercise metadata the resolver needs.
type ExerciseInfo struct {
	Name string
	Type string
}

// ExerciseLookup resolves library exercise ids for v2 definitions.
type ExerciseLookup interface {
	LookupExercise(id string) (ExerciseInfo, bool)
}

// exerciseTypeRoutine marks library entries tracked as sub-routines rather
// than set/rep schemes.
const exerciseTypeRoutine = "routine"

// Resolver turns a Definition of any recognized shape into a canonical
// Routine. Exercises resolves v2 references; Fetch loads remote CSV payloads;
// LoadBase resolves the base of a derived definition, threading the visited
// set that guards against derivation cycles.
type Resolver struct {
	Exercises ExerciseLookup
	Fetch     func(ctx context.Context, url string) ([]byte, error)
	LoadBase  func(ctx context.Context, id string, visited map[string]bool) (*Routine, error)
	Log       *slog.Logger
}

// Resolve produces {id, name, rows} or an error wrapping ErrUnresolvable.
func (rs *Resolver) Resolve(ctx context.Context, def *Definition) (*Routine, error) {
	return rs.resolve(ctx, def, map[string]bool{})
}

func (rs *Resolver) resolve(ctx context.Context, def *Definition, visited map[string]bool) (*Routine, error) {
	switch def.Kind() {
	case KindV2Workouts:
		return rs.resolveV2(def), nil

	case KindInlineRows:
		return &Routine{ID: def.ID, Name: def.Name, Rows: RefineRows(def.Rows)}, nil

	case KindInlineCSV:
		return &Routine{ID: def.ID, Name: def.Name, Rows: ParseCSV(*def.RowsCSV)}, nil

	case KindRemoteCSV:
		if rs.Fetch == nil {
			return nil, fmt.Errorf("%w: no fetcher for %q", ErrUnresolvable, *def.RowsCSVURL)
		}
		body, err := rs.Fetch(ctx, *def.RowsCSVURL)
		if err != nil {
			return nil, fmt.Errorf("%w: fetching rows csv: %v", ErrUnresolvable, err)
		}
		return &Routine{ID: def.ID, Name: def.Name, Rows: ParseCSV(string(body))}, nil

	case KindDerived:
		return rs.resolveDerived(ctx, def, visited)

	default:
		return nil, ErrUnresolvable
	}
}

// resolveV2 expands library-referenced workouts into rows. Unresolvable
// exercise ids are logged and skipped; the routine itself stays valid.
func (rs *Resolver) resolveV2(def *Definition) *Routine {
	var rows []Row
	for _, w := range def.Workouts {
		for _, ex := range w.Exercises {
			info, ok := ExerciseInfo{}, false
			if rs.Exercises != nil {
				info, ok = rs.Exercises.LookupExercise(ex.ExerciseID)
			}
			if !ok {
				if rs.Log != nil {
					rs.Log.Warn("exercise not found", "exerciseId", ex.ExerciseID, "routine", def.ID)
				}
				continue
			}
			sets := ex.Sets
			if sets == 0 {
				sets = 1
			}
			ord := ex.Order
			row := Row{
				Week:     w.Week,
				Day:      w.Day,
				Focus:    w.Focus,
				Exercise: info.Name,
				Target:   ex.TargetReps,
				Sets:     sets,
				Ord:      &ord,
			}
			if info.Type == exerciseTypeRoutine {
				t := true
				row.IsRoutine = &t
			}
			rows = append(rows, RefineRow(row))
		}
	}
	return &Routine{ID: def.ID, Name: def.Name, Rows: rows}
}

// resolveDerived resolves the base routine first, then rewrites targets
// through the derivation map. Rows keep their base rowIds; the derived
// routine's key prefix keeps the two key spaces apart.
func (rs *Resolver) resolveDerived(ctx context.Context, def *Definition, visited map[string]bool) (*Routine, error) {
	if rs.LoadBase == nil {
		return nil, fmt.Errorf("%w: no base loader for %q", ErrUnresolvable, def.Derive.From)
	}
	base, err := rs.LoadBase(ctx, def.Derive.From, visited)
	if err != nil {
		return nil, err
	}
	mode := def.Derive.Mode
	if mode == "" {
		mode = "mapTargets"
	}
	if mode != "mapTargets" || def.Derive.Map == nil {
		return nil, fmt.Errorf("%w: unsupported derive mode %q", ErrUnresolvable, mode)
	}
	rows := make([]Row, len(base.Rows))
	for i, r := range base.Rows {
		if mapped, ok := def.Derive.Map[strings.TrimSpace(r.Target)]; ok {
			r.Target = mapped
		}
		rows[i] = RefineRow(r)
	}
	return &Routine{ID: def.ID, Name: def.Name, Rows: rows}, nil
}
