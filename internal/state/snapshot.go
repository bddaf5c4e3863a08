package state

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/meltforce/repcal/internal/routine"
)

// ExportSchema tags snapshot files produced by this version.
const ExportSchema = "wt.v1"

// Snapshot is the export file format: everything needed to move a profile's
// data between installs.
type Snapshot struct {
	Schema       string                      `json:"schema"`
	Store        *ProgressStore              `json:"store"`
	UserRoutines map[string]*routine.Routine `json:"userRoutines"`
	View         View                        `json:"view"`
	Title        string                      `json:"title,omitempty"`
	ExportedAt   time.Time                   `json:"exportedAt"`
}

// Export captures the current state as a snapshot.
func (m *Manager) Export() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	routines := make(map[string]*routine.Routine, len(m.routines))
	for k, v := range m.routines {
		routines[k] = v
	}
	title := strings.TrimSpace(m.progress.Title)
	if title == "" {
		title = AppTitleDefault
	}
	return &Snapshot{
		Schema:       ExportSchema,
		Store:        m.progress.Clone(),
		UserRoutines: routines,
		View:         m.view,
		Title:        title,
		ExportedAt:   time.Now().UTC(),
	}
}

// SchemaMismatchError reports an import file tagged with a different schema.
// Callers may retry the import with force set.
type SchemaMismatchError struct {
	File string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: file=%s, expected=%s", e.File, ExportSchema)
}

// rawSnapshot reads the import file defensively: routines may appear under
// either key, and row fields may carry the wrong JSON types.
type rawSnapshot struct {
	Schema       string                     `json:"schema"`
	Store        *ProgressStore             `json:"store"`
	UserRoutines map[string]json.RawMessage `json:"userRoutines"`
	Routines     map[string]json.RawMessage `json:"routines"`
	View         *looseView                 `json:"view"`
	Title        string                     `json:"title"`
}

type looseView struct {
	Routine string `json:"routine"`
	Week    any    `json:"week"`
	Day     any    `json:"day"`
}

type looseRoutine struct {
	ID   string           `json:"id"`
	Name string           `json:"name"`
	Rows []map[string]any `json:"rows"`
}

// Import merges a snapshot file into the current state. A schema mismatch is
// rejected with *SchemaMismatchError unless force is set. Malformed rows
// (missing week/day/exercise) are dropped; numeric fields are coerced.
// Invalid JSON leaves state untouched.
func (m *Manager) Import(data []byte, force bool) error {
	var raw rawSnapshot
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid file: %w", err)
	}
	if raw.Schema != "" && raw.Schema != ExportSchema && !force {
		return &SchemaMismatchError{File: raw.Schema}
	}

	m.mu.Lock()
	if raw.Store != nil {
		m.progress.merge(raw.Store)
		m.markDirtyLocked(BucketStore)
	}

	src := raw.UserRoutines
	if src == nil {
		src = raw.Routines
	}
	if src != nil {
		clean := make(map[string]*routine.Routine, len(src))
		for id, rrt := range src {
			var lr looseRoutine
			if err := json.Unmarshal(rrt, &lr); err != nil {
				continue
			}
			rid := lr.ID
			if rid == "" {
				rid = id
			}
			name := lr.Name
			if name == "" {
				name = rid
			}
			rt := &routine.Routine{ID: rid, Name: name}
			for _, lrow := range lr.Rows {
				if row, ok := coerceRow(lrow); ok {
					rt.Rows = append(rt.Rows, row)
				}
			}
			routine.EnsureRowIDs(rt)
			clean[rid] = rt
		}
		m.routines = clean
		m.markDirtyLocked(BucketRoutines)
	}

	if raw.View != nil {
		m.view.Routine = raw.View.Routine
		if w, ok := coerceInt(raw.View.Week); ok {
			m.view.Week = w
		}
		if d, ok := coerceInt(raw.View.Day); ok {
			m.view.Day = d
		}
		m.view.normalize()
		m.markDirtyLocked(BucketView)
	}

	if raw.Title != "" {
		m.progress.Title = raw.Title
		m.markDirtyLocked(BucketStore)
	}
	m.mu.Unlock()

	m.notify(BucketStore)
	m.notify(BucketRoutines)
	m.notify(BucketView)
	return nil
}

// coerceRow builds a Row from loosely-typed JSON, dropping it when week, day,
// or exercise are unusable.
func coerceRow(src map[string]any) (routine.Row, bool) {
	week, okW := coerceInt(src["week"])
	day, okD := coerceInt(src["day"])
	exercise := coerceString(src["exercise"])
	if !okW || !okD || exercise == "" {
		return routine.Row{}, false
	}
	row := routine.Row{
		Week:     week,
		Day:      day,
		Focus:    coerceString(src["focus"]),
		Exercise: exercise,
		Target:   coerceString(src["target"]),
		Notes:    coerceString(src["notes"]),
	}
	if sets, ok := coerceInt(src["sets"]); ok {
		row.Sets = sets
	}
	if est, ok := coerceFloat(src["est"]); ok {
		row.Est = est
	}
	if ord, ok := coerceInt(src["ord"]); ok {
		o := ord
		row.Ord = &o
	}
	if id, ok := src["rowId"].(string); ok {
		row.RowID = id
	}
	if b, ok := src["isRoutine"].(bool); ok {
		row.IsRoutine = &b
	}
	return routine.RefineRow(row), true
}

func coerceInt(v any) (int, bool) {
	f, ok := coerceFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func coerceFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func coerceString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}
