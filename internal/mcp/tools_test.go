package mcp

import (
	"context"
	"log/slog"
	"testing"

	"github.com/meltforce/repcal/internal/exercises"
	"github.com/meltforce/repcal/internal/routine"
	"github.com/meltforce/repcal/internal/state"
)

type memStore struct{ data map[string][]byte }

func (s *memStore) Load(ctx context.Context, key string) ([]byte, error) { return s.data[key], nil }
func (s *memStore) Save(ctx context.Context, key string, value []byte) error {
	s.data[key] = value
	return nil
}
func (s *memStore) Delete(ctx context.Context, key string) error {
	delete(s.data, key)
	return nil
}
func (s *memStore) Close() error { return nil }

func newTestHandlers(t *testing.T) *handlers {
	t.Helper()
	log := slog.Default()
	states := state.NewManager(&memStore{data: map[string][]byte{}}, nil, log)
	if err := states.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	catalog := exercises.New(log)
	if err := catalog.Load(""); err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return &handlers{
		states:   states,
		routines: routine.NewService("", catalog, states.UserRoutine, log),
		catalog:  catalog,
		log:      log,
	}
}

func addRoutine(t *testing.T, h *handlers) *routine.Routine {
	t.Helper()
	rt := &routine.Routine{ID: "user_p1", Name: "Program", Rows: []routine.Row{
		{Week: 1, Day: 1, Focus: "Push", Exercise: "Bench Press", Target: "8 to 12", Sets: 3},
		{Week: 1, Day: 1, Focus: "Push", Exercise: "Dips", Target: "10 to 15", Sets: 3},
	}}
	h.states.AddRoutine(rt)
	return rt
}

// TestFindDayRow verifies lookup by row id and by exercise name variants.
func TestFindDayRow(t *testing.T) {
	rt := &routine.Routine{ID: "user_p1", Rows: []routine.Row{
		{Week: 1, Day: 1, Exercise: "Bench Press", Sets: 3},
		{Week: 1, Day: 1, Exercise: "Dips", Sets: 3},
	}}
	routine.EnsureRowIDs(rt)
	rows := rt.RowsFor(1, 1)

	if _, i, ok := findDayRow(rows, rows[1].RowID); !ok || i != 1 {
		t.Errorf("by id: (%d, %v)", i, ok)
	}
	if _, i, ok := findDayRow(rows, "bench  PRESS"); !ok || i != 0 {
		t.Errorf("by name variant: (%d, %v)", i, ok)
	}
	if _, _, ok := findDayRow(rows, "squat"); ok {
		t.Error("unknown exercise matched")
	}
}

// TestResolveRoutineDefaultsToView verifies the empty id falls back to the
// view cursor and errors when nothing is selected.
func TestResolveRoutineDefaultsToView(t *testing.T) {
	h := newTestHandlers(t)
	if _, err := h.resolveRoutine(context.Background(), ""); err == nil {
		t.Error("expected error with no selection")
	}

	rt := addRoutine(t, h)
	got, err := h.resolveRoutine(context.Background(), "")
	if err != nil || got.ID != rt.ID {
		t.Errorf("resolved (%v, %v), want %q", got, err, rt.ID)
	}
}

// TestBuildDayPlan verifies the plan joins rows with progress and estimates.
func TestBuildDayPlan(t *testing.T) {
	h := newTestHandlers(t)
	rt := addRoutine(t, h)
	h.states.ToggleCompletion(rt.ID, rt.Rows[0], 0)

	plan, err := h.buildDayPlan(context.Background(), "", 0, 0)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if plan["routine"] != rt.ID || plan["week"] != 1 || plan["day"] != 1 {
		t.Errorf("plan header = %+v", plan)
	}
	rows, ok := plan["rows"].([]dayPlanRow)
	if !ok || len(rows) != 2 {
		t.Fatalf("rows = %+v, want 2 entries", plan["rows"])
	}
	if !rows[0].Progress.Completed || rows[1].Progress.Completed {
		t.Errorf("completion flags = %v, %v", rows[0].Progress.Completed, rows[1].Progress.Completed)
	}
	if rows[0].EstMinutes <= 0 {
		t.Errorf("estimate = %v", rows[0].EstMinutes)
	}
	if total, _ := plan["totalMinutes"].(float64); total <= rows[0].EstMinutes {
		t.Errorf("total minutes = %v", plan["totalMinutes"])
	}
}
