package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/meltforce/repcal/internal/routine"
	"github.com/meltforce/repcal/internal/state"
)

// resolveRoutine returns the routine with the given id, defaulting to the view
// cursor's routine. Manifest routines load on first use.
func (h *handlers) resolveRoutine(ctx context.Context, id string) (*routine.Routine, error) {
	if id == "" {
		id = h.states.View().Routine
	}
	if id == "" {
		return nil, fmt.Errorf("no routine selected; pass the routine parameter or set the view first")
	}
	if rt := h.routines.RoutineByID(id); rt != nil {
		return rt, nil
	}
	return h.routines.EnsureLoaded(ctx, id)
}

// findDayRow locates a row in the day's rows by its row id or exercise name
// slug, returning the row and its position.
func findDayRow(rows []routine.Row, ref string) (routine.Row, int, bool) {
	slug := routine.Slug(ref)
	for i, r := range rows {
		if r.RowID == ref || routine.Slug(r.Exercise) == slug {
			return r, i, true
		}
	}
	return routine.Row{}, 0, false
}

// --- Tool definitions ---

var toolListRoutines = mcp.NewTool("list_routines",
	mcp.WithDescription("List the user's routines and the current view cursor (selected routine, week, day)."),
)

var toolGetRoutine = mcp.NewTool("get_routine",
	mcp.WithDescription("Get a routine's full row list: every exercise across all weeks and days."),
	mcp.WithString("routine", mcp.Required(), mcp.Description("Routine id")),
)

var toolGetDayPlan = mcp.NewTool("get_day_plan",
	mcp.WithDescription("Get the exercises for one training day, with logged progress, completion flags, and time estimates. Defaults to the current view cursor."),
	mcp.WithString("routine", mcp.Description("Routine id. Defaults to the selected routine.")),
	mcp.WithNumber("week", mcp.Description("Week number (1-based). Defaults to the view cursor.")),
	mcp.WithNumber("day", mcp.Description("Day number (1-based). Defaults to the view cursor.")),
)

var toolLogSet = mcp.NewTool("log_set",
	mcp.WithDescription("Record weight, reps, and/or difficulty for one set of an exercise on the current day."),
	mcp.WithString("exercise", mcp.Required(), mcp.Description("Exercise name or row id from get_day_plan")),
	mcp.WithNumber("set", mcp.Required(), mcp.Description("Set number, 1-based")),
	mcp.WithString("weight", mcp.Description("Weight used (free text, e.g. '80kg' or 'bodyweight')")),
	mcp.WithString("reps", mcp.Description("Reps performed")),
	mcp.WithString("difficulty", mcp.Description("Perceived difficulty (e.g. 'easy', 'hard', 'failure')")),
)

var toolToggleExercise = mcp.NewTool("toggle_exercise",
	mcp.WithDescription("Toggle an exercise's completed flag on the current day. Returns the new state."),
	mcp.WithString("exercise", mcp.Required(), mcp.Description("Exercise name or row id from get_day_plan")),
)

var toolSetView = mcp.NewTool("set_view",
	mcp.WithDescription("Move the view cursor: select a routine and/or change week and day. Omitted fields keep their value."),
	mcp.WithString("routine", mcp.Description("Routine id to select")),
	mcp.WithNumber("week", mcp.Description("Week number, 1-based")),
	mcp.WithNumber("day", mcp.Description("Day number, 1-based")),
)

var toolGetProgressSummary = mcp.NewTool("get_progress_summary",
	mcp.WithDescription("Per-day completion counts for a routine: how many exercises are done out of the total for each week/day."),
	mcp.WithString("routine", mcp.Description("Routine id. Defaults to the selected routine.")),
)

var toolGetExerciseInfo = mcp.NewTool("get_exercise_info",
	mcp.WithDescription("Look up an exercise in the library: muscles worked, equipment, instructions, and form cues."),
	mcp.WithString("exercise", mcp.Required(), mcp.Description("Exercise id, name, or slug")),
)

// --- Tool handlers ---

func (h *handlers) listRoutines(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(map[string]any{
		"routines": h.states.RoutineOptions(),
		"view":     h.states.View(),
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getRoutine(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("routine")
	if err != nil {
		return mcp.NewToolResultError("routine parameter is required"), nil
	}

	rt, err := h.resolveRoutine(ctx, id)
	if err != nil {
		h.log.Error("mcp get_routine", "error", err)
		return mcp.NewToolResultError("routine lookup failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(rt)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// dayPlanRow mirrors what a client needs to render and reference one exercise.
type dayPlanRow struct {
	RowID      string        `json:"rowId"`
	Exercise   string        `json:"exercise"`
	Target     string        `json:"target"`
	Sets       int           `json:"sets"`
	Notes      string        `json:"notes,omitempty"`
	EstMinutes float64       `json:"estMinutes"`
	Progress   *state.Record `json:"progress"`
}

func (h *handlers) buildDayPlan(ctx context.Context, routineID string, week, day int) (map[string]any, error) {
	rt, err := h.resolveRoutine(ctx, routineID)
	if err != nil {
		return nil, err
	}
	view := h.states.View()
	if week == 0 {
		week = view.Week
	}
	if day == 0 {
		day = view.Day
	}

	rows := rt.RowsFor(week, day)
	plan := make([]dayPlanRow, 0, len(rows))
	total := 0.0
	for i, r := range rows {
		est := routine.EstimateMinutes(r)
		total += est
		plan = append(plan, dayPlanRow{
			RowID:      r.RowID,
			Exercise:   r.Exercise,
			Target:     r.Target,
			Sets:       r.Sets,
			Notes:      r.Notes,
			EstMinutes: est,
			Progress:   h.states.RowViewState(rt.ID, r, i, r.Sets),
		})
	}
	return map[string]any{
		"routine":      rt.ID,
		"routineName":  rt.Name,
		"week":         week,
		"day":          day,
		"date":         h.states.DateFor(rt.ID, week, day),
		"rows":         plan,
		"totalMinutes": total,
	}, nil
}

func (h *handlers) getDayPlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	plan, err := h.buildDayPlan(ctx,
		req.GetString("routine", ""),
		req.GetInt("week", 0),
		req.GetInt("day", 0),
	)
	if err != nil {
		h.log.Error("mcp get_day_plan", "error", err)
		return mcp.NewToolResultError("day plan failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(plan)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) logSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("exercise")
	if err != nil {
		return mcp.NewToolResultError("exercise parameter is required"), nil
	}
	setNum, err := req.RequireInt("set")
	if err != nil {
		return mcp.NewToolResultError("set parameter is required"), nil
	}

	rt, err := h.resolveRoutine(ctx, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	view := h.states.View()
	row, ord, found := findDayRow(rt.RowsFor(view.Week, view.Day), ref)
	if !found {
		return mcp.NewToolResultError(fmt.Sprintf("exercise %q not found on week %d day %d", ref, view.Week, view.Day)), nil
	}

	upd := state.SetUpdate{}
	if v := req.GetString("weight", ""); v != "" {
		upd.Wts = &v
	}
	if v := req.GetString("reps", ""); v != "" {
		upd.Reps = &v
	}
	if v := req.GetString("difficulty", ""); v != "" {
		upd.Diff = &v
	}
	if err := h.states.UpdateSet(rt.ID, row, ord, setNum-1, upd); err != nil {
		h.log.Error("mcp log_set", "error", err)
		return mcp.NewToolResultError("logging failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"exercise": row.Exercise,
		"set":      setNum,
		"progress": h.states.RowViewState(rt.ID, row, ord, row.Sets),
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) toggleExercise(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("exercise")
	if err != nil {
		return mcp.NewToolResultError("exercise parameter is required"), nil
	}

	rt, err := h.resolveRoutine(ctx, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	view := h.states.View()
	row, ord, found := findDayRow(rt.RowsFor(view.Week, view.Day), ref)
	if !found {
		return mcp.NewToolResultError(fmt.Sprintf("exercise %q not found on week %d day %d", ref, view.Week, view.Day)), nil
	}

	completed := h.states.ToggleCompletion(rt.ID, row, ord)

	result, err := mcp.NewToolResultJSON(map[string]any{
		"exercise":  row.Exercise,
		"completed": completed,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) setView(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	upd := state.ViewUpdate{}
	if v := req.GetString("routine", ""); v != "" {
		if _, err := h.resolveRoutine(ctx, v); err != nil {
			return mcp.NewToolResultError("unknown routine: " + err.Error()), nil
		}
		upd.Routine = &v
	}
	if v := req.GetInt("week", 0); v != 0 {
		upd.Week = &v
	}
	if v := req.GetInt("day", 0); v != 0 {
		upd.Day = &v
	}

	view := h.states.UpdateView(upd)

	result, err := mcp.NewToolResultJSON(view)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getProgressSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rt, err := h.resolveRoutine(ctx, req.GetString("routine", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	type daySummary struct {
		Week      int    `json:"week"`
		Day       int    `json:"day"`
		Completed int    `json:"completed"`
		Total     int    `json:"total"`
		Date      string `json:"date,omitempty"`
	}
	var days []daySummary
	for _, week := range rt.Weeks() {
		seen := map[int]bool{}
		for _, r := range rt.Rows {
			if r.Week != week || seen[r.Day] {
				continue
			}
			seen[r.Day] = true
			rows := rt.RowsFor(week, r.Day)
			done := 0
			for i, row := range rows {
				if rec := h.states.ReadRowState(rt.ID, row, i); rec != nil && rec.Completed {
					done++
				}
			}
			days = append(days, daySummary{
				Week:      week,
				Day:       r.Day,
				Completed: done,
				Total:     len(rows),
				Date:      h.states.DateFor(rt.ID, week, r.Day),
			})
		}
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"routine":     rt.ID,
		"routineName": rt.Name,
		"days":        days,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getExerciseInfo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("exercise")
	if err != nil {
		return mcp.NewToolResultError("exercise parameter is required"), nil
	}

	ex, ok := h.catalog.Get(ref)
	if !ok {
		ex, ok = h.catalog.GetBySlug(routine.Slug(ref))
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("exercise %q not in library", ref)), nil
	}

	result, err := mcp.NewToolResultJSON(ex)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
