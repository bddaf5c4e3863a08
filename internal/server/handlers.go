package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/meltforce/repcal/internal/routine"
	"github.com/meltforce/repcal/internal/state"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	info, _ := r.Context().Value(userInfoKey).(UserInfo)
	writeJSON(w, http.StatusOK, info)
}

// currentRoutine resolves the routine the request targets: the explicit
// ?routine= override or the view cursor. Manifest routines load on first use.
func (s *Server) currentRoutine(r *http.Request) *routine.Routine {
	id := r.URL.Query().Get("routine")
	if id == "" {
		id = s.states.View().Routine
	}
	if id == "" {
		return nil
	}
	if rt := s.routines.RoutineByID(id); rt != nil {
		return rt
	}
	rt, err := s.routines.EnsureLoaded(r.Context(), id)
	if err != nil {
		s.log.Warn("routine load failed", "id", id, "error", err)
		return nil
	}
	return rt
}

// dayRowView is one row of the day plan, joined with its progress record,
// time estimate, and effective video URL.
type dayRowView struct {
	routine.Row
	Progress   *state.Record `json:"progress"`
	EstMinutes float64       `json:"estMinutes"`
	VideoURL   string        `json:"videoUrl,omitempty"`
}

type dayResponse struct {
	Routine      string       `json:"routine"`
	RoutineName  string       `json:"routineName"`
	Week         int          `json:"week"`
	Day          int          `json:"day"`
	Focus        string       `json:"focus"`
	Date         string       `json:"date,omitempty"`
	Rows         []dayRowView `json:"rows"`
	TotalMinutes float64      `json:"totalMinutes"`
}

func (s *Server) handleGetDay(w http.ResponseWriter, r *http.Request) {
	rt := s.currentRoutine(r)
	if rt == nil {
		writeError(w, http.StatusNotFound, "no routine selected")
		return
	}
	view := s.states.View()
	week, day := view.Week, view.Day
	if v := r.URL.Query().Get("week"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			week = n
		}
	}
	if v := r.URL.Query().Get("day"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			day = n
		}
	}

	rows := rt.RowsFor(week, day)
	resp := dayResponse{
		Routine:     rt.ID,
		RoutineName: rt.Name,
		Week:        week,
		Day:         day,
		Date:        s.states.DateFor(rt.ID, week, day),
	}
	for i, row := range rows {
		if resp.Focus == "" {
			resp.Focus = row.Focus
		}
		est := routine.EstimateMinutes(row)
		resp.TotalMinutes += est
		resp.Rows = append(resp.Rows, dayRowView{
			Row:        row,
			Progress:   s.states.RowViewState(rt.ID, row, i, row.Sets),
			EstMinutes: est,
			VideoURL:   s.videoFor(row.Exercise),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// videoFor returns the stored override for an exercise, else the library URL.
func (s *Server) videoFor(exercise string) string {
	if url := s.states.VideoOverride(exercise); url != "" {
		return url
	}
	if ex, ok := s.catalog.GetBySlug(routine.Slug(exercise)); ok {
		return ex.VideoURL
	}
	return ""
}

type replaceDayRequest struct {
	Week  int            `json:"week"`
	Day   int            `json:"day"`
	Focus string         `json:"focus"`
	Rows  []state.DayRow `json:"rows"`
}

func (s *Server) handleReplaceDay(w http.ResponseWriter, r *http.Request) {
	var req replaceDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	rt := s.currentRoutine(r)
	if rt == nil {
		writeError(w, http.StatusNotFound, "no routine selected")
		return
	}
	id := s.states.ReplaceDay(rt, req.Week, req.Day, req.Focus, req.Rows)
	writeJSON(w, http.StatusOK, map[string]string{"routine": id})
}

func (s *Server) handleClearDay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Week int `json:"week"`
		Day  int `json:"day"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	rt := s.currentRoutine(r)
	if rt == nil {
		writeError(w, http.StatusNotFound, "no routine selected")
		return
	}
	s.states.ClearDay(rt.ID, req.Week, req.Day, rt.RowsFor(req.Week, req.Day))
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleSetDate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Week int    `json:"week"`
		Day  int    `json:"day"`
		Date string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	rt := s.currentRoutine(r)
	if rt == nil {
		writeError(w, http.StatusNotFound, "no routine selected")
		return
	}
	s.states.SetDate(rt.ID, req.Week, req.Day, req.Date)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type progressRequest struct {
	Row      routine.Row     `json:"row"`
	Ord      int             `json:"ord"`
	SetIndex int             `json:"setIndex"`
	Update   state.SetUpdate `json:"update"`
}

func (s *Server) handleUpdateSet(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	rt := s.currentRoutine(r)
	if rt == nil {
		writeError(w, http.StatusNotFound, "no routine selected")
		return
	}
	if err := s.states.UpdateSet(rt.ID, req.Row, req.Ord, req.SetIndex, req.Update); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleToggleCompletion(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	rt := s.currentRoutine(r)
	if rt == nil {
		writeError(w, http.StatusNotFound, "no routine selected")
		return
	}
	completed := s.states.ToggleCompletion(rt.ID, req.Row, req.Ord)
	writeJSON(w, http.StatusOK, map[string]bool{"completed": completed})
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	s.states.ClearAll()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.states.View())
}

func (s *Server) handleUpdateView(w http.ResponseWriter, r *http.Request) {
	var upd state.ViewUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.states.UpdateView(upd))
}

func (s *Server) handleGetTitle(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"title": s.states.Title()})
}

func (s *Server) handleSetTitle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	s.states.SetTitle(req.Title)
	writeJSON(w, http.StatusOK, map[string]string{"title": s.states.Title()})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"current":  s.states.Profile(),
		"profiles": s.states.Profiles(),
	})
}

func (s *Server) handleSetProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Profile string `json:"profile"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := s.states.SetProfile(r.Context(), req.Profile); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"current": s.states.Profile()})
}

func (s *Server) handleExercises(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Get("search") != "":
		writeJSON(w, http.StatusOK, s.catalog.Search(q.Get("search")))
	case q.Get("muscle") != "":
		writeJSON(w, http.StatusOK, s.catalog.ByMuscle(q.Get("muscle")))
	case q.Get("equipment") != "":
		writeJSON(w, http.StatusOK, s.catalog.ByEquipment(q.Get("equipment")))
	case q.Get("type") != "":
		writeJSON(w, http.StatusOK, s.catalog.ByType(q.Get("type")))
	default:
		writeJSON(w, http.StatusOK, s.catalog.All())
	}
}

func (s *Server) handleGetExercise(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ex, ok := s.catalog.Get(id)
	if !ok {
		if ex, ok = s.catalog.GetBySlug(id); !ok {
			writeError(w, http.StatusNotFound, "exercise not found")
			return
		}
	}
	if url := s.states.VideoOverride(ex.Name); url != "" {
		ex.VideoURL = url
	}
	writeJSON(w, http.StatusOK, ex)
}

func (s *Server) handleSetVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ex, ok := s.catalog.Get(id)
	name := id
	if ok {
		name = ex.Name
	}
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	s.states.SetVideoOverride(name, req.URL)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Disposition", `attachment; filename="workout-data.json"`)
	writeJSON(w, http.StatusOK, s.states.Export())
}
