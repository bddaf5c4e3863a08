package state

import (
	"fmt"
	"strings"

	"github.com/meltforce/repcal/internal/routine"
)

// ReadRowState returns the row's progress record, trying the canonical key
// then the legacy ordinal and name keys. Read-only: a legacy hit is returned
// as-is without migration. nil when the row has never been touched.
func (m *Manager) ReadRowState(routineID string, r routine.Row, fallbackOrd int) *Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cand := range routine.KeyCandidates(routineID, r, fallbackOrd) {
		if rec, ok := m.progress.Records[cand.Key]; ok {
			return rec.Clone()
		}
	}
	return nil
}

// RowViewState returns a display-ready record padded to the given set count,
// zero-valued when nothing is stored. Never mutates.
func (m *Manager) RowViewState(routineID string, r routine.Row, fallbackOrd, sets int) *Record {
	rec := m.ReadRowState(routineID, r, fallbackOrd)
	if rec == nil {
		return NewRecord(sets)
	}
	rec.Resize(sets)
	return rec
}

// ensureRowStateLocked finds or creates the record under the canonical key.
// A record found under a legacy key is moved, not copied; a fresh record is
// zero-valued. The per-set arrays are resized to the row's current set count
// on every call.
func (m *Manager) ensureRowStateLocked(routineID string, r routine.Row, fallbackOrd int) *Record {
	canonical := routine.RowKey(routineID, r, fallbackOrd)
	rec, ok := m.progress.Records[canonical]
	if !ok {
		for _, cand := range routine.KeyCandidates(routineID, r, fallbackOrd) {
			if cand.Key == canonical {
				continue
			}
			if legacy, found := m.progress.Records[cand.Key]; found {
				rec = legacy
				delete(m.progress.Records, cand.Key)
				break
			}
		}
		if rec == nil {
			rec = NewRecord(r.Sets)
		}
		m.progress.Records[canonical] = rec
	}
	rec.Resize(r.Sets)
	m.markDirtyLocked(BucketStore)
	return rec
}

// SetUpdate carries the fields of one set to overwrite.
type SetUpdate struct {
	Wts  *string `json:"wts,omitempty"`
	Reps *string `json:"reps,omitempty"`
	Diff *string `json:"diff,omitempty"`
}

// UpdateSet writes weight/reps/difficulty for one set of a row.
func (m *Manager) UpdateSet(routineID string, r routine.Row, fallbackOrd, setIndex int, upd SetUpdate) error {
	m.mu.Lock()
	rec := m.ensureRowStateLocked(routineID, r, fallbackOrd)
	if setIndex < 0 || setIndex >= len(rec.Reps) {
		m.mu.Unlock()
		return fmt.Errorf("set index %d out of range for %d sets", setIndex, len(rec.Reps))
	}
	if upd.Wts != nil {
		rec.Wts[setIndex] = *upd.Wts
	}
	if upd.Reps != nil {
		rec.Reps[setIndex] = *upd.Reps
	}
	if upd.Diff != nil {
		rec.Diff[setIndex] = *upd.Diff
	}
	m.mu.Unlock()
	m.notify(BucketStore)
	return nil
}

// ToggleCompletion flips a row's completed flag and returns the new value.
func (m *Manager) ToggleCompletion(routineID string, r routine.Row, fallbackOrd int) bool {
	m.mu.Lock()
	rec := m.ensureRowStateLocked(routineID, r, fallbackOrd)
	rec.Completed = !rec.Completed
	completed := rec.Completed
	m.mu.Unlock()
	m.notify(BucketStore)
	return completed
}

// ViewUpdate carries cursor fields to change; nil fields keep their value.
type ViewUpdate struct {
	Routine *string `json:"routine,omitempty"`
	Week    *int    `json:"week,omitempty"`
	Day     *int    `json:"day,omitempty"`
}

// UpdateView moves the cursor.
func (m *Manager) UpdateView(upd ViewUpdate) View {
	m.mu.Lock()
	if upd.Routine != nil {
		m.view.Routine = *upd.Routine
	}
	if upd.Week != nil {
		m.view.Week = *upd.Week
	}
	if upd.Day != nil {
		m.view.Day = *upd.Day
	}
	m.view.normalize()
	v := m.view
	m.markDirtyLocked(BucketView)
	m.mu.Unlock()
	m.notify(BucketView)
	return v
}

// AddRoutine stores a routine in the user's collection, assigning row ids to
// any rows lacking them. A routine without an id gets a fresh user-owned one.
func (m *Manager) AddRoutine(rt *routine.Routine) string {
	if rt.ID == "" {
		rt.ID = routine.NewUserRoutineID()
	}
	routine.EnsureRowIDs(rt)
	m.mu.Lock()
	m.routines[rt.ID] = rt
	if m.view.Routine == "" {
		m.view.Routine = rt.ID
		m.view.normalize()
		m.markDirtyLocked(BucketView)
	}
	m.markDirtyLocked(BucketRoutines)
	m.mu.Unlock()
	m.notify(BucketRoutines)
	return rt.ID
}

// RemoveRoutine deletes a user routine along with its progress records and
// date stamps. The view cursor is redirected to a remaining routine, never
// left dangling.
func (m *Manager) RemoveRoutine(id string) {
	prefix := routine.KeyPrefix(id) + "_"
	m.mu.Lock()
	delete(m.routines, id)
	for k := range m.progress.Records {
		if strings.HasPrefix(k, prefix) {
			delete(m.progress.Records, k)
		}
	}
	for k := range m.progress.Dates {
		if strings.HasPrefix(k, prefix) {
			delete(m.progress.Dates, k)
		}
	}
	if m.view.Routine == id {
		m.view.Routine = ""
		for rid := range m.routines {
			m.view.Routine = rid
			break
		}
		m.markDirtyLocked(BucketView)
	}
	m.markDirtyLocked(BucketStore)
	m.markDirtyLocked(BucketRoutines)
	m.mu.Unlock()
	m.notify(BucketStore)
	m.notify(BucketRoutines)
	m.notify(BucketView)
}

// DayRow is one edited row in a day-editor save.
type DayRow struct {
	Exercise string  `json:"exercise"`
	Target   string  `json:"target"`
	Sets     int     `json:"sets"`
	Est      float64 `json:"est,omitempty"`
	Notes    string  `json:"notes,omitempty"`
	RowID    string  `json:"rowId,omitempty"`
}

// ReplaceDay replaces all rows for (week, day), reassigning ordinals 0..n-1
// and keeping existing row ids. Editing a library routine forks it into a
// user-owned copy first; the returned id is the routine actually edited.
func (m *Manager) ReplaceDay(rt *routine.Routine, week, day int, focus string, dayRows []DayRow) string {
	m.mu.Lock()
	target := rt
	targetID := rt.ID
	if _, owned := m.routines[rt.ID]; !owned {
		targetID = routine.NewUserRoutineID()
		fork := &routine.Routine{ID: targetID, Name: rt.Name + " (Edited)", Rows: append([]routine.Row(nil), rt.Rows...)}
		m.routines[targetID] = fork
		target = fork
	}

	kept := target.Rows[:0]
	for _, r := range target.Rows {
		if !(r.Week == week && r.Day == day) {
			kept = append(kept, r)
		}
	}
	target.Rows = kept
	for i, dr := range dayRows {
		ord := i
		target.Rows = append(target.Rows, routine.RefineRow(routine.Row{
			Week:     week,
			Day:      day,
			Focus:    focus,
			Exercise: dr.Exercise,
			Target:   dr.Target,
			Sets:     dr.Sets,
			Est:      dr.Est,
			Notes:    dr.Notes,
			Ord:      &ord,
			RowID:    dr.RowID,
		}))
	}
	routine.EnsureRowIDs(target)

	if targetID != rt.ID {
		m.view.Routine = targetID
		m.markDirtyLocked(BucketView)
	}
	m.markDirtyLocked(BucketRoutines)
	m.mu.Unlock()
	m.notify(BucketRoutines)
	if targetID != rt.ID {
		m.notify(BucketView)
	}
	return targetID
}

// ClearDay removes progress under all three key forms for each of the day's
// rows, plus the day's date stamp.
func (m *Manager) ClearDay(routineID string, week, day int, rows []routine.Row) {
	m.mu.Lock()
	for i, r := range rows {
		for _, cand := range routine.KeyCandidates(routineID, r, i) {
			delete(m.progress.Records, cand.Key)
		}
	}
	delete(m.progress.Dates, routine.DateKey(routineID, week, day))
	m.markDirtyLocked(BucketStore)
	m.mu.Unlock()
	m.notify(BucketStore)
}

// ClearAll resets the whole progress store, settings included.
func (m *Manager) ClearAll() {
	m.mu.Lock()
	m.progress = NewProgressStore()
	m.markDirtyLocked(BucketStore)
	m.mu.Unlock()
	m.notify(BucketStore)
}

// Title returns the custom title, or the default when unset.
func (m *Manager) Title() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t := strings.TrimSpace(m.progress.Title); t != "" {
		return t
	}
	return AppTitleDefault
}

// SetTitle stores a custom app title.
func (m *Manager) SetTitle(title string) {
	m.mu.Lock()
	m.progress.Title = strings.TrimSpace(title)
	m.markDirtyLocked(BucketStore)
	m.mu.Unlock()
	m.notify(BucketStore)
}

// VideoOverride returns the stored video URL for an exercise, keyed by slug.
func (m *Manager) VideoOverride(exercise string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.progress.Videos[routine.Slug(exercise)]
}

// SetVideoOverride stores a per-exercise video URL override.
func (m *Manager) SetVideoOverride(exercise, url string) {
	m.mu.Lock()
	m.progress.Videos[routine.Slug(exercise)] = strings.TrimSpace(url)
	m.markDirtyLocked(BucketStore)
	m.mu.Unlock()
	m.notify(BucketStore)
}

// DateFor returns the stored date stamp (YYYY-MM-DD) for a routine day.
func (m *Manager) DateFor(routineID string, week, day int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.progress.Dates[routine.DateKey(routineID, week, day)]
}

// SetDate stores a date stamp for a routine day; empty clears it.
func (m *Manager) SetDate(routineID string, week, day int, ymd string) {
	m.mu.Lock()
	key := routine.DateKey(routineID, week, day)
	if ymd == "" {
		delete(m.progress.Dates, key)
	} else {
		m.progress.Dates[key] = ymd
	}
	m.markDirtyLocked(BucketStore)
	m.mu.Unlock()
	m.notify(BucketStore)
}
