package state

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/meltforce/repcal/internal/routine"
)

// TestExportImportRoundTrip verifies a snapshot produced by one install loads
// cleanly into another.
func TestExportImportRoundTrip(t *testing.T) {
	m := newTestManager(t, newMemStore())
	rt := testRoutine()
	m.AddRoutine(rt)
	m.ToggleCompletion(rt.ID, rt.Rows[0], 0)
	m.SetTitle("Garage Gym")
	m.SetDate(rt.ID, 1, 1, "2026-09-01")

	snap := m.Export()
	if snap.Schema != ExportSchema {
		t.Errorf("schema = %q, want %q", snap.Schema, ExportSchema)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	m2 := newTestManager(t, newMemStore())
	if err := m2.Import(data, false); err != nil {
		t.Fatalf("import: %v", err)
	}
	got := m2.UserRoutine(rt.ID)
	if got == nil || len(got.Rows) != 3 {
		t.Fatalf("routine = %+v", got)
	}
	if got.Rows[0].RowID != rt.Rows[0].RowID {
		t.Errorf("row id changed: %q vs %q", got.Rows[0].RowID, rt.Rows[0].RowID)
	}
	if rec := m2.ReadRowState(rt.ID, rt.Rows[0], 0); rec == nil || !rec.Completed {
		t.Errorf("progress lost: %+v", rec)
	}
	if m2.Title() != "Garage Gym" {
		t.Errorf("title = %q", m2.Title())
	}
	if m2.DateFor(rt.ID, 1, 1) != "2026-09-01" {
		t.Error("date stamp lost")
	}
}

// TestImportSchemaMismatch verifies a foreign schema tag is rejected with the
// typed error, state untouched, and force overrides the check.
func TestImportSchemaMismatch(t *testing.T) {
	m := newTestManager(t, newMemStore())
	m.SetTitle("Before")

	data := []byte(`{"schema":"wt.v2","title":"After","store":{}}`)
	err := m.Import(data, false)
	var mismatch *SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("error = %v, want *SchemaMismatchError", err)
	}
	if mismatch.File != "wt.v2" {
		t.Errorf("file schema = %q", mismatch.File)
	}
	if m.Title() != "Before" {
		t.Errorf("state changed on rejected import: title = %q", m.Title())
	}

	if err := m.Import(data, true); err != nil {
		t.Fatalf("forced import: %v", err)
	}
	if m.Title() != "After" {
		t.Errorf("title = %q after forced import", m.Title())
	}
}

// TestImportInvalidJSON verifies unparseable files leave state untouched.
func TestImportInvalidJSON(t *testing.T) {
	m := newTestManager(t, newMemStore())
	m.SetTitle("Before")
	if err := m.Import([]byte("{broken"), false); err == nil {
		t.Fatal("expected error")
	}
	if m.Title() != "Before" {
		t.Errorf("title = %q", m.Title())
	}
}

// TestImportCoercesLooseRows verifies rows with string-typed numbers are
// repaired, rows missing week/day/exercise are dropped, and repaired rows get
// ids.
func TestImportCoercesLooseRows(t *testing.T) {
	m := newTestManager(t, newMemStore())
	data := []byte(`{
		"schema": "wt.v1",
		"userRoutines": {
			"user_x": {"id": "user_x", "name": "Loose", "rows": [
				{"week": "1", "day": 1, "exercise": "Bench Press", "target": "8 to 12", "sets": "3"},
				{"week": 1, "day": 1, "exercise": ""},
				{"day": 1, "exercise": "No Week"},
				{"week": 2, "day": "2", "exercise": "Squat", "sets": 5, "est": "12.5"}
			]}
		}
	}`)
	if err := m.Import(data, false); err != nil {
		t.Fatalf("import: %v", err)
	}
	rt := m.UserRoutine("user_x")
	if rt == nil {
		t.Fatal("routine missing")
	}
	if len(rt.Rows) != 2 {
		t.Fatalf("got %d rows, want 2 (malformed dropped): %+v", len(rt.Rows), rt.Rows)
	}
	r := rt.Rows[0]
	if r.Week != 1 || r.Sets != 3 || r.RowID == "" {
		t.Errorf("coerced row = %+v", r)
	}
	if rt.Rows[1].Est != 12.5 {
		t.Errorf("est = %v, want 12.5", rt.Rows[1].Est)
	}
}

// TestImportRoutinesAlias verifies the legacy "routines" field is accepted in
// place of "userRoutines".
func TestImportRoutinesAlias(t *testing.T) {
	m := newTestManager(t, newMemStore())
	data := []byte(`{"schema":"wt.v1","routines":{"user_y":{"name":"Aliased","rows":[{"week":1,"day":1,"exercise":"Row","sets":3}]}}}`)
	if err := m.Import(data, false); err != nil {
		t.Fatalf("import: %v", err)
	}
	rt := m.UserRoutine("user_y")
	if rt == nil || rt.ID != "user_y" || rt.Name != "Aliased" {
		t.Fatalf("routine = %+v", rt)
	}
}

// TestImportMergesStore verifies imported records merge over existing ones
// instead of replacing the whole store.
func TestImportMergesStore(t *testing.T) {
	m := newTestManager(t, newMemStore())
	rt := testRoutine()
	m.AddRoutine(rt)
	m.ToggleCompletion(rt.ID, rt.Rows[1], 1)
	existingKey, _ := routine.CanonicalKey(rt.ID, rt.Rows[1])

	data := []byte(`{"schema":"wt.v1","store":{"rt_other_id_zzz":{"completed":true,"reps":["8"],"diff":[""],"wts":[""]}}}`)
	if err := m.Import(data, false); err != nil {
		t.Fatalf("import: %v", err)
	}
	if rec := m.progress.Records[existingKey]; rec == nil || !rec.Completed {
		t.Error("pre-existing record lost in merge")
	}
	if rec := m.progress.Records["rt_other_id_zzz"]; rec == nil || rec.Reps[0] != "8" {
		t.Errorf("imported record = %+v", rec)
	}
}

// TestImportCoercesView verifies week/day strings in the view coerce and
// normalize.
func TestImportCoercesView(t *testing.T) {
	m := newTestManager(t, newMemStore())
	data := []byte(`{"schema":"wt.v1","view":{"routine":"user_x","week":"3","day":0}}`)
	if err := m.Import(data, false); err != nil {
		t.Fatalf("import: %v", err)
	}
	v := m.View()
	if v.Routine != "user_x" || v.Week != 3 || v.Day != 1 {
		t.Errorf("view = %+v, want routine user_x week 3 day 1", v)
	}
}
