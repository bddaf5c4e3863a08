package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/meltforce/repcal/internal/exercises"
	"github.com/meltforce/repcal/internal/routine"
	"github.com/meltforce/repcal/internal/state"
	"github.com/meltforce/repcal/internal/storage"
)

const testAPIKey = "test-key-123"

func newTestServer(t *testing.T) (*Server, *state.Manager) {
	t.Helper()
	dir := t.TempDir()
	if err := storage.RunMigrations(storage.SQLiteDSN(dir)); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	db, err := storage.OpenSQLite(dir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := slog.Default()
	states := state.NewManager(db, nil, log)
	if err := states.Load(context.Background()); err != nil {
		t.Fatalf("load state: %v", err)
	}
	catalog := exercises.New(log)
	if err := catalog.Load(""); err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	routines := routine.NewService("", catalog, states.UserRoutine, log)
	return New(states, routines, catalog, testAPIKey, log), states
}

func addTestRoutine(t *testing.T, states *state.Manager) *routine.Routine {
	t.Helper()
	rt := &routine.Routine{ID: "user_p1", Name: "Program", Rows: []routine.Row{
		{Week: 1, Day: 1, Focus: "Push", Exercise: "Bench Press", Target: "8 to 12", Sets: 3},
		{Week: 1, Day: 1, Focus: "Push", Exercise: "Dips", Target: "10 to 15", Sets: 3},
	}}
	states.AddRoutine(rt)
	return rt
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

// TestHandleMeDefault verifies /api/v1/me reports the dev identity when no
// tailnet client is configured.
func TestHandleMeDefault(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/v1/me", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var info UserInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Login != "local" || info.DisplayName != "Local Dev User" {
		t.Errorf("identity = %+v", info)
	}
}

// TestHandleGetDay verifies the day plan joins rows with progress, estimates,
// and a total.
func TestHandleGetDay(t *testing.T) {
	s, states := newTestServer(t)
	addTestRoutine(t, states)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/day?routine=user_p1&week=1&day=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp dayResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Routine != "user_p1" || resp.Week != 1 || resp.Day != 1 || resp.Focus != "Push" {
		t.Errorf("header = %+v", resp)
	}
	if len(resp.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(resp.Rows))
	}
	if resp.Rows[0].Progress == nil || len(resp.Rows[0].Progress.Reps) != 3 {
		t.Errorf("progress = %+v", resp.Rows[0].Progress)
	}
	if resp.Rows[0].EstMinutes <= 0 || resp.TotalMinutes <= resp.Rows[0].EstMinutes {
		t.Errorf("estimates = %v total %v", resp.Rows[0].EstMinutes, resp.TotalMinutes)
	}
}

// TestHandleGetDayNoRoutine verifies a 404 when nothing is selected.
func TestHandleGetDayNoRoutine(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/v1/day", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

// TestProgressEndpoints verifies logging a set and toggling completion through
// the API.
func TestProgressEndpoints(t *testing.T) {
	s, states := newTestServer(t)
	rt := addTestRoutine(t, states)
	row := states.UserRoutine(rt.ID).Rows[0]

	reps := "12"
	rec := doJSON(t, s, http.MethodPost, "/api/v1/progress/set", progressRequest{
		Row: row, Ord: 0, SetIndex: 0, Update: state.SetUpdate{Reps: &reps},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("set status = %d: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/v1/progress/toggle", progressRequest{Row: row, Ord: 0})
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d: %s", rec.Code, rec.Body)
	}
	var toggled map[string]bool
	json.NewDecoder(rec.Body).Decode(&toggled)
	if !toggled["completed"] {
		t.Error("toggle did not complete")
	}

	if got := states.ReadRowState(rt.ID, row, 0); got == nil || got.Reps[0] != "12" || !got.Completed {
		t.Errorf("stored record = %+v", got)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/v1/progress/set", progressRequest{
		Row: row, Ord: 0, SetIndex: 9, Update: state.SetUpdate{Reps: &reps},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("out-of-range status = %d, want 400", rec.Code)
	}
}

// TestViewEndpoints verifies reading and moving the cursor.
func TestViewEndpoints(t *testing.T) {
	s, _ := newTestServer(t)
	w, d := 3, 2
	rec := doJSON(t, s, http.MethodPut, "/api/v1/view", state.ViewUpdate{Week: &w, Day: &d})
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/v1/view", nil)
	var v state.View
	json.NewDecoder(rec.Body).Decode(&v)
	if v.Week != 3 || v.Day != 2 {
		t.Errorf("view = %+v", v)
	}
}

// TestImportRequiresAPIKey verifies the import endpoints reject missing and
// wrong keys.
func TestImportRequiresAPIKey(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import/", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing key status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/import/", strings.NewReader("{}"))
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("wrong key status = %d, want 403", rec.Code)
	}
}

// TestImportSnapshotSchemaConflict verifies the 409/force contract.
func TestImportSnapshotSchemaConflict(t *testing.T) {
	s, states := newTestServer(t)
	body := `{"schema":"wt.v9","title":"Imported"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import/", strings.NewReader(body))
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rec.Code, rec.Body)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/import/?force=1", strings.NewReader(body))
	req.Header.Set("X-API-Key", testAPIKey)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("forced status = %d: %s", rec.Code, rec.Body)
	}
	if states.Title() != "Imported" {
		t.Errorf("title = %q", states.Title())
	}
}

// TestImportRoutineCSV verifies a multipart CSV upload becomes a user routine.
func TestImportRoutineCSV(t *testing.T) {
	s, states := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "push-pull.csv")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("Week,Day,Focus,Exercise,Target Reps,Sets Planned\n1,1,Push,Bench Press,8 to 12,3\n"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import/routine", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	var resp map[string]string
	json.NewDecoder(rec.Body).Decode(&resp)
	rt := states.UserRoutine(resp["routine"])
	if rt == nil {
		t.Fatal("routine not stored")
	}
	if rt.Name != "push-pull" {
		t.Errorf("name = %q, want push-pull (from filename)", rt.Name)
	}
	if len(rt.Rows) != 1 || rt.Rows[0].RowID == "" {
		t.Errorf("rows = %+v", rt.Rows)
	}
}

// TestDeleteRoutine verifies removal of user routines and 404 for unknown ids.
func TestDeleteRoutine(t *testing.T) {
	s, states := newTestServer(t)
	addTestRoutine(t, states)

	rec := doJSON(t, s, http.MethodDelete, "/api/v1/routines/user_p1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if states.UserRoutine("user_p1") != nil {
		t.Error("routine still present")
	}

	rec = doJSON(t, s, http.MethodDelete, "/api/v1/routines/user_p1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

// TestExportEndpoint verifies the export file carries the schema tag and an
// attachment header.
func TestExportEndpoint(t *testing.T) {
	s, states := newTestServer(t)
	addTestRoutine(t, states)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("content-disposition = %q", cd)
	}
	var snap state.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Schema != state.ExportSchema {
		t.Errorf("schema = %q", snap.Schema)
	}
	if len(snap.UserRoutines) != 1 {
		t.Errorf("routines = %+v", snap.UserRoutines)
	}
}

// TestTitleEndpoints verifies the default title and custom overrides.
func TestTitleEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/title", nil)
	var resp map[string]string
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["title"] != state.AppTitleDefault {
		t.Errorf("title = %q, want default", resp["title"])
	}

	rec = doJSON(t, s, http.MethodPut, "/api/v1/title", map[string]string{"title": "Garage Gym"})
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d", rec.Code)
	}
	rec = doJSON(t, s, http.MethodGet, "/api/v1/title", nil)
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["title"] != "Garage Gym" {
		t.Errorf("title = %q", resp["title"])
	}
}

// TestExerciseEndpoints verifies library lookup by id and slug.
func TestExerciseEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/exercises", nil)
	var all []exercises.Exercise
	if err := json.NewDecoder(rec.Body).Decode(&all); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(all) == 0 {
		t.Fatal("empty library")
	}

	rec = doJSON(t, s, http.MethodGet, "/api/v1/exercises/"+all[0].ID, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("by id status = %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/v1/exercises/definitely-not-present", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown status = %d, want 404", rec.Code)
	}
}

// TestSPAFallback verifies unknown paths serve index.html while real assets
// serve as-is.
func TestSPAFallback(t *testing.T) {
	s, _ := newTestServer(t)
	s.SetFrontend(fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte("<html>app</html>")},
		"app.js":     &fstest.MapFile{Data: []byte("console.log(1)")},
	})

	rec := doJSON(t, s, http.MethodGet, "/app.js", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "console.log") {
		t.Errorf("asset: status = %d body = %q", rec.Code, rec.Body)
	}

	rec = doJSON(t, s, http.MethodGet, "/some/client/route", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "app") {
		t.Errorf("fallback: status = %d body = %q", rec.Code, rec.Body)
	}
}
