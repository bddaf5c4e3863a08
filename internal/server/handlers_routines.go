package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/meltforce/repcal/internal/routine"
	"github.com/meltforce/repcal/internal/state"
)

const maxImportBytes = 16 << 20

func (s *Server) handleRoutineOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.states.RoutineOptions())
}

func (s *Server) handleGetRoutine(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rt := s.routines.RoutineByID(id)
	if rt == nil {
		var err error
		rt, err = s.routines.EnsureLoaded(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, rt)
}

func (s *Server) handleDeleteRoutine(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.states.UserRoutine(id) == nil {
		writeError(w, http.StatusNotFound, "routine not found")
		return
	}
	s.states.RemoveRoutine(id)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "1" {
		if err := s.routines.LoadManifest(r.Context()); err != nil {
			s.log.Warn("manifest refresh failed", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, s.routines.ManifestEntries())
}

// handleImportFromManifest resolves a catalog routine and adds a copy to the
// user's collection under its catalog id.
func (s *Server) handleImportFromManifest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rt, err := s.routines.EnsureLoaded(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	copied := &routine.Routine{
		ID:   rt.ID,
		Name: rt.Name,
		Rows: append([]routine.Row(nil), rt.Rows...),
	}
	added := s.states.AddRoutine(copied)
	writeJSON(w, http.StatusOK, map[string]string{"routine": added})
}

// handleImportSnapshot restores an exported data file. A schema mismatch is
// reported as a conflict; the client may retry with ?force=1.
func (s *Server) handleImportSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading body: "+err.Error())
		return
	}
	force := r.URL.Query().Get("force") == "1"
	if err := s.states.Import(data, force); err != nil {
		var mismatch *state.SchemaMismatchError
		if errors.As(err, &mismatch) {
			writeJSON(w, http.StatusConflict, map[string]string{
				"error":  mismatch.Error(),
				"schema": mismatch.File,
			})
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleImportRoutineFile accepts a routine upload as multipart form data and
// dispatches on the file extension: .json routine definitions, .csv sheets,
// and .xlsx workbooks.
func (s *Server) handleImportRoutineFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		writeError(w, http.StatusBadRequest, "parsing form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	name := r.FormValue("name")
	if name == "" {
		name = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}

	var rt *routine.Routine
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".json":
		data, err := io.ReadAll(io.LimitReader(file, maxImportBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "reading file: "+err.Error())
			return
		}
		var def routine.Definition
		if err := json.Unmarshal(data, &def); err != nil {
			writeError(w, http.StatusBadRequest, "invalid definition: "+err.Error())
			return
		}
		rt, err = s.routines.ResolveDefinition(r.Context(), &def)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if rt.Name == "" {
			rt.Name = name
		}
	case ".csv":
		data, err := io.ReadAll(io.LimitReader(file, maxImportBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "reading file: "+err.Error())
			return
		}
		rows := routine.ParseCSV(string(data))
		if len(rows) == 0 {
			writeError(w, http.StatusBadRequest, "no rows found in CSV")
			return
		}
		rt = &routine.Routine{Name: name, Rows: rows}
	case ".xlsx":
		rows, err := routine.ParseXLSX(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "parsing workbook: "+err.Error())
			return
		}
		if len(rows) == 0 {
			writeError(w, http.StatusBadRequest, "no rows found in workbook")
			return
		}
		rt = &routine.Routine{Name: name, Rows: rows}
	default:
		writeError(w, http.StatusBadRequest, "unsupported file type: "+filepath.Ext(header.Filename))
		return
	}

	id := s.states.AddRoutine(rt)
	writeJSON(w, http.StatusCreated, map[string]string{"routine": id})
}
