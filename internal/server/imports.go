package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"listbind/internal/etl"
)

// ImportJobView is an import job with its running flag.
type ImportJobView struct {
	etl.Job
	Running bool `json:"running"`
}

func (s *Server) listImports(w http.ResponseWriter, r *http.Request) {
	jobs := s.imports.Jobs()
	out := make([]ImportJobView, len(jobs))
	for i, j := range jobs {
		out[i] = ImportJobView{Job: j, Running: s.imports.Running(j.Name)}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listImportSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.imports.ListSources())
}

// runImport runs a job synchronously. A failed run still answers with its
// result so the caller sees rows read and the error text.
func (s *Server) runImport(w http.ResponseWriter, r *http.Request) {
	res, err := s.imports.RunJob(r.Context(), chi.URLParam(r, "name"))
	if res == nil {
		errorToHTTP(w, err)
		return
	}
	status := http.StatusOK
	if err != nil {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, res)
}

func (s *Server) previewImport(w http.ResponseWriter, r *http.Request) {
	rows, _ := strconv.Atoi(r.URL.Query().Get("rows"))
	preview, err := s.imports.Preview(r.Context(), chi.URLParam(r, "name"), rows)
	if err != nil {
		errorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (s *Server) listImportRuns(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := s.imports.Job(name); err != nil {
		errorToHTTP(w, err)
		return
	}
	runs, err := s.imports.ListRunLogs(r.Context(), name)
	if err != nil {
		errorToHTTP(w, err)
		return
	}
	if runs == nil {
		runs = []etl.RunLog{}
	}
	writeJSON(w, http.StatusOK, runs)
}
