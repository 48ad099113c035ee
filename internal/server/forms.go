package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) listForms(w http.ResponseWriter, r *http.Request) {
	forms := s.forms.Forms()
	if forms == nil {
		forms = []string{}
	}
	writeJSON(w, http.StatusOK, forms)
}

func (s *Server) openSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.forms.Open(r.Context(), chi.URLParam(r, "formID"))
	if err != nil {
		errorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess.State())
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.forms.Sessions())
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.forms.Get(chi.URLParam(r, "id"))
	if err != nil {
		errorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := s.forms.Close(r.Context(), chi.URLParam(r, "id")); err != nil {
		errorToHTTP(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// selectValue fires a selection change on one drop-down of a session and
// returns the synchronization result with the new form state.
func (s *Server) selectValue(w http.ResponseWriter, r *http.Request) {
	var in SelectData
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body: "+err.Error())
		return
	}
	if in.Control == "" {
		writeError(w, http.StatusBadRequest, "MISSING_CONTROL", "control is required")
		return
	}

	res, err := s.forms.Select(r.Context(), chi.URLParam(r, "id"), in.Control, in.Value)
	if err != nil {
		errorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
