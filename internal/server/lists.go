package server

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"listbind/internal/directive"
	"listbind/internal/domain"
	"listbind/internal/form"
)

// pathParam returns a decoded URL parameter. List titles carry spaces.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// ResolvedList is the response of the resolve endpoint.
type ResolvedList struct {
	Token string        `json:"token"`
	List  *domain.List  `json:"list"`
	Items []domain.Item `json:"items"`
}

func (s *Server) listLists(w http.ResponseWriter, r *http.Request) {
	lists, err := s.lists.ListLists(r.Context())
	if err != nil {
		errorToHTTP(w, err)
		return
	}
	if lists == nil {
		lists = []domain.List{}
	}
	writeJSON(w, http.StatusOK, lists)
}

// listItems serves the items of an exactly titled list, optionally narrowed
// with ?field=&contains=.
func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	title := pathParam(r, "title")
	q := r.URL.Query()

	var (
		items []domain.Item
		err   error
	)
	if field := q.Get("field"); field != "" {
		items, err = s.lists.ResolveItemsByField(r.Context(), title, field, q.Get("contains"))
	} else {
		items, err = s.lists.Items(r.Context(), title)
	}
	if err != nil {
		errorToHTTP(w, err)
		return
	}
	if items == nil {
		items = []domain.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

// listOptions serves a list as drop-down options, restricted by ?codes= the
// same way an availability field restricts them.
func (s *Server) listOptions(w http.ResponseWriter, r *http.Request) {
	codes := directive.ParseCodes(r.URL.Query().Get("codes"))
	opts, err := s.lists.OptionsByCodes(r.Context(), pathParam(r, "title"), codes)
	if err != nil {
		errorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

// resolveList resolves ?name= (a list name or token) or ?control= (a
// control client id) to a single list.
func (s *Server) resolveList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("name")
	if control := q.Get("control"); control != "" {
		name = form.ControlToken(control)
	}
	if name == "" {
		writeError(w, http.StatusBadRequest, "MISSING_NAME", "name or control query parameter is required")
		return
	}

	l, items, err := s.lists.ResolveList(r.Context(), name)
	if err != nil {
		errorToHTTP(w, err)
		return
	}
	if items == nil {
		items = []domain.Item{}
	}
	writeJSON(w, http.StatusOK, ResolvedList{Token: directive.Normalize(name), List: l, Items: items})
}
