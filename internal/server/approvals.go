package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"listbind/internal/domain"
)

// EventApprovalResolved is broadcast when a pending approval is decided.
const EventApprovalResolved = "approval:resolved"

func (s *Server) listApprovals(w http.ResponseWriter, r *http.Request) {
	pending, err := s.approvals.ListPendingApprovals(r.Context())
	if err != nil {
		errorToHTTP(w, err)
		return
	}
	if pending == nil {
		pending = []domain.Approval{}
	}
	writeJSON(w, http.StatusOK, pending)
}

// resolveApproval records a decision for an agent action. The MCP process
// waiting on it picks the decision up from the shared database.
func (s *Server) resolveApproval(status domain.ApprovalStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := s.approvals.ResolveApproval(r.Context(), id, status); err != nil {
			errorToHTTP(w, err)
			return
		}
		s.hub.Emit(r.Context(), EventApprovalResolved, map[string]string{"id": id, "status": string(status)})
		writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(status)})
	}
}
