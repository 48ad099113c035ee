package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"listbind/internal/domain"
	"listbind/internal/form"
	"listbind/internal/metrics"
)

// ─────────────────────────────────────────────────────────────
// Form Service — hosted form sessions
// ─────────────────────────────────────────────────────────────

// Event emitted when a session is opened or closed.
const (
	EventSessionOpened = "session:opened"
	EventSessionClosed = "session:closed"
)

// Session is one live instance of a form definition.
type Session struct {
	ID       string    `json:"id"`
	FormID   string    `json:"formId"`
	OpenedAt time.Time `json:"openedAt"`

	root *form.Control
	form *form.Control
	// mu serializes selection handling within the session.
	mu sync.Mutex
}

// Root returns the top of the session's control tree.
func (s *Session) Root() *form.Control { return s.root }

// Form returns the form container the synchronizer walks.
func (s *Session) Form() *form.Control { return s.form }

// State captures the session's control tree. It waits for an in-flight
// selection to finish.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state()
}

func (s *Session) state() SessionState {
	return SessionState{Session: s, Controls: form.Snapshot(s.root)}
}

// SessionState is the serialisable state of a session.
type SessionState struct {
	*Session
	Controls form.ControlState `json:"controls"`
}

// SelectResult is the outcome of a selection in a session.
type SelectResult struct {
	Sync  *Result      `json:"sync,omitempty"`
	State SessionState `json:"state"`
}

// FormService opens form definitions as sessions and routes selection
// changes to the SelectionService.
type FormService struct {
	registry  *form.Registry
	lists     *ListService
	selection *SelectionService
	emitter   EventEmitter
	metrics   *metrics.Metrics

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewFormService creates a FormService.
func NewFormService(
	registry *form.Registry,
	lists *ListService,
	selection *SelectionService,
	emitter EventEmitter,
	m *metrics.Metrics,
) *FormService {
	return &FormService{
		registry:  registry,
		lists:     lists,
		selection: selection,
		emitter:   emitter,
		metrics:   m,
		sessions:  make(map[string]*Session),
	}
}

// Forms returns the ids of the registered form definitions.
func (s *FormService) Forms() []string {
	return s.registry.IDs()
}

// Open instantiates a form definition as a new session. Drop-downs that name
// their list are bound to it up front.
func (s *FormService) Open(ctx context.Context, formID string) (*Session, error) {
	def, ok := s.registry.Get(formID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFormNotFound, formID)
	}

	root := def.Instantiate()
	sess := &Session{
		ID:       uuid.New().String(),
		FormID:   def.ID,
		OpenedAt: time.Now(),
		root:     root,
		form:     root.Find(def.ID),
	}
	s.bindDeclaredLists(ctx, sess)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.metrics.SessionOpened()
	s.emit(WithSession(ctx, sess.ID), EventSessionOpened, map[string]string{"session": sess.ID, "form": def.ID})
	return sess, nil
}

func (s *FormService) bindDeclaredLists(ctx context.Context, sess *Session) {
	for _, ol := range form.OptionLists(sess.root) {
		c, ok := ol.(*form.Control)
		if !ok || c.List == "" {
			continue
		}
		opts, err := s.lists.Options(ctx, c.List)
		if err != nil {
			log.Printf("[FORMS] session %s: bind %s to %q: %v", sess.ID, c.ClientID(), c.List, err)
			continue
		}
		c.ReplaceOptions(append([]domain.Option{domain.BlankOption()}, opts...))
	}
}

// Get returns an open session.
func (s *FormService) Get(sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return sess, nil
}

// Sessions returns the open sessions ordered by opening time.
func (s *FormService) Sessions() []*Session {
	s.mu.RLock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out
}

// Select fires a selection change on a drop-down of a session.
func (s *FormService) Select(ctx context.Context, sessionID, controlID, value string) (*SelectResult, error) {
	sess, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}
	c := sess.root.Find(controlID)
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrControlNotFound, controlID)
	}
	if c.Kind() != form.KindDropDown {
		return nil, fmt.Errorf("%w: %s", ErrNotDropDown, controlID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	res, err := s.selection.OnSelectionChanged(WithSession(ctx, sess.ID), sess.form, c, value)
	if err != nil {
		return nil, err
	}
	return &SelectResult{Sync: res, State: sess.state()}, nil
}

// Close discards a session.
func (s *FormService) Close(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	s.metrics.SessionClosed()
	s.emit(WithSession(ctx, sessionID), EventSessionClosed, map[string]string{"session": sessionID})
	return nil
}

func (s *FormService) emit(ctx context.Context, event string, data any) {
	if s.emitter != nil {
		s.emitter.Emit(ctx, event, data)
	}
}
