// Package session is the chat surface over claim sessions: a TTL registry
// of live sessions and an archive of finished ones.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/ShayCichocki/claimflow/internal/orchestrator"
	"github.com/ShayCichocki/claimflow/internal/tools"
	"github.com/ShayCichocki/claimflow/pkg/models"
)

// Default registry timings.
const (
	DefaultTTL             = time.Hour
	DefaultCleanupInterval = 10 * time.Minute
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("session not found")

// Archiver stores session records.
type Archiver interface {
	Save(ctx context.Context, r *Record) error
}

// Response is the result of one chat message.
type Response struct {
	SessionID string
	Message   string
	Phase     models.Phase
	Missing   []string
	Report    *tools.Report
}

// Status describes a live session.
type Status struct {
	SessionID string
	Phase     models.Phase
	Turns     int
	Missing   []string
	ClaimID   string
	Verdict   models.Verdict
}

type entry struct {
	session  *orchestrator.Session
	archived atomic.Bool
}

// Manager holds live sessions. Idle sessions expire after the TTL and are
// archived as they leave the registry if they were not archived already.
type Manager struct {
	orch    *orchestrator.Orchestrator
	cache   *cache.Cache
	archive Archiver
	now     func() time.Time
}

// NewManager creates a Manager. archive may be nil.
func NewManager(orch *orchestrator.Orchestrator, archive Archiver, ttl, cleanupInterval time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	m := &Manager{
		orch:    orch,
		cache:   cache.New(ttl, cleanupInterval),
		archive: archive,
		now:     time.Now,
	}
	m.cache.OnEvicted(func(id string, v interface{}) {
		e, ok := v.(*entry)
		if !ok {
			return
		}
		slog.Debug("session left registry", "session", id, "phase", e.session.State())
		m.archiveEntry(context.Background(), e)
	})
	return m
}

// Open returns the session with id, creating it if needed, together with
// its opening message. An empty id creates a new session.
func (m *Manager) Open(id string) (string, string) {
	e := m.lookupOrCreate(id)
	return e.session.ID(), e.session.Start()
}

// Chat sends text to the session with id, creating the session if it does
// not exist. An empty text returns the opening message.
func (m *Manager) Chat(ctx context.Context, id, text string) (Response, error) {
	e := m.lookupOrCreate(id)
	s := e.session
	greeting := s.Start()
	if text == "" {
		return Response{SessionID: s.ID(), Message: greeting, Phase: s.State()}, nil
	}

	reply, err := s.HandleMessage(ctx, text)
	if err != nil {
		return Response{SessionID: s.ID(), Phase: s.State()}, fmt.Errorf("chat %s: %w", s.ID(), err)
	}
	m.cache.Set(s.ID(), e, cache.DefaultExpiration)

	if reply.Phase == models.PhaseFinalized {
		m.archiveEntry(ctx, e)
	}
	return Response{
		SessionID: s.ID(),
		Message:   reply.Message,
		Phase:     reply.Phase,
		Missing:   reply.Missing,
		Report:    reply.Report,
	}, nil
}

// Status reports on a live session.
func (m *Manager) Status(id string) (Status, error) {
	e, ok := m.get(id)
	if !ok {
		return Status{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s := e.session
	conv := s.Conversation()
	st := Status{
		SessionID: s.ID(),
		Phase:     s.State(),
		Turns:     conv.TurnCount,
	}
	if st.Phase == models.PhaseIntake {
		st.Missing = m.orch.MissingFields(&conv.Draft)
	}
	if c := s.Claim(); c != nil {
		st.ClaimID = c.ID()
	}
	if d := s.Decision(); d != nil {
		st.Verdict = d.Verdict
	}
	return st, nil
}

// Session returns the live session with id.
func (m *Manager) Session(id string) (*orchestrator.Session, bool) {
	e, ok := m.get(id)
	if !ok {
		return nil, false
	}
	return e.session, true
}

// Delete removes a session from the registry. It reports whether the
// session existed.
func (m *Manager) Delete(id string) bool {
	if _, ok := m.get(id); !ok {
		return false
	}
	m.cache.Delete(id)
	return true
}

// Len returns the number of live sessions, including expired ones not yet
// cleaned up.
func (m *Manager) Len() int {
	return m.cache.ItemCount()
}

func (m *Manager) get(id string) (*entry, bool) {
	v, ok := m.cache.Get(id)
	if !ok {
		return nil, false
	}
	e, ok := v.(*entry)
	return e, ok
}

func (m *Manager) lookupOrCreate(id string) *entry {
	if id != "" {
		if e, ok := m.get(id); ok {
			return e
		}
	}
	e := &entry{session: m.orch.NewSession(id)}
	if err := m.cache.Add(e.session.ID(), e, cache.DefaultExpiration); err != nil {
		// Created concurrently by another caller.
		if existing, ok := m.get(e.session.ID()); ok {
			return existing
		}
		m.cache.Set(e.session.ID(), e, cache.DefaultExpiration)
	}
	return e
}

func (m *Manager) archiveEntry(ctx context.Context, e *entry) {
	if m.archive == nil || !e.archived.CompareAndSwap(false, true) {
		return
	}
	rec, err := RecordFrom(e.session, m.now())
	if err == nil {
		err = m.archive.Save(ctx, rec)
	}
	if err != nil {
		e.archived.Store(false)
		slog.Error("failed to archive session", "session", e.session.ID(), "error", err)
	}
}
