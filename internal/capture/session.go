package capture

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Observer receives copies of events after each committed mutation.
// Implementations must not block for long; they run on the session goroutine.
type Observer interface {
	EventCreated(Event)
	EventUpdated(Event)
}

// Metrics are derived session rates. Both fields are nil before the session
// has started or before any event exists.
type Metrics struct {
	ElapsedTime *time.Duration
	ImagingRate *float64
}

// Session owns the events of one capture run. A single goroutine mutates it;
// readers use Events, Lookup, and Metrics concurrently.
type Session struct {
	Info      SessionInfo
	StartedAt time.Time

	mu        sync.RWMutex
	events    []*Event
	byStem    map[string]*Event
	byPath    map[string]*Event
	sequence  int
	observers []Observer
}

// NewSession creates an empty session. A missing ID is generated.
func NewSession(info SessionInfo, startedAt time.Time) *Session {
	if info.ID == "" {
		info.ID = uuid.NewString()
	}
	return &Session{
		Info:      info,
		StartedAt: startedAt,
		byStem:    make(map[string]*Event),
		byPath:    make(map[string]*Event),
	}
}

// AddObserver attaches o; nil is ignored.
func (s *Session) AddObserver(o Observer) {
	if o == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

// Events returns copies of all events in sequence order.
func (s *Session) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Clone())
	}
	return out
}

// Len returns the number of events.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Lookup returns a copy of the event registered under stem.
func (s *Session) Lookup(stem string) (Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byStem[stem]
	if !ok {
		return Event{}, false
	}
	return e.Clone(), true
}

// Metrics computes elapsed time and events per minute at now.
func (s *Session) Metrics(now time.Time) Metrics {
	var m Metrics
	if s.StartedAt.IsZero() {
		return m
	}
	elapsed := now.Sub(s.StartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	m.ElapsedTime = &elapsed

	count := s.Len()
	if count == 0 || elapsed <= 0 {
		return m
	}
	rate := float64(count) / elapsed.Minutes()
	m.ImagingRate = &rate
	return m
}

func (s *Session) lookup(stem string) *Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byStem[stem]
}

// ownerOfRenamed returns the event whose committed rename produced path.
func (s *Session) ownerOfRenamed(path string) *Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byPath[path]
}

// committedFrom returns the event under stem whose kind image was already
// renamed away from path.
func (s *Session) committedFrom(stem string, kind ImageKind, path string) *Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := s.byStem[stem]
	if e == nil || !e.renameState(kind).Done() {
		return nil
	}
	original := e.OriginalRawImage
	if kind == KindDerived {
		original = e.OriginalDerivedImage
	}
	if original == nil || *original != path {
		return nil
	}
	return e
}

// newEvent allocates the next sequence number. The event is not visible to
// readers until added.
func (s *Session) newEvent(stem string, now time.Time) *Event {
	s.mu.Lock()
	s.sequence++
	seq := s.sequence
	s.mu.Unlock()
	return &Event{
		Session:          s.Info,
		ID:               uuid.NewString(),
		OriginalFilename: stem,
		Sequence:         seq,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (s *Session) add(e *Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.byStem[e.OriginalFilename] = e
	s.indexRenamedLocked(e)
	observers := append([]Observer(nil), s.observers...)
	snapshot := e.Clone()
	s.mu.Unlock()
	for _, o := range observers {
		o.EventCreated(snapshot)
	}
}

// Restore adds a previously persisted event, keeping its id and sequence.
func (s *Session) Restore(e *Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.Sequence > s.sequence {
		s.sequence = e.Sequence
	}
	s.events = append(s.events, e)
	sort.SliceStable(s.events, func(i, j int) bool { return s.events[i].Sequence < s.events[j].Sequence })
	s.byStem[e.OriginalFilename] = e
	s.indexRenamedLocked(e)
}

// update applies fn under the write lock and notifies observers.
func (s *Session) update(e *Event, now time.Time, fn func(*Event)) Event {
	s.mu.Lock()
	fn(e)
	e.UpdatedAt = now
	s.indexRenamedLocked(e)
	observers := append([]Observer(nil), s.observers...)
	snapshot := e.Clone()
	s.mu.Unlock()
	for _, o := range observers {
		o.EventUpdated(snapshot)
	}
	return snapshot
}

func (s *Session) snapshot(e *Event) Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return e.Clone()
}

func (s *Session) indexRenamedLocked(e *Event) {
	if e.NewRawImage != nil {
		s.byPath[*e.NewRawImage] = e
	}
	if e.NewDerivedImage != nil {
		s.byPath[*e.NewDerivedImage] = e
	}
}

func (s *Session) ordered() []*Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Event(nil), s.events...)
}
