package realtime

import (
	"sync"

	"github.com/cvcraft/cvcraft/internal/models"
)

// Apply merges a pushed event into the in-memory aggregate and reports
// whether anything changed. Fields absent from the event are left untouched,
// so a duplicate terminal notification is a no-op.
func Apply(cv *models.FullCV, ev CVEvent) bool {
	if cv == nil || ev.CVID != cv.ID {
		return false
	}

	changed := false
	if ev.Status != nil && *ev.Status != cv.Status {
		cv.Status = *ev.Status
		changed = true
	}
	if ev.OriginalFileURL != nil && !sameStr(cv.OriginalFileURL, ev.OriginalFileURL) {
		cv.OriginalFileURL = ev.OriginalFileURL
		changed = true
	}
	if ev.GeneratedDocURL != nil && !sameStr(cv.GeneratedDocURL, ev.GeneratedDocURL) {
		cv.GeneratedDocURL = ev.GeneratedDocURL
		changed = true
	}
	if ev.GeneratedPDFURL != nil && !sameStr(cv.GeneratedPDFURL, ev.GeneratedPDFURL) {
		cv.GeneratedPDFURL = ev.GeneratedPDFURL
		changed = true
	}
	if ev.ATSScore != nil && (cv.ATSScore == nil || *cv.ATSScore != *ev.ATSScore) {
		cv.ATSScore = ev.ATSScore
		changed = true
	}
	if len(ev.Recommendations) > 0 {
		cv.Recommendations = ev.Recommendations
		changed = true
	}
	return changed
}

func sameStr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Waiter lets a caller block on a generation attempt until the first
// terminal status arrives. Resolve is safe to call any number of times;
// only the first terminal status is delivered.
type Waiter struct {
	once sync.Once
	ch   chan models.CVStatus
}

func NewWaiter() *Waiter {
	return &Waiter{ch: make(chan models.CVStatus, 1)}
}

// Done yields the terminal status exactly once.
func (w *Waiter) Done() <-chan models.CVStatus {
	return w.ch
}

func (w *Waiter) Resolve(s models.CVStatus) {
	if !s.Terminal() {
		return
	}
	w.once.Do(func() {
		w.ch <- s
		close(w.ch)
	})
}

// Session couples one aggregate with a waiter: feed events in, the merged
// aggregate and the loading indicator come out consistent.
type Session struct {
	mu     sync.Mutex
	cv     *models.FullCV
	waiter *Waiter
}

func NewSession(cv *models.FullCV) *Session {
	return &Session{cv: cv, waiter: NewWaiter()}
}

func (s *Session) CV() *models.FullCV {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cv
}

func (s *Session) Waiter() *Waiter { return s.waiter }

// Feed applies one event; when the merged status is terminal the waiter is
// released (first time only).
func (s *Session) Feed(ev CVEvent) bool {
	s.mu.Lock()
	changed := Apply(s.cv, ev)
	status := s.cv.Status
	s.mu.Unlock()

	if status.Terminal() {
		s.waiter.Resolve(status)
	}
	return changed
}
