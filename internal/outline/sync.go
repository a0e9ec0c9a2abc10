package outline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultSyncDelay is the settle time before a cursor move is synced.
const DefaultSyncDelay = 200 * time.Millisecond

// DefaultEchoWindow is how long after a reveal a move onto the revealed
// line is taken for the host's echo of that reveal.
const DefaultEchoWindow = time.Second

// RevealFunc shows a node in the host's tree view.
type RevealFunc func(ctx context.Context, n *Node) error

// Syncer follows the editor cursor with the outline selection. Moves are
// debounced with a replaceable timer. Moves that arrive while a sync is in
// flight are dropped, and so are moves onto the revealed line within
// EchoWindow of a reveal: hosts that report the reveal asynchronously send
// those after the sync has finished.
type Syncer struct {
	session *Session
	reveal  RevealFunc
	delay   time.Duration
	logf    func(format string, args ...any)

	// EchoWindow overrides DefaultEchoWindow when set before use.
	EchoWindow time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	inFlight atomic.Bool
	ctx      context.Context
	last     revealed
}

type revealed struct {
	path string
	line int
	at   time.Time
}

func NewSyncer(ctx context.Context, session *Session, delay time.Duration, reveal RevealFunc, logf func(string, ...any)) *Syncer {
	if delay <= 0 {
		delay = DefaultSyncDelay
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Syncer{session: session, reveal: reveal, delay: delay, logf: logf, ctx: ctx, EchoWindow: DefaultEchoWindow}
}

// CursorMoved schedules a sync for the cursor at line of path.
func (s *Syncer) CursorMoved(path string, line int) {
	if s.inFlight.Load() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isEchoLocked(path, line) {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, func() {
		s.Sync(path, line)
	})
}

// Sync runs a sync immediately. It reports whether a node was revealed.
func (s *Syncer) Sync(path string, line int) bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		return false
	}
	defer s.inFlight.Store(false)

	n := s.session.FindClosest(line, path)
	if n == nil {
		return false
	}
	s.session.EnsureAncestorsExpanded(n.ID)
	if s.reveal == nil {
		return true
	}
	if err := s.reveal(s.ctx, n); err != nil {
		// reveal is cosmetic
		s.logf("outline: reveal %s failed: %v", n.ID, err)
		return false
	}
	s.mu.Lock()
	s.last = revealed{path: n.Path, line: n.Line, at: time.Now()}
	s.mu.Unlock()
	return true
}

func (s *Syncer) isEchoLocked(path string, line int) bool {
	if s.last.at.IsZero() || s.last.path != path || s.last.line != line {
		return false
	}
	if time.Since(s.last.at) > s.EchoWindow {
		s.last = revealed{}
		return false
	}
	return true
}

// Syncing reports whether a sync is in flight.
func (s *Syncer) Syncing() bool {
	return s.inFlight.Load()
}

// Stop cancels a pending sync.
func (s *Syncer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
