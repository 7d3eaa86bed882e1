package usecase

import (
	"context"
	"sync"
	"time"

	drepo "Predictor/internal/domain/repository"
	"Predictor/internal/domain/service"
	"Predictor/pkg/config"
	"Predictor/pkg/logger"

	"github.com/google/uuid"
)

// Close reasons reported to metrics.
const (
	CloseLeft     = "left"
	CloseIdle     = "idle"
	CloseShutdown = "shutdown"
)

// SessionManager keeps the live controllers keyed by session id and expires idle ones.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Controller

	analysis config.AnalysisConfig
	idleTTL  time.Duration
	sweep    time.Duration
	max      int

	synth   service.Synthesizer
	metrics drepo.Metrics
	events  drepo.EventPublisher
	log     *logger.Logger

	newID func() string
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup

	// event publishes started by any controller, including closed ones
	publishes sync.WaitGroup
}

// NewSessionManager creates an empty registry. max <= 0 means unlimited.
func NewSessionManager(
	analysis config.AnalysisConfig,
	idleTTL time.Duration,
	sweep time.Duration,
	max int,
	synth service.Synthesizer,
	metrics drepo.Metrics,
	events drepo.EventPublisher,
	log *logger.Logger,
) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Controller),
		analysis: analysis,
		idleTTL:  idleTTL,
		sweep:    sweep,
		max:      max,
		synth:    synth,
		metrics:  metrics,
		events:   events,
		log:      log,
		newID:    uuid.NewString,
		done:     make(chan struct{}),
	}
}

// Create opens a session with the given form values already applied.
func (m *SessionManager) Create(base, quote, timeframe string) (*Controller, error) {
	if !drepo.IsValidTimeframe(drepo.Timeframe(timeframe)) {
		return nil, ErrInvalidTimeframe
	}

	m.mu.Lock()
	if m.max > 0 && len(m.sessions) >= m.max {
		m.mu.Unlock()
		return nil, ErrTooManySessions
	}
	id := m.newID()
	c := NewController(id, m.analysis, m.synth, m.metrics, m.events, m.log)
	c.inflight = &m.publishes
	if err := c.UpdateForm(&base, &quote, &timeframe); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.sessions[id] = c
	m.mu.Unlock()

	m.metrics.RecordSessionOpened()
	m.log.Debug("session opened", logger.String("session", id))
	return c, nil
}

// Get returns the controller for id.
func (m *SessionManager) Get(id string) (*Controller, error) {
	m.mu.RLock()
	c, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return c, nil
}

// Close removes the session and cancels its pending work.
func (m *SessionManager) Close(id, reason string) error {
	m.mu.Lock()
	c, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	c.Close()
	m.metrics.RecordSessionClosed(reason)
	m.log.Debug("session closed", logger.String("session", id), logger.String("reason", reason))
	return nil
}

// expire closes id only if the controller itself confirms it is still idle.
func (m *SessionManager) expire(id string, cutoff time.Time) bool {
	m.mu.Lock()
	c, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return false
	}
	closed, raw := c.expireIfIdle(cutoff)
	if closed {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !closed {
		return false
	}

	c.closeBridge(raw)
	m.metrics.RecordSessionClosed(CloseIdle)
	m.log.Debug("session closed", logger.String("session", id), logger.String("reason", CloseIdle))
	return true
}

// Len reports the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep closes sessions untouched for longer than the idle TTL. Sessions with a
// run in flight are left alone. It returns how many were closed.
func (m *SessionManager) Sweep(now time.Time) int {
	cutoff := now.Add(-m.idleTTL)

	m.mu.RLock()
	var stale []string
	for id, c := range m.sessions {
		if c.LastSeen().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	n := 0
	for _, id := range stale {
		if m.expire(id, cutoff) {
			n++
		}
	}
	if n > 0 {
		m.log.Info("idle sessions expired", logger.Int("count", n))
	}
	return n
}

// Start runs the idle sweeper until ctx is cancelled or Shutdown is called.
func (m *SessionManager) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.sweep)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.done:
				return
			case now := <-ticker.C:
				m.Sweep(now)
			}
		}
	}()
}

// Shutdown stops the sweeper, closes every session and waits for prediction
// events that were already being published.
func (m *SessionManager) Shutdown() {
	m.once.Do(func() { close(m.done) })
	m.wg.Wait()

	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Controller)
	m.mu.Unlock()

	for _, c := range all {
		c.Close()
		m.metrics.RecordSessionClosed(CloseShutdown)
	}
	if len(all) > 0 {
		m.log.Info("sessions closed on shutdown", logger.Int("count", len(all)))
	}
	m.publishes.Wait()
}
