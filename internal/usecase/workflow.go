package usecase

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"Predictor/internal/domain/models"
	drepo "Predictor/internal/domain/repository"
	"Predictor/internal/domain/service"
	"Predictor/internal/service/hostbridge"
	"Predictor/pkg/config"
	"Predictor/pkg/logger"
)

const publishTimeout = 5 * time.Second

// Controller owns one screen session: the form, the analysis run and the result.
// All mutations are serialised by mu; timer callbacks carry the generation they
// were started for and are dropped once it moves on.
type Controller struct {
	mu      sync.Mutex
	session models.Session
	gen     uint64
	closed  bool

	stopTicker func()
	timer      *time.Timer
	startedAt  time.Time
	lastSeen   time.Time

	raw  service.HostBridge
	host hostbridge.Bridge

	// in-flight event publishes; shared with the owning SessionManager
	inflight *sync.WaitGroup

	cfg      config.AnalysisConfig
	animator *ProgressAnimator
	synth    service.Synthesizer
	metrics  drepo.Metrics
	events   drepo.EventPublisher
	log      *logger.Logger
}

// NewController creates a session in the form view with the default timeframe.
func NewController(
	id string,
	cfg config.AnalysisConfig,
	synth service.Synthesizer,
	metrics drepo.Metrics,
	events drepo.EventPublisher,
	log *logger.Logger,
) *Controller {
	return &Controller{
		session: models.Session{
			ID:        id,
			Timeframe: string(drepo.DefaultTimeframe()),
			View:      models.ViewForm,
		},
		lastSeen: time.Now(),
		host:     hostbridge.Optional(nil),
		inflight: new(sync.WaitGroup),
		cfg:      cfg,
		animator: NewProgressAnimator(cfg.TickPeriod),
		synth:    synth,
		metrics:  metrics,
		events:   events,
		log:      log.With(logger.String("session", id)),
	}
}

func (c *Controller) ID() string { return c.session.ID }

// Snapshot returns a copy of the current session state.
func (c *Controller) Snapshot() models.SessionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Snapshot()
}

// LastSeen reports when the session was last touched by a user action.
func (c *Controller) LastSeen() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

// Analyzing reports whether a run is in flight.
func (c *Controller) Analyzing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.View == models.ViewAnalyzing
}

// AttachBridge connects a host bridge and runs the init sequence:
// ready, expand, enable closing confirmation. Failures are logged and ignored.
func (c *Controller) AttachBridge(b service.HostBridge) {
	host := hostbridge.Optional(b)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.raw = b
	c.host = host
	c.lastSeen = time.Now()
	c.mu.Unlock()

	c.bridgeCall("ready", host.Ready)
	c.bridgeCall("expand", host.Expand)
	c.bridgeCall("enableClosingConfirmation", host.EnableClosingConfirmation)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.raw == b {
		c.host.SessionUpdated(c.session.Snapshot())
	}
}

// DetachBridge drops b if it is still the attached bridge.
func (c *Controller) DetachBridge(b service.HostBridge) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.raw == b {
		c.raw = nil
		c.host = hostbridge.Optional(nil)
	}
}

// UpdateForm edits the form fields. Symbols are upper-cased as typed; trimming
// happens when a run starts. Nil fields are left unchanged.
func (c *Controller) UpdateForm(base, quote, timeframe *string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrSessionClosed
	}
	if c.session.View != models.ViewForm {
		return ErrInvalidTransition
	}
	if timeframe != nil && !drepo.IsValidTimeframe(drepo.Timeframe(*timeframe)) {
		return ErrInvalidTimeframe
	}

	if base != nil {
		c.session.Base = strings.ToUpper(*base)
	}
	if quote != nil {
		c.session.Quote = strings.ToUpper(*quote)
	}
	if timeframe != nil {
		c.session.Timeframe = *timeframe
	}
	c.lastSeen = time.Now()
	c.changedLocked()
	return nil
}

// Run validates the form and starts an analysis. On empty symbols the session
// stays in the form with the error message set and ErrEmptyField is returned.
func (c *Controller) Run() error {
	return c.RunAdmitted(nil)
}

// RunAdmitted is Run with an admission check that is consulted only once the
// form is valid. An admit error is returned as is and leaves the session untouched.
func (c *Controller) RunAdmitted(admit func() error) error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return ErrSessionClosed
	}
	if c.session.View != models.ViewForm {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	c.lastSeen = time.Now()

	pair, err := ValidatePair(c.session.Base, c.session.Quote)
	if err != nil {
		c.session.ErrorMessage = EmptyFieldMessage
		c.changedLocked()
		c.mu.Unlock()

		c.metrics.RecordValidationFailure("empty_field")
		c.log.Debug("analysis rejected", logger.Error(err))
		return err
	}
	if admit != nil {
		if err := admit(); err != nil {
			c.mu.Unlock()
			return err
		}
	}

	c.session.Base = pair.Base
	c.session.Quote = pair.Quote
	c.session.ErrorMessage = ""
	c.session.Result = nil
	c.session.Progress = 0
	c.session.View = models.ViewAnalyzing
	c.gen++
	gen := c.gen
	tf := c.session.Timeframe
	c.startedAt = time.Now()

	c.stopTicker = c.animator.Start(func() bool { return c.tick(gen) })
	c.timer = time.AfterFunc(c.cfg.Delay, func() { c.complete(gen, pair) })
	c.changedLocked()
	c.mu.Unlock()

	c.metrics.RecordAnalysisStarted(tf)
	c.log.Info("analysis started",
		logger.String("pair", pair.String()),
		logger.String("timeframe", tf),
	)
	return nil
}

// Reset returns from the result view to the form, keeping the entered symbols.
// In the form view it does nothing.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrSessionClosed
	}
	c.lastSeen = time.Now()

	switch c.session.View {
	case models.ViewForm:
		return nil
	case models.ViewAnalyzing:
		return ErrInvalidTransition
	}

	c.session.Result = nil
	c.session.ErrorMessage = ""
	c.session.Progress = 0
	c.session.View = models.ViewForm
	c.changedLocked()
	return nil
}

// Close cancels any pending tick or result and rejects further actions.
// It is safe to call more than once.
// An attached bridge that can be closed is closed too.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	raw := c.closeLocked()
	c.mu.Unlock()

	c.closeBridge(raw)
}

// expireIfIdle closes the session if it was last touched before cutoff and has
// no run in flight. The checks and the close share one critical section, so a Run
// that wins the lock keeps the session open. The returned bridge, if any, must be
// passed to closeBridge.
func (c *Controller) expireIfIdle(cutoff time.Time) (bool, service.HostBridge) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.session.View == models.ViewAnalyzing || !c.lastSeen.Before(cutoff) {
		return false, nil
	}
	return true, c.closeLocked()
}

func (c *Controller) closeLocked() service.HostBridge {
	c.closed = true
	c.gen++
	c.stopTimersLocked()
	raw := c.raw
	c.raw = nil
	c.host = hostbridge.Optional(nil)
	return raw
}

func (c *Controller) closeBridge(raw service.HostBridge) {
	if cl, ok := raw.(io.Closer); ok {
		if err := cl.Close(); err != nil {
			c.log.Debug("close host bridge", logger.Error(err))
		}
	}
}

func (c *Controller) tick(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.gen || c.session.View != models.ViewAnalyzing {
		return false
	}
	next := Advance(c.session.Progress)
	if next != c.session.Progress {
		c.session.Progress = next
		c.changedLocked()
	}
	return next < MaxProgress
}

func (c *Controller) complete(gen uint64, pair Pair) {
	c.mu.Lock()
	if c.closed || gen != c.gen || c.session.View != models.ViewAnalyzing {
		c.mu.Unlock()
		return
	}

	pred := c.synth.Synthesize(pair.String(), c.session.Timeframe)
	progress := c.session.Progress
	elapsed := time.Since(c.startedAt)

	c.session.Result = &pred
	c.session.View = models.ViewResult
	c.stopTimersLocked()
	c.changedLocked()
	host := c.host
	id := c.session.ID
	c.inflight.Add(1)
	c.mu.Unlock()

	c.bridgeCall("haptic", func() error { return host.HapticFeedback(pred.Signal.Haptic()) })

	c.metrics.RecordPrediction(string(pred.Signal), pred.Confidence, progress)
	c.metrics.RecordLatency("analysis", elapsed.Seconds())
	c.log.Info("analysis completed",
		logger.String("symbol", pred.Symbol),
		logger.String("signal", string(pred.Signal)),
		logger.Int("confidence", pred.Confidence),
		logger.Int("progress", progress),
		logger.Duration("elapsed", elapsed),
	)

	evt := models.PredictionEvent{
		SessionID:  id,
		Prediction: pred,
		Progress:   progress,
		Elapsed:    elapsed.Milliseconds(),
	}
	go func() {
		defer c.inflight.Done()
		c.publish(evt)
	}()
}

func (c *Controller) publish(evt models.PredictionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := c.events.PublishPrediction(ctx, evt); err != nil {
		c.metrics.RecordError("publish")
		c.log.Warn("publish prediction failed", logger.Error(err))
	}
}

func (c *Controller) bridgeCall(name string, fn func() error) {
	if err := fn(); err != nil {
		c.metrics.RecordBridgeError(name)
		c.log.Debug("host bridge call failed", logger.String("call", name), logger.Error(err))
	}
}

func (c *Controller) stopTimersLocked() {
	if c.stopTicker != nil {
		c.stopTicker()
		c.stopTicker = nil
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// changedLocked bumps the version and pushes the new state to an observing bridge.
func (c *Controller) changedLocked() {
	c.session.Version++
	c.host.SessionUpdated(c.session.Snapshot())
}
