package dictation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/voicewriter/internal/observe"
	"github.com/MrWong99/voicewriter/pkg/provider/stt"
)

var (
	// ErrUnsupported is returned by [Controller.Start] when no speech capture
	// capability is available.
	ErrUnsupported = errors.New("dictation: speech capture unsupported")

	// ErrNotListening is returned by [Controller.SendAudio] while idle.
	ErrNotListening = errors.New("dictation: not listening")
)

// State is the controller's listening state.
type State int

const (
	StateIdle State = iota
	StateListening
)

// String returns "idle" or "listening".
func (s State) String() string {
	if s == StateListening {
		return "listening"
	}
	return "idle"
}

// Handler receives classified utterances. Callbacks run on the controller's
// event goroutine, one at a time and in utterance order. They must not call
// [Controller.Stop].
type Handler interface {
	// OnDictate receives text to append to the manuscript.
	OnDictate(ctx context.Context, text string)

	// OnCite receives a citation search query.
	OnCite(ctx context.Context, query string)

	// OnImprove asks for the last paragraph to be touched up.
	OnImprove(ctx context.Context)

	// OnInterim receives not yet finalized text for live captions.
	OnInterim(text string)

	// OnStateChange reports every transition. err is non-nil when the
	// capture ended because of a failure.
	OnStateChange(state State, err error)
}

// DefaultLanguage is the recognition language used when none is configured.
const DefaultLanguage = "en-US"

// Option configures a [Controller].
type Option func(*Controller)

// WithLanguage sets the recognition language. Default: [DefaultLanguage].
func WithLanguage(lang string) Option {
	return func(c *Controller) {
		if lang != "" {
			c.cfg.Language = lang
		}
	}
}

// WithClassifier replaces the exact-match default classifier.
func WithClassifier(cl *Classifier) Option {
	return func(c *Controller) {
		if cl != nil {
			c.classifier = cl
		}
	}
}

// WithMetrics counts utterances by intent on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// run is one capture from Start to its end.
type run struct {
	handle  stt.SessionHandle
	cancel  context.CancelFunc
	started chan struct{}
	done    chan struct{}
}

// Controller is the dictation state machine. It owns the speech capture
// handle exclusively and releases it on Stop, on a natural end of the
// capture and on capture errors. All methods are safe for concurrent use.
type Controller struct {
	provider   stt.Provider
	handler    Handler
	cfg        stt.StreamConfig
	classifier *Classifier
	metrics    *observe.Metrics

	mu    sync.Mutex
	state State
	cur   *run

	// dialing is set while StartStream runs without mu held. gen tells a
	// dial apart from one that a Stop abandoned.
	dialing bool
	gen     uint64
}

// NewController returns an idle Controller. A nil provider makes every
// Start fail with [ErrUnsupported].
func NewController(provider stt.Provider, handler Handler, opts ...Option) *Controller {
	c := &Controller{
		provider: provider,
		handler:  handler,
		cfg: stt.StreamConfig{
			Language:       DefaultLanguage,
			Continuous:     true,
			InterimResults: true,
		},
		classifier: defaultClassifier,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Listening reports whether the controller is in [StateListening].
func (c *Controller) Listening() bool {
	return c.State() == StateListening
}

// Start acquires the speech capture capability and moves to
// [StateListening]. Starting while listening or while another Start is
// acquiring the capability is a no-op. When the capability is missing Start
// returns [ErrUnsupported] and stays idle. The capability is acquired
// without holding the controller lock, so State stays responsive during a
// slow dial.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateListening || c.dialing {
		c.mu.Unlock()
		return nil
	}
	if c.provider == nil {
		c.mu.Unlock()
		return ErrUnsupported
	}
	c.dialing = true
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	handle, err := c.provider.StartStream(runCtx, c.cfg)

	c.mu.Lock()
	current := c.dialing && c.gen == gen
	if current {
		c.dialing = false
	}
	if err != nil {
		c.mu.Unlock()
		cancel()
		if errors.Is(err, stt.ErrUnavailable) {
			return ErrUnsupported
		}
		return fmt.Errorf("dictation: start: %w", err)
	}
	if !current {
		// Stop ran while dialing.
		c.mu.Unlock()
		if cerr := handle.Close(); cerr != nil {
			slog.Debug("dictation: close abandoned capture", "err", cerr)
		}
		cancel()
		return nil
	}

	r := &run{
		handle:  handle,
		cancel:  cancel,
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}
	c.cur = r
	c.state = StateListening
	c.mu.Unlock()

	go c.listen(runCtx, r)
	c.handler.OnStateChange(StateListening, nil)
	close(r.started)

	slog.Debug("dictation started", "language", c.cfg.Language)
	return nil
}

// Stop releases the capture handle and moves to [StateIdle]. Results the
// capture flushes while closing are still dispatched; Stop returns once the
// event goroutine has drained them. Stopping while idle is a no-op; a Stop
// during Start makes that Start release the capability it acquires.
func (c *Controller) Stop() error {
	c.mu.Lock()
	c.dialing = false
	r := c.cur
	if r == nil {
		c.mu.Unlock()
		return nil
	}
	c.cur = nil
	c.state = StateIdle
	c.mu.Unlock()

	err := r.handle.Close()
	<-r.done
	r.cancel()
	c.handler.OnStateChange(StateIdle, nil)

	slog.Debug("dictation stopped")
	if err != nil {
		return fmt.Errorf("dictation: stop: %w", err)
	}
	return nil
}

// SendAudio forwards a raw audio chunk to the active capture.
func (c *Controller) SendAudio(chunk []byte) error {
	c.mu.Lock()
	r := c.cur
	c.mu.Unlock()
	if r == nil {
		return ErrNotListening
	}
	return r.handle.SendAudio(chunk)
}

func (c *Controller) listen(ctx context.Context, r *run) {
	defer close(r.done)
	<-r.started

	events := r.handle.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				c.finish(r, r.handle.Err())
				return
			}
			c.dispatch(ctx, ev)
		case <-ctx.Done():
			c.finish(r, nil)
			return
		}
	}
}

// finish ends r unless Stop already did.
func (c *Controller) finish(r *run, err error) {
	c.mu.Lock()
	if c.cur != r {
		c.mu.Unlock()
		return
	}
	c.cur = nil
	c.state = StateIdle
	c.mu.Unlock()

	r.cancel()
	if cerr := r.handle.Close(); cerr != nil {
		slog.Debug("dictation: close capture", "err", cerr)
	}
	if err != nil {
		slog.Warn("dictation capture ended with error", "err", err)
	}
	c.handler.OnStateChange(StateIdle, err)
}

func (c *Controller) dispatch(ctx context.Context, ev stt.Event) {
	if interim := stt.InterimText(ev.Results); interim != "" {
		c.handler.OnInterim(interim)
	}
	text := stt.FinalText(ev.Results)
	if text == "" {
		return
	}

	cmd := c.classifier.Classify(text)
	if c.metrics != nil {
		c.metrics.RecordUtterance(ctx, cmd.Intent.String())
	}
	observe.Logger(ctx).Debug("utterance", "intent", cmd.Intent, "length", len(text))

	switch cmd.Intent {
	case IntentDictate:
		c.handler.OnDictate(ctx, cmd.Text)
	case IntentCite:
		c.handler.OnCite(ctx, cmd.Text)
	case IntentImprove:
		c.handler.OnImprove(ctx)
	}
}
