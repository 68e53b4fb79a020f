// Package navigator is the client side of a timed test: a countdown with pause and resume,
// question navigation with delayed auto-advance, and a single guarded submission.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/yourusername/testprep-api/internal/domain/entity"
)

type State int

const (
	Running State = iota
	Paused
	Submitting
	Done
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Submitting:
		return "submitting"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type EventKind int

const (
	// Navigated carries the new question index.
	Navigated EventKind = iota
	// Tick carries the remaining time.
	Tick
	// StateChanged carries the new state.
	StateChanged
	// AnswerSelected carries the question index of the recorded answer.
	AnswerSelected
	// SubmitFailed carries the submission error. The navigator stays in Submitting.
	SubmitFailed
)

type Event struct {
	Kind      EventKind
	State     State
	Index     int
	Remaining time.Duration
	Err       error
}

var (
	ErrInvalidState = errors.New("action not allowed in current state")
	ErrOutOfRange   = errors.New("question index out of range")
)

// Submitter sends the recorded answers to the server. It runs on its own goroutine.
type Submitter func(ctx context.Context, sessionID string, answers []entity.UserAnswer) error

type Config struct {
	Duration         time.Duration
	TickInterval     time.Duration
	AutoAdvanceDelay time.Duration
	Clock            Clock
	// EventBuffer is the capacity of the Events channel.
	EventBuffer int
}

func DefaultConfig() Config {
	return Config{
		Duration:         30 * time.Minute,
		TickInterval:     time.Second,
		AutoAdvanceDelay: 2 * time.Second,
		Clock:            RealClock(),
		EventBuffer:      256,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Duration <= 0 {
		c.Duration = d.Duration
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.AutoAdvanceDelay <= 0 {
		c.AutoAdvanceDelay = d.AutoAdvanceDelay
	}
	if c.Clock == nil {
		c.Clock = d.Clock
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = d.EventBuffer
	}
	return c
}

// Navigator is safe for concurrent use. Timer callbacks and user actions are serialized by
// one mutex, and every scheduled callback carries a generation number so a callback that
// fires after being cancelled does nothing.
type Navigator struct {
	mu sync.Mutex

	sessionID   string
	questionIDs []string
	submit      Submitter
	cfg         Config
	ctx         context.Context

	state     State
	current   int
	remaining time.Duration
	answers   map[string]int
	err       error
	started   bool
	inFlight  bool

	tickTimer    Timer
	tickGen      uint64
	advanceTimer Timer
	advanceGen   uint64

	events chan Event
	closed bool
}

func New(sessionID string, questionIDs []string, submit Submitter, cfg Config) (*Navigator, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	if len(questionIDs) == 0 {
		return nil, errors.New("at least one question is required")
	}
	if submit == nil {
		return nil, errors.New("submitter is required")
	}
	cfg = cfg.withDefaults()

	ids := make([]string, len(questionIDs))
	copy(ids, questionIDs)
	return &Navigator{
		sessionID:   sessionID,
		questionIDs: ids,
		submit:      submit,
		cfg:         cfg,
		ctx:         context.Background(),
		state:       Running,
		remaining:   cfg.Duration,
		answers:     make(map[string]int, len(ids)),
		events:      make(chan Event, cfg.EventBuffer),
	}, nil
}

// Start begins the countdown. ctx is passed to the Submitter.
func (n *Navigator) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return fmt.Errorf("%w: already started", ErrInvalidState)
	}
	n.started = true
	if ctx != nil {
		n.ctx = ctx
	}
	n.armTick()
	return nil
}

func (n *Navigator) Events() <-chan Event {
	return n.events
}

func (n *Navigator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

func (n *Navigator) Current() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *Navigator) Remaining() time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.remaining
}

// Err returns the last submission error, if any.
func (n *Navigator) Err() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.err
}

// Answers returns the recorded answers in question order.
func (n *Navigator) Answers() []entity.UserAnswer {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.answersLocked()
}

// Answer reports the recorded option for question index i.
func (n *Navigator) Answer(i int) (int, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if i < 0 || i >= len(n.questionIDs) {
		return 0, false
	}
	idx, ok := n.answers[n.questionIDs[i]]
	return idx, ok
}

func (n *Navigator) QuestionCount() int {
	return len(n.questionIDs)
}

// Select records option for the current question. Unless this is the last question, the
// navigator moves on after AutoAdvanceDelay; a later selection restarts that delay.
func (n *Navigator) Select(option int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != Running {
		return fmt.Errorf("%w: select in %s", ErrInvalidState, n.state)
	}

	n.answers[n.questionIDs[n.current]] = option
	n.emit(Event{Kind: AnswerSelected, State: n.state, Index: n.current})

	n.cancelAdvance()
	if n.current < len(n.questionIDs)-1 {
		n.scheduleAdvance(n.current + 1)
	}
	return nil
}

func (n *Navigator) Next() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.jumpLocked(n.current + 1)
}

func (n *Navigator) Prev() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.jumpLocked(n.current - 1)
}

func (n *Navigator) Jump(index int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.jumpLocked(index)
}

// Pause stops the countdown and drops any pending auto-advance.
func (n *Navigator) Pause() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != Running {
		return fmt.Errorf("%w: pause in %s", ErrInvalidState, n.state)
	}
	n.cancelAdvance()
	n.stopTick()
	n.setState(Paused)
	return nil
}

func (n *Navigator) Resume() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != Paused {
		return fmt.Errorf("%w: resume in %s", ErrInvalidState, n.state)
	}
	n.setState(Running)
	if n.started {
		n.armTick()
	}
	return nil
}

// Quit abandons the attempt from Paused. Nothing is submitted.
func (n *Navigator) Quit() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != Paused {
		return fmt.Errorf("%w: quit in %s", ErrInvalidState, n.state)
	}
	n.finish()
	return nil
}

// Submit sends the recorded answers. Only the first trigger counts; later ones while a
// submission is in flight, or after it failed, are ignored.
func (n *Navigator) Submit() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch n.state {
	case Running:
		n.beginSubmit()
		return nil
	case Submitting:
		return nil
	default:
		return fmt.Errorf("%w: submit in %s", ErrInvalidState, n.state)
	}
}

// Retry resends the same answers after a failed submission. The navigator never returns
// to Running, so the answers and the clock stay frozen.
func (n *Navigator) Retry() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != Submitting || n.inFlight || n.err == nil {
		return fmt.Errorf("%w: retry in %s", ErrInvalidState, n.state)
	}
	n.err = nil
	n.send()
	return nil
}

// Abandon gives up on a failed submission and ends the navigator. The answers were never
// accepted, so the server-side session stays open and can be resumed later.
func (n *Navigator) Abandon() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != Submitting || n.inFlight || n.err == nil {
		return fmt.Errorf("%w: abandon in %s", ErrInvalidState, n.state)
	}
	log.Warn().Err(n.err).Msgf("[Navigator] submission for session %s abandoned", n.sessionID)
	n.finish()
	return nil
}

func (n *Navigator) jumpLocked(index int) error {
	if n.state != Running {
		return fmt.Errorf("%w: navigate in %s", ErrInvalidState, n.state)
	}
	if index < 0 || index >= len(n.questionIDs) {
		return ErrOutOfRange
	}
	n.cancelAdvance()
	n.moveTo(index)
	return nil
}

func (n *Navigator) moveTo(index int) {
	if index == n.current {
		return
	}
	n.current = index
	n.emit(Event{Kind: Navigated, State: n.state, Index: index})
}

func (n *Navigator) scheduleAdvance(target int) {
	n.advanceGen++
	gen := n.advanceGen
	n.advanceTimer = n.cfg.Clock.AfterFunc(n.cfg.AutoAdvanceDelay, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if gen != n.advanceGen || n.state != Running {
			return
		}
		n.advanceTimer = nil
		n.moveTo(target)
	})
}

func (n *Navigator) cancelAdvance() {
	n.advanceGen++
	if n.advanceTimer != nil {
		n.advanceTimer.Stop()
		n.advanceTimer = nil
	}
}

func (n *Navigator) armTick() {
	n.tickGen++
	gen := n.tickGen
	n.tickTimer = n.cfg.Clock.AfterFunc(n.cfg.TickInterval, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if gen != n.tickGen || n.state != Running {
			return
		}
		n.onTick()
	})
}

func (n *Navigator) stopTick() {
	n.tickGen++
	if n.tickTimer != nil {
		n.tickTimer.Stop()
		n.tickTimer = nil
	}
}

func (n *Navigator) onTick() {
	n.remaining -= n.cfg.TickInterval
	if n.remaining < 0 {
		n.remaining = 0
	}
	n.emit(Event{Kind: Tick, State: n.state, Remaining: n.remaining})
	if n.remaining == 0 {
		log.Info().Msgf("[Navigator] time is up for session %s, submitting", n.sessionID)
		n.beginSubmit()
		return
	}
	n.armTick()
}

func (n *Navigator) beginSubmit() {
	n.cancelAdvance()
	n.stopTick()
	n.setState(Submitting)
	n.send()
}

func (n *Navigator) send() {
	n.inFlight = true
	ctx := n.ctx
	answers := n.answersLocked()
	go func() {
		err := n.submit(ctx, n.sessionID, answers)
		n.mu.Lock()
		defer n.mu.Unlock()
		n.inFlight = false
		if err != nil {
			log.Error().Err(err).Msgf("[Navigator] submission failed for session %s", n.sessionID)
			n.err = err
			n.emit(Event{Kind: SubmitFailed, State: n.state, Err: err})
			return
		}
		n.finish()
	}()
}

func (n *Navigator) finish() {
	n.cancelAdvance()
	n.stopTick()
	n.setState(Done)
	n.closed = true
	close(n.events)
}

func (n *Navigator) setState(s State) {
	if n.state == s {
		return
	}
	n.state = s
	n.emit(Event{Kind: StateChanged, State: s, Index: n.current})
}

// emit never blocks. A consumer that falls behind by more than EventBuffer loses events.
func (n *Navigator) emit(ev Event) {
	if n.closed {
		return
	}
	select {
	case n.events <- ev:
	default:
		log.Warn().Msgf("[Navigator] event buffer full, dropping event kind %d", ev.Kind)
	}
}

func (n *Navigator) answersLocked() []entity.UserAnswer {
	out := make([]entity.UserAnswer, 0, len(n.answers))
	for _, id := range n.questionIDs {
		if idx, ok := n.answers[id]; ok {
			out = append(out, entity.UserAnswer{QuestionID: id, AnswerIndex: idx})
		}
	}
	return out
}
