package navigator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/testprep-api/internal/domain/entity"
)

// recordingSubmitter captures every call and answers with the configured error.
type recordingSubmitter struct {
	mu      sync.Mutex
	calls   [][]entity.UserAnswer
	err     error
	release chan struct{}
}

func (r *recordingSubmitter) Submit(_ context.Context, _ string, answers []entity.UserAnswer) error {
	if r.release != nil {
		<-r.release
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, answers)
	return r.err
}

func (r *recordingSubmitter) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func newTestNavigator(t *testing.T, questions int, duration time.Duration, sub *recordingSubmitter) (*Navigator, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	ids := make([]string, questions)
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}
	nav, err := New("session-1", ids, sub.Submit, Config{
		Duration:         duration,
		TickInterval:     time.Second,
		AutoAdvanceDelay: 2 * time.Second,
		Clock:            clock,
	})
	require.NoError(t, err)
	require.NoError(t, nav.Start(context.Background()))
	return nav, clock
}

// drain returns the events already buffered without waiting.
func drain(nav *Navigator) []Event {
	var out []Event
	for {
		select {
		case ev, ok := <-nav.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func navigations(events []Event) []int {
	var out []int
	for _, ev := range events {
		if ev.Kind == Navigated {
			out = append(out, ev.Index)
		}
	}
	return out
}

// waitForState reads events until the state is reached or the channel closes.
func waitForState(t *testing.T, nav *Navigator, want State) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for nav.State() != want {
		select {
		case _, ok := <-nav.Events():
			if !ok && nav.State() != want {
				t.Fatalf("events closed in state %s, want %s", nav.State(), want)
			}
		case <-deadline:
			t.Fatalf("timed out in state %s, want %s", nav.State(), want)
		}
	}
}

func waitForSubmitFailure(t *testing.T, nav *Navigator) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-nav.Events():
			if ev.Kind == SubmitFailed {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for submit failure")
		}
	}
}

func TestNavigator_ReselectRestartsAutoAdvance(t *testing.T) {
	// Arrange
	nav, clock := newTestNavigator(t, 3, time.Hour, &recordingSubmitter{})

	// Act
	require.NoError(t, nav.Select(0))
	clock.Advance(time.Second)
	require.NoError(t, nav.Select(1))
	clock.Advance(1500 * time.Millisecond)
	assert.Equal(t, 0, nav.Current(), "the first advance was cancelled")
	clock.Advance(time.Second)

	// Assert
	assert.Equal(t, []int{1}, navigations(drain(nav)), "exactly one navigation")
	assert.Equal(t, 1, nav.Current())
	option, ok := nav.Answer(0)
	require.True(t, ok)
	assert.Equal(t, 1, option)
	assert.Equal(t, []entity.UserAnswer{{QuestionID: "a", AnswerIndex: 1}}, nav.Answers())
}

func TestNavigator_LastQuestionDoesNotAdvance(t *testing.T) {
	nav, clock := newTestNavigator(t, 2, time.Hour, &recordingSubmitter{})
	require.NoError(t, nav.Jump(1))
	drain(nav)

	require.NoError(t, nav.Select(3))
	clock.Advance(5 * time.Second)

	assert.Equal(t, 1, nav.Current())
	assert.Empty(t, navigations(drain(nav)))
}

func TestNavigator_ManualNavigationCancelsAdvance(t *testing.T) {
	nav, clock := newTestNavigator(t, 5, time.Hour, &recordingSubmitter{})

	require.NoError(t, nav.Select(2))
	require.NoError(t, nav.Jump(3))
	clock.Advance(5 * time.Second)

	assert.Equal(t, 3, nav.Current())
	assert.Equal(t, []int{3}, navigations(drain(nav)))

	require.NoError(t, nav.Prev())
	assert.Equal(t, 2, nav.Current())
	require.NoError(t, nav.Next())
	assert.ErrorIs(t, nav.Jump(5), ErrOutOfRange)
	assert.ErrorIs(t, nav.Jump(-1), ErrOutOfRange)
}

func TestNavigator_TimeoutForcesSubmit(t *testing.T) {
	// Arrange
	sub := &recordingSubmitter{release: make(chan struct{})}
	nav, clock := newTestNavigator(t, 3, time.Second, sub)

	// Act
	clock.Advance(time.Second)

	// Assert
	assert.Equal(t, Submitting, nav.State(), "within one tick of expiry")
	assert.Equal(t, time.Duration(0), nav.Remaining())
	assert.ErrorIs(t, nav.Select(1), ErrInvalidState)

	close(sub.release)
	waitForState(t, nav, Done)
	require.Equal(t, 1, sub.callCount())
	assert.Empty(t, sub.calls[0], "no answers were recorded")
}

func TestNavigator_CountdownTicks(t *testing.T) {
	nav, clock := newTestNavigator(t, 2, 10*time.Second, &recordingSubmitter{})

	clock.Advance(3 * time.Second)

	assert.Equal(t, 7*time.Second, nav.Remaining())
	ticks := 0
	for _, ev := range drain(nav) {
		if ev.Kind == Tick {
			ticks++
		}
	}
	assert.Equal(t, 3, ticks)
}

func TestNavigator_PauseStopsClockAndAdvance(t *testing.T) {
	// Arrange
	nav, clock := newTestNavigator(t, 3, time.Minute, &recordingSubmitter{})
	clock.Advance(2 * time.Second)
	require.NoError(t, nav.Select(0))

	// Act
	require.NoError(t, nav.Pause())
	clock.Advance(10 * time.Second)

	// Assert
	assert.Equal(t, Paused, nav.State())
	assert.Equal(t, 58*time.Second, nav.Remaining(), "countdown stopped")
	assert.Equal(t, 0, nav.Current(), "pending advance dropped")
	assert.ErrorIs(t, nav.Next(), ErrInvalidState)
	assert.ErrorIs(t, nav.Pause(), ErrInvalidState)

	require.NoError(t, nav.Resume())
	clock.Advance(3 * time.Second)
	assert.Equal(t, 55*time.Second, nav.Remaining(), "countdown resumes where it stopped")
	assert.Equal(t, 0, nav.Current())
}

func TestNavigator_QuitFromPaused(t *testing.T) {
	sub := &recordingSubmitter{}
	nav, clock := newTestNavigator(t, 2, time.Minute, sub)

	assert.ErrorIs(t, nav.Quit(), ErrInvalidState, "quit needs a pause first")
	require.NoError(t, nav.Pause())
	require.NoError(t, nav.Quit())
	clock.Advance(2 * time.Minute)

	assert.Equal(t, Done, nav.State())
	assert.Equal(t, 0, sub.callCount())
	drain(nav)
	_, open := <-nav.Events()
	assert.False(t, open, "events channel is closed when done")
	assert.ErrorIs(t, nav.Submit(), ErrInvalidState)
}

func TestNavigator_SubmitOnlyOnce(t *testing.T) {
	sub := &recordingSubmitter{release: make(chan struct{})}
	nav, _ := newTestNavigator(t, 2, time.Minute, sub)
	require.NoError(t, nav.Select(1))

	require.NoError(t, nav.Submit())
	require.NoError(t, nav.Submit())
	close(sub.release)
	waitForState(t, nav, Done)

	assert.Equal(t, 1, sub.callCount())
	assert.Equal(t, []entity.UserAnswer{{QuestionID: "a", AnswerIndex: 1}}, sub.calls[0])
}

func TestNavigator_SubmitFailureStaysSubmitting(t *testing.T) {
	// Arrange
	sub := &recordingSubmitter{err: errors.New("server said no")}
	nav, clock := newTestNavigator(t, 2, time.Minute, sub)

	// Act
	require.NoError(t, nav.Submit())
	ev := waitForSubmitFailure(t, nav)

	// Assert
	assert.EqualError(t, ev.Err, "server said no")
	assert.Equal(t, Submitting, nav.State())
	assert.EqualError(t, nav.Err(), "server said no")

	require.NoError(t, nav.Submit(), "ignored while submitting")
	clock.Advance(time.Minute)
	assert.Equal(t, 1, sub.callCount(), "no automatic retry")
	assert.ErrorIs(t, nav.Resume(), ErrInvalidState)
}

func TestNavigator_RetryAfterFailure(t *testing.T) {
	// Arrange
	sub := &recordingSubmitter{err: errors.New("network down")}
	nav, _ := newTestNavigator(t, 2, time.Minute, sub)
	require.NoError(t, nav.Select(1))
	assert.ErrorIs(t, nav.Retry(), ErrInvalidState, "nothing to retry while running")
	require.NoError(t, nav.Submit())
	waitForSubmitFailure(t, nav)

	// Act
	sub.mu.Lock()
	sub.err = nil
	sub.mu.Unlock()
	require.NoError(t, nav.Retry())
	waitForState(t, nav, Done)

	// Assert
	assert.NoError(t, nav.Err())
	require.Equal(t, 2, sub.callCount())
	assert.Equal(t, sub.calls[0], sub.calls[1], "the same answers are resent")
	assert.ErrorIs(t, nav.Retry(), ErrInvalidState)
}

func TestNavigator_AbandonAfterFailure(t *testing.T) {
	// Arrange
	sub := &recordingSubmitter{err: errors.New("server unreachable")}
	nav, _ := newTestNavigator(t, 3, time.Minute, sub)
	assert.ErrorIs(t, nav.Abandon(), ErrInvalidState, "nothing to abandon while running")
	require.NoError(t, nav.Submit())
	waitForSubmitFailure(t, nav)
	assert.ErrorIs(t, nav.Quit(), ErrInvalidState, "quit stays a Paused-only action")

	// Act
	require.NoError(t, nav.Abandon())

	// Assert
	assert.Equal(t, Done, nav.State())
	assert.EqualError(t, nav.Err(), "server unreachable")
	drain(nav)
	_, open := <-nav.Events()
	assert.False(t, open, "events are closed once the navigator is done")
	assert.ErrorIs(t, nav.Retry(), ErrInvalidState)
	assert.ErrorIs(t, nav.Abandon(), ErrInvalidState)
	assert.Equal(t, 1, sub.callCount())
}

func TestNew_Validation(t *testing.T) {
	noop := func(context.Context, string, []entity.UserAnswer) error { return nil }

	_, err := New("", []string{"a"}, noop, Config{})
	assert.Error(t, err)
	_, err = New("s", nil, noop, Config{})
	assert.Error(t, err)
	_, err = New("s", []string{"a"}, nil, Config{})
	assert.Error(t, err)

	nav, err := New("s", []string{"a"}, noop, Config{})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, nav.Remaining())
	assert.Equal(t, Running, nav.State())
	assert.Equal(t, "paused", Paused.String())
}
