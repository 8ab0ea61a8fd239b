// Package session holds one chat conversation on the client side: its
// history, the single in-flight exchange, and the incremental state a UI
// renders from.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"portfolio-ai/backend/internal/marker"
	"portfolio-ai/backend/internal/model"
	"portfolio-ai/backend/internal/repository"
	"portfolio-ai/backend/internal/stream"
)

const (
	// InterruptedAnnotation is appended to a partial answer that was cancelled.
	InterruptedAnnotation = "\n\n*(response interrupted)*"
	// FailureMessage replaces the assistant reply when an exchange fails.
	FailureMessage = "Something went wrong, please try again later."

	persistTimeout = 5 * time.Second
)

var (
	// ErrEmptyInput is returned by Send for blank input. No exchange starts.
	ErrEmptyInput = errors.New("session: empty input")
	// ErrNoStore is returned by Resume when the session has no transcript store.
	ErrNoStore = errors.New("session: no transcript store configured")
)

// Snapshot is a consistent copy of the session state for rendering.
type Snapshot struct {
	ID       string
	Profile  model.Profile
	State    State
	Messages []model.Message
	// Split is the segmentation of the trailing assistant message, if any.
	Split marker.Split
	// Err is the cause of the last StateError.
	Err error
}

// Option configures a Session.
type Option func(*Session)

// WithStore persists the transcript whenever an exchange settles and on reset.
func WithStore(store repository.TranscriptStore) Option {
	return func(s *Session) { s.store = store }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// Session is the chat session controller. All methods are safe for
// concurrent use; the conversation is only mutated under mu.
type Session struct {
	mu        sync.Mutex
	id        string
	createdAt time.Time
	profile   model.Profile
	messages  []model.Message
	state     State
	lastErr   error

	// exchange identifies the current exchange. Events carrying an older id
	// are dropped.
	exchange uint64
	cancel   context.CancelFunc

	wg        conc.WaitGroup
	transport Transport
	store     repository.TranscriptStore
	logger    *slog.Logger
	changed   chan struct{}
}

func New(transport Transport, profile model.Profile, opts ...Option) *Session {
	s := &Session{
		transport: transport,
		logger:    slog.Default(),
		changed:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.resetLocked(profile)
	return s
}

// Changed is signalled after every state change. Signals coalesce; read the
// current state with Snapshot.
func (s *Session) Changed() <-chan struct{} {
	return s.changed
}

// Send starts a new exchange with text as the user message. An exchange still
// in flight is cancelled first, keeping its partial reply.
func (s *Session) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}

	s.mu.Lock()
	var settled *model.Transcript
	if s.interruptLocked() {
		settled = s.transcriptLocked()
	}

	s.exchange++
	id := s.exchange
	s.messages = append(s.messages,
		model.Message{Role: model.RoleUser, Content: text},
		model.Message{Role: model.RoleAssistant},
	)
	request := make([]model.Message, len(s.messages)-1)
	copy(request, s.messages)

	exCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StateThinking
	s.lastErr = nil
	profile := s.profile
	s.mu.Unlock()

	s.notify()
	s.persist(settled)

	events := make(chan Event)
	s.wg.Go(func() { s.produce(exCtx, profile, request, events) })
	s.wg.Go(func() { s.reduce(id, events) })
	return nil
}

// Cancel stops the in-flight exchange. It reports whether there was one.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	if !s.interruptLocked() {
		s.mu.Unlock()
		return false
	}
	t := s.transcriptLocked()
	s.mu.Unlock()

	s.notify()
	s.persist(t)
	return true
}

// Clear cancels any exchange and starts a new conversation with the same profile.
func (s *Session) Clear() {
	s.mu.Lock()
	s.switchLocked(s.profile)
}

// SwitchProfile cancels any exchange and starts a new conversation with profile.
func (s *Session) SwitchProfile(profile model.Profile) {
	s.mu.Lock()
	s.switchLocked(profile)
}

// Toggle switches to the other profile and returns it.
func (s *Session) Toggle() model.Profile {
	s.mu.Lock()
	next := s.profile.Other()
	s.switchLocked(next)
	return next
}

// switchLocked must be called with mu held; it releases it.
func (s *Session) switchLocked(profile model.Profile) {
	s.interruptLocked()
	old := s.transcriptLocked()
	s.resetLocked(profile)
	s.mu.Unlock()

	s.notify()
	s.persist(old)
}

// Resume replaces the conversation with a stored transcript.
func (s *Session) Resume(ctx context.Context, id string) error {
	if s.store == nil {
		return ErrNoStore
	}
	t, err := s.store.GetTranscript(ctx, id)
	if err != nil {
		return fmt.Errorf("could not load transcript %s: %w", id, err)
	}
	profile, err := model.LookupProfile(model.ProfileKind(t.Profile))
	if err != nil {
		return fmt.Errorf("transcript %s: %w", id, err)
	}

	s.mu.Lock()
	s.interruptLocked()
	old := s.transcriptLocked()
	s.id = t.ID
	s.createdAt = t.CreatedAt
	s.profile = profile
	s.messages = append([]model.Message(nil), t.Messages...)
	s.state = StateIdle
	s.lastErr = nil
	s.mu.Unlock()

	s.notify()
	s.persist(old)
	return nil
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:       s.id,
		Profile:  s.profile,
		State:    s.state,
		Messages: append([]model.Message(nil), s.messages...),
		Err:      s.lastErr,
	}
	if last := s.trailingAssistantLocked(); last != nil {
		if last.Split != nil {
			snap.Split = *last.Split
		} else {
			snap.Split = marker.SplitContent(last.Content)
		}
	}
	return snap
}

// Messages returns a copy of the conversation.
func (s *Session) Messages() []model.Message {
	return s.Snapshot().Messages
}

// Wait blocks until every exchange goroutine has returned.
func (s *Session) Wait() {
	s.wg.Wait()
}

// produce runs the transport and decoder for one exchange and turns the
// outcome into events. It closes events when done.
func (s *Session) produce(ctx context.Context, profile model.Profile, request []model.Message, events chan<- Event) {
	defer close(events)

	events <- Started{}

	body, err := s.transport.Stream(ctx, profile, request)
	if err != nil {
		if ctx.Err() != nil {
			events <- Aborted{}
			return
		}
		events <- Failed{Err: err}
		return
	}
	defer body.Close()

	frames := make(chan stream.Frame)
	var readErr error
	var reader conc.WaitGroup
	reader.Go(func() { readErr = stream.Read(ctx, body, frames) })

	aborted := false
	for frame := range frames {
		switch frame.Kind {
		case stream.FrameContent:
			events <- Content{Content: frame.Content}
		case stream.FrameAborted:
			aborted = true
		}
	}
	reader.Wait()

	switch {
	case aborted || ctx.Err() != nil:
		events <- Aborted{}
	case readErr != nil:
		events <- Failed{Err: readErr}
	default:
		// A stream that ends without [DONE] still counts as complete.
		events <- Completed{}
	}
}

// reduce applies events in arrival order. It drains events even after the
// exchange went stale so the producer never blocks.
func (s *Session) reduce(id uint64, events <-chan Event) {
	for ev := range events {
		s.apply(id, ev)
	}
}

func (s *Session) apply(id uint64, ev Event) {
	s.mu.Lock()
	if id != s.exchange {
		s.mu.Unlock()
		return
	}

	var settled *model.Transcript
	switch ev := ev.(type) {
	case Started:
		s.state = StateThinking
	case Content:
		last := s.trailingAssistantLocked()
		if last == nil {
			break
		}
		last.Content = ev.Content
		split := marker.SplitContent(ev.Content)
		last.Split = &split
		s.state = s.streamingStateLocked(split)
	case Completed:
		s.state = StateDone
		s.finishLocked()
		settled = s.transcriptLocked()
	case Aborted:
		s.interruptLocked()
		settled = s.transcriptLocked()
	case Failed:
		s.logger.Error("Chat exchange failed", "session_id", s.id, "error", ev.Err)
		s.failLocked(ev.Err)
		settled = s.transcriptLocked()
	}
	s.mu.Unlock()

	s.notify()
	s.persist(settled)
}

// streamingStateLocked maps the current split to a UI state. The reasoner
// stays in thinking until a thought tag has been seen, so unlabeled text is
// never shown as thought.
func (s *Session) streamingStateLocked(split marker.Split) State {
	if !s.profile.Wrapped {
		return StateStreamingAnswer
	}
	switch {
	case split.Answered:
		return StateStreamingAnswer
	case split.HasThought:
		return StateStreamingThought
	default:
		return StateThinking
	}
}

// interruptLocked cancels the in-flight exchange, if any, and settles the
// trailing assistant message as cancelled. It reports whether it did anything.
func (s *Session) interruptLocked() bool {
	if !s.state.InFlight() {
		return false
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	// Invalidate any events still queued for this exchange.
	s.exchange++

	if last := s.trailingAssistantLocked(); last != nil {
		if last.Content == "" {
			s.messages = s.messages[:len(s.messages)-1]
		} else {
			last.Content += InterruptedAnnotation
			split := marker.SplitContent(last.Content)
			last.Split = &split
		}
	}
	s.state = StateCancelled
	return true
}

// failLocked replaces the trailing assistant reply with FailureMessage.
func (s *Session) failLocked(err error) {
	if last := s.trailingAssistantLocked(); last != nil {
		last.Content = FailureMessage
		last.Split = nil
	} else {
		s.messages = append(s.messages, model.Message{Role: model.RoleAssistant, Content: FailureMessage})
	}
	s.state = StateError
	s.lastErr = err
	s.finishLocked()
}

func (s *Session) finishLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) resetLocked(profile model.Profile) {
	s.id = uuid.NewString()
	s.createdAt = time.Now().UTC()
	s.profile = profile
	s.messages = []model.Message{{Role: model.RoleSystem, Content: profile.SystemMessage}}
	s.state = StateIdle
	s.lastErr = nil
}

func (s *Session) trailingAssistantLocked() *model.Message {
	if len(s.messages) == 0 {
		return nil
	}
	last := &s.messages[len(s.messages)-1]
	if last.Role != model.RoleAssistant {
		return nil
	}
	return last
}

// transcriptLocked returns a copy of the conversation for persistence, or nil
// when there is nothing beyond the system message.
func (s *Session) transcriptLocked() *model.Transcript {
	if len(s.messages) <= 1 {
		return nil
	}
	return &model.Transcript{
		ID:        s.id,
		Profile:   string(s.profile.Kind),
		Messages:  append([]model.Message(nil), s.messages...),
		CreatedAt: s.createdAt,
		UpdatedAt: time.Now().UTC(),
	}
}

// persist saves t outside the lock. Failures are logged and never reach the
// conversation.
func (s *Session) persist(t *model.Transcript) {
	if s.store == nil || t == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.store.SaveTranscript(ctx, t); err != nil {
		s.logger.Warn("Failed to save transcript", "transcript_id", t.ID, "error", err)
	}
}

func (s *Session) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}
