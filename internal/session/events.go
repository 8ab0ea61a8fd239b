package session

import "fmt"

// State is the UI-facing phase of the current exchange.
type State int

const (
	StateIdle State = iota
	// StateThinking covers the wait for the first byte and, for the reasoner
	// profile, any text received before a thought tag was seen.
	StateThinking
	StateStreamingThought
	StateStreamingAnswer
	StateDone
	StateCancelled
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateThinking:
		return "thinking"
	case StateStreamingThought:
		return "streaming-thought"
	case StateStreamingAnswer:
		return "streaming-answer"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// InFlight reports whether an exchange is still running in this state.
func (s State) InFlight() bool {
	return s == StateThinking || s == StateStreamingThought || s == StateStreamingAnswer
}

// Event is produced by an exchange and consumed by the session reducer.
// The set of variants is closed.
type Event interface {
	isEvent()
}

// Started is emitted once the exchange goroutine begins.
type Started struct{}

// Content carries the cumulative assistant text received so far.
type Content struct {
	Content string
}

// Completed is emitted when the stream ended without cancellation.
type Completed struct{}

// Aborted is emitted when the exchange was cancelled, locally or by the relay.
type Aborted struct{}

// Failed is emitted on a transport or read failure.
type Failed struct {
	Err error
}

func (Started) isEvent()   {}
func (Content) isEvent()   {}
func (Completed) isEvent() {}
func (Aborted) isEvent()   {}
func (Failed) isEvent()    {}
