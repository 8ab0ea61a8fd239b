package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"portfolio-ai/backend/internal/session"
)

var (
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	thoughtStyle  = lipgloss.NewStyle().Faint(true).Italic(true)
	thinkingStyle = lipgloss.NewStyle().Faint(true)
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func plain(strs ...string) string { return strings.Join(strs, " ") }

// renderer prints one exchange incrementally from successive snapshots.
type renderer struct {
	out      io.Writer
	thinking bool
	thought  string
	answer   string
	inAnswer bool
}

func newRenderer(out io.Writer) *renderer {
	return &renderer{out: out}
}

// update prints whatever snap adds over what was already printed. It reports
// whether the exchange has settled.
func (r *renderer) update(snap session.Snapshot) bool {
	split := snap.Split
	wrapped := snap.Profile.Wrapped

	if snap.State == session.StateThinking && !r.thinking {
		r.thinking = true
		fmt.Fprintln(r.out, thinkingStyle.Render("thinking..."))
	}

	switch snap.State {
	case session.StateStreamingThought, session.StateStreamingAnswer, session.StateDone:
		if wrapped && split.HasThought {
			r.emit(&r.thought, split.Thought, thoughtStyle.Render)
		}
		showAnswer := !wrapped || split.Answered || snap.State == session.StateDone
		if showAnswer && split.Answer != "" {
			if !r.inAnswer {
				r.inAnswer = true
				if r.thought != "" {
					fmt.Fprint(r.out, "\n\n")
				}
			}
			r.emit(&r.answer, split.Answer, plain)
		}
	}

	switch snap.State {
	case session.StateDone:
		fmt.Fprintln(r.out)
		return true
	case session.StateCancelled:
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, warningStyle.Render("[interrupted]"))
		return true
	case session.StateError:
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, errorStyle.Render(session.FailureMessage))
		return true
	case session.StateIdle:
		return true
	}
	return false
}

// emit prints the part of next not yet printed. A next that does not extend
// the printed text (trimming moved a boundary) is skipped.
func (r *renderer) emit(printed *string, next string, render func(...string) string) {
	if !strings.HasPrefix(next, *printed) {
		return
	}
	delta := next[len(*printed):]
	if delta == "" {
		return
	}
	fmt.Fprint(r.out, render(delta))
	*printed = next
}
