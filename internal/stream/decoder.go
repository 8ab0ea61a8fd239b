// Package stream decodes the Server-Sent Events body produced by the relay
// into content frames.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	dataPrefix = "data: "

	// DoneSentinel ends a stream cleanly.
	DoneSentinel = "[DONE]"
	// AbortedSentinel is appended by the relay when the stream was cancelled.
	AbortedSentinel = "[ABORTED]"
)

// FrameKind tells what a Frame carries.
type FrameKind int

const (
	FrameContent FrameKind = iota
	FrameDone
	FrameAborted
)

func (k FrameKind) String() string {
	switch k {
	case FrameContent:
		return "content"
	case FrameDone:
		return "done"
	case FrameAborted:
		return "aborted"
	default:
		return fmt.Sprintf("FrameKind(%d)", int(k))
	}
}

// Frame is one decoded SSE event.
type Frame struct {
	Kind FrameKind
	// Delta is the text this frame added.
	Delta string
	// Content is the concatenation of every delta so far.
	Content string
}

// completionChunk covers both the streamed delta shape and the buffered
// message shape of an OpenAI-compatible completion.
type completionChunk struct {
	Choices []struct {
		Delta   openai.ChatCompletionStreamChoiceDelta `json:"delta"`
		Message openai.ChatCompletionMessage           `json:"message"`
	} `json:"choices"`
}

// Decoder turns arbitrarily fragmented byte chunks into Frames. It keeps the
// trailing partial line between calls and the running content. A Decoder is
// tied to one response body and is not safe for concurrent use.
type Decoder struct {
	buf      []byte
	content  strings.Builder
	finished bool
	logger   *slog.Logger
}

// NewDecoder returns a Decoder that logs skipped frames to slog.Default().
func NewDecoder() *Decoder {
	return &Decoder{logger: slog.Default()}
}

// Content returns everything accumulated so far.
func (d *Decoder) Content() string {
	return d.content.String()
}

// Finished reports whether a [DONE] or [ABORTED] sentinel was seen.
func (d *Decoder) Finished() bool {
	return d.finished
}

// Feed consumes one chunk and returns the frames completed by it. After a
// sentinel frame the decoder ignores all further input.
func (d *Decoder) Feed(chunk []byte) []Frame {
	if d.finished {
		return nil
	}
	d.buf = append(d.buf, chunk...)

	var frames []Frame
	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			break
		}
		line := string(bytes.TrimRight(d.buf[:idx], "\r"))
		d.buf = d.buf[idx+1:]

		frame, ok := d.decodeLine(line)
		if !ok {
			continue
		}
		frames = append(frames, frame)
		if frame.Kind != FrameContent {
			d.finished = true
			d.buf = nil
			break
		}
	}
	return frames
}

func (d *Decoder) decodeLine(line string) (Frame, bool) {
	if !strings.HasPrefix(line, dataPrefix) {
		// Comments, keep-alives, blank separators and other SSE fields.
		return Frame{}, false
	}
	payload := line[len(dataPrefix):]

	switch payload {
	case DoneSentinel:
		return Frame{Kind: FrameDone, Content: d.content.String()}, true
	case AbortedSentinel:
		return Frame{Kind: FrameAborted, Content: d.content.String()}, true
	}

	payload = cleanPayload(payload)

	var raw json.RawMessage
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		d.logger.Warn("Skipping malformed stream frame", "payload", payload, "error", err)
		return Frame{}, false
	}
	if len(raw) == 0 || raw[0] != '{' {
		d.logger.Warn("Skipping non-object stream frame", "payload", payload)
		return Frame{}, false
	}

	var chunk completionChunk
	if err := json.Unmarshal(raw, &chunk); err != nil {
		d.logger.Warn("Skipping stream frame with unexpected shape", "payload", payload, "error", err)
		return Frame{}, false
	}

	delta := extractContent(&chunk)
	if delta == "" {
		return Frame{}, false
	}
	d.content.WriteString(delta)
	return Frame{Kind: FrameContent, Delta: delta, Content: d.content.String()}, true
}

// cleanPayload trims the payload, drops a leading byte-order mark and, should
// the upstream have framed several lines into one event, keeps the first
// non-empty one.
func cleanPayload(payload string) string {
	payload = strings.TrimSpace(payload)
	if stripped, err := unicode.UTF8BOM.NewDecoder().String(payload); err == nil {
		payload = stripped
	}
	if strings.Contains(payload, "\n") {
		for _, part := range strings.Split(payload, "\n") {
			if strings.TrimSpace(part) != "" {
				return part
			}
		}
	}
	return payload
}

func extractContent(chunk *completionChunk) string {
	if len(chunk.Choices) == 0 {
		return ""
	}
	first := chunk.Choices[0]
	if first.Delta.Content != "" {
		return first.Delta.Content
	}
	return first.Message.Content
}

// Read decodes r until a sentinel, end of input, or ctx is done, sending
// every frame on ch. It closes ch before returning. A clean end of input
// without a sentinel returns nil.
func Read(ctx context.Context, r io.Reader, ch chan<- Frame) error {
	defer close(ch)

	dec := NewDecoder()
	// The UTF-8 decoder carries partial multi-byte sequences across reads and
	// replaces invalid bytes.
	src := transform.NewReader(r, unicode.UTF8.NewDecoder())
	buf := make([]byte, 4096)

	for {
		n, err := src.Read(buf)
		if n > 0 {
			for _, frame := range dec.Feed(buf[:n]) {
				select {
				case ch <- frame:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if dec.Finished() {
				return nil
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not read stream: %w", err)
		}
	}
}
