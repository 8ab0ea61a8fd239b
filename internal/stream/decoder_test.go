package stream

import (
	"context"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deltaLine(content string) string {
	return `data: {"choices":[{"delta":{"content":"` + content + `"}}]}` + "\n\n"
}

func contentFrames(frames []Frame) []Frame {
	var out []Frame
	for _, f := range frames {
		if f.Kind == FrameContent {
			out = append(out, f)
		}
	}
	return out
}

// TestDecoder_SplitAtEveryByte feeds the same event split in two at every
// possible byte boundary and expects the same single frame each time.
func TestDecoder_SplitAtEveryByte(t *testing.T) {
	input := []byte(deltaLine("hi"))

	for i := 0; i <= len(input); i++ {
		dec := NewDecoder()
		var frames []Frame
		frames = append(frames, dec.Feed(input[:i])...)
		frames = append(frames, dec.Feed(input[i:])...)

		require.Len(t, frames, 1, "split at byte %d", i)
		assert.Equal(t, FrameContent, frames[0].Kind)
		assert.Equal(t, "hi", frames[0].Content)
	}
}

func TestDecoder_MultiByteRuneAcrossChunks(t *testing.T) {
	input := []byte(deltaLine("你好") + deltaLine("，世界"))

	for i := 0; i <= len(input); i++ {
		dec := NewDecoder()
		frames := append(dec.Feed(input[:i]), dec.Feed(input[i:])...)

		require.Len(t, frames, 2, "split at byte %d", i)
		assert.Equal(t, "你好", frames[0].Content)
		assert.Equal(t, "你好，世界", frames[1].Content)
		assert.Equal(t, "，世界", frames[1].Delta)
	}
}

func TestDecoder_MalformedLineIsSkipped(t *testing.T) {
	dec := NewDecoder()
	input := deltaLine("a") + "data: {not json\n\n" + deltaLine("b")

	frames := dec.Feed([]byte(input))

	require.Len(t, frames, 2)
	assert.Equal(t, "a", frames[0].Content)
	assert.Equal(t, "ab", frames[1].Content)
}

func TestDecoder_Payloads(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "Message content is used when there is no delta",
			input: `data: {"choices":[{"message":{"role":"assistant","content":"full"}}]}` + "\n",
			want:  []string{"full"},
		},
		{
			name:  "Byte order mark is stripped",
			input: "data: \ufeff" + `{"choices":[{"delta":{"content":"x"}}]}` + "\n",
			want:  []string{"x"},
		},
		{
			name:  "CRLF line endings",
			input: `data: {"choices":[{"delta":{"content":"x"}}]}` + "\r\n\r\n",
			want:  []string{"x"},
		},
		{
			name:  "Non-object JSON is skipped",
			input: "data: 42\ndata: \"str\"\ndata: null\n" + deltaLine("ok"),
			want:  []string{"ok"},
		},
		{
			name:  "Comments and other fields are ignored",
			input: ": keep-alive\nevent: message\nid: 7\n" + deltaLine("ok"),
			want:  []string{"ok"},
		},
		{
			name:  "Empty deltas produce no frame",
			input: `data: {"choices":[{"delta":{"role":"assistant"}}]}` + "\n" + `data: {"choices":[]}` + "\n" + deltaLine("ok"),
			want:  []string{"ok"},
		},
		{
			name:  "Trailing partial line is held back",
			input: deltaLine("ok") + `data: {"choices":[{"delta":{"content":"late"}}]}`,
			want:  []string{"ok"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dec := NewDecoder()
			var got []string
			for _, f := range contentFrames(dec.Feed([]byte(tc.input))) {
				got = append(got, f.Content)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecoder_Sentinels(t *testing.T) {
	t.Run("Done stops processing", func(t *testing.T) {
		dec := NewDecoder()
		frames := dec.Feed([]byte(deltaLine("a") + "data: [DONE]\n\n" + deltaLine("b")))

		require.Len(t, frames, 2)
		assert.Equal(t, FrameDone, frames[1].Kind)
		assert.Equal(t, "a", frames[1].Content)
		assert.True(t, dec.Finished())
		assert.Empty(t, dec.Feed([]byte(deltaLine("c"))))
		assert.Equal(t, "a", dec.Content())
	})

	t.Run("Aborted stops processing", func(t *testing.T) {
		dec := NewDecoder()
		frames := dec.Feed([]byte(deltaLine("a") + "data: [ABORTED]\n\n"))

		require.Len(t, frames, 2)
		assert.Equal(t, FrameAborted, frames[1].Kind)
		assert.True(t, dec.Finished())
	})
}

func TestRead(t *testing.T) {
	t.Run("Reads one byte at a time", func(t *testing.T) {
		body := deltaLine("你") + deltaLine("好") + "data: [DONE]\n\n"
		ch := make(chan Frame, 8)

		err := Read(context.Background(), iotest.OneByteReader(strings.NewReader(body)), ch)
		require.NoError(t, err)

		var frames []Frame
		for f := range ch {
			frames = append(frames, f)
		}
		require.Len(t, frames, 3)
		assert.Equal(t, "你好", frames[1].Content)
		assert.Equal(t, FrameDone, frames[2].Kind)
	})

	t.Run("End of input without sentinel is clean", func(t *testing.T) {
		ch := make(chan Frame, 8)
		err := Read(context.Background(), strings.NewReader(deltaLine("x")), ch)
		require.NoError(t, err)

		frames := []Frame{}
		for f := range ch {
			frames = append(frames, f)
		}
		assert.Len(t, frames, 1)
	})

	t.Run("Read errors are returned", func(t *testing.T) {
		ch := make(chan Frame, 8)
		err := Read(context.Background(), iotest.ErrReader(assert.AnError), ch)
		assert.ErrorIs(t, err, assert.AnError)
		_, open := <-ch
		assert.False(t, open)
	})

	t.Run("Cancelled context stops delivery", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		ch := make(chan Frame)

		err := Read(ctx, strings.NewReader(deltaLine("x")), ch)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
