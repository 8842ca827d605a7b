package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocket-chat-server/internal/relay"
)

func TestReadStream(t *testing.T) {
	body := "data: {\"type\":\"text\",\"value\":\"He\"}\n\n" +
		": keep-alive\n\n" +
		"data: {\"type\":\"text\",\"value\":\"Hello\"}\n\n" +
		"data: [DONE]\n\n" +
		"data: {\"type\":\"text\",\"value\":\"ignored\"}\n\n"

	var frames []relay.Frame
	err := ReadStream(strings.NewReader(body), func(frame relay.Frame) error {
		frames = append(frames, frame)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []relay.Frame{
		{Type: relay.FrameText, Value: "He"},
		{Type: relay.FrameText, Value: "Hello"},
	}, frames)
}

func TestReadStreamIncomplete(t *testing.T) {
	err := ReadStream(strings.NewReader("data: {\"type\":\"text\",\"value\":\"He\"}\n\n"), func(relay.Frame) error { return nil })
	assert.ErrorIs(t, err, ErrStreamIncomplete)
}

func TestReadStreamInvalidFrame(t *testing.T) {
	err := ReadStream(strings.NewReader("data: {oops\n\n"), func(relay.Frame) error { return nil })
	assert.Error(t, err)
}

func TestDeltaPrinter(t *testing.T) {
	var out bytes.Buffer
	p := NewDeltaPrinter(&out)

	p.Print("Hel")
	p.Print("Hello")
	p.Print("Hello")
	assert.Equal(t, "Hello", out.String())

	// 不是前缀时另起一行
	p.Print("Bye")
	assert.Equal(t, "Hello\nBye", out.String())
}

func TestWebsocketURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:8080/ws/threads", websocketURL("http://localhost:8080"))
	assert.Equal(t, "wss://chat.example.com/ws/threads", websocketURL("https://chat.example.com"))
}
