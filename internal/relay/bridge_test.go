package relay

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocket-chat-server/internal/agent"
	"pocket-chat-server/internal/mylog"
)

type fakeStream struct {
	chunks []string
	pos    int
	err    error
	onNext func(i int)
	closed bool
}

func (s *fakeStream) Next() bool {
	if s.pos >= len(s.chunks) {
		return false
	}
	if s.onNext != nil {
		s.onNext(s.pos)
	}
	s.pos++
	return true
}

func (s *fakeStream) Text() string { return s.chunks[s.pos-1] }
func (s *fakeStream) Err() error   { return s.err }
func (s *fakeStream) Close() error { s.closed = true; return nil }

func openWith(s agent.Stream, err error) Opener {
	return func(ctx context.Context) (agent.Stream, error) {
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

type persisted struct {
	texts  []string
	states []State
	err    error
}

func (p *persisted) persist(ctx context.Context, reply Reply) error {
	p.texts = append(p.texts, reply.Text)
	p.states = append(p.states, reply.State)
	return p.err
}

// frames 按 \n\n 拆分 SSE 响应
func frames(body string) []string {
	parts := strings.Split(body, "\n\n")
	return parts[:len(parts)-1]
}

func newBridge() *Bridge {
	return NewBridge(mylog.Discard())
}

func TestBridgeCumulativeFrames(t *testing.T) {
	rec := httptest.NewRecorder()
	stream := &fakeStream{chunks: []string{"Hel", "lo"}}
	p := &persisted{}

	state, err := newBridge().Run(context.Background(), Run{
		Writer:   NewWriter(rec),
		Open:     openWith(stream, nil),
		Persist:  p.persist,
		UserText: "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, StateDone, state)

	assert.Equal(t, []string{
		`data: {"type":"text","value":"Hel"}`,
		`data: {"type":"text","value":"Hello"}`,
		`data: [DONE]`,
	}, frames(rec.Body.String()))
	assert.Equal(t, []string{"Hello"}, p.texts)
	assert.Equal(t, []State{StateDone}, p.states)
	assert.True(t, stream.closed)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
}

func TestBridgeQuotaBeforeStream(t *testing.T) {
	rec := httptest.NewRecorder()
	p := &persisted{}

	state, err := newBridge().Run(context.Background(), Run{
		Writer:   NewWriter(rec),
		Open:     openWith(nil, errors.New(`429 {"error":{"code":"insufficient_quota"}}`)),
		Persist:  p.persist,
		UserText: "tell me a joke",
	})
	require.NoError(t, err)
	assert.Equal(t, StateFallback, state)

	got := frames(rec.Body.String())
	require.Len(t, got, 2)
	assert.True(t, strings.HasPrefix(got[0], `data: {"type":"text","value":`))
	assert.Equal(t, `data: [DONE]`, got[1])

	require.Len(t, p.texts, 1)
	assert.Equal(t, FallbackMessage("tell me a joke"), p.texts[0])
	assert.True(t, strings.HasSuffix(p.texts[0], "tell me a joke"))
	assert.Equal(t, []State{StateFallback}, p.states)
}

func TestBridgeQuotaMidStream(t *testing.T) {
	rec := httptest.NewRecorder()
	p := &persisted{}
	stream := &fakeStream{
		chunks: []string{"partial"},
		err:    agent.NewProviderError(agent.ProviderOpenAI, errors.New("You exceeded your current quota")),
	}

	state, err := newBridge().Run(context.Background(), Run{
		Writer:   NewWriter(rec),
		Open:     openWith(stream, nil),
		Persist:  p.persist,
		UserText: "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, StateFallback, state)

	got := frames(rec.Body.String())
	require.Len(t, got, 3)
	assert.Equal(t, `data: {"type":"text","value":"partial"}`, got[0])
	assert.Contains(t, got[1], "You said:\\nhello")
	assert.Equal(t, `data: [DONE]`, got[2])
	assert.Equal(t, []string{FallbackMessage("hello")}, p.texts)
}

func TestBridgeOpenFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewWriter(rec)
	p := &persisted{}

	state, err := newBridge().Run(context.Background(), Run{
		Writer:  w,
		Open:    openWith(nil, errors.New("invalid api key")),
		Persist: p.persist,
	})
	require.Error(t, err)
	assert.Equal(t, StateErrored, state)
	assert.False(t, w.Started())
	assert.Empty(t, rec.Body.String())
	assert.Empty(t, p.texts)
}

func TestBridgeErrorFrame(t *testing.T) {
	rec := httptest.NewRecorder()
	p := &persisted{}
	stream := &fakeStream{chunks: []string{"a"}, err: errors.New("model overloaded")}

	state, err := newBridge().Run(context.Background(), Run{
		Writer:  NewWriter(rec),
		Open:    openWith(stream, nil),
		Persist: p.persist,
	})
	require.NoError(t, err)
	assert.Equal(t, StateErrored, state)

	assert.Equal(t, []string{
		`data: {"type":"text","value":"a"}`,
		`data: {"type":"error","value":"model overloaded"}`,
	}, frames(rec.Body.String()))
	assert.Empty(t, p.texts)
}

func TestBridgeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := httptest.NewRecorder()
	p := &persisted{}
	stream := &fakeStream{
		chunks: []string{"one ", "two ", "three"},
		onNext: func(i int) {
			if i == 1 {
				cancel()
			}
		},
	}

	state, err := newBridge().Run(ctx, Run{
		Writer:  NewWriter(rec),
		Open:    openWith(stream, nil),
		Persist: p.persist,
	})
	require.NoError(t, err)
	assert.Equal(t, StateAborted, state)

	assert.Equal(t, []string{`data: {"type":"text","value":"one "}`}, frames(rec.Body.String()))
	// 已累积的文本仍然尽力保存
	assert.Equal(t, []string{"one "}, p.texts)
	assert.Equal(t, []State{StateAborted}, p.states)
}

func TestBridgeClientAbortError(t *testing.T) {
	rec := httptest.NewRecorder()
	p := &persisted{}
	stream := &fakeStream{chunks: []string{"x"}, err: errors.New("request aborted")}

	state, err := newBridge().Run(context.Background(), Run{
		Writer:  NewWriter(rec),
		Open:    openWith(stream, nil),
		Persist: p.persist,
	})
	require.NoError(t, err)
	assert.Equal(t, StateAborted, state)
	assert.NotContains(t, rec.Body.String(), "[DONE]")
	assert.NotContains(t, rec.Body.String(), `"type":"error"`)
}

// failingWriter 第一次写入后模拟客户端断开
type failingWriter struct {
	*httptest.ResponseRecorder
	writes int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.writes++
	if w.writes > 1 {
		return 0, errors.New("write: broken pipe")
	}
	return w.ResponseRecorder.Write(p)
}

func TestBridgeWriteFailure(t *testing.T) {
	fw := &failingWriter{ResponseRecorder: httptest.NewRecorder()}
	p := &persisted{}
	stream := &fakeStream{chunks: []string{"Hel", "lo", " world"}}

	state, err := newBridge().Run(context.Background(), Run{
		Writer:  NewWriter(fw),
		Open:    openWith(stream, nil),
		Persist: p.persist,
	})
	require.NoError(t, err)
	assert.Equal(t, StateAborted, state)
	assert.Equal(t, 2, stream.pos)
	assert.Equal(t, []string{"Hello"}, p.texts)
}

func TestBridgePersistFailureIsSwallowed(t *testing.T) {
	rec := httptest.NewRecorder()
	p := &persisted{err: errors.New("database is down")}

	state, err := newBridge().Run(context.Background(), Run{
		Writer:  NewWriter(rec),
		Open:    openWith(&fakeStream{chunks: []string{"ok"}}, nil),
		Persist: p.persist,
	})
	require.NoError(t, err)
	assert.Equal(t, StateDone, state)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasSuffix(rec.Body.String(), "data: [DONE]\n\n"))
}

func TestBridgeEmptyReplyNotPersisted(t *testing.T) {
	rec := httptest.NewRecorder()
	p := &persisted{}

	state, err := newBridge().Run(context.Background(), Run{
		Writer:  NewWriter(rec),
		Open:    openWith(&fakeStream{}, nil),
		Persist: p.persist,
	})
	require.NoError(t, err)
	assert.Equal(t, StateDone, state)
	assert.Equal(t, "data: [DONE]\n\n", rec.Body.String())
	assert.Empty(t, p.texts)
}
