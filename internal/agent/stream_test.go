package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEvents struct {
	events []string
	pos    int
	err    error
	failAt int
	closed bool
}

func (f *fakeEvents) Next() bool {
	if f.err != nil && f.pos == f.failAt {
		return false
	}
	if f.pos >= len(f.events) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeEvents) Current() string {
	return f.events[f.pos-1]
}

func (f *fakeEvents) Err() error {
	if f.pos == f.failAt {
		return f.err
	}
	return nil
}

func (f *fakeEvents) Close() error {
	f.closed = true
	return nil
}

func identity(s string) string { return s }

func TestChunkStreamSkipsEmptyEvents(t *testing.T) {
	src := &fakeEvents{events: []string{"", "Hel", "", "lo"}, failAt: -1}
	s, err := openChunkStream("test", src, identity)
	require.NoError(t, err)

	var got []string
	for s.Next() {
		got = append(got, s.Text())
	}
	assert.Equal(t, []string{"Hel", "lo"}, got)
	assert.NoError(t, s.Err())
	assert.NoError(t, s.Close())
	assert.True(t, src.closed)
}

func TestChunkStreamOpenError(t *testing.T) {
	src := &fakeEvents{err: errors.New(`{"error":{"code":"insufficient_quota"}}`), failAt: 0}
	s, err := openChunkStream("test", src, identity)
	assert.Nil(t, s)
	require.Error(t, err)
	assert.True(t, IsQuota(err))
	assert.True(t, src.closed)
}

func TestChunkStreamMidStreamError(t *testing.T) {
	src := &fakeEvents{events: []string{"a", "b", "c"}, err: errors.New("boom"), failAt: 2}
	s, err := openChunkStream("test", src, identity)
	require.NoError(t, err)

	var got []string
	for s.Next() {
		got = append(got, s.Text())
	}
	assert.Equal(t, []string{"a", "b"}, got)
	require.Error(t, s.Err())
	assert.Equal(t, KindFatal, Classify(s.Err()))
}

func TestChunkStreamEmpty(t *testing.T) {
	s, err := openChunkStream("test", &fakeEvents{failAt: -1}, identity)
	require.NoError(t, err)
	assert.False(t, s.Next())
	assert.NoError(t, s.Err())
}
