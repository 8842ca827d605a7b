package service_test

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"pocket-chat-server/internal/agent"
	"pocket-chat-server/internal/cache"
	"pocket-chat-server/internal/mytesting"
	"pocket-chat-server/internal/relay"
	"pocket-chat-server/internal/service"
	"pocket-chat-server/pkg/jwt"
)

const (
	testSessionSecret   = "session-secret-session-secret-123"
	testDatastoreSecret = "datastore-secret-datastore-secret"
)

func newJWTService() *jwt.JWTService {
	return jwt.NewJWTService(testSessionSecret, time.Hour, 24*time.Hour).
		WithDatastore(testDatastoreSecret, time.Minute)
}

// execContext 个人模式下的执行上下文
func execContext(s *mytesting.Suite, userID string) *service.ExecutionContext {
	return &service.ExecutionContext{
		UserID:     userID,
		Email:      userID + "@example.com",
		Name:       userID,
		OrgScopeID: userID,
		Datastore:  s.Client(userID, userID),
	}
}

func userMessage(id, text string) relay.ChatMessage {
	content, _ := json.Marshal(text)
	return relay.ChatMessage{ID: id, Role: agent.RoleUser, Content: content}
}

// recordingPublisher 记录发布的事件
type recordingPublisher struct {
	mu     sync.Mutex
	events []cache.ThreadEvent
}

func (p *recordingPublisher) PublishThreadEvent(ctx context.Context, event *cache.ThreadEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

// memoryBlacklist 内存黑名单
type memoryBlacklist struct {
	mu     sync.Mutex
	hashes map[string]time.Time
}

func newMemoryBlacklist() *memoryBlacklist {
	return &memoryBlacklist{hashes: map[string]time.Time{}}
}

func (b *memoryBlacklist) BlacklistToken(ctx context.Context, tokenHash string, expireAt time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hashes[tokenHash] = expireAt
	return nil
}

func (b *memoryBlacklist) IsTokenBlacklisted(ctx context.Context, tokenHash string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.hashes[tokenHash]
	return ok
}

// scriptedAgent 按预设输出的模型
type scriptedAgent struct {
	chunks  []string
	openErr error
	err     error

	requests []*agent.Request
}

func (a *scriptedAgent) Name() string { return "scripted" }

func (a *scriptedAgent) Stream(ctx context.Context, req *agent.Request) (agent.Stream, error) {
	a.requests = append(a.requests, req)
	if a.openErr != nil {
		return nil, a.openErr
	}
	return &scriptedStream{chunks: a.chunks, err: a.err}, nil
}

type scriptedStream struct {
	chunks []string
	pos    int
	err    error
}

func (s *scriptedStream) Next() bool {
	if s.pos >= len(s.chunks) {
		return false
	}
	s.pos++
	return true
}

func (s *scriptedStream) Text() string { return s.chunks[s.pos-1] }
func (s *scriptedStream) Err() error   { return s.err }
func (s *scriptedStream) Close() error { return nil }
