package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocket-chat-server/internal/cache"
	"pocket-chat-server/internal/mylog"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(mylog.Discard())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func register(t *testing.T, hub *Hub, userID, orgScopeID string) *Client {
	t.Helper()
	client := NewClient(hub, nil, userID, orgScopeID, mylog.Discard())
	hub.Register(client)
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		_, ok := hub.clients[userID][client]
		return ok
	}, time.Second, 5*time.Millisecond)
	return client
}

func receive(t *testing.T, client *Client) *cache.ThreadEvent {
	t.Helper()
	select {
	case data := <-client.send:
		var msg struct {
			Type    string            `json:"type"`
			Payload cache.ThreadEvent `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(data, &msg))
		require.Equal(t, TypeThreadEvent, msg.Type)
		return &msg.Payload
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestDispatchScopesByUserAndOrganization(t *testing.T) {
	hub := startHub(t)
	personal := register(t, hub, "user-1", "user-1")
	team := register(t, hub, "user-1", "org-1")
	other := register(t, hub, "user-2", "user-2")

	delivered := hub.Dispatch(&cache.ThreadEvent{
		Type:           cache.EventThreadCreated,
		ThreadID:       "t-1",
		UserID:         "user-1",
		OrganizationID: "user-1",
	})

	assert.Equal(t, 1, delivered)
	assert.Equal(t, "t-1", receive(t, personal).ThreadID)
	assert.Empty(t, team.send)
	assert.Empty(t, other.send)
}

func TestPublishThreadEventSetsTimestamp(t *testing.T) {
	hub := startHub(t)
	client := register(t, hub, "user-1", "org-1")

	require.NoError(t, hub.PublishThreadEvent(context.Background(), &cache.ThreadEvent{
		Type:           cache.EventMessageCreated,
		ThreadID:       "t-1",
		MessageID:      "m-1",
		UserID:         "user-1",
		OrganizationID: "org-1",
	}))

	event := receive(t, client)
	assert.Equal(t, "m-1", event.MessageID)
	assert.NotZero(t, event.Timestamp)
}

func TestPubSubMessageUsesChannelUser(t *testing.T) {
	hub := startHub(t)
	client := register(t, hub, "user-1", "user-1")

	payload, err := json.Marshal(&cache.ThreadEvent{
		Type:           cache.EventThreadDeleted,
		ThreadID:       "t-1",
		UserID:         "user-2",
		OrganizationID: "user-1",
	})
	require.NoError(t, err)

	hub.handlePubSubMessage(&redis.Message{Channel: cache.ThreadChannel("user-1"), Payload: string(payload)})
	assert.Equal(t, "user-1", receive(t, client).UserID)

	// 无法解析的频道和消息体直接忽略
	hub.handlePubSubMessage(&redis.Message{Channel: "other", Payload: string(payload)})
	hub.handlePubSubMessage(&redis.Message{Channel: cache.ThreadChannel("user-1"), Payload: "{"})
	assert.Empty(t, client.send)
}

func TestUnregisterClosesClient(t *testing.T) {
	hub := startHub(t)
	client := register(t, hub, "user-1", "user-1")

	hub.Unregister(client)
	require.Eventually(t, func() bool { return hub.ClientCount("user-1") == 0 }, time.Second, 5*time.Millisecond)

	_, ok := <-client.send
	assert.False(t, ok)

	// 重复注销不会阻塞或 panic
	hub.Unregister(client)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(mylog.Discard())
	go hub.Run(ctx)

	client := NewClient(hub, nil, "user-1", "user-1", mylog.Discard())
	hub.Register(client)
	cancel()
	<-hub.done

	_, ok := <-client.send
	assert.False(t, ok)

	// Hub 停止后注册和注销立即返回
	hub.Unregister(client)
	late := NewClient(hub, nil, "user-2", "user-2", mylog.Discard())
	hub.Register(late)
	_, ok = <-late.send
	assert.False(t, ok)
}
