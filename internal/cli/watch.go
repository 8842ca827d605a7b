package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"pocket-chat-server/internal/cache"
	ws "pocket-chat-server/internal/websocket"
)

// websocketURL 把 HTTP 地址转换为 WebSocket 地址
func websocketURL(serverURL string) string {
	if rest, ok := strings.CutPrefix(serverURL, "https://"); ok {
		return "wss://" + rest + "/ws/threads"
	}
	return "ws://" + strings.TrimPrefix(serverURL, "http://") + "/ws/threads"
}

// Watch 订阅会话事件，每收到一个事件调用一次 fn
// 阻塞直到 ctx 取消或连接断开
func Watch(ctx context.Context, serverURL, token string, fn func(event *cache.ThreadEvent)) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, websocketURL(serverURL), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return ErrUnauthorized
		}
		return fmt.Errorf("连接失败: %w", err)
	}
	defer conn.Close()

	// ctx 取消时关闭连接，让 ReadMessage 返回
	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	})
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		var msg struct {
			Type    string            `json:"type"`
			Payload cache.ThreadEvent `json:"payload"`
		}
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != ws.TypeThreadEvent {
			continue
		}
		fn(&msg.Payload)
	}
}
