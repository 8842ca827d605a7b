package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"pocket-chat-server/internal/model"
	"pocket-chat-server/internal/relay"
	"pocket-chat-server/internal/repository"
	"pocket-chat-server/internal/service"
)

// ErrUnauthorized 服务端返回 401，需要重新登录
var ErrUnauthorized = errors.New("未登录或登录已过期，请运行 'chatctl login'")

// APIError 服务端返回的错误
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API 错误 (%d): %s", e.StatusCode, e.Message)
}

// Client API 客户端
// baseURL: 例如 http://localhost:8080
// token: 会话 Token，以 Bearer 方式发送
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient 创建 API 客户端
// 聊天回复是长连接，不设置整体超时，由 ctx 控制
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{},
	}
}

// requestTimeout 普通请求的超时
const requestTimeout = 30 * time.Second

// Login 使用邮箱密码登录
func (c *Client) Login(ctx context.Context, email, password string) (*service.LoginResponse, error) {
	var result service.LoginResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", &service.LoginRequest{Email: email, Password: password}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Logout 使当前 Token 和 Refresh Token 失效
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/auth/logout", &service.LogoutRequest{RefreshToken: refreshToken}, nil)
}

// Session 当前会话信息
func (c *Client) Session(ctx context.Context) (*service.SessionResponse, error) {
	var result service.SessionResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/auth/session", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Threads 会话列表
func (c *Client) Threads(ctx context.Context) ([]model.Thread, error) {
	var result struct {
		Threads []model.Thread `json:"threads"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/chat/threads", nil, &result); err != nil {
		return nil, err
	}
	return result.Threads, nil
}

// CreateThread 创建空会话
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	var result struct {
		ThreadID string `json:"threadId"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/chat/threads", nil, &result); err != nil {
		return "", err
	}
	return result.ThreadID, nil
}

// Messages 会话的消息
func (c *Client) Messages(ctx context.Context, threadID string) ([]model.Message, error) {
	var result struct {
		Messages []model.Message `json:"messages"`
	}
	path := "/api/chat/threads/" + url.PathEscape(threadID) + "/messages"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Messages, nil
}

// RenameThread 修改会话标题
func (c *Client) RenameThread(ctx context.Context, threadID, title string) error {
	body := map[string]string{"title": title}
	return c.doJSON(ctx, http.MethodPatch, "/api/chat/threads/"+url.PathEscape(threadID), body, nil)
}

// DeleteThread 删除会话
func (c *Client) DeleteThread(ctx context.Context, threadID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/chat/threads/"+url.PathEscape(threadID), nil, nil)
}

// Usage 当前组织范围的用量
func (c *Client) Usage(ctx context.Context) (*repository.UsageSummary, error) {
	var result repository.UsageSummary
	if err := c.doJSON(ctx, http.MethodGet, "/api/usage", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Chat 发送一条用户消息并消费 SSE 回复
// onText 每收到一帧调用一次，参数是到目前为止的完整回复
// 返回:
//   - string: 最终的完整回复
//   - error: 请求失败或回复中途出错
func (c *Client) Chat(ctx context.Context, threadID, text string, onText func(full string)) (string, error) {
	content, err := json.Marshal(text)
	if err != nil {
		return "", err
	}
	body := map[string]any{
		"threadId":           threadID,
		"assistantMessageId": uuid.NewString(),
		"messages": []map[string]any{
			{"id": uuid.NewString(), "role": model.MessageRoleUser, "content": json.RawMessage(content)},
		},
	}

	resp, err := c.send(ctx, http.MethodPost, "/api/chat", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var full string
	err = ReadStream(resp.Body, func(frame relay.Frame) error {
		switch frame.Type {
		case relay.FrameText:
			full = frame.Value
			if onText != nil {
				onText(full)
			}
			return nil
		case relay.FrameError:
			return fmt.Errorf("回复中断: %s", frame.Value)
		default:
			return nil
		}
	})
	return full, err
}

// doJSON 发送 JSON 请求并解析响应
// out 为 nil 时忽略响应体
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := c.send(ctx, method, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}

// send 发送请求，非 2xx 响应转换为错误
func (c *Client) send(ctx context.Context, method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	message := gjson.GetBytes(data, "error").String()
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return nil, &APIError{StatusCode: resp.StatusCode, Message: message}
}
