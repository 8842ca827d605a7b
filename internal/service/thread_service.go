package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/datatypes"

	"pocket-chat-server/internal/cache"
	"pocket-chat-server/internal/model"
	"pocket-chat-server/internal/relay"
	"pocket-chat-server/pkg/util"
)

// 会话相关错误
var (
	ErrThreadCreate   = errors.New("failed to create thread")
	ErrThreadNotFound = errors.New("thread not found")
	ErrTitleRequired  = errors.New("title is required")
	ErrMessageSave    = errors.New("failed to save message")
)

// ThreadService 会话服务
// 负责会话的懒创建、消息落库以及会话的增删改查
type ThreadService struct {
	usage     *UsageService  // 用量计费
	publisher EventPublisher // 会话事件发布，可为 nil
	logger    *slog.Logger
}

// NewThreadService 创建 ThreadService 实例
func NewThreadService(usage *UsageService, publisher EventPublisher, logger *slog.Logger) *ThreadService {
	return &ThreadService{
		usage:     usage,
		publisher: publisher,
		logger:    logger,
	}
}

// EnsureThread 获取会话，不存在时创建
// 首次创建前确保用户记录存在，个人模式下还要确保个人组织存在
// 参数:
//   - ctx: 上下文
//   - ec: 执行上下文
//   - threadID: 客户端生成的会话 ID
//
// 返回:
//   - *model.Thread: 会话
//   - error: 任何一步失败都包装为 ErrThreadCreate
func (s *ThreadService) EnsureThread(ctx context.Context, ec *ExecutionContext, threadID string) (*model.Thread, error) {
	thread, err := ec.Datastore.FindThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrThreadCreate, err)
	}
	if thread != nil {
		return thread, nil
	}

	return s.create(ctx, ec, threadID)
}

// create 补齐前置记录并创建会话
func (s *ThreadService) create(ctx context.Context, ec *ExecutionContext, threadID string) (*model.Thread, error) {
	// 1. 用户记录
	if err := ec.Datastore.EnsureUser(ctx, ec.Email, ec.Name); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrThreadCreate, err)
	}

	// 2. 个人组织，非个人模式下不做任何事
	if err := ec.Datastore.EnsurePersonalOrganization(ctx, PersonalOrganizationName); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrThreadCreate, err)
	}

	// 3. 会话，同 ID 并发创建时得到同一行
	thread, err := ec.Datastore.CreateThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrThreadCreate, err)
	}

	s.publish(ctx, ec, cache.EventThreadCreated, thread.ID, func(e *cache.ThreadEvent) {
		e.Title = thread.Title
	})
	return thread, nil
}

// RecordUserMessage 保存本轮最后一条用户消息
// 按消息 ID 幂等写入；会话还没有标题时用消息文本生成标题
// 参数:
//   - ctx: 上下文
//   - ec: 执行上下文
//   - thread: 所属会话
//   - messages: 客户端提交的完整消息列表
//
// 返回:
//   - string: 用户消息文本，没有用户消息时为空
//   - error: 写入失败返回 ErrMessageSave
func (s *ThreadService) RecordUserMessage(ctx context.Context, ec *ExecutionContext, thread *model.Thread, messages []relay.ChatMessage) (string, error) {
	last, ok := relay.LastUserMessage(messages)
	if !ok {
		return "", nil
	}
	text := last.Text()
	if text == "" {
		return "", nil
	}

	messageID := last.ID
	if messageID == "" {
		messageID = util.NewID()
	}
	message := &model.Message{
		ID:       messageID,
		ThreadID: thread.ID,
		Role:     model.MessageRoleUser,
		Content:  text,
		Metadata: datatypes.NewJSONType(model.MessageMetadata{Parts: last.MetadataParts()}),
	}
	if err := ec.Datastore.UpsertMessage(ctx, message); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMessageSave, err)
	}
	if err := ec.Datastore.TouchThread(ctx, thread.ID); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMessageSave, err)
	}

	if thread.Title == nil {
		title := relay.DeriveTitle(text)
		set, err := ec.Datastore.SetThreadTitleOnce(ctx, thread.ID, title)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrMessageSave, err)
		}
		if set {
			thread.Title = &title
			s.publish(ctx, ec, cache.EventThreadUpdated, thread.ID, func(e *cache.ThreadEvent) {
				e.Title = thread.Title
			})
		}
	}

	s.publish(ctx, ec, cache.EventMessageCreated, thread.ID, func(e *cache.ThreadEvent) {
		e.MessageID = messageID
	})
	return text, nil
}

// RecordAssistantMessage 保存助手回复
// 额度耗尽时的兜底回复不计费
// 参数:
//   - ctx: 上下文，通常已经脱离请求的取消信号
//   - ec: 执行上下文
//   - threadID: 会话 ID
//   - messageID: 助手消息 ID
//   - reply: 助手回复
//
// 返回:
//   - error: 写入失败
func (s *ThreadService) RecordAssistantMessage(ctx context.Context, ec *ExecutionContext, threadID, messageID string, reply relay.Reply) error {
	message := &model.Message{
		ID:       messageID,
		ThreadID: threadID,
		Role:     model.MessageRoleAssistant,
		Content:  reply.Text,
		Metadata: datatypes.NewJSONType(model.MessageMetadata{
			Parts: []model.MessagePart{{Type: "text", Text: reply.Text}},
		}),
	}
	if err := ec.Datastore.UpsertMessage(ctx, message); err != nil {
		return err
	}
	if err := ec.Datastore.TouchThread(ctx, threadID); err != nil {
		return err
	}

	if reply.State != relay.StateFallback && s.usage != nil {
		if err := s.usage.Record(ctx, ec, threadID, messageID, reply.Text); err != nil {
			// 用量记录失败不影响消息本身
			s.logger.ErrorContext(ctx, "record usage failed", "error", err, "message_id", messageID)
		}
	}

	s.publish(ctx, ec, cache.EventMessageCreated, threadID, func(e *cache.ThreadEvent) {
		e.MessageID = messageID
	})
	return nil
}

// CreateThread 显式创建一个空会话
// 参数:
//   - ctx: 上下文
//   - ec: 执行上下文
//   - threadID: 会话 ID，为空时由服务端生成
//
// 返回:
//   - *model.Thread: 会话
//   - error: 失败返回 ErrThreadCreate
func (s *ThreadService) CreateThread(ctx context.Context, ec *ExecutionContext, threadID string) (*model.Thread, error) {
	if threadID == "" {
		threadID = util.NewID()
	}
	return s.EnsureThread(ctx, ec, threadID)
}

// ListThreads 列出当前范围内的会话，最近更新的在前
func (s *ThreadService) ListThreads(ctx context.Context, ec *ExecutionContext) ([]model.Thread, error) {
	return ec.Datastore.ListThreads(ctx)
}

// ListMessages 列出会话的消息，按创建时间正序
// 参数:
//   - ctx: 上下文
//   - ec: 执行上下文
//   - threadID: 会话 ID
//
// 返回:
//   - []model.Message: 消息列表
//   - error: 会话不在当前范围内时返回 ErrThreadNotFound
func (s *ThreadService) ListMessages(ctx context.Context, ec *ExecutionContext, threadID string) ([]model.Message, error) {
	thread, err := ec.Datastore.FindThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, ErrThreadNotFound
	}
	return ec.Datastore.ListMessages(ctx, threadID)
}

// RenameThread 修改会话标题
func (s *ThreadService) RenameThread(ctx context.Context, ec *ExecutionContext, threadID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrTitleRequired
	}
	title = util.TruncateRunes(title, relay.TitleMaxLength, relay.TitleEllipsis)

	ok, err := ec.Datastore.RenameThread(ctx, threadID, title)
	if err != nil {
		return err
	}
	if !ok {
		return ErrThreadNotFound
	}

	s.publish(ctx, ec, cache.EventThreadUpdated, threadID, func(e *cache.ThreadEvent) {
		e.Title = &title
	})
	return nil
}

// DeleteThread 删除会话及其消息
func (s *ThreadService) DeleteThread(ctx context.Context, ec *ExecutionContext, threadID string) error {
	ok, err := ec.Datastore.DeleteThread(ctx, threadID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrThreadNotFound
	}

	s.publish(ctx, ec, cache.EventThreadDeleted, threadID, nil)
	return nil
}

// publish 发布会话事件，失败只记日志
func (s *ThreadService) publish(ctx context.Context, ec *ExecutionContext, eventType, threadID string, fill func(e *cache.ThreadEvent)) {
	if s.publisher == nil {
		return
	}
	event := &cache.ThreadEvent{
		Type:           eventType,
		ThreadID:       threadID,
		OrganizationID: ec.OrgScopeID,
		UserID:         ec.UserID,
	}
	if fill != nil {
		fill(event)
	}
	if err := s.publisher.PublishThreadEvent(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "publish thread event failed", "error", err, "type", eventType)
	}
}
