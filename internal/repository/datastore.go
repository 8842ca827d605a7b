package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"pocket-chat-server/internal/model"
	"pocket-chat-server/pkg/jwt"
)

// ErrDatastoreToken 数据存储访问 Token 无效
var ErrDatastoreToken = errors.New("invalid datastore token")

// ErrThreadScope 会话 ID 已被其他范围占用
var ErrThreadScope = errors.New("thread belongs to another scope")

// ErrMessageScope 消息 ID 已属于其他会话
var ErrMessageScope = errors.New("message belongs to another thread")

// Scope 一次访问的数据范围
// OrganizationID 与 UserID 相同表示个人模式
type Scope struct {
	UserID         string
	OrganizationID string
}

// Personal 是否为个人模式
func (s Scope) Personal() bool {
	return s.OrganizationID == s.UserID
}

// TokenVerifier 校验数据存储访问 Token
type TokenVerifier interface {
	ValidateDatastoreToken(tokenString string) (*jwt.DatastoreClaims, error)
}

// Datastore 根据访问 Token 打开限定范围的客户端
type Datastore struct {
	db       *gorm.DB
	verifier TokenVerifier
}

// NewDatastore 创建 Datastore
func NewDatastore(db *gorm.DB, verifier TokenVerifier) *Datastore {
	return &Datastore{db: db, verifier: verifier}
}

// Open 校验访问 Token 并返回绑定了范围的客户端
// 参数:
//   - ctx: 上下文
//   - token: 由 JWTService.GenerateDatastoreToken 签发的 Token
//
// 返回:
//   - *Client: 数据存储客户端
//   - error: Token 无效或数据库不可达
func (d *Datastore) Open(ctx context.Context, token string) (*Client, error) {
	claims, err := d.verifier.ValidateDatastoreToken(token)
	if err != nil {
		return nil, errors.Wrap(ErrDatastoreToken, err.Error())
	}
	if claims.UserID == "" || claims.OrganizationID == "" {
		return nil, ErrDatastoreToken
	}

	if err := d.db.WithContext(ctx).Exec("SELECT 1").Error; err != nil {
		return nil, errors.Wrap(err, "datastore unreachable")
	}

	return NewClient(d.db, Scope{UserID: claims.UserID, OrganizationID: claims.OrganizationID}), nil
}

// Client 限定在某个组织范围内的数据访问客户端
type Client struct {
	scope    Scope
	users    *UserRepository
	orgs     *OrganizationRepository
	threads  *ThreadRepository
	messages *MessageRepository
	usage    *UsageRepository
}

// NewClient 直接按范围创建客户端，调用方负责范围的合法性
func NewClient(db *gorm.DB, scope Scope) *Client {
	return &Client{
		scope:    scope,
		users:    NewUserRepository(db),
		orgs:     NewOrganizationRepository(db),
		threads:  NewThreadRepository(db),
		messages: NewMessageRepository(db),
		usage:    NewUsageRepository(db),
	}
}

// Scope 返回客户端的数据范围
func (c *Client) Scope() Scope {
	return c.scope
}

// EnsureUser 确保当前用户的记录存在
func (c *Client) EnsureUser(ctx context.Context, email, name string) error {
	return c.users.Ensure(ctx, &model.User{
		ID:    c.scope.UserID,
		Email: email,
		Name:  name,
	})
}

// EnsurePersonalOrganization 个人模式下确保个人组织存在，非个人模式不做任何事
func (c *Client) EnsurePersonalOrganization(ctx context.Context, name string) error {
	if !c.scope.Personal() {
		return nil
	}
	return c.orgs.EnsurePersonal(ctx, c.scope.UserID, name)
}

// FindThread 获取范围内的会话，不存在返回 nil
func (c *Client) FindThread(ctx context.Context, id string) (*model.Thread, error) {
	return c.threads.Get(ctx, c.scope, id)
}

// CreateThread 创建标题为空的会话
// 插入使用 ON CONFLICT DO NOTHING，随后在范围内重新读取：
// 同范围的并发创建得到同一行，ID 被其他范围占用时返回 ErrThreadScope
func (c *Client) CreateThread(ctx context.Context, id string) (*model.Thread, error) {
	_, err := c.threads.Insert(ctx, &model.Thread{
		ID:             id,
		OrganizationID: c.scope.OrganizationID,
		UserID:         c.scope.UserID,
	})
	if err != nil {
		return nil, err
	}

	thread, err := c.threads.Get(ctx, c.scope, id)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, ErrThreadScope
	}
	return thread, nil
}

// ListThreads 列出范围内的会话
func (c *Client) ListThreads(ctx context.Context) ([]model.Thread, error) {
	return c.threads.List(ctx, c.scope)
}

// TouchThread 刷新会话更新时间
func (c *Client) TouchThread(ctx context.Context, id string) error {
	return c.threads.Touch(ctx, c.scope, id)
}

// SetThreadTitleOnce 仅在会话没有标题时设置
func (c *Client) SetThreadTitleOnce(ctx context.Context, id, title string) (bool, error) {
	return c.threads.SetTitleIfEmpty(ctx, c.scope, id, title)
}

// RenameThread 修改会话标题
func (c *Client) RenameThread(ctx context.Context, id, title string) (bool, error) {
	return c.threads.UpdateTitle(ctx, c.scope, id, title)
}

// DeleteThread 删除会话及其消息
func (c *Client) DeleteThread(ctx context.Context, id string) (bool, error) {
	return c.threads.Delete(ctx, c.scope, id)
}

// UpsertMessage 按 ID 幂等写入消息
// 会话不在范围内返回 ErrThreadScope，ID 已属于其他会话返回 ErrMessageScope
func (c *Client) UpsertMessage(ctx context.Context, message *model.Message) error {
	thread, err := c.threads.Get(ctx, c.scope, message.ThreadID)
	if err != nil {
		return err
	}
	if thread == nil {
		return ErrThreadScope
	}

	existing, err := c.messages.GetByID(ctx, message.ID)
	if err != nil {
		return err
	}
	if existing != nil && existing.ThreadID != message.ThreadID {
		return ErrMessageScope
	}
	return c.messages.Upsert(ctx, message)
}

// ListMessages 列出会话的消息，调用方需先确认会话在范围内
func (c *Client) ListMessages(ctx context.Context, threadID string) ([]model.Message, error) {
	return c.messages.GetByThreadID(ctx, threadID)
}

// RecordUsage 记录一条用量，组织和用户取自客户端范围
func (c *Client) RecordUsage(ctx context.Context, record *model.UsageRecord) error {
	record.OrganizationID = c.scope.OrganizationID
	record.UserID = c.scope.UserID
	return c.usage.Record(ctx, record)
}

// UsageSummary 汇总当前组织范围的用量
func (c *Client) UsageSummary(ctx context.Context) (*UsageSummary, error) {
	return c.usage.Summarize(ctx, c.scope.OrganizationID)
}
