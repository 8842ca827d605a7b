package service_test

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"pocket-chat-server/internal/agent"
	"pocket-chat-server/internal/model"
	"pocket-chat-server/internal/mylog"
	"pocket-chat-server/internal/mytesting"
	"pocket-chat-server/internal/relay"
	"pocket-chat-server/internal/service"
)

type ChatServiceTestSuite struct {
	mytesting.Suite

	agent   *scriptedAgent
	threads *service.ThreadService
	chat    *service.ChatService
	ec      *service.ExecutionContext
}

func (s *ChatServiceTestSuite) SetupTest() {
	s.Suite.SetupTest()

	usage, err := service.NewUsageService("0.002")
	s.Require().NoError(err)
	s.agent = &scriptedAgent{}
	s.threads = service.NewThreadService(usage, nil, mylog.Discard())
	s.chat = service.NewChatService(s.threads, s.agent, "be brief", 0, mylog.Discard())
	s.ec = execContext(&s.Suite, "user-1")
}

func (s *ChatServiceTestSuite) request() *service.ChatRequest {
	return &service.ChatRequest{
		ThreadID:           "t-1",
		AssistantMessageID: "a-1",
		Messages:           []relay.ChatMessage{userMessage("u-1", "tell me a joke")},
	}
}

func (s *ChatServiceTestSuite) messages() []model.Message {
	messages, err := s.threads.ListMessages(s.Context, s.ec, "t-1")
	s.Require().NoError(err)
	return messages
}

func (s *ChatServiceTestSuite) TestStream() {
	s.agent.chunks = []string{"Hel", "lo"}
	rec := httptest.NewRecorder()

	s.Require().NoError(s.chat.Stream(s.Context, s.ec, s.request(), rec))

	s.Equal(
		"data: {\"type\":\"text\",\"value\":\"Hel\"}\n\n"+
			"data: {\"type\":\"text\",\"value\":\"Hello\"}\n\n"+
			"data: [DONE]\n\n",
		rec.Body.String(),
	)

	messages := s.messages()
	s.Require().Len(messages, 2)
	s.Equal(model.MessageRoleUser, messages[0].Role)
	s.Equal("tell me a joke", messages[0].Content)
	s.Equal("a-1", messages[1].ID)
	s.Equal("Hello", messages[1].Content)

	s.Require().Len(s.agent.requests, 1)
	s.Equal("be brief", s.agent.requests[0].System)
	s.Equal([]agent.Message{{Role: agent.RoleUser, Text: "tell me a joke"}}, s.agent.requests[0].Messages)
}

func (s *ChatServiceTestSuite) TestRetryDoesNotDuplicate() {
	s.agent.chunks = []string{"ok"}
	for i := 0; i < 2; i++ {
		s.Require().NoError(s.chat.Stream(s.Context, s.ec, s.request(), httptest.NewRecorder()))
	}
	s.Len(s.messages(), 2)
}

func (s *ChatServiceTestSuite) TestQuotaFallbackIsPersisted() {
	s.agent.openErr = errors.New(`{"error":{"code":"insufficient_quota","message":"You exceeded your current quota"}}`)
	rec := httptest.NewRecorder()

	s.Require().NoError(s.chat.Stream(s.Context, s.ec, s.request(), rec))

	frames := strings.Split(strings.TrimSuffix(rec.Body.String(), "\n\n"), "\n\n")
	s.Require().Len(frames, 2)
	s.Contains(frames[0], `"type":"text"`)
	s.Equal("data: [DONE]", frames[1])

	messages := s.messages()
	s.Require().Len(messages, 2)
	s.Equal(model.MessageRoleAssistant, messages[1].Role)
	s.Equal(relay.FallbackMessage("tell me a joke"), messages[1].Content)
	s.True(strings.HasSuffix(messages[1].Content, "tell me a joke"))

	var usage int64
	s.Require().NoError(s.DB.Model(&model.UsageRecord{}).Count(&usage).Error)
	s.Zero(usage)
}

func (s *ChatServiceTestSuite) TestOpenFailureWritesNothing() {
	s.agent.openErr = errors.New("invalid api key")
	rec := httptest.NewRecorder()

	err := s.chat.Stream(s.Context, s.ec, s.request(), rec)
	s.ErrorIs(err, service.ErrGenerate)
	s.Empty(rec.Body.String())

	// 会话和用户消息已经落库
	s.Len(s.messages(), 1)
}

func (s *ChatServiceTestSuite) TestThreadCreateFailure() {
	s.Require().NoError(s.DB.Migrator().DropTable(&model.User{}))
	rec := httptest.NewRecorder()

	err := s.chat.Stream(s.Context, s.ec, s.request(), rec)
	s.ErrorIs(err, service.ErrThreadCreate)
	s.Empty(rec.Body.String())
	s.Empty(s.agent.requests)
}

func TestChatService(t *testing.T) {
	suite.Run(t, new(ChatServiceTestSuite))
}
