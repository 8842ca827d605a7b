package service_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"pocket-chat-server/internal/cache"
	"pocket-chat-server/internal/model"
	"pocket-chat-server/internal/mylog"
	"pocket-chat-server/internal/mytesting"
	"pocket-chat-server/internal/relay"
	"pocket-chat-server/internal/service"
)

type ThreadServiceTestSuite struct {
	mytesting.Suite

	publisher *recordingPublisher
	usage     *service.UsageService
	threads   *service.ThreadService
	ec        *service.ExecutionContext
}

func (s *ThreadServiceTestSuite) SetupTest() {
	s.Suite.SetupTest()

	var err error
	s.usage, err = service.NewUsageService("0.002")
	s.Require().NoError(err)
	s.publisher = &recordingPublisher{}
	s.threads = service.NewThreadService(s.usage, s.publisher, mylog.Discard())
	s.ec = execContext(&s.Suite, "user-1")
}

func (s *ThreadServiceTestSuite) count(m interface{}) int64 {
	var n int64
	s.Require().NoError(s.DB.Model(m).Count(&n).Error)
	return n
}

func (s *ThreadServiceTestSuite) TestCreateThreadBootstrapIsDeterministic() {
	first, err := s.threads.CreateThread(s.Context, s.ec, "")
	s.Require().NoError(err)
	second, err := s.threads.CreateThread(s.Context, s.ec, "")
	s.Require().NoError(err)
	s.NotEqual(first.ID, second.ID)

	s.EqualValues(1, s.count(&model.User{}))
	s.EqualValues(1, s.count(&model.Organization{}))
	s.EqualValues(2, s.count(&model.Thread{}))
	s.Equal([]string{cache.EventThreadCreated, cache.EventThreadCreated}, s.publisher.types())
}

func (s *ThreadServiceTestSuite) TestEnsureThreadReturnsExisting() {
	created, err := s.threads.EnsureThread(s.Context, s.ec, "t-1")
	s.Require().NoError(err)
	found, err := s.threads.EnsureThread(s.Context, s.ec, "t-1")
	s.Require().NoError(err)
	s.Equal(created.ID, found.ID)
	s.EqualValues(1, s.count(&model.Thread{}))
}

func (s *ThreadServiceTestSuite) TestEnsureThreadBootstrapFailure() {
	s.Require().NoError(s.DB.Migrator().DropTable(&model.User{}))

	_, err := s.threads.EnsureThread(s.Context, s.ec, "t-1")
	s.ErrorIs(err, service.ErrThreadCreate)
	s.EqualValues(0, s.count(&model.Thread{}))
}

func (s *ThreadServiceTestSuite) TestEnsureThreadOwnedByAnotherScope() {
	_, err := s.threads.EnsureThread(s.Context, execContext(&s.Suite, "user-2"), "t-1")
	s.Require().NoError(err)

	_, err = s.threads.EnsureThread(s.Context, s.ec, "t-1")
	s.ErrorIs(err, service.ErrThreadCreate)
}

func (s *ThreadServiceTestSuite) TestTitleIsSingleShot() {
	thread, err := s.threads.EnsureThread(s.Context, s.ec, "t-1")
	s.Require().NoError(err)

	long := strings.Repeat("a", 49)
	text, err := s.threads.RecordUserMessage(s.Context, s.ec, thread, []relay.ChatMessage{userMessage("m-1", long)})
	s.Require().NoError(err)
	s.Equal(long, text)
	s.Require().NotNil(thread.Title)
	s.Equal(strings.Repeat("a", 48)+"…", *thread.Title)

	// 第二条消息不改标题，即使调用方拿的是旧的会话对象
	stale, err := s.ec.Datastore.FindThread(s.Context, "t-1")
	s.Require().NoError(err)
	stale.Title = nil
	_, err = s.threads.RecordUserMessage(s.Context, s.ec, stale, []relay.ChatMessage{userMessage("m-2", "something else")})
	s.Require().NoError(err)

	stored, err := s.ec.Datastore.FindThread(s.Context, "t-1")
	s.Require().NoError(err)
	s.Equal(strings.Repeat("a", 48)+"…", *stored.Title)
}

func (s *ThreadServiceTestSuite) TestWhitespaceMessageGetsDefaultTitle() {
	thread, err := s.threads.EnsureThread(s.Context, s.ec, "t-1")
	s.Require().NoError(err)

	_, err = s.threads.RecordUserMessage(s.Context, s.ec, thread, []relay.ChatMessage{userMessage("m-1", "   ")})
	s.Require().NoError(err)
	s.Require().NotNil(thread.Title)
	s.Equal(relay.DefaultTitle, *thread.Title)
}

func (s *ThreadServiceTestSuite) TestRecordUserMessageIsIdempotent() {
	thread, err := s.threads.EnsureThread(s.Context, s.ec, "t-1")
	s.Require().NoError(err)

	messages := []relay.ChatMessage{userMessage("m-1", "hello")}
	for i := 0; i < 2; i++ {
		_, err := s.threads.RecordUserMessage(s.Context, s.ec, thread, messages)
		s.Require().NoError(err)
	}
	s.EqualValues(1, s.count(&model.Message{}))
}

func (s *ThreadServiceTestSuite) TestRecordUserMessageSkipsEmpty() {
	thread, err := s.threads.EnsureThread(s.Context, s.ec, "t-1")
	s.Require().NoError(err)

	text, err := s.threads.RecordUserMessage(s.Context, s.ec, thread, []relay.ChatMessage{userMessage("m-1", "")})
	s.Require().NoError(err)
	s.Empty(text)

	text, err = s.threads.RecordUserMessage(s.Context, s.ec, thread, nil)
	s.Require().NoError(err)
	s.Empty(text)

	s.EqualValues(0, s.count(&model.Message{}))
	s.Nil(thread.Title)
}

func (s *ThreadServiceTestSuite) TestRecordAssistantMessageUsage() {
	thread, err := s.threads.EnsureThread(s.Context, s.ec, "t-1")
	s.Require().NoError(err)

	s.Require().NoError(s.threads.RecordAssistantMessage(s.Context, s.ec, thread.ID, "a-1",
		relay.Reply{Text: strings.Repeat("x", 500), State: relay.StateDone}))
	s.Require().NoError(s.threads.RecordAssistantMessage(s.Context, s.ec, thread.ID, "a-2",
		relay.Reply{Text: relay.FallbackMessage("hi"), State: relay.StateFallback}))

	messages, err := s.threads.ListMessages(s.Context, s.ec, thread.ID)
	s.Require().NoError(err)
	s.Len(messages, 2)

	// 兜底回复不计费
	summary, err := s.usage.Summary(s.Context, s.ec)
	s.Require().NoError(err)
	s.Equal(1, summary.Messages)
	s.Equal(500, summary.Characters)
	s.Equal("0.001", summary.Cost.String())
}

func (s *ThreadServiceTestSuite) TestListMessagesNotFound() {
	_, err := s.threads.ListMessages(s.Context, s.ec, "missing")
	s.ErrorIs(err, service.ErrThreadNotFound)
}

func (s *ThreadServiceTestSuite) TestRenameAndDelete() {
	_, err := s.threads.EnsureThread(s.Context, s.ec, "t-1")
	s.Require().NoError(err)

	s.ErrorIs(s.threads.RenameThread(s.Context, s.ec, "t-1", "  "), service.ErrTitleRequired)
	s.ErrorIs(s.threads.RenameThread(s.Context, s.ec, "missing", "x"), service.ErrThreadNotFound)
	s.Require().NoError(s.threads.RenameThread(s.Context, s.ec, "t-1", "My thread"))

	threads, err := s.threads.ListThreads(s.Context, s.ec)
	s.Require().NoError(err)
	s.Require().Len(threads, 1)
	s.Equal("My thread", *threads[0].Title)

	s.ErrorIs(s.threads.DeleteThread(s.Context, s.ec, "missing"), service.ErrThreadNotFound)
	s.Require().NoError(s.threads.DeleteThread(s.Context, s.ec, "t-1"))

	threads, err = s.threads.ListThreads(s.Context, s.ec)
	s.Require().NoError(err)
	s.Empty(threads)
	s.Contains(s.publisher.types(), cache.EventThreadDeleted)
}

func TestThreadService(t *testing.T) {
	suite.Run(t, new(ThreadServiceTestSuite))
}
