package websocket_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"pocket-chat-server/internal/cache"
	"pocket-chat-server/internal/mylog"
	"pocket-chat-server/internal/mytesting"
	"pocket-chat-server/internal/repository"
	"pocket-chat-server/internal/service"
	"pocket-chat-server/internal/websocket"
	"pocket-chat-server/pkg/jwt"
)

type HandlerTestSuite struct {
	mytesting.Suite

	jwtService *jwt.JWTService
	hub        *websocket.Hub
	server     *httptest.Server
}

func (s *HandlerTestSuite) SetupTest() {
	s.Suite.SetupTest()
	gin.SetMode(gin.TestMode)

	logger := mylog.Discard()
	s.jwtService = jwt.NewJWTService("session-secret-session-secret-123", time.Hour, 24*time.Hour).
		WithDatastore("datastore-secret-datastore-secret", time.Minute)
	access := service.NewAccessService(s.jwtService, repository.NewDatastore(s.DB, s.jwtService), nil, logger)

	s.hub = websocket.NewHub(logger)
	go s.hub.Run(s.Context)

	router := gin.New()
	websocket.NewHandler(s.hub, access, nil, logger).RegisterRoutes(router)
	s.server = httptest.NewServer(router)
}

func (s *HandlerTestSuite) TearDownTest() {
	s.server.Close()
	s.Suite.TearDownTest()
}

func (s *HandlerTestSuite) url() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws/threads"
}

func (s *HandlerTestSuite) TestRejectsMissingSession() {
	_, resp, err := gorilla.DefaultDialer.Dial(s.url(), nil)
	s.Require().Error(err)
	s.Require().NotNil(resp)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *HandlerTestSuite) TestReceivesThreadEvents() {
	token, err := s.jwtService.GenerateAccessToken("user-1", "a@example.com", "alice", "")
	s.Require().NoError(err)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, _, err := gorilla.DefaultDialer.Dial(s.url(), header)
	s.Require().NoError(err)
	defer conn.Close()

	s.Require().Eventually(func() bool { return s.hub.ClientCount("user-1") == 1 }, time.Second, 5*time.Millisecond)

	title := "Hello"
	s.Require().NoError(s.hub.PublishThreadEvent(context.Background(), &cache.ThreadEvent{
		Type:           cache.EventThreadUpdated,
		ThreadID:       "t-1",
		UserID:         "user-1",
		OrganizationID: "user-1",
		Title:          &title,
	}))

	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(time.Second)))
	var msg struct {
		Type    string            `json:"type"`
		Payload cache.ThreadEvent `json:"payload"`
	}
	s.Require().NoError(conn.ReadJSON(&msg))
	s.Equal(websocket.TypeThreadEvent, msg.Type)
	s.Equal(cache.EventThreadUpdated, msg.Payload.Type)
	s.Equal("Hello", *msg.Payload.Title)

	// 应用层心跳
	s.Require().NoError(conn.WriteJSON(websocket.NewMessage(websocket.TypePing, nil)))
	var pong websocket.Message
	s.Require().NoError(conn.ReadJSON(&pong))
	s.Equal(websocket.TypePong, pong.Type)
}

func TestHandler(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}
