package handler_test

import (
	"net/http"
	"net/http/httptest"

	"github.com/tidwall/gjson"

	"pocket-chat-server/internal/handler"
)

func (s *HandlerTestSuite) TestThreadLifecycle() {
	created := s.do(http.MethodPost, "/api/chat/threads", "")
	s.Require().Equal(http.StatusOK, created.Code)
	threadID := gjson.Get(created.Body.String(), "threadId").String()
	s.Require().NotEmpty(threadID)

	list := s.do(http.MethodGet, "/api/chat/threads", "")
	s.Equal(http.StatusOK, list.Code)
	s.Equal(threadID, gjson.Get(list.Body.String(), "threads.0.id").String())
	s.Equal(gjson.Null, gjson.Get(list.Body.String(), "threads.0.title").Type)

	renamed := s.do(http.MethodPatch, "/api/chat/threads/"+threadID, `{"title":"  Groceries  "}`)
	s.Equal(http.StatusOK, renamed.Code)
	s.JSONEq(`{"success":true}`, renamed.Body.String())

	list = s.do(http.MethodGet, "/api/chat/threads", "")
	s.Equal("Groceries", gjson.Get(list.Body.String(), "threads.0.title").String())

	deleted := s.do(http.MethodDelete, "/api/chat/threads/"+threadID, "")
	s.Equal(http.StatusOK, deleted.Code)

	missing := s.do(http.MethodGet, "/api/chat/threads/"+threadID+"/messages", "")
	s.Equal(http.StatusNotFound, missing.Code)
	s.Equal(handler.MsgThreadNotFound, gjson.Get(missing.Body.String(), "error").String())
}

func (s *HandlerTestSuite) TestRenameValidation() {
	created := s.do(http.MethodPost, "/api/chat/threads", "")
	threadID := gjson.Get(created.Body.String(), "threadId").String()

	blank := s.do(http.MethodPatch, "/api/chat/threads/"+threadID, `{"title":"   "}`)
	s.Equal(http.StatusBadRequest, blank.Code)
	s.Equal(handler.MsgTitleRequired, gjson.Get(blank.Body.String(), "error").String())

	unknown := s.do(http.MethodPatch, "/api/chat/threads/nope", `{"title":"x"}`)
	s.Equal(http.StatusNotFound, unknown.Code)

	gone := s.do(http.MethodDelete, "/api/chat/threads/nope", "")
	s.Equal(http.StatusNotFound, gone.Code)
}

func (s *HandlerTestSuite) TestThreadRoutesRequireSession() {
	rec := s.post(chatBody, "")
	s.Equal(http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/threads", nil)
	list := httptest.NewRecorder()
	s.router.ServeHTTP(list, req)
	s.Equal(http.StatusUnauthorized, list.Code)
	s.JSONEq(`{"error":"Unauthorized"}`, list.Body.String())
}
