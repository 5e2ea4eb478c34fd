package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/itrc/evaluation-workflow/internal/domain/application"
	"github.com/itrc/evaluation-workflow/internal/domain/authz"
	apperrors "github.com/itrc/evaluation-workflow/internal/domain/errors"
	"github.com/itrc/evaluation-workflow/internal/domain/workflow"
)

type hubFixture struct {
	hub    *EventHub
	server *httptest.Server
	auth   *Authenticator
	apps   *MockApplicationService
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	auth := NewAuthenticator(AuthConfig{JWTSecret: []byte("ws-secret"), Issuer: "itrc-evaluation", TokenExpiry: time.Hour}, nil)
	apps := new(MockApplicationService)
	hub := NewEventHub(auth, apps, DefaultWebSocketConfig(), discardLogger())
	server := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return &hubFixture{hub: hub, server: server, auth: auth, apps: apps}
}

func (f *hubFixture) dial(t *testing.T, actor authz.Actor) *websocket.Conn {
	t.Helper()
	token, err := f.auth.GenerateToken(actor, "")
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	msg := readMessage(t, conn)
	require.Equal(t, messageTypeConnected, msg.Type)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WebSocketMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg WebSocketMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestEventHub_RejectsMissingToken(t *testing.T) {
	f := newHubFixture(t)

	resp, err := http.Get(f.server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(f.server.URL, "http")+"/?token=garbage", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestEventHub_StaffReceiveAllEvents(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, supervisor)

	e := workflow.NewEvent(workflow.EventSecurityTargetSubmitted, uuid.New(), uuid.New(), applicant.ID, "submitted", time.Now().UTC())
	f.hub.Publish(context.Background(), e)

	msg := readMessage(t, conn)
	assert.Equal(t, messageTypeEvent, msg.Type)
	require.NotNil(t, msg.Event)
	assert.Equal(t, e.ID, msg.Event.ID)
	assert.Equal(t, workflow.EventSecurityTargetSubmitted, msg.Event.Type)
	assert.Equal(t, 1, f.hub.ConnectedClients())
}

func TestEventHub_ApplicantSubscriptions(t *testing.T) {
	f := newHubFixture(t)
	own := uuid.New()
	foreign := uuid.New()
	f.apps.On("Get", mock.Anything, applicant, own).Return(&application.Application{ID: own, ApplicantID: applicant.ID}, nil)
	f.apps.On("Get", mock.Anything, applicant, foreign).Return(nil, apperrors.NewForbiddenError("not your application"))

	conn := f.dial(t, applicant)

	require.NoError(t, conn.WriteJSON(WebSocketMessage{ID: "1", Type: messageTypeSubscribe, ApplicationID: &foreign}))
	msg := readMessage(t, conn)
	assert.Equal(t, messageTypeError, msg.Type)
	assert.Equal(t, "1", msg.ID)

	require.NoError(t, conn.WriteJSON(WebSocketMessage{ID: "2", Type: messageTypeSubscribe, ApplicationID: &own}))
	msg = readMessage(t, conn)
	assert.Equal(t, messageTypeSubscribed, msg.Type)

	// an event on someone else's application is filtered out, so the next
	// frame is the one for the subscribed application
	f.hub.Publish(context.Background(), workflow.NewEvent(workflow.EventEvaluationCreated, foreign, uuid.New(), evaluator.ID, "IN_PROGRESS", time.Now()))
	mine := workflow.NewEvent(workflow.EventEvaluationCompleted, own, uuid.New(), evaluator.ID, "COMPLETED", time.Now())
	f.hub.Publish(context.Background(), mine)

	msg = readMessage(t, conn)
	require.NotNil(t, msg.Event)
	assert.Equal(t, mine.ID, msg.Event.ID)
	f.apps.AssertExpectations(t)
}

func TestEventHub_UnknownMessage(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, evaluator)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "dance"}))
	msg := readMessage(t, conn)
	assert.Equal(t, messageTypeError, msg.Type)
	assert.Equal(t, "unknown message type", msg.Error)
}

func TestEventHub_PublishAfterCloseDoesNotBlock(t *testing.T) {
	f := newHubFixture(t)
	f.hub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			f.hub.Publish(context.Background(), workflow.NewEvent(workflow.EventReportGenerated, uuid.New(), uuid.New(), evaluator.ID, "generated", time.Now()))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked")
	}
}
