package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/psytest-backend/internal/model"
	"github.com/stemsi/psytest-backend/internal/response"
	"github.com/stemsi/psytest-backend/internal/service"
	ws "github.com/stemsi/psytest-backend/internal/websocket"
)

type wsReply struct {
	Event ws.Event        `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func dialStream(t *testing.T, f *fakeParticipantSide) *websocket.Conn {
	t.Helper()
	h := NewWSHandler(f, zerolog.Nop(), nil)
	r := gin.New()
	r.GET("/sessions/:id/modules/:test_id/stream", asParticipant(1), h.ModuleStream)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := fmt.Sprintf("ws%s/sessions/%s/modules/%s/stream", strings.TrimPrefix(srv.URL, "http"), uuid.New(), uuid.New())
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, req ws.Request) wsReply {
	t.Helper()
	if err := conn.WriteJSON(req); err != nil {
		t.Fatal(err)
	}
	var reply wsReply
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatal(err)
	}
	return reply
}

func TestModuleStream(t *testing.T) {
	f := &fakeParticipantSide{state: &model.AttemptState{
		Attempt:          model.Attempt{ID: uuid.New(), Status: model.AttemptStatusInProgress},
		TotalQuestions:   20,
		RemainingSeconds: 1500,
	}}
	conn := dialStream(t, f)

	var first wsReply
	if err := conn.ReadJSON(&first); err != nil || first.Event != ws.EventState {
		t.Fatalf("expected initial state, got %+v, %v", first, err)
	}

	if reply := roundTrip(t, conn, ws.Request{Action: ws.ActionPing}); reply.Event != ws.EventPong {
		t.Fatalf("expected pong, got %s", reply.Event)
	}

	reply := roundTrip(t, conn, ws.Request{Action: ws.ActionAnswer, QID: "q1", Answer: "C"})
	if reply.Event != ws.EventProgress || len(f.answers) != 1 || f.answers[0].Answer != "C" {
		t.Fatalf("answer not applied: %+v", reply)
	}

	reply = roundTrip(t, conn, ws.Request{Action: ws.ActionAnswer, QID: "q2"})
	var e ws.ErrorData
	if err := json.Unmarshal(reply.Data, &e); err != nil || reply.Event != ws.EventError || e.Code != string(response.ErrInvalidPayload) {
		t.Fatalf("expected invalid payload error, got %+v", reply)
	}

	reply = roundTrip(t, conn, ws.Request{Action: ws.ActionFinish})
	var p struct {
		Attempt model.Attempt `json:"attempt"`
	}
	if err := json.Unmarshal(reply.Data, &p); err != nil || p.Attempt.Status != model.AttemptStatusCompleted {
		t.Fatalf("expected completed attempt, got %s", reply.Data)
	}

	if reply := roundTrip(t, conn, ws.Request{Action: "cheat"}); reply.Event != ws.EventError {
		t.Fatalf("unknown actions should be rejected, got %s", reply.Event)
	}
}

func TestModuleStreamRefusedWithoutAttempt(t *testing.T) {
	h := NewWSHandler(&fakeParticipantSide{err: errAttemptMissing}, zerolog.Nop(), nil)
	r := gin.New()
	r.GET("/sessions/:id/modules/:test_id/stream", asParticipant(1), h.ModuleStream)

	w, env := do(t, r, http.MethodGet, fmt.Sprintf("/sessions/%s/modules/%s/stream", uuid.New(), uuid.New()), nil)
	expectError(t, w, env, http.StatusNotFound, response.ErrNotFound)
}

var errAttemptMissing = fmt.Errorf("load attempt: %w", service.ErrAttemptNotFound)
