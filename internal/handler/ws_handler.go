package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/psytest-backend/internal/dto"
	"github.com/stemsi/psytest-backend/internal/model"
	"github.com/stemsi/psytest-backend/internal/response"
	ws "github.com/stemsi/psytest-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler serves the attempt stream: the same events as the REST endpoints over one
// connection.
type WSHandler struct {
	attempts AttemptRunner
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attempts AttemptRunner, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attempts: attempts,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// ModuleStream godoc
// WS /ws/v1/participant/sessions/:id/modules/:test_id/stream
// Upgrades to WebSocket once the attempt has been started. Every request gets one reply.
func (h *WSHandler) ModuleStream(c *gin.Context) {
	pid, sessionID, testID, ok := moduleParams(c)
	if !ok {
		return
	}

	// Refuse before upgrading so the client gets a normal error envelope.
	state, err := h.attempts.State(c.Request.Context(), sessionID, testID, pid)
	if err != nil {
		fail(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	s := &stream{
		h:         h,
		conn:      conn,
		pid:       pid,
		sessionID: sessionID,
		testID:    testID,
		log: h.log.With().
			Int("participant_id", pid).
			Str("session_id", sessionID.String()).
			Str("test_id", testID.String()).
			Logger(),
	}
	s.log.Info().Msg("Participant connected")

	if err := ws.WriteEvent(conn, ws.EventState, state); err != nil {
		return
	}
	s.serve(c.Request.Context())
}

type stream struct {
	h         *WSHandler
	conn      *websocket.Conn
	pid       int
	sessionID uuid.UUID
	testID    uuid.UUID
	log       zerolog.Logger
}

func (s *stream) serve(ctx context.Context) {
	for {
		req, err := ws.ReadRequest(s.conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				s.log.Debug().Msg("Connection closed")
			}
			return
		}

		if err := s.handle(ctx, req); err != nil {
			s.log.Debug().Err(err).Msg("Write failed")
			return
		}
	}
}

func (s *stream) handle(ctx context.Context, req ws.Request) error {
	switch req.Action {
	case ws.ActionPing:
		return ws.WriteEvent(s.conn, ws.EventPong, nil)

	case ws.ActionState:
		state, err := s.h.attempts.State(ctx, s.sessionID, s.testID, s.pid)
		if err != nil {
			return s.writeErr(err)
		}
		return ws.WriteEvent(s.conn, ws.EventState, state)

	case ws.ActionAnswer:
		if req.QID == "" || req.Answer == "" || len(req.QID) > 64 || len(req.Answer) > 4000 {
			return ws.WriteError(s.conn, string(response.ErrInvalidPayload), response.GetMessage(response.ErrInvalidPayload))
		}
		p, err := s.h.attempts.Answer(ctx, s.sessionID, s.testID, s.pid, model.AnswerRequest{QuestionID: req.QID, Answer: req.Answer})
		if err != nil {
			return s.writeErr(err)
		}
		return ws.WriteEvent(s.conn, ws.EventProgress, dto.NewAttemptProgress(p))

	case ws.ActionFinish:
		p, err := s.h.attempts.Finish(ctx, s.sessionID, s.testID, s.pid)
		if err != nil {
			return s.writeErr(err)
		}
		s.log.Info().Str("status", string(p.Attempt.Status)).Msg("Attempt finished over stream")
		return ws.WriteEvent(s.conn, ws.EventProgress, dto.NewAttemptProgress(p))
	}

	s.log.Warn().Str("action", string(req.Action)).Msg("Unknown action")
	return ws.WriteError(s.conn, string(response.ErrInvalidPayload), "unknown action: "+string(req.Action))
}

func (s *stream) writeErr(err error) error {
	_, code := errorStatus(err)
	if code == response.ErrInternal {
		s.log.Error().Err(err).Msg("Attempt event failed")
	}
	return ws.WriteError(s.conn, string(code), response.GetMessage(code))
}
