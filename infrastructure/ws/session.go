package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"chat-relay/domain"
	apperrors "chat-relay/errors"
	"chat-relay/services"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
	searchTimeout = 5 * time.Second
)

// session drives one websocket connection: the read pump turns client frames
// into engine commands, the write pump serializes engine events and locally
// produced frames back out. The pumps are the only goroutines touching the
// underlying connection.
type session struct {
	id      domain.ConnectionID
	conn    *websocket.Conn
	sink    *SessionSink
	frames  chan []byte // frames produced on the session itself (search, local errors)
	service services.IChatService
	log     *slog.Logger
}

func newSession(id domain.ConnectionID, conn *websocket.Conn,
	sink *SessionSink, service services.IChatService, log *slog.Logger) *session {
	return &session{
		id:      id,
		conn:    conn,
		sink:    sink,
		frames:  make(chan []byte, cap(sink.Events)),
		service: service,
		log:     log,
	}
}

func (s *session) readPump(maxFrameSize int64) {
	defer func() {
		// Teardown must reach the coordinator even on abrupt closes, so no
		// event can be routed to this connection afterwards.
		s.service.Dispatch(domain.DisconnectCommand{Conn: s.id})
		_ = s.conn.Close()
	}()

	s.conn.SetReadLimit(maxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("Unexpected close", "connection", s.id, "error", err)
			}
			return
		}

		var frame InboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.fail(apperrors.ErrValidationFailure, "malformed frame")
			continue
		}
		s.handle(frame)
	}
}

func (s *session) handle(frame InboundFrame) {
	switch frame.Event {
	case "register", "setUsername":
		payload, err := decode[RegisterPayload](frame.Data)
		if err != nil {
			s.fail(apperrors.ErrValidationFailure, err.Error())
			return
		}
		s.service.Dispatch(domain.RegisterCommand{Conn: s.id, Username: payload.Username})

	case "joinRoom":
		payload, err := decode[RoomPayload](frame.Data)
		if err != nil {
			s.fail(apperrors.ErrRoomRequired, err.Error())
			return
		}
		s.service.Dispatch(domain.JoinRoomCommand{Conn: s.id, Room: domain.RoomID(payload.Room)})

	case "leaveRoom":
		payload, err := decode[RoomPayload](frame.Data)
		if err != nil {
			s.fail(apperrors.ErrRoomRequired, err.Error())
			return
		}
		s.service.Dispatch(domain.LeaveRoomCommand{Conn: s.id, Room: domain.RoomID(payload.Room)})

	case "message":
		payload, err := decode[MessagePayload](frame.Data)
		if err != nil {
			s.fail(apperrors.ErrValidationFailure, err.Error())
			return
		}
		s.service.Dispatch(domain.PostMessageCommand{
			Conn:      s.id,
			Room:      domain.RoomID(payload.Room),
			Recipient: payload.Recipient,
			Body:      payload.Message,
			Kind:      domain.Kind(payload.Type),
			CreatedAt: time.Now().UTC(),
		})

	case "typing":
		payload, err := decode[TypingPayload](frame.Data)
		if err != nil {
			s.fail(apperrors.ErrValidationFailure, err.Error())
			return
		}
		s.service.Dispatch(domain.TypingCommand{
			Conn:      s.id,
			Room:      domain.RoomID(payload.Room),
			Recipient: payload.Recipient,
			IsTyping:  payload.IsTyping,
		})

	case "focus":
		payload, err := decode[ConversationPayload](frame.Data)
		if err != nil {
			s.fail(apperrors.ErrValidationFailure, err.Error())
			return
		}
		s.service.Dispatch(domain.FocusCommand{
			Conn:      s.id,
			Room:      domain.RoomID(payload.Room),
			Recipient: payload.Recipient,
		})

	case "markRead":
		payload, err := decode[ConversationPayload](frame.Data)
		if err != nil {
			s.fail(apperrors.ErrValidationFailure, err.Error())
			return
		}
		s.service.Dispatch(domain.MarkReadCommand{
			Conn:      s.id,
			Room:      domain.RoomID(payload.Room),
			Recipient: payload.Recipient,
		})

	case "search":
		payload, err := decode[SearchPayload](frame.Data)
		if err != nil {
			s.fail(apperrors.ErrValidationFailure, err.Error())
			return
		}
		s.search(payload.Query)

	default:
		s.fail(apperrors.ErrValidationFailure, fmt.Sprintf("unknown event %q", frame.Event))
	}
}

// search runs on the session, off the coordinator's serial path: queries
// touch only the index, never the coordinator-owned tables.
func (s *session) search(raw string) {
	ctx, cancel := context.WithTimeout(context.Background(), searchTimeout)
	defer cancel()

	hits, err := s.service.Search(ctx, raw)
	if err != nil {
		s.log.Error("Search failed", "connection", s.id, "error", err)
		s.fail(apperrors.ErrValidationFailure, "search failed")
		return
	}
	if bytes, err := json.Marshal(toSearchResultsFrame(hits)); err == nil {
		s.enqueue(bytes)
	}
}

func (s *session) fail(err error, reason string) {
	bytes, marshalErr := json.Marshal(errorFrame{
		Type:   "error",
		Code:   apperrors.CodeOf(err),
		Reason: reason,
	})
	if marshalErr != nil {
		return
	}
	s.enqueue(bytes)
}

func (s *session) enqueue(frame []byte) {
	select {
	case s.frames <- frame:
	default:
		s.log.Warn("Session frame buffer full, dropping frame", "connection", s.id)
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-s.sink.Events:
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			bytes, wired := encodeEvent(evt)
			if !wired {
				continue
			}
			if !s.write(bytes) {
				return
			}
		case frame := <-s.frames:
			if !s.write(frame) {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *session) write(payload []byte) bool {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		s.log.Debug("Write failed, closing session", "connection", s.id, "error", err)
		return false
	}
	return true
}
