// Package ws exposes the engine over websocket sessions: one connection is
// one transport session, registered with the coordinator for its lifetime.
package ws

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/services"
)

type Server struct {
	log      *slog.Logger
	service  services.IChatService
	issuer   *auth.TokenIssuer
	upgrader websocket.Upgrader

	connectionBufferSize int
	maxFrameSize         int64
}

func NewServer(log *slog.Logger, service services.IChatService, issuer *auth.TokenIssuer,
	connectionBufferSize int, maxFrameSize int64) *Server {
	return &Server{
		log:     log,
		service: service,
		issuer:  issuer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		connectionBufferSize: connectionBufferSize,
		maxFrameSize:         maxFrameSize,
	}
}

// ServeWS upgrades the request and attaches the new session to the engine.
// A valid session token pre-binds the username, the same as an explicit
// register frame; without one the connection stays unregistered until the
// client sends register.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("Upgrade failed", "error", err)
		return
	}

	id := domain.NewConnectionID()
	sink := NewSessionSink(s.connectionBufferSize)
	sess := newSession(id, conn, sink, s.service, s.log)

	s.service.Connect(id, sink)

	if token := r.URL.Query().Get("token"); token != "" {
		claims, err := s.issuer.Validate(token)
		if err != nil {
			s.log.Warn("Rejected connect token", "connection", id, "error", err)
		} else {
			s.service.Dispatch(domain.RegisterCommand{Conn: id, Username: claims.Username})
		}
	}

	s.log.Info("Session opened", "connection", id, "remote", r.RemoteAddr)
	go sess.writePump()
	go sess.readPump(s.maxFrameSize)
}
