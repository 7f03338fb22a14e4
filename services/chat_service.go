package services

import (
	"context"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/runtime"
	"chat-relay/search"
)

// IChatService is the engine facade the transport edge talks to.
// Commands go through the coordinator's serial queue; history and search
// reads bypass it, since they touch no coordinator-owned state.
type IChatService interface {
	Connect(conn domain.ConnectionID, sink contract.EventSink)
	Dispatch(cmd domain.Command)
	Recent(key domain.ConversationKey, limit int) ([]domain.Message, error)
	Search(ctx context.Context, rawQuery string) ([]search.Hit, error)
}

type ChatService struct {
	coordinator *runtime.Coordinator
	history     contract.HistoryStore
	index       *search.Index
}

func NewChatService(coordinator *runtime.Coordinator, history contract.HistoryStore, index *search.Index) *ChatService {
	return &ChatService{coordinator: coordinator, history: history, index: index}
}

func (s *ChatService) Connect(conn domain.ConnectionID, sink contract.EventSink) {
	s.coordinator.Attach(conn, sink)
}

func (s *ChatService) Dispatch(cmd domain.Command) {
	s.coordinator.Dispatch(cmd)
}

func (s *ChatService) Recent(key domain.ConversationKey, limit int) ([]domain.Message, error) {
	return s.history.Recent(key, limit)
}

func (s *ChatService) Search(ctx context.Context, rawQuery string) ([]search.Hit, error) {
	return s.index.Search(ctx, search.ParseQuery(rawQuery))
}
