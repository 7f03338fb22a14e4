package runtime

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

type fakeHistory struct {
	records map[domain.ConversationKey][]domain.Message
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{records: make(map[domain.ConversationKey][]domain.Message)}
}

func (f *fakeHistory) Append(record domain.Message) error {
	key := record.Conversation()
	f.records[key] = append(f.records[key], record)
	return nil
}

func (f *fakeHistory) Recent(key domain.ConversationKey, limit int) ([]domain.Message, error) {
	records := f.records[key]
	if len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

func newTestCoordinator(history *fakeHistory) *Coordinator {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCoordinator(log, NewRegistry(), NewRooms(), NewTypingState(), history, Options{
		HistoryLimit:     50,
		MaxContentLength: 64,
		TypingTTL:        10 * time.Second,
		BufferSize:       64,
	})
}

func connect(c *Coordinator, name string) (domain.ConnectionID, *Sink) {
	conn := domain.NewConnectionID()
	sink := &Sink{name: name}
	c.Handle(attach{conn: conn, sink: sink})
	return conn, sink
}

func register(c *Coordinator, username string) (domain.ConnectionID, *Sink) {
	conn, sink := connect(c, username)
	c.Handle(domain.RegisterCommand{Conn: conn, Username: username})
	drain(c)
	return conn, sink
}

// drain collects every delivery the coordinator emitted so far.
func drain(c *Coordinator) []Delivery {
	var out []Delivery
	for {
		select {
		case d := <-c.Deliveries():
			out = append(out, d)
		default:
			return out
		}
	}
}

func messagesOf(ds []Delivery) []Delivery {
	return lo.Filter(ds, func(d Delivery, _ int) bool {
		_, ok := d.Event.(event.MessageDelivered)
		return ok
	})
}

func errorsOf(ds []Delivery) []event.ErrorRaised {
	return lo.FilterMap(ds, func(d Delivery, _ int) (event.ErrorRaised, bool) {
		e, ok := d.Event.(event.ErrorRaised)
		return e, ok
	})
}

func unreadsOf(ds []Delivery) []event.UnreadChanged {
	return lo.FilterMap(ds, func(d Delivery, _ int) (event.UnreadChanged, bool) {
		e, ok := d.Event.(event.UnreadChanged)
		return e, ok
	})
}

func typingOf(ds []Delivery) []Delivery {
	return lo.Filter(ds, func(d Delivery, _ int) bool {
		_, ok := d.Event.(event.TypingChanged)
		return ok
	})
}

func TestCoordinator_Register_Broadcasts_Presence_And_Replays(t *testing.T) {
	req := require.New(t)
	history := newFakeHistory()
	req.NoError(history.Append(domain.Message{Sender: "eve", Body: "welcome", Scope: domain.ScopePublic}))
	coordinator := newTestCoordinator(history)
	conn, sink := connect(coordinator, "alice")

	// When the connection registers
	coordinator.Handle(domain.RegisterCommand{Conn: conn, Username: "alice"})
	deliveries := drain(coordinator)
	req.Len(deliveries, 2)

	// Then presence goes to every attached session
	presence, ok := deliveries[0].Event.(event.PresenceChanged)
	req.True(ok)
	req.Equal([]string{"alice"}, presence.Online)

	// And the public backlog is replayed to the new session only
	replay, ok := deliveries[1].Event.(event.HistoryReplayed)
	req.True(ok)
	req.Equal(domain.PublicConversation, replay.Key)
	req.Len(replay.Records, 1)
	req.Equal("welcome", replay.Records[0].Body)
	req.Len(deliveries[1].Targets, 1)
	req.Same(sink, deliveries[1].Targets[0])
}

func TestCoordinator_Register_Displaces_Previous_Session(t *testing.T) {
	req := require.New(t)
	coordinator := newTestCoordinator(newFakeHistory())
	_, oldSink := register(coordinator, "alice")
	bobConn, bobSink := register(coordinator, "bob")

	// Given alice reconnects from a second session
	conn2, newSink := connect(coordinator, "alice-2")
	coordinator.Handle(domain.RegisterCommand{Conn: conn2, Username: "alice"})
	deliveries := drain(coordinator)

	// Then the online set still lists alice once
	presence, ok := deliveries[0].Event.(event.PresenceChanged)
	req.True(ok)
	req.Equal([]string{"alice", "bob"}, presence.Online)

	// When bob sends alice a direct message
	coordinator.Handle(domain.PostMessageCommand{Conn: bobConn, Recipient: "alice", Body: "hey"})
	messages := messagesOf(drain(coordinator))
	req.Len(messages, 1)

	// Then only the newest alice session is targeted
	req.Contains(messages[0].Targets, newSink)
	req.Contains(messages[0].Targets, bobSink)
	req.NotContains(messages[0].Targets, oldSink)
}

func TestCoordinator_Room_Message_Reaches_Members_Only(t *testing.T) {
	req := require.New(t)
	coordinator := newTestCoordinator(newFakeHistory())
	aliceConn, aliceSink := register(coordinator, "alice")
	bobConn, bobSink := register(coordinator, "bob")
	_, carolSink := register(coordinator, "carol")

	coordinator.Handle(domain.JoinRoomCommand{Conn: aliceConn, Room: "dev"})
	coordinator.Handle(domain.JoinRoomCommand{Conn: bobConn, Room: "dev"})
	drain(coordinator)

	// When alice posts into the room
	coordinator.Handle(domain.PostMessageCommand{Conn: aliceConn, Room: "dev", Body: "standup?"})
	deliveries := drain(coordinator)
	messages := messagesOf(deliveries)
	req.Len(messages, 1)

	// Then the delivery set is exactly the members, sender echo included
	req.Len(messages[0].Targets, 2)
	req.Contains(messages[0].Targets, aliceSink)
	req.Contains(messages[0].Targets, bobSink)
	req.NotContains(messages[0].Targets, carolSink)

	delivered := messages[0].Event.(event.MessageDelivered)
	req.Equal(domain.ScopeRoom, delivered.Record.Scope)
	req.Equal(domain.ConversationKey("dev"), delivered.Record.Conversation())
	req.False(delivered.Record.CreatedAt.IsZero())
}

func TestCoordinator_Public_Message_Reaches_Everyone(t *testing.T) {
	req := require.New(t)
	coordinator := newTestCoordinator(newFakeHistory())
	aliceConn, aliceSink := register(coordinator, "alice")
	_, bobSink := register(coordinator, "bob")

	// Given an attached session that never registered
	_, anonSink := connect(coordinator, "anon")

	// When alice posts without room or recipient
	coordinator.Handle(domain.PostMessageCommand{Conn: aliceConn, Body: "hello all"})
	messages := messagesOf(drain(coordinator))
	req.Len(messages, 1)

	// Then every attached session is targeted
	req.Len(messages[0].Targets, 3)
	req.Contains(messages[0].Targets, aliceSink)
	req.Contains(messages[0].Targets, bobSink)
	req.Contains(messages[0].Targets, anonSink)
	req.Equal(domain.ScopePublic, messages[0].Event.(event.MessageDelivered).Record.Scope)
}

func TestCoordinator_Direct_Message_Targets_Both_Ends(t *testing.T) {
	req := require.New(t)
	coordinator := newTestCoordinator(newFakeHistory())
	aliceConn, aliceSink := register(coordinator, "alice")
	_, bobSink := register(coordinator, "bob")
	_, carolSink := register(coordinator, "carol")

	// When alice messages bob directly
	coordinator.Handle(domain.PostMessageCommand{Conn: aliceConn, Recipient: "bob", Body: "lunch?"})
	deliveries := drain(coordinator)
	messages := messagesOf(deliveries)
	req.Len(messages, 1)

	// Then the delivery set is {sender, recipient} and nobody else
	req.Len(messages[0].Targets, 2)
	req.Contains(messages[0].Targets, aliceSink)
	req.Contains(messages[0].Targets, bobSink)
	req.NotContains(messages[0].Targets, carolSink)
	req.Equal(domain.ConversationKey("alice|bob"), messages[0].Event.Conversation())

	// And bob's unread counter for the pair conversation moves to one
	unreads := unreadsOf(deliveries)
	req.Len(unreads, 1)
	req.Equal("bob", unreads[0].Username)
	req.Equal(domain.ConversationKey("alice|bob"), unreads[0].Key)
	req.Equal(1, unreads[0].Count)
}

func TestCoordinator_Self_Direct_Message_Delivered_Once(t *testing.T) {
	req := require.New(t)
	coordinator := newTestCoordinator(newFakeHistory())
	aliceConn, aliceSink := register(coordinator, "alice")

	// When alice messages herself
	coordinator.Handle(domain.PostMessageCommand{Conn: aliceConn, Recipient: "alice", Body: "note to self"})
	deliveries := drain(coordinator)

	// Then exactly one delivery targets her sink exactly once
	messages := messagesOf(deliveries)
	req.Len(messages, 1)
	req.Len(messages[0].Targets, 1)
	req.Same(aliceSink, messages[0].Targets[0])
	req.Equal(domain.ConversationKey("alice|alice"), messages[0].Event.Conversation())

	// And her own unread counter never moves
	req.Empty(unreadsOf(deliveries))
}

func TestCoordinator_Direct_Message_Offline_Recipient(t *testing.T) {
	req := require.New(t)
	coordinator := newTestCoordinator(newFakeHistory())
	aliceConn, aliceSink := register(coordinator, "alice")

	// When alice messages someone who is not online
	coordinator.Handle(domain.PostMessageCommand{Conn: aliceConn, Recipient: "ghost", Body: "there?"})
	deliveries := drain(coordinator)

	// Then the sender is told the recipient was not found
	errs := errorsOf(deliveries)
	req.Len(errs, 1)
	req.Equal("RECIPIENT_NOT_FOUND", errs[0].Code)

	// And the record is still routed for persistence, sender echo only
	messages := messagesOf(deliveries)
	req.Len(messages, 1)
	req.Len(messages[0].Targets, 1)
	req.Same(aliceSink, messages[0].Targets[0])
	req.Equal(domain.ConversationKey("alice|ghost"), messages[0].Event.Conversation())
}

func TestCoordinator_Post_Requires_Registration(t *testing.T) {
	req := require.New(t)
	coordinator := newTestCoordinator(newFakeHistory())
	conn, _ := connect(coordinator, "anon")

	// When an unregistered connection posts
	coordinator.Handle(domain.PostMessageCommand{Conn: conn, Body: "hi"})
	deliveries := drain(coordinator)

	// Then it gets a targeted error and nothing is routed
	errs := errorsOf(deliveries)
	req.Len(errs, 1)
	req.Equal("NOT_REGISTERED", errs[0].Code)
	req.Empty(messagesOf(deliveries))
}

func TestCoordinator_Post_Rejects_Oversized_Body(t *testing.T) {
	req := require.New(t)
	coordinator := newTestCoordinator(newFakeHistory())
	conn, _ := register(coordinator, "alice")

	// When the body exceeds the configured ceiling
	coordinator.Handle(domain.PostMessageCommand{Conn: conn, Body: strings.Repeat("x", 65)})
	deliveries := drain(coordinator)

	// Then the sender gets PAYLOAD_TOO_LARGE and nothing is routed
	errs := errorsOf(deliveries)
	req.Len(errs, 1)
	req.Equal("PAYLOAD_TOO_LARGE", errs[0].Code)
	req.Empty(messagesOf(deliveries))
}

func TestCoordinator_MarkRead_Resets_Then_Counts_Again(t *testing.T) {
	req := require.New(t)
	coordinator := newTestCoordinator(newFakeHistory())
	aliceConn, _ := register(coordinator, "alice")
	bobConn, _ := register(coordinator, "bob")

	// Given bob has one unread direct message from alice
	coordinator.Handle(domain.PostMessageCommand{Conn: aliceConn, Recipient: "bob", Body: "one"})
	drain(coordinator)

	// When bob marks the conversation read
	coordinator.Handle(domain.MarkReadCommand{Conn: bobConn, Recipient: "alice"})
	unreads := unreadsOf(drain(coordinator))
	req.Len(unreads, 1)
	req.Equal(0, unreads[0].Count)

	// Then the next message counts from zero again
	coordinator.Handle(domain.PostMessageCommand{Conn: aliceConn, Recipient: "bob", Body: "two"})
	unreads = unreadsOf(drain(coordinator))
	req.Len(unreads, 1)
	req.Equal(1, unreads[0].Count)
}

func TestCoordinator_Focused_Viewer_Gets_No_Unread(t *testing.T) {
	req := require.New(t)
	coordinator := newTestCoordinator(newFakeHistory())
	aliceConn, _ := register(coordinator, "alice")
	bobConn, _ := register(coordinator, "bob")

	// Given bob is looking at his conversation with alice
	coordinator.Handle(domain.FocusCommand{Conn: bobConn, Recipient: "alice"})
	drain(coordinator)

	// When alice messages bob
	coordinator.Handle(domain.PostMessageCommand{Conn: aliceConn, Recipient: "bob", Body: "hi"})
	deliveries := drain(coordinator)

	// Then the message arrives without any counter change
	req.Len(messagesOf(deliveries), 1)
	req.Empty(unreadsOf(deliveries))
}

func TestCoordinator_Join_Moves_Focus_And_Replays_Room(t *testing.T) {
	req := require.New(t)
	history := newFakeHistory()
	req.NoError(history.Append(domain.Message{Sender: "eve", Body: "old", Scope: domain.ScopeRoom, Room: "dev"}))
	coordinator := newTestCoordinator(history)
	aliceConn, _ := register(coordinator, "alice")
	bobConn, bobSink := register(coordinator, "bob")
	coordinator.Handle(domain.JoinRoomCommand{Conn: aliceConn, Room: "dev"})
	drain(coordinator)

	// When bob joins the room
	coordinator.Handle(domain.JoinRoomCommand{Conn: bobConn, Room: "dev"})
	deliveries := drain(coordinator)

	// Then the room backlog is replayed to bob alone
	req.Len(deliveries, 1)
	replay, ok := deliveries[0].Event.(event.HistoryReplayed)
	req.True(ok)
	req.Equal(domain.ConversationKey("dev"), replay.Key)
	req.Len(replay.Records, 1)
	req.Len(deliveries[0].Targets, 1)
	req.Same(bobSink, deliveries[0].Targets[0])

	// And room traffic no longer bumps bob's counter, the room has his focus
	coordinator.Handle(domain.PostMessageCommand{Conn: aliceConn, Room: "dev", Body: "hi"})
	req.Empty(unreadsOf(drain(coordinator)))
}

func TestCoordinator_Typing_Broadcast_And_Clear_On_Send(t *testing.T) {
	req := require.New(t)
	coordinator := newTestCoordinator(newFakeHistory())
	aliceConn, _ := register(coordinator, "alice")
	register(coordinator, "bob")

	// When alice starts typing publicly
	coordinator.Handle(domain.TypingCommand{Conn: aliceConn, IsTyping: true})
	typings := typingOf(drain(coordinator))
	req.Len(typings, 1)
	req.Equal([]string{"alice"}, typings[0].Event.(event.TypingChanged).Typing)

	// Then sending a message clears her flag before the delivery goes out
	coordinator.Handle(domain.PostMessageCommand{Conn: aliceConn, Body: "done typing"})
	deliveries := drain(coordinator)
	typings = typingOf(deliveries)
	req.Len(typings, 1)
	req.Empty(typings[0].Event.(event.TypingChanged).Typing)
	req.Len(messagesOf(deliveries), 1)
}

func TestCoordinator_Disconnect_While_Typing(t *testing.T) {
	req := require.New(t)
	coordinator := newTestCoordinator(newFakeHistory())
	aliceConn, _ := register(coordinator, "alice")
	_, bobSink := register(coordinator, "bob")
	coordinator.Handle(domain.TypingCommand{Conn: aliceConn, IsTyping: true})
	drain(coordinator)

	// When alice's connection drops mid-typing
	coordinator.Handle(domain.DisconnectCommand{Conn: aliceConn})
	deliveries := drain(coordinator)

	// Then her flag is cleared for the remaining audience
	typings := typingOf(deliveries)
	req.Len(typings, 1)
	req.Empty(typings[0].Event.(event.TypingChanged).Typing)
	req.Contains(typings[0].Targets, bobSink)

	// And presence reflects her departure
	presence, ok := deliveries[len(deliveries)-1].Event.(event.PresenceChanged)
	req.True(ok)
	req.Equal([]string{"bob"}, presence.Online)
}

func TestCoordinator_Sweep_Expires_Stuck_Typing(t *testing.T) {
	req := require.New(t)
	now := time.Now()
	history := newFakeHistory()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	coordinator := NewCoordinator(log, NewRegistry(), NewRooms(), NewTypingState(), history, Options{
		HistoryLimit: 50,
		TypingTTL:    10 * time.Second,
		BufferSize:   64,
		Now:          func() time.Time { return now },
	})
	aliceConn, _ := register(coordinator, "alice")
	coordinator.Handle(domain.TypingCommand{Conn: aliceConn, IsTyping: true})
	drain(coordinator)

	// When the TTL elapses without a stop event
	now = now.Add(11 * time.Second)
	coordinator.Handle(SweepTypingCommand{})
	typings := typingOf(drain(coordinator))

	// Then the stuck flag is swept and the empty set broadcast
	req.Len(typings, 1)
	req.Empty(typings[0].Event.(event.TypingChanged).Typing)
}
