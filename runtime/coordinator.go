package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	apperrors "chat-relay/errors"
)

// Delivery pairs a routed event with the exact set of connection sinks that
// must receive it. The fanout worker also hands every delivery to the
// permanent sinks (persistence, search index, projections), which pick the
// event types they care about.
type Delivery struct {
	Event   event.DomainEvent
	Targets []contract.EventSink
}

// attach is the runtime-internal command that hands a new session sink to
// the coordinator. It goes through the same serial queue as everything else
// so no mutation of the registry ever happens off the coordinator goroutine.
type attach struct {
	conn domain.ConnectionID
	sink contract.EventSink
}

func (a attach) ConnectionID() domain.ConnectionID { return a.conn }

// Options groups the coordinator knobs and the pluggable content passes.
// The function fields keep the routing core free of direct dependencies on
// the moderation, language and payload-sniffing packages.
type Options struct {
	HistoryLimit     int
	MaxContentLength int
	TypingTTL        time.Duration
	BufferSize       int

	Censor         func(string) string // applied to text bodies before routing
	DetectLanguage func(string) string // ISO 639-3 tag for text bodies
	CheckImage     func(string) error  // rejects non-image payloads
	Now            func() time.Time    // injectable clock
}

// Coordinator is the single logical actor of the engine. It consumes inbound
// commands serially, owns every mutable table (identity, rooms, typing,
// unread counters) and computes delivery sets synchronously, so per
// conversation the delivery order equals the arrival order. The only
// asynchronous boundaries are the outbound pushes and the persistence
// appends, both downstream of the Deliveries channel.
type Coordinator struct {
	log      *slog.Logger
	registry *Registry
	rooms    *Rooms
	typing   *TypingState
	history  contract.HistoryStore

	commands   chan domain.Command
	deliveries chan Delivery

	unread map[string]map[domain.ConversationKey]int
	focus  map[string]domain.ConversationKey

	opts Options
}

func NewCoordinator(log *slog.Logger, registry *Registry, rooms *Rooms,
	typing *TypingState, history contract.HistoryStore, opts Options) *Coordinator {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Censor == nil {
		opts.Censor = func(s string) string { return s }
	}
	if opts.DetectLanguage == nil {
		opts.DetectLanguage = func(string) string { return "" }
	}
	if opts.CheckImage == nil {
		opts.CheckImage = func(string) error { return nil }
	}
	return &Coordinator{
		log:        log,
		registry:   registry,
		rooms:      rooms,
		typing:     typing,
		history:    history,
		commands:   make(chan domain.Command, opts.BufferSize),
		deliveries: make(chan Delivery, opts.BufferSize),
		unread:     make(map[string]map[domain.ConversationKey]int),
		focus:      make(map[string]domain.ConversationKey),
		opts:       opts,
	}
}

// Attach hands a freshly connected session to the coordinator.
func (c *Coordinator) Attach(conn domain.ConnectionID, sink contract.EventSink) {
	c.Dispatch(attach{conn: conn, sink: sink})
}

// Dispatch enqueues a command for serial processing. When the queue is full
// the command is dropped with a warning rather than blocking the caller.
func (c *Coordinator) Dispatch(cmd domain.Command) {
	select {
	case c.commands <- cmd:
	default:
		c.log.Warn(fmt.Sprintf("Command channel full, dropping command from %s", cmd.ConnectionID()))
	}
}

// Deliveries exposes the routed-event stream consumed by the fanout worker.
func (c *Coordinator) Deliveries() <-chan Delivery {
	return c.deliveries
}

func (c *Coordinator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			c.log.Debug("Stopping coordinator")
			return ctx.Err()
		case cmd, ok := <-c.commands:
			if !ok {
				return nil
			}
			c.Handle(cmd)
		}
	}
}

// Handle processes one command to completion. Exported so tests can drive
// the coordinator deterministically without the Run loop.
func (c *Coordinator) Handle(cmd domain.Command) {
	switch cc := cmd.(type) {
	case attach:
		c.registry.Attach(cc.conn, cc.sink)
	case domain.RegisterCommand:
		c.handleRegister(cc)
	case domain.JoinRoomCommand:
		c.handleJoin(cc)
	case domain.LeaveRoomCommand:
		c.rooms.Leave(cc.Conn, cc.Room)
	case domain.PostMessageCommand:
		c.handlePost(cc)
	case domain.TypingCommand:
		c.handleTyping(cc)
	case domain.FocusCommand:
		c.handleFocus(cc)
	case domain.MarkReadCommand:
		c.handleMarkRead(cc)
	case domain.DisconnectCommand:
		c.handleDisconnect(cc)
	case SweepTypingCommand:
		c.handleSweep()
	default:
		c.log.Debug(fmt.Sprintf("Unhandled command type %T", cmd))
	}
}

// SweepTyping clears stale typing entries and broadcasts the shrunk sets.
// Invoked by the sweeper worker through the command queue.
type SweepTypingCommand struct{}

func (SweepTypingCommand) ConnectionID() domain.ConnectionID { return "" }

func (c *Coordinator) handleRegister(cmd domain.RegisterCommand) {
	sink, ok := c.registry.SinkOf(cmd.Conn)
	if !ok {
		c.log.Warn(fmt.Sprintf("Register for unknown connection %s", cmd.Conn))
		return
	}
	if cmd.Username == "" {
		c.fail(sink, apperrors.ErrValidationFailure, "username is required")
		return
	}

	if displaced, was := c.registry.Bind(cmd.Conn, cmd.Username); was {
		c.log.Info("Username rebound, previous session displaced",
			"username", cmd.Username, "displaced", displaced)
	}
	if _, has := c.focus[cmd.Username]; !has {
		c.focus[cmd.Username] = domain.PublicConversation
	}

	c.broadcastPresence()
	c.replay(sink, domain.PublicConversation)
}

func (c *Coordinator) handleJoin(cmd domain.JoinRoomCommand) {
	sink, ok := c.registry.SinkOf(cmd.Conn)
	if !ok {
		return
	}
	if cmd.Room == "" {
		c.fail(sink, apperrors.ErrRoomRequired, "joinRoom needs a room id")
		return
	}
	c.rooms.Join(cmd.Conn, cmd.Room)

	// Switching into a room moves the viewer's focus there.
	if username, bound := c.registry.UsernameOf(cmd.Conn); bound {
		c.focus[username] = domain.ConversationKey(cmd.Room)
	}
	c.replay(sink, domain.ConversationKey(cmd.Room))
}

func (c *Coordinator) handlePost(cmd domain.PostMessageCommand) {
	sink, _ := c.registry.SinkOf(cmd.Conn)
	sender, bound := c.registry.UsernameOf(cmd.Conn)
	if !bound {
		c.fail(sink, apperrors.ErrNotRegistered, "register before sending messages")
		return
	}
	if c.opts.MaxContentLength > 0 && len(cmd.Body) > c.opts.MaxContentLength {
		c.fail(sink, apperrors.ErrPayloadTooLarge,
			fmt.Sprintf("body exceeds %d bytes", c.opts.MaxContentLength))
		return
	}

	kind := cmd.Kind
	if kind == "" {
		kind = domain.KindText
	}

	body := cmd.Body
	language := ""
	switch kind {
	case domain.KindImage:
		if err := c.opts.CheckImage(body); err != nil {
			c.fail(sink, apperrors.ErrValidationFailure, err.Error())
			return
		}
	default:
		body = c.opts.Censor(body)
		language = c.opts.DetectLanguage(body)
	}

	createdAt := cmd.CreatedAt
	if createdAt.IsZero() {
		createdAt = c.opts.Now()
	}

	record := domain.Message{
		ID:        uuid.New(),
		Sender:    sender,
		Body:      body,
		Kind:      kind,
		Room:      cmd.Room,
		Recipient: cmd.Recipient,
		Language:  language,
		CreatedAt: createdAt,
	}

	var targets []contract.EventSink
	var recipients []string
	switch {
	case cmd.Room != "":
		record.Scope = domain.ScopeRoom
		targets, recipients = c.roomAudience(cmd.Room)
	case cmd.Recipient != "":
		record.Scope = domain.ScopeDirect
		targets = c.directTargets(sender, cmd.Recipient)
		recipients = []string{cmd.Recipient}
		if _, online := c.registry.Resolve(cmd.Recipient); !online {
			// Delivery leg skipped, record still persisted below.
			c.fail(sink, apperrors.ErrRecipientNotFound, cmd.Recipient)
		}
	default:
		record.Scope = domain.ScopePublic
		targets = c.registry.AllSinks()
		recipients = c.registry.Online()
	}

	key := record.Conversation()

	// Sending in a conversation implies the sender stopped typing there.
	if c.typing.Clear(key, sender) {
		c.emit(Delivery{
			Event:   event.TypingChanged{Key: key, Typing: c.typing.Active(key)},
			Targets: c.conversationTargets(cmd.Room, sender, cmd.Recipient),
		})
	}

	c.bumpUnread(key, sender, recipients)
	c.emit(Delivery{Event: event.MessageDelivered{Record: record}, Targets: targets})
}

func (c *Coordinator) handleTyping(cmd domain.TypingCommand) {
	sink, _ := c.registry.SinkOf(cmd.Conn)
	username, bound := c.registry.UsernameOf(cmd.Conn)
	if !bound {
		c.fail(sink, apperrors.ErrNotRegistered, "register before typing updates")
		return
	}
	key := cmd.Key(username)
	if !c.typing.Set(key, username, cmd.IsTyping, c.opts.Now()) {
		return
	}
	c.emit(Delivery{
		Event:   event.TypingChanged{Key: key, Typing: c.typing.Active(key)},
		Targets: c.conversationTargets(cmd.Room, username, cmd.Recipient),
	})
}

func (c *Coordinator) handleFocus(cmd domain.FocusCommand) {
	if username, bound := c.registry.UsernameOf(cmd.Conn); bound {
		c.focus[username] = cmd.Key(username)
	}
}

func (c *Coordinator) handleMarkRead(cmd domain.MarkReadCommand) {
	username, bound := c.registry.UsernameOf(cmd.Conn)
	if !bound {
		return
	}
	key := cmd.Key(username)
	if counters, ok := c.unread[username]; ok {
		delete(counters, key)
	}
	if sink, ok := c.registry.SinkOf(cmd.Conn); ok {
		c.emit(Delivery{
			Event:   event.UnreadChanged{Key: key, Username: username, Count: 0},
			Targets: []contract.EventSink{sink},
		})
	}
}

// handleDisconnect runs the full teardown in the order the invariants need:
// membership first, then typing, then identity, so no later broadcast can
// reference the dead connection.
func (c *Coordinator) handleDisconnect(cmd domain.DisconnectCommand) {
	c.rooms.DropConnection(cmd.Conn)

	if username, bound := c.registry.UsernameOf(cmd.Conn); bound {
		for _, key := range c.typing.ClearUser(username) {
			c.emit(Delivery{
				Event:   event.TypingChanged{Key: key, Typing: c.typing.Active(key)},
				Targets: c.targetsForKey(key),
			})
		}
	}

	_, released := c.registry.Release(cmd.Conn)
	c.registry.Detach(cmd.Conn)
	if released {
		c.broadcastPresence()
	}
}

func (c *Coordinator) handleSweep() {
	now := c.opts.Now()
	for _, key := range c.typing.Sweep(now, c.opts.TypingTTL) {
		c.emit(Delivery{
			Event:   event.TypingChanged{Key: key, Typing: c.typing.Active(key)},
			Targets: c.targetsForKey(key),
		})
	}
}

func (c *Coordinator) broadcastPresence() {
	c.emit(Delivery{
		Event:   event.PresenceChanged{Online: c.registry.Online(), At: c.opts.Now()},
		Targets: c.registry.AllSinks(),
	})
}

// replay pushes the bounded recent history of one conversation to one sink.
// Records come back oldest-first, ready for display.
func (c *Coordinator) replay(sink contract.EventSink, key domain.ConversationKey) {
	if sink == nil {
		return
	}
	records, err := c.history.Recent(key, c.opts.HistoryLimit)
	if err != nil {
		c.log.Error("History replay failed", "conversation", key, "error", err)
		c.emit(Delivery{
			Event:   event.PersistenceFailed{Key: key, Reason: err.Error()},
			Targets: nil,
		})
		return
	}
	c.emit(Delivery{
		Event:   event.HistoryReplayed{Key: key, Records: records},
		Targets: []contract.EventSink{sink},
	})
}

// bumpUnread increments counters for every recipient other than the sender
// whose focused conversation differs from the delivery key.
func (c *Coordinator) bumpUnread(key domain.ConversationKey, sender string, recipients []string) {
	for _, username := range recipients {
		if username == sender || c.focus[username] == key {
			continue
		}
		counters, ok := c.unread[username]
		if !ok {
			counters = make(map[domain.ConversationKey]int)
			c.unread[username] = counters
		}
		counters[key]++

		conn, online := c.registry.Resolve(username)
		if !online {
			continue
		}
		if sink, ok := c.registry.SinkOf(conn); ok {
			c.emit(Delivery{
				Event:   event.UnreadChanged{Key: key, Username: username, Count: counters[key]},
				Targets: []contract.EventSink{sink},
			})
		}
	}
}

// roomAudience resolves the member sinks of a room plus the usernames bound
// to those connections; unregistered members receive the message but have no
// unread bookkeeping.
func (c *Coordinator) roomAudience(room domain.RoomID) ([]contract.EventSink, []string) {
	members := c.rooms.MembersOf(room)
	sinks := lo.FilterMap(members, func(conn domain.ConnectionID, _ int) (contract.EventSink, bool) {
		return c.registry.SinkOf(conn)
	})
	usernames := lo.FilterMap(members, func(conn domain.ConnectionID, _ int) (string, bool) {
		return c.registry.UsernameOf(conn)
	})
	return sinks, usernames
}

// directTargets is {sender, recipient} with offline legs silently skipped.
// A self-addressed message collapses the set to one sink.
func (c *Coordinator) directTargets(sender, recipient string) []contract.EventSink {
	usernames := []string{recipient}
	if sender != recipient {
		usernames = append(usernames, sender)
	}

	var sinks []contract.EventSink
	for _, username := range usernames {
		if conn, ok := c.registry.Resolve(username); ok {
			if sink, ok := c.registry.SinkOf(conn); ok {
				sinks = append(sinks, sink)
			}
		}
	}
	return sinks
}

func (c *Coordinator) conversationTargets(room domain.RoomID, sender, recipient string) []contract.EventSink {
	switch {
	case room != "":
		sinks, _ := c.roomAudience(room)
		return sinks
	case recipient != "":
		return c.directTargets(sender, recipient)
	default:
		return c.registry.AllSinks()
	}
}

// targetsForKey resolves an audience from a bare conversation key, used when
// the originating room/recipient split is no longer at hand (teardown,
// typing sweep). Direct keys are recognized by the pair separator, which the
// transport edge keeps out of usernames and room ids.
func (c *Coordinator) targetsForKey(key domain.ConversationKey) []contract.EventSink {
	if key == domain.PublicConversation {
		return c.registry.AllSinks()
	}
	if a, b, isDirect := strings.Cut(string(key), "|"); isDirect {
		return c.directTargets(a, b)
	}
	sinks, _ := c.roomAudience(domain.RoomID(key))
	return sinks
}

func (c *Coordinator) fail(sink contract.EventSink, err error, reason string) {
	if sink == nil {
		return
	}
	c.emit(Delivery{
		Event:   event.ErrorRaised{Code: apperrors.CodeOf(err), Reason: reason},
		Targets: []contract.EventSink{sink},
	})
}

func (c *Coordinator) emit(d Delivery) {
	select {
	case c.deliveries <- d:
	default:
		c.log.Warn("Delivery channel full, dropping event")
	}
}
