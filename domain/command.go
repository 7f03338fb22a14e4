package domain

import "time"

// Command is an inbound intent attached to one live connection.
// All commands are processed serially by the coordinator.
type Command interface {
	ConnectionID() ConnectionID
}

type ConnectCommand struct {
	Conn ConnectionID
}

type RegisterCommand struct {
	Conn     ConnectionID
	Username string
}

type JoinRoomCommand struct {
	Conn ConnectionID
	Room RoomID
}

type LeaveRoomCommand struct {
	Conn ConnectionID
	Room RoomID
}

type PostMessageCommand struct {
	Conn      ConnectionID
	Room      RoomID // optional
	Recipient string // optional
	Body      string
	Kind      Kind
	CreatedAt time.Time
}

type TypingCommand struct {
	Conn      ConnectionID
	Room      RoomID
	Recipient string
	IsTyping  bool
}

// FocusCommand records which conversation the client currently displays.
// Deliveries to the focused conversation do not bump the unread counter.
type FocusCommand struct {
	Conn      ConnectionID
	Room      RoomID
	Recipient string
}

type MarkReadCommand struct {
	Conn      ConnectionID
	Room      RoomID
	Recipient string
}

type DisconnectCommand struct {
	Conn ConnectionID
}

func (c ConnectCommand) ConnectionID() ConnectionID     { return c.Conn }
func (c RegisterCommand) ConnectionID() ConnectionID    { return c.Conn }
func (c JoinRoomCommand) ConnectionID() ConnectionID    { return c.Conn }
func (c LeaveRoomCommand) ConnectionID() ConnectionID   { return c.Conn }
func (c PostMessageCommand) ConnectionID() ConnectionID { return c.Conn }
func (c TypingCommand) ConnectionID() ConnectionID      { return c.Conn }
func (c FocusCommand) ConnectionID() ConnectionID       { return c.Conn }
func (c MarkReadCommand) ConnectionID() ConnectionID    { return c.Conn }
func (c DisconnectCommand) ConnectionID() ConnectionID  { return c.Conn }

// Key resolves the conversation a command targets, for commands that have one.
func (c PostMessageCommand) Key(sender string) ConversationKey {
	return KeyFor(c.Room, sender, c.Recipient)
}

func (c TypingCommand) Key(sender string) ConversationKey {
	return KeyFor(c.Room, sender, c.Recipient)
}

func (c FocusCommand) Key(sender string) ConversationKey {
	return KeyFor(c.Room, sender, c.Recipient)
}

func (c MarkReadCommand) Key(sender string) ConversationKey {
	return KeyFor(c.Room, sender, c.Recipient)
}
