package runtime

import (
	"sort"

	"chat-relay/domain"
)

// Rooms maps room ids to member connections, with the inverse index kept in
// lockstep so teardown can drop a connection from every room it joined.
// Membership is independent from identity: an unregistered connection may
// sit in a room and receive its traffic.
type Rooms struct {
	members map[domain.RoomID]domain.Set[domain.ConnectionID]
	joined  map[domain.ConnectionID]domain.Set[domain.RoomID]
}

func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[domain.RoomID]domain.Set[domain.ConnectionID]),
		joined:  make(map[domain.ConnectionID]domain.Set[domain.RoomID]),
	}
}

// Join adds the connection to the room, creating it lazily.
// Joining a room the connection is already in is a no-op.
func (r *Rooms) Join(conn domain.ConnectionID, room domain.RoomID) bool {
	if _, ok := r.members[room]; !ok {
		r.members[room] = make(domain.Set[domain.ConnectionID])
	}
	if r.members[room].Contains(conn) {
		return false
	}
	r.members[room].Add(conn)

	if _, ok := r.joined[conn]; !ok {
		r.joined[conn] = make(domain.Set[domain.RoomID])
	}
	r.joined[conn].Add(room)
	return true
}

// Leave removes the connection from the room. Leaving a room the connection
// is not in is a no-op. Empty room entries are dropped to avoid leaking
// one map entry per room name ever seen.
func (r *Rooms) Leave(conn domain.ConnectionID, room domain.RoomID) {
	if members, ok := r.members[room]; ok {
		members.Remove(conn)
		if len(members) == 0 {
			delete(r.members, room)
		}
	}
	if joined, ok := r.joined[conn]; ok {
		joined.Remove(room)
		if len(joined) == 0 {
			delete(r.joined, conn)
		}
	}
}

// MembersOf returns the current member connections of a room.
func (r *Rooms) MembersOf(room domain.RoomID) []domain.ConnectionID {
	members, ok := r.members[room]
	if !ok {
		return nil
	}
	conns := make([]domain.ConnectionID, 0, len(members))
	for conn := range members {
		conns = append(conns, conn)
	}
	return conns
}

// RoomsOf returns the rooms a connection currently belongs to, sorted.
func (r *Rooms) RoomsOf(conn domain.ConnectionID) []domain.RoomID {
	joined, ok := r.joined[conn]
	if !ok {
		return nil
	}
	rooms := make([]domain.RoomID, 0, len(joined))
	for room := range joined {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i] < rooms[j] })
	return rooms
}

// DropConnection removes the connection from every room it belongs to and
// returns the affected rooms. Called on teardown before identity release.
func (r *Rooms) DropConnection(conn domain.ConnectionID) []domain.RoomID {
	rooms := r.RoomsOf(conn)
	for _, room := range rooms {
		r.Leave(conn, room)
	}
	return rooms
}
