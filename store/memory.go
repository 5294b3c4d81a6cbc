package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	uuid "github.com/satori/go.uuid"
)

// InMemoryRoomStore maps room code to room. It is the store for
// single-node deployments and tests.
type InMemoryRoomStore struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	now   func() time.Time
}

// NewInMemoryRoomStore constructs an empty InMemoryRoomStore
func NewInMemoryRoomStore() *InMemoryRoomStore {
	return &InMemoryRoomStore{
		rooms: map[string]*Room{},
		now:   time.Now,
	}
}

func (s *InMemoryRoomStore) CreateRoom(ctx context.Context, code string, players json.RawMessage) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[code]; ok {
		return nil, ErrRoomExists
	}

	if players == nil {
		players = emptyList
	}
	now := s.now()
	room := &Room{
		ID:           uuid.NewV4().String(),
		Code:         code,
		Players:      players,
		ChatMessages: emptyList,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.rooms[code] = room
	return copyRoom(room), nil
}

func (s *InMemoryRoomStore) GetRoom(ctx context.Context, code string) (*Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[code]
	if !ok || !room.IsActive {
		return nil, ErrRoomNotFound
	}
	return copyRoom(room), nil
}

func (s *InMemoryRoomStore) UpdateGameState(ctx context.Context, code string, state json.RawMessage) error {
	return s.update(code, func(room *Room) {
		room.GameState = append(json.RawMessage{}, state...)
	})
}

func (s *InMemoryRoomStore) UpdatePlayers(ctx context.Context, code string, players json.RawMessage) error {
	return s.update(code, func(room *Room) {
		room.Players = append(json.RawMessage{}, players...)
	})
}

func (s *InMemoryRoomStore) AddChatMessage(ctx context.Context, code string, message json.RawMessage) (json.RawMessage, error) {
	var log json.RawMessage
	err := s.update(code, func(room *Room) {
		var messages []json.RawMessage
		if len(room.ChatMessages) > 0 {
			// a corrupt log is replaced rather than wedging the room
			_ = json.Unmarshal(room.ChatMessages, &messages)
		}
		messages = append(messages, message)
		room.ChatMessages, _ = json.Marshal(messages)
		log = append(json.RawMessage{}, room.ChatMessages...)
	})
	if err != nil {
		return nil, err
	}
	return log, nil
}

func (s *InMemoryRoomStore) DeactivateRoom(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return ErrRoomNotFound
	}
	room.IsActive = false
	room.UpdatedAt = s.now()
	return nil
}

func (s *InMemoryRoomStore) ActiveRooms(ctx context.Context) ([]*Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := []*Room{}
	for _, room := range s.rooms {
		if room.IsActive {
			rooms = append(rooms, copyRoom(room))
		}
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.After(rooms[j].CreatedAt)
	})
	if len(rooms) > activeRoomsLimit {
		rooms = rooms[:activeRoomsLimit]
	}
	return rooms, nil
}

func (s *InMemoryRoomStore) PurgeStale(ctx context.Context, maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)
	purged := 0
	for code, room := range s.rooms {
		if !room.IsActive && room.UpdatedAt.Before(cutoff) {
			delete(s.rooms, code)
			purged++
		}
	}
	return purged, nil
}

func (s *InMemoryRoomStore) update(code string, fn func(*Room)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok || !room.IsActive {
		return ErrRoomNotFound
	}
	fn(room)
	room.UpdatedAt = s.now()
	return nil
}

func copyRoom(room *Room) *Room {
	c := *room
	c.GameState = append(json.RawMessage{}, room.GameState...)
	c.Players = append(json.RawMessage{}, room.Players...)
	c.ChatMessages = append(json.RawMessage{}, room.ChatMessages...)
	if room.GameState == nil {
		c.GameState = nil
	}
	return &c
}
