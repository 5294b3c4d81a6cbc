package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrRoomNotFound = errors.New("unknown room code")
	ErrRoomExists   = errors.New("room code already in use")
)

// Room is one persisted game room. GameState, Players and
// ChatMessages are opaque JSON blobs: the relay stores and forwards
// them without reading inside.
type Room struct {
	ID           string          `json:"id"`
	Code         string          `json:"roomCode"`
	GameState    json.RawMessage `json:"gameState,omitempty"`
	Players      json.RawMessage `json:"players"`
	ChatMessages json.RawMessage `json:"chatMessages"`
	IsActive     bool            `json:"isActive"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// RoomStore persists game rooms. Implementations must be safe for
// concurrent use.
type RoomStore interface {
	// CreateRoom registers a new active room under code.
	// ErrRoomExists if the code is taken.
	CreateRoom(ctx context.Context, code string, players json.RawMessage) (*Room, error)

	// GetRoom fetches an active room. ErrRoomNotFound for unknown or
	// deactivated codes.
	GetRoom(ctx context.Context, code string) (*Room, error)

	// UpdateGameState replaces the room's canonical game state blob
	UpdateGameState(ctx context.Context, code string, state json.RawMessage) error

	// UpdatePlayers replaces the room's player roster blob
	UpdatePlayers(ctx context.Context, code string, players json.RawMessage) error

	// AddChatMessage appends one message and returns the full log
	AddChatMessage(ctx context.Context, code string, message json.RawMessage) (json.RawMessage, error)

	// DeactivateRoom soft-deletes a room; purging happens later
	DeactivateRoom(ctx context.Context, code string) error

	// ActiveRooms lists active rooms, newest first, capped at 50
	ActiveRooms(ctx context.Context) ([]*Room, error)

	// PurgeStale deletes deactivated rooms untouched for longer than
	// maxAge and reports how many went
	PurgeStale(ctx context.Context, maxAge time.Duration) (int, error)
}

const activeRoomsLimit = 50

// emptyList is the zero value for the JSON array blobs
var emptyList = json.RawMessage("[]")
