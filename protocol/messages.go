package protocol

import "encoding/json"

// Envelope is the framing for every websocket message in either
// direction. The payload shape depends on Type.
type Envelope struct {
	Type    Cmd             `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload and wraps it with the given command
func NewEnvelope(cmd Cmd, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: cmd, Payload: raw}, nil
}

// RoomPlayer is a room member as tracked by the relay and persisted
// alongside the room record
type RoomPlayer struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Connected      bool   `json:"connected"`
	IsReady        bool   `json:"isReady"`
	ReplacedByAI   bool   `json:"replacedByAI,omitempty"`
	DisconnectedAt int64  `json:"disconnectedAt,omitempty"` // unix millis, zero if connected
}

// Chat is a single chat message relayed through a room
type Chat struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Text       string `json:"text"`
	Timestamp  int64  `json:"timestamp"` // unix millis, set by the relay
}

// client -> relay payloads

type CreateRoomReq struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type JoinRoomReq struct {
	RoomCode   string `json:"roomCode"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type ToggleReadyReq struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
	IsReady  bool   `json:"isReady"`
}

type GameStateUpdateReq struct {
	RoomCode  string          `json:"roomCode"`
	GameState json.RawMessage `json:"gameState"`
}

type ChatMessageReq struct {
	RoomCode string `json:"roomCode"`
	Message  Chat   `json:"message"`
}

type LoadGameStateReq struct {
	RoomCode string `json:"roomCode"`
}

type ReconnectReq struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}

// relay -> client payloads

type RoomCreatedRes struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}

type JoinedRoomRes struct {
	RoomCode    string          `json:"roomCode"`
	PlayerID    string          `json:"playerId"`
	Players     []RoomPlayer    `json:"players"`
	GameState   json.RawMessage `json:"gameState,omitempty"`
	IsSpectator bool            `json:"isSpectator,omitempty"`
}

type PlayerJoinedRes struct {
	Player RoomPlayer `json:"player"`
}

type PlayerReadyChangedRes struct {
	PlayerID string `json:"playerId"`
	IsReady  bool   `json:"isReady"`
}

type GameStateUpdatedRes struct {
	GameState json.RawMessage `json:"gameState"`
}

type NewChatMessageRes struct {
	Message     Chat   `json:"message"`
	AllMessages []Chat `json:"allMessages"`
}

type LoadGameStateRes struct {
	GameState json.RawMessage `json:"gameState,omitempty"`
	Players   []RoomPlayer    `json:"players"`
	Messages  []Chat          `json:"chatMessages"`
}

type PlayerPresenceRes struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName,omitempty"`
}

type ErrorRes struct {
	Message string `json:"message"`
}
