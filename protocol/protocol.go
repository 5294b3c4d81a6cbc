package protocol

import "fmt"

// Cmd represents a relay command or event
type Cmd int

const (
	Unknown Cmd = iota

	// client -> relay
	CreateRoom
	JoinRoom
	ToggleReady
	GameStateUpdate
	ChatMessage
	LoadGameState
	Reconnect

	// relay -> client
	RoomCreated
	JoinedRoom
	PlayerJoined
	JoinedAsSpectator
	SpectatorJoined
	PlayerReadyChanged
	GameStateUpdated
	NewChatMessage
	PlayerDisconnected
	Reconnected
	PlayerReconnected
	PlayerReplacedByAI
	Error
)

var cmdNames = []string{
	"unknown",
	"createRoom",
	"joinRoom",
	"toggleReady",
	"gameStateUpdate",
	"chatMessage",
	"loadGameState",
	"reconnect",
	"roomCreated",
	"joinedRoom",
	"playerJoined",
	"joinedAsSpectator",
	"spectatorJoined",
	"playerReadyChanged",
	"gameStateUpdated",
	"newChatMessage",
	"playerDisconnected",
	"reconnected",
	"playerReconnected",
	"playerReplacedByAI",
	"error",
}

func (c Cmd) String() string {
	if c < 0 || int(c) >= len(cmdNames) {
		return "unknown"
	}
	return cmdNames[c]
}

// MarshalText serialises a Cmd to its wire name
func (c Cmd) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses a Cmd from its wire name
func (c *Cmd) UnmarshalText(b []byte) error {
	name := string(b)
	for i, n := range cmdNames {
		if n == name {
			*c = Cmd(i)
			return nil
		}
	}
	return fmt.Errorf("unknown command %q", name)
}
