package server

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/222caleb/stinkyman-game/game"
	"github.com/222caleb/stinkyman-game/protocol"
	"github.com/222caleb/stinkyman-game/store"
)

const (
	// rooms are head-to-head; later arrivals spectate
	maxRoomPlayers = 2

	storeTimeout = 10 * time.Second
)

// Hub routes websocket traffic between the members of each room and
// keeps the store as the single source of truth. Per-room ordering
// follows from each connection dispatching its commands serially; no
// ordering holds across rooms.
type Hub struct {
	store   store.RoomStore
	logger  *logrus.Logger
	aiGrace time.Duration
	newCode func() string

	mu     sync.Mutex
	rooms  map[string]map[*client]bool
	closed bool
}

// NewHub constructs a Hub. newCode supplies candidate room codes; the
// store arbitrates collisions.
func NewHub(s store.RoomStore, logger *logrus.Logger, aiGrace time.Duration, newCode func() string) *Hub {
	return &Hub{
		store:   s,
		logger:  logger,
		aiGrace: aiGrace,
		newCode: newCode,
		rooms:   map[string]map[*client]bool{},
	}
}

// Serve owns conn for its lifetime
func (h *Hub) Serve(conn *websocket.Conn) {
	c := newClient(h, conn)
	go c.writePump()
	go c.readPump()
}

// Close drops every connection
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, clients := range h.rooms {
		for c := range clients {
			c.close()
		}
	}
	h.rooms = map[string]map[*client]bool{}
}

func (h *Hub) dispatch(c *client, env protocol.Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	var err error
	switch env.Type {
	case protocol.CreateRoom:
		err = h.handleCreateRoom(ctx, c, env.Payload)
	case protocol.JoinRoom:
		err = h.handleJoinRoom(ctx, c, env.Payload)
	case protocol.ToggleReady:
		err = h.handleToggleReady(ctx, c, env.Payload)
	case protocol.GameStateUpdate:
		err = h.handleGameStateUpdate(ctx, c, env.Payload)
	case protocol.ChatMessage:
		err = h.handleChatMessage(ctx, c, env.Payload)
	case protocol.LoadGameState:
		err = h.handleLoadGameState(ctx, c, env.Payload)
	case protocol.Reconnect:
		err = h.handleReconnect(ctx, c, env.Payload)
	default:
		err = errors.New("unsupported command")
	}

	if err != nil {
		h.logger.WithError(err).WithField("cmd", env.Type.String()).Error("handling command")
		h.sendError(c, err)
	}
}

func (h *Hub) handleCreateRoom(ctx context.Context, c *client, payload json.RawMessage) error {
	var req protocol.CreateRoomReq
	if err := json.Unmarshal(payload, &req); err != nil {
		return err
	}

	roster := []protocol.RoomPlayer{{
		ID:        req.PlayerID,
		Name:      req.PlayerName,
		Connected: true,
	}}
	rosterJSON, err := json.Marshal(roster)
	if err != nil {
		return err
	}

	var room *store.Room
	for attempt := 0; attempt < roomCodeAttempts; attempt++ {
		room, err = h.store.CreateRoom(ctx, h.newCode(), rosterJSON)
		if errors.Is(err, store.ErrRoomExists) {
			continue
		}
		break
	}
	if err != nil {
		return err
	}

	c.setSeat(room.Code, req.PlayerID, req.PlayerName, false)
	h.register(room.Code, c)

	h.logger.WithFields(logrus.Fields{
		"room":   room.Code,
		"player": req.PlayerName,
	}).Info("room created")

	return h.sendTo(c, protocol.RoomCreated, protocol.RoomCreatedRes{
		RoomCode: room.Code,
		PlayerID: req.PlayerID,
	})
}

func (h *Hub) handleJoinRoom(ctx context.Context, c *client, payload json.RawMessage) error {
	var req protocol.JoinRoomReq
	if err := json.Unmarshal(payload, &req); err != nil {
		return err
	}

	room, err := h.store.GetRoom(ctx, req.RoomCode)
	if err != nil {
		return err
	}

	roster, err := decodeRoster(room)
	if err != nil {
		return err
	}

	if gameInProgress(room.GameState) || len(roster) >= maxRoomPlayers {
		c.setSeat(room.Code, req.PlayerID, req.PlayerName, true)
		h.register(room.Code, c)

		h.logger.WithFields(logrus.Fields{
			"room":   room.Code,
			"player": req.PlayerName,
		}).Info("spectator joined")

		if err := h.sendTo(c, protocol.JoinedAsSpectator, protocol.JoinedRoomRes{
			RoomCode:    room.Code,
			PlayerID:    req.PlayerID,
			Players:     roster,
			GameState:   room.GameState,
			IsSpectator: true,
		}); err != nil {
			return err
		}
		h.broadcast(room.Code, nil, protocol.SpectatorJoined, protocol.PlayerPresenceRes{
			PlayerID:   req.PlayerID,
			PlayerName: req.PlayerName,
		})
		return nil
	}

	joined := protocol.RoomPlayer{
		ID:        req.PlayerID,
		Name:      req.PlayerName,
		Connected: true,
	}
	roster = append(roster, joined)
	if err := h.savePlayers(ctx, room.Code, roster); err != nil {
		return err
	}

	c.setSeat(room.Code, req.PlayerID, req.PlayerName, false)
	h.register(room.Code, c)

	h.logger.WithFields(logrus.Fields{
		"room":   room.Code,
		"player": req.PlayerName,
	}).Info("player joined")

	if err := h.sendTo(c, protocol.JoinedRoom, protocol.JoinedRoomRes{
		RoomCode: room.Code,
		PlayerID: req.PlayerID,
		Players:  roster,
	}); err != nil {
		return err
	}
	h.broadcast(room.Code, c, protocol.PlayerJoined, protocol.PlayerJoinedRes{Player: joined})
	return nil
}

func (h *Hub) handleToggleReady(ctx context.Context, c *client, payload json.RawMessage) error {
	var req protocol.ToggleReadyReq
	if err := json.Unmarshal(payload, &req); err != nil {
		return err
	}

	room, err := h.store.GetRoom(ctx, req.RoomCode)
	if err != nil {
		return err
	}
	roster, err := decodeRoster(room)
	if err != nil {
		return err
	}

	found := false
	for i := range roster {
		if roster[i].ID == req.PlayerID {
			roster[i].IsReady = req.IsReady
			found = true
			break
		}
	}
	if !found {
		return errors.New("player not in room")
	}

	if err := h.savePlayers(ctx, req.RoomCode, roster); err != nil {
		return err
	}
	h.broadcast(req.RoomCode, nil, protocol.PlayerReadyChanged, protocol.PlayerReadyChangedRes{
		PlayerID: req.PlayerID,
		IsReady:  req.IsReady,
	})

	if len(roster) < 2 {
		return nil
	}
	for _, p := range roster {
		if !p.IsReady {
			return nil
		}
	}
	return h.startGame(ctx, req.RoomCode, roster)
}

// startGame deals a fresh game for the room's roster and broadcasts
// the opening state
func (h *Hub) startGame(ctx context.Context, roomCode string, roster []protocol.RoomPlayer) error {
	info := make([]game.PlayerInfo, 0, len(roster))
	for _, p := range roster {
		info = append(info, game.PlayerInfo{ID: p.ID, Name: p.Name})
	}

	g, err := game.NewGame(game.GameOpts{
		Players: info,
		Rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
	})
	if err != nil {
		return err
	}
	g.Deal()

	state, err := json.Marshal(g.Snapshot())
	if err != nil {
		return err
	}
	if err := h.store.UpdateGameState(ctx, roomCode, state); err != nil {
		return err
	}

	h.logger.WithField("room", roomCode).Info("all players ready, game started")

	h.broadcast(roomCode, nil, protocol.GameStateUpdated, protocol.GameStateUpdatedRes{GameState: state})
	return nil
}

func (h *Hub) handleGameStateUpdate(ctx context.Context, c *client, payload json.RawMessage) error {
	var req protocol.GameStateUpdateReq
	if err := json.Unmarshal(payload, &req); err != nil {
		return err
	}

	if err := h.store.UpdateGameState(ctx, req.RoomCode, req.GameState); err != nil {
		return err
	}

	// everyone except the sender; the sender already has this state
	h.broadcast(req.RoomCode, c, protocol.GameStateUpdated, protocol.GameStateUpdatedRes{
		GameState: req.GameState,
	})
	return nil
}

func (h *Hub) handleChatMessage(ctx context.Context, c *client, payload json.RawMessage) error {
	var req protocol.ChatMessageReq
	if err := json.Unmarshal(payload, &req); err != nil {
		return err
	}

	req.Message.Timestamp = time.Now().UnixMilli()
	raw, err := json.Marshal(req.Message)
	if err != nil {
		return err
	}

	log, err := h.store.AddChatMessage(ctx, req.RoomCode, raw)
	if err != nil {
		return err
	}

	var all []protocol.Chat
	if err := json.Unmarshal(log, &all); err != nil {
		return err
	}

	h.broadcast(req.RoomCode, nil, protocol.NewChatMessage, protocol.NewChatMessageRes{
		Message:     req.Message,
		AllMessages: all,
	})
	return nil
}

func (h *Hub) handleLoadGameState(ctx context.Context, c *client, payload json.RawMessage) error {
	var req protocol.LoadGameStateReq
	if err := json.Unmarshal(payload, &req); err != nil {
		return err
	}

	room, err := h.store.GetRoom(ctx, req.RoomCode)
	if err != nil {
		return err
	}
	res, err := roomStateRes(room)
	if err != nil {
		return err
	}
	return h.sendTo(c, protocol.LoadGameState, res)
}

func (h *Hub) handleReconnect(ctx context.Context, c *client, payload json.RawMessage) error {
	var req protocol.ReconnectReq
	if err := json.Unmarshal(payload, &req); err != nil {
		return err
	}

	room, err := h.store.GetRoom(ctx, req.RoomCode)
	if err != nil {
		return err
	}
	roster, err := decodeRoster(room)
	if err != nil {
		return err
	}

	name := ""
	found := false
	for i := range roster {
		if roster[i].ID == req.PlayerID {
			roster[i].Connected = true
			roster[i].DisconnectedAt = 0
			roster[i].ReplacedByAI = false
			name = roster[i].Name
			found = true
			break
		}
	}
	if !found {
		return errors.New("player not in room")
	}

	if err := h.savePlayers(ctx, req.RoomCode, roster); err != nil {
		return err
	}

	c.setSeat(req.RoomCode, req.PlayerID, name, false)
	h.register(req.RoomCode, c)

	h.logger.WithFields(logrus.Fields{
		"room":   req.RoomCode,
		"player": name,
	}).Info("player reconnected")

	res, err := roomStateRes(room)
	if err != nil {
		return err
	}
	res.Players = roster
	if err := h.sendTo(c, protocol.Reconnected, res); err != nil {
		return err
	}
	h.broadcast(req.RoomCode, c, protocol.PlayerReconnected, protocol.PlayerPresenceRes{
		PlayerID:   req.PlayerID,
		PlayerName: name,
	})
	return nil
}

// handleDisconnect marks the seat as vacated and schedules the AI
// takeover. Spectators just leave.
func (h *Hub) handleDisconnect(c *client) {
	roomCode, playerID, playerName, spectator := c.seat()
	if roomCode == "" {
		return
	}
	h.unregister(roomCode, c)
	if spectator {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	room, err := h.store.GetRoom(ctx, roomCode)
	if err != nil {
		return
	}
	roster, err := decodeRoster(room)
	if err != nil {
		return
	}

	for i := range roster {
		if roster[i].ID == playerID {
			roster[i].Connected = false
			roster[i].DisconnectedAt = time.Now().UnixMilli()
			break
		}
	}
	if err := h.savePlayers(ctx, roomCode, roster); err != nil {
		return
	}

	h.logger.WithFields(logrus.Fields{
		"room":   roomCode,
		"player": playerName,
	}).Info("player disconnected")

	h.broadcast(roomCode, nil, protocol.PlayerDisconnected, protocol.PlayerPresenceRes{
		PlayerID:   playerID,
		PlayerName: playerName,
	})

	time.AfterFunc(h.aiGrace, func() {
		h.replaceWithAI(roomCode, playerID)
	})
}

// replaceWithAI hands the seat to the AI unless the player came back
// during the grace period
func (h *Hub) replaceWithAI(roomCode, playerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	room, err := h.store.GetRoom(ctx, roomCode)
	if err != nil {
		return
	}
	roster, err := decodeRoster(room)
	if err != nil {
		return
	}

	for i := range roster {
		if roster[i].ID != playerID {
			continue
		}
		if roster[i].Connected {
			return
		}
		roster[i].ReplacedByAI = true
		if err := h.savePlayers(ctx, roomCode, roster); err != nil {
			return
		}

		h.logger.WithFields(logrus.Fields{
			"room":   roomCode,
			"player": playerID,
		}).Info("player replaced by AI")

		h.broadcast(roomCode, nil, protocol.PlayerReplacedByAI, protocol.PlayerPresenceRes{
			PlayerID: playerID,
		})
		return
	}
}

func (h *Hub) register(roomCode string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	clients, ok := h.rooms[roomCode]
	if !ok {
		clients = map[*client]bool{}
		h.rooms[roomCode] = clients
	}
	clients[c] = true
}

func (h *Hub) unregister(roomCode string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.rooms[roomCode]
	if !ok {
		return
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.rooms, roomCode)
	}
}

// broadcast fans env out to the room, skipping except when non-nil
func (h *Hub) broadcast(roomCode string, except *client, cmd protocol.Cmd, payload interface{}) {
	env, err := protocol.NewEnvelope(cmd, payload)
	if err != nil {
		h.logger.WithError(err).Error("encoding broadcast")
		return
	}

	h.mu.Lock()
	targets := make([]*client, 0, len(h.rooms[roomCode]))
	for c := range h.rooms[roomCode] {
		if c != except {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.enqueue(env)
	}
}

func (h *Hub) sendTo(c *client, cmd protocol.Cmd, payload interface{}) error {
	env, err := protocol.NewEnvelope(cmd, payload)
	if err != nil {
		return err
	}
	c.enqueue(env)
	return nil
}

func (h *Hub) sendError(c *client, err error) {
	env, encErr := protocol.NewEnvelope(protocol.Error, protocol.ErrorRes{Message: err.Error()})
	if encErr != nil {
		return
	}
	c.enqueue(env)
}

func (h *Hub) savePlayers(ctx context.Context, roomCode string, roster []protocol.RoomPlayer) error {
	raw, err := json.Marshal(roster)
	if err != nil {
		return err
	}
	return h.store.UpdatePlayers(ctx, roomCode, raw)
}

func decodeRoster(room *store.Room) ([]protocol.RoomPlayer, error) {
	roster := []protocol.RoomPlayer{}
	if len(room.Players) == 0 {
		return roster, nil
	}
	if err := json.Unmarshal(room.Players, &roster); err != nil {
		return nil, err
	}
	return roster, nil
}

// gameInProgress peeks at the phase without decoding the whole state
func gameInProgress(state json.RawMessage) bool {
	if len(state) == 0 {
		return false
	}
	var probe struct {
		Phase string `json:"phase"`
	}
	if err := json.Unmarshal(state, &probe); err != nil {
		return false
	}
	return probe.Phase != "" && probe.Phase != "idle"
}

func roomStateRes(room *store.Room) (protocol.LoadGameStateRes, error) {
	roster, err := decodeRoster(room)
	if err != nil {
		return protocol.LoadGameStateRes{}, err
	}

	messages := []protocol.Chat{}
	if len(room.ChatMessages) > 0 {
		if err := json.Unmarshal(room.ChatMessages, &messages); err != nil {
			return protocol.LoadGameStateRes{}, err
		}
	}

	return protocol.LoadGameStateRes{
		GameState: room.GameState,
		Players:   roster,
		Messages:  messages,
	}, nil
}
