package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	utils "github.com/222caleb/stinkyman-game/internal"
	"github.com/222caleb/stinkyman-game/game"
	"github.com/222caleb/stinkyman-game/protocol"
	"github.com/222caleb/stinkyman-game/store"
)

func TestCreateRoom(t *testing.T) {
	_, ts := newTestServer(t, Opts{})

	conn := mustDialWS(t, ts)
	send(t, conn, protocol.CreateRoom, protocol.CreateRoomReq{PlayerID: "p1", PlayerName: "Elena"})

	var res protocol.RoomCreatedRes
	decodePayload(t, expect(t, conn, protocol.RoomCreated), &res)
	utils.AssertEqual(t, len(res.RoomCode), roomCodeLength)
	utils.AssertEqual(t, res.PlayerID, "p1")
}

func TestJoinRoom(t *testing.T) {
	t.Run("second player joins as a player", func(t *testing.T) {
		_, ts := newTestServer(t, Opts{})
		creator, code := createTestRoom(t, ts)

		joiner := mustDialWS(t, ts)
		send(t, joiner, protocol.JoinRoom, protocol.JoinRoomReq{
			RoomCode: code, PlayerID: "p2", PlayerName: "Marco",
		})

		var res protocol.JoinedRoomRes
		decodePayload(t, expect(t, joiner, protocol.JoinedRoom), &res)
		require.Len(t, res.Players, 2)
		assert.False(t, res.IsSpectator)

		var joined protocol.PlayerJoinedRes
		decodePayload(t, expect(t, creator, protocol.PlayerJoined), &joined)
		utils.AssertEqual(t, joined.Player.ID, "p2")
		utils.AssertEqual(t, joined.Player.Name, "Marco")
	})

	t.Run("third connection becomes a spectator", func(t *testing.T) {
		_, ts := newTestServer(t, Opts{})
		_, code := createTestRoom(t, ts)

		second := mustDialWS(t, ts)
		send(t, second, protocol.JoinRoom, protocol.JoinRoomReq{
			RoomCode: code, PlayerID: "p2", PlayerName: "Marco",
		})
		expect(t, second, protocol.JoinedRoom)

		third := mustDialWS(t, ts)
		send(t, third, protocol.JoinRoom, protocol.JoinRoomReq{
			RoomCode: code, PlayerID: "p3", PlayerName: "Ines",
		})

		var res protocol.JoinedRoomRes
		decodePayload(t, expect(t, third, protocol.JoinedAsSpectator), &res)
		utils.AssertTrue(t, res.IsSpectator)

		var joined protocol.PlayerPresenceRes
		decodePayload(t, expect(t, second, protocol.SpectatorJoined), &joined)
		utils.AssertEqual(t, joined.PlayerName, "Ines")
	})

	t.Run("unknown room code", func(t *testing.T) {
		_, ts := newTestServer(t, Opts{})
		conn := mustDialWS(t, ts)
		send(t, conn, protocol.JoinRoom, protocol.JoinRoomReq{
			RoomCode: "NOPE42", PlayerID: "p2", PlayerName: "Marco",
		})

		var res protocol.ErrorRes
		decodePayload(t, expect(t, conn, protocol.Error), &res)
		utils.AssertNotEmptyString(t, res.Message)
	})
}

func TestToggleReadyStartsGame(t *testing.T) {
	_, ts := newTestServer(t, Opts{})
	creator, code := createTestRoom(t, ts)

	joiner := mustDialWS(t, ts)
	send(t, joiner, protocol.JoinRoom, protocol.JoinRoomReq{
		RoomCode: code, PlayerID: "p2", PlayerName: "Marco",
	})
	expect(t, joiner, protocol.JoinedRoom)

	send(t, creator, protocol.ToggleReady, protocol.ToggleReadyReq{
		RoomCode: code, PlayerID: "p1", IsReady: true,
	})
	var ready protocol.PlayerReadyChangedRes
	decodePayload(t, expect(t, creator, protocol.PlayerReadyChanged), &ready)
	utils.AssertEqual(t, ready.PlayerID, "p1")
	utils.AssertTrue(t, ready.IsReady)

	send(t, joiner, protocol.ToggleReady, protocol.ToggleReadyReq{
		RoomCode: code, PlayerID: "p2", IsReady: true,
	})

	// both ready: the relay deals and broadcasts the opening state
	var update protocol.GameStateUpdatedRes
	decodePayload(t, expect(t, creator, protocol.GameStateUpdated), &update)

	var snap game.Snapshot
	require.NoError(t, json.Unmarshal(update.GameState, &snap))
	utils.AssertEqual(t, snap.Phase, game.Swap)
	utils.AssertEqual(t, len(snap.Deck), 34)
	require.Len(t, snap.Players, 2)
	for _, ps := range snap.Players {
		utils.AssertEqual(t, len(ps.Hand), 3)
		utils.AssertEqual(t, len(ps.FaceUp), 3)
		utils.AssertEqual(t, len(ps.FaceDown), 3)
	}

	decodePayload(t, expect(t, joiner, protocol.GameStateUpdated), &update)
}

func TestGameStateUpdateRelay(t *testing.T) {
	s := store.NewInMemoryRoomStore()
	_, ts := newTestServer(t, Opts{Store: s})
	creator, code := createTestRoom(t, ts)

	joiner := mustDialWS(t, ts)
	send(t, joiner, protocol.JoinRoom, protocol.JoinRoomReq{
		RoomCode: code, PlayerID: "p2", PlayerName: "Marco",
	})
	expect(t, joiner, protocol.JoinedRoom)

	state := []byte(`{"phase":"playing","currentTurn":"p2"}`)
	send(t, creator, protocol.GameStateUpdate, protocol.GameStateUpdateReq{
		RoomCode: code, GameState: state,
	})

	t.Run("other members receive the update", func(t *testing.T) {
		var update protocol.GameStateUpdatedRes
		decodePayload(t, expect(t, joiner, protocol.GameStateUpdated), &update)
		utils.AssertEqual(t, string(update.GameState), string(state))
	})

	t.Run("state is persisted", func(t *testing.T) {
		room, err := s.GetRoom(context.Background(), code)
		require.NoError(t, err)
		utils.AssertEqual(t, string(room.GameState), string(state))
	})
}

func TestChatMessage(t *testing.T) {
	_, ts := newTestServer(t, Opts{})
	creator, code := createTestRoom(t, ts)

	send(t, creator, protocol.ChatMessage, protocol.ChatMessageReq{
		RoomCode: code,
		Message:  protocol.Chat{PlayerID: "p1", PlayerName: "Elena", Text: "hello"},
	})

	var res protocol.NewChatMessageRes
	decodePayload(t, expect(t, creator, protocol.NewChatMessage), &res)
	utils.AssertEqual(t, res.Message.Text, "hello")
	utils.AssertTrue(t, res.Message.Timestamp > 0)
	require.Len(t, res.AllMessages, 1)
}

func TestLoadGameState(t *testing.T) {
	_, ts := newTestServer(t, Opts{})
	creator, code := createTestRoom(t, ts)

	send(t, creator, protocol.LoadGameState, protocol.LoadGameStateReq{RoomCode: code})

	var res protocol.LoadGameStateRes
	decodePayload(t, expect(t, creator, protocol.LoadGameState), &res)
	require.Len(t, res.Players, 1)
	utils.AssertEqual(t, res.Players[0].ID, "p1")
	utils.AssertEqual(t, len(res.Messages), 0)
}

func TestDisconnectAndReconnect(t *testing.T) {
	t.Run("disconnect notifies the room and eventually seats the AI", func(t *testing.T) {
		s := store.NewInMemoryRoomStore()
		_, ts := newTestServer(t, Opts{Store: s, AIGrace: 50 * time.Millisecond})
		creator, code := createTestRoom(t, ts)

		joiner := mustDialWS(t, ts)
		send(t, joiner, protocol.JoinRoom, protocol.JoinRoomReq{
			RoomCode: code, PlayerID: "p2", PlayerName: "Marco",
		})
		expect(t, joiner, protocol.JoinedRoom)
		expect(t, creator, protocol.PlayerJoined)

		joiner.Close()

		var gone protocol.PlayerPresenceRes
		decodePayload(t, expect(t, creator, protocol.PlayerDisconnected), &gone)
		utils.AssertEqual(t, gone.PlayerID, "p2")

		var replaced protocol.PlayerPresenceRes
		decodePayload(t, expect(t, creator, protocol.PlayerReplacedByAI), &replaced)
		utils.AssertEqual(t, replaced.PlayerID, "p2")

		room, err := s.GetRoom(context.Background(), code)
		require.NoError(t, err)
		var roster []protocol.RoomPlayer
		require.NoError(t, json.Unmarshal(room.Players, &roster))
		require.Len(t, roster, 2)
		utils.AssertTrue(t, roster[1].ReplacedByAI)
	})

	t.Run("reconnect within the grace period keeps the seat", func(t *testing.T) {
		s := store.NewInMemoryRoomStore()
		_, ts := newTestServer(t, Opts{Store: s, AIGrace: 300 * time.Millisecond})
		creator, code := createTestRoom(t, ts)

		joiner := mustDialWS(t, ts)
		send(t, joiner, protocol.JoinRoom, protocol.JoinRoomReq{
			RoomCode: code, PlayerID: "p2", PlayerName: "Marco",
		})
		expect(t, joiner, protocol.JoinedRoom)
		expect(t, creator, protocol.PlayerJoined)

		joiner.Close()
		expect(t, creator, protocol.PlayerDisconnected)

		back := mustDialWS(t, ts)
		send(t, back, protocol.Reconnect, protocol.ReconnectReq{RoomCode: code, PlayerID: "p2"})

		var res protocol.LoadGameStateRes
		decodePayload(t, expect(t, back, protocol.Reconnected), &res)
		require.Len(t, res.Players, 2)
		utils.AssertTrue(t, res.Players[1].Connected)

		var again protocol.PlayerPresenceRes
		decodePayload(t, expect(t, creator, protocol.PlayerReconnected), &again)
		utils.AssertEqual(t, again.PlayerID, "p2")

		// grace period expires without an AI takeover
		time.Sleep(400 * time.Millisecond)
		room, err := s.GetRoom(context.Background(), code)
		require.NoError(t, err)
		var roster []protocol.RoomPlayer
		require.NoError(t, json.Unmarshal(room.Players, &roster))
		assert.False(t, roster[1].ReplacedByAI)
	})
}
