package game

import (
	"context"
	"errors"
	"sync"

	"github.com/222caleb/stinkyman-game/deck"
)

// PlayerState is the wire form of one participant's cards and flags
type PlayerState struct {
	Name         string      `json:"name"`
	Hand         []deck.Card `json:"hand"`
	FaceUp       []deck.Card `json:"faceUp"`
	FaceDown     []deck.Card `json:"faceDown"`
	SwapReady    bool        `json:"swapReady,omitempty"`
	Connected    bool        `json:"connected"`
	ReplacedByAI bool        `json:"replacedByAI,omitempty"`
}

// Snapshot is the full serialised game state broadcast between
// participants and persisted by the relay. The relay treats it as an
// opaque blob; only engines read it.
type Snapshot struct {
	Phase       Phase                  `json:"phase"`
	Deck        []deck.Card            `json:"deck"`
	Pile        []deck.Card            `json:"pile"`
	Players     map[string]PlayerState `json:"players"`
	PlayerOrder []string               `json:"playerOrder"`
	CurrentTurn string                 `json:"currentTurn"`
	IsReversed  bool                   `json:"isReversed"`
	Winner      string                 `json:"winner,omitempty"`
	Message     string                 `json:"customMessage,omitempty"`
}

// Snapshot exports the authoritative state. All card slices are
// copied; mutating the snapshot never touches the engine.
//
// Pending resolutions are not part of the wire form: a snapshot taken
// between an operation and its ResolvePending shows the pre-resolution
// pile with no way for a restored peer to resolve it. Drivers should
// call ResolvePending first and push snapshots only at rest.
func (g *Game) Snapshot() *Snapshot {
	snap := &Snapshot{
		Phase:       g.phase,
		Deck:        append([]deck.Card{}, g.deck...),
		Pile:        append([]deck.Card{}, g.pile...),
		Players:     map[string]PlayerState{},
		PlayerOrder: make([]string, 0, len(g.info)),
		CurrentTurn: g.currentTurn,
		IsReversed:  g.isReversed,
		Winner:      g.winner,
		Message:     g.message,
	}
	for _, info := range g.info {
		pc := g.players[info.ID]
		snap.PlayerOrder = append(snap.PlayerOrder, info.ID)
		snap.Players[info.ID] = PlayerState{
			Name:         info.Name,
			Hand:         append([]deck.Card{}, pc.Hand...),
			FaceUp:       append([]deck.Card{}, pc.FaceUp...),
			FaceDown:     append([]deck.Card{}, pc.FaceDown...),
			SwapReady:    pc.SwapReady,
			Connected:    pc.Connected,
			ReplacedByAI: pc.ReplacedByAI,
		}
	}
	return snap
}

// ErrEmptySnapshot signals a Restore from a nil snapshot
var ErrEmptySnapshot = errors.New("cannot restore a nil snapshot")

// Restore rebuilds an engine from a remote snapshot. opts supplies
// the local TurnOrder and randomness; opts.Players is ignored in
// favour of the snapshot's own roster.
func Restore(snap *Snapshot, opts GameOpts) (*Game, error) {
	if snap == nil {
		return nil, ErrEmptySnapshot
	}

	order := snap.PlayerOrder
	if len(order) == 0 {
		for id := range snap.Players {
			order = append(order, id)
		}
	}

	info := make([]PlayerInfo, 0, len(order))
	for _, id := range order {
		info = append(info, PlayerInfo{ID: id, Name: snap.Players[id].Name})
	}
	opts.Players = info

	g, err := NewGame(opts)
	if err != nil {
		return nil, err
	}

	g.phase = snap.Phase
	g.deck = append(deck.Deck{}, snap.Deck...)
	g.pile = append([]deck.Card{}, snap.Pile...)
	g.isReversed = snap.IsReversed
	g.currentTurn = snap.CurrentTurn
	g.winner = snap.Winner
	g.message = snap.Message

	for id, ps := range snap.Players {
		pc := NewPlayerCards(
			append([]deck.Card{}, ps.Hand...),
			append([]deck.Card{}, ps.FaceUp...),
			append([]deck.Card{}, ps.FaceDown...),
		)
		pc.SwapReady = ps.SwapReady
		pc.Connected = ps.Connected
		pc.ReplacedByAI = ps.ReplacedByAI
		g.players[id] = pc
	}
	return g, nil
}

// Transport moves canonical snapshots between the participants of a
// room. The relay's broadcast is FIFO per room; no ordering holds
// across rooms.
type Transport interface {
	// LoadState fetches the canonical snapshot, (nil, nil) when the
	// room has no state yet
	LoadState(ctx context.Context, roomCode string) (*Snapshot, error)

	// PushState persists snap as canonical and fans it out to the
	// other room members
	PushState(ctx context.Context, roomCode string, snap *Snapshot) error
}

// Sync keeps one participant's view of a room's state. Conflict
// policy is last-write-wins: there is no merge, and a genuine race
// between two writers is resolved by whichever write the relay
// accepts last.
type Sync struct {
	roomCode  string
	transport Transport
	onUpdate  func(*Snapshot)

	mu      sync.Mutex
	current *Snapshot
}

// NewSync constructs a Sync for one room. onUpdate, if non-nil, runs
// for every state replacement, local or remote.
func NewSync(roomCode string, transport Transport, onUpdate func(*Snapshot)) *Sync {
	return &Sync{roomCode: roomCode, transport: transport, onUpdate: onUpdate}
}

// Load fetches the canonical state, replacing the local view
func (s *Sync) Load(ctx context.Context) (*Snapshot, error) {
	snap, err := s.transport.LoadState(ctx, s.roomCode)
	if err != nil {
		return nil, err
	}
	s.replace(snap)
	return snap, nil
}

// ApplyLocalMutation publishes the state of a locally mutated engine.
// The local view updates immediately; the push makes it canonical.
func (s *Sync) ApplyLocalMutation(ctx context.Context, g *Game) error {
	snap := g.Snapshot()
	s.replace(snap)
	return s.transport.PushState(ctx, s.roomCode, snap)
}

// OnRemoteUpdate replaces the local view with a snapshot broadcast by
// another participant
func (s *Sync) OnRemoteUpdate(snap *Snapshot) {
	s.replace(snap)
}

// Current returns the latest known snapshot
func (s *Sync) Current() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Sync) replace(snap *Snapshot) {
	s.mu.Lock()
	s.current = snap
	s.mu.Unlock()
	if s.onUpdate != nil && snap != nil {
		s.onUpdate(snap)
	}
}
