package game

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/222caleb/stinkyman-game/deck"
)

// Phase represents the lifecycle of a game:
// idle -> swap -> playing -> gameOver. Only a fresh Deal returns the
// machine to an earlier point, by restarting it.
type Phase int

const (
	Idle Phase = iota
	Swap
	Playing
	GameOver
)

var phaseNames = []string{"idle", "swap", "playing", "gameOver"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// MarshalText serialises a Phase to its wire name
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a Phase from its wire name
func (p *Phase) UnmarshalText(b []byte) error {
	for i, n := range phaseNames {
		if n == string(b) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", string(b))
}

const (
	minPlayers = 2
	maxPlayers = 4
)

var (
	ErrTooFewPlayers  = errors.New("minimum of 2 players required")
	ErrTooManyPlayers = errors.New("maximum of 4 players allowed")
	ErrDuplicateID    = errors.New("duplicate player ID")
)

// PlayerInfo identifies a participant. Registration order is turn
// order for rotation games and dealing order in every game.
type PlayerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// resolutionKind identifies a deferred transition awaiting resolution
type resolutionKind int

const (
	resolveBurn resolutionKind = iota
	resolveBlindFail
	resolveDrawFail
)

// resolution is a deferred state transition. The rules have no real
// waiting in them; a driver inserts presentation delay between the
// operation that scheduled the resolution and ResolvePending. The
// generation tag lets a resolution scheduled before a restart be
// discarded instead of corrupting the fresh game.
type resolution struct {
	kind       resolutionKind
	actor      string
	generation int
}

// Game is the authoritative rules engine for one match. All mutation
// goes through its operations; invalid calls are rejected without
// mutating anything. A Game is not safe for concurrent use - drivers
// serialise access (the relay hub runs one goroutine per room, the
// local driver is single-threaded).
type Game struct {
	phase      Phase
	deck       deck.Deck
	pile       []deck.Card
	isReversed bool

	info    []PlayerInfo
	players map[string]*PlayerCards

	currentTurn string
	winner      string

	selected map[string][]int
	order    TurnOrder
	message  string

	generation int
	pending    *resolution

	rng *rand.Rand
}

// GameOpts configures a new Game
type GameOpts struct {
	Players []PlayerInfo
	// Order defaults to Rotation
	Order TurnOrder
	// Rand defaults to a time-seeded source; inject a seeded one for
	// deterministic deals
	Rand *rand.Rand
}

// NewGame constructs a Game in the idle phase
func NewGame(opts GameOpts) (*Game, error) {
	if len(opts.Players) < minPlayers {
		return nil, ErrTooFewPlayers
	}
	if len(opts.Players) > maxPlayers {
		return nil, ErrTooManyPlayers
	}

	seen := map[string]struct{}{}
	for _, info := range opts.Players {
		if _, dup := seen[info.ID]; dup {
			return nil, ErrDuplicateID
		}
		seen[info.ID] = struct{}{}
	}

	if opts.Order == nil {
		opts.Order = Rotation{}
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	g := &Game{
		phase:    Idle,
		pile:     []deck.Card{},
		info:     append([]PlayerInfo{}, opts.Players...),
		players:  map[string]*PlayerCards{},
		selected: map[string][]int{},
		order:    opts.Order,
		rng:      opts.Rand,
		message:  "Deal to start a new game",
	}
	for _, info := range opts.Players {
		g.players[info.ID] = NewPlayerCards(nil, nil, nil)
	}
	return g, nil
}

// Accessors. Slices are returned as copies so drivers cannot mutate
// engine state behind its back.

func (g *Game) Phase() Phase        { return g.phase }
func (g *Game) CurrentTurn() string { return g.currentTurn }
func (g *Game) Winner() string      { return g.winner }
func (g *Game) IsReversed() bool    { return g.isReversed }
func (g *Game) Message() string     { return g.message }
func (g *Game) DeckSize() int       { return len(g.deck) }

func (g *Game) Players() []PlayerInfo {
	return append([]PlayerInfo{}, g.info...)
}

func (g *Game) Pile() []deck.Card {
	return append([]deck.Card{}, g.pile...)
}

// PlayerCards returns the zones of one participant, or nil for an
// unknown ID. The returned value is live engine state: AI policies in
// the same process read it, but only operations may mutate it.
func (g *Game) PlayerCards(playerID string) *PlayerCards {
	return g.players[playerID]
}

// Selected returns the ids of playerID's currently selected cards
func (g *Game) Selected(playerID string) []int {
	return append([]int{}, g.selected[playerID]...)
}

// HasPending reports whether a deferred resolution is waiting
func (g *Game) HasPending() bool {
	return g.pending != nil
}

// Deal starts (or restarts) the match: fresh shuffled deck, three
// cards face-down, three face-up and three to hand per participant in
// registration order, remainder as the draw deck. Any pending
// resolution from the previous game is invalidated.
func (g *Game) Deal() {
	g.generation++
	g.pending = nil

	d := deck.New()
	d.Shuffle(g.rng)

	for _, info := range g.info {
		prev := g.players[info.ID]
		pc := NewPlayerCards(nil, nil, nil)
		pc.FaceDown = d.Deal(numCardsInGroup)
		pc.FaceUp = d.Deal(numCardsInGroup)
		pc.Hand = d.Deal(numCardsInGroup)
		if prev != nil {
			pc.Connected = prev.Connected
			pc.ReplacedByAI = prev.ReplacedByAI
		}
		g.players[info.ID] = pc
	}

	g.deck = d
	g.pile = []deck.Card{}
	g.isReversed = false
	g.winner = ""
	g.currentTurn = g.info[0].ID
	g.selected = map[string][]int{}
	g.phase = Swap
	g.message = "Swap cards between hand and face-up, then confirm"
}

// SelectCard toggles a card selection. During the swap phase a second
// selection from the other zone executes an immediate hand/face-up
// swap; a second selection from the same zone replaces the first.
// During play, selections must share a rank and the selection
// auto-commits once every playable card of that rank is selected.
// Selecting a face-down card triggers a blind play immediately.
func (g *Game) SelectCard(playerID string, cardID int) error {
	if err := g.checkPending(); err != nil {
		return err
	}

	switch g.phase {
	case Swap:
		return g.selectDuringSwap(playerID, cardID)
	case Playing:
		return g.selectDuringPlay(playerID, cardID)
	}
	return reject(WrongPhase)
}

func (g *Game) selectDuringSwap(playerID string, cardID int) error {
	pc, ok := g.players[playerID]
	if !ok {
		return rejectf(NotYourTurn, "unknown participant %s", playerID)
	}
	if pc.SwapReady {
		return reject(AlreadyReady)
	}

	card, zone, found := pc.findCard(cardID)
	if !found {
		return rejectf(CardNotInActiveZone, "card %d is not in hand or face-up", cardID)
	}

	sel := g.selected[playerID]
	if containsInt(sel, cardID) {
		g.selected[playerID] = withoutInt(sel, cardID)
		return nil
	}

	if len(sel) == 1 {
		first, firstZone, stillHeld := pc.findCard(sel[0])
		if stillHeld && firstZone != zone {
			g.swapZones(pc, first, card, firstZone)
			delete(g.selected, playerID)
			g.message = "Swapped. Keep swapping or confirm"
			return nil
		}
	}

	// replaces any same-zone prior selection
	g.selected[playerID] = []int{cardID}
	return nil
}

// swapZones exchanges the zone membership of a hand card and a
// face-up card, each taking the other's position
func (g *Game) swapZones(pc *PlayerCards, first, second deck.Card, firstZone Zone) {
	handCard, faceUpCard := first, second
	if firstZone == ZoneFaceUp {
		handCard, faceUpCard = second, first
	}
	for i, c := range pc.Hand {
		if c.ID == handCard.ID {
			pc.Hand[i] = faceUpCard
		}
	}
	for i, c := range pc.FaceUp {
		if c.ID == faceUpCard.ID {
			pc.FaceUp[i] = handCard
		}
	}
}

func (g *Game) selectDuringPlay(playerID string, cardID int) error {
	if playerID != g.currentTurn {
		return reject(NotYourTurn)
	}
	pc := g.players[playerID]

	var card deck.Card
	found := false
	for _, c := range pc.ActiveCards() {
		if c.ID == cardID {
			card, found = c, true
			break
		}
	}
	if !found {
		return rejectf(CardNotInActiveZone, "card %d is not in the %s zone", cardID, pc.ActiveZone())
	}

	// face-down selection is a blind play, fixed at selection time
	if pc.ActiveZone() == ZoneFaceDown {
		return g.blindPlay(playerID, card)
	}

	sel := g.selected[playerID]
	if containsInt(sel, cardID) {
		g.selected[playerID] = withoutInt(sel, cardID)
		return nil
	}

	// only same-rank cards may be multi-selected
	if len(sel) > 0 {
		if first, _, held := pc.findCard(sel[0]); held && first.Rank != card.Rank {
			g.selected[playerID] = []int{cardID}
			return nil
		}
	}

	sel = append(sel, cardID)
	g.selected[playerID] = sel

	// auto-commit once every playable card of this rank is selected
	sameRank := 0
	for _, c := range pc.PlayableCards(g.pile, g.isReversed) {
		if c.Rank == card.Rank {
			sameRank++
		}
	}
	if sameRank == len(sel) {
		return g.PlaySelected(playerID)
	}
	return nil
}

// ConfirmSwap marks the caller as done rearranging cards. The
// configured TurnOrder decides when the game moves on to play.
func (g *Game) ConfirmSwap(playerID string) error {
	if err := g.checkPending(); err != nil {
		return err
	}
	if g.phase != Swap {
		return reject(WrongPhase)
	}
	return g.order.ConfirmSwap(g, playerID)
}

// beginPlay transitions swap -> playing with the given first
// turn-holder. Called by TurnOrder implementations.
func (g *Game) beginPlay(firstTurn string) {
	g.phase = Playing
	g.currentTurn = firstTurn
	g.selected = map[string][]int{}
	g.message = "Select cards to play"
}

// PlaySelected commits the caller's selection to the pile. The
// selection must be non-empty and rank-homogeneous; an illegal play
// clears the selection and changes nothing else.
func (g *Game) PlaySelected(playerID string) error {
	if err := g.checkPending(); err != nil {
		return err
	}
	if g.phase != Playing {
		return reject(WrongPhase)
	}
	if playerID != g.currentTurn {
		return reject(NotYourTurn)
	}

	pc := g.players[playerID]
	sel := g.selected[playerID]
	if len(sel) == 0 {
		return reject(NothingSelected)
	}

	active := pc.ActiveCards()
	selected := []deck.Card{}
	for _, id := range sel {
		for _, c := range active {
			if c.ID == id {
				selected = append(selected, c)
			}
		}
	}
	if len(selected) == 0 {
		delete(g.selected, playerID)
		return reject(NothingSelected)
	}

	for _, c := range selected {
		if c.Rank != selected[0].Rank {
			delete(g.selected, playerID)
			g.message = "Selected cards must share a rank"
			return rejectf(IllegalPlay, "selection is not rank-homogeneous")
		}
	}

	if pc.ActiveZone() == ZoneFaceDown {
		return g.blindPlay(playerID, selected[0])
	}

	if !CanPlayOnPile(selected[0], g.pile, g.isReversed) {
		delete(g.selected, playerID)
		g.message = "Can't play that card!"
		return reject(IllegalPlay)
	}

	ids := map[int]struct{}{}
	for _, c := range selected {
		ids[c.ID] = struct{}{}
	}
	if pc.ActiveZone() == ZoneHand {
		pc.Hand = removeCards(pc.Hand, ids)
	} else {
		pc.FaceUp = removeCards(pc.FaceUp, ids)
	}
	g.pile = append(g.pile, selected...)

	g.postPlay(selected[0], playerID)
	return nil
}

// blindPlay reveals one face-down card onto the pile. Success runs
// the shared post-play procedure; failure schedules a resolution that
// hands the whole pile (revealed card included) to the actor.
func (g *Game) blindPlay(playerID string, card deck.Card) error {
	pc := g.players[playerID]
	legal := CanPlayOnPile(card, g.pile, g.isReversed)

	pc.FaceDown = removeCard(pc.FaceDown, card.ID)
	g.pile = append(g.pile, card)
	delete(g.selected, playerID)

	if !legal {
		g.message = fmt.Sprintf("Revealed: %s. Blind play failed!", deck.RankName(card.Rank))
		g.pending = &resolution{kind: resolveBlindFail, actor: playerID, generation: g.generation}
		return nil
	}

	g.message = fmt.Sprintf("Revealed: %s", deck.RankName(card.Rank))
	g.postPlay(card, playerID)
	return nil
}

// postPlay is the shared procedure after any successful placement:
// burn check, reverse/wild flag, hand refill, win check, turn advance.
func (g *Game) postPlay(played deck.Card, actor string) {
	delete(g.selected, actor)

	if played.Rank == RankBurn || IsFourOfAKind(g.pile) {
		if played.Rank == RankBurn {
			g.message = "10 played! Burning pile..."
		} else {
			g.message = "Four of a kind! Burning pile..."
		}
		g.pending = &resolution{kind: resolveBurn, actor: actor, generation: g.generation}
		return
	}

	switch played.Rank {
	case RankReverse:
		g.isReversed = true
		g.message = "Reverse! Next play must be equal or lower"
	case RankWild:
		g.isReversed = false
		g.message = "Wild 2 - pile reset"
	default:
		// reverse lasts exactly one ply
		g.isReversed = false
		g.message = ""
	}

	g.drawUp(actor)

	if g.players[actor].HasWon() {
		g.finish(actor)
		return
	}

	g.currentTurn = g.order.Next(g, actor)
	if g.message == "" {
		g.message = "Select cards to play"
	}
}

// drawUp refills the actor's hand to three cards while the deck lasts
// and re-sorts the hand ascending by rank
func (g *Game) drawUp(actor string) {
	pc := g.players[actor]
	if len(pc.Hand) >= numCardsInGroup || len(g.deck) == 0 {
		return
	}
	for len(pc.Hand) < numCardsInGroup && len(g.deck) > 0 {
		card, err := g.deck.Draw()
		if err != nil {
			break
		}
		pc.Hand = append(pc.Hand, card)
	}
	sortByRank(pc.Hand)
}

// finish ends the game exactly once
func (g *Game) finish(winner string) {
	g.winner = winner
	g.phase = GameOver
	g.message = fmt.Sprintf("%s wins!", g.nameOf(winner))
}

func (g *Game) nameOf(playerID string) string {
	for _, info := range g.info {
		if info.ID == playerID {
			if info.Name != "" {
				return info.Name
			}
			return info.ID
		}
	}
	return playerID
}

// TakePile moves the whole pile into the caller's hand and passes the
// turn
func (g *Game) TakePile(playerID string) error {
	if err := g.checkPending(); err != nil {
		return err
	}
	if g.phase != Playing {
		return reject(WrongPhase)
	}
	if playerID != g.currentTurn {
		return reject(NotYourTurn)
	}
	if len(g.pile) == 0 {
		return reject(EmptyPile)
	}

	pc := g.players[playerID]
	pc.Hand = append(pc.Hand, g.pile...)
	sortByRank(pc.Hand)
	g.pile = []deck.Card{}
	g.isReversed = false
	delete(g.selected, playerID)
	g.currentTurn = g.order.Next(g, playerID)
	g.message = fmt.Sprintf("%s took the pile", g.nameOf(playerID))
	return nil
}

// DrawFromDeck pops the top deck card as a blind draw. A legal card
// is played through the shared post-play procedure; an illegal one is
// shown on the pile and a scheduled resolution hands the pile over.
func (g *Game) DrawFromDeck(playerID string) error {
	if err := g.checkPending(); err != nil {
		return err
	}
	if g.phase != Playing {
		return reject(WrongPhase)
	}
	if playerID != g.currentTurn {
		return reject(NotYourTurn)
	}
	if len(g.deck) == 0 {
		return reject(EmptyDeck)
	}

	card, err := g.deck.Draw()
	if err != nil {
		return reject(EmptyDeck)
	}

	legal := CanPlayOnPile(card, g.pile, g.isReversed)
	g.pile = append(g.pile, card)
	if legal {
		g.postPlay(card, playerID)
		return nil
	}

	g.message = fmt.Sprintf("Drew %s - unplayable", deck.RankName(card.Rank))
	g.pending = &resolution{kind: resolveDrawFail, actor: playerID, generation: g.generation}
	return nil
}

// PassTurn passes without taking. Only legal in the edge state where
// the actor has no playable cards and there is no pile to take.
func (g *Game) PassTurn(playerID string) error {
	if err := g.checkPending(); err != nil {
		return err
	}
	if g.phase != Playing {
		return reject(WrongPhase)
	}
	if playerID != g.currentTurn {
		return reject(NotYourTurn)
	}
	if len(g.pile) > 0 {
		return rejectf(IllegalPlay, "pile must be taken, not passed")
	}
	if len(g.players[playerID].PlayableCards(g.pile, g.isReversed)) > 0 {
		return rejectf(IllegalPlay, "playable cards remain")
	}

	delete(g.selected, playerID)
	g.currentTurn = g.order.Next(g, playerID)
	g.message = "Turn passed"
	return nil
}

// ResolvePending applies the deferred transition scheduled by a burn,
// failed blind play or failed draw. Drivers call it after their
// presentation delay; headless drivers call it immediately. It
// reports whether a resolution was applied; a resolution belonging to
// an earlier generation is discarded.
func (g *Game) ResolvePending() bool {
	p := g.pending
	if p == nil {
		return false
	}
	g.pending = nil
	if p.generation != g.generation {
		return false
	}

	switch p.kind {
	case resolveBurn:
		g.pile = []deck.Card{}
		g.isReversed = false
		g.currentTurn = p.actor
		g.drawUp(p.actor)
		if g.players[p.actor].HasWon() {
			g.finish(p.actor)
			return true
		}
		g.message = "Pile burned! Play again"

	case resolveBlindFail, resolveDrawFail:
		pc := g.players[p.actor]
		pc.Hand = append(pc.Hand, g.pile...)
		sortByRank(pc.Hand)
		g.pile = []deck.Card{}
		g.isReversed = false
		g.currentTurn = g.order.Next(g, p.actor)
		g.message = fmt.Sprintf("%s took the pile", g.nameOf(p.actor))
	}
	return true
}

// checkPending rejects mutating operations while a resolution waits.
// Serialising here is what lets drivers model the presentation delay
// with real timers without racing the state machine.
func (g *Game) checkPending() error {
	if g.pending != nil {
		return reject(ResolutionPending)
	}
	return nil
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func withoutInt(s []int, v int) []int {
	out := make([]int, 0, len(s))
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
