package game

import (
	"sort"

	"github.com/222caleb/stinkyman-game/deck"
)

// numCardsInGroup is the deal size of each zone (and the hand refill
// target)
const numCardsInGroup = 3

// Zone identifies one of a player's three card groups
type Zone int

const (
	ZoneHand Zone = iota
	ZoneFaceUp
	ZoneFaceDown
)

var zoneNames = []string{"hand", "faceUp", "faceDown"}

func (z Zone) String() string {
	return zoneNames[z]
}

// PlayerCards holds one participant's three zones plus the transient
// flags the relay tracks for them
type PlayerCards struct {
	Hand     []deck.Card
	FaceUp   []deck.Card
	FaceDown []deck.Card

	Connected    bool
	SwapReady    bool
	ReplacedByAI bool
}

// NewPlayerCards constructs a PlayerCards with non-nil zones
func NewPlayerCards(hand, faceUp, faceDown []deck.Card) *PlayerCards {
	if hand == nil {
		hand = []deck.Card{}
	}
	if faceUp == nil {
		faceUp = []deck.Card{}
	}
	if faceDown == nil {
		faceDown = []deck.Card{}
	}
	return &PlayerCards{Hand: hand, FaceUp: faceUp, FaceDown: faceDown, Connected: true}
}

// ActiveZone is the one zone currently eligible for play: hand while
// it holds cards, then face-up, then face-down.
func (pc *PlayerCards) ActiveZone() Zone {
	if len(pc.Hand) > 0 {
		return ZoneHand
	}
	if len(pc.FaceUp) > 0 {
		return ZoneFaceUp
	}
	return ZoneFaceDown
}

// ActiveCards returns the cards of the active zone
func (pc *PlayerCards) ActiveCards() []deck.Card {
	switch pc.ActiveZone() {
	case ZoneHand:
		return pc.Hand
	case ZoneFaceUp:
		return pc.FaceUp
	}
	return pc.FaceDown
}

// PlayableCards returns the candidates for the next play. While the
// active zone is face-down every card is a candidate for a blind
// attempt; legality is only determined at reveal time. Otherwise only
// the legally playable subset of the active zone is returned.
func (pc *PlayerCards) PlayableCards(pile []deck.Card, isReversed bool) []deck.Card {
	cards := pc.ActiveCards()
	if pc.ActiveZone() == ZoneFaceDown {
		return cards
	}
	playable := []deck.Card{}
	for _, c := range cards {
		if CanPlayOnPile(c, pile, isReversed) {
			playable = append(playable, c)
		}
	}
	return playable
}

// HasWon reports whether all three zones are empty
func (pc *PlayerCards) HasWon() bool {
	return len(pc.Hand) == 0 && len(pc.FaceUp) == 0 && len(pc.FaceDown) == 0
}

// findCard locates a card by id in hand or face-up
func (pc *PlayerCards) findCard(cardID int) (deck.Card, Zone, bool) {
	for _, c := range pc.Hand {
		if c.ID == cardID {
			return c, ZoneHand, true
		}
	}
	for _, c := range pc.FaceUp {
		if c.ID == cardID {
			return c, ZoneFaceUp, true
		}
	}
	return deck.Card{}, ZoneHand, false
}

// sortByRank sorts cards ascending by rank in place
func sortByRank(cards []deck.Card) {
	sort.SliceStable(cards, func(i, j int) bool {
		return cards[i].Rank < cards[j].Rank
	})
}

// removeCard returns cards without the card with the given id
func removeCard(cards []deck.Card, cardID int) []deck.Card {
	out := make([]deck.Card, 0, len(cards))
	for _, c := range cards {
		if c.ID != cardID {
			out = append(out, c)
		}
	}
	return out
}

// removeCards returns cards without any of the given ids
func removeCards(cards []deck.Card, ids map[int]struct{}) []deck.Card {
	out := make([]deck.Card, 0, len(cards))
	for _, c := range cards {
		if _, gone := ids[c.ID]; !gone {
			out = append(out, c)
		}
	}
	return out
}
