package game

import "github.com/222caleb/stinkyman-game/deck"

// Special ranks: a Two resets the pile direction, a Five reverses it
// for exactly one ply, a Ten burns the pile.
const (
	RankWild    = 2
	RankReverse = 5
	RankBurn    = 10
)

// burnNum is the number of identically ranked cards that burn the pile
const burnNum = 4

// IsSpecial reports whether a card is always playable regardless of
// the pile
func IsSpecial(c deck.Card) bool {
	return c.Rank == RankWild || c.Rank == RankReverse || c.Rank == RankBurn
}

// CanPlayOnPile reports whether card may legally be placed on the
// pile. Specials are always legal. Otherwise the card's rank must be
// >= the top card's rank, or <= while the direction is reversed. An
// Ace (14) is the highest ordinary rank and takes part in the
// comparison like any other non-special card.
func CanPlayOnPile(card deck.Card, pile []deck.Card, isReversed bool) bool {
	if IsSpecial(card) {
		return true
	}
	if len(pile) == 0 {
		return true
	}
	topCard := pile[len(pile)-1]
	if isReversed {
		return card.Rank <= topCard.Rank
	}
	return card.Rank >= topCard.Rank
}

// IsFourOfAKind reports whether the top four pile cards share a rank
func IsFourOfAKind(pile []deck.Card) bool {
	if len(pile) < burnNum {
		return false
	}
	top := pile[len(pile)-burnNum:]
	for _, c := range top {
		if c.Rank != top[0].Rank {
			return false
		}
	}
	return true
}
