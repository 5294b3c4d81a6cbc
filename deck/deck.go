package deck

import (
	"errors"
	"math/rand"
)

// Size is the number of cards in a full deck
const Size = 52

// ErrEmptyDeck signals a draw from an empty deck. Callers are expected
// to check the deck length first; this is a precondition failure, not
// a recoverable condition at most call sites.
var ErrEmptyDeck = errors.New("cannot draw from an empty deck")

// Deck represents a deck of cards
type Deck []Card

// New creates a full deck in a fixed order: each suit in turn, ranks
// ascending, IDs assigned sequentially from zero.
func New() Deck {
	cards := make(Deck, 0, Size)
	id := 0
	for _, suit := range Suits {
		for rank := MinRank; rank <= MaxRank; rank++ {
			cards = append(cards, Card{ID: id, Suit: suit, Rank: rank})
			id++
		}
	}
	return cards
}

// Shuffle applies a Fisher-Yates shuffle using r. Passing a seeded
// source makes the resulting order reproducible in tests.
func (d Deck) Shuffle(r *rand.Rand) {
	for i := len(d) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		d[i], d[j] = d[j], d[i]
	}
}

// Deal removes and returns the top n cards, until the deck is empty
func (d *Deck) Deal(n int) []Card {
	numCardsInDeck := len(*d)
	if n < 0 || n > numCardsInDeck {
		return []Card{}
	}
	startingIndex := numCardsInDeck - n
	// Copy rather than reslice so the dealt cards do not share a
	// backing array with the deck or with later deals; appending to
	// one dealt hand must never overwrite another.
	dealt := append([]Card{}, (*d)[startingIndex:numCardsInDeck]...)
	*d = (*d)[:startingIndex]
	return dealt
}

// Draw removes and returns the top card
func (d *Deck) Draw() (Card, error) {
	if len(*d) == 0 {
		return Card{}, ErrEmptyDeck
	}
	card := (*d)[len(*d)-1]
	*d = (*d)[:len(*d)-1]
	return card, nil
}
