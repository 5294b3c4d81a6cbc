package deck

import "fmt"

// Suit represents a suit in a deck of cards
type Suit string

const (
	Hearts   Suit = "hearts"
	Diamonds Suit = "diamonds"
	Clubs    Suit = "clubs"
	Spades   Suit = "spades"
)

// Suits lists the four suits in deck-construction order
var Suits = []Suit{Hearts, Diamonds, Clubs, Spades}

// Ranks run from Two (2) to Ace (14, high)
const (
	MinRank = 2
	Jack    = 11
	Queen   = 12
	King    = 13
	Ace     = 14
	MaxRank = Ace
)

// Card represents a playing card. Identity is by ID: two cards within
// one deck never share an ID. A Card is immutable once created.
type Card struct {
	ID   int  `json:"id"`
	Suit Suit `json:"suit"`
	Rank int  `json:"rank"`
}

// RankName returns the display name of a rank
func RankName(rank int) string {
	switch rank {
	case Jack:
		return "Jack"
	case Queen:
		return "Queen"
	case King:
		return "King"
	case Ace:
		return "Ace"
	default:
		return fmt.Sprintf("%d", rank)
	}
}

func (c Card) String() string {
	return fmt.Sprintf("%s of %s", RankName(c.Rank), c.Suit)
}
