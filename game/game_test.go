package game

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/222caleb/stinkyman-game/deck"
	utils "github.com/222caleb/stinkyman-game/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoPlayers() []PlayerInfo {
	return []PlayerInfo{{ID: "p1", Name: "Elena"}, {ID: "p2", Name: "Marco"}}
}

func threePlayers() []PlayerInfo {
	return []PlayerInfo{{ID: "p1"}, {ID: "p2"}, {ID: "p3"}}
}

func newTestGame(t *testing.T, opts GameOpts) *Game {
	t.Helper()
	if opts.Players == nil {
		opts.Players = twoPlayers()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(42))
	}
	g, err := NewGame(opts)
	require.NoError(t, err)
	return g
}

// playingGame returns a two-player game already in the playing phase
// with empty zones and an empty deck, ready for direct state setup
func playingGame(t *testing.T) *Game {
	t.Helper()
	g := newTestGame(t, GameOpts{})
	g.phase = Playing
	g.currentTurn = "p1"
	g.deck = deck.Deck{}
	for _, info := range g.info {
		g.players[info.ID] = NewPlayerCards(nil, nil, nil)
	}
	// stop the empty-zone players registering as instant winners
	g.players["p2"].FaceDown = []deck.Card{card(200, 3)}
	return g
}

// noDuplicates asserts no card id appears more than once across deck,
// pile and all zones; it returns the total card count
func noDuplicates(t *testing.T, g *Game) int {
	t.Helper()
	seen := map[int]int{}
	count := 0
	note := func(cards []deck.Card) {
		for _, c := range cards {
			seen[c.ID]++
			count++
		}
	}
	note(g.deck)
	note(g.pile)
	for _, info := range g.info {
		pc := g.players[info.ID]
		note(pc.Hand)
		note(pc.FaceUp)
		note(pc.FaceDown)
	}
	for id, n := range seen {
		require.Equal(t, 1, n, "card %d appears %d times", id, n)
	}
	return count
}

// conserved additionally asserts a dealt game still holds all 52 cards
func conserved(t *testing.T, g *Game) {
	t.Helper()
	require.Equal(t, deck.Size, noDuplicates(t, g), "card count drifted")
}

func TestNewGame(t *testing.T) {
	t.Run("too few players", func(t *testing.T) {
		_, err := NewGame(GameOpts{Players: []PlayerInfo{{ID: "p1"}}})
		assert.ErrorIs(t, err, ErrTooFewPlayers)
	})

	t.Run("too many players", func(t *testing.T) {
		ps := []PlayerInfo{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}, {ID: "e"}}
		_, err := NewGame(GameOpts{Players: ps})
		assert.ErrorIs(t, err, ErrTooManyPlayers)
	})

	t.Run("duplicate ids", func(t *testing.T) {
		_, err := NewGame(GameOpts{Players: []PlayerInfo{{ID: "p1"}, {ID: "p1"}}})
		assert.ErrorIs(t, err, ErrDuplicateID)
	})

	t.Run("starts idle", func(t *testing.T) {
		g := newTestGame(t, GameOpts{})
		utils.AssertEqual(t, g.Phase(), Idle)
	})
}

func TestDeal(t *testing.T) {
	t.Run("two players get 3+3+3 each, 34 left in deck", func(t *testing.T) {
		g := newTestGame(t, GameOpts{})
		g.Deal()

		utils.AssertEqual(t, g.Phase(), Swap)
		utils.AssertEqual(t, g.DeckSize(), 34)
		utils.AssertEqual(t, len(g.Pile()), 0)
		utils.AssertEqual(t, g.CurrentTurn(), "p1")
		utils.AssertEqual(t, g.Winner(), "")

		for _, info := range g.Players() {
			pc := g.PlayerCards(info.ID)
			utils.AssertEqual(t, len(pc.Hand), 3)
			utils.AssertEqual(t, len(pc.FaceUp), 3)
			utils.AssertEqual(t, len(pc.FaceDown), 3)
		}
		conserved(t, g)
	})

	t.Run("deal is deterministic for a seeded source", func(t *testing.T) {
		g1 := newTestGame(t, GameOpts{Rand: rand.New(rand.NewSource(7))})
		g2 := newTestGame(t, GameOpts{Rand: rand.New(rand.NewSource(7))})
		g1.Deal()
		g2.Deal()
		utils.AssertDeepEqual(t, g1.Snapshot(), g2.Snapshot())
	})

	t.Run("redeal restarts and invalidates a pending resolution", func(t *testing.T) {
		g := playingGame(t)
		g.players["p1"].Hand = []deck.Card{card(0, 10)}
		g.players["p1"].FaceDown = []deck.Card{card(1, 3)}

		require.NoError(t, g.SelectCard("p1", 0))
		utils.AssertTrue(t, g.HasPending())

		g.Deal()
		assert.False(t, g.HasPending())
		assert.False(t, g.ResolvePending())
		utils.AssertEqual(t, g.Phase(), Swap)
		conserved(t, g)
	})
}

func TestSelectCardDuringSwap(t *testing.T) {
	setup := func(t *testing.T) *Game {
		g := newTestGame(t, GameOpts{})
		g.Deal()
		return g
	}

	t.Run("toggles a selection off", func(t *testing.T) {
		g := setup(t)
		id := g.players["p1"].Hand[0].ID

		utils.AssertNoError(t, g.SelectCard("p1", id))
		utils.AssertDeepEqual(t, g.Selected("p1"), []int{id})

		utils.AssertNoError(t, g.SelectCard("p1", id))
		utils.AssertEqual(t, len(g.Selected("p1")), 0)
	})

	t.Run("hand + face-up pair swaps immediately", func(t *testing.T) {
		g := setup(t)
		pc := g.players["p1"]
		handCard, faceUpCard := pc.Hand[1], pc.FaceUp[2]

		utils.AssertNoError(t, g.SelectCard("p1", handCard.ID))
		utils.AssertNoError(t, g.SelectCard("p1", faceUpCard.ID))

		utils.AssertEqual(t, pc.Hand[1], faceUpCard)
		utils.AssertEqual(t, pc.FaceUp[2], handCard)
		utils.AssertEqual(t, len(g.Selected("p1")), 0)
		conserved(t, g)
	})

	t.Run("same-zone second selection replaces the first", func(t *testing.T) {
		g := setup(t)
		pc := g.players["p1"]

		utils.AssertNoError(t, g.SelectCard("p1", pc.Hand[0].ID))
		utils.AssertNoError(t, g.SelectCard("p1", pc.Hand[1].ID))
		utils.AssertDeepEqual(t, g.Selected("p1"), []int{pc.Hand[1].ID})
	})

	t.Run("face-down cards are not eligible", func(t *testing.T) {
		g := setup(t)
		err := g.SelectCard("p1", g.players["p1"].FaceDown[0].ID)
		reason, ok := ReasonOf(err)
		utils.AssertTrue(t, ok)
		utils.AssertEqual(t, reason, CardNotInActiveZone)
	})

	t.Run("both players may swap concurrently", func(t *testing.T) {
		g := setup(t)
		utils.AssertNoError(t, g.SelectCard("p1", g.players["p1"].Hand[0].ID))
		utils.AssertNoError(t, g.SelectCard("p2", g.players["p2"].Hand[0].ID))
		utils.AssertEqual(t, len(g.Selected("p1")), 1)
		utils.AssertEqual(t, len(g.Selected("p2")), 1)
	})

	t.Run("no swapping after confirming", func(t *testing.T) {
		g := setup(t)
		utils.AssertNoError(t, g.ConfirmSwap("p1"))

		err := g.SelectCard("p1", g.players["p1"].Hand[0].ID)
		reason, ok := ReasonOf(err)
		utils.AssertTrue(t, ok)
		utils.AssertEqual(t, reason, AlreadyReady)
	})
}

func TestConfirmSwapHeadToHead(t *testing.T) {
	g := newTestGame(t, GameOpts{Order: HeadToHead{HumanID: "p1"}})
	g.Deal()

	utils.AssertNoError(t, g.ConfirmSwap("p1"))

	t.Run("human starts unconditionally", func(t *testing.T) {
		utils.AssertEqual(t, g.Phase(), Playing)
		utils.AssertEqual(t, g.CurrentTurn(), "p1")
	})

	t.Run("opponent zones stay 3/3/3 and cards are conserved", func(t *testing.T) {
		pc := g.PlayerCards("p2")
		utils.AssertEqual(t, len(pc.Hand), 3)
		utils.AssertEqual(t, len(pc.FaceUp), 3)
		utils.AssertEqual(t, len(pc.FaceDown), 3)
		conserved(t, g)
	})

	t.Run("only the human confirms", func(t *testing.T) {
		g := newTestGame(t, GameOpts{Order: HeadToHead{HumanID: "p1"}})
		g.Deal()
		err := g.ConfirmSwap("p2")
		reason, ok := ReasonOf(err)
		utils.AssertTrue(t, ok)
		utils.AssertEqual(t, reason, NotYourTurn)
		utils.AssertEqual(t, g.Phase(), Swap)
	})
}

func TestConfirmSwapRotation(t *testing.T) {
	t.Run("waits for every participant", func(t *testing.T) {
		g := newTestGame(t, GameOpts{Players: threePlayers()})
		g.Deal()

		utils.AssertNoError(t, g.ConfirmSwap("p1"))
		utils.AssertEqual(t, g.Phase(), Swap)

		utils.AssertNoError(t, g.ConfirmSwap("p2"))
		utils.AssertEqual(t, g.Phase(), Swap)

		utils.AssertNoError(t, g.ConfirmSwap("p3"))
		utils.AssertEqual(t, g.Phase(), Playing)
	})

	t.Run("double confirm rejected", func(t *testing.T) {
		g := newTestGame(t, GameOpts{Players: threePlayers()})
		g.Deal()
		utils.AssertNoError(t, g.ConfirmSwap("p1"))

		err := g.ConfirmSwap("p1")
		reason, ok := ReasonOf(err)
		utils.AssertTrue(t, ok)
		utils.AssertEqual(t, reason, AlreadyReady)
	})

	t.Run("lowest non-special card starts", func(t *testing.T) {
		g := newTestGame(t, GameOpts{})
		g.Deal()
		// p2 holds the only three; p1's low cards are all specials
		g.players["p1"] = NewPlayerCards(
			[]deck.Card{card(0, 2), card(1, 5), card(2, 10)},
			[]deck.Card{card(3, deck.King), card(4, deck.King), card(5, deck.Ace)},
			[]deck.Card{card(6, deck.Queen), card(7, deck.Queen), card(8, deck.Jack)},
		)
		g.players["p2"] = NewPlayerCards(
			[]deck.Card{card(9, 8), card(10, 9), card(11, deck.Jack)},
			[]deck.Card{card(12, 7), card(13, 9), card(14, deck.Ace)},
			[]deck.Card{card(15, 3), card(16, deck.King), card(17, deck.Queen)},
		)

		utils.AssertNoError(t, g.ConfirmSwap("p1"))
		utils.AssertNoError(t, g.ConfirmSwap("p2"))
		utils.AssertEqual(t, g.Phase(), Playing)
		utils.AssertEqual(t, g.CurrentTurn(), "p2")
	})
}

func TestPlaySelected(t *testing.T) {
	t.Run("moves selection to the pile and passes the turn", func(t *testing.T) {
		g := playingGame(t)
		g.players["p1"].Hand = []deck.Card{card(0, 8), card(1, 8), card(2, 9)}
		g.pile = []deck.Card{card(50, 6)}

		// one of two eights selected: no auto-commit, play explicitly
		require.NoError(t, g.SelectCard("p1", 1))
		require.NoError(t, g.PlaySelected("p1"))

		pile := g.Pile()
		utils.AssertEqual(t, pile[len(pile)-1].ID, 1)
		utils.AssertEqual(t, len(g.players["p1"].Hand), 2)
		utils.AssertEqual(t, g.CurrentTurn(), "p2")
	})

	t.Run("illegal play clears selection and mutates nothing else", func(t *testing.T) {
		g := playingGame(t)
		g.players["p1"].Hand = []deck.Card{card(0, 4), card(1, 8)}
		g.pile = []deck.Card{card(50, 9)}

		require.NoError(t, g.SelectCard("p1", 0))
		err := g.PlaySelected("p1")

		reason, ok := ReasonOf(err)
		utils.AssertTrue(t, ok)
		utils.AssertEqual(t, reason, IllegalPlay)
		utils.AssertEqual(t, g.Message(), "Can't play that card!")
		utils.AssertEqual(t, len(g.Selected("p1")), 0)
		utils.AssertEqual(t, len(g.Pile()), 1)
		utils.AssertEqual(t, len(g.players["p1"].Hand), 2)
		utils.AssertEqual(t, g.CurrentTurn(), "p1")
	})

	t.Run("empty selection rejected", func(t *testing.T) {
		g := playingGame(t)
		g.players["p1"].Hand = []deck.Card{card(0, 4)}

		err := g.PlaySelected("p1")
		reason, _ := ReasonOf(err)
		utils.AssertEqual(t, reason, NothingSelected)
	})

	t.Run("wrong turn is a no-op", func(t *testing.T) {
		g := playingGame(t)
		g.players["p1"].Hand = []deck.Card{card(0, 7)}
		before := g.Snapshot()

		err := g.PlaySelected("p2")
		reason, ok := ReasonOf(err)
		utils.AssertTrue(t, ok)
		utils.AssertEqual(t, reason, NotYourTurn)
		utils.AssertDeepEqual(t, g.Snapshot(), before)
	})
}

func TestSelectCardDuringPlay(t *testing.T) {
	t.Run("different rank replaces the selection", func(t *testing.T) {
		g := playingGame(t)
		g.players["p1"].Hand = []deck.Card{card(0, 7), card(1, 7), card(2, 9), card(3, 9)}

		require.NoError(t, g.SelectCard("p1", 0))
		require.NoError(t, g.SelectCard("p1", 2))
		utils.AssertDeepEqual(t, g.Selected("p1"), []int{2})
	})

	t.Run("selecting every playable card of a rank auto-plays", func(t *testing.T) {
		g := playingGame(t)
		g.players["p1"].Hand = []deck.Card{card(0, 7), card(1, 7), card(2, 9)}

		require.NoError(t, g.SelectCard("p1", 0))
		utils.AssertEqual(t, g.CurrentTurn(), "p1") // one of two sevens: no commit yet

		require.NoError(t, g.SelectCard("p1", 1))
		utils.AssertEqual(t, g.CurrentTurn(), "p2") // both sevens: committed
		utils.AssertEqual(t, len(g.Pile()), 2)
	})

	t.Run("single copy of a rank auto-plays on first tap", func(t *testing.T) {
		g := playingGame(t)
		g.players["p1"].Hand = []deck.Card{card(0, 7), card(1, 9)}

		require.NoError(t, g.SelectCard("p1", 0))
		utils.AssertEqual(t, len(g.Pile()), 1)
		utils.AssertEqual(t, g.CurrentTurn(), "p2")
	})

	t.Run("hand gating: face-up card rejected while hand is non-empty", func(t *testing.T) {
		g := playingGame(t)
		g.players["p1"].Hand = []deck.Card{card(0, 7)}
		g.players["p1"].FaceUp = []deck.Card{card(1, 8)}

		err := g.SelectCard("p1", 1)
		reason, ok := ReasonOf(err)
		utils.AssertTrue(t, ok)
		utils.AssertEqual(t, reason, CardNotInActiveZone)
	})
}

func TestBurn(t *testing.T) {
	t.Run("ten burns the pile and the actor keeps the turn", func(t *testing.T) {
		g := playingGame(t)
		g.players["p1"].Hand = []deck.Card{card(0, 10), card(1, 4)}
		g.pile = []deck.Card{card(50, 9)}
		g.deck = deck.Deck{card(60, 6), card(61, 12)}

		require.NoError(t, g.SelectCard("p1", 0))
		utils.AssertTrue(t, g.HasPending())
		// transition is deferred: pile still shows the ten
		utils.AssertEqual(t, len(g.Pile()), 2)

		utils.AssertTrue(t, g.ResolvePending())
		utils.AssertEqual(t, len(g.Pile()), 0)
		assert.False(t, g.IsReversed())
		utils.AssertEqual(t, g.CurrentTurn(), "p1")
		// drew back up toward three
		utils.AssertEqual(t, len(g.players["p1"].Hand), 3)
		noDuplicates(t, g)
	})

	t.Run("four of a kind built across plays burns without a ten", func(t *testing.T) {
		g := playingGame(t)
		g.players["p1"].Hand = []deck.Card{card(0, 8), card(1, 8)}
		g.pile = []deck.Card{card(50, 8), card(51, 8)}

		require.NoError(t, g.SelectCard("p1", 0))
		require.NoError(t, g.SelectCard("p1", 1))
		utils.AssertTrue(t, g.HasPending())

		utils.AssertTrue(t, g.ResolvePending())
		utils.AssertEqual(t, len(g.Pile()), 0)
		utils.AssertEqual(t, g.CurrentTurn(), "p1")
		noDuplicates(t, g)
	})

	t.Run("mutations are rejected while a burn is unresolved", func(t *testing.T) {
		g := playingGame(t)
		g.players["p1"].Hand = []deck.Card{card(0, 10), card(1, 4)}

		require.NoError(t, g.SelectCard("p1", 0))

		err := g.SelectCard("p1", 1)
		reason, ok := ReasonOf(err)
		utils.AssertTrue(t, ok)
		utils.AssertEqual(t, reason, ResolutionPending)
	})

	t.Run("burning the final card wins after the draw-up", func(t *testing.T) {
		g := playingGame(t)
		g.players["p1"].Hand = []deck.Card{card(0, 10)}
		g.players["p1"].FaceUp = nil
		g.players["p1"].FaceDown = nil

		require.NoError(t, g.SelectCard("p1", 0))
		utils.AssertTrue(t, g.ResolvePending())

		utils.AssertEqual(t, g.Phase(), GameOver)
		utils.AssertEqual(t, g.Winner(), "p1")
	})
}

func TestReverse(t *testing.T) {
	g := playingGame(t)
	g.players["p1"].Hand = []deck.Card{card(0, 5), card(1, 9)}
	g.players["p2"].Hand = []deck.Card{card(10, 3), card(11, 6), card(12, 8)}
	g.players["p2"].FaceDown = nil
	g.pile = []deck.Card{card(50, 7)}

	require.NoError(t, g.SelectCard("p1", 0))

	utils.AssertTrue(t, g.IsReversed())
	utils.AssertEqual(t, g.CurrentTurn(), "p2")

	t.Run("next player must play equal or lower", func(t *testing.T) {
		pile := g.Pile()
		utils.AssertTrue(t, CanPlayOnPile(card(10, 3), pile, g.IsReversed()))
		assert.False(t, CanPlayOnPile(card(12, 8), pile, g.IsReversed()))
	})

	t.Run("reverse lasts exactly one ply", func(t *testing.T) {
		require.NoError(t, g.SelectCard("p2", 10)) // three, legal under reverse
		assert.False(t, g.IsReversed())
	})
}

func TestWild(t *testing.T) {
	g := playingGame(t)
	g.isReversed = true
	g.players["p1"].Hand = []deck.Card{card(0, 2), card(1, 9)}
	g.pile = []deck.Card{card(50, 4)}

	require.NoError(t, g.SelectCard("p1", 0))

	assert.False(t, g.IsReversed())
	utils.AssertEqual(t, len(g.Pile()), 2)
	utils.AssertEqual(t, g.CurrentTurn(), "p2")
}

func TestBlindPlay(t *testing.T) {
	t.Run("failure hands the whole pile over after resolution", func(t *testing.T) {
		g := playingGame(t)
		g.players["p1"].Hand = nil
		g.players["p1"].FaceUp = nil
		g.players["p1"].FaceDown = []deck.Card{card(0, 3), card(1, 4)}
		g.pile = []deck.Card{card(50, 9), card(51, deck.Jack)}

		require.NoError(t, g.SelectCard("p1", 0))
		utils.AssertTrue(t, g.HasPending())
		// revealed card sits on the pile until resolution
		utils.AssertEqual(t, len(g.Pile()), 3)

		utils.AssertTrue(t, g.ResolvePending())
		utils.AssertEqual(t, len(g.Pile()), 0)
		utils.AssertEqual(t, len(g.players["p1"].Hand), 3)
		assert.False(t, g.IsReversed())
		utils.AssertEqual(t, g.CurrentTurn(), "p2")

		t.Run("picked-up hand is sorted ascending", func(t *testing.T) {
			hand := g.players["p1"].Hand
			for i := 1; i < len(hand); i++ {
				assert.LessOrEqual(t, hand[i-1].Rank, hand[i].Rank)
			}
		})
		noDuplicates(t, g)
	})

	t.Run("success plays through the shared procedure", func(t *testing.T) {
		g := playingGame(t)
		g.players["p1"].Hand = nil
		g.players["p1"].FaceUp = nil
		g.players["p1"].FaceDown = []deck.Card{card(0, deck.Queen)}
		g.pile = []deck.Card{card(50, 9)}

		// the queen is p1's last card
		require.NoError(t, g.SelectCard("p1", 0))

		utils.AssertEqual(t, g.Phase(), GameOver)
		utils.AssertEqual(t, g.Winner(), "p1")
	})

	t.Run("identity fixed at selection: exactly one card revealed", func(t *testing.T) {
		g := playingGame(t)
		g.players["p1"].Hand = nil
		g.players["p1"].FaceUp = nil
		g.players["p1"].FaceDown = []deck.Card{card(0, 3), card(1, deck.Ace)}
		g.pile = []deck.Card{card(50, 9)}

		require.NoError(t, g.SelectCard("p1", 0))
		utils.AssertEqual(t, len(g.players["p1"].FaceDown), 1)
		utils.AssertEqual(t, g.players["p1"].FaceDown[0].ID, 1)
	})
}

func TestTakePile(t *testing.T) {
	t.Run("moves the pile into the hand sorted and advances the turn", func(t *testing.T) {
		g := playingGame(t)
		g.players["p1"].Hand = []deck.Card{card(0, deck.King)}
		g.pile = []deck.Card{card(50, 9), card(51, 3)}
		g.isReversed = true

		require.NoError(t, g.TakePile("p1"))

		utils.AssertEqual(t, len(g.Pile()), 0)
		utils.AssertEqual(t, len(g.players["p1"].Hand), 3)
		utils.AssertEqual(t, g.players["p1"].Hand[0].Rank, 3)
		assert.False(t, g.IsReversed())
		utils.AssertEqual(t, g.CurrentTurn(), "p2")
		noDuplicates(t, g)
	})

	t.Run("empty pile rejected", func(t *testing.T) {
		g := playingGame(t)
		err := g.TakePile("p1")
		reason, _ := ReasonOf(err)
		utils.AssertEqual(t, reason, EmptyPile)
	})

	t.Run("wrong turn rejected", func(t *testing.T) {
		g := playingGame(t)
		g.pile = []deck.Card{card(50, 9)}
		err := g.TakePile("p2")
		reason, _ := ReasonOf(err)
		utils.AssertEqual(t, reason, NotYourTurn)
	})

	// Taking the pile as a player's first hand mutation after a real
	// deal grows the hand slice in place; this must never clobber the
	// face-up cards dealt alongside it.
	t.Run("conserves cards when taking right after a real deal", func(t *testing.T) {
		g := newTestGame(t, GameOpts{})
		g.Deal()
		for _, info := range g.Players() {
			require.NoError(t, g.ConfirmSwap(info.ID))
		}
		require.Equal(t, Playing, g.Phase())

		opener := g.CurrentTurn()
		pick, found := deck.Card{}, false
		for _, c := range g.PlayerCards(opener).Hand {
			if c.Rank != 10 {
				pick, found = c, true
				break
			}
		}
		require.True(t, found, "opener needs a non-burn card in hand")

		require.NoError(t, g.SelectCard(opener, pick.ID))
		if g.CurrentTurn() == opener && len(g.Selected(opener)) > 0 {
			require.NoError(t, g.PlaySelected(opener))
		}
		require.False(t, g.HasPending())

		taker := g.CurrentTurn()
		require.NotEqual(t, opener, taker)
		require.NoError(t, g.TakePile(taker))
		conserved(t, g)
	})
}

func TestDrawFromDeck(t *testing.T) {
	t.Run("legal draw plays immediately", func(t *testing.T) {
		g := playingGame(t)
		g.players["p1"].Hand = []deck.Card{card(0, 4), card(1, 4), card(2, 4)}
		g.pile = []deck.Card{card(50, 9)}
		g.deck = deck.Deck{card(60, deck.Jack)}

		require.NoError(t, g.DrawFromDeck("p1"))

		pile := g.Pile()
		utils.AssertEqual(t, pile[len(pile)-1].ID, 60)
		utils.AssertEqual(t, g.CurrentTurn(), "p2")
		noDuplicates(t, g)
	})

	t.Run("illegal draw shows the card then hands over the pile", func(t *testing.T) {
		g := playingGame(t)
		g.players["p1"].Hand = []deck.Card{card(0, 4), card(1, 4), card(2, 4)}
		g.pile = []deck.Card{card(50, 9)}
		g.deck = deck.Deck{card(60, 3)}

		require.NoError(t, g.DrawFromDeck("p1"))
		utils.AssertTrue(t, g.HasPending())
		utils.AssertEqual(t, len(g.Pile()), 2)

		utils.AssertTrue(t, g.ResolvePending())
		utils.AssertEqual(t, len(g.Pile()), 0)
		utils.AssertEqual(t, len(g.players["p1"].Hand), 5)
		utils.AssertEqual(t, g.CurrentTurn(), "p2")
		noDuplicates(t, g)
	})

	t.Run("empty deck rejected", func(t *testing.T) {
		g := playingGame(t)
		err := g.DrawFromDeck("p1")
		reason, _ := ReasonOf(err)
		utils.AssertEqual(t, reason, EmptyDeck)
	})

	// Like taking the pile, a failed draw resolution appends to a hand
	// that has not been touched since the deal; the dealt face-up
	// cards next to it must survive.
	t.Run("failed draw right after a real deal conserves cards", func(t *testing.T) {
		g := newTestGame(t, GameOpts{})
		g.Deal()
		for _, info := range g.Players() {
			require.NoError(t, g.ConfirmSwap(info.ID))
		}

		// open with the highest non-special card so a low draw fails
		opener := g.CurrentTurn()
		pick, found := deck.Card{}, false
		for _, c := range g.PlayerCards(opener).Hand {
			if !IsSpecial(c) && (!found || c.Rank > pick.Rank) {
				pick, found = c, true
			}
		}
		require.True(t, found, "opener needs a non-special card in hand")
		require.NoError(t, g.SelectCard(opener, pick.ID))
		if g.CurrentTurn() == opener && len(g.Selected(opener)) > 0 {
			require.NoError(t, g.PlaySelected(opener))
		}
		require.False(t, g.HasPending())

		// plant a card too low to play on top of the deck
		moved := false
		for i, c := range g.deck {
			if !IsSpecial(c) && c.Rank < pick.Rank {
				last := len(g.deck) - 1
				g.deck[i], g.deck[last] = g.deck[last], g.deck[i]
				moved = true
				break
			}
		}
		require.True(t, moved, "deck needs a rank below %d", pick.Rank)

		drawer := g.CurrentTurn()
		require.NoError(t, g.DrawFromDeck(drawer))
		utils.AssertTrue(t, g.HasPending())
		utils.AssertTrue(t, g.ResolvePending())
		utils.AssertEqual(t, len(g.Pile()), 0)
		conserved(t, g)
	})
}

func TestPassTurn(t *testing.T) {
	t.Run("rejected when a card could take the pile", func(t *testing.T) {
		g := playingGame(t)
		g.players["p1"].Hand = []deck.Card{card(0, 4)}
		g.pile = []deck.Card{card(50, 9)}

		err := g.PassTurn("p1")
		reason, _ := ReasonOf(err)
		utils.AssertEqual(t, reason, IllegalPlay)
	})

	t.Run("rejected when the empty pile makes everything playable", func(t *testing.T) {
		g := playingGame(t)
		g.players["p1"].Hand = nil
		g.players["p1"].FaceUp = []deck.Card{card(0, 4)}

		err := g.PassTurn("p1")
		reason, _ := ReasonOf(err)
		utils.AssertEqual(t, reason, IllegalPlay)
	})
}

func TestWinTerminality(t *testing.T) {
	g := playingGame(t)
	g.players["p1"].Hand = []deck.Card{card(0, 7)}
	g.players["p1"].FaceUp = nil
	g.players["p1"].FaceDown = nil
	g.players["p2"].Hand = []deck.Card{card(10, 8)}

	require.NoError(t, g.SelectCard("p1", 0))
	utils.AssertEqual(t, g.Phase(), GameOver)
	utils.AssertEqual(t, g.Winner(), "p1")

	before := g.Snapshot()

	ops := map[string]error{
		"selectCard":   g.SelectCard("p2", 10),
		"playSelected": g.PlaySelected("p2"),
		"takePile":     g.TakePile("p2"),
		"drawFromDeck": g.DrawFromDeck("p2"),
		"confirmSwap":  g.ConfirmSwap("p2"),
		"passTurn":     g.PassTurn("p2"),
	}
	for name, err := range ops {
		t.Run(fmt.Sprintf("%s after game over", name), func(t *testing.T) {
			utils.AssertErrored(t, err)
		})
	}
	utils.AssertDeepEqual(t, g.Snapshot(), before)
}

func TestFullGamePlayout(t *testing.T) {
	// AI against AI through the whole lifecycle. Burned piles leave
	// play, so the in-play total may only shrink, never grow, and no
	// card may ever be duplicated.
	for seed := int64(0); seed < 5; seed++ {
		seed := seed
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			g := newTestGame(t, GameOpts{Rand: rand.New(rand.NewSource(seed))})
			g.Deal()
			conserved(t, g)

			ai1 := &AIPlayer{ID: "p1"}
			ai2 := &AIPlayer{ID: "p2"}
			require.NoError(t, ai1.SwapCards(g))
			require.NoError(t, ai2.SwapCards(g))
			require.Equal(t, Playing, g.Phase())

			inPlay := deck.Size
			for turns := 0; turns < 2000 && g.Phase() == Playing; turns++ {
				actor := ai1
				if g.CurrentTurn() == "p2" {
					actor = ai2
				}
				require.NoError(t, actor.TakeTurn(g))
				g.ResolvePending()

				total := noDuplicates(t, g)
				require.LessOrEqual(t, total, inPlay, "cards appeared from nowhere")
				inPlay = total
			}

			require.Equal(t, GameOver, g.Phase(), "game did not finish")
			utils.AssertNotEmptyString(t, g.Winner())
		})
	}
}
