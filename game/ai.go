package game

import (
	"sort"

	"github.com/222caleb/stinkyman-game/deck"
)

// cardStrength is the static swap-phase score of a card. Burns,
// reverses and wilds are worth keeping for the face-up endgame; low
// cards score their own rank.
func cardStrength(c deck.Card) int {
	switch {
	case c.Rank == RankBurn:
		return 100
	case c.Rank == RankReverse:
		return 90
	case c.Rank == RankWild:
		return 80
	case c.Rank >= deck.Jack:
		return 70
	case c.Rank >= 8:
		return 50
	}
	return c.Rank
}

// swapFaceUp runs the one-shot swap heuristic on pc: pair the
// strongest hand cards against the weakest face-up cards and swap
// each pair whose strength gap exceeds 10. Single pass, no search.
func swapFaceUp(pc *PlayerCards) {
	hand := append([]deck.Card{}, pc.Hand...)
	faceUp := append([]deck.Card{}, pc.FaceUp...)

	sort.SliceStable(hand, func(i, j int) bool {
		return cardStrength(hand[i]) > cardStrength(hand[j])
	})
	sort.SliceStable(faceUp, func(i, j int) bool {
		return cardStrength(faceUp[i]) < cardStrength(faceUp[j])
	})

	for i := 0; i < len(faceUp) && i < numCardsInGroup; i++ {
		if i >= len(hand) {
			break
		}
		if cardStrength(hand[i]) > cardStrength(faceUp[i])+10 {
			hand[i], faceUp[i] = faceUp[i], hand[i]
		}
	}

	pc.Hand = hand
	pc.FaceUp = faceUp
}

// AIPlayer drives the engine for one participant through the same
// operations a human driver uses
type AIPlayer struct {
	ID string
}

// SwapCards applies the swap heuristic to the AI's own zones and
// confirms readiness. Used in rotation games where the AI is a full
// participant; in head-to-head games HeadToHead.ConfirmSwap does this.
func (ai *AIPlayer) SwapCards(g *Game) error {
	if pc := g.PlayerCards(ai.ID); pc != nil {
		swapFaceUp(pc)
	}
	return g.ConfirmSwap(ai.ID)
}

// scoreCard is the in-turn evaluation. playable is the current
// playable set, handSize the AI's hand size, pileSize the pile size.
func scoreCard(c deck.Card, playable []deck.Card, handSize, pileSize int) int {
	if c.Rank == RankBurn {
		if pileSize > 5 {
			return 1000
		}
		return 500
	}

	sameRank := 0
	for _, p := range playable {
		if p.Rank == c.Rank {
			sameRank++
		}
	}
	if sameRank >= 3 {
		return 900
	}

	if c.Rank == RankReverse {
		for _, p := range playable {
			if p.Rank <= 4 && p.Rank != RankWild {
				return 800
			}
		}
		return 300
	}

	if c.Rank == RankWild {
		return 700
	}

	if c.Rank >= deck.Jack {
		if handSize <= 2 {
			return 400
		}
		return 100
	}

	if c.Rank <= 6 {
		return 600
	}

	return 200 + c.Rank
}

// TakeTurn makes one move: a blind attempt when only face-down cards
// remain, otherwise the highest-scoring rank played in full, the pile
// taken when stuck, or a pass when there is nothing to take either.
// The caller resolves any pending transition afterwards.
func (ai *AIPlayer) TakeTurn(g *Game) error {
	if g.Phase() != Playing || g.CurrentTurn() != ai.ID {
		return reject(NotYourTurn)
	}

	pc := g.PlayerCards(ai.ID)
	if pc.ActiveZone() == ZoneFaceDown {
		if len(pc.FaceDown) == 0 {
			return g.PassTurn(ai.ID)
		}
		return g.SelectCard(ai.ID, pc.FaceDown[0].ID)
	}

	playable := pc.PlayableCards(g.Pile(), g.IsReversed())
	if len(playable) == 0 {
		if len(g.Pile()) > 0 {
			return g.TakePile(ai.ID)
		}
		return g.PassTurn(ai.ID)
	}

	handSize := len(pc.Hand)
	pileSize := len(g.Pile())
	best := playable[0]
	bestScore := scoreCard(best, playable, handSize, pileSize)
	for _, c := range playable[1:] {
		if s := scoreCard(c, playable, handSize, pileSize); s > bestScore {
			best, bestScore = c, s
		}
	}

	// play every playable card of the chosen rank; the final select
	// auto-commits the play
	for _, c := range playable {
		if c.Rank != best.Rank {
			continue
		}
		if err := g.SelectCard(ai.ID, c.ID); err != nil {
			return err
		}
		if g.HasPending() || g.Phase() != Playing || g.CurrentTurn() != ai.ID {
			break
		}
	}
	return nil
}
