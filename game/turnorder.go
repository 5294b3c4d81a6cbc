package game

import "github.com/222caleb/stinkyman-game/deck"

// TurnOrder decides who acts when. It is the single point where the
// two-fixed-sides local game and the N-player rotation game differ;
// everything else runs through one engine.
type TurnOrder interface {
	// ConfirmSwap records that playerID has finished rearranging
	// cards and, once the mode's readiness condition is met, moves the
	// game into the playing phase and picks the first turn-holder.
	ConfirmSwap(g *Game, playerID string) error

	// Next returns the participant acting after current
	Next(g *Game, current string) string
}

// HeadToHead is the local two-party order: a human against an AI
// opponent. The human confirms the swap for both sides; the AI runs
// its one-shot swap heuristic at that moment and the human always
// takes the first turn.
type HeadToHead struct {
	HumanID string
}

func (h HeadToHead) ConfirmSwap(g *Game, playerID string) error {
	if playerID != h.HumanID {
		return rejectf(NotYourTurn, "only %s confirms in a local game", h.HumanID)
	}

	opponentID := h.Next(g, h.HumanID)
	if pc := g.players[opponentID]; pc != nil {
		swapFaceUp(pc)
		pc.SwapReady = true
	}
	g.players[h.HumanID].SwapReady = true

	g.beginPlay(h.HumanID)
	return nil
}

func (h HeadToHead) Next(g *Game, current string) string {
	for _, info := range g.info {
		if info.ID != current {
			return info.ID
		}
	}
	return current
}

// Rotation is the N-party order: every participant must confirm the
// swap, the first turn goes to the holder of the lowest non-special
// rank anywhere in their cards (ties broken by registration order)
// and turns advance through registration order, wrapping.
type Rotation struct{}

func (Rotation) ConfirmSwap(g *Game, playerID string) error {
	pc, ok := g.players[playerID]
	if !ok {
		return rejectf(NotYourTurn, "unknown participant %s", playerID)
	}
	if pc.SwapReady {
		return reject(AlreadyReady)
	}
	pc.SwapReady = true

	for _, info := range g.info {
		if !g.players[info.ID].SwapReady {
			return nil
		}
	}

	g.beginPlay(g.lowestNonSpecialHolder())
	return nil
}

func (Rotation) Next(g *Game, current string) string {
	for i, info := range g.info {
		if info.ID == current {
			return g.info[(i+1)%len(g.info)].ID
		}
	}
	return current
}

// lowestNonSpecialHolder scans every participant's cards for the
// lowest-ranked non-special card. Registration order breaks ties.
func (g *Game) lowestNonSpecialHolder() string {
	holder := g.info[0].ID
	lowest := deck.MaxRank + 1
	for _, info := range g.info {
		pc := g.players[info.ID]
		all := [][]deck.Card{pc.Hand, pc.FaceUp, pc.FaceDown}
		for _, zone := range all {
			for _, c := range zone {
				if !IsSpecial(c) && c.Rank < lowest {
					lowest = c.Rank
					holder = info.ID
				}
			}
		}
	}
	return holder
}
