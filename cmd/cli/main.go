package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/222caleb/stinkyman-game/deck"
	"github.com/222caleb/stinkyman-game/game"
)

const (
	humanID = "you"
	aiID    = "ai"

	// long enough to read what the reveal or burn did
	resolveDelay = 900 * time.Millisecond
	aiDelay      = 600 * time.Millisecond
)

func main() {
	g, err := game.NewGame(game.GameOpts{
		Players: []game.PlayerInfo{
			{ID: humanID, Name: "You"},
			{ID: aiID, Name: "Stinky Man"},
		},
		Order: game.HeadToHead{HumanID: humanID},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	in := bufio.NewScanner(os.Stdin)
	ai := &game.AIPlayer{ID: aiID}

	g.Deal()
	runSwap(g, in)
	runGame(g, in, ai)
}

func runSwap(g *game.Game, in *bufio.Scanner) {
	fmt.Println("Swap phase. Pair a hand card with a face-up card to swap them.")
	for g.Phase() == game.Swap {
		pc := g.PlayerCards(humanID)
		fmt.Println()
		fmt.Println("Hand:   ", renderCards(pc.Hand))
		fmt.Println("Face-up:", renderCards(pc.FaceUp))
		fmt.Print("swap <hand#> <up#>, or done > ")

		if !in.Scan() {
			os.Exit(0)
		}
		fields := strings.Fields(strings.ToLower(in.Text()))
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "done":
			if err := g.ConfirmSwap(humanID); err != nil {
				fmt.Println(err)
			}
		case "swap":
			if len(fields) != 3 {
				fmt.Println("usage: swap <hand#> <up#>")
				continue
			}
			h, err1 := strconv.Atoi(fields[1])
			u, err2 := strconv.Atoi(fields[2])
			if err1 != nil || err2 != nil || h < 1 || h > len(pc.Hand) || u < 1 || u > len(pc.FaceUp) {
				fmt.Println("pick cards by their number")
				continue
			}
			if err := g.SelectCard(humanID, pc.Hand[h-1].ID); err != nil {
				fmt.Println(err)
				continue
			}
			if err := g.SelectCard(humanID, pc.FaceUp[u-1].ID); err != nil {
				fmt.Println(err)
			}
		default:
			fmt.Println("swap <hand#> <up#>, or done")
		}
	}
}

func runGame(g *game.Game, in *bufio.Scanner, ai *game.AIPlayer) {
	for g.Phase() == game.Playing {
		if g.HasPending() {
			time.Sleep(resolveDelay)
			g.ResolvePending()
			continue
		}

		if msg := g.Message(); msg != "" {
			fmt.Println(">>", msg)
		}

		if g.CurrentTurn() == aiID {
			time.Sleep(aiDelay)
			if err := ai.TakeTurn(g); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			continue
		}

		humanTurn(g, in)
	}

	if g.Phase() == game.GameOver {
		fmt.Println()
		fmt.Println(">>", g.Message())
	}
}

func humanTurn(g *game.Game, in *bufio.Scanner) {
	pc := g.PlayerCards(humanID)
	pile := g.Pile()

	fmt.Println()
	if len(pile) == 0 {
		fmt.Println("Pile: empty")
	} else {
		direction := ""
		if g.IsReversed() {
			direction = " (play equal or lower)"
		}
		fmt.Printf("Pile: %s, %d cards%s\n", pile[len(pile)-1], len(pile), direction)
	}

	opp := g.PlayerCards(aiID)
	fmt.Printf("Stinky Man: %d in hand, %d face-up, %d face-down\n",
		len(opp.Hand), len(opp.FaceUp), len(opp.FaceDown))

	active := pc.ActiveCards()
	switch pc.ActiveZone() {
	case game.ZoneHand:
		fmt.Println("Hand:", renderCards(active))
	case game.ZoneFaceUp:
		fmt.Println("Face-up:", renderCards(active))
	case game.ZoneFaceDown:
		fmt.Printf("Face-down: %d hidden cards\n", len(active))
	}

	fmt.Print("play <#...>, take, draw, or pass > ")
	if !in.Scan() {
		os.Exit(0)
	}
	fields := strings.Fields(strings.ToLower(in.Text()))
	if len(fields) == 0 {
		return
	}

	var err error
	switch fields[0] {
	case "play":
		err = playCards(g, active, fields[1:])
	case "take":
		err = g.TakePile(humanID)
	case "draw":
		err = g.DrawFromDeck(humanID)
	case "pass":
		err = g.PassTurn(humanID)
	default:
		fmt.Println("play <#...>, take, draw, or pass")
		return
	}
	if err != nil {
		fmt.Println(err)
	}
}

func playCards(g *game.Game, active []deck.Card, picks []string) error {
	if len(picks) == 0 {
		return fmt.Errorf("pick at least one card")
	}
	for _, pick := range picks {
		n, err := strconv.Atoi(pick)
		if err != nil || n < 1 || n > len(active) {
			return fmt.Errorf("no card numbered %q", pick)
		}
		if err := g.SelectCard(humanID, active[n-1].ID); err != nil {
			return err
		}
		// a full set of the chosen rank commits on selection
		if g.HasPending() || g.CurrentTurn() != humanID || g.Phase() != game.Playing {
			return nil
		}
	}
	return g.PlaySelected(humanID)
}

func renderCards(cards []deck.Card) string {
	parts := make([]string, 0, len(cards))
	for i, c := range cards {
		parts = append(parts, fmt.Sprintf("[%d] %s", i+1, c))
	}
	return strings.Join(parts, "  ")
}
