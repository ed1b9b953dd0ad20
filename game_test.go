// Game tests
//
// Copyright (c) 2026  The igo-server authors
//
// This file is part of igo-server.
//
// igo-server is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License,
// version 3, as published by the Free Software Foundation.
//
// igo-server is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public
// License, version 3, along with igo-server. If not, see
// <http://www.gnu.org/licenses/>

package igo

import "testing"

func mustGame(t *testing.T, size int, komi float64, handicap int) *Game {
	t.Helper()
	g, err := NewGame(size, komi, handicap)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func mustApply(t *testing.T, g *Game, actions ...Action) {
	t.Helper()
	for _, a := range actions {
		if err := g.Apply(a); err != nil {
			t.Fatalf("%s by %s failed: %v", a.Kind, a.By, err)
		}
	}
}

func play(c Color, row, col int) Action {
	return Action{Kind: ActionPlay, By: c, Row: row, Col: col}
}

func pass(c Color) Action {
	return Action{Kind: ActionPass, By: c}
}

func TestNewGame(t *testing.T) {
	g := mustGame(t, 9, 6.5, 0)
	if g.Turn != Black {
		t.Fatal("Black does not move first")
	}
	if g.Phase != PhasePlay {
		t.Fatalf("Fresh game is in phase %s", g.Phase)
	}
	if len(g.History) != 1 {
		t.Fatal("History not seeded with the initial position")
	}

	if _, err := NewGame(10, 6.5, 0); err == nil {
		t.Fatal("Board size 10 was accepted")
	}
	if _, err := NewGame(9, 6.5, 10); err == nil {
		t.Fatal("Handicap 10 was accepted")
	}
}

func TestHandicap(t *testing.T) {
	g := mustGame(t, 9, 0.5, 3)
	if g.Turn != White {
		t.Fatal("White does not move first in a handicap game")
	}
	if n := g.Board.Stones(Black); n != 3 {
		t.Fatalf("Expected 3 handicap stones, got %d", n)
	}
	for _, p := range HandicapStones(9, 3) {
		if g.Board.At(p[0], p[1]) != Black {
			t.Fatalf("No handicap stone on (%d, %d)", p[0], p[1])
		}
	}
}

func TestTurnOrder(t *testing.T) {
	g := mustGame(t, 9, 6.5, 0)
	err := g.Apply(play(White, 4, 4))
	wantMoveError(t, err, MoveNotYourTurn)

	mustApply(t, g, play(Black, 4, 4))
	err = g.Apply(play(Black, 2, 2))
	wantMoveError(t, err, MoveNotYourTurn)
}

func TestCaptureUpdatesPrisoners(t *testing.T) {
	// White builds a diamond around a lone black stone while black
	// passes; the closing move captures it
	g := mustGame(t, 9, 6.5, 0)
	mustApply(t, g,
		play(Black, 4, 4),
		play(White, 3, 4),
		pass(Black),
		play(White, 4, 3),
		pass(Black),
		play(White, 4, 5),
		pass(Black),
		play(White, 5, 4),
	)
	if g.Board.At(4, 4) != NoColor {
		t.Fatal("Captured stone is still on the board")
	}
	if g.Prisoners(White) != 1 {
		t.Fatalf("Expected 1 white prisoner, got %d", g.Prisoners(White))
	}
	if g.Turn != Black {
		t.Fatal("Turn did not return to black")
	}
}

func TestSuperko(t *testing.T) {
	g := mustGame(t, 9, 6.5, 0)
	mustApply(t, g,
		play(Black, 4, 3),
		play(White, 4, 6),
		play(Black, 3, 4),
		play(White, 3, 5),
		play(Black, 5, 4),
		play(White, 5, 5),
		play(Black, 4, 5),
		play(White, 4, 4), // captures (4, 5)
	)
	if g.Board.At(4, 5) != NoColor {
		t.Fatal("White did not capture the ko stone")
	}

	// Retaking immediately repeats the position
	err := g.Apply(play(Black, 4, 5))
	wantMoveError(t, err, MoveKo)

	// After an exchange elsewhere the position is new
	mustApply(t, g,
		play(Black, 0, 0),
		play(White, 8, 8),
		play(Black, 4, 5),
	)
	if g.Board.At(4, 4) != NoColor {
		t.Fatal("Black did not retake the ko")
	}
}

func TestPassPassEntersEndgame(t *testing.T) {
	g := mustGame(t, 9, 6.5, 0)
	mustApply(t, g, pass(Black))
	if g.Phase != PhasePlay {
		t.Fatal("A single pass ended the play phase")
	}
	mustApply(t, g, pass(White))
	if g.Phase != PhaseEndgame {
		t.Fatal("Two passes did not enter the endgame")
	}
	if g.Pending == nil || g.Pending.Kind != RequestTally || g.Pending.By != White {
		t.Fatal("The second passer did not propose a tally")
	}
}

func TestAlternatingPassesStayInPlay(t *testing.T) {
	g := mustGame(t, 9, 6.5, 0)
	mustApply(t, g,
		pass(Black),
		play(White, 4, 4),
		pass(Black),
		play(White, 2, 2),
		pass(Black),
	)
	if g.Phase != PhasePlay {
		t.Fatal("Non-consecutive passes ended the play phase")
	}
}

func TestTally(t *testing.T) {
	g := mustGame(t, 9, 6.5, 0)
	mustApply(t, g,
		play(Black, 4, 4),
		play(White, 2, 2),
		pass(Black),
		pass(White),
	)

	// Black rejects the implicit proposal by marking white's stone
	// dead, which also clears the pending request
	mustApply(t, g, Action{Kind: ActionMarkDead, By: Black, Row: 2, Col: 2, Flag: true})
	if g.Pending != nil {
		t.Fatal("Editing the marks did not clear the pending tally")
	}

	err := g.Apply(Action{Kind: ActionAcceptTally, By: White})
	wantMoveError(t, err, MoveBadRequest)

	mustApply(t, g,
		Action{Kind: ActionRequestTally, By: Black},
		Action{Kind: ActionAcceptTally, By: White},
	)
	if g.Phase != PhaseComplete {
		t.Fatal("An accepted tally did not complete the game")
	}
	// With the white stone dead, black owns the whole board
	if g.Result == nil || g.Result.Winner != Black {
		t.Fatalf("Expected black to win, got %+v", g.Result)
	}
	if g.Result.BlackScore != 81 {
		t.Fatalf("Expected a black score of 81, got %v", g.Result.BlackScore)
	}
	if g.Result.WhiteScore != 6.5 {
		t.Fatalf("Expected a white score of 6.5, got %v", g.Result.WhiteScore)
	}

	// A finished game accepts nothing further
	err = g.Apply(play(Black, 0, 0))
	wantMoveError(t, err, MoveWrongPhase)
}

func TestTallyRequesterCannotAccept(t *testing.T) {
	g := mustGame(t, 9, 6.5, 0)
	mustApply(t, g, pass(Black), pass(White))
	err := g.Apply(Action{Kind: ActionAcceptTally, By: White})
	wantMoveError(t, err, MoveBadRequest)
}

func TestMarkDead(t *testing.T) {
	g := mustGame(t, 9, 6.5, 0)
	mustApply(t, g, play(Black, 4, 4), play(White, 2, 2))

	// Marks are an endgame affair
	err := g.Apply(Action{Kind: ActionMarkDead, By: Black, Row: 2, Col: 2, Flag: true})
	wantMoveError(t, err, MoveWrongPhase)

	mustApply(t, g, pass(Black), pass(White))

	// Only stones can be marked
	err = g.Apply(Action{Kind: ActionMarkDead, By: Black, Row: 0, Col: 0, Flag: true})
	wantMoveError(t, err, MoveBadRequest)

	mark := [2]int{2, 2}
	mustApply(t, g, Action{Kind: ActionMarkDead, By: Black, Row: 2, Col: 2, Flag: true})
	if !g.Dead[mark] {
		t.Fatal("Stone was not marked dead")
	}
	mustApply(t, g, Action{Kind: ActionMarkDead, By: Black, Row: 2, Col: 2})
	if len(g.Dead) != 0 {
		t.Fatal("Unmarking did not remove the mark")
	}
}

func TestPlayLeavesEndgame(t *testing.T) {
	g := mustGame(t, 9, 6.5, 0)
	mustApply(t, g,
		play(Black, 4, 4),
		play(White, 2, 2),
		pass(Black),
		pass(White),
		Action{Kind: ActionMarkDead, By: White, Row: 4, Col: 4, Flag: true},
	)

	// It is black's turn again after two passes
	mustApply(t, g, play(Black, 6, 6))
	if g.Phase != PhasePlay {
		t.Fatal("A placement did not revert the game to play")
	}
	if len(g.Dead) != 0 {
		t.Fatal("Dead marks survived the return to play")
	}
	if g.Pending != nil {
		t.Fatal("A pending request survived the return to play")
	}
}

func TestResign(t *testing.T) {
	g := mustGame(t, 9, 6.5, 0)
	mustApply(t, g,
		play(Black, 4, 4),
		Action{Kind: ActionResign, By: White},
	)
	if g.Phase != PhaseResigned {
		t.Fatal("Resignation did not end the game")
	}
	if g.Result == nil || g.Result.Winner != Black {
		t.Fatalf("Expected black to win, got %+v", g.Result)
	}
	if g.Result.WhiteScore != 0 || g.Result.BlackScore != 0 {
		t.Fatal("A resignation records no scores")
	}
}

func TestUndo(t *testing.T) {
	g := mustGame(t, 9, 6.5, 0)
	mustApply(t, g,
		play(Black, 4, 4),
		play(White, 2, 2),
		play(Black, 6, 6),
	)

	// The player whose move stands may not request
	err := g.Apply(Action{Kind: ActionRequestUndo, By: White})
	wantMoveError(t, err, MoveBadRequest)

	mustApply(t, g, Action{Kind: ActionRequestUndo, By: Black})

	// Nor may the requester accept
	err = g.Apply(Action{Kind: ActionAcceptUndo, By: Black})
	wantMoveError(t, err, MoveBadRequest)

	mustApply(t, g, Action{Kind: ActionAcceptUndo, By: White})
	if g.Board.At(6, 6) != NoColor {
		t.Fatal("The taken-back stone is still on the board")
	}
	if g.Board.At(4, 4) != Black || g.Board.At(2, 2) != White {
		t.Fatal("Earlier moves were lost")
	}
	if g.Turn != Black {
		t.Fatal("It is not the requester's turn after the takeback")
	}
	if g.Pending != nil {
		t.Fatal("The takeback request is still pending")
	}

	// The position freed by the takeback is playable again
	mustApply(t, g, play(Black, 6, 6))
}

func TestUndoRestoresCaptures(t *testing.T) {
	g := mustGame(t, 9, 6.5, 0)
	mustApply(t, g,
		play(Black, 4, 4),
		play(White, 3, 4),
		pass(Black),
		play(White, 4, 3),
		pass(Black),
		play(White, 4, 5),
		pass(Black),
		play(White, 5, 4), // captures (4, 4)
		Action{Kind: ActionRequestUndo, By: White},
		Action{Kind: ActionAcceptUndo, By: Black},
	)
	if g.Board.At(4, 4) != Black {
		t.Fatal("The captured stone was not restored")
	}
	if g.Prisoners(White) != 0 {
		t.Fatalf("Expected 0 white prisoners, got %d", g.Prisoners(White))
	}
	if g.Turn != White {
		t.Fatal("It is not the requester's turn after the takeback")
	}
}

func TestUndoNothingToTakeBack(t *testing.T) {
	g := mustGame(t, 9, 6.5, 0)
	err := g.Apply(Action{Kind: ActionRequestUndo, By: White})
	wantMoveError(t, err, MoveBadRequest)
}

func TestDraw(t *testing.T) {
	g := mustGame(t, 9, 6.5, 0)
	mustApply(t, g,
		play(Black, 4, 4),
		Action{Kind: ActionRequestDraw, By: White},
	)

	// The offering side cannot accept its own offer
	err := g.Apply(Action{Kind: ActionAcceptDraw, By: White})
	wantMoveError(t, err, MoveBadRequest)

	mustApply(t, g, Action{Kind: ActionAcceptDraw, By: Black})
	if g.Phase != PhaseComplete {
		t.Fatal("An accepted draw did not complete the game")
	}
	if g.Result == nil || g.Result.Winner != NoColor {
		t.Fatalf("Expected no winner, got %+v", g.Result)
	}
	if g.Result.WhiteScore != 0 || g.Result.BlackScore != 0 {
		t.Fatal("An agreed draw records no scores")
	}
}

func TestDrawOfferClearedByMove(t *testing.T) {
	g := mustGame(t, 9, 6.5, 0)
	mustApply(t, g,
		play(Black, 4, 4),
		Action{Kind: ActionRequestDraw, By: White},
		play(White, 2, 2),
	)
	if g.Pending != nil {
		t.Fatal("A move did not withdraw the draw offer")
	}
	err := g.Apply(Action{Kind: ActionAcceptDraw, By: Black})
	wantMoveError(t, err, MoveBadRequest)
}

func TestScoreTransfersDeadStones(t *testing.T) {
	g := mustGame(t, 9, 6.5, 0)
	mustApply(t, g,
		play(Black, 4, 4),
		play(White, 2, 2),
		pass(Black),
		pass(White),
		Action{Kind: ActionMarkDead, By: Black, Row: 2, Col: 2, Flag: true},
	)
	white, black := g.Score()
	if white != 6.5 {
		t.Fatalf("Expected white to score only komi, got %v", white)
	}
	if black != 81 {
		t.Fatalf("Expected black to score the whole board, got %v", black)
	}
}
