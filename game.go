// Game model and rules
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

import (
	"fmt"
)

// Game holds the complete state of one game.  It is rebuilt from the
// stored blob on every client action and thrown away after the write,
// so it carries no identity beyond its state.
//
// The action stack is append-only with a single exception: an
// accepted undo truncates it and rebuilds the rest of the state by
// replaying from the start, which restores captures, prisoner counts
// and the position history without bookkeeping.
type Game struct {
	Size     int
	Komi     float64
	Handicap int
	Turn     Color
	Phase    Phase
	Board    *Board
	Actions  []Action
	History  []Hash
	Dead     map[[2]int]bool
	Pending  *Request
	Result   *Result

	prisoners [3]int
}

// NewGame creates a game on an empty board, placing handicap stones
// for black on the canonical points.  With a handicap it is white's
// turn first, otherwise black's.
func NewGame(size int, komi float64, handicap int) (*Game, error) {
	switch size {
	case 9, 13, 19:
	default:
		return nil, fmt.Errorf("illegal board size %d", size)
	}
	if handicap < 0 || handicap > 9 {
		return nil, fmt.Errorf("illegal handicap %d", handicap)
	}

	board := MakeBoard(size)
	for _, p := range HandicapStones(size, handicap) {
		board.set(p[0], p[1], Black)
	}

	turn := Black
	if handicap > 0 {
		turn = White
	}

	return &Game{
		Size:     size,
		Komi:     komi,
		Handicap: handicap,
		Turn:     turn,
		Phase:    PhasePlay,
		Board:    board,
		History:  []Hash{board.Hash()},
		Dead:     make(map[[2]int]bool),
	}, nil
}

// hoshi returns the coordinates of the star points of a board
func hoshi(size int) (lo, mid, hi int) {
	switch size {
	case 9:
		return 2, 4, 6
	case 13:
		return 3, 6, 9
	case 19:
		return 3, 9, 15
	default:
		panic(fmt.Sprintf("No star points for size %d", size))
	}
}

// HandicapStones returns the canonical placement for N handicap
// stones: opposing corners first, then the remaining corners, then
// the side points, with the centre point used for odd counts above
// four.  A single-stone handicap places on the centre.
func HandicapStones(size, n int) [][2]int {
	if n == 0 {
		return nil
	}
	lo, mid, hi := hoshi(size)

	corners := [][2]int{{lo, hi}, {hi, lo}, {hi, hi}, {lo, lo}}
	sides := [][2]int{{mid, lo}, {mid, hi}, {lo, mid}, {hi, mid}}
	centre := [2]int{mid, mid}

	switch n {
	case 1:
		return [][2]int{centre}
	case 2, 3, 4:
		return corners[:n]
	case 5:
		return append(corners[:4:4], centre)
	case 6:
		return append(corners[:4:4], sides[:2]...)
	case 7:
		return append(append(corners[:4:4], sides[:2]...), centre)
	case 8:
		return append(corners[:4:4], sides[:4]...)
	case 9:
		return append(append(corners[:4:4], sides[:4]...), centre)
	default:
		panic(fmt.Sprintf("Illegal handicap %d", n))
	}
}

func (g *Game) Prisoners(c Color) int { return g.prisoners[c] }

// LastMove returns the coordinates of the most recent stone
// placement, if the last action was one
func (g *Game) LastMove() (row, col int, ok bool) {
	if n := len(g.Actions); n > 0 && g.Actions[n-1].Kind == ActionPlay {
		a := g.Actions[n-1]
		return a.Row, a.Col, true
	}
	return 0, 0, false
}

// Apply validates and executes a single action.  On success the
// action is recorded on the stack (an accepted undo instead rewinds
// it) and the game state advances; on failure the game is untouched
// and the error is a *MoveError.
func (g *Game) Apply(a Action) error {
	var err error
	switch a.Kind {
	case ActionPlay:
		err = g.play(a)
	case ActionPass:
		err = g.pass(a)
	case ActionResign:
		err = g.resign(a)
	case ActionMarkDead:
		err = g.markDead(a)
	case ActionRequestUndo:
		err = g.requestUndo(a)
	case ActionAcceptUndo:
		// rewinds the stack itself, nothing to append
		return g.acceptUndo(a)
	case ActionRequestTally:
		err = g.requestTally(a)
	case ActionAcceptTally:
		err = g.acceptTally(a)
	case ActionRequestDraw:
		err = g.requestDraw(a)
	case ActionAcceptDraw:
		err = g.acceptDraw(a)
	default:
		panic(fmt.Sprintf("Unknown action kind: %d", uint8(a.Kind)))
	}
	if err != nil {
		return err
	}
	g.Actions = append(g.Actions, a)
	return nil
}

// play places a stone.  During the endgame a placement is permitted
// and reverts the game to play, discarding dead marks and any pending
// tally; both players must pass again to re-enter the endgame.
func (g *Game) play(a Action) error {
	if g.Phase != PhasePlay && g.Phase != PhaseEndgame {
		return illegal(MoveWrongPhase, "cannot place a stone in phase %s", g.Phase)
	}
	if a.By != g.Turn {
		return illegal(MoveNotYourTurn, "it isn't %s's turn", a.By)
	}

	next, captured, err := g.Board.Place(a.By, a.Row, a.Col)
	if err != nil {
		return err
	}
	hash := next.Hash()
	for _, h := range g.History {
		if h == hash {
			return illegal(MoveKo,
				"playing at (%d, %d) repeats a prior position", a.Row, a.Col)
		}
	}

	g.Board = next
	g.History = append(g.History, hash)
	g.prisoners[a.By] += captured
	g.Turn = g.Turn.Other()
	g.Pending = nil
	if g.Phase == PhaseEndgame {
		g.Phase = PhasePlay
		g.Dead = make(map[[2]int]bool)
	}
	return nil
}

// lastTurnAction returns the most recent play or pass on the stack,
// skipping request markers
func (g *Game) lastTurnAction() (Action, bool) {
	for i := len(g.Actions) - 1; i >= 0; i-- {
		switch g.Actions[i].Kind {
		case ActionPlay, ActionPass:
			return g.Actions[i], true
		}
	}
	return Action{}, false
}

// pass gives up the turn.  Two consecutive passes enter the endgame
// with an implicit empty tally proposal from the second passer.
func (g *Game) pass(a Action) error {
	if g.Phase != PhasePlay {
		return illegal(MoveWrongPhase, "cannot pass in phase %s", g.Phase)
	}
	if a.By != g.Turn {
		return illegal(MoveNotYourTurn, "it isn't %s's turn", a.By)
	}

	g.Turn = g.Turn.Other()
	g.Pending = nil
	if prev, ok := g.lastTurnAction(); ok && prev.Kind == ActionPass {
		g.Phase = PhaseEndgame
		g.Dead = make(map[[2]int]bool)
		g.Pending = &Request{Kind: RequestTally, By: a.By}
	}
	return nil
}

func (g *Game) resign(a Action) error {
	if g.Phase != PhasePlay && g.Phase != PhaseEndgame {
		return illegal(MoveWrongPhase, "cannot resign in phase %s", g.Phase)
	}
	g.Phase = PhaseResigned
	g.Result = &Result{Winner: a.By.Other()}
	g.Pending = nil
	return nil
}

// markDead toggles the dead mark on a stone during the endgame.  Any
// edit invalidates a pending tally: both players must accept the
// current marks afresh.
func (g *Game) markDead(a Action) error {
	if g.Phase != PhaseEndgame {
		return illegal(MoveWrongPhase, "dead stones can only be marked in the endgame")
	}
	if !g.Board.inBounds(a.Row, a.Col) {
		return illegal(MoveOffBoard,
			"point (%d, %d) is outside the %dx%d board", a.Row, a.Col, g.Size, g.Size)
	}

	p := [2]int{a.Row, a.Col}
	if a.Flag {
		if g.Board.At(a.Row, a.Col) == NoColor {
			return illegal(MoveBadRequest,
				"there is no stone at (%d, %d) to mark dead", a.Row, a.Col)
		}
		g.Dead[p] = true
	} else {
		delete(g.Dead, p)
	}
	g.Pending = nil
	return nil
}

func (g *Game) requestUndo(a Action) error {
	if g.Phase != PhasePlay {
		return illegal(MoveWrongPhase, "takebacks are only available during play")
	}
	if g.Pending != nil {
		return illegal(MoveBadRequest, "another request is already pending")
	}
	if a.By == g.Turn {
		return illegal(MoveBadRequest,
			"only the player who just moved may request a takeback")
	}
	if _, ok := g.lastTurnAction(); !ok {
		return illegal(MoveBadRequest, "there is nothing to take back")
	}
	g.Pending = &Request{Kind: RequestUndo, By: a.By}
	return nil
}

// acceptUndo rewinds the stack far enough that it is the requester's
// turn again, then rebuilds the game by replay
func (g *Game) acceptUndo(a Action) error {
	if g.Pending == nil || g.Pending.Kind != RequestUndo {
		return illegal(MoveBadRequest, "there is no takeback request to accept")
	}
	if a.By == g.Pending.By {
		return illegal(MoveBadRequest, "a takeback can only be accepted by the opponent")
	}
	requester := g.Pending.By

	// The request marker is necessarily the top of the stack: any
	// interleaved action would have cleared the pending request.
	actions := g.Actions[:len(g.Actions)-1]
	for {
		undone, err := Replay(g.Size, g.Komi, g.Handicap, actions)
		if err != nil {
			return fmt.Errorf("replaying after takeback: %w", err)
		}
		if (undone.Turn == requester && undone.Phase == PhasePlay) || len(actions) == 0 {
			*g = *undone
			return nil
		}
		actions = actions[:len(actions)-1]
	}
}

func (g *Game) requestTally(a Action) error {
	if g.Phase != PhaseEndgame {
		return illegal(MoveWrongPhase, "the score can only be tallied in the endgame")
	}
	if g.Pending != nil {
		return illegal(MoveBadRequest, "another request is already pending")
	}
	g.Pending = &Request{Kind: RequestTally, By: a.By}
	return nil
}

// acceptTally completes the game.  The pending request is cleared by
// any dead-mark edit, so acceptance implies the marks are unchanged
// since the proposal.
func (g *Game) acceptTally(a Action) error {
	if g.Phase != PhaseEndgame {
		return illegal(MoveWrongPhase, "the score can only be tallied in the endgame")
	}
	if g.Pending == nil || g.Pending.Kind != RequestTally {
		return illegal(MoveBadRequest, "there is no tally request to accept")
	}
	if a.By == g.Pending.By {
		return illegal(MoveBadRequest, "a tally can only be accepted by the opponent")
	}

	white, black := g.Score()
	winner := NoColor
	switch {
	case white > black:
		winner = White
	case black > white:
		winner = Black
	}
	g.Result = &Result{Winner: winner, WhiteScore: white, BlackScore: black}
	g.Phase = PhaseComplete
	g.Pending = nil
	return nil
}

func (g *Game) requestDraw(a Action) error {
	if g.Phase != PhasePlay && g.Phase != PhaseEndgame {
		return illegal(MoveWrongPhase, "cannot offer a draw in phase %s", g.Phase)
	}
	if g.Pending != nil {
		return illegal(MoveBadRequest, "another request is already pending")
	}
	g.Pending = &Request{Kind: RequestDraw, By: a.By}
	return nil
}

// acceptDraw ends the game without a winner.  Like any other request,
// a draw offer is cleared by the next move, so acceptance only reaches
// here while the offer still stands.
func (g *Game) acceptDraw(a Action) error {
	if g.Pending == nil || g.Pending.Kind != RequestDraw {
		return illegal(MoveBadRequest, "there is no draw offer to accept")
	}
	if a.By == g.Pending.By {
		return illegal(MoveBadRequest, "a draw can only be accepted by the opponent")
	}
	g.Result = &Result{Winner: NoColor}
	g.Phase = PhaseComplete
	g.Pending = nil
	return nil
}

// Score computes the area score under the current dead marks: stones
// on the board plus surrounded territory, komi to white.  Dead stones
// are removed first, so the points they stood on transfer to the
// opponent as territory.
func (g *Game) Score() (white, black float64) {
	board := g.Board.Copy()
	for p := range g.Dead {
		board.set(p[0], p[1], NoColor)
	}
	tw, tb := board.Territory()
	white = float64(board.Stones(White)+tw) + g.Komi
	black = float64(board.Stones(Black) + tb)
	return white, black
}

// Replay rebuilds a game from scratch by applying ACTIONS in order.
// Every action must succeed; a failure means the stack is corrupt.
func Replay(size int, komi float64, handicap int, actions []Action) (*Game, error) {
	g, err := NewGame(size, komi, handicap)
	if err != nil {
		return nil, err
	}
	for i, a := range actions {
		if err := g.Apply(a); err != nil {
			return nil, fmt.Errorf("action %d (%s by %s): %w", i, a.Kind, a.By, err)
		}
	}
	return g, nil
}
