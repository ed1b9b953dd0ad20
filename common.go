// Common types and constants
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

import "fmt"

type (
	Color       uint8
	Phase       uint8
	ActionKind  uint8
	RequestKind uint8
	JoinResult  uint8
)

const (
	NoColor Color = iota
	White
	Black
)

const (
	PhasePlay Phase = iota
	PhaseEndgame
	PhaseComplete
	PhaseResigned
)

const (
	// Possible client actions on a game
	ActionPlay ActionKind = iota
	ActionPass
	ActionResign
	ActionMarkDead
	ActionRequestUndo
	ActionAcceptUndo
	ActionRequestTally
	ActionAcceptTally
	ActionRequestDraw
	ActionAcceptDraw
)

const (
	RequestUndo RequestKind = iota
	RequestTally
	RequestDraw
)

const (
	// Outcomes of an attempt to join a game by player key
	JoinDNE JoinResult = iota
	JoinInUse
	JoinAIOnly
	JoinSuccess
)

func (c Color) Other() Color {
	switch c {
	case White:
		return Black
	case Black:
		return White
	}
	panic("No opposite of the empty color")
}

func (c Color) String() string {
	switch c {
	case NoColor:
		return ""
	case White:
		return "white"
	case Black:
		return "black"
	default:
		panic(fmt.Sprintf("Illegal color: %d", uint8(c)))
	}
}

// ParseColor is the inverse of Color.String
func ParseColor(s string) (Color, error) {
	switch s {
	case "white":
		return White, nil
	case "black":
		return Black, nil
	default:
		return NoColor, fmt.Errorf("unknown color %q", s)
	}
}

func (p Phase) String() string {
	switch p {
	case PhasePlay:
		return "play"
	case PhaseEndgame:
		return "endgame"
	case PhaseComplete:
		return "complete"
	case PhaseResigned:
		return "resigned"
	default:
		panic(fmt.Sprintf("Illegal phase: %d", uint8(p)))
	}
}

func (k ActionKind) String() string {
	switch k {
	case ActionPlay:
		return "play"
	case ActionPass:
		return "pass"
	case ActionResign:
		return "resign"
	case ActionMarkDead:
		return "mark_dead"
	case ActionRequestUndo:
		return "request_undo"
	case ActionAcceptUndo:
		return "accept_undo"
	case ActionRequestTally:
		return "request_tally"
	case ActionAcceptTally:
		return "accept_tally"
	case ActionRequestDraw:
		return "request_draw"
	case ActionAcceptDraw:
		return "accept_draw"
	default:
		panic(fmt.Sprintf("Illegal action kind: %d", uint8(k)))
	}
}

// ParseActionKind is the inverse of ActionKind.String
func ParseActionKind(s string) (ActionKind, error) {
	for _, k := range []ActionKind{
		ActionPlay, ActionPass, ActionResign, ActionMarkDead,
		ActionRequestUndo, ActionAcceptUndo,
		ActionRequestTally, ActionAcceptTally,
		ActionRequestDraw, ActionAcceptDraw,
	} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown action kind %q", s)
}

func (k RequestKind) String() string {
	switch k {
	case RequestUndo:
		return "undo"
	case RequestTally:
		return "tally"
	case RequestDraw:
		return "draw"
	default:
		panic(fmt.Sprintf("Illegal request kind: %d", uint8(k)))
	}
}

func (r JoinResult) String() string {
	switch r {
	case JoinDNE:
		return "dne"
	case JoinInUse:
		return "in_use"
	case JoinAIOnly:
		return "ai_only"
	case JoinSuccess:
		return "success"
	default:
		panic(fmt.Sprintf("Illegal join result: %d", uint8(r)))
	}
}

// Action is a single entry on a game's action stack.  Row and Col are
// only meaningful for ActionPlay and ActionMarkDead, Flag only for
// ActionMarkDead.
type Action struct {
	Kind ActionKind `json:"kind"`
	By   Color      `json:"by"`
	Row  int        `json:"row"`
	Col  int        `json:"col"`
	Flag bool       `json:"flag,omitempty"`
}

// Request is a pending request awaiting the opponent's response
type Request struct {
	Kind RequestKind
	By   Color
}

// Result is the final result of a game.  The score fields are zero
// when the game ended by resignation or an agreed draw; a draw has
// no winner.
type Result struct {
	Winner     Color
	WhiteScore float64
	BlackScore float64
}

// KeyPair is one side's player key together with the AI secret, if
// the side is designated as a computer player
type KeyPair struct {
	PlayerKey string
	AISecret  string
}

// Keys holds the key pairs for both sides of one game
type Keys struct {
	White KeyPair
	Black KeyPair
}

func (k *Keys) Get(c Color) KeyPair {
	if c == White {
		return k.White
	}
	return k.Black
}
