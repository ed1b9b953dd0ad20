// Wire protocol
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

package web

import (
	"encoding/json"
	"fmt"
	"sort"

	igo "igo-server"
)

// Every client message is a JSON object with a "type" tag.  Fields
// beyond those of the named type are ignored.
type incoming struct {
	Type string `json:"type"`

	// new_game
	Size     int      `json:"size"`
	Komi     *float64 `json:"komi"`
	Handicap int      `json:"handicap"`
	Color    string   `json:"color"`
	VsAI     bool     `json:"vsAi"`

	// join_game, game_action, chat, unsubscribe
	Key      string `json:"key"`
	AISecret string `json:"aiSecret"`

	// game_action.  The coordinates are pointers so an absent field
	// can be told apart from an explicit zero.
	Action string `json:"action"`
	Row    *int   `json:"row"`
	Col    *int   `json:"col"`
	Flag   bool   `json:"flag"`

	// chat
	Message string `json:"message"`
}

// Fields that must be present per message type.  A missing string
// field and an empty one are treated alike, as the client has no
// reason to send either.
var required = map[string][]string{
	"new_game":    {},
	"join_game":   {"key"},
	"game_action": {"key", "action"},
	"chat":        {"key", "message"},
	"unsubscribe": {"key"},
}

func parseIncoming(data []byte) (*incoming, error) {
	var m incoming
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("malformed message: %w", err)
	}
	req, ok := required[m.Type]
	if !ok {
		return nil, fmt.Errorf("unknown message type %q", m.Type)
	}
	for _, field := range req {
		var have string
		switch field {
		case "key":
			have = m.Key
		case "action":
			have = m.Action
		case "message":
			have = m.Message
		}
		if have == "" {
			return nil, fmt.Errorf("%s: missing field %q", m.Type, field)
		}
	}
	return &m, nil
}

// Server messages, also tagged by "type"

type errorMsg struct {
	Type    string `json:"type"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func newError(kind, format string, args ...interface{}) *errorMsg {
	return &errorMsg{
		Type:    "error",
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

type keyPairMsg struct {
	PlayerKey string `json:"playerKey"`
	AISecret  string `json:"aiSecret,omitempty"`
}

type keysMsg struct {
	White keyPairMsg `json:"white"`
	Black keyPairMsg `json:"black"`
}

type newGameResponse struct {
	Type    string   `json:"type"`
	Success bool     `json:"success"`
	Keys    *keysMsg `json:"keys,omitempty"`
	Color   string   `json:"color,omitempty"`
}

type joinGameResponse struct {
	Type   string   `json:"type"`
	Key    string   `json:"key"`
	Status string   `json:"status"`
	Keys   *keysMsg `json:"keys,omitempty"`
	Color  string   `json:"color,omitempty"`
}

type gameActionResponse struct {
	Type    string    `json:"type"`
	Key     string    `json:"key"`
	Success bool      `json:"success"`
	Error   *errorMsg `json:"error,omitempty"`
}

type prisonersMsg struct {
	White int `json:"white"`
	Black int `json:"black"`
}

type requestMsg struct {
	Kind string `json:"kind"`
	By   string `json:"by"`
}

type resultMsg struct {
	Winner     string  `json:"winner"`
	WhiteScore float64 `json:"whiteScore"`
	BlackScore float64 `json:"blackScore"`
}

type gameStatusMsg struct {
	Type       string       `json:"type"`
	Key        string       `json:"key"`
	Version    int          `json:"version"`
	TimePlayed float64      `json:"timePlayed"`
	Size       int          `json:"size"`
	Komi       float64      `json:"komi"`
	Handicap   int          `json:"handicap"`
	Board      []string     `json:"board"`
	Phase      string       `json:"phase"`
	Turn       string       `json:"turn"`
	Prisoners  prisonersMsg `json:"prisoners"`
	DeadStones [][2]int     `json:"deadStones"`
	Pending    *requestMsg  `json:"pendingRequest,omitempty"`
	Result     *resultMsg   `json:"result,omitempty"`
	LastMove   *[2]int      `json:"lastMove,omitempty"`
}

type chatLineMsg struct {
	ID        int64   `json:"id"`
	Timestamp float64 `json:"timestamp"`
	Color     string  `json:"color"`
	Message   string  `json:"message"`
}

type chatMsg struct {
	Type     string        `json:"type"`
	Key      string        `json:"key"`
	Complete bool          `json:"complete"`
	Messages []chatLineMsg `json:"messages"`
}

type opponentConnectedMsg struct {
	Type      string `json:"type"`
	Key       string `json:"key"`
	Connected bool   `json:"connected"`
}

func makeKeysMsg(keys *igo.Keys) *keysMsg {
	return &keysMsg{
		White: keyPairMsg{keys.White.PlayerKey, keys.White.AISecret},
		Black: keyPairMsg{keys.Black.PlayerKey, keys.Black.AISecret},
	}
}

// makeGameStatus renders the full authoritative state of a game, the
// only form game updates take on the wire
func makeGameStatus(key string, g *igo.Game, version int, played float64) *gameStatusMsg {
	size := g.Board.Size()
	board := make([]string, size)
	for row := 0; row < size; row++ {
		line := make([]byte, size)
		for col := 0; col < size; col++ {
			switch g.Board.At(row, col) {
			case igo.White:
				line[col] = 'w'
			case igo.Black:
				line[col] = 'b'
			default:
				line[col] = '.'
			}
		}
		board[row] = string(line)
	}

	msg := &gameStatusMsg{
		Type:       "game_status",
		Key:        key,
		Version:    version,
		TimePlayed: played,
		Size:       size,
		Komi:       g.Komi,
		Handicap:   g.Handicap,
		Board:      board,
		Phase:      g.Phase.String(),
		Turn:       g.Turn.String(),
		Prisoners: prisonersMsg{
			White: g.Prisoners(igo.White),
			Black: g.Prisoners(igo.Black),
		},
		DeadStones: make([][2]int, 0, len(g.Dead)),
	}
	for p := range g.Dead {
		msg.DeadStones = append(msg.DeadStones, p)
	}
	sort.Slice(msg.DeadStones, func(i, j int) bool {
		a, b := msg.DeadStones[i], msg.DeadStones[j]
		return a[0] < b[0] || (a[0] == b[0] && a[1] < b[1])
	})
	if g.Pending != nil {
		msg.Pending = &requestMsg{
			Kind: g.Pending.Kind.String(),
			By:   g.Pending.By.String(),
		}
	}
	if g.Result != nil {
		msg.Result = &resultMsg{
			Winner:     g.Result.Winner.String(),
			WhiteScore: g.Result.WhiteScore,
			BlackScore: g.Result.BlackScore,
		}
	}
	if row, col, ok := g.LastMove(); ok {
		msg.LastMove = &[2]int{row, col}
	}
	return msg
}

func makeChatMsg(key string, thread igo.ChatThread) *chatMsg {
	msg := &chatMsg{
		Type:     "chat",
		Key:      key,
		Complete: thread.Complete,
		Messages: make([]chatLineMsg, 0, len(thread.Messages)),
	}
	for _, m := range thread.Messages {
		msg.Messages = append(msg.Messages, chatLineMsg{
			ID:        m.ID,
			Timestamp: m.Timestamp,
			Color:     m.Color.String(),
			Message:   m.Message,
		})
	}
	return msg
}
