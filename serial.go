// Game blob codec
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
	"encoding/json"
	"fmt"
)

// The stored blob is self-describing JSON carrying a schema version
// and the inputs that fully determine a game: the initial parameters
// and the action stack.  Decoding replays the stack, so derived state
// (board, prisoners, position history) can never drift from it.
const blobVersion = 1

type blob struct {
	V        int      `json:"v"`
	Size     int      `json:"size"`
	Komi     float64  `json:"komi"`
	Handicap int      `json:"handicap"`
	Actions  []Action `json:"actions"`
}

// Encode serialises the game for the store
func (g *Game) Encode() ([]byte, error) {
	return json.Marshal(blob{
		V:        blobVersion,
		Size:     g.Size,
		Komi:     g.Komi,
		Handicap: g.Handicap,
		Actions:  g.Actions,
	})
}

// Decode reconstructs a game from a stored blob by replaying its
// action stack
func Decode(data []byte) (*Game, error) {
	var b blob
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decoding game blob: %w", err)
	}
	if b.V != blobVersion {
		return nil, fmt.Errorf("unsupported game blob version %d", b.V)
	}
	return Replay(b.Size, b.Komi, b.Handicap, b.Actions)
}
