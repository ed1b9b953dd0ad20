// Go board implementation
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
	"strings"
)

type MoveErrorKind uint8

const (
	MoveOffBoard MoveErrorKind = iota
	MoveOccupied
	MoveSuicide
	MoveKo
	MoveNotYourTurn
	MoveWrongPhase
	MoveBadRequest
)

func (k MoveErrorKind) String() string {
	switch k {
	case MoveOffBoard:
		return "off_board"
	case MoveOccupied:
		return "occupied"
	case MoveSuicide:
		return "suicide"
	case MoveKo:
		return "ko"
	case MoveNotYourTurn:
		return "not_your_turn"
	case MoveWrongPhase:
		return "wrong_phase"
	case MoveBadRequest:
		return "bad_request"
	default:
		panic(fmt.Sprintf("Illegal move error kind: %d", uint8(k)))
	}
}

// MoveError is the typed failure returned for illegal game actions.
// It is never written to the store.
type MoveError struct {
	Kind   MoveErrorKind
	Reason string
}

func (e *MoveError) Error() string { return e.Reason }

func illegal(kind MoveErrorKind, format string, args ...interface{}) error {
	return &MoveError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Hash is a 128-bit positional hash, stable across processes
type Hash [2]uint64

func (h Hash) String() string {
	return fmt.Sprintf("%016x%016x", h[0], h[1])
}

// The Zobrist table is never materialised.  Each key is derived on
// demand from (size, color, row, col) with splitmix64 under fixed
// seeds, so every process computes identical hashes for identical
// positions.  The seeds are the fractional bits of sqrt(2) and
// sqrt(3).
const (
	zobristSeedLo = 0x6a09e667f3bcc908
	zobristSeedHi = 0xbb67ae8584caa73b
)

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

func zobristKey(size int, c Color, row, col int) Hash {
	x := uint64(size)<<40 | uint64(c)<<32 | uint64(row)<<16 | uint64(col)
	return Hash{
		splitmix64(zobristSeedLo ^ x),
		splitmix64(zobristSeedHi ^ x),
	}
}

// Board is a square grid of points.  The zero point is the upper left
// corner; rows grow downwards.  Boards are value-like: Place returns
// a new board and leaves the receiver untouched.
type Board struct {
	size   int
	points []Color
}

func MakeBoard(size int) *Board {
	return &Board{
		size:   size,
		points: make([]Color, size*size),
	}
}

func (b *Board) Size() int { return b.size }

func (b *Board) inBounds(row, col int) bool {
	return row >= 0 && row < b.size && col >= 0 && col < b.size
}

func (b *Board) At(row, col int) Color {
	if !b.inBounds(row, col) {
		panic("Illegal access")
	}
	return b.points[row*b.size+col]
}

func (b *Board) set(row, col int, c Color) {
	b.points[row*b.size+col] = c
}

func (b *Board) Copy() *Board {
	points := make([]Color, len(b.points))
	copy(points, b.points)
	return &Board{size: b.size, points: points}
}

// Equal compares point grids
func (b *Board) Equal(o *Board) bool {
	if b == nil || o == nil || b.size != o.size {
		return false
	}
	for i := range b.points {
		if b.points[i] != o.points[i] {
			return false
		}
	}
	return true
}

// Hash folds the Zobrist key of every stone into a size-dependent
// base value
func (b *Board) Hash() Hash {
	h := Hash{
		splitmix64(zobristSeedLo ^ uint64(b.size)),
		splitmix64(zobristSeedHi ^ uint64(b.size)),
	}
	for i, c := range b.points {
		if c == NoColor {
			continue
		}
		k := zobristKey(b.size, c, i/b.size, i%b.size)
		h[0] ^= k[0]
		h[1] ^= k[1]
	}
	return h
}

// Neighbors returns the in-bounds 4-neighbours of (row, col)
func (b *Board) Neighbors(row, col int) [][2]int {
	out := make([][2]int, 0, 4)
	for _, p := range [4][2]int{
		{row - 1, col}, {row + 1, col}, {row, col - 1}, {row, col + 1},
	} {
		if b.inBounds(p[0], p[1]) {
			out = append(out, p)
		}
	}
	return out
}

// Group flood-fills the maximal same-colour group containing
// (row, col) and counts its liberties.  The point must hold a stone.
func (b *Board) Group(row, col int) (points [][2]int, liberties int) {
	color := b.At(row, col)
	if color == NoColor {
		panic("No group at an empty point")
	}

	seen := make(map[[2]int]bool)
	libs := make(map[[2]int]bool)
	stack := [][2]int{{row, col}}
	seen[[2]int{row, col}] = true

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		points = append(points, p)

		for _, n := range b.Neighbors(p[0], p[1]) {
			switch b.At(n[0], n[1]) {
			case NoColor:
				libs[n] = true
			case color:
				if !seen[n] {
					seen[n] = true
					stack = append(stack, n)
				}
			}
		}
	}
	return points, len(libs)
}

// Place attempts to put a stone of COLOR on (row, col).  On success
// it returns the resulting board along with the number of captured
// enemy stones.  Captures are resolved before the suicide check, so
// a move that would be suicide in isolation is legal when it kills.
// Ko is the game's concern, not the board's: the caller checks the
// returned board's hash against its position history.
func (b *Board) Place(color Color, row, col int) (*Board, int, error) {
	if !b.inBounds(row, col) {
		return nil, 0, illegal(MoveOffBoard,
			"point (%d, %d) is outside the %dx%d board", row, col, b.size, b.size)
	}
	if b.At(row, col) != NoColor {
		return nil, 0, illegal(MoveOccupied, "point (%d, %d) is occupied", row, col)
	}

	next := b.Copy()
	next.set(row, col, color)

	captured := 0
	enemy := color.Other()
	for _, n := range b.Neighbors(row, col) {
		if next.At(n[0], n[1]) != enemy {
			continue
		}
		group, libs := next.Group(n[0], n[1])
		if libs > 0 {
			continue
		}
		for _, p := range group {
			next.set(p[0], p[1], NoColor)
		}
		captured += len(group)
	}

	if captured == 0 {
		if _, libs := next.Group(row, col); libs == 0 {
			return nil, 0, illegal(MoveSuicide,
				"playing at (%d, %d) is suicide", row, col)
		}
	}
	return next, captured, nil
}

// Territory counts the empty points surrounded exclusively by each
// colour.  Regions bordered by both colours, or touching no stone at
// all, count for no one.  Dead stones must already have been removed
// from the receiver.
func (b *Board) Territory() (white, black int) {
	seen := make([]bool, len(b.points))
	for i, c := range b.points {
		if c != NoColor || seen[i] {
			continue
		}

		var region int
		var sawWhite, sawBlack bool
		stack := []int{i}
		seen[i] = true
		for len(stack) > 0 {
			j := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			region++
			for _, n := range b.Neighbors(j/b.size, j%b.size) {
				k := n[0]*b.size + n[1]
				switch b.points[k] {
				case NoColor:
					if !seen[k] {
						seen[k] = true
						stack = append(stack, k)
					}
				case White:
					sawWhite = true
				case Black:
					sawBlack = true
				}
			}
		}

		switch {
		case sawWhite && !sawBlack:
			white += region
		case sawBlack && !sawWhite:
			black += region
		}
	}
	return white, black
}

// Stones returns the number of stones of COLOR on the board
func (b *Board) Stones(color Color) (n int) {
	for _, c := range b.points {
		if c == color {
			n++
		}
	}
	return n
}

// String renders the board with one character per point, rows
// separated by newlines.  Used in logs and test failures.
func (b *Board) String() string {
	var buf strings.Builder
	for r := 0; r < b.size; r++ {
		if r > 0 {
			buf.WriteByte('\n')
		}
		for c := 0; c < b.size; c++ {
			switch b.At(r, c) {
			case NoColor:
				buf.WriteByte('.')
			case White:
				buf.WriteByte('w')
			case Black:
				buf.WriteByte('b')
			}
		}
	}
	return buf.String()
}
