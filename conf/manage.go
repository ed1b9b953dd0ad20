// Component Management
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

package conf

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	igo "igo-server"
)

type Manager interface {
	fmt.Stringer
	Start()
	Shutdown()
}

// Subscription carries the callbacks a session registers for the
// three notification channels of its player key.  The payload is the
// raw NOTIFY payload, possibly empty; delivery is at-least-once, so
// receivers re-read authoritative state rather than trusting it.
type Subscription struct {
	GameStatus        func(payload string)
	Chat              func(payload string)
	OpponentConnected func(payload string)
}

// Store is the gateway to the shared relational store.  All writes go
// through stored procedures; the version counter on the game row
// provides optimistic concurrency across server processes.
type Store interface {
	Manager

	// CreateGame persists a fresh game blob together with two
	// mutually-referencing player keys, minted here.  JOINING, when
	// not NoColor, immediately binds that side to this process and
	// registers SUB on its channels.  UNSUBSCRIBE, when non-empty,
	// releases a previously held key in the same transaction.  With
	// vsAI an AI secret is minted for the non-joining side.
	CreateGame(ctx context.Context, data []byte, joining igo.Color,
		vsAI bool, unsubscribe string, sub *Subscription) (igo.Keys, error)

	// JoinGame claims KEY for this process and subscribes SUB on
	// success.  The returned keys identify both sides of the game.
	JoinGame(ctx context.Context, key, aiSecret string,
		sub *Subscription) (igo.JoinResult, *igo.Keys, error)

	// TriggerUpdateAll fires all three channels of KEY so the
	// subscriber self-synchronises through its notification path
	TriggerUpdateAll(ctx context.Context, key string) error

	// WriteGame stores DATA as VERSION, which must be exactly one
	// past the stored version; ok reports whether the write won.
	// On success the accumulated play time is returned.
	WriteGame(ctx context.Context, key string, data []byte,
		version int) (timePlayed float64, ok bool, err error)

	// WriteChat appends a chat message, returning its assigned id;
	// ok is false when KEY references no game
	WriteChat(ctx context.Context, key string, msg igo.ChatMessage) (int64, bool, error)

	// Unsubscribe releases KEY if this process holds it
	Unsubscribe(ctx context.Context, key string) (bool, error)

	GameStatus(ctx context.Context, key string) (data []byte,
		timePlayed float64, version int, err error)
	ChatUpdates(ctx context.Context, key string, since int64) (igo.ChatThread, error)
	OpponentConnected(ctx context.Context, key string) (bool, error)
}

func (c *Conf) Register(m Manager) {
	if c.run {
		panic(fmt.Sprintf("Late register: %#v", m))
	}

	if s, ok := m.(Store); ok {
		c.DB = s
	}
	c.man = append(c.man, m)
}

func (c *Conf) Start() {
	// Start the service
	for _, m := range c.man {
		igo.Debug.Printf("Starting %s", m)
		go m.Start()
	}
	c.run = true

	// Catch an interrupt request...
	intr := make(chan os.Signal, 1)
	signal.Notify(intr, os.Interrupt)
	select {
	case <-intr:
		c.Log.Println("Caught interrupt")
	case <-c.Ctx.Done():
		c.Log.Println("Requested shutdown")
	}

	// ...and request all managers to shut down.
	igo.Debug.Println("Waiting for managers to shutdown...")
	for i := len(c.man) - 1; i >= 0; i-- {
		m := c.man[i]
		igo.Debug.Printf("Shutting %s down", m)
		m.Shutdown()
	}
	c.Log.Println("Shutting down")
}
