// Notification dispatch
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

package db

import (
	"context"
	"log"
	"sync"
	"time"

	igo "igo-server"
	"igo-server/conf"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// A single connection carries all LISTEN subscriptions of this
// process.  WaitForNotification blocks the connection, so changes to
// the subscription set are applied by notifying a private wake
// channel through the pool, which unblocks the loop.
type listener struct {
	url  string
	pool *pgxpool.Pool
	wake string

	mu   sync.Mutex
	subs map[string]func(string) // channel name -> callback
}

func newListener(url string, pool *pgxpool.Pool) (*listener, error) {
	wake, err := mintSecret()
	if err != nil {
		return nil, err
	}
	return &listener{
		url:  url,
		pool: pool,
		wake: "listener_wake_" + wake,
		subs: make(map[string]func(string)),
	}, nil
}

// Channel names derived from a player key
func gameStatusChannel(key string) string        { return "game_status_" + key }
func chatChannel(key string) string              { return "chat_" + key }
func opponentConnectedChannel(key string) string { return "opponent_connected_" + key }

// Subscribe registers the callbacks of SUB under KEY's channels.
// Callbacks run on the listener goroutine and must not block.
func (l *listener) subscribe(ctx context.Context, key string, sub *conf.Subscription) error {
	l.mu.Lock()
	l.subs[gameStatusChannel(key)] = sub.GameStatus
	l.subs[chatChannel(key)] = sub.Chat
	l.subs[opponentConnectedChannel(key)] = sub.OpponentConnected
	l.mu.Unlock()
	return l.wakeup(ctx)
}

func (l *listener) unsubscribe(ctx context.Context, key string) error {
	l.mu.Lock()
	delete(l.subs, gameStatusChannel(key))
	delete(l.subs, chatChannel(key))
	delete(l.subs, opponentConnectedChannel(key))
	l.mu.Unlock()
	return l.wakeup(ctx)
}

func (l *listener) wakeup(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, `SELECT pg_notify($1, '')`, l.wake)
	return err
}

func (l *listener) dispatch(channel, payload string) {
	l.mu.Lock()
	cb := l.subs[channel]
	l.mu.Unlock()
	if cb == nil {
		// Unsubscribed concurrently, or a stray notification
		igo.Debug.Printf("Dropping notification on %s", channel)
		return
	}
	cb(payload)
}

// Bring the connection's LISTEN set in line with the subscription
// map.  ACTIVE tracks what the connection currently listens on.
func (l *listener) sync(ctx context.Context, conn *pgx.Conn, active map[string]bool) error {
	l.mu.Lock()
	want := make(map[string]bool, len(l.subs))
	for ch := range l.subs {
		want[ch] = true
	}
	l.mu.Unlock()

	for ch := range want {
		if !active[ch] {
			_, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{ch}.Sanitize())
			if err != nil {
				return err
			}
			active[ch] = true
		}
	}
	for ch := range active {
		if !want[ch] {
			_, err := conn.Exec(ctx, "UNLISTEN "+pgx.Identifier{ch}.Sanitize())
			if err != nil {
				return err
			}
			delete(active, ch)
		}
	}
	return nil
}

func (l *listener) serve(ctx context.Context, conn *pgx.Conn, reconnect bool) error {
	_, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.wake}.Sanitize())
	if err != nil {
		return err
	}
	active := make(map[string]bool)
	if err := l.sync(ctx, conn, active); err != nil {
		return err
	}

	if reconnect {
		// Notifications were lost while the connection was down, so
		// every subscriber re-reads its authoritative state
		for ch := range active {
			l.dispatch(ch, "")
		}
	}

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		if n.Channel == l.wake {
			if err := l.sync(ctx, conn, active); err != nil {
				return err
			}
			continue
		}
		igo.Debug.Printf("Notification on %s: %q", n.Channel, n.Payload)
		l.dispatch(n.Channel, n.Payload)
	}
}

// Run the notification loop until CTX is cancelled, reconnecting on
// failure
func (l *listener) run(ctx context.Context) {
	wait := time.Second
	for i := 0; ; i++ {
		conn, err := pgx.Connect(ctx, l.url)
		if err == nil {
			wait = time.Second
			err = l.serve(ctx, conn, i > 0)
			_ = conn.Close(context.Background())
		}
		if ctx.Err() != nil {
			return
		}
		log.Printf("Notification listener: %s", err)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
		if wait < 30*time.Second {
			wait *= 2
		}
	}
}
