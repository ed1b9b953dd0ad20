// Client sessions
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
	"context"
	"errors"
	"log"
	"sync"
	"time"

	igo "igo-server"
	"igo-server/conf"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	maxMessageSize = 1 << 16
	storeTimeout   = 10 * time.Second

	// Attempts at winning an optimistic write before giving up
	writeAttempts = 8

	// Transient store failures are retried with doubling backoff
	storeAttempts = 4
	storeBackoff  = 250 * time.Millisecond
)

type dirty uint8

const (
	dirtyStatus dirty = 1 << iota
	dirtyChat
	dirtyOpponent
)

// A seat is one player key held by this session.  A session usually
// holds one, but a client may hold both sides of a game, or sides of
// several games.
type seat struct {
	key     string
	color   igo.Color
	version int   // Last game version pushed to the client
	chatID  int64 // Last chat message id pushed to the client
	dirty   dirty // Pending notifications, guarded by session.mu
}

// A session serves one WebSocket connection.  The read loop runs on
// the handler goroutine; a writer goroutine owns the connection for
// writing, and a worker goroutine turns notifications into pushed
// updates.  Store notifications only ever mark a seat dirty, so they
// never block the listener.
type session struct {
	id   uuid.UUID
	conf *conf.Conf
	conn *websocket.Conn

	out  chan interface{}
	poke chan struct{}
	ctx  context.Context
	kill context.CancelFunc

	mu    sync.Mutex
	seats map[string]*seat
}

func newSession(config *conf.Conf, conn *websocket.Conn) *session {
	ctx, kill := context.WithCancel(config.Ctx)
	return &session{
		id:    uuid.New(),
		conf:  config,
		conn:  conn,
		out:   make(chan interface{}, 64),
		poke:  make(chan struct{}, 1),
		ctx:   ctx,
		kill:  kill,
		seats: make(map[string]*seat),
	}
}

func (s *session) send(msg interface{}) {
	select {
	case s.out <- msg:
	case <-s.ctx.Done():
	}
}

func (s *session) markDirty(st *seat, bit dirty) {
	s.mu.Lock()
	st.dirty |= bit
	s.mu.Unlock()
	select {
	case s.poke <- struct{}{}:
	default:
	}
}

// The subscription just records what changed; the worker re-reads
// authoritative state, which also absorbs duplicated or reordered
// notifications
func (s *session) subscription(st *seat) *conf.Subscription {
	return &conf.Subscription{
		GameStatus:        func(string) { s.markDirty(st, dirtyStatus) },
		Chat:              func(string) { s.markDirty(st, dirtyChat) },
		OpponentConnected: func(string) { s.markDirty(st, dirtyOpponent) },
	}
}

func (s *session) run() {
	igo.Debug.Printf("Session %s from %s", s.id, s.conn.RemoteAddr())
	go s.writer()
	go s.worker()
	s.reader()

	s.kill()
	s.close()
	igo.Debug.Printf("Session %s ended", s.id)
}

// Release every held key.  The session context is already cancelled
// at this point, so the store calls get their own.
func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	s.mu.Lock()
	seats := make([]*seat, 0, len(s.seats))
	for _, st := range s.seats {
		seats = append(seats, st)
	}
	s.seats = make(map[string]*seat)
	s.mu.Unlock()

	for _, st := range seats {
		if _, err := s.conf.DB.Unsubscribe(ctx, st.key); err != nil {
			log.Printf("Session %s: releasing %s: %s", s.id, st.key, err)
		}
	}
}

func (s *session) reader() {
	s.conn.SetReadLimit(maxMessageSize)
	if s.conf.PingInterval > 0 {
		wait := 3 * s.conf.PingInterval
		_ = s.conn.SetReadDeadline(time.Now().Add(wait))
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(wait))
		})
	}

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				igo.Debug.Printf("Session %s: %s", s.id, err)
			}
			return
		}

		msg, err := parseIncoming(data)
		if err != nil {
			s.send(newError("bad_request", "%s", err))
			continue
		}

		switch msg.Type {
		case "new_game":
			s.handleNewGame(msg)
		case "join_game":
			s.handleJoinGame(msg)
		case "game_action":
			s.handleGameAction(msg)
		case "chat":
			s.handleChat(msg)
		case "unsubscribe":
			s.handleUnsubscribe(msg)
		}
	}
}

func (s *session) writer() {
	var tick <-chan time.Time
	if s.conf.PingInterval > 0 {
		ticker := time.NewTicker(s.conf.PingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	defer s.conn.Close()
	for {
		select {
		case msg := <-s.out:
			if err := s.conn.WriteJSON(msg); err != nil {
				s.kill()
				return
			}
		case <-tick:
			err := s.conn.WriteControl(websocket.PingMessage, nil,
				time.Now().Add(storeTimeout))
			if err != nil {
				s.kill()
				return
			}
		case <-s.ctx.Done():
			// Flush whatever is already queued so a final error
			// still reaches the client ahead of the close frame
			for {
				select {
				case msg := <-s.out:
					if err := s.conn.WriteJSON(msg); err != nil {
						return
					}
				default:
					_ = s.conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
						time.Now().Add(time.Second))
					return
				}
			}
		}
	}
}

func (s *session) seat(key string) *seat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seats[key]
}

// store runs WHAT against the store, retrying transient failures with
// doubling backoff.  A store that stays down takes the session with
// it; there is nothing useful a session can do without one.
func (s *session) store(what string, f func(ctx context.Context) error) bool {
	delay := storeBackoff
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(s.ctx, storeTimeout)
		err := f(ctx)
		cancel()
		if err == nil {
			return true
		}
		if attempt >= storeAttempts || s.ctx.Err() != nil {
			s.fail(what, err)
			return false
		}
		igo.Debug.Printf("Session %s: %s: %s (attempt %d)", s.id, what, err, attempt)
		select {
		case <-time.After(delay):
		case <-s.ctx.Done():
			s.fail(what, err)
			return false
		}
		delay *= 2
	}
}

// fail reports an unrecoverable store failure and ends the session.
// The error message is queued before the context is cancelled, so the
// writer still flushes it ahead of the close frame.
func (s *session) fail(what string, err error) {
	log.Printf("Session %s: %s: %s", s.id, what, err)
	s.send(newError("server_error", "%s failed", what))
	s.kill()
}

func (s *session) handleNewGame(m *incoming) {
	// A key sent along with new_game asks for its release; only a
	// key this session actually holds qualifies
	if m.Key != "" && s.seat(m.Key) == nil {
		s.send(newError("bad_request", "not joined to %q", m.Key))
		return
	}

	size := m.Size
	if size == 0 {
		size = s.conf.DefaultSize
	}
	komi := s.conf.DefaultKomi
	if m.Handicap > 0 {
		komi = s.conf.HandicapKomi
	}
	if m.Komi != nil {
		komi = *m.Komi
	}

	var joining igo.Color
	if m.Color != "" {
		c, err := igo.ParseColor(m.Color)
		if err != nil {
			s.send(newError("bad_request", "%s", err))
			return
		}
		joining = c
	}

	g, err := igo.NewGame(size, komi, m.Handicap)
	if err != nil {
		s.send(&newGameResponse{Type: "new_game_response"})
		s.send(newError("bad_request", "%s", err))
		return
	}
	data, err := g.Encode()
	if err != nil {
		s.send(newError("internal", "%s", err))
		return
	}

	// The released key goes down in the same transaction, so a
	// rematch cannot leave the old seat bound
	st := &seat{color: joining}
	var sub *conf.Subscription
	if joining != igo.NoColor {
		sub = s.subscription(st)
	}
	var keys igo.Keys
	if !s.store("creating game", func(ctx context.Context) error {
		var err error
		keys, err = s.conf.DB.CreateGame(ctx, data, joining, m.VsAI, m.Key, sub)
		return err
	}) {
		return
	}

	resp := &newGameResponse{
		Type:    "new_game_response",
		Success: true,
		Keys:    makeKeysMsg(&keys),
	}
	s.mu.Lock()
	if m.Key != "" {
		delete(s.seats, m.Key)
	}
	if joining != igo.NoColor {
		st.key = keys.Get(joining).PlayerKey
		resp.Color = joining.String()
		s.seats[st.key] = st
	}
	s.mu.Unlock()
	s.send(resp)

	if st.key != "" {
		// Initial state arrives through the notification path, like
		// every later update
		s.store("syncing "+st.key, func(ctx context.Context) error {
			return s.conf.DB.TriggerUpdateAll(ctx, st.key)
		})
	}
}

func (s *session) handleJoinGame(m *incoming) {
	if s.seat(m.Key) != nil {
		s.send(newError("bad_request", "already joined %q", m.Key))
		return
	}

	st := &seat{key: m.Key}
	var (
		result igo.JoinResult
		keys   *igo.Keys
	)
	if !s.store("joining "+m.Key, func(ctx context.Context) error {
		var err error
		result, keys, err = s.conf.DB.JoinGame(ctx, m.Key, m.AISecret, s.subscription(st))
		return err
	}) {
		return
	}

	resp := &joinGameResponse{
		Type:   "join_game_response",
		Key:    m.Key,
		Status: result.String(),
	}
	if result == igo.JoinSuccess {
		st.color = igo.Black
		if keys.White.PlayerKey == m.Key {
			st.color = igo.White
		}
		resp.Color = st.color.String()
		resp.Keys = &keysMsg{
			White: keyPairMsg{PlayerKey: keys.White.PlayerKey},
			Black: keyPairMsg{PlayerKey: keys.Black.PlayerKey},
		}
		s.mu.Lock()
		s.seats[m.Key] = st
		s.mu.Unlock()
	}
	s.send(resp)

	if result == igo.JoinSuccess {
		s.store("syncing "+m.Key, func(ctx context.Context) error {
			return s.conf.DB.TriggerUpdateAll(ctx, m.Key)
		})
	}
}

// handleGameAction applies an action against the newest stored state
// and writes the successor back.  Losing the optimistic write means
// someone else moved first; the action is re-checked against their
// state rather than replayed blindly.
func (s *session) handleGameAction(m *incoming) {
	st := s.seat(m.Key)
	if st == nil {
		s.send(newError("bad_request", "not joined to %q", m.Key))
		return
	}
	kind, err := igo.ParseActionKind(m.Action)
	if err != nil {
		s.send(newError("bad_request", "%s", err))
		return
	}
	act := igo.Action{Kind: kind, By: st.color, Flag: m.Flag}
	switch kind {
	case igo.ActionPlay, igo.ActionMarkDead:
		if m.Row == nil || m.Col == nil {
			s.send(newError("bad_request", "%s requires row and col", kind))
			return
		}
		act.Row, act.Col = *m.Row, *m.Col
	}

	for attempt := 0; attempt < writeAttempts; attempt++ {
		var (
			data    []byte
			version int
		)
		if !s.store("reading "+m.Key, func(ctx context.Context) error {
			var err error
			data, _, version, err = s.conf.DB.GameStatus(ctx, m.Key)
			return err
		}) {
			return
		}
		g, err := igo.Decode(data)
		if err != nil {
			log.Printf("Session %s: corrupt game %s: %s", s.id, m.Key, err)
			s.send(newError("internal", "stored game is corrupt"))
			return
		}

		if err := g.Apply(act); err != nil {
			resp := &gameActionResponse{Type: "game_action_response", Key: m.Key}
			var move *igo.MoveError
			if errors.As(err, &move) {
				resp.Error = newError(move.Kind.String(), "%s", move.Reason)
			} else {
				resp.Error = newError("bad_request", "%s", err)
			}
			s.send(resp)
			return
		}

		enc, err := g.Encode()
		if err != nil {
			s.send(newError("internal", "%s", err))
			return
		}
		var (
			played float64
			ok     bool
		)
		if !s.store("writing "+m.Key, func(ctx context.Context) error {
			var err error
			played, ok, err = s.conf.DB.WriteGame(ctx, m.Key, enc, version+1)
			return err
		}) {
			return
		}
		if !ok {
			igo.Debug.Printf("Session %s: lost write race on %s", s.id, m.Key)
			continue
		}

		s.mu.Lock()
		if version+1 > st.version {
			st.version = version + 1
		}
		s.mu.Unlock()

		s.send(&gameActionResponse{
			Type: "game_action_response", Key: m.Key, Success: true,
		})
		// The store only notifies the opponent
		s.send(makeGameStatus(m.Key, g, version+1, played))
		return
	}
	s.send(newError("conflict", "game %q is too contended", m.Key))
}

func (s *session) handleChat(m *incoming) {
	st := s.seat(m.Key)
	if st == nil {
		s.send(newError("bad_request", "not joined to %q", m.Key))
		return
	}

	var ok bool
	if !s.store("chat on "+m.Key, func(ctx context.Context) error {
		var err error
		_, ok, err = s.conf.DB.WriteChat(ctx, m.Key, igo.ChatMessage{
			Color:   st.color,
			Message: m.Message,
		})
		return err
	}) {
		return
	}
	if !ok {
		s.send(newError("bad_request", "no such game %q", m.Key))
	}
	// Delivery, including the echo, rides on the chat notification
}

func (s *session) handleUnsubscribe(m *incoming) {
	st := s.seat(m.Key)
	if st == nil {
		s.send(newError("bad_request", "not joined to %q", m.Key))
		return
	}

	s.mu.Lock()
	delete(s.seats, m.Key)
	s.mu.Unlock()
	s.store("releasing "+m.Key, func(ctx context.Context) error {
		_, err := s.conf.DB.Unsubscribe(ctx, m.Key)
		return err
	})
}

// The worker drains dirty bits and pushes fresh state to the client
func (s *session) worker() {
	for {
		select {
		case <-s.poke:
			s.sync()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *session) sync() {
	type work struct {
		st   *seat
		bits dirty
	}

	s.mu.Lock()
	var todo []work
	for _, st := range s.seats {
		if st.dirty != 0 && st.key != "" {
			todo = append(todo, work{st, st.dirty})
			st.dirty = 0
		}
	}
	s.mu.Unlock()

	for _, w := range todo {
		if w.bits&dirtyStatus != 0 {
			s.pushStatus(w.st)
		}
		if w.bits&dirtyChat != 0 {
			s.pushChat(w.st)
		}
		if w.bits&dirtyOpponent != 0 {
			s.pushOpponent(w.st)
		}
	}
}

func (s *session) pushStatus(st *seat) {
	var (
		data    []byte
		played  float64
		version int
	)
	if !s.store("reading "+st.key, func(ctx context.Context) error {
		var err error
		data, played, version, err = s.conf.DB.GameStatus(ctx, st.key)
		return err
	}) {
		return
	}

	s.mu.Lock()
	stale := version <= st.version
	if !stale {
		st.version = version
	}
	s.mu.Unlock()
	if stale {
		return
	}

	g, err := igo.Decode(data)
	if err != nil {
		log.Printf("Session %s: corrupt game %s: %s", s.id, st.key, err)
		return
	}
	s.send(makeGameStatus(st.key, g, version, played))
}

func (s *session) pushChat(st *seat) {
	s.mu.Lock()
	since := st.chatID
	s.mu.Unlock()

	var thread igo.ChatThread
	if !s.store("chat on "+st.key, func(ctx context.Context) error {
		var err error
		thread, err = s.conf.DB.ChatUpdates(ctx, st.key, since)
		return err
	}) {
		return
	}
	if len(thread.Messages) == 0 && !thread.Complete {
		return
	}

	s.mu.Lock()
	if last := thread.Last(); last > st.chatID {
		st.chatID = last
	}
	s.mu.Unlock()
	s.send(makeChatMsg(st.key, thread))
}

func (s *session) pushOpponent(st *seat) {
	var connected bool
	if !s.store("opponent of "+st.key, func(ctx context.Context) error {
		var err error
		connected, err = s.conf.DB.OpponentConnected(ctx, st.key)
		return err
	}) {
		return
	}
	s.send(&opponentConnectedMsg{
		Type:      "opponent_connected",
		Key:       st.key,
		Connected: connected,
	})
}
