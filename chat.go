// Chat containers
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

import "sort"

// ChatMessage is one chat line.  The id is assigned by the database
// and gives the total order of messages within a game.
type ChatMessage struct {
	ID        int64
	Timestamp float64
	Color     Color
	Message   string
}

// ChatThread is an ordered run of chat messages.  Complete indicates
// that the thread contains every message from the first onward, as
// opposed to an incremental update.
type ChatThread struct {
	Messages []ChatMessage
	Complete bool
}

// After returns the sub-thread of messages with an id strictly
// greater than ID.  Ids begin at 1, so After(0) is the whole thread.
func (t *ChatThread) After(id int64) ChatThread {
	i := sort.Search(len(t.Messages), func(i int) bool {
		return t.Messages[i].ID > id
	})
	after := t.Messages[i:]
	return ChatThread{
		Messages: after,
		Complete: t.Complete && len(after) == len(t.Messages),
	}
}

// Append extends the thread.  Messages are assumed to be sorted by id
// and newer than anything already present.
func (t *ChatThread) Append(messages ...ChatMessage) {
	t.Messages = append(t.Messages, messages...)
}

// Last returns the highest message id in the thread, or zero
func (t *ChatThread) Last() int64 {
	if len(t.Messages) == 0 {
		return 0
	}
	return t.Messages[len(t.Messages)-1].ID
}
