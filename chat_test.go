// Chat tests
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

func TestChatThreadAfter(t *testing.T) {
	var thread ChatThread
	thread.Complete = true
	thread.Append(
		ChatMessage{ID: 1, Color: Black, Message: "hi"},
		ChatMessage{ID: 2, Color: White, Message: "hello"},
		ChatMessage{ID: 5, Color: Black, Message: "good game"},
	)

	if thread.Last() != 5 {
		t.Fatalf("Expected last id 5, got %d", thread.Last())
	}

	all := thread.After(0)
	if len(all.Messages) != 3 || !all.Complete {
		t.Fatalf("After(0) is not the whole thread: %+v", all)
	}

	tail := thread.After(2)
	if len(tail.Messages) != 1 || tail.Messages[0].ID != 5 {
		t.Fatalf("After(2) returned the wrong tail: %+v", tail)
	}
	if tail.Complete {
		t.Fatal("A partial tail claims to be complete")
	}

	none := thread.After(5)
	if len(none.Messages) != 0 {
		t.Fatalf("After(5) returned messages: %+v", none)
	}

	var empty ChatThread
	if empty.Last() != 0 {
		t.Fatal("An empty thread has a last id")
	}
}
