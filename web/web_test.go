// Origin checking tests
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
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckOrigin(t *testing.T) {
	request := func(origin string) *http.Request {
		r, _ := http.NewRequest("GET", "/websocket", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	for _, test := range []struct {
		name   string
		suffix string
		origin string
		want   bool
	}{
		{"no restriction", "", "https://anything.example", true},
		{"no origin header", "example.com", "", true},
		{"exact domain", "example.com", "https://example.com", true},
		{"subdomain", "example.com", "https://play.example.com", true},
		{"other domain", "example.com", "https://evil.test", false},
		{"suffix without dot", "example.com", "https://evilexample.com", false},
		{"garbage origin", "example.com", "://", false},
	} {
		t.Run(test.name, func(t *testing.T) {
			got := checkOrigin(test.suffix, request(test.origin))
			assert.Equal(t, test.want, got)
		})
	}
}
