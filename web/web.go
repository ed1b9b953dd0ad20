// WebSocket interface
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
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	igo "igo-server"
	"igo-server/conf"

	"github.com/gorilla/websocket"
)

type web struct {
	conf   *conf.Conf
	server *http.Server
}

// Browsers enforce nothing about WebSocket origins, so the server
// checks.  Non-browser clients send no Origin header and pass.
func checkOrigin(suffix string, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || suffix == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == suffix || strings.HasSuffix(host, "."+suffix)
}

// Upgrade a HTTP connection to a WebSocket and serve it
func (s *web) upgrader() http.HandlerFunc {
	up := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return checkOrigin(s.conf.OriginSuffix, r)
		},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			igo.Debug.Printf("Unable to upgrade connection: %s", err)
			return
		}
		log.Printf("New connection from %s", conn.RemoteAddr())
		newSession(s.conf, conn).run()
	}
}

func (s *web) Start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/websocket", s.upgrader())
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /")
	})

	addr := fmt.Sprintf(":%d", s.conf.WebPort)
	log.Printf("Listening via HTTP on %s", addr)

	s.server = &http.Server{Addr: addr, Handler: mux}
	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Print(err)
	}
}

func (s *web) Shutdown() {
	if s.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		log.Print(err)
	}
}

func (*web) String() string { return "Web Server" }

func Prepare(config *conf.Conf) {
	config.Register(&web{conf: config})
}
