// Configuration Specification
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
	"log"
	"time"
)

// On-disk representation
type conf struct {
	Debug    bool `toml:"debug"`
	Database struct {
		URL   string `toml:"url"`
		Setup bool   `toml:"setup"`
	} `toml:"database"`
	Web struct {
		Port         uint   `toml:"port"`
		OriginSuffix string `toml:"origin-suffix"`
		Ping         uint   `toml:"ping"`
	} `toml:"web"`
	Game struct {
		Size         uint    `toml:"size"`
		Komi         float64 `toml:"komi"`
		HandicapKomi float64 `toml:"handicap-komi"`
	} `toml:"game"`
}

// Public configuration
type Conf struct {
	Ctx  context.Context
	Kill context.CancelFunc
	Log  *log.Logger

	// Database configuration
	DatabaseURL string // libpq connection URI
	Setup       bool   // Run schema/procedure scripts at startup
	DB          Store

	// Web configuration
	WebPort      uint16        // Port the WebSocket server listens on
	OriginSuffix string        // Restrict allowed origins to this domain suffix
	PingInterval time.Duration // WebSocket keep-alive interval

	// Game defaults, used when a client omits the fields
	DefaultSize  int
	DefaultKomi  float64
	HandicapKomi float64

	// Identifier claimed by this process when managing player keys.
	// Minted at startup when left empty.
	ManagerID string

	// Internal state
	man []Manager // List of system managers
	run bool      // Running flag
}

// Configuration object used by default
var defaultConfig = Conf{
	Log: log.Default(),

	Setup: false,

	WebPort:      8888,
	PingInterval: 10 * time.Second,

	DefaultSize:  19,
	DefaultKomi:  6.5,
	HandicapKomi: 0.5,
}
