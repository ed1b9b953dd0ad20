// Configuration tests
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
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	c, err := load(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if c.WebPort != defaultConfig.WebPort {
		t.Fatalf("Expected default port %d, got %d",
			defaultConfig.WebPort, c.WebPort)
	}
	if c.DefaultSize != defaultConfig.DefaultSize {
		t.Fatalf("Expected default size %d, got %d",
			defaultConfig.DefaultSize, c.DefaultSize)
	}
	if c.DefaultKomi != defaultConfig.DefaultKomi {
		t.Fatalf("Expected default komi %v, got %v",
			defaultConfig.DefaultKomi, c.DefaultKomi)
	}
}

func TestLoadOverrides(t *testing.T) {
	c, err := load(strings.NewReader(`
[database]
url = "postgres://localhost/igo"
setup = true

[web]
port = 9999
origin-suffix = "example.com"
ping = 30

[game]
size = 13
`))
	if err != nil {
		t.Fatal(err)
	}
	if c.DatabaseURL != "postgres://localhost/igo" {
		t.Fatalf("Unexpected database URL %q", c.DatabaseURL)
	}
	if !c.Setup {
		t.Fatal("Setup flag was dropped")
	}
	if c.WebPort != 9999 {
		t.Fatalf("Expected port 9999, got %d", c.WebPort)
	}
	if c.OriginSuffix != "example.com" {
		t.Fatalf("Unexpected origin suffix %q", c.OriginSuffix)
	}
	if c.PingInterval != 30*time.Second {
		t.Fatalf("Unexpected ping interval %s", c.PingInterval)
	}
	if c.DefaultSize != 13 {
		t.Fatalf("Expected size 13, got %d", c.DefaultSize)
	}
	if c.DefaultKomi != defaultConfig.DefaultKomi {
		t.Fatal("Untouched fields lost their defaults")
	}
}

func TestDumpRoundTrip(t *testing.T) {
	orig := defaultConfig
	orig.DatabaseURL = "postgres://host/db"
	orig.WebPort = 1234
	orig.OriginSuffix = "igo.example"
	orig.DefaultSize = 13

	var buf bytes.Buffer
	if err := orig.Dump(&buf); err != nil {
		t.Fatal(err)
	}
	c, err := load(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if c.DatabaseURL != orig.DatabaseURL || c.WebPort != orig.WebPort ||
		c.OriginSuffix != orig.OriginSuffix || c.DefaultSize != orig.DefaultSize {
		t.Fatalf("Round trip lost fields: %+v", c)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("PORT", "4242")

	c := defaultConfig
	if err := fromEnv(&c); err != nil {
		t.Fatal(err)
	}
	if c.DatabaseURL != "postgres://env/db" {
		t.Fatalf("DATABASE_URL ignored: %q", c.DatabaseURL)
	}
	if c.WebPort != 4242 {
		t.Fatalf("PORT ignored: %d", c.WebPort)
	}

	t.Setenv("PORT", "x")
	if err := fromEnv(&c); err == nil {
		t.Fatal("Invalid PORT was accepted")
	}
}
