// Configuration Loading
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
	"io"
	"log"
	"os"
	"strconv"
	"time"

	igo "igo-server"

	"github.com/BurntSushi/toml"
)

// The on-disk form of the default configuration, used both to seed
// decoding (so absent keys keep their defaults) and to dump an
// annotated template.
func defaultData() conf {
	var d conf
	d.Web.Port = uint(defaultConfig.WebPort)
	d.Web.Ping = uint(defaultConfig.PingInterval / time.Second)
	d.Database.Setup = defaultConfig.Setup
	d.Game.Size = uint(defaultConfig.DefaultSize)
	d.Game.Komi = defaultConfig.DefaultKomi
	d.Game.HandicapKomi = defaultConfig.HandicapKomi
	return d
}

// Load a configuration from R
func load(r io.Reader) (*Conf, error) {
	data := defaultData()
	if _, err := toml.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	c := defaultConfig
	if data.Debug {
		igo.Debug.SetOutput(os.Stderr)
	}
	c.DatabaseURL = data.Database.URL
	c.Setup = data.Database.Setup
	c.WebPort = uint16(data.Web.Port)
	c.OriginSuffix = data.Web.OriginSuffix
	c.PingInterval = time.Duration(data.Web.Ping) * time.Second
	c.DefaultSize = int(data.Game.Size)
	c.DefaultKomi = data.Game.Komi
	c.HandicapKomi = data.Game.HandicapKomi
	return &c, nil
}

// The environment overrides the configuration file, so that a
// deployment can inject credentials without touching the file system
func fromEnv(c *Conf) error {
	if url, ok := os.LookupEnv("DATABASE_URL"); ok {
		c.DatabaseURL = url
	}
	if port, ok := os.LookupEnv("PORT"); ok {
		n, err := strconv.ParseUint(port, 10, 16)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		c.WebPort = uint16(n)
	}
	if os.Getenv("DEBUG") != "" {
		igo.Debug.SetOutput(os.Stderr)
	}
	return nil
}

func prepare(c *Conf) *Conf {
	c.Ctx, c.Kill = context.WithCancel(context.Background())
	if c.Log == nil {
		c.Log = log.Default()
	}
	return c
}

// Open loads a configuration from the file NAME, or the defaults if
// the file does not exist
func Open(name string) (*Conf, error) {
	file, err := os.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return Default()
		}
		return nil, err
	}
	defer file.Close()

	c, err := load(file)
	if err != nil {
		return nil, err
	}
	if err := fromEnv(c); err != nil {
		return nil, err
	}
	return prepare(c), nil
}

// Default returns the default configuration with environment
// overrides applied
func Default() (*Conf, error) {
	c := defaultConfig
	if err := fromEnv(&c); err != nil {
		return nil, err
	}
	return prepare(&c), nil
}

// Dump writes the configuration to W in its on-disk form
func (c *Conf) Dump(w io.Writer) error {
	var d conf
	d.Database.URL = c.DatabaseURL
	d.Database.Setup = c.Setup
	d.Web.Port = uint(c.WebPort)
	d.Web.OriginSuffix = c.OriginSuffix
	d.Web.Ping = uint(c.PingInterval / time.Second)
	d.Game.Size = uint(c.DefaultSize)
	d.Game.Komi = c.DefaultKomi
	d.Game.HandicapKomi = c.HandicapKomi
	return toml.NewEncoder(w).Encode(d)
}
