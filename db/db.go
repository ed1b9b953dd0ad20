// Database management
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
	"embed"
	"errors"
	"log"
	"time"

	igo "igo-server"
	"igo-server/conf"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed *.sql
var sqlDir embed.FS

// Scripts run in order when database setup is requested
var setupScripts = []string{"create-tables.sql", "create-procedures.sql"}

const uniqueViolation = "23505"

type gateway struct {
	conf   *conf.Conf
	pool   *pgxpool.Pool
	listen *listener
	ctx    context.Context
	kill   context.CancelFunc
}

func (g *gateway) CreateGame(ctx context.Context, data []byte, joining igo.Color,
	vsAI bool, unsubscribe string, sub *conf.Subscription) (igo.Keys, error) {
	var keys igo.Keys

	// Key collisions are resolved by minting again.  More than a
	// couple of attempts means something other than bad luck.
	for attempt := 0; ; attempt++ {
		var err error
		if keys.White.PlayerKey, err = mintKey(); err != nil {
			return igo.Keys{}, err
		}
		if keys.Black.PlayerKey, err = mintKey(); err != nil {
			return igo.Keys{}, err
		}
		keys.White.AISecret, keys.Black.AISecret = "", ""
		if vsAI {
			secret, err := mintSecret()
			if err != nil {
				return igo.Keys{}, err
			}
			switch joining {
			case igo.White:
				keys.Black.AISecret = secret
			default:
				keys.White.AISecret = secret
			}
		}

		_, err = g.pool.Exec(ctx, `SELECT new_game($1, $2, $3, $4, $5, $6, $7, $8)`,
			keys.White.PlayerKey, keys.Black.PlayerKey, data,
			g.conf.ManagerID, int16(joining),
			keys.White.AISecret, keys.Black.AISecret, unsubscribe)
		if err == nil {
			break
		}
		var pgerr *pgconn.PgError
		if errors.As(err, &pgerr) && pgerr.Code == uniqueViolation && attempt < 3 {
			igo.Debug.Print("Key collision, minting again")
			continue
		}
		return igo.Keys{}, err
	}

	if unsubscribe != "" {
		// The store released the key above; the LISTEN set has to
		// follow or stale subscriptions pile up for the process
		// lifetime
		if err := g.listen.unsubscribe(ctx, unsubscribe); err != nil {
			log.Print(err)
		}
	}
	if joining != igo.NoColor && sub != nil {
		err := g.listen.subscribe(ctx, keys.Get(joining).PlayerKey, sub)
		if err != nil {
			return igo.Keys{}, err
		}
	}
	return keys, nil
}

func (g *gateway) JoinGame(ctx context.Context, key, aiSecret string,
	sub *conf.Subscription) (igo.JoinResult, *igo.Keys, error) {
	var (
		status       int16
		white, black string
	)
	err := g.pool.QueryRow(ctx, `SELECT status, white_key, black_key FROM join_game($1, $2, $3)`,
		key, g.conf.ManagerID, aiSecret).Scan(&status, &white, &black)
	if err != nil {
		return igo.JoinDNE, nil, err
	}
	result := igo.JoinResult(status)
	if result != igo.JoinSuccess {
		return result, nil, nil
	}
	if sub != nil {
		if err := g.listen.subscribe(ctx, key, sub); err != nil {
			return igo.JoinDNE, nil, err
		}
	}
	return result, &igo.Keys{
		White: igo.KeyPair{PlayerKey: white},
		Black: igo.KeyPair{PlayerKey: black},
	}, nil
}

func (g *gateway) TriggerUpdateAll(ctx context.Context, key string) error {
	_, err := g.pool.Exec(ctx, `SELECT trigger_update_all($1)`, key)
	return err
}

func (g *gateway) WriteGame(ctx context.Context, key string, data []byte,
	version int) (float64, bool, error) {
	var (
		ok     bool
		played float64
	)
	err := g.pool.QueryRow(ctx, `SELECT ok, time_played FROM write_game($1, $2, $3)`,
		key, data, version).Scan(&ok, &played)
	if err != nil {
		return 0, false, err
	}
	return played, ok, nil
}

func (g *gateway) WriteChat(ctx context.Context, key string, msg igo.ChatMessage) (int64, bool, error) {
	var (
		id int64
		ok bool
	)
	err := g.pool.QueryRow(ctx, `SELECT id, ok FROM write_chat($1, $2, $3)`,
		key, int16(msg.Color), msg.Message).Scan(&id, &ok)
	if err != nil {
		return 0, false, err
	}
	return id, ok, nil
}

func (g *gateway) Unsubscribe(ctx context.Context, key string) (bool, error) {
	if err := g.listen.unsubscribe(ctx, key); err != nil {
		log.Print(err)
	}
	var ok bool
	err := g.pool.QueryRow(ctx, `SELECT unsubscribe($1, $2)`,
		key, g.conf.ManagerID).Scan(&ok)
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (g *gateway) GameStatus(ctx context.Context, key string) ([]byte, float64, int, error) {
	var (
		data    []byte
		played  float64
		version int
	)
	err := g.pool.QueryRow(ctx, `
		SELECT g.data, g.time_played, g.version
		FROM game g JOIN player_key pk ON pk.game_id = g.id
		WHERE pk.key = $1`, key).Scan(&data, &played, &version)
	if err != nil {
		return nil, 0, 0, err
	}
	return data, played, version, nil
}

func (g *gateway) ChatUpdates(ctx context.Context, key string, since int64) (igo.ChatThread, error) {
	thread := igo.ChatThread{Complete: since == 0}
	rows, err := g.pool.Query(ctx, `
		SELECT c.id, c.stamp, c.color, c.message
		FROM chat c JOIN player_key pk ON pk.game_id = c.game_id
		WHERE pk.key = $1 AND c.id > $2
		ORDER BY c.id`, key, since)
	if err != nil {
		return thread, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			msg   igo.ChatMessage
			color int16
		)
		err = rows.Scan(&msg.ID, &msg.Timestamp, &color, &msg.Message)
		if err != nil {
			return thread, err
		}
		msg.Color = igo.Color(color)
		thread.Append(msg)
	}
	return thread, rows.Err()
}

func (g *gateway) OpponentConnected(ctx context.Context, key string) (bool, error) {
	var connected bool
	err := g.pool.QueryRow(ctx, `
		SELECT op.managed_by IS NOT NULL
		FROM player_key pk JOIN player_key op ON op.key = pk.opponent_key
		WHERE pk.key = $1`, key).Scan(&connected)
	if err != nil {
		return false, err
	}
	return connected, nil
}

func (g *gateway) Start() {
	g.listen.run(g.ctx)
}

func (g *gateway) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := g.pool.Exec(ctx, `SELECT do_cleanup($1)`, g.conf.ManagerID)
	if err != nil {
		log.Print(err)
	}
	g.kill()
	g.pool.Close()
}

func (*gateway) String() string { return "Database Manager" }

// Initialise the store and register it with the configuration
func Prepare(config *conf.Conf) {
	if config.DatabaseURL == "" {
		log.Fatal("No database configured (set DATABASE_URL)")
	}
	if config.ManagerID == "" {
		config.ManagerID = MintManagerID()
	}
	igo.Debug.Printf("Claiming keys as %s", config.ManagerID)

	pool, err := pgxpool.New(config.Ctx, config.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}

	// The database may still be coming up
	for attempt := 0; ; attempt++ {
		ctx, cancel := context.WithTimeout(config.Ctx, 5*time.Second)
		err = pool.Ping(ctx)
		cancel()
		if err == nil {
			break
		}
		if attempt >= 12 {
			log.Fatal("Database unreachable: ", err)
		}
		log.Print("Waiting for database: ", err)
		time.Sleep(2 * time.Second)
	}

	if config.Setup {
		for _, name := range setupScripts {
			data, err := sqlDir.ReadFile(name)
			if err != nil {
				log.Fatal(err)
			}
			if _, err := pool.Exec(config.Ctx, string(data)); err != nil {
				log.Fatal(name, ": ", err)
			}
			igo.Debug.Printf("Executed script %v", name)
		}
	}

	var released int
	err = pool.QueryRow(config.Ctx, `SELECT do_cleanup($1)`,
		config.ManagerID).Scan(&released)
	if err != nil {
		log.Fatal(err)
	}
	if released > 0 {
		config.Log.Printf("Released %d stale keys", released)
	}

	listen, err := newListener(config.DatabaseURL, pool)
	if err != nil {
		log.Fatal(err)
	}

	ctx, kill := context.WithCancel(config.Ctx)
	config.Register(conf.Store(&gateway{
		conf:   config,
		pool:   pool,
		listen: listen,
		ctx:    ctx,
		kill:   kill,
	}))
}
