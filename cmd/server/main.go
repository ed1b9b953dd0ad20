// Entry point
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

package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"igo-server/conf"
	"igo-server/db"
	"igo-server/web"
)

// Default file name for the configuration file
const defconf = "igo.toml"

func main() {
	var (
		confFile = flag.String("conf", defconf, "Name of configuration file")
		dumpConf = flag.Bool("dump-config", false, "Dump configuration")
	)

	flag.Parse()
	if flag.NArg() != 0 {
		fmt.Fprintf(flag.CommandLine.Output(),
			"Too many arguments passed to %s.\nUsage:\n",
			os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Load the configuration from disk (if available)
	config, err := conf.Open(*confFile)
	if err != nil {
		log.Fatal(err)
	}

	// Dump the configuration onto the disk if requested
	if *dumpConf {
		if err := config.Dump(os.Stdout); err != nil {
			log.Fatalln("Failed to dump configuration:", err)
		}
		os.Exit(0)
	}

	// Enable the authoritative store
	db.Prepare(config)

	// Accept WebSocket connections
	web.Prepare(config)

	// Launch the server
	config.Start()
}
