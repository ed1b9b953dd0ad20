// Key minting
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
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
)

const (
	keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	keyLength   = 10
	secretBytes = 16
)

// mintKey generates a fresh player key.  Uniqueness is enforced by
// the primary key constraint, the caller retries on collision.
// Bytes above the largest multiple of the alphabet size are rejected,
// keeping the character distribution uniform.
func mintKey() (string, error) {
	limit := byte(256 - 256%len(keyAlphabet))
	var key [keyLength]byte
	var buf [32]byte
	for i := 0; ; {
		if _, err := rand.Read(buf[:]); err != nil {
			return "", fmt.Errorf("minting key: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			key[i] = keyAlphabet[int(b)%len(keyAlphabet)]
			if i++; i == keyLength {
				return string(key[:]), nil
			}
		}
	}
}

// mintSecret generates an AI secret, handed to the worker that is to
// play the reserved side
func mintSecret() (string, error) {
	var buf [secretBytes]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("minting secret: %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}

// MintManagerID derives the identifier this process claims keys
// under.  It is stable across restarts on the same machine, so
// startup cleanup can release keys a crashed predecessor left bound.
func MintManagerID() string {
	data, err := os.ReadFile("/etc/machine-id")
	if err != nil {
		data = make([]byte, 32)
		if _, err := rand.Read(data); err != nil {
			panic("No entropy for manager id")
		}
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
