// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sqlitedriver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrEncryptionUnsupported is returned when a key is given to a build without
// SQLCipher.
var ErrEncryptionUnsupported = errors.New("sqlite encryption requires a cgo build")

// Config locates a database. An empty EncryptionKey opens it in plaintext.
type Config struct {
	Path          string
	EncryptionKey string
}

func (c Config) inMemory() bool {
	return c.Path == ":memory:" || strings.Contains(c.Path, "mode=memory")
}

// Open opens the database, applies the key and connection pragmas, and pings
// it. The pool holds a single connection so the key and in-memory databases
// apply to every statement.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if cfg.EncryptionKey != "" && !EncryptionSupported {
		return nil, ErrEncryptionUnsupported
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Path, err)
	}
	db.SetMaxOpenConns(1)

	// The key must be the first statement on the connection.
	if cfg.EncryptionKey != "" {
		key := strings.ReplaceAll(cfg.EncryptionKey, "'", "''")
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA key = '%s'", key)); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set encryption key: %w", err)
		}
	}

	pragmas := []string{"PRAGMA busy_timeout = 5000"}
	if !cfg.inMemory() {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			if cfg.EncryptionKey != "" {
				return nil, fmt.Errorf("wrong key or corrupted database %s: %w", cfg.Path, err)
			}
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Path, err)
	}
	return db, nil
}
