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

// Package audit keeps a SQLite journal of capability invocations.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/switchboard/internal/sqlitedriver"
	"github.com/teradata-labs/switchboard/pkg/mcp/protocol"
	"github.com/teradata-labs/switchboard/pkg/mcp/session"
	"github.com/teradata-labs/switchboard/pkg/tools"
)

// Outcome classifies how an invocation ended.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeInvalid  Outcome = "invalid"
	OutcomeUnknown  Outcome = "unknown"
	OutcomeUpstream Outcome = "upstream"
	OutcomeError    Outcome = "error"
)

// writeTimeout bounds a journal insert. Inserts outlive the request context.
const writeTimeout = 5 * time.Second

// Entry is one journal row.
type Entry struct {
	ID         string
	SessionID  string
	Capability string
	StartedAt  time.Time
	Duration   time.Duration
	Outcome    Outcome
	Error      string
}

// Journal is a SQLite-backed invocation journal.
type Journal struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open opens or creates the journal database.
func Open(ctx context.Context, cfg sqlitedriver.Config, logger *zap.Logger) (*Journal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sqlitedriver.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open audit journal: %w", err)
	}
	j := &Journal{db: db, logger: logger.With(zap.String("component", "audit")), now: time.Now}
	if err := j.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize audit schema: %w", err)
	}
	return j, nil
}

func (j *Journal) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS invocations (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		capability TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_invocations_started ON invocations(started_at);
	CREATE INDEX IF NOT EXISTS idx_invocations_session ON invocations(session_id);
	`
	_, err := j.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record inserts e, assigning an id when it has none.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO invocations (id, session_id, capability, started_at, duration_ms, outcome, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.SessionID,
		e.Capability,
		e.StartedAt.UnixMilli(),
		e.Duration.Milliseconds(),
		string(e.Outcome),
		e.Error,
	)
	if err != nil {
		return fmt.Errorf("insert invocation: %w", err)
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, session_id, capability, started_at, duration_ms, outcome, error
		 FROM invocations ORDER BY started_at DESC, rowid DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			started   int64
			durMillis int64
			outcome   string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Capability, &started, &durMillis, &outcome, &e.Error); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		e.StartedAt = time.UnixMilli(started).UTC()
		e.Duration = time.Duration(durMillis) * time.Millisecond
		e.Outcome = Outcome(outcome)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes entries that started before cutoff and reports how many
// were removed.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, `DELETE FROM invocations WHERE started_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune invocations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune invocations: %w", err)
	}
	return n, nil
}

// Wrap returns an Invoker that journals every call made through next.
func (j *Journal) Wrap(next tools.Invoker) *Invoker {
	return &Invoker{next: next, journal: j}
}

// Invoker decorates a tools.Invoker. Journal failures are logged and never
// change the result of the call.
type Invoker struct {
	next    tools.Invoker
	journal *Journal
}

func (i *Invoker) Invoke(ctx context.Context, name string, args map[string]interface{}) (*tools.Result, error) {
	started := i.journal.now()
	res, err := i.next.Invoke(ctx, name, args)

	e := Entry{
		SessionID:  session.IDFromContext(ctx),
		Capability: name,
		StartedAt:  started,
		Duration:   i.journal.now().Sub(started),
		Outcome:    Classify(err),
	}
	if err != nil {
		e.Error = err.Error()
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if jerr := i.journal.Record(wctx, e); jerr != nil {
		i.journal.logger.Warn("journal write failed",
			zap.String("capability", name),
			zap.Error(jerr))
	}
	return res, err
}

// Classify maps an invocation error to its Outcome.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}
	var (
		verr     *tools.ValidationError
		unknown  *tools.UnknownCapabilityError
		upstream *tools.UpstreamError
		rpcErr   *protocol.Error
	)
	switch {
	case errors.As(err, &verr):
		return OutcomeInvalid
	case errors.As(err, &unknown):
		return OutcomeUnknown
	case errors.As(err, &upstream):
		return OutcomeUpstream
	case errors.As(err, &rpcErr) && rpcErr.Code == protocol.MethodNotFound:
		return OutcomeUnknown
	case errors.As(err, &rpcErr) && rpcErr.Code == protocol.InvalidParams:
		return OutcomeInvalid
	}
	return OutcomeError
}
