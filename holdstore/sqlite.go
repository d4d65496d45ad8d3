// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package holdstore

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/parley-chat/parley/lib/codec"
	"github.com/parley-chat/parley/lib/sqlitepool"
	"github.com/parley-chat/parley/lib/wire"
)

const schema = `
	CREATE TABLE IF NOT EXISTS held_messages (
		seq         INTEGER PRIMARY KEY AUTOINCREMENT,
		id          TEXT NOT NULL UNIQUE,
		sender      TEXT NOT NULL,
		destination TEXT NOT NULL,
		body        TEXT NOT NULL,
		timestamp   TEXT NOT NULL,
		kind        TEXT NOT NULL,
		metadata    BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_held_messages_destination
		ON held_messages(destination, seq);
`

// SQLiteConfig describes a SQLite-backed store.
type SQLiteConfig struct {
	// Path is the database file. Its directory must exist.
	Path string

	// PoolSize defaults to sqlitepool.DefaultPoolSize.
	PoolSize int

	Logger *slog.Logger
}

// SQLite is a Store persisted in one SQLite table. The seq column
// records append order; metadata is stored as deterministic CBOR.
type SQLite struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the database at cfg.Path.
func OpenSQLite(cfg SQLiteConfig) (*SQLite, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("holdstore: %w", err)
	}
	return &SQLite{pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (s *SQLite) Close() error {
	return s.pool.Close()
}

func (s *SQLite) Append(ctx context.Context, message wire.Message) error {
	if err := message.Validate(); err != nil {
		return fmt.Errorf("holdstore: append: %w", err)
	}
	message = assignID(message)

	var metadata any
	if len(message.Metadata) > 0 {
		encoded, err := codec.Marshal(message.Metadata)
		if err != nil {
			return fmt.Errorf("holdstore: append: encoding metadata: %w", err)
		}
		metadata = encoded
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("%w: append: %w", ErrUnavailable, err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO held_messages (id, sender, destination, body, timestamp, kind, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				message.ID,
				message.Sender,
				message.Destination,
				message.Body,
				message.Timestamp,
				string(message.Kind),
				metadata,
			},
		})
	if err != nil {
		return fmt.Errorf("%w: append: %w", ErrUnavailable, err)
	}
	s.logger.Debug("message held", "id", message.ID, "destination", message.Destination)
	return nil
}

func (s *SQLite) Drain(ctx context.Context, handle string) (messages []wire.Message, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: drain: %w", ErrUnavailable, err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return nil, fmt.Errorf("%w: drain: begin transaction: %w", ErrUnavailable, err)
	}
	defer endTransaction(&err)

	messages = []wire.Message{}
	var lastSeq int64
	err = sqlitex.Execute(conn, `
		SELECT seq, id, sender, destination, body, timestamp, kind, metadata
		FROM held_messages
		WHERE destination = ?
		ORDER BY seq`,
		&sqlitex.ExecOptions{
			Args: []any{handle},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				message, scanErr := scanMessage(stmt)
				if scanErr != nil {
					return scanErr
				}
				lastSeq = stmt.ColumnInt64(0)
				messages = append(messages, message)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("%w: drain: %w", ErrUnavailable, err)
	}
	if len(messages) == 0 {
		return messages, nil
	}

	err = sqlitex.Execute(conn,
		`DELETE FROM held_messages WHERE destination = ? AND seq <= ?`,
		&sqlitex.ExecOptions{Args: []any{handle, lastSeq}})
	if err != nil {
		return nil, fmt.Errorf("%w: drain: %w", ErrUnavailable, err)
	}
	s.logger.Debug("held messages drained", "handle", handle, "count", len(messages))
	return messages, nil
}

func scanMessage(stmt *sqlite.Stmt) (wire.Message, error) {
	kind, err := wire.ParseKind(stmt.ColumnText(6))
	if err != nil {
		return wire.Message{}, err
	}
	metadata := map[string]any{}
	if length := stmt.ColumnLen(7); length > 0 {
		encoded := make([]byte, length)
		stmt.ColumnBytes(7, encoded)
		if err := codec.Unmarshal(encoded, &metadata); err != nil {
			return wire.Message{}, fmt.Errorf("decoding metadata of %s: %w", stmt.ColumnText(1), err)
		}
	}
	return wire.Message{
		ID:          stmt.ColumnText(1),
		Sender:      stmt.ColumnText(2),
		Destination: stmt.ColumnText(3),
		Body:        stmt.ColumnText(4),
		Timestamp:   stmt.ColumnText(5),
		Kind:        kind,
		Metadata:    metadata,
	}, nil
}
