// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens zombiezen.com/go/sqlite connection pools with
// the pragmas Parley's holding store relies on.
//
// Every connection is prepared with WAL journaling (readers never block
// the single writer), synchronous=NORMAL (commits survive a process
// crash), and a busy timeout so that concurrent appends wait for the
// write lock instead of failing with SQLITE_BUSY. [Config.OnConnect]
// runs after the pragmas; the store uses it to create its schema.
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:      "parley.db",
//	    Logger:    logger,
//	    OnConnect: func(conn *sqlite.Conn) error {
//	        return sqlitex.ExecuteScript(conn, schema, nil)
//	    },
//	})
//
// Callers write SQL directly and manage transactions with
// sqlitex.ImmediateTransaction; the package adds no query layer.
package sqlitepool
