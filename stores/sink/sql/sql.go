// Package sql exports records to postgres or sqlite, upserting on (txid, index_out).
package sql

import (
	"context"
	"fmt"
	"net/url"

	"github.com/bsv-blockchain/utxodump/errors"
	"github.com/bsv-blockchain/utxodump/model"
	"github.com/bsv-blockchain/utxodump/settings"
	"github.com/bsv-blockchain/utxodump/ulogger"
	"github.com/bsv-blockchain/utxodump/util"
	"github.com/bsv-blockchain/utxodump/util/usql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type Store struct {
	logger    ulogger.Logger
	db        *usql.DB
	engine    util.SQLEngine
	table     string
	upsertSQL string
	batchSize int
}

// New opens the database, checks it is reachable and creates the table if needed.
func New(ctx context.Context, logger ulogger.Logger, tSettings *settings.Settings, storeURL *url.URL) (*Store, error) {
	table := tSettings.SQL.Table
	if !validIdentifier(table) {
		return nil, errors.NewConfigurationError("invalid sql table name %q", table)
	}

	db, err := util.InitSQLDB(logger, storeURL, tSettings)
	if err != nil {
		return nil, err
	}

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.NewStorageUnavailableError("could not reach %s database", storeURL.Scheme, err)
	}

	if err = createSchema(ctx, db, table); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		logger:    logger,
		db:        db,
		engine:    util.SQLEngine(storeURL.Scheme),
		table:     table,
		upsertSQL: upsertStatement(table),
		batchSize: max(tSettings.SQL.BatchSize, 1),
	}, nil
}

func createSchema(ctx context.Context, db *usql.DB, table string) error {
	// postgres and sqlite share the same DDL
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			 txid      TEXT NOT NULL
			,index_out BIGINT NOT NULL
			,height    BIGINT NOT NULL
			,value     BIGINT NOT NULL
			,address   TEXT NOT NULL
			,coinbase  BOOLEAN NOT NULL
			,PRIMARY KEY (txid, index_out)
		);
	`, table)); err != nil {
		return errors.NewStorageError("could not create %s table", table, err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_address ON %s (address);`, table, table)); err != nil {
		return errors.NewStorageError("could not create idx_%s_address index", table, err)
	}

	return nil
}

func upsertStatement(table string) string {
	return fmt.Sprintf(`
		INSERT INTO %s (txid, index_out, height, value, address, coinbase)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (txid, index_out) DO UPDATE SET
			 height = excluded.height
			,value = excluded.value
			,address = excluded.address
			,coinbase = excluded.coinbase
	`, table)
}

func (s *Store) BatchSize() int {
	return s.batchSize
}

// Write upserts records in a single transaction, so a failed batch leaves none of them written.
func (s *Store) Write(ctx context.Context, records []*model.Record) error {
	if s.db == nil {
		return errors.NewStorageNotStartedError("[SQL] store is closed")
	}

	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.parseSQLError("begin transaction", err)
	}

	for _, record := range records {
		if _, err = tx.ExecContext(ctx, s.upsertSQL,
			record.TxID,
			int64(record.IndexOut),
			int64(record.Height),
			int64(record.Value), //nolint:gosec
			record.Address,
			record.Coinbase,
		); err != nil {
			_ = tx.Rollback()
			return s.parseSQLError("upsert "+record.ID(), err)
		}
	}

	if err = tx.Commit(); err != nil {
		return s.parseSQLError("commit", err)
	}

	return nil
}

// Flush is a no-op: every Write commits before it returns.
func (s *Store) Flush(_ context.Context) error {
	if s.db == nil {
		return errors.NewStorageNotStartedError("[SQL] store is closed")
	}

	return nil
}

func (s *Store) Close(_ context.Context) error {
	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil

	if err != nil {
		return errors.NewStorageError("[SQL] failed to close %s database", s.engine, err)
	}

	return nil
}

func (s *Store) Upsert() bool {
	return true
}

// parseSQLError marks connection and lock errors as unavailable, which the caller may retry.
func (s *Store) parseSQLError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "08" { // connection exception
		return errors.NewStorageUnavailableError("[SQL] %s", op, err)
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return errors.NewStorageUnavailableError("[SQL] %s", op, err)
		}
	}

	return errors.NewStorageError("[SQL] %s", op, err)
}

func validIdentifier(name string) bool {
	if name == "" {
		return false
	}

	for i, c := range name {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}

	return true
}
