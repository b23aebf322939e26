package util

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bsv-blockchain/utxodump/errors"
	"github.com/bsv-blockchain/utxodump/settings"
	"github.com/bsv-blockchain/utxodump/ulogger"
	"github.com/bsv-blockchain/utxodump/util/usql"
	"github.com/google/uuid"
)

type SQLEngine string

const (
	Postgres     SQLEngine = "postgres"
	Sqlite       SQLEngine = "sqlite"
	SqliteMemory SQLEngine = "sqlitememory"
)

// InitSQLDB opens the database named by storeURL. The drivers themselves are
// registered by the caller.
func InitSQLDB(logger ulogger.Logger, storeURL *url.URL, tSettings *settings.Settings) (*usql.DB, error) {
	switch SQLEngine(storeURL.Scheme) {
	case Postgres:
		return InitPostgresDB(logger, storeURL, tSettings)
	case Sqlite, SqliteMemory:
		return InitSQLiteDB(logger, storeURL, tSettings)
	}

	return nil, errors.NewConfigurationError("db: unknown scheme: %s", storeURL.Scheme)
}

func InitPostgresDB(logger ulogger.Logger, storeURL *url.URL, tSettings *settings.Settings) (*usql.DB, error) {
	dbHost := storeURL.Hostname()
	dbPort, _ := strconv.Atoi(storeURL.Port())
	dbName := strings.TrimPrefix(storeURL.Path, "/")
	dbUser := ""
	dbPassword := ""

	if storeURL.User != nil {
		dbUser = storeURL.User.Username()
		dbPassword, _ = storeURL.User.Password()
	}

	sslMode := "disable"
	if val := storeURL.Query().Get("sslmode"); val != "" {
		sslMode = val
	}

	dbInfo := fmt.Sprintf("user=%s password=%s dbname=%s sslmode=%s host=%s port=%d", dbUser, dbPassword, dbName, sslMode, dbHost, dbPort)

	db, err := usql.Open(string(Postgres), dbInfo)
	if err != nil {
		return nil, errors.NewStorageError("failed to open postgres DB", err)
	}

	logger.Infof("Using postgres DB: %s@%s:%d/%s", dbUser, dbHost, dbPort, dbName)

	db.SetMaxIdleConns(tSettings.SQL.PostgresMaxIdleConns)
	db.SetMaxOpenConns(tSettings.SQL.PostgresMaxOpenConns)

	return db, nil
}

func InitSQLiteDB(logger ulogger.Logger, storeURL *url.URL, tSettings *settings.Settings) (*usql.DB, error) {
	var (
		filename string
		err      error
	)

	if SQLEngine(storeURL.Scheme) == SqliteMemory {
		filename = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	} else {
		folder := tSettings.DataFolder
		if err = os.MkdirAll(folder, 0o755); err != nil {
			return nil, errors.NewStorageError("failed to create data folder %s", folder, err)
		}

		dbName := strings.TrimPrefix(storeURL.Path, "/")
		if dbName == "" {
			dbName = "utxos"
		}

		filename, err = filepath.Abs(path.Join(folder, dbName+".db"))
		if err != nil {
			return nil, errors.NewStorageError("failed to get absolute path for sqlite DB", err)
		}

		// fail fast on a locked database rather than waiting it out
		filename += "?cache=shared&_pragma=busy_timeout=5000&_pragma=journal_mode=WAL"
	}

	logger.Infof("Using sqlite DB: %s", filename)

	db, err := usql.Open(string(Sqlite), filename)
	if err != nil {
		return nil, errors.NewStorageError("failed to open sqlite DB", err)
	}

	// an in-memory database lives only as long as one of its connections
	if SQLEngine(storeURL.Scheme) == SqliteMemory {
		db.SetMaxOpenConns(1)
	}

	return db, nil
}
