package sink

import (
	"context"
	"net/url"

	"github.com/bsv-blockchain/utxodump/settings"
	"github.com/bsv-blockchain/utxodump/stores/sink/csv"
	"github.com/bsv-blockchain/utxodump/stores/sink/file"
	"github.com/bsv-blockchain/utxodump/stores/sink/memory"
	"github.com/bsv-blockchain/utxodump/stores/sink/mongo"
	"github.com/bsv-blockchain/utxodump/stores/sink/sql"
	"github.com/bsv-blockchain/utxodump/ulogger"
	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver
)

func init() {
	availableDatabases["memory"] = func(_ context.Context, _ ulogger.Logger, _ *settings.Settings, _ *url.URL) (Sink, error) {
		return memory.New(), nil
	}

	mongoInit := func(ctx context.Context, logger ulogger.Logger, tSettings *settings.Settings, storeURL *url.URL) (Sink, error) {
		return mongo.New(ctx, logger, tSettings, storeURL)
	}
	availableDatabases["mongodb"] = mongoInit
	availableDatabases["mongodb+srv"] = mongoInit

	sqlInit := func(ctx context.Context, logger ulogger.Logger, tSettings *settings.Settings, storeURL *url.URL) (Sink, error) {
		return sql.New(ctx, logger, tSettings, storeURL)
	}
	availableDatabases["postgres"] = sqlInit
	availableDatabases["sqlite"] = sqlInit
	availableDatabases["sqlitememory"] = sqlInit

	availableDatabases["csv"] = func(_ context.Context, logger ulogger.Logger, _ *settings.Settings, storeURL *url.URL) (Sink, error) {
		return csv.New(logger, storeURL)
	}

	availableDatabases["file"] = func(_ context.Context, logger ulogger.Logger, _ *settings.Settings, storeURL *url.URL) (Sink, error) {
		return file.New(logger, storeURL)
	}
}
