// Package mongo exports records to a MongoDB collection, one document per outpoint
// with _id "<txid>:<index>".
package mongo

import (
	"context"
	"net/url"
	"strings"

	"github.com/bsv-blockchain/utxodump/errors"
	"github.com/bsv-blockchain/utxodump/model"
	"github.com/bsv-blockchain/utxodump/settings"
	"github.com/bsv-blockchain/utxodump/ulogger"
	"github.com/ordishs/gocore"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var stat = gocore.NewStat("sink_mongo")

// collection is the part of *mongo.Collection the store uses.
type collection interface {
	BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
}

type document struct {
	ID           string `bson:"_id"`
	model.Record `bson:",inline"`
}

type Store struct {
	logger    ulogger.Logger
	client    *mongo.Client
	coll      collection
	batchSize int
}

// New connects to storeURL and pings the primary. The database is taken from the URL
// path, falling back to mongo_database.
func New(ctx context.Context, logger ulogger.Logger, tSettings *settings.Settings, storeURL *url.URL) (*Store, error) {
	database := strings.TrimPrefix(storeURL.Path, "/")
	if database == "" {
		database = tSettings.Mongo.Database
	}

	connectCtx, cancel := context.WithTimeout(ctx, tSettings.Mongo.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().
		ApplyURI(storeURL.String()).
		SetConnectTimeout(tSettings.Mongo.ConnectTimeout),
	)
	if err != nil {
		return nil, errors.NewStorageError("[Mongo] failed to connect to %s", storeURL.Redacted(), err)
	}

	if err = client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.NewStorageUnavailableError("[Mongo] failed to ping %s", storeURL.Redacted(), err)
	}

	logger.Infof("[Mongo] connected to %s, writing to %s.%s", storeURL.Host, database, tSettings.Mongo.Collection)

	s := newStore(logger, client.Database(database).Collection(tSettings.Mongo.Collection), tSettings.Mongo.BatchSize)
	s.client = client

	return s, nil
}

func newStore(logger ulogger.Logger, coll collection, batchSize int) *Store {
	return &Store{
		logger:    logger,
		coll:      coll,
		batchSize: max(batchSize, 1),
	}
}

func (s *Store) BatchSize() int {
	return s.batchSize
}

// Write upserts records in one unordered bulk write. When only some documents are
// rejected the error names them; the rest of the batch is written.
func (s *Store) Write(ctx context.Context, records []*model.Record) error {
	if s.coll == nil {
		return errors.NewStorageNotStartedError("[Mongo] store is closed")
	}

	if len(records) == 0 {
		return nil
	}

	start := gocore.CurrentTime()
	defer func() {
		stat.NewStat("BulkWrite").AddTime(start)
	}()

	models := make([]mongo.WriteModel, len(records))

	for i, record := range records {
		id := record.ID()

		models[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": id}).
			SetReplacement(document{ID: id, Record: *record}).
			SetUpsert(true)
	}

	// a replace is idempotent, so the whole batch can be resent after a transient failure
	if _, err := s.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
			return errors.NewStorageUnavailableError("[Mongo] failed to write %d documents", len(records), err)
		}

		var bwe mongo.BulkWriteException
		if errors.As(err, &bwe) && bwe.WriteConcernError == nil && len(bwe.WriteErrors) > 0 {
			ids := make([]string, 0, len(bwe.WriteErrors))

			for _, we := range bwe.WriteErrors {
				if we.Index >= 0 && we.Index < len(records) {
					ids = append(ids, records[we.Index].ID())
				}
			}

			s.logger.Warnf("[Mongo] %d of %d documents rejected", len(ids), len(records))

			return errors.NewStorageError("[Mongo] failed to write %d documents", len(ids), errors.NewPartialWriteError(ids, len(records), err))
		}

		return errors.NewStorageError("[Mongo] failed to write %d documents", len(records), err)
	}

	return nil
}

// Flush is a no-op: every Write is acknowledged by the server before it returns.
func (s *Store) Flush(_ context.Context) error {
	if s.coll == nil {
		return errors.NewStorageNotStartedError("[Mongo] store is closed")
	}

	return nil
}

func (s *Store) Close(ctx context.Context) error {
	s.coll = nil

	if s.client == nil {
		return nil
	}

	client := s.client
	s.client = nil

	if err := client.Disconnect(ctx); err != nil {
		return errors.NewStorageError("[Mongo] failed to disconnect", err)
	}

	return nil
}

func (s *Store) Upsert() bool {
	return true
}
