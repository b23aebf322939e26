// Package csv appends exported records to a CSV file with a txid,indexOut,height,value,address,coinbase header.
package csv

import (
	"context"
	"net/url"
	"os"
	"path/filepath"

	"github.com/bsv-blockchain/utxodump/errors"
	"github.com/bsv-blockchain/utxodump/model"
	"github.com/bsv-blockchain/utxodump/ulogger"
	"github.com/gocarina/gocsv"
)

const batchSize = 10_000

type Store struct {
	logger        ulogger.Logger
	path          string
	file          *os.File
	writer        *gocsv.SafeCSVWriter
	headerWritten bool
}

// New opens the file named by storeURL, e.g. csv:///var/lib/utxodump/utxos.csv, for
// appending. The header is only written to an empty file.
func New(logger ulogger.Logger, storeURL *url.URL) (*Store, error) {
	path := storeURL.Host + storeURL.Path
	if path == "" {
		return nil, errors.NewConfigurationError("[CSV] missing file name in %s", storeURL.String())
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.NewStorageError("[CSV] failed to create folder for %s", path, err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.NewStorageError("[CSV] failed to open %s", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, errors.NewStorageError("[CSV] failed to stat %s", path, err)
	}

	logger.Infof("[CSV] appending to %s", path)

	return &Store{
		logger:        logger,
		path:          path,
		file:          file,
		writer:        gocsv.DefaultCSVWriter(file),
		headerWritten: info.Size() > 0,
	}, nil
}

func (s *Store) BatchSize() int {
	return batchSize
}

// Write appends records to the file. They are synced to disk by Flush.
func (s *Store) Write(_ context.Context, records []*model.Record) error {
	if s.file == nil {
		return errors.NewStorageNotStartedError("[CSV] store is closed")
	}

	if len(records) == 0 {
		return nil
	}

	var err error
	if s.headerWritten {
		err = gocsv.MarshalCSVWithoutHeaders(records, s.writer)
	} else {
		err = gocsv.MarshalCSV(records, s.writer)
	}

	if err == nil {
		s.writer.Flush()
		err = s.writer.Error()
	}

	if err != nil {
		return errors.NewStorageError("[CSV] failed to write %d records to %s", len(records), s.path, err)
	}

	s.headerWritten = true

	return nil
}

func (s *Store) Flush(_ context.Context) error {
	if s.file == nil {
		return errors.NewStorageNotStartedError("[CSV] store is closed")
	}

	if err := s.file.Sync(); err != nil {
		return errors.NewStorageError("[CSV] failed to sync %s", s.path, err)
	}

	return nil
}

func (s *Store) Close(_ context.Context) error {
	if s.file == nil {
		return nil
	}

	file := s.file
	s.file = nil

	if err := file.Close(); err != nil {
		return errors.NewStorageError("[CSV] failed to close %s", s.path, err)
	}

	return nil
}

// Upsert is false: every export appends a full copy of the set.
func (s *Store) Upsert() bool {
	return false
}
