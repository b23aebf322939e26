// Package file writes the exported set to a single binary utxo-set file with a
// sha256sum compatible checksum next to it.
package file

import (
	"bufio"
	"context"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/bsv-blockchain/utxodump/errors"
	"github.com/bsv-blockchain/utxodump/model"
	"github.com/bsv-blockchain/utxodump/ulogger"
)

const (
	bufferSize = 4 * 1024 * 1024
	batchSize  = 10_000
)

// Store writes to <path>.tmp and renames it to <path> when flushed, so a partial
// export never looks complete.
type Store struct {
	logger         ulogger.Logger
	path           string
	tmpPath        string
	file           *os.File
	bufferedWriter *bufio.Writer
	hasher         hash.Hash
	footer         Footer
	finalized      bool
}

// New creates the file named by storeURL, e.g. file:///var/lib/utxodump/mainnet.utxo-set.
// The utxo-set extension is added when missing.
func New(logger ulogger.Logger, storeURL *url.URL) (*Store, error) {
	path := storeURL.Host + storeURL.Path
	if path == "" {
		return nil, errors.NewConfigurationError("[File] missing file name in %s", storeURL.String())
	}

	if !strings.HasSuffix(path, "."+Extension) {
		path += "." + Extension
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.NewStorageError("[File] failed to create folder for %s", path, err)
	}

	tmpPath := path + ".tmp"

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.NewStorageError("[File] failed to create %s", tmpPath, err)
	}

	hasher := sha256.New()

	s := &Store{
		logger:         logger,
		path:           path,
		tmpPath:        tmpPath,
		file:           file,
		bufferedWriter: bufio.NewWriterSize(io.MultiWriter(file, hasher), bufferSize),
		hasher:         hasher,
	}

	if _, err = s.bufferedWriter.Write(Magic[:]); err != nil {
		_ = file.Close()
		return nil, errors.NewStorageError("[File] failed to write header to %s", tmpPath, err)
	}

	logger.Infof("[File] writing %s", path)

	return s, nil
}

// Path is the final location of the file.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) BatchSize() int {
	return batchSize
}

// Write appends records to the temporary file. A record that cannot be encoded is
// skipped and named in the returned error; an I/O error fails the whole batch.
func (s *Store) Write(_ context.Context, records []*model.Record) error {
	if s.file == nil || s.finalized {
		return errors.NewStorageNotStartedError("[File] %s is not open for writing", s.path)
	}

	var (
		footer   = s.footer
		rejected []string
		lastErr  error
	)

	for _, record := range records {
		if err := WriteRecord(s.bufferedWriter, record); err != nil {
			if !errors.Is(err, errors.ErrInvalidArgument) {
				return errors.NewStorageError("[File] failed to write %d records to %s", len(records), s.tmpPath, err)
			}

			rejected = append(rejected, record.ID())
			lastErr = err

			continue
		}

		footer.RecordCount++
		footer.TotalValue += record.Value
	}

	s.footer = footer

	if len(rejected) > 0 {
		return errors.NewStorageError("[File] skipped %d invalid records", len(rejected), errors.NewPartialWriteError(rejected, len(records), lastErr))
	}

	return nil
}

// Flush writes the footer, moves the file into place and writes the checksum file.
// The store accepts no records afterwards; flushing again is a no-op.
func (s *Store) Flush(_ context.Context) error {
	if s.finalized {
		return nil
	}

	if s.file == nil {
		return errors.NewStorageNotStartedError("[File] %s is closed", s.path)
	}

	if err := writeFooter(s.bufferedWriter, s.footer); err != nil {
		return errors.NewStorageError("[File] failed to write footer to %s", s.tmpPath, err)
	}

	if err := s.bufferedWriter.Flush(); err != nil {
		return errors.NewStorageError("[File] failed to flush %s", s.tmpPath, err)
	}

	if err := s.file.Sync(); err != nil {
		return errors.NewStorageError("[File] failed to sync %s", s.tmpPath, err)
	}

	if err := os.Rename(s.tmpPath, s.path); err != nil {
		return errors.NewStorageError("[File] failed to rename %s", s.tmpPath, err)
	}

	// N.B. sha256sum expects 2 spaces between the hash and the file name
	hashData := fmt.Sprintf("%x  %s\n", s.hasher.Sum(nil), filepath.Base(s.path))

	if err := os.WriteFile(s.path+".sha256", []byte(hashData), 0o644); err != nil { //nolint:gosec
		return errors.NewStorageError("[File] failed to write checksum for %s", s.path, err)
	}

	s.finalized = true

	s.logger.Infof("[File] wrote %d records to %s", s.footer.RecordCount, s.path)

	return nil
}

// Close closes the file. An unflushed file is removed.
func (s *Store) Close(_ context.Context) error {
	if s.file == nil {
		return nil
	}

	file := s.file
	s.file = nil

	if err := file.Close(); err != nil {
		return errors.NewStorageError("[File] failed to close %s", s.path, err)
	}

	if !s.finalized {
		s.logger.Warnf("[File] removing incomplete %s", s.tmpPath)

		if err := os.Remove(s.tmpPath); err != nil {
			return errors.NewStorageError("[File] failed to remove %s", s.tmpPath, err)
		}
	}

	return nil
}

// Upsert is false: the file holds exactly one export.
func (s *Store) Upsert() bool {
	return false
}
