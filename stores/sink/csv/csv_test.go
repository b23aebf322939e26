package csv

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bsv-blockchain/utxodump/errors"
	"github.com/bsv-blockchain/utxodump/model"
	"github.com/bsv-blockchain/utxodump/ulogger"
	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecords() []*model.Record {
	return []*model.Record{
		{TxID: "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b", IndexOut: 0, Height: 0, Value: 5_000_000_000, Address: "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", Coinbase: true},
		{TxID: "0e3e2357e806b6cdb1f70b54c3a3a17b6714ee1f0e68bebb44a74b1efd512098", IndexOut: 1, Height: 1, Value: 12, Address: ""},
	}
}

func openStore(t *testing.T, path string) *Store {
	t.Helper()

	s, err := New(ulogger.TestLogger{}, &url.URL{Scheme: "csv", Path: path})
	require.NoError(t, err)

	return s
}

func writeAll(t *testing.T, s *Store, records []*model.Record) {
	t.Helper()

	ctx := context.Background()

	// one record per batch, the header is only written once
	for _, record := range records {
		require.NoError(t, s.Write(ctx, []*model.Record{record}))
	}

	require.NoError(t, s.Flush(ctx))
}

func TestCSVStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "utxos.csv")

	s := openStore(t, path)
	assert.False(t, s.Upsert())
	assert.Equal(t, batchSize, s.BatchSize())

	writeAll(t, s, testRecords())
	require.NoError(t, s.Close(context.Background()))

	file, err := os.Open(path)
	require.NoError(t, err)

	defer file.Close()

	var records []*model.Record
	require.NoError(t, gocsv.UnmarshalFile(file, &records))

	assert.Equal(t, testRecords(), records)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "txid,indexOut,height,value,address,coinbase\n"))
}

func TestCSVStoreAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "utxos.csv")

	for i := 0; i < 2; i++ {
		s := openStore(t, path)
		writeAll(t, s, testRecords())
		require.NoError(t, s.Close(context.Background()))
	}

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	assert.Len(t, lines, 5)
	assert.Equal(t, 1, strings.Count(string(content), "txid,indexOut"))
}

func TestCSVStoreClosed(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "utxos.csv"))
	require.NoError(t, s.Close(context.Background()))

	err := s.Write(context.Background(), testRecords())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStorageNotStarted))
}

func TestCSVStoreMissingPath(t *testing.T) {
	_, err := New(ulogger.TestLogger{}, &url.URL{Scheme: "csv"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}
