package export

import (
	"context"
	"fmt"
	"testing"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/bsv-blockchain/utxodump/errors"
	"github.com/bsv-blockchain/utxodump/model"
	"github.com/bsv-blockchain/utxodump/stores/sink/memory"
	"github.com/bsv-blockchain/utxodump/stores/utxoset"
	"github.com/bsv-blockchain/utxodump/ulogger"
	"github.com/bsv-blockchain/utxodump/util/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSink struct {
	mock.Mock
	batchSize int
}

func (m *mockSink) BatchSize() int {
	return m.batchSize
}

func (m *mockSink) Write(ctx context.Context, records []*model.Record) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *mockSink) Flush(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockSink) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockSink) Upsert() bool {
	return true
}

func newTestSet(t *testing.T, n int) (*utxoset.Set, []model.Key) {
	t.Helper()

	set := utxoset.New(uint32(n)) //nolint:gosec
	keys := make([]model.Key, 0, n)

	for i := 0; i < n; i++ {
		txID := chainhash.DoubleHashH([]byte(fmt.Sprintf("tx-%d", i)))
		key := model.NewKey(&txID, uint32(i)) //nolint:gosec

		require.NoError(t, set.Add(key, utxoset.Entry{
			Height:   uint32(i),
			Value:    uint64(1000 + i),
			Address:  test.TestAddress,
			Coinbase: i == 0,
		}))

		keys = append(keys, key)
	}

	return set, keys
}

func recordID(key model.Key) string {
	return key.String()
}

func TestExport(t *testing.T) {
	t.Run("writes every entry", func(t *testing.T) {
		set, keys := newTestSet(t, 3)
		s := memory.New()

		e := New(ulogger.TestLogger{}, test.CreateBaseTestSettings(t))

		result, err := e.Export(context.Background(), set, s)
		require.NoError(t, err)

		assert.Equal(t, uint64(3), result.Written)
		assert.Equal(t, uint64(0), result.Failed)
		assert.Equal(t, uint64(0), result.Retried)
		assert.Equal(t, 3, s.Len())
		assert.Equal(t, 1, s.Flushes())

		records := s.Records()

		record, ok := records[recordID(keys[0])]
		require.True(t, ok)

		txID := keys[0].TxID()
		assert.Equal(t, model.Record{
			TxID:     txID.String(),
			IndexOut: 0,
			Height:   0,
			Value:    1000,
			Address:  test.TestAddress,
			Coinbase: true,
		}, record)
	})

	t.Run("empty set", func(t *testing.T) {
		s := memory.New()

		e := New(ulogger.TestLogger{}, test.CreateBaseTestSettings(t))

		result, err := e.Export(context.Background(), utxoset.New(1), s)
		require.NoError(t, err)

		assert.Equal(t, uint64(0), result.Written)
		assert.Equal(t, 0, s.Len())
		assert.Equal(t, 1, s.Flushes())
	})

	t.Run("exporting twice to an upserting sink keeps one copy", func(t *testing.T) {
		set, _ := newTestSet(t, 5)
		s := memory.New()

		e := New(ulogger.TestLogger{}, test.CreateBaseTestSettings(t))

		_, err := e.Export(context.Background(), set, s)
		require.NoError(t, err)

		first := s.Records()

		_, err = e.Export(context.Background(), set, s)
		require.NoError(t, err)

		assert.Equal(t, 5, s.Len())
		assert.Equal(t, first, s.Records())
	})
}

func containsID(id string) interface{} {
	return mock.MatchedBy(func(records []*model.Record) bool {
		for _, r := range records {
			if r.ID() == id {
				return true
			}
		}

		return false
	})
}

func TestExportBatches(t *testing.T) {
	set, _ := newTestSet(t, 5)

	var sizes []int

	s := &mockSink{batchSize: 2}
	s.On("Write", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sizes = append(sizes, len(args.Get(1).([]*model.Record)))
	}).Return(nil)
	s.On("Flush", mock.Anything).Return(nil)

	e := New(ulogger.TestLogger{}, test.CreateBaseTestSettings(t))

	result, err := e.Export(context.Background(), set, s)
	require.NoError(t, err)

	assert.Equal(t, uint64(5), result.Written)
	assert.Equal(t, []int{2, 2, 1}, sizes)
	s.AssertNumberOfCalls(t, "Flush", 1)
}

func TestExportRetries(t *testing.T) {
	t.Run("transient error is retried", func(t *testing.T) {
		set, _ := newTestSet(t, 2)

		s := &mockSink{batchSize: 10}
		s.On("Write", mock.Anything, mock.Anything).Return(errors.NewStorageUnavailableError("busy")).Once()
		s.On("Write", mock.Anything, mock.Anything).Return(nil)
		s.On("Flush", mock.Anything).Return(nil)

		e := New(ulogger.TestLogger{}, test.CreateBaseTestSettings(t))

		result, err := e.Export(context.Background(), set, s)
		require.NoError(t, err)

		assert.Equal(t, uint64(2), result.Written)
		assert.Equal(t, uint64(1), result.Retried)
		s.AssertNumberOfCalls(t, "Write", 2)
		s.AssertNumberOfCalls(t, "Flush", 1)
	})

	t.Run("permanent error is attempted once", func(t *testing.T) {
		set, keys := newTestSet(t, 1)

		s := &mockSink{batchSize: 10}
		s.On("Write", mock.Anything, mock.Anything).Return(errors.NewStorageError("constraint violated"))
		s.On("Flush", mock.Anything).Return(nil)

		tSettings := test.CreateBaseTestSettings(t)
		require.Greater(t, tSettings.Export.RetryCount, 1)

		e := New(ulogger.TestLogger{}, tSettings)

		result, err := e.Export(context.Background(), set, s)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrExportIncomplete))

		assert.Equal(t, uint64(0), result.Retried)
		assert.Equal(t, []string{recordID(keys[0])}, result.FailedOutpoints)
		s.AssertNumberOfCalls(t, "Write", 1)
	})
}

func TestExportIncomplete(t *testing.T) {
	t.Run("failed batch is reported after the others are written", func(t *testing.T) {
		set, keys := newTestSet(t, 4)
		failing := recordID(keys[2])

		s := &mockSink{batchSize: 1}
		s.On("Write", mock.Anything, containsID(failing)).Return(errors.NewStorageError("write rejected"))
		s.On("Write", mock.Anything, mock.Anything).Return(nil)
		s.On("Flush", mock.Anything).Return(nil)

		e := New(ulogger.TestLogger{}, test.CreateBaseTestSettings(t))

		result, err := e.Export(context.Background(), set, s)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrExportIncomplete))

		assert.Equal(t, uint64(3), result.Written)
		assert.Equal(t, uint64(1), result.Failed)
		assert.Equal(t, []string{failing}, result.FailedOutpoints)

		var data *errors.ExportIncompleteErrData
		require.True(t, errors.AsData(err, &data))
		assert.Equal(t, uint64(1), data.Failed)
		assert.Equal(t, uint64(3), data.Written)
		assert.Equal(t, []string{failing}, data.Outpoints)
		assert.False(t, data.Truncated)
		assert.False(t, data.FlushFailed)
		assert.Contains(t, data.LastReason, "write rejected")

		// a permanent error is not retried
		s.AssertNumberOfCalls(t, "Write", 4)
		s.AssertNumberOfCalls(t, "Flush", 1)
	})

	t.Run("every record of a failed batch is charged to that batch", func(t *testing.T) {
		set, keys := newTestSet(t, 5)

		s := &mockSink{batchSize: 3}
		s.On("Write", mock.Anything, mock.Anything).Return(errors.NewStorageError("collection is read only"))
		s.On("Flush", mock.Anything).Return(nil)

		e := New(ulogger.TestLogger{}, test.CreateBaseTestSettings(t))

		result, err := e.Export(context.Background(), set, s)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrExportIncomplete))

		assert.Equal(t, uint64(0), result.Written)
		assert.Equal(t, uint64(5), result.Failed)

		expected := make([]string, 0, len(keys))
		for _, key := range keys {
			expected = append(expected, recordID(key))
		}

		assert.ElementsMatch(t, expected, result.FailedOutpoints)

		var data *errors.ExportIncompleteErrData
		require.True(t, errors.AsData(err, &data))
		assert.Equal(t, uint64(5), data.Failed)
		assert.Equal(t, uint64(0), data.Written)

		s.AssertNumberOfCalls(t, "Write", 2)
	})

	t.Run("partial batch failure charges only the named records", func(t *testing.T) {
		set, keys := newTestSet(t, 3)
		rejected := recordID(keys[1])

		s := &mockSink{batchSize: 3}
		s.On("Write", mock.Anything, mock.Anything).
			Return(errors.NewStorageError("bulk write failed", errors.NewPartialWriteError([]string{rejected}, 3, nil)))
		s.On("Flush", mock.Anything).Return(nil)

		e := New(ulogger.TestLogger{}, test.CreateBaseTestSettings(t))

		result, err := e.Export(context.Background(), set, s)
		require.Error(t, err)

		assert.Equal(t, uint64(2), result.Written)
		assert.Equal(t, uint64(1), result.Failed)
		assert.Equal(t, []string{rejected}, result.FailedOutpoints)
		s.AssertNumberOfCalls(t, "Write", 1)
	})

	t.Run("reported failures are truncated", func(t *testing.T) {
		set, _ := newTestSet(t, 5)

		s := &mockSink{batchSize: 1}
		s.On("Write", mock.Anything, mock.Anything).Return(errors.NewStorageError("write rejected"))
		s.On("Flush", mock.Anything).Return(nil)

		tSettings := test.CreateBaseTestSettings(t)
		tSettings.Export.MaxReportedFailures = 2

		e := New(ulogger.TestLogger{}, tSettings)

		result, err := e.Export(context.Background(), set, s)
		require.Error(t, err)

		assert.Equal(t, uint64(0), result.Written)
		assert.Equal(t, uint64(5), result.Failed)
		assert.Len(t, result.FailedOutpoints, 2)

		var data *errors.ExportIncompleteErrData
		require.True(t, errors.AsData(err, &data))
		assert.True(t, data.Truncated)
	})
}

func TestExportFlushFailure(t *testing.T) {
	t.Run("flush failure keeps the failed records", func(t *testing.T) {
		set, keys := newTestSet(t, 2)
		failing := recordID(keys[0])

		s := &mockSink{batchSize: 1}
		s.On("Write", mock.Anything, containsID(failing)).Return(errors.NewStorageError("write rejected"))
		s.On("Write", mock.Anything, mock.Anything).Return(nil)
		s.On("Flush", mock.Anything).Return(errors.NewStorageError("disk full"))

		e := New(ulogger.TestLogger{}, test.CreateBaseTestSettings(t))

		result, err := e.Export(context.Background(), set, s)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrExportIncomplete))
		assert.True(t, errors.Is(err, errors.ErrStorageError))

		assert.Equal(t, uint64(1), result.Written)
		assert.Equal(t, uint64(1), result.Failed)

		var data *errors.ExportIncompleteErrData
		require.True(t, errors.AsData(err, &data))
		assert.True(t, data.FlushFailed)
		assert.Equal(t, uint64(1), data.Failed)
		assert.Equal(t, uint64(1), data.Written)
		assert.Equal(t, []string{failing}, data.Outpoints)
		assert.Contains(t, data.LastReason, "disk full")

		s.AssertNumberOfCalls(t, "Flush", 1)
	})

	t.Run("flush failure without failed records", func(t *testing.T) {
		set, _ := newTestSet(t, 1)

		s := &mockSink{batchSize: 1}
		s.On("Write", mock.Anything, mock.Anything).Return(nil)
		s.On("Flush", mock.Anything).Return(errors.NewStorageError("disk full"))

		e := New(ulogger.TestLogger{}, test.CreateBaseTestSettings(t))

		result, err := e.Export(context.Background(), set, s)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrExportIncomplete))
		assert.Equal(t, uint64(1), result.Written)

		var data *errors.ExportIncompleteErrData
		require.True(t, errors.AsData(err, &data))
		assert.True(t, data.FlushFailed)
		assert.Equal(t, uint64(0), data.Failed)
	})
}

func TestExportCancelled(t *testing.T) {
	t.Run("before the first batch", func(t *testing.T) {
		set, _ := newTestSet(t, 3)
		s := memory.New()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		e := New(ulogger.TestLogger{}, test.CreateBaseTestSettings(t))

		result, err := e.Export(ctx, set, s)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrContextCanceled))
		assert.Equal(t, uint64(0), result.Written)
		assert.Equal(t, 0, s.Flushes())
	})

	t.Run("during a write", func(t *testing.T) {
		set, _ := newTestSet(t, 4)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s := &mockSink{batchSize: 2}
		s.On("Write", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
			cancel()
		}).Return(context.Canceled).Once()

		e := New(ulogger.TestLogger{}, test.CreateBaseTestSettings(t))

		result, err := e.Export(ctx, set, s)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrContextCanceled))
		assert.Equal(t, uint64(0), result.Written)
		assert.Equal(t, uint64(0), result.Failed)
		s.AssertNumberOfCalls(t, "Write", 1)
		s.AssertNotCalled(t, "Flush", mock.Anything)
	})
}
