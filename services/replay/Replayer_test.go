package replay

import (
	"context"
	"testing"

	"github.com/bsv-blockchain/utxodump/errors"
	"github.com/bsv-blockchain/utxodump/model"
	"github.com/bsv-blockchain/utxodump/services/export"
	"github.com/bsv-blockchain/utxodump/settings"
	"github.com/bsv-blockchain/utxodump/stores/sink"
	"github.com/bsv-blockchain/utxodump/stores/sink/memory"
	"github.com/bsv-blockchain/utxodump/ulogger"
	"github.com/bsv-blockchain/utxodump/util/test"
	"github.com/bsv-blockchain/utxodump/util/test/mocklogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSink struct {
	flushes int
}

func (f *failingSink) BatchSize() int {
	return 100
}

func (f *failingSink) Write(_ context.Context, records []*model.Record) error {
	return errors.NewStorageError("rejected %d records", len(records))
}

func (f *failingSink) Flush(_ context.Context) error {
	f.flushes++
	return nil
}

func (f *failingSink) Close(_ context.Context) error {
	return nil
}

func (f *failingSink) Upsert() bool {
	return false
}

func newTestReplayer(t *testing.T, logger ulogger.Logger, s sink.Sink) (*Replayer, *settings.Settings) {
	t.Helper()

	tSettings := test.CreateBaseTestSettings(t)

	return New(logger, tSettings, export.New(logger, tSettings), s), tSettings
}

func TestReplayerEndToEnd(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	r, _ := newTestReplayer(t, ulogger.TestLogger{}, s)

	chain := test.NewChain(t)

	genesis := chain.Add(test.CoinbaseTx(t, 0, 5_000_000_000))
	genesisTxID := genesis.Transactions[0].TxID
	keyA := model.NewKey(&genesisTxID, 0)

	next := chain.Add(test.SpendToTx(t,
		[]model.Key{keyA},
		[]string{test.OtherAddress, test.ThirdAddress},
		[]uint64{2_500_000_000, 2_499_999_000},
	))
	nextTxID := next.Transactions[0].TxID

	require.NoError(t, r.OnStart(ctx, 0))
	assert.Equal(t, StateStarted, r.State())

	require.NoError(t, r.OnBlock(ctx, genesis))
	assert.Equal(t, StateReplaying, r.State())
	assert.Equal(t, 1, r.Set().Len())

	require.NoError(t, r.OnBlock(ctx, next))
	assert.Equal(t, 2, r.Set().Len())

	require.NoError(t, r.OnComplete(ctx, 1))
	assert.Equal(t, StateTerminated, r.State())

	records := s.Records()
	require.Len(t, records, 2)

	assert.NotContains(t, records, keyA.String())

	assert.Equal(t, model.Record{
		TxID:     nextTxID.String(),
		IndexOut: 0,
		Height:   1,
		Value:    2_500_000_000,
		Address:  test.OtherAddress,
	}, records[model.NewKey(&nextTxID, 0).String()])

	assert.Equal(t, model.Record{
		TxID:     nextTxID.String(),
		IndexOut: 1,
		Height:   1,
		Value:    2_499_999_000,
		Address:  test.ThirdAddress,
	}, records[model.NewKey(&nextTxID, 1).String()])

	assert.Equal(t, Counters{
		StartHeight:  0,
		EndHeight:    1,
		Blocks:       2,
		Transactions: 2,
		Inputs:       2,
		Outputs:      3,
	}, r.Counters())

	require.NotNil(t, r.Result())
	assert.Equal(t, uint64(2), r.Result().Written)
	assert.Equal(t, 1, s.Flushes())
}

func TestReplayerReport(t *testing.T) {
	ctx := context.Background()
	logger := mocklogger.NewTestLogger()

	r, _ := newTestReplayer(t, logger, memory.New())

	chain := test.NewChain(t)
	chain.Add(test.CoinbaseTx(t, 0, 100))

	require.NoError(t, r.OnStart(ctx, 0))
	require.NoError(t, r.OnBlock(ctx, chain.Blocks[0]))
	require.NoError(t, r.OnComplete(ctx, 0))

	assert.True(t, logger.Contains("Infof", "[Replay] transactions: 1"))
	assert.True(t, logger.Contains("Infof", "[Replay] exported   : 1 (0 failed, 0 retried)"))
}

func TestReplayerCountersAcrossBlocks(t *testing.T) {
	ctx := context.Background()

	r, _ := newTestReplayer(t, ulogger.TestLogger{}, memory.New())

	chain := test.NewChain(t)

	var inputs, outputs, transactions uint64

	for i := uint32(0); i < 10; i++ {
		block := chain.Add(test.CoinbaseTx(t, i, 50, 25))

		transactions += block.DeclaredTxCount
		inputs += block.Transactions[0].DeclaredInputCount
		outputs += block.Transactions[0].DeclaredOutputCount
	}

	require.NoError(t, r.OnStart(ctx, 0))

	for _, block := range chain.Blocks {
		require.NoError(t, r.OnBlock(ctx, block))
	}

	counters := r.Counters()
	assert.Equal(t, uint64(10), counters.Blocks)
	assert.Equal(t, transactions, counters.Transactions)
	assert.Equal(t, inputs, counters.Inputs)
	assert.Equal(t, outputs, counters.Outputs)
	assert.Equal(t, 20, r.Set().Len())
}

func TestReplayerLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("block before start", func(t *testing.T) {
		r, _ := newTestReplayer(t, ulogger.TestLogger{}, memory.New())

		chain := test.NewChain(t)
		block := chain.Add(test.CoinbaseTx(t, 0, 100))

		err := r.OnBlock(ctx, block)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrState))
		assert.Nil(t, r.Set())
	})

	t.Run("complete before start", func(t *testing.T) {
		r, _ := newTestReplayer(t, ulogger.TestLogger{}, memory.New())

		err := r.OnComplete(ctx, 0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrState))
	})

	t.Run("start twice", func(t *testing.T) {
		r, _ := newTestReplayer(t, ulogger.TestLogger{}, memory.New())

		require.NoError(t, r.OnStart(ctx, 0))

		err := r.OnStart(ctx, 0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrState))
	})

	t.Run("complete without blocks", func(t *testing.T) {
		s := memory.New()
		r, _ := newTestReplayer(t, ulogger.TestLogger{}, s)

		require.NoError(t, r.OnStart(ctx, 0))
		require.NoError(t, r.OnComplete(ctx, 0))

		assert.Equal(t, StateTerminated, r.State())
		assert.Equal(t, 0, s.Len())
	})

	t.Run("nothing after complete", func(t *testing.T) {
		r, _ := newTestReplayer(t, ulogger.TestLogger{}, memory.New())

		chain := test.NewChain(t)
		chain.Add(test.CoinbaseTx(t, 0, 100))
		chain.Add(test.CoinbaseTx(t, 1, 100))

		require.NoError(t, r.OnStart(ctx, 0))
		require.NoError(t, r.OnBlock(ctx, chain.Blocks[0]))
		require.NoError(t, r.OnComplete(ctx, 0))

		err := r.OnBlock(ctx, chain.Blocks[1])
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrState))

		err = r.OnComplete(ctx, 1)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrState))

		assert.Equal(t, 1, r.Set().Len())
	})
}

func TestReplayerHeights(t *testing.T) {
	ctx := context.Background()

	t.Run("below start height", func(t *testing.T) {
		r, _ := newTestReplayer(t, ulogger.TestLogger{}, memory.New())

		chain := test.NewChain(t)
		chain.Add(test.CoinbaseTx(t, 0, 100))

		require.NoError(t, r.OnStart(ctx, 5))

		err := r.OnBlock(ctx, chain.Blocks[0])
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
		assert.Equal(t, 0, r.Set().Len())

		// the rejected block does not move the run into replaying
		assert.Equal(t, StateStarted, r.State())

		require.NoError(t, r.OnComplete(ctx, 5))
		assert.Equal(t, StateTerminated, r.State())
	})

	t.Run("heights must increase", func(t *testing.T) {
		r, _ := newTestReplayer(t, ulogger.TestLogger{}, memory.New())

		chain := test.NewChain(t)
		chain.Add(test.CoinbaseTx(t, 0, 100))
		chain.Add(test.CoinbaseTx(t, 1, 100))

		require.NoError(t, r.OnStart(ctx, 0))
		require.NoError(t, r.OnBlock(ctx, chain.Blocks[1]))

		err := r.OnBlock(ctx, chain.Blocks[0])
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

		err = r.OnBlock(ctx, chain.Blocks[1])
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

		assert.Equal(t, uint64(1), r.Counters().Blocks)
	})

	t.Run("gaps are allowed", func(t *testing.T) {
		r, _ := newTestReplayer(t, ulogger.TestLogger{}, memory.New())

		chain := test.NewChain(t)
		chain.Add(test.CoinbaseTx(t, 0, 100))
		chain.Add(test.CoinbaseTx(t, 1, 100))
		chain.Add(test.CoinbaseTx(t, 2, 100))

		require.NoError(t, r.OnStart(ctx, 0))
		require.NoError(t, r.OnBlock(ctx, chain.Blocks[0]))
		require.NoError(t, r.OnBlock(ctx, chain.Blocks[2]))

		err := r.OnComplete(ctx, 1)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

		require.NoError(t, r.OnComplete(ctx, 2))
	})
}

func TestReplayerFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("failed block terminates the run", func(t *testing.T) {
		r, _ := newTestReplayer(t, ulogger.TestLogger{}, memory.New())

		chain := test.NewChain(t)
		block := chain.Add(test.CoinbaseTx(t, 0, 100))
		block.DeclaredTxCount = 3

		require.NoError(t, r.OnStart(ctx, 0))

		err := r.OnBlock(ctx, block)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrDataIntegrity))
		assert.Equal(t, StateTerminated, r.State())

		err = r.OnComplete(ctx, 0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrState))
	})

	t.Run("export failure is reported", func(t *testing.T) {
		s := &failingSink{}
		r, tSettings := newTestReplayer(t, ulogger.TestLogger{}, s)
		tSettings.Export.RetryCount = 1

		chain := test.NewChain(t)
		chain.Add(test.CoinbaseTx(t, 0, 100, 200))

		require.NoError(t, r.OnStart(ctx, 0))
		require.NoError(t, r.OnBlock(ctx, chain.Blocks[0]))

		err := r.OnComplete(ctx, 0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrExportIncomplete))
		assert.Equal(t, StateTerminated, r.State())

		require.NotNil(t, r.Result())
		assert.Equal(t, uint64(2), r.Result().Failed)
		assert.Equal(t, 1, s.flushes)
	})

	t.Run("cancelled context", func(t *testing.T) {
		r, _ := newTestReplayer(t, ulogger.TestLogger{}, memory.New())

		chain := test.NewChain(t)
		chain.Add(test.CoinbaseTx(t, 0, 100))

		require.NoError(t, r.OnStart(ctx, 0))

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := r.OnBlock(cancelled, chain.Blocks[0])
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrContextCanceled))
	})
}
