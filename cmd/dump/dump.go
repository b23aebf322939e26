// Package dump runs a complete utxo dump: it replays the blocks found in the blocks
// folder into an in-memory utxo set and exports the set to the configured store.
package dump

import (
	"context"

	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
	"github.com/bsv-blockchain/utxodump/errors"
	"github.com/bsv-blockchain/utxodump/model"
	"github.com/bsv-blockchain/utxodump/services/blockfeed"
	"github.com/bsv-blockchain/utxodump/services/export"
	"github.com/bsv-blockchain/utxodump/services/replay"
	"github.com/bsv-blockchain/utxodump/settings"
	"github.com/bsv-blockchain/utxodump/stores/sink"
	"github.com/bsv-blockchain/utxodump/ulogger"
)

// Run replays blocks replay_startHeight through replay_endHeight and exports the
// resulting set to replay_store. Blocks below the start height are read but not
// applied, so the set only holds outputs created from the start height on.
func Run(ctx context.Context, logger ulogger.Logger, tSettings *settings.Settings) (replay.Counters, error) {
	startHeight, err := checkHeights(tSettings)
	if err != nil {
		return replay.Counters{}, err
	}

	feed, err := blockfeed.New(logger, tSettings)
	if err != nil {
		return replay.Counters{}, err
	}

	s, err := sink.New(ctx, logger, tSettings, tSettings.Replay.StoreURL)
	if err != nil {
		return replay.Counters{}, err
	}

	defer func() {
		if closeErr := s.Close(context.WithoutCancel(ctx)); closeErr != nil {
			logger.Errorf("[Dump] failed to close store %s: %v", tSettings.Replay.StoreURL.Redacted(), closeErr)
		}
	}()

	logger.Infof("[Dump] replaying %s into %s", tSettings.BlockFeed.BlocksDir, tSettings.Replay.StoreURL.Redacted())

	replayer := replay.New(logger, tSettings, export.New(logger, tSettings), s)

	if err = replayer.OnStart(ctx, startHeight); err != nil {
		return replayer.Counters(), err
	}

	lastHeight, err := feed.Run(ctx, func(block *model.Block) error {
		if block.Height < startHeight {
			return nil
		}

		return replayer.OnBlock(ctx, block)
	})
	if err != nil {
		replayer.Abort(ctx)
		return replayer.Counters(), err
	}

	if lastHeight < startHeight {
		replayer.Abort(ctx)
		return replayer.Counters(), errors.NewBlockNotFoundError("[Dump] start height %d is above the last available block %d", startHeight, lastHeight)
	}

	if err = replayer.OnComplete(ctx, lastHeight); err != nil {
		return replayer.Counters(), err
	}

	return replayer.Counters(), nil
}

func checkHeights(tSettings *settings.Settings) (uint32, error) {
	start, end := tSettings.Replay.StartHeight, tSettings.Replay.EndHeight

	startHeight, err := safeconversion.IntToUint32(start)
	if err != nil {
		return 0, errors.NewConfigurationError("invalid replay_startHeight %d", start, err)
	}

	if end >= 0 && end < start {
		return 0, errors.NewConfigurationError("replay_endHeight %d is below replay_startHeight %d", end, start)
	}

	if tSettings.Replay.StoreURL == nil {
		return 0, errors.NewConfigurationError("replay_store is not set")
	}

	return startHeight, nil
}
