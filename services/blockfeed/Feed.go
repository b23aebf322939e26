// Package blockfeed reads blk*.dat block files and delivers their blocks one at a
// time in ascending height order, starting at genesis.
package blockfeed

import (
	"context"
	"encoding/hex"
	"math/big"
	"os"
	"path/filepath"
	"sort"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
	"github.com/bsv-blockchain/utxodump/errors"
	"github.com/bsv-blockchain/utxodump/model"
	"github.com/bsv-blockchain/utxodump/settings"
	"github.com/bsv-blockchain/utxodump/ulogger"
	"github.com/bsv-blockchain/utxodump/util"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/errgroup"
)

const decodedBlocksBuffer = 16

// Feed delivers the blocks found in the blocks folder along the chain with the most
// work. The headers of every block file are indexed before anything is delivered, so
// blocks may be stored in any order and stale branches are skipped wherever they sit
// in the files. Equal work is resolved in favour of the tip stored first.
type Feed struct {
	logger       ulogger.Logger
	settings     *settings.Settings
	magic        []byte
	maxBlockSize uint32

	// open block files, closed when evicted
	files *ttlcache.Cache[string, *os.File]
}

// indexEntry is one indexed block. height, work and connected are only valid once
// resolved is set.
type indexEntry struct {
	hash      chainhash.Hash
	prev      chainhash.Hash
	bits      [4]byte
	loc       blockLocation
	parent    *indexEntry
	height    uint32
	work      *big.Int
	resolved  bool
	connected bool
}

func New(logger ulogger.Logger, tSettings *settings.Settings) (*Feed, error) {
	magic, err := hex.DecodeString(tSettings.BlockFeed.Magic)
	if err != nil {
		return nil, errors.NewConfigurationError("invalid blockfeed_magic %q", tSettings.BlockFeed.Magic, err)
	}

	if len(magic) != 4 {
		return nil, errors.NewConfigurationError("blockfeed_magic must be 4 bytes, got %d", len(magic))
	}

	maxBlockSize, err := safeconversion.IntToUint32(tSettings.BlockFeed.MaxBlockSize)
	if err != nil {
		return nil, errors.NewConfigurationError("invalid blockfeed_maxBlockSize %d", tSettings.BlockFeed.MaxBlockSize, err)
	}

	if maxBlockSize <= model.BlockHeaderSize {
		return nil, errors.NewConfigurationError("blockfeed_maxBlockSize must be larger than a block header, got %d", maxBlockSize)
	}

	initPrometheusMetrics()

	files := ttlcache.New[string, *os.File](
		ttlcache.WithTTL[string, *os.File](tSettings.BlockFeed.FileIdleTimeout),
		ttlcache.WithCapacity[string, *os.File](uint64(max(tSettings.BlockFeed.MaxOpenFiles, 1))), //nolint:gosec
	)

	files.OnEviction(func(_ context.Context, _ ttlcache.EvictionReason, item *ttlcache.Item[string, *os.File]) {
		if err := item.Value().Close(); err != nil {
			logger.Warnf("[BlockFeed] failed to close %s: %v", item.Key(), err)
		}
	})

	return &Feed{
		logger:       logger,
		settings:     tSettings,
		magic:        magic,
		maxBlockSize: maxBlockSize,
		files:        files,
	}, nil
}

// Run indexes every block file, then calls fn once per block of the best chain in height
// order, stopping after replay_endHeight when it is not negative. The height of the last
// delivered block is returned.
//
// Blocks that do not connect to a genesis block fail the run with ERR_BLOCK_PARENT_NOT_FOUND,
// unless the best chain reaches the end height anyway.
func (f *Feed) Run(ctx context.Context, fn func(block *model.Block) error) (uint32, error) {
	defer f.files.DeleteAll()

	files, err := f.blockFiles()
	if err != nil {
		return 0, err
	}

	index, order, err := f.buildIndex(ctx, files)
	if err != nil {
		return 0, err
	}

	chain, err := f.bestChain(index, order)
	if err != nil {
		return 0, err
	}

	return f.deliver(ctx, chain, fn)
}

func (f *Feed) blockFiles() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(f.settings.BlockFeed.BlocksDir, "blk*.dat"))
	if err != nil {
		return nil, errors.NewConfigurationError("invalid blocks folder %s", f.settings.BlockFeed.BlocksDir, err)
	}

	if len(files) == 0 {
		return nil, errors.NewNotFoundError("no blk*.dat files in %s", f.settings.BlockFeed.BlocksDir)
	}

	// blk00000.dat, blk00001.dat, ...
	sort.Strings(files)

	return files, nil
}

// buildIndex reads the header of every block record. order lists the indexed blocks in
// the order they are stored; a block stored twice keeps its first location.
func (f *Feed) buildIndex(ctx context.Context, files []string) (map[chainhash.Hash]*indexEntry, []*indexEntry, error) {
	index := make(map[chainhash.Hash]*indexEntry)
	order := make([]*indexEntry, 0)

	for _, path := range files {
		f.logger.Infof("[BlockFeed] indexing %s", path)

		truncated, err := scanBlockFile(path, f.magic, f.maxBlockSize, func(loc blockLocation, headerBytes []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}

			header, err := model.NewBlockHeaderFromBytes(headerBytes)
			if err != nil {
				return errors.NewBlockInvalidError("block file %s: header at offset %d", loc.path, loc.offset, err)
			}

			hash := *header.Hash()
			if _, ok := index[hash]; ok {
				f.logger.Debugf("[BlockFeed] block %s is stored more than once", hash)
				return nil
			}

			entry := &indexEntry{
				hash: hash,
				prev: *header.HashPrevBlock,
				bits: header.Bits,
				loc:  loc,
			}

			index[hash] = entry
			order = append(order, entry)

			prometheusBlockFeedIndexed.Inc()

			return nil
		})
		if err != nil {
			return nil, nil, err
		}

		if truncated {
			f.logger.Warnf("[BlockFeed] %s ends with a partial block", path)
		}
	}

	f.logger.Infof("[BlockFeed] indexed %s blocks in %d files", util.FormatNumber(uint64(len(order))), len(files))

	return index, order, nil
}

// bestChain returns the blocks from genesis to the tip with the most work, cut at the
// end height.
func (f *Feed) bestChain(index map[chainhash.Hash]*indexEntry, order []*indexEntry) ([]*indexEntry, error) {
	var (
		best        *indexEntry
		unconnected int
		missing     *chainhash.Hash
	)

	for _, entry := range order {
		if missingParent := resolve(index, entry); missingParent != nil && missing == nil {
			missing = missingParent
		}

		if !entry.connected {
			unconnected++
			continue
		}

		if best == nil || entry.work.Cmp(best.work) > 0 {
			best = entry
		}
	}

	prometheusBlockFeedUnconnected.Set(float64(unconnected))

	if best == nil {
		return nil, errors.NewBlockNotFoundError("[BlockFeed] no genesis block found in %s", f.settings.BlockFeed.BlocksDir)
	}

	chain := make([]*indexEntry, best.height+1)
	for entry := best; entry != nil; entry = entry.parent {
		chain[entry.height] = entry
	}

	endHeight := f.settings.Replay.EndHeight
	endReached := endHeight >= 0 && int64(best.height) >= int64(endHeight)

	if unconnected > 0 {
		if !endReached {
			return nil, errors.NewBlockParentNotFoundError("[BlockFeed] %d blocks do not connect to genesis, parent %s not found", unconnected, missing)
		}

		f.logger.Warnf("[BlockFeed] ignoring %d blocks that do not connect to genesis, parent %s not found", unconnected, missing)
	}

	if stale := len(order) - unconnected - len(chain); stale > 0 {
		f.logger.Warnf("[BlockFeed] skipping %d blocks that are not on the best chain", stale)
		prometheusBlockFeedStale.Add(float64(stale))
	}

	if endReached {
		chain = chain[:endHeight+1]
	}

	f.logger.Infof("[BlockFeed] best chain has tip %s at height %d", best.hash, best.height)

	return chain, nil
}

// resolve sets the height, cumulative work and connected flag of entry and of every
// unresolved ancestor. It returns the hash of the first missing parent, if any.
func resolve(index map[chainhash.Hash]*indexEntry, entry *indexEntry) *chainhash.Hash {
	var (
		path    []*indexEntry
		missing *chainhash.Hash
	)

	// walk up to a resolved block, a genesis block or a missing parent
	for e := entry; e != nil && !e.resolved; {
		path = append(path, e)

		if e.prev.IsEqual(&chainhash.Hash{}) {
			break
		}

		parent, ok := index[e.prev]
		if !ok {
			missing = &e.prev
			break
		}

		e.parent = parent
		e = parent
	}

	for i := len(path) - 1; i >= 0; i-- {
		e := path[i]
		e.resolved = true

		switch {
		case e.prev.IsEqual(&chainhash.Hash{}):
			e.connected = true
			e.work = util.CalculateWork(nil, e.bits)
		case e.parent != nil && e.parent.connected:
			e.connected = true
			e.height = e.parent.height + 1
			e.work = util.CalculateWork(e.parent.work, e.bits)
		}
	}

	return missing
}

// deliver loads the blocks of chain in a producer goroutine and hands them to fn in order.
func (f *Feed) deliver(ctx context.Context, chain []*indexEntry, fn func(block *model.Block) error) (uint32, error) {
	g, gCtx := errgroup.WithContext(ctx)

	blocksCh := make(chan *rawBlock, decodedBlocksBuffer)

	g.Go(func() error {
		defer close(blocksCh)

		for _, entry := range chain {
			block, err := f.load(entry.loc)
			if err != nil {
				return err
			}

			select {
			case blocksCh <- block:
			case <-gCtx.Done():
				return gCtx.Err()
			}
		}

		return nil
	})

	var (
		height    uint32
		delivered bool
	)

	g.Go(func() error {
		for raw := range blocksCh {
			if err := gCtx.Err(); err != nil {
				return err
			}

			next := uint32(0)
			if delivered {
				next = height + 1
			}

			block := model.NewBlock(next, raw.header, raw.txCount, raw.txs, raw.declared)

			if next == 0 && f.settings.ChainCfgParams != nil && !block.Hash.IsEqual(f.settings.ChainCfgParams.GenesisHash) {
				f.logger.Warnf("[BlockFeed] genesis block %s does not match %s genesis %s", block.Hash, f.settings.ChainCfgParams.Name, f.settings.ChainCfgParams.GenesisHash)
			}

			if err := fn(block); err != nil {
				return err
			}

			height = next
			delivered = true

			prometheusBlockFeedDelivered.Inc()
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return height, err
	}

	return height, nil
}

func (f *Feed) load(loc blockLocation) (*rawBlock, error) {
	// expired handles are closed here, not replaced in place
	f.files.DeleteExpired()

	var file *os.File

	if item := f.files.Get(loc.path); item != nil {
		file = item.Value()
	} else {
		var err error
		if file, err = os.Open(loc.path); err != nil {
			return nil, errors.NewStorageError("failed to open block file %s", loc.path, err)
		}

		f.files.Set(loc.path, file, ttlcache.DefaultTTL)
	}

	return readBlock(file, loc)
}
