package replay

import (
	"github.com/bsv-blockchain/utxodump/errors"
	"github.com/bsv-blockchain/utxodump/model"
	"github.com/bsv-blockchain/utxodump/stores/utxoset"
	"github.com/bsv-blockchain/utxodump/ulogger"
)

// Counters accumulates what a replay has processed.
type Counters struct {
	StartHeight  uint32
	EndHeight    uint32
	Blocks       uint64
	Transactions uint64
	Inputs       uint64
	Outputs      uint64

	// DuplicateCoinbases counts coinbase outputs that replaced an earlier coinbase output with the same outpoint
	DuplicateCoinbases uint64
}

// ApplyOptions tunes ApplyBlock.
type ApplyOptions struct {
	// AllowDuplicateCoinbase lets a coinbase output replace a live coinbase output with the
	// same outpoint, as happened on mainnet at heights 91842 and 91880.
	AllowDuplicateCoinbase bool
}

// ApplyBlock applies every transaction of block to set, in order: spends of present
// outpoints are removed (coinbase inputs are skipped), then each output is inserted
// keyed by its position. Counters are updated with the declared counts.
//
// A declared count that differs from the iterated count, or an output colliding with a
// live entry, is returned as an error. The set is left partially updated in that case.
func ApplyBlock(logger ulogger.Logger, set *utxoset.Set, block *model.Block, counters *Counters, opts ApplyOptions) error {
	for _, tx := range block.Transactions {
		if err := tx.CheckCounts(); err != nil {
			return errors.NewDataIntegrityError("[ApplyBlock] block %d", block.Height, err)
		}

		if !tx.Coinbase {
			for _, input := range tx.Inputs {
				// a missing outpoint is expected, e.g. when replay did not start at genesis
				set.Spend(input.Key())
			}
		}

		for i, output := range tx.Outputs {
			key := model.NewKey(&tx.TxID, uint32(i)) //nolint:gosec
			entry := utxoset.Entry{
				Height:   block.Height,
				Value:    output.Value,
				Address:  output.Address,
				Coinbase: tx.Coinbase,
			}

			if err := set.Add(key, entry); err != nil {
				existing, _ := set.Get(key)

				if !opts.AllowDuplicateCoinbase || !tx.Coinbase || !existing.Coinbase {
					return errors.New(errors.ERR_UTXO_COLLISION, "[ApplyBlock] block %d tx %s output %d", block.Height, tx.TxID, i, err)
				}

				set.Replace(key, entry)
				counters.DuplicateCoinbases++

				logger.Warnf("[ApplyBlock] duplicate coinbase output %s at height %d replaces the one from height %d", key, block.Height, existing.Height)
			}
		}

		counters.Inputs += tx.DeclaredInputCount
		counters.Outputs += tx.DeclaredOutputCount
	}

	counters.Transactions += block.DeclaredTxCount

	if err := block.CheckCounts(); err != nil {
		return errors.NewDataIntegrityError("[ApplyBlock] block %d", block.Height, err)
	}

	return nil
}
