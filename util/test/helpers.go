// Package test holds builders shared by the package tests: settings tuned for fast
// runs and synthetic transactions, blocks and block files.
package test

import (
	"encoding/binary"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/bscript"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/bsv-blockchain/go-chaincfg"
	"github.com/bsv-blockchain/utxodump/model"
	"github.com/bsv-blockchain/utxodump/settings"
	"github.com/stretchr/testify/require"
)

const (
	TestAddress  = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"
	OtherAddress = "1H4zUpyFsL2xFmqTCcVHsXHBVpKzu7JQAP"
	ThirdAddress = "1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2"
)

// MainNetMagic is the block file magic of mainnet, as found on disk.
var MainNetMagic = []byte{0xf9, 0xbe, 0xb4, 0xd9}

func CreateBaseTestSettings(t *testing.T) *settings.Settings {
	t.Helper()

	tSettings := settings.NewSettings()
	tSettings.ChainCfgParams = &chaincfg.RegressionNetParams
	tSettings.DataFolder = t.TempDir()
	tSettings.Replay.ExpectedSetSize = 1024
	tSettings.Replay.ProgressInterval = 1
	tSettings.Replay.StoreURL = &url.URL{Scheme: "memory"}
	tSettings.Export.RetryCount = 3
	tSettings.Export.BackoffMultiplier = 1
	tSettings.Export.BackoffDurationType = time.Millisecond
	tSettings.Export.ProgressInterval = 1
	tSettings.BlockFeed.BlocksDir = t.TempDir()
	tSettings.BlockFeed.MaxBlockSize = 1 << 20
	tSettings.BlockFeed.MaxOpenFiles = 2

	return tSettings
}

// CoinbaseTx builds a coinbase paying values to TestAddress. The height is pushed in
// the unlocking script so coinbases at different heights get different txids.
func CoinbaseTx(t *testing.T, height uint32, values ...uint64) *bt.Tx {
	t.Helper()

	heightBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(heightBytes, height)

	tx := bt.NewTx()

	input := &bt.Input{
		PreviousTxOutIndex: 0xffffffff,
		SequenceNumber:     0xffffffff,
		UnlockingScript:    bscript.NewFromBytes(append([]byte{0x04}, heightBytes...)),
	}
	require.NoError(t, input.PreviousTxIDAdd(&chainhash.Hash{}))

	tx.Inputs = append(tx.Inputs, input)

	for _, value := range values {
		require.NoError(t, tx.AddP2PKHOutputFromAddress(TestAddress, value))
	}

	return tx
}

// SpendTx builds a transaction spending the given outpoints and paying values to OtherAddress.
func SpendTx(t *testing.T, spends []model.Key, values ...uint64) *bt.Tx {
	t.Helper()

	addresses := make([]string, len(values))
	for i := range addresses {
		addresses[i] = OtherAddress
	}

	return SpendToTx(t, spends, addresses, values)
}

// SpendToTx builds a transaction spending the given outpoints and paying values[i] to addresses[i].
func SpendToTx(t *testing.T, spends []model.Key, addresses []string, values []uint64) *bt.Tx {
	t.Helper()

	require.Len(t, addresses, len(values))

	tx := bt.NewTx()

	for _, spend := range spends {
		txID := spend.TxID()

		input := &bt.Input{
			PreviousTxOutIndex: spend.Index(),
			SequenceNumber:     0xffffffff,
			UnlockingScript:    bscript.NewFromBytes([]byte{0x51}),
		}
		require.NoError(t, input.PreviousTxIDAdd(&txID))

		tx.Inputs = append(tx.Inputs, input)
	}

	for i, value := range values {
		require.NoError(t, tx.AddP2PKHOutputFromAddress(addresses[i], value))
	}

	return tx
}

// NewTestBlock builds a block on top of prev and returns its header and wire bytes.
func NewTestBlock(t *testing.T, prev *chainhash.Hash, txs ...*bt.Tx) (*model.BlockHeader, []byte) {
	t.Helper()

	merkleRoot := &chainhash.Hash{}
	if len(txs) > 0 {
		merkleRoot = txs[0].TxIDChainHash()
	}

	header := &model.BlockHeader{
		Version:        1,
		HashPrevBlock:  prev,
		HashMerkleRoot: merkleRoot,
		Timestamp:      uint32(time.Now().Unix()), //nolint:gosec
		Bits:           [4]byte{0xff, 0xff, 0x7f, 0x20},
	}

	raw := header.Bytes()
	raw = append(raw, bt.VarInt(uint64(len(txs))).Bytes()...)

	for _, tx := range txs {
		raw = append(raw, tx.Bytes()...)
	}

	return header, raw
}

// Chain builds consecutive test blocks starting at genesis.
type Chain struct {
	t      *testing.T
	prev   chainhash.Hash
	Blocks []*model.Block
	Raw    [][]byte
}

func NewChain(t *testing.T) *Chain {
	return &Chain{t: t}
}

// Add appends a block holding txs and returns its model form.
func (c *Chain) Add(txs ...*bt.Tx) *model.Block {
	c.t.Helper()

	prev := c.prev

	header, raw := NewTestBlock(c.t, &prev, txs...)

	// the block sequence is driven by position, so make headers unique
	header.Nonce = uint32(len(c.Blocks)) //nolint:gosec
	raw = append(header.Bytes(), raw[model.BlockHeaderSize:]...)

	block := model.NewBlock(uint32(len(c.Blocks)), header, uint64(len(txs)), txs, nil) //nolint:gosec

	c.prev = block.Hash
	c.Blocks = append(c.Blocks, block)
	c.Raw = append(c.Raw, raw)

	return block
}

// WriteBlockFile writes blocks in the blk*.dat layout: magic, little-endian size, block.
func WriteBlockFile(t *testing.T, path string, magic []byte, blocks ...[]byte) {
	t.Helper()

	var data []byte

	for _, raw := range blocks {
		size := make([]byte, 4)
		binary.LittleEndian.PutUint32(size, uint32(len(raw))) //nolint:gosec

		data = append(data, magic...)
		data = append(data, size...)
		data = append(data, raw...)
	}

	require.NoError(t, os.WriteFile(path, data, 0o600))
}
