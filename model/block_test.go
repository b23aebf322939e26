package model

import (
	"testing"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/bscript"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/bsv-blockchain/utxodump/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"

func coinbaseTx(t *testing.T) *bt.Tx {
	tx := bt.NewTx()

	input := &bt.Input{
		PreviousTxOutIndex: 0xffffffff,
		SequenceNumber:     0xffffffff,
		UnlockingScript:    bscript.NewFromBytes([]byte{0x03, 0x01, 0x00, 0x00}),
	}
	require.NoError(t, input.PreviousTxIDAdd(&chainhash.Hash{}))

	tx.Inputs = append(tx.Inputs, input)
	require.NoError(t, tx.AddP2PKHOutputFromAddress(testAddress, 5_000_000_000))

	return tx
}

func TestNewTransactionFromBT(t *testing.T) {
	t.Run("coinbase", func(t *testing.T) {
		tx := coinbaseTx(t)

		transaction := NewTransactionFromBT(tx)

		assert.True(t, transaction.Coinbase)
		assert.Equal(t, *tx.TxIDChainHash(), transaction.TxID)
		assert.Equal(t, uint64(1), transaction.DeclaredInputCount)
		require.Len(t, transaction.Outputs, 1)
		assert.Equal(t, uint64(5_000_000_000), transaction.Outputs[0].Value)
		assert.Equal(t, testAddress, transaction.Outputs[0].Address)
		require.NoError(t, transaction.CheckCounts())
	})

	t.Run("spend with non standard output", func(t *testing.T) {
		parent := coinbaseTx(t)

		tx := bt.NewTx()
		require.NoError(t, tx.From(parent.TxIDChainHash().String(), 0, parent.Outputs[0].LockingScript.String(), 5_000_000_000))

		tx.AddOutput(&bt.Output{Satoshis: 10, LockingScript: bscript.NewFromBytes([]byte{0x51})})

		transaction := NewTransactionFromBT(tx)

		assert.False(t, transaction.Coinbase)
		require.Len(t, transaction.Inputs, 1)
		assert.Equal(t, *parent.TxIDChainHash(), transaction.Inputs[0].PreviousTxID)
		assert.Equal(t, uint32(0), transaction.Inputs[0].PreviousIndex)
		assert.Equal(t, NewKey(parent.TxIDChainHash(), 0), transaction.Inputs[0].Key())
		assert.Equal(t, "", transaction.Outputs[0].Address)
	})
}

func TestTransactionCheckCounts(t *testing.T) {
	tests := []struct {
		name    string
		tx      Transaction
		wantErr bool
	}{
		{"matching", Transaction{DeclaredInputCount: 1, DeclaredOutputCount: 2, Inputs: make([]Input, 1), Outputs: make([]Output, 2)}, false},
		{"empty", Transaction{}, false},
		{"input mismatch", Transaction{DeclaredInputCount: 2, DeclaredOutputCount: 2, Inputs: make([]Input, 1), Outputs: make([]Output, 2)}, true},
		{"output mismatch", Transaction{DeclaredInputCount: 1, DeclaredOutputCount: 1, Inputs: make([]Input, 1), Outputs: make([]Output, 2)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tx.CheckCounts()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrDataIntegrity))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestBlockCheckCounts(t *testing.T) {
	header := &BlockHeader{HashPrevBlock: &chainhash.Hash{}, HashMerkleRoot: &chainhash.Hash{}}
	block := NewBlock(0, header, 1, []*bt.Tx{coinbaseTx(t)}, nil)

	require.NoError(t, block.CheckCounts())
	assert.Equal(t, *header.Hash(), block.Hash)

	block.DeclaredTxCount = 2
	err := block.CheckCounts()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDataIntegrity))
}

func TestReadDeclaredCounts(t *testing.T) {
	t.Run("coinbase", func(t *testing.T) {
		counts, err := ReadDeclaredCounts(coinbaseTx(t).Bytes())
		require.NoError(t, err)
		assert.Equal(t, DeclaredCounts{Inputs: 1, Outputs: 1}, counts)
	})

	t.Run("two outputs", func(t *testing.T) {
		tx := coinbaseTx(t)
		tx.AddOutput(&bt.Output{Satoshis: 10, LockingScript: bscript.NewFromBytes([]byte{0x51})})

		counts, err := ReadDeclaredCounts(tx.Bytes())
		require.NoError(t, err)
		assert.Equal(t, DeclaredCounts{Inputs: 1, Outputs: 2}, counts)
	})

	t.Run("cut short", func(t *testing.T) {
		raw := coinbaseTx(t).Bytes()

		// version, input count, outpoint and part of the unlocking script
		for _, n := range []int{3, 5, 41, 44} {
			_, err := ReadDeclaredCounts(raw[:n])
			require.Error(t, err, "length %d", n)
			assert.True(t, errors.Is(err, errors.ErrDataIntegrity))
		}
	})
}

func TestNewBlockDeclaredCounts(t *testing.T) {
	header := &BlockHeader{HashPrevBlock: &chainhash.Hash{}, HashMerkleRoot: &chainhash.Hash{}}

	t.Run("serialized counts replace the decoded ones", func(t *testing.T) {
		block := NewBlock(0, header, 1, []*bt.Tx{coinbaseTx(t)}, []DeclaredCounts{{Inputs: 1, Outputs: 1}})

		require.NoError(t, block.CheckCounts())
		require.NoError(t, block.Transactions[0].CheckCounts())
	})

	t.Run("decoder dropped an input", func(t *testing.T) {
		block := NewBlock(0, header, 1, []*bt.Tx{coinbaseTx(t)}, []DeclaredCounts{{Inputs: 2, Outputs: 1}})

		assert.Equal(t, uint64(2), block.Transactions[0].DeclaredInputCount)

		err := block.Transactions[0].CheckCounts()
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrDataIntegrity))
	})
}
