package model

import (
	"bytes"
	"io"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/bsv-blockchain/utxodump/errors"
)

type Input struct {
	PreviousTxID  chainhash.Hash
	PreviousIndex uint32
}

func (i Input) Key() Key {
	return NewKey(&i.PreviousTxID, i.PreviousIndex)
}

type Output struct {
	Value   uint64
	Address string
}

type Transaction struct {
	TxID                chainhash.Hash
	Coinbase            bool
	DeclaredInputCount  uint64
	DeclaredOutputCount uint64
	Inputs              []Input
	Outputs             []Output
}

type Block struct {
	Height          uint32
	Hash            chainhash.Hash
	PreviousHash    chainhash.Hash
	DeclaredTxCount uint64
	Transactions    []*Transaction
}

// DeclaredCounts are the input and output counts a serialized transaction declares in
// its varints.
type DeclaredCounts struct {
	Inputs  uint64
	Outputs uint64
}

// ReadDeclaredCounts reads the input and output count varints of a serialized
// transaction, stepping over the inputs without decoding them.
func ReadDeclaredCounts(raw []byte) (DeclaredCounts, error) {
	var (
		counts DeclaredCounts
		n      bt.VarInt
	)

	r := bytes.NewReader(raw)

	if err := skip(r, 4); err != nil {
		return counts, errors.NewDataIntegrityError("missing version", err)
	}

	if _, err := n.ReadFrom(r); err != nil {
		return counts, errors.NewDataIntegrityError("missing input count", err)
	}

	counts.Inputs = uint64(n)

	for i := uint64(0); i < counts.Inputs; i++ {
		if err := skip(r, chainhash.HashSize+4); err != nil {
			return counts, errors.NewDataIntegrityError("input %d: missing outpoint", i, err)
		}

		if _, err := n.ReadFrom(r); err != nil {
			return counts, errors.NewDataIntegrityError("input %d: missing script length", i, err)
		}

		if err := skip(r, uint64(n)+4); err != nil {
			return counts, errors.NewDataIntegrityError("input %d: script of %d bytes is cut short", i, uint64(n), err)
		}
	}

	if _, err := n.ReadFrom(r); err != nil {
		return counts, errors.NewDataIntegrityError("missing output count", err)
	}

	counts.Outputs = uint64(n)

	return counts, nil
}

func skip(r *bytes.Reader, n uint64) error {
	if n > uint64(r.Len()) {
		return io.ErrUnexpectedEOF
	}

	_, err := r.Seek(int64(n), io.SeekCurrent) //nolint:gosec

	return err
}

// NewTransactionFromBT converts a decoded transaction. An output's address is the
// first one derivable from its locking script, or empty when there is none. The
// declared counts default to the decoded ones; NewBlock replaces them with the counts
// read from the serialized transaction when it has them.
func NewTransactionFromBT(tx *bt.Tx) *Transaction {
	t := &Transaction{
		TxID:                *tx.TxIDChainHash(),
		Coinbase:            tx.IsCoinbase(),
		DeclaredInputCount:  uint64(len(tx.Inputs)),
		DeclaredOutputCount: uint64(len(tx.Outputs)),
		Inputs:              make([]Input, 0, len(tx.Inputs)),
		Outputs:             make([]Output, 0, len(tx.Outputs)),
	}

	for _, input := range tx.Inputs {
		t.Inputs = append(t.Inputs, Input{
			PreviousTxID:  *input.PreviousTxIDChainHash(),
			PreviousIndex: input.PreviousTxOutIndex,
		})
	}

	for _, output := range tx.Outputs {
		t.Outputs = append(t.Outputs, Output{
			Value:   output.Satoshis,
			Address: outputAddress(output),
		})
	}

	return t
}

func outputAddress(output *bt.Output) string {
	if output.LockingScript == nil {
		return ""
	}

	addresses, err := output.LockingScript.Addresses()
	if err != nil || len(addresses) == 0 {
		return ""
	}

	return addresses[0]
}

// NewBlock builds a block at the given height from its header and decoded transactions.
// declared holds the counts read from each serialized transaction, in order; it may be
// nil for blocks built in memory.
func NewBlock(height uint32, header *BlockHeader, declaredTxCount uint64, txs []*bt.Tx, declared []DeclaredCounts) *Block {
	b := &Block{
		Height:          height,
		Hash:            *header.Hash(),
		PreviousHash:    *header.HashPrevBlock,
		DeclaredTxCount: declaredTxCount,
		Transactions:    make([]*Transaction, 0, len(txs)),
	}

	for i, tx := range txs {
		t := NewTransactionFromBT(tx)

		if i < len(declared) {
			t.DeclaredInputCount = declared[i].Inputs
			t.DeclaredOutputCount = declared[i].Outputs
		}

		b.Transactions = append(b.Transactions, t)
	}

	return b
}

// CheckCounts reports a data integrity error when the declared input or output count
// differs from the number of entries actually present, i.e. when the decoder and the
// serialized counts disagree.
func (t *Transaction) CheckCounts() error {
	if t.DeclaredInputCount != uint64(len(t.Inputs)) {
		return errors.NewDataIntegrityError("tx %s declares %d inputs but has %d", t.TxID, t.DeclaredInputCount, len(t.Inputs))
	}

	if t.DeclaredOutputCount != uint64(len(t.Outputs)) {
		return errors.NewDataIntegrityError("tx %s declares %d outputs but has %d", t.TxID, t.DeclaredOutputCount, len(t.Outputs))
	}

	return nil
}

// CheckCounts reports a data integrity error when the declared transaction count
// differs from the number of transactions present.
func (b *Block) CheckCounts() error {
	if b.DeclaredTxCount != uint64(len(b.Transactions)) {
		return errors.NewDataIntegrityError("block %s at height %d declares %d transactions but has %d", b.Hash, b.Height, b.DeclaredTxCount, len(b.Transactions))
	}

	return nil
}
