package blockfeed

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/utxodump/errors"
	"github.com/bsv-blockchain/utxodump/model"
)

// rawBlock is a decoded block whose height is not known yet.
type rawBlock struct {
	header  *model.BlockHeader
	txCount  uint64
	txs      []*bt.Tx
	declared []model.DeclaredCounts
}

// blockLocation is where the data of one block record sits in a block file.
type blockLocation struct {
	path   string
	offset int64
	size   uint32
}

// scanBlockFile calls fn with the location and the header bytes of every block record
// in the file at path, skipping over the transactions. Scanning stops at the end of the
// file or at zero padding. A record cut short by the end of the file is reported through
// truncated, not as an error. Records larger than maxSize are rejected before anything
// is read from them.
func scanBlockFile(path string, magic []byte, maxSize uint32, fn func(loc blockLocation, header []byte) error) (truncated bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return false, errors.NewStorageError("failed to open block file %s", path, err)
	}

	defer f.Close()

	r := bufio.NewReaderSize(f, 1024*1024)

	var (
		prefix [8]byte
		zeros  [4]byte
		offset int64
	)

	for {
		n, err := io.ReadFull(r, prefix[:])
		if err == io.EOF {
			return false, nil
		}

		if n >= 4 && bytes.Equal(prefix[:4], zeros[:]) {
			// preallocated space after the last block
			return false, nil
		}

		if err != nil {
			return true, nil
		}

		if !bytes.Equal(prefix[:4], magic) {
			return false, errors.NewBlockInvalidError("block file %s: unexpected magic %x at offset %d", path, prefix[:4], offset)
		}

		size := binary.LittleEndian.Uint32(prefix[4:8])
		if size < model.BlockHeaderSize+1 {
			return false, errors.NewBlockInvalidError("block file %s: invalid block size %d at offset %d", path, size, offset)
		}

		if size > maxSize {
			return false, errors.NewBlockInvalidError("block file %s: block size %d at offset %d exceeds blockfeed_maxBlockSize %d", path, size, offset, maxSize)
		}

		header := make([]byte, model.BlockHeaderSize)
		if _, err = io.ReadFull(r, header); err != nil {
			return true, nil
		}

		rest := int(size) - model.BlockHeaderSize
		if n, err = r.Discard(rest); err != nil || n != rest {
			return true, nil
		}

		if err = fn(blockLocation{path: path, offset: offset + int64(len(prefix)), size: size}, header); err != nil {
			return false, err
		}

		offset += int64(len(prefix)) + int64(size)
	}
}

// readBlock reads and decodes the block record at loc from file.
func readBlock(file io.ReaderAt, loc blockLocation) (*rawBlock, error) {
	raw := make([]byte, loc.size)

	if _, err := file.ReadAt(raw, loc.offset); err != nil {
		return nil, errors.NewStorageError("block file %s: failed to read %d bytes at offset %d", loc.path, loc.size, loc.offset, err)
	}

	block, err := decodeBlock(raw)
	if err != nil {
		return nil, errors.NewBlockInvalidError("block file %s: block at offset %d", loc.path, loc.offset, err)
	}

	return block, nil
}

// decodeBlock decodes the header, transaction count and transactions of a raw block.
func decodeBlock(raw []byte) (*rawBlock, error) {
	header, err := model.NewBlockHeaderFromBytes(raw[:model.BlockHeaderSize])
	if err != nil {
		return nil, err
	}

	r := bytes.NewReader(raw[model.BlockHeaderSize:])

	var txCount bt.VarInt
	if _, err = txCount.ReadFrom(r); err != nil {
		return nil, errors.NewBlockInvalidError("failed to read transaction count of block %s", header.Hash(), err)
	}

	if uint64(txCount) > uint64(r.Len()) {
		return nil, errors.NewBlockInvalidError("block %s declares %d transactions in %d bytes", header.Hash(), uint64(txCount), r.Len())
	}

	block := &rawBlock{
		header:   header,
		txCount:  uint64(txCount),
		txs:      make([]*bt.Tx, 0, uint64(txCount)),
		declared: make([]model.DeclaredCounts, 0, uint64(txCount)),
	}

	body := raw[model.BlockHeaderSize:]

	for i := uint64(0); i < block.txCount; i++ {
		start := len(body) - r.Len()

		tx := &bt.Tx{}
		if _, err = tx.ReadFrom(r); err != nil {
			return nil, errors.NewBlockInvalidError("failed to read transaction %d of block %s", i, header.Hash(), err)
		}

		counts, err := model.ReadDeclaredCounts(body[start : len(body)-r.Len()])
		if err != nil {
			return nil, errors.NewBlockInvalidError("failed to read the counts of transaction %d of block %s", i, header.Hash(), err)
		}

		block.txs = append(block.txs, tx)
		block.declared = append(block.declared, counts)
	}

	if r.Len() != 0 {
		return nil, errors.NewBlockInvalidError("block %s has %d trailing bytes", header.Hash(), r.Len())
	}

	return block, nil
}
