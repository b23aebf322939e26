package file

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
	"github.com/bsv-blockchain/utxodump/errors"
	"github.com/bsv-blockchain/utxodump/model"
)

// Extension of files written by the store.
const Extension = "utxo-set"

// Magic starts every utxo-set file.
var Magic = [8]byte{'U', '-', 'S', '-', '1', '.', '0', 0}

// EOFMarker follows the last record, where the next txid would be.
var EOFMarker = make([]byte, chainhash.HashSize)

const footerSize = chainhash.HashSize + 8 + 8

// Footer trails the EOF marker.
type Footer struct {
	RecordCount uint64
	TotalValue  uint64
}

// WriteRecord encodes record as
//
//	txid (32) | height<<1 | coinbase (4 LE) | index (4 LE) | value (8 LE) | address length (4 LE) | address
func WriteRecord(w io.Writer, record *model.Record) error {
	txID, err := chainhash.NewHashFromStr(record.TxID)
	if err != nil {
		return errors.NewInvalidArgumentError("invalid txid %q", record.TxID, err)
	}

	addressLen, err := safeconversion.IntToUint32(len(record.Address))
	if err != nil {
		return errors.NewInvalidArgumentError("address of %s is too long", record.ID(), err)
	}

	var flag uint32
	if record.Coinbase {
		flag = 1
	}

	b := make([]byte, 0, chainhash.HashSize+20+len(record.Address))
	b = append(b, txID[:]...)
	b = binary.LittleEndian.AppendUint32(b, record.Height<<1|flag)
	b = binary.LittleEndian.AppendUint32(b, record.IndexOut)
	b = binary.LittleEndian.AppendUint64(b, record.Value)
	b = binary.LittleEndian.AppendUint32(b, addressLen)
	b = append(b, record.Address...)

	_, err = w.Write(b)

	return err
}

// ReadRecord decodes the next record. io.EOF is returned, with a nil record, when the
// EOF marker is reached.
func ReadRecord(r io.Reader) (*model.Record, error) {
	var txID chainhash.Hash
	if n, err := io.ReadFull(r, txID[:]); err != nil {
		return nil, errors.NewStorageError("failed to read txid, expected 32 bytes got %d", n, err)
	}

	if bytes.Equal(txID[:], EOFMarker) {
		return nil, io.EOF
	}

	var b [20]byte
	if n, err := io.ReadFull(r, b[:]); err != nil {
		return nil, errors.NewStorageError("failed to read record of %s, expected 20 bytes got %d", txID, n, err)
	}

	encodedHeight := binary.LittleEndian.Uint32(b[0:4])

	address := make([]byte, binary.LittleEndian.Uint32(b[16:20]))
	if _, err := io.ReadFull(r, address); err != nil {
		return nil, errors.NewStorageError("failed to read address of %s", txID, err)
	}

	return &model.Record{
		TxID:     txID.String(),
		Height:   encodedHeight >> 1,
		Coinbase: encodedHeight&1 == 1,
		IndexOut: binary.LittleEndian.Uint32(b[4:8]),
		Value:    binary.LittleEndian.Uint64(b[8:16]),
		Address:  string(address),
	}, nil
}

func writeFooter(w io.Writer, footer Footer) error {
	b := make([]byte, 0, footerSize)
	b = append(b, EOFMarker...)
	b = binary.LittleEndian.AppendUint64(b, footer.RecordCount)
	b = binary.LittleEndian.AppendUint64(b, footer.TotalValue)

	_, err := w.Write(b)

	return err
}

// ReadHeader checks that r starts with Magic.
func ReadHeader(r io.Reader) error {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return errors.NewStorageError("error reading magic", err)
	}

	if magic != Magic {
		return errors.NewStorageError("not a utxo-set file, magic %q", magic[:])
	}

	return nil
}

// GetFooter reads the footer from the end of f. The read offset of f is moved.
func GetFooter(f *os.File) (*Footer, error) {
	if _, err := f.Seek(-footerSize, io.SeekEnd); err != nil {
		return nil, errors.NewStorageError("error seeking to EOF marker", err)
	}

	b := make([]byte, footerSize)
	if _, err := io.ReadFull(f, b); err != nil {
		return nil, errors.NewStorageError("error reading EOF marker", err)
	}

	if !bytes.Equal(b[:chainhash.HashSize], EOFMarker) {
		return nil, errors.NewStorageError("EOF marker not found")
	}

	return &Footer{
		RecordCount: binary.LittleEndian.Uint64(b[32:40]),
		TotalValue:  binary.LittleEndian.Uint64(b[40:48]),
	}, nil
}
