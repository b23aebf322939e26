package file

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/bsv-blockchain/utxodump/errors"
	"github.com/bsv-blockchain/utxodump/model"
)

// Reader reads a utxo-set file written by Store.
type Reader struct {
	file   *os.File
	reader *bufio.Reader
	footer *Footer
}

// Open checks the header and footer of the file at path and positions the reader on
// the first record.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewStorageError("failed to open %s", path, err)
	}

	footer, err := GetFooter(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	if _, err = f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, errors.NewStorageError("failed to rewind %s", path, err)
	}

	r := &Reader{
		file:   f,
		reader: bufio.NewReaderSize(f, bufferSize),
		footer: footer,
	}

	if err = ReadHeader(r.reader); err != nil {
		_ = f.Close()
		return nil, err
	}

	return r, nil
}

func (r *Reader) Footer() Footer {
	return *r.footer
}

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (*model.Record, error) {
	return ReadRecord(r.reader)
}

func (r *Reader) Close() error {
	return r.file.Close()
}

// VerifyChecksum compares the sha256 of the file at path with its .sha256 file.
func VerifyChecksum(path string) (bool, error) {
	expected, err := os.ReadFile(path + ".sha256")
	if err != nil {
		return false, errors.NewStorageError("failed to read checksum of %s", path, err)
	}

	fields := bytes.Fields(expected)
	if len(fields) != 2 || string(fields[1]) != filepath.Base(path) {
		return false, errors.NewStorageError("malformed checksum file for %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return false, errors.NewStorageError("failed to open %s", path, err)
	}

	defer f.Close()

	hasher := sha256.New()
	if _, err = io.Copy(hasher, f); err != nil {
		return false, errors.NewStorageError("failed to hash %s", path, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)) == string(fields[0]), nil
}
