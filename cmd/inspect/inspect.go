// Package inspect prints the footer, checksum status and leading records of a
// utxo-set file written by the file store.
package inspect

import (
	"fmt"
	"io"

	"github.com/bsv-blockchain/utxodump/errors"
	"github.com/bsv-blockchain/utxodump/stores/sink/file"
	"github.com/bsv-blockchain/utxodump/util"
)

// Run writes a summary of the file at path to w, followed by up to limit records.
// A checksum mismatch is reported as a data integrity error after the summary.
func Run(w io.Writer, path string, limit int) error {
	reader, err := file.Open(path)
	if err != nil {
		return err
	}

	defer reader.Close()

	footer := reader.Footer()

	fmt.Fprintf(w, "file        : %s\n", path)
	fmt.Fprintf(w, "records     : %s\n", util.FormatNumber(footer.RecordCount))
	fmt.Fprintf(w, "total value : %s satoshis\n", util.FormatNumber(footer.TotalValue))

	valid, checksumErr := file.VerifyChecksum(path)

	switch {
	case checksumErr != nil:
		fmt.Fprintf(w, "checksum    : unavailable (%v)\n", checksumErr)
	case valid:
		fmt.Fprintf(w, "checksum    : ok\n")
	default:
		fmt.Fprintf(w, "checksum    : MISMATCH\n")
	}

	for i := 0; i < limit; i++ {
		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return err
		}

		fmt.Fprintf(w, "%s\t%d\t%d\t%s\tcoinbase=%t\n", record.ID(), record.Height, record.Value, record.Address, record.Coinbase)
	}

	if checksumErr == nil && !valid {
		return errors.NewDataIntegrityError("checksum of %s does not match", path)
	}

	return nil
}
