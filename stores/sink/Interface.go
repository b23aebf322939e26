// Package sink defines the persistent stores the final utxo set is exported to.
package sink

import (
	"context"

	"github.com/bsv-blockchain/utxodump/model"
)

// Sink receives exported records in batches. Implementations are used from a single goroutine.
type Sink interface {
	// BatchSize is the largest number of records passed to a single Write.
	BatchSize() int

	// Write persists records. Upserting sinks overwrite a record with the same ID.
	// On error none of the records count as written, unless the error carries
	// *errors.PartialWriteErrData naming the ones that were not.
	Write(ctx context.Context, records []*model.Record) error

	// Flush finishes the export. Records accepted by Write are only durable once it returns nil.
	Flush(ctx context.Context) error

	// Close releases the connection. The sink must not be used afterwards.
	Close(ctx context.Context) error

	// Upsert reports whether writing the same record twice leaves a single copy.
	Upsert() bool
}

// IDs returns the ID of every record, in order.
func IDs(records []*model.Record) []string {
	ids := make([]string, len(records))
	for i, record := range records {
		ids[i] = record.ID()
	}

	return ids
}
