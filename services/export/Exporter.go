// Package export writes the final utxo set to a sink.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/bsv-blockchain/utxodump/errors"
	"github.com/bsv-blockchain/utxodump/model"
	"github.com/bsv-blockchain/utxodump/settings"
	"github.com/bsv-blockchain/utxodump/stores/sink"
	"github.com/bsv-blockchain/utxodump/stores/utxoset"
	"github.com/bsv-blockchain/utxodump/ulogger"
	"github.com/bsv-blockchain/utxodump/util"
	"github.com/bsv-blockchain/utxodump/util/retry"
)

// Result summarizes one export.
type Result struct {
	Written uint64
	Failed  uint64
	Retried uint64

	// FailedOutpoints holds the first failures, up to export_maxReportedFailures
	FailedOutpoints []string
	Duration        time.Duration
}

type Exporter struct {
	logger   ulogger.Logger
	settings *settings.Settings
}

func New(logger ulogger.Logger, tSettings *settings.Settings) *Exporter {
	initPrometheusMetrics()

	return &Exporter{
		logger:   logger,
		settings: tSettings,
	}
}

// Export writes one record per entry of set to s, in batches of s.BatchSize() and in no
// particular order, then flushes s. A batch is retried with backoff while the sink reports
// a transient error. Records that still fail are collected and reported in a single
// ERR_EXPORT_INCOMPLETE error once every other batch has been written; a record only
// counts as written once the sink accepted the batch holding it. A failed flush is
// reported the same way. A cancelled context stops the export early.
func (e *Exporter) Export(ctx context.Context, set *utxoset.Set, s sink.Sink) (*Result, error) {
	start := time.Now()
	result := &Result{}

	defer func() {
		result.Duration = time.Since(start)
		prometheusExportDuration.Observe(result.Duration.Seconds())
	}()

	e.logger.Infof("[Export] exporting %s utxos", util.FormatNumber(uint64(set.Len())))

	run := &exportRun{
		exporter:         e,
		sink:             s,
		result:           result,
		batchSize:        max(s.BatchSize(), 1),
		progressInterval: uint64(max(e.settings.Export.ProgressInterval, 1)), //nolint:gosec
	}

	run.nextProgress = run.progressInterval

	var stopErr error

	set.Iterate(func(key model.Key, entry utxoset.Entry) bool {
		if ctx.Err() != nil {
			return false
		}

		run.batch = append(run.batch, model.NewRecord(key, entry.Height, entry.Value, entry.Address, entry.Coinbase))

		if len(run.batch) < run.batchSize {
			return true
		}

		stopErr = run.write(ctx)

		return stopErr == nil
	})

	if stopErr == nil && ctx.Err() == nil {
		stopErr = run.write(ctx)
	}

	if stopErr == nil {
		stopErr = ctx.Err()
	}

	if stopErr != nil {
		return result, errors.NewContextCanceledError("[Export] cancelled after writing %d records", result.Written, stopErr)
	}

	if _, err := retry.Retry(ctx, e.logger, func() (struct{}, error) {
		return struct{}{}, s.Flush(ctx)
	}, e.retryOptions("[Export] flushing sink")...); err != nil {
		if errors.IsContextError(err) {
			return result, errors.NewContextCanceledError("[Export] cancelled while flushing sink", err)
		}

		e.logger.Errorf("[Export] failed to flush sink after %d written records: %v", result.Written, err)

		data := run.incomplete()
		data.FlushFailed = true
		data.LastReason = err.Error()

		return result, errors.NewExportIncompleteError(data, err)
	}

	if result.Failed > 0 {
		return result, errors.NewExportIncompleteError(run.incomplete(), nil)
	}

	e.logger.Infof("[Export] exported %s records in %s", util.FormatNumber(result.Written), time.Since(start))

	return result, nil
}

// exportRun is the state of a single Export.
type exportRun struct {
	exporter         *Exporter
	sink             sink.Sink
	result           *Result
	batch            []*model.Record
	batchSize        int
	progressInterval uint64
	nextProgress     uint64
	lastErr          error
}

// write sends the pending batch to the sink and accounts for every record in it. Only a
// context error is returned; any other failure is recorded against the records it covers.
func (r *exportRun) write(ctx context.Context) error {
	if len(r.batch) == 0 {
		return nil
	}

	batch := r.batch
	r.batch = make([]*model.Record, 0, r.batchSize)

	attempts := 0

	_, err := retry.Retry(ctx, r.exporter.logger, func() (struct{}, error) {
		attempts++
		return struct{}{}, r.sink.Write(ctx, batch)
	}, r.exporter.retryOptions(fmt.Sprintf("[Export] writing %d records", len(batch)))...)

	if attempts > 1 {
		r.result.Retried += uint64(attempts - 1) //nolint:gosec
		prometheusExportRetried.Add(float64(attempts - 1))
	}

	if err == nil {
		r.written(len(batch))
		return nil
	}

	if errors.IsContextError(err) || ctx.Err() != nil {
		return err
	}

	failed := sink.IDs(batch)

	var partial *errors.PartialWriteErrData
	if errors.AsData(err, &partial) && len(partial.IDs) <= len(batch) {
		failed = partial.IDs
	}

	r.lastErr = err

	r.exporter.logger.Errorf("[Export] failed to write %d of %d records: %v", len(failed), len(batch), err)

	for _, id := range failed {
		if len(r.result.FailedOutpoints) < r.exporter.settings.Export.MaxReportedFailures {
			r.result.FailedOutpoints = append(r.result.FailedOutpoints, id)
		}
	}

	r.result.Failed += uint64(len(failed))
	prometheusExportFailed.Add(float64(len(failed)))

	r.written(len(batch) - len(failed))

	return nil
}

func (r *exportRun) written(n int) {
	if n <= 0 {
		return
	}

	r.result.Written += uint64(n)
	prometheusExportWritten.Add(float64(n))

	if r.result.Written >= r.nextProgress {
		r.exporter.logger.Infof("[Export] written %s records", util.FormatNumber(r.result.Written))
		r.nextProgress = (r.result.Written/r.progressInterval + 1) * r.progressInterval
	}
}

func (r *exportRun) incomplete() *errors.ExportIncompleteErrData {
	data := &errors.ExportIncompleteErrData{
		Failed:    r.result.Failed,
		Written:   r.result.Written,
		Outpoints: r.result.FailedOutpoints,
		Truncated: r.result.Failed > uint64(len(r.result.FailedOutpoints)),
	}

	if r.lastErr != nil {
		data.LastReason = r.lastErr.Error()
	}

	return data
}

func (e *Exporter) retryOptions(message string) []retry.Options {
	return []retry.Options{
		retry.WithRetryCount(max(e.settings.Export.RetryCount, 1)),
		retry.WithBackoffMultiplier(e.settings.Export.BackoffMultiplier),
		retry.WithBackoffDurationType(e.settings.Export.BackoffDurationType),
		retry.WithRetryIf(errors.IsRetryableError),
		retry.WithMessage(message),
	}
}
