// Package replay builds the utxo set by applying blocks in height order and hands the
// finished set to the exporter.
package replay

import (
	"context"
	"time"

	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
	"github.com/bsv-blockchain/utxodump/errors"
	"github.com/bsv-blockchain/utxodump/model"
	"github.com/bsv-blockchain/utxodump/services/export"
	"github.com/bsv-blockchain/utxodump/settings"
	"github.com/bsv-blockchain/utxodump/stores/sink"
	"github.com/bsv-blockchain/utxodump/stores/utxoset"
	"github.com/bsv-blockchain/utxodump/ulogger"
	"github.com/bsv-blockchain/utxodump/util"
	"github.com/looplab/fsm"
	"github.com/ordishs/gocore"
)

var _ Handler = (*Replayer)(nil)

// Replayer owns the utxo set and the run counters for a single run. It is not safe for
// concurrent use; the driver delivers blocks one at a time.
type Replayer struct {
	logger   ulogger.Logger
	settings *settings.Settings
	exporter *export.Exporter
	sink     sink.Sink
	fsm      *fsm.FSM
	stats    *gocore.Stat

	set        *utxoset.Set
	counters   Counters
	lastHeight uint32
	result     *export.Result
}

func New(logger ulogger.Logger, tSettings *settings.Settings, exporter *export.Exporter, s sink.Sink) *Replayer {
	initPrometheusMetrics()

	return &Replayer{
		logger:   logger,
		settings: tSettings,
		exporter: exporter,
		sink:     s,
		fsm:      NewFiniteStateMachine(),
		stats:    gocore.NewStat("replay"),
	}
}

// OnStart allocates the set, pre-sized to replay_expectedSetSize, and records the start height.
func (r *Replayer) OnStart(ctx context.Context, height uint32) error {
	expectedSize, err := safeconversion.IntToUint32(max(r.settings.Replay.ExpectedSetSize, 1))
	if err != nil {
		return errors.NewConfigurationError("[Replay] invalid replay_expectedSetSize %d", r.settings.Replay.ExpectedSetSize, err)
	}

	if err = r.event(ctx, EventStart); err != nil {
		return err
	}

	r.set = utxoset.New(expectedSize)
	r.counters = Counters{StartHeight: height}

	r.logger.Infof("[Replay] starting at height %d, expecting %s utxos", height, util.FormatNumber(uint64(expectedSize)))

	return nil
}

// OnBlock applies block to the set. Heights must be strictly increasing and not below
// the start height. A failed block terminates the run.
func (r *Replayer) OnBlock(ctx context.Context, block *model.Block) error {
	if err := ctx.Err(); err != nil {
		return errors.NewContextCanceledError("[Replay] block %d", block.Height, err)
	}

	state := r.fsm.Current()
	if state != StateStarted && state != StateReplaying {
		return errors.NewStateError("[Replay] cannot apply block %d in state %s", block.Height, state)
	}

	// a rejected block leaves the state untouched
	if block.Height < r.counters.StartHeight {
		return errors.NewInvalidArgumentError("[Replay] block %d is below start height %d", block.Height, r.counters.StartHeight)
	}

	if r.counters.Blocks > 0 && block.Height <= r.lastHeight {
		return errors.NewInvalidArgumentError("[Replay] block %d does not follow block %d", block.Height, r.lastHeight)
	}

	if state == StateStarted {
		if err := r.event(ctx, EventReplay); err != nil {
			return err
		}
	}

	start := time.Now()
	before := r.counters

	if err := ApplyBlock(r.logger, r.set, block, &r.counters, ApplyOptions{
		AllowDuplicateCoinbase: r.settings.Replay.AllowDuplicateCoinbase,
	}); err != nil {
		r.abort(ctx)
		return err
	}

	r.counters.Blocks++
	r.lastHeight = block.Height

	r.stats.NewStat("ApplyBlock").AddTime(start)
	prometheusReplayApplyBlock.Observe(float64(time.Since(start).Microseconds()) / 1_000)
	prometheusReplayBlocks.Inc()
	prometheusReplayTransactions.Add(float64(r.counters.Transactions - before.Transactions))
	prometheusReplayInputs.Add(float64(r.counters.Inputs - before.Inputs))
	prometheusReplayOutputs.Add(float64(r.counters.Outputs - before.Outputs))
	prometheusReplayDuplicateCoinbases.Add(float64(r.counters.DuplicateCoinbases - before.DuplicateCoinbases))
	prometheusReplaySetSize.Set(float64(r.set.Len()))
	prometheusReplayHeight.Set(float64(block.Height))

	if interval := r.settings.Replay.ProgressInterval; interval > 0 && r.counters.Blocks%uint64(interval) == 0 {
		r.logger.Infof("[Replay] height %d: %s transactions, %s utxos",
			block.Height,
			util.FormatNumber(r.counters.Transactions),
			util.FormatNumber(uint64(r.set.Len())),
		)
	}

	return nil
}

// OnComplete records the end height, exports the set once and logs the final report.
// The run is terminated whether or not the export succeeds.
func (r *Replayer) OnComplete(ctx context.Context, height uint32) error {
	if r.counters.Blocks > 0 && height < r.lastHeight {
		return errors.NewInvalidArgumentError("[Replay] end height %d is below last applied block %d", height, r.lastHeight)
	}

	if err := r.event(ctx, EventExport); err != nil {
		return err
	}

	r.counters.EndHeight = height

	start := time.Now()

	result, err := r.exporter.Export(ctx, r.set, r.sink)
	r.result = result

	r.stats.NewStat("Export").AddTime(start)
	r.report()

	if err != nil {
		r.abort(ctx)
		return errors.NewProcessingError("[Replay] export of %d utxos failed", r.set.Len(), err)
	}

	return r.event(ctx, EventTerminate)
}

// Counters returns a copy of the run counters.
func (r *Replayer) Counters() Counters {
	return r.counters
}

// Set returns the utxo set, nil before OnStart. It must not be mutated by the caller.
func (r *Replayer) Set() *utxoset.Set {
	return r.set
}

// Result returns the export result, nil before OnComplete.
func (r *Replayer) Result() *export.Result {
	return r.result
}

func (r *Replayer) State() string {
	return r.fsm.Current()
}

func (r *Replayer) report() {
	r.logger.Infof("[Replay] heights    : %d - %d", r.counters.StartHeight, r.counters.EndHeight)
	r.logger.Infof("[Replay] blocks     : %s", util.FormatNumber(r.counters.Blocks))
	r.logger.Infof("[Replay] transactions: %s", util.FormatNumber(r.counters.Transactions))
	r.logger.Infof("[Replay] inputs     : %s", util.FormatNumber(r.counters.Inputs))
	r.logger.Infof("[Replay] outputs    : %s", util.FormatNumber(r.counters.Outputs))
	r.logger.Infof("[Replay] utxos      : %s", util.FormatNumber(uint64(r.set.Len())))

	if r.counters.DuplicateCoinbases > 0 {
		r.logger.Infof("[Replay] duplicate coinbase outputs: %d", r.counters.DuplicateCoinbases)
	}

	if r.result != nil {
		r.logger.Infof("[Replay] exported   : %s (%s failed, %s retried) in %s",
			util.FormatNumber(r.result.Written),
			util.FormatNumber(r.result.Failed),
			util.FormatNumber(r.result.Retried),
			r.result.Duration,
		)
	}
}

func (r *Replayer) event(ctx context.Context, event string) error {
	if err := r.fsm.Event(ctx, event); err != nil {
		return errors.NewStateError("[Replay] %s is not allowed in state %s", event, r.fsm.Current(), err)
	}

	return nil
}

// Abort terminates a run that cannot complete, for example when the block source
// fails. It does nothing once the run is terminated.
func (r *Replayer) Abort(ctx context.Context) {
	if r.fsm.Current() == StateTerminated {
		return
	}

	r.abort(ctx)
}

func (r *Replayer) abort(ctx context.Context) {
	// the run context may already be cancelled
	if err := r.fsm.Event(context.WithoutCancel(ctx), EventAbort); err != nil {
		r.logger.Warnf("[Replay] failed to abort in state %s: %v", r.fsm.Current(), err)
	}
}
