package replay

import (
	"github.com/looplab/fsm"
)

// Replayer lifecycle states. The set is only mutated in StateReplaying.
const (
	StateUninitialized = "UNINITIALIZED"
	StateStarted       = "STARTED"
	StateReplaying     = "REPLAYING"
	StateExported      = "EXPORTED"
	StateTerminated    = "TERMINATED"
)

const (
	EventStart     = "START"
	EventReplay    = "REPLAY"
	EventExport    = "EXPORT"
	EventTerminate = "TERMINATE"
	EventAbort     = "ABORT"
)

// NewFiniteStateMachine creates the replayer lifecycle:
// - START: Uninitialized -> Started
// - REPLAY: Started -> Replaying (first block)
// - EXPORT: Started, Replaying -> Exported
// - TERMINATE: Exported -> Terminated
// - ABORT: any live state -> Terminated
// No transition moves backwards.
func NewFiniteStateMachine(opts ...func(*fsm.FSM)) *fsm.FSM {
	finiteStateMachine := fsm.NewFSM(
		StateUninitialized,
		fsm.Events{
			{
				Name: EventStart,
				Src:  []string{StateUninitialized},
				Dst:  StateStarted,
			},
			{
				Name: EventReplay,
				Src:  []string{StateStarted},
				Dst:  StateReplaying,
			},
			{
				Name: EventExport,
				Src: []string{
					StateStarted,
					StateReplaying,
				},
				Dst: StateExported,
			},
			{
				Name: EventTerminate,
				Src:  []string{StateExported},
				Dst:  StateTerminated,
			},
			{
				Name: EventAbort,
				Src: []string{
					StateUninitialized,
					StateStarted,
					StateReplaying,
					StateExported,
				},
				Dst: StateTerminated,
			},
		},
		fsm.Callbacks{},
	)

	for _, opt := range opts {
		opt(finiteStateMachine)
	}

	return finiteStateMachine
}
