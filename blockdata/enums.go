// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockdata

// Phase - what the worker is doing, for progress reporting
type Phase int

// all phases
const (
	PhaseInit Phase = iota
	PhaseHeaders
	PhaseOrganizeChain
	PhaseBuildDB
	PhaseScanAddresses
	PhaseRescan
	PhaseReady
)

// String - printable phase
func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "Init"
	case PhaseHeaders:
		return "Headers"
	case PhaseOrganizeChain:
		return "OrganizeChain"
	case PhaseBuildDB:
		return "BuildDB"
	case PhaseScanAddresses:
		return "ScanAddresses"
	case PhaseRescan:
		return "Rescan"
	case PhaseReady:
		return "Ready"
	default:
		return "Unknown"
	}
}

// Action - event announced through the callback
type Action int

// all actions
const (
	ActionReady Action = iota
	ActionNewBlock
	ActionRefresh
	ActionFailure
	ActionExited
)

// String - printable action
func (a Action) String() string {
	switch a {
	case ActionReady:
		return "Ready"
	case ActionNewBlock:
		return "NewBlock"
	case ActionRefresh:
		return "Refresh"
	case ActionFailure:
		return "Failure"
	case ActionExited:
		return "Exited"
	default:
		return "Unknown"
	}
}

// FailureKind - why the worker stopped
type FailureKind int

// all failure kinds
const (
	FailureNone FailureKind = iota
	FailureCorrupt
	FailureInvariant
	FailureIO
)

// String - printable failure kind
func (f FailureKind) String() string {
	switch f {
	case FailureNone:
		return "None"
	case FailureCorrupt:
		return "Corrupt"
	case FailureInvariant:
		return "Invariant"
	case FailureIO:
		return "IO"
	default:
		return "Unknown"
	}
}

// Callback - events and progress out of the worker
//
// implementations must not block: callbacks run on the worker thread
type Callback interface {
	Run(action Action, height uint32, info string)
	Progress(phase Phase, walletIDs []string, fraction float64, secondsRemaining uint32, numeric uint32)
}

// NoopCallback - callback that ignores everything
type NoopCallback struct{}

func (NoopCallback) Run(Action, uint32, string) {}

func (NoopCallback) Progress(Phase, []string, float64, uint32, uint32) {}
