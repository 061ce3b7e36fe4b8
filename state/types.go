// Copyright 2026 Agora Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package state

import (
	"math/big"
	"strconv"

	"github.com/agoralabs-io/agora/ledger"
	"github.com/google/uuid"
)

// Status represents a proposal's position in its lifecycle
type Status int

const (
	// StatusPending is an optimistic local proposal awaiting on-chain
	// confirmation
	StatusPending Status = iota
	// StatusConfirmed is a proposal with a known on-chain identifier
	StatusConfirmed
	// StatusFinalized is a defeated proposal closed without execution
	StatusFinalized
	// StatusExecuted is a passed proposal that has been executed
	StatusExecuted
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusFinalized:
		return "finalized"
	case StatusExecuted:
		return "executed"
	default:
		return "unknown"
	}
}

// Terminal returns true if no further transitions are modeled from this
// status
func (s Status) Terminal() bool {
	return s == StatusFinalized || s == StatusExecuted
}

// CanTransitionTo returns true if the state machine permits moving from
// this status to the given one. Self-transitions are permitted as no-ops.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusPending:
		// Confirmation happens before finalize/execute, but a single
		// observation may report both at once
		return true
	case StatusConfirmed:
		return next == StatusFinalized || next == StatusExecuted
	default:
		return false
	}
}

// Proposal is the store's record of a governance proposal. VotesFor and
// VotesAgainst are token-base-unit weights and must never pass through
// floating point.
type Proposal struct {
	// Id is the on-chain identifier, 0 until confirmed
	Id uint64
	// LocalKey is the stable lookup key. It starts as a client-generated
	// opaque value and is replaced by the on-chain id once known.
	LocalKey     string
	Description  string
	Creator      string
	Executor     string
	Status       Status
	VotesFor     *big.Int
	VotesAgainst *big.Int
	// CreatedAt is the chain timestamp in seconds, 0 until known
	CreatedAt uint64
	// Deadline is the chain-reported vote deadline in seconds, 0 if the
	// chain does not report one
	Deadline uint64
	// VoterChoices maps normalized voter addresses to their cast choice
	VoterChoices map[string]ledger.Choice
}

// Key returns the current lookup key for the proposal
func (p *Proposal) Key() string {
	return p.LocalKey
}

// VoteWindowEnd returns the unix second at which voting closes, derived
// from the configured fixed vote duration when one is set, else from the
// chain-reported deadline. Returns 0 when the window end is not yet known.
func (p *Proposal) VoteWindowEnd(voteDuration uint64) uint64 {
	if voteDuration > 0 && p.CreatedAt > 0 {
		return p.CreatedAt + voteDuration
	}
	return p.Deadline
}

// TotalVotes returns the sum of for and against weights
func (p *Proposal) TotalVotes() *big.Int {
	ret := new(big.Int)
	if p.VotesFor != nil {
		ret.Add(ret, p.VotesFor)
	}
	if p.VotesAgainst != nil {
		ret.Add(ret, p.VotesAgainst)
	}
	return ret
}

func (p *Proposal) copy() *Proposal {
	ret := *p
	if p.VotesFor != nil {
		ret.VotesFor = new(big.Int).Set(p.VotesFor)
	}
	if p.VotesAgainst != nil {
		ret.VotesAgainst = new(big.Int).Set(p.VotesAgainst)
	}
	ret.VoterChoices = make(map[string]ledger.Choice, len(p.VoterChoices))
	for voter, choice := range p.VoterChoices {
		ret.VoterChoices[voter] = choice
	}
	return &ret
}

// Observation is a proposal sighting from any source (backend list, chain
// event, chain state read) in store shape. Nil vote fields mean the source
// did not report them.
type Observation struct {
	Id           uint64
	Creator      string
	Description  string
	Executor     string
	VotesFor     *big.Int
	VotesAgainst *big.Int
	CreatedAt    uint64
	Deadline     uint64
	Executed     bool
	Finalized    bool
}

func (o *Observation) status() Status {
	switch {
	case o.Executed:
		return StatusExecuted
	case o.Finalized:
		return StatusFinalized
	default:
		return StatusConfirmed
	}
}

// KeyForId returns the store key used for a confirmed on-chain id
func KeyForId(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// NewLocalKey generates an opaque key for an optimistic proposal
func NewLocalKey() string {
	return "local-" + uuid.NewString()
}
