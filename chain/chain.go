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

// Package chain defines the boundary to the governance contract. The
// engine consumes the contract through these narrow interfaces; events
// arrive over the event bus from whatever listener implementation backs
// them.
package chain

import (
	"context"
	"errors"
	"math/big"
)

// ErrProposalNotFound is returned by StateReader.GetProposal for an
// unknown proposal id
var ErrProposalNotFound = errors.New("proposal not found")

// ProposalState is the authoritative proposal struct as read directly
// from the contract. A read of this struct is a consistency checkpoint:
// its vote counts replace locally accumulated tallies wholesale.
type ProposalState struct {
	Id           uint64
	Description  string
	Creator      string
	Executor     string
	VotesFor     *big.Int
	VotesAgainst *big.Int
	// CreatedAt is the chain timestamp in seconds
	CreatedAt uint64
	// Deadline is the vote deadline in seconds, 0 if the contract does
	// not report one
	Deadline uint64
	Executed bool
}

// GovParams are the read-only governance parameters, loaded once per
// session. Address comparisons against Owner are case-insensitive.
type GovParams struct {
	// QuorumThreshold is the minimum total vote weight required before
	// execution is permitted
	QuorumThreshold *big.Int
	// Owner is the only address permitted to execute or finalize
	Owner string
	// VoteDuration is the fixed voting window in seconds, 0 if the
	// contract reports per-proposal deadlines instead
	VoteDuration uint64
}

// StateReader reads contract state directly from the chain
type StateReader interface {
	GetProposal(ctx context.Context, id uint64) (*ProposalState, error)
	HasVoted(ctx context.Context, id uint64, addr string) (bool, error)
	HasQuorum(ctx context.Context, id uint64) (bool, error)
	Owner(ctx context.Context) (string, error)
	QuorumThreshold(ctx context.Context) (*big.Int, error)
	VoteDuration(ctx context.Context) (uint64, error)
}

// TxSubmitter submits governance transactions. Each call returns only
// after the transaction has been accepted by the connected node, so a
// state read issued afterward reflects state at or after the write.
type TxSubmitter interface {
	CreateProposal(ctx context.Context, description string) (uint64, error)
	Vote(ctx context.Context, id uint64, support bool) error
	ExecuteProposal(ctx context.Context, id uint64) error
	FinalizeProposal(ctx context.Context, id uint64) error
}

// Params loads the governance parameters from a state reader
func Params(ctx context.Context, reader StateReader) (*GovParams, error) {
	owner, err := reader.Owner(ctx)
	if err != nil {
		return nil, err
	}
	quorum, err := reader.QuorumThreshold(ctx)
	if err != nil {
		return nil, err
	}
	voteDuration, err := reader.VoteDuration(ctx)
	if err != nil {
		return nil, err
	}
	return &GovParams{
		QuorumThreshold: quorum,
		Owner:           owner,
		VoteDuration:    voteDuration,
	}, nil
}
