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

package agora

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/agoralabs-io/agora/backend"
	"github.com/agoralabs-io/agora/chain"
	"github.com/agoralabs-io/agora/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOwner = "0xOwner"

func TestCreateProposal(t *testing.T) {
	env := newTestEnv(t, testOwner, chain.WithCaller(testOwner))
	require.NoError(t, env.client.Start(context.Background()))

	p, err := env.client.CreateProposal(context.Background(), "fund the guild")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, uint64(1), p.Id)
	assert.Equal(t, "fund the guild", p.Description)
	assert.True(t, p.Status >= state.StatusConfirmed)

	// The optimistic entry and the confirmation must collapse into one
	assert.Eventually(t, func() bool {
		return len(env.client.Store().List()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestCreateProposalValidation(t *testing.T) {
	env := newTestEnv(t, testOwner)
	var vErr *ValidationError
	_, err := env.client.CreateProposal(context.Background(), "   ")
	require.ErrorAs(t, err, &vErr)

	envNoCaller := newTestEnv(t, "")
	_, err = envNoCaller.client.CreateProposal(context.Background(), "hello")
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Reason, "caller")
}

func TestCreateProposalRollback(t *testing.T) {
	env := newTestEnv(t, testOwner)
	env.mock.FailSubmissions(errors.New("nonce too low"))

	_, err := env.client.CreateProposal(context.Background(), "doomed")
	require.ErrorContains(t, err, "nonce too low")
	assert.Empty(
		t,
		env.client.Store().List(),
		"optimistic entry must be rolled back",
	)
}

func TestVoteOnProposal(t *testing.T) {
	env := newTestEnv(
		t,
		testOwner,
		chain.WithCaller(testOwner),
		chain.WithVoteWeight(big.NewInt(25)),
	)
	ctx := context.Background()
	id, err := env.mock.CreateProposal(ctx, "weighted vote")
	require.NoError(t, err)
	env.indexer.put(backend.ProposalDTO{Id: id, Description: "weighted vote"})

	require.NoError(t, env.client.VoteOnProposal(ctx, id, true))
	p, ok := env.client.Store().GetById(id)
	require.True(t, ok)
	// The checkpoint read replaces the default-weight optimistic tally
	// with the chain's weighted count
	assert.Zero(t, p.VotesFor.Cmp(big.NewInt(25)))
	assert.Zero(t, p.VotesAgainst.Sign())
}

func TestVoteOnProposalRepeatRejected(t *testing.T) {
	env := newTestEnv(t, testOwner, chain.WithCaller(testOwner))
	ctx := context.Background()
	id, err := env.mock.CreateProposal(ctx, "one vote each")
	require.NoError(t, err)
	env.indexer.put(backend.ProposalDTO{Id: id, Description: "one vote each"})

	require.NoError(t, env.client.VoteOnProposal(ctx, id, false))
	err = env.client.VoteOnProposal(ctx, id, true)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Reason, "already voted")
}

func TestExecuteProposal(t *testing.T) {
	window := uint64(100)
	clock := uint64(1_000_000)
	env := newTestEnv(
		t,
		testOwner,
		chain.WithOwner(testOwner),
		chain.WithCaller(testOwner),
		chain.WithQuorumThreshold(big.NewInt(1)),
		chain.WithVoteDuration(window),
		chain.WithNowFunc(func() uint64 { return clock }),
	)
	ctx := context.Background()
	require.NoError(t, env.client.Start(ctx))
	env.client.nowFunc = func() uint64 { return clock }

	id, err := env.mock.CreateProposal(ctx, "pay the auditors")
	require.NoError(t, err)
	env.indexer.put(
		backend.ProposalDTO{Id: id, Description: "pay the auditors"},
	)
	require.NoError(t, env.client.VoteOnProposal(ctx, id, true))

	// Window still open
	err = env.client.ExecuteProposal(ctx, id)
	var eErr *EligibilityError
	require.ErrorAs(t, err, &eErr)
	assert.NotEmpty(t, eErr.Reasons)

	clock += window
	require.NoError(t, env.client.ExecuteProposal(ctx, id))
	p, ok := env.client.Store().GetById(id)
	require.True(t, ok)
	assert.Equal(t, state.StatusExecuted, p.Status)

	// Repeat execution is refused
	err = env.client.ExecuteProposal(ctx, id)
	require.ErrorAs(t, err, &eErr)
	assert.Contains(t, eErr.Reasons, "proposal already executed")
}

func TestExecuteProposalNonOwner(t *testing.T) {
	clock := uint64(1_000_000)
	env := newTestEnv(
		t,
		"0xMallory",
		chain.WithOwner(testOwner),
		chain.WithCaller("0xMallory"),
		chain.WithQuorumThreshold(big.NewInt(1)),
		chain.WithVoteDuration(10),
		chain.WithNowFunc(func() uint64 { return clock }),
	)
	ctx := context.Background()
	require.NoError(t, env.client.Start(ctx))
	env.client.nowFunc = func() uint64 { return clock + 100 }

	id, err := env.mock.CreateProposal(ctx, "steal the treasury")
	require.NoError(t, err)
	require.NoError(t, env.client.VoteOnProposal(ctx, id, true))

	err = env.client.ExecuteProposal(ctx, id)
	var eErr *EligibilityError
	require.ErrorAs(t, err, &eErr)
	assert.Contains(t, eErr.Reasons, "only the owner may execute")
}

func TestFinalizeProposal(t *testing.T) {
	clock := uint64(1_000_000)
	env := newTestEnv(
		t,
		testOwner,
		chain.WithOwner(testOwner),
		chain.WithCaller(testOwner),
		chain.WithVoteDuration(10),
		chain.WithNowFunc(func() uint64 { return clock }),
	)
	ctx := context.Background()
	require.NoError(t, env.client.Start(ctx))
	env.client.nowFunc = func() uint64 { return clock + 100 }

	id, err := env.mock.CreateProposal(ctx, "defeated idea")
	require.NoError(t, err)
	require.NoError(t, env.client.VoteOnProposal(ctx, id, false))

	require.NoError(t, env.client.FinalizeProposal(ctx, id))
	assert.True(t, env.mock.Finalized(id))
	p, ok := env.client.Store().GetById(id)
	require.True(t, ok)
	assert.Equal(t, state.StatusFinalized, p.Status)
}

func TestFinalizePassedProposalRefused(t *testing.T) {
	clock := uint64(1_000_000)
	env := newTestEnv(
		t,
		testOwner,
		chain.WithOwner(testOwner),
		chain.WithCaller(testOwner),
		chain.WithVoteDuration(10),
		chain.WithNowFunc(func() uint64 { return clock }),
	)
	ctx := context.Background()
	require.NoError(t, env.client.Start(ctx))
	env.client.nowFunc = func() uint64 { return clock + 100 }

	id, err := env.mock.CreateProposal(ctx, "popular idea")
	require.NoError(t, err)
	require.NoError(t, env.client.VoteOnProposal(ctx, id, true))

	err = env.client.FinalizeProposal(ctx, id)
	var eErr *EligibilityError
	require.ErrorAs(t, err, &eErr)
	assert.Contains(t, eErr.Reasons, "proposal was not defeated")
	assert.Contains(t, eErr.Error(), "proposal was not defeated")
}

func TestExecuteUnknownProposal(t *testing.T) {
	env := newTestEnv(t, testOwner)
	require.NoError(t, env.client.Start(context.Background()))
	err := env.client.ExecuteProposal(context.Background(), 404)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Reason, "unknown proposal")
}
