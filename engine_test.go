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
	"math/big"
	"testing"
	"time"

	"github.com/agoralabs-io/agora/backend"
	"github.com/agoralabs-io/agora/chain"
	"github.com/agoralabs-io/agora/event"
	"github.com/agoralabs-io/agora/ledger"
	"github.com/agoralabs-io/agora/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendSyncMergesList(t *testing.T) {
	env := newTestEnv(t, testOwner)
	env.indexer.put(backend.ProposalDTO{
		Id:          1,
		Description: "first",
		Creator:     "0xAlice",
		VotesFor:    backend.NewFlexBigInt(big.NewInt(10)),
	})
	env.indexer.put(backend.ProposalDTO{
		Id:          2,
		Description: "second",
		Executed:    true,
	})

	require.NoError(t, env.client.BackendSync(context.Background()))

	p1, ok := env.client.Store().GetById(1)
	require.True(t, ok)
	assert.Equal(t, "first", p1.Description)
	assert.Equal(t, "0xAlice", p1.Creator)
	assert.Zero(t, p1.VotesFor.Cmp(big.NewInt(10)))
	assert.Equal(t, state.StatusConfirmed, p1.Status)

	p2, ok := env.client.Store().GetById(2)
	require.True(t, ok)
	assert.Equal(t, state.StatusExecuted, p2.Status)
}

func TestBackendSyncFailureLeavesStoreUntouched(t *testing.T) {
	env := newTestEnv(t, testOwner)
	env.client.Store().AddPending(state.NewLocalKey(), "draft", testOwner)

	// Point the client at a dead endpoint
	env.client.config.backend = backend.NewClient("http://127.0.0.1:1")
	err := env.client.BackendSync(context.Background())
	require.Error(t, err)
	assert.Len(t, env.client.Store().List(), 1)
}

func TestCheckpointReadOverwritesTallies(t *testing.T) {
	env := newTestEnv(
		t,
		testOwner,
		chain.WithCaller("0xBob"),
		chain.WithVoteWeight(big.NewInt(7)),
	)
	ctx := context.Background()
	id, err := env.mock.CreateProposal(ctx, "tally check")
	require.NoError(t, err)
	require.NoError(t, env.mock.Vote(ctx, id, true))

	// Local optimistic state has drifted from the chain
	key := state.KeyForId(id)
	env.client.Store().Resolve(state.Observation{
		Id:           id,
		VotesFor:     big.NewInt(999),
		VotesAgainst: big.NewInt(999),
	})

	require.NoError(t, env.client.CheckpointRead(ctx, id))
	p, ok := env.client.Store().Get(key)
	require.True(t, ok)
	assert.Zero(t, p.VotesFor.Cmp(big.NewInt(7)))
	assert.Zero(t, p.VotesAgainst.Sign())
}

func TestCheckpointReadUnknownProposal(t *testing.T) {
	env := newTestEnv(t, testOwner)
	require.NoError(
		t,
		env.client.CheckpointRead(context.Background(), 42),
		"a missing chain entry is not an error",
	)
	_, ok := env.client.Store().GetById(42)
	assert.False(t, ok)
}

func TestEventDrivenReconciliation(t *testing.T) {
	env := newTestEnv(
		t,
		testOwner,
		chain.WithCaller("0xCarol"),
		chain.WithVoteWeight(big.NewInt(3)),
	)
	ctx := context.Background()
	require.NoError(t, env.client.Start(ctx))

	// Actions performed outside this client arrive as chain events
	id, err := env.mock.CreateProposal(ctx, "observed externally")
	require.NoError(t, err)
	require.NoError(t, env.mock.Vote(ctx, id, true))

	require.Eventually(t, func() bool {
		p, ok := env.client.Store().GetById(id)
		if !ok {
			return false
		}
		return p.Status == state.StatusConfirmed &&
			p.VotesFor.Cmp(big.NewInt(3)) == 0
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, env.mock.ExecuteProposal(ctx, id))
	require.Eventually(t, func() bool {
		p, ok := env.client.Store().GetById(id)
		return ok && p.Status == state.StatusExecuted
	}, time.Second, 10*time.Millisecond)
}

func TestEventForUnknownProposalCreatesEntry(t *testing.T) {
	env := newTestEnv(t, testOwner, chain.WithCaller("0xDave"))
	ctx := context.Background()
	require.NoError(t, env.client.Start(ctx))

	// A vote event can arrive before the creation event is seen
	id, err := env.mock.CreateProposal(ctx, "out of order")
	require.NoError(t, err)
	env.client.handleVoted(ctx, event.NewEvent(
		event.VotedEventType,
		event.VotedEvent{Id: id, Voter: "0xEve", Support: true},
	))

	p, ok := env.client.Store().GetById(id)
	require.True(t, ok)
	choice, voted := p.VoterChoices["0xeve"]
	assert.True(t, voted)
	assert.Equal(t, ledger.ChoiceFor, choice)
}
