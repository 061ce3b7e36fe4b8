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

package indexer

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/agoralabs-io/agora/backend"
	"github.com/agoralabs-io/agora/chain"
	"github.com/agoralabs-io/agora/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndexer(t *testing.T, bus *event.EventBus) *Indexer {
	t.Helper()
	i, err := New(IndexerConfig{
		EventBus:      bus,
		ListenAddress: "127.0.0.1:0",
	})
	require.NoError(t, err)
	require.NoError(t, i.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(
			context.Background(),
			5*time.Second,
		)
		defer cancel()
		require.NoError(t, i.Stop(ctx))
	})
	return i
}

func TestIndexerEndToEnd(t *testing.T) {
	bus := event.NewEventBus(nil)
	defer bus.Stop()
	idx := newTestIndexer(t, bus)
	mock := chain.NewMock(
		bus,
		chain.WithCaller("0xAlice"),
		chain.WithVoteWeight(big.NewInt(40)),
	)
	ctx := context.Background()

	id, err := mock.CreateProposal(ctx, "ship it")
	require.NoError(t, err)
	require.NoError(t, mock.Vote(ctx, id, true))

	client := backend.NewClient("http://" + idx.ListenAddr())
	require.Eventually(t, func() bool {
		dto, err := client.GetProposal(ctx, id)
		if err != nil {
			return false
		}
		return dto.VotesFor.BigInt() != nil &&
			dto.VotesFor.BigInt().Cmp(big.NewInt(40)) == 0
	}, 2*time.Second, 20*time.Millisecond)

	dto, err := client.GetProposal(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ship it", dto.Description)
	assert.Equal(t, "0xAlice", dto.Creator)
	assert.False(t, dto.Executed)

	require.NoError(t, mock.ExecuteProposal(ctx, id))
	require.Eventually(t, func() bool {
		dto, err := client.GetProposal(ctx, id)
		return err == nil && dto.Executed
	}, 2*time.Second, 20*time.Millisecond)

	list, err := client.ListProposals(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, list.Total)

	results, err := client.GetResults(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, results.VotesFor.BigInt().Cmp(big.NewInt(40)))
	assert.Zero(t, results.VotesAgainst.BigInt().Sign())
}

func TestIndexerUnknownProposal(t *testing.T) {
	bus := event.NewEventBus(nil)
	defer bus.Stop()
	idx := newTestIndexer(t, bus)
	client := backend.NewClient("http://" + idx.ListenAddr())
	_, err := client.GetProposal(context.Background(), 99)
	assert.True(t, backend.IsNotFound(err))
}

func TestMetadataVoteDedup(t *testing.T) {
	store, err := NewMetadataStore(t.TempDir(), nil)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.UpsertProposal(&Proposal{
		ID:          1,
		Description: "dedup",
		Creator:     "0xalice",
	}))
	vote := &Vote{ProposalID: 1, Voter: "0xbob", Support: true, Weight: "5"}
	require.NoError(t, store.ApplyVote(vote))
	require.NoError(t, store.ApplyVote(
		&Vote{ProposalID: 1, Voter: "0xbob", Support: true, Weight: "5"},
	))

	p, err := store.GetProposal(1)
	require.NoError(t, err)
	assert.Equal(t, "5", p.VotesFor, "replayed vote must not double count")

	votes, err := store.GetVotes(1)
	require.NoError(t, err)
	assert.Len(t, votes, 1)
}

func TestMetadataUpsertPreservesTallies(t *testing.T) {
	store, err := NewMetadataStore(t.TempDir(), nil)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.UpsertProposal(&Proposal{ID: 7}))
	require.NoError(t, store.ApplyVote(
		&Vote{ProposalID: 7, Voter: "0xcarol", Support: false, Weight: "3"},
	))
	// A late creation event fills in metadata without clobbering votes
	require.NoError(t, store.UpsertProposal(&Proposal{
		ID:          7,
		Description: "late details",
		Creator:     "0xdave",
		ChainTime:   12345,
	}))

	p, err := store.GetProposal(7)
	require.NoError(t, err)
	assert.Equal(t, "late details", p.Description)
	assert.Equal(t, uint64(12345), p.ChainTime)
	assert.Equal(t, "3", p.VotesAgainst)
}

func TestMetadataVoteBeforeProposal(t *testing.T) {
	store, err := NewMetadataStore(t.TempDir(), nil)
	require.NoError(t, err)
	defer store.Close()

	err = store.ApplyVote(
		&Vote{ProposalID: 2, Voter: "0xeve", Support: true, Weight: "1"},
	)
	require.ErrorIs(t, err, ErrUnknownProposal)
}

func TestJournalAppendAndReplay(t *testing.T) {
	journal, err := NewJournal("", nil)
	require.NoError(t, err)
	defer journal.Close()

	require.NoError(t, journal.Append(
		"proposal_created",
		event.ProposalCreatedEvent{Id: 1, Creator: "0xalice"},
	))
	require.NoError(t, journal.Append(
		"voted",
		event.VotedEvent{Id: 1, Voter: "0xbob", Support: true},
	))
	assert.Equal(t, uint64(2), journal.Sequence())

	entries, err := journal.Entries(0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "proposal_created", entries[0].Kind)
	assert.Equal(t, uint64(1), entries[0].Sequence)
	assert.Equal(t, "voted", entries[1].Kind)

	limited, err := journal.Entries(2, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, uint64(2), limited[0].Sequence)
}

func TestJournalPersistsSequence(t *testing.T) {
	dataDir := t.TempDir()
	journal, err := NewJournal(dataDir, nil)
	require.NoError(t, err)
	require.NoError(t, journal.Append("voted", event.VotedEvent{Id: 3}))
	require.NoError(t, journal.Close())

	reopened, err := NewJournal(dataDir, nil)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, uint64(1), reopened.Sequence())
	require.NoError(t, reopened.Append("voted", event.VotedEvent{Id: 4}))
	assert.Equal(t, uint64(2), reopened.Sequence())
}
