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
	"fmt"

	"github.com/agoralabs-io/agora/chain"
	"github.com/agoralabs-io/agora/event"
	"github.com/agoralabs-io/agora/state"
	"go.opentelemetry.io/otel"
)

// BackendSync fetches the backend's proposal list and merges every entry
// into the store, then refreshes each merged proposal from the chain. A
// backend failure leaves the store untouched; per-proposal refresh
// failures are isolated.
func (c *Client) BackendSync(ctx context.Context) error {
	ctx, span := otel.Tracer("agora").Start(ctx, "BackendSync")
	defer span.End()
	resp, err := c.config.backend.ListProposals(ctx)
	if err != nil {
		return fmt.Errorf("list proposals: %w", err)
	}
	c.config.logger.Debug(
		"merging backend proposal list",
		"component", "engine",
		"count", len(resp.Proposals),
	)
	for _, dto := range resp.Proposals {
		p := c.store.Resolve(dto.Observation())
		if p == nil {
			continue
		}
		c.scheduleCheckpoint(ctx, p.Id)
	}
	return nil
}

// CheckpointRead refreshes a proposal from an authoritative chain read.
// The generation token taken before the read protects against a stale
// response overwriting the result of a newer one.
func (c *Client) CheckpointRead(ctx context.Context, id uint64) error {
	ctx, span := otel.Tracer("agora").Start(ctx, "CheckpointRead")
	defer span.End()
	key := state.KeyForId(id)
	generation := c.store.Begin(key)
	ps, err := c.config.chainReader.GetProposal(ctx, id)
	if err != nil {
		if errors.Is(err, chain.ErrProposalNotFound) {
			c.config.logger.Debug(
				"chain does not know proposal yet",
				"component", "engine",
				"id", id,
			)
			return nil
		}
		return fmt.Errorf("read proposal %d: %w", id, err)
	}
	// Ensure the entry exists before applying the checkpoint, so reads
	// for proposals first seen on chain still land
	c.store.Resolve(state.Observation{
		Id:          ps.Id,
		Creator:     ps.Creator,
		Description: ps.Description,
	})
	applied := c.store.ApplyCheckpoint(key, generation, state.Checkpoint{
		VotesFor:     ps.VotesFor,
		VotesAgainst: ps.VotesAgainst,
		CreatedAt:    ps.CreatedAt,
		Deadline:     ps.Deadline,
		Executor:     ps.Executor,
		Executed:     ps.Executed,
	})
	if !applied {
		c.config.logger.Debug(
			"checkpoint superseded",
			"component", "engine",
			"id", id,
		)
	}
	return nil
}

// scheduleCheckpoint runs CheckpointRead in the background with failures
// logged rather than propagated
func (c *Client) scheduleCheckpoint(ctx context.Context, id uint64) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.CheckpointRead(ctx, id); err != nil {
			c.config.logger.Warn(
				"checkpoint read failed",
				"component", "engine",
				"id", id,
				"error", err,
			)
		}
	}()
}

func (c *Client) handleProposalCreated(ctx context.Context, evt event.Event) {
	e, ok := evt.Data.(event.ProposalCreatedEvent)
	if !ok {
		return
	}
	c.config.logger.Debug(
		"observed proposal creation",
		"component", "engine",
		"id", e.Id,
		"creator", e.Creator,
	)
	p := c.store.Resolve(state.Observation{
		Id:          e.Id,
		Creator:     e.Creator,
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
	})
	if p == nil {
		return
	}
	c.scheduleCheckpoint(ctx, e.Id)
}

func (c *Client) handleVoted(ctx context.Context, evt event.Event) {
	e, ok := evt.Data.(event.VotedEvent)
	if !ok {
		return
	}
	// A vote can arrive before any observation of its proposal
	c.store.Resolve(state.Observation{Id: e.Id})
	result := c.store.ApplyVote(
		state.KeyForId(e.Id),
		e.Voter,
		e.Support,
		e.Weight,
	)
	c.config.logger.Debug(
		"observed vote",
		"component", "engine",
		"id", e.Id,
		"voter", e.Voter,
		"support", e.Support,
		"result", int(result),
	)
	c.scheduleCheckpoint(ctx, e.Id)
}

func (c *Client) handleProposalExecuted(ctx context.Context, evt event.Event) {
	e, ok := evt.Data.(event.ProposalExecutedEvent)
	if !ok {
		return
	}
	c.config.logger.Debug(
		"observed proposal execution",
		"component", "engine",
		"id", e.Id,
		"executor", e.Executor,
	)
	c.store.Resolve(state.Observation{Id: e.Id})
	c.store.MarkExecuted(state.KeyForId(e.Id), e.Executor)
	c.scheduleCheckpoint(ctx, e.Id)
}
