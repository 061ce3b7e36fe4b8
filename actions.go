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
	"fmt"
	"strings"
	"time"

	"github.com/agoralabs-io/agora/backend"
	"github.com/agoralabs-io/agora/state"
	"go.opentelemetry.io/otel"
)

// CreateProposal submits a new proposal. The proposal appears in the
// store immediately as a pending entry; if the submission fails, the
// optimistic entry is removed again. On success the returned snapshot
// carries the on-chain id.
func (c *Client) CreateProposal(
	ctx context.Context,
	description string,
) (*state.Proposal, error) {
	ctx, span := otel.Tracer("agora").Start(ctx, "CreateProposal")
	defer span.End()
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, &ValidationError{Reason: "proposal description is empty"}
	}
	if c.config.caller == "" {
		return nil, &ValidationError{Reason: "no caller address configured"}
	}
	localKey := state.NewLocalKey()
	c.store.AddPending(localKey, description, c.config.caller)
	c.config.logger.Info(
		"submitting proposal",
		"component", "actions",
		"local_key", localKey,
	)
	id, err := c.config.submitter.CreateProposal(ctx, description)
	if err != nil {
		c.store.Remove(localKey)
		return nil, fmt.Errorf("submit proposal: %w", err)
	}
	p := c.store.Resolve(state.Observation{
		Id:          id,
		Creator:     c.config.caller,
		Description: description,
	})
	if err := c.CheckpointRead(ctx, id); err != nil {
		c.config.logger.Warn(
			"checkpoint read after create failed",
			"component", "actions",
			"id", id,
			"error", err,
		)
	}
	if err := c.pollBackend(ctx, id); err != nil {
		return nil, err
	}
	if refreshed, ok := c.store.GetById(id); ok {
		p = refreshed
	}
	return p, nil
}

// VoteOnProposal casts a vote as the configured caller. A repeat vote by
// the same address is rejected before submission.
func (c *Client) VoteOnProposal(
	ctx context.Context,
	id uint64,
	support bool,
) error {
	ctx, span := otel.Tracer("agora").Start(ctx, "VoteOnProposal")
	defer span.End()
	if c.config.caller == "" {
		return &ValidationError{Reason: "no caller address configured"}
	}
	key := state.KeyForId(id)
	if c.voteLedger.HasVoted(key, c.config.caller) {
		return &ValidationError{Reason: "caller has already voted"}
	}
	c.config.logger.Info(
		"submitting vote",
		"component", "actions",
		"id", id,
		"support", support,
	)
	if err := c.config.submitter.Vote(ctx, id, support); err != nil {
		return fmt.Errorf("submit vote: %w", err)
	}
	// Weight is unknown until the next chain read; record the vote at the
	// default weight and let the checkpoint correct the tallies
	c.store.Resolve(state.Observation{Id: id})
	c.store.ApplyVote(key, c.config.caller, support, nil)
	if err := c.CheckpointRead(ctx, id); err != nil {
		c.config.logger.Warn(
			"checkpoint read after vote failed",
			"component", "actions",
			"id", id,
			"error", err,
		)
	}
	return c.pollBackend(ctx, id)
}

// ExecuteProposal executes a passed proposal. Eligibility is evaluated
// locally first and all failing rules are reported in the returned
// EligibilityError.
func (c *Client) ExecuteProposal(ctx context.Context, id uint64) error {
	ctx, span := otel.Tracer("agora").Start(ctx, "ExecuteProposal")
	defer span.End()
	p, err := c.proposalForAction(ctx, id)
	if err != nil {
		return err
	}
	elig := Evaluate(
		p,
		c.params,
		c.config.caller,
		c.nowFunc(),
		c.chainQuorum(ctx, id),
	)
	if !elig.CanExecute {
		return &EligibilityError{Reasons: elig.Reasons}
	}
	c.config.logger.Info(
		"executing proposal",
		"component", "actions",
		"id", id,
	)
	if err := c.config.submitter.ExecuteProposal(ctx, id); err != nil {
		return fmt.Errorf("execute proposal: %w", err)
	}
	c.store.MarkExecuted(state.KeyForId(id), c.config.caller)
	if err := c.CheckpointRead(ctx, id); err != nil {
		c.config.logger.Warn(
			"checkpoint read after execute failed",
			"component", "actions",
			"id", id,
			"error", err,
		)
	}
	return c.pollBackend(ctx, id)
}

// FinalizeProposal closes a defeated proposal once its voting window has
// elapsed.
func (c *Client) FinalizeProposal(ctx context.Context, id uint64) error {
	ctx, span := otel.Tracer("agora").Start(ctx, "FinalizeProposal")
	defer span.End()
	p, err := c.proposalForAction(ctx, id)
	if err != nil {
		return err
	}
	elig := Evaluate(
		p,
		c.params,
		c.config.caller,
		c.nowFunc(),
		c.chainQuorum(ctx, id),
	)
	if !elig.CanFinalize {
		reasons := elig.Reasons
		if len(reasons) == 0 {
			// Every execute rule held, so the only bar to
			// finalization is that the proposal passed
			reasons = []string{"proposal was not defeated"}
		}
		return &EligibilityError{Reasons: reasons}
	}
	c.config.logger.Info(
		"finalizing proposal",
		"component", "actions",
		"id", id,
	)
	if err := c.config.submitter.FinalizeProposal(ctx, id); err != nil {
		return fmt.Errorf("finalize proposal: %w", err)
	}
	c.store.MarkFinalized(state.KeyForId(id))
	return c.pollBackend(ctx, id)
}

// proposalForAction returns the store snapshot for an action target,
// refreshing from the chain when the proposal is not yet known locally
func (c *Client) proposalForAction(
	ctx context.Context,
	id uint64,
) (*state.Proposal, error) {
	p, ok := c.store.GetById(id)
	if !ok {
		if err := c.CheckpointRead(ctx, id); err != nil {
			return nil, err
		}
		p, ok = c.store.GetById(id)
		if !ok {
			return nil, &ValidationError{
				Reason: fmt.Sprintf("unknown proposal %d", id),
			}
		}
	}
	return p, nil
}

// chainQuorum asks the chain whether quorum has been reached. A read
// failure falls back to the local tally sum.
func (c *Client) chainQuorum(ctx context.Context, id uint64) *bool {
	met, err := c.config.chainReader.HasQuorum(ctx, id)
	if err != nil {
		c.config.logger.Debug(
			"chain quorum check failed, using local tallies",
			"component", "actions",
			"id", id,
			"error", err,
		)
		return nil
	}
	return &met
}

// pollBackend waits for the backend to reflect a just-submitted
// transaction, merging the response when it lands. Indexer lag past the
// timeout is logged but not an error; only auth failures propagate.
func (c *Client) pollBackend(ctx context.Context, id uint64) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.confirmTimeout)
	defer cancel()
	ticker := time.NewTicker(c.config.confirmInterval)
	defer ticker.Stop()
	for {
		dto, err := c.config.backend.GetProposal(ctx, id)
		switch {
		case err == nil:
			c.store.Resolve(dto.Observation())
			return nil
		case backend.IsAuth(err):
			return err
		case backend.IsNotFound(err):
			// Indexer has not caught up yet
		default:
			c.config.logger.Debug(
				"backend confirmation poll failed",
				"component", "actions",
				"id", id,
				"error", err,
			)
		}
		select {
		case <-ctx.Done():
			c.config.logger.Warn(
				"backend did not confirm proposal before timeout",
				"component", "actions",
				"id", id,
			)
			return nil
		case <-ticker.C:
		}
	}
}
