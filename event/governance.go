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

package event

import "math/big"

// ProposalCreatedEventType is the event type for new on-chain proposals
const ProposalCreatedEventType = EventType("governance.proposal_created")

// VotedEventType is the event type for on-chain vote casts
const VotedEventType = EventType("governance.voted")

// ProposalExecutedEventType is the event type for executed proposals
const ProposalExecutedEventType = EventType("governance.proposal_executed")

// ProposalCreatedEvent is emitted when the chain reports a newly created
// proposal. The description carried here is used by identity resolution
// to merge the event with an optimistic local copy of the same proposal.
type ProposalCreatedEvent struct {
	// Id is the on-chain proposal identifier
	Id uint64
	// Creator is the address that submitted the proposal
	Creator string
	// Description is the proposal text
	Description string
	// CreatedAt is the chain timestamp in seconds, when known
	CreatedAt uint64
}

// VotedEvent is emitted for each vote cast on chain. Weight is the voting
// weight in token base units; a nil weight means the backing protocol does
// not report weighted votes and a weight of 1 applies.
type VotedEvent struct {
	Id      uint64
	Voter   string
	Support bool
	Weight  *big.Int
}

// ProposalExecutedEvent is emitted when a proposal has been executed on
// chain.
type ProposalExecutedEvent struct {
	Id       uint64
	Executor string
}
