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

package chain

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/agoralabs-io/agora/event"
)

// Mock is a deterministic in-memory governance contract. It implements
// both StateReader and TxSubmitter and publishes contract events on the
// event bus. It backs tests and dev mode.
type Mock struct {
	bus          *event.EventBus
	owner        string
	caller       string
	quorum       *big.Int
	voteDuration uint64
	voteWeight   *big.Int
	now          func() uint64
	nextId       uint64
	proposals    map[uint64]*ProposalState
	voted        map[uint64]map[string]bool
	finalized    map[uint64]bool
	submitErr    error
	mu           sync.Mutex
}

type MockOptionFunc func(*Mock)

// WithOwner sets the contract owner address
func WithOwner(owner string) MockOptionFunc {
	return func(m *Mock) {
		m.owner = owner
	}
}

// WithCaller sets the address submitting transactions
func WithCaller(caller string) MockOptionFunc {
	return func(m *Mock) {
		m.caller = caller
	}
}

// WithQuorumThreshold sets the minimum total vote weight for execution
func WithQuorumThreshold(quorum *big.Int) MockOptionFunc {
	return func(m *Mock) {
		m.quorum = new(big.Int).Set(quorum)
	}
}

// WithVoteDuration sets the fixed voting window in seconds
func WithVoteDuration(seconds uint64) MockOptionFunc {
	return func(m *Mock) {
		m.voteDuration = seconds
	}
}

// WithVoteWeight sets the weight applied to every vote. The default is 1.
func WithVoteWeight(weight *big.Int) MockOptionFunc {
	return func(m *Mock) {
		m.voteWeight = new(big.Int).Set(weight)
	}
}

// WithNowFunc overrides the clock used for chain timestamps
func WithNowFunc(now func() uint64) MockOptionFunc {
	return func(m *Mock) {
		m.now = now
	}
}

func NewMock(bus *event.EventBus, opts ...MockOptionFunc) *Mock {
	m := &Mock{
		bus:          bus,
		owner:        "0x0000000000000000000000000000000000000001",
		caller:       "0x0000000000000000000000000000000000000001",
		quorum:       big.NewInt(1),
		voteDuration: 3600,
		voteWeight:   big.NewInt(1),
		now: func() uint64 {
			t := time.Now().Unix()
			if t < 0 {
				return 0
			}
			return uint64(t)
		},
		proposals: make(map[uint64]*ProposalState),
		voted:     make(map[uint64]map[string]bool),
		finalized: make(map[uint64]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FailSubmissions makes every subsequent TxSubmitter call return the
// given error. Pass nil to restore normal behavior.
func (m *Mock) FailSubmissions(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitErr = err
}

func (m *Mock) publish(eventType event.EventType, data any) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(eventType, event.NewEvent(eventType, data))
}

func (m *Mock) GetProposal(
	_ context.Context,
	id uint64,
) (*ProposalState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proposals[id]
	if !ok {
		return nil, ErrProposalNotFound
	}
	ret := *p
	ret.VotesFor = new(big.Int).Set(p.VotesFor)
	ret.VotesAgainst = new(big.Int).Set(p.VotesAgainst)
	return &ret, nil
}

func (m *Mock) HasVoted(
	_ context.Context,
	id uint64,
	addr string,
) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.voted[id][strings.ToLower(addr)], nil
}

func (m *Mock) HasQuorum(_ context.Context, id uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proposals[id]
	if !ok {
		return false, ErrProposalNotFound
	}
	total := new(big.Int).Add(p.VotesFor, p.VotesAgainst)
	return total.Cmp(m.quorum) >= 0, nil
}

func (m *Mock) Owner(_ context.Context) (string, error) {
	return m.owner, nil
}

func (m *Mock) QuorumThreshold(_ context.Context) (*big.Int, error) {
	return new(big.Int).Set(m.quorum), nil
}

func (m *Mock) VoteDuration(_ context.Context) (uint64, error) {
	return m.voteDuration, nil
}

func (m *Mock) CreateProposal(
	_ context.Context,
	description string,
) (uint64, error) {
	m.mu.Lock()
	if m.submitErr != nil {
		err := m.submitErr
		m.mu.Unlock()
		return 0, err
	}
	m.nextId++
	id := m.nextId
	createdAt := m.now()
	p := &ProposalState{
		Id:           id,
		Description:  description,
		Creator:      m.caller,
		VotesFor:     new(big.Int),
		VotesAgainst: new(big.Int),
		CreatedAt:    createdAt,
		Deadline:     createdAt + m.voteDuration,
	}
	m.proposals[id] = p
	m.voted[id] = make(map[string]bool)
	creator := m.caller
	m.mu.Unlock()
	m.publish(
		event.ProposalCreatedEventType,
		event.ProposalCreatedEvent{
			Id:          id,
			Creator:     creator,
			Description: description,
			CreatedAt:   createdAt,
		},
	)
	return id, nil
}

func (m *Mock) Vote(_ context.Context, id uint64, support bool) error {
	m.mu.Lock()
	if m.submitErr != nil {
		err := m.submitErr
		m.mu.Unlock()
		return err
	}
	p, ok := m.proposals[id]
	if !ok {
		m.mu.Unlock()
		return ErrProposalNotFound
	}
	voter := strings.ToLower(m.caller)
	if m.voted[id][voter] {
		m.mu.Unlock()
		return errors.New("already voted")
	}
	m.voted[id][voter] = true
	if support {
		p.VotesFor.Add(p.VotesFor, m.voteWeight)
	} else {
		p.VotesAgainst.Add(p.VotesAgainst, m.voteWeight)
	}
	weight := new(big.Int).Set(m.voteWeight)
	m.mu.Unlock()
	m.publish(
		event.VotedEventType,
		event.VotedEvent{
			Id:      id,
			Voter:   voter,
			Support: support,
			Weight:  weight,
		},
	)
	return nil
}

func (m *Mock) ExecuteProposal(_ context.Context, id uint64) error {
	m.mu.Lock()
	if m.submitErr != nil {
		err := m.submitErr
		m.mu.Unlock()
		return err
	}
	p, ok := m.proposals[id]
	if !ok {
		m.mu.Unlock()
		return ErrProposalNotFound
	}
	if p.Executed {
		m.mu.Unlock()
		return errors.New("already executed")
	}
	p.Executed = true
	p.Executor = m.caller
	executor := m.caller
	m.mu.Unlock()
	m.publish(
		event.ProposalExecutedEventType,
		event.ProposalExecutedEvent{
			Id:       id,
			Executor: executor,
		},
	)
	return nil
}

func (m *Mock) FinalizeProposal(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitErr != nil {
		return m.submitErr
	}
	if _, ok := m.proposals[id]; !ok {
		return ErrProposalNotFound
	}
	m.finalized[id] = true
	return nil
}

// Finalized reports whether FinalizeProposal has been called for the id
func (m *Mock) Finalized(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finalized[id]
}
