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

// Package state holds the in-memory proposal record store. The store is
// the only shared mutable state in the client: the reconciliation engine
// is its sole writer, every merge is atomic under the store lock, and all
// readers receive snapshots.
package state

import (
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"github.com/agoralabs-io/agora/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Store is the in-memory proposal collection. Entries are ordered
// newest-first. Lookup is by key: the client-generated local key before
// confirmation, the on-chain id after.
type Store struct {
	entries     []*Proposal
	byKey       map[string]*Proposal
	generations map[string]uint64
	ledger      *ledger.Ledger
	logger      *slog.Logger
	metrics     struct {
		proposals *prometheus.GaugeVec
	}
	mu sync.RWMutex
}

func NewStore(
	voteLedger *ledger.Ledger,
	promRegistry prometheus.Registerer,
	logger *slog.Logger,
) *Store {
	s := &Store{
		byKey:       make(map[string]*Proposal),
		generations: make(map[string]uint64),
		ledger:      voteLedger,
		logger:      logger,
	}
	if promRegistry != nil {
		promautoFactory := promauto.With(promRegistry)
		s.metrics.proposals = promautoFactory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "agora_store_proposals",
				Help: "proposals in the store by status",
			},
			[]string{"status"},
		)
	}
	return s
}

// Ledger returns the vote ledger backing this store
func (s *Store) Ledger() *ledger.Ledger {
	return s.ledger
}

// must be called with the write lock held
func (s *Store) updateMetrics() {
	if s.metrics.proposals == nil {
		return
	}
	counts := make(map[Status]int)
	for _, p := range s.entries {
		counts[p.Status]++
	}
	for _, status := range []Status{
		StatusPending,
		StatusConfirmed,
		StatusFinalized,
		StatusExecuted,
	} {
		s.metrics.proposals.WithLabelValues(status.String()).
			Set(float64(counts[status]))
	}
}

// AddPending inserts an optimistic proposal at the front of the store and
// returns a snapshot of it. The entry has no on-chain id yet and is
// looked up by its local key.
func (s *Store) AddPending(
	localKey string,
	description string,
	creator string,
) *Proposal {
	p := &Proposal{
		LocalKey:     localKey,
		Description:  description,
		Creator:      creator,
		Status:       StatusPending,
		VotesFor:     new(big.Int),
		VotesAgainst: new(big.Int),
		VoterChoices: make(map[string]ledger.Choice),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append([]*Proposal{p}, s.entries...)
	s.byKey[localKey] = p
	s.updateMetrics()
	return p.copy()
}

// Remove deletes a pending proposal from the store. It is used to roll
// back an optimistic insert when the underlying transaction fails and is
// the only way an entry ever leaves the store. Confirmed entries are
// never removed.
func (s *Store) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byKey[key]
	if !ok || p.Status != StatusPending {
		return false
	}
	delete(s.byKey, key)
	for i, entry := range s.entries {
		if entry == p {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			break
		}
	}
	s.updateMetrics()
	return true
}

// Get returns a snapshot of the proposal with the given key
func (s *Store) Get(key string) (*Proposal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byKey[key]
	if !ok {
		return nil, false
	}
	return p.copy(), true
}

// GetById returns a snapshot of the confirmed proposal with the given
// on-chain id
func (s *Store) GetById(id uint64) (*Proposal, bool) {
	return s.Get(KeyForId(id))
}

// List returns snapshots of all proposals, newest first
func (s *Store) List() []*Proposal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]*Proposal, 0, len(s.entries))
	for _, p := range s.entries {
		ret = append(ret, p.copy())
	}
	return ret
}

// Resolve merges a proposal observation into the store using identity
// resolution:
//
//  1. an existing entry with the observation's on-chain id, else
//  2. the oldest pending entry whose creator and trimmed description
//     match the observation (the optimistic-to-confirmed bridge), else
//  3. a new entry prepended to the ordered view.
//
// On a match the entry is updated in place, advanced to at least
// Confirmed, and rekeyed to the on-chain id so later observations find it
// directly. Returns a snapshot of the merged entry.
func (s *Store) Resolve(obs Observation) *Proposal {
	if obs.Id == 0 {
		if s.logger != nil {
			s.logger.Warn(
				"discarding proposal observation without id",
				"component", "store",
			)
		}
		return nil
	}
	idKey := KeyForId(obs.Id)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byKey[idKey]
	if !ok {
		p = s.matchPendingLocked(obs)
		if p != nil {
			// Optimistic entry resolving to its confirmed identity:
			// rekey the store entry and its vote records
			oldKey := p.LocalKey
			delete(s.byKey, oldKey)
			p.LocalKey = idKey
			p.Id = obs.Id
			s.byKey[idKey] = p
			s.ledger.Rekey(oldKey, idKey)
		}
	}
	if p == nil {
		p = &Proposal{
			Id:           obs.Id,
			LocalKey:     idKey,
			Description:  strings.TrimSpace(obs.Description),
			Creator:      obs.Creator,
			Status:       StatusPending,
			VotesFor:     new(big.Int),
			VotesAgainst: new(big.Int),
			VoterChoices: make(map[string]ledger.Choice),
		}
		s.entries = append([]*Proposal{p}, s.entries...)
		s.byKey[idKey] = p
	}
	s.mergeLocked(p, obs)
	s.updateMetrics()
	return p.copy()
}

// matchPendingLocked finds the oldest pending entry matching the
// observation's creator and trimmed description. Oldest-first keeps the
// pairing stable when the same creator submits identical proposals
// back-to-back.
func (s *Store) matchPendingLocked(obs Observation) *Proposal {
	creator := ledger.NormalizeAddress(obs.Creator)
	description := strings.TrimSpace(obs.Description)
	for i := len(s.entries) - 1; i >= 0; i-- {
		p := s.entries[i]
		if p.Status != StatusPending || p.Id != 0 {
			continue
		}
		if ledger.NormalizeAddress(p.Creator) != creator {
			continue
		}
		if strings.TrimSpace(p.Description) != description {
			continue
		}
		return p
	}
	return nil
}

// mergeLocked overwrites entry fields from the observation and advances
// status, never backward
func (s *Store) mergeLocked(p *Proposal, obs Observation) {
	if p.Description == "" {
		p.Description = strings.TrimSpace(obs.Description)
	}
	if obs.Creator != "" {
		p.Creator = obs.Creator
	}
	if obs.Executor != "" {
		p.Executor = obs.Executor
	}
	if obs.CreatedAt > 0 {
		p.CreatedAt = obs.CreatedAt
	}
	if obs.Deadline > 0 {
		p.Deadline = obs.Deadline
	}
	if obs.VotesFor != nil {
		p.VotesFor = new(big.Int).Set(obs.VotesFor)
	}
	if obs.VotesAgainst != nil {
		p.VotesAgainst = new(big.Int).Set(obs.VotesAgainst)
	}
	s.advanceLocked(p, obs.status())
}

// advanceLocked moves the entry's status forward if permitted. Backward
// transitions are dropped: a lagging source can never regress an entry.
func (s *Store) advanceLocked(p *Proposal, next Status) {
	if next <= p.Status {
		return
	}
	if !p.Status.CanTransitionTo(next) {
		if s.logger != nil {
			s.logger.Warn(
				"dropping invalid status transition",
				"component", "store",
				"key", p.LocalKey,
				"from", p.Status.String(),
				"to", next.String(),
			)
		}
		return
	}
	p.Status = next
}

// ApplyVote records a vote against the proposal with the given key. The
// vote ledger deduplicates by normalized address; only a first-time vote
// adjusts the stored tallies.
func (s *Store) ApplyVote(
	key string,
	voter string,
	support bool,
	weight *big.Int,
) ledger.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byKey[key]
	if !ok {
		return ledger.VoteIgnored
	}
	result := s.ledger.Record(key, voter, support, weight)
	if result != ledger.VoteApplied {
		return result
	}
	if weight == nil {
		weight = big.NewInt(1)
	}
	normalized := ledger.NormalizeAddress(voter)
	if support {
		p.VoterChoices[normalized] = ledger.ChoiceFor
		p.VotesFor.Add(p.VotesFor, weight)
	} else {
		p.VoterChoices[normalized] = ledger.ChoiceAgainst
		p.VotesAgainst.Add(p.VotesAgainst, weight)
	}
	return result
}

// Checkpoint holds an authoritative chain read of a proposal struct. It
// replaces locally accumulated tallies wholesale rather than merging
// additively.
type Checkpoint struct {
	VotesFor     *big.Int
	VotesAgainst *big.Int
	CreatedAt    uint64
	Deadline     uint64
	Executor     string
	Executed     bool
}

// Begin registers the start of an asynchronous refresh for the given key
// and returns a generation token. A later ApplyCheckpoint with a stale
// token is discarded, so a superseded in-flight read can never overwrite
// the result of a newer one.
func (s *Store) Begin(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[key]++
	return s.generations[key]
}

// ApplyCheckpoint overwrites the proposal's chain-owned fields from an
// authoritative read. Returns false if the generation token is stale or
// the proposal is unknown.
func (s *Store) ApplyCheckpoint(
	key string,
	generation uint64,
	cp Checkpoint,
) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[key] != generation {
		if s.logger != nil {
			s.logger.Debug(
				"discarding stale checkpoint",
				"component", "store",
				"key", key,
				"generation", generation,
			)
		}
		return false
	}
	p, ok := s.byKey[key]
	if !ok {
		return false
	}
	if cp.VotesFor != nil {
		p.VotesFor = new(big.Int).Set(cp.VotesFor)
	}
	if cp.VotesAgainst != nil {
		p.VotesAgainst = new(big.Int).Set(cp.VotesAgainst)
	}
	if cp.CreatedAt > 0 {
		p.CreatedAt = cp.CreatedAt
	}
	if cp.Deadline > 0 {
		p.Deadline = cp.Deadline
	}
	if cp.Executor != "" {
		p.Executor = cp.Executor
	}
	if cp.Executed {
		s.advanceLocked(p, StatusExecuted)
	}
	s.updateMetrics()
	return true
}

// MarkExecuted advances the proposal to Executed and records the
// executor
func (s *Store) MarkExecuted(key string, executor string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byKey[key]
	if !ok {
		return false
	}
	if executor != "" {
		p.Executor = executor
	}
	s.advanceLocked(p, StatusExecuted)
	s.updateMetrics()
	return p.Status == StatusExecuted
}

// MarkFinalized advances the proposal to Finalized. It fails if the
// proposal is already in a terminal state.
func (s *Store) MarkFinalized(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byKey[key]
	if !ok {
		return false
	}
	if p.Status.Terminal() {
		return false
	}
	s.advanceLocked(p, StatusFinalized)
	s.updateMetrics()
	return p.Status == StatusFinalized
}
