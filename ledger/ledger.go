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

// Package ledger tracks which address voted which way on each proposal.
// It is the authority for vote deduplication: event sources may redeliver
// the same vote observation any number of times, and only the first
// delivery per (proposal, address) affects tallies.
package ledger

import (
	"math/big"
	"strings"
	"sync"
)

// Choice is a recorded vote direction
type Choice int

const (
	ChoiceAgainst Choice = iota
	ChoiceFor
)

func (c Choice) String() string {
	if c == ChoiceFor {
		return "for"
	}
	return "against"
}

// Result reports whether a Record call changed ledger state
type Result int

const (
	// VoteApplied means the vote was recorded and added to the tally
	VoteApplied Result = iota
	// VoteIgnored means the address already voted on this proposal and
	// the call was a no-op
	VoteIgnored
)

// NormalizeAddress canonicalizes an address for case-insensitive
// comparison and map keying
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

type proposalVotes struct {
	choices      map[string]Choice
	votesFor     *big.Int
	votesAgainst *big.Int
}

// Ledger holds per-proposal voter records keyed by an opaque proposal key.
type Ledger struct {
	proposals map[string]*proposalVotes
	mu        sync.RWMutex
}

func New() *Ledger {
	return &Ledger{
		proposals: make(map[string]*proposalVotes),
	}
}

// Record registers a vote for the given proposal key. A nil weight applies
// the default weight of 1. If the normalized address has already voted on
// this proposal, the call returns VoteIgnored and tallies are untouched.
// Negative weights are ignored.
func (l *Ledger) Record(
	proposalKey string,
	voter string,
	support bool,
	weight *big.Int,
) Result {
	if weight == nil {
		weight = big.NewInt(1)
	}
	if weight.Sign() < 0 {
		return VoteIgnored
	}
	voter = NormalizeAddress(voter)
	l.mu.Lock()
	defer l.mu.Unlock()
	pv, ok := l.proposals[proposalKey]
	if !ok {
		pv = &proposalVotes{
			choices:      make(map[string]Choice),
			votesFor:     new(big.Int),
			votesAgainst: new(big.Int),
		}
		l.proposals[proposalKey] = pv
	}
	if _, voted := pv.choices[voter]; voted {
		return VoteIgnored
	}
	if support {
		pv.choices[voter] = ChoiceFor
		pv.votesFor.Add(pv.votesFor, weight)
	} else {
		pv.choices[voter] = ChoiceAgainst
		pv.votesAgainst.Add(pv.votesAgainst, weight)
	}
	return VoteApplied
}

// HasVoted returns true if the normalized address has a recorded choice
// for the proposal key
func (l *Ledger) HasVoted(proposalKey string, voter string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pv, ok := l.proposals[proposalKey]
	if !ok {
		return false
	}
	_, voted := pv.choices[NormalizeAddress(voter)]
	return voted
}

// Tally returns copies of the accumulated for/against weights for the
// proposal key
func (l *Ledger) Tally(proposalKey string) (*big.Int, *big.Int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pv, ok := l.proposals[proposalKey]
	if !ok {
		return new(big.Int), new(big.Int)
	}
	return new(big.Int).Set(pv.votesFor), new(big.Int).Set(pv.votesAgainst)
}

// Choices returns a copy of the voter choice map for the proposal key
func (l *Ledger) Choices(proposalKey string) map[string]Choice {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ret := make(map[string]Choice)
	if pv, ok := l.proposals[proposalKey]; ok {
		for voter, choice := range pv.choices {
			ret[voter] = choice
		}
	}
	return ret
}

// Rekey moves a proposal's vote records from one key to another. This is
// used when an optimistic proposal resolves to its on-chain identifier.
// If records already exist under the new key, entries from the old key are
// merged in without overwriting existing choices.
func (l *Ledger) Rekey(oldKey, newKey string) {
	if oldKey == newKey {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	oldPv, ok := l.proposals[oldKey]
	if !ok {
		return
	}
	delete(l.proposals, oldKey)
	newPv, ok := l.proposals[newKey]
	if !ok {
		l.proposals[newKey] = oldPv
		return
	}
	for voter, choice := range oldPv.choices {
		if _, voted := newPv.choices[voter]; voted {
			continue
		}
		newPv.choices[voter] = choice
	}
	// Tallies under the new key are kept as-is; the next checkpoint read
	// reconciles any drift
}
