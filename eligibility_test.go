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
	"math/big"
	"testing"

	"github.com/agoralabs-io/agora/chain"
	"github.com/agoralabs-io/agora/state"
	"github.com/stretchr/testify/assert"
)

func testParams() *chain.GovParams {
	return &chain.GovParams{
		QuorumThreshold: big.NewInt(100),
		Owner:           "0xOwner",
		VoteDuration:    50,
	}
}

func passingProposal() *state.Proposal {
	return &state.Proposal{
		Id:           7,
		Status:       state.StatusConfirmed,
		VotesFor:     big.NewInt(80),
		VotesAgainst: big.NewInt(40),
		CreatedAt:    1000,
	}
}

func TestEvaluateAllRulesPass(t *testing.T) {
	e := Evaluate(passingProposal(), testParams(), "0xowner", 1050, nil)
	assert.True(t, e.CanExecute)
	assert.False(t, e.CanFinalize)
	assert.Empty(t, e.Reasons)
}

func TestEvaluateWindowOpen(t *testing.T) {
	e := Evaluate(passingProposal(), testParams(), "0xowner", 1049, nil)
	assert.False(t, e.CanExecute)
	assert.False(t, e.CanFinalize)
	assert.Contains(t, e.Reasons, "voting window is open until 1050")
}

func TestEvaluateQuorumBoundary(t *testing.T) {
	p := passingProposal()
	p.VotesFor = big.NewInt(60)
	p.VotesAgainst = big.NewInt(39)
	e := Evaluate(p, testParams(), "0xowner", 1050, nil)
	assert.False(t, e.CanExecute, "99 of 100 should fail quorum")
	assert.Contains(t, e.Reasons, "quorum not met")

	p.VotesAgainst = big.NewInt(40)
	e = Evaluate(p, testParams(), "0xowner", 1050, nil)
	assert.True(t, e.CanExecute, "100 of 100 should meet quorum")
}

func TestEvaluateTieFailsMajority(t *testing.T) {
	p := passingProposal()
	p.VotesFor = big.NewInt(60)
	p.VotesAgainst = big.NewInt(60)
	e := Evaluate(p, testParams(), "0xowner", 1050, nil)
	assert.False(t, e.CanExecute)
	assert.Contains(t, e.Reasons, "no simple majority in favor")
	// A tied proposal after the window is finalizable
	assert.True(t, e.CanFinalize)
}

func TestEvaluateChainQuorumPrecedence(t *testing.T) {
	p := passingProposal()
	p.VotesFor = big.NewInt(3)
	p.VotesAgainst = big.NewInt(1)
	met := true
	e := Evaluate(p, testParams(), "0xowner", 1050, &met)
	assert.True(t, e.CanExecute, "chain quorum answer overrides local sum")

	notMet := false
	p2 := passingProposal()
	e = Evaluate(p2, testParams(), "0xowner", 1050, &notMet)
	assert.False(t, e.CanExecute)
	assert.Contains(t, e.Reasons, "quorum not met")
}

func TestEvaluateNonOwner(t *testing.T) {
	e := Evaluate(passingProposal(), testParams(), "0xSomebody", 1050, nil)
	assert.False(t, e.CanExecute)
	assert.Contains(t, e.Reasons, "only the owner may execute")
}

func TestEvaluateExecutedIsTerminal(t *testing.T) {
	p := passingProposal()
	p.Status = state.StatusExecuted
	e := Evaluate(p, testParams(), "0xowner", 1050, nil)
	assert.False(t, e.CanExecute)
	assert.False(t, e.CanFinalize)
	assert.Contains(t, e.Reasons, "proposal already executed")
}

func TestEvaluateDeterministic(t *testing.T) {
	p := passingProposal()
	p.VotesFor = big.NewInt(1)
	first := Evaluate(p, testParams(), "", 1050, nil)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Evaluate(p, testParams(), "", 1050, nil))
	}
}

func TestEvaluateAllReasonsReported(t *testing.T) {
	p := &state.Proposal{
		Id:           9,
		Status:       state.StatusConfirmed,
		VotesFor:     big.NewInt(1),
		VotesAgainst: big.NewInt(5),
		CreatedAt:    1000,
	}
	e := Evaluate(p, testParams(), "0xnobody", 1010, nil)
	assert.False(t, e.CanExecute)
	assert.Len(t, e.Reasons, 4)
}

func TestEvaluateDeadlineFallback(t *testing.T) {
	p := passingProposal()
	p.CreatedAt = 0
	p.Deadline = 2000
	params := testParams()
	params.VoteDuration = 0
	e := Evaluate(p, params, "0xowner", 1999, nil)
	assert.False(t, e.CanExecute)
	e = Evaluate(p, params, "0xowner", 2000, nil)
	assert.True(t, e.CanExecute)
}
