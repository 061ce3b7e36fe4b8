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

package ledger

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordAndTally(t *testing.T) {
	l := New()
	result := l.Record("prop-1", "0xAAA", true, big.NewInt(10))
	assert.Equal(t, VoteApplied, result)
	result = l.Record("prop-1", "0xBBB", false, big.NewInt(4))
	assert.Equal(t, VoteApplied, result)
	votesFor, votesAgainst := l.Tally("prop-1")
	assert.Equal(t, big.NewInt(10), votesFor)
	assert.Equal(t, big.NewInt(4), votesAgainst)
}

func TestRecordIdempotent(t *testing.T) {
	l := New()
	// Applying the same observation N>1 times must equal applying it once
	for i := range 5 {
		result := l.Record("prop-1", "0xAAA", true, big.NewInt(10))
		if i == 0 {
			assert.Equal(t, VoteApplied, result)
		} else {
			assert.Equal(t, VoteIgnored, result)
		}
	}
	votesFor, votesAgainst := l.Tally("prop-1")
	assert.Equal(t, big.NewInt(10), votesFor)
	assert.Equal(t, big.NewInt(0), votesAgainst)
}

func TestRecordCaseInsensitiveAddresses(t *testing.T) {
	l := New()
	assert.Equal(t, VoteApplied, l.Record("prop-1", "0xDeadBeef", true, nil))
	assert.Equal(t, VoteIgnored, l.Record("prop-1", "0xDEADBEEF", false, nil))
	assert.Equal(t, VoteIgnored, l.Record("prop-1", " 0xdeadbeef ", true, nil))
	votesFor, votesAgainst := l.Tally("prop-1")
	assert.Equal(t, big.NewInt(1), votesFor)
	assert.Equal(t, big.NewInt(0), votesAgainst)
}

func TestRecordDefaultWeight(t *testing.T) {
	l := New()
	l.Record("prop-1", "0xAAA", false, nil)
	_, votesAgainst := l.Tally("prop-1")
	assert.Equal(t, big.NewInt(1), votesAgainst)
}

func TestRecordLargeWeights(t *testing.T) {
	l := New()
	// 10M tokens at 18 decimals, beyond float64 integer precision
	weight, ok := new(big.Int).SetString("10000000000000000000000000", 10)
	assert.True(t, ok)
	l.Record("prop-1", "0xAAA", true, weight)
	l.Record("prop-1", "0xBBB", true, weight)
	votesFor, _ := l.Tally("prop-1")
	expected := new(big.Int).Mul(weight, big.NewInt(2))
	assert.Equal(t, expected, votesFor)
}

func TestRecordNegativeWeightIgnored(t *testing.T) {
	l := New()
	assert.Equal(
		t,
		VoteIgnored,
		l.Record("prop-1", "0xAAA", true, big.NewInt(-5)),
	)
	assert.False(t, l.HasVoted("prop-1", "0xAAA"))
}

func TestHasVoted(t *testing.T) {
	l := New()
	assert.False(t, l.HasVoted("prop-1", "0xAAA"))
	l.Record("prop-1", "0xAAA", true, nil)
	assert.True(t, l.HasVoted("prop-1", "0xAAA"))
	// Separate proposals have separate records
	assert.False(t, l.HasVoted("prop-2", "0xAAA"))
}

func TestChoices(t *testing.T) {
	l := New()
	l.Record("prop-1", "0xAAA", true, nil)
	l.Record("prop-1", "0xBBB", false, nil)
	choices := l.Choices("prop-1")
	assert.Equal(
		t,
		map[string]Choice{
			"0xaaa": ChoiceFor,
			"0xbbb": ChoiceAgainst,
		},
		choices,
	)
}

func TestRekey(t *testing.T) {
	l := New()
	l.Record("local-abc", "0xAAA", true, big.NewInt(3))
	l.Rekey("local-abc", "42")
	assert.True(t, l.HasVoted("42", "0xAAA"))
	assert.False(t, l.HasVoted("local-abc", "0xAAA"))
	votesFor, _ := l.Tally("42")
	assert.Equal(t, big.NewInt(3), votesFor)
	// Duplicate delivery under the new key is still ignored
	assert.Equal(t, VoteIgnored, l.Record("42", "0xAAA", false, nil))
}

func TestRekeyMergePreservesExisting(t *testing.T) {
	l := New()
	l.Record("local-abc", "0xAAA", true, nil)
	l.Record("42", "0xAAA", false, nil)
	l.Record("42", "0xBBB", true, nil)
	l.Rekey("local-abc", "42")
	choices := l.Choices("42")
	// The choice recorded under the target key wins
	assert.Equal(t, ChoiceAgainst, choices["0xaaa"])
	assert.Equal(t, ChoiceFor, choices["0xbbb"])
}
