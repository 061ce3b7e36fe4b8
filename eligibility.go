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
	"fmt"

	"github.com/agoralabs-io/agora/chain"
	"github.com/agoralabs-io/agora/ledger"
	"github.com/agoralabs-io/agora/state"
)

// Eligibility reports whether a proposal may be executed or finalized
// now, with a reason for every execute rule that does not hold.
type Eligibility struct {
	CanExecute  bool
	CanFinalize bool
	Reasons     []string
}

// Evaluate computes execution and finalization eligibility. It is a pure
// function of its inputs. chainQuorum, when non-nil, is the authoritative
// chain-side quorum check and takes precedence over the locally summed
// total. All failing rules are reported, not just the first.
func Evaluate(
	p *state.Proposal,
	params *chain.GovParams,
	caller string,
	now uint64,
	chainQuorum *bool,
) Eligibility {
	ret := Eligibility{}

	windowEnd := p.VoteWindowEnd(params.VoteDuration)
	windowElapsed := windowEnd > 0 && now >= windowEnd
	if windowEnd == 0 {
		ret.Reasons = append(
			ret.Reasons,
			"voting window end is not yet known",
		)
	} else if !windowElapsed {
		ret.Reasons = append(
			ret.Reasons,
			fmt.Sprintf(
				"voting window is open until %d",
				windowEnd,
			),
		)
	}

	executed := p.Status == state.StatusExecuted
	if executed {
		ret.Reasons = append(ret.Reasons, "proposal already executed")
	}

	majority := p.VotesFor != nil &&
		p.VotesAgainst != nil &&
		p.VotesFor.Cmp(p.VotesAgainst) > 0
	if !majority {
		ret.Reasons = append(
			ret.Reasons,
			"no simple majority in favor",
		)
	}

	quorumMet := false
	if chainQuorum != nil {
		quorumMet = *chainQuorum
	} else if params.QuorumThreshold != nil {
		quorumMet = p.TotalVotes().Cmp(params.QuorumThreshold) >= 0
	}
	if !quorumMet {
		ret.Reasons = append(ret.Reasons, "quorum not met")
	}

	isOwner := caller != "" &&
		ledger.NormalizeAddress(caller) == ledger.NormalizeAddress(params.Owner)
	if !isOwner {
		ret.Reasons = append(
			ret.Reasons,
			"only the owner may execute",
		)
	}

	ret.CanExecute = windowElapsed &&
		!executed &&
		majority &&
		quorumMet &&
		isOwner
	// Finalize closes a defeated proposal: window elapsed, not in a
	// terminal state, and the majority condition failed
	ret.CanFinalize = windowElapsed &&
		!p.Status.Terminal() &&
		!majority
	return ret
}
