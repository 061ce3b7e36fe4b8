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

package backend

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/agoralabs-io/agora/state"
)

// FlexBigInt is an arbitrary-precision integer that unmarshals from
// either a JSON number or a decimal string. The backend may serve vote
// weights in both forms and neither may lose precision through floating
// point.
type FlexBigInt big.Int

func (f *FlexBigInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var unquoted string
		if err := json.Unmarshal(data, &unquoted); err != nil {
			return err
		}
		s = strings.TrimSpace(unquoted)
	}
	parsed, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("malformed integer value: %q", s)
	}
	(*big.Int)(f).Set(parsed)
	return nil
}

func (f *FlexBigInt) MarshalJSON() ([]byte, error) {
	if f == nil {
		return []byte("null"), nil
	}
	return json.Marshal((*big.Int)(f).String())
}

// BigInt returns the underlying big.Int, or nil if the receiver is nil
func (f *FlexBigInt) BigInt() *big.Int {
	if f == nil {
		return nil
	}
	return (*big.Int)(f)
}

// NewFlexBigInt wraps a big.Int for serialization
func NewFlexBigInt(v *big.Int) *FlexBigInt {
	if v == nil {
		return nil
	}
	ret := new(big.Int).Set(v)
	return (*FlexBigInt)(ret)
}

// ProposalDTO is the backend's wire representation of a proposal.
// Optional fields are omitted when the indexer has not observed them.
type ProposalDTO struct {
	Id           uint64      `json:"id"`
	Description  string      `json:"description"`
	Executed     bool        `json:"executed"`
	Finalized    bool        `json:"finalized,omitempty"`
	Creator      string      `json:"creator,omitempty"`
	VotesFor     *FlexBigInt `json:"votesFor,omitempty"`
	VotesAgainst *FlexBigInt `json:"votesAgainst,omitempty"`
	Executor     string      `json:"executor,omitempty"`
	CreatedAt    uint64      `json:"createdAt,omitempty"`
}

// Observation maps the DTO into store shape for identity resolution
func (d *ProposalDTO) Observation() state.Observation {
	return state.Observation{
		Id:           d.Id,
		Creator:      d.Creator,
		Description:  d.Description,
		Executor:     d.Executor,
		VotesFor:     d.VotesFor.BigInt(),
		VotesAgainst: d.VotesAgainst.BigInt(),
		CreatedAt:    d.CreatedAt,
		Executed:     d.Executed,
		Finalized:    d.Finalized,
	}
}

// ProposalListResponse is the body of GET /proposals
type ProposalListResponse struct {
	Total     int           `json:"total"`
	Proposals []ProposalDTO `json:"proposals"`
}

// ResultsResponse is the body of GET /results/{id}
type ResultsResponse struct {
	Id           uint64      `json:"id"`
	VotesFor     *FlexBigInt `json:"votesFor"`
	VotesAgainst *FlexBigInt `json:"votesAgainst"`
}
