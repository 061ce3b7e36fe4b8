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

package indexer

import (
	"math/big"

	"github.com/agoralabs-io/agora/backend"
)

// Proposal is the metadata store's row for an indexed proposal. Vote
// weights are stored as decimal strings so token base units never pass
// through floating point or overflow an integer column.
type Proposal struct {
	ID           uint64 `gorm:"primaryKey"`
	Description  string
	Creator      string `gorm:"index"`
	Executor     string
	VotesFor     string
	VotesAgainst string
	// ChainTime is the proposal's chain creation timestamp in seconds
	ChainTime uint64
	Deadline  uint64
	Executed  bool
	Finalized bool
}

func (Proposal) TableName() string {
	return "proposals"
}

// DTO maps the row into the API wire shape
func (p *Proposal) DTO() backend.ProposalDTO {
	return backend.ProposalDTO{
		Id:           p.ID,
		Description:  p.Description,
		Executed:     p.Executed,
		Finalized:    p.Finalized,
		Creator:      p.Creator,
		VotesFor:     backend.NewFlexBigInt(parseWeight(p.VotesFor)),
		VotesAgainst: backend.NewFlexBigInt(parseWeight(p.VotesAgainst)),
		Executor:     p.Executor,
		CreatedAt:    p.ChainTime,
	}
}

// Vote is one observed vote cast. The unique index over proposal and
// voter makes replayed vote events no-ops.
type Vote struct {
	ID         uint   `gorm:"primaryKey"`
	ProposalID uint64 `gorm:"uniqueIndex:idx_votes_proposal_voter"`
	Voter      string `gorm:"uniqueIndex:idx_votes_proposal_voter"`
	Support    bool
	Weight     string
}

func (Vote) TableName() string {
	return "votes"
}

// MigrateModels is the list of model schemas created at startup
var MigrateModels = []any{
	&Proposal{},
	&Vote{},
}

func parseWeight(s string) *big.Int {
	if s == "" {
		return new(big.Int)
	}
	ret, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return ret
}
