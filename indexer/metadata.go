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
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// ErrUnknownProposal is returned by metadata store lookups for an
// unindexed proposal id
var ErrUnknownProposal = errors.New("unknown proposal")

// MetadataStore is the SQLite-backed queryable view of indexed
// governance state.
type MetadataStore struct {
	db      *gorm.DB
	logger  *slog.Logger
	dataDir string
}

// NewMetadataStore creates a SQLite metadata store. Uses an in-memory
// database if dataDir is empty.
func NewMetadataStore(
	dataDir string,
	logger *slog.Logger,
) (*MetadataStore, error) {
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	var metadataDb *gorm.DB
	var err error
	if dataDir == "" {
		// cache=shared allows multiple connections to share the same
		// in-memory database
		metadataDb, err = gorm.Open(
			sqlite.Open("file::memory:?cache=shared"),
			&gorm.Config{
				Logger:                 gormlogger.Discard,
				SkipDefaultTransaction: true,
			},
		)
		if err != nil {
			return nil, err
		}
	} else {
		// Make sure that we can read data dir, and create if it doesn't exist
		if _, err := os.Stat(dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(dataDir, fs.ModePerm); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		metadataDbPath := filepath.Join(dataDir, "metadata.sqlite")
		// WAL journal mode, disable sync on write, increase cache size
		metadataConnOpts := "_pragma=journal_mode(WAL)&_pragma=sync(OFF)&_pragma=cache_size(-50000)"
		metadataDb, err = gorm.Open(
			sqlite.Open(
				fmt.Sprintf("file:%s?%s", metadataDbPath, metadataConnOpts),
			),
			&gorm.Config{
				Logger:                 gormlogger.Discard,
				SkipDefaultTransaction: true,
			},
		)
		if err != nil {
			return nil, err
		}
	}
	// Configure tracing for GORM
	if err := metadataDb.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}
	d := &MetadataStore{
		db:      metadataDb,
		logger:  logger,
		dataDir: dataDir,
	}
	// Create table schemas
	for _, model := range MigrateModels {
		d.logger.Debug(
			fmt.Sprintf("creating table: %#v", model),
			"component", "indexer",
		)
		if err := d.db.AutoMigrate(model); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// DB returns the underlying GORM database handle
func (d *MetadataStore) DB() *gorm.DB {
	return d.db
}

func (d *MetadataStore) Close() error {
	db, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	return db.Close()
}

// UpsertProposal inserts the proposal, or fills in fields on an existing
// row. Vote tallies are owned by ApplyVote and are not touched when the
// row already exists.
func (d *MetadataStore) UpsertProposal(p *Proposal) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		var existing Proposal
		result := tx.First(&existing, "id = ?", p.ID)
		if result.Error != nil {
			if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return result.Error
			}
			if p.VotesFor == "" {
				p.VotesFor = "0"
			}
			if p.VotesAgainst == "" {
				p.VotesAgainst = "0"
			}
			return tx.Create(p).Error
		}
		updates := map[string]any{}
		if p.Description != "" && existing.Description == "" {
			updates["description"] = p.Description
		}
		if p.Creator != "" {
			updates["creator"] = p.Creator
		}
		if p.Executor != "" {
			updates["executor"] = p.Executor
		}
		if p.ChainTime > 0 {
			updates["chain_time"] = p.ChainTime
		}
		if p.Deadline > 0 {
			updates["deadline"] = p.Deadline
		}
		if p.Executed {
			updates["executed"] = true
		}
		if p.Finalized {
			updates["finalized"] = true
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&Proposal{}).
			Where("id = ?", p.ID).
			Updates(updates).Error
	})
}

// ApplyVote records a vote and adds its weight to the proposal's tally.
// A repeat vote by the same voter is ignored.
func (d *MetadataStore) ApplyVote(v *Vote) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		var p Proposal
		result := tx.First(&p, "id = ?", v.ProposalID)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return ErrUnknownProposal
			}
			return result.Error
		}
		var existing Vote
		result = tx.First(
			&existing,
			"proposal_id = ? AND voter = ?",
			v.ProposalID,
			v.Voter,
		)
		if result.Error == nil {
			// Replayed vote event
			return nil
		}
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return result.Error
		}
		if err := tx.Create(v).Error; err != nil {
			return err
		}
		weight := parseWeight(v.Weight)
		column := "votes_against"
		current := p.VotesAgainst
		if v.Support {
			column = "votes_for"
			current = p.VotesFor
		}
		sum := new(big.Int).Add(parseWeight(current), weight)
		return tx.Model(&Proposal{}).
			Where("id = ?", v.ProposalID).
			Update(column, sum.String()).Error
	})
}

// MarkExecuted flags the proposal as executed and records the executor
func (d *MetadataStore) MarkExecuted(id uint64, executor string) error {
	updates := map[string]any{"executed": true}
	if executor != "" {
		updates["executor"] = executor
	}
	result := d.db.Model(&Proposal{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUnknownProposal
	}
	return nil
}

// GetProposal returns the indexed proposal row for the given id
func (d *MetadataStore) GetProposal(id uint64) (*Proposal, error) {
	var p Proposal
	result := d.db.First(&p, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownProposal
		}
		return nil, result.Error
	}
	return &p, nil
}

// ListProposals returns all indexed proposals, newest first
func (d *MetadataStore) ListProposals() ([]Proposal, error) {
	var ret []Proposal
	result := d.db.Order("id DESC").Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// GetVotes returns the recorded votes for a proposal
func (d *MetadataStore) GetVotes(id uint64) ([]Vote, error) {
	var ret []Vote
	result := d.db.Order("id ASC").
		Find(&ret, "proposal_id = ?", id)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
