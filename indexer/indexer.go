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

// Package indexer builds a queryable off-chain view of governance state
// from chain events: a SQLite metadata store for queries, a badger
// journal of raw observations, and a REST API serving both.
package indexer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/agoralabs-io/agora/event"
	"github.com/agoralabs-io/agora/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type IndexerConfig struct {
	Logger       *slog.Logger
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
	// DataDir is the persistence root. Empty means fully in-memory.
	DataDir string
	// ListenAddress is the REST API bind address. Empty disables the API.
	ListenAddress string
}

type Indexer struct {
	config   IndexerConfig
	logger   *slog.Logger
	metadata *MetadataStore
	journal  *Journal
	api      *apiServer
	metrics  struct {
		eventsTotal *prometheus.CounterVec
	}
	stopOnce sync.Once
}

func New(cfg IndexerConfig) (*Indexer, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	metadata, err := NewMetadataStore(cfg.DataDir, logger)
	if err != nil {
		return nil, err
	}
	journal, err := NewJournal(cfg.DataDir, logger)
	if err != nil {
		metadata.Close()
		return nil, err
	}
	i := &Indexer{
		config:   cfg,
		logger:   logger,
		metadata: metadata,
		journal:  journal,
	}
	if cfg.PromRegistry != nil {
		promautoFactory := promauto.With(cfg.PromRegistry)
		i.metrics.eventsTotal = promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agora_indexer_events_total",
				Help: "governance events indexed by type",
			},
			[]string{"type"},
		)
	}
	return i, nil
}

// Start subscribes to governance events and starts the REST API
func (i *Indexer) Start(ctx context.Context) error {
	if i.config.EventBus != nil {
		i.config.EventBus.SubscribeFunc(
			event.ProposalCreatedEventType,
			i.handleProposalCreated,
		)
		i.config.EventBus.SubscribeFunc(
			event.VotedEventType,
			i.handleVoted,
		)
		i.config.EventBus.SubscribeFunc(
			event.ProposalExecutedEventType,
			i.handleProposalExecuted,
		)
	}
	if i.config.ListenAddress != "" {
		i.api = newApiServer(i, i.config.ListenAddress)
		if err := i.api.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stop shuts down the REST API and closes the backing stores
func (i *Indexer) Stop(ctx context.Context) error {
	var err error
	i.stopOnce.Do(func() {
		if i.api != nil {
			err = errors.Join(err, i.api.Stop(ctx))
		}
		err = errors.Join(err, i.journal.Close())
		err = errors.Join(err, i.metadata.Close())
	})
	return err
}

// ListenAddr returns the REST API's bound address, empty when the API is
// disabled or not started
func (i *Indexer) ListenAddr() string {
	if i.api == nil {
		return ""
	}
	return i.api.ListenAddr()
}

// Metadata returns the queryable metadata store
func (i *Indexer) Metadata() *MetadataStore {
	return i.metadata
}

// Journal returns the raw observation journal
func (i *Indexer) Journal() *Journal {
	return i.journal
}

func (i *Indexer) countEvent(eventType event.EventType) {
	if i.metrics.eventsTotal != nil {
		i.metrics.eventsTotal.WithLabelValues(string(eventType)).Inc()
	}
}

func (i *Indexer) handleProposalCreated(evt event.Event) {
	e, ok := evt.Data.(event.ProposalCreatedEvent)
	if !ok {
		return
	}
	i.countEvent(event.ProposalCreatedEventType)
	if err := i.journal.Append("proposal_created", e); err != nil {
		i.logger.Error(
			"failed to journal proposal creation",
			"component", "indexer",
			"id", e.Id,
			"error", err,
		)
	}
	err := i.metadata.UpsertProposal(&Proposal{
		ID:          e.Id,
		Description: e.Description,
		Creator:     e.Creator,
		ChainTime:   e.CreatedAt,
	})
	if err != nil {
		i.logger.Error(
			"failed to index proposal",
			"component", "indexer",
			"id", e.Id,
			"error", err,
		)
		return
	}
	i.logger.Info(
		"indexed proposal",
		"component", "indexer",
		"id", e.Id,
		"creator", e.Creator,
	)
}

func (i *Indexer) handleVoted(evt event.Event) {
	e, ok := evt.Data.(event.VotedEvent)
	if !ok {
		return
	}
	i.countEvent(event.VotedEventType)
	if err := i.journal.Append("voted", e); err != nil {
		i.logger.Error(
			"failed to journal vote",
			"component", "indexer",
			"id", e.Id,
			"error", err,
		)
	}
	weight := "1"
	if e.Weight != nil {
		weight = e.Weight.String()
	}
	err := i.metadata.ApplyVote(&Vote{
		ProposalID: e.Id,
		Voter:      ledger.NormalizeAddress(e.Voter),
		Support:    e.Support,
		Weight:     weight,
	})
	if err != nil {
		if errors.Is(err, ErrUnknownProposal) {
			// The vote arrived before the creation event; index a
			// placeholder row and retry once
			if upErr := i.metadata.UpsertProposal(&Proposal{ID: e.Id}); upErr == nil {
				err = i.metadata.ApplyVote(&Vote{
					ProposalID: e.Id,
					Voter:      ledger.NormalizeAddress(e.Voter),
					Support:    e.Support,
					Weight:     weight,
				})
			}
		}
		if err != nil {
			i.logger.Error(
				"failed to index vote",
				"component", "indexer",
				"id", e.Id,
				"voter", e.Voter,
				"error", err,
			)
			return
		}
	}
	i.logger.Debug(
		"indexed vote",
		"component", "indexer",
		"id", e.Id,
		"voter", e.Voter,
		"support", e.Support,
	)
}

func (i *Indexer) handleProposalExecuted(evt event.Event) {
	e, ok := evt.Data.(event.ProposalExecutedEvent)
	if !ok {
		return
	}
	i.countEvent(event.ProposalExecutedEventType)
	if err := i.journal.Append("proposal_executed", e); err != nil {
		i.logger.Error(
			"failed to journal execution",
			"component", "indexer",
			"id", e.Id,
			"error", err,
		)
	}
	if err := i.metadata.MarkExecuted(e.Id, e.Executor); err != nil {
		i.logger.Error(
			"failed to index execution",
			"component", "indexer",
			"id", e.Id,
			"error", err,
		)
		return
	}
	i.logger.Info(
		"indexed execution",
		"component", "indexer",
		"id", e.Id,
		"executor", e.Executor,
	)
}
