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
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agoralabs-io/agora/chain"
	"github.com/agoralabs-io/agora/event"
	"github.com/agoralabs-io/agora/ledger"
	"github.com/agoralabs-io/agora/state"
)

// Client reconciles local optimistic state, the indexer backend, and
// on-chain reads into a single proposal view, and performs governance
// actions against the chain.
type Client struct {
	config        Config
	eventBus      *event.EventBus
	ownEventBus   bool
	voteLedger    *ledger.Ledger
	store         *state.Store
	params        *chain.GovParams
	nowFunc       func() uint64
	shutdownFuncs []func(context.Context) error
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	eventBus := cfg.eventBus
	ownEventBus := false
	if eventBus == nil {
		eventBus = event.NewEventBus(cfg.promRegistry)
		ownEventBus = true
	}
	voteLedger := ledger.New()
	c := &Client{
		config:      cfg,
		eventBus:    eventBus,
		ownEventBus: ownEventBus,
		voteLedger:  voteLedger,
		nowFunc: func() uint64 {
			// #nosec G115
			return uint64(time.Now().Unix())
		},
		store: state.NewStore(
			voteLedger,
			cfg.promRegistry,
			cfg.logger,
		),
	}
	return c, nil
}

// Start loads governance parameters, subscribes to chain events, and kicks
// off the initial backend sync. It does not block.
func (c *Client) Start(ctx context.Context) error {
	// Configure tracing
	if c.config.tracing {
		if err := c.setupTracing(); err != nil {
			return err
		}
	}
	// Governance parameters are loaded once and treated as fixed for the
	// lifetime of the client
	params, err := chain.Params(ctx, c.config.chainReader)
	if err != nil {
		return fmt.Errorf("load governance parameters: %w", err)
	}
	c.params = params
	// Background work outlives the Start context and is stopped via Stop
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.eventBus.SubscribeFunc(
		event.ProposalCreatedEventType,
		func(evt event.Event) { c.handleProposalCreated(runCtx, evt) },
	)
	c.eventBus.SubscribeFunc(
		event.VotedEventType,
		func(evt event.Event) { c.handleVoted(runCtx, evt) },
	)
	c.eventBus.SubscribeFunc(
		event.ProposalExecutedEventType,
		func(evt event.Event) { c.handleProposalExecuted(runCtx, evt) },
	)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.BackendSync(runCtx); err != nil {
			c.config.logger.Warn(
				"initial backend sync failed",
				"component", "client",
				"error", err,
			)
		}
	}()
	return nil
}

func (c *Client) Stop() error {
	var err error
	c.shutdownOnce.Do(func() {
		err = c.shutdown()
	})
	return err
}

func (c *Client) shutdown() error {
	ctx, cancel := context.WithTimeout(
		context.Background(),
		30*time.Second,
	)
	defer cancel()

	var err error
	c.config.logger.Debug(
		"starting graceful shutdown",
		"component", "client",
	)
	if c.cancel != nil {
		c.cancel()
	}
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		err = errors.Join(err, errors.New("timed out waiting for workers"))
	}
	// Call registered shutdown functions
	for _, fn := range c.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	c.shutdownFuncs = nil
	if c.ownEventBus && c.eventBus != nil {
		c.eventBus.Stop()
	}
	c.config.logger.Debug(
		"graceful shutdown complete",
		"component", "client",
	)
	return err
}

// Store returns the reconciled proposal store
func (c *Client) Store() *state.Store {
	return c.store
}

// Ledger returns the vote ledger
func (c *Client) Ledger() *ledger.Ledger {
	return c.voteLedger
}

// Params returns the governance parameters loaded at startup
func (c *Client) Params() *chain.GovParams {
	return c.params
}
