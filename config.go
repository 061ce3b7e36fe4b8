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
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/agoralabs-io/agora/backend"
	"github.com/agoralabs-io/agora/chain"
	"github.com/agoralabs-io/agora/event"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	defaultConfirmTimeout  = 10 * time.Second
	defaultConfirmInterval = 1 * time.Second
)

type Config struct {
	logger          *slog.Logger
	promRegistry    prometheus.Registerer
	eventBus        *event.EventBus
	backend         *backend.Client
	chainReader     chain.StateReader
	submitter       chain.TxSubmitter
	caller          string
	confirmTimeout  time.Duration
	confirmInterval time.Duration
	tracing         bool
	tracingStdout   bool
}

func (c *Config) validate() error {
	if c.backend == nil {
		return errors.New("no backend client configured")
	}
	if c.chainReader == nil {
		return errors.New("no chain state reader configured")
	}
	if c.submitter == nil {
		return errors.New("no transaction submitter configured")
	}
	if c.confirmInterval > c.confirmTimeout {
		return errors.New(
			"confirmation poll interval exceeds confirmation timeout",
		)
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the Client config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new agora config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:          slog.New(slog.NewJSONHandler(io.Discard, nil)),
		confirmTimeout:  defaultConfirmTimeout,
		confirmInterval: defaultConfirmInterval,
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies the Prometheus registerer to use for metrics
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithEventBus specifies the event bus to subscribe to for governance
// events. The default is to create a private bus
func WithEventBus(bus *event.EventBus) ConfigOptionFunc {
	return func(c *Config) {
		c.eventBus = bus
	}
}

// WithBackend specifies the backend API client to reconcile against
func WithBackend(client *backend.Client) ConfigOptionFunc {
	return func(c *Config) {
		c.backend = client
	}
}

// WithChainReader specifies the chain state reader used for checkpoint
// reads and quorum checks
func WithChainReader(reader chain.StateReader) ConfigOptionFunc {
	return func(c *Config) {
		c.chainReader = reader
	}
}

// WithSubmitter specifies the transaction submitter used by governance
// actions
func WithSubmitter(submitter chain.TxSubmitter) ConfigOptionFunc {
	return func(c *Config) {
		c.submitter = submitter
	}
}

// WithCaller specifies the address that governance actions are performed as
func WithCaller(caller string) ConfigOptionFunc {
	return func(c *Config) {
		c.caller = caller
	}
}

// WithConfirmTimeout specifies how long an action waits for the backend to
// reflect a submitted transaction before giving up. The action itself still
// succeeds when the timeout elapses
func WithConfirmTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.confirmTimeout = timeout
	}
}

// WithConfirmInterval specifies the delay between backend confirmation polls
func WithConfirmInterval(interval time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.confirmInterval = interval
	}
}

// WithTracing enables OpenTelemetry tracing
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout in addition to the
// OTLP exporter
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}
