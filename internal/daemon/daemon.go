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

// Package daemon wires the event bus, indexer, reconciliation client and
// metrics listener into a long-running process.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // #nosec G108
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agoralabs-io/agora"
	"github.com/agoralabs-io/agora/backend"
	"github.com/agoralabs-io/agora/chain"
	"github.com/agoralabs-io/agora/event"
	"github.com/agoralabs-io/agora/indexer"
	"github.com/agoralabs-io/agora/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "daemon")

	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	eventBus := event.NewEventBus(prometheus.DefaultRegisterer)
	defer eventBus.Stop()

	idx, err := indexer.New(indexer.IndexerConfig{
		Logger:       logger,
		EventBus:     eventBus,
		PromRegistry: prometheus.DefaultRegisterer,
		DataDir:      cfg.DatabasePath,
		ListenAddress: fmt.Sprintf(
			"%s:%d",
			cfg.BindAddr,
			cfg.ApiPort,
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create indexer: %w", err)
	}
	if err := idx.Start(signalCtx); err != nil {
		return fmt.Errorf("failed to start indexer: %w", err)
	}

	// Reconciliation client against our own API, driven by the mock
	// chain in dev mode. Without a chain source the indexer only serves
	// previously indexed state.
	var client *agora.Client
	if cfg.Dev {
		mock := chain.NewMock(eventBus, chain.WithCaller(cfg.Caller))
		confirmTimeout, err := cfg.ConfirmTimeoutDuration()
		if err != nil {
			return err
		}
		confirmInterval, err := cfg.ConfirmIntervalDuration()
		if err != nil {
			return err
		}
		backendOpts := []backend.ClientOption{}
		if cfg.BackendToken != "" {
			backendOpts = append(
				backendOpts,
				backend.WithAuthToken(cfg.BackendToken),
			)
		}
		client, err = agora.New(agora.NewConfig(
			agora.WithLogger(logger),
			agora.WithPrometheusRegistry(prometheus.DefaultRegisterer),
			agora.WithEventBus(eventBus),
			agora.WithBackend(
				backend.NewClient(
					"http://"+idx.ListenAddr(),
					backendOpts...,
				),
			),
			agora.WithChainReader(mock),
			agora.WithSubmitter(mock),
			agora.WithCaller(cfg.Caller),
			agora.WithConfirmTimeout(confirmTimeout),
			agora.WithConfirmInterval(confirmInterval),
			agora.WithTracing(cfg.Tracing),
			agora.WithTracingStdout(cfg.TracingStdout),
		))
		if err != nil {
			return fmt.Errorf("failed to create client: %w", err)
		}
		if err := client.Start(signalCtx); err != nil {
			return fmt.Errorf("failed to start client: %w", err)
		}
	} else {
		logger.Warn(
			"no chain event source configured, indexer serves existing state only",
			"component", "daemon",
		)
	}

	// Metrics and debug listener
	http.Handle("/metrics", promhttp.Handler())
	logger.Info(
		"serving prometheus metrics on "+fmt.Sprintf(
			"%s:%d",
			cfg.BindAddr,
			cfg.MetricsPort,
		),
		"component", "daemon",
	)
	metricsServer := &http.Server{
		Addr: fmt.Sprintf(
			"%s:%d",
			cfg.BindAddr,
			cfg.MetricsPort,
		),
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			logger.Error(
				fmt.Sprintf("failed to start metrics listener: %s", err),
				"component", "daemon",
			)
			os.Exit(1)
		}
	}()

	<-signalCtx.Done()
	logger.Info("signal received, initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		30*time.Second,
	)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", "error", err)
	}
	if client != nil {
		if err := client.Stop(); err != nil {
			logger.Error("client shutdown error", "error", err)
		}
	}
	if err := idx.Stop(shutdownCtx); err != nil {
		logger.Error("indexer shutdown error", "error", err)
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
