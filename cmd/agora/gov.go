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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strconv"

	"github.com/agoralabs-io/agora"
	"github.com/agoralabs-io/agora/backend"
	"github.com/agoralabs-io/agora/chain"
	"github.com/agoralabs-io/agora/event"
	"github.com/agoralabs-io/agora/format"
	"github.com/agoralabs-io/agora/internal/config"
	"github.com/spf13/cobra"
)

var weightDecimals uint

func backendClient(cfg *config.Config) *backend.Client {
	opts := []backend.ClientOption{}
	if cfg.BackendToken != "" {
		opts = append(opts, backend.WithAuthToken(cfg.BackendToken))
	}
	return backend.NewClient(cfg.BackendURL, opts...)
}

func renderWeight(v *big.Int) string {
	if v == nil {
		return "unknown"
	}
	if weightDecimals == 0 {
		return v.String()
	}
	ret, err := format.FromBaseUnits(v, weightDecimals)
	if err != nil {
		return v.String()
	}
	return ret
}

func requireConfig(cmd *cobra.Command) *config.Config {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		slog.Error("no config found in context")
		os.Exit(1)
	}
	return cfg
}

func parseIdArg(arg string) uint64 {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		slog.Error("invalid proposal id: " + arg)
		os.Exit(1)
	}
	return id
}

// devClient builds a reconciliation client backed by the built-in mock
// chain. Governance actions submit against this chain; reads come from
// the configured backend.
func devClient(cfg *config.Config, logger *slog.Logger) *agora.Client {
	eventBus := event.NewEventBus(nil)
	mock := chain.NewMock(eventBus, chain.WithCaller(cfg.Caller))
	confirmTimeout, err := cfg.ConfirmTimeoutDuration()
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
	confirmInterval, err := cfg.ConfirmIntervalDuration()
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
	client, err := agora.New(agora.NewConfig(
		agora.WithLogger(logger),
		agora.WithEventBus(eventBus),
		agora.WithBackend(backendClient(cfg)),
		agora.WithChainReader(mock),
		agora.WithSubmitter(mock),
		agora.WithCaller(cfg.Caller),
		agora.WithConfirmTimeout(confirmTimeout),
		agora.WithConfirmInterval(confirmInterval),
	))
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
	if err := client.Start(context.Background()); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
	return client
}

func printProposal(dto *backend.ProposalDTO) {
	status := "confirmed"
	switch {
	case dto.Executed:
		status = "executed"
	case dto.Finalized:
		status = "finalized"
	}
	fmt.Printf("proposal %d [%s]\n", dto.Id, status)
	fmt.Printf("  description:   %s\n", dto.Description)
	if dto.Creator != "" {
		fmt.Printf("  creator:       %s\n", dto.Creator)
	}
	if dto.Executor != "" {
		fmt.Printf("  executor:      %s\n", dto.Executor)
	}
	fmt.Printf("  votes for:     %s\n", renderWeight(dto.VotesFor.BigInt()))
	fmt.Printf(
		"  votes against: %s\n",
		renderWeight(dto.VotesAgainst.BigInt()),
	)
	if dto.CreatedAt > 0 {
		fmt.Printf("  created at:    %d\n", dto.CreatedAt)
	}
}

func listCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List proposals known to the backend",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := requireConfig(cmd)
			commonRun()
			resp, err := backendClient(cfg).ListProposals(cmd.Context())
			if err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
			fmt.Printf("%d proposal(s)\n", resp.Total)
			for _, dto := range resp.Proposals {
				printProposal(&dto)
			}
		},
	}
	cmd.Flags().UintVar(
		&weightDecimals,
		"decimals",
		0,
		"render vote weights with this many token decimals",
	)
	return cmd
}

func showCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one proposal",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := requireConfig(cmd)
			commonRun()
			dto, err := backendClient(cfg).GetProposal(
				cmd.Context(),
				parseIdArg(args[0]),
			)
			if err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
			printProposal(dto)
		},
	}
	cmd.Flags().UintVar(
		&weightDecimals,
		"decimals",
		0,
		"render vote weights with this many token decimals",
	)
	return cmd
}

func proposeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "propose <description>",
		Short: "Submit a new proposal (dev chain)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := requireConfig(cmd)
			logger := commonRun()
			client := devClient(cfg, logger)
			defer client.Stop()
			p, err := client.CreateProposal(cmd.Context(), args[0])
			if err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
			fmt.Printf("created proposal %d\n", p.Id)
		},
	}
}

func voteCommand() *cobra.Command {
	var against bool
	cmd := &cobra.Command{
		Use:   "vote <id>",
		Short: "Vote on a proposal (dev chain)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := requireConfig(cmd)
			logger := commonRun()
			client := devClient(cfg, logger)
			defer client.Stop()
			id := parseIdArg(args[0])
			err := client.VoteOnProposal(cmd.Context(), id, !against)
			if err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
			fmt.Printf("voted on proposal %d\n", id)
		},
	}
	cmd.Flags().BoolVar(&against, "against", false, "vote against")
	return cmd
}

func executeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "execute <id>",
		Short: "Execute a passed proposal (dev chain)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := requireConfig(cmd)
			logger := commonRun()
			client := devClient(cfg, logger)
			defer client.Stop()
			id := parseIdArg(args[0])
			if err := client.ExecuteProposal(cmd.Context(), id); err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
			fmt.Printf("executed proposal %d\n", id)
		},
	}
}

func finalizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "finalize <id>",
		Short: "Finalize a defeated proposal (dev chain)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := requireConfig(cmd)
			logger := commonRun()
			client := devClient(cfg, logger)
			defer client.Stop()
			id := parseIdArg(args[0])
			if err := client.FinalizeProposal(cmd.Context(), id); err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
			fmt.Printf("finalized proposal %d\n", id)
		},
	}
}
