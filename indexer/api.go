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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/agoralabs-io/agora/backend"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// apiServer is the indexer's REST API
type apiServer struct {
	indexer    *Indexer
	addr       string
	listenAddr string
	httpServer *http.Server
	mu         sync.Mutex
}

// ErrorResponse is the API's error body
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	IsHealthy bool `json:"is_healthy"`
}

// VoteDTO is the wire representation of one recorded vote
type VoteDTO struct {
	Voter   string `json:"voter"`
	Support bool   `json:"support"`
	Weight  string `json:"weight"`
}

func newApiServer(indexer *Indexer, addr string) *apiServer {
	return &apiServer{
		indexer: indexer,
		addr:    addr,
	}
}

// Start starts the HTTP server in a background goroutine. The listening
// socket is bound first so port conflicts are detected immediately.
func (a *apiServer) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.httpServer != nil {
		a.mu.Unlock()
		return errors.New("server already started")
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /proposals", a.handleListProposals)
	mux.HandleFunc("GET /proposals/{id}", a.handleGetProposal)
	mux.HandleFunc("GET /proposals/{id}/votes", a.handleGetVotes)
	mux.HandleFunc("GET /results/{id}", a.handleGetResults)
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              a.addr,
		Handler:           mux,
		ReadHeaderTimeout: 60 * time.Second,
	}
	a.httpServer = server
	a.mu.Unlock()

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		a.mu.Lock()
		a.httpServer = nil
		a.mu.Unlock()
		return fmt.Errorf("failed to listen for indexer API server: %w", err)
	}
	a.mu.Lock()
	a.listenAddr = ln.Addr().String()
	a.mu.Unlock()
	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			a.indexer.logger.Error(
				"indexer API server error",
				"component", "indexer",
				"error", err,
			)
		}
	}()
	a.indexer.logger.Info(
		"indexer API listener started on "+a.listenAddr,
		"component", "indexer",
	)

	// Monitor context for cancellation
	go func() {
		<-ctx.Done()
		a.mu.Lock()
		srv := a.httpServer
		a.httpServer = nil
		a.mu.Unlock()
		if srv != nil {
			//nolint:contextcheck
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				30*time.Second,
			)
			defer cancel()
			//nolint:contextcheck
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.indexer.logger.Error(
					"failed to shutdown indexer API server on context cancellation",
					"component", "indexer",
					"error", err,
				)
			}
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server
func (a *apiServer) Stop(ctx context.Context) error {
	a.mu.Lock()
	srv := a.httpServer
	a.httpServer = nil
	a.mu.Unlock()
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf(
				"failed to shutdown indexer API server: %w",
				err,
			)
		}
	}
	return nil
}

// ListenAddr returns the bound listen address, useful when the configured
// address uses an ephemeral port
func (a *apiServer) ListenAddr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listenAddr
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errStr, message string) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      errStr,
		Message:    message,
	})
}

func parseIdParam(r *http.Request) (uint64, error) {
	return strconv.ParseUint(r.PathValue("id"), 10, 64)
}

func (a *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{IsHealthy: true})
}

func (a *apiServer) handleListProposals(
	w http.ResponseWriter,
	_ *http.Request,
) {
	rows, err := a.indexer.metadata.ListProposals()
	if err != nil {
		a.indexer.logger.Error(
			"failed to list proposals",
			"component", "indexer",
			"error", err,
		)
		writeError(
			w,
			http.StatusInternalServerError,
			"Internal Server Error",
			"failed to retrieve proposals",
		)
		return
	}
	resp := backend.ProposalListResponse{
		Total:     len(rows),
		Proposals: make([]backend.ProposalDTO, 0, len(rows)),
	}
	for _, row := range rows {
		resp.Proposals = append(resp.Proposals, row.DTO())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *apiServer) handleGetProposal(
	w http.ResponseWriter,
	r *http.Request,
) {
	id, err := parseIdParam(r)
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			"invalid proposal id",
		)
		return
	}
	row, err := a.indexer.metadata.GetProposal(id)
	if err != nil {
		if errors.Is(err, ErrUnknownProposal) {
			writeError(
				w,
				http.StatusNotFound,
				"Not Found",
				"proposal not found",
			)
			return
		}
		a.indexer.logger.Error(
			"failed to get proposal",
			"component", "indexer",
			"id", id,
			"error", err,
		)
		writeError(
			w,
			http.StatusInternalServerError,
			"Internal Server Error",
			"failed to retrieve proposal",
		)
		return
	}
	writeJSON(w, http.StatusOK, row.DTO())
}

func (a *apiServer) handleGetVotes(w http.ResponseWriter, r *http.Request) {
	id, err := parseIdParam(r)
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			"invalid proposal id",
		)
		return
	}
	if _, err := a.indexer.metadata.GetProposal(id); err != nil {
		if errors.Is(err, ErrUnknownProposal) {
			writeError(
				w,
				http.StatusNotFound,
				"Not Found",
				"proposal not found",
			)
			return
		}
	}
	votes, err := a.indexer.metadata.GetVotes(id)
	if err != nil {
		a.indexer.logger.Error(
			"failed to get votes",
			"component", "indexer",
			"id", id,
			"error", err,
		)
		writeError(
			w,
			http.StatusInternalServerError,
			"Internal Server Error",
			"failed to retrieve votes",
		)
		return
	}
	ret := make([]VoteDTO, 0, len(votes))
	for _, v := range votes {
		ret = append(ret, VoteDTO{
			Voter:   v.Voter,
			Support: v.Support,
			Weight:  v.Weight,
		})
	}
	writeJSON(w, http.StatusOK, ret)
}

func (a *apiServer) handleGetResults(
	w http.ResponseWriter,
	r *http.Request,
) {
	id, err := parseIdParam(r)
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			"invalid proposal id",
		)
		return
	}
	row, err := a.indexer.metadata.GetProposal(id)
	if err != nil {
		if errors.Is(err, ErrUnknownProposal) {
			writeError(
				w,
				http.StatusNotFound,
				"Not Found",
				"proposal not found",
			)
			return
		}
		a.indexer.logger.Error(
			"failed to get results",
			"component", "indexer",
			"id", id,
			"error", err,
		)
		writeError(
			w,
			http.StatusInternalServerError,
			"Internal Server Error",
			"failed to retrieve results",
		)
		return
	}
	writeJSON(w, http.StatusOK, backend.ResultsResponse{
		Id:           row.ID,
		VotesFor:     backend.NewFlexBigInt(parseWeight(row.VotesFor)),
		VotesAgainst: backend.NewFlexBigInt(parseWeight(row.VotesAgainst)),
	})
}
