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

// Package backend is the REST client for the proposal indexer. The
// indexer is advisory: it reflects chain state with unknown latency, so
// callers treat its data as a hint to be corrected by chain checkpoint
// reads.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client is an HTTP client for the indexer REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom *http.Client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithAuthToken sets the bearer token attached to every request. The
// token comes from the auth collaborator's nonce-then-signature
// exchange; the client never refreshes it.
func WithAuthToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// NewClient creates a new indexer API client. The baseURL should be the
// root of the indexer API (e.g. "http://localhost:8090").
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) doGet(
	ctx context.Context,
	path string,
	notFoundId uint64,
) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		c.baseURL+path,
		nil,
	)
	if err != nil {
		return nil, &TransportError{Op: "GET " + path, Err: err}
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "GET " + path, Err: err}
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, &NotFoundError{Id: notFoundId}
	case http.StatusUnauthorized, http.StatusForbidden:
		resp.Body.Close()
		return nil, &AuthError{Status: resp.StatusCode}
	default:
		resp.Body.Close()
		return nil, &TransportError{
			Op:  "GET " + path,
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
}

// ListProposals retrieves the full proposal list.
// Corresponds to GET /proposals.
func (c *Client) ListProposals(
	ctx context.Context,
) (*ProposalListResponse, error) {
	body, err := c.doGet(ctx, "/proposals", 0)
	if err != nil {
		return nil, fmt.Errorf("listing proposals: %w", err)
	}
	defer body.Close()

	var ret ProposalListResponse
	if err := json.NewDecoder(body).Decode(&ret); err != nil {
		return nil, fmt.Errorf("decoding proposal list: %w", err)
	}
	return &ret, nil
}

// GetProposal retrieves a single proposal by its on-chain id.
// Corresponds to GET /proposals/{id}.
func (c *Client) GetProposal(
	ctx context.Context,
	id uint64,
) (*ProposalDTO, error) {
	body, err := c.doGet(
		ctx,
		"/proposals/"+strconv.FormatUint(id, 10),
		id,
	)
	if err != nil {
		if IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("getting proposal %d: %w", id, err)
	}
	defer body.Close()

	var ret ProposalDTO
	if err := json.NewDecoder(body).Decode(&ret); err != nil {
		return nil, fmt.Errorf("decoding proposal %d: %w", id, err)
	}
	return &ret, nil
}

// GetResults retrieves the vote tallies for a proposal.
// Corresponds to GET /results/{id}.
func (c *Client) GetResults(
	ctx context.Context,
	id uint64,
) (*ResultsResponse, error) {
	body, err := c.doGet(
		ctx,
		"/results/"+strconv.FormatUint(id, 10),
		id,
	)
	if err != nil {
		if IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("getting results for %d: %w", id, err)
	}
	defer body.Close()

	var ret ResultsResponse
	if err := json.NewDecoder(body).Decode(&ret); err != nil {
		return nil, fmt.Errorf("decoding results for %d: %w", id, err)
	}
	return &ret, nil
}
