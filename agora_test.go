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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/agoralabs-io/agora/backend"
	"github.com/agoralabs-io/agora/chain"
	"github.com/agoralabs-io/agora/event"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeIndexer is an in-memory stand-in for the indexer REST API
type fakeIndexer struct {
	mu        sync.Mutex
	proposals map[uint64]backend.ProposalDTO
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{
		proposals: make(map[uint64]backend.ProposalDTO),
	}
}

func (f *fakeIndexer) put(dto backend.ProposalDTO) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.proposals[dto.Id] = dto
}

func (f *fakeIndexer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(
		"GET /proposals",
		func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			resp := backend.ProposalListResponse{
				Proposals: make(
					[]backend.ProposalDTO,
					0,
					len(f.proposals),
				),
			}
			for _, dto := range f.proposals {
				resp.Proposals = append(resp.Proposals, dto)
			}
			resp.Total = len(resp.Proposals)
			f.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(resp)
		},
	)
	mux.HandleFunc(
		"GET /proposals/{id}",
		func(w http.ResponseWriter, r *http.Request) {
			id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
			if err != nil {
				http.Error(w, "bad id", http.StatusBadRequest)
				return
			}
			f.mu.Lock()
			dto, ok := f.proposals[id]
			f.mu.Unlock()
			if !ok {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(dto)
		},
	)
	return mux
}

type testEnv struct {
	client  *Client
	mock    *chain.Mock
	indexer *fakeIndexer
	bus     *event.EventBus
}

func newTestEnv(
	t *testing.T,
	caller string,
	mockOpts ...chain.MockOptionFunc,
) *testEnv {
	t.Helper()
	indexer := newFakeIndexer()
	srv := httptest.NewServer(indexer.handler())
	t.Cleanup(srv.Close)
	bus := event.NewEventBus(nil)
	t.Cleanup(bus.Stop)
	mock := chain.NewMock(bus, mockOpts...)
	client, err := New(NewConfig(
		WithEventBus(bus),
		WithBackend(backend.NewClient(srv.URL)),
		WithChainReader(mock),
		WithSubmitter(mock),
		WithCaller(caller),
		WithConfirmTimeout(250*time.Millisecond),
		WithConfirmInterval(10*time.Millisecond),
	))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, client.Stop())
	})
	return &testEnv{
		client:  client,
		mock:    mock,
		indexer: indexer,
		bus:     bus,
	}
}

func TestNewRequiresBackend(t *testing.T) {
	bus := event.NewEventBus(nil)
	defer bus.Stop()
	mock := chain.NewMock(bus)
	_, err := New(NewConfig(
		WithChainReader(mock),
		WithSubmitter(mock),
	))
	require.ErrorContains(t, err, "no backend client")
}

func TestNewRequiresChainAccess(t *testing.T) {
	_, err := New(NewConfig(
		WithBackend(backend.NewClient("http://localhost:0")),
	))
	require.ErrorContains(t, err, "invalid configuration")
}

func TestConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	require.Equal(t, defaultConfirmTimeout, cfg.confirmTimeout)
	require.Equal(t, defaultConfirmInterval, cfg.confirmInterval)
	require.NotNil(t, cfg.logger)
}

func TestConfigRejectsIntervalOverTimeout(t *testing.T) {
	bus := event.NewEventBus(nil)
	defer bus.Stop()
	mock := chain.NewMock(bus)
	_, err := New(NewConfig(
		WithBackend(backend.NewClient("http://localhost:0")),
		WithChainReader(mock),
		WithSubmitter(mock),
		WithConfirmTimeout(time.Second),
		WithConfirmInterval(2*time.Second),
	))
	require.ErrorContains(t, err, "poll interval exceeds")
}
