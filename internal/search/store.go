// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package search

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/morganforge/parley/internal/api"
)

// Query pacing. Search runs as-you-type, so unthrottled keystrokes
// would hammer the index.
const (
	queriesPerSecond = 5
	queryBurst       = 2
)

// searchClient is the backend surface Store needs.
type searchClient interface {
	SmartSearch(ctx context.Context, query string) (*api.SearchResponse, error)
	SearchSchema(ctx context.Context) ([]api.SchemaGroup, error)
}

// =============================================================================
// SEARCH STORE
// =============================================================================

// Store runs smart-search queries and caches the server-owned schema
// groups that describe the searchable fields.
type Store struct {
	mu sync.Mutex

	client  searchClient
	limiter *rate.Limiter

	lastQuery string
	hits      []api.SearchHit
	schema    []api.SchemaGroup
}

// NewStore creates a search store backed by the given client.
func NewStore(client searchClient) *Store {
	return &Store{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(queriesPerSecond), queryBurst),
	}
}

// Query runs a smart-search query, blocking briefly if queries are
// arriving faster than the pacing allows. Blank queries clear the
// result set without touching the backend.
func (s *Store) Query(ctx context.Context, query string) ([]api.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		s.mu.Lock()
		s.lastQuery = ""
		s.hits = nil
		s.mu.Unlock()
		return nil, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := s.client.SmartSearch(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastQuery = query
	s.hits = resp.Hits
	return resp.Hits, nil
}

// Hits returns the hits of the most recent successful query.
func (s *Store) Hits() []api.SearchHit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.SearchHit, len(s.hits))
	copy(out, s.hits)
	return out
}

// LastQuery returns the most recent non-blank query text.
func (s *Store) LastQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastQuery
}

// LoadSchema fetches the server-owned schema groups.
func (s *Store) LoadSchema(ctx context.Context) ([]api.SchemaGroup, error) {
	schema, err := s.client.SearchSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load search schema: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.schema = schema
	return schema, nil
}

// Schema returns the cached schema groups.
func (s *Store) Schema() []api.SchemaGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.SchemaGroup, len(s.schema))
	copy(out, s.schema)
	return out
}
