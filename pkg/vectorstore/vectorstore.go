// Package vectorstore is a thin REST client for a Chroma-like vector store:
// per-OS collections (templates_<os>, logs_<os>, proto_<os>), namespaced by
// embedding-function identity to avoid dimension mixing across providers.
//
// No ecosystem Go client for Chroma/Qdrant/Milvus/Weaviate exists anywhere
// in the retrieval pack, so this is implemented directly on net/http +
// encoding/json against Chroma's HTTP API shape, grounded on
// original_source/app/services/chroma_service.py.
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var unsafeCollectionChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// CollectionName appends the embedding-function identity to the base name,
// e.g. "proto_linux" + "text-embedding-3-small" -> "proto_linux__text-embedding-3-small".
// Runs of characters other than letters, digits, '_' and '-' become '_'.
func CollectionName(base, embeddingID string) string {
	if embeddingID == "" {
		return base
	}
	suffix := strings.Trim(unsafeCollectionChars.ReplaceAllString(embeddingID, "_"), "_")
	if suffix == "" {
		return base
	}
	return base + "__" + suffix
}

// CollectionForOS maps an OS key onto a stable per-OS collection name, e.g.
// "linux" -> prefix+"linux", "mac"/"osx" -> prefix+"macos".
func CollectionForOS(prefix, os string) string {
	key := strings.ToLower(strings.TrimSpace(os))
	switch key {
	case "mac", "macos", "osx":
		key = "macos"
	case "win":
		key = "windows"
	}
	return prefix + key
}

// Store is a REST client against a Chroma-compatible vector database.
type Store struct {
	baseURL string
	http    *http.Client
}

// New builds a Store against baseURL (e.g. "http://chroma:8000").
func New(baseURL string) *Store {
	return &Store{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Metadata is an arbitrary per-document metadata map.
type Metadata map[string]any

// UpsertRequest is the payload for Upsert.
type UpsertRequest struct {
	IDs        []string    `json:"ids"`
	Documents  []string    `json:"documents,omitempty"`
	Embeddings [][]float64 `json:"embeddings,omitempty"`
	Metadatas  []Metadata  `json:"metadatas,omitempty"`
}

// Upsert inserts or replaces documents by id. Concurrent upserts of the same
// id are expected to collapse idempotently server-side.
func (s *Store) Upsert(ctx context.Context, collection string, req UpsertRequest) error {
	return s.post(ctx, "/collections/"+collection+"/upsert", req, nil)
}

// Update patches metadata for existing ids without touching documents or
// embeddings.
func (s *Store) Update(ctx context.Context, collection string, ids []string, metadatas []Metadata) error {
	body := map[string]any{"ids": ids, "metadatas": metadatas}
	return s.post(ctx, "/collections/"+collection+"/update", body, nil)
}

// GetRequest selects rows by id and/or a metadata filter.
type GetRequest struct {
	IDs     []string       `json:"ids,omitempty"`
	Where   map[string]any `json:"where,omitempty"`
	Include []string       `json:"include,omitempty"`
	Limit   int            `json:"limit,omitempty"`
}

// GetResult is the row set returned by Get.
type GetResult struct {
	IDs        []string    `json:"ids"`
	Documents  []string    `json:"documents"`
	Embeddings [][]float64 `json:"embeddings"`
	Metadatas  []Metadata  `json:"metadatas"`
}

// Get fetches rows by id or metadata filter. A missing/empty collection
// returns a zero-length result rather than an error.
func (s *Store) Get(ctx context.Context, collection string, req GetRequest) (GetResult, error) {
	var out GetResult
	if err := s.post(ctx, "/collections/"+collection+"/get", req, &out); err != nil {
		if isNotFound(err) {
			return GetResult{}, nil
		}
		return GetResult{}, err
	}
	return out, nil
}

// QueryRequest drives a nearest-neighbor search, by text (server-side
// embedding) or by precomputed vectors.
type QueryRequest struct {
	QueryTexts      []string       `json:"query_texts,omitempty"`
	QueryEmbeddings [][]float64    `json:"query_embeddings,omitempty"`
	NResults        int            `json:"n_results"`
	Where           map[string]any `json:"where,omitempty"`
	Include         []string       `json:"include,omitempty"`
}

// QueryResult is one result set per query vector/text.
type QueryResult struct {
	IDs       [][]string   `json:"ids"`
	Documents [][]string   `json:"documents"`
	Metadatas [][]Metadata `json:"metadatas"`
	Distances [][]float64  `json:"distances"`
}

// Query runs a nearest-neighbor search. Empty/absent collections return an
// empty QueryResult, not an error.
func (s *Store) Query(ctx context.Context, collection string, req QueryRequest) (QueryResult, error) {
	var out QueryResult
	if err := s.post(ctx, "/collections/"+collection+"/query", req, &out); err != nil {
		if isNotFound(err) {
			return QueryResult{}, nil
		}
		return QueryResult{}, err
	}
	return out, nil
}

// Count returns the number of rows in a collection (0 if it doesn't exist).
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := s.get(ctx, "/collections/"+collection+"/count", &out); err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return out.Count, nil
}

type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("vectorstore: unexpected status %d: %s", e.status, e.body)
}

func isNotFound(err error) bool {
	var se *httpStatusError
	if e, ok := err.(*httpStatusError); ok {
		se = e
	}
	return se != nil && se.status == http.StatusNotFound
}

func (s *Store) post(ctx context.Context, path string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return s.do(req, out)
}

func (s *Store) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return s.do(req, out)
}

// do issues req, retrying transport-level failures (connection refused,
// reset, timeout) with bounded exponential backoff; HTTP-level error
// statuses are returned immediately and are not retried here.
func (s *Store) do(req *http.Request, out any) error {
	var resp *http.Response
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), req.Context())
	err := backoff.Retry(func() error {
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return backoff.Permanent(err)
			}
			req.Body = body
		}
		r, err := s.http.Do(req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}, bo)
	if err != nil {
		return fmt.Errorf("vectorstore request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return &httpStatusError{status: resp.StatusCode, body: string(data)}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
