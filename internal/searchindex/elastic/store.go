// Package elastic implements the search index on Elasticsearch. Conditional
// writes use external versioning so Elasticsearch itself enforces the
// version compare-and-write for each document.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"searchahouse/platform/config"
	"searchahouse/platform/logger"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Store is the Elasticsearch backed search index.
type Store struct {
	es     *elasticsearch.Client
	prefix string
	log    *logger.Logger
}

// New creates a store from configuration.
func New(cfg config.SearchIndexConfig, log *logger.Logger) (*Store, error) {
	return NewWithTransport(cfg, nil, log)
}

// NewWithTransport creates a store using a custom transport. Used by tests.
func NewWithTransport(cfg config.SearchIndexConfig, transport http.RoundTripper, log *logger.Logger) (*Store, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    cfg.GetElasticsearchURLs(),
		Username:     cfg.GetElasticsearchUsername(),
		Password:     cfg.GetElasticsearchPassword(),
		APIKey:       cfg.GetElasticsearchAPIKey(),
		Transport:    transport,
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	prefix := strings.TrimSpace(cfg.GetSearchIndexPrefix())
	if prefix == "" {
		prefix = "searchahouse"
	}
	return &Store{es: es, prefix: prefix, log: log}, nil
}

// IndexName returns the index holding documents of entityType.
func (s *Store) IndexName(entityType string) string {
	return s.prefix + "-" + entityType
}

// Ping checks that the cluster answers.
func (s *Store) Ping(ctx context.Context) error {
	res, err := s.es.Ping(s.es.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: %s", res.Status())
	}
	return nil
}

// EnsureIndices creates the index for every entity type that does not exist yet.
func (s *Store) EnsureIndices(ctx context.Context, entityTypes []string) error {
	for _, entityType := range entityTypes {
		if err := s.ensureIndex(ctx, entityType); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ensureIndex(ctx context.Context, entityType string) error {
	index := s.IndexName(entityType)

	res, err := s.es.Indices.Exists([]string{index}, s.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", index, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("check index %s: %s", index, res.Status())
	}

	body, err := json.Marshal(indexDefinition(entityType))
	if err != nil {
		return err
	}
	res, err = s.es.Indices.Create(index,
		s.es.Indices.Create.WithBody(bytes.NewReader(body)),
		s.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		e := decodeError(res)
		// another process created it first
		if e.Type == "resource_already_exists_exception" {
			return nil
		}
		return fmt.Errorf("create index %s: %s", index, e)
	}

	if s.log != nil {
		s.log.Info("search index created", "index", index)
	}
	return nil
}

type esError struct {
	Status int
	Type   string
	Reason string
}

func (e esError) String() string {
	if e.Type == "" {
		return fmt.Sprintf("status %d", e.Status)
	}
	return fmt.Sprintf("status %d: %s: %s", e.Status, e.Type, e.Reason)
}

func decodeError(res *esapi.Response) esError {
	out := esError{Status: res.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err != nil {
		return out
	}
	var body struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(raw, &body) != nil || len(body.Error) == 0 {
		return out
	}
	var detail struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	}
	if json.Unmarshal(body.Error, &detail) == nil {
		out.Type = detail.Type
		out.Reason = detail.Reason
		return out
	}
	var reason string
	if json.Unmarshal(body.Error, &reason) == nil {
		out.Reason = reason
	}
	return out
}

// 429 and 5xx are worth retrying, other 4xx are not.
func transient(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
