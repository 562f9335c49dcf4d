package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"searchahouse/internal/searchindex"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

type source struct {
	Entity    json.RawMessage `json:"entity,omitempty"`
	Deleted   bool            `json:"deleted"`
	Version   int64           `json:"version"`
	IndexedAt time.Time       `json:"indexedAt"`
}

// Put writes doc with external versioning. Elasticsearch rejects the write
// with 409 unless doc.Version is strictly greater than the stored version.
func (s *Store) Put(ctx context.Context, doc searchindex.Document) (searchindex.Outcome, error) {
	indexedAt := doc.IndexedAt
	if indexedAt.IsZero() {
		indexedAt = time.Now().UTC()
	}
	return s.write(ctx, "put", doc.Type, doc.ID, doc.Version, "external", source{
		Entity:    doc.Body,
		Version:   doc.Version,
		IndexedAt: indexedAt,
	})
}

// Delete replaces the document with a tombstone. external_gte lets a delete
// carrying the same version as the live document win.
func (s *Store) Delete(ctx context.Context, entityType, id string, version int64) (searchindex.Outcome, error) {
	return s.write(ctx, "delete", entityType, id, version, "external_gte", source{
		Deleted:   true,
		Version:   version,
		IndexedAt: time.Now().UTC(),
	})
}

func (s *Store) write(ctx context.Context, op, entityType, id string, version int64, versionType string, src source) (searchindex.Outcome, error) {
	if version < 0 {
		return "", &searchindex.WriteError{Op: op, Permanent: true, Err: fmt.Errorf("negative version %d", version)}
	}

	body, err := json.Marshal(src)
	if err != nil {
		return "", &searchindex.WriteError{Op: op, Permanent: true, Err: err}
	}

	res, err := s.es.Index(s.IndexName(entityType), bytes.NewReader(body),
		s.es.Index.WithDocumentID(id),
		s.es.Index.WithVersion(int(version)),
		s.es.Index.WithVersionType(versionType),
		s.es.Index.WithContext(ctx),
	)
	if err != nil {
		return "", &searchindex.WriteError{Op: op, Err: err}
	}
	defer res.Body.Close()

	return outcome(op, res)
}

func outcome(op string, res *esapi.Response) (searchindex.Outcome, error) {
	if !res.IsError() {
		return searchindex.Applied, nil
	}
	if res.StatusCode == http.StatusConflict {
		return searchindex.Stale, nil
	}
	e := decodeError(res)
	return "", &searchindex.WriteError{
		Op:        op,
		Status:    res.StatusCode,
		Permanent: !transient(res.StatusCode),
		Err:       errors.New(e.String()),
	}
}

// Get returns the stored document, tombstones included.
func (s *Store) Get(ctx context.Context, entityType, id string) (searchindex.Document, bool, error) {
	res, err := s.es.Get(s.IndexName(entityType), id, s.es.Get.WithContext(ctx))
	if err != nil {
		return searchindex.Document{}, false, fmt.Errorf("get %s/%s: %w", entityType, id, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return searchindex.Document{}, false, nil
	}
	if res.IsError() {
		return searchindex.Document{}, false, fmt.Errorf("get %s/%s: %s", entityType, id, decodeError(res))
	}

	var body struct {
		ID      string `json:"_id"`
		Found   bool   `json:"found"`
		Version int64  `json:"_version"`
		Source  source `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return searchindex.Document{}, false, fmt.Errorf("decode %s/%s: %w", entityType, id, err)
	}
	if !body.Found {
		return searchindex.Document{}, false, nil
	}

	return searchindex.Document{
		Type:      entityType,
		ID:        body.ID,
		Version:   body.Version,
		Deleted:   body.Source.Deleted,
		Body:      body.Source.Entity,
		IndexedAt: body.Source.IndexedAt,
	}, true, nil
}

// PurgeTombstones deletes tombstones indexed before the cutoff.
func (s *Store) PurgeTombstones(ctx context.Context, entityType string, before time.Time) (int, error) {
	query := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []any{
					map[string]any{"term": map[string]any{"deleted": true}},
					map[string]any{"range": map[string]any{"indexedAt": map[string]any{"lt": before.UTC().Format(time.RFC3339Nano)}}},
				},
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return 0, err
	}

	res, err := s.es.DeleteByQuery([]string{s.IndexName(entityType)}, bytes.NewReader(body),
		s.es.DeleteByQuery.WithConflicts("proceed"),
		s.es.DeleteByQuery.WithContext(ctx),
	)
	if err != nil {
		return 0, fmt.Errorf("purge %s tombstones: %w", entityType, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return 0, nil
	}
	if res.IsError() {
		return 0, fmt.Errorf("purge %s tombstones: %s", entityType, decodeError(res))
	}

	var out struct {
		Deleted int `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode purge response: %w", err)
	}
	return out.Deleted, nil
}
