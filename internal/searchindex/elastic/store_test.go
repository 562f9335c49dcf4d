package elastic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"searchahouse/internal/domain"
	"searchahouse/internal/searchindex"
	"searchahouse/platform/config"
)

type storedDoc struct {
	version int64
	source  json.RawMessage
}

// fakeCluster implements the handful of endpoints the store calls, including
// external version checks on index requests.
type fakeCluster struct {
	mu         sync.Mutex
	indices    map[string]bool
	docs       map[string]storedDoc
	lastSearch map[string]any
	failWith   int
	searchResp string
}

func newFakeCluster() *fakeCluster {
	return &fakeCluster{indices: map[string]bool{}, docs: map[string]storedDoc{}}
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	if f.failWith != 0 {
		w.WriteHeader(f.failWith)
		io.WriteString(w, `{"error":{"type":"some_exception","reason":"boom"},"status":`+strconv.Itoa(f.failWith)+`}`)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.URL.Path == "/":
		io.WriteString(w, `{"version":{"number":"8.17.0"}}`)
	case len(parts) == 1 && r.Method == http.MethodHead:
		if !f.indices[parts[0]] {
			w.WriteHeader(http.StatusNotFound)
		}
	case len(parts) == 1 && r.Method == http.MethodPut:
		f.indices[parts[0]] = true
		io.WriteString(w, `{"acknowledged":true}`)
	case len(parts) == 3 && parts[1] == "_doc" && r.Method == http.MethodPut:
		f.index(w, r, parts[0]+"/"+parts[2])
	case len(parts) == 3 && parts[1] == "_doc" && r.Method == http.MethodGet:
		doc, ok := f.docs[parts[0]+"/"+parts[2]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"found":false}`)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"_id": parts[2], "found": true, "_version": doc.version, "_source": doc.source,
		})
	case len(parts) == 2 && parts[1] == "_search":
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.lastSearch = body
		io.WriteString(w, f.searchResp)
	case len(parts) == 2 && parts[1] == "_delete_by_query":
		deleted := 0
		for k, d := range f.docs {
			if !strings.HasPrefix(k, parts[0]+"/") {
				continue
			}
			var src source
			json.Unmarshal(d.source, &src)
			if src.Deleted {
				delete(f.docs, k)
				deleted++
			}
		}
		io.WriteString(w, `{"deleted":`+strconv.Itoa(deleted)+`}`)
	default:
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"type":"unexpected","reason":"`+r.Method+" "+r.URL.Path+`"}}`)
	}
}

func (f *fakeCluster) index(w http.ResponseWriter, r *http.Request, key string) {
	version, err := strconv.ParseInt(r.URL.Query().Get("version"), 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"type":"illegal_argument_exception","reason":"version"}}`)
		return
	}
	current, exists := f.docs[key]
	conflict := false
	switch r.URL.Query().Get("version_type") {
	case "external":
		conflict = exists && version <= current.version
	case "external_gte":
		conflict = exists && version < current.version
	}
	if conflict {
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"error":{"type":"version_conflict_engine_exception","reason":"conflict"},"status":409}`)
		return
	}
	body, _ := io.ReadAll(r.Body)
	f.docs[key] = storedDoc{version: version, source: body}
	w.WriteHeader(http.StatusCreated)
	io.WriteString(w, `{"result":"created"}`)
}

func newTestStore(t *testing.T) (*Store, *fakeCluster) {
	t.Helper()
	fake := newFakeCluster()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := New(&config.Config{ElasticsearchURLs: []string{srv.URL}, SearchIndexPrefix: "test"}, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s, fake
}

func putDoc(t *testing.T, s *Store, id string, version int64, name string) searchindex.Outcome {
	t.Helper()
	body, _ := json.Marshal(searchindex.PropertyDoc{ID: id, Name: name})
	out, err := s.Put(context.Background(), searchindex.Document{Type: "property", ID: id, Version: version, Body: body})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	return out
}

func TestPutRejectsStaleVersions(t *testing.T) {
	s, _ := newTestStore(t)

	if out := putDoc(t, s, "p1", 5, "five"); out != searchindex.Applied {
		t.Fatalf("expected applied, got %s", out)
	}
	if out := putDoc(t, s, "p1", 3, "three"); out != searchindex.Stale {
		t.Fatalf("expected older version to be stale, got %s", out)
	}
	if out := putDoc(t, s, "p1", 5, "five again"); out != searchindex.Stale {
		t.Fatalf("expected equal version to be stale, got %s", out)
	}

	doc, ok, err := s.Get(context.Background(), "property", "p1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	var pd searchindex.PropertyDoc
	if err := json.Unmarshal(doc.Body, &pd); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if doc.Version != 5 || pd.Name != "five" {
		t.Fatalf("expected version 5 body to survive, got v%d %q", doc.Version, pd.Name)
	}
}

func TestDeleteLeavesTombstoneThatBlocksOlderPuts(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	putDoc(t, s, "p1", 4, "four")

	out, err := s.Delete(ctx, "property", "p1", 4)
	if err != nil || out != searchindex.Applied {
		t.Fatalf("expected delete at same version to apply, got %s %v", out, err)
	}
	if out := putDoc(t, s, "p1", 4, "four"); out != searchindex.Stale {
		t.Fatalf("expected put at tombstone version to be stale, got %s", out)
	}

	doc, ok, err := s.Get(ctx, "property", "p1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !doc.Deleted || doc.Version != 4 {
		t.Fatalf("expected tombstone at version 4, got %+v", doc)
	}

	if out := putDoc(t, s, "p1", 6, "six"); out != searchindex.Applied {
		t.Fatalf("expected newer put to replace tombstone, got %s", out)
	}
}

func TestDeleteOfUnknownDocumentApplies(t *testing.T) {
	s, _ := newTestStore(t)

	out, err := s.Delete(context.Background(), "agent", "a1", 1)
	if err != nil || out != searchindex.Applied {
		t.Fatalf("expected tombstone for unknown document, got %s %v", out, err)
	}
}

func TestGetMissingDocument(t *testing.T) {
	s, _ := newTestStore(t)

	_, ok, err := s.Get(context.Background(), "property", "nope")
	if err != nil || ok {
		t.Fatalf("expected not found, got ok=%v err=%v", ok, err)
	}
}

func TestWriteErrorClassification(t *testing.T) {
	tests := []struct {
		status    int
		permanent bool
	}{
		{http.StatusBadRequest, true},
		{http.StatusTooManyRequests, false},
		{http.StatusServiceUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.status), func(t *testing.T) {
			s, fake := newTestStore(t)
			fake.failWith = tt.status

			_, err := s.Put(context.Background(), searchindex.Document{Type: "property", ID: "p1", Version: 1, Body: []byte(`{}`)})
			if err == nil {
				t.Fatal("expected error")
			}
			if searchindex.IsPermanent(err) != tt.permanent {
				t.Fatalf("expected permanent=%v, got %v (%v)", tt.permanent, searchindex.IsPermanent(err), err)
			}
		})
	}
}

func TestEnsureIndicesCreatesMissing(t *testing.T) {
	s, fake := newTestStore(t)

	if err := s.EnsureIndices(context.Background(), []string{"property", "agent"}); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if !fake.indices["test-property"] || !fake.indices["test-agent"] {
		t.Fatalf("expected both indices, got %v", fake.indices)
	}
	if err := s.EnsureIndices(context.Background(), []string{"property"}); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
}

func TestPurgeTombstones(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	putDoc(t, s, "p1", 1, "live")
	if _, err := s.Delete(ctx, "property", "p2", 1); err != nil {
		t.Fatalf("delete: %v", err)
	}

	n, err := s.PurgeTombstones(ctx, "property", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one tombstone purged, got %d", n)
	}
	if _, ok, _ := s.Get(ctx, "property", "p1"); !ok {
		t.Fatal("expected live document to remain")
	}
}

func TestSearchPropertiesNearSortsByDistance(t *testing.T) {
	s, fake := newTestStore(t)
	fake.searchResp = `{"hits":{"total":{"value":2},"hits":[
		{"_id":"p1","_version":3,"_source":{"entity":{"id":"p1"},"deleted":false,"version":3},"sort":[1.5]},
		{"_id":"p2","_version":1,"_source":{"entity":{"id":"p2"},"deleted":false,"version":1},"sort":[4.25]}]}}`

	res, err := s.SearchProperties(context.Background(), searchindex.PropertyQuery{
		Near: &searchindex.GeoFilter{Center: domain.GeoPoint{Lat: 40.7, Lon: -74}, DistanceKm: 10},
		Size: 5,
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Total != 2 || len(res.Hits) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Hits[0].DistanceKm == nil || *res.Hits[0].DistanceKm != 1.5 || res.Hits[0].Version != 3 {
		t.Fatalf("unexpected first hit: %+v", res.Hits[0])
	}

	encoded, _ := json.Marshal(fake.lastSearch)
	for _, want := range []string{`"geo_distance"`, `"10km"`, `"_geo_distance"`, `"must_not"`, `"deleted":true`, `"size":5`} {
		if !strings.Contains(string(encoded), want) {
			t.Fatalf("expected query to contain %s, got %s", want, encoded)
		}
	}
}

func TestSearchAgentsAutocomplete(t *testing.T) {
	s, fake := newTestStore(t)
	fake.searchResp = `{"hits":{"total":{"value":0},"hits":[]}}`

	res, err := s.SearchAgents(context.Background(), searchindex.AgentQuery{Text: "jo", Autocomplete: true})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Total != 0 || len(res.Hits) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}

	encoded, _ := json.Marshal(fake.lastSearch)
	for _, want := range []string{`"bool_prefix"`, `"entity.fullName._2gram"`, `"size":20`} {
		if !strings.Contains(string(encoded), want) {
			t.Fatalf("expected query to contain %s, got %s", want, encoded)
		}
	}
}
