package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"searchahouse/internal/domain"
)

func newTestClient(t *testing.T, srv *httptest.Server, timeout time.Duration) *Client {
	t.Helper()
	c, err := New(srv.URL+"/api/v1", timeout, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestAgentsForPropertyFollowsPagination(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/agent/property/p1", func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		w.Header().Set("Content-Type", "application/hal+json")
		switch page {
		case "":
			fmt.Fprint(w, `{"_embedded":{"agents":[{"primaryKey":"a1","firstName":"Ann","leads":[{"contactStatus":"CONTACTED"}]}]},
				"_links":{"next":{"href":"/api/v1/agent/property/p1?page=1"}}}`)
		case "1":
			fmt.Fprintf(w, `{"_embedded":{"agentList":[{"firstName":"Bob","_links":{"self":{"href":"%s/api/v1/agent/a2"}}}]},
				"_links":{"next":{"href":"p1?page=2"}}}`, "http://"+r.Host)
		case "2":
			fmt.Fprint(w, `{"_embedded":{"agents":[{"primaryKey":"a3"}]},"_links":{}}`)
		default:
			http.Error(w, "unexpected page", http.StatusBadRequest)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	agents, err := newTestClient(t, srv, time.Second).AgentsForProperty(context.Background(), "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ids := make([]string, 0, len(agents))
	for _, a := range agents {
		ids = append(ids, a.ID)
	}
	if strings.Join(ids, ",") != "a1,a2,a3" {
		t.Fatalf("expected agents from all pages in order, got %v", ids)
	}
	if agents[0].CountLeads(domain.StatusContacted) != 1 {
		t.Fatalf("expected leads to be decoded, got %+v", agents[0].Leads)
	}
}

func TestAgentsForPropertyNotFoundIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	agents, err := newTestClient(t, srv, time.Second).AgentsForProperty(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(agents) != 0 {
		t.Fatalf("expected no agents, got %d", len(agents))
	}
}

func TestAgentsForPropertyVanishedPageFailsListing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/agent/property/p1", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"_embedded":{"agents":[{"primaryKey":"busy"}]},
			"_links":{"next":{"href":"/api/v1/agent/property/p1?page=1"}}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	agents, err := newTestClient(t, srv, time.Second).AgentsForProperty(context.Background(), "p1")
	if agents != nil {
		t.Fatalf("expected no partial agent set, got %d agents", len(agents))
	}
	derr, ok := AsError(err)
	if !ok {
		t.Fatalf("expected *Error, got %v", err)
	}
	if derr.Status != http.StatusNotFound || !derr.Partial || derr.Rejected() {
		t.Fatalf("expected unrejected partial 404, got %+v", derr)
	}
}

func TestAgentsForPropertyDetectsPaginationLoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"_embedded":{"agents":[{"primaryKey":"a1"}]},"_links":{"next":{"href":"/api/v1/agent/property/p1"}}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, time.Second).AgentsForProperty(context.Background(), "p1")
	if err == nil {
		t.Fatal("expected pagination loop to fail")
	}
}

func TestAgentsForPropertyServerErrorIsNotRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, time.Second).AgentsForProperty(context.Background(), "p1")
	derr, ok := AsError(err)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if derr.Status != http.StatusServiceUnavailable || derr.Rejected() {
		t.Fatalf("expected unrejected 503, got %+v", derr)
	}
}

func TestAgentsForPropertyTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := newTestClient(t, srv, 50*time.Millisecond).AgentsForProperty(context.Background(), "p1")
	derr, ok := AsError(err)
	if !ok || !derr.Timeout {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestAssignLeadReturnsResolvedLocation(t *testing.T) {
	var calls atomic.Int32
	var got domain.Lead
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/agent/a1/lead" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Location", "/api/v1/agent/a1/lead/"+got.ID)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	lead := domain.Lead{ID: "lead-1", FirstName: "Jane", Email: "jane@example.com", ContactStatus: domain.StatusUncontacted}
	location, err := newTestClient(t, srv, time.Second).AssignLead(context.Background(), "a1", lead)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if location != srv.URL+"/api/v1/agent/a1/lead/lead-1" {
		t.Fatalf("unexpected location %q", location)
	}
	if got.ID != "lead-1" {
		t.Fatalf("expected pre-generated id to be sent, got %q", got.ID)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly one call, got %d", calls.Load())
	}
}

func TestAssignLeadRejectionCarriesReason(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		reason string
	}{
		{name: "vnd errors", body: `[{"logref":"x","message":"Agent a1 not found"}]`, reason: "Agent a1 not found"},
		{name: "error object", body: `{"error":"lead already assigned"}`, reason: "lead already assigned"},
		{name: "plain text", body: "conflict", reason: "conflict"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusConflict)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv, time.Second).AssignLead(context.Background(), "a1", domain.Lead{ID: "l1"})
			derr, ok := AsError(err)
			if !ok || !derr.Rejected() {
				t.Fatalf("expected rejected error, got %v", err)
			}
			if derr.Reason != tt.reason {
				t.Fatalf("expected reason %q, got %q", tt.reason, derr.Reason)
			}
		})
	}
}

func TestAssignLeadWithoutLocationFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, time.Second).AssignLead(context.Background(), "a1", domain.Lead{ID: "l1"})
	if err == nil {
		t.Fatal("expected missing Location header to fail")
	}
}

func TestNewRejectsRelativeURL(t *testing.T) {
	if _, err := New("/api/v1", time.Second, nil); err == nil {
		t.Fatal("expected relative base url to be rejected")
	}
}
