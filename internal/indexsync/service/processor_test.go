package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"searchahouse/internal/changefeed"
	"searchahouse/internal/domain"
	"searchahouse/internal/events"
	"searchahouse/internal/searchindex"
	"searchahouse/internal/searchindex/memory"
	platformevents "searchahouse/platform/events"
	"searchahouse/platform/logger"
	"searchahouse/platform/phone"
)

type memorySink struct {
	mu      sync.Mutex
	letters []DeadLetter
	err     error
}

func (s *memorySink) Record(_ context.Context, dl DeadLetter) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.letters = append(s.letters, dl)
	return fmt.Sprintf("dl-%d", len(s.letters)), nil
}

// flakyStore fails the first n writes with err and then delegates.
type flakyStore struct {
	searchindex.Store
	failures int
	err      error
}

func (f *flakyStore) Put(ctx context.Context, doc searchindex.Document) (searchindex.Outcome, error) {
	if f.failures > 0 {
		f.failures--
		return "", f.err
	}
	return f.Store.Put(ctx, doc)
}

type stubGeocoder struct {
	point domain.GeoPoint
	err   error
	calls int
}

func (g *stubGeocoder) Geocode(_ context.Context, _ string) (domain.GeoPoint, bool, error) {
	g.calls++
	if g.err != nil {
		return domain.GeoPoint{}, false, g.err
	}
	return g.point, true, nil
}

func propertyEvent(t *testing.T, id string, op changefeed.Operation, version int64, name string) Delivery {
	t.Helper()
	var entity any
	if op != changefeed.OpDelete {
		entity = domain.Property{ID: id, Name: name, Location: &domain.GeoPoint{Lat: 1, Lon: 2}}
	}
	payload, err := changefeed.Encode(changefeed.Ref{Type: changefeed.EntityProperty, ID: id, Operation: op, Version: version}, entity)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return Delivery{EntityType: "property", Payload: payload, Attempt: 1, MaxAttempts: 3}
}

func indexedName(t *testing.T, store searchindex.Store, id string) (string, searchindex.Document) {
	t.Helper()
	doc, ok, err := store.Get(context.Background(), "property", id)
	if err != nil || !ok {
		t.Fatalf("expected document %s: ok=%v err=%v", id, ok, err)
	}
	var pd searchindex.PropertyDoc
	if len(doc.Body) > 0 {
		if err := json.Unmarshal(doc.Body, &pd); err != nil {
			t.Fatalf("decode body: %v", err)
		}
	}
	return pd.Name, doc
}

func newProcessor(store searchindex.Store, sink DeadLetterSink, opts ProcessorOptions) *Processor {
	return NewProcessor(store, sink, logger.Discard(), opts)
}

func TestProcessCreateTwiceIsIdempotent(t *testing.T) {
	store := memory.New()
	p := newProcessor(store, &memorySink{}, ProcessorOptions{})
	ev := propertyEvent(t, "p1", changefeed.OpCreate, 1, "Loft")

	for i := 0; i < 2; i++ {
		if err := p.Process(context.Background(), ev); err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
	}

	name, doc := indexedName(t, store, "p1")
	if name != "Loft" || doc.Version != 1 || store.Len() != 1 {
		t.Fatalf("unexpected state: name=%q version=%d len=%d", name, doc.Version, store.Len())
	}
}

func TestProcessOutOfOrderUpdatesKeepNewest(t *testing.T) {
	store := memory.New()
	p := newProcessor(store, &memorySink{}, ProcessorOptions{})
	ctx := context.Background()

	if err := p.Process(ctx, propertyEvent(t, "p1", changefeed.OpUpdate, 2, "second")); err != nil {
		t.Fatal(err)
	}
	if err := p.Process(ctx, propertyEvent(t, "p1", changefeed.OpUpdate, 1, "first")); err != nil {
		t.Fatal(err)
	}

	name, doc := indexedName(t, store, "p1")
	if name != "second" || doc.Version != 2 {
		t.Fatalf("expected version 2 to survive, got %q v%d", name, doc.Version)
	}
}

func TestProcessDeleteBlocksOlderUpdates(t *testing.T) {
	store := memory.New()
	p := newProcessor(store, &memorySink{}, ProcessorOptions{})
	ctx := context.Background()

	for _, ev := range []Delivery{
		propertyEvent(t, "p1", changefeed.OpUpdate, 2, "live"),
		propertyEvent(t, "p1", changefeed.OpDelete, 3, ""),
		propertyEvent(t, "p1", changefeed.OpUpdate, 1, "zombie"),
	} {
		if err := p.Process(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}

	_, doc := indexedName(t, store, "p1")
	if !doc.Deleted || doc.Version != 3 {
		t.Fatalf("expected tombstone at version 3, got %+v", doc)
	}
}

func TestProcessConcurrentDuplicatesConverge(t *testing.T) {
	store := memory.New()
	p := newProcessor(store, &memorySink{}, ProcessorOptions{})
	ev := propertyEvent(t, "p1", changefeed.OpUpdate, 5, "five")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Process(context.Background(), ev); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	name, doc := indexedName(t, store, "p1")
	if name != "five" || doc.Version != 5 || store.Len() != 1 {
		t.Fatalf("expected one document at version 5, got %q v%d len=%d", name, doc.Version, store.Len())
	}
}

func TestProcessMalformedIsDeadLetteredAndDoesNotBlock(t *testing.T) {
	store := memory.New()
	sink := &memorySink{}
	bus := platformevents.NewInMemoryBus(logger.Discard())
	var published []events.ChangeDeadLettered
	var mu sync.Mutex
	bus.Subscribe(events.ChangeDeadLettered{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		published = append(published, e.(events.ChangeDeadLettered))
		return nil
	}))
	p := newProcessor(store, sink, ProcessorOptions{Bus: bus})
	ctx := context.Background()

	bad := Delivery{EntityType: "property", Payload: []byte(`{"operation":"PATCH","version":1,"entity":{"primaryKey":"p1"}}`), Attempt: 1, MaxAttempts: 3}
	if err := p.Process(ctx, bad); err != nil {
		t.Fatalf("malformed event must be acknowledged, got %v", err)
	}
	if err := p.Process(ctx, propertyEvent(t, "p2", changefeed.OpCreate, 1, "next")); err != nil {
		t.Fatal(err)
	}
	bus.Wait()

	if len(sink.letters) != 1 {
		t.Fatalf("expected one dead letter, got %d", len(sink.letters))
	}
	dl := sink.letters[0]
	if dl.Reason != ReasonMalformed || dl.EntityID != "p1" || dl.Operation != "PATCH" || string(dl.Payload) != string(bad.Payload) {
		t.Fatalf("unexpected dead letter: %+v", dl)
	}
	if name, _ := indexedName(t, store, "p2"); name != "next" {
		t.Fatalf("expected next event applied, got %q", name)
	}
	if _, ok, _ := store.Get(ctx, "property", "p1"); ok {
		t.Fatal("malformed event must not touch the index")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(published) != 1 || published[0].DeadLetterID != "dl-1" {
		t.Fatalf("expected dead-letter event, got %+v", published)
	}
}

func TestProcessTransientFailureRetriesThenDeadLetters(t *testing.T) {
	store := &flakyStore{Store: memory.New(), failures: 10, err: &searchindex.WriteError{Op: "put", Status: 503, Err: errors.New("unavailable")}}
	sink := &memorySink{}
	p := newProcessor(store, sink, ProcessorOptions{})
	ev := propertyEvent(t, "p1", changefeed.OpUpdate, 1, "x")

	for attempt := 1; attempt < 3; attempt++ {
		ev.Attempt = attempt
		if err := p.Process(context.Background(), ev); err == nil {
			t.Fatalf("attempt %d: expected error to request redelivery", attempt)
		}
	}
	if len(sink.letters) != 0 {
		t.Fatal("expected no dead letter before the final attempt")
	}

	ev.Attempt = 3
	if err := p.Process(context.Background(), ev); err != nil {
		t.Fatalf("final attempt must acknowledge after dead-lettering, got %v", err)
	}
	if len(sink.letters) != 1 || sink.letters[0].Reason != ReasonExhausted || sink.letters[0].Attempts != 3 {
		t.Fatalf("unexpected dead letters: %+v", sink.letters)
	}
}

func TestProcessPermanentFailureDeadLettersImmediately(t *testing.T) {
	store := &flakyStore{Store: memory.New(), failures: 1, err: &searchindex.WriteError{Op: "put", Status: 400, Permanent: true, Err: errors.New("mapper_parsing_exception")}}
	sink := &memorySink{}
	p := newProcessor(store, sink, ProcessorOptions{})

	if err := p.Process(context.Background(), propertyEvent(t, "p1", changefeed.OpUpdate, 1, "x")); err != nil {
		t.Fatalf("expected acknowledgement, got %v", err)
	}
	if len(sink.letters) != 1 || sink.letters[0].Reason != ReasonRejected {
		t.Fatalf("unexpected dead letters: %+v", sink.letters)
	}
}

func TestProcessKeepsEventWhenSinkFails(t *testing.T) {
	sink := &memorySink{err: errors.New("db down")}
	p := newProcessor(memory.New(), sink, ProcessorOptions{})

	bad := Delivery{EntityType: "agent", Payload: []byte(`{}`), Attempt: 1, MaxAttempts: 3}
	if err := p.Process(context.Background(), bad); err == nil {
		t.Fatal("expected error so the event is redelivered")
	}
}

func TestProcessGeocodesPropertiesWithoutLocation(t *testing.T) {
	store := memory.New()
	geo := &stubGeocoder{point: domain.GeoPoint{Lat: 52.37, Lon: 4.89}}
	p := newProcessor(store, &memorySink{}, ProcessorOptions{Projector: NewProjector(phone.Normalizer{}, geo)})

	payload, _ := changefeed.Encode(changefeed.Ref{Type: changefeed.EntityProperty, ID: "p1", Operation: changefeed.OpCreate, Version: 1},
		domain.Property{ID: "p1", Name: "Canal house", Address: domain.Address{Street: "Damrak 1", City: "Amsterdam"}})
	if err := p.Process(context.Background(), Delivery{EntityType: "property", Payload: payload, Attempt: 1, MaxAttempts: 3}); err != nil {
		t.Fatal(err)
	}

	doc, _, _ := store.Get(context.Background(), "property", "p1")
	var pd searchindex.PropertyDoc
	_ = json.Unmarshal(doc.Body, &pd)
	if geo.calls != 1 || pd.Location == nil || pd.Location.Lat != 52.37 || pd.AddressText != "Damrak 1, Amsterdam" {
		t.Fatalf("expected geocoded location, got %+v (calls=%d)", pd, geo.calls)
	}
}

func TestProcessGeocoderFailureIsRetried(t *testing.T) {
	geo := &stubGeocoder{err: errors.New("timeout")}
	sink := &memorySink{}
	p := newProcessor(memory.New(), sink, ProcessorOptions{Projector: NewProjector(phone.Normalizer{}, geo)})

	payload, _ := changefeed.Encode(changefeed.Ref{Type: changefeed.EntityProperty, ID: "p1", Operation: changefeed.OpCreate, Version: 1},
		domain.Property{ID: "p1", Address: domain.Address{City: "Amsterdam"}})
	err := p.Process(context.Background(), Delivery{EntityType: "property", Payload: payload, Attempt: 1, MaxAttempts: 3})
	var te *TransientError
	if !errors.As(err, &te) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if len(sink.letters) != 0 {
		t.Fatal("expected no dead letter")
	}
}

type syncRecorder struct {
	mu      sync.Mutex
	results map[string]int
	dead    map[string]int
}

func (r *syncRecorder) ObserveSync(_, result string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[result]++
}

func (r *syncRecorder) IncDeadLetter(_, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dead[reason]++
}

func TestProcessRecordsOutcomes(t *testing.T) {
	rec := &syncRecorder{results: map[string]int{}, dead: map[string]int{}}
	p := newProcessor(memory.New(), &memorySink{}, ProcessorOptions{Metrics: rec})
	ctx := context.Background()

	_ = p.Process(ctx, propertyEvent(t, "p1", changefeed.OpUpdate, 2, "a"))
	_ = p.Process(ctx, propertyEvent(t, "p1", changefeed.OpUpdate, 1, "b"))
	_ = p.Process(ctx, Delivery{EntityType: "property", Payload: []byte(`nope`), Attempt: 1})

	if rec.results["applied"] != 1 || rec.results["stale"] != 1 || rec.results["dead_lettered"] != 1 || rec.dead[ReasonMalformed] != 1 {
		t.Fatalf("unexpected metrics: %+v %+v", rec.results, rec.dead)
	}
}
