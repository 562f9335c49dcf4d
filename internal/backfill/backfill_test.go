package backfill

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"searchahouse/internal/adapters/storage"
	"searchahouse/internal/changefeed"
	"searchahouse/platform/logger"
)

type fakeSource struct {
	objects map[string]string
}

func (f *fakeSource) ListObjects(_ context.Context, prefix string) ([]storage.Object, error) {
	var out []storage.Object
	for key, body := range f.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, storage.Object{Key: key, Size: int64(len(body))})
		}
	}
	return out, nil
}

func (f *fakeSource) Open(_ context.Context, key string) (io.ReadCloser, error) {
	body, ok := f.objects[key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

type published struct {
	entityType changefeed.EntityType
	payload    string
	taskID     string
}

type fakePublisher struct {
	calls []published
	err   error
}

func (f *fakePublisher) PublishRaw(_ context.Context, entityType changefeed.EntityType, payload []byte, taskID string) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, published{entityType: entityType, payload: string(payload), taskID: taskID})
	return nil
}

func TestRunPublishesEachLineWithDedupKey(t *testing.T) {
	source := &fakeSource{objects: map[string]string{
		"property/part-0001.ndjson": `{"entity":{"id":"p1","name":"Loft"},"operation":"UPDATE","version":4}` + "\n\n" +
			`{"entity":{"primaryKey":"p2"},"operation":"DELETE","version":9}` + "\n",
		"property/README.txt":    "ignored",
		"agent/part-0001.ndjson": `{"entity":{"id":"a1","firstName":"Ann"},"operation":"create","version":1}`,
	}}
	pub := &fakePublisher{}

	res, err := New(source, pub, logger.Discard()).Run(context.Background(), []changefeed.EntityType{changefeed.EntityProperty, changefeed.EntityAgent})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Objects != 2 || res.Published != 3 || res.Skipped != 0 {
		t.Fatalf("unexpected result %+v", res)
	}

	want := map[string]changefeed.EntityType{
		"property:p1:UPDATE:4": changefeed.EntityProperty,
		"property:p2:DELETE:9": changefeed.EntityProperty,
		"agent:a1:CREATE:1":    changefeed.EntityAgent,
	}
	for _, call := range pub.calls {
		typ, ok := want[call.taskID]
		if !ok || typ != call.entityType {
			t.Fatalf("unexpected publish %+v", call)
		}
		delete(want, call.taskID)
	}
	if len(want) != 0 {
		t.Fatalf("missing publishes %v", want)
	}
}

func TestRunSkipsUnidentifiableLines(t *testing.T) {
	source := &fakeSource{objects: map[string]string{
		"lead/part.ndjson": strings.Join([]string{
			`not json`,
			`{"entity":{"id":"l1"},"operation":"PATCH","version":1}`,
			`{"entity":{"id":"l2"},"operation":"UPDATE"}`,
			`{"entity":{"id":"l3"},"operation":"UPDATE","version":2}`,
		}, "\n"),
	}}
	pub := &fakePublisher{}

	res, err := New(source, pub, logger.Discard()).Run(context.Background(), []changefeed.EntityType{changefeed.EntityLead})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Published != 1 || res.Skipped != 3 {
		t.Fatalf("unexpected result %+v", res)
	}
	if pub.calls[0].taskID != "lead:l3:UPDATE:2" {
		t.Fatalf("unexpected task id %q", pub.calls[0].taskID)
	}
}

func TestRunStopsOnPublishFailure(t *testing.T) {
	source := &fakeSource{objects: map[string]string{
		"property/a.ndjson": `{"entity":{"id":"p1"},"operation":"UPDATE","version":1}`,
	}}
	pub := &fakePublisher{err: errors.New("redis down")}

	_, err := New(source, pub, logger.Discard()).Run(context.Background(), []changefeed.EntityType{changefeed.EntityProperty})
	if err == nil || !strings.Contains(err.Error(), "redis down") {
		t.Fatalf("expected publish error, got %v", err)
	}
}
