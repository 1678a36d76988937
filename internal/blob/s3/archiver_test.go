package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
	"github.com/alanyoungcy/mirrorarb/internal/metrics"
)

type memBlob struct {
	objects map[string][]byte
	putErr  error
}

func (m *memBlob) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if m.putErr != nil {
		return m.putErr
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[path] = b
	return nil
}

func (m *memBlob) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return m.Put(ctx, path, data, jsonlContentType)
}

func (m *memBlob) Exists(_ context.Context, path string) (bool, error) {
	_, ok := m.objects[path]
	return ok, nil
}

type expiredStore struct {
	rows    []domain.ArbitrageOpportunity
	deleted []string
}

func (s *expiredStore) ListExpiredBefore(context.Context, time.Time) ([]domain.ArbitrageOpportunity, error) {
	return s.rows, nil
}

func (s *expiredStore) DeleteByIDs(_ context.Context, ids []string) (int64, error) {
	s.deleted = append(s.deleted, ids...)
	return int64(len(ids)), nil
}

type nopAudit struct{ events []string }

func (a *nopAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.events = append(a.events, event)
	return nil
}

func newTestArchiver(blob *memBlob, store *expiredStore, audit *nopAudit) *Archiver {
	return NewArchiver(blob, blob, store, audit, metrics.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestArchiveOpportunities(t *testing.T) {
	t.Parallel()

	blob := &memBlob{}
	store := &expiredStore{rows: []domain.ArbitrageOpportunity{
		{ID: "a", Status: domain.OpportunityExpired, Spread: 3},
		{ID: "b", Status: domain.OpportunityExecuted, Spread: 4},
	}}
	audit := &nopAudit{}
	before := time.Date(2025, 1, 31, 6, 0, 0, 0, time.UTC)

	n, err := newTestArchiver(blob, store, audit).ArchiveOpportunities(context.Background(), before)
	if err != nil {
		t.Fatalf("ArchiveOpportunities: %v", err)
	}
	if n != 2 {
		t.Errorf("archived = %d, want 2", n)
	}

	path := "archive/opportunities/2025-01-31/20250131T060000Z.jsonl"
	data, ok := blob.objects[path]
	if !ok {
		t.Fatalf("object %s not written; have %v", path, blob.objects)
	}
	var ids []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var o domain.ArbitrageOpportunity
		if err := json.Unmarshal(sc.Bytes(), &o); err != nil {
			t.Fatalf("Unmarshal line: %v", err)
		}
		ids = append(ids, o.ID)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("archived ids = %v", ids)
	}
	if len(store.deleted) != 2 {
		t.Errorf("deleted = %v", store.deleted)
	}
	if len(audit.events) != 1 || audit.events[0] != "archive.opportunities" {
		t.Errorf("audit = %v", audit.events)
	}
}

func TestArchiveKeepsRowsWhenUploadFails(t *testing.T) {
	t.Parallel()

	blob := &memBlob{putErr: errors.New("bucket gone")}
	store := &expiredStore{rows: []domain.ArbitrageOpportunity{{ID: "a"}}}

	if _, err := newTestArchiver(blob, store, &nopAudit{}).ArchiveOpportunities(context.Background(), time.Now()); err == nil {
		t.Fatal("ArchiveOpportunities succeeded with failing upload")
	}
	if len(store.deleted) != 0 {
		t.Error("rows deleted without an archive")
	}
}

func TestArchiveNothingToDo(t *testing.T) {
	t.Parallel()

	blob := &memBlob{}
	n, err := newTestArchiver(blob, &expiredStore{}, &nopAudit{}).ArchiveOpportunities(context.Background(), time.Now())
	if err != nil || n != 0 {
		t.Fatalf("ArchiveOpportunities = %d, %v", n, err)
	}
	if len(blob.objects) != 0 {
		t.Error("empty archive was uploaded")
	}
}

func TestNormaliseEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		useSSL bool
		want   string
	}{
		{"minio:9000", false, "http://minio:9000"},
		{"s3.example.com", true, "https://s3.example.com"},
		{"http://localhost:9000", true, "http://localhost:9000"},
	}
	for _, tt := range tests {
		if got := normaliseEndpoint(tt.in, tt.useSSL); got != tt.want {
			t.Errorf("normaliseEndpoint(%q, %v) = %q, want %q", tt.in, tt.useSSL, got, tt.want)
		}
	}
}
