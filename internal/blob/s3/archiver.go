package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
	"github.com/alanyoungcy/mirrorarb/internal/metrics"
)

const jsonlContentType = "application/x-ndjson"

// ExpiredOpportunityStore is the slice of the opportunity store the archiver
// needs.
type ExpiredOpportunityStore interface {
	ListExpiredBefore(ctx context.Context, before time.Time) ([]domain.ArbitrageOpportunity, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

// Archiver implements domain.Archiver. Expired and executed opportunities
// are written as one JSONL object, the object is verified, and only then are
// the rows deleted from postgres.
type Archiver struct {
	writer  domain.BlobWriter
	reader  domain.BlobReader
	opps    ExpiredOpportunityStore
	audit   domain.AuditStore
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(
	writer domain.BlobWriter,
	reader domain.BlobReader,
	opps ExpiredOpportunityStore,
	audit domain.AuditStore,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Archiver {
	return &Archiver{
		writer:  writer,
		reader:  reader,
		opps:    opps,
		audit:   audit,
		metrics: m,
		logger:  logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveOpportunities moves non-active opportunities that expired before the
// cutoff to cold storage and returns how many rows were removed.
func (a *Archiver) ArchiveOpportunities(ctx context.Context, before time.Time) (int64, error) {
	opps, err := a.opps.ListExpiredBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities query: %w", err)
	}
	if len(opps) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(opps)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities marshal: %w", err)
	}

	path := archivePath("opportunities", before)
	if int64(len(buf)) > minPartSize {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities upload: %w", err)
	}

	ok, err := a.reader.Exists(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities verify: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("s3blob: archive object %s missing after upload", path)
	}

	ids := make([]string, len(opps))
	for i, o := range opps {
		ids[i] = o.ID
	}
	deleted, err := a.opps.DeleteByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities delete: %w", err)
	}
	a.metrics.ArchivedOpportunities.Add(float64(deleted))

	if err := a.audit.Log(ctx, "archive.opportunities", map[string]any{
		"path":    path,
		"count":   len(opps),
		"deleted": deleted,
		"before":  before.UTC().Format(time.RFC3339),
	}); err != nil {
		a.logger.WarnContext(ctx, "s3blob: archive audit log failed", slog.String("error", err.Error()))
	}

	a.logger.InfoContext(ctx, "s3blob: archived opportunities",
		slog.String("path", path),
		slog.Int64("deleted", deleted),
	)
	return deleted, nil
}

// archivePath builds the object key for one archive run, partitioned by day:
//
//	archive/opportunities/2025-01-31/20250131T000000Z.jsonl
func archivePath(kind string, before time.Time) string {
	before = before.UTC()
	return fmt.Sprintf("archive/%s/%s/%s.jsonl", kind, before.Format("2006-01-02"), before.Format("20060102T150405Z"))
}

// marshalJSONL encodes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
