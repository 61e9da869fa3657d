package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/marginview/marginview/internal/domain"
)

// Narrow store interfaces required by the archiver. The Postgres stores
// satisfy these through their time-ranged ListBefore queries; the archiver
// never needs the full store surface.

// QuoteArchiveStore provides read access to aged quote history.
type QuoteArchiveStore interface {
	// ListBefore returns all quotes with a timestamp strictly before cutoff.
	ListBefore(ctx context.Context, before time.Time) ([]domain.PositionQuote, error)
}

// TransferArchiveStore provides read access to aged transfer history.
type TransferArchiveStore interface {
	// ListBefore returns all transfers recorded strictly before cutoff.
	ListBefore(ctx context.Context, before time.Time) ([]domain.Transfer, error)
}

// Archiver implements domain.Archiver by querying the stores for old records,
// serialising them to JSONL, and uploading the result to object storage.
//
// Deletion of archived rows from the primary store is intentionally not done
// here; that is a separate explicit step run after the archive is verified.
type Archiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	quotes QuoteArchiveStore
	xfers  TransferArchiveStore
	logger *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(
	writer domain.BlobWriter,
	reader domain.BlobReader,
	quotes QuoteArchiveStore,
	xfers TransferArchiveStore,
	logger *slog.Logger,
) *Archiver {
	return &Archiver{
		writer: writer,
		reader: reader,
		quotes: quotes,
		xfers:  xfers,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveQuotes exports all quotes before the cutoff to
// archive/quotes/YYYY-MM.jsonl and returns the record count. A month that is
// already archived is skipped.
func (a *Archiver) ArchiveQuotes(ctx context.Context, before time.Time) (int64, error) {
	path := archivePath("quotes", before)
	if done, err := a.reader.Exists(ctx, path); err != nil {
		return 0, fmt.Errorf("s3blob: archive quotes check %s: %w", path, err)
	} else if done {
		a.logger.Info("archive already present, skipping", slog.String("path", path))
		return 0, nil
	}

	quotes, err := a.quotes.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive quotes query: %w", err)
	}
	if len(quotes) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(quotes)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive quotes marshal: %w", err)
	}
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive quotes upload: %w", err)
	}

	count := int64(len(quotes))
	a.logger.Info("archived quotes",
		slog.String("path", path),
		slog.Int64("count", count),
		slog.Time("before", before))
	return count, nil
}

// ArchiveTransfers exports all transfers before the cutoff to
// archive/transfers/YYYY-MM.jsonl and returns the record count. The transfer
// log stays append-only; the export is a copy, not a move.
func (a *Archiver) ArchiveTransfers(ctx context.Context, before time.Time) (int64, error) {
	path := archivePath("transfers", before)
	if done, err := a.reader.Exists(ctx, path); err != nil {
		return 0, fmt.Errorf("s3blob: archive transfers check %s: %w", path, err)
	} else if done {
		a.logger.Info("archive already present, skipping", slog.String("path", path))
		return 0, nil
	}

	xfers, err := a.xfers.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive transfers query: %w", err)
	}
	if len(xfers) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(xfers)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive transfers marshal: %w", err)
	}
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive transfers upload: %w", err)
	}

	count := int64(len(xfers))
	a.logger.Info("archived transfers",
		slog.String("path", path),
		slog.Int64("count", count),
		slog.Time("before", before))
	return count, nil
}

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff:
//
//	archive/quotes/2026-08.jsonl
//	archive/transfers/2026-08.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON.
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

// Compile-time interface check.
var _ domain.Archiver = (*Archiver)(nil)
