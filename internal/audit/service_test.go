package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/commerceops/opsdash/internal/shared"
)

type stubTimelineRepo struct {
	rows       []TimelineRow
	err        error
	lastOffset int
	lastLimit  int
	lastFilter TimelineFilters
}

func (s *stubTimelineRepo) ListTimeline(ctx context.Context, f TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	s.lastFilter, s.lastOffset, s.lastLimit = f, offset, limit
	if s.err != nil {
		return nil, s.err
	}
	end := offset + limit
	if end > len(s.rows) {
		end = len(s.rows)
	}
	if offset > len(s.rows) {
		return nil, nil
	}
	return s.rows[offset:end], nil
}

func mockRow(at, action, entity, id string) TimelineRow {
	ts, _ := time.Parse(time.RFC3339, at)
	return TimelineRow{At: ts, Actor: "ops@shop.example", Action: action, Entity: entity, EntityID: id}
}

func sampleRows() []TimelineRow {
	return []TimelineRow{
		mockRow("2024-06-10T10:00:00Z", "po.received", "purchase_order", "7"),
		mockRow("2024-06-09T09:00:00Z", "return.inspected", "return", "3"),
		mockRow("2024-06-08T08:00:00Z", "inventory.adjusted", "inventory", "12"),
	}
}

func TestServiceTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{rows: sampleRows()}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(result.Rows) != 2 || !result.Paging.HasNext || result.Paging.NextPage != 2 {
		t.Fatalf("unexpected first page: %+v", result.Paging)
	}
	if repo.lastLimit != 3 || repo.lastOffset != 0 {
		t.Fatalf("expected offset 0 limit 3, got %d/%d", repo.lastOffset, repo.lastLimit)
	}

	result, err = svc.Timeline(context.Background(), TimelineFilters{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(result.Rows) != 1 || result.Paging.HasNext || result.Paging.PrevPage != 1 {
		t.Fatalf("unexpected second page: %+v", result.Paging)
	}
	if result.Rows[0].Entity != "inventory" {
		t.Fatalf("unexpected row %+v", result.Rows[0])
	}
}

func TestServiceTimelineClampsPageSize(t *testing.T) {
	repo := &stubTimelineRepo{}
	svc := NewService(repo)
	if _, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 1000}); err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if repo.lastLimit != maxPageSize+1 {
		t.Fatalf("expected limit %d, got %d", maxPageSize+1, repo.lastLimit)
	}
	if _, err := svc.Timeline(context.Background(), TimelineFilters{}); err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if repo.lastLimit != defaultPageSize+1 {
		t.Fatalf("expected default limit, got %d", repo.lastLimit)
	}
}

func TestServiceTimelineErrors(t *testing.T) {
	svc := NewService(&stubTimelineRepo{err: errors.New("db down")})
	_, err := svc.Timeline(context.Background(), TimelineFilters{})
	if shared.KindOf(err) != shared.KindInternal {
		t.Fatalf("expected internal error, got %v", err)
	}

	from := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	_, err = svc.Timeline(context.Background(), TimelineFilters{From: from, To: from.AddDate(0, 0, -1)})
	if shared.KindOf(err) != shared.KindInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestServiceExportAndCSV(t *testing.T) {
	repo := &stubTimelineRepo{rows: sampleRows()}
	repo.rows[0].Meta = map[string]any{"status": "RECEIVED"}
	svc := NewService(repo)

	rows, err := svc.Export(context.Background(), TimelineFilters{Entity: "purchase_order"})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if repo.lastLimit != maxExportRows || repo.lastFilter.Entity != "purchase_order" {
		t.Fatalf("unexpected export call limit=%d filter=%+v", repo.lastLimit, repo.lastFilter)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d", len(records))
	}
	if records[1][0] != "2024-06-10T10:00:00Z" || records[1][5] != `{"status":"RECEIVED"}` {
		t.Fatalf("unexpected first record %v", records[1])
	}
	if records[2][5] != "" {
		t.Fatalf("expected empty meta, got %q", records[2][5])
	}
}
