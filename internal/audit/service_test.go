package audit

import (
	"context"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

type stubAuditRepo struct {
	rows       []TimelineRow
	lastLimit  int
	lastOffset int
}

func (s *stubAuditRepo) TimelineWindow(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineRow, error) {
	s.lastLimit = limit
	s.lastOffset = offset
	if offset >= len(s.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.rows) {
		end = len(s.rows)
	}
	return s.rows[offset:end], nil
}

func (s *stubAuditRepo) TimelineAll(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	return s.rows, nil
}

func (s *stubAuditRepo) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func makeRows(n int) []TimelineRow {
	rows := make([]TimelineRow, n)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := range rows {
		rows[i] = TimelineRow{
			At:     base.Add(-time.Duration(i) * time.Minute),
			Actor:  "admin@test.local",
			Action: "role.created",
			Entity: "users",
		}
	}
	return rows
}

func TestTimelineDefaultPageSize(t *testing.T) {
	repo := &stubAuditRepo{rows: makeRows(25)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{CompanyID: "c1"})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if repo.lastLimit != 21 {
		t.Fatalf("expected limit+1 probe of 21, got %d", repo.lastLimit)
	}
	if len(result.Rows) != 20 {
		t.Fatalf("expected 20 rows, got %d", len(result.Rows))
	}
	if !result.Paging.HasNext || result.Paging.NextPage != 2 {
		t.Fatalf("expected next page, got %+v", result.Paging)
	}
	if result.Paging.PrevPage != 0 {
		t.Fatalf("first page must not have prev, got %+v", result.Paging)
	}
}

func TestTimelineLastPage(t *testing.T) {
	repo := &stubAuditRepo{rows: makeRows(25)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{CompanyID: "c1", Page: 2})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if repo.lastOffset != 20 {
		t.Fatalf("expected offset 20, got %d", repo.lastOffset)
	}
	if len(result.Rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(result.Rows))
	}
	if result.Paging.HasNext {
		t.Fatalf("no next page expected")
	}
	if result.Paging.PrevPage != 1 {
		t.Fatalf("prev page expected, got %+v", result.Paging)
	}
}

func TestTimelinePageSizeClamped(t *testing.T) {
	repo := &stubAuditRepo{rows: makeRows(120)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{CompanyID: "c1", PageSize: 500})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if result.Paging.PageSize != 50 {
		t.Fatalf("page size must clamp to 50, got %d", result.Paging.PageSize)
	}
	if len(result.Rows) != 50 {
		t.Fatalf("expected 50 rows, got %d", len(result.Rows))
	}
}

func TestTimelineEmptyResult(t *testing.T) {
	svc := NewService(&stubAuditRepo{})
	result, err := svc.Timeline(context.Background(), TimelineFilters{CompanyID: "c1"})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if result.Rows == nil || len(result.Rows) != 0 {
		t.Fatalf("expected empty non-nil rows, got %v", result.Rows)
	}
	if result.Paging.HasNext {
		t.Fatalf("no next page expected")
	}
}

func timelineRequest(t *testing.T, params url.Values) *TimelineFilters {
	t.Helper()
	req := httptest.NewRequest("GET", "/audit?"+params.Encode(), nil)
	filters, err := parseFilters(req)
	if err != nil {
		t.Fatalf("parse filters: %v", err)
	}
	return &filters
}

func TestParseFiltersDefaults(t *testing.T) {
	filters := timelineRequest(t, url.Values{})
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if !filters.To.Equal(today) {
		t.Fatalf("to must default to today, got %v", filters.To)
	}
	if !filters.From.Equal(today.Add(-7 * 24 * time.Hour)) {
		t.Fatalf("from must default to a week back, got %v", filters.From)
	}
}

func TestParseFiltersRejectsWideRange(t *testing.T) {
	params := url.Values{"from": {"2026-01-01"}, "to": {"2026-08-01"}}
	req := httptest.NewRequest("GET", "/audit?"+params.Encode(), nil)
	if _, err := parseFilters(req); err == nil {
		t.Fatalf("range over 90 days must be rejected")
	}
}

func TestParseFiltersRejectsInvertedRange(t *testing.T) {
	params := url.Values{"from": {"2026-08-10"}, "to": {"2026-08-01"}}
	req := httptest.NewRequest("GET", "/audit?"+params.Encode(), nil)
	if _, err := parseFilters(req); err == nil {
		t.Fatalf("from after to must be rejected")
	}
}

func TestParseFiltersRejectsUnknownEntity(t *testing.T) {
	params := url.Values{"entity": {"widgets"}}
	req := httptest.NewRequest("GET", "/audit?"+params.Encode(), nil)
	if _, err := parseFilters(req); err == nil {
		t.Fatalf("unknown entity must be rejected")
	}
}

func TestWriteCSV(t *testing.T) {
	rows := []TimelineRow{
		{
			At:       time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
			Actor:    "admin@test.local",
			Action:   "role.created",
			Entity:   "users",
			EntityID: "r1",
			Meta:     map[string]any{"name": "Бухгалтер"},
		},
	}
	rec := httptest.NewRecorder()
	if err := WriteCSV(rec, rows); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	body := rec.Body.String()
	for _, want := range []string{"occurred_at", "role.created", "Бухгалтер", "2026-08-01T10:00:00Z"} {
		if !strings.Contains(body, want) {
			t.Fatalf("csv missing %q:\n%s", want, body)
		}
	}
}
