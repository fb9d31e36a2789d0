package verification

import (
	"testing"
	"time"
)

func TestFilterChangesResetPage(t *testing.T) {
	base := ListFilter{Page: 4, PageSize: 25}
	now := time.Now()
	changes := map[string]ListFilter{
		"search": base.WithSearch("jane"),
		"status": base.WithStatus(StatusSent),
		"agent":  base.WithAgent("agent-1"),
		"dates":  base.WithDateRange(&now, nil),
	}
	for name, f := range changes {
		if f.Page != 1 {
			t.Fatalf("%s change kept page %d", name, f.Page)
		}
		if f.PageSize != 25 {
			t.Fatalf("%s change altered page size", name)
		}
	}
	paged := base.WithSearch("jane").WithPage(3)
	if paged.Page != 3 || paged.Search != "jane" {
		t.Fatalf("WithPage should only move the page, got %+v", paged)
	}
}

func TestFilterNormalize(t *testing.T) {
	f := ListFilter{Page: -2, PageSize: 500, Search: "  doe "}.Normalize()
	if f.Page != 1 || f.PageSize != MaxPageSize || f.Search != "doe" {
		t.Fatalf("unexpected normalized filter %+v", f)
	}
	if got := (ListFilter{}).Normalize().PageSize; got != DefaultPageSize {
		t.Fatalf("expected default page size, got %d", got)
	}
	if off := (ListFilter{Page: 3, PageSize: 10}).Offset(); off != 20 {
		t.Fatalf("expected offset 20, got %d", off)
	}
}

func TestFilterMatches(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	req := Request{
		ID:       "abc-123",
		Customer: Customer{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Phone: "5551234567"},
		Status:   StatusSent,
		AgentID:  "agent-1",
		Timeline: Timeline{CreatedAt: created},
	}
	before := created.Add(-time.Hour)
	after := created.Add(time.Hour)
	cases := []struct {
		name string
		f    ListFilter
		want bool
	}{
		{"empty", ListFilter{}, true},
		{"name", ListFilter{Search: "jane d"}, true},
		{"email case", ListFilter{Search: "JANE@"}, true},
		{"phone", ListFilter{Search: "1234"}, true},
		{"id", ListFilter{Search: "abc"}, true},
		{"no match", ListFilter{Search: "smith"}, false},
		{"status", ListFilter{Status: StatusCompleted}, false},
		{"agent", ListFilter{AgentID: "agent-2"}, false},
		{"in range", ListFilter{From: &before, To: &after}, true},
		{"too early", ListFilter{From: &after}, false},
	}
	for _, tc := range cases {
		if got := tc.f.Matches(req); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}
