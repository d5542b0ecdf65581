package handlers

import (
	"net/http/httptest"
	"regexp"
	"testing"
	"time"
)

func TestPageFromRequest(t *testing.T) {
	t.Parallel()
	cases := []struct {
		query      string
		page, size int
	}{
		{"", 1, DefaultPageSize},
		{"?page=3&page_size=10", 3, 10},
		{"?page=-1&page_size=1000", 1, MaxPageSize},
		{"?page=abc&page_size=0", 1, DefaultPageSize},
	}
	for _, tc := range cases {
		p := pageFromRequest(httptest.NewRequest("GET", "/x"+tc.query, nil))
		if p.Page != tc.page || p.Size != tc.size {
			t.Fatalf("%q: got %+v", tc.query, p)
		}
	}
	resp := pageParams{Page: 2, Size: 20}.Response([]int{}, 41)
	if resp.TotalPages != 3 {
		t.Fatalf("total pages = %d", resp.TotalPages)
	}
	if empty := (pageParams{Page: 1, Size: 20}).Response(nil, 0); empty.TotalPages != 0 {
		t.Fatalf("empty total pages = %d", empty.TotalPages)
	}
}

func TestReferenceNumberFormat(t *testing.T) {
	t.Parallel()
	re := regexp.MustCompile(`^CT-20240305-[A-Z0-9]{6}$`)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		ref, err := newReferenceNumber(time.Date(2024, 3, 5, 23, 0, 0, 0, time.UTC))
		if err != nil || !re.MatchString(ref) {
			t.Fatalf("ref %q, %v", ref, err)
		}
		seen[ref] = true
	}
	if len(seen) < 45 {
		t.Fatalf("references repeat too often: %d distinct of 50", len(seen))
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()
	if d, err := parseDate("2024-02-29"); err != nil || d.Day() != 29 {
		t.Fatalf("date-only: %v %v", d, err)
	}
	if _, err := parseDate("2024-02-29T10:00:00+03:00"); err != nil {
		t.Fatalf("rfc3339: %v", err)
	}
	if _, err := parseDate("29/02/2024"); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestValidEmail(t *testing.T) {
	t.Parallel()
	cases := map[string]bool{
		"owner@example.com":          true,
		"first.last+tag@example.sa":  true,
		"":                           false,
		"no-at-sign":                 false,
		"@example.com":               false,
		"owner@":                     false,
		"two words@example.com":      false,
		"Owner <owner@example.com>":  false,
		"owner@example.com, x@y.com": false,
	}
	for in, want := range cases {
		if got := validEmail(in); got != want {
			t.Fatalf("validEmail(%q) = %v, want %v", in, got, want)
		}
	}
}
