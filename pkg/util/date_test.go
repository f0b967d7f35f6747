package util

import (
	"strconv"
	"testing"
	"time"
)

func saoPaulo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestParseTimeInRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTimeIn(s, saoPaulo(t))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeInZonelessUsesLocation(t *testing.T) {
	got, ok := ParseTimeIn("2025-01-15T09:00:00", saoPaulo(t))
	if !ok {
		t.Fatalf("expected ok")
	}
	want := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got.UTC(), want)
	}
}

func TestParseTimeInUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTimeIn(strconv.FormatInt(ts, 10), nil)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeInInvalid(t *testing.T) {
	for _, s := range []string{"", "yesterday", "-5", "2025-13-01"} {
		if _, ok := ParseTimeIn(s, nil); ok {
			t.Fatalf("expected %q to fail", s)
		}
	}
}

func TestParseDate(t *testing.T) {
	loc := saoPaulo(t)
	d, err := ParseDate("2025-01-15", loc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if y, m, day := d.Date(); y != 2025 || m != time.January || day != 15 {
		t.Fatalf("unexpected date %v", d)
	}
	if _, err := ParseDate("15/01/2025", loc); err == nil {
		t.Fatalf("expected error")
	}
}
