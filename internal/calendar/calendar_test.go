package calendar

import (
	"errors"
	"testing"
	"time"
)

func TestParseUnit(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"second", "Minute", " day ", "MONTH", "year"} {
		if _, err := ParseUnit(raw); err != nil {
			t.Fatalf("ParseUnit(%q) error: %v", raw, err)
		}
	}
	for _, raw := range []string{"week", "", "mouth", "hour"} {
		_, err := ParseUnit(raw)
		if !errors.Is(err, ErrUnknownUnit) {
			t.Fatalf("ParseUnit(%q) err = %v, want ErrUnknownUnit", raw, err)
		}
	}
}

func TestReadingAtUsesLocation(t *testing.T) {
	t.Parallel()
	msk := time.FixedZone("MSK", 3*60*60)
	// 22:30:15 UTC on Dec 31 is already Jan 1 in UTC+3.
	at := time.Date(2023, time.December, 31, 22, 30, 15, 0, time.UTC)

	r := ReadingAt(at, msk)
	want := Reading{Second: 15, Minute: 30, Day: 1, Month: 1, Year: 2024}
	if r != want {
		t.Fatalf("ReadingAt = %+v, want %+v", r, want)
	}
	if got := r.Value(Year); got != 2024 {
		t.Fatalf("Value(year) = %d", got)
	}
	if got := r.Value(Unit("week")); got != 0 {
		t.Fatalf("Value(week) = %d, want 0", got)
	}
	m := r.Map()
	if len(m) != 5 || m["day"] != 1 || m["minute"] != 30 {
		t.Fatalf("Map = %v", m)
	}
}

func TestNextRollover(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("MSK", 3*60*60)
	from := time.Date(2024, time.January, 31, 23, 59, 30, 0, loc)

	tests := []struct {
		unit Unit
		want time.Time
	}{
		{Second, time.Date(2024, time.January, 31, 23, 59, 31, 0, loc)},
		{Minute, time.Date(2024, time.February, 1, 0, 0, 0, 0, loc)},
		{Day, time.Date(2024, time.February, 1, 0, 0, 0, 0, loc)},
		{Month, time.Date(2024, time.February, 1, 0, 0, 0, 0, loc)},
		{Year, time.Date(2025, time.January, 1, 0, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		got := NextRollover(tt.unit, from, loc)
		if !got.Equal(tt.want) {
			t.Fatalf("NextRollover(%s) = %v, want %v", tt.unit, got, tt.want)
		}
	}
	if got := NextRollover(Unit("week"), from, loc); !got.IsZero() {
		t.Fatalf("NextRollover(week) = %v, want zero", got)
	}
}

func TestLoadLocationDefault(t *testing.T) {
	t.Parallel()
	loc, err := LoadLocation("")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	if loc.String() != DefaultTimezone {
		t.Fatalf("LoadLocation(\"\") = %s, want %s", loc, DefaultTimezone)
	}
	if _, err := LoadLocation("Not/AZone"); err == nil {
		t.Fatal("expected error for invalid timezone")
	}
}

func TestNewSourceDefaultsLocation(t *testing.T) {
	t.Parallel()
	if got := NewSource(nil, nil).Location().String(); got != DefaultTimezone {
		t.Fatalf("default location = %s, want %s", got, DefaultTimezone)
	}
}
