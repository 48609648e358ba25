package model

import (
	"testing"
	"time"
)

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("01-2026")
	if err != nil {
		t.Fatalf("ParseMonth failed: %v", err)
	}
	if m.Year != 2026 || m.Month != time.January {
		t.Errorf("ParseMonth = %+v, want 2026-01", m)
	}
	if m.String() != "01-2026" {
		t.Errorf("String() = %q, want 01-2026", m.String())
	}
	if m.Key() != "2026-01" {
		t.Errorf("Key() = %q, want 2026-01", m.Key())
	}

	if _, err := ParseMonth("2026-01"); err == nil {
		t.Error("expected error for storage-form input")
	}
}

func TestMonth_AddMonths(t *testing.T) {
	tests := []struct {
		name  string
		start Month
		want  Month
		n     int
	}{
		{name: "next month", start: NewMonth(2025, time.March), n: 1, want: NewMonth(2025, time.April)},
		{name: "year rollover", start: NewMonth(2025, time.November), n: 3, want: NewMonth(2026, time.February)},
		{name: "backwards", start: NewMonth(2025, time.January), n: -12, want: NewMonth(2024, time.January)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.start.AddMonths(tt.n); got != tt.want {
				t.Errorf("AddMonths(%d) = %v, want %v", tt.n, got, tt.want)
			}
		})
	}
}

func TestMonthRange(t *testing.T) {
	got := MonthRange(NewMonth(2025, time.December), 3)
	want := []Month{NewMonth(2026, time.January), NewMonth(2026, time.February), NewMonth(2026, time.March)}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("month[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSeriesKey_RoundTrip(t *testing.T) {
	key := SeriesKey{CategoryCode: "5000-A001", BusinessUnit: "BB1"}
	parsed, err := ParseSeriesKey(key.String())
	if err != nil {
		t.Fatalf("ParseSeriesKey failed: %v", err)
	}
	if parsed != key {
		t.Errorf("round trip = %+v, want %+v", parsed, key)
	}

	if _, err := ParseSeriesKey("5000-A001"); err == nil {
		t.Error("expected error for key without business unit")
	}
}

func TestValuesEqual(t *testing.T) {
	tests := []struct {
		a, b   *float64
		name   string
		places int32
		want   bool
	}{
		{name: "sub-cent difference is equal", a: Float(100.00), b: Float(100.001), places: MoneyPlaces, want: true},
		{name: "cent difference is unequal", a: Float(100.00), b: Float(100.01), places: MoneyPlaces, want: false},
		{name: "ratio precision", a: Float(60.00001), b: Float(60.0), places: RatioPlaces, want: true},
		{name: "ratio difference", a: Float(60.0001), b: Float(60.0), places: RatioPlaces, want: false},
		{name: "both nil", a: nil, b: nil, places: MoneyPlaces, want: true},
		{name: "one nil", a: Float(0), b: nil, places: MoneyPlaces, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValuesEqual(tt.a, tt.b, tt.places); got != tt.want {
				t.Errorf("ValuesEqual = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFlagSet_Empty(t *testing.T) {
	jan := NewMonth(2026, time.January)
	feb := NewMonth(2026, time.February)

	fs := FlagSet{jan: {}, feb: {}}
	if !fs.Empty() {
		t.Error("structured set with empty months should be empty")
	}

	fs[feb]["GPM"] = Flag{Month: feb, KPIAlias: "GPM", ForecastValue: 50, TargetValue: 60}
	if fs.Empty() {
		t.Error("set with a flag should not be empty")
	}
	if fs.Count() != 1 {
		t.Errorf("Count() = %d, want 1", fs.Count())
	}
	if months := fs.Months(); months[0] != jan || months[1] != feb {
		t.Errorf("Months() not sorted: %v", months)
	}
}
