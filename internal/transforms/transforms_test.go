package transforms

import (
	"reflect"
	"testing"
)

func TestLookup(t *testing.T) {
	if _, ok := Lookup("getFloat"); !ok {
		t.Errorf("Lookup(getFloat) = false, want true")
	}
	if _, ok := Lookup("nope"); ok {
		t.Errorf("Lookup(nope) = true, want false")
	}
	names := Names()
	if len(names) != 16 {
		t.Errorf("len(Names()) = %d, want 16", len(names))
	}
}

func TestIsNotNull(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{name: "present", value: "x", want: true},
		{name: "number", value: 0, want: true},
		{name: "empty string", value: "", want: false},
		{name: "nil", value: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := isNotNull(tt.value)
			if err != nil {
				t.Fatalf("isNotNull() error = %v, want nil", err)
			}
			if got != tt.want {
				t.Errorf("isNotNull(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestTextIfNotNull(t *testing.T) {
	got, err := textIfNotNull("anything", "replaced")
	if err != nil || got != "replaced" {
		t.Errorf("textIfNotNull() = %v, %v, want replaced, nil", got, err)
	}
	got, err = textIfNotNull("", "replaced")
	if err != nil || got != nil {
		t.Errorf("textIfNotNull(empty) = %v, %v, want nil, nil", got, err)
	}
}

func TestGetFloat(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		params []any
		want   any
	}{
		{name: "plain", value: "37.5", want: 37.5},
		{name: "quoted with spaces", value: `"1 234.5"`, want: 1234.5},
		{name: "comma decimal", value: "37,5", params: []any{","}, want: 37.5},
		{name: "dot thousands comma decimal", value: "1.234,5", params: []any{",", "."}, want: 1234.5},
		{name: "already numeric", value: 12.0, want: 12.0},
		{name: "empty", value: "", want: nil},
		{name: "non-numeric passes through", value: "unknown", want: "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := getFloat(tt.value, tt.params...)
			if err != nil {
				t.Fatalf("getFloat() error = %v, want nil", err)
			}
			if got != tt.want {
				t.Errorf("getFloat(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  any
	}{
		{name: "fraction widens", value: 0.25, want: 25.0},
		{name: "already percent", value: 85.0, want: 85.0},
		{name: "string fraction", value: "0.5", want: 50.0},
		{name: "non-numeric untouched", value: "n/a", want: "n/a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := percentage(tt.value)
			if err != nil {
				t.Fatalf("percentage() error = %v, want nil", err)
			}
			if got != tt.want {
				t.Errorf("percentage(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestWordSubstituteSet(t *testing.T) {
	params := []any{
		[]any{"cough", "Cough"},
		[]any{"fever|pyrexia", "Fever"},
	}

	got, err := wordSubstituteSet("dry cough and fever", params...)
	if err != nil {
		t.Fatalf("wordSubstituteSet() error = %v, want nil", err)
	}
	want := []any{"Cough", "Fever"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("wordSubstituteSet() = %v, want %v", got, want)
	}

	if _, err := wordSubstituteSet("no match here at all", params...); err == nil {
		t.Errorf("wordSubstituteSet() error = nil, want match failure")
	}

	got, err = wordSubstituteSet("", params...)
	if err != nil || got != nil {
		t.Errorf("wordSubstituteSet(empty) = %v, %v, want nil, nil", got, err)
	}
}

func TestYearsElapsed(t *testing.T) {
	got, err := yearsElapsed("1950-03-10", "2022-03-10", 2022.0, "%Y-%m-%d", "%Y-%m-%d")
	if err != nil {
		t.Fatalf("yearsElapsed() error = %v, want nil", err)
	}
	years, ok := got.(float64)
	if !ok || years < 71.9 || years > 72.1 {
		t.Errorf("yearsElapsed() = %v, want ~72", got)
	}

	got, err = yearsElapsed("", "2022-03-10", 2022.0, "%Y-%m-%d", "%Y-%m-%d")
	if err != nil || got != nil {
		t.Errorf("yearsElapsed(empty) = %v, %v, want nil, nil", got, err)
	}
}

func TestYearsElapsed_EpochCorrection(t *testing.T) {
	// Two-digit year 50 parses as 2050; the epoch pivots it back to 1950.
	got, err := yearsElapsed("10/03/50", "2022-03-10", 2022.0, "%d/%m/%y", "%Y-%m-%d")
	if err != nil {
		t.Fatalf("yearsElapsed() error = %v, want nil", err)
	}
	years := got.(float64)
	if years < 71.9 || years > 72.1 {
		t.Errorf("yearsElapsed() = %v, want ~72 after epoch correction", years)
	}
}

func TestDurationDays(t *testing.T) {
	got, err := durationDays("2022-01-01", "2022-01-31")
	if err != nil {
		t.Fatalf("durationDays() error = %v, want nil", err)
	}
	if got != int64(30) {
		t.Errorf("durationDays() = %v, want 30", got)
	}
}

func TestStartDateEndDate(t *testing.T) {
	got, err := startDate("2022-01-31", 30)
	if err != nil || got != "2022-01-01" {
		t.Errorf("startDate() = %v, %v, want 2022-01-01, nil", got, err)
	}
	got, err = endDate("2022-01-01", 30)
	if err != nil || got != "2022-01-31" {
		t.Errorf("endDate() = %v, %v, want 2022-01-31, nil", got, err)
	}
	got, err = endDate("2022-01-01", nil)
	if err != nil || got != nil {
		t.Errorf("endDate(nil duration) = %v, %v, want nil, nil", got, err)
	}
}

func TestMakeDate(t *testing.T) {
	got, err := makeDate("2022", 3, 10)
	if err != nil || got != "2022-03-10" {
		t.Errorf("makeDate() = %v, %v, want 2022-03-10, nil", got, err)
	}

	if _, err := makeDate("2022", 13, 10); err == nil {
		t.Errorf("makeDate(month 13) error = nil, want out-of-range error")
	}
	if _, err := makeDate("2022", 2, 30); err == nil {
		t.Errorf("makeDate(Feb 30) error = nil, want out-of-range error")
	}

	got, err = makeDate("", 3, 10)
	if err != nil || got != nil {
		t.Errorf("makeDate(empty year) = %v, %v, want nil, nil", got, err)
	}
}

func TestMakeDateTime(t *testing.T) {
	got, err := makeDateTime("2022-02-05", "13:30", "%Y-%m-%d", "UTC")
	if err != nil {
		t.Fatalf("makeDateTime() error = %v, want nil", err)
	}
	if got != "2022-02-05T13:30:00+00:00" {
		t.Errorf("makeDateTime() = %v, want 2022-02-05T13:30:00+00:00", got)
	}

	got, err = makeDateTime("2022-02-05", "", "%Y-%m-%d", "UTC")
	if err != nil || got != "2022-02-05" {
		t.Errorf("makeDateTime(no time) = %v, %v, want date only", got, err)
	}
}

func TestMakeDateTimeFromSeconds(t *testing.T) {
	got, err := makeDateTimeFromSeconds("2022-02-05", 48600, "%Y-%m-%d", "UTC")
	if err != nil {
		t.Fatalf("makeDateTimeFromSeconds() error = %v, want nil", err)
	}
	if got != "2022-02-05T13:30:00+00:00" {
		t.Errorf("makeDateTimeFromSeconds() = %v, want 13:30 UTC", got)
	}
}

func TestSplitDate(t *testing.T) {
	tests := []struct {
		name   string
		option string
		want   int64
	}{
		{name: "year", option: "year", want: 2022},
		{name: "month", option: "month", want: 3},
		{name: "day", option: "day", want: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := splitDate("2022-03-10", tt.option, 2025.0, "%Y-%m-%d")
			if err != nil {
				t.Fatalf("splitDate() error = %v, want nil", err)
			}
			if got != tt.want {
				t.Errorf("splitDate(%s) = %v, want %v", tt.option, got, tt.want)
			}
		})
	}
	if _, err := splitDate("2022-03-10", "hour", 2025.0, "%Y-%m-%d"); err == nil {
		t.Errorf("splitDate(hour) error = nil, want invalid option")
	}
}

func TestStartYear(t *testing.T) {
	got, err := startYear("2", "2022-03-10", 2025.0, "%Y-%m-%d", "years")
	if err != nil || got != int64(2020) {
		t.Errorf("startYear(years) = %v, %v, want 2020, nil", got, err)
	}

	got, err = startYear("14", "2022-01-05", 2025.0, "%Y-%m-%d", "months")
	if err != nil || got != int64(2020) {
		t.Errorf("startYear(months) = %v, %v, want 2020, nil", got, err)
	}

	// A list-valued reference date takes its first non-empty entry.
	got, err = startYear("2", []any{"", "2022-03-10"}, 2025.0, "%Y-%m-%d", "years")
	if err != nil || got != int64(2020) {
		t.Errorf("startYear(list date) = %v, %v, want 2020, nil", got, err)
	}
}

func TestStartMonth(t *testing.T) {
	got, err := startMonth("2", "2022-03-10", 2025.0, "%Y-%m-%d", "months")
	if err != nil || got != int64(1) {
		t.Errorf("startMonth(months) = %v, %v, want 1, nil", got, err)
	}

	// Whole years never move the month.
	got, err = startMonth("2", "2022-03-10", 2025.0, "%Y-%m-%d", "years")
	if err != nil || got != nil {
		t.Errorf("startMonth(years) = %v, %v, want nil, nil", got, err)
	}
}

func TestCorrectOldDate(t *testing.T) {
	got, err := correctOldDate("10/03/50", 2022.0, "%d/%m/%y")
	if err != nil || got != "1950-03-10" {
		t.Errorf("correctOldDate() = %v, %v, want 1950-03-10, nil", got, err)
	}

	// Four-digit years are never shifted.
	got, err = correctOldDate("2050-03-10", 2022.0, "%Y-%m-%d")
	if err != nil || got != "2050-03-10" {
		t.Errorf("correctOldDate(four digit) = %v, %v, want unchanged", got, err)
	}
}
