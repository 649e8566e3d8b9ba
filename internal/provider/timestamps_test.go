package provider

import (
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	fallback := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	want := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		raw    any
		want   time.Time
		wantOK bool
	}{
		{name: "epoch seconds int", raw: int64(want.Unix()), want: want, wantOK: true},
		{name: "epoch seconds float", raw: float64(want.Unix()), want: want, wantOK: true},
		{name: "epoch millis", raw: want.UnixMilli(), want: want, wantOK: true},
		{name: "epoch millis float", raw: float64(want.UnixMilli()), want: want, wantOK: true},
		{name: "epoch micros", raw: want.UnixMicro(), want: want, wantOK: true},
		{name: "epoch string", raw: "1709289000", want: want, wantOK: true},
		{name: "rfc3339 nano", raw: "2024-03-01T10:30:00.000000000Z", want: want, wantOK: true},
		{name: "rfc3339 offset", raw: "2024-03-01T11:30:00+01:00", want: want, wantOK: true},
		{name: "go time string", raw: "2024-03-01 10:30:00.000 +0000 UTC", want: want, wantOK: true},
		{name: "naive T", raw: "2024-03-01T10:30:00", want: want, wantOK: true},
		{name: "naive space", raw: "2024-03-01 10:30:00", want: want, wantOK: true},
		{name: "rfc1123z", raw: "Fri, 01 Mar 2024 10:30:00 +0000", want: want, wantOK: true},
		{name: "rfc1123", raw: "Fri, 01 Mar 2024 10:30:00 UTC", want: want, wantOK: true},
		{name: "garbage", raw: "yesterday-ish", want: fallback, wantOK: false},
		{name: "empty", raw: "", want: fallback, wantOK: false},
		{name: "nil", raw: nil, want: fallback, wantOK: false},
		{name: "zero epoch", raw: int64(0), want: fallback, wantOK: false},
		{name: "negative", raw: -5.0, want: fallback, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.raw, fallback)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("expected UTC, got %s", got.Location())
			}
		})
	}
}

func TestParseTimestamp_FractionalSeconds(t *testing.T) {
	got, ok := ParseTimestamp(1709289000.5, time.Time{})
	if !ok {
		t.Fatal("expected fractional epoch to parse")
	}
	if got.Nanosecond() != 500_000_000 {
		t.Errorf("nanos = %d, want 5e8", got.Nanosecond())
	}
}
