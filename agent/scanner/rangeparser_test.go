package scanner

import (
	"errors"
	"reflect"
	"testing"
)

func TestExpandRanges(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		ranges []string
		want   []string
	}{
		{
			name:   "last octet range",
			ranges: []string{"10.0.0.1-3"},
			want:   []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"},
		},
		{
			name:   "single address",
			ranges: []string{"192.168.1.50"},
			want:   []string{"192.168.1.50"},
		},
		{
			name:   "overlap emitted once in first-seen order",
			ranges: []string{"10.0.0.3-4", "10.0.0.1-3"},
			want:   []string{"10.0.0.3", "10.0.0.4", "10.0.0.1", "10.0.0.2"},
		},
		{
			name:   "blank entries skipped",
			ranges: []string{"", "  ", "172.16.0.9-9"},
			want:   []string{"172.16.0.9"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ExpandRanges(tt.ranges, 0)
			if err != nil {
				t.Fatalf("ExpandRanges: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpandRangesFullSubnet(t *testing.T) {
	t.Parallel()

	got, err := ExpandRanges([]string{"192.168.1.1-254"}, 0)
	if err != nil {
		t.Fatalf("ExpandRanges: %v", err)
	}
	if len(got) != 254 || got[0] != "192.168.1.1" || got[253] != "192.168.1.254" {
		t.Errorf("unexpected expansion: len=%d first=%s last=%s", len(got), got[0], got[len(got)-1])
	}
}

func TestExpandRangesInvalid(t *testing.T) {
	t.Parallel()

	for _, expr := range []string{
		"10.0.0",
		"10.0.0.300-4",
		"10.0.0.5-2",
		"10.0.0.1-x",
		"10.0.0.1-256",
		"printer.local",
		"fe80::1",
	} {
		_, err := ExpandRanges([]string{expr}, 0)
		if !errors.Is(err, ErrInvalidRange) {
			t.Errorf("%q: expected ErrInvalidRange, got %v", expr, err)
		}
	}
}

func TestExpandRangesMaxAddresses(t *testing.T) {
	t.Parallel()

	_, err := ExpandRanges([]string{"10.0.0.1-10", "10.0.1.1-10"}, 15)
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Index != 1 {
		t.Fatalf("expected ParseError on second range, got %v", err)
	}
}

func TestLastOctets(t *testing.T) {
	t.Parallel()

	if got := lastOctets("192.168.1.50", 2); got != "150" {
		t.Errorf("lastOctets(2) = %q", got)
	}
	if got := lastOctets("192.168.1.50", 1); got != "50" {
		t.Errorf("lastOctets(1) = %q", got)
	}
}
