package core

import (
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	if err := NewDate(2025, 1, 1).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Date{Time: time.Time{}}).Validate(); err == nil {
		t.Fatal("expected error for zero date")
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatal("expected error for zero")
	}
}

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"12.34", 1234, false},
		{"12,34", 1234, false},
		{"12.345", 1234, false},
		{"12.346", 1235, false},
		{"100", 10000, false},
		{"0", 0, true},
		{"-5", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseDecimalToCents(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseDecimalToCents(%q) unexpected error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseDecimalToCents(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestXitiqueValidate(t *testing.T) {
	good := Xitique{
		Name:       "Vizinhos de Maputo",
		Kind:       KindGroup,
		BaseAmount: Money{Cents: 10000},
		Frequency:  Monthly,
		StartDate:  NewDate(2025, 3, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Xitique{
		{Kind: KindGroup, BaseAmount: Money{Cents: 1}, Frequency: Monthly, StartDate: NewDate(2025, 3, 1)},                      // empty name
		{Name: "x", Kind: Kind("team"), BaseAmount: Money{Cents: 1}, Frequency: Monthly, StartDate: NewDate(2025, 3, 1)},        // bad kind
		{Name: "x", Kind: KindGroup, BaseAmount: Money{Cents: 1}, Frequency: Frequency("hourly"), StartDate: NewDate(2025, 3, 1)}, // bad frequency
		{Name: "x", Kind: KindGroup, BaseAmount: Money{Cents: 0}, Frequency: Monthly, StartDate: NewDate(2025, 3, 1)},           // zero amount
		{Name: "x", Kind: KindGroup, BaseAmount: Money{Cents: 1}, Frequency: Monthly},                                           // zero start date
	}
	for i, x := range bads {
		if err := x.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestEffectiveContribution(t *testing.T) {
	base := Money{Cents: 10000}
	custom := Money{Cents: 7500}
	if got := (Participant{}).EffectiveContribution(base); got.Cents != 10000 {
		t.Fatalf("default contribution = %d, want 10000", got.Cents)
	}
	if got := (Participant{CustomAmount: &custom}).EffectiveContribution(base); got.Cents != 7500 {
		t.Fatalf("custom contribution = %d, want 7500", got.Cents)
	}
}
