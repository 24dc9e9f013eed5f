package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount("1200.505")
	if err != nil {
		t.Fatalf("ParseAmount: %v", err)
	}
	if d.String() != "1200.51" {
		t.Fatalf("ParseAmount rounding = %s, want 1200.51", d)
	}

	if _, err := ParseAmount("-5"); err == nil {
		t.Fatalf("expected error for negative amount")
	}
	if _, err := ParseAmount("abc"); err == nil {
		t.Fatalf("expected error for non-numeric amount")
	}
}

func TestFormat(t *testing.T) {
	if got := Format(decimal.RequireFromString("2500")); got != "2500.00 DA" {
		t.Fatalf("Format = %q", got)
	}
}

func TestLineTotal(t *testing.T) {
	got := LineTotal(decimal.RequireFromString("250.25"), 4)
	if !got.Equal(decimal.RequireFromString("1001")) {
		t.Fatalf("LineTotal = %s, want 1001", got)
	}
}
