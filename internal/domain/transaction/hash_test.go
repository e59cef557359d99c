package transaction

import (
	"testing"
	"time"
)

func TestHash_Deterministic(t *testing.T) {
	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	a := Hash(42, -45.90, date, "UBER *TRIP SAO PAULO")
	b := Hash(42, -45.90, date, "UBER *TRIP SAO PAULO")
	if a != b {
		t.Errorf("Hash() not deterministic: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Errorf("Hash() length = %d, want 64 hex chars", len(a))
	}
}

func TestHash_IgnoresDescriptionFormatting(t *testing.T) {
	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	a := Hash(42, -45.90, date, "UBER *TRIP   SAO PAULO")
	b := Hash(42, -45.90, date, "uber *trip sao paulo")
	if a != b {
		t.Error("Hash() should ignore case and whitespace differences in description")
	}
}

func TestHash_IgnoresTimeOfDay(t *testing.T) {
	morning := time.Date(2026, 3, 15, 8, 30, 0, 0, time.UTC)
	evening := time.Date(2026, 3, 15, 22, 15, 45, 0, time.UTC)
	a := Hash(42, -45.90, morning, "padaria")
	b := Hash(42, -45.90, evening, "padaria")
	if a != b {
		t.Error("Hash() should truncate the date to the day")
	}
}

func TestHash_DistinguishesIdentityFields(t *testing.T) {
	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	base := Hash(42, -45.90, date, "padaria")

	if Hash(43, -45.90, date, "padaria") == base {
		t.Error("Hash() should change with account id")
	}
	if Hash(42, -45.91, date, "padaria") == base {
		t.Error("Hash() should change with amount")
	}
	if Hash(42, -45.90, date.AddDate(0, 0, 1), "padaria") == base {
		t.Error("Hash() should change with date")
	}
	if Hash(42, -45.90, date, "farmacia") == base {
		t.Error("Hash() should change with description")
	}
}

func TestHash_AmountRoundedToCents(t *testing.T) {
	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	a := Hash(42, -45.900000001, date, "padaria")
	b := Hash(42, -45.90, date, "padaria")
	if a != b {
		t.Error("Hash() should canonicalize amounts to two decimal places")
	}
}

func TestNormalizeDescription(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"UBER *TRIP", "uber *trip"},
		{"  Padaria   do  Ze  ", "padaria do ze"},
		{"PIX\tTRANSF\nJOAO", "pix transf joao"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeDescription(tt.input); got != tt.want {
			t.Errorf("NormalizeDescription(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
