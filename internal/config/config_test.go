package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.ini")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoadFillsDefaults(t *testing.T) {
	path := writeFixture(t, `
start_date = 2024-01-01
end_date = 2024-06-01
exchange = NYSE
codes = AAA,BBB
entry_long = close > SMA(20)
exit_long = close < SMA(20)
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.InitialCapital != 100000 {
		t.Fatalf("initial_capital default = %v, want 100000", cfg.InitialCapital)
	}
	if cfg.RiskFreeRate != 0.05 {
		t.Fatalf("risk_free_rate default = %v, want 0.05", cfg.RiskFreeRate)
	}
	if cfg.MaxPositions != 1 {
		t.Fatalf("max_positions default = %v, want 1", cfg.MaxPositions)
	}
	codes := cfg.CodeList()
	if len(codes) != 2 || codes[0] != "AAA" || codes[1] != "BBB" {
		t.Fatalf("CodeList = %v, want [AAA BBB]", codes)
	}
}

func TestLoadRejectsEndBeforeStart(t *testing.T) {
	path := writeFixture(t, `
start_date = 2024-06-01
end_date = 2024-01-01
exchange = NYSE
code = AAA
entry_long = close > 0
exit_long = close < 0
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for end_date before start_date")
	}
}

func TestLoadRejectsMissingRequiredField(t *testing.T) {
	path := writeFixture(t, `
start_date = 2024-01-01
end_date = 2024-06-01
code = AAA
entry_long = close > 0
exit_long = close < 0
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for missing exchange")
	}
}

func TestCodeListFallsBackToSingleCode(t *testing.T) {
	cfg := &RunConfig{Code: "  SOLO  "}
	codes := cfg.CodeList()
	if len(codes) != 1 || codes[0] != "SOLO" {
		t.Fatalf("CodeList = %v, want [SOLO]", codes)
	}
}
