package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const ledgerCSV = "Дата платежа,Номер карты,Статус,Сумма платежа,Категория,Описание\n" +
	"29.10.2021,*7197,OK,-100.00,Супермаркеты,Колхоз\n" +
	"20.10.2021,*7197,OK,-300.00,Такси,Яндекс Такси\n" +
	"15.09.2021,*7197,OK,-250.50,Супермаркеты,Пятёрочка\n"

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	ledger := filepath.Join(dir, "operations.csv")
	if err := os.WriteFile(ledger, []byte(ledgerCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LEDGER_BACKEND", "file")
	t.Setenv("LEDGER_PATH", ledger)
	t.Setenv("SETTINGS_PATH", filepath.Join(dir, "user_settings.json"))
	t.Setenv("REPORT_SINKS", "file")
	t.Setenv("REPORT_DIR", filepath.Join(dir, "reports"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("PORT", "")
	t.Setenv("QUOTES_MODE", "")
	t.Setenv("EXCHANGE_RATES_URL", "")
	t.Setenv("STOCKS_URL", "")
	return dir
}

func TestRunDashboard(t *testing.T) {
	setupEnv(t)
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"dashboard", "-date", "2021-10-30 15:12:30"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit=%d stderr=%s", code, stderr.String())
	}
	var got struct {
		Greeting string `json:"greeting"`
		Cards    []struct {
			LastDigits string  `json:"last_digits"`
			TotalSpent float64 `json:"total_spent"`
		} `json:"cards"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout.String())
	}
	if got.Greeting != "Добрый день" || len(got.Cards) != 1 || got.Cards[0].TotalSpent != 400 {
		t.Fatalf("unexpected dashboard %+v", got)
	}
}

func TestRunSearch(t *testing.T) {
	setupEnv(t)
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"search", "яндекс"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit=%d stderr=%s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Яндекс Такси") || strings.Contains(stdout.String(), "Колхоз") {
		t.Fatalf("unexpected search output %s", stdout.String())
	}
}

func TestRunCategoryWritesReport(t *testing.T) {
	dir := setupEnv(t)
	var stdout, stderr bytes.Buffer
	args := []string{"category", "-name", "Супермаркеты", "-date", "2021-10-30 15:12:30", "-sum"}
	if code := run(context.Background(), args, &stdout, &stderr); code != 0 {
		t.Fatalf("exit=%d stderr=%s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), `"total": -350.5`) {
		t.Fatalf("unexpected totals %s", stdout.String())
	}
	files, err := filepath.Glob(filepath.Join(dir, "reports", "report_category_totals_*.json"))
	if err != nil || len(files) != 1 {
		t.Fatalf("expected one report file, got %v (%v)", files, err)
	}
}

func TestRunErrors(t *testing.T) {
	setupEnv(t)
	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "no command", args: nil, want: 2},
		{name: "unknown command", args: []string{"export"}, want: 1},
		{name: "bad date", args: []string{"dashboard", "-date", "30.10.2021"}, want: 1},
		{name: "bad flag", args: []string{"search", "-x"}, want: 1},
		{name: "help", args: []string{"category", "-h"}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(context.Background(), tt.args, &stdout, &stderr); code != tt.want {
				t.Fatalf("exit=%d, want %d (stderr=%s)", code, tt.want, stderr.String())
			}
		})
	}
}

func TestRunInvalidConfig(t *testing.T) {
	setupEnv(t)
	t.Setenv("LEDGER_BACKEND", "mongo")
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"search", "x"}, &stdout, &stderr); code != 1 {
		t.Fatalf("exit=%d", code)
	}
	if !strings.Contains(stderr.String(), "configuration validation failed") {
		t.Fatalf("expected validation error, got %s", stderr.String())
	}
}
