package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/importdesk/importdesk/internal/apitest"
	"github.com/importdesk/importdesk/internal/model"
)

func TestPrintRows(t *testing.T) {
	var buf bytes.Buffer
	headers := []string{"system_id", "name", "photo"}
	rows := []model.Row{
		{"photo": "data:image/png;base64,AAAA", "name": "ann", "system_id": 1},
		{"name": "b\tob", "system_id": 2},
	}
	if err := printRows(&buf, headers, rows); err != nil {
		t.Fatalf("printRows: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if f := strings.Fields(lines[0]); strings.Join(f, ",") != "system_id,name,photo" {
		t.Errorf("header line = %q", lines[0])
	}
	if f := strings.Fields(lines[1]); len(f) != 3 || f[0] != "1" || f[1] != "ann" || f[2] != "[image]" {
		t.Errorf("first row = %q", lines[1])
	}
	if !strings.Contains(lines[2], "b ob") {
		t.Errorf("tab inside a cell was not replaced: %q", lines[2])
	}
}

func writeWorkbook(t *testing.T, rows int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "students.xlsx")
	data := apitest.Workbook(t, apitest.StudentHeaders, apitest.StudentRows(rows))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return path
}

func TestSummarizeWorkbook(t *testing.T) {
	path := writeWorkbook(t, 4)

	var buf bytes.Buffer
	if err := summarizeWorkbook(&buf, path); err != nil {
		t.Fatalf("summarizeWorkbook: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), buf.String())
	}
	// Header row plus four data rows, three columns.
	if f := strings.Fields(lines[1]); len(f) != 3 || f[1] != "5" || f[2] != "3" {
		t.Errorf("summary line = %q", lines[1])
	}

	if err := summarizeWorkbook(&buf, filepath.Join(t.TempDir(), "missing.xlsx")); err == nil {
		t.Error("expected an error for a missing workbook")
	}
}

func TestImportCommand(t *testing.T) {
	tests := []struct {
		name       string
		dryRun     bool
		wantRows   int
		wantCancel int
	}{
		{"confirm", false, 3, 0},
		{"dry run", true, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := apitest.New(t)
			path := writeWorkbook(t, 3)

			cmd := importCmd()
			args := []string{"--api-url", b.URL(), "--source", "mysql", "--log-level", "error", path}
			if tt.dryRun {
				args = append([]string{"--dry-run"}, args...)
			}
			cmd.SetArgs(args)
			var out, errOut bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetErr(&errOut)
			if err := cmd.Execute(); err != nil {
				t.Fatalf("import: %v", err)
			}

			if !strings.Contains(out.String(), "studentA") {
				t.Errorf("preview not printed:\n%s", out.String())
			}
			if !strings.Contains(errOut.String(), "3 rows staged") {
				t.Errorf("stderr = %q", errOut.String())
			}
			got := 0
			if tbl := b.Table(model.SourceMySQL, "students"); tbl != nil {
				got = len(tbl.Rows)
			}
			if got != tt.wantRows {
				t.Errorf("imported rows = %d, want %d", got, tt.wantRows)
			}
			if n := b.CallCount("POST", "/api/excel/cancelImport"); n != tt.wantCancel {
				t.Errorf("cancel calls = %d, want %d", n, tt.wantCancel)
			}
			if n := b.StagedCount(); n != 0 {
				t.Errorf("staged files left = %d", n)
			}
		})
	}
}

func TestRowsCommand(t *testing.T) {
	tests := []struct {
		name      string
		dashboard bool
		wantPath  string
	}{
		{"excel api", false, "/api/excel/data"},
		{"dashboard", true, "/api/dashboard/mysql-data/成绩 表"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := apitest.New(t)
			b.SeedTable(model.SourceMySQL, "成绩 表", []string{"name"}, []model.Row{{"name": "ann"}, {"name": "bob"}})

			cmd := rowsCmd()
			args := []string{"--api-url", b.URL(), "--log-level", "error", "成绩 表"}
			if tt.dashboard {
				args = append([]string{"--dashboard"}, args...)
			}
			cmd.SetArgs(args)
			var out, errOut bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetErr(&errOut)
			if err := cmd.Execute(); err != nil {
				t.Fatalf("rows: %v", err)
			}

			if !strings.Contains(out.String(), "bob") {
				t.Errorf("rows not printed:\n%s", out.String())
			}
			if !strings.Contains(errOut.String(), "2 rows total") {
				t.Errorf("stderr = %q", errOut.String())
			}
			if n := b.CallCount("GET", tt.wantPath); n != 1 {
				t.Errorf("GET %s calls = %d, want 1", tt.wantPath, n)
			}
		})
	}
}
