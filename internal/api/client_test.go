package api_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/importdesk/importdesk/internal/api"
	"github.com/importdesk/importdesk/internal/apitest"
	"github.com/importdesk/importdesk/internal/model"
)

func newTestClient(t *testing.T) (*api.Client, *apitest.Backend) {
	t.Helper()
	b := apitest.New(t)
	c, err := api.New(b.URL(), 5*time.Second)
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	return c, b
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, u := range []string{"ftp://x", "://bad", "localhost:8080"} {
		if _, err := api.New(u, time.Second); err == nil {
			t.Errorf("api.New(%q) should fail", u)
		}
	}
}

func TestPreviewConfirmFlow(t *testing.T) {
	c, b := newTestClient(t)
	ctx := context.Background()

	data := apitest.Workbook(t, []string{"zeta", "alpha"}, [][]any{{"z1", "a1"}, {"z2", "a2"}})
	p, err := c.Preview(ctx, "grades.xlsx", bytes.NewReader(data), model.SourceMySQL)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if p.FileID == "" {
		t.Fatal("expected a file id")
	}
	if p.Total != 2 || len(p.Content) != 2 {
		t.Fatalf("expected 2 rows, got total=%d content=%d", p.Total, len(p.Content))
	}
	if strings.Join(p.Headers, ",") != "zeta,alpha" {
		t.Errorf("headers = %v, want server order [zeta alpha]", p.Headers)
	}

	page, err := c.PreviewPage(ctx, p.FileID, 2, 1)
	if err != nil {
		t.Fatalf("PreviewPage: %v", err)
	}
	if len(page.Content) != 1 || page.Content[0]["zeta"] != "z2" {
		t.Errorf("page 2 = %+v", page.Content)
	}

	if err := c.ConfirmImport(ctx, p.FileID, model.SourceMySQL); err != nil {
		t.Fatalf("ConfirmImport: %v", err)
	}
	if b.StagedCount() != 0 {
		t.Errorf("staged = %d after confirm", b.StagedCount())
	}

	tables, err := c.Tables(ctx, model.SourceMySQL)
	if err != nil {
		t.Fatalf("Tables: %v", err)
	}
	if len(tables) != 1 || tables[0] != "grades" {
		t.Fatalf("tables = %v", tables)
	}

	// A second confirm of the same file fails.
	err = c.ConfirmImport(ctx, p.FileID, model.SourceMySQL)
	if api.StatusOf(err) != http.StatusInternalServerError {
		t.Errorf("expected 500 on second confirm, got %v", err)
	}
}

func TestRowUpdateAndDelete(t *testing.T) {
	c, b := newTestClient(t)
	ctx := context.Background()
	b.SeedTable(model.SourceMySQL, "people", []string{"name"}, []model.Row{{"name": "ann"}, {"name": "bob"}})

	page, err := c.TableData(ctx, model.SourceMySQL, "people", 1, 10)
	if err != nil {
		t.Fatalf("TableData: %v", err)
	}
	if page.Total != 2 || page.Headers[0] != model.RelationalIDColumn {
		t.Fatalf("page = %+v", page)
	}

	id, err := model.ResolveRowID(model.SourceMySQL, page.Content[1])
	if err != nil {
		t.Fatalf("ResolveRowID: %v", err)
	}
	if err := c.UpdateRow(ctx, model.SourceMySQL, "people", id.Value, model.Row{"name": "bobby"}); err != nil {
		t.Fatalf("UpdateRow: %v", err)
	}
	if got := b.Table(model.SourceMySQL, "people").Rows[1]["name"]; got != "bobby" {
		t.Errorf("name = %v, want bobby", got)
	}

	if err := c.DeleteRow(ctx, model.SourceMySQL, "people", id.Value); err != nil {
		t.Fatalf("DeleteRow: %v", err)
	}
	if n := len(b.Table(model.SourceMySQL, "people").Rows); n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
	if n := b.CallCount(http.MethodDelete, "/api/dashboard/del/mysql/people/"+id.Value); n != 1 {
		t.Errorf("delete calls = %d", n)
	}

	err = c.DeleteRow(ctx, model.SourceMySQL, "people", "999")
	if api.StatusOf(err) != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestRowPathsWithUnsafeSegments(t *testing.T) {
	c, b := newTestClient(t)
	ctx := context.Background()
	const table = "学生 表"
	b.SeedTable(model.SourceMySQL, table, []string{"name"}, []model.Row{{"name": "ann"}, {"name": "bob"}})

	page, err := c.SourceData(ctx, model.SourceMySQL, table, 1, 10)
	if err != nil {
		t.Fatalf("SourceData: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("total = %d, want 2", page.Total)
	}
	if n := b.CallCount(http.MethodGet, "/api/dashboard/mysql-data/"+table); n != 1 {
		t.Errorf("data calls on decoded path = %d, want 1", n)
	}

	if err := c.UpdateRow(ctx, model.SourceMySQL, table, "1", model.Row{"name": "anna"}); err != nil {
		t.Fatalf("UpdateRow: %v", err)
	}
	if got := b.Table(model.SourceMySQL, table).Rows[0]["name"]; got != "anna" {
		t.Errorf("name = %v, want anna", got)
	}
	if err := c.DeleteRow(ctx, model.SourceMySQL, table, "2"); err != nil {
		t.Fatalf("DeleteRow: %v", err)
	}
	if n := len(b.Table(model.SourceMySQL, table).Rows); n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}

	// The row does not exist, but the request must arrive with the id intact.
	_ = c.DeleteRow(ctx, model.SourceMySQL, table, "a b")
	if n := b.CallCount(http.MethodDelete, "/api/dashboard/del/mysql/"+table+"/a b"); n != 1 {
		t.Errorf("delete calls on decoded path = %d, want 1; calls: %+v", n, b.Calls())
	}
}

func TestURLKeepsBasePath(t *testing.T) {
	c, err := api.New("http://backend.test/api%20root/", time.Second)
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	got := c.URL("/api/dashboard/del/mysql/"+url.PathEscape("a%b"), nil)
	want := "http://backend.test/api%20root/api/dashboard/del/mysql/a%25b"
	if got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}
}

func TestEnvelopeFailureBecomesAPIError(t *testing.T) {
	c, _ := newTestClient(t)
	_, err := c.Paper(context.Background(), model.BankOCR, 42)
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Message != "paper not found" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestInjectedFailure(t *testing.T) {
	c, b := newTestClient(t)
	b.Fail(http.MethodGet, "/api/dashboard/mysql-stats", http.StatusServiceUnavailable)

	_, err := c.Stats(context.Background(), model.SourceMySQL)
	if api.StatusOf(err) != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %v", err)
	}
	if !strings.Contains(err.Error(), "injected failure") {
		t.Errorf("error should carry backend message: %v", err)
	}
}

func TestQuestionBankRoundTrip(t *testing.T) {
	c, b := newTestClient(t)
	ctx := context.Background()
	b.Recognized = []model.Question{{QuestionNumber: "1", Content: "What is 2+2?"}}

	rec, err := c.Recognize(ctx, model.BankPDF, "exam.pdf", strings.NewReader("%PDF"), "")
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(rec.Questions) != 1 {
		t.Fatalf("questions = %d", len(rec.Questions))
	}

	id, err := c.SavePaper(ctx, model.BankPDF, api.SaveRequest{PaperName: "Mock", Year: "2024", Questions: rec.Questions})
	if err != nil {
		t.Fatalf("SavePaper: %v", err)
	}
	paper, err := c.Paper(ctx, model.BankPDF, id)
	if err != nil {
		t.Fatalf("Paper: %v", err)
	}
	if paper.PaperName != "Mock" || len(paper.Questions) != 1 || !paper.Questions[0].Saved() {
		t.Fatalf("paper = %+v", paper)
	}

	q := paper.Questions[0]
	q.Content = "What is 3+3?"
	if err := c.UpdateQuestion(ctx, model.BankPDF, q); err != nil {
		t.Fatalf("UpdateQuestion: %v", err)
	}
	if got := b.Papers(model.BankPDF)[0].Questions[0].Content; got != "What is 3+3?" {
		t.Errorf("content = %q", got)
	}

	if err := c.UpdateQuestion(ctx, model.BankPDF, model.Question{Content: "x"}); !errors.Is(err, model.ErrMissingID) {
		t.Errorf("expected ErrMissingID, got %v", err)
	}
	if len(b.Papers(model.BankOCR)) != 0 {
		t.Error("pdf save should not touch the ocr bank")
	}
}

func TestDownloadExport(t *testing.T) {
	c, b := newTestClient(t)
	b.SeedTable(model.SourceMongoDB, "books", []string{"title"}, []model.Row{{"title": "Go"}})

	var buf bytes.Buffer
	n, err := c.Download(context.Background(), model.SourceMongoDB, "books", api.ExportCSV, &buf)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if n == 0 || !strings.HasPrefix(buf.String(), "_id,title") {
		t.Errorf("csv = %q", buf.String())
	}

	u := c.ExportURL(model.SourceMongoDB, "books", api.ExportExcel)
	if !strings.HasPrefix(u, b.URL()+"/api/excel/exportToExcel?") || !strings.Contains(u, "tableName=books") {
		t.Errorf("export URL = %q", u)
	}
}
