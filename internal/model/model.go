package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DataSource selects one of the backing stores exposed by the backend.
type DataSource string

const (
	// SourceMySQL is the relational store.
	SourceMySQL DataSource = "MYSQL"
	// SourceMongoDB is the document store.
	SourceMongoDB DataSource = "MONGODB"
	// SourceBoth imports into both stores. Only valid for import.
	SourceBoth DataSource = "BOTH"
)

// ParseDataSource accepts a data source name in any case.
func ParseDataSource(s string) (DataSource, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MYSQL":
		return SourceMySQL, nil
	case "MONGODB", "MONGO":
		return SourceMongoDB, nil
	case "BOTH":
		return SourceBoth, nil
	}
	return "", fmt.Errorf("unknown data source %q", s)
}

// PathSegment returns the lowercase name used in /api/dashboard paths.
func (d DataSource) PathSegment() string {
	return strings.ToLower(string(d))
}

// Browsable reports whether the source can be listed and edited on its own.
func (d DataSource) Browsable() bool {
	return d == SourceMySQL || d == SourceMongoDB
}

// Row maps a column name to its value. Values may be data-URI image strings.
type Row map[string]any

// Cell is one column of an OrderedRow.
type Cell struct {
	Column string
	Value  any
}

// OrderedRow is a row rebuilt in header order.
type OrderedRow []Cell

// OrderRow rebuilds row in the order given by headers. Columns missing from
// the row are present with a nil value.
func OrderRow(headers []string, row Row) OrderedRow {
	out := make(OrderedRow, 0, len(headers))
	for _, h := range headers {
		out = append(out, Cell{Column: h, Value: row[h]})
	}
	return out
}

// Preview is a staged file parsed by the backend but not yet imported.
type Preview struct {
	Content []Row    `json:"content"`
	Headers []string `json:"headers"`
	Total   int      `json:"total"`
	FileID  string   `json:"fileId"`
}

// TablePage is one page of rows from an imported table.
type TablePage struct {
	Content []Row    `json:"content"`
	Headers []string `json:"headers"`
	Total   int      `json:"total"`
}

// Stats summarizes one data source for the home page.
type Stats struct {
	Count      int      `json:"count"`
	Tables     []string `json:"tables"`
	LastImport Label    `json:"lastImport,omitempty"`
}

// Label is a display string that the backend may send as a JSON string or number.
type Label string

// UnmarshalJSON accepts strings, numbers and null.
func (l *Label) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*l = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = Label(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("label: %w", err)
	}
	*l = Label(n.String())
	return nil
}

// String returns the label text.
func (l Label) String() string { return string(l) }

// Time interprets the label as epoch milliseconds or an RFC 3339 timestamp.
func (l Label) Time() (time.Time, bool) {
	s := strings.TrimSpace(string(l))
	if s == "" {
		return time.Time{}, false
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms), true
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000-0700", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Display formats the label as a local date-time when it is a timestamp.
func (l Label) Display() string {
	if t, ok := l.Time(); ok {
		return t.Local().Format("2006-01-02 15:04:05")
	}
	return string(l)
}

// Question is an OCR-extracted question or document page. A nil ID means the
// record has not been saved yet.
type Question struct {
	ID             *int64 `json:"id,omitempty"`
	QuestionNumber Label  `json:"questionNumber,omitempty"`
	PageNumber     Label  `json:"pageNumber,omitempty"`
	QuestionType   string `json:"questionType,omitempty"`
	Content        string `json:"content"`
	ImageData      string `json:"imageData,omitempty"`
	PaperName      string `json:"paperName,omitempty"`
	PaperID        *int64 `json:"paperId,omitempty"`
	Year           Label  `json:"year,omitempty"`
	UseImageOnly   bool   `json:"useImageOnly,omitempty"`
}

// Saved reports whether the backend has assigned the record an id.
func (q Question) Saved() bool { return q.ID != nil }

// Number returns the question number, or the page number for document pages.
func (q Question) Number() string {
	if q.QuestionNumber != "" {
		return string(q.QuestionNumber)
	}
	return string(q.PageNumber)
}

// Paper groups saved question or page records.
type Paper struct {
	ID            int64      `json:"id"`
	PaperName     string     `json:"paperName"`
	Year          Label      `json:"year,omitempty"`
	QuestionCount int        `json:"questionCount"`
	CreateTime    Label      `json:"createTime,omitempty"`
	Questions     []Question `json:"questions,omitempty"`
}

// SearchResult is the history search response.
type SearchResult struct {
	Papers     []Paper `json:"data"`
	SearchType string  `json:"searchType"`
	MatchCount int     `json:"matchCount"`
	Message    string  `json:"message"`
}

// Search types reported by the backend.
const (
	SearchByPaper    = "paper"
	SearchByQuestion = "question"
)

// QuestionBank names the backend service holding question records.
type QuestionBank string

const (
	// BankOCR is the image OCR service.
	BankOCR QuestionBank = "ocr"
	// BankPDF is the PDF text extraction service.
	BankPDF QuestionBank = "pdf"
)

// ParseQuestionBank validates a bank name.
func ParseQuestionBank(s string) (QuestionBank, error) {
	switch QuestionBank(strings.ToLower(strings.TrimSpace(s))) {
	case BankOCR:
		return BankOCR, nil
	case BankPDF:
		return BankPDF, nil
	}
	return "", fmt.Errorf("unknown question bank %q", s)
}

// ConsoleConfig holds runtime console parameters set via CLI flags.
type ConsoleConfig struct {
	BasePath      string // URL prefix for sub-path deployments
	SecureCookies bool
	PageSize      int
	Bank          QuestionBank
	BackendURL    string // public backend URL used for export redirects
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}
