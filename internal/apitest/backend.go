// Package apitest runs an in-memory stand-in for the import backend so the
// client and the console can be tested end to end.
package apitest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/importdesk/importdesk/internal/model"
)

// Call is one request received by the backend.
type Call struct {
	Method string
	Path   string
	Query  string
}

// Table is an imported table held by the backend.
type Table struct {
	Headers []string
	Rows    []model.Row
}

type staged struct {
	name    string
	headers []string
	rows    []model.Row
}

// Backend is a fake import backend served over httptest.
type Backend struct {
	Server *httptest.Server

	mu         sync.Mutex
	calls      []Call
	failures   map[string]int
	staged     map[string]*staged
	tables     map[model.DataSource]map[string]*Table
	lastImport map[model.DataSource]time.Time
	nextFile   int
	nextRow    int64
	nextOID    uint32

	// Recognized is returned by the OCR and PDF upload endpoints.
	Recognized []model.Question
	// DocPages maps an uploaded document name to the pages extracted from it.
	DocPages map[string][]model.Question

	banks   map[model.QuestionBank]*paperStore
	docs    *paperStore
	nextQID int64
}

// New starts a backend that is closed when the test ends.
func New(t *testing.T) *Backend {
	t.Helper()
	gin.SetMode(gin.TestMode)

	b := &Backend{
		failures:   make(map[string]int),
		staged:     make(map[string]*staged),
		tables:     map[model.DataSource]map[string]*Table{model.SourceMySQL: {}, model.SourceMongoDB: {}},
		lastImport: make(map[model.DataSource]time.Time),
		DocPages:   make(map[string][]model.Question),
		banks: map[model.QuestionBank]*paperStore{
			model.BankOCR: newPaperStore(),
			model.BankPDF: newPaperStore(),
		},
		docs: newPaperStore(),
	}
	b.Server = httptest.NewServer(b.router())
	t.Cleanup(b.Server.Close)
	return b
}

// URL is the backend base URL.
func (b *Backend) URL() string { return b.Server.URL }

func (b *Backend) router() *gin.Engine {
	r := gin.New()
	r.Use(b.record)

	r.POST("/logout", func(c *gin.Context) { c.Status(http.StatusOK) })

	excel := r.Group("/api/excel")
	{
		excel.POST("/preview", b.preview)
		excel.GET("/previewData", b.previewData)
		excel.POST("/confirmImport", b.confirmImport)
		excel.POST("/cancelImport", b.cancelImport)
		excel.GET("/tables", b.listTables)
		excel.GET("/data", b.tableData)
		excel.GET("/exportToExcel", b.exportExcel)
		excel.GET("/exportToCsv", b.exportCSV)
	}

	dash := r.Group("/api/dashboard")
	{
		dash.GET("/mysql-stats", b.stats(model.SourceMySQL))
		dash.GET("/mongodb-stats", b.stats(model.SourceMongoDB))
		dash.GET("/mysql-data/:table", b.sourceData(model.SourceMySQL))
		dash.GET("/mongodb-data/:table", b.sourceData(model.SourceMongoDB))
		dash.PUT("/upd/:source/:table/:id", b.updateRow)
		dash.DELETE("/del/:source/:table/:id", b.deleteRow)
	}

	for _, bank := range []model.QuestionBank{model.BankOCR, model.BankPDF} {
		g := r.Group("/api/" + string(bank))
		b.bankRoutes(g, bank)
	}
	r.GET("/api/ocr/search", b.searchBank(model.BankOCR))

	doc := r.Group("/api/doc")
	{
		doc.POST("/upload", b.docUpload)
		doc.POST("/save", b.docSave)
		doc.GET("/papers", b.docPapers)
		doc.GET("/paper/:id", b.docPaper)
		doc.POST("/updateQuestion", b.docUpdate)
		doc.POST("/deleteQuestion", b.docDeleteQuestion)
		doc.POST("/deletePaper", b.docDeletePaper)
		doc.GET("/search", b.docSearch)
	}
	return r
}

// record logs every call and applies injected failures.
func (b *Backend) record(c *gin.Context) {
	b.mu.Lock()
	b.calls = append(b.calls, Call{Method: c.Request.Method, Path: c.Request.URL.Path, Query: c.Request.URL.RawQuery})
	status, fail := b.failures[c.Request.Method+" "+c.Request.URL.Path]
	b.mu.Unlock()

	if fail {
		c.AbortWithStatusJSON(status, gin.H{"error": "injected failure"})
		return
	}
	c.Next()
}

// Fail makes every request matching method and path return status.
func (b *Backend) Fail(method, path string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[method+" "+path] = status
}

// Recover removes an injected failure.
func (b *Backend) Recover(method, path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failures, method+" "+path)
}

// Calls returns a copy of the received requests.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// CallCount counts requests with the given method and path.
func (b *Backend) CallCount(method, path string) int {
	n := 0
	for _, c := range b.Calls() {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

// CallsWithPrefix counts requests whose path starts with prefix.
func (b *Backend) CallsWithPrefix(prefix string) int {
	n := 0
	for _, c := range b.Calls() {
		if strings.HasPrefix(c.Path, prefix) {
			n++
		}
	}
	return n
}

// ResetCalls clears the request log.
func (b *Backend) ResetCalls() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
}

// StagedCount is the number of previewed but unconfirmed files.
func (b *Backend) StagedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.staged)
}

// SeedTable stores rows directly, assigning identifiers the way an import would.
func (b *Backend) SeedTable(source model.DataSource, name string, headers []string, rows []model.Row) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.storeRows(source, name, headers, rows)
}

// Table returns a copy of a stored table, or nil.
func (b *Backend) Table(source model.DataSource, name string) *Table {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tables[source][name]
	if !ok {
		return nil
	}
	cp := &Table{Headers: append([]string(nil), t.Headers...)}
	for _, r := range t.Rows {
		row := make(model.Row, len(r))
		for k, v := range r {
			row[k] = v
		}
		cp.Rows = append(cp.Rows, row)
	}
	return cp
}

// storeRows appends rows to a table. Callers hold b.mu.
func (b *Backend) storeRows(source model.DataSource, name string, headers []string, rows []model.Row) {
	t, ok := b.tables[source][name]
	if !ok {
		idCol := model.RelationalIDColumn
		if source == model.SourceMongoDB {
			idCol = model.DocumentIDColumn
		}
		t = &Table{Headers: append([]string{idCol}, headers...)}
		b.tables[source][name] = t
	}
	for _, r := range rows {
		row := make(model.Row, len(r)+1)
		for k, v := range r {
			row[k] = v
		}
		if source == model.SourceMongoDB {
			b.nextOID++
			row[model.DocumentIDColumn] = map[string]any{"$oid": fmt.Sprintf("65a1b2c3d4e5f6a7%08x", b.nextOID)}
		} else {
			b.nextRow++
			row[model.RelationalIDColumn] = b.nextRow
		}
		t.Rows = append(t.Rows, row)
	}
	b.lastImport[source] = time.Now()
}

func (b *Backend) tableNames(source model.DataSource) []string {
	names := make([]string, 0, len(b.tables[source]))
	for n := range b.tables[source] {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func pageBounds(total, page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return start, end
}
