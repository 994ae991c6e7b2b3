package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/importdesk/importdesk/internal/api"
	"github.com/importdesk/importdesk/internal/apitest"
	appI18n "github.com/importdesk/importdesk/internal/i18n"
	"github.com/importdesk/importdesk/internal/model"
	"github.com/importdesk/importdesk/internal/store"
)

type console struct {
	t       *testing.T
	srv     *httptest.Server
	backend *apitest.Backend
	journal *store.Store
	handler *Handler
}

func newConsole(t *testing.T, cfg model.ConsoleConfig) *console {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n: %v", err)
	}
	b := apitest.New(t)
	client, err := api.New(b.URL(), 5*time.Second)
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	j, err := store.New(store.MemoryPath)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { j.Close() })

	h, err := New(client, j, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := chi.NewRouter()
	r.Use(appI18n.Middleware(false))
	if cfg.BasePath != "" {
		r.Route(cfg.BasePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &console{t: t, srv: srv, backend: b, journal: j, handler: h}
}

// browser is one cookie jar talking to the console.
type browser struct {
	c    *console
	http *http.Client
}

func (c *console) browser() *browser {
	c.t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		c.t.Fatalf("cookiejar: %v", err)
	}
	return &browser{c: c, http: &http.Client{Jar: jar}}
}

func (b *browser) read(resp *http.Response, err error) (int, string) {
	b.c.t.Helper()
	if err != nil {
		b.c.t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		b.c.t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func (b *browser) get(path string) (int, string) {
	b.c.t.Helper()
	return b.read(b.http.Get(b.c.srv.URL + path))
}

// csrf returns the token cookie, loading a page first if there is none.
func (b *browser) csrf() string {
	b.c.t.Helper()
	u, _ := url.Parse(b.c.srv.URL)
	for _, ck := range b.http.Jar.Cookies(u) {
		if ck.Name == csrfCookieName {
			return ck.Value
		}
	}
	b.get(b.c.handler.path("/import"))
	for _, ck := range b.http.Jar.Cookies(u) {
		if ck.Name == csrfCookieName {
			return ck.Value
		}
	}
	b.c.t.Fatal("no csrf cookie")
	return ""
}

func (b *browser) post(path string, form url.Values) (int, string) {
	b.c.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	form.Set("csrf_token", b.csrf())
	return b.read(b.http.PostForm(b.c.srv.URL+path, form))
}

type upload struct {
	field, name string
	data        []byte
}

func (b *browser) postFiles(path string, fields map[string]string, files ...upload) (int, string) {
	b.c.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("csrf_token", b.csrf())
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			b.c.t.Fatalf("create form file: %v", err)
		}
		_, _ = fw.Write(f.data)
	}
	if err := mw.Close(); err != nil {
		b.c.t.Fatalf("close multipart: %v", err)
	}
	return b.read(b.http.Post(b.c.srv.URL+path, mw.FormDataContentType(), &buf))
}

func mustContain(t *testing.T, body string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(body, w) {
			t.Errorf("body does not contain %q", w)
		}
	}
}

func TestIndexRedirectsToHome(t *testing.T) {
	c := newConsole(t, model.ConsoleConfig{})
	c.backend.SeedTable(model.SourceMySQL, "grades", []string{"name"}, []model.Row{{"name": "a"}, {"name": "b"}})

	status, body := c.browser().get("/")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	mustContain(t, body, "<title>Overview", `<div class="count">2</div>`)
}

func TestPostRequiresCSRFToken(t *testing.T) {
	c := newConsole(t, model.ConsoleConfig{})
	b := c.browser()
	b.get("/import")

	status, _ := b.read(b.http.PostForm(c.srv.URL+"/import/confirm", url.Values{}))
	if status != http.StatusForbidden {
		t.Errorf("POST without token: status = %d, want 403", status)
	}
	status, _ = b.read(b.http.PostForm(c.srv.URL+"/import/confirm", url.Values{"csrf_token": {"forged"}}))
	if status != http.StatusForbidden {
		t.Errorf("POST with wrong token: status = %d, want 403", status)
	}
}

func TestImportFlow(t *testing.T) {
	c := newConsole(t, model.ConsoleConfig{})
	b := c.browser()
	wb := apitest.Workbook(t, apitest.StudentHeaders, apitest.StudentRows(12))

	status, body := b.postFiles("/import/preview", map[string]string{"dataSource": "MONGODB"},
		upload{"file", "students.xlsx", wb})
	if status != http.StatusOK {
		t.Fatalf("preview status = %d", status)
	}
	mustContain(t, body, "12 rows staged", "students.xlsx")
	if i, j := strings.Index(body, "<th>no</th>"), strings.Index(body, "<th>score</th>"); i < 0 || j < i {
		t.Error("headers are not rendered in server order")
	}
	if n := c.backend.StagedCount(); n != 1 {
		t.Fatalf("staged = %d, want 1", n)
	}

	_, body = b.get("/import?page=2&size=10")
	mustContain(t, body, "Page 2 of 2")

	_, body = b.post("/import/confirm", nil)
	mustContain(t, body, "Imported into MONGODB.")
	if n := c.backend.StagedCount(); n != 0 {
		t.Errorf("staged after confirm = %d, want 0", n)
	}
	if tbl := c.backend.Table(model.SourceMongoDB, "students"); tbl == nil || len(tbl.Rows) != 12 {
		t.Errorf("imported table = %+v", tbl)
	}
	entries, err := c.journal.List(context.Background(), model.ActionImport, 0)
	if err != nil || len(entries) != 1 {
		t.Errorf("audit entries = %v, %v", entries, err)
	}
}

func TestImportConfirmWithoutPreview(t *testing.T) {
	c := newConsole(t, model.ConsoleConfig{})
	b := c.browser()

	_, body := b.post("/import/confirm", nil)
	mustContain(t, body, "Select a file first.")
	if n := c.backend.CallCount(http.MethodPost, "/api/excel/confirmImport"); n != 0 {
		t.Errorf("confirm calls = %d, want 0", n)
	}
}

func TestManageDeleteAndEdit(t *testing.T) {
	c := newConsole(t, model.ConsoleConfig{})
	c.backend.SeedTable(model.SourceMySQL, "grades", []string{"name", "score"}, []model.Row{
		{"name": "ann", "score": 90}, {"name": "bob", "score": 80}, {"name": "cy", "score": 70},
	})
	b := c.browser()

	_, body := b.get("/manage")
	mustContain(t, body, "<td>bob</td>", `href="/manage/edit/1"`)

	c.backend.ResetCalls()
	_, body = b.post("/manage/delete/1", nil)
	mustContain(t, body, "Deleted.")
	if n := c.backend.CallCount(http.MethodDelete, "/api/dashboard/del/mysql/grades/2"); n != 1 {
		t.Errorf("delete calls = %d, want 1", n)
	}
	if n := c.backend.CallCount(http.MethodGet, "/api/excel/data"); n != 1 {
		t.Errorf("reloads after delete = %d, want 1", n)
	}

	_, body = b.get("/manage/edit/0")
	mustContain(t, body, `name="col.name"`)
	_, body = b.post("/manage/edit", url.Values{"col.name": {"anna"}, "col.score": {"95"}})
	mustContain(t, body, "Saved.", "<td>anna</td>")
	tbl := c.backend.Table(model.SourceMySQL, "grades")
	if tbl == nil || model.CellString(tbl.Rows[0]["name"]) != "anna" {
		t.Errorf("row after edit = %+v", tbl)
	}
}

func TestManageShowsTablesImportedLater(t *testing.T) {
	c := newConsole(t, model.ConsoleConfig{})
	c.backend.SeedTable(model.SourceMySQL, "grades", []string{"name"}, []model.Row{{"name": "a"}})
	b := c.browser()

	_, body := b.get("/manage?table=grades")
	if strings.Contains(body, `value="students"`) {
		t.Fatal("students listed before the import")
	}

	wb := apitest.Workbook(t, apitest.StudentHeaders, apitest.StudentRows(2))
	b.postFiles("/import/preview", map[string]string{"dataSource": "MYSQL"}, upload{"file", "students.xlsx", wb})
	b.post("/import/confirm", nil)

	_, body = b.get("/manage")
	mustContain(t, body, `value="students"`, `value="grades" selected`)
}

func TestManageRedirectDoesNotReloadTwice(t *testing.T) {
	c := newConsole(t, model.ConsoleConfig{})
	c.backend.SeedTable(model.SourceMySQL, "grades", []string{"name"}, []model.Row{{"name": "a"}, {"name": "b"}})
	b := c.browser()
	b.get("/manage")

	c.backend.ResetCalls()
	b.post("/manage/delete/0", nil)
	if n := c.backend.CallCount(http.MethodGet, "/api/excel/tables"); n != 0 {
		t.Errorf("table list reloads after delete = %d, want 0", n)
	}
	if n := c.backend.CallCount(http.MethodGet, "/api/excel/data"); n != 1 {
		t.Errorf("data reloads after delete = %d, want 1", n)
	}
}

func TestManageEditKeepsUntouchedTypes(t *testing.T) {
	c := newConsole(t, model.ConsoleConfig{})
	c.backend.SeedTable(model.SourceMySQL, "grades", []string{"name", "score", "note"}, []model.Row{
		{"name": "ann", "score": 90, "note": nil},
	})
	b := c.browser()
	b.get("/manage")

	_, body := b.get("/manage/edit/0")
	mustContain(t, body, `name="col.score" value="90"`, `name="col.note" value=""`)
	b.post("/manage/edit", url.Values{"col.name": {"anna"}, "col.score": {"90"}, "col.note": {""}})

	row := c.backend.Table(model.SourceMySQL, "grades").Rows[0]
	if row["name"] != "anna" {
		t.Errorf("name = %#v", row["name"])
	}
	if score, ok := row["score"].(float64); !ok || score != 90 {
		t.Errorf("score = %#v, want number 90", row["score"])
	}
	if row["note"] != nil {
		t.Errorf("note = %#v, want nil", row["note"])
	}
}

func TestHistoryReloadsOnNavigation(t *testing.T) {
	c := newConsole(t, model.ConsoleConfig{})
	c.backend.DocPages["a.pdf"] = []model.Question{{PageNumber: "1", Content: "a1"}}
	b := c.browser()
	b.get("/ocr")
	b.get("/doc?tab=history")

	// Another console saves into the backend meanwhile.
	other := c.browser()
	c.backend.Recognized = []model.Question{{QuestionNumber: "1", Content: "q"}}
	other.postFiles("/ocr/upload", nil, upload{"file", "scan.png", []byte("png")})
	other.post("/ocr/save", url.Values{"paperName": {"Finals"}})
	other.postFiles("/doc/process", nil, upload{"files", "a.pdf", []byte("%PDF")})
	other.post("/doc/save", nil)

	_, body := b.get("/ocr")
	mustContain(t, body, "Finals")
	_, body = b.get("/doc?tab=history")
	mustContain(t, body, "/doc/papers/")
}

func TestUnknownPageRendersErrorPage(t *testing.T) {
	c := newConsole(t, model.ConsoleConfig{BasePath: "/desk"})
	status, body := c.browser().get("/desk/nowhere")
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", status)
	}
	for _, want := range []string{"Page not found.", `href="/desk/home" class="active"`, `action="/desk/logout"`} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in error page", want)
		}
	}
}

func TestManageRejectsUnknownSource(t *testing.T) {
	c := newConsole(t, model.ConsoleConfig{})
	status, _ := c.browser().get("/manage?source=BOTH")
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
}

func TestExportRedirectsToBackend(t *testing.T) {
	c := newConsole(t, model.ConsoleConfig{BackendURL: "https://api.example.com/"})
	c.backend.SeedTable(model.SourceMySQL, "grades", []string{"name"}, []model.Row{{"name": "a"}})
	b := c.browser()
	b.get("/manage")

	b.http.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	resp, err := b.http.Get(c.srv.URL + "/manage/export?format=csv")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", resp.StatusCode)
	}
	loc := resp.Header.Get("Location")
	if !strings.HasPrefix(loc, "https://api.example.com/api/excel/exportToCsv?") || !strings.Contains(loc, "tableName=grades") {
		t.Errorf("Location = %q", loc)
	}
}

func TestBankUploadSaveAndSearch(t *testing.T) {
	c := newConsole(t, model.ConsoleConfig{})
	c.backend.Recognized = []model.Question{
		{QuestionNumber: "2", QuestionType: "choice", Content: "second **bold**"},
		{QuestionNumber: "1", QuestionType: "choice", Content: "first unique"},
	}
	b := c.browser()

	_, body := b.postFiles("/ocr/upload", map[string]string{"paperName": "Midterm"},
		upload{"file", "scan.png", []byte("png")})
	mustContain(t, body, "Recognized 2 questions.", "<strong>bold</strong>")
	if strings.Index(body, "first unique") > strings.Index(body, "second") {
		t.Error("results are not sorted by question number")
	}

	_, body = b.get("/ocr/progress")
	mustContain(t, body, `"progress":100`)

	_, body = b.post("/ocr/save", url.Values{"paperName": {""}, "year": {"2024"}})
	mustContain(t, body, "Saved paper")
	papers := c.backend.Papers(model.BankOCR)
	if len(papers) != 1 || papers[0].PaperName != "Midterm" {
		t.Fatalf("saved papers = %+v", papers)
	}

	_, body = b.post("/ocr/search", url.Values{"query": {"unique"}})
	mustContain(t, body, `http-equiv="refresh"`, "/ocr/papers/")
	_, body = b.get("/ocr")
	if strings.Contains(body, `http-equiv="refresh"`) {
		t.Error("auto-open refresh rendered twice")
	}
}

func TestDocProcessAndSave(t *testing.T) {
	c := newConsole(t, model.ConsoleConfig{})
	c.backend.DocPages["a.pdf"] = []model.Question{{PageNumber: "2", Content: "a2"}, {PageNumber: "1", Content: "a1"}}
	c.backend.DocPages["b.pdf"] = []model.Question{{PageNumber: "1", Content: "b1"}}
	b := c.browser()

	_, body := b.postFiles("/doc/process", nil,
		upload{"files", "a.pdf", []byte("%PDF")},
		upload{"files", "b.pdf", []byte("%PDF")},
		upload{"files", "c.pdf", []byte("%PDF")},
	)
	mustContain(t, body, "Processed 2 files into 3 pages.", "c.pdf failed")

	_, body = b.post("/doc/save", nil)
	mustContain(t, body, "Saved 2 documents.")
	if docs := c.backend.Docs(); len(docs) != 2 {
		t.Errorf("saved documents = %d, want 2", len(docs))
	}
}

func TestWorkspacesAreIsolated(t *testing.T) {
	c := newConsole(t, model.ConsoleConfig{})
	wb := apitest.Workbook(t, apitest.StudentHeaders, apitest.StudentRows(3))

	alice, bob := c.browser(), c.browser()
	_, body := alice.postFiles("/import/preview", map[string]string{"dataSource": "MYSQL"},
		upload{"file", "alice.xlsx", wb})
	mustContain(t, body, "alice.xlsx")

	_, body = bob.get("/import")
	if strings.Contains(body, "alice.xlsx") {
		t.Error("a second browser sees the first browser's staged file")
	}
}

func TestLogoutDropsWorkspace(t *testing.T) {
	c := newConsole(t, model.ConsoleConfig{})
	b := c.browser()
	wb := apitest.Workbook(t, apitest.StudentHeaders, apitest.StudentRows(3))
	b.postFiles("/import/preview", map[string]string{"dataSource": "MYSQL"}, upload{"file", "s.xlsx", wb})

	status, _ := b.post("/logout", nil)
	if status != http.StatusOK {
		t.Fatalf("logout status = %d", status)
	}
	if n := c.backend.CallCount(http.MethodPost, "/logout"); n != 1 {
		t.Errorf("backend logout calls = %d, want 1", n)
	}
	_, body := b.get("/import")
	if strings.Contains(body, "s.xlsx") {
		t.Error("staged file survived logout")
	}
}

func TestBasePath(t *testing.T) {
	c := newConsole(t, model.ConsoleConfig{BasePath: "/console"})
	status, body := c.browser().get("/console/")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	mustContain(t, body, `href="/console/import"`, `action="/console/logout"`)
}

func TestWorkspaceExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newWorkspaces(time.Hour, func() *workspace { return &workspace{} })
	s.now = func() time.Time { return now }

	id, ws, err := s.create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := s.get(id); got != ws {
		t.Fatal("fresh workspace not found")
	}

	now = now.Add(59 * time.Minute)
	if s.get(id) == nil {
		t.Fatal("workspace expired before its TTL")
	}

	now = now.Add(61 * time.Minute)
	if s.get(id) != nil {
		t.Error("workspace outlived its TTL")
	}
	if n := s.len(); n != 0 {
		t.Errorf("expired workspace kept, len = %d", n)
	}
}
