package page

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/importdesk/importdesk/internal/model"
)

// Doc page tabs.
const (
	TabUpload  = "upload"
	TabHistory = "history"
)

// DocFile is one document queued for processing.
type DocFile struct {
	Name string
	Body io.Reader
}

// SaveSummary counts the outcome of a multi-paper save.
type SaveSummary struct {
	Saved  int
	Failed int
}

// Doc is the multi-file document page. Uploaded documents become pages
// grouped by paper name and are saved one paper per request.
type Doc struct {
	toasts
	journal
	backend DocBackend

	Records     []model.Question
	ResultsPage int
	PageSize    int
	Processing  bool
	Saving      bool
	processed   atomic.Int32
	total       atomic.Int32

	Tab       string
	Papers    []model.Paper
	Current   *model.Paper
	Detail    int
	Query     string
	Searching bool
}

// NewDoc creates the document page view-model.
func NewDoc(b DocBackend, j Journal, pageSize int) *Doc {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &Doc{
		journal:     journal{j},
		backend:     b,
		ResultsPage: 1,
		Detail:      1,
		PageSize:    pageSize,
		Tab:         TabUpload,
	}
}

// Progress is processed files over total in percent. It may be read while
// Process runs.
func (d *Doc) Progress() int {
	total := d.total.Load()
	if total == 0 {
		return 0
	}
	return int(d.processed.Load() * 100 / total)
}

// Process uploads files one after another. A failing file is reported and
// skipped. Pages of each document are tagged with its paper name and sorted
// by page number.
func (d *Doc) Process(ctx context.Context, files []DocFile) error {
	if len(files) == 0 {
		d.push(LevelWarning, "ToastSelectFileFirst", nil)
		return ErrNoStagedFile
	}
	d.Processing = true
	defer func() { d.Processing = false }()
	d.processed.Store(0)
	d.total.Store(int32(len(files)))

	var pages, ok int
	for _, f := range files {
		up, err := d.backend.UploadDoc(ctx, f.Name, f.Body)
		d.processed.Add(1)
		if err != nil {
			slog.Error("process document", "file", f.Name, "error", err)
			d.push(LevelError, "ToastDocFailed", map[string]any{"File": f.Name, "Error": err.Error()})
			continue
		}
		name := up.PaperName
		if name == "" {
			name = strings.TrimSpace(f.Name)
		}
		qs := up.Questions
		for i := range qs {
			qs[i].PaperName = name
		}
		SortByNumber(qs)
		d.Records = append(d.Records, qs...)
		pages += len(qs)
		ok++
	}
	if ok == 0 {
		return fmt.Errorf("no document processed")
	}
	d.ResultsPage = 1
	d.push(LevelSuccess, "ToastDocsProcessed", map[string]any{"Files": ok, "Count": pages})
	return nil
}

// VisibleRecords is the current page of unsaved pages.
func (d *Doc) VisibleRecords() []model.Question {
	return Paginate(d.Records, d.ResultsPage, d.PageSize)
}

// VisibleDetail is the current page of the opened document.
func (d *Doc) VisibleDetail() []model.Question {
	if d.Current == nil {
		return nil
	}
	return Paginate(d.Current.Questions, d.Detail, d.PageSize)
}

// EditLocal replaces an unsaved page.
func (d *Doc) EditLocal(index int, q model.Question) error {
	if index < 0 || index >= len(d.Records) {
		return ErrBadRange
	}
	q.ID = d.Records[index].ID
	d.Records[index] = q
	return nil
}

// DeleteLocal drops an unsaved page.
func (d *Doc) DeleteLocal(index int) error {
	if index < 0 || index >= len(d.Records) {
		return ErrBadRange
	}
	d.Records = slices.Delete(d.Records, index, index+1)
	if last := PageCount(len(d.Records), d.PageSize); d.ResultsPage > last {
		d.ResultsPage = last
	}
	return nil
}

type paperGroup struct {
	name  string
	pages []model.Question
	id    int64
	err   error
}

func groupByPaper(records []model.Question) []*paperGroup {
	var groups []*paperGroup
	index := map[string]*paperGroup{}
	for _, q := range records {
		g, ok := index[q.PaperName]
		if !ok {
			g = &paperGroup{name: q.PaperName}
			index[q.PaperName] = g
			groups = append(groups, g)
		}
		g.pages = append(g.pages, q)
	}
	return groups
}

// Save sends one request per distinct paper name concurrently. Papers that
// were saved are removed from the pending records; the rest stay for
// another attempt.
func (d *Doc) Save(ctx context.Context) (SaveSummary, error) {
	if len(d.Records) == 0 {
		d.push(LevelWarning, "ToastNothingToSave", nil)
		return SaveSummary{}, ErrNothingToSave
	}
	d.Saving = true
	defer func() { d.Saving = false }()

	groups := groupByPaper(d.Records)
	var wg sync.WaitGroup
	for _, g := range groups {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.id, g.err = d.backend.SaveDoc(ctx, g.name, g.pages)
		}()
	}
	wg.Wait()

	var (
		sum   SaveSummary
		errs  []error
		saved = map[string]bool{}
	)
	for _, g := range groups {
		if g.err != nil {
			sum.Failed++
			errs = append(errs, g.err)
			slog.Error("save document", "paper", g.name, "error", g.err)
			continue
		}
		sum.Saved++
		saved[g.name] = true
		d.record(ctx, model.ActionSavePaper, "doc/"+strconv.FormatInt(g.id, 10))
	}
	err := errors.Join(errs...)

	switch {
	case sum.Failed == 0:
		d.push(LevelSuccess, "ToastDocsSaved", map[string]any{"Count": sum.Saved})
		d.Records = nil
		d.ResultsPage = 1
		d.Tab = TabHistory
	case sum.Saved == 0:
		d.push(LevelError, "ToastDocsSaveFailed", map[string]any{"Count": sum.Failed, "Error": err.Error()})
		return sum, err
	default:
		d.push(LevelWarning, "ToastDocsPartial", map[string]any{"Saved": sum.Saved, "Failed": sum.Failed})
		d.Records = slices.DeleteFunc(d.Records, func(q model.Question) bool { return saved[q.PaperName] })
		d.ResultsPage = 1
	}
	if lerr := d.LoadPapers(ctx); lerr != nil {
		slog.Warn("reload documents after save", "error", lerr)
	}
	return sum, err
}

// LoadPapers reloads the document history and leaves search mode.
func (d *Doc) LoadPapers(ctx context.Context) error {
	papers, err := d.backend.DocPapers(ctx)
	if err != nil {
		slog.Error("load documents", "error", err)
		d.fail("ToastLoadPapersFailed", err)
		return err
	}
	d.Papers = papers
	d.Query = ""
	d.Searching = false
	return nil
}

// ViewPaper opens a saved document.
func (d *Doc) ViewPaper(ctx context.Context, id int64) error {
	p, err := d.backend.DocPaper(ctx, id)
	if err != nil {
		slog.Error("view document", "id", id, "error", err)
		d.fail("ToastLoadPaperFailed", err)
		return err
	}
	SortByNumber(p.Questions)
	d.Current = p
	d.Detail = 1
	d.Tab = TabHistory
	return nil
}

// ClosePaper returns to the document list.
func (d *Doc) ClosePaper() {
	d.Current = nil
	d.Detail = 1
}

// DeletePaper removes a document and reloads the history.
func (d *Doc) DeletePaper(ctx context.Context, id int64) error {
	if err := d.backend.DeleteDoc(ctx, id); err != nil {
		slog.Error("delete document", "id", id, "error", err)
		d.fail("ToastDeleteFailed", err)
		return err
	}
	d.push(LevelSuccess, "ToastDeleted", nil)
	d.record(ctx, model.ActionDeletePaper, "doc/"+strconv.FormatInt(id, 10))
	if d.Current != nil && d.Current.ID == id {
		d.ClosePaper()
	}
	return d.LoadPapers(ctx)
}

// UpdateSaved sends an edited saved page and patches the opened document.
func (d *Doc) UpdateSaved(ctx context.Context, q model.Question) error {
	if !q.Saved() {
		d.fail("ToastMissingID", model.ErrMissingID)
		return model.ErrMissingID
	}
	if err := d.backend.UpdateDocPage(ctx, q); err != nil {
		slog.Error("update page", "id", *q.ID, "error", err)
		d.fail("ToastUpdateFailed", err)
		return err
	}
	if d.Current != nil {
		for i := range d.Current.Questions {
			if id := d.Current.Questions[i].ID; id != nil && *id == *q.ID {
				d.Current.Questions[i] = q
			}
		}
	}
	d.push(LevelSuccess, "ToastUpdated", nil)
	d.record(ctx, model.ActionUpdateQuestion, "doc/"+strconv.FormatInt(*q.ID, 10))
	return nil
}

// DeleteSaved removes a saved page and patches the document's page count in
// the history.
func (d *Doc) DeleteSaved(ctx context.Context, id int64) error {
	if err := d.backend.DeleteDocPage(ctx, id); err != nil {
		slog.Error("delete page", "id", id, "error", err)
		d.fail("ToastDeleteFailed", err)
		return err
	}
	if d.Current != nil {
		d.Current.Questions = slices.DeleteFunc(d.Current.Questions, func(q model.Question) bool {
			return q.ID != nil && *q.ID == id
		})
		d.Current.QuestionCount = len(d.Current.Questions)
		for i := range d.Papers {
			if d.Papers[i].ID == d.Current.ID {
				d.Papers[i].QuestionCount = d.Current.QuestionCount
			}
		}
		if last := PageCount(len(d.Current.Questions), d.PageSize); d.Detail > last {
			d.Detail = last
		}
	}
	d.push(LevelSuccess, "ToastDeleted", nil)
	d.record(ctx, model.ActionDeleteQuestion, "doc/"+strconv.FormatInt(id, 10))
	return nil
}

// Search replaces the history with matching documents. An empty query
// behaves like ClearSearch.
func (d *Doc) Search(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return d.ClearSearch(ctx)
	}
	papers, err := d.backend.SearchDocs(ctx, query)
	if err != nil {
		slog.Error("search documents", "query", query, "error", err)
		d.fail("ToastSearchFailed", err)
		return err
	}
	d.Papers = papers
	d.Query = query
	d.Searching = true
	d.Tab = TabHistory
	if len(papers) == 0 {
		d.push(LevelInfo, "ToastNoMatch", map[string]any{"Query": query})
	}
	return nil
}

// ClearSearch leaves search mode and reloads the full history.
func (d *Doc) ClearSearch(ctx context.Context) error {
	return d.LoadPapers(ctx)
}
