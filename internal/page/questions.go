package page

import (
	"cmp"
	"context"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/importdesk/importdesk/internal/api"
	"github.com/importdesk/importdesk/internal/model"
)

const (
	// AutoOpenDelay is how long a single question match waits before its
	// paper is opened.
	AutoOpenDelay = time.Second

	progressTick  = 300 * time.Millisecond
	progressStep  = 10
	progressLimit = 90
)

// NumberKey extracts the digits of a question or page number. Strings
// without digits sort as 0.
func NumberKey(s string) int {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

// SortByNumber orders records by NumberKey, keeping the input order of
// equal keys.
func SortByNumber(qs []model.Question) {
	slices.SortStableFunc(qs, func(a, b model.Question) int {
		return cmp.Compare(NumberKey(a.Number()), NumberKey(b.Number()))
	})
}

// BatchSpec describes a batch edit. Empty fields are left alone. From and
// To are 1-indexed and inclusive; both zero means every record.
type BatchSpec struct {
	From, To     int
	QuestionType string
	PaperName    string
	Year         string
	UseImageOnly *bool
}

// SaveForm carries the optional paper fields typed by the user.
type SaveForm struct {
	PaperName string
	Year      string
}

// Bank is the question bank page: recognition results waiting to be saved,
// the saved paper history and one opened paper.
type Bank struct {
	toasts
	journal
	backend BankBackend
	now     func() time.Time

	Kind model.QuestionBank

	Results     []model.Question
	PaperName   string
	ResultsPage int
	PageSize    int
	Uploading   bool
	Saving      bool
	progress    atomic.Int32

	Papers   []model.Paper
	Current  *model.Paper
	Detail   int
	Query    string
	Search   *model.SearchResult
	AutoOpen *int64
}

// NewBank creates the question bank view-model for kind.
func NewBank(b BankBackend, j Journal, kind model.QuestionBank, pageSize int) *Bank {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &Bank{
		journal:     journal{j},
		backend:     b,
		now:         time.Now,
		Kind:        kind,
		ResultsPage: 1,
		Detail:      1,
		PageSize:    pageSize,
	}
}

// Progress is the simulated upload progress in percent. It may be read
// while an upload is in flight.
func (b *Bank) Progress() int {
	return int(b.progress.Load())
}

// Upload sends a file for recognition. Progress advances on a timer up to
// 90% while waiting and jumps to 100% when the response arrives.
func (b *Bank) Upload(ctx context.Context, name string, r io.Reader, paperName string) error {
	b.Uploading = true
	b.progress.Store(0)
	stop := make(chan struct{})
	done := make(chan struct{})
	go b.tick(stop, done)

	rec, err := b.backend.Recognize(ctx, b.Kind, name, r, paperName)
	close(stop)
	<-done
	b.Uploading = false
	if err != nil {
		b.progress.Store(0)
		slog.Error("recognize failed", "bank", b.Kind, "file", name, "error", err)
		b.fail("ToastRecognizeFailed", err)
		return err
	}
	b.progress.Store(100)

	qs := rec.Questions
	for i := range qs {
		if qs[i].PaperName == "" && paperName != "" {
			qs[i].PaperName = paperName
		}
	}
	SortByNumber(qs)
	b.Results = qs
	b.ResultsPage = 1
	b.PaperName = cmp.Or(paperName, rec.PaperName)
	b.push(LevelSuccess, "ToastRecognized", map[string]any{"Count": len(qs)})
	slog.Info("file recognized", "bank", b.Kind, "file", name, "questions", len(qs))
	return nil
}

func (b *Bank) tick(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	t := time.NewTicker(progressTick)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if v := b.progress.Load(); v < progressLimit {
				b.progress.Store(min(v+progressStep, progressLimit))
			}
		}
	}
}

// VisibleResults is the current page of unsaved results.
func (b *Bank) VisibleResults() []model.Question {
	return Paginate(b.Results, b.ResultsPage, b.PageSize)
}

// VisibleDetail is the current page of the opened paper's questions.
func (b *Bank) VisibleDetail() []model.Question {
	if b.Current == nil {
		return nil
	}
	return Paginate(b.Current.Questions, b.Detail, b.PageSize)
}

// EditLocal replaces an unsaved result.
func (b *Bank) EditLocal(index int, q model.Question) error {
	if index < 0 || index >= len(b.Results) {
		return ErrBadRange
	}
	q.ID = b.Results[index].ID
	b.Results[index] = q
	return nil
}

// DeleteLocal drops an unsaved result.
func (b *Bank) DeleteLocal(index int) error {
	if index < 0 || index >= len(b.Results) {
		return ErrBadRange
	}
	b.Results = slices.Delete(b.Results, index, index+1)
	if last := PageCount(len(b.Results), b.PageSize); b.ResultsPage > last {
		b.ResultsPage = last
	}
	return nil
}

// BatchEdit applies the non-empty fields of spec to the selected records
// and returns the number of field assignments made.
func (b *Bank) BatchEdit(spec BatchSpec) (int, error) {
	from, to := 1, len(b.Results)
	if spec.From != 0 || spec.To != 0 {
		from, to = spec.From, spec.To
	}
	if len(b.Results) == 0 || from < 1 || to > len(b.Results) || from > to {
		b.push(LevelWarning, "ToastBadRange", map[string]any{"Count": len(b.Results)})
		return 0, ErrBadRange
	}

	updated := 0
	for i := from - 1; i < to; i++ {
		q := &b.Results[i]
		if spec.QuestionType != "" {
			q.QuestionType = spec.QuestionType
			updated++
		}
		if spec.PaperName != "" {
			q.PaperName = spec.PaperName
			updated++
		}
		if spec.Year != "" {
			q.Year = model.Label(spec.Year)
			updated++
		}
		if spec.UseImageOnly != nil {
			q.UseImageOnly = *spec.UseImageOnly
			updated++
		}
	}
	b.push(LevelSuccess, "ToastBatchUpdated", map[string]any{"Count": updated})
	return updated, nil
}

// resolvePaper picks the paper name and year: the form first, then the
// first record, then a generated default.
func (b *Bank) resolvePaper(form SaveForm) (name, year string) {
	now := b.now()
	first := b.Results[0]
	name = cmp.Or(strings.TrimSpace(form.PaperName), first.PaperName, b.PaperName,
		"Paper-"+now.Format("20060102-150405"))
	year = cmp.Or(strings.TrimSpace(form.Year), string(first.Year), strconv.Itoa(now.Year()))
	return name, year
}

// Save stores every result as one paper.
func (b *Bank) Save(ctx context.Context, form SaveForm) error {
	if len(b.Results) == 0 {
		b.push(LevelWarning, "ToastNothingToSave", nil)
		return ErrNothingToSave
	}
	name, year := b.resolvePaper(form)
	qs := make([]model.Question, len(b.Results))
	for i, q := range b.Results {
		q.PaperName = name
		q.Year = model.Label(year)
		qs[i] = q
	}

	b.Saving = true
	defer func() { b.Saving = false }()

	id, err := b.backend.SavePaper(ctx, b.Kind, api.SaveRequest{PaperName: name, Year: year, Questions: qs})
	if err != nil {
		slog.Error("save paper", "bank", b.Kind, "paper", name, "error", err)
		b.fail("ToastSaveFailed", err)
		return err
	}
	b.push(LevelSuccess, "ToastPaperSaved", map[string]any{"Name": name, "Count": len(qs)})
	b.record(ctx, model.ActionSavePaper, string(b.Kind)+"/"+strconv.FormatInt(id, 10))
	b.Results = nil
	b.ResultsPage = 1
	b.PaperName = ""
	return b.LoadPapers(ctx)
}

// LoadPapers reloads the paper history and clears any search.
func (b *Bank) LoadPapers(ctx context.Context) error {
	papers, err := b.backend.Papers(ctx, b.Kind)
	if err != nil {
		slog.Error("load papers", "bank", b.Kind, "error", err)
		b.fail("ToastLoadPapersFailed", err)
		return err
	}
	b.Papers = papers
	b.Query = ""
	b.Search = nil
	return nil
}

// OpenPaper loads a paper with its questions.
func (b *Bank) OpenPaper(ctx context.Context, id int64) error {
	b.AutoOpen = nil
	p, err := b.backend.Paper(ctx, b.Kind, id)
	if err != nil {
		slog.Error("open paper", "bank", b.Kind, "id", id, "error", err)
		b.fail("ToastLoadPaperFailed", err)
		return err
	}
	SortByNumber(p.Questions)
	b.Current = p
	b.Detail = 1
	return nil
}

// ClosePaper returns to the history list.
func (b *Bank) ClosePaper() {
	b.Current = nil
	b.Detail = 1
}

// DeletePaper removes a paper and reloads the history.
func (b *Bank) DeletePaper(ctx context.Context, id int64) error {
	if err := b.backend.DeletePaper(ctx, b.Kind, id); err != nil {
		slog.Error("delete paper", "bank", b.Kind, "id", id, "error", err)
		b.fail("ToastDeleteFailed", err)
		return err
	}
	b.push(LevelSuccess, "ToastDeleted", nil)
	b.record(ctx, model.ActionDeletePaper, string(b.Kind)+"/"+strconv.FormatInt(id, 10))
	if b.Current != nil && b.Current.ID == id {
		b.ClosePaper()
	}
	return b.LoadPapers(ctx)
}

// UpdateSaved sends an edited saved question and patches the opened paper.
func (b *Bank) UpdateSaved(ctx context.Context, q model.Question) error {
	if !q.Saved() {
		b.fail("ToastMissingID", model.ErrMissingID)
		return model.ErrMissingID
	}
	if err := b.backend.UpdateQuestion(ctx, b.Kind, q); err != nil {
		slog.Error("update question", "bank", b.Kind, "id", *q.ID, "error", err)
		b.fail("ToastUpdateFailed", err)
		return err
	}
	if b.Current != nil {
		for i := range b.Current.Questions {
			if id := b.Current.Questions[i].ID; id != nil && *id == *q.ID {
				b.Current.Questions[i] = q
			}
		}
	}
	b.push(LevelSuccess, "ToastUpdated", nil)
	b.record(ctx, model.ActionUpdateQuestion, string(b.Kind)+"/"+strconv.FormatInt(*q.ID, 10))
	return nil
}

// DeleteSaved removes a saved question and patches the opened paper and the
// history counts.
func (b *Bank) DeleteSaved(ctx context.Context, id int64) error {
	if err := b.backend.DeleteQuestion(ctx, b.Kind, id); err != nil {
		slog.Error("delete question", "bank", b.Kind, "id", id, "error", err)
		b.fail("ToastDeleteFailed", err)
		return err
	}
	if b.Current != nil {
		b.Current.Questions = slices.DeleteFunc(b.Current.Questions, func(q model.Question) bool {
			return q.ID != nil && *q.ID == id
		})
		b.Current.QuestionCount = len(b.Current.Questions)
		for i := range b.Papers {
			if b.Papers[i].ID == b.Current.ID {
				b.Papers[i].QuestionCount = b.Current.QuestionCount
			}
		}
		if last := PageCount(len(b.Current.Questions), b.PageSize); b.Detail > last {
			b.Detail = last
		}
	}
	b.push(LevelSuccess, "ToastDeleted", nil)
	b.record(ctx, model.ActionDeleteQuestion, string(b.Kind)+"/"+strconv.FormatInt(id, 10))
	return nil
}

// SearchHistory replaces the visible history with the papers matching
// query. An empty query reloads the full history. A single question match
// sets AutoOpen to its paper.
func (b *Bank) SearchHistory(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	b.AutoOpen = nil
	if query == "" {
		return b.LoadPapers(ctx)
	}
	res, err := b.backend.Search(ctx, query)
	if err != nil {
		slog.Error("search papers", "query", query, "error", err)
		b.fail("ToastSearchFailed", err)
		return err
	}
	b.Query = query
	b.Search = res
	b.Papers = res.Papers
	if len(res.Papers) == 0 {
		b.push(LevelInfo, "ToastNoMatch", map[string]any{"Query": query})
		return nil
	}
	if res.SearchType == model.SearchByQuestion && len(res.Papers) == 1 && len(res.Papers[0].Questions) == 1 {
		id := res.Papers[0].ID
		b.AutoOpen = &id
	}
	return nil
}
