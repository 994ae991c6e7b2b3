package page

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/importdesk/importdesk/internal/apitest"
	"github.com/importdesk/importdesk/internal/model"
)

func TestNumberKey(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"Q10", 10},
		{"第3题", 3},
		{"1.2", 12},
		{"abc", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := NumberKey(tt.in); got != tt.want {
			t.Errorf("NumberKey(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSortByNumber(t *testing.T) {
	qs := []model.Question{
		{QuestionNumber: "Q2"},
		{QuestionNumber: "Q10"},
		{QuestionNumber: "Q1"},
		{QuestionNumber: "x", Content: "first"},
		{QuestionNumber: "y", Content: "second"},
	}
	SortByNumber(qs)

	var got []string
	for _, q := range qs {
		got = append(got, string(q.QuestionNumber))
	}
	if strings.Join(got, ",") != "x,y,Q1,Q2,Q10" {
		t.Errorf("order = %v", got)
	}
	if qs[0].Content != "first" || qs[1].Content != "second" {
		t.Error("equal keys must keep their input order")
	}
}

func newBank(t *testing.T) (*Bank, *apitest.Backend, *memJournal) {
	t.Helper()
	c, b := newBackend(t)
	j := &memJournal{}
	bk := NewBank(c, j, model.BankOCR, 10)
	bk.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return bk, b, j
}

func TestBankUploadSortsAndCompletesProgress(t *testing.T) {
	bk, b, _ := newBank(t)
	b.Recognized = []model.Question{
		{QuestionNumber: "Q2", Content: "two"},
		{QuestionNumber: "Q10", Content: "ten"},
		{QuestionNumber: "Q1", Content: "one"},
	}

	if err := bk.Upload(context.Background(), "scan.png", strings.NewReader("img"), "Midterm"); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if bk.Progress() != 100 || bk.Uploading {
		t.Errorf("progress=%d uploading=%v", bk.Progress(), bk.Uploading)
	}
	var got []string
	for _, q := range bk.Results {
		got = append(got, string(q.QuestionNumber))
		if q.PaperName != "Midterm" {
			t.Errorf("question %s paper = %q", q.QuestionNumber, q.PaperName)
		}
	}
	if strings.Join(got, ",") != "Q1,Q2,Q10" {
		t.Errorf("order = %v, want Q1,Q2,Q10", got)
	}
}

func TestBankUploadFailureResetsProgress(t *testing.T) {
	bk, b, _ := newBank(t)
	b.Fail(http.MethodPost, "/api/ocr/upload", http.StatusBadGateway)

	if err := bk.Upload(context.Background(), "scan.png", strings.NewReader("img"), ""); err == nil {
		t.Fatal("expected an error")
	}
	if bk.Progress() != 0 || bk.Uploading {
		t.Errorf("progress=%d uploading=%v", bk.Progress(), bk.Uploading)
	}
	if toast := lastToast(t, bk.TakeToasts()); toast.MessageID != "ToastRecognizeFailed" {
		t.Errorf("toast = %s", toast.MessageID)
	}
}

func fiveResults() []model.Question {
	qs := make([]model.Question, 5)
	for i := range qs {
		qs[i] = model.Question{QuestionNumber: model.Label(string(rune('1' + i))), QuestionType: "single"}
	}
	return qs
}

func TestBankBatchEditRange(t *testing.T) {
	bk, _, _ := newBank(t)
	bk.Results = fiveResults()
	imageOnly := true

	n, err := bk.BatchEdit(BatchSpec{From: 2, To: 4, QuestionType: "essay", Year: "2023", UseImageOnly: &imageOnly})
	if err != nil {
		t.Fatalf("BatchEdit: %v", err)
	}
	if n != 9 {
		t.Errorf("updateCount = %d, want 9 (3 records x 3 fields)", n)
	}
	for i, q := range bk.Results {
		inRange := i >= 1 && i <= 3
		if inRange && (q.QuestionType != "essay" || q.Year != "2023" || !q.UseImageOnly) {
			t.Errorf("record %d not updated: %+v", i+1, q)
		}
		if !inRange && (q.QuestionType != "single" || q.Year != "" || q.UseImageOnly) {
			t.Errorf("record %d changed: %+v", i+1, q)
		}
	}
}

func TestBankBatchEditAll(t *testing.T) {
	bk, _, _ := newBank(t)
	bk.Results = fiveResults()

	n, err := bk.BatchEdit(BatchSpec{PaperName: "Final"})
	if err != nil {
		t.Fatalf("BatchEdit: %v", err)
	}
	if n != 5 {
		t.Errorf("updateCount = %d, want 5", n)
	}
}

func TestBankBatchEditBadRange(t *testing.T) {
	tests := []BatchSpec{
		{From: 0, To: 3},
		{From: 4, To: 2},
		{From: 2, To: 6},
	}
	for _, spec := range tests {
		bk, _, _ := newBank(t)
		bk.Results = fiveResults()
		n, err := bk.BatchEdit(BatchSpec{From: spec.From, To: spec.To, QuestionType: "essay"})
		if err != ErrBadRange || n != 0 {
			t.Errorf("BatchEdit(%d..%d) = %d, %v; want ErrBadRange", spec.From, spec.To, n, err)
		}
		for _, q := range bk.Results {
			if q.QuestionType != "single" {
				t.Errorf("range %d..%d changed a record", spec.From, spec.To)
			}
		}
	}
}

func TestBankSaveWithoutRecordsMakesNoRequest(t *testing.T) {
	bk, b, _ := newBank(t)

	if err := bk.Save(context.Background(), SaveForm{PaperName: "X"}); err != ErrNothingToSave {
		t.Fatalf("Save error = %v, want ErrNothingToSave", err)
	}
	if n := len(b.Calls()); n != 0 {
		t.Errorf("made %d requests, want 0", n)
	}
	if toast := lastToast(t, bk.TakeToasts()); toast.Level != LevelWarning {
		t.Errorf("toast level = %s, want warning", toast.Level)
	}
}

func TestBankSaveResolvesPaperFields(t *testing.T) {
	tests := []struct {
		name     string
		form     SaveForm
		first    model.Question
		wantName string
		wantYear string
	}{
		{"form", SaveForm{PaperName: "Form", Year: "2020"}, model.Question{PaperName: "Rec", Year: "2019"}, "Form", "2020"},
		{"record", SaveForm{}, model.Question{PaperName: "Rec", Year: "2019"}, "Rec", "2019"},
		{"default", SaveForm{}, model.Question{}, "Paper-20240102-030405", "2024"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bk, b, j := newBank(t)
			bk.Results = []model.Question{tt.first, {Content: "second"}}

			if err := bk.Save(context.Background(), tt.form); err != nil {
				t.Fatalf("Save: %v", err)
			}
			papers := b.Papers(model.BankOCR)
			if len(papers) != 1 {
				t.Fatalf("saved papers = %d, want 1", len(papers))
			}
			p := papers[0]
			if p.PaperName != tt.wantName || string(p.Year) != tt.wantYear {
				t.Errorf("paper = %q/%q, want %q/%q", p.PaperName, p.Year, tt.wantName, tt.wantYear)
			}
			for _, q := range p.Questions {
				if q.PaperName != tt.wantName || string(q.Year) != tt.wantYear {
					t.Errorf("question not tagged: %+v", q)
				}
			}
			if bk.Results != nil {
				t.Error("results should be cleared after save")
			}
			if len(bk.Papers) != 1 {
				t.Errorf("history = %d papers, want 1", len(bk.Papers))
			}
			if got := j.actions(); len(got) != 1 || got[0] != model.ActionSavePaper {
				t.Errorf("journal = %v", got)
			}
		})
	}
}

func savedBank(t *testing.T) (*Bank, *apitest.Backend) {
	t.Helper()
	bk, b, _ := newBank(t)
	bk.Results = []model.Question{
		{QuestionNumber: "1", Content: "alpha beta"},
		{QuestionNumber: "2", Content: "gamma"},
	}
	if err := bk.Save(context.Background(), SaveForm{PaperName: "Algebra"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	bk.TakeToasts()
	return bk, b
}

func TestBankSavedQuestionEdits(t *testing.T) {
	bk, b := savedBank(t)
	ctx := context.Background()
	id := bk.Papers[0].ID

	if err := bk.OpenPaper(ctx, id); err != nil {
		t.Fatalf("OpenPaper: %v", err)
	}
	if len(bk.Current.Questions) != 2 {
		t.Fatalf("questions = %d", len(bk.Current.Questions))
	}

	q := bk.Current.Questions[0]
	q.Content = "edited"
	if err := bk.UpdateSaved(ctx, q); err != nil {
		t.Fatalf("UpdateSaved: %v", err)
	}
	if bk.Current.Questions[0].Content != "edited" {
		t.Error("opened paper not patched")
	}
	if got := b.Papers(model.BankOCR)[0].Questions[0].Content; got != "edited" {
		t.Errorf("stored content = %q", got)
	}

	if err := bk.DeleteSaved(ctx, *bk.Current.Questions[1].ID); err != nil {
		t.Fatalf("DeleteSaved: %v", err)
	}
	if bk.Current.QuestionCount != 1 || bk.Papers[0].QuestionCount != 1 {
		t.Errorf("counts = %d/%d, want 1", bk.Current.QuestionCount, bk.Papers[0].QuestionCount)
	}

	if err := bk.UpdateSaved(ctx, model.Question{Content: "local"}); err != model.ErrMissingID {
		t.Errorf("UpdateSaved without id = %v, want ErrMissingID", err)
	}

	if err := bk.DeletePaper(ctx, id); err != nil {
		t.Fatalf("DeletePaper: %v", err)
	}
	if bk.Current != nil || len(bk.Papers) != 0 {
		t.Errorf("after delete current=%v papers=%d", bk.Current, len(bk.Papers))
	}
}

func TestBankSearch(t *testing.T) {
	bk, _ := savedBank(t)
	ctx := context.Background()

	if err := bk.SearchHistory(ctx, "gamma"); err != nil {
		t.Fatalf("SearchHistory: %v", err)
	}
	if bk.AutoOpen == nil || *bk.AutoOpen != bk.Papers[0].ID {
		t.Errorf("AutoOpen = %v, want the matching paper", bk.AutoOpen)
	}

	if err := bk.SearchHistory(ctx, "Algebra"); err != nil {
		t.Fatalf("SearchHistory: %v", err)
	}
	if bk.AutoOpen != nil {
		t.Error("a paper-name match must not auto-open")
	}
	if bk.Search == nil || bk.Search.SearchType != model.SearchByPaper {
		t.Errorf("search = %+v", bk.Search)
	}

	if err := bk.SearchHistory(ctx, "  "); err != nil {
		t.Fatalf("SearchHistory: %v", err)
	}
	if bk.Search != nil || bk.Query != "" || len(bk.Papers) != 1 {
		t.Errorf("empty query should reload history: search=%v papers=%d", bk.Search, len(bk.Papers))
	}
}

func TestBankLocalEdits(t *testing.T) {
	bk, _, _ := newBank(t)
	bk.Results = fiveResults()

	if err := bk.EditLocal(0, model.Question{QuestionNumber: "1", Content: "changed"}); err != nil {
		t.Fatalf("EditLocal: %v", err)
	}
	if bk.Results[0].Content != "changed" {
		t.Error("record not replaced")
	}
	if err := bk.DeleteLocal(4); err != nil {
		t.Fatalf("DeleteLocal: %v", err)
	}
	if len(bk.Results) != 4 {
		t.Errorf("results = %d, want 4", len(bk.Results))
	}
	if err := bk.DeleteLocal(9); err != ErrBadRange {
		t.Errorf("DeleteLocal out of range = %v", err)
	}
}
