package page

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/importdesk/importdesk/internal/apitest"
	"github.com/importdesk/importdesk/internal/model"
)

func newDoc(t *testing.T) (*Doc, *apitest.Backend) {
	t.Helper()
	c, b := newBackend(t)
	b.DocPages["algebra.docx"] = []model.Question{
		{PageNumber: "p2", Content: "second page"},
		{PageNumber: "p1", Content: "first page"},
	}
	b.DocPages["physics.pdf"] = []model.Question{
		{PageNumber: "1", Content: "forces"},
	}
	return NewDoc(c, &memJournal{}, 10), b
}

func docFiles(names ...string) []DocFile {
	files := make([]DocFile, len(names))
	for i, n := range names {
		files[i] = DocFile{Name: n, Body: strings.NewReader("content of " + n)}
	}
	return files
}

func TestDocProcessSkipsFailedFiles(t *testing.T) {
	d, b := newDoc(t)

	err := d.Process(context.Background(), docFiles("algebra.docx", "broken.pdf", "physics.pdf"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if n := b.CallCount(http.MethodPost, "/api/doc/upload"); n != 3 {
		t.Errorf("uploads = %d, want 3", n)
	}
	if d.Progress() != 100 || d.Processing {
		t.Errorf("progress=%d processing=%v", d.Progress(), d.Processing)
	}
	if len(d.Records) != 3 {
		t.Fatalf("records = %d, want 3", len(d.Records))
	}
	if d.Records[0].PageNumber != "p1" || d.Records[1].PageNumber != "p2" {
		t.Errorf("pages not sorted: %+v", d.Records[:2])
	}
	if d.Records[0].PaperName != "algebra" || d.Records[2].PaperName != "physics" {
		t.Errorf("pages not tagged: %q, %q", d.Records[0].PaperName, d.Records[2].PaperName)
	}

	toasts := d.TakeToasts()
	var failed int
	for _, ts := range toasts {
		if ts.MessageID == "ToastDocFailed" {
			failed++
			if ts.Data["File"] != "broken.pdf" {
				t.Errorf("failure toast for %v", ts.Data["File"])
			}
		}
	}
	if failed != 1 {
		t.Errorf("failure toasts = %d, want 1", failed)
	}
}

func TestDocSaveWithoutRecordsMakesNoRequest(t *testing.T) {
	d, b := newDoc(t)

	if _, err := d.Save(context.Background()); err != ErrNothingToSave {
		t.Fatalf("Save error = %v, want ErrNothingToSave", err)
	}
	if n := len(b.Calls()); n != 0 {
		t.Errorf("made %d requests, want 0", n)
	}
	if toast := lastToast(t, d.TakeToasts()); toast.Level != LevelWarning {
		t.Errorf("toast level = %s, want warning", toast.Level)
	}
}

func TestDocSaveAllSucceeded(t *testing.T) {
	d, b := newDoc(t)
	ctx := context.Background()
	if err := d.Process(ctx, docFiles("algebra.docx", "physics.pdf")); err != nil {
		t.Fatalf("Process: %v", err)
	}

	sum, err := d.Save(ctx)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if sum != (SaveSummary{Saved: 2}) {
		t.Errorf("summary = %+v", sum)
	}
	if n := b.CallCount(http.MethodPost, "/api/doc/save"); n != 2 {
		t.Errorf("save requests = %d, want one per paper", n)
	}
	if d.Records != nil || d.Tab != TabHistory {
		t.Errorf("records=%d tab=%s", len(d.Records), d.Tab)
	}
	if len(d.Papers) != 2 {
		t.Errorf("history = %d, want 2", len(d.Papers))
	}
	if toast := lastToast(t, d.TakeToasts()); toast.MessageID != "ToastDocsSaved" {
		t.Errorf("toast = %s", toast.MessageID)
	}
}

func TestDocSavePartial(t *testing.T) {
	d, b := newDoc(t)
	ctx := context.Background()
	if err := d.Process(ctx, docFiles("algebra.docx", "physics.pdf")); err != nil {
		t.Fatalf("Process: %v", err)
	}
	// The backend rejects pages without a paper name.
	d.Records[2].PaperName = ""

	sum, err := d.Save(ctx)
	if err == nil {
		t.Fatal("expected an error for the rejected paper")
	}
	if sum != (SaveSummary{Saved: 1, Failed: 1}) {
		t.Errorf("summary = %+v", sum)
	}
	if len(d.Records) != 1 || d.Records[0].Content != "forces" {
		t.Errorf("pending records = %+v, want only the failed paper", d.Records)
	}
	if len(b.Docs()) != 1 {
		t.Errorf("stored docs = %d, want 1", len(b.Docs()))
	}
	if toast := lastToast(t, d.TakeToasts()); toast.MessageID != "ToastDocsPartial" {
		t.Errorf("toast = %s", toast.MessageID)
	}
}

func TestDocSaveAllFailed(t *testing.T) {
	d, b := newDoc(t)
	ctx := context.Background()
	if err := d.Process(ctx, docFiles("algebra.docx", "physics.pdf")); err != nil {
		t.Fatalf("Process: %v", err)
	}
	b.Fail(http.MethodPost, "/api/doc/save", http.StatusInternalServerError)

	sum, err := d.Save(ctx)
	if err == nil || sum.Failed != 2 || sum.Saved != 0 {
		t.Fatalf("Save = %+v, %v", sum, err)
	}
	if len(d.Records) != 3 || d.Saving {
		t.Errorf("records=%d saving=%v", len(d.Records), d.Saving)
	}
	if toast := lastToast(t, d.TakeToasts()); toast.MessageID != "ToastDocsSaveFailed" {
		t.Errorf("toast = %s", toast.MessageID)
	}
}

func TestDocSavedPageEdits(t *testing.T) {
	d, b := newDoc(t)
	ctx := context.Background()
	if err := d.Process(ctx, docFiles("algebra.docx")); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if _, err := d.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	id := d.Papers[0].ID
	if err := d.ViewPaper(ctx, id); err != nil {
		t.Fatalf("ViewPaper: %v", err)
	}

	page := d.Current.Questions[0]
	page.Content = "rewritten"
	if err := d.UpdateSaved(ctx, page); err != nil {
		t.Fatalf("UpdateSaved: %v", err)
	}
	if got := b.Docs()[0].Questions[0].Content; got != "rewritten" {
		t.Errorf("stored content = %q", got)
	}

	if err := d.DeleteSaved(ctx, *d.Current.Questions[1].ID); err != nil {
		t.Fatalf("DeleteSaved: %v", err)
	}
	if d.Papers[0].QuestionCount != 1 {
		t.Errorf("history count = %d, want 1", d.Papers[0].QuestionCount)
	}

	if err := d.Search(ctx, "rewritten"); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !d.Searching || len(d.Papers) != 1 {
		t.Errorf("searching=%v papers=%d", d.Searching, len(d.Papers))
	}
	if err := d.ClearSearch(ctx); err != nil {
		t.Fatalf("ClearSearch: %v", err)
	}
	if d.Searching || d.Query != "" {
		t.Error("search not cleared")
	}

	if err := d.DeletePaper(ctx, id); err != nil {
		t.Fatalf("DeletePaper: %v", err)
	}
	if d.Current != nil || len(d.Papers) != 0 {
		t.Errorf("after delete current=%v papers=%d", d.Current, len(d.Papers))
	}
}
