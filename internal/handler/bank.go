package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/importdesk/importdesk/internal/handler/views"
	"github.com/importdesk/importdesk/internal/model"
	"github.com/importdesk/importdesk/internal/page"
)

// questionFromForm overlays the posted fields on base so that fields the
// form does not carry, such as image data, survive the edit.
func questionFromForm(r *http.Request, base model.Question, pageMode bool) model.Question {
	q := base
	q.Content = r.PostFormValue("content")
	q.PaperName = strings.TrimSpace(r.PostFormValue("paperName"))
	if pageMode {
		q.PageNumber = model.Label(strings.TrimSpace(r.PostFormValue("pageNumber")))
		return q
	}
	q.QuestionNumber = model.Label(strings.TrimSpace(r.PostFormValue("questionNumber")))
	q.QuestionType = strings.TrimSpace(r.PostFormValue("questionType"))
	q.Year = model.Label(strings.TrimSpace(r.PostFormValue("year")))
	q.UseImageOnly = r.PostFormValue("useImageOnly") == "true"
	return q
}

// savedBase finds the opened record with id, or a bare record carrying id.
func savedBase(current *model.Paper, id int64) model.Question {
	if current != nil {
		for _, q := range current.Questions {
			if q.ID != nil && *q.ID == id {
				return q
			}
		}
	}
	return model.Question{ID: &id}
}

func formInt(r *http.Request, name string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(r.PostFormValue(name)))
	return n
}

func (h *Handler) handleBankPage(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	b := ws.bank
	q := r.URL.Query()
	navigated := !ws.redirected(r) && !q.Has("page") && !q.Has("detail")
	if !ws.bankLoaded || navigated {
		_ = b.LoadPapers(r.Context())
		ws.bankLoaded = true
	}
	if n, ok := queryInt(r, "page"); ok {
		b.ResultsPage = min(n, page.PageCount(len(b.Results), b.PageSize))
	}
	if n, ok := queryInt(r, "detail"); ok && b.Current != nil {
		b.Detail = min(n, page.PageCount(len(b.Current.Questions), b.PageSize))
	}
	render(w, r, views.BankPage(b))
	// The refresh to a single matched paper fires once.
	b.AutoOpen = nil
}

func (h *Handler) handleBankUpload(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if err := ws.bank.Upload(r.Context(), header.Filename, file, r.FormValue("paperName")); err != nil {
		slog.Warn("recognition failed", "file", header.Filename, "error", err)
	}
	h.redirect(w, r, "/ocr")
}

func (h *Handler) handleBatchEdit(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	spec := page.BatchSpec{
		From:         formInt(r, "from"),
		To:           formInt(r, "to"),
		QuestionType: strings.TrimSpace(r.PostFormValue("questionType")),
		PaperName:    strings.TrimSpace(r.PostFormValue("paperName")),
		Year:         strings.TrimSpace(r.PostFormValue("year")),
	}
	switch r.PostFormValue("useImageOnly") {
	case "true":
		v := true
		spec.UseImageOnly = &v
	case "false":
		v := false
		spec.UseImageOnly = &v
	}
	_, _ = ws.bank.BatchEdit(spec)
	h.redirect(w, r, "/ocr")
}

func (h *Handler) handleBankSave(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	_ = ws.bank.Save(r.Context(), page.SaveForm{
		PaperName: r.PostFormValue("paperName"),
		Year:      r.PostFormValue("year"),
	})
	h.redirect(w, r, "/ocr")
}

func (h *Handler) handleBankEditLocal(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	i, err := intParam(r, "index")
	if err != nil || i < 0 || i >= len(ws.bank.Results) {
		http.Error(w, "invalid record index", http.StatusBadRequest)
		return
	}
	q := questionFromForm(r, ws.bank.Results[i], false)
	if err := ws.bank.EditLocal(i, q); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.redirect(w, r, "/ocr")
}

func (h *Handler) handleBankDeleteLocal(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	i, err := intParam(r, "index")
	if err != nil {
		http.Error(w, "invalid record index", http.StatusBadRequest)
		return
	}
	if err := ws.bank.DeleteLocal(i); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.redirect(w, r, "/ocr")
}

func (h *Handler) handleBankSearch(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	_ = ws.bank.SearchHistory(r.Context(), r.PostFormValue("query"))
	ws.bankLoaded = true
	h.redirect(w, r, "/ocr")
}

func (h *Handler) handleBankOpenPaper(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	id, err := int64Param(r, "id")
	if err != nil {
		http.Error(w, "invalid paper ID", http.StatusBadRequest)
		return
	}
	_ = ws.bank.OpenPaper(r.Context(), id)
	h.redirect(w, r, "/ocr")
}

func (h *Handler) handleBankDeletePaper(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	id, err := int64Param(r, "id")
	if err != nil {
		http.Error(w, "invalid paper ID", http.StatusBadRequest)
		return
	}
	_ = ws.bank.DeletePaper(r.Context(), id)
	h.redirect(w, r, "/ocr")
}

func (h *Handler) handleBankClose(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	ws.bank.ClosePaper()
	h.redirect(w, r, "/ocr")
}

func (h *Handler) handleBankUpdateSaved(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	id, err := int64Param(r, "id")
	if err != nil {
		http.Error(w, "invalid question ID", http.StatusBadRequest)
		return
	}
	q := questionFromForm(r, savedBase(ws.bank.Current, id), false)
	_ = ws.bank.UpdateSaved(r.Context(), q)
	h.redirect(w, r, "/ocr")
}

func (h *Handler) handleBankDeleteSaved(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	id, err := int64Param(r, "id")
	if err != nil {
		http.Error(w, "invalid question ID", http.StatusBadRequest)
		return
	}
	_ = ws.bank.DeleteSaved(r.Context(), id)
	h.redirect(w, r, "/ocr")
}
