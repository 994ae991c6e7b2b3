package handler

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/importdesk/importdesk/internal/handler/views"
	"github.com/importdesk/importdesk/internal/page"
)

const maxDocUpload = 64 << 20

func (h *Handler) handleDocPage(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	d := ws.doc
	q := r.URL.Query()
	navigated := !ws.redirected(r) && !q.Has("page") && !q.Has("detail")
	if !ws.docLoaded || navigated {
		_ = d.LoadPapers(r.Context())
		ws.docLoaded = true
	}
	switch q.Get("tab") {
	case page.TabUpload:
		d.Tab = page.TabUpload
	case page.TabHistory:
		d.Tab = page.TabHistory
	}
	if n, ok := queryInt(r, "page"); ok {
		d.ResultsPage = min(n, page.PageCount(len(d.Records), d.PageSize))
	}
	if n, ok := queryInt(r, "detail"); ok && d.Current != nil {
		d.Detail = min(n, page.PageCount(len(d.Current.Questions), d.PageSize))
	}
	render(w, r, views.DocPage(d))
}

func (h *Handler) handleDocProcess(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	if err := r.ParseMultipartForm(maxDocUpload); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var headers []*multipart.FileHeader
	if r.MultipartForm != nil {
		headers = r.MultipartForm.File["files"]
	}

	files := make([]page.DocFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			slog.Warn("open uploaded document", "file", fh.Filename, "error", err)
			continue
		}
		defer f.Close()
		files = append(files, page.DocFile{Name: fh.Filename, Body: f})
	}
	if err := ws.doc.Process(r.Context(), files); err != nil {
		slog.Warn("process documents", "files", len(files), "error", err)
	}
	h.redirect(w, r, "/doc")
}

func (h *Handler) handleDocSave(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	sum, err := ws.doc.Save(r.Context())
	if err != nil {
		slog.Warn("save documents", "saved", sum.Saved, "failed", sum.Failed, "error", err)
	}
	h.redirect(w, r, "/doc")
}

func (h *Handler) handleDocEditLocal(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	i, err := intParam(r, "index")
	if err != nil || i < 0 || i >= len(ws.doc.Records) {
		http.Error(w, "invalid record index", http.StatusBadRequest)
		return
	}
	q := questionFromForm(r, ws.doc.Records[i], true)
	if err := ws.doc.EditLocal(i, q); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.redirect(w, r, "/doc?tab="+page.TabUpload)
}

func (h *Handler) handleDocDeleteLocal(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	i, err := intParam(r, "index")
	if err != nil {
		http.Error(w, "invalid record index", http.StatusBadRequest)
		return
	}
	if err := ws.doc.DeleteLocal(i); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.redirect(w, r, "/doc?tab="+page.TabUpload)
}

func (h *Handler) handleDocSearch(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	_ = ws.doc.Search(r.Context(), r.PostFormValue("query"))
	ws.docLoaded = true
	h.redirect(w, r, "/doc?tab="+page.TabHistory)
}

func (h *Handler) handleDocClearSearch(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	_ = ws.doc.ClearSearch(r.Context())
	h.redirect(w, r, "/doc?tab="+page.TabHistory)
}

func (h *Handler) handleDocViewPaper(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	id, err := int64Param(r, "id")
	if err != nil {
		http.Error(w, "invalid document ID", http.StatusBadRequest)
		return
	}
	_ = ws.doc.ViewPaper(r.Context(), id)
	h.redirect(w, r, "/doc?tab="+page.TabHistory)
}

func (h *Handler) handleDocDeletePaper(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	id, err := int64Param(r, "id")
	if err != nil {
		http.Error(w, "invalid document ID", http.StatusBadRequest)
		return
	}
	_ = ws.doc.DeletePaper(r.Context(), id)
	h.redirect(w, r, "/doc?tab="+page.TabHistory)
}

func (h *Handler) handleDocClose(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	ws.doc.ClosePaper()
	h.redirect(w, r, "/doc?tab="+page.TabHistory)
}

func (h *Handler) handleDocUpdateSaved(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	id, err := int64Param(r, "id")
	if err != nil {
		http.Error(w, "invalid page ID", http.StatusBadRequest)
		return
	}
	q := questionFromForm(r, savedBase(ws.doc.Current, id), true)
	_ = ws.doc.UpdateSaved(r.Context(), q)
	h.redirect(w, r, "/doc?tab="+page.TabHistory)
}

func (h *Handler) handleDocDeleteSaved(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	id, err := int64Param(r, "id")
	if err != nil {
		http.Error(w, "invalid page ID", http.StatusBadRequest)
		return
	}
	_ = ws.doc.DeleteSaved(r.Context(), id)
	h.redirect(w, r, "/doc?tab="+page.TabHistory)
}
