package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/importdesk/importdesk/internal/api"
	"github.com/importdesk/importdesk/internal/handler/views"
	"github.com/importdesk/importdesk/internal/model"
)

func (h *Handler) handleImportPage(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	p := ws.importer
	if n, ok := queryInt(r, "page"); ok && p.FileID != "" {
		size, _ := queryInt(r, "size")
		_ = p.ChangePage(r.Context(), n, size)
	}
	render(w, r, views.ImportPage(p))
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	p := ws.importer
	if ds, err := model.ParseDataSource(r.FormValue("dataSource")); err == nil {
		p.SetDataSource(ds)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		slog.Warn("preview without file", "error", err)
		_ = p.HandleFileChange(r.Context(), "", nil)
		h.redirect(w, r, "/import")
		return
	}
	defer file.Close()

	_ = p.HandleFileChange(r.Context(), header.Filename, file)
	h.redirect(w, r, "/import")
}

func (h *Handler) handleConfirmImport(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	_ = ws.importer.Confirm(r.Context())
	h.redirect(w, r, "/import")
}

func (h *Handler) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	ws.importer.Cancel(r.Context())
	h.redirect(w, r, "/import")
}

func (h *Handler) handleManagePage(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	m := ws.manage
	ctx := r.Context()
	q := r.URL.Query()
	refresh := !ws.redirected(r) && !q.Has("source") && !q.Has("table") && !q.Has("size") && !q.Has("page")

	if s := q.Get("source"); s != "" {
		ds, err := model.ParseDataSource(s)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if ds != m.DataSource || !ws.manageLoaded {
			if err := m.SetDataSource(ctx, ds); err != nil && !ds.Browsable() {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			ws.manageLoaded = true
		}
	}
	if !ws.manageLoaded {
		_ = m.LoadTables(ctx)
		ws.manageLoaded = true
	} else if refresh {
		_ = m.Refresh(ctx)
	}

	if t := q.Get("table"); t != "" && t != m.Table {
		_ = m.SelectTable(ctx, t)
	}
	if n, ok := queryInt(r, "size"); ok && n != m.PageSize {
		_ = m.ChangeSize(ctx, n)
	}
	if n, ok := queryInt(r, "page"); ok && n != m.Page {
		_ = m.ChangePage(ctx, n)
	}
	render(w, r, views.ManagePage(m))
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	format := api.ExportExcel
	if r.URL.Query().Get("format") == "csv" {
		format = api.ExportCSV
	}
	target, ok := ws.manage.ExportURL(r.Context(), format)
	if !ok {
		h.redirect(w, r, "/manage")
		return
	}
	if h.config.BackendURL != "" {
		target = strings.TrimRight(h.config.BackendURL, "/") + strings.TrimPrefix(target, h.client.BaseURL())
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) handleBeginEdit(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	i, err := intParam(r, "index")
	if err != nil {
		http.Error(w, "invalid row index", http.StatusBadRequest)
		return
	}
	if err := ws.manage.BeginEdit(i); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	render(w, r, views.ManagePage(ws.manage))
}

func (h *Handler) handleConfirmEdit(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	values := map[string]string{}
	for k, vs := range r.PostForm {
		if col, ok := strings.CutPrefix(k, "col."); ok && len(vs) > 0 {
			values[col] = vs[0]
		}
	}
	_ = ws.manage.ConfirmEdit(r.Context(), values)
	h.redirect(w, r, "/manage")
}

func (h *Handler) handleCancelEdit(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	ws.manage.CancelEdit()
	h.redirect(w, r, "/manage")
}

func (h *Handler) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	i, err := intParam(r, "index")
	if err != nil {
		http.Error(w, "invalid row index", http.StatusBadRequest)
		return
	}
	if err := ws.manage.Delete(r.Context(), i); err != nil {
		slog.Warn("delete row", "index", i, "error", err)
	}
	h.redirect(w, r, "/manage")
}
