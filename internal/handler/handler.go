package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/importdesk/importdesk/internal/api"
	"github.com/importdesk/importdesk/internal/handler/views"
	"github.com/importdesk/importdesk/internal/model"
	"github.com/importdesk/importdesk/internal/page"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	client     *api.Client
	journal    page.Journal
	config     model.ConsoleConfig
	workspaces *workspaces
}

// New creates a new Handler. j may be nil to disable the audit journal.
func New(client *api.Client, j page.Journal, cfg model.ConsoleConfig) (*Handler, error) {
	if client == nil {
		return nil, fmt.Errorf("backend client is required")
	}
	if cfg.Bank == "" {
		cfg.Bank = model.BankOCR
	}
	if _, err := model.ParseQuestionBank(string(cfg.Bank)); err != nil {
		return nil, err
	}
	if cfg.PageSize < 1 {
		cfg.PageSize = page.DefaultPageSize
	}
	h := &Handler{client: client, journal: j, config: cfg}
	h.workspaces = newWorkspaces(workspaceTTL, h.newWorkspace)
	return h, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(h.workspaceMiddleware)

	r.Get("/ocr/progress", h.handleBankProgress)
	r.Get("/doc/progress", h.handleDocProgress)

	r.Group(func(r chi.Router) {
		r.Use(h.csrfMiddleware)
		r.Use(routeLogger)

		r.NotFound(h.handleNotFound)
		r.Get("/", h.handleIndex)
		r.Get("/home", h.handleHome)
		r.Post("/logout", h.handleLogout)

		r.Get("/import", h.handleImportPage)
		r.Post("/import/preview", h.handlePreview)
		r.Post("/import/confirm", h.handleConfirmImport)
		r.Post("/import/cancel", h.handleCancelImport)

		r.Get("/manage", h.handleManagePage)
		r.Get("/manage/export", h.handleExport)
		r.Get("/manage/edit/{index}", h.handleBeginEdit)
		r.Post("/manage/edit", h.handleConfirmEdit)
		r.Post("/manage/edit/cancel", h.handleCancelEdit)
		r.Post("/manage/delete/{index}", h.handleDeleteRow)

		r.Get("/ocr", h.handleBankPage)
		r.Post("/ocr/upload", h.handleBankUpload)
		r.Post("/ocr/batch", h.handleBatchEdit)
		r.Post("/ocr/save", h.handleBankSave)
		r.Post("/ocr/results/{index}/edit", h.handleBankEditLocal)
		r.Post("/ocr/results/{index}/delete", h.handleBankDeleteLocal)
		r.Post("/ocr/search", h.handleBankSearch)
		r.Get("/ocr/papers/{id}", h.handleBankOpenPaper)
		r.Post("/ocr/papers/{id}/delete", h.handleBankDeletePaper)
		r.Post("/ocr/close", h.handleBankClose)
		r.Post("/ocr/questions/{id}/edit", h.handleBankUpdateSaved)
		r.Post("/ocr/questions/{id}/delete", h.handleBankDeleteSaved)

		r.Get("/doc", h.handleDocPage)
		r.Post("/doc/process", h.handleDocProcess)
		r.Post("/doc/save", h.handleDocSave)
		r.Post("/doc/records/{index}/edit", h.handleDocEditLocal)
		r.Post("/doc/records/{index}/delete", h.handleDocDeleteLocal)
		r.Post("/doc/search", h.handleDocSearch)
		r.Post("/doc/search/clear", h.handleDocClearSearch)
		r.Get("/doc/papers/{id}", h.handleDocViewPaper)
		r.Post("/doc/papers/{id}/delete", h.handleDocDeletePaper)
		r.Post("/doc/close", h.handleDocClose)
		r.Post("/doc/pages/{id}/edit", h.handleDocUpdateSaved)
		r.Post("/doc/pages/{id}/delete", h.handleDocDeleteSaved)
	})
}

func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, p string) {
	if ws := workspaceFrom(r.Context()); ws != nil {
		target, _, _ := strings.Cut(h.path(p), "?")
		ws.redirectTo.Store(&target)
	}
	http.Redirect(w, r, h.path(p), http.StatusSeeOther)
}

func render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func intParam(r *http.Request, name string) (int, error) {
	return strconv.Atoi(chi.URLParam(r, name))
}

func int64Param(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// queryInt reads a positive integer query parameter. ok is false when the
// parameter is absent or malformed.
func queryInt(r *http.Request, name string) (n int, ok bool) {
	s := strings.TrimSpace(r.URL.Query().Get(name))
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.redirect(w, r, "/home")
}

func (h *Handler) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	if err := views.ErrorPage("ErrorNotFound").Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleHome(w http.ResponseWriter, r *http.Request) {
	ws := lockWorkspace(r)
	defer ws.mu.Unlock()

	ws.home.Load(r.Context())
	render(w, r, views.HomePage(ws.home))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Logout(r.Context()); err != nil {
		slog.Warn("backend logout failed", "error", err)
	}
	if cookie, err := r.Cookie(workspaceCookieName); err == nil && cookie.Value != "" {
		h.workspaces.drop(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     workspaceCookieName,
		Value:    "",
		Path:     h.cookiePath(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
	})
	h.redirect(w, r, "/home")
}

func (h *Handler) handleBankProgress(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	writeJSON(w, map[string]int{"progress": ws.bank.Progress()})
}

func (h *Handler) handleDocProgress(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	writeJSON(w, map[string]int{"progress": ws.doc.Progress()})
}
