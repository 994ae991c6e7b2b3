package handler

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/importdesk/importdesk/internal/page"
)

const (
	workspaceCookieName = "console_session"
	workspaceTTL        = 24 * time.Hour
)

// workspace holds the page view-models of one browser. mu serializes every
// handler that touches them; progress endpoints read atomics only.
type workspace struct {
	mu sync.Mutex

	home     *page.Home
	importer *page.Importer
	manage   *page.Manage
	bank     *page.Bank
	doc      *page.Doc

	manageLoaded bool
	bankLoaded   bool
	docLoaded    bool

	route      atomic.Pointer[string]
	redirectTo atomic.Pointer[string]
	lastSeen   atomic.Int64
}

// redirected reports whether r follows a console redirect to its page. The
// redirecting handler has already loaded whatever it changed.
func (ws *workspace) redirected(r *http.Request) bool {
	p := ws.redirectTo.Swap(nil)
	return p != nil && *p == r.URL.Path
}

type workspaces struct {
	mu      sync.Mutex
	ttl     time.Duration
	byID    map[string]*workspace
	factory func() *workspace
	now     func() time.Time
}

func newWorkspaces(ttl time.Duration, factory func() *workspace) *workspaces {
	return &workspaces{ttl: ttl, byID: map[string]*workspace{}, factory: factory, now: time.Now}
}

func generateWorkspaceID() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// get returns the live workspace for id and refreshes its expiry.
func (s *workspaces) get(id string) *workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.byID[id]
	if !ok {
		return nil
	}
	now := s.now()
	if now.Sub(time.Unix(0, ws.lastSeen.Load())) > s.ttl {
		delete(s.byID, id)
		return nil
	}
	ws.lastSeen.Store(now.UnixNano())
	return ws
}

// create starts a workspace and drops the expired ones.
func (s *workspaces) create() (string, *workspace, error) {
	id, err := generateWorkspaceID()
	if err != nil {
		return "", nil, err
	}
	ws := s.factory()

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, old := range s.byID {
		if now.Sub(time.Unix(0, old.lastSeen.Load())) > s.ttl {
			delete(s.byID, k)
		}
	}
	ws.lastSeen.Store(now.UnixNano())
	s.byID[id] = ws
	return id, ws, nil
}

func (s *workspaces) drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
}

func (s *workspaces) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

type workspaceCtxKey struct{}

func workspaceFrom(ctx context.Context) *workspace {
	ws, _ := ctx.Value(workspaceCtxKey{}).(*workspace)
	return ws
}

// lockWorkspace returns the request's workspace with its mutex held.
func lockWorkspace(r *http.Request) *workspace {
	ws := workspaceFrom(r.Context())
	ws.mu.Lock()
	return ws
}

func (h *Handler) newWorkspace() *workspace {
	return &workspace{
		home:     page.NewHome(h.client),
		importer: page.NewImporter(h.client, h.journal, h.config.PageSize),
		manage:   page.NewManage(h.client, h.journal, h.config.PageSize),
		bank:     page.NewBank(h.client, h.journal, h.config.Bank, h.config.PageSize),
		doc:      page.NewDoc(h.client, h.journal, h.config.PageSize),
	}
}

// workspaceMiddleware attaches the browser's workspace, creating one when
// the cookie is missing or expired.
func (h *Handler) workspaceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ws *workspace
		if cookie, err := r.Cookie(workspaceCookieName); err == nil && cookie.Value != "" {
			ws = h.workspaces.get(cookie.Value)
		}
		if ws == nil {
			id, created, err := h.workspaces.create()
			if err != nil {
				slog.Error("failed to create workspace", "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			ws = created
			http.SetCookie(w, &http.Cookie{
				Name:     workspaceCookieName,
				Value:    id,
				Path:     h.cookiePath(),
				MaxAge:   int(workspaceTTL / time.Second),
				HttpOnly: true,
				Secure:   h.config.SecureCookies,
				SameSite: http.SameSiteLaxMode,
			})
			slog.Debug("workspace created", "workspaces", h.workspaces.len())
		}
		ctx := context.WithValue(r.Context(), workspaceCtxKey{}, ws)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
