// Package page holds the view-models behind each console page. A view-model
// is not safe for concurrent use; the console serializes access to all pages
// of one workspace.
package page

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/importdesk/importdesk/internal/model"
)

var (
	// ErrNothingToSave is returned by Save when there are no records.
	ErrNothingToSave = errors.New("nothing to save")
	// ErrNoStagedFile is returned by Confirm when no file has been previewed.
	ErrNoStagedFile = errors.New("no staged file")
	// ErrBadRange is returned by BatchEdit for an invalid index range.
	ErrBadRange = errors.New("invalid record range")
)

// Level is the severity of a toast.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Toast is a user-facing notification. MessageID is a translation key and
// Data its template data; localization happens when the toast is rendered.
type Toast struct {
	Level     Level
	MessageID string
	Data      map[string]any
}

// toasts collects notifications until the page is rendered.
type toasts struct {
	pending []Toast
}

func (t *toasts) push(level Level, id string, data map[string]any) {
	t.pending = append(t.pending, Toast{Level: level, MessageID: id, Data: data})
}

func (t *toasts) fail(id string, err error) {
	t.push(LevelError, id, map[string]any{"Error": err.Error()})
}

// TakeToasts returns pending toasts and clears them.
func (t *toasts) TakeToasts() []Toast {
	out := t.pending
	t.pending = nil
	return out
}

// Journal records mutations the backend has accepted.
type Journal interface {
	Record(ctx context.Context, e model.AuditEntry) error
}

type journal struct {
	j Journal
}

func (j journal) record(ctx context.Context, action, target string) {
	if j.j == nil {
		return
	}
	err := j.j.Record(ctx, model.AuditEntry{Action: action, Target: target, At: time.Now()})
	if err != nil {
		slog.Warn("audit record failed", "action", action, "target", target, "error", err)
	}
}

// Paginate returns the 1-indexed page of items. Out-of-range pages are empty.
func Paginate[T any](items []T, page, size int) []T {
	if page < 1 || size < 1 {
		return nil
	}
	start := (page - 1) * size
	if start >= len(items) {
		return nil
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// PageCount is the number of pages needed for total items.
func PageCount(total, size int) int {
	if size < 1 || total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}
