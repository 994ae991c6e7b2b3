// Package views renders the console pages as templ components.
package views

//go:generate templ generate

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	appI18n "github.com/importdesk/importdesk/internal/i18n"
	"github.com/importdesk/importdesk/internal/model"
)

// writer collects the first write error so markup can be emitted without
// checking every call.
type writer struct {
	ctx context.Context
	w   io.Writer
	err error
}

func (h *writer) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *writer) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *writer) rawf(format string, args ...any) {
	h.raw(fmt.Sprintf(format, args...))
}

func (h *writer) t(id string) {
	h.text(appI18n.T(h.ctx, id))
}

func (h *writer) tp(id string, n int) {
	h.text(appI18n.Tp(h.ctx, id, n))
}

func (h *writer) td(id string, data map[string]any) {
	h.text(appI18n.Td(h.ctx, id, data))
}

func (h *writer) attr(name, value string) {
	h.rawf(` %s="%s"`, name, templ.EscapeString(value))
}

func (h *writer) href(path string) {
	h.attr("href", string(templ.URL(Path(h.ctx, path))))
}

func (h *writer) component(c templ.Component) {
	if h.err == nil {
		h.err = c.Render(h.ctx, h.w)
	}
}

// csrf writes the hidden CSRF form field.
func (h *writer) csrf() {
	h.component(csrfField())
}

// form opens a POST form to path.
func (h *writer) form(path string, multipart bool) {
	h.raw(`<form method="post"`)
	h.attr("action", Path(h.ctx, path))
	if multipart {
		h.raw(` enctype="multipart/form-data"`)
	}
	h.raw(`>`)
	h.csrf()
}

// button writes a one-button POST form.
func (h *writer) button(path, label, confirm string) {
	h.raw(`<form method="post" class="inline"`)
	h.attr("action", Path(h.ctx, path))
	if confirm != "" {
		h.attr("onsubmit", "return confirm("+strconv.Quote(appI18n.T(h.ctx, confirm))+")")
	}
	h.raw(`>`)
	h.csrf()
	h.raw(`<button type="submit">`)
	h.t(label)
	h.raw(`</button></form>`)
}

func (h *writer) input(name, value, placeholder string) {
	h.raw(`<input type="text"`)
	h.attr("name", name)
	h.attr("value", value)
	if placeholder != "" {
		h.attr("placeholder", appI18n.T(h.ctx, placeholder))
	}
	h.raw(`>`)
}

func component(fn func(h *writer)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &writer{ctx: ctx, w: w}
		fn(h)
		return h.err
	})
}

// Path prefixes an application path with the configured base path.
func Path(ctx context.Context, p string) string {
	return model.BasePathFromContext(ctx) + p
}

// withQuery appends query parameters to path.
func withQuery(path string, kv ...string) string {
	q := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		q.Set(kv[i], kv[i+1])
	}
	return path + "?" + q.Encode()
}

// pageLink is path with param set to p. extra query pairs are kept.
func pageLink(path, param string, p int, extra []string) string {
	return withQuery(path, append([]string{param, strconv.Itoa(p)}, extra...)...)
}

type navItem struct {
	path, label string
}

var nav = []navItem{
	{"/home", "NavHome"},
	{"/import", "NavImport"},
	{"/manage", "NavManage"},
	{"/ocr", "NavBank"},
	{"/doc", "NavDoc"},
}
