package views

import (
	"strconv"

	"github.com/a-h/templ"

	"github.com/importdesk/importdesk/internal/page"
)

// DocPage shows the document upload tab or the saved document history.
func DocPage(p *page.Doc) templ.Component {
	return Layout("DocTitle", "/doc", p.TakeToasts(), nil, component(func(h *writer) {
		h.raw(`<p class="tabs">`)
		for _, tab := range []struct{ id, label string }{{page.TabUpload, "TabUpload"}, {page.TabHistory, "TabHistory"}} {
			h.raw(`<a`)
			h.href(withQuery("/doc", "tab", tab.id))
			if p.Tab == tab.id {
				h.raw(` class="active"`)
			}
			h.raw(`>`)
			h.t(tab.label)
			h.raw(`</a> `)
		}
		h.raw(`</p>`)

		if p.Tab == page.TabHistory {
			docHistory(h, p)
		} else {
			docUpload(h, p)
		}
		h.raw(progressScript)
	}))
}

func docUpload(h *writer, p *page.Doc) {
	h.raw(`<form method="post" enctype="multipart/form-data"`)
	h.attr("action", Path(h.ctx, "/doc/process"))
	h.attr("data-progress", Path(h.ctx, "/doc/progress"))
	h.raw(`>`)
	h.csrf()
	h.raw(`<input type="file" name="files" accept=".pdf,.doc,.docx" multiple required> <button type="submit">`)
	h.t("ProcessButton")
	h.raw(`</button> <progress id="progress" max="100" hidden`)
	h.attr("value", strconv.Itoa(p.Progress()))
	h.raw(`></progress></form>`)

	if len(p.Records) == 0 {
		return
	}
	h.raw(`<h2>`)
	h.tp("PagesCount", len(p.Records))
	h.raw(`</h2>`)
	first := (p.ResultsPage - 1) * p.PageSize
	for i, q := range p.VisibleRecords() {
		localQuestion(h, "/doc/records/", first+i, q)
	}
	h.component(Pager("/doc", p.ResultsPage, len(p.Records), p.PageSize, "page", "tab", page.TabUpload))
	h.button("/doc/save", "SaveToDatabase", "")
}

func docHistory(h *writer, p *page.Doc) {
	h.form("/doc/search", false)
	h.input("query", p.Query, "SearchPlaceholder")
	h.raw(` <button type="submit">`)
	h.t("Search")
	h.raw(`</button></form> `)
	if p.Searching {
		h.button("/doc/search/clear", "ClearSearch", "")
	}
	papersTable(h, "/doc", p.Papers)

	if p.Current == nil {
		return
	}
	h.raw(`<h2>`)
	h.text(p.Current.PaperName)
	h.raw(`</h2>`)
	h.button("/doc/close", "Close", "")
	for _, q := range p.VisibleDetail() {
		savedQuestion(h, "/doc/pages/", q, true)
	}
	h.component(Pager("/doc", p.Detail, len(p.Current.Questions), p.PageSize, "detail", "tab", page.TabHistory))
}
