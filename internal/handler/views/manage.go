package views

import (
	"strconv"

	"github.com/a-h/templ"

	"github.com/importdesk/importdesk/internal/content"
	"github.com/importdesk/importdesk/internal/model"
	"github.com/importdesk/importdesk/internal/page"
)

var pageSizes = []int{10, 20, 50, 100}

// ManagePage lists the rows of the selected table with edit, delete and
// export actions.
func ManagePage(p *page.Manage) templ.Component {
	return Layout("ManageTitle", "/manage", p.TakeToasts(), nil, component(func(h *writer) {
		h.raw(`<p>`)
		for _, ds := range []model.DataSource{model.SourceMySQL, model.SourceMongoDB} {
			h.raw(`<a`)
			h.href(withQuery("/manage", "source", string(ds)))
			if ds == p.DataSource {
				h.raw(` class="active"`)
			}
			h.raw(`>`)
			h.t(sourceLabel(ds))
			h.raw(`</a> `)
		}
		h.raw(`</p>`)

		if len(p.Tables) == 0 {
			h.raw(`<p>`)
			h.t("NoTables")
			h.raw(`</p>`)
			return
		}

		h.raw(`<form method="get"`)
		h.attr("action", Path(h.ctx, "/manage"))
		h.raw(`><label>`)
		h.t("Table")
		h.raw(` <select name="table" onchange="this.form.submit()">`)
		for _, t := range p.Tables {
			h.raw(`<option`)
			h.attr("value", t)
			if t == p.Table {
				h.raw(` selected`)
			}
			h.raw(`>`)
			h.text(t)
			h.raw(`</option>`)
		}
		h.raw(`</select></label> <label>`)
		h.t("PageSize")
		h.raw(` <select name="size" onchange="this.form.submit()">`)
		for _, n := range pageSizes {
			h.rawf(`<option value="%d"`, n)
			if n == p.PageSize {
				h.raw(` selected`)
			}
			h.rawf(`>%d</option>`, n)
		}
		h.raw(`</select></label> <noscript><button type="submit">`)
		h.t("Apply")
		h.raw(`</button></noscript></form>`)

		h.raw(`<p><a`)
		h.href(withQuery("/manage/export", "format", "excel"))
		h.raw(`>`)
		h.t("ExportExcel")
		h.raw(`</a> · <a`)
		h.href(withQuery("/manage/export", "format", "csv"))
		h.raw(`>`)
		h.t("ExportCSV")
		h.raw(`</a></p>`)

		if p.EditIndex >= 0 && p.EditForm != nil {
			editForm(h, p)
		}

		rowsTable(h, p.Headers, p.OrderedRows(), func(i int) {
			h.raw(`<a`)
			h.href("/manage/edit/" + strconv.Itoa(i))
			h.raw(`>`)
			h.t("Edit")
			h.raw(`</a> `)
			h.button("/manage/delete/"+strconv.Itoa(i), "Delete", "DeleteRowPrompt")
		})
		h.component(Pager("/manage", p.Page, p.Total, p.PageSize, "page"))
	}))
}

func editForm(h *writer, p *page.Manage) {
	h.raw(`<section class="card"><h2>`)
	h.t("EditRow")
	h.raw(`</h2>`)
	h.form("/manage/edit", false)
	h.raw(`<table>`)
	for _, col := range p.Headers {
		h.raw(`<tr><th>`)
		h.text(col)
		h.raw(`</th><td>`)
		v := p.EditForm[col]
		switch {
		case col == model.RelationalIDColumn || col == model.DocumentIDColumn:
			h.text(model.CellString(v))
		case content.IsDataURI(v):
			cellValue(h, v)
		default:
			h.input("col."+col, model.CellString(v), "")
		}
		h.raw(`</td></tr>`)
	}
	h.raw(`</table><button type="submit">`)
	h.t("Save")
	h.raw(`</button></form> `)
	h.button("/manage/edit/cancel", "Cancel", "")
	h.raw(`</section>`)
}
