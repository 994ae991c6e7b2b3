package views

import (
	"log/slog"
	"strconv"

	"github.com/a-h/templ"

	"github.com/importdesk/importdesk/internal/content"
	"github.com/importdesk/importdesk/internal/model"
	"github.com/importdesk/importdesk/internal/page"
)

const thumbnailSize = 120

var importSources = []model.DataSource{model.SourceMySQL, model.SourceMongoDB, model.SourceBoth}

// ImportPage shows the upload form and, once a file is staged, its preview.
func ImportPage(p *page.Importer) templ.Component {
	return Layout("ImportTitle", "/import", p.TakeToasts(), nil, component(func(h *writer) {
		h.form("/import/preview", true)
		h.raw(`<fieldset><legend>`)
		h.t("DataSource")
		h.raw(`</legend>`)
		for _, ds := range importSources {
			h.raw(`<label><input type="radio" name="dataSource"`)
			h.attr("value", string(ds))
			if ds == p.DataSource {
				h.raw(` checked`)
			}
			h.raw(`> `)
			h.t(sourceLabel(ds))
			h.raw(`</label> `)
		}
		h.raw(`</fieldset><p><input type="file" name="file" accept=".xlsx,.xls,.csv" required> <button type="submit">`)
		h.t("PreviewButton")
		h.raw(`</button></p></form>`)

		if p.State != page.StatePreviewed {
			h.raw(`<p>`)
			h.t("ImportHint")
			h.raw(`</p>`)
			return
		}

		h.raw(`<h2>`)
		h.text(p.FileName)
		h.raw(`</h2><p>`)
		h.tp("PreviewTotal", p.Total)
		h.raw(` · `)
		h.t(sourceLabel(p.DataSource))
		h.raw(`</p>`)
		rowsTable(h, p.Headers, p.OrderedRows(), nil)
		h.component(Pager("/import", p.Page, p.Total, p.PageSize, "page", "size", strconv.Itoa(p.PageSize)))
		h.button("/import/confirm", "ConfirmImport", "ConfirmImportPrompt")
		h.raw(` `)
		h.button("/import/cancel", "CancelImport", "")
	}))
}

func sourceLabel(ds model.DataSource) string {
	switch ds {
	case model.SourceMongoDB:
		return "SourceMongoDB"
	case model.SourceBoth:
		return "SourceBoth"
	}
	return "SourceMySQL"
}

// rowsTable renders rows in header order. actions, when set, renders the
// last column of each row.
func rowsTable(h *writer, headers []string, rows []model.OrderedRow, actions func(i int)) {
	h.raw(`<table><thead><tr>`)
	for _, col := range headers {
		h.raw(`<th>`)
		h.text(col)
		h.raw(`</th>`)
	}
	if actions != nil {
		h.raw(`<th></th>`)
	}
	h.raw(`</tr></thead><tbody>`)
	for i, row := range rows {
		h.raw(`<tr>`)
		for _, cell := range row {
			h.raw(`<td>`)
			cellValue(h, cell.Value)
			h.raw(`</td>`)
		}
		if actions != nil {
			h.raw(`<td>`)
			actions(i)
			h.raw(`</td>`)
		}
		h.raw(`</tr>`)
	}
	h.raw(`</tbody></table>`)
}

func cellValue(h *writer, v any) {
	if !content.IsDataURI(v) {
		h.text(model.CellString(v))
		return
	}
	src := v.(string)
	thumb, err := content.Thumbnail(src, thumbnailSize)
	if err != nil {
		slog.Debug("image cell not decodable", "error", err)
		h.t("ImageUnreadable")
		return
	}
	h.raw(`<img class="cell"`)
	h.attr("src", thumb)
	if info, err := content.ImageInfo(src); err == nil {
		h.attr("title", info.Format+" "+strconv.Itoa(info.Width)+"×"+strconv.Itoa(info.Height))
	}
	h.raw(`>`)
}
