package views

import (
	"strconv"

	"github.com/a-h/templ"

	"github.com/importdesk/importdesk/internal/model"
	"github.com/importdesk/importdesk/internal/page"
)

// HomePage shows the statistics of both data sources.
func HomePage(p *page.Home) templ.Component {
	return Layout("HomeTitle", "/home", p.TakeToasts(), nil, component(func(h *writer) {
		h.raw(`<div class="cards">`)
		statsCard(h, "SourceMySQL", p.MySQL)
		statsCard(h, "SourceMongoDB", p.MongoDB)
		h.raw(`</div>`)
	}))
}

func statsCard(h *writer, label string, s model.Stats) {
	h.raw(`<div class="card"><h2>`)
	h.t(label)
	h.raw(`</h2><div class="count">`)
	h.text(strconv.Itoa(s.Count))
	h.raw(`</div><p>`)
	h.t("StatsRows")
	h.raw(`</p><p>`)
	h.t("StatsTables")
	h.raw(`: `)
	h.text(strconv.Itoa(len(s.Tables)))
	h.raw(`</p><p>`)
	h.t("StatsLastImport")
	h.raw(`: `)
	if s.LastImport == "" {
		h.t("Never")
	} else {
		h.text(s.LastImport.Display())
	}
	h.raw(`</p></div>`)
}
