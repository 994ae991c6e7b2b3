package views

import (
	"strconv"

	"github.com/a-h/templ"

	"github.com/importdesk/importdesk/internal/content"
	"github.com/importdesk/importdesk/internal/model"
	"github.com/importdesk/importdesk/internal/page"
)

const progressScript = `<script>
document.querySelectorAll("form[data-progress]").forEach(function (f) {
  f.addEventListener("submit", function () {
    var bar = document.getElementById("progress");
    bar.hidden = false;
    setInterval(function () {
      fetch(f.dataset.progress).then(function (r) { return r.json(); }).then(function (d) { bar.value = d.progress; });
    }, 300);
  });
});
</script>`

// BankPage shows recognition results, the paper history and one opened
// paper.
func BankPage(p *page.Bank) templ.Component {
	var head templ.Component
	if p.AutoOpen != nil {
		head = autoOpen("/ocr/papers/"+strconv.FormatInt(*p.AutoOpen, 10), page.AutoOpenDelay.Seconds())
	}
	title := "BankTitleOCR"
	if p.Kind == model.BankPDF {
		title = "BankTitlePDF"
	}
	return Layout(title, "/ocr", p.TakeToasts(), head, component(func(h *writer) {
		h.raw(`<form method="post" enctype="multipart/form-data"`)
		h.attr("action", Path(h.ctx, "/ocr/upload"))
		h.attr("data-progress", Path(h.ctx, "/ocr/progress"))
		h.raw(`>`)
		h.csrf()
		h.raw(`<input type="file" name="file" required> `)
		h.input("paperName", "", "PaperNamePlaceholder")
		h.raw(` <button type="submit">`)
		h.t("UploadButton")
		h.raw(`</button> <progress id="progress" max="100" hidden`)
		h.attr("value", strconv.Itoa(p.Progress()))
		h.raw(`></progress></form>`)

		if len(p.Results) > 0 {
			bankResults(h, p)
		}

		h.raw(`<h2>`)
		h.t("History")
		h.raw(`</h2>`)
		h.form("/ocr/search", false)
		h.input("query", p.Query, "SearchPlaceholder")
		h.raw(` <button type="submit">`)
		h.t("Search")
		h.raw(`</button></form>`)
		if p.Search != nil {
			h.raw(`<p>`)
			h.td("SearchSummary", map[string]any{"Query": p.Query, "Count": p.Search.MatchCount, "Type": p.Search.SearchType})
			h.raw(`</p>`)
		}
		papersTable(h, "/ocr", p.Papers)

		if p.Current != nil {
			h.raw(`<h2>`)
			h.text(p.Current.PaperName)
			h.raw(`</h2>`)
			h.button("/ocr/close", "Close", "")
			for _, q := range p.VisibleDetail() {
				savedQuestion(h, "/ocr/questions/", q, false)
			}
			h.component(Pager("/ocr", p.Detail, len(p.Current.Questions), p.PageSize, "detail"))
		}
		h.raw(progressScript)
	}))
}

func bankResults(h *writer, p *page.Bank) {
	h.raw(`<h2>`)
	h.tp("ResultsCount", len(p.Results))
	h.raw(`</h2>`)

	h.form("/ocr/batch", false)
	h.raw(`<fieldset><legend>`)
	h.t("BatchEdit")
	h.raw(`</legend><label>`)
	h.t("From")
	h.raw(` <input type="number" name="from" min="1" size="4"></label> <label>`)
	h.t("To")
	h.raw(` <input type="number" name="to" min="1" size="4"></label> `)
	h.input("questionType", "", "QuestionType")
	h.raw(` `)
	h.input("paperName", "", "PaperName")
	h.raw(` `)
	h.input("year", "", "Year")
	h.raw(` <select name="useImageOnly"><option value="">`)
	h.t("UseImageOnly")
	h.raw(`</option><option value="true">`)
	h.t("Yes")
	h.raw(`</option><option value="false">`)
	h.t("No")
	h.raw(`</option></select> <button type="submit">`)
	h.t("Apply")
	h.raw(`</button></fieldset></form>`)

	first := (p.ResultsPage - 1) * p.PageSize
	for i, q := range p.VisibleResults() {
		localQuestion(h, "/ocr/results/", first+i, q)
	}
	h.component(Pager("/ocr", p.ResultsPage, len(p.Results), p.PageSize, "page"))

	h.form("/ocr/save", false)
	h.input("paperName", p.PaperName, "PaperName")
	h.raw(` `)
	h.input("year", "", "Year")
	h.raw(` <button type="submit">`)
	h.t("SaveToDatabase")
	h.raw(`</button></form>`)
}

func autoOpen(path string, seconds float64) templ.Component {
	return component(func(h *writer) {
		h.raw(`<meta http-equiv="refresh"`)
		h.attr("content", strconv.FormatFloat(seconds, 'f', -1, 64)+";url="+Path(h.ctx, path))
		h.raw(`>`)
	})
}

// questionFields renders the editable fields of a question or page.
func questionFields(h *writer, q model.Question, pageMode bool) {
	if pageMode {
		h.input("pageNumber", string(q.PageNumber), "PageNumber")
	} else {
		h.input("questionNumber", string(q.QuestionNumber), "QuestionNumber")
		h.raw(` `)
		h.input("questionType", q.QuestionType, "QuestionType")
	}
	h.raw(` `)
	h.input("paperName", q.PaperName, "PaperName")
	if !pageMode {
		h.raw(` `)
		h.input("year", string(q.Year), "Year")
		h.raw(` <label><input type="checkbox" name="useImageOnly" value="true"`)
		if q.UseImageOnly {
			h.raw(` checked`)
		}
		h.raw(`> `)
		h.t("UseImageOnly")
		h.raw(`</label>`)
	}
	h.raw(`<br><textarea name="content" rows="4" cols="80">`)
	h.text(q.Content)
	h.raw(`</textarea>`)
}

func questionPreview(h *writer, q model.Question) {
	h.raw(`<div class="preview">`)
	if q.ImageData != "" {
		cellValue(h, q.ImageData)
	}
	if !q.UseImageOnly {
		html, err := content.Render(q.Content)
		if err != nil {
			h.text(q.Content)
		} else {
			h.raw(html)
		}
	}
	h.raw(`</div>`)
}

// localQuestion renders an unsaved record at index with edit and delete
// actions under prefix.
func localQuestion(h *writer, prefix string, index int, q model.Question) {
	idx := strconv.Itoa(index)
	h.raw(`<div class="card">`)
	questionPreview(h, q)
	h.form(prefix+idx+"/edit", false)
	questionFields(h, q, prefix == "/doc/records/")
	h.raw(` <button type="submit">`)
	h.t("Save")
	h.raw(`</button></form> `)
	h.button(prefix+idx+"/delete", "Delete", "DeleteQuestionPrompt")
	h.raw(`</div>`)
}

// savedQuestion renders a stored record with edit and delete actions that
// go straight to the backend.
func savedQuestion(h *writer, prefix string, q model.Question, pageMode bool) {
	if q.ID == nil {
		return
	}
	id := strconv.FormatInt(*q.ID, 10)
	h.raw(`<div class="card">`)
	questionPreview(h, q)
	h.form(prefix+id+"/edit", false)
	questionFields(h, q, pageMode)
	h.raw(` <button type="submit">`)
	h.t("Save")
	h.raw(`</button></form> `)
	h.button(prefix+id+"/delete", "Delete", "DeleteQuestionPrompt")
	h.raw(`</div>`)
}

func papersTable(h *writer, base string, papers []model.Paper) {
	if len(papers) == 0 {
		h.raw(`<p>`)
		h.t("NoPapers")
		h.raw(`</p>`)
		return
	}
	h.raw(`<table><thead><tr><th>`)
	h.t("PaperName")
	h.raw(`</th><th>`)
	h.t("Year")
	h.raw(`</th><th>`)
	h.t("QuestionCount")
	h.raw(`</th><th>`)
	h.t("CreatedAt")
	h.raw(`</th><th></th></tr></thead><tbody>`)
	for _, p := range papers {
		id := strconv.FormatInt(p.ID, 10)
		h.raw(`<tr><td>`)
		h.text(p.PaperName)
		h.raw(`</td><td>`)
		h.text(string(p.Year))
		h.raw(`</td><td>`)
		h.text(strconv.Itoa(p.QuestionCount))
		h.raw(`</td><td>`)
		h.text(p.CreateTime.Display())
		h.raw(`</td><td><a`)
		h.href(base + "/papers/" + id)
		h.raw(`>`)
		h.t("View")
		h.raw(`</a> `)
		h.button(base+"/papers/"+id+"/delete", "Delete", "DeletePaperPrompt")
		h.raw(`</td></tr>`)
	}
	h.raw(`</tbody></table>`)
}
