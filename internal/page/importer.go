package page

import (
	"context"
	"io"
	"log/slog"

	"github.com/importdesk/importdesk/internal/model"
)

// ImportState is a step of the staged import flow.
type ImportState string

const (
	StateIdle      ImportState = "idle"
	StatePreviewed ImportState = "previewed"
)

// DefaultPageSize is the page size used when none is configured.
const DefaultPageSize = 10

// Importer drives the upload, preview, confirm or cancel sequence.
type Importer struct {
	toasts
	journal
	backend ImportBackend

	DataSource model.DataSource
	State      ImportState

	FileName string
	FileID   string
	Headers  []string
	Rows     []model.Row
	Total    int
	Page     int
	PageSize int

	PreviewLoading bool
	Importing      bool
}

// NewImporter creates the import page view-model.
func NewImporter(b ImportBackend, j Journal, pageSize int) *Importer {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &Importer{
		journal:    journal{j},
		backend:    b,
		DataSource: model.SourceMySQL,
		State:      StateIdle,
		PageSize:   pageSize,
	}
}

// SetDataSource selects where the next import goes.
func (p *Importer) SetDataSource(ds model.DataSource) {
	p.DataSource = ds
}

// OrderedRows returns the current preview rows in header order.
func (p *Importer) OrderedRows() []model.OrderedRow {
	out := make([]model.OrderedRow, 0, len(p.Rows))
	for _, r := range p.Rows {
		out = append(out, model.OrderRow(p.Headers, r))
	}
	return out
}

// HandleFileChange uploads a file for preview. A file already staged is
// cancelled first. A nil reader means no file was chosen.
func (p *Importer) HandleFileChange(ctx context.Context, name string, r io.Reader) error {
	if r == nil {
		p.push(LevelWarning, "ToastSelectFileFirst", nil)
		return ErrNoStagedFile
	}
	if p.State == StatePreviewed {
		p.Cancel(ctx)
	}

	p.PreviewLoading = true
	defer func() { p.PreviewLoading = false }()

	preview, err := p.backend.Preview(ctx, name, r, p.DataSource)
	if err != nil {
		slog.Error("preview failed", "file", name, "error", err)
		p.fail("ToastPreviewFailed", err)
		p.reset()
		return err
	}

	p.State = StatePreviewed
	p.FileName = name
	p.FileID = preview.FileID
	p.Headers = preview.Headers
	p.Rows = preview.Content
	p.Total = preview.Total
	p.Page = 1
	slog.Info("file previewed", "file", name, "file_id", preview.FileID, "rows", preview.Total)
	return nil
}

// ChangePage re-fetches a page of the staged file.
func (p *Importer) ChangePage(ctx context.Context, page, size int) error {
	if p.State != StatePreviewed {
		return ErrNoStagedFile
	}
	if size < 1 {
		size = p.PageSize
	}
	p.PreviewLoading = true
	defer func() { p.PreviewLoading = false }()

	data, err := p.backend.PreviewPage(ctx, p.FileID, page, size)
	if err != nil {
		p.fail("ToastPreviewPageFailed", err)
		return err
	}
	p.Rows = data.Content
	p.Total = data.Total
	p.Page = page
	p.PageSize = size
	return nil
}

// Confirm imports the staged file into the selected data source.
func (p *Importer) Confirm(ctx context.Context) error {
	if p.State != StatePreviewed || p.FileID == "" {
		p.push(LevelWarning, "ToastSelectFileFirst", nil)
		return ErrNoStagedFile
	}

	p.Importing = true
	defer func() { p.Importing = false }()

	if err := p.backend.ConfirmImport(ctx, p.FileID, p.DataSource); err != nil {
		slog.Error("import failed", "file_id", p.FileID, "error", err)
		p.fail("ToastImportFailed", err)
		return err
	}

	if p.DataSource == model.SourceBoth {
		p.push(LevelSuccess, "ToastImportedBoth", nil)
	} else {
		p.push(LevelSuccess, "ToastImported", map[string]any{"Source": string(p.DataSource)})
	}
	p.record(ctx, model.ActionImport, p.FileName+" -> "+string(p.DataSource))
	p.reset()
	return nil
}

// Cancel drops the staged file. Local state is cleared even when the
// backend call fails.
func (p *Importer) Cancel(ctx context.Context) {
	if p.FileID != "" {
		if err := p.backend.CancelImport(ctx, p.FileID); err != nil {
			slog.Warn("cancel import failed", "file_id", p.FileID, "error", err)
		}
	}
	p.reset()
}

func (p *Importer) reset() {
	p.State = StateIdle
	p.FileName = ""
	p.FileID = ""
	p.Headers = nil
	p.Rows = nil
	p.Total = 0
	p.Page = 0
}
