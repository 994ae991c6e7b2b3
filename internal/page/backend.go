package page

import (
	"context"
	"io"

	"github.com/importdesk/importdesk/internal/api"
	"github.com/importdesk/importdesk/internal/model"
)

// StatsBackend serves the home page.
type StatsBackend interface {
	Stats(ctx context.Context, source model.DataSource) (*model.Stats, error)
}

// ImportBackend serves the staged import flow.
type ImportBackend interface {
	Preview(ctx context.Context, filename string, r io.Reader, source model.DataSource) (*model.Preview, error)
	PreviewPage(ctx context.Context, fileID string, page, size int) (*model.TablePage, error)
	ConfirmImport(ctx context.Context, fileID string, source model.DataSource) error
	CancelImport(ctx context.Context, fileID string) error
}

// TableBackend serves table browsing and row edits.
type TableBackend interface {
	Tables(ctx context.Context, source model.DataSource) ([]string, error)
	TableData(ctx context.Context, source model.DataSource, table string, page, size int) (*model.TablePage, error)
	UpdateRow(ctx context.Context, source model.DataSource, table, id string, row model.Row) error
	DeleteRow(ctx context.Context, source model.DataSource, table, id string) error
	ExportURL(source model.DataSource, table string, format api.ExportFormat) string
}

// BankBackend serves OCR and PDF question banks.
type BankBackend interface {
	Recognize(ctx context.Context, bank model.QuestionBank, filename string, r io.Reader, paperName string) (*api.Recognition, error)
	SavePaper(ctx context.Context, bank model.QuestionBank, req api.SaveRequest) (int64, error)
	Papers(ctx context.Context, bank model.QuestionBank) ([]model.Paper, error)
	Paper(ctx context.Context, bank model.QuestionBank, id int64) (*model.Paper, error)
	DeletePaper(ctx context.Context, bank model.QuestionBank, id int64) error
	UpdateQuestion(ctx context.Context, bank model.QuestionBank, q model.Question) error
	DeleteQuestion(ctx context.Context, bank model.QuestionBank, id int64) error
	Search(ctx context.Context, query string) (*model.SearchResult, error)
}

// DocBackend serves the multi-file document page.
type DocBackend interface {
	UploadDoc(ctx context.Context, filename string, r io.Reader) (*api.DocUpload, error)
	SaveDoc(ctx context.Context, paperName string, pages []model.Question) (int64, error)
	DocPapers(ctx context.Context) ([]model.Paper, error)
	DocPaper(ctx context.Context, id int64) (*model.Paper, error)
	UpdateDocPage(ctx context.Context, p model.Question) error
	DeleteDocPage(ctx context.Context, id int64) error
	DeleteDoc(ctx context.Context, id int64) error
	SearchDocs(ctx context.Context, query string) ([]model.Paper, error)
}

var (
	_ StatsBackend  = (*api.Client)(nil)
	_ ImportBackend = (*api.Client)(nil)
	_ TableBackend  = (*api.Client)(nil)
	_ BankBackend   = (*api.Client)(nil)
	_ DocBackend    = (*api.Client)(nil)
)
