package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/importdesk/importdesk/internal/model"
)

// ExportFormat is a table export file format.
type ExportFormat string

const (
	ExportExcel ExportFormat = "excel"
	ExportCSV   ExportFormat = "csv"
)

// Extension returns the file extension for the format.
func (f ExportFormat) Extension() string {
	if f == ExportCSV {
		return ".csv"
	}
	return ".xlsx"
}

func (f ExportFormat) path() string {
	if f == ExportCSV {
		return "/api/excel/exportToCsv"
	}
	return "/api/excel/exportToExcel"
}

// Preview uploads a spreadsheet for server-side parsing. Nothing is imported
// until ConfirmImport is called with the returned FileID.
func (c *Client) Preview(ctx context.Context, filename string, r io.Reader, source model.DataSource) (*model.Preview, error) {
	var p model.Preview
	err := c.postMultipart(ctx, "/api/excel/preview", upload{
		field:    "file",
		filename: filename,
		body:     r,
		fields:   map[string]string{"dataSource": string(source)},
	}, &p)
	if err != nil {
		return nil, fmt.Errorf("preview %s: %w", filename, err)
	}
	return &p, nil
}

// PreviewPage fetches one page of a staged file's rows.
func (c *Client) PreviewPage(ctx context.Context, fileID string, page, size int) (*model.TablePage, error) {
	q := url.Values{}
	q.Set("fileName", fileID)
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	var p model.TablePage
	if err := c.getJSON(ctx, "/api/excel/previewData", q, &p); err != nil {
		return nil, fmt.Errorf("preview page %d: %w", page, err)
	}
	return &p, nil
}

type importRequest struct {
	FileName   string           `json:"fileName"`
	DataSource model.DataSource `json:"dataSource,omitempty"`
}

// ConfirmImport commits a staged file into the given data source.
func (c *Client) ConfirmImport(ctx context.Context, fileID string, source model.DataSource) error {
	if err := c.postJSON(ctx, "/api/excel/confirmImport", importRequest{FileName: fileID, DataSource: source}, nil); err != nil {
		return fmt.Errorf("confirm import: %w", err)
	}
	return nil
}

// CancelImport tells the backend to drop a staged file.
func (c *Client) CancelImport(ctx context.Context, fileID string) error {
	if err := c.postJSON(ctx, "/api/excel/cancelImport", importRequest{FileName: fileID}, nil); err != nil {
		return fmt.Errorf("cancel import: %w", err)
	}
	return nil
}

// Tables lists the table (or collection) names of a data source.
func (c *Client) Tables(ctx context.Context, source model.DataSource) ([]string, error) {
	q := url.Values{}
	q.Set("dataSource", string(source))
	var tables []string
	if err := c.getJSON(ctx, "/api/excel/tables", q, &tables); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

// TableData fetches one page of an imported table.
func (c *Client) TableData(ctx context.Context, source model.DataSource, table string, page, size int) (*model.TablePage, error) {
	q := url.Values{}
	q.Set("tableName", table)
	q.Set("dataSource", string(source))
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	var p model.TablePage
	if err := c.getJSON(ctx, "/api/excel/data", q, &p); err != nil {
		return nil, fmt.Errorf("table %s page %d: %w", table, page, err)
	}
	return &p, nil
}

// ExportURL is the backend URL streaming a table export.
func (c *Client) ExportURL(source model.DataSource, table string, format ExportFormat) string {
	q := url.Values{}
	q.Set("tableName", table)
	q.Set("dataSource", string(source))
	return c.URL(format.path(), q)
}

// Download streams a table export into w and returns the number of bytes written.
func (c *Client) Download(ctx context.Context, source model.DataSource, table string, format ExportFormat, w io.Writer) (int64, error) {
	q := url.Values{}
	q.Set("tableName", table)
	q.Set("dataSource", string(source))
	resp, err := c.do(ctx, http.MethodGet, format.path(), q, nil, "")
	if err != nil {
		return 0, fmt.Errorf("export %s: %w", table, err)
	}
	defer resp.Body.Close()
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("write export %s: %w", table, err)
	}
	return n, nil
}
