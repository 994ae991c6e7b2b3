package page

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/importdesk/importdesk/internal/api"
	"github.com/importdesk/importdesk/internal/model"
)

// Manage browses imported tables and edits or deletes their rows.
type Manage struct {
	toasts
	journal
	backend TableBackend

	DataSource model.DataSource
	Tables     []string
	Table      string
	Headers    []string
	Rows       []model.Row
	Total      int
	Page       int
	PageSize   int
	Loading    bool

	// EditIndex is the row being edited, or -1.
	EditIndex int
	EditForm  model.Row
}

// NewManage creates the manage page view-model.
func NewManage(b TableBackend, j Journal, pageSize int) *Manage {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &Manage{
		journal:    journal{j},
		backend:    b,
		DataSource: model.SourceMySQL,
		Page:       1,
		PageSize:   pageSize,
		EditIndex:  -1,
	}
}

// OrderedRows returns the loaded rows rebuilt in header order.
func (m *Manage) OrderedRows() []model.OrderedRow {
	out := make([]model.OrderedRow, 0, len(m.Rows))
	for _, r := range m.Rows {
		out = append(out, model.OrderRow(m.Headers, r))
	}
	return out
}

// SetDataSource switches source and reloads its tables.
func (m *Manage) SetDataSource(ctx context.Context, ds model.DataSource) error {
	if !ds.Browsable() {
		return fmt.Errorf("data source %s cannot be browsed", ds)
	}
	m.DataSource = ds
	m.Table = ""
	m.Headers = nil
	m.Rows = nil
	m.Total = 0
	m.Page = 1
	return m.LoadTables(ctx)
}

// LoadTables lists tables and selects the first one.
func (m *Manage) LoadTables(ctx context.Context) error {
	m.Loading = true
	defer func() { m.Loading = false }()

	tables, err := m.backend.Tables(ctx, m.DataSource)
	if err != nil {
		slog.Error("load tables", "source", m.DataSource, "error", err)
		m.fail("ToastLoadTablesFailed", err)
		return err
	}
	m.Tables = tables
	if len(tables) == 0 {
		m.Table = ""
		return nil
	}
	m.Table = tables[0]
	m.Page = 1
	return m.LoadTableData(ctx)
}

// Refresh reloads the table list and the current page. The selected table
// stays selected while it still exists.
func (m *Manage) Refresh(ctx context.Context) error {
	tables, err := m.backend.Tables(ctx, m.DataSource)
	if err != nil {
		slog.Error("refresh tables", "source", m.DataSource, "error", err)
		m.fail("ToastLoadTablesFailed", err)
		return err
	}
	m.Tables = tables
	if !slices.Contains(tables, m.Table) {
		m.Page = 1
		m.Headers, m.Rows, m.Total = nil, nil, 0
		if len(tables) == 0 {
			m.Table = ""
			return nil
		}
		m.Table = tables[0]
	}
	return m.LoadTableData(ctx)
}

// SelectTable switches table and loads its first page.
func (m *Manage) SelectTable(ctx context.Context, table string) error {
	m.Table = table
	m.Page = 1
	return m.LoadTableData(ctx)
}

// ChangePage loads another page of the current table.
func (m *Manage) ChangePage(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}
	m.Page = page
	return m.LoadTableData(ctx)
}

// ChangeSize changes the page size and goes back to the first page.
func (m *Manage) ChangeSize(ctx context.Context, size int) error {
	if size < 1 {
		size = DefaultPageSize
	}
	m.PageSize = size
	m.Page = 1
	return m.LoadTableData(ctx)
}

// LoadTableData fetches the current page of the selected table.
func (m *Manage) LoadTableData(ctx context.Context) error {
	if m.Table == "" {
		return nil
	}
	m.Loading = true
	defer func() { m.Loading = false }()

	data, err := m.backend.TableData(ctx, m.DataSource, m.Table, m.Page, m.PageSize)
	if err != nil {
		slog.Error("load table data", "table", m.Table, "page", m.Page, "error", err)
		m.fail("ToastLoadDataFailed", err)
		return err
	}
	m.Rows = data.Content
	m.Total = data.Total
	if data.Headers != nil {
		m.Headers = data.Headers
	}
	return nil
}

// BeginEdit copies a row into the edit form.
func (m *Manage) BeginEdit(index int) error {
	if index < 0 || index >= len(m.Rows) {
		return fmt.Errorf("row %d out of range", index)
	}
	form := make(model.Row, len(m.Rows[index]))
	for k, v := range m.Rows[index] {
		form[k] = v
	}
	m.EditIndex = index
	m.EditForm = form
	return nil
}

// CancelEdit closes the edit form.
func (m *Manage) CancelEdit() {
	m.EditIndex = -1
	m.EditForm = nil
}

// ConfirmEdit applies values to the form and sends the update. Identifier
// resolution happens before any request is made.
func (m *Manage) ConfirmEdit(ctx context.Context, values map[string]string) error {
	if m.EditIndex < 0 || m.EditForm == nil {
		return fmt.Errorf("no row is being edited")
	}
	for k, v := range values {
		if k == model.RelationalIDColumn || k == model.DocumentIDColumn {
			continue
		}
		old := m.EditForm[k]
		if v == model.CellString(old) {
			continue
		}
		m.EditForm[k] = editedValue(old, v)
	}

	id, err := model.ResolveRowID(m.DataSource, m.EditForm)
	if err != nil {
		m.fail("ToastMissingID", err)
		return err
	}

	if err := m.backend.UpdateRow(ctx, m.DataSource, m.Table, id.Value, m.EditForm); err != nil {
		slog.Error("update row", "table", m.Table, "id", id.Value, "error", err)
		m.fail("ToastUpdateFailed", err)
		return err
	}

	if m.EditIndex < len(m.Rows) {
		m.Rows[m.EditIndex] = m.EditForm
	}
	m.push(LevelSuccess, "ToastUpdated", nil)
	m.record(ctx, model.ActionUpdateRow, m.Table+"/"+id.Value)
	m.CancelEdit()
	return nil
}

// Delete removes a row, keyed by the value of the first header, and reloads
// the current page once on success.
func (m *Manage) Delete(ctx context.Context, index int) error {
	if index < 0 || index >= len(m.Rows) || len(m.Headers) == 0 {
		return fmt.Errorf("row %d out of range", index)
	}
	id := model.CellString(m.Rows[index][m.Headers[0]])
	if id == "" {
		err := fmt.Errorf("%s: %w", m.Headers[0], model.ErrMissingID)
		m.fail("ToastMissingID", err)
		return err
	}

	if err := m.backend.DeleteRow(ctx, m.DataSource, m.Table, id); err != nil {
		slog.Error("delete row", "table", m.Table, "id", id, "error", err)
		m.fail("ToastDeleteFailed", err)
		return err
	}
	m.push(LevelSuccess, "ToastDeleted", nil)
	m.record(ctx, model.ActionDeleteRow, m.Table+"/"+id)
	return m.LoadTableData(ctx)
}

// editedValue converts text typed into the edit form back to the kind of
// the cell it replaces. Text that does not fit that kind stays a string.
func editedValue(old any, v string) any {
	switch old.(type) {
	case float64, float32, int, int64, json.Number:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	case bool:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return v
}

// ExportURL is where the browser goes to download the current table.
func (m *Manage) ExportURL(ctx context.Context, format api.ExportFormat) (string, bool) {
	if m.Table == "" {
		return "", false
	}
	m.record(ctx, model.ActionExport, m.Table+format.Extension())
	return m.backend.ExportURL(m.DataSource, m.Table, format), true
}
