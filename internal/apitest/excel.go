package apitest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/importdesk/importdesk/internal/model"
)

const previewPageSize = 10

func (b *Backend) preview(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "no file"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	defer f.Close()

	headers, rows, err := parseSheet(fh.Filename, f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	b.mu.Lock()
	b.nextFile++
	fileID := fmt.Sprintf("preview_%d", b.nextFile)
	b.staged[fileID] = &staged{name: strings.TrimSuffix(fh.Filename, filepath.Ext(fh.Filename)), headers: headers, rows: rows}
	b.mu.Unlock()

	_, end := pageBounds(len(rows), 1, previewPageSize)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"headers": headers,
		"content": rows[:end],
		"total":   len(rows),
		"fileId":  fileID,
	})
}

// parseSheet reads the first sheet of an xlsx workbook or a csv file. The
// first row holds the headers.
func parseSheet(name string, r io.Reader) ([]string, []model.Row, error) {
	var records [][]string
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		wb, err := excelize.OpenReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("open workbook: %w", err)
		}
		defer wb.Close()
		sheets := wb.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil, fmt.Errorf("workbook has no sheets")
		}
		records, err = wb.GetRows(sheets[0])
		if err != nil {
			return nil, nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
		}
	case ".csv":
		var err error
		records, err = csv.NewReader(r).ReadAll()
		if err != nil {
			return nil, nil, fmt.Errorf("read csv: %w", err)
		}
	default:
		return nil, nil, fmt.Errorf("unsupported file type %q", filepath.Ext(name))
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("file is empty")
	}

	headers := records[0]
	rows := make([]model.Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(model.Row, len(headers))
		for i, h := range headers {
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return headers, rows, nil
}

func (b *Backend) previewData(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))

	b.mu.Lock()
	s, ok := b.staged[c.Query("fileName")]
	b.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "preview not found"})
		return
	}
	start, end := pageBounds(len(s.rows), page, size)
	c.JSON(http.StatusOK, gin.H{"content": s.rows[start:end], "total": len(s.rows)})
}

type importBody struct {
	FileName   string `json:"fileName"`
	DataSource string `json:"dataSource"`
}

func (b *Backend) confirmImport(c *gin.Context) {
	var body importBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.staged[body.FileName]
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "preview data not found: " + body.FileName})
		return
	}
	ds, err := model.ParseDataSource(body.DataSource)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	targets := []model.DataSource{ds}
	if ds == model.SourceBoth {
		targets = []model.DataSource{model.SourceMySQL, model.SourceMongoDB}
	}
	for _, t := range targets {
		b.storeRows(t, s.name, s.headers, s.rows)
	}
	delete(b.staged, body.FileName)
	c.Status(http.StatusOK)
}

func (b *Backend) cancelImport(c *gin.Context) {
	var body importBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b.mu.Lock()
	delete(b.staged, body.FileName)
	b.mu.Unlock()
	c.Status(http.StatusOK)
}

func (b *Backend) listTables(c *gin.Context) {
	ds, err := model.ParseDataSource(c.DefaultQuery("dataSource", "MYSQL"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b.mu.Lock()
	names := b.tableNames(ds)
	b.mu.Unlock()
	c.JSON(http.StatusOK, names)
}

func (b *Backend) tableData(c *gin.Context) {
	ds, err := model.ParseDataSource(c.DefaultQuery("dataSource", "MYSQL"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b.writePage(c, ds, c.Query("tableName"))
}

func (b *Backend) writePage(c *gin.Context, ds model.DataSource, table string) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))

	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tables[ds][table]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "table not found: " + table})
		return
	}
	start, end := pageBounds(len(t.Rows), page, size)
	c.JSON(http.StatusOK, gin.H{"content": t.Rows[start:end], "headers": t.Headers, "total": len(t.Rows)})
}

func (b *Backend) exportExcel(c *gin.Context) {
	t, ok := b.exportTable(c)
	if !ok {
		return
	}
	wb := excelize.NewFile()
	defer wb.Close()
	sheet := wb.GetSheetName(0)
	for i, h := range t.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = wb.SetCellValue(sheet, cell, h)
	}
	for r, row := range t.Rows {
		for i, h := range t.Headers {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			_ = wb.SetCellValue(sheet, cell, model.CellString(row[h]))
		}
	}
	var buf bytes.Buffer
	if err := wb.Write(&buf); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+c.Query("tableName")+`.xlsx"`)
	c.Data(http.StatusOK, "application/octet-stream", buf.Bytes())
}

func (b *Backend) exportCSV(c *gin.Context) {
	t, ok := b.exportTable(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(t.Headers)
	for _, row := range t.Rows {
		rec := make([]string, len(t.Headers))
		for i, h := range t.Headers {
			rec[i] = model.CellString(row[h])
		}
		_ = w.Write(rec)
	}
	w.Flush()
	c.Header("Content-Disposition", `attachment; filename="`+c.Query("tableName")+`.csv"`)
	c.Data(http.StatusOK, "application/octet-stream", buf.Bytes())
}

func (b *Backend) exportTable(c *gin.Context) (*Table, bool) {
	ds, err := model.ParseDataSource(c.DefaultQuery("dataSource", "MYSQL"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	t := b.Table(ds, c.Query("tableName"))
	if t == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "table not found"})
		return nil, false
	}
	return t, true
}

func (b *Backend) stats(ds model.DataSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		b.mu.Lock()
		defer b.mu.Unlock()
		count := 0
		for _, t := range b.tables[ds] {
			count += len(t.Rows)
		}
		resp := gin.H{"count": count, "tables": b.tableNames(ds)}
		if ts, ok := b.lastImport[ds]; ok {
			resp["lastImport"] = ts.UTC().Format("2006-01-02T15:04:05Z07:00")
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (b *Backend) sourceData(ds model.DataSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		b.writePage(c, ds, c.Param("table"))
	}
}

func (b *Backend) findRow(c *gin.Context) (*Table, int, bool) {
	ds, err := model.ParseDataSource(c.Param("source"))
	if err != nil || !ds.Browsable() {
		c.String(http.StatusBadRequest, "unsupported data source")
		return nil, 0, false
	}
	t, ok := b.tables[ds][c.Param("table")]
	if !ok {
		c.String(http.StatusNotFound, "table not found")
		return nil, 0, false
	}
	id := c.Param("id")
	for i, row := range t.Rows {
		for _, col := range []string{model.RelationalIDColumn, model.DocumentIDColumn, t.Headers[0]} {
			if v, ok := row[col]; ok && model.CellString(v) == id {
				return t, i, true
			}
		}
	}
	c.String(http.StatusNotFound, "row not found: "+id)
	return nil, 0, false
}

func (b *Backend) updateRow(c *gin.Context) {
	var values map[string]any
	if err := c.ShouldBindJSON(&values); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	t, i, ok := b.findRow(c)
	if !ok {
		return
	}
	for k, v := range values {
		if k == model.RelationalIDColumn || k == model.DocumentIDColumn {
			continue
		}
		t.Rows[i][k] = v
	}
	c.Status(http.StatusOK)
}

func (b *Backend) deleteRow(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, i, ok := b.findRow(c)
	if !ok {
		return
	}
	t.Rows = append(t.Rows[:i], t.Rows[i+1:]...)
	c.Status(http.StatusOK)
}
