package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"github.com/importdesk/importdesk/internal/api"
	"github.com/importdesk/importdesk/internal/model"
	"github.com/importdesk/importdesk/internal/store"
)

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show row counts and last import time per data source",
		Args:  cobra.NoArgs,
		RunE:  runStats,
	}
	commonFlags(cmd.Flags())
	return cmd
}

func tablesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List the tables of a data source",
		Args:  cobra.NoArgs,
		RunE:  runTables,
	}
	f := cmd.Flags()
	f.StringP("source", "s", string(model.SourceMySQL), "Data source (mysql, mongodb)")
	commonFlags(f)
	return cmd
}

func rowsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rows TABLE",
		Short: "Print one page of a table",
		Args:  cobra.ExactArgs(1),
		RunE:  runRows,
	}
	f := cmd.Flags()
	f.StringP("source", "s", string(model.SourceMySQL), "Data source (mysql, mongodb)")
	f.IntP("page", "p", 1, "Page number")
	f.Int("size", 10, "Rows per page")
	f.Bool("dashboard", false, "Read through the dashboard endpoint instead of the excel API")
	commonFlags(f)
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Stage a spreadsheet, show its preview and import it",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}
	f := cmd.Flags()
	f.StringP("source", "s", string(model.SourceMySQL), "Target data source (mysql, mongodb, both)")
	f.Bool("dry-run", false, "Preview only and cancel the staged file")
	commonFlags(f)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export TABLE",
		Short: "Download a table as Excel or CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.StringP("source", "s", string(model.SourceMySQL), "Data source (mysql, mongodb)")
	f.StringP("format", "f", string(api.ExportExcel), "Export format (excel, csv)")
	f.StringP("output", "o", "", "Output file path (default TABLE.xlsx or TABLE.csv)")
	f.Bool("summary", false, "Print sheet and row counts of the downloaded workbook")
	commonFlags(f)
	return cmd
}

func papersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "papers",
		Short: "List saved papers of a question bank",
		Args:  cobra.NoArgs,
		RunE:  runPapers,
	}
	f := cmd.Flags()
	f.String("bank", string(model.BankOCR), "Question bank (ocr, pdf)")
	commonFlags(f)
	return cmd
}

func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search saved papers and questions",
		Args:  cobra.ExactArgs(1),
		RunE:  runSearch,
	}
	commonFlags(cmd.Flags())
	return cmd
}

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the console's audit journal",
		Args:  cobra.NoArgs,
		RunE:  runAudit,
	}
	f := cmd.Flags()
	f.String("audit-db", "importdesk-audit.db", "SQLite path of the audit journal")
	f.String("action", "", "Only show this action")
	f.IntP("limit", "n", 50, "Maximum entries to show (0 = all)")
	f.Duration("prune-older-than", 0, "Delete entries older than this before listing")
	f.Bool("json", false, "Print entries as JSON")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func runStats(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	client, err := newClient(v)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tROWS\tTABLES\tLAST IMPORT")
	for _, ds := range []model.DataSource{model.SourceMySQL, model.SourceMongoDB} {
		s, err := client.Stats(cmd.Context(), ds)
		if err != nil {
			return fmt.Errorf("stats for %s: %w", ds, err)
		}
		last := s.LastImport.Display()
		if last == "" {
			last = "-"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", ds, s.Count, len(s.Tables), last)
	}
	return tw.Flush()
}

func browsableSource(s string) (model.DataSource, error) {
	ds, err := model.ParseDataSource(s)
	if err != nil {
		return "", err
	}
	if !ds.Browsable() {
		return "", fmt.Errorf("data source %s cannot be browsed", ds)
	}
	return ds, nil
}

func runTables(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ds, err := browsableSource(v.GetString("source"))
	if err != nil {
		return err
	}
	client, err := newClient(v)
	if err != nil {
		return err
	}

	tables, err := client.Tables(cmd.Context(), ds)
	if err != nil {
		return err
	}
	for _, t := range tables {
		fmt.Fprintln(cmd.OutOrStdout(), t)
	}
	return nil
}

// printRows writes rows as a tab-aligned table in header order.
func printRows(w io.Writer, headers []string, rows []model.Row) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		cells := make([]string, 0, len(headers))
		for _, c := range model.OrderRow(headers, row) {
			s := model.CellString(c.Value)
			if strings.HasPrefix(s, "data:image/") {
				s = "[image]"
			}
			cells = append(cells, strings.ReplaceAll(s, "\t", " "))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func runRows(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ds, err := browsableSource(v.GetString("source"))
	if err != nil {
		return err
	}
	client, err := newClient(v)
	if err != nil {
		return err
	}

	read := client.TableData
	if v.GetBool("dashboard") {
		read = client.SourceData
	}
	data, err := read(cmd.Context(), ds, args[0], v.GetInt("page"), v.GetInt("size"))
	if err != nil {
		return err
	}
	if err := printRows(cmd.OutOrStdout(), data.Headers, data.Content); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "page %d, %d rows total\n", v.GetInt("page"), data.Total)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ds, err := model.ParseDataSource(v.GetString("source"))
	if err != nil {
		return err
	}
	client, err := newClient(v)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open %s: %w", args[0], err)
	}
	defer f.Close()

	ctx := cmd.Context()
	preview, err := client.Preview(ctx, filepath.Base(args[0]), f, ds)
	if err != nil {
		return err
	}
	if err := printRows(cmd.OutOrStdout(), preview.Headers, preview.Content); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d rows staged as %s\n", preview.Total, preview.FileID)

	if v.GetBool("dry-run") {
		if err := client.CancelImport(ctx, preview.FileID); err != nil {
			return fmt.Errorf("cancel staged file: %w", err)
		}
		slog.Info("dry run, staged file cancelled", "file_id", preview.FileID)
		return nil
	}
	if err := client.ConfirmImport(ctx, preview.FileID, ds); err != nil {
		return err
	}
	slog.Info("imported", "file", args[0], "source", ds, "rows", preview.Total)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ds, err := browsableSource(v.GetString("source"))
	if err != nil {
		return err
	}
	format := api.ExportFormat(strings.ToLower(v.GetString("format")))
	if format != api.ExportExcel && format != api.ExportCSV {
		return fmt.Errorf("unknown export format %q", format)
	}
	client, err := newClient(v)
	if err != nil {
		return err
	}

	table := args[0]
	outPath := v.GetString("output")
	if outPath == "" {
		outPath = table + format.Extension()
	}
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	n, err := client.Download(cmd.Context(), ds, table, format, out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	slog.Info("exported", "table", table, "path", outPath, "bytes", n)

	if v.GetBool("summary") {
		if format != api.ExportExcel {
			return fmt.Errorf("--summary needs --format excel")
		}
		return summarizeWorkbook(cmd.OutOrStdout(), outPath)
	}
	return nil
}

// summarizeWorkbook prints each sheet with its row count, header row
// included.
func summarizeWorkbook(w io.Writer, path string) error {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SHEET\tROWS\tCOLUMNS")
	for _, sheet := range wb.GetSheetList() {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			return fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		cols := 0
		if len(rows) > 0 {
			cols = len(rows[0])
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\n", sheet, len(rows), cols)
	}
	return tw.Flush()
}

func printPapers(w io.Writer, papers []model.Paper) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tYEAR\tQUESTIONS\tCREATED")
	for _, p := range papers {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", p.ID, p.PaperName, p.Year, p.QuestionCount, p.CreateTime.Display())
	}
	return tw.Flush()
}

func runPapers(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	bank, err := model.ParseQuestionBank(v.GetString("bank"))
	if err != nil {
		return err
	}
	client, err := newClient(v)
	if err != nil {
		return err
	}

	papers, err := client.Papers(cmd.Context(), bank)
	if err != nil {
		return err
	}
	return printPapers(cmd.OutOrStdout(), papers)
}

func runSearch(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	client, err := newClient(v)
	if err != nil {
		return err
	}

	res, err := client.Search(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d matches (%s)\n", res.MatchCount, res.SearchType)
	return printPapers(cmd.OutOrStdout(), res.Papers)
}

func runAudit(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("audit-db"))
	if err != nil {
		return fmt.Errorf("open audit journal: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	if age := v.GetDuration("prune-older-than"); age > 0 {
		n, err := db.Prune(ctx, time.Now().Add(-age))
		if err != nil {
			return fmt.Errorf("prune audit journal: %w", err)
		}
		slog.Info("pruned audit journal", "removed", n)
	}

	entries, err := db.List(ctx, v.GetString("action"), v.GetInt("limit"))
	if err != nil {
		return fmt.Errorf("list audit journal: %w", err)
	}

	if v.GetBool("json") {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAT\tACTION\tTARGET")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.ID, e.At.Local().Format("2006-01-02 15:04:05"), e.Action, e.Target)
	}
	return tw.Flush()
}
