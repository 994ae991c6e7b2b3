package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/importdesk/importdesk/internal/api"
	"github.com/importdesk/importdesk/internal/handler"
	appI18n "github.com/importdesk/importdesk/internal/i18n"
	"github.com/importdesk/importdesk/internal/model"
	"github.com/importdesk/importdesk/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "importdesk",
		Short: "Admin console for the spreadsheet and document import backend",
	}

	serve := serveCmd()
	root.AddCommand(serve, statsCmd(), tablesCmd(), rowsCmd(), importCmd(),
		exportCmd(), papersCmd(), searchCmd(), auditCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `importdesk --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// commonFlags adds the backend and logging flags every command takes.
func commonFlags(f *pflag.FlagSet) {
	f.String("api-url", "http://localhost:8081", "Import backend base URL")
	f.Duration("api-timeout", 60*time.Second, "Timeout for one backend request")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the admin console",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringP("lang", "l", "en", "Default UI language (en, zh)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /console)")
	f.Bool("secure-cookies", true, "Set Secure flag on console cookies")
	f.Int("page-size", 10, "Default rows per page")
	f.String("bank", string(model.BankOCR), "Question bank served at /ocr (ocr, pdf)")
	f.String("public-api-url", "", "Backend URL the browser uses for exports (defaults to --api-url)")
	f.String("audit-db", store.MemoryPath, "SQLite path of the audit journal")
	commonFlags(f)
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("IMPORTDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("importdesk")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/importdesk")
	v.AddConfigPath("/etc/importdesk")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func newClient(v *viper.Viper) (*api.Client, error) {
	c, err := api.New(v.GetString("api-url"), v.GetDuration("api-timeout"))
	if err != nil {
		return nil, fmt.Errorf("create backend client: %w", err)
	}
	return c, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	journal, err := store.New(v.GetString("audit-db"))
	if err != nil {
		return fmt.Errorf("open audit journal: %w", err)
	}
	defer journal.Close()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	client, err := newClient(v)
	if err != nil {
		return err
	}

	bank, err := model.ParseQuestionBank(v.GetString("bank"))
	if err != nil {
		return err
	}

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	cfg := model.ConsoleConfig{
		BasePath:      basePath,
		SecureCookies: v.GetBool("secure-cookies"),
		PageSize:      v.GetInt("page-size"),
		Bank:          bank,
		BackendURL:    v.GetString("public-api-url"),
	}

	h, err := handler.New(client, journal, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(cfg.SecureCookies))

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"api_url", client.BaseURL(),
		"lang", lang,
		"bank", bank,
		"page_size", cfg.PageSize,
		"base_path", basePath,
		"audit_db", v.GetString("audit-db"),
	)
	return http.ListenAndServe(addr, r)
}
