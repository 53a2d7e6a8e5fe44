// Command tldr is the summarizer daemon. It drives Chrome, watches each
// attached page for the t l d r chord and writes a summary of the text
// under the pointer into the page.
//
// Usage:
//
//	tldr -config tldr.yaml                       # pages and settings from YAML
//	tldr -url https://news.example.com           # one page, defaults otherwise
//	tldr -remote ws://127.0.0.1:9222/devtools/…  # attach to a running Chrome
//	tldr -options                                # open the settings page
//	tldr -file page.html -x 300 -y 420           # run the locator offline
//	tldr -mcp                                    # also serve MCP tools on stdio
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/tldr/companion"
	"github.com/hazyhaar/tldr/dbopen"
	"github.com/hazyhaar/tldr/options"
	"github.com/hazyhaar/tldr/popup"
)

var version = "dev"

type flags struct {
	config      string
	url         string
	remote      string
	optionsAddr string
	db          string
	openOptions bool
	serveMCP    bool
	file        string
	fileURL     string
	x, y        float64
}

func main() {
	var f flags
	flag.StringVar(&f.config, "config", "", "path to tldr.yaml config file")
	flag.StringVar(&f.url, "url", "", "open a single URL")
	flag.StringVar(&f.remote, "remote", "", "DevTools WebSocket URL of a running Chrome")
	flag.StringVar(&f.optionsAddr, "options-addr", "", "listen address of the settings page")
	flag.StringVar(&f.db, "db", "", "SQLite database path")
	flag.BoolVar(&f.openOptions, "options", false, "open the settings page once the daemon is up")
	flag.BoolVar(&f.serveMCP, "mcp", false, "serve MCP tools on stdin/stdout")
	flag.StringVar(&f.file, "file", "", "locate the target in an annotated HTML file and exit")
	flag.StringVar(&f.fileURL, "file-url", "", "page URL for -file (selects site strategies)")
	flag.Float64Var(&f.x, "x", 0, "cursor x for -file")
	flag.Float64Var(&f.y, "y", 0, "cursor y for -file")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, f); err != nil {
		logger.Error("tldr: fatal", "error", err)
		os.Exit(1)
	}
}

func loadConfig(f flags) (*companion.Config, error) {
	cfg := companion.DefaultConfig()
	if f.config != "" {
		var err error
		if cfg, err = companion.LoadConfigFile(f.config); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if f.url != "" {
		cfg.Pages = []companion.PageConfig{{URL: f.url}}
	}
	if f.remote != "" {
		cfg.Browser.Remote = f.remote
	}
	if f.optionsAddr != "" {
		cfg.Options.Addr = f.optionsAddr
	}
	if f.db != "" {
		cfg.DB.Path = f.db
	}
	return cfg, nil
}

func run(ctx context.Context, logger *slog.Logger, f flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	if f.file != "" {
		return runLocate(ctx, logger, cfg, f)
	}

	db, err := dbopen.Open(cfg.DB.Path, dbopen.WithMkdirAll())
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	c, err := companion.New(cfg, db, logger)
	if err != nil {
		return err
	}

	opts, err := options.New(options.Config{Store: c.Settings(), Usage: c.Ledger(), Logger: logger})
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", cfg.Options.Addr)
	if err != nil {
		return fmt.Errorf("options listen: %w", err)
	}
	optionsURL := "http://" + ln.Addr().String() + "/"
	srv := &http.Server{Handler: opts.Handler(), ReadHeaderTimeout: 10 * time.Second}
	logger.Info("tldr: options page", "url", optionsURL, "version", version)

	if err := c.Start(ctx); err != nil {
		ln.Close()
		return err
	}
	defer c.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("options server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		retention(gctx, logger, c, cfg.DB.RetentionDays)
		return nil
	})
	if f.serveMCP {
		ms := mcp.NewServer(&mcp.Implementation{Name: "tldr", Version: version}, nil)
		c.RegisterMCP(ms)
		g.Go(func() error {
			if err := ms.Run(gctx, &mcp.StdioTransport{}); err != nil && gctx.Err() == nil {
				return fmt.Errorf("mcp: %w", err)
			}
			return nil
		})
	}

	if f.openOptions {
		opener := &popup.Opener{
			Primary:  func(ctx context.Context) error { return c.OpenURL(ctx, optionsURL) },
			Fallback: popup.SystemBrowser(optionsURL),
			Alert:    func(msg string) { fmt.Fprintln(os.Stderr, msg) },
			Logger:   logger,
		}
		opener.Open(gctx)
	}

	logger.Info("tldr: running", "pages", c.Sessions())
	return g.Wait()
}

// retention prunes the usage ledger at start and then daily.
func retention(ctx context.Context, logger *slog.Logger, c *companion.Companion, days int) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		if _, err := c.Ledger().Cleanup(ctx, days); err != nil {
			logger.Warn("tldr: ledger cleanup", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func runLocate(_ context.Context, logger *slog.Logger, cfg *companion.Config, f flags) error {
	html, err := os.ReadFile(f.file)
	if err != nil {
		return err
	}
	orch, err := companion.NewOfflineOrchestrator(cfg, logger)
	if err != nil {
		return err
	}
	res, err := companion.Locate(orch, &companion.LocateRequest{HTML: string(html), URL: f.fileURL, X: f.x, Y: f.y})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
