package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/scipunch/rssreader/cache"
	"github.com/scipunch/rssreader/config"
	"github.com/scipunch/rssreader/feed"
	"github.com/scipunch/rssreader/fetcher"
	"github.com/scipunch/rssreader/filter"
	"github.com/scipunch/rssreader/format"
	"github.com/scipunch/rssreader/logging"
	"github.com/scipunch/rssreader/parser"
	"github.com/scipunch/rssreader/reader"
)

const (
	version    = "1.4.0"
	dateLayout = "20060102"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "rssreader:", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "rssreader",
		Usage:     "Command-line RSS reader",
		UsageText: "rssreader [options] source",
		Version:   version,
		Writer:    out,
		Description: `Reads an RSS 2.0 feed and prints its items as text or JSON.

		Every read is merged into a local cache, so news stay available
		offline with --date. Conversion to HTML or PDF embeds item images.`,
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print result as JSON in stdout",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Outputs verbose status messages",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Limit news topics if this parameter provided",
			},
			&cli.StringFlag{
				Name:  "date",
				Usage: "Read cached news published on `YYYYMMDD`",
			},
			&cli.PathFlag{
				Name:  "to-html",
				Usage: "Convert news to HTML and save it at `FILE`",
			},
			&cli.PathFlag{
				Name:  "to-pdf",
				Usage: "Convert news to PDF and save it at `FILE`",
			},
			&cli.PathFlag{
				Name:    "config",
				Value:   config.DefaultPath(),
				Usage:   "path to a TOML config",
				EnvVars: []string{"RSSREADER_CONFIG"},
			},
			&cli.BoolFlag{
				Name:  "clean",
				Usage: "remove all cache entries",
			},
		},
		Action: run,
	}
}

func run(cliCtx *cli.Context) error {
	ctx := cliCtx.Context

	conf, err := loadConfig(cliCtx.Path("config"))
	if err != nil {
		return err
	}

	logger, closeLog, err := logging.New(conf.Log, cliCtx.Bool("verbose"))
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := cache.Open(conf.Cache.Backend, conf.CachePath())
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer store.Close()

	if cliCtx.Bool("clean") {
		if err := store.Clear(); err != nil {
			return err
		}
		logger.Info("cache cleared", zap.String("path", conf.CachePath()))
		return nil
	}

	if sqliteStore, ok := store.(*cache.SQLiteStore); ok {
		if stats, err := sqliteStore.Stats(ctx); err != nil {
			logger.Warn("failed to get cache stats", zap.Error(err))
		} else {
			logger.Debug("cache initialized",
				zap.Int("feeds", stats.Feeds),
				zap.Int("items", stats.Items),
				zap.Time("oldest", stats.OldestEntry))
		}
	}

	source := cliCtx.Args().First()
	if source == "" {
		return errors.New("source is required")
	}

	opts := reader.Options{
		Source:     source,
		NeedImages: cliCtx.Path("to-html") != "" || cliCtx.Path("to-pdf") != "",
	}
	resource, _ := conf.Resource(source)
	opts.FilterNames = resource.FilterNames
	opts.Limit = resource.Limit
	if cliCtx.IsSet("limit") {
		limit := cliCtx.Int("limit")
		if limit < 0 {
			return errors.New("--limit must not be negative")
		}
		opts.Limit = &limit
	}
	if raw := cliCtx.String("date"); raw != "" {
		day, err := parseDate(raw)
		if err != nil {
			return err
		}
		opts.Date = &day
	}

	filters, err := filter.NewFilterPipeline(conf.Filters)
	if err != nil {
		return fmt.Errorf("failed to initialize filters: %w", err)
	}
	httpFetcher := fetcher.NewHTTPFetcher(fetcher.Options{
		Timeout:    conf.HTTP.Timeout(),
		RetryCount: conf.HTTP.Retries,
		UserAgent:  conf.HTTP.UserAgent,
	})

	r := reader.New(store, httpFetcher, httpFetcher, parser.New(), filters, logger)
	f, err := r.Run(ctx, opts)
	if err != nil {
		return err
	}

	return output(cliCtx, f, logger)
}

func output(cliCtx *cli.Context, f feed.Feed, logger *zap.Logger) error {
	formatter := format.New(f)
	converted := false

	if htmlPath := cliCtx.Path("to-html"); htmlPath != "" {
		doc, err := formatter.HTML()
		if err != nil {
			return err
		}
		if err := os.WriteFile(htmlPath, doc, 0o644); err != nil {
			return fmt.Errorf("failed to write HTML to '%s': %w", htmlPath, err)
		}
		logger.Info("HTML file generated", zap.String("path", htmlPath))
		converted = true
	}

	if pdfPath := cliCtx.Path("to-pdf"); pdfPath != "" {
		if err := formatter.PDF(cliCtx.Context, pdfPath); err != nil {
			return err
		}
		logger.Info("PDF file generated", zap.String("path", pdfPath))
		converted = true
	}

	if converted {
		return nil
	}

	out := cliCtx.App.Writer
	if cliCtx.Bool("json") {
		doc, err := formatter.JSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, doc)
		return err
	}
	_, err := fmt.Fprint(out, formatter.Text())
	return err
}

// loadConfig reads the config at cfgPath. A missing config at the default
// location is created with default values.
func loadConfig(cfgPath string) (config.Config, error) {
	conf, err := config.Read(cfgPath)
	if errors.Is(err, os.ErrNotExist) && cfgPath == config.DefaultPath() {
		if err := config.Write(cfgPath, conf); err != nil {
			return conf, fmt.Errorf("failed to write default config: %w", err)
		}
		return conf, nil
	}
	if err != nil {
		return conf, fmt.Errorf("failed to read config: %w", err)
	}
	return conf, nil
}

func parseDate(raw string) (time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q, expected YYYYMMDD", raw)
	}
	return day, nil
}
