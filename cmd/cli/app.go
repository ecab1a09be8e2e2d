package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-dashboard/internal/aggregate"
	"github.com/dvloznov/finance-dashboard/internal/config"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/report"
	"github.com/dvloznov/finance-dashboard/internal/sources"
)

var (
	configPath = flag.String("config", os.Getenv("DASHBOARD_CONFIG"), "Path to the YAML config file")
	raw        = flag.Bool("raw", false, "Print Markdown instead of rendering it for the terminal")
	width      = flag.Int("width", 100, "Terminal width used for word wrapping")
)

// env is what every command needs: configuration, a logger and the sources.
type env struct {
	cfg     *config.Config
	log     zerolog.Logger
	sources sources.Set
}

func openEnv() (*env, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	log := logger.NewWithLevel(cfg.Log.Level)

	set, errs := sources.Open(cfg)
	for _, err := range errs {
		log.Debug().Err(err).Msg("Source not configured")
	}
	return &env{cfg: cfg, log: log, sources: set}, nil
}

func (e *env) context(ctx context.Context) context.Context {
	return logger.WithContext(ctx, e.log)
}

// filterFlags are the record selection flags shared by the ledger commands.
type filterFlags struct {
	db      string
	exclude string
	start   string
	end     string
}

func (f *filterFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.db, "db", "", "Database name or id. Defaults to the configured default database.")
	fs.StringVar(&f.exclude, "exclude", "", "Comma separated tags to leave out")
	fs.StringVar(&f.start, "start", "", "First day to include (YYYY-MM-DD)")
	fs.StringVar(&f.end, "end", "", "Last day to include (YYYY-MM-DD)")
}

func (f *filterFlags) filter() (aggregate.Filter, error) {
	var excluded []string
	if f.exclude != "" {
		excluded = []string{f.exclude}
	}
	return aggregate.ParseFilter(excluded, f.start, f.end)
}

// printMarkdown writes md to stdout, rendered for the terminal unless -raw.
func printMarkdown(md string) {
	if *raw {
		fmt.Print(md)
		return
	}
	out, err := report.Terminal(md, *width)
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(strings.TrimLeft(out, "\n"))
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
