package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	goption "google.golang.org/api/option"

	"obligations/internal/backend"
	"obligations/internal/cli"
	"obligations/internal/config"
	"obligations/internal/core"
	"obligations/internal/log"
	"obligations/internal/sheets"
	"obligations/internal/sheets/google"
	"obligations/internal/sheets/memory"
)

func main() {
	monthFlag := flag.String("month", "", "month to export as YYYY-MM (default: current month)")
	sheetFlag := flag.String("sheet", "", "base sheet name (default: GOOGLE_SHEET_NAME)")
	dryRun := flag.Bool("dry-run", false, "render the report to stdout instead of Google Sheets")
	flag.Parse()

	cfg, logger := cli.Bootstrap(log.ComponentSheets)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *monthFlag, *sheetFlag, *dryRun); err != nil {
		logger.Error("Report export failed", log.FieldError, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger, monthArg, sheetArg string, dryRun bool) error {
	if !dryRun {
		if err := cfg.ValidateReport(); err != nil {
			return err
		}
	}

	result := cli.NewBackend(ctx, logger, cfg, func(c *backend.Config) {
		c.EventsInProcess = true
	})
	defer result.Cleanup()

	month := result.Engine.CurrentMonth()
	if monthArg != "" {
		m, err := core.ParseMonth(monthArg)
		if err != nil {
			return err
		}
		month = m
	}
	base := cfg.GoogleSheetName
	if sheetArg != "" {
		base = sheetArg
	}

	var (
		dst  sheets.Reporter
		dump *memory.Store
	)
	if dryRun {
		dump = memory.New()
		dst = dump
	} else {
		opt, err := credentials(ctx, cfg)
		if err != nil {
			return err
		}
		client, err := google.New(ctx, cfg.GoogleSpreadsheetID, opt)
		if err != nil {
			return err
		}
		dst = client
	}

	report, err := sheets.Export(ctx, result.Engine, dst, base, month)
	if err != nil {
		return err
	}
	logger.Info("Report exported",
		"sheet", report.Sheet,
		log.FieldMonth, report.Month.String(),
		"occurrences", report.Occurrences,
		"pending", report.Summary.Pending.Count,
		"paid", report.Summary.Paid.Count,
		"upcoming", report.Summary.Upcoming.Count)

	if dump != nil {
		return dump.Dump(os.Stdout)
	}
	return nil
}

// credentials prefers a service account and falls back to a stored user token.
func credentials(ctx context.Context, cfg *config.Config) (goption.ClientOption, error) {
	if cfg.UsesServiceAccount() {
		b, err := cfg.ServiceAccountCredentials()
		if err != nil {
			return nil, err
		}
		return google.ServiceAccount(b), nil
	}
	client, err := cfg.OAuthClientCredentials()
	if err != nil {
		return nil, err
	}
	token, err := cfg.OAuthToken()
	if err != nil {
		return nil, fmt.Errorf("%w (run obligations-oauth to create one)", err)
	}
	return google.UserToken(ctx, client, token)
}
